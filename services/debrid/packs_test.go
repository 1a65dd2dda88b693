package debrid

import (
	"context"
	"fmt"
	"testing"

	"streamvault/internal/mediaresolve"
)

func TestPackInspectSelectsTargetEpisode(t *testing.T) {
	hash := testHash("1")
	fp := newFakeProvider()
	fp.infos["t-"+hash] = &TorrentInfo{
		ID:     "t-" + hash,
		Status: "downloaded",
		Files: []File{
			// The non-matching episode is deliberately the larger file.
			{ID: 1, Path: "/pack/Show.S01E02.1080p.mkv", Bytes: 2000 * mib},
			{ID: 2, Path: "/pack/Show.S01E03.1080p.mkv", Bytes: 5000 * mib},
		},
	}

	inspector := NewPackInspector(fp, nil, nil, 3)
	hint, ok := inspector.Inspect(context.Background(), hash, mediaresolve.EpisodeCode{Season: 1, Episode: 2})
	if !ok {
		t.Fatalf("expected a matching file")
	}
	if hint.FileID != 1 {
		t.Fatalf("expected file 1 (S01E02), got %d (%s)", hint.FileID, hint.Path)
	}
}

func TestPackInspectPrefersLargestMatch(t *testing.T) {
	hash := testHash("2")
	fp := newFakeProvider()
	fp.infos["t-"+hash] = &TorrentInfo{
		ID:     "t-" + hash,
		Status: "downloaded",
		Files: []File{
			{ID: 1, Path: "/pack/Show.S01E02.720p.mkv", Bytes: 900 * mib},
			{ID: 2, Path: "/pack/Show.S01E02.1080p.mkv", Bytes: 2500 * mib},
		},
	}

	inspector := NewPackInspector(fp, nil, nil, 3)
	hint, ok := inspector.Inspect(context.Background(), hash, mediaresolve.EpisodeCode{Season: 1, Episode: 2})
	if !ok || hint.FileID != 2 {
		t.Fatalf("expected largest matching file, got ok=%v hint=%+v", ok, hint)
	}
}

func TestPackInspectNoMatchIsNotFailure(t *testing.T) {
	hash := testHash("3")
	fp := newFakeProvider()
	fp.infos["t-"+hash] = &TorrentInfo{
		ID:     "t-" + hash,
		Status: "downloaded",
		Files: []File{
			{ID: 1, Path: "/pack/Show.S02E01.mkv", Bytes: 2000 * mib},
		},
	}

	inspector := NewPackInspector(fp, nil, nil, 3)
	if _, ok := inspector.Inspect(context.Background(), hash, mediaresolve.EpisodeCode{Season: 1, Episode: 2}); ok {
		t.Fatalf("expected no match")
	}
	if _, bad := inspector.failed[hash]; bad {
		t.Fatalf("no-match pack must not be remembered as failed")
	}
}

func TestPackInspectRemembersFailedHash(t *testing.T) {
	hash := testHash("4")
	fp := newFakeProvider()
	fp.addErrs[hash] = fmt.Errorf("provider down")

	inspector := NewPackInspector(fp, nil, nil, 3)
	target := mediaresolve.EpisodeCode{Season: 1, Episode: 2}
	if _, ok := inspector.Inspect(context.Background(), hash, target); ok {
		t.Fatalf("expected failure")
	}
	before := fp.addCount()
	if _, ok := inspector.Inspect(context.Background(), hash, target); ok {
		t.Fatalf("expected failed hash to stay failed")
	}
	if fp.addCount() != before {
		t.Fatalf("failed hash must not be retried within the same search")
	}
}

func TestPackInspectCapIsHardStop(t *testing.T) {
	fp := newFakeProvider()
	h1, h2 := testHash("5"), testHash("6")
	for _, h := range []string{h1, h2} {
		fp.infos["t-"+h] = &TorrentInfo{ID: "t-" + h, Status: "downloaded"}
	}

	inspector := NewPackInspector(fp, nil, nil, 1)
	target := mediaresolve.EpisodeCode{Season: 1, Episode: 1}
	inspector.Inspect(context.Background(), h1, target)
	if !inspector.Exhausted() {
		t.Fatalf("expected inspector exhausted after cap")
	}
	before := fp.addCount()
	if _, ok := inspector.Inspect(context.Background(), h2, target); ok {
		t.Fatalf("expected no inspection past the cap")
	}
	if fp.addCount() != before {
		t.Fatalf("cap must prevent provider calls")
	}
}

func TestPackInspectExcludesJunkFiles(t *testing.T) {
	hash := testHash("7")
	fp := newFakeProvider()
	fp.infos["t-"+hash] = &TorrentInfo{
		ID:     "t-" + hash,
		Status: "downloaded",
		Files: []File{
			{ID: 1, Path: "/pack/Show.S01E02.rar", Bytes: 5000 * mib},
			{ID: 2, Path: "/pack/Show.S01E02.mkv", Bytes: 2000 * mib},
		},
	}

	inspector := NewPackInspector(fp, nil, nil, 3)
	hint, ok := inspector.Inspect(context.Background(), hash, mediaresolve.EpisodeCode{Season: 1, Episode: 2})
	if !ok || hint.FileID != 2 {
		t.Fatalf("expected junk file excluded, got ok=%v hint=%+v", ok, hint)
	}
}
