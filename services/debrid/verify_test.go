package debrid

import (
	"context"
	"fmt"
	"testing"
)

func TestVerifyJunkOverridesValidVideo(t *testing.T) {
	hash := testHash("a")
	fp := newFakeProvider()
	fp.infos["t-"+hash] = &TorrentInfo{
		ID:     "t-" + hash,
		Status: "downloaded",
		Files: []File{
			{ID: 1, Path: "/release/movie.rar", Bytes: 700 * mib},
			{ID: 2, Path: "/release/movie.mkv", Bytes: 1229 * mib},
		},
	}

	v := NewVerifier(fp, nil, nil, nil, nil, 50)
	result := v.Verify(context.Background(), hash, RecordMeta{})
	if result.Verdict != VerdictJunk {
		t.Fatalf("expected junk verdict, got %s", result.Verdict)
	}
	if result.Verdict.Usable() {
		t.Fatalf("junk verdict must not be usable")
	}
}

func TestVerifyNonTerminalStatusSkipsFileInspection(t *testing.T) {
	hash := testHash("b")
	fp := newFakeProvider()
	// The file list would classify as junk if it were inspected; a
	// non-terminal status must win before that.
	fp.infos["t-"+hash] = &TorrentInfo{
		ID:     "t-" + hash,
		Status: "magnet_error",
		Files: []File{
			{ID: 1, Path: "/release/movie.rar", Bytes: 700 * mib},
		},
	}

	v := NewVerifier(fp, nil, nil, nil, nil, 50)
	result := v.Verify(context.Background(), hash, RecordMeta{})
	if result.Verdict != VerdictNotCached {
		t.Fatalf("expected not_cached verdict, got %s", result.Verdict)
	}
}

func TestVerifyCachedPicksLargestVideo(t *testing.T) {
	hash := testHash("c")
	fp := newFakeProvider()
	fp.infos["t-"+hash] = &TorrentInfo{
		ID:     "t-" + hash,
		Status: "finished",
		Files: []File{
			{ID: 1, Path: "/release/sample.mkv", Bytes: 30 * mib},
			{ID: 2, Path: "/release/movie.mkv", Bytes: 4000 * mib},
			{ID: 3, Path: "/release/extras.mkv", Bytes: 900 * mib},
		},
	}

	v := NewVerifier(fp, nil, nil, nil, nil, 50)
	result := v.Verify(context.Background(), hash, RecordMeta{})
	if result.Verdict != VerdictCached {
		t.Fatalf("expected cached verdict, got %s", result.Verdict)
	}
	if result.File == nil || result.File.ID != 2 {
		t.Fatalf("expected file 2 selected, got %+v", result.File)
	}
}

func TestVerifyNoPlausibleVideo(t *testing.T) {
	hash := testHash("d")
	fp := newFakeProvider()
	fp.infos["t-"+hash] = &TorrentInfo{
		ID:     "t-" + hash,
		Status: "downloaded",
		Files: []File{
			{ID: 1, Path: "/release/sample.mkv", Bytes: 20 * mib},
			{ID: 2, Path: "/release/cover.jpg", Bytes: 2 * mib},
		},
	}

	v := NewVerifier(fp, nil, nil, nil, nil, 50)
	result := v.Verify(context.Background(), hash, RecordMeta{})
	if result.Verdict != VerdictNotCached {
		t.Fatalf("expected not_cached verdict, got %s", result.Verdict)
	}
}

func TestVerifyAddFailure(t *testing.T) {
	hash := testHash("e")
	fp := newFakeProvider()
	fp.addErrs[hash] = fmt.Errorf("provider down")

	v := NewVerifier(fp, nil, nil, nil, nil, 50)
	result := v.Verify(context.Background(), hash, RecordMeta{})
	if result.Verdict != VerdictFailed {
		t.Fatalf("expected failed verdict, got %s", result.Verdict)
	}
}

func TestVerifyRegistersCleanup(t *testing.T) {
	hash := testHash("f")
	fp := newFakeProvider()
	fp.infos["t-"+hash] = &TorrentInfo{ID: "t-" + hash, Status: "waiting_files_selection"}

	cleanup := NewCleanupSet()
	v := NewVerifier(fp, nil, nil, nil, cleanup, 50)
	v.Verify(context.Background(), hash, RecordMeta{})

	cleanup.Run(context.Background(), fp, nil)
	deleted := fp.deletedIDs()
	if len(deleted) != 1 || deleted[0] != "t-"+hash {
		t.Fatalf("expected cleanup to delete t-%s, got %v", hash, deleted)
	}
}
