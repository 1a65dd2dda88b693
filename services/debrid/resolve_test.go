package debrid

import (
	"context"
	"testing"
	"time"
)

func TestResolveMagnetReusesExistingTorrent(t *testing.T) {
	hash := testHash("a")
	fp := newFakeProvider()
	fp.torrents = []Torrent{
		{ID: "existing", Filename: "movie", Hash: hash, Status: "downloaded"},
	}
	fp.infos["existing"] = &TorrentInfo{
		ID:     "existing",
		Status: "downloaded",
		Files:  []File{{ID: 1, Path: "/movie.mkv", Bytes: 4000 * mib, Selected: 1}},
		Links:  []string{"https://fake.example/abc"},
	}
	e := testEngine(fp, nil, nil)

	got := e.Resolve(context.Background(), BuildMagnet(hash))
	if got != "https://dl.fake.example/abc" {
		t.Fatalf("unexpected resolved URL %q", got)
	}
	if fp.addCount() != 0 {
		t.Fatalf("existing terminal torrent must be reused, got %d adds", fp.addCount())
	}
}

func TestResolveMagnetAddsWhenAbsent(t *testing.T) {
	hash := testHash("b")
	fp := newFakeProvider()
	fp.infos["t-"+hash] = &TorrentInfo{
		ID:     "t-" + hash,
		Status: "downloaded",
		Files:  []File{{ID: 1, Path: "/movie.mkv", Bytes: 4000 * mib, Selected: 1}},
		Links:  []string{"https://fake.example/xyz"},
	}
	e := testEngine(fp, nil, nil)

	got := e.Resolve(context.Background(), BuildMagnet(hash))
	if got != "https://dl.fake.example/xyz" {
		t.Fatalf("unexpected resolved URL %q", got)
	}
	if fp.addCount() != 1 {
		t.Fatalf("expected one add, got %d", fp.addCount())
	}
}

func TestResolveMagnetPicksFirstVideoFile(t *testing.T) {
	hash := testHash("d")
	fp := newFakeProvider()
	fp.infos["t-"+hash] = &TorrentInfo{
		ID:     "t-" + hash,
		Status: "downloaded",
		Files: []File{
			{ID: 1, Path: "/a.first.mkv", Bytes: 100 * mib, Selected: 1},
			{ID: 2, Path: "/b.bigger.mkv", Bytes: 5000 * mib, Selected: 1},
		},
		Links: []string{"https://fake.example/first", "https://fake.example/bigger"},
	}
	e := testEngine(fp, nil, nil)

	got := e.Resolve(context.Background(), BuildMagnet(hash))
	if got != "https://dl.fake.example/first" {
		t.Fatalf("expected first video file in listing order, got %q", got)
	}
}

func TestResolveMagnetFallsBackToLargestFile(t *testing.T) {
	hash := testHash("e")
	fp := newFakeProvider()
	fp.infos["t-"+hash] = &TorrentInfo{
		ID:     "t-" + hash,
		Status: "downloaded",
		Files: []File{
			{ID: 1, Path: "/readme.txt", Bytes: 1 * mib, Selected: 1},
			{ID: 2, Path: "/content.bin", Bytes: 900 * mib, Selected: 1},
		},
		Links: []string{"https://fake.example/txt", "https://fake.example/bin"},
	}
	e := testEngine(fp, nil, nil)

	got := e.Resolve(context.Background(), BuildMagnet(hash))
	if got != "https://dl.fake.example/bin" {
		t.Fatalf("expected largest file when nothing matches the video predicate, got %q", got)
	}
}

func TestResolveTokenPicksFileByID(t *testing.T) {
	fp := newFakeProvider()
	fp.infos["tor1"] = &TorrentInfo{
		ID:     "tor1",
		Status: "downloaded",
		Files: []File{
			{ID: 1, Path: "/pack/e1.mkv", Bytes: 2000 * mib, Selected: 1},
			{ID: 2, Path: "/pack/e2.mkv", Bytes: 2100 * mib, Selected: 1},
		},
		Links: []string{"https://fake.example/e1", "https://fake.example/e2"},
	}
	e := testEngine(fp, nil, nil)

	got := e.Resolve(context.Background(), "fake:tor1:2")
	if got != "https://dl.fake.example/e2" {
		t.Fatalf("unexpected resolved URL %q", got)
	}
}

func TestResolveHostURLUnrestrictsDirectly(t *testing.T) {
	fp := newFakeProvider()
	e := testEngine(fp, nil, nil)

	got := e.Resolve(context.Background(), "https://fake.example/direct")
	if got != "https://dl.fake.example/direct" {
		t.Fatalf("unexpected resolved URL %q", got)
	}
	if fp.addCount() != 0 {
		t.Fatalf("host URL resolution must not touch torrents")
	}
}

func TestResolveUnresolvedIsEmpty(t *testing.T) {
	fp := newFakeProvider()
	e := testEngine(fp, nil, nil)

	if got := e.Resolve(context.Background(), "fake:missing:1"); got != "" {
		t.Fatalf("expected empty result for unknown torrent, got %q", got)
	}
	if got := e.Resolve(context.Background(), "not a reference"); got != "" {
		t.Fatalf("expected empty result for garbage input, got %q", got)
	}
	if got := e.Resolve(context.Background(), ""); got != "" {
		t.Fatalf("expected empty result for empty input, got %q", got)
	}
}

func TestResolveRetriesLinkReadOnce(t *testing.T) {
	oldDelay := linkRetryDelay
	linkRetryDelay = 50 * time.Millisecond
	defer func() { linkRetryDelay = oldDelay }()

	hash := testHash("c")
	fp := newFakeProvider()
	// Links absent on first read; the retry observes them populated.
	info := &TorrentInfo{
		ID:     "t-" + hash,
		Status: "downloaded",
		Files:  []File{{ID: 1, Path: "/movie.mkv", Bytes: 4000 * mib, Selected: 1}},
	}
	fp.infos["t-"+hash] = info
	e := testEngine(fp, nil, nil)

	go func() {
		time.Sleep(5 * time.Millisecond)
		fp.mu.Lock()
		info.Links = []string{"https://fake.example/late"}
		fp.mu.Unlock()
	}()

	got := e.Resolve(context.Background(), BuildMagnet(hash))
	if got != "https://dl.fake.example/late" {
		t.Fatalf("expected retry to pick up late links, got %q", got)
	}
}
