package debrid

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// fakeProvider simulates the provider API for tests. Torrent IDs for added
// magnets are "t-" + infohash so tests can pre-seed info responses.
type fakeProvider struct {
	mu        sync.Mutex
	torrents  []Torrent
	downloads []Download
	infos     map[string]*TorrentInfo
	addErrs   map[string]error

	added        []string
	selected     []string
	deleted      []string
	unrestricted []string
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		infos:   make(map[string]*TorrentInfo),
		addErrs: make(map[string]error),
	}
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) AddMagnet(_ context.Context, magnetURI string) (*AddMagnetResult, error) {
	hash := ExtractInfoHash(magnetURI)
	if hash == "" {
		return nil, fmt.Errorf("bad magnet %q", magnetURI)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.addErrs[hash]; err != nil {
		return nil, err
	}
	id := "t-" + hash
	f.added = append(f.added, id)
	return &AddMagnetResult{ID: id, URI: magnetURI}, nil
}

func (f *fakeProvider) SelectFiles(_ context.Context, torrentID, fileIDs string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.selected = append(f.selected, torrentID+"/"+fileIDs)
	return nil
}

func (f *fakeProvider) GetTorrentInfo(_ context.Context, torrentID string) (*TorrentInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	info, ok := f.infos[torrentID]
	if !ok {
		return nil, fmt.Errorf("unknown torrent %s", torrentID)
	}
	cp := *info
	return &cp, nil
}

func (f *fakeProvider) ListTorrents(_ context.Context, page, _ int) ([]Torrent, error) {
	if page > 1 {
		return nil, nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.torrents, nil
}

func (f *fakeProvider) ListDownloads(_ context.Context, page, _ int) ([]Download, error) {
	if page > 1 {
		return nil, nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.downloads, nil
}

func (f *fakeProvider) DeleteTorrent(_ context.Context, torrentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, torrentID)
	return nil
}

func (f *fakeProvider) UnrestrictLink(_ context.Context, link string) (*UnrestrictResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unrestricted = append(f.unrestricted, link)
	return &UnrestrictResult{
		Filename:    "resolved",
		DownloadURL: "https://dl.fake.example/" + strings.TrimPrefix(link, "https://fake.example/"),
	}, nil
}

func (f *fakeProvider) HostsLink(link string) bool {
	return strings.HasPrefix(link, "https://fake.example/")
}

func (f *fakeProvider) addCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.added)
}

func (f *fakeProvider) deletedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

func testHash(c string) string {
	return strings.Repeat(c, 40)
}
