package debrid

import (
	"context"
	"regexp"
	"strings"
	"sync"
)

// File is one entry in a provider torrent's file listing.
type File struct {
	ID       int    `json:"id"`
	Path     string `json:"path"`
	Bytes    int64  `json:"bytes"`
	Selected int    `json:"selected"`
}

// TorrentInfo is the provider-agnostic torrent status. Links runs parallel to
// Files: the link for Files[i] is Links[i].
type TorrentInfo struct {
	ID       string
	Filename string
	Hash     string
	Bytes    int64
	Status   string
	Files    []File
	Links    []string
}

// Torrent is one row of the paged torrent listing.
type Torrent struct {
	ID       string
	Filename string
	Hash     string
	Bytes    int64
	Status   string
}

// Download is one row of the paged downloads listing.
type Download struct {
	ID       string
	Filename string
	Link     string
	Download string
	Filesize int64
}

// AddMagnetResult carries the provider-assigned identifier for a new magnet.
type AddMagnetResult struct {
	ID  string
	URI string
}

// UnrestrictResult is a resolved direct download link.
type UnrestrictResult struct {
	ID          string
	Filename    string
	Filesize    int64
	DownloadURL string
}

// terminal statuses mean the provider has the content fully available.
func isTerminalStatus(status string) bool {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "downloaded", "finished":
		return true
	default:
		return false
	}
}

// Provider abstracts a debrid service API.
type Provider interface {
	Name() string
	AddMagnet(ctx context.Context, magnetURI string) (*AddMagnetResult, error)
	SelectFiles(ctx context.Context, torrentID, fileIDs string) error
	GetTorrentInfo(ctx context.Context, torrentID string) (*TorrentInfo, error)
	ListTorrents(ctx context.Context, page, limit int) ([]Torrent, error)
	ListDownloads(ctx context.Context, page, limit int) ([]Download, error)
	DeleteTorrent(ctx context.Context, torrentID string) error
	UnrestrictLink(ctx context.Context, link string) (*UnrestrictResult, error)
	// HostsLink reports whether a URL points at this provider's own file hosts
	// and can be unrestricted directly.
	HostsLink(link string) bool
}

// ProviderFactory builds a provider client from an API key.
type ProviderFactory func(apiKey string) Provider

var (
	providerMu       sync.RWMutex
	providerRegistry = make(map[string]ProviderFactory)
)

// RegisterProvider makes a provider constructor available by name.
func RegisterProvider(name string, factory ProviderFactory) {
	providerMu.Lock()
	defer providerMu.Unlock()
	providerRegistry[strings.ToLower(name)] = factory
}

// GetProvider instantiates a registered provider.
func GetProvider(name, apiKey string) (Provider, bool) {
	providerMu.RLock()
	factory, ok := providerRegistry[strings.ToLower(name)]
	providerMu.RUnlock()
	if !ok {
		return nil, false
	}
	return factory(apiKey), true
}

var infoHashPattern = regexp.MustCompile(`(?i)btih:([a-f0-9]{40})`)

// ExtractInfoHash pulls the lowercase 40-hex infohash out of a magnet URI.
func ExtractInfoHash(magnetURI string) string {
	matches := infoHashPattern.FindStringSubmatch(magnetURI)
	if len(matches) != 2 {
		return ""
	}
	return strings.ToLower(matches[1])
}

// BuildMagnet produces a trackerless magnet URI for an infohash.
func BuildMagnet(infoHash string) string {
	infoHash = strings.ToLower(strings.TrimSpace(infoHash))
	if infoHash == "" {
		return ""
	}
	return "magnet:?xt=urn:btih:" + infoHash
}
