package models

import "fmt"

// MediaType distinguishes movies from series episodes.
type MediaType string

const (
	MediaTypeMovie  MediaType = "movie"
	MediaTypeSeries MediaType = "series"
)

// ReleaseKey builds the deterministic grouping identifier for one piece of
// content: "<type>:<contentId>" for movies, "<type>:<contentId>:SxxEyy" for
// episodes.
func ReleaseKey(mediaType MediaType, contentID string, season, episode int) string {
	if mediaType == MediaTypeSeries && season > 0 && episode > 0 {
		return fmt.Sprintf("%s:%s:S%02dE%02d", mediaType, contentID, season, episode)
	}
	return fmt.Sprintf("%s:%s", mediaType, contentID)
}

// PersonalCandidate is a torrent or download the caller already owns on the
// provider.
type PersonalCandidate struct {
	TorrentID string
	Filename  string
	Hash      string
	Bytes     int64
	Link      string
}

// ExternalCandidate is a raw producer result, ephemeral to one search.
type ExternalCandidate struct {
	Title     string
	InfoHash  string
	Magnet    string
	SizeBytes int64
	Seeders   int
	Tracker   string
}

// EpisodeHint points at one file inside a multi-episode pack.
type EpisodeHint struct {
	TorrentID string
	FileID    int
	Path      string
	Bytes     int64
}

// PackCandidate is an external candidate with a resolved episode file.
type PackCandidate struct {
	ExternalCandidate
	Hint EpisodeHint
}

// StreamSource is the canonical output record emitted to callers after
// aggregation and sorting.
type StreamSource struct {
	Title      string     `json:"title"`
	InfoHash   string     `json:"infoHash"`
	Ref        string     `json:"ref"`
	SizeBytes  int64      `json:"sizeBytes"`
	Seeders    int        `json:"seeders,omitempty"`
	Tracker    string     `json:"tracker,omitempty"`
	Category   Category   `json:"category"`
	Resolution Resolution `json:"resolution,omitempty"`
	Cached     bool       `json:"cached"`
	Personal   bool       `json:"personal"`
}
