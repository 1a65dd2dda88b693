package debrid

import (
	"context"

	"streamvault/models"
)

// ScrapeQuery provides normalized inputs to scraper implementations.
type ScrapeQuery struct {
	MediaType models.MediaType
	ContentID string // external content identifier, e.g. "tt11126994"
	Title     string
	Year      int
	Season    int
	Episode   int
}

// Scraper describes a pluggable source capable of returning torrent releases.
// Implementations must honor cancellation via ctx; a cancelled search returns
// whatever error the transport produced, and the caller treats it as empty.
type Scraper interface {
	Name() string
	Search(ctx context.Context, query ScrapeQuery) ([]models.ExternalCandidate, error)
}
