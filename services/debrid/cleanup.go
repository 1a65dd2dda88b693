package debrid

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"

	"streamvault/services/callgate"
)

// CleanupSet collects provider torrent identifiers created during a search so
// they can be deleted after the search completes. Deletion is best-effort:
// rate-limited attempts get one bounded retry, anything else is logged and
// dropped.
// cleanupRetryDelay is the fixed backoff before the single rate-limit retry.
var cleanupRetryDelay = 5 * time.Second

type CleanupSet struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

func NewCleanupSet() *CleanupSet {
	return &CleanupSet{ids: make(map[string]struct{})}
}

// Register remembers a torrent ID for post-search deletion.
func (c *CleanupSet) Register(torrentID string) {
	if torrentID == "" {
		return
	}
	c.mu.Lock()
	c.ids[torrentID] = struct{}{}
	c.mu.Unlock()
}

// Forget drops an ID from the set, keeping a torrent the caller wants alive.
func (c *CleanupSet) Forget(torrentID string) {
	c.mu.Lock()
	delete(c.ids, torrentID)
	c.mu.Unlock()
}

func (c *CleanupSet) drain() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, 0, len(c.ids))
	for id := range c.ids {
		ids = append(ids, id)
	}
	c.ids = make(map[string]struct{})
	return ids
}

// Run deletes every registered torrent from the provider through the gate.
func (c *CleanupSet) Run(ctx context.Context, provider Provider, gate *callgate.Gate) {
	ids := c.drain()
	if len(ids) == 0 {
		return
	}
	log.Printf("[debrid] cleaning up %d provider torrents", len(ids))
	for _, id := range ids {
		torrentID := id
		err := retry.Do(
			func() error {
				return gate.Schedule(ctx, func(ctx context.Context) error {
					return provider.DeleteTorrent(ctx, torrentID)
				})
			},
			retry.Attempts(2),
			retry.Delay(cleanupRetryDelay),
			retry.DelayType(retry.FixedDelay),
			retry.RetryIf(callgate.IsRateLimited),
			retry.LastErrorOnly(true),
			retry.Context(ctx),
		)
		if err != nil {
			log.Printf("[debrid] failed to delete torrent %s: %v", torrentID, err)
		}
	}
}
