package debrid

import (
	"context"
	"log"

	"streamvault/internal/mediaresolve"
	"streamvault/models"
	"streamvault/services/callgate"
)

// PackInspector extracts a single target episode file from multi-episode
// season packs. It keeps per-search state: a hard cap on how many packs may
// be opened, and a memory of hashes that failed so they are not retried
// within the same run.
type PackInspector struct {
	provider Provider
	gate     *callgate.Gate
	cleanup  *CleanupSet

	maxInspects int
	inspected   int
	failed      map[string]struct{}
}

func NewPackInspector(provider Provider, gate *callgate.Gate, cleanup *CleanupSet, maxInspects int) *PackInspector {
	if maxInspects <= 0 {
		maxInspects = 3
	}
	return &PackInspector{
		provider:    provider,
		gate:        gate,
		cleanup:     cleanup,
		maxInspects: maxInspects,
		failed:      make(map[string]struct{}),
	}
}

// Exhausted reports whether the inspection budget for this search is spent.
func (p *PackInspector) Exhausted() bool {
	return p.inspected >= p.maxInspects
}

// Inspect opens a pack and returns the largest file whose parsed
// season/episode equals the target. A pack with no matching file contributes
// nothing; a pack that errors is remembered as failed for the rest of the
// search. The second return is false when no usable file was found.
func (p *PackInspector) Inspect(ctx context.Context, infoHash string, target mediaresolve.EpisodeCode) (models.EpisodeHint, bool) {
	if p.Exhausted() {
		return models.EpisodeHint{}, false
	}
	if _, bad := p.failed[infoHash]; bad {
		return models.EpisodeHint{}, false
	}
	p.inspected++

	added, err := callgate.Call(ctx, p.gate, func(ctx context.Context) (*AddMagnetResult, error) {
		return p.provider.AddMagnet(ctx, BuildMagnet(infoHash))
	})
	if err != nil || added == nil || added.ID == "" {
		log.Printf("[debrid] pack %s: add magnet failed: %v", infoHash, err)
		p.failed[infoHash] = struct{}{}
		return models.EpisodeHint{}, false
	}
	if p.cleanup != nil {
		p.cleanup.Register(added.ID)
	}

	err = p.gate.Schedule(ctx, func(ctx context.Context) error {
		return p.provider.SelectFiles(ctx, added.ID, "all")
	})
	if err != nil {
		log.Printf("[debrid] pack %s: select files failed: %v", infoHash, err)
		p.failed[infoHash] = struct{}{}
		return models.EpisodeHint{}, false
	}

	info, err := callgate.Call(ctx, p.gate, func(ctx context.Context) (*TorrentInfo, error) {
		return p.provider.GetTorrentInfo(ctx, added.ID)
	})
	if err != nil || info == nil {
		log.Printf("[debrid] pack %s: torrent info failed: %v", infoHash, err)
		p.failed[infoHash] = struct{}{}
		return models.EpisodeHint{}, false
	}
	if !isTerminalStatus(info.Status) {
		return models.EpisodeHint{}, false
	}

	var best *File
	for i := range info.Files {
		f := &info.Files[i]
		if IsJunkFile(f.Path) || !IsVideoFile(f.Path) {
			continue
		}
		if !mediaresolve.MatchesEpisode(f.Path, target) {
			continue
		}
		if best == nil || f.Bytes > best.Bytes {
			best = f
		}
	}
	if best == nil {
		log.Printf("[debrid] pack %s: no file matches S%02dE%02d", infoHash, target.Season, target.Episode)
		return models.EpisodeHint{}, false
	}

	return models.EpisodeHint{
		TorrentID: added.ID,
		FileID:    best.ID,
		Path:      best.Path,
		Bytes:     best.Bytes,
	}, true
}
