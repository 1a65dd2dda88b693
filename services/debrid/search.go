package debrid

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/pool"

	"streamvault/config"
	"streamvault/internal/background"
	"streamvault/internal/mediaresolve"
	"streamvault/models"
	"streamvault/services/cachestore"
	"streamvault/services/callgate"
	"streamvault/services/quota"
	"streamvault/utils/similarity"
	"streamvault/utils/title"
)

const (
	personalPageLimit = 100
	maxPersonalPages  = 5
	titleMatchScore   = 0.80
)

// SearchRequest identifies one release to resolve sources for.
type SearchRequest struct {
	MediaType models.MediaType
	ContentID string
	Title     string
	Year      int
	Season    int
	Episode   int
}

// ReleaseKey returns the grouping key for this request.
func (r SearchRequest) ReleaseKey() string {
	return models.ReleaseKey(r.MediaType, r.ContentID, r.Season, r.Episode)
}

// Engine merges personal candidates with externally-verified ones, applies
// quotas, and emits the final sorted source list for a release.
type Engine struct {
	provider Provider
	gate     *callgate.Gate
	store    *cachestore.Store
	queue    *background.Queue
	scrapers []Scraper
	sessions *SessionManager

	limits       quota.Limits
	verification config.VerificationSettings
}

func NewEngine(provider Provider, gate *callgate.Gate, store *cachestore.Store, queue *background.Queue, scrapers []Scraper, limits quota.Limits, verification config.VerificationSettings) *Engine {
	if limits == nil {
		limits = quota.DefaultLimits()
	}
	if verification.MinVideoSizeMiB <= 0 {
		verification.MinVideoSizeMiB = 50
	}
	if verification.MaxPackInspects <= 0 {
		verification.MaxPackInspects = 3
	}
	if verification.LiveCheckCount <= 0 {
		verification.LiveCheckCount = 5
	}
	return &Engine{
		provider:     provider,
		gate:         gate,
		store:        store,
		queue:        queue,
		scrapers:     scrapers,
		sessions:     NewSessionManager(),
		limits:       limits,
		verification: verification,
	}
}

// Search runs the full aggregation flow for one release. It never returns an
// error for collaborator failures; the worst outcome is an empty list.
func (e *Engine) Search(parent context.Context, req SearchRequest) []models.StreamSource {
	ctx, cancel := e.sessions.Begin(parent)
	defer cancel()

	started := time.Now()
	searchID := uuid.NewString()[:8]
	releaseKey := req.ReleaseKey()
	log.Printf("[debrid] search %s: %s (%s)", searchID, releaseKey, req.Title)
	cleanup := NewCleanupSet()
	defer e.scheduleCleanup(cleanup)

	personal, personalCounts := e.gatherPersonal(ctx, req)

	// Personal counts alone may satisfy the high-res gate; store-backed
	// counts never trigger the skip since those results are not guaranteed
	// retrievable for this caller.
	if quota.IsHighResSatisfied(e.limits, personalCounts) {
		log.Printf("[debrid] search %s: personal library satisfies high-res quotas, skipping producers (%d sources, %v)",
			searchID, len(personal), time.Since(started).Round(time.Millisecond))
		sortSources(personal)
		return personal
	}

	storeCounts := e.releaseCounts(ctx, releaseKey)
	combined := quota.Merge(personalCounts, storeCounts)

	candidates := e.scrape(ctx, req)
	candidates = dedupeByHash(candidates)
	candidates = e.dropPersonalHashes(candidates, personal)
	singles, packs := e.filterCandidates(req, candidates)

	results := personal
	verifier := NewVerifier(e.provider, e.gate, e.store, e.queue, cleanup, int64(e.verification.MinVideoSizeMiB))

	known := e.knownHashes(ctx, singles)
	var unverified []models.ExternalCandidate
	for _, cand := range singles {
		cat, res := classifyTitle(cand.Title)
		if _, ok := known[cand.InfoHash]; ok {
			// Previously confirmed; no provider round-trip needed. The store
			// aggregate already counts this record, so inclusion consumes no
			// further slot but still bows to the ceiling.
			if quota.Remaining(e.limits, combined, cat, res) <= 0 {
				unverified = append(unverified, cand)
				continue
			}
			results = append(results, sourceFromExternal(cand, cat, res, true))
			continue
		}
		if quota.Remaining(e.limits, combined, cat, res) <= 0 {
			unverified = append(unverified, cand)
			continue
		}
		verdict := verifier.Verify(ctx, cand.InfoHash, RecordMeta{ReleaseKey: releaseKey, Category: cat, Resolution: res})
		if verdict.Verdict.Usable() {
			src := sourceFromExternal(cand, cat, res, true)
			if verdict.File != nil && verdict.File.Bytes > 0 {
				src.SizeBytes = verdict.File.Bytes
			}
			results = append(results, src)
			combined.Add(cat, res)
		} else {
			log.Printf("[debrid] %s: %s verified %s", releaseKey, cand.InfoHash, verdict.Verdict)
		}
	}

	if req.MediaType == models.MediaTypeSeries && len(packs) > 0 {
		results = append(results, e.inspectPacks(ctx, req, releaseKey, packs, cleanup, &combined)...)
	}

	// Last chance for whatever quota skipped: a one-shot live pass over the
	// best-seeded leftovers, included as non-cached if the provider takes
	// them.
	results = append(results, e.liveCheck(ctx, releaseKey, unverified, verifier)...)

	sortSources(results)
	log.Printf("[debrid] search %s: %d sources in %v", searchID, len(results), time.Since(started).Round(time.Millisecond))
	return results
}

// gatherPersonal fetches the caller's torrents and downloads concurrently and
// keeps the ones matching this release, counting them for the quota model.
func (e *Engine) gatherPersonal(ctx context.Context, req SearchRequest) ([]models.StreamSource, quota.Counts) {
	var (
		torrents  []Torrent
		downloads []Download
		wg        conc.WaitGroup
	)
	wg.Go(func() {
		torrents = e.listAllTorrents(ctx)
	})
	wg.Go(func() {
		downloads = e.listAllDownloads(ctx)
	})
	wg.Wait()

	counts := quota.NewCounts()
	var sources []models.StreamSource
	seen := make(map[string]struct{})

	target := mediaresolve.EpisodeCode{Season: req.Season, Episode: req.Episode}
	for _, t := range torrents {
		if !isTerminalStatus(t.Status) || !e.matchesRelease(req, t.Filename, target) {
			continue
		}
		hash := strings.ToLower(t.Hash)
		if hash != "" {
			if _, dup := seen[hash]; dup {
				continue
			}
			seen[hash] = struct{}{}
		}
		pc := models.PersonalCandidate{
			TorrentID: t.ID,
			Filename:  t.Filename,
			Hash:      hash,
			Bytes:     t.Bytes,
		}
		cat, res := classifyTitle(pc.Filename)
		counts.Add(cat, res)
		sources = append(sources, sourceFromPersonal(pc, fmt.Sprintf("%s:%s:%d", e.provider.Name(), pc.TorrentID, 0), cat, res))
	}
	for _, d := range downloads {
		if !e.matchesRelease(req, d.Filename, target) {
			continue
		}
		pc := models.PersonalCandidate{
			Filename: d.Filename,
			Bytes:    d.Filesize,
			Link:     d.Link,
		}
		cat, res := classifyTitle(pc.Filename)
		counts.Add(cat, res)
		sources = append(sources, sourceFromPersonal(pc, pc.Link, cat, res))
	}
	return sources, counts
}

func (e *Engine) listAllTorrents(ctx context.Context) []Torrent {
	var all []Torrent
	for page := 1; page <= maxPersonalPages; page++ {
		batch, err := callgate.Call(ctx, e.gate, func(ctx context.Context) ([]Torrent, error) {
			return e.provider.ListTorrents(ctx, page, personalPageLimit)
		})
		if err != nil {
			log.Printf("[debrid] list torrents page %d: %v", page, err)
			break
		}
		all = append(all, batch...)
		if len(batch) < personalPageLimit {
			break
		}
	}
	return all
}

func (e *Engine) listAllDownloads(ctx context.Context) []Download {
	var all []Download
	for page := 1; page <= maxPersonalPages; page++ {
		batch, err := callgate.Call(ctx, e.gate, func(ctx context.Context) ([]Download, error) {
			return e.provider.ListDownloads(ctx, page, personalPageLimit)
		})
		if err != nil {
			log.Printf("[debrid] list downloads page %d: %v", page, err)
			break
		}
		all = append(all, batch...)
		if len(batch) < personalPageLimit {
			break
		}
	}
	return all
}

// matchesRelease decides whether a personal filename belongs to the
// requested release.
func (e *Engine) matchesRelease(req SearchRequest, filename string, target mediaresolve.EpisodeCode) bool {
	if strings.TrimSpace(filename) == "" {
		return false
	}
	if !similarity.Matches(title.StripTitle(filename), req.Title, titleMatchScore) {
		return false
	}
	if req.MediaType == models.MediaTypeSeries {
		return mediaresolve.MatchesEpisode(filename, target)
	}
	return true
}

// scrape fans out to all producers and joins their output. A producer error
// is that producer's empty result, never the search's.
func (e *Engine) scrape(ctx context.Context, req SearchRequest) []models.ExternalCandidate {
	if len(e.scrapers) == 0 {
		return nil
	}
	query := ScrapeQuery{
		MediaType: req.MediaType,
		ContentID: req.ContentID,
		Title:     req.Title,
		Year:      req.Year,
		Season:    req.Season,
		Episode:   req.Episode,
	}

	p := pool.NewWithResults[[]models.ExternalCandidate]().WithContext(ctx)
	for _, scraper := range e.scrapers {
		scraper := scraper
		p.Go(func(ctx context.Context) ([]models.ExternalCandidate, error) {
			found, err := scraper.Search(ctx, query)
			if err != nil {
				log.Printf("[debrid] scraper %s: %v", scraper.Name(), err)
				return nil, nil
			}
			return found, nil
		})
	}
	batches, _ := p.Wait()

	var all []models.ExternalCandidate
	for _, batch := range batches {
		all = append(all, batch...)
	}
	return all
}

// dedupeByHash keeps the first occurrence of every infohash.
func dedupeByHash(candidates []models.ExternalCandidate) []models.ExternalCandidate {
	seen := make(map[string]struct{}, len(candidates))
	out := candidates[:0]
	for _, c := range candidates {
		hash := strings.ToLower(strings.TrimSpace(c.InfoHash))
		if hash == "" {
			continue
		}
		if _, dup := seen[hash]; dup {
			continue
		}
		seen[hash] = struct{}{}
		c.InfoHash = hash
		out = append(out, c)
	}
	return out
}

func (e *Engine) dropPersonalHashes(candidates []models.ExternalCandidate, personal []models.StreamSource) []models.ExternalCandidate {
	owned := make(map[string]struct{}, len(personal))
	for _, p := range personal {
		if p.InfoHash != "" {
			owned[p.InfoHash] = struct{}{}
		}
	}
	if len(owned) == 0 {
		return candidates
	}
	out := candidates[:0]
	for _, c := range candidates {
		if _, dup := owned[c.InfoHash]; dup {
			continue
		}
		out = append(out, c)
	}
	return out
}

// filterCandidates applies content-type filters: series candidates must name
// the target episode or look like a season pack (routed to pack inspection);
// movie candidates must not carry episode markers and must pass a year
// sanity check.
func (e *Engine) filterCandidates(req SearchRequest, candidates []models.ExternalCandidate) (singles, packs []models.ExternalCandidate) {
	for _, cand := range candidates {
		if req.MediaType == models.MediaTypeSeries {
			if s, ep, ok := title.ParseEpisodeCode(cand.Title); ok {
				if s == req.Season && ep == req.Episode {
					singles = append(singles, cand)
				}
				continue
			}
			if title.IsSeasonPack(cand.Title) {
				packs = append(packs, cand)
			}
			continue
		}

		if title.HasEpisodeMarkers(cand.Title) || title.IsSeasonPack(cand.Title) {
			continue
		}
		if req.Year > 0 {
			if y := title.ParseYear(cand.Title); y > 0 && absInt(y-req.Year) > 1 {
				continue
			}
		}
		singles = append(singles, cand)
	}
	return singles, packs
}

func (e *Engine) knownHashes(ctx context.Context, candidates []models.ExternalCandidate) map[string]struct{} {
	if e.store == nil || len(candidates) == 0 {
		return nil
	}
	hashes := make([]string, 0, len(candidates))
	for _, c := range candidates {
		hashes = append(hashes, c.InfoHash)
	}
	return e.store.KnownHashes(ctx, e.provider.Name(), hashes)
}

func (e *Engine) releaseCounts(ctx context.Context, releaseKey string) quota.Counts {
	if e.store == nil {
		return quota.NewCounts()
	}
	return e.store.ReleaseCounts(ctx, e.provider.Name(), releaseKey)
}

// inspectPacks opens season packs up to the per-search cap, emitting one
// source per extracted episode file.
func (e *Engine) inspectPacks(ctx context.Context, req SearchRequest, releaseKey string, packs []models.ExternalCandidate, cleanup *CleanupSet, combined *quota.Counts) []models.StreamSource {
	inspector := NewPackInspector(e.provider, e.gate, cleanup, e.verification.MaxPackInspects)
	target := mediaresolve.EpisodeCode{Season: req.Season, Episode: req.Episode}

	// Better-seeded packs are likelier to be cached; spend the cap on them.
	sort.SliceStable(packs, func(i, j int) bool { return packs[i].Seeders > packs[j].Seeders })

	var sources []models.StreamSource
	for _, pack := range packs {
		if inspector.Exhausted() {
			break
		}
		cat, res := classifyTitle(pack.Title)
		if quota.Remaining(e.limits, *combined, cat, res) <= 0 {
			continue
		}
		hint, ok := inspector.Inspect(ctx, pack.InfoHash, target)
		if !ok {
			continue
		}
		// The pack torrent serves the stream; keep it on the account.
		cleanup.Forget(hint.TorrentID)
		combined.Add(cat, res)
		pc := models.PackCandidate{ExternalCandidate: pack, Hint: hint}
		sources = append(sources, models.StreamSource{
			Title:      pc.Hint.Path,
			InfoHash:   pc.InfoHash,
			Ref:        fmt.Sprintf("%s:%s:%d", e.provider.Name(), pc.Hint.TorrentID, pc.Hint.FileID),
			SizeBytes:  pc.Hint.Bytes,
			Seeders:    pc.Seeders,
			Tracker:    pc.Tracker,
			Category:   cat,
			Resolution: res,
			Cached:     true,
		})
		e.persistPackHit(pc, releaseKey, cat, res)
	}
	return sources
}

func (e *Engine) persistPackHit(pc models.PackCandidate, releaseKey string, cat models.Category, res models.Resolution) {
	if e.store == nil || !e.store.Enabled() || e.queue == nil {
		return
	}
	rec := cachestore.Record{
		Service:    e.provider.Name(),
		Hash:       pc.InfoHash,
		FileName:   pc.Hint.Path,
		SizeBytes:  pc.Hint.Bytes,
		ReleaseKey: releaseKey,
		Category:   cat,
		Resolution: res,
	}
	e.queue.Enqueue("persist-pack", func(ctx context.Context) error {
		if !e.store.UpsertOne(ctx, rec) {
			return fmt.Errorf("upsert %s/%s failed", rec.Service, rec.Hash)
		}
		return nil
	})
}

// liveCheck gives the best-seeded unresolved candidates a one-shot
// verification purely to decide inclusion; survivors are emitted as
// non-cached.
func (e *Engine) liveCheck(ctx context.Context, releaseKey string, unverified []models.ExternalCandidate, verifier *Verifier) []models.StreamSource {
	if len(unverified) == 0 {
		return nil
	}
	sort.SliceStable(unverified, func(i, j int) bool { return unverified[i].Seeders > unverified[j].Seeders })
	if len(unverified) > e.verification.LiveCheckCount {
		unverified = unverified[:e.verification.LiveCheckCount]
	}

	var sources []models.StreamSource
	for _, cand := range unverified {
		cat, res := classifyTitle(cand.Title)
		verdict := verifier.Verify(ctx, cand.InfoHash, RecordMeta{ReleaseKey: releaseKey, Category: cat, Resolution: res})
		if !verdict.Verdict.Usable() {
			continue
		}
		src := sourceFromExternal(cand, cat, res, false)
		if verdict.File != nil && verdict.File.Bytes > 0 {
			src.SizeBytes = verdict.File.Bytes
		}
		sources = append(sources, src)
	}
	return sources
}

func (e *Engine) scheduleCleanup(cleanup *CleanupSet) {
	if e.queue == nil {
		go cleanup.Run(context.Background(), e.provider, e.gate)
		return
	}
	e.queue.Enqueue("provider-cleanup", func(ctx context.Context) error {
		cleanup.Run(ctx, e.provider, e.gate)
		return nil
	})
}

func classifyTitle(name string) (models.Category, models.Resolution) {
	return title.DetectCategory(name), title.DetectResolution(name)
}

func sourceFromPersonal(pc models.PersonalCandidate, ref string, cat models.Category, res models.Resolution) models.StreamSource {
	return models.StreamSource{
		Title:      pc.Filename,
		InfoHash:   pc.Hash,
		Ref:        ref,
		SizeBytes:  pc.Bytes,
		Category:   cat,
		Resolution: res,
		Cached:     true,
		Personal:   true,
	}
}

func sourceFromExternal(cand models.ExternalCandidate, cat models.Category, res models.Resolution, cached bool) models.StreamSource {
	return models.StreamSource{
		Title:      cand.Title,
		InfoHash:   cand.InfoHash,
		Ref:        cand.Magnet,
		SizeBytes:  cand.SizeBytes,
		Seeders:    cand.Seeders,
		Tracker:    cand.Tracker,
		Category:   cat,
		Resolution: res,
		Cached:     cached,
	}
}

// sortSources orders by resolution rank, best first, ties broken by size.
func sortSources(sources []models.StreamSource) {
	sort.SliceStable(sources, func(i, j int) bool {
		ri := models.ResolutionRank[sources[i].Resolution]
		rj := models.ResolutionRank[sources[j].Resolution]
		if ri != rj {
			return ri > rj
		}
		return sources[i].SizeBytes > sources[j].SizeBytes
	})
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
