package debrid

import (
	"context"
	"fmt"
	"log"

	"streamvault/internal/background"
	"streamvault/models"
	"streamvault/services/cachestore"
	"streamvault/services/callgate"
)

// Verdict is the terminal classification of one candidate verification.
type Verdict int

const (
	// VerdictFailed means a provider call errored before classification.
	VerdictFailed Verdict = iota
	// VerdictNotCached means the provider does not have the content ready.
	VerdictNotCached
	// VerdictJunk means the torrent is cached but contains a disallowed
	// file type and is rejected outright.
	VerdictJunk
	// VerdictCached means the torrent is ready and holds a playable video.
	VerdictCached
)

func (v Verdict) String() string {
	switch v {
	case VerdictCached:
		return "cached"
	case VerdictJunk:
		return "junk"
	case VerdictNotCached:
		return "not_cached"
	default:
		return "failed"
	}
}

// Usable reports whether the verdict admits the candidate into results.
func (v Verdict) Usable() bool {
	return v == VerdictCached
}

// RecordMeta carries the release-level metadata attached to persisted
// verification outcomes.
type RecordMeta struct {
	ReleaseKey string
	Category   models.Category
	Resolution models.Resolution
}

// VerifyResult is the outcome of driving one candidate through the provider.
type VerifyResult struct {
	Verdict   Verdict
	TorrentID string
	File      *File
	FileCount int
}

// Verifier drives one candidate hash through add, select, poll, and classify
// against the provider. It is a sequential pipeline per candidate: any error
// at any step downgrades the result, never propagates.
type Verifier struct {
	provider Provider
	gate     *callgate.Gate
	store    *cachestore.Store
	queue    *background.Queue
	cleanup  *CleanupSet

	minVideoSizeMiB int64
}

func NewVerifier(provider Provider, gate *callgate.Gate, store *cachestore.Store, queue *background.Queue, cleanup *CleanupSet, minVideoSizeMiB int64) *Verifier {
	if minVideoSizeMiB <= 0 {
		minVideoSizeMiB = 50
	}
	return &Verifier{
		provider:        provider,
		gate:            gate,
		store:           store,
		queue:           queue,
		cleanup:         cleanup,
		minVideoSizeMiB: minVideoSizeMiB,
	}
}

// Verify classifies one infohash. Confirmed-cached results are persisted
// asynchronously; the write never blocks or fails the verification.
func (v *Verifier) Verify(ctx context.Context, infoHash string, meta RecordMeta) VerifyResult {
	added, err := callgate.Call(ctx, v.gate, func(ctx context.Context) (*AddMagnetResult, error) {
		return v.provider.AddMagnet(ctx, BuildMagnet(infoHash))
	})
	if err != nil || added == nil || added.ID == "" {
		log.Printf("[debrid] verify %s: add magnet failed: %v", infoHash, err)
		return VerifyResult{Verdict: VerdictFailed}
	}
	if v.cleanup != nil {
		v.cleanup.Register(added.ID)
	}

	err = v.gate.Schedule(ctx, func(ctx context.Context) error {
		return v.provider.SelectFiles(ctx, added.ID, "all")
	})
	if err != nil {
		log.Printf("[debrid] verify %s: select files failed: %v", infoHash, err)
		return VerifyResult{Verdict: VerdictFailed, TorrentID: added.ID}
	}

	// A single status read. Non-terminal means not cached; waiting for the
	// provider to download is exactly what this engine avoids.
	info, err := callgate.Call(ctx, v.gate, func(ctx context.Context) (*TorrentInfo, error) {
		return v.provider.GetTorrentInfo(ctx, added.ID)
	})
	if err != nil || info == nil {
		log.Printf("[debrid] verify %s: torrent info failed: %v", infoHash, err)
		return VerifyResult{Verdict: VerdictFailed, TorrentID: added.ID}
	}

	result := v.classify(info)
	result.TorrentID = added.ID

	if result.Verdict == VerdictCached {
		v.persistResult(infoHash, info, result.File, meta)
	}
	return result
}

// classify inspects a terminal torrent's file listing. Junk extensions
// disqualify the whole torrent even when a valid video is present.
func (v *Verifier) classify(info *TorrentInfo) VerifyResult {
	if !isTerminalStatus(info.Status) {
		return VerifyResult{Verdict: VerdictNotCached, FileCount: len(info.Files)}
	}
	if ContainsJunk(info.Files) {
		return VerifyResult{Verdict: VerdictJunk, FileCount: len(info.Files)}
	}
	best := LargestPlausibleVideo(info.Files, v.minVideoSizeMiB)
	if best == nil {
		return VerifyResult{Verdict: VerdictNotCached, FileCount: len(info.Files)}
	}
	return VerifyResult{Verdict: VerdictCached, File: best, FileCount: len(info.Files)}
}

// persistResult queues a fire-and-forget cache record write.
func (v *Verifier) persistResult(infoHash string, info *TorrentInfo, file *File, meta RecordMeta) {
	if v.store == nil || !v.store.Enabled() {
		return
	}
	rec := cachestore.Record{
		Service:    v.provider.Name(),
		Hash:       infoHash,
		FileName:   info.Filename,
		SizeBytes:  info.Bytes,
		ReleaseKey: meta.ReleaseKey,
		Category:   meta.Category,
		Resolution: meta.Resolution,
	}
	if file != nil {
		rec.FileName = file.Path
		rec.SizeBytes = file.Bytes
	}

	write := func(ctx context.Context) error {
		if !v.store.UpsertOne(ctx, rec) {
			return fmt.Errorf("upsert %s/%s failed", rec.Service, rec.Hash)
		}
		return nil
	}
	if v.queue != nil {
		v.queue.Enqueue("persist-verify", write)
		return
	}
	go func() {
		if err := write(context.Background()); err != nil {
			log.Printf("[debrid] %v", err)
		}
	}()
}
