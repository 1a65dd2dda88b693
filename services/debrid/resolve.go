package debrid

import (
	"context"
	"log"
	"strconv"
	"strings"
	"time"

	"streamvault/services/callgate"
)

// linkRetryDelay is how long to wait before the single re-read of a torrent
// whose links have not been populated yet.
var linkRetryDelay = 2 * time.Second

// Resolve turns an abstract stream reference into a playable URL. Accepted
// forms: a magnet URI, an internal "<provider>:<torrentId>:<fileId>" token,
// or a raw provider host URL. An empty return means the stream is currently
// unavailable; resolution never raises for collaborator failures.
func (e *Engine) Resolve(ctx context.Context, ref string) string {
	ref = strings.TrimSpace(ref)
	switch {
	case ref == "":
		return ""
	case strings.HasPrefix(strings.ToLower(ref), "magnet:"):
		return e.resolveMagnet(ctx, ref, true)
	case strings.HasPrefix(ref, e.provider.Name()+":"):
		return e.resolveToken(ctx, ref)
	case e.provider.HostsLink(ref):
		return e.unrestrict(ctx, ref)
	default:
		log.Printf("[debrid] resolve: unrecognized reference %q", ref)
		return ""
	}
}

// resolveMagnet adds the magnet (or reuses an existing terminal torrent for
// the same hash), picks the playable file, and unrestricts its link.
// allowRecurse permits one pass through an alternative magnet indirection.
func (e *Engine) resolveMagnet(ctx context.Context, magnetURI string, allowRecurse bool) string {
	hash := ExtractInfoHash(magnetURI)
	if hash == "" {
		log.Printf("[debrid] resolve: magnet has no infohash")
		return ""
	}

	torrentID := e.findExistingTorrent(ctx, hash)
	if torrentID == "" {
		added, err := callgate.Call(ctx, e.gate, func(ctx context.Context) (*AddMagnetResult, error) {
			return e.provider.AddMagnet(ctx, magnetURI)
		})
		if err != nil || added == nil || added.ID == "" {
			log.Printf("[debrid] resolve %s: add magnet failed: %v", hash, err)
			return ""
		}
		torrentID = added.ID
	}

	err := e.gate.Schedule(ctx, func(ctx context.Context) error {
		return e.provider.SelectFiles(ctx, torrentID, "all")
	})
	if err != nil {
		log.Printf("[debrid] resolve %s: select files failed: %v", hash, err)
		return ""
	}

	info := e.torrentInfoWithLinks(ctx, torrentID)
	if info == nil {
		return ""
	}

	file := FirstPlausibleVideo(info.Files, int64(e.verification.MinVideoSizeMiB))
	if file == nil {
		file = LargestFile(info.Files)
	}
	if file == nil {
		log.Printf("[debrid] resolve %s: empty file listing", hash)
		return ""
	}

	link := linkForFile(info, file)
	if link == "" {
		log.Printf("[debrid] resolve %s: no link for file %d", hash, file.ID)
		return ""
	}
	if strings.HasPrefix(strings.ToLower(link), "magnet:") {
		if !allowRecurse {
			log.Printf("[debrid] resolve %s: nested magnet indirection", hash)
			return ""
		}
		return e.resolveMagnet(ctx, link, false)
	}
	return e.unrestrict(ctx, link)
}

// findExistingTorrent scans the caller's torrents for a terminal entry with
// the wanted hash so resolution can reuse it instead of re-adding.
func (e *Engine) findExistingTorrent(ctx context.Context, hash string) string {
	for _, t := range e.listAllTorrents(ctx) {
		if strings.EqualFold(t.Hash, hash) && isTerminalStatus(t.Status) {
			return t.ID
		}
	}
	return ""
}

// torrentInfoWithLinks reads the torrent status, retrying once after a short
// delay when the link listing has not caught up with file selection.
func (e *Engine) torrentInfoWithLinks(ctx context.Context, torrentID string) *TorrentInfo {
	for attempt := 0; attempt < 2; attempt++ {
		info, err := callgate.Call(ctx, e.gate, func(ctx context.Context) (*TorrentInfo, error) {
			return e.provider.GetTorrentInfo(ctx, torrentID)
		})
		if err != nil || info == nil {
			log.Printf("[debrid] resolve: torrent info %s failed: %v", torrentID, err)
			return nil
		}
		if len(info.Links) > 0 || attempt > 0 {
			return info
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(linkRetryDelay):
		}
	}
	return nil
}

func (e *Engine) resolveToken(ctx context.Context, ref string) string {
	parts := strings.SplitN(ref, ":", 3)
	if len(parts) != 3 {
		log.Printf("[debrid] resolve: malformed token %q", ref)
		return ""
	}
	torrentID := parts[1]
	fileID, err := strconv.Atoi(parts[2])
	if err != nil {
		log.Printf("[debrid] resolve: malformed file id in token %q", ref)
		return ""
	}

	info := e.torrentInfoWithLinks(ctx, torrentID)
	if info == nil {
		return ""
	}

	var file *File
	for i := range info.Files {
		if info.Files[i].ID == fileID {
			file = &info.Files[i]
			break
		}
	}
	if file == nil {
		// File id 0 stands for "whichever file serves this torrent".
		if fileID == 0 {
			if file = FirstPlausibleVideo(info.Files, int64(e.verification.MinVideoSizeMiB)); file == nil {
				file = LargestFile(info.Files)
			}
		}
		if file == nil {
			log.Printf("[debrid] resolve: file %d not in torrent %s", fileID, torrentID)
			return ""
		}
	}

	link := linkForFile(info, file)
	if link == "" {
		log.Printf("[debrid] resolve: no link for file %d in torrent %s", fileID, torrentID)
		return ""
	}
	return e.unrestrict(ctx, link)
}

func (e *Engine) unrestrict(ctx context.Context, link string) string {
	result, err := callgate.Call(ctx, e.gate, func(ctx context.Context) (*UnrestrictResult, error) {
		return e.provider.UnrestrictLink(ctx, link)
	})
	if err != nil || result == nil || result.DownloadURL == "" {
		log.Printf("[debrid] resolve: unrestrict failed: %v", err)
		return ""
	}
	return result.DownloadURL
}

// linkForFile maps a file to its download link. Links run parallel to the
// selected subset of files; when every file is listed they align 1:1.
func linkForFile(info *TorrentInfo, file *File) string {
	if len(info.Links) == 0 {
		return ""
	}
	if len(info.Links) == len(info.Files) {
		for i := range info.Files {
			if info.Files[i].ID == file.ID {
				return info.Links[i]
			}
		}
		return ""
	}
	idx := 0
	for i := range info.Files {
		if info.Files[i].Selected != 1 {
			continue
		}
		if info.Files[i].ID == file.ID {
			if idx < len(info.Links) {
				return info.Links[idx]
			}
			return ""
		}
		idx++
	}
	return ""
}
