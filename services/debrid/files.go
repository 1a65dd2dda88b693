package debrid

import (
	"path/filepath"
	"strings"
)

// Extensions that disqualify a torrent outright, regardless of whatever else
// it contains.
var junkExtensions = map[string]bool{
	".iso": true,
	".exe": true,
	".zip": true,
	".rar": true,
	".7z":  true,
	".scr": true,
}

var videoExtensions = map[string]bool{
	".mkv":  true,
	".mp4":  true,
	".avi":  true,
	".m4v":  true,
	".mov":  true,
	".wmv":  true,
	".ts":   true,
	".m2ts": true,
	".webm": true,
	".mpg":  true,
	".mpeg": true,
	".flv":  true,
}

const mib = int64(1024 * 1024)

func fileExt(path string) string {
	return strings.ToLower(filepath.Ext(path))
}

// IsJunkFile reports whether a file marks the whole torrent as junk.
func IsJunkFile(path string) bool {
	return junkExtensions[fileExt(path)]
}

// IsVideoFile reports whether the path carries a known video extension.
func IsVideoFile(path string) bool {
	return videoExtensions[fileExt(path)]
}

// IsPlausibleVideo requires a video extension and a minimum size, filtering
// out samples and junk clips bundled alongside the real content.
func IsPlausibleVideo(f File, minSizeMiB int64) bool {
	if !IsVideoFile(f.Path) {
		return false
	}
	return f.Bytes >= minSizeMiB*mib
}

// ContainsJunk scans a file listing for disqualifying entries.
func ContainsJunk(files []File) bool {
	for _, f := range files {
		if IsJunkFile(f.Path) {
			return true
		}
	}
	return false
}

// FirstPlausibleVideo returns the first file in listing order passing the
// video predicate, or nil when none qualifies. Stream resolution picks files
// this way; verification wants the largest instead.
func FirstPlausibleVideo(files []File, minSizeMiB int64) *File {
	for i := range files {
		if IsPlausibleVideo(files[i], minSizeMiB) {
			return &files[i]
		}
	}
	return nil
}

// LargestPlausibleVideo returns the biggest file passing the video predicate,
// or nil when none qualifies.
func LargestPlausibleVideo(files []File, minSizeMiB int64) *File {
	var best *File
	for i := range files {
		if !IsPlausibleVideo(files[i], minSizeMiB) {
			continue
		}
		if best == nil || files[i].Bytes > best.Bytes {
			best = &files[i]
		}
	}
	return best
}

// LargestFile returns the biggest file in the listing regardless of type.
func LargestFile(files []File) *File {
	var best *File
	for i := range files {
		if best == nil || files[i].Bytes > best.Bytes {
			best = &files[i]
		}
	}
	return best
}
