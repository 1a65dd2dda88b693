// Package title parses resolution, quality category, episode markers, and
// release years out of torrent release names.
package title

import (
	"regexp"
	"strconv"
	"strings"

	"streamvault/models"
)

var (
	episodeCodePattern = regexp.MustCompile(`(?i)s(\d{1,2})\s*e(\d{1,3})`)
	seasonOnlyPattern  = regexp.MustCompile(`(?i)(?:^|[\s\.\-_\[])s(?:eason[\s\.]?)?(\d{1,2})(?:$|[\s\.\-_\]])`)
	yearPattern        = regexp.MustCompile(`(?:^|[\s\.\-_\(\[])((?:19|20)\d{2})(?:$|[\s\.\-_\)\]])`)
	multiSeasonPattern = regexp.MustCompile(`(?i)s(?:eason)?\s*\d{1,2}\s*[-~]\s*s?(?:eason)?\s*\d{1,2}`)
	bareWebPattern     = regexp.MustCompile(`(?i)(^|[\s\.\-_])web([\s\.\-_]|$)`)
)

// audioMarkers flag releases built around their audio track rather than the
// video encode.
var audioMarkers = []string{"atmos", "truehd", "dts-hd", "dtshd", "dts-x", "dtsx", "7.1", "flac"}

// DetectResolution normalizes 2160p/4k, 1080p, 720p, 480p markers.
func DetectResolution(name string) models.Resolution {
	release := strings.ToLower(name)
	switch {
	case strings.Contains(release, "2160p") || strings.Contains(release, "4k") || strings.Contains(release, "uhd"):
		return models.Resolution2160p
	case strings.Contains(release, "1080p"):
		return models.Resolution1080p
	case strings.Contains(release, "720p"):
		return models.Resolution720p
	case strings.Contains(release, "480p"):
		return models.Resolution480p
	default:
		return models.ResolutionUnknown
	}
}

// DetectCategory maps a release name onto the fixed quality buckets.
// Order matters: remux beats bluray beats web, rips are checked before their
// full-quality counterparts would swallow them.
func DetectCategory(name string) models.Category {
	release := strings.ToLower(name)

	if strings.Contains(release, "remux") {
		return models.CategoryRemux
	}
	if strings.Contains(release, "brrip") || strings.Contains(release, "bdrip") ||
		strings.Contains(release, "webrip") || strings.Contains(release, "web-rip") {
		return models.CategoryRip
	}
	if strings.Contains(release, "bluray") || strings.Contains(release, "blu-ray") ||
		strings.Contains(release, "bdmv") {
		return models.CategoryBluRay
	}
	if strings.Contains(release, "web-dl") || strings.Contains(release, "webdl") ||
		strings.Contains(release, "web dl") || bareWebPattern.MatchString(release) {
		return models.CategoryWeb
	}
	for _, marker := range audioMarkers {
		if strings.Contains(release, marker) {
			return models.CategoryAudio
		}
	}
	return models.CategoryOther
}

// ParseEpisodeCode extracts the first SxxEyy marker.
func ParseEpisodeCode(name string) (season, episode int, ok bool) {
	matches := episodeCodePattern.FindStringSubmatch(name)
	if len(matches) != 3 {
		return 0, 0, false
	}
	season, err := strconv.Atoi(matches[1])
	if err != nil {
		return 0, 0, false
	}
	episode, err = strconv.Atoi(matches[2])
	if err != nil {
		return 0, 0, false
	}
	return season, episode, true
}

// IsSeasonPack reports whether a release name looks like a whole-season or
// multi-season archive rather than a single episode.
func IsSeasonPack(name string) bool {
	if _, _, ok := ParseEpisodeCode(name); ok {
		return false
	}
	lower := strings.ToLower(name)
	if multiSeasonPattern.MatchString(lower) {
		return true
	}
	if strings.Contains(lower, "complete") || strings.Contains(lower, "collection") {
		return true
	}
	return seasonOnlyPattern.MatchString(lower)
}

// HasEpisodeMarkers reports whether a release name carries any season or
// episode signal at all. Movie searches use it to reject series releases.
func HasEpisodeMarkers(name string) bool {
	if _, _, ok := ParseEpisodeCode(name); ok {
		return true
	}
	return seasonOnlyPattern.MatchString(strings.ToLower(name))
}

// ParseYear extracts the first plausible release year (1900-2099).
func ParseYear(name string) int {
	matches := yearPattern.FindStringSubmatch(name)
	if len(matches) != 2 {
		return 0
	}
	year, err := strconv.Atoi(matches[1])
	if err != nil {
		return 0
	}
	return year
}

// StripTitle returns the portion of a release name before the first
// year/episode/resolution marker, with separators normalized to spaces.
// Used to compare release names against expected content titles.
func StripTitle(name string) string {
	cut := len(name)
	if loc := episodeCodePattern.FindStringIndex(name); loc != nil && loc[0] < cut {
		cut = loc[0]
	}
	if loc := yearPattern.FindStringIndex(name); loc != nil && loc[0] < cut {
		cut = loc[0]
	}
	lower := strings.ToLower(name)
	for _, marker := range []string{"2160p", "1080p", "720p", "480p"} {
		if idx := strings.Index(lower, marker); idx >= 0 && idx < cut {
			cut = idx
		}
	}

	head := name[:cut]
	head = strings.NewReplacer(".", " ", "_", " ", "-", " ").Replace(head)
	return strings.Join(strings.Fields(head), " ")
}
