// Package mediaresolve matches individual files inside multi-episode
// torrents against a target season and episode.
package mediaresolve

import (
	"path"
	"regexp"
	"strconv"
	"strings"
)

var (
	episodeCodePattern   = regexp.MustCompile(`(?i)s(\d{1,2})\s*e(\d{1,3})`)
	episodeAltPattern    = regexp.MustCompile(`(?i)ep(?:isode)?\.?\s*(\d{1,3})`) // "Ep. 01", "Episode 01", "Ep01"
	episodeNumberPattern = regexp.MustCompile(`(?i)[-_\s](\d{1,3})[-_\s\[\.]`)   // " - 01 - ", "_01_", "_01["
	crossSeasonPattern   = regexp.MustCompile(`(?i)(\d{1,2})x(\d{1,3})`)         // "1x02"
)

// EpisodeCode captures a parsed season/episode pair.
type EpisodeCode struct {
	Season  int
	Episode int
}

// ParseEpisode extracts a season/episode code from a file path. The "1x02"
// cross notation is accepted alongside SxxEyy.
func ParseEpisode(filePath string) (EpisodeCode, bool) {
	base := path.Base(strings.ReplaceAll(filePath, "\\", "/"))
	if strings.TrimSpace(base) == "" {
		return EpisodeCode{}, false
	}

	if matches := episodeCodePattern.FindStringSubmatch(base); len(matches) == 3 {
		season, err1 := strconv.Atoi(matches[1])
		episode, err2 := strconv.Atoi(matches[2])
		if err1 == nil && err2 == nil {
			return EpisodeCode{Season: season, Episode: episode}, true
		}
	}

	if matches := crossSeasonPattern.FindStringSubmatch(base); len(matches) == 3 {
		season, err1 := strconv.Atoi(matches[1])
		episode, err2 := strconv.Atoi(matches[2])
		if err1 == nil && err2 == nil && season > 0 {
			return EpisodeCode{Season: season, Episode: episode}, true
		}
	}

	return EpisodeCode{}, false
}

// MatchesEpisode reports whether a pack file belongs to the target episode.
//
// When the file carries no explicit season, a bare episode number ("Ep. 05",
// " - 05 - ") is accepted for season 1 only: in a multi-season pack a bare
// "05" is ambiguous, so higher seasons require the explicit code.
func MatchesEpisode(filePath string, target EpisodeCode) bool {
	if code, ok := ParseEpisode(filePath); ok {
		return code.Season == target.Season && code.Episode == target.Episode
	}

	if target.Season == 1 {
		if episode, ok := parseBareEpisodeNumber(filePath); ok {
			return episode == target.Episode
		}
	}

	return false
}

func parseBareEpisodeNumber(filePath string) (int, bool) {
	base := path.Base(strings.ReplaceAll(filePath, "\\", "/"))
	if strings.TrimSpace(base) == "" {
		return 0, false
	}

	if matches := episodeAltPattern.FindStringSubmatch(base); len(matches) == 2 {
		if episode, err := strconv.Atoi(matches[1]); err == nil && episode > 0 {
			return episode, true
		}
	}

	if matches := episodeNumberPattern.FindStringSubmatch(base); len(matches) == 2 {
		if episode, err := strconv.Atoi(matches[1]); err == nil && episode > 0 {
			return episode, true
		}
	}

	return 0, false
}
