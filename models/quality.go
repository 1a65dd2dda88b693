package models

import "strings"

// Category is the quality classification bucket derived from a release title.
type Category string

const (
	CategoryRemux  Category = "remux"
	CategoryBluRay Category = "bluray"
	CategoryWeb    Category = "web"
	CategoryRip    Category = "rip"
	CategoryAudio  Category = "audio"
	CategoryOther  Category = "other"
)

// Resolution is the video resolution tier. Empty means unknown.
type Resolution string

const (
	Resolution2160p   Resolution = "2160p"
	Resolution1080p   Resolution = "1080p"
	Resolution720p    Resolution = "720p"
	Resolution480p    Resolution = "480p"
	ResolutionUnknown Resolution = ""
)

// Categories lists every quality bucket.
func Categories() []Category {
	return []Category{CategoryRemux, CategoryBluRay, CategoryWeb, CategoryRip, CategoryAudio, CategoryOther}
}

// HighQualityCategories is the set gating the high-resolution early exit.
func HighQualityCategories() []Category {
	return []Category{CategoryRemux, CategoryBluRay, CategoryWeb}
}

// HighResolutions lists the tiers the high-resolution gate checks.
func HighResolutions() []Resolution {
	return []Resolution{Resolution2160p, Resolution1080p}
}

// ResolutionRank orders resolutions for sorting; higher is better, unknown
// ranks lowest.
var ResolutionRank = map[Resolution]int{
	Resolution2160p: 4,
	Resolution1080p: 3,
	Resolution720p:  2,
	Resolution480p:  1,
}

// ParseCategory normalizes a stored category string.
func ParseCategory(s string) Category {
	switch Category(strings.ToLower(strings.TrimSpace(s))) {
	case CategoryRemux:
		return CategoryRemux
	case CategoryBluRay:
		return CategoryBluRay
	case CategoryWeb:
		return CategoryWeb
	case CategoryRip:
		return CategoryRip
	case CategoryAudio:
		return CategoryAudio
	default:
		return CategoryOther
	}
}

// ParseResolution normalizes a stored resolution string.
func ParseResolution(s string) Resolution {
	switch Resolution(strings.ToLower(strings.TrimSpace(s))) {
	case Resolution2160p:
		return Resolution2160p
	case Resolution1080p:
		return Resolution1080p
	case Resolution720p:
		return Resolution720p
	case Resolution480p:
		return Resolution480p
	default:
		return ResolutionUnknown
	}
}
