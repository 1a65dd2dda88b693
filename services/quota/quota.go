// Package quota decides how many results of each quality category and
// resolution a release still needs before external verification work can be
// skipped or capped. It is pure computation over counts; it performs no I/O.
package quota

import (
	"streamvault/config"
	"streamvault/models"
)

// Limits holds the per-category result ceilings.
type Limits map[models.Category]int

// DefaultLimits returns the built-in per-category ceilings.
func DefaultLimits() Limits {
	return Limits{
		models.CategoryRemux:  2,
		models.CategoryBluRay: 2,
		models.CategoryWeb:    2,
		models.CategoryRip:    1,
		models.CategoryAudio:  1,
		models.CategoryOther:  10,
	}
}

// LimitsFromSettings maps configured limits onto the model, falling back to
// defaults for unset values.
func LimitsFromSettings(s config.QuotaSettings) Limits {
	limits := DefaultLimits()
	set := func(cat models.Category, v int) {
		if v > 0 {
			limits[cat] = v
		}
	}
	set(models.CategoryRemux, s.Remux)
	set(models.CategoryBluRay, s.BluRay)
	set(models.CategoryWeb, s.Web)
	set(models.CategoryRip, s.Rip)
	set(models.CategoryAudio, s.Audio)
	set(models.CategoryOther, s.Other)
	return limits
}

// Counts aggregates results per category and per category×resolution.
// Derived fresh per search, never stored.
type Counts struct {
	ByCategory   map[models.Category]int
	ByResolution map[models.Category]map[models.Resolution]int
	Total        int
}

// NewCounts returns an empty aggregate.
func NewCounts() Counts {
	return Counts{
		ByCategory:   make(map[models.Category]int),
		ByResolution: make(map[models.Category]map[models.Resolution]int),
	}
}

// Add records one result.
func (c *Counts) Add(cat models.Category, res models.Resolution) {
	if c.ByCategory == nil {
		c.ByCategory = make(map[models.Category]int)
	}
	if c.ByResolution == nil {
		c.ByResolution = make(map[models.Category]map[models.Resolution]int)
	}
	c.ByCategory[cat]++
	if c.ByResolution[cat] == nil {
		c.ByResolution[cat] = make(map[models.Resolution]int)
	}
	c.ByResolution[cat][res]++
	c.Total++
}

// At returns the count for a category×resolution pair.
func (c Counts) At(cat models.Category, res models.Resolution) int {
	if c.ByResolution == nil {
		return 0
	}
	return c.ByResolution[cat][res]
}

// Merge returns the element-wise sum of two aggregates.
func Merge(a, b Counts) Counts {
	out := NewCounts()
	for _, src := range []Counts{a, b} {
		for cat, n := range src.ByCategory {
			out.ByCategory[cat] += n
		}
		for cat, byRes := range src.ByResolution {
			if out.ByResolution[cat] == nil {
				out.ByResolution[cat] = make(map[models.Resolution]int)
			}
			for res, n := range byRes {
				out.ByResolution[cat][res] += n
			}
		}
		out.Total += src.Total
	}
	return out
}

// IsHighResSatisfied reports whether every high-quality category meets its
// limit at each high-resolution tier individually. A category satisfied only
// at 1080p but short at 2160p does not satisfy the gate.
func IsHighResSatisfied(limits Limits, counts Counts) bool {
	for _, cat := range models.HighQualityCategories() {
		limit := limits[cat]
		if limit <= 0 {
			continue
		}
		for _, res := range models.HighResolutions() {
			if counts.At(cat, res) < limit {
				return false
			}
		}
	}
	return true
}

// Remaining returns how many more results a category×resolution pair may
// take: limit minus the combined count, never negative.
func Remaining(limits Limits, counts Counts, cat models.Category, res models.Resolution) int {
	limit := limits[cat]
	if limit <= 0 {
		return 0
	}
	left := limit - counts.At(cat, res)
	if left < 0 {
		return 0
	}
	return left
}
