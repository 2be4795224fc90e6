package catalog

import (
	"github.com/suduli/AI-ASIL-Analyser/internal/asil"
	"github.com/suduli/AI-ASIL-Analyser/pkg/schema"
)

// RiskSummary names one component and its computed level.
type RiskSummary struct {
	ID     string        `json:"id"`
	Name   string        `json:"name"`
	Rating schema.Rating `json:"rating"`
	ASIL   schema.ASIL   `json:"asil"`
}

// Stats summarises the catalog.
type Stats struct {
	Total           int                 `json:"total"`
	ByASIL          map[schema.ASIL]int `json:"by_asil"`
	BySeverity      map[string]int      `json:"by_severity"`
	ByCategory      map[string]int      `json:"by_category"`
	LabelMismatches int                 `json:"label_mismatches"`
	HighestRisk     *RiskSummary        `json:"highest_risk,omitempty"`
	LowestRisk      *RiskSummary        `json:"lowest_risk,omitempty"`
}

// Stats computes distribution counts and the highest and lowest risk
// components. Ties are broken by total rating, then by id.
func (c *Catalog) Stats() Stats {
	st := Stats{
		ByASIL:     make(map[schema.ASIL]int),
		BySeverity: make(map[string]int),
		ByCategory: make(map[string]int),
	}
	for _, level := range schema.ASILs() {
		st.ByASIL[level] = 0
	}

	for _, rec := range c.Snapshot() {
		level := asil.Of(rec.Rating)
		st.Total++
		st.ByASIL[level]++
		st.BySeverity[rec.Rating.Severity.String()]++
		st.ByCategory[rec.Category]++
		if rec.RecordedASIL != "" && rec.RecordedASIL != level {
			st.LabelMismatches++
		}

		sum := RiskSummary{ID: rec.ID, Name: rec.Name, Rating: rec.Rating, ASIL: level}
		if st.HighestRisk == nil || riskLess(*st.HighestRisk, sum) {
			st.HighestRisk = &sum
		}
		if st.LowestRisk == nil || riskLess(sum, *st.LowestRisk) {
			low := sum
			st.LowestRisk = &low
		}
	}
	return st
}

func riskLess(a, b RiskSummary) bool {
	if a.ASIL != b.ASIL {
		return a.ASIL.Rank() < b.ASIL.Rank()
	}
	if ta, tb := ratingTotal(a.Rating), ratingTotal(b.Rating); ta != tb {
		return ta < tb
	}
	return a.ID > b.ID
}

func ratingTotal(r schema.Rating) int {
	return int(r.Severity) + int(r.Exposure) + int(r.Controllability)
}
