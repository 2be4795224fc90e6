// Package asil maps hazard ratings to ASIL levels and reconciles a reference
// rating against a candidate rating.
package asil

import (
	"log/slog"

	"github.com/suduli/AI-ASIL-Analyser/pkg/schema"
)

const (
	qm = schema.ASILQM
	a  = schema.ASILA
	b  = schema.ASILB
	c  = schema.ASILC
	d  = schema.ASILD
)

// base holds the C1..C3 columns for S1..S3 and E1..E4, indexed
// [severity-1][exposure-1][controllability-1]. S2 and S3 share a row set.
var base = [3][4][3]schema.ASIL{
	// S1
	{
		{qm, qm, qm}, // E1
		{qm, qm, qm}, // E2
		{qm, qm, a},  // E3
		{qm, a, b},   // E4
	},
	// S2
	{
		{qm, qm, a},
		{qm, a, b},
		{a, b, c},
		{b, c, d},
	},
	// S3
	{
		{qm, qm, a},
		{qm, a, b},
		{a, b, c},
		{b, c, d},
	},
}

// table is the complete (S,E,C) lookup. S0 and E0 rows stay QM; C0 sits
// one level below C1 with a QM floor.
var table = buildTable()

func buildTable() [schema.SeverityMax + 1][schema.ExposureMax + 1][schema.ControllabilityMax + 1]schema.ASIL {
	var t [schema.SeverityMax + 1][schema.ExposureMax + 1][schema.ControllabilityMax + 1]schema.ASIL
	for s := range t {
		for e := range t[s] {
			for ctl := range t[s][e] {
				t[s][e][ctl] = qm
			}
		}
	}
	for s := 1; s <= schema.SeverityMax; s++ {
		for e := 1; e <= schema.ExposureMax; e++ {
			row := base[s-1][e-1]
			copy(t[s][e][1:], row[:])
			t[s][e][0] = stepDown(row[0])
		}
	}
	return t
}

func stepDown(level schema.ASIL) schema.ASIL {
	levels := schema.ASILs()
	if r := level.Rank(); r > 0 {
		return levels[r-1]
	}
	return qm
}

// Of returns the ASIL of a validated rating.
func Of(r schema.Rating) schema.ASIL {
	return Lookup(int(r.Severity), int(r.Exposure), int(r.Controllability))
}

// Lookup returns the ASIL for raw levels. Cells outside the table resolve to
// QM and are logged at debug level; Lookup never fails.
func Lookup(s, e, ctl int) schema.ASIL {
	if s < 0 || s > schema.SeverityMax || e < 0 || e > schema.ExposureMax || ctl < 0 || ctl > schema.ControllabilityMax {
		slog.Debug("ambiguous lookup cell resolved to QM",
			"severity", s,
			"exposure", e,
			"controllability", ctl,
		)
		return qm
	}
	return table[s][e][ctl]
}

// Cell is one entry of the rating matrix.
type Cell struct {
	Severity        schema.Severity        `json:"severity"`
	Exposure        schema.Exposure        `json:"exposure"`
	Controllability schema.Controllability `json:"controllability"`
	ASIL            schema.ASIL            `json:"asil"`
}

// Cells enumerates the whole matrix in severity, exposure, controllability order.
func Cells() []Cell {
	cells := make([]Cell, 0, (schema.SeverityMax+1)*(schema.ExposureMax+1)*(schema.ControllabilityMax+1))
	for s := range table {
		for e := range table[s] {
			for ctl, level := range table[s][e] {
				cells = append(cells, Cell{
					Severity:        schema.Severity(s),
					Exposure:        schema.Exposure(e),
					Controllability: schema.Controllability(ctl),
					ASIL:            level,
				})
			}
		}
	}
	return cells
}
