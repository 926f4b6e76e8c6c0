package retrieval

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/giygas/leaflet-api/entities"
	"github.com/giygas/leaflet-api/similarity"
)

// HeuristicColumn selects a column with the qualifying-cell heuristic
const HeuristicColumn = -1

// minCellRunes is the shortest cell that can hold a name or a substance
const minCellRunes = 3

// ColumnConfig says which result-table columns hold the medicine name and the active substance.
// HeuristicColumn (the zero config is not heuristic, use DefaultColumns) picks the first and
// second qualifying cells: not purely numeric and at least three characters long.
type ColumnConfig struct {
	NameColumn      int
	SubstanceColumn int
}

// DefaultColumns uses the heuristic for both columns
func DefaultColumns() ColumnConfig {
	return ColumnConfig{NameColumn: HeuristicColumn, SubstanceColumn: HeuristicColumn}
}

// RowToCandidate turns the cells of one result row into a scored candidate.
// It returns false when no name can be found in the row.
func RowToCandidate(cells []string, rowIndex int, expected entities.MedicineIdentity, cols ColumnConfig) (entities.SearchResultCandidate, bool) {
	name, substance := pickColumns(cells, cols)
	if name == "" {
		return entities.SearchResultCandidate{}, false
	}

	c := entities.SearchResultCandidate{
		DisplayName:         name,
		ActiveSubstanceText: substance,
		RowIndex:            rowIndex,
		NameSimilarity:      fieldScore(name, expected.Name),
		SubstanceSimilarity: fieldScore(substance, expected.ActiveSubstance),
	}
	c.Combine()
	return c, true
}

// fieldScore is 0 when either side is missing so an absent field never earns the contains bonus
func fieldScore(got, want string) float64 {
	if strings.TrimSpace(got) == "" || strings.TrimSpace(want) == "" {
		return 0
	}
	return similarity.Score(got, want)
}

func pickColumns(cells []string, cols ColumnConfig) (name, substance string) {
	var qualifying []string
	if cols.NameColumn == HeuristicColumn || cols.SubstanceColumn == HeuristicColumn {
		for _, cell := range cells {
			if qualifies(cell) {
				qualifying = append(qualifying, strings.TrimSpace(cell))
			}
		}
	}

	if cols.NameColumn == HeuristicColumn {
		if len(qualifying) > 0 {
			name = qualifying[0]
		}
	} else {
		name = cellAt(cells, cols.NameColumn)
	}

	if cols.SubstanceColumn == HeuristicColumn {
		// the second qualifying cell, skipping the one used as name
		for _, cell := range qualifying {
			if cell != name {
				substance = cell
				break
			}
		}
	} else {
		substance = cellAt(cells, cols.SubstanceColumn)
	}

	return name, substance
}

func cellAt(cells []string, i int) string {
	if i < 0 || i >= len(cells) {
		return ""
	}
	return strings.TrimSpace(cells[i])
}

func qualifies(cell string) bool {
	cell = strings.TrimSpace(cell)
	if utf8.RuneCountInString(cell) < minCellRunes {
		return false
	}
	return !isNumeric(cell)
}

// isNumeric treats digits with separators ("500", "1.000", "12 345") as numeric
func isNumeric(s string) bool {
	hasDigit := false
	for _, r := range s {
		switch {
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsSpace(r), r == '.', r == ',', r == '/', r == '-':
		default:
			return false
		}
	}
	return hasDigit
}

// SelectBest returns the candidate with the highest combined similarity.
// Ties go to the row that appears first in the table.
func SelectBest(candidates []entities.SearchResultCandidate) (entities.SearchResultCandidate, bool) {
	if len(candidates) == 0 {
		return entities.SearchResultCandidate{}, false
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.CombinedSimilarity > best.CombinedSimilarity ||
			(c.CombinedSimilarity == best.CombinedSimilarity && c.RowIndex < best.RowIndex) {
			best = c
		}
	}
	return best, true
}
