// Package entities holds the data model shared by the leaflet pipelines.
package entities

import "strings"

// MedicineIdentity is the search key produced by identification or by a manual form.
type MedicineIdentity struct {
	Name            string `json:"name"`
	Brand           string `json:"brand"`
	ActiveSubstance string `json:"activeSubstance"`
	Dosage          string `json:"dosage"`
}

// SearchAttempt is one fallback tier: the subset of identity fields sent to the portal.
// Empty fields are cleared on the portal form.
type SearchAttempt struct {
	Name            string `json:"name,omitempty"`
	ActiveSubstance string `json:"activeSubstance,omitempty"`
	Dosage          string `json:"dosage,omitempty"`
}

// IsEmpty reports whether the attempt carries no search criteria at all
func (a SearchAttempt) IsEmpty() bool {
	return strings.TrimSpace(a.Name) == "" &&
		strings.TrimSpace(a.ActiveSubstance) == "" &&
		strings.TrimSpace(a.Dosage) == ""
}

// SearchResultCandidate is one result row scored against the expected identity
type SearchResultCandidate struct {
	DisplayName         string  `json:"displayName"`
	ActiveSubstanceText string  `json:"activeSubstance"`
	RowIndex            int     `json:"rowIndex"`
	NameSimilarity      float64 `json:"nameSimilarity"`
	SubstanceSimilarity float64 `json:"substanceSimilarity"`
	CombinedSimilarity  float64 `json:"combinedSimilarity"`
}

// Weights applied to the name and substance similarities
const (
	NameWeight      = 0.7
	SubstanceWeight = 0.3
)

// Combine fills CombinedSimilarity from the two partial similarities
func (c *SearchResultCandidate) Combine() {
	c.CombinedSimilarity = NameWeight*c.NameSimilarity + SubstanceWeight*c.SubstanceSimilarity
}
