package retrieval

import (
	"strings"

	"github.com/giygas/leaflet-api/entities"
)

// Tier is one fallback step, Number is 1-based and stable even when a tier is skipped
type Tier struct {
	Number  int
	Attempt entities.SearchAttempt
}

// BuildTiers returns the attempts from most to least specific:
// name+substance+dosage, name+substance, name, substance.
// Attempts with no criteria, or identical to an earlier one, are skipped.
func BuildTiers(identity entities.MedicineIdentity) []Tier {
	name := strings.TrimSpace(identity.Name)
	substance := strings.TrimSpace(identity.ActiveSubstance)
	dosage := strings.TrimSpace(identity.Dosage)

	all := []entities.SearchAttempt{
		{Name: name, ActiveSubstance: substance, Dosage: dosage},
		{Name: name, ActiveSubstance: substance},
		{Name: name},
		{ActiveSubstance: substance},
	}

	tiers := make([]Tier, 0, len(all))
	seen := make(map[entities.SearchAttempt]bool, len(all))
	for i, attempt := range all {
		if attempt.IsEmpty() || seen[attempt] {
			continue
		}
		seen[attempt] = true
		tiers = append(tiers, Tier{Number: i + 1, Attempt: attempt})
	}
	return tiers
}
