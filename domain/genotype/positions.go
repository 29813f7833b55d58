package genotype

import (
	"loostaar/domain/core"
)

// Positions maps variant identifiers to genomic coordinates
type Positions map[core.VariantID]float64

// Missing lists variants without a position, in the order given
func (p Positions) Missing(ids []core.VariantID) []core.VariantID {
	var missing []core.VariantID
	for _, id := range ids {
		if _, ok := p[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}
