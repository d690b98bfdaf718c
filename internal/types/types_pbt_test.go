package types

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

var riskLevels = []RiskLevel{RiskLow, RiskMedium, RiskHigh}

// Property: whatever a lower tolerance admits, every higher tolerance admits too
func TestAdmitsIsMonotonic(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("admitted set grows with tolerance", prop.ForAll(
		func(levelIdx, lowerIdx, higherIdx int) bool {
			if lowerIdx > higherIdx {
				lowerIdx, higherIdx = higherIdx, lowerIdx
			}
			level := riskLevels[levelIdx]
			lower := riskLevels[lowerIdx]
			higher := riskLevels[higherIdx]
			return !lower.Admits(level) || higher.Admits(level)
		},
		gen.IntRange(0, 2),
		gen.IntRange(0, 2),
		gen.IntRange(0, 2),
	))

	properties.Property("every tolerance admits its own level", prop.ForAll(
		func(idx int) bool {
			return riskLevels[idx].Admits(riskLevels[idx])
		},
		gen.IntRange(0, 2),
	))

	properties.TestingRun(t)
}
