package compiler

import (
	"math"

	"github.com/leapstack-labs/cohortsql/pkg/core"
)

// EstimatedCount approximates how many patients panel matches, from the
// cached concept counts. A Patient panel unions its items, so the estimate is
// their sum. A sequence can match no more patients than its smallest step.
// Unknown counts estimate as unbounded, which orders those panels last.
func EstimatedCount(panel core.Panel) int {
	if len(panel.SubPanels) == 0 {
		return math.MaxInt
	}
	if panel.Type != core.PanelSequence {
		return subPanelEstimate(panel.SubPanels[0])
	}

	least := math.MaxInt
	for _, sp := range panel.SubPanels {
		if !sp.IncludeSubPanel {
			continue
		}
		least = min(least, subPanelEstimate(sp))
	}
	return least
}

func subPanelEstimate(sp core.SubPanel) int {
	total := 0
	for _, item := range sp.Items {
		if item.Concept.PatientCount == nil {
			return math.MaxInt
		}
		n := max(*item.Concept.PatientCount, 0)
		if total > math.MaxInt-n {
			return math.MaxInt
		}
		total += n
	}
	return total
}
