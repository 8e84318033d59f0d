package definition

import (
	"log/slog"

	"github.com/leapstack-labs/cohortsql/pkg/core"
)

// ValidatePanels returns panels ready to compile. Panels without items and
// empty SubPanels are dropped. It fails when no inclusion panel remains, a
// specific date range ends before it starts, or a numeric filter has the
// wrong number of values.
func ValidatePanels(panels []core.Panel, logger *slog.Logger) ([]core.Panel, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	out := make([]core.Panel, 0, len(panels))
	for _, p := range panels {
		if p.ItemCount() == 0 {
			logger.Debug("dropping panel without items", "panel", p.Index)
			continue
		}
		if err := checkDateFilter(p); err != nil {
			return nil, err
		}

		subs := make([]core.SubPanel, 0, len(p.SubPanels))
		for _, sp := range p.SubPanels {
			if len(sp.Items) == 0 {
				continue
			}
			for _, item := range sp.Items {
				if err := checkNumericFilter(p.Index, item); err != nil {
					logger.Warn("numeric filter misalignment", "panel", p.Index, "item", item.Index)
					return nil, err
				}
			}
			subs = append(subs, sp)
		}
		p.SubPanels = subs
		out = append(out, p)
	}

	for _, p := range out {
		if p.IncludePanel {
			return out, nil
		}
	}
	return nil, core.Configurationf("query has no inclusion panels")
}

func checkDateFilter(p core.Panel) error {
	if !p.IsDateFiltered() {
		return nil
	}
	start, end := p.DateFilter.Start, p.DateFilter.End
	if start.Type == core.DateSpecific && end.Type == core.DateSpecific && start.Date.After(end.Date) {
		return core.Configurationf("panel %d: end date precedes start", p.Index)
	}
	return nil
}

func checkNumericFilter(panel int, item core.PanelItem) error {
	nf := item.NumericFilter
	if nf == nil {
		return nil
	}
	want, got := nf.Type.Operands(), len(nf.Values)
	switch {
	case got < want:
		return core.Configurationf("panel %d item %d: missing numeric arguments for %s", panel, item.Index, nf.Type)
	case got > want:
		return core.Configurationf("panel %d item %d: excessive numeric arguments for %s", panel, item.Index, nf.Type)
	}
	return nil
}
