package definition

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/leapstack-labs/cohortsql/internal/dataset"
	"github.com/leapstack-labs/cohortsql/pkg/core"
	"github.com/leapstack-labs/cohortsql/pkg/schema"
)

// Query is a loaded and validated definition.
type Query struct {
	Context     core.QueryContext
	Panels      []core.Panel
	Datasets    []Dataset
	Demographic *dataset.DemographicQuery

	concepts        map[string]conceptEntry
	sessionDeclared bool
}

// Dataset is a dataset query with its display name.
type Dataset struct {
	Name string
	dataset.DatasetQuery
}

type conceptEntry struct {
	concept core.Concept
	specs   []core.Specialization
}

// dateLayouts are the accepted date formats, most specific first.
var dateLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", time.DateOnly}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}

func parseOptionalDate(s string) (*time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	t, err := parseDate(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func parseOptionalUUID(s string) (uuid.UUID, error) {
	if strings.TrimSpace(s) == "" {
		return uuid.Nil, nil
	}
	return uuid.Parse(strings.TrimSpace(s))
}

func boolOr(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}

// Load reads, converts and validates the definition at path.
func Load(path string, logger *slog.Logger) (*Query, error) {
	f, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	return Build(f, logger)
}

// Build converts f into core types and validates its panels. A missing
// query id is generated.
func Build(f *File, logger *slog.Logger) (*Query, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	q := &Query{concepts: make(map[string]conceptEntry)}
	if err := q.buildContext(f); err != nil {
		return nil, err
	}
	for i, c := range f.Concepts {
		if err := q.addConcept(c); err != nil {
			return nil, fmt.Errorf("concept %d: %w", i, err)
		}
	}

	panels := make([]core.Panel, 0, len(f.Panels))
	for _, p := range f.Panels {
		panel, err := q.buildPanel(p)
		if err != nil {
			return nil, fmt.Errorf("panel %d: %w", p.Index, err)
		}
		panels = append(panels, panel)
	}

	validated, err := ValidatePanels(panels, logger)
	if err != nil {
		return nil, err
	}
	q.Panels = validated

	for _, d := range f.Datasets {
		ds, err := buildDataset(d)
		if err != nil {
			return nil, fmt.Errorf("dataset %q: %w", d.Name, err)
		}
		q.Datasets = append(q.Datasets, ds)
	}
	if f.Demographic != nil {
		q.Demographic = &dataset.DemographicQuery{SQLStatement: f.Demographic.SQLStatement}
	}

	logger.Debug("loaded query definition",
		"query_id", q.Context.QueryID.String(),
		"panels", len(q.Panels),
		"concepts", len(f.Concepts),
		"datasets", len(q.Datasets))
	return q, nil
}

func (q *Query) buildContext(f *File) error {
	id, err := parseOptionalUUID(f.QueryID)
	if err != nil {
		return fmt.Errorf("query_id: %w", err)
	}
	if id == uuid.Nil {
		id = uuid.New()
	}
	var session core.Session
	if f.Session != nil {
		st, err := core.ParseSessionType(f.Session.Type)
		if err != nil {
			return err
		}
		session = core.Session{Identified: f.Session.Identified, Type: st}
		q.sessionDeclared = true
	}
	early, err := parseOptionalDate(f.EarlyBound)
	if err != nil {
		return fmt.Errorf("early_bound: %w", err)
	}
	late, err := parseOptionalDate(f.LateBound)
	if err != nil {
		return fmt.Errorf("late_bound: %w", err)
	}
	if early != nil && late != nil && late.Before(*early) {
		return core.Configurationf("late_bound precedes early_bound")
	}

	q.Context = core.QueryContext{
		QueryID:    id,
		Session:    session,
		EarlyBound: early,
		LateBound:  late,
	}
	return nil
}

func (q *Query) addConcept(c ConceptDTO) error {
	id, err := parseOptionalUUID(c.ID)
	if err != nil {
		return fmt.Errorf("id: %w", err)
	}
	if c.ID == "" && c.UniversalID == "" {
		return core.Configurationf("concept needs an id or universal_id")
	}

	entry := conceptEntry{concept: core.Concept{
		ID:               id,
		UniversalID:      c.UniversalID,
		IsEncounterBased: c.EncounterBased,
		IsEventBased:     c.EventBased,
		IsNumeric:        c.Numeric,
		SQLSetFrom:       c.SQLSetFrom,
		SQLSetWhere:      c.SQLSetWhere,
		SQLFieldDate:     c.SQLFieldDate,
		SQLFieldNumeric:  c.SQLFieldNumeric,
		SQLFieldEvent:    c.SQLFieldEvent,
		PatientCount:     c.PatientCount,
	}}
	for _, s := range c.Specializations {
		sid, err := parseOptionalUUID(s.ID)
		if err != nil {
			return fmt.Errorf("specialization id: %w", err)
		}
		entry.specs = append(entry.specs, core.Specialization{
			ID:                    sid,
			SpecializationGroupID: s.Group,
			UniversalID:           s.UniversalID,
			SQLSetWhere:           s.SQLSetWhere,
		})
	}

	for _, key := range []string{strings.TrimSpace(c.ID), c.UniversalID} {
		if key == "" {
			continue
		}
		if _, dup := q.concepts[key]; dup {
			return core.Configurationf("duplicate concept %s", key)
		}
		q.concepts[key] = entry
	}
	return nil
}

// DefaultSession sets the session used when the file declares none.
func (q *Query) DefaultSession(s core.Session) {
	if !q.sessionDeclared {
		q.Context.Session = s
	}
}

// Concept returns the concept with the given id or universal id and the
// specializations defined for it.
func (q *Query) Concept(ref string) (core.Concept, []core.Specialization, error) {
	e, ok := q.concepts[strings.TrimSpace(ref)]
	if !ok {
		return core.Concept{}, nil, core.Configurationf("unknown concept %q", ref)
	}
	return e.concept, e.specs, nil
}

// Specializations resolves refs against the specializations of concept ref.
// Each ref must match exactly one specialization by id or universal id.
func (q *Query) Specializations(ref string, refs []string) ([]core.Specialization, error) {
	_, specs, err := q.Concept(ref)
	if err != nil {
		return nil, err
	}

	out := make([]core.Specialization, 0, len(refs))
	for _, r := range refs {
		var matches []core.Specialization
		for _, s := range specs {
			if (s.ID != uuid.Nil && s.ID.String() == r) || (s.UniversalID != "" && s.UniversalID == r) {
				matches = append(matches, s)
			}
		}
		if len(matches) != 1 {
			return nil, core.Configurationf("specialization %q does not match concept %s", r, ref)
		}
		out = append(out, matches[0])
	}
	return out, nil
}

// Panel returns the validated panel with the given index.
func (q *Query) Panel(index int) (core.Panel, error) {
	for _, p := range q.Panels {
		if p.Index == index {
			return p, nil
		}
	}
	return core.Panel{}, fmt.Errorf("no panel with index %d", index)
}

// Dataset returns the dataset whose name, id or universal id is ref.
func (q *Query) Dataset(ref string) (Dataset, error) {
	for _, d := range q.Datasets {
		if d.Name == ref || d.UniversalID == ref || (d.ID != uuid.Nil && d.ID.String() == ref) {
			return d, nil
		}
	}
	return Dataset{}, fmt.Errorf("no dataset %q", ref)
}

func (q *Query) buildPanel(p PanelDTO) (core.Panel, error) {
	panelType, err := core.ParsePanelType(p.Type)
	if err != nil {
		return core.Panel{}, err
	}
	panel := core.Panel{
		Index:        p.Index,
		Type:         panelType,
		IncludePanel: boolOr(p.Include, true),
		Domain:       p.Domain,
	}

	if p.DateFilter != nil {
		start, err := buildBoundary(p.DateFilter.Start)
		if err != nil {
			return core.Panel{}, fmt.Errorf("date_filter.start: %w", err)
		}
		end, err := buildBoundary(p.DateFilter.End)
		if err != nil {
			return core.Panel{}, fmt.Errorf("date_filter.end: %w", err)
		}
		panel.DateFilter = &core.DateFilter{Start: start, End: end}
	}

	for _, sp := range p.SubPanels {
		sub, err := q.buildSubPanel(sp)
		if err != nil {
			return core.Panel{}, fmt.Errorf("subpanel %d: %w", sp.Index, err)
		}
		panel.SubPanels = append(panel.SubPanels, sub)
	}
	return panel, nil
}

func buildBoundary(b DateBoundaryDTO) (core.DateBoundary, error) {
	t, err := core.ParseDateIncrementType(b.Type)
	if err != nil {
		return core.DateBoundary{}, err
	}
	out := core.DateBoundary{Type: t, Increment: b.Increment}
	if t == core.DateSpecific {
		if out.Date, err = parseDate(b.Date); err != nil {
			return core.DateBoundary{}, err
		}
	}
	return out, nil
}

func (q *Query) buildSubPanel(sp SubPanelDTO) (core.SubPanel, error) {
	sub := core.SubPanel{
		Index:           sp.Index,
		IncludeSubPanel: boolOr(sp.Include, true),
		MinimumCount:    sp.MinimumCount,
	}
	if js := sp.JoinSequence; js != nil {
		seqType, err := core.ParseSequenceType(js.Type)
		if err != nil {
			return core.SubPanel{}, err
		}
		unit, err := core.ParseDateIncrementType(js.DateIncrement)
		if err != nil {
			return core.SubPanel{}, err
		}
		sub.JoinSequence = core.JoinSequence{Type: seqType, Increment: js.Increment, DateIncrement: unit}
	}

	for _, it := range sp.Items {
		concept, _, err := q.Concept(it.Concept)
		if err != nil {
			return core.SubPanel{}, fmt.Errorf("item %d: %w", it.Index, err)
		}
		specs, err := q.Specializations(it.Concept, it.Specializations)
		if err != nil {
			return core.SubPanel{}, fmt.Errorf("item %d: %w", it.Index, err)
		}
		item := core.PanelItem{Index: it.Index, Concept: concept, Specializations: specs}
		if nf := it.NumericFilter; nf != nil {
			op, err := core.ParseNumericFilterType(nf.Type)
			if err != nil {
				return core.SubPanel{}, fmt.Errorf("item %d: %w", it.Index, err)
			}
			item.NumericFilter = &core.NumericFilter{Type: op, Values: nf.Values}
		}
		sub.Items = append(sub.Items, item)
	}
	return sub, nil
}

func buildDataset(d DatasetDTO) (Dataset, error) {
	id, err := parseOptionalUUID(d.ID)
	if err != nil {
		return Dataset{}, fmt.Errorf("id: %w", err)
	}
	shape, err := schema.ParseShape(d.Shape)
	if err != nil {
		return Dataset{}, err
	}
	name := d.Name
	if name == "" {
		name = shape.String()
	}
	return Dataset{
		Name: name,
		DatasetQuery: dataset.DatasetQuery{
			ID:           id,
			UniversalID:  d.UniversalID,
			Shape:        shape,
			SQLStatement: d.SQLStatement,
			SQLFieldDate: d.SQLFieldDate,
		},
	}, nil
}
