package core

import (
	"time"

	"github.com/google/uuid"
)

// Concept is a clinical data element mapped to a SQL source.
// Concepts are read-only to the compiler.
type Concept struct {
	ID          uuid.UUID
	UniversalID string

	IsEncounterBased bool
	IsEventBased     bool
	IsNumeric        bool

	// SQLSetFrom is the table, view or subquery the concept selects from.
	SQLSetFrom string
	// SQLSetWhere is an optional predicate over SQLSetFrom.
	SQLSetWhere string

	SQLFieldDate    string
	SQLFieldNumeric string
	SQLFieldEvent   string

	// PatientCount is the cached number of patients with the concept, if known.
	PatientCount *int
}

// Specialization is a user-selected predicate fragment attached to a PanelItem.
type Specialization struct {
	ID                    uuid.UUID
	SpecializationGroupID int
	UniversalID           string
	SQLSetWhere           string
}

// NumericFilter restricts a Concept's numeric field.
type NumericFilter struct {
	Type   NumericFilterType
	Values []float64
}

// DateBoundary is one side of a date filter: now, a specific date, or an
// offset of Increment units from now.
type DateBoundary struct {
	Type      DateIncrementType
	Increment int
	Date      time.Time
}

// DateFilter bounds the dates of encounter-based rows in a Panel.
type DateFilter struct {
	Start DateBoundary
	End   DateBoundary
}

// JoinSequence defines how a non-first SubPanel of a Sequence panel joins
// to the step before it.
type JoinSequence struct {
	Type          SequenceType
	Increment     int
	DateIncrement DateIncrementType
}

// PanelItem references exactly one Concept plus optional filters.
type PanelItem struct {
	Index           int
	Concept         Concept
	NumericFilter   *NumericFilter
	Specializations []Specialization
}

// SubPanel is one step of a Panel.
type SubPanel struct {
	Index           int
	IncludeSubPanel bool
	MinimumCount    int
	JoinSequence    JoinSequence
	Items           []PanelItem
}

// HasCountFilter reports whether the SubPanel requires more than one distinct date.
func (s SubPanel) HasCountFilter() bool {
	return s.MinimumCount > 1
}

// Panel is one inclusion or exclusion criterion group.
type Panel struct {
	Index        int
	Type         PanelType
	IncludePanel bool
	Domain       string
	DateFilter   *DateFilter
	SubPanels    []SubPanel
}

// IsDateFiltered reports whether the panel carries a date filter.
func (p Panel) IsDateFiltered() bool {
	return p.DateFilter != nil
}

// ItemCount returns the number of PanelItems across all SubPanels.
func (p Panel) ItemCount() int {
	n := 0
	for _, sp := range p.SubPanels {
		n += len(sp.Items)
	}
	return n
}
