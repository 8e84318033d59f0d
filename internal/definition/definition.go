// Package definition loads cohort query definitions from YAML or JSON files.
//
// A definition file holds the concepts a query references, the panels
// built from them, and optionally the dataset and demographic queries
// extracts run against the cohort. Panel items reference concepts by id or
// universal id.
package definition

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the on-disk shape of a query definition.
type File struct {
	QueryID     string          `yaml:"query_id"`
	Session     *SessionDTO     `yaml:"session"`
	EarlyBound  string          `yaml:"early_bound"`
	LateBound   string          `yaml:"late_bound"`
	Concepts    []ConceptDTO    `yaml:"concepts"`
	Panels      []PanelDTO      `yaml:"panels"`
	Datasets    []DatasetDTO    `yaml:"datasets"`
	Demographic *DemographicDTO `yaml:"demographic"`
}

// SessionDTO describes the requesting session.
type SessionDTO struct {
	Identified bool   `yaml:"identified"`
	Type       string `yaml:"type"` // research, qi
}

// ConceptDTO is a mapped clinical concept.
type ConceptDTO struct {
	ID              string              `yaml:"id"`
	UniversalID     string              `yaml:"universal_id"`
	EncounterBased  bool                `yaml:"encounter_based"`
	EventBased      bool                `yaml:"event_based"`
	Numeric         bool                `yaml:"numeric"`
	SQLSetFrom      string              `yaml:"sql_set_from"`
	SQLSetWhere     string              `yaml:"sql_set_where"`
	SQLFieldDate    string              `yaml:"sql_field_date"`
	SQLFieldNumeric string              `yaml:"sql_field_numeric"`
	SQLFieldEvent   string              `yaml:"sql_field_event"`
	PatientCount    *int                `yaml:"patient_count"`
	Specializations []SpecializationDTO `yaml:"specializations"`
}

// SpecializationDTO is a predicate a user may attach to a concept.
type SpecializationDTO struct {
	ID          string `yaml:"id"`
	UniversalID string `yaml:"universal_id"`
	Group       int    `yaml:"group"`
	SQLSetWhere string `yaml:"sql_set_where"`
}

// PanelDTO is one criterion group.
type PanelDTO struct {
	Index      int            `yaml:"index"`
	Type       string         `yaml:"type"` // patient, sequence
	Include    *bool          `yaml:"include"`
	Domain     string         `yaml:"domain"`
	DateFilter *DateFilterDTO `yaml:"date_filter"`
	SubPanels  []SubPanelDTO  `yaml:"subpanels"`
}

// DateFilterDTO bounds encounter dates.
type DateFilterDTO struct {
	Start DateBoundaryDTO `yaml:"start"`
	End   DateBoundaryDTO `yaml:"end"`
}

// DateBoundaryDTO is now, a specific date, or an offset from now.
type DateBoundaryDTO struct {
	Type      string `yaml:"type"` // now, specific, minute .. year
	Increment int    `yaml:"increment"`
	Date      string `yaml:"date"`
}

// SubPanelDTO is one step of a panel.
type SubPanelDTO struct {
	Index        int              `yaml:"index"`
	Include      *bool            `yaml:"include"`
	MinimumCount int              `yaml:"minimum_count"`
	JoinSequence *JoinSequenceDTO `yaml:"join_sequence"`
	Items        []PanelItemDTO   `yaml:"items"`
}

// JoinSequenceDTO joins a step to the one before it.
type JoinSequenceDTO struct {
	Type          string `yaml:"type"`
	Increment     int    `yaml:"increment"`
	DateIncrement string `yaml:"date_increment"`
}

// PanelItemDTO references a concept.
type PanelItemDTO struct {
	Index           int               `yaml:"index"`
	Concept         string            `yaml:"concept"`
	NumericFilter   *NumericFilterDTO `yaml:"numeric_filter"`
	Specializations []string          `yaml:"specializations"`
}

// NumericFilterDTO restricts a numeric concept.
type NumericFilterDTO struct {
	Type   string    `yaml:"type"`
	Values []float64 `yaml:"values"`
}

// DatasetDTO is an admin-defined dataset query.
type DatasetDTO struct {
	ID           string `yaml:"id"`
	UniversalID  string `yaml:"universal_id"`
	Name         string `yaml:"name"`
	Shape        string `yaml:"shape"`
	SQLStatement string `yaml:"sql_statement"`
	SQLFieldDate string `yaml:"sql_field_date"`
}

// DemographicDTO is the site demographic query.
type DemographicDTO struct {
	SQLStatement string `yaml:"sql_statement"`
}

// ParseError reports a malformed definition file.
type ParseError struct {
	Path    string
	Message string
}

func (e *ParseError) Error() string {
	if e.Path == "" {
		return "invalid definition: " + e.Message
	}
	return fmt.Sprintf("invalid definition %s: %s", e.Path, e.Message)
}

// LoadFile reads and parses the definition at path.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is user-provided CLI input
	if err != nil {
		return nil, fmt.Errorf("failed to read definition: %w", err)
	}
	f, err := Parse(data)
	var pe *ParseError
	if errors.As(err, &pe) {
		pe.Path = path
	}
	return f, err
}

// Parse decodes a definition. JSON input is accepted as YAML. Unknown
// fields are rejected.
func Parse(data []byte) (*File, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &ParseError{Message: "empty document"}
		}
		return nil, &ParseError{Message: err.Error()}
	}
	return &f, nil
}
