// Package schema defines dataset shapes and their fixed column names.
package schema

import (
	"fmt"
	"strings"
)

// Shape is the extraction schema of a dataset.
type Shape int

const (
	ShapeConcept                  Shape = -2
	ShapeDynamic                  Shape = -1
	ShapeObservation              Shape = 1
	ShapeEncounter                Shape = 2
	ShapeDemographic              Shape = 3
	ShapeCondition                Shape = 4
	ShapeProcedure                Shape = 5
	ShapeImmunization             Shape = 6
	ShapeAllergy                  Shape = 7
	ShapeMedicationRequest        Shape = 8
	ShapeMedicationAdministration Shape = 9
)

var shapeNames = map[Shape]string{
	ShapeConcept:                  "concept",
	ShapeDynamic:                  "dynamic",
	ShapeObservation:              "observation",
	ShapeEncounter:                "encounter",
	ShapeDemographic:              "demographic",
	ShapeCondition:                "condition",
	ShapeProcedure:                "procedure",
	ShapeImmunization:             "immunization",
	ShapeAllergy:                  "allergy",
	ShapeMedicationRequest:        "medication_request",
	ShapeMedicationAdministration: "medication_administration",
}

// String returns the string representation of Shape.
func (s Shape) String() string {
	if name, ok := shapeNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Shape(%d)", int(s))
}

// ParseShape parses a shape name.
func ParseShape(name string) (Shape, error) {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", "_")
	for shape, n := range shapeNames {
		if n == key || strings.ReplaceAll(n, "_", "") == key {
			return shape, nil
		}
	}
	return 0, fmt.Errorf("unknown shape %q", name)
}

// Shapes returns every known shape, ordered by value.
func Shapes() []Shape {
	return []Shape{
		ShapeConcept, ShapeDynamic, ShapeObservation, ShapeEncounter,
		ShapeDemographic, ShapeCondition, ShapeProcedure, ShapeImmunization,
		ShapeAllergy, ShapeMedicationRequest, ShapeMedicationAdministration,
	}
}

// Column names shared by every compiled extract.
const (
	ColumnPersonID    = "personId"
	ColumnEncounterID = "encounterId"
	ColumnSalt        = "Salt"
	ColumnExported    = "Exported"
)

// Concept dataset columns.
const (
	ConceptDateField   = "dateField"
	ConceptNumberField = "numberField"
)

// dateFields maps each shaped dataset to its canonical date column.
var dateFields = map[Shape]string{
	ShapeObservation:              "effectiveDate",
	ShapeEncounter:                "admitDate",
	ShapeCondition:                "onsetDateTime",
	ShapeProcedure:                "performedDateTime",
	ShapeImmunization:             "occurrenceDateTime",
	ShapeAllergy:                  "onsetDateTime",
	ShapeMedicationRequest:        "authoredOn",
	ShapeMedicationAdministration: "effectiveDateTime",
	ShapeConcept:                  ConceptDateField,
}

// DateField returns the canonical date column of a shape. Dynamic datasets
// carry their own date column and demographics have none, so both return an error.
func DateField(s Shape) (string, error) {
	if f, ok := dateFields[s]; ok {
		return f, nil
	}
	switch s {
	case ShapeDynamic:
		return "", fmt.Errorf("dynamic datasets define their own date field")
	case ShapeDemographic:
		return "", fmt.Errorf("demographic datasets are not date filtered")
	default:
		return "", fmt.Errorf("unsupported shape %s", s)
	}
}
