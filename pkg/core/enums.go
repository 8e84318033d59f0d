package core

import (
	"fmt"
	"strings"
)

// PanelType selects how a Panel's SubPanels combine.
type PanelType int

const (
	// PanelPatient panels match patients against a single SubPanel.
	PanelPatient PanelType = iota
	// PanelSequence panels join SubPanels in temporal order.
	PanelSequence
)

// String returns the string representation of PanelType.
func (t PanelType) String() string {
	switch t {
	case PanelPatient:
		return "patient"
	case PanelSequence:
		return "sequence"
	default:
		return fmt.Sprintf("PanelType(%d)", int(t))
	}
}

// ParsePanelType parses a panel type name.
func ParsePanelType(s string) (PanelType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "patient":
		return PanelPatient, nil
	case "sequence", "sequential":
		return PanelSequence, nil
	default:
		return 0, fmt.Errorf("unknown panel type %q", s)
	}
}

// NumericFilterType is the comparison applied to a Concept's numeric field.
type NumericFilterType int

const (
	NumericGreaterThan NumericFilterType = iota
	NumericGreaterThanOrEqualTo
	NumericLessThan
	NumericLessThanOrEqualTo
	NumericEqualTo
	NumericBetween
)

// String returns the string representation of NumericFilterType.
func (t NumericFilterType) String() string {
	switch t {
	case NumericGreaterThan:
		return "gt"
	case NumericGreaterThanOrEqualTo:
		return "gte"
	case NumericLessThan:
		return "lt"
	case NumericLessThanOrEqualTo:
		return "lte"
	case NumericEqualTo:
		return "eq"
	case NumericBetween:
		return "between"
	default:
		return fmt.Sprintf("NumericFilterType(%d)", int(t))
	}
}

// Operands returns the number of filter values the operator consumes.
func (t NumericFilterType) Operands() int {
	if t == NumericBetween {
		return 2
	}
	return 1
}

// ParseNumericFilterType parses an operator name or symbol.
func ParseNumericFilterType(s string) (NumericFilterType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "gt", ">", "greaterthan":
		return NumericGreaterThan, nil
	case "gte", ">=", "greaterthanorequalto":
		return NumericGreaterThanOrEqualTo, nil
	case "lt", "<", "lessthan":
		return NumericLessThan, nil
	case "lte", "<=", "lessthanorequalto":
		return NumericLessThanOrEqualTo, nil
	case "eq", "=", "equalto":
		return NumericEqualTo, nil
	case "between":
		return NumericBetween, nil
	default:
		return 0, fmt.Errorf("unknown numeric filter type %q", s)
	}
}

// SequenceType defines how a SubPanel joins to the step before it.
type SequenceType int

const (
	// SequenceEncounter requires the same encounter as the previous step.
	SequenceEncounter SequenceType = iota
	// SequenceEvent requires the same event as the previous step.
	SequenceEvent
	// SequencePlusMinus requires a date within the increment either side of the previous step.
	SequencePlusMinus
	// SequenceWithinFollowing requires a date no later than the increment after the previous step.
	SequenceWithinFollowing
	// SequenceAnytimeFollowing requires any date after the previous step.
	SequenceAnytimeFollowing
)

// String returns the string representation of SequenceType.
func (t SequenceType) String() string {
	switch t {
	case SequenceEncounter:
		return "encounter"
	case SequenceEvent:
		return "event"
	case SequencePlusMinus:
		return "plus_minus"
	case SequenceWithinFollowing:
		return "within_following"
	case SequenceAnytimeFollowing:
		return "anytime_following"
	default:
		return fmt.Sprintf("SequenceType(%d)", int(t))
	}
}

// ParseSequenceType parses a sequence type name.
func ParseSequenceType(s string) (SequenceType, error) {
	switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_") {
	case "", "encounter":
		return SequenceEncounter, nil
	case "event":
		return SequenceEvent, nil
	case "plus_minus", "plusminus":
		return SequencePlusMinus, nil
	case "within_following", "withinfollowing":
		return SequenceWithinFollowing, nil
	case "anytime_following", "anytimefollowing":
		return SequenceAnytimeFollowing, nil
	default:
		return 0, fmt.Errorf("unknown sequence type %q", s)
	}
}

// DateIncrementType is either an anchor (now, a specific date) or a relative unit.
type DateIncrementType int

const (
	DateNow DateIncrementType = iota
	DateSpecific
	DateMinute
	DateHour
	DateDay
	DateWeek
	DateMonth
	DateYear
)

// String returns the string representation of DateIncrementType.
func (t DateIncrementType) String() string {
	switch t {
	case DateNow:
		return "now"
	case DateSpecific:
		return "specific"
	case DateMinute:
		return "minute"
	case DateHour:
		return "hour"
	case DateDay:
		return "day"
	case DateWeek:
		return "week"
	case DateMonth:
		return "month"
	case DateYear:
		return "year"
	default:
		return fmt.Sprintf("DateIncrementType(%d)", int(t))
	}
}

// IsUnit reports whether the type is a relative time unit usable in date arithmetic.
func (t DateIncrementType) IsUnit() bool {
	return t >= DateMinute && t <= DateYear
}

// ParseDateIncrementType parses a date increment name.
func ParseDateIncrementType(s string) (DateIncrementType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "now":
		return DateNow, nil
	case "specific":
		return DateSpecific, nil
	case "minute", "minutes":
		return DateMinute, nil
	case "hour", "hours":
		return DateHour, nil
	case "day", "days":
		return DateDay, nil
	case "week", "weeks":
		return DateWeek, nil
	case "month", "months":
		return DateMonth, nil
	case "year", "years":
		return DateYear, nil
	default:
		return 0, fmt.Errorf("unknown date increment %q", s)
	}
}

// SessionType is the purpose declared by the requesting session.
type SessionType int

const (
	SessionResearch SessionType = iota
	SessionQualityImprovement
)

// String returns the string representation of SessionType.
func (t SessionType) String() string {
	switch t {
	case SessionResearch:
		return "research"
	case SessionQualityImprovement:
		return "qi"
	default:
		return fmt.Sprintf("SessionType(%d)", int(t))
	}
}

// ParseSessionType parses a session type name.
func ParseSessionType(s string) (SessionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "research":
		return SessionResearch, nil
	case "qi", "quality_improvement", "qualityimprovement":
		return SessionQualityImprovement, nil
	default:
		return 0, fmt.Errorf("unknown session type %q", s)
	}
}
