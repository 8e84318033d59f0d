package schema

// FieldSelector describes one output column and its PHI handling.
type FieldSelector struct {
	Column string `json:"column"`
	// Required columns are always emitted.
	Required bool `json:"required"`
	// Phi marks protected health information.
	Phi bool `json:"phi"`
	// Mask marks PHI that may be emitted in masked form.
	Mask bool `json:"mask"`
}

// Allowed reports whether the field may be emitted to a caller restricted from PHI.
func (f FieldSelector) Allowed() bool {
	return f.Required || !f.Phi || f.Mask
}

// demographicFields is the demographic column contract.
var demographicFields = [...]FieldSelector{
	{Column: ColumnPersonID, Required: true, Phi: true, Mask: true},
	{Column: "addressPostalCode"},
	{Column: "addressState"},
	{Column: "birthDate", Phi: true, Mask: true},
	{Column: "deceasedDateTime", Phi: true, Mask: true},
	{Column: "ethnicity"},
	{Column: "gender"},
	{Column: "deceasedBoolean"},
	{Column: "hispanicBoolean"},
	{Column: "marriedBoolean"},
	{Column: "language"},
	{Column: "maritalStatus"},
	{Column: "mrn", Phi: true},
	{Column: "name", Phi: true},
	{Column: "race"},
	{Column: "religion"},
}

// DemographicFields returns the demographic column contract.
func DemographicFields() []FieldSelector {
	out := make([]FieldSelector, len(demographicFields))
	copy(out, demographicFields[:])
	return out
}

// SelectFields returns the fields a caller may see. With restrictPhi, PHI
// fields are dropped unless they are required or maskable.
func SelectFields(fields []FieldSelector, restrictPhi bool) []FieldSelector {
	out := make([]FieldSelector, 0, len(fields))
	for _, f := range fields {
		if restrictPhi && !f.Allowed() {
			continue
		}
		out = append(out, f)
	}
	return out
}
