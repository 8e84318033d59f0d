package core

// Default compiler options.
const (
	DefaultAlias            = "@"
	DefaultFieldPersonID    = "PersonId"
	DefaultFieldEncounterID = "EncounterId"
	DefaultAppDB            = "LeafDB"
)

// CompilerOptions holds the site-wide constants substituted into generated SQL.
type CompilerOptions struct {
	// Alias is the token inside stored Concept SQL replaced with the item alias.
	Alias string `koanf:"alias"`

	FieldPersonID    string `koanf:"field_person_id"`
	FieldEncounterID string `koanf:"field_encounter_id"`

	// AppDB is the database holding the cached cohort table.
	AppDB string `koanf:"app_db"`

	// CohortTable overrides the cached cohort table reference.
	// Defaults to <AppDB>.app.Cohort.
	CohortTable string `koanf:"cohort_table"`
}

// DefaultCompilerOptions returns CompilerOptions with default values.
func DefaultCompilerOptions() CompilerOptions {
	return CompilerOptions{
		Alias:            DefaultAlias,
		FieldPersonID:    DefaultFieldPersonID,
		FieldEncounterID: DefaultFieldEncounterID,
		AppDB:            DefaultAppDB,
	}
}

// WithDefaults returns a copy with empty fields replaced by defaults.
func (o CompilerOptions) WithDefaults() CompilerOptions {
	d := DefaultCompilerOptions()
	if o.Alias == "" {
		o.Alias = d.Alias
	}
	if o.FieldPersonID == "" {
		o.FieldPersonID = d.FieldPersonID
	}
	if o.FieldEncounterID == "" {
		o.FieldEncounterID = d.FieldEncounterID
	}
	if o.AppDB == "" {
		o.AppDB = d.AppDB
	}
	return o
}

// CohortTableRef returns the fully qualified cached cohort table.
func (o CompilerOptions) CohortTableRef() string {
	if o.CohortTable != "" {
		return o.CohortTable
	}
	if o.AppDB == "" {
		return "app.Cohort"
	}
	return o.AppDB + ".app.Cohort"
}
