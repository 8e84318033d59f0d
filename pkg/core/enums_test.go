package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNumericFilterType(t *testing.T) {
	tests := []struct {
		in       string
		want     NumericFilterType
		operands int
	}{
		{">", NumericGreaterThan, 1},
		{"gte", NumericGreaterThanOrEqualTo, 1},
		{"<", NumericLessThan, 1},
		{"LTE", NumericLessThanOrEqualTo, 1},
		{"=", NumericEqualTo, 1},
		{"between", NumericBetween, 2},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseNumericFilterType(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.operands, got.Operands())
		})
	}

	_, err := ParseNumericFilterType("like")
	assert.Error(t, err)
}

func TestParseSequenceType(t *testing.T) {
	tests := []struct {
		in   string
		want SequenceType
	}{
		{"encounter", SequenceEncounter},
		{"event", SequenceEvent},
		{"plus-minus", SequencePlusMinus},
		{"within_following", SequenceWithinFollowing},
		{"AnytimeFollowing", SequenceAnytimeFollowing},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSequenceType(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseSequenceType("sometime")
	assert.Error(t, err)
}

func TestDateIncrementType_IsUnit(t *testing.T) {
	assert.False(t, DateNow.IsUnit())
	assert.False(t, DateSpecific.IsUnit())
	for _, u := range []DateIncrementType{DateMinute, DateHour, DateDay, DateWeek, DateMonth, DateYear} {
		assert.True(t, u.IsUnit(), u.String())
	}
}

func TestEnumStringUnknown(t *testing.T) {
	assert.Equal(t, "PanelType(9)", PanelType(9).String())
	assert.Equal(t, "SequenceType(9)", SequenceType(9).String())
	assert.Equal(t, "unknown", ColumnType(42).String())
}

func TestCompilerOptions_WithDefaults(t *testing.T) {
	opts := CompilerOptions{FieldPersonID: "person_id"}.WithDefaults()

	assert.Equal(t, "@", opts.Alias)
	assert.Equal(t, "person_id", opts.FieldPersonID)
	assert.Equal(t, DefaultFieldEncounterID, opts.FieldEncounterID)
	assert.Equal(t, "LeafDB.app.Cohort", opts.CohortTableRef())

	opts.CohortTable = "main.cohort"
	assert.Equal(t, "main.cohort", opts.CohortTableRef())
}

func TestConfigurationError(t *testing.T) {
	err := Configurationf("panel %d has no items", 3)

	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "panel 3 has no items", cfgErr.Reason)
	assert.Contains(t, err.Error(), "invalid query configuration")
}

func TestPanel_ItemCount(t *testing.T) {
	p := Panel{SubPanels: []SubPanel{
		{Items: []PanelItem{{}, {}}},
		{Items: []PanelItem{{}}},
	}}
	assert.Equal(t, 3, p.ItemCount())
	assert.False(t, p.IsDateFiltered())
	assert.False(t, p.SubPanels[0].HasCountFilter())
}
