package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnknownAnalysis_AllFieldsUnknown(t *testing.T) {
	t.Parallel()

	a := UnknownAnalysis()
	fields := a.Fields()
	require.Len(t, fields, len(AnalysisKeys))
	for _, k := range AnalysisKeys {
		assert.Equal(t, Unknown, fields[k], k)
	}
	assert.True(t, a.IsUnknown())
}

func TestAnalysis_Normalize(t *testing.T) {
	t.Parallel()

	a := Analysis{CheapestPlan: "  $10/month ", FreeTrial: "", MarketType: "B2B"}.Normalize()
	assert.Equal(t, "$10/month", a.CheapestPlan)
	assert.Equal(t, Unknown, a.FreeTrial)
	assert.Equal(t, Unknown, a.EnterprisePlan)
	assert.Equal(t, Unknown, a.APIAvailability)
	assert.Equal(t, "B2B", a.MarketType)
	assert.False(t, a.IsUnknown())
}

func TestAnalysis_Set(t *testing.T) {
	t.Parallel()

	var a Analysis
	for _, k := range AnalysisKeys {
		assert.True(t, a.Set(k, "v-"+k))
	}
	assert.False(t, a.Set("headquarters", "NYC"))

	fields := a.Fields()
	for _, k := range AnalysisKeys {
		assert.Equal(t, "v-"+k, fields[k])
	}
}

func TestAnalysis_JSONKeys(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(UnknownAnalysis())
	require.NoError(t, err)

	var m map[string]string
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Len(t, m, 5)
	for _, k := range AnalysisKeys {
		assert.Contains(t, m, k)
	}
}

func TestNormalizeName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"Stripe", "Stripe"},
		{"  Stripe  ", "Stripe"},
		{"Acme \t  Corp\n", "Acme Corp"},
		{"   ", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeName(tt.in), tt.in)
	}
}

func TestNameKey_CaseInsensitive(t *testing.T) {
	t.Parallel()

	assert.Equal(t, NameKey("Stripe"), NameKey("stripe"))
	assert.Equal(t, NameKey(" STRIPE "), NameKey("stripe"))
	assert.Equal(t, NameKey("Straße GmbH"), NameKey("STRASSE gmbh"))
	assert.NotEqual(t, NameKey("Stripe"), NameKey("Stripes"))
}
