package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatPtr(v float64) *float64 { return &v }

func TestFeaturePayload_ToVector_Defaults(t *testing.T) {
	payload := &FeaturePayload{
		VariantCount:     floatPtr(15),
		HighRiskVariants: floatPtr(8),
	}

	vec := payload.ToVector()

	assert.Equal(t, 15.0, vec.Values[FeatVariantCount])
	assert.Equal(t, 8.0, vec.Values[FeatHighRiskVariants])
	// Absent risk_score takes its documented 0.5 default.
	assert.Equal(t, 0.5, vec.Values[FeatRiskScore])
	assert.Equal(t, 0.0, vec.Values[FeatDrugInteractions])

	// Supplied fields are not reported as defaulted; absent ones are.
	assert.NotContains(t, vec.Defaulted, FeatVariantCount)
	assert.Contains(t, vec.Defaulted, FeatRiskScore)
	assert.Contains(t, vec.Defaulted, FeatDrugInteractions)
	assert.Len(t, vec.Defaulted, 8)
}

func TestFeaturePayload_Validate(t *testing.T) {
	tests := []struct {
		name    string
		payload FeaturePayload
		wantErr string
	}{
		{"empty payload valid", FeaturePayload{}, ""},
		{"negative count", FeaturePayload{VariantCount: floatPtr(-1)}, "variant_count"},
		{"risk score above one", FeaturePayload{RiskScore: floatPtr(1.5)}, "risk_score"},
		{"risk score boundary", FeaturePayload{RiskScore: floatPtr(1.0)}, ""},
		{"zero values valid", FeaturePayload{DrugInteractions: floatPtr(0)}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.payload.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.wantErr, verr.Field)
		})
	}
}

func TestFeatureVector_Materialize(t *testing.T) {
	vec := NewFeatureVector()
	vec.Set(FeatVariantCount, 10)
	vec.Set(FeatRiskScore, 0.7)

	manifest := []string{FeatVariantCount, "drug_warfarin", FeatRiskScore}
	row := vec.Materialize(manifest)

	require.Len(t, row, 3)
	assert.Equal(t, 10.0, row[0])
	// Names absent from the vector default to 0.
	assert.Equal(t, 0.0, row[1])
	assert.Equal(t, 0.7, row[2])
}

func TestErrorKindOf(t *testing.T) {
	err := NewPipelineError(ErrKindDataUnavailable, "fetch prescriptions", ErrNotFound, "")
	assert.Equal(t, ErrKindDataUnavailable, ErrorKindOf(err))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, ErrorKind(""), ErrorKindOf(ErrNotFound))
}
