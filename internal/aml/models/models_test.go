package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "deeptrack/pkg/domain-errors"
)

func TestQueryValidate(t *testing.T) {
	tests := []struct {
		name    string
		query   Query
		wantErr string
	}{
		{name: "person with name only", query: Query{FullName: " Jane Doe "}},
		{name: "business with company", query: Query{CheckType: "Business", CompanyName: "Acme Ltd"}},
		{name: "full birth date", query: Query{FullName: "Jane", Day: "7", Month: "3", Year: "1981"}},
		{name: "lowercase nationality", query: Query{FullName: "Jane", Nationality: "ke"}},
		{name: "unknown check type", query: Query{CheckType: "vessel", FullName: "Jane"}, wantErr: "check type must be person or business"},
		{name: "person without name", query: Query{CompanyName: "Acme"}, wantErr: "full name is required"},
		{name: "business without company", query: Query{CheckType: CheckBusiness, FullName: "Jane"}, wantErr: "company name is required"},
		{name: "partial birth date", query: Query{FullName: "Jane", Day: "7", Year: "1981"}, wantErr: "birth date needs day, month and year"},
		{name: "impossible birth date", query: Query{FullName: "Jane", Day: "31", Month: "2", Year: "1981"}, wantErr: "birth date is not a valid date"},
		{name: "non numeric birth date", query: Query{FullName: "Jane", Day: "x", Month: "2", Year: "1981"}, wantErr: "birth date is not a valid date"},
		{name: "alpha-3 nationality", query: Query{FullName: "Jane", Nationality: "KEN"}, wantErr: "nationality must be an ISO 3166-1 alpha-2 country code"},
		{name: "numeric nationality", query: Query{FullName: "Jane", Nationality: "12"}, wantErr: "nationality must be an ISO 3166-1 alpha-2 country code"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := tt.query
			err := q.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestQueryValues(t *testing.T) {
	t.Run("person with all fields", func(t *testing.T) {
		q := Query{FullName: "  Jane Doe ", Day: "7", Month: "3", Year: "1981", Nationality: "ke"}
		require.NoError(t, q.Validate())

		v := q.Values()
		assert.Equal(t, "Jane Doe", v.Get("fullName"))
		assert.Equal(t, "1981-03-07", v.Get("birthDate"))
		assert.Equal(t, "KE", v.Get("nationality"))
	})

	t.Run("business omits absent fields", func(t *testing.T) {
		q := Query{CheckType: CheckBusiness, FullName: "ignored", CompanyName: "Acme Ltd"}
		require.NoError(t, q.Validate())

		v := q.Values()
		assert.Equal(t, "Acme Ltd", v.Get("fullName"))
		assert.False(t, v.Has("birthDate"))
		assert.False(t, v.Has("nationality"))
	})
}

func TestNormalizeRiskLevel(t *testing.T) {
	assert.Equal(t, RiskLow, NormalizeRiskLevel(""))
	assert.Equal(t, RiskLow, NormalizeRiskLevel("low"))
	assert.Equal(t, RiskMedium, NormalizeRiskLevel("medium"))
	assert.Equal(t, RiskHigh, NormalizeRiskLevel(" High "))
	assert.Equal(t, RiskLow, NormalizeRiskLevel("severe"))
}
