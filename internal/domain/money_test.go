package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{input: "100", want: "100.0000"},
		{input: "0.0001", want: "0.0001"},
		{input: "99999.9999", want: "99999.9999"},
		{input: "1.5", want: "1.5000"},
		{input: "0", wantErr: true},
		{input: "-5", wantErr: true},
		{input: "1.00001", wantErr: true},
		{input: "abc", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseAmount(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, FormatAmount(got))
		})
	}
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "12.3400", FormatAmount(decimal.RequireFromString("12.34")))
	assert.Equal(t, "-3.0000", FormatAmount(decimal.NewFromInt(-3)))
	assert.Equal(t, "0.0000", FormatAmount(decimal.Zero))
}
