package invitation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCode(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		code, err := GenerateCode()
		require.NoError(t, err)
		normalized, err := NormalizeCode(code)
		require.NoError(t, err)
		assert.Equal(t, code, normalized)
		seen[code] = true
	}
	assert.Greater(t, len(seen), 190)
}

func TestNormalizeCode(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"ab12cd34", "AB12CD34", false},
		{" AB12CD34 ", "AB12CD34", false},
		{"AB12CD3", "", true},
		{"AB12CD345", "", true},
		{"AB12-D34", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeCode(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedCode)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseDeepLink(t *testing.T) {
	code, err := ParseDeepLink("app://join/ab12cd34")
	require.NoError(t, err)
	assert.Equal(t, "AB12CD34", code)

	_, err = ParseDeepLink("https://join/AB12CD34")
	assert.ErrorIs(t, err, ErrMalformedCode)

	_, err = ParseDeepLink("app://join/short")
	assert.ErrorIs(t, err, ErrMalformedCode)

	assert.Equal(t, "app://join/AB12CD34", DeepLink("AB12CD34"))
}
