package conf

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSettings(t *testing.T) {
	s := defaultSettings()

	require.NoError(t, ValidateSettings(s))
	assert.Equal(t, "http://localhost:5000", s.Backend.BaseURL)
	assert.Equal(t, 45*time.Second, s.Backend.Timeout)
	assert.Equal(t, int64(10*1024*1024), s.Image.MaxSizeBytes)
	assert.Equal(t, []string{"jpeg", "jpg", "png", "gif", "webp"}, s.Image.AcceptedTypes)
	assert.Equal(t, 5, s.Analysis.FreeAnalysesBasic)
	assert.Equal(t, 10, s.Analysis.FreeAnalysesPremium)
	assert.InDelta(t, 50.0, s.Analysis.TrainingConfidence, 0.001)
}

func TestValidateSettings(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Settings)
		wantErr string
	}{
		{
			name:    "valid defaults",
			mutate:  func(*Settings) {},
			wantErr: "",
		},
		{
			name:    "missing base url",
			mutate:  func(s *Settings) { s.Backend.BaseURL = "" },
			wantErr: "backend.baseurl is required",
		},
		{
			name:    "zero timeout",
			mutate:  func(s *Settings) { s.Backend.Timeout = 0 },
			wantErr: "backend.timeout must be positive",
		},
		{
			name:    "no accepted types",
			mutate:  func(s *Settings) { s.Image.AcceptedTypes = nil },
			wantErr: "image.acceptedtypes must not be empty",
		},
		{
			name:    "negative allowance",
			mutate:  func(s *Settings) { s.Analysis.FreeAnalysesBasic = -1 },
			wantErr: "free analysis allowances must not be negative",
		},
		{
			name:    "confidence out of range",
			mutate:  func(s *Settings) { s.Analysis.TrainingConfidence = 150 },
			wantErr: "analysis.trainingconfidence must be between 0 and 100",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := defaultSettings()
			tt.mutate(s)
			err := ValidateSettings(s)
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}
