package egrowtify

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Johnlouiee/openai-egrowtify/internal/conf"
	"github.com/Johnlouiee/openai-egrowtify/internal/imagefile"
)

// mockResponse represents a mocked HTTP response
type mockResponse struct {
	status      int
	body        string
	contentType string
}

// setupTestClient creates a test client pointed at the given server
func setupTestClient(tb testing.TB, server *httptest.Server) *Client {
	tb.Helper()

	settings := &conf.Settings{}
	settings.Backend.BaseURL = server.URL
	settings.Backend.Timeout = 5 * time.Second
	settings.Analysis.UsageCacheTTLSeconds = 1

	client, err := New(settings)
	require.NoError(tb, err)

	if tt, ok := tb.(*testing.T); ok {
		tt.Cleanup(func() {
			client.Close()
		})
	}

	return client
}

// setupMockServer creates a mock backend with predefined responses keyed by path
func setupMockServer(tb testing.TB, responses map[string]mockResponse) *httptest.Server {
	tb.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if response, ok := responses[r.URL.Path]; ok {
			if response.contentType != "" {
				w.Header().Set("Content-Type", response.contentType)
			} else {
				w.Header().Set("Content-Type", "application/json")
			}
			w.WriteHeader(response.status)
			_, _ = w.Write([]byte(response.body))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error": "Endpoint not found"}`))
	}))

	if tt, ok := tb.(*testing.T); ok {
		tt.Cleanup(server.Close)
	}

	return server
}

// testImage builds a small valid PNG through the intake for upload tests
func testImage(tb testing.TB) *imagefile.Image {
	tb.Helper()

	settings := &conf.Settings{}
	settings.Image.MaxSizeBytes = 10 * 1024 * 1024
	settings.Image.AcceptedTypes = []string{"jpeg", "jpg", "png", "gif", "webp"}

	data := append([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}, make([]byte, 64)...)
	img, err := imagefile.NewIntake(settings).Select("test.png", data)
	require.NoError(tb, err)
	return img
}

const plantSuccessBody = `{
	"plant_name": "Water Spinach",
	"scientific_name": "Ipomoea aquatica",
	"common_names": ["Water Spinach", "Kangkong"],
	"confidence": 87.5,
	"needs_training": false,
	"health_status": "Healthy, no visible disease",
	"growth_stage": "Vegetative",
	"care_recommendations": {
		"watering": "Keep soil consistently moist",
		"sunlight": "Full sun",
		"soil": "Rich loamy soil",
		"fertilizing": "Balanced NPK monthly",
		"pruning": "Harvest regularly"
	},
	"common_issues": ["Aphids", "Leaf miners"],
	"seasonal_notes": "Grows year-round in the tropics",
	"pest_diseases": "Watch for aphids during dry spells",
	"ai_enriched": true,
	"remaining_analyses": 4,
	"alternatives": [{"name": "Morning Glory", "confidence": 8.1}]
}`

const lowConfidenceBody = `{
	"plant_name": "Unknown",
	"scientific_name": "",
	"common_names": [],
	"confidence": 22.4,
	"needs_training": true,
	"ai_enriched": false,
	"remaining_analyses": 3
}`

const soilSuccessBody = `{
	"moisture_level": "Moderately moist",
	"texture": "Clay loam",
	"ph": "6.0-6.5 (slightly acidic)",
	"organic_matter": "Moderate organic content",
	"drainage": "Fair, compaction visible",
	"recommendations": ["Add compost", "Loosen topsoil"],
	"nutrient_indicators": "Possible nitrogen deficiency",
	"compaction_assessment": "Moderately compacted",
	"soil_health_score": "7/10 - good with room to improve",
	"seasonal_considerations": "Plant after first rains",
	"soil_amendments": ["Compost", "Rice hull charcoal"],
	"water_retention": "Holds water well",
	"root_development": "Adequate for shallow roots",
	"suitable_plants": {
		"vegetables": {"Kangkong": "Thrives in moist clay", "Okra": "Tolerates clay-loam"},
		"herbs": {"Basil": "Needs added compost"}
	},
	"ai_analyzed": true,
	"remaining_analyses": 2
}`

const usageStatusBody = `{
	"free_analyses_used": 2,
	"purchased_credits": 1,
	"remaining_free": 3,
	"remaining_total": 4
}`
