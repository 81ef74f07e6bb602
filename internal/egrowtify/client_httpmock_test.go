package egrowtify

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Johnlouiee/openai-egrowtify/internal/conf"
	"github.com/Johnlouiee/openai-egrowtify/internal/errors"
)

// newMockedClient builds a client whose transport is intercepted by
// httpmock, so endpoint routing can be asserted without a listener.
func newMockedClient(t *testing.T) *Client {
	t.Helper()

	settings := &conf.Settings{}
	settings.Backend.BaseURL = "http://backend.test"
	settings.Backend.Timeout = 5 * time.Second
	settings.Analysis.UsageCacheTTLSeconds = 1

	client, err := New(settings)
	require.NoError(t, err)

	httpmock.ActivateNonDefault(client.httpClient)
	t.Cleanup(httpmock.DeactivateAndReset)
	return client
}

func TestUsageStatusEndpointPerDomain(t *testing.T) {
	client := newMockedClient(t)

	httpmock.RegisterResponder("GET", "http://backend.test/api/ai-usage-status",
		httpmock.NewStringResponder(http.StatusOK, usageStatusBody))
	httpmock.RegisterResponder("GET", "http://backend.test/api/soil-usage-status",
		httpmock.NewStringResponder(http.StatusOK, usageStatusBody))

	_, err := client.UsageStatus(context.Background(), DomainPlant)
	require.NoError(t, err)
	_, err = client.UsageStatus(context.Background(), DomainSoil)
	require.NoError(t, err)

	counts := httpmock.GetCallCountInfo()
	assert.Equal(t, 1, counts["GET http://backend.test/api/ai-usage-status"])
	assert.Equal(t, 1, counts["GET http://backend.test/api/soil-usage-status"])
}

func TestAnalyzeEndpointPerDomain(t *testing.T) {
	client := newMockedClient(t)
	img := testImage(t)

	httpmock.RegisterResponder("POST", "http://backend.test/api/ai-recognition",
		httpmock.NewStringResponder(http.StatusOK, plantSuccessBody))
	httpmock.RegisterResponder("POST", "http://backend.test/api/soil-analysis",
		httpmock.NewStringResponder(http.StatusOK, soilSuccessBody))

	_, err := client.Analyze(context.Background(), DomainPlant, img, TierBasic)
	require.NoError(t, err)
	_, err = client.Analyze(context.Background(), DomainSoil, img, TierBasic)
	require.NoError(t, err)

	counts := httpmock.GetCallCountInfo()
	assert.Equal(t, 1, counts["POST http://backend.test/api/ai-recognition"])
	assert.Equal(t, 1, counts["POST http://backend.test/api/soil-analysis"])
}

func TestTransportErrorClassifiedAsUnreachable(t *testing.T) {
	client := newMockedClient(t)

	httpmock.RegisterResponder("GET", "http://backend.test/api/ai-usage-status",
		httpmock.NewErrorResponder(errors.NewStd("connection refused")))

	_, err := client.UsageStatus(context.Background(), DomainPlant)
	require.Error(t, err)
	assert.True(t, errors.IsUnreachable(err))
}
