// client.go implements the HTTP client for the eGrowtify backend API:
// usage status, analysis dispatch, training submission and AI generation.
package egrowtify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/Johnlouiee/openai-egrowtify/internal/conf"
	"github.com/Johnlouiee/openai-egrowtify/internal/errors"
	"github.com/Johnlouiee/openai-egrowtify/internal/imagefile"
	"github.com/Johnlouiee/openai-egrowtify/internal/logging"
)

// Package-level logger specific to the egrowtify backend client
var (
	serviceLogger   *slog.Logger
	serviceLevelVar = new(slog.LevelVar) // Dynamic level control
	closeLogger     func() error
)

func init() {
	var err error
	logFilePath := filepath.Join("logs", "egrowtify-api.log")
	serviceLevelVar.Set(slog.LevelDebug)

	serviceLogger, closeLogger, err = logging.NewFileLogger(logFilePath, "egrowtify-api", serviceLevelVar)
	if err != nil {
		// Fallback: log error to standard log and disable service file logging
		log.Printf("Failed to initialize egrowtify API file logger at %s: %v. Service logging disabled.", logFilePath, err)
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: serviceLevelVar})
		serviceLogger = slog.New(fbHandler).With("service", "egrowtify-api")
		closeLogger = func() error { return nil }
	}
}

// Client provides methods for interacting with the eGrowtify backend API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	usageCache *cache.Cache
	debug      bool
}

// New creates a new backend API client from settings.
func New(settings *conf.Settings) (*Client, error) {
	if settings == nil {
		settings = conf.Setting()
	}
	if settings.Backend.BaseURL == "" {
		return nil, errors.Newf("backend base URL is required").
			Category(errors.CategoryConfiguration).
			Component("egrowtify").
			Build()
	}

	ttl := time.Duration(settings.Analysis.UsageCacheTTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = 15 * time.Second
	}

	client := &Client{
		baseURL: settings.Backend.BaseURL,
		httpClient: &http.Client{
			Timeout: settings.Backend.Timeout,
		},
		usageCache: cache.New(ttl, ttl*2),
		debug:      settings.Debug,
	}

	serviceLogger.Info("eGrowtify API client initialized",
		"base_url", client.baseURL,
		"timeout", settings.Backend.Timeout,
		"usage_cache_ttl", ttl,
		"debug", client.debug)

	return client, nil
}

// Close cleans up client resources.
func (c *Client) Close() {
	serviceLogger.Info("Closing eGrowtify API client")
	if closeLogger != nil {
		if err := closeLogger(); err != nil {
			log.Printf("Error closing egrowtify API logger: %v", err)
		}
	}
}

// usageStatusPath maps a domain to its usage-status endpoint.
func usageStatusPath(domain Domain) string {
	if domain == DomainSoil {
		return "/api/soil-usage-status"
	}
	return "/api/ai-usage-status"
}

// analyzePath maps a domain to its analysis endpoint.
func analyzePath(domain Domain) string {
	if domain == DomainSoil {
		return "/api/soil-analysis"
	}
	return "/api/ai-recognition"
}

// UsageStatus retrieves the quota state for one domain. Responses are served
// from a short-lived cache to absorb bursts; InvalidateUsage drops the entry
// after a completed analysis so the next fetch is authoritative.
func (c *Client) UsageStatus(ctx context.Context, domain Domain) (*UsageStatus, error) {
	if !domain.Valid() {
		return nil, errors.Newf("unknown analysis domain: %q", domain).
			Category(errors.CategoryValidation).
			Component("egrowtify").
			Build()
	}

	cacheKey := "usage:" + string(domain)
	if cached, found := c.usageCache.Get(cacheKey); found {
		if status, ok := cached.(*UsageStatus); ok {
			serviceLogger.Debug("usage status cache hit", "domain", domain)
			return status, nil
		}
	}

	var status UsageStatus
	if err := c.getJSON(ctx, usageStatusPath(domain), &status); err != nil {
		return nil, err
	}

	c.usageCache.Set(cacheKey, &status, cache.DefaultExpiration)

	serviceLogger.Debug("usage status fetched",
		"domain", domain,
		"free_used", status.FreeAnalysesUsed,
		"purchased", status.PurchasedCredits,
		"remaining_total", status.RemainingTotal)

	return &status, nil
}

// InvalidateUsage drops the cached usage status for a domain.
func (c *Client) InvalidateUsage(domain Domain) {
	c.usageCache.Delete("usage:" + string(domain))
}

// Analyze submits an image for analysis on the given domain and tier.
// The upload is multipart: the image file plus the tier flag.
func (c *Client) Analyze(ctx context.Context, domain Domain, img *imagefile.Image, tier Tier) (*AnalysisResult, error) {
	if !domain.Valid() {
		return nil, errors.Newf("unknown analysis domain: %q", domain).
			Category(errors.CategoryValidation).
			Component("egrowtify").
			Build()
	}
	if img == nil {
		return nil, errors.Newf("no image selected for analysis").
			Category(errors.CategoryValidation).
			Component("egrowtify").
			Build()
	}

	body, contentType, err := imageForm(img, map[string]string{"tier": string(tier)})
	if err != nil {
		return nil, err
	}

	start := time.Now()
	respBody, err := c.do(ctx, http.MethodPost, analyzePath(domain), body, contentType)
	if err != nil {
		return nil, err
	}

	result := &AnalysisResult{Domain: domain}
	var target any
	switch domain {
	case DomainPlant:
		result.Plant = &PlantResult{}
		target = result.Plant
	case DomainSoil:
		result.Soil = &SoilResult{}
		target = result.Soil
	}

	if err := json.Unmarshal(respBody, target); err != nil {
		return nil, errors.Newf("failed to parse analysis response: %w", err).
			Category(errors.CategoryFileParsing).
			Context("domain", string(domain)).
			Context("response_size", len(respBody)).
			Component("egrowtify").
			Build()
	}

	serviceLogger.Info("analysis completed",
		"domain", domain,
		"tier", tier,
		"image_size", img.Size(),
		"duration_ms", time.Since(start).Milliseconds())

	return result, nil
}

// SubmitTraining posts a training record, JSON-encoded, to the
// training-submission endpoint.
func (c *Client) SubmitTraining(ctx context.Context, record *TrainingRecord) (*TrainingResponse, error) {
	if record == nil || record.PlantName == "" {
		return nil, errors.Newf("missing required field: plant_name").
			Category(errors.CategoryValidation).
			Component("egrowtify").
			Build()
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return nil, errors.Newf("failed to encode training record: %w", err).
			Category(errors.CategoryTraining).
			Component("egrowtify").
			Build()
	}

	respBody, err := c.do(ctx, http.MethodPost, "/api/train-plant", bytes.NewReader(payload), "application/json")
	if err != nil {
		return nil, err
	}

	var resp TrainingResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, errors.Newf("failed to parse training response: %w", err).
			Category(errors.CategoryFileParsing).
			Component("egrowtify").
			Build()
	}

	serviceLogger.Info("training data submitted",
		"plant_name", record.PlantName,
		"has_image", record.ImageData != "",
		"submission_id", resp.SubmissionID)

	return &resp, nil
}

// GenerateTrainingInfo asks the AI assistant to pre-fill a training record
// from an image, optionally anchored to a known plant name.
func (c *Client) GenerateTrainingInfo(ctx context.Context, img *imagefile.Image, knownName string) (*GeneratedInfo, error) {
	if img == nil {
		return nil, errors.Newf("no image provided for generation").
			Category(errors.CategoryValidation).
			Component("egrowtify").
			Build()
	}

	fields := map[string]string{}
	if knownName != "" {
		fields["plant_name"] = knownName
	}
	body, contentType, err := imageForm(img, fields)
	if err != nil {
		return nil, err
	}

	respBody, err := c.do(ctx, http.MethodPost, "/api/train-plant/generate", body, contentType)
	if err != nil {
		return nil, err
	}

	var info GeneratedInfo
	if err := json.Unmarshal(respBody, &info); err != nil {
		return nil, errors.Newf("failed to parse generated training info: %w", err).
			Category(errors.CategoryFileParsing).
			Component("egrowtify").
			Build()
	}

	serviceLogger.Info("training info generated",
		"known_name", knownName,
		"suggested_name", info.PlantName)

	return &info, nil
}

// Health probes the backend health endpoint.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	var status HealthStatus
	if err := c.getJSON(ctx, "/api/health", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// imageForm assembles a multipart body carrying the image and extra fields.
func imageForm(img *imagefile.Image, fields map[string]string) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("image", img.Name())
	if err != nil {
		return nil, "", errors.Newf("failed to create multipart image field: %w", err).
			Category(errors.CategoryImageEncode).
			Component("egrowtify").
			Build()
	}
	if _, err := part.Write(img.Data()); err != nil {
		return nil, "", errors.Newf("failed to write image payload: %w", err).
			Category(errors.CategoryImageEncode).
			ImageContext(img.MIMEType(), img.Size()).
			Component("egrowtify").
			Build()
	}

	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return nil, "", errors.Newf("failed to write form field %s: %w", key, err).
				Category(errors.CategoryImageEncode).
				Component("egrowtify").
				Build()
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", errors.Newf("failed to finalize multipart body: %w", err).
			Category(errors.CategoryImageEncode).
			Component("egrowtify").
			Build()
	}

	return &buf, writer.FormDataContentType(), nil
}

// getJSON performs a GET request and decodes the JSON response into result.
func (c *Client) getJSON(ctx context.Context, path string, result any) error {
	respBody, err := c.do(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return err
	}
	if err := json.Unmarshal(respBody, result); err != nil {
		return errors.Newf("failed to parse response: %w", err).
			Category(errors.CategoryFileParsing).
			Context("path", path).
			Component("egrowtify").
			Build()
	}
	return nil
}

// do performs an HTTP request against the backend and classifies failures.
// Transport-level errors are reported as network (backend unreachable),
// 403 as limit (quota exceeded), other non-2xx with the backend message.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string) ([]byte, error) {
	url := c.baseURL + path

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, errors.Newf("failed to create HTTP request: %w", err).
			Category(errors.CategoryHTTP).
			Context("method", method).
			Context("path", path).
			Component("egrowtify").
			Build()
	}

	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	if c.debug {
		serviceLogger.Debug("backend request", "method", method, "path", path)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		serviceLogger.Error("backend request failed",
			"error", err,
			"method", method,
			"path", path)
		return nil, errors.Newf("backend is not reachable: %w", err).
			Category(errors.CategoryNetwork).
			NetworkContext(url, c.httpClient.Timeout).
			Context("path", path).
			Component("egrowtify").
			Build()
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		// The backend answered, then the reply broke off. Not "not
		// reachable": this must surface rather than be swallowed by
		// the quota tracker's unreachable path.
		return nil, errors.Newf("failed to read response body: %w", err).
			Category(errors.CategoryHTTP).
			Context("path", path).
			Context("status_code", resp.StatusCode).
			Component("egrowtify").
			Build()
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.errorFromResponse(path, resp.StatusCode, respBody)
	}

	if c.debug {
		serviceLogger.Debug("backend response",
			"path", path,
			"status_code", resp.StatusCode,
			"duration_ms", time.Since(start).Milliseconds(),
			"response_size", len(respBody))
	}

	return respBody, nil
}

// errorFromResponse builds a categorized error from a non-2xx response,
// preferring the backend-supplied message when one is present.
func (c *Client) errorFromResponse(path string, statusCode int, body []byte) error {
	message := "an error occurred during the request"
	var envelope apiError
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != "" {
		message = envelope.Error
	}

	category := errors.CategoryHTTP
	if statusCode == http.StatusForbidden {
		category = errors.CategoryLimit
		serviceLogger.Warn("backend reported quota exceeded",
			"path", path,
			"needs_payment", envelope.NeedsPayment)
	} else if statusCode == http.StatusNotFound {
		category = errors.CategoryNotFound
	} else {
		serviceLogger.Warn("backend rejected request",
			"path", path,
			"status_code", statusCode,
			"message", message)
	}

	return errors.Newf("%s", message).
		Category(category).
		Context("status_code", statusCode).
		Context("path", path).
		Context("backend_message", envelope.Error).
		Component("egrowtify").
		Build()
}
