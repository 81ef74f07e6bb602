// Package analysis coordinates a single analysis attempt: it gates the
// request on the quota tracker, drives the session state machine, and seeds
// the training workflow when the backend flags a result as unrecognized.
package analysis

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Johnlouiee/openai-egrowtify/internal/conf"
	"github.com/Johnlouiee/openai-egrowtify/internal/egrowtify"
	"github.com/Johnlouiee/openai-egrowtify/internal/errors"
	"github.com/Johnlouiee/openai-egrowtify/internal/imagefile"
	"github.com/Johnlouiee/openai-egrowtify/internal/logging"
	"github.com/Johnlouiee/openai-egrowtify/internal/quota"
)

var (
	logger          *slog.Logger
	serviceLevelVar = new(slog.LevelVar)
)

func init() {
	var err error
	var closeFn func() error
	logger, closeFn, err = logging.NewFileLogger("logs/analysis.log", "analysis", serviceLevelVar)
	if err != nil || logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil)).With("service", "analysis")
	}
	_ = closeFn // process-lifetime logger
}

// Status is the lifecycle state of an analysis session.
type Status string

const (
	StatusIdle          Status = "idle"
	StatusImageSelected Status = "imageSelected"
	StatusAnalyzing     Status = "analyzing"
	StatusResultReady   Status = "resultReady"
)

// Analyzer is the backend surface the dispatcher needs. *egrowtify.Client
// satisfies it.
type Analyzer interface {
	Analyze(ctx context.Context, domain egrowtify.Domain, img *imagefile.Image, tier egrowtify.Tier) (*egrowtify.AnalysisResult, error)
	InvalidateUsage(domain egrowtify.Domain)
}

// QuotaGate is the tracker surface the dispatcher needs. *quota.Tracker
// satisfies it.
type QuotaGate interface {
	Gate(domain egrowtify.Domain) (quota.Decision, quota.Snapshot)
	RefreshDomain(ctx context.Context, domain egrowtify.Domain) error
}

// Session holds the state of one analysis lifecycle for a fixed domain and
// tier. Switching domains means discarding the session and starting a new
// one. All methods are safe for concurrent use.
type Session struct {
	mu sync.Mutex

	id     uuid.UUID
	domain egrowtify.Domain
	tier   egrowtify.Tier

	status Status
	image  *imagefile.Image
	result *egrowtify.AnalysisResult

	// generation invalidates in-flight responses across Reset calls.
	generation uint64

	trainingPrompted bool
}

// NewSession starts an idle session for the given domain and tier.
func NewSession(domain egrowtify.Domain, tier egrowtify.Tier) (*Session, error) {
	if !domain.Valid() {
		return nil, errors.Newf("unknown analysis domain: %s", domain).
			Category(errors.CategoryValidation).
			Context("domain", string(domain)).
			Build()
	}
	return &Session{
		id:     uuid.New(),
		domain: domain,
		tier:   tier,
		status: StatusIdle,
	}, nil
}

// ID returns the session's stable identity.
func (s *Session) ID() uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// Domain returns the analysis subject this session is bound to.
func (s *Session) Domain() egrowtify.Domain {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.domain
}

// Tier returns the subscription tier the session analyzes at.
func (s *Session) Tier() egrowtify.Tier {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tier
}

// Status returns the current lifecycle state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Image returns the currently selected image, if any.
func (s *Session) Image() *imagefile.Image {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.image
}

// Result returns the last successful result, or nil before the first one.
func (s *Session) Result() *egrowtify.AnalysisResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// SetImage selects an image for analysis, replacing any previous selection
// and discarding any previous result. Rejected while an analysis is
// in flight.
func (s *Session) SetImage(img *imagefile.Image) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusAnalyzing {
		return s.inFlightError("set image")
	}
	s.image = img
	s.result = nil
	s.status = StatusImageSelected
	return nil
}

// ClearImage drops the selected image and result, returning to idle.
// Rejected while an analysis is in flight.
func (s *Session) ClearImage() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusAnalyzing {
		return s.inFlightError("clear image")
	}
	s.image = nil
	s.result = nil
	s.status = StatusIdle
	return nil
}

// Reset returns the session to idle and abandons any in-flight analysis:
// a response arriving for a pre-reset request is silently discarded.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.image = nil
	s.result = nil
	s.status = StatusIdle
	s.trainingPrompted = false
}

// DismissTrainingPrompt suppresses further training prompts for the
// lifetime of this session.
func (s *Session) DismissTrainingPrompt() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trainingPrompted = true
}

func (s *Session) inFlightError(op string) error {
	return errors.Newf("cannot %s while an analysis is in flight", op).
		Category(errors.CategoryState).
		Context("session_id", s.id.String()).
		Context("status", string(s.status)).
		Build()
}

// Outcome describes a completed analysis beyond the raw result.
type Outcome struct {
	Result *egrowtify.AnalysisResult

	// LowBalance is set when the pre-flight gate saw the remaining
	// allowance at or below the warning threshold.
	LowBalance bool
	// Remaining is the gate's remaining-total at dispatch time.
	Remaining int

	// PromptTraining asks the caller to open the training workflow.
	// TrainingSeed carries the pre-filled record when it does.
	PromptTraining bool
	TrainingSeed   *egrowtify.TrainingRecord
}

// Dispatcher runs analyses against the backend on behalf of sessions.
type Dispatcher struct {
	analyzer Analyzer
	tracker  QuotaGate

	refreshTimeout time.Duration
	refreshWG      sync.WaitGroup
}

// NewDispatcher wires a dispatcher to the backend client and quota tracker.
func NewDispatcher(analyzer Analyzer, tracker QuotaGate, settings *conf.Settings) *Dispatcher {
	return &Dispatcher{
		analyzer:       analyzer,
		tracker:        tracker,
		refreshTimeout: settings.Backend.Timeout,
	}
}

// Analyze runs the session's selected image through the backend. It refuses
// when no image is selected, when an analysis is already in flight, or when
// the quota gate denies the attempt. On backend failure the session returns
// to imageSelected so the same image can be retried. A nil, nil return means
// the session was reset mid-flight and the response was discarded.
func (d *Dispatcher) Analyze(ctx context.Context, session *Session) (*Outcome, error) {
	session.mu.Lock()
	if session.status == StatusAnalyzing {
		session.mu.Unlock()
		return nil, errors.Newf("an analysis is already in flight for this session").
			Category(errors.CategoryState).
			Context("session_id", session.id.String()).
			Build()
	}
	if session.image == nil {
		session.mu.Unlock()
		return nil, errors.Newf("no image selected").
			Category(errors.CategoryValidation).
			Context("session_id", session.id.String()).
			Build()
	}

	decision, snapshot := d.tracker.Gate(session.domain)
	if decision == quota.Deny {
		session.mu.Unlock()
		return nil, errors.Newf("no analyses remaining for %s", session.domain).
			Category(errors.CategoryLimit).
			Context("domain", string(session.domain)).
			Context("remaining", snapshot.RemainingTotal).
			Build()
	}

	domain := session.domain
	tier := session.tier
	img := session.image
	generation := session.generation
	session.status = StatusAnalyzing
	session.mu.Unlock()

	logger.Info("dispatching analysis",
		"session_id", session.id.String(),
		"domain", domain,
		"tier", tier,
		"remaining", snapshot.RemainingTotal)

	result, err := d.analyzer.Analyze(ctx, domain, img, tier)

	session.mu.Lock()
	defer session.mu.Unlock()

	if session.generation != generation {
		// Session was reset while the request was outstanding; the
		// response belongs to a lifecycle that no longer exists.
		logger.Debug("discarding stale analysis response",
			"session_id", session.id.String(),
			"generation", generation)
		return nil, nil
	}

	if err != nil {
		session.status = StatusImageSelected
		logger.Warn("analysis failed",
			"session_id", session.id.String(),
			"domain", domain,
			"error", err)
		if errors.IsLimit(err) {
			// The backend's count diverged from the tracker's view;
			// re-fetch so the gate stops approving doomed dispatches.
			d.refreshQuota(domain)
		}
		return nil, err
	}

	session.result = result
	session.status = StatusResultReady

	outcome := &Outcome{
		Result:     result,
		LowBalance: decision == quota.AllowLowBalance,
		Remaining:  snapshot.RemainingTotal,
	}

	if result.NeedsTraining() && !session.trainingPrompted {
		session.trainingPrompted = true
		outcome.PromptTraining = true
		outcome.TrainingSeed = seedTrainingRecord(result.Plant, img)
	}

	// The backend consumed a credit; refresh the authoritative count in
	// the background so the result surfaces without waiting on it.
	d.refreshQuota(domain)

	return outcome, nil
}

// refreshQuota drops the cached usage status and re-fetches the domain's
// quota in the background. Runs after every completed attempt that changed
// or contradicted the backend's count.
func (d *Dispatcher) refreshQuota(domain egrowtify.Domain) {
	d.refreshWG.Add(1)
	go func() {
		defer d.refreshWG.Done()
		refreshCtx, cancel := context.WithTimeout(context.Background(), d.refreshTimeout)
		defer cancel()
		d.analyzer.InvalidateUsage(domain)
		if refreshErr := d.tracker.RefreshDomain(refreshCtx, domain); refreshErr != nil {
			logger.Warn("post-analysis quota refresh failed",
				"domain", domain,
				"error", refreshErr)
		}
	}()
}

// Wait blocks until background quota refreshes started by completed
// analyses have finished.
func (d *Dispatcher) Wait() {
	d.refreshWG.Wait()
}

// seedTrainingRecord pre-fills a training contribution from a low-confidence
// identification so the user corrects rather than retypes.
func seedTrainingRecord(result *egrowtify.PlantResult, img *imagefile.Image) *egrowtify.TrainingRecord {
	record := &egrowtify.TrainingRecord{
		ScientificName: result.ScientificName,
	}
	if !strings.EqualFold(result.PlantName, "unknown") {
		record.PlantName = result.PlantName
	}
	if len(result.CommonNames) > 0 {
		record.CommonNames = append([]string(nil), result.CommonNames...)
	}
	if img != nil {
		record.ImageData = img.RawBase64()
	}
	return record
}
