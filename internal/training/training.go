// Package training drives the contribute-a-plant workflow that opens when
// an identification comes back too uncertain to trust. It owns the form
// lifecycle, the AI autofill merge, and submission to the backend.
package training

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/Johnlouiee/openai-egrowtify/internal/egrowtify"
	"github.com/Johnlouiee/openai-egrowtify/internal/errors"
	"github.com/Johnlouiee/openai-egrowtify/internal/imagefile"
	"github.com/Johnlouiee/openai-egrowtify/internal/logging"
)

var (
	logger          *slog.Logger
	serviceLevelVar = new(slog.LevelVar)
)

func init() {
	var err error
	var closeFn func() error
	logger, closeFn, err = logging.NewFileLogger("logs/training.log", "training", serviceLevelVar)
	if err != nil || logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil)).With("service", "training")
	}
	_ = closeFn // process-lifetime logger
}

// State is the training workflow's lifecycle state.
type State string

const (
	StateIdle            State = "idle"
	StateFormOpen        State = "formOpen"
	StateAutofillPending State = "autofillPending"
	StateSubmitting      State = "submitting"
	StateSubmitted       State = "submitted"
	StateSubmitFailed    State = "submitFailed"
)

// Form is the editable training contribution. CommonNames holds the
// comma-separated text as typed; it is split into a list at submit time.
type Form struct {
	PlantName        string
	ScientificName   string
	CommonNames      string
	PlantType        string
	Description      string
	CareInstructions string
}

// Submitter accepts completed training records. *egrowtify.Client
// satisfies it.
type Submitter interface {
	SubmitTraining(ctx context.Context, record *egrowtify.TrainingRecord) (*egrowtify.TrainingResponse, error)
}

// Generator suggests form values from the analyzed image. *egrowtify.Client
// satisfies it.
type Generator interface {
	GenerateTrainingInfo(ctx context.Context, img *imagefile.Image, knownName string) (*egrowtify.GeneratedInfo, error)
}

// Workflow is the training form state machine. All methods are safe for
// concurrent use.
type Workflow struct {
	mu sync.Mutex

	submitter Submitter
	generator Generator

	state State
	form  Form
	image *imagefile.Image

	response *egrowtify.TrainingResponse
	lastErr  error
}

// NewWorkflow returns an idle workflow bound to the backend surfaces.
func NewWorkflow(submitter Submitter, generator Generator) *Workflow {
	return &Workflow{
		submitter: submitter,
		generator: generator,
		state:     StateIdle,
	}
}

// State returns the current lifecycle state.
func (w *Workflow) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Form returns a copy of the current form values.
func (w *Workflow) Form() Form {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.form
}

// Response returns the backend acknowledgement after a successful submit.
func (w *Workflow) Response() *egrowtify.TrainingResponse {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.response
}

// LastError returns the error from the most recent failed submission, or
// nil when none failed.
func (w *Workflow) LastError() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastErr
}

// Open starts a new contribution, optionally pre-filled from a
// low-confidence identification. Allowed from idle or either terminal
// state; rejected while an autofill or submit is in flight.
func (w *Workflow) Open(seed *egrowtify.TrainingRecord, img *imagefile.Image) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	switch w.state {
	case StateAutofillPending, StateSubmitting:
		return w.busyError("open the form")
	}

	w.form = Form{}
	if seed != nil {
		w.form.PlantName = seed.PlantName
		w.form.ScientificName = seed.ScientificName
		w.form.CommonNames = strings.Join(seed.CommonNames, ", ")
		w.form.PlantType = seed.PlantType
		w.form.Description = seed.Description
		w.form.CareInstructions = seed.CareInstructions
	}
	w.image = img
	w.response = nil
	w.lastErr = nil
	w.state = StateFormOpen
	return nil
}

// SetForm replaces the form contents with the user's edits. Only valid
// while the form is open.
func (w *Workflow) SetForm(form Form) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != StateFormOpen {
		return w.stateError("edit the form", StateFormOpen)
	}
	w.form = form
	return nil
}

// Cancel abandons the contribution, discarding the form and image.
func (w *Workflow) Cancel() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.form = Form{}
	w.image = nil
	w.response = nil
	w.lastErr = nil
	w.state = StateIdle
}

// Reopen returns a failed submission to the open form, preserving every
// field for another attempt.
func (w *Workflow) Reopen() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != StateSubmitFailed {
		return w.stateError("reopen the form", StateSubmitFailed)
	}
	w.state = StateFormOpen
	return nil
}

// Autofill asks the AI assistant for suggested values and merges them in:
// a non-empty suggestion overwrites the field, an empty one leaves the
// user's value alone. Repeatable.
func (w *Workflow) Autofill(ctx context.Context) error {
	w.mu.Lock()
	if w.state != StateFormOpen {
		w.mu.Unlock()
		return w.stateError("request autofill", StateFormOpen)
	}
	img := w.image
	knownName := w.form.PlantName
	w.state = StateAutofillPending
	w.mu.Unlock()

	info, err := w.generator.GenerateTrainingInfo(ctx, img, knownName)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.state = StateFormOpen
	if err != nil {
		logger.Warn("autofill failed", "error", err)
		return err
	}

	mergeGenerated(&w.form, info)
	logger.Info("autofill merged", "plant_name", w.form.PlantName)
	return nil
}

// Submit validates the form and sends it to the backend. The plant name is
// the only required field; a missing one fails fast without leaving the
// open form.
func (w *Workflow) Submit(ctx context.Context) (*egrowtify.TrainingResponse, error) {
	w.mu.Lock()
	if w.state != StateFormOpen {
		w.mu.Unlock()
		return nil, w.stateError("submit", StateFormOpen)
	}
	if strings.TrimSpace(w.form.PlantName) == "" {
		w.mu.Unlock()
		return nil, errors.Newf("plant name is required").
			Category(errors.CategoryValidation).
			Build()
	}

	record := w.buildRecord()
	w.state = StateSubmitting
	w.mu.Unlock()

	response, err := w.submitter.SubmitTraining(ctx, record)

	w.mu.Lock()
	defer w.mu.Unlock()
	if err != nil {
		w.state = StateSubmitFailed
		w.lastErr = err
		logger.Warn("training submission failed",
			"plant_name", record.PlantName,
			"error", err)
		return nil, err
	}

	w.state = StateSubmitted
	w.response = response
	logger.Info("training submission accepted",
		"plant_name", record.PlantName,
		"submission_id", response.SubmissionID)
	return response, nil
}

// buildRecord assembles the wire record from the form. Caller holds w.mu.
func (w *Workflow) buildRecord() *egrowtify.TrainingRecord {
	record := &egrowtify.TrainingRecord{
		PlantName:        strings.TrimSpace(w.form.PlantName),
		ScientificName:   strings.TrimSpace(w.form.ScientificName),
		CommonNames:      SplitCommonNames(w.form.CommonNames),
		PlantType:        w.form.PlantType,
		Description:      w.form.Description,
		CareInstructions: w.form.CareInstructions,
	}
	if w.image != nil {
		record.ImageData = w.image.RawBase64()
	}
	return record
}

func (w *Workflow) busyError(op string) error {
	return errors.Newf("cannot %s while a request is in flight", op).
		Category(errors.CategoryState).
		Context("state", string(w.state)).
		Build()
}

func (w *Workflow) stateError(op string, want State) error {
	return errors.Newf("cannot %s in state %s", op, w.state).
		Category(errors.CategoryState).
		Context("state", string(w.state)).
		Context("required_state", string(want)).
		Build()
}

// mergeGenerated applies the assistant's suggestions field by field.
func mergeGenerated(form *Form, info *egrowtify.GeneratedInfo) {
	if info == nil {
		return
	}
	if info.PlantName != "" {
		form.PlantName = info.PlantName
	}
	if info.ScientificName != "" {
		form.ScientificName = info.ScientificName
	}
	if !info.CommonNames.IsZero() {
		form.CommonNames = info.CommonNames.Text()
	}
	if info.PlantType != "" {
		form.PlantType = normalizePlantType(info.PlantType)
	}
	if info.Description != "" {
		form.Description = info.Description
	}
	if info.CareInstructions != "" {
		form.CareInstructions = info.CareInstructions
	}
}

// normalizePlantType lowercases a suggestion and keeps it only when it is
// part of the accepted vocabulary.
func normalizePlantType(suggestion string) string {
	normalized := strings.ToLower(strings.TrimSpace(suggestion))
	for _, t := range egrowtify.PlantTypes {
		if normalized == t {
			return normalized
		}
	}
	return "other"
}

// SplitCommonNames turns comma-separated text into a clean name list:
// entries are trimmed and empties dropped.
func SplitCommonNames(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	parts := strings.Split(text, ",")
	names := make([]string, 0, len(parts))
	for _, part := range parts {
		if name := strings.TrimSpace(part); name != "" {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil
	}
	return names
}
