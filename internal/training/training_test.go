package training

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Johnlouiee/openai-egrowtify/internal/conf"
	"github.com/Johnlouiee/openai-egrowtify/internal/egrowtify"
	"github.com/Johnlouiee/openai-egrowtify/internal/errors"
	"github.com/Johnlouiee/openai-egrowtify/internal/imagefile"
)

// fakeBackend implements Submitter and Generator with canned responses.
// When block is set, calls park on it until the test releases the channel.
type fakeBackend struct {
	mu sync.Mutex

	submitResponse *egrowtify.TrainingResponse
	submitErr      error
	submitted      []*egrowtify.TrainingRecord

	generated   []*egrowtify.GeneratedInfo
	generateErr error
	generateN   int

	block chan struct{}
}

func (f *fakeBackend) SubmitTraining(_ context.Context, record *egrowtify.TrainingRecord) (*egrowtify.TrainingResponse, error) {
	f.mu.Lock()
	f.submitted = append(f.submitted, record)
	block := f.block
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	return f.submitResponse, nil
}

func (f *fakeBackend) GenerateTrainingInfo(_ context.Context, _ *imagefile.Image, _ string) (*egrowtify.GeneratedInfo, error) {
	f.mu.Lock()
	n := f.generateN
	f.generateN++
	block := f.block
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	if f.generateErr != nil {
		return nil, f.generateErr
	}
	if n < len(f.generated) {
		return f.generated[n], nil
	}
	return &egrowtify.GeneratedInfo{}, nil
}

func testImage(t *testing.T) *imagefile.Image {
	t.Helper()
	png := append([]byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}, make([]byte, 64)...)
	settings := &conf.Settings{}
	settings.Image.MaxSizeBytes = 10 * 1024 * 1024
	settings.Image.AcceptedTypes = []string{"jpeg", "jpg", "png", "gif", "webp"}
	img, err := imagefile.NewIntake(settings).Select("leaf.png", png)
	require.NoError(t, err)
	return img
}

func commonNamesOf(t *testing.T, raw string) egrowtify.StringOrList {
	t.Helper()
	var names egrowtify.StringOrList
	require.NoError(t, names.UnmarshalJSON([]byte(raw)))
	return names
}

func TestOpenSeedsForm(t *testing.T) {
	w := NewWorkflow(&fakeBackend{}, &fakeBackend{})
	assert.Equal(t, StateIdle, w.State())

	seed := &egrowtify.TrainingRecord{
		PlantName:      "Water Spinach",
		ScientificName: "Ipomoea aquatica",
		CommonNames:    []string{"Water Spinach", "Kangkong"},
	}
	require.NoError(t, w.Open(seed, testImage(t)))

	assert.Equal(t, StateFormOpen, w.State())
	form := w.Form()
	assert.Equal(t, "Water Spinach", form.PlantName)
	assert.Equal(t, "Ipomoea aquatica", form.ScientificName)
	assert.Equal(t, "Water Spinach, Kangkong", form.CommonNames)
}

func TestOpenWithoutSeedStartsBlank(t *testing.T) {
	w := NewWorkflow(&fakeBackend{}, &fakeBackend{})
	require.NoError(t, w.Open(nil, nil))
	assert.Equal(t, Form{}, w.Form())
}

func TestCancelDiscardsEverything(t *testing.T) {
	w := NewWorkflow(&fakeBackend{}, &fakeBackend{})
	require.NoError(t, w.Open(&egrowtify.TrainingRecord{PlantName: "Basil"}, testImage(t)))

	w.Cancel()
	assert.Equal(t, StateIdle, w.State())
	assert.Equal(t, Form{}, w.Form())
}

func TestSubmitRequiresPlantName(t *testing.T) {
	backend := &fakeBackend{}
	w := NewWorkflow(backend, backend)
	require.NoError(t, w.Open(nil, testImage(t)))
	require.NoError(t, w.SetForm(Form{ScientificName: "Ocimum basilicum"}))

	_, err := w.Submit(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
	assert.Equal(t, StateFormOpen, w.State())
	assert.Empty(t, backend.submitted, "invalid form must not reach the backend")
}

func TestSubmitSuccess(t *testing.T) {
	backend := &fakeBackend{
		submitResponse: &egrowtify.TrainingResponse{Success: true, Message: "queued", SubmissionID: "sub-42"},
	}
	w := NewWorkflow(backend, backend)
	img := testImage(t)
	require.NoError(t, w.Open(nil, img))
	require.NoError(t, w.SetForm(Form{
		PlantName:   "  Basil  ",
		CommonNames: "Sweet Basil, Thai Basil,  ",
		PlantType:   "herb",
	}))

	response, err := w.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateSubmitted, w.State())
	assert.Equal(t, "sub-42", response.SubmissionID)
	assert.Same(t, response, w.Response())

	require.Len(t, backend.submitted, 1)
	record := backend.submitted[0]
	assert.Equal(t, "Basil", record.PlantName)
	assert.Equal(t, []string{"Sweet Basil", "Thai Basil"}, record.CommonNames)
	assert.Equal(t, img.RawBase64(), record.ImageData)
}

func TestSubmitFailurePreservesForm(t *testing.T) {
	backend := &fakeBackend{
		submitErr: errors.Newf("backend is not reachable").Category(errors.CategoryNetwork).Build(),
	}
	w := NewWorkflow(backend, backend)
	require.NoError(t, w.Open(nil, nil))
	require.NoError(t, w.SetForm(Form{PlantName: "Basil", Description: "fragrant herb"}))

	_, err := w.Submit(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateSubmitFailed, w.State())
	assert.True(t, errors.IsUnreachable(w.LastError()))

	require.NoError(t, w.Reopen())
	assert.Equal(t, StateFormOpen, w.State())
	form := w.Form()
	assert.Equal(t, "Basil", form.PlantName)
	assert.Equal(t, "fragrant herb", form.Description)
}

func TestSubmitOnlyFromOpenForm(t *testing.T) {
	w := NewWorkflow(&fakeBackend{}, &fakeBackend{})
	_, err := w.Submit(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryState))
}

func TestAutofillMergePolicy(t *testing.T) {
	backend := &fakeBackend{
		generated: []*egrowtify.GeneratedInfo{
			{
				PlantName:      "Water Spinach",
				ScientificName: "Ipomoea aquatica",
				CommonNames:    commonNamesOf(t, `["Water Spinach","Kangkong"]`),
				PlantType:      "Vegetable",
				Description:    "Fast-growing leafy vegetable",
			},
			{
				// Sparse second pass: only description changes.
				Description: "Semi-aquatic leafy vegetable",
			},
		},
	}
	w := NewWorkflow(backend, backend)
	require.NoError(t, w.Open(nil, testImage(t)))
	require.NoError(t, w.SetForm(Form{PlantName: "my guess", CareInstructions: "water often"}))

	require.NoError(t, w.Autofill(context.Background()))
	form := w.Form()
	assert.Equal(t, "Water Spinach", form.PlantName, "non-empty suggestion overwrites")
	assert.Equal(t, "Water Spinach, Kangkong", form.CommonNames)
	assert.Equal(t, "vegetable", form.PlantType)
	assert.Equal(t, "water often", form.CareInstructions, "empty suggestion preserves the user's value")

	require.NoError(t, w.Autofill(context.Background()))
	form = w.Form()
	assert.Equal(t, "Semi-aquatic leafy vegetable", form.Description)
	assert.Equal(t, "Water Spinach", form.PlantName, "fields absent from the second pass survive")
	assert.Equal(t, StateFormOpen, w.State())
}

func TestAutofillCommonNamesAsString(t *testing.T) {
	backend := &fakeBackend{
		generated: []*egrowtify.GeneratedInfo{
			{CommonNames: commonNamesOf(t, `"Sweet Basil, Thai Basil"`)},
		},
	}
	w := NewWorkflow(backend, backend)
	require.NoError(t, w.Open(nil, nil))

	require.NoError(t, w.Autofill(context.Background()))
	assert.Equal(t, "Sweet Basil, Thai Basil", w.Form().CommonNames)
}

func TestAutofillFailureReturnsToOpenForm(t *testing.T) {
	backend := &fakeBackend{
		generateErr: errors.Newf("backend is not reachable").Category(errors.CategoryNetwork).Build(),
	}
	w := NewWorkflow(backend, backend)
	require.NoError(t, w.Open(nil, nil))
	require.NoError(t, w.SetForm(Form{PlantName: "Basil"}))

	err := w.Autofill(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateFormOpen, w.State())
	assert.Equal(t, "Basil", w.Form().PlantName)
}

func TestAutofillBlocksConcurrentEdits(t *testing.T) {
	release := make(chan struct{})
	backend := &fakeBackend{block: release}
	w := NewWorkflow(backend, backend)
	require.NoError(t, w.Open(nil, nil))

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Autofill(context.Background())
	}()

	require.Eventually(t, func() bool {
		return w.State() == StateAutofillPending
	}, time.Second, 5*time.Millisecond)

	err := w.SetForm(Form{PlantName: "Basil"})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryState))

	_, err = w.Submit(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryState))

	close(release)
	<-done
	assert.Equal(t, StateFormOpen, w.State())
}

func TestSplitCommonNames(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"plain list", "Water Spinach, Kangkong", []string{"Water Spinach", "Kangkong"}},
		{"trailing comma and padding", "Water Spinach, Kangkong,  ", []string{"Water Spinach", "Kangkong"}},
		{"single name", "Basil", []string{"Basil"}},
		{"empty", "", nil},
		{"only separators", " , ,", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitCommonNames(tt.text))
		})
	}
}
