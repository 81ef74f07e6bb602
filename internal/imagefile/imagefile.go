// Package imagefile validates and encodes captured images for analysis and training.
package imagefile

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/Johnlouiee/openai-egrowtify/internal/conf"
	"github.com/Johnlouiee/openai-egrowtify/internal/errors"
)

// Validation failure reasons, reported as sentinel errors so callers can
// branch on them without string matching.
var (
	ErrTooLarge        = errors.NewStd("image exceeds maximum allowed size")
	ErrUnsupportedType = errors.NewStd("unsupported image type")
	ErrEmpty           = errors.NewStd("image file is empty")
)

// Image is a validated, encoded image ready for transmission.
// The base64 preview is materialized lazily on first use.
type Image struct {
	name     string
	mimeType string
	data     []byte

	previewOnce sync.Once
	preview     string
}

// Intake validates raw image files against the configured constraints.
type Intake struct {
	maxSize  int64
	accepted map[string]struct{}
}

// NewIntake creates an Intake from settings.
func NewIntake(settings *conf.Settings) *Intake {
	accepted := make(map[string]struct{}, len(settings.Image.AcceptedTypes))
	for _, t := range settings.Image.AcceptedTypes {
		accepted[strings.ToLower(t)] = struct{}{}
	}
	return &Intake{
		maxSize:  settings.Image.MaxSizeBytes,
		accepted: accepted,
	}
}

// Select validates and encodes a raw image file. On violation it returns a
// validation error and no Image; callers keep whatever image they already held.
func (in *Intake) Select(filename string, data []byte) (*Image, error) {
	if len(data) == 0 {
		return nil, errors.New(ErrEmpty).
			Category(errors.CategoryValidation).
			Component("imagefile").
			Build()
	}

	if int64(len(data)) > in.maxSize {
		return nil, errors.New(fmt.Errorf("%w: %d bytes (max %d)", ErrTooLarge, len(data), in.maxSize)).
			Category(errors.CategoryValidation).
			Component("imagefile").
			ImageContext("", int64(len(data))).
			Build()
	}

	mimeType := http.DetectContentType(data)
	subtype := strings.TrimPrefix(strings.ToLower(mimeType), "image/")
	if subtype == mimeType {
		// Not an image/* content type at all
		return nil, errors.New(fmt.Errorf("%w: %s", ErrUnsupportedType, mimeType)).
			Category(errors.CategoryValidation).
			Component("imagefile").
			ImageContext(mimeType, int64(len(data))).
			Build()
	}
	if _, ok := in.accepted[subtype]; !ok {
		return nil, errors.New(fmt.Errorf("%w: image/%s", ErrUnsupportedType, subtype)).
			Category(errors.CategoryValidation).
			Component("imagefile").
			ImageContext(mimeType, int64(len(data))).
			Build()
	}

	return &Image{
		name:     filename,
		mimeType: mimeType,
		data:     data,
	}, nil
}

// Name returns the original file name.
func (img *Image) Name() string {
	return img.name
}

// MIMEType returns the detected MIME type, e.g. "image/jpeg".
func (img *Image) MIMEType() string {
	return img.mimeType
}

// Data returns the binary payload for transmission.
func (img *Image) Data() []byte {
	return img.data
}

// Size returns the payload size in bytes.
func (img *Image) Size() int64 {
	return int64(len(img.data))
}

// Preview returns a data-URI base64 encoding suitable for inline display.
// The encoding is computed once and reused.
func (img *Image) Preview() string {
	img.previewOnce.Do(func() {
		img.preview = fmt.Sprintf("data:%s;base64,%s",
			img.mimeType, base64.StdEncoding.EncodeToString(img.data))
	})
	return img.preview
}

// RawBase64 returns the base64 payload with any data-URI prefix stripped,
// the form the training submission endpoint expects.
func (img *Image) RawBase64() string {
	return StripDataURI(img.Preview())
}

// StripDataURI removes a "data:<mime>;base64," prefix when present.
func StripDataURI(s string) string {
	if strings.HasPrefix(s, "data:") {
		if idx := strings.Index(s, ","); idx >= 0 {
			return s[idx+1:]
		}
	}
	return s
}
