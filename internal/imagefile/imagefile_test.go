package imagefile

import (
	"bytes"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Johnlouiee/openai-egrowtify/internal/conf"
	"github.com/Johnlouiee/openai-egrowtify/internal/errors"
)

func testIntake(t *testing.T) *Intake {
	t.Helper()
	s := &conf.Settings{}
	s.Image.MaxSizeBytes = 10 * 1024 * 1024
	s.Image.AcceptedTypes = []string{"jpeg", "jpg", "png", "gif", "webp"}
	return NewIntake(s)
}

func pngBytes(size int) []byte {
	header := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
	if size < len(header) {
		size = len(header)
	}
	return append(header, bytes.Repeat([]byte{0}, size-len(header))...)
}

func jpegBytes() []byte {
	return append([]byte{0xFF, 0xD8, 0xFF, 0xE0}, bytes.Repeat([]byte{0}, 32)...)
}

func TestSelectAcceptsSupportedTypes(t *testing.T) {
	in := testIntake(t)

	tests := []struct {
		name     string
		data     []byte
		wantMIME string
	}{
		{"png", pngBytes(64), "image/png"},
		{"jpeg", jpegBytes(), "image/jpeg"},
		{"gif", append([]byte("GIF89a"), bytes.Repeat([]byte{0}, 16)...), "image/gif"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := in.Select("leaf."+tt.name, tt.data)
			require.NoError(t, err)
			assert.Equal(t, tt.wantMIME, img.MIMEType())
			assert.Equal(t, tt.data, img.Data())
		})
	}
}

func TestSelectRejectsTooLarge(t *testing.T) {
	in := testIntake(t)

	_, err := in.Select("huge.png", pngBytes(10*1024*1024+1))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTooLarge)
	assert.True(t, errors.IsValidation(err))
}

func TestSelectRejectsUnsupportedType(t *testing.T) {
	in := testIntake(t)

	tests := []struct {
		name string
		data []byte
	}{
		{"text", []byte("definitely not an image, just some plain text content")},
		{"bmp", append([]byte{'B', 'M'}, bytes.Repeat([]byte{0}, 32)...)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := in.Select("file", tt.data)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrUnsupportedType)
			assert.True(t, errors.IsValidation(err))
		})
	}
}

func TestSelectRejectsEmpty(t *testing.T) {
	in := testIntake(t)

	_, err := in.Select("empty.png", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestPreviewIsLazyDataURI(t *testing.T) {
	in := testIntake(t)

	data := pngBytes(64)
	img, err := in.Select("leaf.png", data)
	require.NoError(t, err)

	preview := img.Preview()
	assert.True(t, strings.HasPrefix(preview, "data:image/png;base64,"))
	// Repeated calls return the identical materialized string
	assert.Equal(t, preview, img.Preview())

	decoded, err := base64.StdEncoding.DecodeString(img.RawBase64())
	require.NoError(t, err)
	assert.Equal(t, data, decoded)
}

func TestStripDataURI(t *testing.T) {
	assert.Equal(t, "abc123", StripDataURI("data:image/png;base64,abc123"))
	assert.Equal(t, "abc123", StripDataURI("abc123"))
	assert.Equal(t, "", StripDataURI("data:image/png;base64,"))
}
