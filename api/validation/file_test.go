package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectImageType(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		want    ImageType
		wantErr error
	}{
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10}, ImageTypeJPEG, nil},
		{"png", []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0x00}, ImageTypePNG, nil},
		{"gif89a", []byte("GIF89a\x01\x00"), ImageTypeGIF, nil},
		{"gif87a", []byte("GIF87a\x01\x00"), ImageTypeGIF, nil},
		{"tiff little endian", []byte{'I', 'I', 0x2A, 0x00, 0x08}, ImageTypeTIFF, nil},
		{"tiff big endian", []byte{'M', 'M', 0x00, 0x2A, 0x00}, ImageTypeTIFF, nil},
		{"bmp", []byte("BM\x36\x00"), ImageTypeBMP, nil},
		{"pdf", []byte("%PDF-1.7"), "", ErrInvalidFileType},
		{"truncated png", []byte{0x89, 'P', 'N'}, "", ErrInvalidFileType},
		{"empty", nil, "", ErrEmptyFile},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DetectImageType(tt.data)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateUpload_Size(t *testing.T) {
	jpeg := append([]byte{0xFF, 0xD8, 0xFF}, make([]byte, 97)...)

	_, err := ValidateUpload(jpeg, 50)
	assert.ErrorIs(t, err, ErrFileTooLarge)

	got, err := ValidateUpload(jpeg, 100)
	assert.NoError(t, err)
	assert.Equal(t, ImageTypeJPEG, got)
}
