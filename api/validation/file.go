package validation

import "bytes"

type ImageType string

const (
	ImageTypeJPEG ImageType = "jpeg"
	ImageTypePNG  ImageType = "png"
	ImageTypeGIF  ImageType = "gif"
	ImageTypeTIFF ImageType = "tiff"
	ImageTypeBMP  ImageType = "bmp"
)

type signature struct {
	imageType ImageType
	magic     []byte
}

var signatures = []signature{
	{ImageTypeJPEG, []byte{0xFF, 0xD8, 0xFF}},
	{ImageTypePNG, []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}},
	{ImageTypeGIF, []byte("GIF87a")},
	{ImageTypeGIF, []byte("GIF89a")},
	{ImageTypeTIFF, []byte{0x49, 0x49, 0x2A, 0x00}},
	{ImageTypeTIFF, []byte{0x4D, 0x4D, 0x00, 0x2A}},
	{ImageTypeBMP, []byte("BM")},
}

// DetectImageType sniffs the leading bytes; file names and client supplied
// content types are not trusted.
func DetectImageType(data []byte) (ImageType, error) {
	if len(data) == 0 {
		return "", ErrEmptyFile
	}
	for _, s := range signatures {
		if bytes.HasPrefix(data, s.magic) {
			return s.imageType, nil
		}
	}
	return "", ErrInvalidFileType
}

// ValidateUpload checks size and content of an uploaded image.
func ValidateUpload(data []byte, maxSize int64) (ImageType, error) {
	if maxSize > 0 && int64(len(data)) > maxSize {
		return "", ErrFileTooLarge
	}
	return DetectImageType(data)
}
