package codec

import (
	"bytes"
	"fmt"
	"image"
	"io"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/avif"
)

type Decoded struct {
	Image  image.Image
	Width  int
	Height int
}

// Decode reads any format imaging understands. EXIF orientation is left
// alone so reported dimensions match the stored pixels.
func Decode(data []byte) (*Decoded, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	return &Decoded{Image: img, Width: b.Dx(), Height: b.Dy()}, nil
}

// Fit scales img down to fit inside maxWidth x maxHeight keeping the aspect
// ratio. Smaller images are returned unscaled.
func Fit(img image.Image, maxWidth, maxHeight int) image.Image {
	return imaging.Fit(img, maxWidth, maxHeight, imaging.Lanczos)
}

type AVIFEncoder struct {
	speed int
}

// NewAVIFEncoder takes an encoder speed in [0,10]; higher is faster.
func NewAVIFEncoder(speed int) *AVIFEncoder {
	return &AVIFEncoder{speed: speed}
}

func (e *AVIFEncoder) Encode(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := e.encodeTo(&buf, img, quality); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (e *AVIFEncoder) encodeTo(w io.Writer, img image.Image, quality int) error {
	if quality < 0 || quality > 100 {
		return fmt.Errorf("quality %d out of range", quality)
	}
	return avif.Encode(w, img, avif.Options{
		Quality:           quality,
		QualityAlpha:      quality,
		Speed:             e.speed,
		ChromaSubsampling: image.YCbCrSubsampleRatio420,
	})
}

func (e *AVIFEncoder) Extension() string {
	return ".avif"
}
