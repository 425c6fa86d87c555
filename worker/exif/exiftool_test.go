package exif

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/barasher/go-exiftool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"imageConverter/worker/converter"
)

func requireExiftool(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("exiftool"); err != nil {
		t.Skip("exiftool not found on PATH")
	}
}

func writeTestJPEG(t *testing.T, path string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 4), uint8(y * 5), 90, 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
}

// tagSource writes camera-style metadata with a plain exiftool instance.
func tagSource(t *testing.T, path string, gps bool) {
	t.Helper()
	et, err := exiftool.NewExiftool(exiftool.NoPrintConversion())
	require.NoError(t, err)
	defer et.Close()

	fm := exiftool.EmptyFileMetadata()
	fm.File = path
	fm.SetString("Make", "Canon")
	fm.SetString("Model", "EOS R5")
	fm.SetString("Artist", "someone")
	fm.SetString("DateTimeOriginal", "2023:06:01 09:30:00")
	if gps {
		fm.SetFloat("GPSLatitude", 33.8568)
		fm.SetString("GPSLatitudeRef", "S")
		fm.SetFloat("GPSLongitude", 151.2153)
		fm.SetString("GPSLongitudeRef", "E")
	}
	batch := []exiftool.FileMetadata{fm}
	et.WriteMetadata(batch)
	require.NoError(t, batch[0].Err)
}

func TestTool_ExtractSourceMetadata(t *testing.T) {
	requireExiftool(t)

	tool, err := New("", zaptest.NewLogger(t))
	require.NoError(t, err)
	defer tool.Close()

	path := filepath.Join(t.TempDir(), "source.jpg")
	writeTestJPEG(t, path)
	tagSource(t, path, true)

	p, err := tool.Extract(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, "2023:06:01 09:30:00", p.DateTimeOriginal)
	assert.Equal(t, "Canon", p.Make)
	assert.Equal(t, "EOS R5", p.Model)
	assert.Equal(t, 64, p.Width)
	assert.Equal(t, 48, p.Height)
	require.NotNil(t, p.GPSLatitude)
	require.NotNil(t, p.GPSLongitude)
	assert.InDelta(t, -33.8568, *p.GPSLatitude, 1e-4)
	assert.InDelta(t, 151.2153, *p.GPSLongitude, 1e-4)
}

func TestTool_ExtractWithoutMetadata(t *testing.T) {
	requireExiftool(t)

	tool, err := New("", zaptest.NewLogger(t))
	require.NoError(t, err)
	defer tool.Close()

	path := filepath.Join(t.TempDir(), "bare.jpg")
	writeTestJPEG(t, path)

	p, err := tool.Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Empty(t, p.CaptureTime())
	assert.Nil(t, p.GPSLatitude)
}

func TestTool_WriteReplacesAllTags(t *testing.T) {
	requireExiftool(t)

	tool, err := New("", zaptest.NewLogger(t))
	require.NoError(t, err)
	defer tool.Close()

	tests := []struct {
		name string
		tags converter.Tags
	}{
		{
			name: "with gps",
			tags: converter.Tags{Width: 640, Height: 480, Timestamp: "2023:06:01 09:30:00", GPS: &converter.GPS{Latitude: -33.8568, Longitude: 151.2153}},
		},
		{
			name: "without gps",
			tags: converter.Tags{Width: 640, Height: 480, Timestamp: "2023:06:01 09:30:00"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "variant.jpg")
			writeTestJPEG(t, path)
			tagSource(t, path, true)

			require.NoError(t, tool.Write(context.Background(), path, tt.tags))

			p, err := tool.Extract(context.Background(), path)
			require.NoError(t, err)

			assert.Equal(t, tt.tags.Timestamp, p.DateTimeOriginal)
			assert.Empty(t, p.Make, "source tags must not leak")
			assert.Empty(t, p.Model, "source tags must not leak")
			if tt.tags.GPS != nil {
				require.NotNil(t, p.GPSLatitude)
				assert.InDelta(t, tt.tags.GPS.Latitude, *p.GPSLatitude, 1e-4)
				assert.InDelta(t, tt.tags.GPS.Longitude, *p.GPSLongitude, 1e-4)
			} else {
				assert.Nil(t, p.GPSLatitude)
				assert.Nil(t, p.GPSLongitude)
			}
		})
	}
}

func TestHemisphere(t *testing.T) {
	assert.Equal(t, "S", hemisphere(-1, "N", "S"))
	assert.Equal(t, "N", hemisphere(0, "N", "S"))
	assert.Equal(t, "W", hemisphere(-0.5, "E", "W"))
}
