package exif

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"sync"
	"syscall"

	"github.com/barasher/go-exiftool"
	"go.uber.org/zap"

	"imageConverter/worker/converter"
)

const (
	DefaultMaxReplySize = 8 << 20
	initialReplyBuffer  = 128 << 10
)

// Tool talks to one long-lived exiftool process. Print conversion is off so
// coordinates come back as plain decimals, and every write first clears all
// existing tags so only what we set survives.
//
// A process whose reply stream breaks (oversized reply, dead pipe) or that
// overruns the caller's context is retired and the next call starts a fresh
// one. A retired process is closed in the background once it lets go of its
// own lock.
type Tool struct {
	binaryPath   string
	maxReplySize int
	logger       *zap.Logger

	mu sync.Mutex
	et *exiftool.Exiftool
}

type Option func(*Tool)

// WithMaxReplySize caps a single exiftool reply. Larger replies fail the call.
func WithMaxReplySize(n int) Option {
	return func(t *Tool) { t.maxReplySize = n }
}

func New(binaryPath string, logger *zap.Logger, opts ...Option) (*Tool, error) {
	t := &Tool{
		binaryPath:   binaryPath,
		maxReplySize: DefaultMaxReplySize,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(t)
	}

	et, err := t.spawn()
	if err != nil {
		return nil, err
	}
	t.et = et
	return t, nil
}

func (t *Tool) spawn() (*exiftool.Exiftool, error) {
	initial := min(initialReplyBuffer, t.maxReplySize)
	opts := []func(*exiftool.Exiftool) error{
		exiftool.NoPrintConversion(),
		exiftool.ClearFieldsBeforeWriting(),
		exiftool.Buffer(make([]byte, initial), t.maxReplySize),
	}
	if t.binaryPath != "" {
		opts = append(opts, exiftool.SetExiftoolBinaryPath(t.binaryPath))
	}

	et, err := exiftool.NewExiftool(opts...)
	if err != nil {
		return nil, fmt.Errorf("start exiftool: %w", err)
	}
	return et, nil
}

func (t *Tool) current() (*exiftool.Exiftool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.et == nil {
		et, err := t.spawn()
		if err != nil {
			return nil, err
		}
		t.et = et
	}
	return t.et, nil
}

// retire drops et if it is still the live process.
func (t *Tool) retire(et *exiftool.Exiftool, cause error) {
	t.mu.Lock()
	live := t.et == et
	if live {
		t.et = nil
	}
	t.mu.Unlock()
	if !live {
		return
	}

	t.logger.Warn("Restarting exiftool", zap.Error(cause))
	go func() {
		if err := et.Close(); err != nil {
			t.logger.Debug("Retired exiftool did not close cleanly", zap.Error(err))
		}
	}()
}

// do runs fn against the live process and gives up when ctx ends. The
// library holds its own lock for a whole exchange, so a call that has to be
// abandoned takes its process out of rotation.
func (t *Tool) do(ctx context.Context, fn func(*exiftool.Exiftool) error) error {
	et, err := t.current()
	if err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() { done <- fn(et) }()

	select {
	case err := <-done:
		if brokenStream(err) {
			t.retire(et, err)
		}
		return err
	case <-ctx.Done():
		t.retire(et, ctx.Err())
		return fmt.Errorf("exiftool: %w", ctx.Err())
	}
}

func brokenStream(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, exiftool.ErrBufferTooSmall) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, os.ErrClosed) ||
		errors.Is(err, io.ErrClosedPipe) ||
		strings.Contains(err.Error(), "stdMergedOut")
}

// Extract returns an empty Provenance for files that simply carry no tags.
func (t *Tool) Extract(ctx context.Context, path string) (*converter.Provenance, error) {
	var fm exiftool.FileMetadata
	err := t.do(ctx, func(et *exiftool.Exiftool) error {
		infos := et.ExtractMetadata(path)
		if len(infos) != 1 {
			return fmt.Errorf("exiftool returned %d results for %s", len(infos), path)
		}
		fm = infos[0]
		return fm.Err
	})
	if err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}

	p := &converter.Provenance{
		DateTimeOriginal: stringField(fm, "DateTimeOriginal"),
		ModifyDate:       stringField(fm, "ModifyDate"),
		CreateDate:       stringField(fm, "CreateDate"),
		Make:             stringField(fm, "Make"),
		Model:            stringField(fm, "Model"),
		Width:            intField(fm, "ImageWidth"),
		Height:           intField(fm, "ImageHeight"),
	}

	lat, latOK := coordinate(fm, "GPSLatitude", "GPSLatitudeRef", "S")
	lon, lonOK := coordinate(fm, "GPSLongitude", "GPSLongitudeRef", "W")
	if latOK && lonOK {
		p.GPSLatitude = &lat
		p.GPSLongitude = &lon
	}

	t.logger.Debug("Extracted metadata",
		zap.String("path", path),
		zap.Bool("has_gps", p.GPSLatitude != nil),
		zap.String("capture_time", p.CaptureTime()),
	)

	return p, nil
}

func (t *Tool) Write(ctx context.Context, path string, tags converter.Tags) error {
	fm := exiftool.EmptyFileMetadata()
	fm.File = path

	fm.SetInt("ExifImageWidth", int64(tags.Width))
	fm.SetInt("ExifImageHeight", int64(tags.Height))
	if tags.Timestamp != "" {
		fm.SetString("DateTimeOriginal", tags.Timestamp)
	}
	if tags.GPS != nil {
		fm.SetFloat("GPSLatitude", math.Abs(tags.GPS.Latitude))
		fm.SetString("GPSLatitudeRef", hemisphere(tags.GPS.Latitude, "N", "S"))
		fm.SetFloat("GPSLongitude", math.Abs(tags.GPS.Longitude))
		fm.SetString("GPSLongitudeRef", hemisphere(tags.GPS.Longitude, "E", "W"))
	}

	err := t.do(ctx, func(et *exiftool.Exiftool) error {
		batch := []exiftool.FileMetadata{fm}
		et.WriteMetadata(batch)
		return batch[0].Err
	})
	if err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	return nil
}

func (t *Tool) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.et == nil {
		return nil
	}
	err := t.et.Close()
	t.et = nil
	return err
}

func stringField(fm exiftool.FileMetadata, key string) string {
	v, err := fm.GetString(key)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(v)
}

func intField(fm exiftool.FileMetadata, key string) int {
	v, err := fm.GetInt(key)
	if err != nil {
		return 0
	}
	return int(v)
}

// coordinate returns a signed decimal degree. Depending on the container,
// exiftool reports either an unsigned value plus a hemisphere ref or an
// already signed composite value.
func coordinate(fm exiftool.FileMetadata, key, refKey, negativeRef string) (float64, bool) {
	v, err := fm.GetFloat(key)
	if err != nil {
		return 0, false
	}
	ref := strings.ToUpper(stringField(fm, refKey))
	if strings.HasPrefix(ref, negativeRef) && v > 0 {
		v = -v
	}
	return v, true
}

func hemisphere(v float64, positive, negative string) string {
	if v < 0 {
		return negative
	}
	return positive
}
