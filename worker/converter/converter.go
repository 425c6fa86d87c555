package converter

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"imageConverter/internal/jobs"
	"imageConverter/worker/codec"
)

type Encoder interface {
	Encode(img image.Image, quality int) ([]byte, error)
	Extension() string
}

// MetadataTool reads and writes container metadata through files on disk.
type MetadataTool interface {
	Extract(ctx context.Context, path string) (*Provenance, error)
	Write(ctx context.Context, path string, tags Tags) error
}

type Config struct {
	TempDir          string
	ThumbnailSize    int
	ThumbnailQuality int
	FullSizeQuality  int
	DecodeTimeout    time.Duration
	ThumbnailTimeout time.Duration
	FullSizeTimeout  time.Duration
	MetadataTimeout  time.Duration
}

func DefaultConfig() Config {
	return Config{
		TempDir:          os.TempDir(),
		ThumbnailSize:    200,
		ThumbnailQuality: 50,
		FullSizeQuality:  80,
		DecodeTimeout:    30 * time.Second,
		ThumbnailTimeout: 30 * time.Second,
		FullSizeTimeout:  60 * time.Second,
		MetadataTimeout:  10 * time.Second,
	}
}

type Converter struct {
	cfg      Config
	encoder  Encoder
	metadata MetadataTool
	logger   *zap.Logger
}

func NewConverter(cfg Config, encoder Encoder, metadata MetadataTool, logger *zap.Logger) *Converter {
	return &Converter{
		cfg:      cfg,
		encoder:  encoder,
		metadata: metadata,
		logger:   logger,
	}
}

type encodedVariant struct {
	data   []byte
	width  int
	height int
}

// Convert produces both variants or fails as a whole. Every file it stages
// lives in a private work directory that is removed on return.
func (c *Converter) Convert(ctx context.Context, data []byte, originalName string) (*jobs.Results, error) {
	log := c.logger.With(zap.String("filename", originalName))
	log.Info("Starting conversion", zap.Int("bytes", len(data)))

	workDir, err := os.MkdirTemp(c.cfg.TempDir, "convert-")
	if err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(workDir); err != nil {
			log.Warn("Failed to remove work dir", zap.String("dir", workDir), zap.Error(err))
		}
	}()

	originalPath := filepath.Join(workDir, "original"+strings.ToLower(filepath.Ext(originalName)))
	if err := os.WriteFile(originalPath, data, 0o600); err != nil {
		return nil, fmt.Errorf("stage original: %w", err)
	}

	provenance, err := runStage(ctx, StageExtractMetadata, c.cfg.MetadataTimeout, func(ctx context.Context) (*Provenance, error) {
		p, err := c.metadata.Extract(ctx, originalPath)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMetadataExtraction, err)
		}
		return p, nil
	})
	if err != nil {
		return nil, err
	}

	decoded, err := runStage(ctx, StageDecode, c.cfg.DecodeTimeout, func(context.Context) (*codec.Decoded, error) {
		d, err := codec.Decode(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		return d, nil
	})
	if err != nil {
		return nil, err
	}

	log.Info("Decoded image",
		zap.Int("width", decoded.Width),
		zap.Int("height", decoded.Height),
	)

	var thumb, full encodedVariant
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := runStage(gctx, StageThumbnail, c.cfg.ThumbnailTimeout, func(context.Context) (encodedVariant, error) {
			return c.encode(codec.Fit(decoded.Image, c.cfg.ThumbnailSize, c.cfg.ThumbnailSize), c.cfg.ThumbnailQuality)
		})
		thumb = v
		return err
	})
	g.Go(func() error {
		v, err := runStage(gctx, StageFullSize, c.cfg.FullSizeTimeout, func(context.Context) (encodedVariant, error) {
			return c.encode(decoded.Image, c.cfg.FullSizeQuality)
		})
		full = v
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	tags := BuildTags(provenance, decoded.Width, decoded.Height)

	base := baseName(originalName)
	ext := c.encoder.Extension()
	thumbName := base + "_thumbnail" + ext
	fullName := base + ext

	thumbData, err := c.attachMetadata(ctx, workDir, thumbName, thumb.data, tags)
	if err != nil {
		return nil, err
	}
	fullData, err := c.attachMetadata(ctx, workDir, fullName, full.data, tags)
	if err != nil {
		return nil, err
	}

	results := &jobs.Results{
		Thumbnail: jobs.Variant{
			Filename: thumbName,
			Data:     thumbData,
			Size:     len(thumbData),
			Width:    thumb.width,
			Height:   thumb.height,
		},
		FullSize: jobs.Variant{
			Filename: fullName,
			Data:     fullData,
			Size:     len(fullData),
			Width:    full.width,
			Height:   full.height,
		},
		OriginalSize: int64(len(data)),
		PreservedMetadata: jobs.PreservedMetadata{
			HasGPS:       tags.GPS != nil,
			HasTimestamp: tags.Timestamp != "",
			Timestamp:    tags.Timestamp,
			Width:        tags.Width,
			Height:       tags.Height,
		},
	}

	log.Info("Conversion completed",
		zap.Int("thumbnail_bytes", results.Thumbnail.Size),
		zap.Int("full_size_bytes", results.FullSize.Size),
		zap.Bool("has_gps", results.PreservedMetadata.HasGPS),
		zap.Bool("has_timestamp", results.PreservedMetadata.HasTimestamp),
	)

	return results, nil
}

func (c *Converter) encode(img image.Image, quality int) (encodedVariant, error) {
	data, err := c.encoder.Encode(img, quality)
	if err != nil {
		return encodedVariant{}, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	b := img.Bounds()
	return encodedVariant{data: data, width: b.Dx(), height: b.Dy()}, nil
}

// attachMetadata stages one variant on disk, rewrites its metadata in place
// and reads the final bytes back.
func (c *Converter) attachMetadata(ctx context.Context, workDir, name string, data []byte, tags Tags) ([]byte, error) {
	path := filepath.Join(workDir, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return nil, fmt.Errorf("stage %s: %w", name, err)
	}

	_, err := runStage(ctx, StageWriteMetadata, c.cfg.MetadataTimeout, func(ctx context.Context) (struct{}, error) {
		if err := c.metadata.Write(ctx, path, tags); err != nil {
			return struct{}{}, fmt.Errorf("%w: %s: %v", ErrMetadataWrite, name, err)
		}
		return struct{}{}, nil
	})
	if err != nil {
		return nil, err
	}

	out, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return out, nil
}

func baseName(name string) string {
	base := filepath.Base(name)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "." || base == string(filepath.Separator) {
		return "image"
	}
	return base
}
