// Frame-Connect - Photo Sync for Remote Display Devices
// Copyright 2026 C. Malpass (cmalpass)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cmalpass/frame-connect

package processor

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif" // decode support
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rwcarlsen/goexif/exif"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // decode support

	"github.com/cmalpass/frame-connect/internal/config"
	"github.com/cmalpass/frame-connect/internal/logging"
)

// defaultQuality is the JPEG encode quality used when none is configured.
const defaultQuality = 85

// ErrUnsupportedFormat marks inputs the processor cannot decode. HEIC falls
// under this until a conversion path exists.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// Options control one processing pass. Zero bounds are unbounded; an empty
// Format keeps the source format when it has an encoder.
type Options struct {
	MaxWidth  int
	MaxHeight int
	Format    string
	Quality   int
}

// OptionsFromConfig maps the processor configuration onto per-call options.
func OptionsFromConfig(cfg config.ProcessorConfig) Options {
	return Options{
		MaxWidth:  cfg.MaxWidth,
		MaxHeight: cfg.MaxHeight,
		Format:    cfg.Format,
		Quality:   cfg.Quality,
	}
}

// Artifact describes the file a processing pass produced, or the input file
// itself when the pass was a no-op.
type Artifact struct {
	Path   string `json:"path"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Size   int64  `json:"size"`
	Format string `json:"format"`
}

// Processor turns a downloaded photo into a device-ready artifact.
type Processor interface {
	// Process decodes, orients, downscales, and re-encodes one photo.
	// The returned artifact may point at localPath itself when no work
	// was needed.
	Process(ctx context.Context, localPath string, opts Options) (Artifact, error)

	// Cleanup removes an artifact Process created. Paths the processor
	// does not own are left alone.
	Cleanup(path string)
}

// ImageProcessor implements Processor with the standard image codecs. All
// artifacts live under one working directory so Cleanup can tell its own
// files from pass-through originals.
type ImageProcessor struct {
	workDir string
	logger  zerolog.Logger
}

var _ Processor = (*ImageProcessor)(nil)

// New creates a processor with a fresh artifact directory.
func New() (*ImageProcessor, error) {
	workDir, err := os.MkdirTemp("", "frame-connect-artifacts-")
	if err != nil {
		return nil, fmt.Errorf("create artifact directory: %w", err)
	}

	return &ImageProcessor{
		workDir: workDir,
		logger:  logging.With().Str("component", "processor").Logger(),
	}, nil
}

// Close removes the artifact directory and everything in it.
func (p *ImageProcessor) Close() error {
	return os.RemoveAll(p.workDir)
}

// Process implements Processor.
func (p *ImageProcessor) Process(ctx context.Context, localPath string, opts Options) (Artifact, error) {
	if err := ctx.Err(); err != nil {
		return Artifact{}, err
	}

	ext := strings.ToLower(filepath.Ext(localPath))
	if ext == ".heic" || ext == ".heif" {
		return Artifact{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}

	f, err := os.Open(localPath)
	if err != nil {
		return Artifact{}, fmt.Errorf("open photo: %w", err)
	}
	defer func() { _ = f.Close() }()

	orientation := readOrientation(f)
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return Artifact{}, fmt.Errorf("rewind photo: %w", err)
	}

	img, srcFormat, err := image.Decode(f)
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return Artifact{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Base(localPath))
		}
		return Artifact{}, fmt.Errorf("decode %s: %w", filepath.Base(localPath), err)
	}

	img = orient(img, orientation)

	bounds := img.Bounds()
	srcW, srcH := bounds.Dx(), bounds.Dy()
	dstW, dstH := fitDims(srcW, srcH, opts.MaxWidth, opts.MaxHeight)
	outFormat := normalizeFormat(opts.Format, srcFormat)

	needsScale := dstW != srcW || dstH != srcH
	needsReencode := outFormat != srcFormat || orientation > 1
	if !needsScale && !needsReencode {
		info, err := os.Stat(localPath)
		if err != nil {
			return Artifact{}, fmt.Errorf("stat photo: %w", err)
		}
		return Artifact{
			Path:   localPath,
			Width:  srcW,
			Height: srcH,
			Size:   info.Size(),
			Format: srcFormat,
		}, nil
	}

	if needsScale {
		scaled := image.NewRGBA(image.Rect(0, 0, dstW, dstH))
		draw.BiLinear.Scale(scaled, scaled.Bounds(), img, bounds, draw.Over, nil)
		img = scaled
	}

	artifact, err := p.encode(img, localPath, outFormat, opts.Quality)
	if err != nil {
		return Artifact{}, err
	}

	p.logger.Debug().
		Str("photo", filepath.Base(localPath)).
		Int("width", artifact.Width).
		Int("height", artifact.Height).
		Str("format", artifact.Format).
		Msg("Processed photo")
	return artifact, nil
}

// encode writes img into a fresh per-photo subdirectory of the working
// directory and returns the artifact.
func (p *ImageProcessor) encode(img image.Image, srcPath, format string, quality int) (Artifact, error) {
	dir, err := os.MkdirTemp(p.workDir, "photo-")
	if err != nil {
		return Artifact{}, fmt.Errorf("create artifact directory: %w", err)
	}

	base := strings.TrimSuffix(filepath.Base(srcPath), filepath.Ext(srcPath))
	if base == "" {
		base = "photo"
	}
	dest := filepath.Join(dir, base+FormatExt(format))

	out, err := os.Create(dest)
	if err != nil {
		_ = os.RemoveAll(dir)
		return Artifact{}, fmt.Errorf("create artifact: %w", err)
	}

	switch format {
	case "png":
		err = png.Encode(out, img)
	default:
		q := quality
		if q <= 0 || q > 100 {
			q = defaultQuality
		}
		err = jpeg.Encode(out, img, &jpeg.Options{Quality: q})
	}
	if err != nil {
		_ = out.Close() //nolint:errcheck // encode already failed
		_ = os.RemoveAll(dir)
		return Artifact{}, fmt.Errorf("encode %s: %w", format, err)
	}
	if err := out.Close(); err != nil {
		_ = os.RemoveAll(dir)
		return Artifact{}, fmt.Errorf("close artifact: %w", err)
	}

	info, err := os.Stat(dest)
	if err != nil {
		_ = os.RemoveAll(dir)
		return Artifact{}, fmt.Errorf("stat artifact: %w", err)
	}

	b := img.Bounds()
	return Artifact{
		Path:   dest,
		Width:  b.Dx(),
		Height: b.Dy(),
		Size:   info.Size(),
		Format: format,
	}, nil
}

// Cleanup implements Processor. Only files under the working directory are
// removed; pass-through originals stay where they are.
func (p *ImageProcessor) Cleanup(path string) {
	if path == "" || !strings.HasPrefix(path, p.workDir+string(os.PathSeparator)) {
		return
	}

	// Artifacts live one per subdirectory; drop the whole thing.
	dir := filepath.Dir(path)
	if dir == p.workDir {
		dir = path
	}
	if err := os.RemoveAll(dir); err != nil {
		p.logger.Warn().Err(err).Str("path", path).Msg("Failed to remove processed artifact")
	}
}

// FormatExt returns the file extension for an image format name as reported
// by the decoder ("jpeg", "png", "gif", "webp").
func FormatExt(format string) string {
	switch format {
	case "png":
		return ".png"
	case "gif":
		return ".gif"
	case "webp":
		return ".webp"
	default:
		return ".jpg"
	}
}

// normalizeFormat resolves the requested output format against the source
// format. Formats without an encoder re-encode to JPEG.
func normalizeFormat(requested, src string) string {
	switch strings.ToLower(requested) {
	case "jpeg", "jpg":
		return "jpeg"
	case "png":
		return "png"
	case "":
		if src == "jpeg" || src == "png" {
			return src
		}
		return "jpeg"
	default:
		return "jpeg"
	}
}

// fitDims scales (w, h) down to fit inside (maxW, maxH) preserving aspect
// ratio. Bounds <= 0 are unbounded and images are never scaled up.
func fitDims(w, h, maxW, maxH int) (int, int) {
	if w <= 0 || h <= 0 {
		return w, h
	}

	scale := 1.0
	if maxW > 0 && w > maxW {
		scale = float64(maxW) / float64(w)
	}
	if maxH > 0 && float64(h)*scale > float64(maxH) {
		scale = float64(maxH) / float64(h)
	}
	if scale >= 1.0 {
		return w, h
	}

	dw := int(math.Round(float64(w) * scale))
	dh := int(math.Round(float64(h) * scale))
	if dw < 1 {
		dw = 1
	}
	if dh < 1 {
		dh = 1
	}
	return dw, dh
}

// readOrientation pulls the EXIF orientation tag, returning 1 (upright) when
// the file has no usable EXIF block.
func readOrientation(r io.Reader) int {
	x, err := exif.Decode(r)
	if err != nil {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	v, err := tag.Int(0)
	if err != nil || v < 1 || v > 8 {
		return 1
	}
	return v
}

// orient bakes an EXIF orientation into the pixel data. Orientations 5-8
// swap width and height.
func orient(img image.Image, orientation int) image.Image {
	if orientation <= 1 || orientation > 8 {
		return img
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	dw, dh := w, h
	if orientation >= 5 {
		dw, dh = h, w
	}

	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var dx, dy int
			switch orientation {
			case 2: // mirrored horizontally
				dx, dy = w-1-x, y
			case 3: // rotated 180
				dx, dy = w-1-x, h-1-y
			case 4: // mirrored vertically
				dx, dy = x, h-1-y
			case 5: // transposed
				dx, dy = y, x
			case 6: // rotated 90 CW
				dx, dy = h-1-y, x
			case 7: // transversed
				dx, dy = h-1-y, w-1-x
			case 8: // rotated 90 CCW
				dx, dy = y, w-1-x
			}
			dst.Set(dx, dy, img.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return dst
}
