package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"log/slog"
	"math"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"golang.org/x/image/draw"
)

// Instagram feed-image constraints.
const (
	minImageWidth  = 320
	maxImageWidth  = 1440
	minAspectRatio = 0.8  // 4:5 portrait
	maxAspectRatio = 1.91 // landscape
	maxJPEGBytes   = 8 * 1024 * 1024
	startQuality   = 95
	floorQuality   = 40
)

// ImageNormalizer produces a public URL for a JPEG that satisfies the
// publish target's constraints, uploading to the media store when
// configured and falling back to a public archive file otherwise.
type ImageNormalizer interface {
	PrepareImageURL(ctx context.Context, data []byte) (string, error)
}

type imageService struct {
	store   MediaStore
	archive ArchiveService
}

func NewImageService(store MediaStore, archive ArchiveService) ImageNormalizer {
	return &imageService{store: store, archive: archive}
}

// NormalizeJPEG rewrites arbitrary image bytes into a JPEG with width in
// [320,1440], aspect ratio in [0.8,1.91] and size at most 8 MiB. The size
// bound is best-effort: quality degrades by 0.85 per pass down to 40, and
// the floor result is accepted rather than looping forever.
func NormalizeJPEG(data []byte) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}

	img := toRGBA(src)
	width := img.Bounds().Dx()
	height := img.Bounds().Dy()
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("image has zero dimension")
	}
	ratio := float64(width) / float64(height)

	if width < minImageWidth {
		img = resizeWidth(img, minImageWidth, ratio)
	} else if width > maxImageWidth {
		img = resizeWidth(img, maxImageWidth, ratio)
	}
	width = img.Bounds().Dx()
	height = img.Bounds().Dy()
	ratio = float64(width) / float64(height)

	if ratio < minAspectRatio || ratio > maxAspectRatio {
		target := clampRatio(ratio)
		img = cropToRatio(img, target)
		// a horizontal crop on an extreme landscape can undershoot the
		// minimum width
		if img.Bounds().Dx() < minImageWidth {
			img = resizeWidth(img, minImageWidth, target)
		}
	}

	return encodeBounded(img)
}

func toRGBA(src image.Image) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}

func resizeWidth(img *image.RGBA, targetWidth int, ratio float64) *image.RGBA {
	targetHeight := int(float64(targetWidth) / ratio)
	if targetHeight < 1 {
		targetHeight = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, targetWidth, targetHeight))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)
	return dst
}

func clampRatio(ratio float64) float64 {
	return math.Max(minAspectRatio, math.Min(maxAspectRatio, ratio))
}

// cropToRatio center-crops to hit targetRatio exactly: vertically when the
// target height fits inside the current height, horizontally otherwise.
func cropToRatio(img *image.RGBA, targetRatio float64) *image.RGBA {
	width := img.Bounds().Dx()
	height := img.Bounds().Dy()

	targetW := width
	targetH := int(math.Round(float64(targetW) / targetRatio))
	var rect image.Rectangle
	if targetH <= height {
		top := (height - targetH) / 2
		rect = image.Rect(0, top, targetW, top+targetH)
	} else {
		targetH = height
		targetW = int(math.Round(float64(targetH) * targetRatio))
		left := (width - targetW) / 2
		rect = image.Rect(left, 0, left+targetW, targetH)
	}

	dst := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(dst, dst.Bounds(), img, rect.Min, draw.Src)
	return dst
}

func encodeBounded(img *image.RGBA) ([]byte, error) {
	quality := startQuality
	for {
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, fmt.Errorf("encoding JPEG: %w", err)
		}
		if buf.Len() <= maxJPEGBytes || quality <= floorQuality {
			return buf.Bytes(), nil
		}
		quality = int(float64(quality) * 0.85)
	}
}

// PrepareImageURL normalizes the image and hosts it publicly: media store
// first, archive public download URL as the fallback.
func (s *imageService) PrepareImageURL(ctx context.Context, data []byte) (string, error) {
	normalized, err := NormalizeJPEG(data)
	if err != nil {
		return "", err
	}

	name, err := gonanoid.New()
	if err != nil {
		return "", err
	}
	fileName := name + ".jpg"

	if s.store != nil && s.store.Configured() {
		url, err := s.store.Upload(ctx, "instagram_ready/"+fileName, normalized, "image/jpeg")
		if err == nil {
			return url, nil
		}
		slog.Info(err.Error())
	}

	fileID, err := s.archive.UploadFile(ctx, fileName, "image/jpeg", normalized)
	if err != nil {
		return "", fmt.Errorf("unable to host normalized image: %w", err)
	}
	return s.archive.PublicDownloadURL(ctx, fileID)
}
