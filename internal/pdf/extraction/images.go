package extraction

import (
	"context"
	"encoding/base64"
	"image"
	"strings"

	"go.uber.org/zap"

	pdferrors "github.com/a3tai/faithful-pdf/internal/pdf/errors"
	"github.com/a3tai/faithful-pdf/internal/pdf/geom"
	"github.com/a3tai/faithful-pdf/internal/pdf/model"
	"github.com/a3tai/faithful-pdf/internal/pdf/ocr"
	"github.com/a3tai/faithful-pdf/internal/pdf/wrapper"
)

// backgroundCoverage is the page fraction an image must cover to count as
// a page background
const backgroundCoverage = 0.9

// placedImage is an image reference with its decoded raster, when the
// payload could be decoded
type placedImage struct {
	ref     wrapper.ImageRef
	decoded image.Image
}

// normalizeImageFormat maps PDF filter names and extractor file types to
// the image subtype used in data URIs
func normalizeImageFormat(format string) string {
	switch strings.ToLower(strings.TrimPrefix(format, ".")) {
	case "jpg", "jpeg", "dctdecode":
		return "jpeg"
	case "jp2", "jpx", "jpxdecode":
		return "jp2"
	case "tif", "tiff", "ccittfaxdecode":
		return "tiff"
	case "png", "flatedecode":
		return "png"
	case "gif":
		return "gif"
	case "bmp":
		return "bmp"
	case "webp":
		return "webp"
	default:
		return "png"
	}
}

// coverage returns the fraction of the page area b covers
func coverage(b geom.Box, size geom.Size) float64 {
	area := size.Width * size.Height
	if area <= 0 {
		return 0
	}
	return b.Clamp(size).Area() / area
}

// decodeImages decodes the payload of every placed image. Undecodable
// payloads are kept without a raster.
func (r *pageRun) decodeImages(refs []wrapper.ImageRef) []placedImage {
	out := make([]placedImage, 0, len(refs))
	for _, ref := range refs {
		p := placedImage{ref: ref}
		if len(ref.Data) > 0 {
			if img, err := ocr.Decode(ref.Data); err == nil {
				p.decoded = img
			} else {
				r.engine.logger.Debug("image payload not decodable",
					zap.Int("page", r.number),
					zap.String("image", ref.Name),
					zap.Error(err))
			}
		}
		out = append(out, p)
	}
	return out
}

// largest returns the decoded image covering the most page area
func largest(images []placedImage) (placedImage, bool) {
	var best placedImage
	found := false
	for _, p := range images {
		if p.decoded == nil {
			continue
		}
		if !found || p.ref.Box.Area() > best.ref.Box.Area() {
			best, found = p, true
		}
	}
	return best, found
}

// imageElement builds one image element with its OCR overlay. Failures
// skip only this image.
func (r *pageRun) imageElement(ctx context.Context, p placedImage) (model.Element, bool) {
	var el model.Element
	err := r.engine.guard.Protect("image", func() error {
		ref := p.ref
		img := &model.Image{
			Format:       normalizeImageFormat(ref.Format),
			PixelWidth:   ref.Width,
			PixelHeight:  ref.Height,
			Name:         ref.Name,
			IsBackground: coverage(ref.Box, r.size) >= backgroundCoverage,
		}
		if len(ref.Data) > 0 {
			img.ImageData = base64.StdEncoding.EncodeToString(ref.Data)
		}
		if p.decoded != nil {
			b := p.decoded.Bounds()
			img.PixelWidth, img.PixelHeight = b.Dx(), b.Dy()
		}

		if r.engine.opts.OCREnabled {
			if p.decoded != nil {
				img.OCROverlay = r.engine.ocr.Overlay(ctx, p.decoded)
			} else {
				img.OCROverlay = ocr.Empty(img.PixelWidth, img.PixelHeight)
			}
			r.ocrWords += len(img.OCROverlay.Words)
		}

		el = model.NewElement(r.number, ref.Box, r.size, 1, img)
		return nil
	})
	if err != nil {
		r.fail(pdferrors.ErrorTypeElementExtraction, "image", err)
		return model.Element{}, false
	}
	return el, true
}
