package schedule

import (
	"context"
	"fmt"
	"image"
	"os"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"
)

// RecognizeOptions selects the segmentation mode for one recognition call.
type RecognizeOptions struct {
	// SingleLine requests single-line/sparse segmentation, appropriate for
	// cropped table cells.
	SingleLine bool
}

// Recognizer is the OCR collaborator contract. It must tolerate being called
// once per cell in rapid succession; failures are per-call and never shared.
type Recognizer interface {
	Recognize(ctx context.Context, img image.Image, opts RecognizeOptions) (string, error)
}

// TesseractRecognizer runs Tesseract via gosseract. Each call uses a fresh
// client; reusing one initialized client is an optimization the gosseract
// API does not make safe across differing page-seg modes.
type TesseractRecognizer struct {
	Language string
}

func NewTesseractRecognizer() *TesseractRecognizer {
	return &TesseractRecognizer{Language: "eng"}
}

func (t *TesseractRecognizer) Recognize(ctx context.Context, img image.Image, opts RecognizeOptions) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	lang := t.Language
	if lang == "" {
		lang = "eng"
	}

	// Upscale very small crops; Tesseract degrades sharply below ~30px.
	if opts.SingleLine && img.Bounds().Dy() > 0 && img.Bounds().Dy() < 32 {
		img = imaging.Resize(img, 0, 64, imaging.Lanczos)
	}

	tmpFile, err := os.CreateTemp("", "schedocr-*.png")
	if err != nil {
		return "", fmt.Errorf("ocr temp file: %w", err)
	}
	tmp := tmpFile.Name()
	_ = tmpFile.Close()
	defer os.Remove(tmp)
	if err := imaging.Save(imaging.Clone(img), tmp); err != nil {
		return "", fmt.Errorf("ocr save crop: %w", err)
	}

	client := gosseract.NewClient()
	defer client.Close()
	_ = client.SetLanguage(lang)
	if opts.SingleLine {
		_ = client.SetPageSegMode(gosseract.PSM_SINGLE_LINE)
	} else {
		_ = client.SetPageSegMode(gosseract.PSM_AUTO)
	}
	if err := client.SetImage(tmp); err != nil {
		return "", fmt.Errorf("ocr set image: %w", err)
	}
	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("ocr error: %w", err)
	}
	return text, nil
}
