package scanning

import (
	"fmt"

	"github.com/otiai10/gosseract/v2"
)

// DefaultTesseractLanguages covers Korean vouchers with latin brand names
var DefaultTesseractLanguages = []string{"kor", "eng"}

// Tesseract implements the Recognizer interface with a local Tesseract
// installation, so images never leave the machine
type Tesseract struct {
	languages  []string
	preprocess bool
}

// NewTesseract creates a new Tesseract Recognizer instance
func NewTesseract(languages []string) (*Tesseract, error) {
	if len(languages) == 0 {
		languages = DefaultTesseractLanguages
	}
	return &Tesseract{
		languages:  languages,
		preprocess: true,
	}, nil
}

// RecognizeText runs OCR over the image and returns one fragment per line
func (t *Tesseract) RecognizeText(imageData []byte, contentType string) ([]string, error) {
	img, err := decodeImage(imageData, normalizeMimeType(contentType))
	if err != nil {
		return nil, err
	}
	if t.preprocess {
		img = preprocessForOCR(img)
	}
	pngData, err := encodePNG(img)
	if err != nil {
		return nil, err
	}

	// gosseract clients are not safe for concurrent use; one per call
	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(t.languages...); err != nil {
		return nil, fmt.Errorf("setting tesseract languages: %w", err)
	}
	if err := client.SetPageSegMode(gosseract.PSM_AUTO); err != nil {
		return nil, fmt.Errorf("setting page segmentation mode: %w", err)
	}
	if err := client.SetImageFromBytes(pngData); err != nil {
		return nil, fmt.Errorf("loading image into tesseract: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return nil, fmt.Errorf("running tesseract: %w", err)
	}
	return splitLines(text), nil
}

// Close is a no-op; clients are created per call
func (t *Tesseract) Close() error {
	return nil
}
