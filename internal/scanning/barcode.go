package scanning

import (
	"errors"
	"fmt"
	"strings"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/makiuchi-d/gozxing/qrcode"
)

// ErrNoBarcode is returned when no reader can decode a barcode in the image
var ErrNoBarcode = errors.New("no barcode found")

// ZXing implements the BarcodeDecoder interface with the gozxing readers
type ZXing struct {
	readers []gozxing.Reader
}

// NewZXing creates a decoder trying the symbologies Korean vouchers print
func NewZXing() *ZXing {
	return &ZXing{
		readers: []gozxing.Reader{
			oned.NewCode128Reader(),
			oned.NewEAN13Reader(),
			oned.NewITFReader(),
			oned.NewCode39Reader(),
			qrcode.NewQRCodeReader(),
		},
	}
}

// DecodeBarcode returns the text of the first barcode any reader recognizes
func (z *ZXing) DecodeBarcode(imageData []byte, contentType string) (string, error) {
	img, err := decodeImage(imageData, normalizeMimeType(contentType))
	if err != nil {
		return "", err
	}

	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", fmt.Errorf("creating bitmap: %w", err)
	}

	hints := map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_TRY_HARDER: true,
	}
	for _, reader := range z.readers {
		result, err := reader.Decode(bmp, hints)
		if err != nil {
			continue
		}
		if text := strings.TrimSpace(result.GetText()); text != "" {
			return text, nil
		}
	}

	return "", ErrNoBarcode
}
