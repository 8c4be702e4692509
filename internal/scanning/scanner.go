package scanning

// Recognizer defines the interface for reading text off a voucher image
type Recognizer interface {
	// RecognizeText returns the text fragments found in an image/PDF, in
	// recognition order. An image without text yields an empty slice.
	RecognizeText(imageData []byte, contentType string) ([]string, error)
	// Close closes the recognizer and releases resources
	Close() error
}

// BarcodeDecoder reads the number encoded in a voucher's barcode
type BarcodeDecoder interface {
	DecodeBarcode(imageData []byte, contentType string) (string, error)
}
