package scanning

import (
	"fmt"
	"os"
	"strings"
)

// Config selects and configures a Recognizer
type Config struct {
	Type               string // tesseract, gemini or ollama
	TesseractLanguages string // plus-separated, e.g. "kor+eng"
	GeminiKey          string
	GeminiModel        string
	OllamaURL          string
	OllamaModel        string
}

// NewRecognizer builds the Recognizer named by cfg.Type
func NewRecognizer(cfg Config) (Recognizer, error) {
	switch cfg.Type {
	case "", "tesseract":
		var langs []string
		for _, l := range strings.Split(cfg.TesseractLanguages, "+") {
			if l = strings.TrimSpace(l); l != "" {
				langs = append(langs, l)
			}
		}
		return NewTesseract(langs)
	case "gemini":
		// Get Gemini API key from config or environment
		apiKey := cfg.GeminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("gemini api key is required: set --gemini-key or GEMINI_API_KEY")
		}
		return NewGemini(apiKey, cfg.GeminiModel)
	case "ollama":
		return NewOllama(cfg.OllamaURL, cfg.OllamaModel)
	}
	return nil, fmt.Errorf("invalid scanner type %q: want tesseract, gemini or ollama", cfg.Type)
}
