package main

import (
	"bufio"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"github.com/zombor/gifticon-wallet/internal/extract"
	"github.com/zombor/gifticon-wallet/internal/scanning"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

// output is what the command prints for one voucher
type output struct {
	extract.Result
	Barcode string   `json:"barcode,omitempty"`
	Texts   []string `json:"texts,omitempty"`
}

func main() {
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	// A missing .env is fine; variables already set in the environment win
	_ = godotenv.Load()

	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	fs := ff.NewFlagSet("gifticon-extract")
	var (
		textFile      = fs.StringLong("file", "", "File with one recognized text fragment per line ('-' for stdin)")
		imageFile     = fs.StringLong("image", "", "Voucher image (JPEG, PNG, GIF, HEIC or PDF) to run OCR on")
		nowFlag       = fs.StringLong("now", "", "Scan date as YYYY-MM-DD (default: current time)")
		scannerType   = fs.StringLong("scanner", "tesseract", "OCR engine for --image: 'tesseract', 'gemini' or 'ollama'")
		tesseractLang = fs.StringLong("tesseract-lang", "kor+eng", "Tesseract languages, plus-separated")
		geminiKey     = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel   = fs.StringLong("gemini-model", "gemini-2.5-flash", "Google Gemini model name")
		ollamaURL     = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel   = fs.StringLong("ollama-model", "qwen2.5vl:7b", "Ollama vision model name")
		brandsPath    = fs.StringLong("brands", "", "JSON file with the brand list (optional)")
		showText      = fs.BoolLong("show-text", "Include the recognized text fragments in the output")
		logLevel      = fs.StringLong("log-level", "warn", "Log level: debug, info, warn or error")
		_             = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, args, ff.WithEnvVarPrefix("GIFTICON_WALLET")); err != nil {
		return fmt.Errorf("%w\n%s", err, ffhelp.Flags(fs))
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		return fmt.Errorf("invalid log level %q", *logLevel)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if (*textFile == "") == (*imageFile == "") {
		return errors.New("exactly one of --file or --image is required")
	}

	now := time.Now()
	if *nowFlag != "" {
		d, err := time.ParseInLocation("2006-01-02", *nowFlag, time.Local)
		if err != nil {
			return fmt.Errorf("parsing --now: %w", err)
		}
		now = d
	}

	extractor := extract.NewExtractor()
	if *brandsPath != "" {
		data, err := os.ReadFile(*brandsPath)
		if err != nil {
			return fmt.Errorf("reading brands file: %w", err)
		}
		brands, err := extract.ParseBrands(data)
		if err != nil {
			return err
		}
		extractor = extract.NewExtractor(extract.WithBrands(brands))
	}

	var out output
	if *textFile != "" {
		texts, err := readLines(*textFile, stdin)
		if err != nil {
			return err
		}
		out.Texts = texts
	} else {
		data, err := os.ReadFile(*imageFile)
		if err != nil {
			return fmt.Errorf("reading image: %w", err)
		}
		contentType := contentTypeFromExt(*imageFile)

		recognizer, err := scanning.NewRecognizer(scanning.Config{
			Type:               *scannerType,
			TesseractLanguages: *tesseractLang,
			GeminiKey:          *geminiKey,
			GeminiModel:        *geminiModel,
			OllamaURL:          *ollamaURL,
			OllamaModel:        *ollamaModel,
		})
		if err != nil {
			return err
		}
		defer recognizer.Close()

		texts, err := recognizer.RecognizeText(data, contentType)
		if err != nil {
			return fmt.Errorf("recognizing text: %w", err)
		}
		out.Texts = texts

		if code, err := scanning.NewZXing().DecodeBarcode(data, contentType); err == nil {
			out.Barcode = code
		} else {
			slog.Debug("No barcode decoded", "error", err)
		}
	}

	out.Result = extractor.Extract(out.Texts, now)
	if !*showText {
		out.Texts = nil
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(out)
}

// readLines reads one text fragment per line from path, or stdin for "-"
func readLines(path string, stdin io.Reader) ([]string, error) {
	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening text file: %w", err)
		}
		defer f.Close()
		r = f
	}

	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading text: %w", err)
	}
	return lines, nil
}

func contentTypeFromExt(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".pdf":
		return "application/pdf"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	default:
		return "image/jpeg"
	}
}
