package main

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"github.com/zombor/gifticon-wallet/internal/extract"
	"github.com/zombor/gifticon-wallet/internal/gifticon"
	"github.com/zombor/gifticon-wallet/internal/scanning"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	// A missing .env is fine; variables already set in the environment win
	_ = godotenv.Load()

	fs := ff.NewFlagSet("gifticon-wallet")
	var (
		port          = fs.IntLong("port", 8080, "HTTP server port")
		dbPath        = fs.StringLong("db", "gifticon-wallet.db", "Database file path")
		storagePath   = fs.StringLong("storage", "./gifticons", "Image storage directory path")
		scannerType   = fs.StringLong("scanner", "tesseract", "OCR engine: 'tesseract', 'gemini' or 'ollama'")
		tesseractLang = fs.StringLong("tesseract-lang", "kor+eng", "Tesseract languages, plus-separated")
		geminiKey     = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel   = fs.StringLong("gemini-model", "gemini-2.5-flash", "Google Gemini model name")
		ollamaURL     = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel   = fs.StringLong("ollama-model", "qwen2.5vl:7b", "Ollama vision model name")
		brandsPath    = fs.StringLong("brands", "", "JSON file with the brand list (optional, replaces the built-in list)")
		noBarcode     = fs.BoolLong("no-barcode", "Skip decoding barcodes from uploaded images")
		authUser      = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass      = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		logLevel      = fs.StringLong("log-level", "info", "Log level: debug, info, warn or error")
		_             = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("GIFTICON_WALLET"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		fmt.Fprintf(os.Stderr, "error: invalid log level %q\n", *logLevel)
		os.Exit(1)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	// Initialize database
	slog.Info("Initializing database...", "path", *dbPath)
	db, err := gifticon.NewBoltDB(*dbPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Initialize OCR
	slog.Info("Initializing recognizer...", "scanner", *scannerType)
	recognizer, err := scanning.NewRecognizer(scanning.Config{
		Type:               *scannerType,
		TesseractLanguages: *tesseractLang,
		GeminiKey:          *geminiKey,
		GeminiModel:        *geminiModel,
		OllamaURL:          *ollamaURL,
		OllamaModel:        *ollamaModel,
	})
	if err != nil {
		slog.Error("Failed to initialize recognizer", "error", err)
		os.Exit(1)
	}
	defer recognizer.Close()

	// Initialize storage
	slog.Info("Initializing storage...", "path", *storagePath)
	store, err := gifticon.NewLocalStorage(*storagePath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}

	// Initialize service
	service := gifticon.NewService(db, recognizer, store)
	if !*noBarcode {
		service.WithBarcodeDecoder(scanning.NewZXing())
	}
	if *brandsPath != "" {
		data, err := os.ReadFile(*brandsPath)
		if err != nil {
			slog.Error("Failed to read brands file", "path", *brandsPath, "error", err)
			os.Exit(1)
		}
		brands, err := extract.ParseBrands(data)
		if err != nil {
			slog.Error("Failed to parse brands file", "path", *brandsPath, "error", err)
			os.Exit(1)
		}
		slog.Info("Loaded brands", "count", len(brands))
		service.WithExtractor(extract.NewExtractor(extract.WithBrands(brands)))
	}

	// Initialize server
	basicAuth := gifticon.BasicAuth{
		Username: *authUser,
		Password: *authPass,
	}
	server := gifticon.NewServer(service, basicAuth)

	// Start server in goroutine
	addr := fmt.Sprintf(":%d", *port)
	go func() {
		if err := server.Start(addr); err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr), "version", version)
	if *authUser != "" || *authPass != "" {
		slog.Info("Basic auth enabled", "user", *authUser)
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("Shutting down...")
}
