package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/card-assistant/internal/assistant"
	"github.com/zombor/card-assistant/internal/llm"
	"github.com/zombor/card-assistant/internal/scanning"
	"github.com/zombor/card-assistant/internal/scanning/tesseract"
	"github.com/zombor/card-assistant/internal/scanning/vision"
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

	// A missing .env is normal; real environment variables still apply
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("Could not load .env file", "error", err)
	}

	fs := ff.NewFlagSet("card-assistant")
	var (
		port         = fs.IntLong("port", 8080, "HTTP server port")
		store        = fs.StringLong("store", "json", "Persistence backend: 'json' or 'bolt'")
		dataDir      = fs.StringLong("data-dir", "./data", "Directory for the JSON store files")
		dbPath       = fs.StringLong("db", "card-assistant.db", "BoltDB file path (bolt store only)")
		storagePath  = fs.StringLong("storage", "./uploads", "Directory for uploaded card images")
		ocrEngine    = fs.StringLong("ocr", "tesseract", "OCR engine: 'tesseract' or 'vision'")
		ocrLangs     = fs.StringLong("ocr-langs", "kor,eng", "Comma-separated Tesseract languages")
		maxWidth     = fs.IntLong("max-width", scanning.DefaultMaxWidth, "Downscale card images wider than this before OCR")
		visionCreds  = fs.StringLong("vision-credentials", "", "Google Cloud credentials JSON file for the vision engine (optional with ADC)")
		pdfEngine    = fs.StringLong("pdf-engine", "fitz", "PDF text extractor: 'fitz' or 'pure'")
		cardParser   = fs.StringLong("card-parser", assistant.ParserRules, "Card parser: 'rules' or 'llm' (rules refined by the LLM chain)")
		providers    = fs.StringLong("providers", "huggingface,ollama", "Comma-separated LLM providers in fallback order: huggingface, ollama, gemini, openai, anthropic")
		offline      = fs.BoolLong("offline", "Answer from the built-in keyword table only")
		hfURL        = fs.StringLong("hf-url", llm.DefaultHuggingFaceURL, "Hugging Face inference API base URL")
		hfToken      = fs.StringLong("hf-token", "", "Hugging Face API token (or set HF_TOKEN env var)")
		hfModels     = fs.StringLong("hf-models", "openai/gpt-oss-20b,google/gemma-3-270m,google/gemma-2b,microsoft/DialoGPT-medium", "Comma-separated Hugging Face models in fallback order")
		ollamaURL    = fs.StringLong("ollama-url", llm.DefaultOllamaURL, "Ollama API base URL")
		ollamaModels = fs.StringLong("ollama-models", "gemma3:270m,gemma2:2b", "Comma-separated Ollama models in fallback order")
		geminiKey    = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel  = fs.StringLong("gemini-model", "gemini-2.5-flash", "Google Gemini model name")
		openaiKey    = fs.StringLong("openai-key", "", "OpenAI API key (or set OPENAI_API_KEY env var)")
		openaiModel  = fs.StringLong("openai-model", "gpt-4o-mini", "OpenAI model name")
		openaiURL    = fs.StringLong("openai-base-url", "", "OpenAI-compatible API base URL (optional)")
		anthropicKey = fs.StringLong("anthropic-key", "", "Anthropic API key (or set ANTHROPIC_API_KEY env var)")
		anthropicMod = fs.StringLong("anthropic-model", "claude-3-5-haiku-latest", "Anthropic model name")
		llmTimeout   = fs.DurationLong("llm-timeout", llm.DefaultTimeout, "Timeout for a single provider attempt")
		maxTokens    = fs.IntLong("max-tokens", llm.DefaultParams.MaxTokens, "Maximum tokens per answer")
		temperature  = fs.Float64Long("temperature", llm.DefaultParams.Temperature, "Sampling temperature")
		topP         = fs.Float64Long("top-p", llm.DefaultParams.TopP, "Nucleus sampling cutoff")
		authUser     = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass     = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		showVersion  = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("CARD_ASSISTANT"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Check version flag after parsing
	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	ctx := context.Background()

	// Initialize database
	slog.Info("Initializing database...", "store", *store)
	var db assistant.DB
	var err error
	switch *store {
	case "json":
		db, err = assistant.NewJSONStore(*dataDir)
	case "bolt":
		db, err = assistant.NewBoltDB(*dbPath)
	default:
		err = fmt.Errorf("unknown store %q, valid: json or bolt", *store)
	}
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Initialize OCR engine
	var engine scanning.Engine
	switch *ocrEngine {
	case "tesseract":
		langs := splitList(*ocrLangs)
		slog.Info("Initializing Tesseract...", "languages", langs)
		engine = tesseract.New(langs...)
	case "vision":
		slog.Info("Initializing Cloud Vision...")
		engine, err = vision.New(ctx, *visionCreds)
		if err != nil {
			slog.Error("Failed to initialize Cloud Vision", "error", err)
			os.Exit(1)
		}
	default:
		slog.Error("Invalid OCR engine", "engine", *ocrEngine, "valid", "tesseract or vision")
		os.Exit(1)
	}
	scanner := scanning.NewScanner(engine, *maxWidth)
	defer scanner.Close()

	pdf, err := scanning.NewTextExtractor(*pdfEngine)
	if err != nil {
		slog.Error("Invalid PDF engine", "error", err)
		os.Exit(1)
	}

	// Initialize storage
	slog.Info("Initializing storage...", "path", filepath.Clean(*storagePath))
	files, err := assistant.NewLocalStorage(*storagePath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}

	// Initialize LLM providers
	chainProviders, closers, err := buildProviders(ctx, providerConfig{
		names:          splitList(*providers),
		offline:        *offline,
		hfURL:          *hfURL,
		hfToken:        firstNonEmpty(*hfToken, os.Getenv("HF_TOKEN")),
		hfModels:       splitList(*hfModels),
		ollamaURL:      *ollamaURL,
		ollamaModels:   splitList(*ollamaModels),
		geminiKey:      firstNonEmpty(*geminiKey, os.Getenv("GEMINI_API_KEY")),
		geminiModel:    *geminiModel,
		openaiKey:      firstNonEmpty(*openaiKey, os.Getenv("OPENAI_API_KEY")),
		openaiModel:    *openaiModel,
		openaiURL:      *openaiURL,
		anthropicKey:   firstNonEmpty(*anthropicKey, os.Getenv("ANTHROPIC_API_KEY")),
		anthropicModel: *anthropicMod,
	})
	for _, c := range closers {
		defer c()
	}
	if err != nil {
		slog.Error("Failed to initialize LLM providers", "error", err)
		os.Exit(1)
	}
	chain := llm.NewChain(*llmTimeout, llm.Params{
		MaxTokens:   *maxTokens,
		Temperature: *temperature,
		TopP:        *topP,
	}, chainProviders...)
	slog.Info("LLM chain ready", "providers", chain.Providers())

	// Initialize service
	service := assistant.NewService(db, scanner, files, pdf, chain)
	if err := service.SetCardParser(*cardParser); err != nil {
		slog.Error("Invalid card parser", "error", err)
		os.Exit(1)
	}

	// Initialize server
	basicAuth := assistant.BasicAuth{
		Username: *authUser,
		Password: *authPass,
	}
	server := assistant.NewServer(service, basicAuth)

	// Start server in goroutine
	addr := fmt.Sprintf(":%d", *port)
	go func() {
		if err := server.Start(addr); err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr), "version", version)
	if basicAuth.Enabled() {
		slog.Info("Basic auth enabled", "user", *authUser)
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server shutdown error", "error", err)
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
