package main

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"github.com/shopspring/decimal"

	"github.com/zombor/splitcheck/internal/receipt"
	"github.com/zombor/splitcheck/internal/scanning"
	"github.com/zombor/splitcheck/internal/session"
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

	fs := ff.NewFlagSet("splitcheck")
	var (
		port            = fs.IntLong("port", 8080, "HTTP server port")
		dbPath          = fs.StringLong("db", "splitcheck.db", "Session database file path (empty keeps sessions in memory)")
		storagePath     = fs.StringLong("storage", "./photos", "Receipt photo directory (empty disables photo storage)")
		scannerType     = fs.StringLong("scanner", "gemini", "Scanner type: 'gemini', 'ollama' or 'openai'")
		geminiKey       = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel     = fs.StringLong("gemini-model", "gemini-2.5-pro", "Google Gemini model name")
		ollamaURL       = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel     = fs.StringLong("ollama-model", "llava", "Ollama model name (e.g., llava, llava-phi3, qwen2-vl)")
		openaiKey       = fs.StringLong("openai-key", "", "OpenAI API key (or set OPENAI_API_KEY env var)")
		openaiModel     = fs.StringLong("openai-model", "gpt-4o-mini", "OpenAI vision model name")
		authUser        = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass        = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		sessionTTL      = fs.DurationLong("session-ttl", session.DefaultTTL, "How long a receipt stays usable")
		maxAge          = fs.DurationLong("max-age", session.DefaultMaxAge, "Absolute age after which the sweeper purges a receipt")
		sweepInterval   = fs.DurationLong("sweep-interval", time.Hour, "How often expired receipts are purged")
		weightTolerance = fs.StringLong("weight-tolerance", receipt.DefaultWeightTolerance.String(), "Largest unit price/total gap still read as one discrete unit")
		adjustmentOrder = fs.StringLong("adjustment-order", "service-first", "Receipt adjustment order: 'service-first' or 'discount-first'")
		logLevel        = fs.StringLong("log-level", "info", "Log level: debug, info, warn or error")
		showVersion     = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("SPLITCHECK"),
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

	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		fmt.Fprintf(os.Stderr, "error: invalid log level %q\n", *logLevel)
		os.Exit(1)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	calculator, err := newCalculator(*weightTolerance, *adjustmentOrder)
	if err != nil {
		slog.Error("Invalid calculator settings", "error", err)
		os.Exit(1)
	}

	// Initialize session store
	var store session.Store
	if *dbPath == "" {
		slog.Info("Keeping sessions in memory")
		store = session.NewMemoryStore()
	} else {
		slog.Info("Initializing database...", "path", *dbPath)
		store, err = session.NewBoltStore(*dbPath)
		if err != nil {
			slog.Error("Failed to initialize database", "error", err)
			os.Exit(1)
		}
	}
	defer store.Close()

	scanner, err := newScanner(*scannerType, scannerOptions{
		geminiKey:   *geminiKey,
		geminiModel: *geminiModel,
		ollamaURL:   *ollamaURL,
		ollamaModel: *ollamaModel,
		openaiKey:   *openaiKey,
		openaiModel: *openaiModel,
	})
	if err != nil {
		slog.Error("Failed to initialize scanner", "type", *scannerType, "error", err)
		os.Exit(1)
	}
	defer scanner.Close()

	// Initialize photo storage
	var storage session.Storage
	if *storagePath != "" {
		slog.Info("Initializing storage...", "path", *storagePath)
		local, err := session.NewLocalStorage(*storagePath)
		if err != nil {
			slog.Error("Failed to initialize storage", "error", err)
			os.Exit(1)
		}
		storage = local
	}

	service := session.NewService(store, scanner, storage, calculator)
	service.SetExpiry(*sessionTTL, *maxAge)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *sweepInterval > 0 {
		go service.RunSweeper(ctx, *sweepInterval)
	}

	server := session.NewServer(service, session.BasicAuth{
		Username: *authUser,
		Password: *authPass,
	})

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

	<-ctx.Done()
	slog.Info("Shutting down...")
}

func newCalculator(tolerance, order string) (*receipt.Calculator, error) {
	tol, err := decimal.NewFromString(tolerance)
	if err != nil || tol.IsNegative() {
		return nil, fmt.Errorf("invalid weight tolerance %q", tolerance)
	}
	steps, err := receipt.Pipeline(order)
	if err != nil {
		return nil, err
	}
	return &receipt.Calculator{
		Classifier: receipt.Classifier{Tolerance: tol},
		Steps:      steps,
	}, nil
}

type scannerOptions struct {
	geminiKey   string
	geminiModel string
	ollamaURL   string
	ollamaModel string
	openaiKey   string
	openaiModel string
}

func newScanner(kind string, opts scannerOptions) (scanning.Scanner, error) {
	switch kind {
	case "gemini":
		apiKey := opts.geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		slog.Info("Initializing Gemini scanner...", "model", opts.geminiModel)
		return scanning.NewGemini(apiKey, opts.geminiModel)
	case "ollama":
		slog.Info("Initializing Ollama scanner...", "url", opts.ollamaURL, "model", opts.ollamaModel)
		return scanning.NewOllama(opts.ollamaURL, opts.ollamaModel)
	case "openai":
		apiKey := opts.openaiKey
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		slog.Info("Initializing OpenAI scanner...", "model", opts.openaiModel)
		return scanning.NewOpenAI(apiKey, opts.openaiModel)
	}
	return nil, fmt.Errorf("invalid scanner type %q (valid: gemini, ollama or openai)", kind)
}
