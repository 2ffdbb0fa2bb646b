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

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/quarkcity/meal-ledger/internal/config"
	"github.com/quarkcity/meal-ledger/internal/drive"
	"github.com/quarkcity/meal-ledger/internal/extraction"
	"github.com/quarkcity/meal-ledger/internal/ledger"
	"github.com/quarkcity/meal-ledger/internal/pipeline"
	"github.com/quarkcity/meal-ledger/internal/recognition"
	"github.com/quarkcity/meal-ledger/internal/reconcile"
	"github.com/quarkcity/meal-ledger/internal/service"
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

	fs := ff.NewFlagSet("meal-ledger")
	var (
		port          = fs.IntLong("port", 8080, "HTTP server port")
		configPath    = fs.StringLong("config", "", "YAML config file path (optional)")
		stagingPath   = fs.StringLong("staging-db", "meal-ledger.db", "Staging database file path")
		imageDir      = fs.StringLong("image-dir", "", "Local receipt directory (skips Drive when set)")
		month         = fs.StringLong("month", "", "Default month folder, e.g. 'October 2025'")
		geminiKey     = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel   = fs.StringLong("gemini-model", "gemini-2.5-pro", "Google Gemini model name")
		openaiKey     = fs.StringLong("openai-key", "", "OpenAI API key for embeddings (or set OPENAI_API_KEY env var)")
		embedModel    = fs.StringLong("embedding-model", "text-embedding-3-small", "OpenAI embedding model name")
		credentials   = fs.StringLong("credentials", "credentials.json", "Google service account credentials file")
		spreadsheetID = fs.StringLong("spreadsheet", "", "Spreadsheet id holding the roster and archive sheets")
		authUser      = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass      = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		showVersion   = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("MEAL_LEDGER"),
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

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	if *spreadsheetID != "" {
		cfg.Sheets.SpreadsheetID = *spreadsheetID
	}
	if cfg.Sheets.SpreadsheetID == "" {
		slog.Error("Spreadsheet id is required. Set --spreadsheet flag or sheets.spreadsheet_id in the config file")
		os.Exit(1)
	}

	apiKey := *geminiKey
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		slog.Error("Gemini API key is required. Set --gemini-key flag or GEMINI_API_KEY environment variable")
		os.Exit(1)
	}

	embeddingKey := *openaiKey
	if embeddingKey == "" {
		embeddingKey = os.Getenv("OPENAI_API_KEY")
	}
	if embeddingKey == "" {
		slog.Error("OpenAI API key is required. Set --openai-key flag or OPENAI_API_KEY environment variable")
		os.Exit(1)
	}

	slog.Info("Initializing recognizer...", "model", *geminiModel)
	ocr, err := recognition.NewGemini(apiKey, *geminiModel)
	if err != nil {
		slog.Error("Failed to initialize Gemini", "error", err)
		os.Exit(1)
	}
	defer ocr.Close()

	slog.Info("Initializing similarity model...", "model", *embedModel)
	sim, err := recognition.NewEmbeddings(embeddingKey, *embedModel)
	if err != nil {
		slog.Error("Failed to initialize embeddings", "error", err)
		os.Exit(1)
	}

	slog.Info("Initializing staging store...")
	staging, err := pipeline.NewBoltStaging(*stagingPath)
	if err != nil {
		slog.Error("Failed to initialize staging store", "error", err)
		os.Exit(1)
	}
	defer staging.Close()

	ctx := context.Background()

	var source service.Source
	if *imageDir != "" {
		slog.Info("Using local receipt directory", "path", *imageDir)
		source, err = service.NewLocalSource(*imageDir)
	} else {
		slog.Info("Using Google Drive source", "root_folder", cfg.Drive.RootFolderName)
		source, err = drive.NewSource(ctx, *credentials, cfg.Drive.RootFolderName)
	}
	if err != nil {
		slog.Error("Failed to initialize image source", "error", err)
		os.Exit(1)
	}

	rosterSheet, err := ledger.NewGoogleSheet(ctx, *credentials, cfg.Sheets.SpreadsheetID, cfg.Sheets.RosterSheet)
	if err != nil {
		slog.Error("Failed to initialize roster sheet", "error", err)
		os.Exit(1)
	}
	archiveSheet, err := ledger.NewGoogleSheet(ctx, *credentials, cfg.Sheets.SpreadsheetID, cfg.Sheets.ArchiveSheet)
	if err != nil {
		slog.Error("Failed to initialize archive sheet", "error", err)
		os.Exit(1)
	}

	extractor := extraction.NewExtractor(ocr, sim, cfg.Extraction)
	scheduler := pipeline.NewScheduler(extractor, staging, cfg.Scheduler)
	reconciler := reconcile.NewReconciler(sim, cfg.Reconcile)
	merger := ledger.NewMerger(archiveSheet)
	progress := pipeline.NewProgressStore()

	runner := service.NewRunner(source, scheduler, staging, rosterSheet, reconciler, merger, progress)

	basicAuth := service.BasicAuth{
		Username: *authUser,
		Password: *authPass,
	}
	employees, _ := source.(service.EmployeeLister)
	server := service.NewServer(runner, employees, basicAuth, *month)

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
