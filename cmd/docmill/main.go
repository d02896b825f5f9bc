package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"docmill/internal/models"
	cfgPkg "docmill/pkg/config"
	"docmill/pkg/fetcher"
	"docmill/pkg/processor"
	"docmill/server"
	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	log "github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/schema"
)

type Config struct {
	ConfigPath   string
	File         string
	Dir          string
	DocsURL      string
	ChunkSize    int
	ChunkOverlap int
	MaxDepth     int
	RateLimit    float64
	Serve        bool
	Addr         string
}

func main() {
	config := parseFlags()

	log.SetOutput(os.Stdout)

	if err := run(config); err != nil {
		log.Fatal(err)
	}
}

func parseFlags() Config {
	var config Config

	flag.StringVar(&config.ConfigPath, "config", "", "Path to YAML config file")
	flag.StringVar(&config.File, "file", "", "Load and split a single document")
	flag.StringVar(&config.Dir, "dir", "", "Process every supported document in a directory")
	flag.StringVar(&config.DocsURL, "docs-url", "", "Documentation URL to fetch documents from")
	flag.IntVar(&config.ChunkSize, "chunk-size", 0, "Size of text chunks (0 uses the configured value)")
	flag.IntVar(&config.ChunkOverlap, "chunk-overlap", 0, "Overlap between chunks (0 uses the configured value)")
	flag.IntVar(&config.MaxDepth, "max-depth", 2, "Maximum depth for document fetching")
	flag.Float64Var(&config.RateLimit, "rate-limit", 2.0, "Rate limit for document fetching")
	flag.BoolVar(&config.Serve, "serve", false, "Run the document intake server")
	flag.StringVar(&config.Addr, "addr", ":8080", "Address for the intake server")
	flag.Parse()

	return config
}

func getProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetItsString("docs"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func getSpinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func run(config Config) error {
	settings, err := cfgPkg.LoadSettings(config.ConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load settings: %v", err)
	}
	if level, err := log.ParseLevel(settings.LogLevel); err == nil {
		log.SetLevel(level)
	}

	chunkSize := settings.ChunkSize
	if config.ChunkSize > 0 {
		chunkSize = config.ChunkSize
	}
	chunkOverlap := settings.ChunkOverlap
	if config.ChunkOverlap > 0 {
		chunkOverlap = config.ChunkOverlap
	}

	proc := processor.NewWithConfig(processor.Config{
		ChunkSize:    chunkSize,
		ChunkOverlap: chunkOverlap,
	})

	if config.Serve {
		srv, err := server.New(server.Config{
			Addr:           config.Addr,
			UploadDir:      settings.UploadDirectory,
			MaxUploadBytes: settings.MaxFileSizeBytes(),
			Processor:      proc,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize server: %v", err)
		}
		color.Cyan("\nDocument intake listening on %s\n", config.Addr)
		return srv.ListenAndServe()
	}

	ctx := context.Background()

	// If a docs URL is provided, fetch linked documents into the upload
	// directory before processing.
	if config.DocsURL != "" {
		color.Blue("\nFetching documents from %s\n", config.DocsURL)

		fetchingBar := getProgressBar(-1, "Fetching documents...")
		f, err := fetcher.NewWithConfig(fetcher.FetcherConfig{
			BaseURL:     config.DocsURL,
			OutputDir:   settings.UploadDirectory,
			MaxDepth:    config.MaxDepth,
			RateLimit:   config.RateLimit,
			MaxFileSize: settings.MaxFileSizeBytes(),
			OnFetched: func(doc models.FetchedDocument) {
				fetchingBar.Add(1)
			},
		})
		if err != nil {
			return fmt.Errorf("failed to initialize fetcher: %v", err)
		}

		fetched, err := f.Fetch(ctx)
		if err != nil {
			return fmt.Errorf("failed to fetch documents: %v", err)
		}
		fetchingBar.Finish()
		color.Green("\n✓ Fetched %d documents\n", len(fetched))
	}

	var records []schema.Document
	if config.File != "" {
		spinner := getSpinner("Loading document...")
		records, err = proc.LoadDocument(ctx, config.File)
		spinner.Finish()
		fmt.Print("\n")
	} else {
		dir := config.Dir
		if dir == "" {
			dir = settings.UploadDirectory
		}
		spinner := getSpinner("Processing directory...")
		records, err = proc.ProcessDirectory(ctx, dir)
		spinner.Finish()
		fmt.Print("\n")
	}
	if err != nil {
		return fmt.Errorf("failed to load documents: %v", err)
	}
	color.Green("✓ Loaded %d documents\n", len(records))

	chunks, err := proc.SplitDocuments(records)
	if err != nil {
		return fmt.Errorf("failed to split documents: %v", err)
	}

	totalChars := 0
	for _, chunk := range chunks {
		totalChars += len(chunk.PageContent)
	}
	avgSize := 0.0
	if len(chunks) > 0 {
		avgSize = float64(totalChars) / float64(len(chunks))
	}

	color.Green("✓ Split into %d chunks\n", len(chunks))
	color.Cyan("  characters: %d, avg. chunk size: %.1f\n", totalChars, avgSize)

	return nil
}
