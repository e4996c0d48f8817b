package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"github.com/dikastis/cylaw/internal/models"
	"github.com/dikastis/cylaw/pkg/chunker"
	cfgPkg "github.com/dikastis/cylaw/pkg/config"
	"github.com/dikastis/cylaw/pkg/courts"
	"github.com/dikastis/cylaw/pkg/extract"
	"github.com/dikastis/cylaw/pkg/ingest"
	"github.com/dikastis/cylaw/pkg/llm"
	"github.com/dikastis/cylaw/pkg/scraper"
	"github.com/dikastis/cylaw/pkg/store"
	"github.com/dikastis/cylaw/server"
)

func loadConfig(path string) (*cfgPkg.Config, error) {
	cfg, err := cfgPkg.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			log.Printf("config: %v", e)
		}
		return nil, fmt.Errorf("invalid configuration (%d problems)", len(errs))
	}
	return cfg, nil
}

// buildEmbedder applies a -provider override before constructing the
// embedder. Switching provider clears the configured model and dimensions
// so the other provider's defaults are not carried over.
func buildEmbedder(cfg *cfgPkg.Config, provider string) (*llm.Embedder, error) {
	if provider != "" && provider != cfg.Embedding.Provider {
		cfg.Embedding.Provider = provider
		cfg.Embedding.Model = ""
		cfg.Embedding.Dimensions = 0
		cfg.Embedding.BatchSize = 0
	}
	embedder, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{
		Provider:   cfg.Embedding.Provider,
		Model:      cfg.Embedding.Model,
		BaseURL:    cfg.Embedding.BaseURL,
		Dimensions: cfg.Embedding.Dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	return embedder, nil
}

func buildStore(cfg *cfgPkg.Config, vectorDim int) (*store.VectorStore, error) {
	vectorStore, err := store.NewWithConfig(store.VectorStoreConfig{
		ConnString:     cfg.Database.URL,
		ChunksTable:    cfg.Database.ChunksTable,
		DocumentsTable: cfg.Database.DocumentsTable,
		VectorDim:      vectorDim,
		SearchLimit:    cfg.Database.SearchLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vector store: %w", err)
	}
	return vectorStore, nil
}

func buildChatEngine(cfg *cfgPkg.Config) (*llm.ChatEngine, error) {
	engine, err := llm.NewWithConfig(llm.ChatConfig{
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
		BaseURL:     cfg.LLM.BaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chat engine: %w", err)
	}
	return engine, nil
}

func getProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetItsString("items"),
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

func runScrape(args []string) error {
	fs := flag.NewFlagSet("scrape", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	courtID := fs.String("court", "", "scrape a single court by ID")
	all := fs.Bool("all", false, "scrape every known court")
	updates := fs.Bool("updates", false, "scrape the recent-decisions page only")
	stats := fs.Bool("stats", false, "print statistics for saved indexes")
	cacheDir := fs.String("cache-dir", "", "override the page cache directory")
	outputDir := fs.String("output-dir", "", "override the index output directory")
	fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if *cacheDir != "" {
		cfg.Scraper.CacheDir = *cacheDir
	}
	if *outputDir != "" {
		cfg.Scraper.IndexDir = *outputDir
	}

	modes := 0
	for _, picked := range []bool{*courtID != "", *all, *updates, *stats} {
		if picked {
			modes++
		}
	}
	if modes != 1 {
		return fmt.Errorf("pick exactly one of -court, -all, -updates or -stats")
	}

	if *stats {
		return printIndexStats(cfg.Scraper.IndexDir)
	}

	s, err := scraper.NewWithConfig(scraper.ScraperConfig{
		BaseURL:      cfg.Scraper.BaseURL,
		CacheDir:     cfg.Scraper.CacheDir,
		RequestDelay: cfg.Scraper.RequestDelay,
		MaxRetries:   cfg.Scraper.MaxRetries,
		Timeout:      time.Duration(cfg.Scraper.Timeout) * time.Second,
		UserAgent:    cfg.Scraper.UserAgent,
		OnYear: func(courtID, year string, count int) {
			log.Printf("%s %s: %d cases", courtID, year, count)
		},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize scraper: %w", err)
	}

	ctx := context.Background()

	if *updates {
		entries, err := s.ScrapeUpdates(ctx)
		if err != nil {
			return err
		}
		path, err := scraper.SaveUpdatesIndex(entries, cfg.Scraper.IndexDir)
		if err != nil {
			return err
		}
		color.Green("✓ %d cases from the updates page saved to %s\n", len(entries), path)
		return nil
	}

	courtsToScrape := scraper.Courts
	if *courtID != "" {
		court, err := scraper.GetCourt(*courtID)
		if err != nil {
			return err
		}
		courtsToScrape = []scraper.Court{court}
	}

	grandTotal := 0
	for _, court := range courtsToScrape {
		entries, err := s.ScrapeCourt(ctx, court)
		if err != nil {
			return err
		}
		path, err := scraper.SaveCourtIndex(court.ID, entries, cfg.Scraper.IndexDir)
		if err != nil {
			return err
		}
		grandTotal += len(entries)
		color.Green("✓ %s: %d cases saved to %s\n", court.ID, len(entries), path)
	}
	if *all {
		color.Cyan("\nDone: %d total cases across %d courts\n", grandTotal, len(courtsToScrape))
	}
	return nil
}

func printIndexStats(indexDir string) error {
	paths, err := filepath.Glob(filepath.Join(indexDir, "*.json"))
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		fmt.Println("No index data found. Run scraping first.")
		return nil
	}
	sort.Strings(paths)

	fmt.Printf("\n%-28s %8s  %s\n", "Court", "Total", "Year range")
	fmt.Println(strings.Repeat("-", 60))

	totalAll := 0
	for _, p := range paths {
		stem := strings.TrimSuffix(filepath.Base(p), ".json")
		index, err := scraper.LoadCourtIndex(stem, indexDir)
		if err != nil {
			return err
		}
		if index == nil {
			continue
		}

		name := index.Court
		if name == "" {
			name = index.Source
		}
		years := make([]string, 0, len(index.ByYear))
		for y := range index.ByYear {
			years = append(years, y)
		}
		sort.Strings(years)
		yearRange := "-"
		if len(years) > 0 {
			yearRange = years[0] + "-" + years[len(years)-1]
		}

		fmt.Printf("%-28s %8d  %s\n", name, index.Total, yearRange)
		totalAll += index.Total
	}

	fmt.Println(strings.Repeat("-", 60))
	fmt.Printf("%-28s %8d\n\n", "TOTAL", totalAll)
	return nil
}

func runDownload(args []string) error {
	fs := flag.NewFlagSet("download", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	threads := fs.Int("threads", 0, "parallel download workers")
	delay := fs.Float64("delay", 0, "per-worker pause between requests, seconds")
	limit := fs.Int("limit", 0, "download only the first N files")
	indexDir := fs.String("index-dir", "", "directory holding the scraped indexes")
	outputDir := fs.String("output-dir", "", "directory for downloaded case files")
	progressFile := fs.String("progress", "data/download_progress.json", "progress file for resume")
	fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if *indexDir == "" {
		*indexDir = cfg.Scraper.IndexDir
	}
	if *outputDir == "" {
		*outputDir = cfg.Scraper.CasesDir
	}
	if *threads == 0 {
		*threads = cfg.Scraper.Threads
	}

	entries, err := scraper.CollectEntries(*indexDir)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return fmt.Errorf("no case entries under %s, run scrape first", *indexDir)
	}
	if *limit > 0 && *limit < len(entries) {
		entries = entries[:*limit]
	}

	d, err := scraper.NewDownloader(scraper.DownloaderConfig{
		BaseURL:      cfg.Scraper.BaseURL,
		OutputDir:    *outputDir,
		ProgressFile: *progressFile,
		Threads:      *threads,
		Delay:        *delay,
		Timeout:      time.Duration(cfg.Scraper.Timeout) * time.Second,
		MaxRetries:   cfg.Scraper.MaxRetries,
		UserAgent:    cfg.Scraper.UserAgent,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize downloader: %w", err)
	}

	bar := getProgressBar(len(entries), " Downloading cases...")
	stats := d.Run(context.Background(), entries, func() { bar.Add(1) })
	bar.Finish()

	color.Green("\n✓ %d downloaded (%.1f MB), %d already present, %d failed\n",
		stats.Downloaded, float64(stats.TotalBytes)/(1024*1024), stats.Skipped, stats.Failed)
	if stats.Failed > 0 {
		log.Printf("%d downloads failed, rerun to retry them", stats.Failed)
	}
	return nil
}

func runExtract(args []string) error {
	fs := flag.NewFlagSet("extract", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	limit := fs.Int("limit", 0, "process only the first N files")
	workers := fs.Int("workers", 0, "parallel workers")
	court := fs.String("court", "", "process only this court")
	inputDir := fs.String("input-dir", "", "directory of downloaded case files")
	outputDir := fs.String("output-dir", "", "directory for Markdown output")
	fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if *inputDir == "" {
		*inputDir = cfg.Scraper.CasesDir
	}
	if *outputDir == "" {
		*outputDir = cfg.Scraper.ParsedDir
	}
	if *workers == 0 {
		*workers = runtime.NumCPU()
	}

	e := extract.New(extract.Config{
		InputDir:  *inputDir,
		OutputDir: *outputDir,
		Workers:   *workers,
		Court:     *court,
		Limit:     *limit,
	})

	files, err := e.CollectFiles()
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no case files under %s, run download first", *inputDir)
	}

	color.Cyan("Converting %d case files (%d workers)\n", len(files), *workers)
	bar := getProgressBar(len(files), " Extracting Markdown...")
	stats := e.Run(context.Background(), files, func() { bar.Add(1) })
	bar.Finish()

	color.Green("\n✓ %d converted, %d skipped, %d failed\n", stats.Processed, stats.Skipped, stats.Failed)
	fmt.Printf("total: %d words, %d characters, %d cross-references\n",
		stats.TotalWords, stats.TotalChars, stats.TotalRefs)

	ids := make([]string, 0, len(stats.FilesByCourt))
	for id := range stats.FilesByCourt {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		fmt.Printf("  %-28s %6d files %10d words %6d refs\n",
			id, stats.FilesByCourt[id], stats.WordsByCourt[id], stats.RefsByCourt[id])
	}

	if len(stats.Errors) > 0 {
		color.Red("\nFailures:\n")
		for i, fe := range stats.Errors {
			if i == 10 {
				fmt.Printf("  ... and %d more\n", len(stats.Errors)-10)
				break
			}
			fmt.Printf("  %s: %s\n", fe.Path, fe.Message)
		}
	}
	return nil
}

func runIngest(args []string) error {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	provider := fs.String("provider", "", "embed with \"local\" or \"openai\"")
	court := fs.String("court", "", "ingest only this court")
	limit := fs.Int("limit", 0, "ingest only the first N documents")
	batchSize := fs.Int("batch-size", 0, "embedding batch size")
	workers := fs.Int("workers", 0, "parallel chunking workers")
	inputDir := fs.String("input-dir", "", "directory of parsed Markdown cases")
	docs := fs.Bool("docs", false, "store one truncated record per document instead of chunks")
	stats := fs.Bool("stats", false, "print store row counts and exit")
	fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	embedder, err := buildEmbedder(cfg, *provider)
	if err != nil {
		return err
	}
	vectorStore, err := buildStore(cfg, embedder.Dimensions())
	if err != nil {
		return err
	}
	defer vectorStore.Close()

	ctx := context.Background()

	if *stats {
		chunks, err := vectorStore.CountChunks(ctx)
		if err != nil {
			return err
		}
		documents, err := vectorStore.CountDocuments(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("chunks: %d\ndocuments: %d\n", chunks, documents)
		return nil
	}

	if *inputDir == "" {
		*inputDir = cfg.Scraper.ParsedDir
	}
	progressFile := filepath.Join("data", "ingest_progress.json")
	if *docs {
		progressFile = filepath.Join("data", "ingest_docs_progress.json")
	}

	ck := chunker.NewWithConfig(chunker.Config{
		ChunkSize:       cfg.Chunker.ChunkSize,
		ChunkOverlap:    cfg.Chunker.ChunkOverlap,
		MinTailChars:    cfg.Chunker.MinTailChars,
		MaxContentChars: cfg.Chunker.MaxContentChars,
	})

	runner, err := ingest.NewRunner(ingest.Config{
		InputDir:     *inputDir,
		Court:        *court,
		Limit:        *limit,
		BatchSize:    *batchSize,
		Workers:      *workers,
		ProgressFile: progressFile,
	}, ck, embedder, vectorStore)
	if err != nil {
		return err
	}

	var runStats *ingest.Stats
	if *docs {
		runStats, err = runner.RunDocuments(ctx)
	} else {
		runStats, err = runner.Run(ctx)
	}
	if err != nil {
		return err
	}

	if runStats.Embedded > 0 {
		if err := vectorStore.Analyze(ctx); err != nil {
			log.Printf("analyze after load: %v", err)
		}
	}
	return nil
}

func runSearch(args []string) error {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	provider := fs.String("provider", "", "embed with \"local\" or \"openai\"")
	court := fs.String("court", "", "filter by court ID")
	yearFrom := fs.Int("year-from", 0, "earliest decision year")
	yearTo := fs.Int("year-to", 0, "latest decision year")
	n := fs.Int("n", 10, "number of results")
	docs := fs.Bool("docs", false, "search document records instead of chunks")
	fs.Parse(args)

	query := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if query == "" {
		return fmt.Errorf("usage: cylaw search [flags] <query>")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	embedder, err := buildEmbedder(cfg, *provider)
	if err != nil {
		return err
	}
	vectorStore, err := buildStore(cfg, embedder.Dimensions())
	if err != nil {
		return err
	}
	defer vectorStore.Close()

	ctx := context.Background()
	spinner := getSpinner(" Searching case law...")

	embeddings, err := embedder.CreateEmbedding(ctx, []string{query})
	if err != nil {
		spinner.Finish()
		return fmt.Errorf("failed to embed query: %w", err)
	}

	opts := models.SearchOptions{
		Court:    *court,
		YearFrom: *yearFrom,
		YearTo:   *yearTo,
		Limit:    *n,
	}
	var results []models.SearchResult
	if *docs {
		results, err = vectorStore.SearchDocuments(ctx, embeddings[0], opts)
	} else {
		results, err = vectorStore.Search(ctx, embeddings[0], opts)
	}
	spinner.Finish()
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	fmt.Print("\n")
	if len(results) == 0 {
		fmt.Println("No results.")
		return nil
	}
	printResults(results, *docs)
	return nil
}

func printResults(results []models.SearchResult, docLevel bool) {
	title := color.New(color.FgCyan, color.Bold).PrintfFunc()
	meta := color.New(color.Faint).PrintfFunc()

	for i, r := range results {
		title("%d. %s\n", i+1, r.Title)
		year := r.Year
		if year == "" {
			year = "unknown year"
		}
		if docLevel {
			meta("   %s | %s | %.1f%%\n", courts.DisplayName(r.Court), year, r.Score)
		} else {
			meta("   %s | %s | chunk %d | %.1f%%\n", courts.DisplayName(r.Court), year, r.ChunkIndex, r.Score)
		}
		fmt.Printf("   %s\n\n", excerpt(r.Text, 240))
	}
}

func excerpt(text string, limit int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}

func runChat(args []string) error {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	provider := fs.String("provider", "", "embed with \"local\" or \"openai\"")
	model := fs.String("model", "", "override the chat model")
	n := fs.Int("n", 0, "number of excerpts to retrieve per question")
	fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if *model != "" {
		cfg.LLM.Model = *model
	}

	embedder, err := buildEmbedder(cfg, *provider)
	if err != nil {
		return err
	}
	vectorStore, err := buildStore(cfg, embedder.Dimensions())
	if err != nil {
		return err
	}
	defer vectorStore.Close()

	chatEngine, err := buildChatEngine(cfg)
	if err != nil {
		return err
	}

	limit := *n
	if limit == 0 {
		limit = cfg.Database.SearchLimit
	}

	color.Cyan("\nChat with the case-law corpus (type 'exit' to quit)")

	scanner := bufio.NewScanner(os.Stdin)
	userPrompt := color.New(color.FgGreen).PrintfFunc()
	assistantPrompt := color.New(color.FgCyan).PrintfFunc()
	dim := color.New(color.Faint).PrintfFunc()
	ctx := context.Background()

	for {
		userPrompt("\nYou: ")
		if !scanner.Scan() {
			break
		}

		query := strings.TrimSpace(scanner.Text())
		if query == "" {
			continue
		}
		if strings.ToLower(query) == "exit" {
			break
		}

		embeddings, err := embedder.CreateEmbedding(ctx, []string{query})
		if err != nil {
			color.Red("Failed to embed query: %v\n", err)
			continue
		}

		querySpinner := getSpinner(" Searching case law...")
		results, err := vectorStore.Search(ctx, embeddings[0], models.SearchOptions{Limit: limit})
		querySpinner.Finish()
		if err != nil {
			color.Red("Error searching cases: %v\n", err)
			continue
		}

		fmt.Print("\n")
		assistantPrompt("Assistant: ")

		responseSpinner := getSpinner(" Thinking...")
		firstToken := true
		err = chatEngine.ChatStream(ctx, query, results, func(token string) {
			if firstToken {
				responseSpinner.Finish()
				firstToken = false
				fmt.Print("\n")
			}
			fmt.Print(token)
		})
		if firstToken {
			responseSpinner.Finish()
		}
		if err != nil {
			color.Red("\nError: %v\n", err)
			continue
		}
		fmt.Print("\n")

		if grouped := store.GroupResults(results, 3); len(grouped) > 0 {
			dim("\nSources:\n")
			for _, g := range grouped {
				year := g.Year
				if year == "" {
					year = "?"
				}
				dim("  %s (%s %s) %.1f%%\n", g.Title, courts.DisplayName(g.Court), year, g.BestScore)
			}
		}
	}

	return scanner.Err()
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	port := fs.Int("port", 0, "listen port")
	provider := fs.String("provider", "", "embed with \"local\" or \"openai\"")
	fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}

	embedder, err := buildEmbedder(cfg, *provider)
	if err != nil {
		return err
	}
	vectorStore, err := buildStore(cfg, embedder.Dimensions())
	if err != nil {
		return err
	}
	defer vectorStore.Close()

	chatEngine, err := buildChatEngine(cfg)
	if err != nil {
		return err
	}

	srv := server.New(server.Config{
		Port:           cfg.Server.Port,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		CasesDir:       cfg.Scraper.ParsedDir,
		SearchLimit:    cfg.Database.SearchLimit,
	}, embedder, vectorStore, chatEngine)
	return srv.Run()
}
