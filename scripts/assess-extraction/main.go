// assess-extraction runs the full fetch -> normalize -> extract path against
// a real document and reports what the extractor produced. Use it to judge
// prompt or model changes before pointing the engine at a new source: the
// output shows the normalized text size, the structured summary, and a set
// of quality signals (confidence, empty fields, latency).
//
// Nothing is written to the database.
//
// Usage:
//
//	go run ./scripts/assess-extraction -url https://regulator.example.com/fees
//	go run ./scripts/assess-extraction -file notice.pdf -prompt "Track licensing fees"
//
// Requires: AI_API_KEY environment variable (or a configured local endpoint)
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lexwatch/lexwatch-engine/pkg/config"
	"github.com/lexwatch/lexwatch-engine/pkg/fetch"
	"github.com/lexwatch/lexwatch-engine/pkg/llm"
	"github.com/lexwatch/lexwatch-engine/pkg/logging"
	"github.com/lexwatch/lexwatch-engine/pkg/normalize"
	"github.com/lexwatch/lexwatch-engine/pkg/services"
)

func main() {
	url := flag.String("url", "", "URL to fetch and extract")
	file := flag.String("file", "", "Local HTML or PDF file to extract instead of fetching")
	prompt := flag.String("prompt", "Summarize the regulatory requirements and any fees or deadlines on this page.", "Project prompt handed to the extractor")
	jurisdictionPrompt := flag.String("jurisdiction-prompt", "", "Optional jurisdiction prompt")
	timeout := flag.Duration("timeout", 3*time.Minute, "Overall deadline for the run")
	flag.Parse()

	if (*url == "") == (*file == "") {
		fmt.Fprintf(os.Stderr, "Usage: %s -url <url> | -file <path> [-prompt <text>]\n", os.Args[0])
		os.Exit(1)
	}

	cfg, err := config.Load("assess-extraction")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(cfg.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	raw, contentType, err := loadContent(ctx, cfg, logger, *url, *file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load content: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Loaded %d bytes (%s)\n", len(raw), contentType)

	text, err := normalize.NewNormalizer(logger).Normalize(raw, contentType)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to normalize content: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Normalized to %d characters, %d words\n\n", len(text), len(strings.Fields(text)))

	llmClient, err := llm.NewClientForProvider(cfg.AI.Provider, &llm.Config{
		Endpoint:  cfg.AI.BaseURL,
		Model:     cfg.AI.Model,
		APIKey:    cfg.AI.APIKey,
		MaxTokens: cfg.AI.MaxTokens,
	}, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create LLM client: %v\n", err)
		os.Exit(1)
	}
	breaker := llm.NewCircuitBreaker(llm.DefaultCircuitBreakerConfig())
	extractor := services.NewExtractor(llmClient, breaker, &cfg.AI, &cfg.Extractor, logger)

	start := time.Now()
	summary, err := extractor.Extract(ctx, text, *prompt, *jurisdictionPrompt)
	elapsed := time.Since(start)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Extraction failed after %s: %v\n", elapsed.Round(time.Millisecond), err)
		os.Exit(1)
	}

	out, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render summary: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Structured summary (%s, model %s):\n%s\n\n", elapsed.Round(time.Millisecond), cfg.AI.Model, out)

	printAssessment(summary.Summary, summary.ConfidenceScore, len(summary.KeyPoints), summary.RiskLevel)
}

// loadContent fetches the URL through the engine's fetcher or reads a local
// file, returning the raw bytes and a content type for the normalizer.
func loadContent(ctx context.Context, cfg *config.Config, logger *zap.Logger, url, file string) ([]byte, string, error) {
	if url != "" {
		result, err := fetch.NewHTTPFetcher(&cfg.Fetcher, logger).Fetch(ctx, url, nil)
		if err != nil {
			return nil, "", err
		}
		return result.Body, result.ContentType, nil
	}

	raw, err := os.ReadFile(file)
	if err != nil {
		return nil, "", err
	}
	if strings.EqualFold(filepath.Ext(file), ".pdf") {
		return raw, "application/pdf", nil
	}
	return raw, http.DetectContentType(raw), nil
}

// printAssessment flags the cheap-to-check quality problems. It is a smoke
// signal, not a verdict: read the summary itself before trusting a source.
func printAssessment(summary string, confidence float64, keyPoints int, riskLevel string) {
	fmt.Println("Assessment:")

	ok := true
	check := func(passed bool, label string) {
		status := "ok"
		if !passed {
			status = "WARN"
			ok = false
		}
		fmt.Printf("  [%s] %s\n", status, label)
	}

	check(summary != "", "summary is non-empty")
	check(len(strings.Fields(summary)) >= 10, "summary has at least 10 words")
	check(confidence >= 0.5, fmt.Sprintf("confidence score %.2f >= 0.50", confidence))
	check(keyPoints > 0, fmt.Sprintf("key points present (%d)", keyPoints))
	check(riskLevel != "", "risk level assigned")

	if ok {
		fmt.Println("\nExtraction looks usable.")
		return
	}
	fmt.Println("\nExtraction has gaps; review the prompt or the source content.")
}
