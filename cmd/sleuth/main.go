package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"sleuth/internal/adapter/llm"
	"sleuth/internal/adapter/tool"
	"sleuth/internal/domain"
	"sleuth/internal/infra/config"
	"sleuth/internal/infra/logger"
	"sleuth/internal/infra/tracer"
	"sleuth/internal/usecase"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", "sleuth.yaml", "path to config file")
		outputFile = flag.String("output", "", "report output file (overrides config)")
		provider   = flag.String("provider", "", "LLM provider name (overrides config)")
	)
	flag.Usage = showUsage
	flag.Parse()

	query := strings.TrimSpace(strings.Join(flag.Args(), " "))
	if query == "" {
		showUsage()
		return fmt.Errorf("no research query given")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *outputFile != "" {
		cfg.Research.OutputFile = *outputFile
	}
	if *provider != "" {
		cfg.LLM.DefaultProvider = *provider
	}

	log, closeLog, err := logger.New(cfg.Logger)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(shutdownCtx); err != nil {
			log.Warn("tracer shutdown failed", "error", err)
		}
	}()

	providers, err := llm.FromConfig(cfg.LLM, log)
	if err != nil {
		return err
	}
	model, err := providers.Get(cfg.LLM.DefaultProvider)
	if err != nil {
		return err
	}

	metrics := usecase.NewMetrics()

	tools, err := buildTools(cfg, model, log, metrics)
	if err != nil {
		return err
	}

	engine := usecase.NewEngine(usecase.EngineDeps{
		LLM:      model,
		Tools:    tools,
		Logger:   log,
		Metrics:  metrics,
		MaxSteps: cfg.Research.MaxSteps,
	})
	research := usecase.NewResearch(usecase.ResearchDeps{
		Engine:       engine,
		Logger:       log,
		SystemPrompt: cfg.Research.SystemPrompt,
	})

	if cfg.Research.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Research.Timeout)
		defer cancel()
	}

	log.Info("starting research", "query", query, "provider", model.Name())

	report, _, err := research.Run(ctx, query)
	if err != nil {
		return err
	}
	if report.Fallback {
		log.Warn("report fell back to the last assistant message")
	}

	if err := os.WriteFile(cfg.Research.OutputFile, []byte(report.Body+"\n"), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	fmt.Printf("Report written to %s\n\n", cfg.Research.OutputFile)
	fmt.Print(metrics.Snapshot().Summary())
	return nil
}

// buildTools assembles the research tool registry from config. The validator
// gets its own registry holding only evidence tools, so fact-check
// sub-conversations cannot recurse into fact_check.
func buildTools(cfg *config.Config, model domain.LLMProvider, log *slog.Logger, metrics *usecase.Metrics) (*tool.Registry, error) {
	var backend tool.SearchBackend
	switch cfg.Tools.SearchBackend {
	case "searxng":
		backend = tool.NewSearXNGBackend(cfg.Tools.SearXNGURL, log)
	case "", "duckduckgo":
		backend = tool.NewDuckDuckGoBackend(cfg.Tools.UserAgent, log)
	default:
		return nil, fmt.Errorf("unknown search backend %q", cfg.Tools.SearchBackend)
	}

	search := tool.NewWebSearchTool(backend, cfg.Tools.SearchCacheTTL, log)
	crawl := tool.NewCrawlTool(cfg.Tools.CrawlTimeout, cfg.Tools.CrawlMaxChars, cfg.Tools.UserAgent, log)

	registry := tool.NewRegistry(log)
	for _, t := range []domain.Tool{search, crawl} {
		if err := registry.Register(t); err != nil {
			return nil, err
		}
	}

	if cfg.Tools.WikipediaEnabled {
		wiki := tool.NewWikipediaClient(cfg.Tools.WikipediaLanguage, cfg.Tools.UserAgent, log)
		if err := registry.Register(tool.NewWikipediaSearchTool(wiki, log)); err != nil {
			return nil, err
		}
		if err := registry.Register(tool.NewWikipediaSectionTool(wiki, log)); err != nil {
			return nil, err
		}
	}

	if cfg.Tools.WolframEnabled {
		if cfg.Tools.WolframAppID == "" {
			return nil, fmt.Errorf("wolfram enabled but no app ID configured")
		}
		if err := registry.Register(tool.NewWolframTool(cfg.Tools.WolframAppID, cfg.Tools.WolframTimeout, log)); err != nil {
			return nil, err
		}
		if err := registry.Register(tool.NewRewriteTool(model, log)); err != nil {
			return nil, err
		}
	}

	if cfg.Validator.Enabled {
		evidence := tool.NewRegistry(log)
		for _, t := range []domain.Tool{search, crawl} {
			if err := evidence.Register(t); err != nil {
				return nil, err
			}
		}

		validator := usecase.NewValidator(usecase.ValidatorDeps{
			LLM:           model,
			Tools:         evidence,
			Logger:        log,
			Metrics:       metrics,
			MaxRounds:     cfg.Validator.MaxRounds,
			MaxSteps:      cfg.Validator.MaxSteps,
			MaxConcurrent: cfg.Validator.MaxConcurrent,
		})
		if err := registry.Register(tool.NewFactCheckTool(validator, log)); err != nil {
			return nil, err
		}
	}

	return registry, nil
}

func showUsage() {
	fmt.Fprintf(os.Stderr, `sleuth - validated research assistant

Usage:
  sleuth [flags] <research query>

Flags:
  -config string    path to config file (default "sleuth.yaml")
  -output string    report output file (overrides config)
  -provider string  LLM provider name (overrides config)

Environment:
  SLEUTH_* variables override config values, e.g. SLEUTH_LLM_API_KEY,
  SLEUTH_TOOLS_SEARCH_BACKEND, WOLFRAM_ALPHA_APPID.
`)
}
