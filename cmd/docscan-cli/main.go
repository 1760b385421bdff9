// Command docscan-cli runs section detection or value extraction on local
// files and URLs without the HTTP server.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docscan/internal/app"
	"github.com/kailas-cloud/docscan/internal/config"
	"github.com/kailas-cloud/docscan/internal/domain"
	logpkg "github.com/kailas-cloud/docscan/internal/logger"
	"github.com/kailas-cloud/docscan/internal/metrics"
	"github.com/kailas-cloud/docscan/internal/report"
	"github.com/kailas-cloud/docscan/internal/usecase/pipeline"
)

type options struct {
	sections string
	expert   string
	include  string
	exclude  string
	pool     int
	out      string
	xlsx     bool
	detect   bool
	mode     string
}

func main() {
	var opts options
	flag.StringVar(&opts.sections, "sections", "", "comma-separated section titles (detected from the first document when empty)")
	flag.StringVar(&opts.expert, "expert", "", "expert extraction instructions")
	flag.StringVar(&opts.include, "include", "", "routing include filter")
	flag.StringVar(&opts.exclude, "exclude", "", "routing exclude filter")
	flag.IntVar(&opts.pool, "pool", 0, "worker pool size override (api mode)")
	flag.StringVar(&opts.out, "out", "", "report directory (default: report.dir from config, else .)")
	flag.BoolVar(&opts.xlsx, "xlsx", false, "also write an .xlsx report")
	flag.BoolVar(&opts.detect, "detect", false, "only detect sections of the first document")
	flag.StringVar(&opts.mode, "mode", "", "backend mode override: api or local")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] <file-or-url>...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(opts, flag.Args()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(opts options, docs []string) error {
	_ = godotenv.Load()

	env := config.GetEnv()
	cfg, err := config.Load(env)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if opts.mode != "" {
		cfg.Backend.Mode = domain.Mode(opts.mode)
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	metrics.RegisterModelMetrics()
	metrics.RegisterPipelineMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	var titles []string
	if opts.sections != "" {
		for _, t := range domain.SplitTitles(opts.sections) {
			titles = append(titles, domain.TitleFromLabel(t))
		}
	}

	if opts.detect || len(titles) == 0 {
		res, err := a.Scan.Detect(ctx, docs[0])
		if err != nil {
			return fmt.Errorf("detect sections: %w", err)
		}
		if opts.detect {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}
		titles = res.Titles()
		logger.Info("Sections detected", zap.Strings("labels", res.Labels))
		if len(titles) == 0 {
			return errors.New("no sections detected; pass -sections")
		}
	}

	req := pipeline.Request{
		Documents:     docs,
		Sections:      titles,
		ExpertPrompt:  opts.expert,
		IncludeFilter: opts.include,
		ExcludeFilter: opts.exclude,
	}
	if opts.pool > 0 {
		req.PoolSize = &opts.pool
	}

	rep, err := a.Pipeline.Run(ctx, req)
	if err != nil {
		return fmt.Errorf("extract: %w", err)
	}

	fmt.Println(report.Summary(rep))

	dir := opts.out
	if dir == "" {
		dir = cfg.Report.Dir
	}
	if dir == "" {
		dir = "."
	}
	path, err := report.WriteJSON(dir, rep)
	if err != nil {
		return err
	}
	fmt.Println("\nReport:", path)

	if opts.xlsx || cfg.Report.XLSX {
		xpath, err := report.WriteXLSX(dir, rep)
		if err != nil {
			return err
		}
		fmt.Println("Spreadsheet:", xpath)
	}
	return nil
}
