package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"mobility/internal/config"
	"mobility/internal/datasource"
	"mobility/internal/metrics"
	"mobility/internal/metrics/prompush"
	csvparser "mobility/internal/parser/csv"
	"mobility/internal/pipeline"
	"mobility/internal/storage"
	"mobility/internal/validate"
	"mobility/internal/zones"

	// register all backends with the storage factory.
	// config specifies which to use but we need to build in support for all of them.
	_ "mobility/internal/storage/all"
)

// main is the entry point for the cleaning binary. It loads the run config,
// optionally initializes a metrics backend, and executes the batch run.
func main() {
	var (
		cfgPath           string
		metricsBackendFlg string
		pushGatewayURLFlg string
		lintOnly          bool
	)

	flag.StringVar(&cfgPath, "config", "configs/runs/sample.json", "run config JSON path")
	flag.StringVar(&metricsBackendFlg, "metrics-backend", "none", "metrics backend to use (e.g. pushgateway, none)")
	flag.StringVar(&pushGatewayURLFlg, "pushgateway-url", "", "Pushgateway base URL (overrides env PUSHGATEWAY_URL)")
	flag.BoolVar(&lintOnly, "validate", false, "validate the configuration and exit")
	verbose := flag.Bool("v", false, "enable verbose logs")

	flag.Parse()

	// Optional .env for local development; absence is fine.
	if err := godotenv.Load(); err == nil && *verbose {
		log.Printf("loaded .env")
	}

	run, err := config.Load(cfgPath)
	if err != nil {
		fatalf("%v", err)
	}

	issues := config.ValidateRun(run)
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		log.Printf("Configuration is invalid: %v", cfgPath)
		os.Exit(1)
	}

	// If validate flag is set, only validate the configuration and exit
	if lintOnly {
		log.Printf("Configuration is valid: %v", cfgPath)
		os.Exit(0)
	}

	// Decide metrics backend: flag → env → default.
	backendName := metricsBackendFlg
	if backendName == "" {
		backendName = os.Getenv("METRICS_BACKEND")
	}
	switch backendName {
	case "pushgateway":
		// Decide Pushgateway URL: flag → env → default.
		gwURL := pushGatewayURLFlg
		if gwURL == "" {
			gwURL = os.Getenv("PUSHGATEWAY_URL")
		}
		if gwURL == "" {
			gwURL = "http://localhost:9091"
		}

		b, err := prompush.NewBackend(run.Job, gwURL)
		if err != nil {
			log.Printf("metrics: failed to init prom push backend: %v; using nop", err)
		} else {
			log.Printf("metrics: url=%v, backend=%v, job_name=%v", gwURL, backendName, run.Job)
			metrics.SetBackend(b)
			defer func() {
				if err := metrics.Flush(); err != nil {
					log.Printf("metrics: flush error: %v", err)
				}
			}()
		}

	case "", "none":
		// metrics disabled; nop backend remains
		if *verbose {
			log.Printf("metrics: disabled (backend=%q)", backendName)
		}

	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", backendName)
	}

	ctx := context.Background()
	start := time.Now()

	if *verbose {
		log.Printf("run: job=%s trips=%s zones=%s storage=%s",
			run.Job, run.Source.TripsPath, run.Source.ZonesPath, run.Storage.Kind)
	}

	if err := execute(ctx, run); err != nil {
		log.Fatalf("%v", err)
	}

	if *verbose {
		log.Printf("completed in %s", time.Since(start).Truncate(time.Millisecond))
	}
}

// execute wires one cleaning run end-to-end: zone dimension, storage backend,
// trip source, validator, and the batch pipeline.
func execute(ctx context.Context, run config.Run) error {
	zr, err := datasource.New(run.Source.ZonesPath).Open(ctx)
	if err != nil {
		return fmt.Errorf("open zones: %w", err)
	}
	lookup, err := zones.FromReader(zr)
	zr.Close()
	if err != nil {
		return err
	}
	log.Printf("zones: loaded %d", lookup.Len())

	repo, err := storage.New(ctx, storage.Config{Kind: run.Storage.Kind, DSN: run.Storage.DSN})
	if err != nil {
		return err
	}
	defer repo.Close()

	if err := repo.EnsureSchema(ctx); err != nil {
		return err
	}
	if err := repo.ReplaceZones(ctx, lookup.All()); err != nil {
		return err
	}

	f, err := datasource.New(run.Source.TripsPath).Open(ctx)
	if err != nil {
		return fmt.Errorf("open trips: %w", err)
	}
	defer f.Close()

	opt := csvparser.DefaultOptions()
	if run.Source.Comma != "" {
		opt.Comma = []rune(run.Source.Comma)[0]
	}
	src, err := csvparser.NewTripReader(f, opt)
	if err != nil {
		return err
	}

	v, err := validate.New(run.EffectiveLimits(), lookup)
	if err != nil {
		return err
	}

	runner, err := pipeline.New(pipeline.Options{
		Job:            run.Job,
		BatchSize:      run.EffectiveBatchSize(),
		RejectLogLimit: run.EffectiveRejectLogLimit(),
	}, v, repo)
	if err != nil {
		return err
	}

	return runner.Run(ctx, src)
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
