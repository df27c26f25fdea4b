package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/windrose/windrose/internal/config"
	"github.com/windrose/windrose/internal/database"
	"github.com/windrose/windrose/internal/importer"
	"github.com/windrose/windrose/internal/indexer"
	"github.com/windrose/windrose/internal/logger"
	"github.com/windrose/windrose/internal/mediainfo"
	"github.com/windrose/windrose/internal/parser"
	"github.com/windrose/windrose/internal/scanner"
	"github.com/windrose/windrose/internal/scheduler"
	"github.com/windrose/windrose/internal/scheduler/tasks"
	"github.com/windrose/windrose/internal/tracker"
	"github.com/windrose/windrose/internal/upgrade"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Path:       cfg.Logging.Path,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})
	defer log.Close()

	log.WithComponent("main").Info().
		Str("db", cfg.Database.Path).
		Str("logLevel", cfg.Logging.Level).
		Msg("windrose starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := database.Open(cfg.Database.Path, log.Logger)
	if err != nil {
		log.Error().Err(err).Msg("failed to open database")
		os.Exit(1)
	}
	defer store.Close()

	if err := store.SeedBuiltInPresets(ctx); err != nil {
		log.Error().Err(err).Msg("failed to seed quality presets")
		os.Exit(1)
	}

	groups := parser.DefaultGroupLists()

	ffprobe := mediainfo.NewFFprobe("", "", log.Logger)
	var probe *mediainfo.Service
	var extractor mediainfo.SubtitleExtractor
	if ffprobe.Available() {
		probe = mediainfo.NewService(ffprobe, log.Logger)
		extractor = ffprobe
	}

	scan := scanner.NewService(store, probe, extractor, nil, groups, scanner.Config{
		MissingGrace:   cfg.Scanner.MissingGrace,
		SidecarWorkers: cfg.Scanner.SidecarWorkers,
	}, log.Logger)
	defer scan.Close()

	registry := indexer.NewRegistry(cfg.Search.IndexerTimeout, log.Logger)
	aggregator := indexer.NewAggregator(store, registry, cfg.Search.IndexerTimeout, log.Logger)

	upgrades := upgrade.NewService(store, aggregator, groups, upgrade.Config{
		SweepWorkers: cfg.Search.SweepWorkers,
		SweepLimit:   cfg.Search.SweepLimit,
		BackoffBase:  cfg.Search.BackoffBase,
		BackoffCap:   cfg.Search.BackoffCap,
	}, log.Logger)

	imports := importer.NewService(store, groups, log.Logger)

	downloads := tracker.NewService(store, imports, cfg.Tracker.PollInterval, log.Logger)
	downloads.Start(ctx)
	defer downloads.Stop()

	sched, err := scheduler.New(log.Logger)
	if err != nil {
		log.Error().Err(err).Msg("failed to create scheduler")
		os.Exit(1)
	}
	if err := tasks.RegisterLibraryScanTask(sched, scan, cfg.Scanner.ScanCron); err != nil {
		log.Error().Err(err).Msg("failed to register library scan task")
		os.Exit(1)
	}
	if err := tasks.RegisterQualityRescanTask(sched, scan); err != nil {
		log.Error().Err(err).Msg("failed to register quality rescan task")
		os.Exit(1)
	}
	if err := tasks.RegisterUpgradeSweepTask(sched, upgrades, cfg.Search.SweepCron); err != nil {
		log.Error().Err(err).Msg("failed to register upgrade sweep task")
		os.Exit(1)
	}
	if err := sched.Start(); err != nil {
		log.Error().Err(err).Msg("failed to start scheduler")
		os.Exit(1)
	}
	for _, task := range sched.ListTasks() {
		log.Info().Str("task", task.ID).Str("cron", task.Cron).Msg("task scheduled")
	}
	defer func() {
		if err := sched.Stop(); err != nil {
			log.Warn().Err(err).Msg("scheduler shutdown error")
		}
	}()

	log.Info().Msg("windrose started")
	<-ctx.Done()
	log.Info().Msg("shutting down")
}
