package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"hk_bids/config"
	"hk_bids/httputil"
	"hk_bids/i18n"
	"hk_bids/logging"
	"hk_bids/scheduler"
	"hk_bids/scraper"
	"hk_bids/server"
	"hk_bids/services"
	"hk_bids/session"
	"hk_bids/storage"
)

var (
	warmNow = flag.Bool("warm", false, "Prefetch sheets and listings once and exit")
	addr    = flag.String("addr", "", "Listen address (overrides LISTEN_ADDR)")
)

const sessionIdle = time.Hour

func main() {
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, logFile, err := logging.Setup(cfg.LogFile, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer logFile.Close()
	defer logger.Sync()

	sugar := zap.S()
	sugar.Info("Starting hk_bids...")

	clients := httputil.NewClients(&cfg.Proxy)
	if cfg.Proxy.URL != "" {
		sugar.Infof("Proxy: %s", cfg.Proxy.URL)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	gateway := storage.NewSmartsheetStore(&cfg.Smartsheet, clients.API, cfg.Cache.TTL)
	reference := services.NewReferenceService(gateway, cfg.Smartsheet.Sheets)

	enricher := scraper.NewEnricher(scraper.NewFetcher(cfg, clients), cfg.Cache.TTL, cfg.Enrich.Concurrency)
	defer enricher.Close()
	sugar.Infof("Listing enrichment: %s", cfg.Enrich.Mode)

	sched := scheduler.New(cfg.WarmCron, reference, enricher)

	if *warmNow {
		sugar.Info("Warming caches...")
		if err := sched.TriggerNow(ctx); err != nil {
			sugar.Fatalf("Warm failed: %v", err)
		}
		sugar.Info("Warm complete!")
		return
	}

	sqliteStore, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		sugar.Fatalf("Failed to open SQLite: %v", err)
	}
	defer sqliteStore.Close()
	sugar.Infof("SQLite database: %s", cfg.DBPath)

	health := services.NewHealthService(5 * time.Second)
	health.Register("sqlite", sqliteStore)
	health.Register("smartsheet", services.PingFunc(func(ctx context.Context) error {
		_, err := gateway.FetchTable(ctx, cfg.Smartsheet.Sheets.Units)
		return err
	}))

	submissions := services.NewSubmissionService(gateway, cfg.Smartsheet.Sheets.Submissions, sqliteStore)

	if cfg.DBURL != "" {
		pgStore, err := storage.NewPostgresStore(ctx, cfg.DBURL)
		if err != nil {
			sugar.Fatalf("Failed to connect to Postgres: %v", err)
		}
		defer pgStore.Close()
		sugar.Infof("Postgres mirror: %s", maskConnectionString(cfg.DBURL))
		submissions.WithMirror(pgStore)
		health.Register("postgres", pgStore)
	}

	if cfg.S3.Enabled() {
		uploader, err := storage.NewS3Uploader(ctx, cfg.S3)
		if err != nil {
			sugar.Fatalf("Failed to set up S3: %v", err)
		}
		sugar.Infof("Receipt archive: s3://%s", cfg.S3.Bucket)
		submissions.WithArchiver(uploader)
	}

	catalog, err := i18n.Load(cfg.LocalesDir)
	if err != nil {
		sugar.Fatalf("Failed to load locales: %v", err)
	}

	deps := server.Deps{
		Guard:       services.NewAccessGuard(cfg.AuthKey, reference),
		Reference:   reference,
		Submissions: submissions,
		Sessions:    session.NewManager(sqliteStore, session.Options{Step: cfg.BidStep, Location: cfg.Location()}, sessionIdle),
		Catalog:     catalog,
		Health:      health,
		Events:      sqliteStore,
		Ledger:      sqliteStore,
		LogoURL:     cfg.LogoURL,
		Step:        cfg.BidStep,
		Location:    cfg.Location(),
	}
	if enricher.Enabled() {
		deps.Enricher = enricher
	}

	srv, err := server.New(deps)
	if err != nil {
		sugar.Fatalf("Failed to build server: %v", err)
	}

	if err := sched.Start(ctx); err != nil {
		sugar.Fatalf("Failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	listen := cfg.ListenAddr
	if *addr != "" {
		listen = *addr
	}
	if err := srv.Run(ctx, listen); err != nil {
		sugar.Errorf("Server error: %v", err)
	}
	sugar.Info("Goodbye!")
}

// maskConnectionString masks the password in a connection string for logging
func maskConnectionString(connStr string) string {
	start := 0
	for i := 0; i < len(connStr)-3; i++ {
		if connStr[i:i+3] == "://" {
			start = i + 3
			break
		}
	}
	if start == 0 {
		return connStr
	}

	colonIdx := -1
	atIdx := -1
	for i := start; i < len(connStr); i++ {
		if connStr[i] == ':' && colonIdx == -1 {
			colonIdx = i
		}
		if connStr[i] == '@' {
			atIdx = i
			break
		}
	}

	if colonIdx > 0 && atIdx > colonIdx {
		return connStr[:colonIdx+1] + "****" + connStr[atIdx:]
	}
	return connStr
}
