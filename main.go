package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bitget-trader/internal/api"
	"bitget-trader/internal/consensus"
	"bitget-trader/internal/events"
	"bitget-trader/internal/indicators"
	"bitget-trader/internal/market"
	"bitget-trader/internal/monitor"
	"bitget-trader/internal/order"
	"bitget-trader/internal/orchestrator"
	"bitget-trader/internal/risk"
	"bitget-trader/internal/strategy"
	"bitget-trader/internal/webhook"
	"bitget-trader/pkg/config"
	"bitget-trader/pkg/db"
	"bitget-trader/pkg/exchanges/bitget"
	"bitget-trader/pkg/exchanges/bitget/ws"
	"bitget-trader/pkg/license"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	buildVersion := os.Getenv("APP_VERSION")
	if buildVersion == "" {
		buildVersion = "dev"
	}
	log.Printf("starting bitget-trader %s (dry_run=%v, symbols=%v)", buildVersion, cfg.DryRun, cfg.Symbols)

	if cfg.LicenseToken != "" {
		lic := license.NewManager(cfg.LicenseSecret)
		if err := lic.Validate(cfg.LicenseToken); err != nil {
			log.Fatalf("license: %v", err)
		}
		log.Println("license: validated")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Core services
	bus := events.NewBus()

	database, err := db.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("db: open: %v", err)
	}
	defer database.Close()
	if err := db.ApplyMigrations(database); err != nil {
		log.Fatalf("db: migrations: %v", err)
	}
	store := db.NewStore(database)

	// REST client. Candle and ticker endpoints are public, but the client
	// refuses empty credentials, so dry runs without keys get placeholders.
	creds := bitget.Credentials{
		APIKey:     cfg.BitgetAPIKey,
		SecretKey:  cfg.BitgetAPISecret,
		Passphrase: cfg.BitgetPassphrase,
	}
	if creds.APIKey == "" && cfg.DryRun {
		creds = bitget.Credentials{APIKey: "dry-run", SecretKey: "dry-run", Passphrase: "dry-run"}
		log.Println("bitget: no credentials, dry run limited to public endpoints")
	}
	rest, err := bitget.NewClient(bitget.Config{
		Credentials: creds,
		BaseURL:     cfg.BitgetBaseURL,
		MarginCoin:  cfg.MarginCoin,
	})
	if err != nil {
		log.Fatalf("bitget: %v", err)
	}

	indEngine := indicators.NewEngine(7, 25, 14, 200)

	// Market data (mock feed for local development, websocket otherwise)
	var watcher *market.Watcher
	if cfg.MockFeed {
		mock := market.MockFeed{
			Bus:        bus,
			Symbols:    cfg.Symbols,
			StartPrice: 100,
			Step:       0.8,
			Interval:   time.Second,
		}
		mock.Start(ctx)
		log.Println("market: mock feed started")
	} else {
		wsClient := ws.NewClient(ws.Config{
			Auth: rest.Auth(),
			OnReconnect: func(private bool) {
				if watcher != nil {
					watcher.Resubscribe(ctx)
				}
			},
			OnError: func(err error) {
				log.Printf("ws: %v", err)
			},
		})
		defer wsClient.Close()
		watcher = market.NewWatcher(wsClient, bus, indEngine, "USDT-FUTURES", cfg.Symbols)
		if err := watcher.Start(ctx); err != nil {
			log.Printf("market: watcher start failed: %v", err)
		}
	}

	// Strategies from YAML config, synced to the DB for the API
	stratMgr := strategy.NewManager()
	stratConfigs, err := strategy.LoadConfig(cfg.StrategiesPath)
	if err != nil {
		log.Printf("strategy: config load failed: %v", err)
	} else {
		for _, sc := range stratConfigs {
			if !sc.IsActive {
				continue
			}
			s, err := strategy.Build(sc)
			if err != nil {
				log.Printf("strategy: skipping %s: %v", sc.ID, err)
				continue
			}
			stratMgr.Register(s)
		}
		if err := strategy.SyncConfigToDB(ctx, store, stratConfigs); err != nil {
			log.Printf("strategy: db sync failed: %v", err)
		}
	}

	// Optional remote strategy worker over gRPC
	if cfg.EnableWorker {
		wc, err := strategy.NewWorkerClient("worker", cfg.WorkerAddr)
		if err != nil {
			log.Printf("strategy: worker init failed: %v", err)
		} else {
			defer wc.Close()
			stratMgr.Register(wc)
			log.Printf("strategy: worker enabled at %s", cfg.WorkerAddr)
		}
	}

	// Decision pipeline
	cons := consensus.NewEngine(cfg.MinAgreement, cfg.MinConfidence)
	riskMgr := risk.NewManager(risk.Config{
		MinConfidence:    cfg.MinConfidence,
		MaxOpenPositions: cfg.MaxOpenPositions,
		RiskPerTradePct:  cfg.RiskPerTradePct,
		Leverage:         cfg.Leverage,
	})

	// ExecutionEnabled=false still evaluates and records decisions, it just
	// never touches the exchange.
	dryRun := cfg.DryRun || !cfg.ExecutionEnabled
	executor := order.NewExecutor(rest, store, bus, dryRun)
	if dryRun {
		log.Println("order: dry run, no exchange orders will be placed")
	}

	hook := webhook.NewClient(cfg.WebhookURL, time.Duration(cfg.WebhookTimeoutMs)*time.Millisecond, cfg.WebhookRetries)
	if hook.Enabled() {
		log.Println("webhook: notifications enabled")
	}

	orch := orchestrator.New(orchestrator.Config{
		Symbols:     cfg.Symbols,
		Timeframe:   cfg.Timeframe,
		CandleLimit: cfg.CandleLimit,
		Interval:    time.Duration(cfg.IntervalSeconds) * time.Second,
		SymbolDelay: time.Duration(cfg.SymbolDelayMs) * time.Millisecond,
	}, rest, stratMgr, cons, riskMgr, executor, store, bus, hook)
	go orch.Run(ctx)

	// Monitoring
	sysMetrics := monitor.NewSystemMetrics()
	mon := monitor.Monitor{
		Bus:     bus,
		Metrics: sysMetrics,
		AlertFn: func(msg string) {
			if hook.Enabled() {
				_ = hook.Notify(ctx, "risk.alert", map[string]string{"message": msg})
			}
		},
	}
	mon.Start(ctx)

	// API
	server := api.NewServer(bus, store, riskMgr, watcher, sysMetrics, api.SystemMeta{
		DryRun:     dryRun,
		Venue:      "bitget",
		Symbols:    cfg.Symbols,
		Strategies: stratMgr.Names(),
		Version:    buildVersion,
	}, cfg.JWTSecret, cfg.APIPassword)
	go func() {
		if err := server.Start(":" + cfg.Port); err != nil {
			log.Fatalf("api: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Println("shutting down")
}
