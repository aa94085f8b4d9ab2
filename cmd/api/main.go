package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"affiliateprograms.wiki/internal/agent"
	"affiliateprograms.wiki/internal/config"
	"affiliateprograms.wiki/internal/editorial"
	"affiliateprograms.wiki/internal/entity"
	"affiliateprograms.wiki/internal/httpapi"
	"affiliateprograms.wiki/internal/linkrules"
	"affiliateprograms.wiki/internal/obs"
	"affiliateprograms.wiki/internal/store/pg"
	"affiliateprograms.wiki/internal/stream"
	"affiliateprograms.wiki/internal/verify"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	obs.Init()
	obs.InitBuildInfo(version, commit)

	var (
		agentStore     agent.Store
		entityStore    entity.Store
		editorialStore editorial.Store
		ruleStore      linkrules.Store
		verifyStore    verify.Store
		probe          httpapi.ReadyProbe
		closeStore     func() error
	)
	if cfg.DatabaseDSN != "" {
		store, err := pg.Open(cfg.DatabaseDSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		agentStore = store.Agents()
		entityStore = store.Entities()
		editorialStore = store.Editorial()
		ruleStore = store.LinkRules()
		verifyStore = store.Verifications()
		probe = httpapi.ReadyProbe{DB: store.DB()}
		closeStore = store.Close
	} else {
		// No DSN means dev mode: everything in memory, one wildcard key.
		log.Println("WIKI_PG_DSN not set, running with in-memory stores")
		entities := entity.NewInMemory()
		keys := agent.NewInMemory()
		agentStore = keys
		entityStore = entities
		editorialStore = editorial.NewInMemoryStore(entities)
		ruleStore = linkrules.NewInMemoryStore()
		verifyStore = verify.NewInMemoryStore()
		closeStore = func() error { return nil }
	}

	registry := agent.NewRegistry(agentStore)
	if cfg.DatabaseDSN == "" {
		key, err := registry.CreateKey(context.Background(), "dev admin", agent.RoleAdmin,
			[]string{"*"}, 0, 0, nil)
		if err != nil {
			log.Fatalf("create dev key: %v", err)
		}
		log.Printf("dev agent key: %s", key.ID)
	}

	checker := verify.NewChecker(cfg.VerifyTimeout)
	verifier := verify.NewRecorder(checker, verifyStore)

	svc := editorial.NewService(editorialStore, entityStore, registry,
		editorial.WithSEORequired(cfg.SEOKinds()...),
		editorial.WithStatsSources(verifier, ruleStore))

	rewriter := linkrules.NewCache(ruleStore, cfg.RuleCacheTTL)
	startCtx, cancelStart := context.WithTimeout(context.Background(), 5*time.Second)
	if err := rewriter.Refresh(startCtx); err != nil {
		// Rewrites pass through until the first successful refresh.
		log.Printf("initial rule load failed: %v", err)
	}
	cancelStart()

	runCtx, cancelRun := context.WithCancel(context.Background())
	defer cancelRun()
	go rewriter.Run(runCtx)

	api := httpapi.New(httpapi.Config{
		ReadyProbe: probe,
		Version:    version,
		Agents:     registry,
		Editorial:  svc,
		Rules:      ruleStore,
		Rewriter:   rewriter,
		Verifier:   verifier,
		Stream:     stream.New(),
	})

	handler := httpapi.Logging(
		httpapi.SecurityHeaders(
			httpapi.CORS(
				httpapi.MaxBodyBytes(
					httpapi.RateLimit(api.Handler(), cfg.HTTPRateBurst, cfg.HTTPRatePerSec),
					cfg.MaxBodyBytes))))

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}

	log.Printf("Starting wiki-editorial-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")
	cancelRun()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	_ = srv.Shutdown(ctx)
	if err := closeStore(); err != nil {
		log.Printf("close store: %v", err)
	}
	log.Println("Stopped")
}
