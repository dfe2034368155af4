package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"esawitku.app/internal/audit"
	"esawitku.app/internal/auth"
	"esawitku.app/internal/billing"
	"esawitku.app/internal/httpapi"
	"esawitku.app/internal/obs"
	"esawitku.app/internal/plantation"
	"esawitku.app/internal/ratelimit"
	"esawitku.app/internal/store/pg"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	// Postgres is optional for local development; without a DSN every
	// store falls back to its in-memory implementation.
	var (
		store *pg.Store
		err   error
	)
	if dsn := os.Getenv("ESAWITKU_PG_DSN"); dsn != "" {
		store, err = pg.Open(dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
	}

	var (
		users   auth.UserStore
		apiKeys auth.APIKeyStore
		bStore  billing.Store
		pStore  plantation.Store
		aStore  audit.Store
	)
	if store != nil {
		users = store.Users()
		apiKeys = store.APIKeys()
		bStore = store.Billing()
		pStore = store.Plantation()
		aStore = store.Audit()
	} else {
		log.Println("no ESAWITKU_PG_DSN, using in-memory stores")
		users = auth.NewMemoryUserStore()
		apiKeys = auth.NewMemoryAPIKeyStore()
		bStore = billing.NewMemoryStore()
		pStore = plantation.NewMemoryStore()
		aStore = audit.NewMemoryStore()
	}

	// Rate-limit counters prefer Redis, then Postgres, then memory.
	var (
		counters ratelimit.CounterStore
		rdb      *redis.Client
	)
	switch {
	case os.Getenv("ESAWITKU_REDIS_ADDR") != "":
		rdb = redis.NewClient(&redis.Options{Addr: os.Getenv("ESAWITKU_REDIS_ADDR")})
		counters = ratelimit.NewRedisStore(rdb)
	case store != nil:
		counters = store.RateLimits()
	default:
		counters = ratelimit.NewMemoryStore()
	}

	limiter := ratelimit.New(counters,
		ratelimit.WithRule("auth.login", ratelimit.Rule{Limit: 10, Window: time.Minute}),
		ratelimit.WithRule("auth.register", ratelimit.Rule{Limit: 10, Window: time.Minute}),
	)

	recorder := audit.NewRecorder(aStore, 1024)

	billingSvc := billing.NewService(bStore)
	plantationSvc := plantation.NewService(pStore, plantation.WithQuota(billingSvc))

	resolver := auth.NewResolver(users, apiKeys,
		auth.WithSubscriptionDefaulter(billingSvc),
		auth.WithSuperAdminEmails(splitList(os.Getenv("ESAWITKU_SUPERADMIN_EMAILS"))),
	)

	probe := httpapi.ReadyProbe{}
	if store != nil {
		probe.DB = store.DB()
	}
	api := httpapi.New(httpapi.Config{
		Resolver:   resolver,
		Users:      users,
		APIKeys:    apiKeys,
		Plantation: plantationSvc,
		Billing:    billingSvc,
		Limiter:    limiter,
		Recorder:   recorder,
		ReadyProbe: probe,
		Version:    version,
	})

	addr := os.Getenv("ESAWITKU_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting esawitku-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	// Expired window counters pile up in Postgres; prune in the
	// background when that store is in use.
	pruneDone := make(chan struct{})
	if rl, ok := counters.(*pg.RateLimitStore); ok {
		go func() {
			ticker := time.NewTicker(5 * time.Minute)
			defer ticker.Stop()
			for {
				select {
				case <-pruneDone:
					return
				case <-ticker.C:
					if _, err := rl.PruneExpired(context.Background(), time.Now().UTC()); err != nil {
						log.Printf("prune rate limits: %v", err)
					}
				}
			}
		}()
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")
	close(pruneDone)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if err := recorder.Close(5 * time.Second); err != nil {
		log.Printf("audit recorder close: %v", err)
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	if store != nil {
		_ = store.Close()
	}
	log.Println("Stopped")
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
