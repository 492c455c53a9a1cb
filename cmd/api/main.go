package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"questboard.org/internal/auth"
	"questboard.org/internal/httpapi"
	"questboard.org/internal/obs"
	"questboard.org/internal/quests"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	secret := os.Getenv("QUESTBOARD_AUTH_SECRET")
	if secret == "" {
		log.Fatal("QUESTBOARD_AUTH_SECRET is required")
	}

	var db *sql.DB
	var store auth.PrincipalStore
	var board quests.Service
	if dsn := os.Getenv("QUESTBOARD_PG_DSN"); dsn != "" {
		var err error
		db, err = sql.Open("pgx", dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
		store = auth.NewPGStore(db)
		board = quests.NewPGStore(db)
	} else {
		// Dev mode: everything in memory, one bootstrap admin account.
		log.Println("QUESTBOARD_PG_DSN not set; using in-memory stores")
		mem := auth.NewMemoryStore()
		if err := bootstrapAdmin(mem); err != nil {
			log.Fatalf("bootstrap admin: %v", err)
		}
		store = mem
		board = quests.NewInMemory()
	}

	codec, err := auth.NewCodec([]byte(secret), "questboard")
	if err != nil {
		log.Fatalf("token codec: %v", err)
	}

	opts := []auth.ServiceOption{}
	if ttl := durationEnv("QUESTBOARD_ACCESS_TTL"); ttl > 0 {
		opts = append(opts, auth.WithAccessTTL(ttl))
	}
	if ttl := durationEnv("QUESTBOARD_REFRESH_TTL"); ttl > 0 {
		opts = append(opts, auth.WithRefreshTTL(ttl))
	}
	authSvc, err := auth.NewService(store, codec, opts...)
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}

	api := httpapi.New(httpapi.ReadyProbe{DB: db}, version, authSvc, board)

	handler := httpapi.RequestID(
		httpapi.LoggingJSON(
			httpapi.SecurityHeaders(
				httpapi.CORS(
					httpapi.MaxBodyBytes(
						httpapi.RateLimit(api.Handler(), 20, 10),
						1<<20)))))

	addr := os.Getenv("QUESTBOARD_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting questboard-api %s on %s", version, srv.Addr)
	obs.SetReady(true)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")
	obs.SetReady(false)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if db != nil {
		_ = db.Close()
	}
	log.Println("Stopped")
}

// bootstrapAdmin seeds the dev-mode store with an admin account so the API is
// usable without a database. The password comes from the environment; there is
// no default.
func bootstrapAdmin(store *auth.MemoryStore) error {
	password := os.Getenv("QUESTBOARD_BOOTSTRAP_PASSWORD")
	if password == "" {
		log.Println("QUESTBOARD_BOOTSTRAP_PASSWORD not set; no bootstrap account created")
		return nil
	}
	hash, err := auth.BcryptHasher{}.Hash(password)
	if err != nil {
		return err
	}
	return store.Create(context.Background(), &auth.Principal{
		Username:     "admin",
		Email:        "admin@localhost",
		PasswordHash: hash,
		Status:       auth.StatusActive,
		Roles:        []string{auth.RoleAdmin},
		Enabled:      true,
	})
}

func durationEnv(name string) time.Duration {
	raw := os.Getenv(name)
	if raw == "" {
		return 0
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		log.Fatalf("%s: %v", name, err)
	}
	return d
}
