// cmd/web/main.go
//
// ajaxviews – HTTP entry point.
//
// Start-up sequence
// -----------------
//
//  1. Load env vars (jail-wide file → .env fallback), then conf/global.yaml.
//
//  2. Start daily rotating logger (tees to console when running in a TTY).
//
//  3. Resolve the database password (literal or `vault:` reference) and
//     open the MySQL pool.
//
//  4. Build the shared plugin.Env: permission store, renderer, URL
//     registry, flash store, signer, and the Views config block.
//
//  5. With -migrate, apply every component's schema and exit.
//
//  6. Build the chi router:
//
//     • request log + request id     – middleware.RequestLog
//     • UA and AJAX detection        – requestinfo.Enrich
//     • security headers             – middleware.Security
//     • signed-in user               – session.Manager.Middleware
//     • client bundle injection      – middleware.Ajax
//     • /static, /media, /metrics, and every registered component
//
//  7. Wrap with ForceHTTPS and serve until SIGINT or SIGTERM.  SIGHUP
//     purges the template cache and re-reads the config.
//
// Large comment blocks are framed by blank “//” lines; inline comments use
// a single “//”.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/yanizio/ajaxviews/internal/acl"
	"github.com/yanizio/ajaxviews/internal/component"
	"github.com/yanizio/ajaxviews/internal/config"
	"github.com/yanizio/ajaxviews/internal/database"
	"github.com/yanizio/ajaxviews/internal/form"
	"github.com/yanizio/ajaxviews/internal/logger"
	"github.com/yanizio/ajaxviews/internal/message"
	"github.com/yanizio/ajaxviews/internal/middleware"
	"github.com/yanizio/ajaxviews/internal/plugin"
	"github.com/yanizio/ajaxviews/internal/requestinfo"
	"github.com/yanizio/ajaxviews/internal/routing"
	"github.com/yanizio/ajaxviews/internal/server"
	"github.com/yanizio/ajaxviews/internal/session"
	"github.com/yanizio/ajaxviews/internal/vault"
	"github.com/yanizio/ajaxviews/internal/view"

	_ "github.com/yanizio/ajaxviews/components/auth"
	_ "github.com/yanizio/ajaxviews/components/library"
)

const serverEnvPath = "/usr/local/etc/ajaxviews/global.env"

// loadEnv prefers the jail-wide env file; on dev it falls back to .env.
func loadEnv() {
	if _, err := os.Stat(serverEnvPath); err == nil {
		_ = godotenv.Load(serverEnvPath)
		return
	}
	_ = godotenv.Load()
}

// runningInTTY returns true when stdout is a character device.
func runningInTTY() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func init() { loadEnv() }

func main() {
	migrate := flag.Bool("migrate", false, "apply component schemas and exit")
	reload := flag.Bool("reload", false, "re-parse templates on every render")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logOut, err := logger.New(cfg.Paths.Root, runningInTTY())
	if err != nil {
		log.Fatalf("start logger: %v", err)
	}
	defer func() { _ = logOut.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	//
	// ── 1.  Database ────────────────────────────────────────────────────
	//
	password, err := resolvePassword(ctx, logOut, cfg.Database.Password)
	if err != nil {
		logOut.Fatalw("database password", "err", err)
	}
	dsn, err := database.FillDSN(cfg.Database.DSN, password)
	if err != nil {
		logOut.Fatalw("database dsn", "err", err)
	}
	db, err := database.Open(dsn)
	if err != nil {
		logOut.Fatalw("connect database", "err", err)
	}
	defer db.Close()
	logOut.Infow("database online")

	if *migrate {
		for _, c := range component.All() {
			for _, stmt := range c.Migrations() {
				if _, err := db.ExecContext(ctx, stmt); err != nil {
					logOut.Fatalw("migrate", "component", c.Name(), "err", err)
				}
			}
			logOut.Infow("migrated", "component", c.Name())
		}
		return
	}

	//
	// ── 2.  Shared view environment ─────────────────────────────────────
	//
	if cfg.Views.SigningKey == "" {
		logOut.Warnw("views.signing_key is empty; signed payloads are forgeable")
	}
	signer := form.NewSigner(cfg.Views.SigningKey)
	names := routing.NewRegistry()
	sessions := session.NewManager(signer)
	renderer := view.New(view.Options{
		TemplatesDir:  cfg.Paths.Templates,
		ComponentsDir: cfg.Paths.Components,
		StaticURL:     cfg.HTTP.StaticURL,
		URLs:          names,
		Reload:        *reload,
	})
	env := &plugin.Env{
		DB:        db,
		Perms:     acl.NewStore(db),
		Renderer:  renderer,
		URLs:      names,
		Flash:     message.NewStore(signer),
		Signer:    signer,
		Views:     cfg.Views,
		MediaRoot: cfg.Paths.Media,
	}

	//
	// ── 3.  Router ──────────────────────────────────────────────────────
	//
	r := chi.NewRouter()
	r.Use(
		middleware.RequestLog(logOut),
		requestinfo.Enrich,
		middleware.Security(cfg.HTTP.ForceHTTPS),
		sessions.Middleware,
		middleware.Ajax(cfg.Views.RequireMainName, cfg.HTTP.StaticURL),
	)

	staticPrefix := "/" + strings.Trim(cfg.HTTP.StaticURL, "/") + "/"
	r.Handle(staticPrefix+"*", http.StripPrefix(staticPrefix, http.FileServer(http.Dir(cfg.Paths.Static))))
	r.Handle("/media/*", http.StripPrefix("/media/", http.FileServer(http.Dir(cfg.Paths.Media))))
	r.Handle("/metrics", promhttp.Handler())

	deps := component.Deps{Env: env, Names: names, Sessions: sessions, Root: cfg.Paths.Root}
	if err := component.MountAll(r, deps); err != nil {
		logOut.Fatalw("mount components", "err", err)
	}

	go watchHUP(ctx, logOut, renderer)

	//
	// ── 4.  Serve (HTTPS enforcement outermost) ────────────────────────
	//
	srv := server.New(cfg.HTTP.ListenAddr, middleware.ForceHTTPS(cfg.HTTP.ForceHTTPS, r))
	if err := server.Run(ctx, srv); err != nil {
		logOut.Fatalw("http server", "err", err)
	}
}

// watchHUP drops parsed templates and re-validates the config on SIGHUP.
// Views settings are copied into Env at start-up and need a restart.
func watchHUP(ctx context.Context, log *zap.SugaredLogger, r *view.Renderer) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			r.Purge()
			if err := config.Reload(); err != nil {
				log.Errorw("config reload", "err", err)
				continue
			}
			log.Infow("templates purged, config re-read", "listen_addr", config.Get().HTTP.ListenAddr)
		}
	}
}

// resolvePassword dials Vault only when the value is a reference.
func resolvePassword(ctx context.Context, log *zap.SugaredLogger, value string) (string, error) {
	if !strings.HasPrefix(value, vault.RefPrefix) {
		return value, nil
	}
	vc, err := vault.New(ctx, log)
	if err != nil {
		return "", err
	}
	return vault.Resolve(ctx, vc, value)
}
