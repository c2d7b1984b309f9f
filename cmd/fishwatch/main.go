// Command fishwatch is the stocking report watch daemon.
//
// Usage:
//
//	fishwatch -config fishwatch.yaml                 # watch on the configured interval
//	fishwatch -config fishwatch.yaml -once           # single run, exit code reflects outcome
//	fishwatch -config fishwatch.yaml -listen :8080   # also serve the admin API
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"

	"github.com/mainefish/fishwatch/dbopen"
	"github.com/mainefish/fishwatch/httpguard"
	"github.com/mainefish/fishwatch/watcher"
)

func main() {
	configPath := flag.String("config", "", "path to fishwatch.yaml config file")
	dbPath := flag.String("db", "fishwatch.db", "path to the SQLite state database")
	listen := flag.String("listen", "", "admin API listen address, e.g. :8080 (empty disables)")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	once := flag.Bool("once", false, "run a single check and exit")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *configPath, *dbPath, *listen, *once); err != nil {
		logger.Error("fishwatch: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath, dbPath, listen string, once bool) error {
	if configPath == "" {
		fmt.Fprintln(os.Stderr, "usage: fishwatch -config <file> [-db <path>] [-listen <addr>] [-once]")
		os.Exit(2)
	}

	cfg, err := watcher.LoadConfigFile(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := dbopen.Open(dbPath, dbopen.WithSchema(watcher.StateSchema), dbopen.WithMkdirAll())
	if err != nil {
		return fmt.Errorf("open state db: %w", err)
	}
	defer db.Close()

	svc, err := watcher.NewService(cfg, db, watcher.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("build service: %w", err)
	}

	if once {
		o := svc.RunOnce(ctx)
		logger.Info("fishwatch: single run finished",
			"run_id", o.RunID, "status", o.Status,
			"records", o.Records, "sent", o.Sent, "failed", o.Failed)
		switch o.Status {
		case watcher.StatusExhausted, watcher.StatusStoreError:
			return fmt.Errorf("run %s ended %s: %w", o.RunID, o.Status, o.Err)
		}
		return nil
	}

	if listen != "" {
		srv := &http.Server{
			Addr:              listen,
			Handler:           adminRouter(svc, cfg.Admin.PasswordHash, logger),
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		go func() {
			logger.Info("fishwatch: admin API starting", "addr", listen)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("fishwatch: admin API", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("fishwatch: admin API shutdown", "error", err)
			}
		}()
	}

	svc.Watch(ctx)
	logger.Info("fishwatch: stopped")
	return nil
}

// adminRouter serves run history and manual triggers. Reads are open;
// the manual check requires basic auth once a password hash is configured.
func adminRouter(svc *watcher.Service, passwordHash string, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(httpguard.RequestLog(logger))
	r.Use(httpguard.Headers)
	r.Use(httpguard.BodyLimit(64 * 1024))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok"))
	})

	r.Get("/api/status", func(w http.ResponseWriter, r *http.Request) {
		fp, err := svc.CurrentFingerprint(r.Context())
		if err != nil {
			writeError(w, 500, err)
			return
		}
		last, err := svc.LastRun(r.Context())
		if err != nil {
			writeError(w, 500, err)
			return
		}
		writeJSON(w, 200, map[string]any{
			"key":         svc.Key(),
			"fingerprint": fp,
			"last_run":    last,
		})
	})

	r.Get("/api/runs", func(w http.ResponseWriter, r *http.Request) {
		runs, err := svc.RecentRuns(r.Context(), queryInt(r, "limit", 50))
		if err != nil {
			writeError(w, 500, err)
			return
		}
		writeJSON(w, 200, runs)
	})

	r.Group(func(r chi.Router) {
		r.Use(requireAuth(passwordHash))
		// Each manual check walks the proxy rotation against the upstream,
		// so it gets a budget a polling dashboard cannot blow through.
		r.Use(httpguard.NewLimiter(6, time.Minute, logger).Middleware)

		r.Post("/api/check", func(w http.ResponseWriter, r *http.Request) {
			o := svc.RunOnce(r.Context())
			code := 200
			if o.Status == watcher.StatusExhausted || o.Status == watcher.StatusStoreError {
				code = 502
			}
			resp := map[string]any{
				"run_id":      o.RunID,
				"status":      o.Status,
				"fingerprint": o.Fingerprint,
				"attempts":    o.Attempts,
				"records":     o.Records,
				"sent":        o.Sent,
				"failed":      o.Failed,
			}
			if o.Err != nil {
				resp["error"] = o.Err.Error()
			}
			writeJSON(w, code, resp)
		})
	})

	return r
}

// requireAuth checks basic auth against the configured bcrypt hash. With no
// hash configured the manual trigger stays open, which is fine on a
// loopback-only listen address.
func requireAuth(passwordHash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if passwordHash == "" {
				next.ServeHTTP(w, r)
				return
			}
			_, password, ok := r.BasicAuth()
			if !ok || bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(password)) != nil {
				w.Header().Set("WWW-Authenticate", `Basic realm="fishwatch"`)
				writeJSON(w, 401, map[string]string{"error": "unauthorized"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func queryInt(r *http.Request, key string, def int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
