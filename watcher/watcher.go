// Package watcher implements the stocking report watch service: fetch the
// report through rotating proxies, fingerprint it, and when the fingerprint
// changes, extract the stocking records and dispatch notifications.
//
// A single run always ends in exactly one terminal status:
//
//	unchanged    fetched, fingerprint matches the stored one
//	notified     fingerprint changed, records extracted and dispatched
//	empty        fingerprint changed but the report yielded no records
//	exhausted    every proxy failed every attempt
//	store_error  the fingerprint could not be read or replaced
//
// The new fingerprint is stored before any notification goes out, so a
// crash mid-dispatch re-suppresses instead of re-notifying.
package watcher

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/mainefish/fishwatch/idgen"
	"github.com/mainefish/fishwatch/notify"
	"github.com/mainefish/fishwatch/report"
	"github.com/mainefish/fishwatch/watcher/internal/fetch"
	"github.com/mainefish/fishwatch/watcher/internal/scheduler"
	"github.com/mainefish/fishwatch/watcher/internal/state"
)

// Terminal run statuses, as stored in the run log.
const (
	StatusUnchanged  = "unchanged"
	StatusNotified   = "notified"
	StatusEmpty      = "empty"
	StatusExhausted  = "exhausted"
	StatusStoreError = "store_error"
)

// ErrNoProxies mirrors the fetcher's sentinel so callers can test for the
// configuration error without importing the internal package.
var ErrNoProxies = fetch.ErrNoProxies

// Outcome is the result of one watch run.
type Outcome struct {
	RunID       string
	Status      string
	Fingerprint string
	HTTPStatus  int
	Attempts    int
	Records     int
	Sent        int
	Failed      int
	Err         error
}

// Service wires the fetcher, state store, extractor and dispatcher into the
// watch loop's single unit of work.
type Service struct {
	cfg      *Config
	fetcher  *fetch.Fetcher
	store    *state.Store
	disp     *notify.Dispatcher
	strategy report.Strategy
	logger   *slog.Logger
	newRunID idgen.Generator

	// mu serializes runs between the scheduler and manual triggers.
	mu sync.Mutex
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

// WithDispatcher replaces the dispatcher built from config. Used by tests
// and embedders that bring their own senders.
func WithDispatcher(d *notify.Dispatcher) ServiceOption {
	return func(s *Service) { s.disp = d }
}

// WithIDGenerator replaces the run ID generator.
func WithIDGenerator(gen idgen.Generator) ServiceOption {
	return func(s *Service) { s.newRunID = gen }
}

// NewService validates cfg and builds the watch service on top of an
// already-opened state database. Monitoring requires at least one proxy;
// an empty proxy list is a configuration error, not a runtime one.
func NewService(cfg *Config, db *sql.DB, opts ...ServiceOption) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(cfg.Fetch.Proxies) == 0 {
		return nil, fmt.Errorf("watcher: %w", ErrNoProxies)
	}

	s := &Service{
		cfg:      cfg,
		store:    state.New(db),
		logger:   slog.Default(),
		newRunID: idgen.Prefixed("run_", idgen.Default),
	}
	for _, o := range opts {
		o(s)
	}

	strategy, err := report.ParseStrategy(cfg.Extract.Strategy)
	if err != nil {
		return nil, err
	}
	s.strategy = strategy

	fetcher, err := fetch.New(fetch.Config{
		URL:              cfg.Source.URL,
		Proxies:          cfg.Fetch.Proxies,
		AttemptsPerProxy: cfg.Fetch.AttemptsPerProxy,
		RetryDelay:       cfg.Fetch.RetryDelay.Std(),
		Timeout:          cfg.Fetch.Timeout.Std(),
		MaxBytes:         cfg.Fetch.MaxBytes,
		UserAgent:        cfg.Source.UserAgent,
		Logger:           s.logger,
	})
	if err != nil {
		return nil, err
	}
	s.fetcher = fetcher

	if s.disp == nil {
		senders, err := buildSenders(cfg.Notify)
		if err != nil {
			return nil, err
		}
		if len(senders) == 0 {
			s.logger.Warn("watcher: no notification senders configured")
		}
		disp, err := notify.NewDispatcher(senders,
			notify.WithTemplate(cfg.Notify.Template),
			notify.WithLogger(s.logger))
		if err != nil {
			return nil, err
		}
		s.disp = disp
	}

	return s, nil
}

// buildSenders constructs the configured delivery destinations. A
// destination is active when its required fields are present.
func buildSenders(cfg NotifyConfig) ([]notify.Sender, error) {
	var senders []notify.Sender
	if cfg.SMS.AccountSID != "" {
		sms, err := notify.NewSMSSenders(notify.SMSConfig{
			AccountSID: cfg.SMS.AccountSID,
			AuthToken:  cfg.SMS.AuthToken,
			From:       cfg.SMS.From,
			To:         cfg.SMS.To,
		})
		if err != nil {
			return nil, err
		}
		senders = append(senders, sms...)
	}
	for _, wh := range cfg.Webhooks {
		snd, err := notify.NewWebhookSender(notify.WebhookConfig{URL: wh.URL, Token: wh.Token})
		if err != nil {
			return nil, err
		}
		senders = append(senders, snd)
	}
	return senders, nil
}

// Key returns the state-store key this service watches.
func (s *Service) Key() string { return s.cfg.Store.Key }

// Watch runs the service on its configured interval until ctx is cancelled.
// The first run starts immediately.
func (s *Service) Watch(ctx context.Context) {
	r := scheduler.New(s.cfg.Schedule.Interval.Std(), func(ctx context.Context) {
		s.RunOnce(ctx)
	}, s.logger)
	r.Run(ctx)
}

// FetchDirect downloads the configured report once, without proxy rotation
// and without touching change-detection state. The bulk exporter uses it;
// monitoring always goes through a Service.
func FetchDirect(ctx context.Context, cfg *Config, logger *slog.Logger) ([]byte, error) {
	f, err := fetch.New(fetch.Config{
		URL:       cfg.Source.URL,
		Timeout:   cfg.Fetch.Timeout.Std(),
		MaxBytes:  cfg.Fetch.MaxBytes,
		UserAgent: cfg.Source.UserAgent,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}
	snap, err := f.FetchDirect(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Body, nil
}

// RunOnce performs one complete watch run and returns its outcome. Exactly
// one run-log row is written per call, best effort: a failed insert is
// logged but never changes the outcome.
func (s *Service) RunOnce(ctx context.Context) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	started := time.Now()
	o := Outcome{RunID: s.newRunID()}
	defer func() { s.logRun(ctx, &o, started) }()

	s.logger.Info("watch: run started", "run_id", o.RunID, "key", s.cfg.Store.Key)

	snap, err := s.fetcher.Fetch(ctx)
	if err != nil {
		o.Status = StatusExhausted
		o.Err = err
		var exhausted *fetch.ExhaustedError
		if errors.As(err, &exhausted) {
			o.Attempts = exhausted.Attempts
		}
		s.logger.Error("watch: fetch exhausted",
			"run_id", o.RunID, "attempts", o.Attempts, "error", err)
		return o
	}
	o.Attempts = snap.Attempts
	o.HTTPStatus = snap.StatusCode
	o.Fingerprint = snap.Fingerprint

	prior, err := s.store.Fingerprint(ctx, s.cfg.Store.Key)
	if err != nil {
		o.Status = StatusStoreError
		o.Err = err
		s.logger.Error("watch: read fingerprint", "run_id", o.RunID, "error", err)
		return o
	}
	if prior != "" && strings.EqualFold(prior, snap.Fingerprint) {
		o.Status = StatusUnchanged
		s.logger.Info("watch: no change", "run_id", o.RunID, "fingerprint", snap.Fingerprint)
		return o
	}

	// Store the new fingerprint before notifying. A crash from here on
	// re-suppresses this version instead of re-notifying it.
	if err := s.store.ReplaceFingerprint(ctx, s.cfg.Store.Key, snap.Fingerprint, time.Now().UnixMilli()); err != nil {
		o.Status = StatusStoreError
		o.Err = err
		s.logger.Error("watch: replace fingerprint", "run_id", o.RunID, "error", err)
		return o
	}

	records, err := s.extract(snap.Body)
	if err != nil {
		// The fingerprint is already stored: this version is consumed even
		// though nothing could be read out of it.
		o.Status = StatusEmpty
		o.Err = err
		s.logger.Error("watch: extract failed", "run_id", o.RunID, "error", err)
		return o
	}
	o.Records = len(records)
	if len(records) == 0 {
		o.Status = StatusEmpty
		s.logger.Info("watch: report changed but no records extracted", "run_id", o.RunID)
		return o
	}

	rep := s.disp.Dispatch(ctx, records)
	o.Sent, o.Failed = rep.Sent, rep.Failed
	o.Status = StatusNotified
	if rep.Failed > 0 {
		s.logger.Warn("watch: partial delivery",
			"run_id", o.RunID, "records", o.Records, "sent", o.Sent, "failed", o.Failed)
	} else {
		s.logger.Info("watch: notified",
			"run_id", o.RunID, "records", o.Records, "sent", o.Sent)
	}
	return o
}

func (s *Service) extract(body []byte) ([]report.Record, error) {
	pages, err := report.ReadPDF(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	return report.Extract(pages, s.strategy), nil
}

// logRun writes the run-log row. The context is decoupled from the run's so
// a run killed by deadline still leaves its audit row.
func (s *Service) logRun(ctx context.Context, o *Outcome, started time.Time) {
	logCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	errMsg := ""
	if o.Err != nil {
		errMsg = o.Err.Error()
	}
	run := &state.Run{
		RunID:       o.RunID,
		Key:         s.cfg.Store.Key,
		StartedAt:   started.UnixMilli(),
		DurationMs:  time.Since(started).Milliseconds(),
		Status:      o.Status,
		HTTPStatus:  o.HTTPStatus,
		Fingerprint: o.Fingerprint,
		Attempts:    o.Attempts,
		Records:     o.Records,
		Sent:        o.Sent,
		Failed:      o.Failed,
		Error:       errMsg,
	}
	if err := s.store.InsertRun(logCtx, run); err != nil {
		s.logger.Error("watch: insert run log", "run_id", o.RunID, "error", err)
	}
}
