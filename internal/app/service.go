package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"alertcore/internal/api"
	"alertcore/internal/clock"
	"alertcore/internal/config"
	"alertcore/internal/engine"
	"alertcore/internal/eventstream"
	"alertcore/internal/ingest"
	"alertcore/internal/logging"
	"alertcore/internal/metrics"
	"alertcore/internal/notify"
	"alertcore/internal/retry"
	"alertcore/internal/rules"
)

const shutdownTimeout = 10 * time.Second

// Service composes runtime dependencies and process lifecycle.
// Params: config source and shared runtime components.
// Returns: runnable alerting service.
type Service struct {
	source     config.ConfigSource
	cfg        config.Config
	logger     *slog.Logger
	closeLog   func()
	metrics    *metrics.Metrics
	registry   *rules.Registry
	dispatcher *notify.Dispatcher
	manager    *Manager
	events     interface{ Close() error }
	httpSrv    *http.Server
	natsSub    interface{ Close() error }
	readyFlag  atomic.Bool
	clock      clock.Clock
}

// NewService builds service instance from config source.
// Params: config source and clock implementation.
// Returns: initialized service or setup error.
func NewService(source config.ConfigSource, clk clock.Clock) (*Service, error) {
	cfg, err := config.LoadSnapshot(source)
	if err != nil {
		return nil, err
	}

	logger, closeLog, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}

	service := &Service{
		source:   source,
		cfg:      cfg,
		logger:   logger,
		closeLog: closeLog,
		metrics:  metrics.New(true),
		registry: rules.NewRegistry(clk),
		clock:    clk,
	}
	if err := service.buildCore(); err != nil {
		service.cleanupInitResources()
		return nil, err
	}
	if err := service.buildHTTPServer(); err != nil {
		service.cleanupInitResources()
		return nil, err
	}
	if err := service.buildNATSSubscriber(); err != nil {
		service.cleanupInitResources()
		return nil, err
	}

	return service, nil
}

// buildCore wires rules, retry executor, dispatcher, event stream, and manager.
// Params: none.
// Returns: setup error.
func (s *Service) buildCore() error {
	alertRules, err := config.AlertRules(s.cfg)
	if err != nil {
		return err
	}
	if err := s.registry.Replace(alertRules); err != nil {
		return err
	}

	presets, err := retry.NewRegistry(config.RetryOverrides(s.cfg))
	if err != nil {
		return err
	}
	retryCfg, ok := presets.Get(s.cfg.Notify.RetryPreset)
	if !ok {
		return fmt.Errorf("unknown retry preset %q", s.cfg.Notify.RetryPreset)
	}
	durations := config.DurationsOf(s.cfg)
	executor := retry.New(s.logger, s.metrics, retry.WithClock(s.clock))
	transport := notify.NewRouterFromConfig(s.cfg.Notify, &http.Client{})
	s.dispatcher = notify.NewDispatcher(transport, executor, notify.Options{
		MaxRetries:     s.cfg.Notify.MaxRetries,
		BaseBackoff:    durations.BaseBackoff,
		AttemptTimeout: durations.AttemptTimeout,
		Retry:          retryCfg,
		Clock:          s.clock,
		Recorder:       s.metrics,
	}, s.logger)

	opts := Options{
		HistorySize:               s.cfg.Alerting.HistorySize,
		ResumeOnSuppressionExpiry: s.cfg.Alerting.ResumeOnSuppressionExpiry,
		Clock:                     s.clock,
		Metrics:                   s.metrics,
	}
	if s.cfg.Events.NATS.Enabled {
		publisher, err := eventstream.NewPublisher(s.cfg.Events.NATS, s.logger)
		if err != nil {
			return err
		}
		s.events = publisher
		opts.Publisher = publisher
	}
	s.manager = NewManager(s.registry, engine.NewEvaluator(s.logger), s.dispatcher, opts, s.logger)
	s.logger.Info("alert rules loaded", "rules", s.registry.Len(), "channels", fmt.Sprint(transport.Channels()))
	return nil
}

// Run starts service lifecycle and blocks until shutdown signal.
// Params: root context for service runtime.
// Returns: terminal run error.
func (s *Service) Run(ctx context.Context) error {
	taskCtx, taskCancel := context.WithCancel(ctx)
	var tasks sync.WaitGroup
	stopTasks := func() {
		taskCancel()
		tasks.Wait()
	}
	defer stopTasks()

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("http server starting", "listen", s.cfg.Ingest.HTTP.Listen)
		err := s.httpSrv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	durations := config.DurationsOf(s.cfg)
	s.every(taskCtx, &tasks, durations.EscalationPoll, func(ctx context.Context) {
		s.manager.FireDueEscalations(ctx, s.clock.Now())
	})
	s.every(taskCtx, &tasks, durations.SuppressionSweep, func(ctx context.Context) {
		s.manager.SweepSuppressions(ctx, s.clock.Now())
		s.housekeeping(durations)
	})
	s.every(taskCtx, &tasks, durations.Drain, func(ctx context.Context) {
		s.dispatcher.Drain(ctx)
	})
	s.every(taskCtx, &tasks, durations.StatsExport, func(context.Context) {
		s.manager.ExportStatistics()
	})
	if s.cfg.Service.ReloadEnabled {
		s.every(taskCtx, &tasks, durations.Reload, func(ctx context.Context) {
			if err := s.reloadConfig(ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Error("reload failed", "error", err.Error())
			}
		})
	}

	s.readyFlag.Store(true)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		stopTasks()
		return s.shutdown()
	case err := <-errChan:
		stopTasks()
		_ = s.shutdown()
		return fmt.Errorf("http server failed: %w", err)
	case <-sigChan:
		stopTasks()
		return s.shutdown()
	}
}

// every runs task on a ticker until ctx is done.
// Params: context, wait group tracking the loop, interval, and task.
// Returns: immediately; the loop runs in its own goroutine.
func (s *Service) every(ctx context.Context, wg *sync.WaitGroup, interval time.Duration, task func(ctx context.Context)) {
	if interval <= 0 {
		return
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				task(ctx)
			}
		}
	}()
}

// housekeeping drops idle evaluator series and settled deliveries past retention.
func (s *Service) housekeeping(durations config.Durations) {
	now := s.clock.Now()
	series := s.manager.PruneSeries(now.Add(-durations.SeriesIdle))
	deliveries := s.dispatcher.Prune(now.Add(-durations.Retention))
	if series > 0 || deliveries > 0 {
		s.logger.Debug("housekeeping finished", "series_pruned", series, "deliveries_pruned", deliveries)
	}
}

// shutdown closes runtime resources in dependency order.
// Params: none.
// Returns: first close error.
func (s *Service) shutdown() error {
	s.readyFlag.Store(false)
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	var firstErr error
	markErr := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if err := s.httpSrv.Shutdown(ctx); err != nil {
		s.logger.Error("http shutdown failed", "error", err.Error())
		markErr(fmt.Errorf("http shutdown: %w", err))
	}
	if s.natsSub != nil {
		if err := s.natsSub.Close(); err != nil {
			s.logger.Error("nats subscriber close failed", "error", err.Error())
			markErr(fmt.Errorf("nats subscriber close: %w", err))
		}
	}
	stats := s.dispatcher.Drain(ctx)
	if pending := len(s.dispatcher.Pending()); pending > 0 {
		s.logger.Warn("notifications left pending at shutdown", "pending", pending, "attempted", stats.Attempted)
	}
	if s.events != nil {
		if err := s.events.Close(); err != nil {
			s.logger.Error("event stream close failed", "error", err.Error())
			markErr(fmt.Errorf("event stream close: %w", err))
		}
	}
	if s.closeLog != nil {
		s.closeLog()
	}
	return firstErr
}

// cleanupInitResources closes partially initialized resources on startup failures.
// Params: none.
// Returns: all acquired resources closed best-effort.
func (s *Service) cleanupInitResources() {
	if s.natsSub != nil {
		_ = s.natsSub.Close()
		s.natsSub = nil
	}
	if s.httpSrv != nil {
		_ = s.httpSrv.Close()
		s.httpSrv = nil
	}
	if s.events != nil {
		_ = s.events.Close()
		s.events = nil
	}
	if s.closeLog != nil {
		s.closeLog()
		s.closeLog = nil
	}
}

// buildHTTPServer wires router with health, ingest, metrics, and admin endpoints.
// Params: none.
// Returns: setup error.
func (s *Service) buildHTTPServer() error {
	httpCfg := s.cfg.Ingest.HTTP
	mux := http.NewServeMux()
	mux.HandleFunc(httpCfg.HealthPath, func(writer http.ResponseWriter, _ *http.Request) {
		writer.WriteHeader(http.StatusOK)
		_, _ = writer.Write([]byte("ok"))
	})
	mux.HandleFunc(httpCfg.ReadyPath, func(writer http.ResponseWriter, _ *http.Request) {
		if !s.readyFlag.Load() {
			writer.WriteHeader(http.StatusServiceUnavailable)
			_, _ = writer.Write([]byte("not-ready"))
			return
		}
		writer.WriteHeader(http.StatusOK)
		_, _ = writer.Write([]byte("ready"))
	})
	mux.Handle(httpCfg.MetricsPath, s.metrics.Handler())

	if httpCfg.Enabled {
		handler := ingest.NewHTTPHandler(s.manager, httpCfg.MaxBodyBytes, s.metrics, s.logger)
		mux.Handle(httpCfg.IngestPath, handler)
		batchPath := strings.TrimSuffix(httpCfg.IngestPath, "/") + "/batch"
		if batchPath != httpCfg.IngestPath {
			mux.Handle(batchPath, handler)
		}
	}
	mux.Handle("/", api.New(s.manager, s.dispatcher, s.logger))

	s.httpSrv = &http.Server{
		Addr:              httpCfg.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return nil
}

// buildNATSSubscriber starts NATS ingest when enabled.
// Params: none.
// Returns: initialization error.
func (s *Service) buildNATSSubscriber() error {
	if !s.cfg.Ingest.NATS.Enabled {
		return nil
	}
	subscriber, err := ingest.NewNATSSubscriber(s.cfg.Ingest.NATS, s.manager, s.metrics, s.logger)
	if err != nil {
		return err
	}
	s.natsSub = subscriber
	return nil
}

// reloadConfig re-reads config source and swaps the rule set when it changed.
// Params: context of the reload loop.
// Returns: load or apply error; other sections need a restart.
func (s *Service) reloadConfig(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	nextCfg, err := config.LoadSnapshot(s.source)
	if err != nil {
		return err
	}
	if reflect.DeepEqual(nextCfg.Rule, s.cfg.Rule) {
		return nil
	}
	alertRules, err := config.AlertRules(nextCfg)
	if err != nil {
		return err
	}
	if err := s.registry.Replace(alertRules); err != nil {
		return err
	}
	s.cfg.Rule = nextCfg.Rule
	s.logger.Info("alert rules reloaded", "rules", len(alertRules))
	return nil
}
