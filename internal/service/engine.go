package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vhvplatform/go-notification-engine/internal/domain"
	"github.com/vhvplatform/go-notification-engine/internal/metrics"
	"github.com/vhvplatform/go-notification-engine/internal/renderer"
	"github.com/vhvplatform/go-notification-engine/internal/shared/logger"
	"github.com/vhvplatform/go-notification-engine/internal/trigger"
	"golang.org/x/sync/errgroup"
)

// Pinger checks the record store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// CustomerSource loads the customer snapshot for a rule
type CustomerSource interface {
	FindWithEmail(ctx context.Context) ([]domain.Customer, error)
}

// ConfigSource loads the config row of a rule; nil, nil means no row
type ConfigSource interface {
	FindByType(ctx context.Context, t domain.TriggerType) (*domain.NotificationConfig, error)
}

// TemplateSource resolves the active template of a rule; nil, nil means none
type TemplateSource interface {
	FindActiveByType(ctx context.Context, t domain.TriggerType) (*domain.NotificationTemplate, error)
}

// RunLock serializes runs across processes. Acquire returns
// domain.ErrRunInProgress when another holder exists.
type RunLock interface {
	Acquire(ctx context.Context, token string) (release func(context.Context) error, err error)
}

// RunPublisher announces finished runs
type RunPublisher interface {
	PublishRunCompleted(ctx context.Context, summary *domain.RunSummary) error
}

// EngineDeps wires the engine. Lock, Publisher and Layout are optional.
type EngineDeps struct {
	Store      Pinger
	Customers  CustomerSource
	Configs    ConfigSource
	Templates  TemplateSource
	Evaluators []trigger.Evaluator
	Guard      *DedupGuard
	Dispatcher *Dispatcher
	Recorder   *HistoryRecorder
	Layout     *renderer.Layout
	Lock       RunLock
	Publisher  RunPublisher
}

// EngineOptions tunes a run
type EngineOptions struct {
	// Concurrency bounds in-flight candidates per rule
	Concurrency int
	// Clock supplies "now"; defaults to time.Now
	Clock func() time.Time
}

// Engine runs every rule once per invocation and aggregates the outcome
type Engine struct {
	deps        EngineDeps
	concurrency int
	clock       func() time.Time
	log         *logger.Logger
}

// NewEngine creates a new engine
func NewEngine(deps EngineDeps, opts EngineOptions, log *logger.Logger) *Engine {
	e := &Engine{
		deps:        deps,
		concurrency: opts.Concurrency,
		clock:       opts.Clock,
		log:         log,
	}
	if e.concurrency < 1 {
		e.concurrency = 1
	}
	if e.clock == nil {
		e.clock = time.Now
	}
	return e
}

type outcome int

const (
	outcomeSent outcome = iota
	outcomeSuppressed
	outcomeFailed
)

// Run evaluates every rule concurrently. Per-rule and per-candidate problems
// end up in the summary; an error is returned only when the store is
// unreachable or another run holds the lock.
func (e *Engine) Run(ctx context.Context) (*domain.RunSummary, error) {
	started := time.Now()
	runID := uuid.NewString()
	log := e.log.With("run_id", runID)

	if err := e.deps.Store.Ping(ctx); err != nil {
		metrics.RunsTotal.WithLabelValues("failed").Inc()
		log.Error("Record store unreachable", "error", err)
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}

	if e.deps.Lock != nil {
		release, err := e.deps.Lock.Acquire(ctx, runID)
		switch {
		case errors.Is(err, domain.ErrRunInProgress):
			metrics.RunsTotal.WithLabelValues("locked").Inc()
			log.Warn("Another run holds the lock")
			return nil, err
		case err != nil:
			// dedup still guards against most duplicates
			log.Warn("Run lock unavailable, continuing unlocked", "error", err)
		default:
			defer func() {
				if err := release(context.WithoutCancel(ctx)); err != nil {
					log.Warn("Failed to release run lock", "error", err)
				}
			}()
		}
	}

	now := e.clock()
	summary := domain.NewRunSummary(runID, now)
	log.Info("Notification run started", "now", now)

	var g errgroup.Group
	for _, ev := range e.deps.Evaluators {
		ts := summary.Types[ev.Type()]
		if ts == nil {
			ts = &domain.TypeSummary{Type: ev.Type()}
			summary.Types[ev.Type()] = ts
		}
		g.Go(func() error {
			e.runPipeline(ctx, runID, ev, now, ts)
			return nil
		})
	}
	_ = g.Wait()

	summary.FinishedAt = e.clock()
	metrics.RunsTotal.WithLabelValues("ok").Inc()
	metrics.RunDuration.Observe(time.Since(started).Seconds())

	log.Info("Notification run finished",
		"birthdays", summary.SentCount(domain.TriggerBirthday),
		"annual_fees", summary.SentCount(domain.TriggerAnnualFeeDue),
		"payment_reminders", summary.SentCount(domain.TriggerPaymentReminder),
		"errors", len(summary.Errors()),
	)

	if e.deps.Publisher != nil {
		if err := e.deps.Publisher.PublishRunCompleted(ctx, summary); err != nil {
			log.Warn("Failed to publish run completed event", "error", err)
		}
	}

	return summary, nil
}

// runPipeline fills ts; it owns ts exclusively until it returns
func (e *Engine) runPipeline(ctx context.Context, runID string, ev trigger.Evaluator, now time.Time, ts *domain.TypeSummary) {
	t := ev.Type()
	log := e.log.With("run_id", runID, "type", t)
	fail := func(stage string, err error) {
		log.Error("Rule failed", "stage", stage, "error", err)
		ts.Errors = append(ts.Errors, fmt.Sprintf("%s: %s: %v", t, stage, err))
	}

	cfg, err := e.deps.Configs.FindByType(ctx, t)
	if err != nil {
		fail("config", err)
		return
	}
	if cfg == nil || !cfg.Enabled {
		ts.Idle = true
		log.Info("Rule idle", "reason", "disabled or not configured")
		return
	}

	tpl, err := e.deps.Templates.FindActiveByType(ctx, t)
	if err != nil {
		fail("template", err)
		return
	}
	if tpl == nil {
		ts.Idle = true
		log.Info("Rule idle", "reason", "no active template")
		return
	}

	customers, err := e.deps.Customers.FindWithEmail(ctx)
	if err != nil {
		fail("customers", err)
		return
	}

	candidates, err := ev.Evaluate(now, cfg, customers)
	if err != nil {
		fail("evaluate", err)
		return
	}
	ts.Candidates = len(candidates)
	metrics.CandidatesTotal.WithLabelValues(string(t)).Add(float64(len(candidates)))

	var (
		mu   sync.Mutex
		errs []string
		g    errgroup.Group
	)
	g.SetLimit(e.concurrency)

	for i := range candidates {
		cand := &candidates[i]
		g.Go(func() error {
			out, candErrs := e.processCandidate(ctx, runID, cand, cfg.Params, tpl, now)

			mu.Lock()
			defer mu.Unlock()
			switch out {
			case outcomeSent:
				ts.Sent++
			case outcomeSuppressed:
				ts.Suppressed++
			case outcomeFailed:
				ts.Failed++
			}
			errs = append(errs, candErrs...)
			return nil
		})
	}
	_ = g.Wait()

	sort.Strings(errs)
	ts.Errors = append(ts.Errors, errs...)

	log.Info("Rule finished",
		"candidates", ts.Candidates,
		"sent", ts.Sent,
		"suppressed", ts.Suppressed,
		"failed", ts.Failed,
	)
}

// processCandidate runs guard, render, dispatch and record in that order
func (e *Engine) processCandidate(ctx context.Context, runID string, cand *domain.Candidate, params domain.TriggerParams, tpl *domain.NotificationTemplate, now time.Time) (outcome, []string) {
	t := string(cand.Type)
	label := fmt.Sprintf("%s: %s", t, cand.Customer.Email)

	suppress, err := e.deps.Guard.ShouldSuppress(ctx, cand, params, now)
	if suppress {
		metrics.SuppressedNotifications.WithLabelValues(t).Inc()
		if err != nil {
			return outcomeSuppressed, []string{fmt.Sprintf("%s: %v", label, err)}
		}
		return outcomeSuppressed, nil
	}

	subject := renderer.Render(tpl.Subject, cand.Bindings)
	body := renderer.Render(tpl.Body, renderer.EscapeBindings(cand.Bindings))

	var receipt *domain.DeliveryReceipt
	if e.deps.Layout != nil {
		body, err = e.deps.Layout.Wrap(body)
		if err != nil {
			err = fmt.Errorf("render failed: %w", err)
		}
	}
	if err == nil {
		receipt, err = e.deps.Dispatcher.Dispatch(ctx, cand, subject, body)
	}

	var errs []string
	out := outcomeSent
	if err != nil {
		out = outcomeFailed
		metrics.FailedNotifications.WithLabelValues(t).Inc()
		e.log.Warn("Dispatch failed", "run_id", runID, "type", t, "email", cand.Customer.Email, "error", err)
		errs = append(errs, fmt.Sprintf("%s: %v", label, err))
	} else {
		metrics.NotificationsSent.WithLabelValues(t).Inc()
	}

	recErr := e.deps.Recorder.Record(ctx, Attempt{
		RunID:     runID,
		Candidate: cand,
		Subject:   subject,
		Receipt:   receipt,
		Err:       err,
		At:        e.clock(),
	})
	if recErr != nil {
		e.log.Error("Failed to record history", "run_id", runID, "type", t, "email", cand.Customer.Email, "error", recErr)
		errs = append(errs, fmt.Sprintf("%s: history write failed: %v", label, recErr))
	}

	return out, errs
}
