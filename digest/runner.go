package digest

import (
	"context"
	"errors"
	"regwatch/dispatch"
	"regwatch/metrics"
	"regwatch/models"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const DefaultWindow = 100

// SubscriberSource lists every subscriber
type SubscriberSource interface {
	ListSubscribers(ctx context.Context) ([]models.Subscriber, error)
}

// CandidateSource supplies the newest content items, newest first
type CandidateSource interface {
	RecentItems(ctx context.Context, limit int) ([]models.ContentItem, error)
}

// Runner orchestrates one digest run end to end
type Runner struct {
	subscribers SubscriberSource
	candidates  CandidateSource
	client      dispatch.Client
	builder     *Builder
	window      int
	workers     int
}

// Option configures a Runner
type Option func(*Runner)

// WithWindow sets how many recent items a run matches against
func WithWindow(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.window = n
		}
	}
}

// WithWorkers sets how many digests are dispatched concurrently
func WithWorkers(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithBuilder replaces the default digest builder
func WithBuilder(b *Builder) Option {
	return func(r *Runner) {
		if b != nil {
			r.builder = b
		}
	}
}

func NewRunner(subscribers SubscriberSource, candidates CandidateSource, client dispatch.Client, opts ...Option) *Runner {
	r := &Runner{
		subscribers: subscribers,
		candidates:  candidates,
		client:      client,
		builder:     NewBuilder(),
		window:      DefaultWindow,
		workers:     1,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Backend names the dispatch backend in use
func (r *Runner) Backend() string {
	return r.client.Backend()
}

func storeError(op string, err error) error {
	var se *models.StoreError
	if errors.As(err, &se) {
		return err
	}
	return &models.StoreError{Op: op, Err: err}
}

// tally holds the run counters. Workers update it under mu.
type tally struct {
	mu      sync.Mutex
	summary *models.RunSummary
}

func (t *tally) add(fn func(s *models.RunSummary)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn(t.summary)
}

// Run loads one snapshot of subscribers and candidates and sends a digest to
// every subscriber with at least one match. Only load failures fail the run;
// dispatch failures are counted and logged.
func (r *Runner) Run(ctx context.Context) (*models.RunSummary, error) {
	summary := &models.RunSummary{
		RunID:     uuid.New().String(),
		Backend:   r.client.Backend(),
		StartedAt: time.Now(),
	}
	logger := log.WithFields(log.Fields{
		"run":     summary.RunID,
		"backend": summary.Backend,
	})
	logger.Info("Starting digest run")

	err := r.run(ctx, logger, summary)
	summary.Duration = time.Since(summary.StartedAt)
	metrics.ObserveRun(err, summary.Duration)
	if err != nil {
		logger.WithError(err).Error("Digest run failed")
		return nil, err
	}

	logger.WithFields(log.Fields{
		"considered": summary.SubscribersConsidered,
		"skipped":    summary.Skipped,
		"attempted":  summary.Attempted,
		"sent":       summary.Sent,
		"failed":     summary.Failed,
		"matched":    summary.Matched,
		"duration":   summary.Duration,
	}).Info("Digest run finished")

	return summary, nil
}

func (r *Runner) run(ctx context.Context, logger *log.Entry, summary *models.RunSummary) error {
	subscribers, err := r.subscribers.ListSubscribers(ctx)
	if err != nil {
		return storeError("list subscribers", err)
	}

	candidates, err := r.candidates.RecentItems(ctx, r.window)
	if err != nil {
		return storeError("recent items", err)
	}

	logger.WithFields(log.Fields{
		"subscribers": len(subscribers),
		"candidates":  len(candidates),
	}).Info("Loaded digest snapshot")

	t := &tally{summary: summary}

	var g errgroup.Group
	g.SetLimit(r.workers)
	for _, sub := range subscribers {
		sub := sub
		g.Go(func() error {
			r.process(ctx, logger, t, sub, candidates)
			return nil
		})
	}
	_ = g.Wait()

	return nil
}

// process handles one subscriber. It never fails the run.
func (r *Runner) process(ctx context.Context, logger *log.Entry, t *tally, sub models.Subscriber, candidates []models.ContentItem) {
	t.add(func(s *models.RunSummary) { s.SubscribersConsidered++ })

	if sub.NotifyPreference == models.NotifyNone {
		t.add(func(s *models.RunSummary) { s.Skipped++ })
		metrics.ObserveSkipped()
		return
	}

	d := r.builder.Build(sub, candidates)
	if d == nil {
		return
	}
	metrics.ObserveMatches(d.Total)

	t.add(func(s *models.RunSummary) {
		s.Attempted++
		s.Matched += d.Total
	})

	res := r.client.Send(ctx, dispatch.Message{
		To:      sub.Email,
		Subject: d.Subject,
		Body:    d.Body,
	})
	metrics.ObserveDispatch(r.client.Backend(), res.OK())

	if !res.OK() {
		logger.WithFields(log.Fields{
			"to":     res.Destination,
			"reason": res.Err.Reason,
			"error":  res.Err.Err,
		}).Error("Digest dispatch failed")
		t.add(func(s *models.RunSummary) { s.Failed++ })
		return
	}

	logger.WithFields(log.Fields{
		"to":      sub.Email,
		"matched": d.Total,
		"listed":  len(d.Items),
	}).Debug("Digest sent")
	t.add(func(s *models.RunSummary) { s.Sent++ })
}
