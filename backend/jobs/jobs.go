// Package jobs runs the scheduled maintenance tasks of the backend.
package jobs

import (
	"context"
	"time"

	"github.com/Rodvdev/gainz-factory-sub003/backend/logger"
	"github.com/Rodvdev/gainz-factory-sub003/backend/server/metrics"
	"github.com/robfig/cron/v3"
)

const (
	// PurgeTokensSpec runs every night at 03:00.
	PurgeTokensSpec = "0 3 * * *"
	// FlushCacheSpec runs at the top of every hour.
	FlushCacheSpec = "@hourly"
	// CleanupLimiterSpec runs every ten minutes.
	CleanupLimiterSpec = "@every 10m"

	jobTimeout = time.Minute
)

// TokenPurger deletes expired refresh tokens and confirmation codes.
type TokenPurger interface {
	PurgeExpiredTokens(ctx context.Context, now time.Time) (int64, error)
}

// PrefixDeleter deletes cached entries by key prefix.
type PrefixDeleter interface {
	DeletePrefix(ctx context.Context, prefix string) (int, error)
}

// LimiterCleaner forgets rate-limit state of idle clients.
type LimiterCleaner interface {
	Cleanup(idle time.Duration)
}

// Config holds the targets of the scheduled jobs. Cache and Limiter may be nil.
type Config struct {
	Tokens      TokenPurger
	Cache       PrefixDeleter
	CachePrefix string
	Limiter     LimiterCleaner
	Location    *time.Location
	Now         func() time.Time
}

// Scheduler wraps a cron scheduler with the backend's jobs registered.
type Scheduler struct {
	cfg  Config
	cron *cron.Cron
}

// New registers the jobs. Nothing runs until Start is called.
func New(cfg Config) (*Scheduler, error) {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	s := &Scheduler{
		cfg:  cfg,
		cron: cron.New(cron.WithLocation(cfg.Location), cron.WithChain(cron.Recover(cronLogger{}))),
	}

	if _, err := s.cron.AddFunc(PurgeTokensSpec, func() { s.run("purge_tokens", s.PurgeTokens) }); err != nil {
		return nil, err
	}
	if cfg.Cache != nil {
		if _, err := s.cron.AddFunc(FlushCacheSpec, func() { s.run("flush_cache", s.FlushCache) }); err != nil {
			return nil, err
		}
	}
	if cfg.Limiter != nil {
		if _, err := s.cron.AddFunc(CleanupLimiterSpec, func() { cfg.Limiter.Cleanup(30 * time.Minute) }); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Start runs the scheduler until ctx is cancelled, then waits for running
// jobs to finish.
func (s *Scheduler) Start(ctx context.Context) {
	s.cron.Start()
	logger.Info("scheduler started", "jobs", len(s.cron.Entries()))
	go func() {
		<-ctx.Done()
		<-s.cron.Stop().Done()
		logger.Info("scheduler stopped")
	}()
}

func (s *Scheduler) run(name string, job func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	start := time.Now()
	err := job(ctx)
	metrics.RecordJob(name, err)
	if err != nil {
		logger.Error("job failed", "job", name, "err", err)
		return
	}
	logger.Debug("job finished", "job", name, "duration", time.Since(start).String())
}

// PurgeTokens deletes refresh tokens and confirmations that have expired.
func (s *Scheduler) PurgeTokens(ctx context.Context) error {
	n, err := s.cfg.Tokens.PurgeExpiredTokens(ctx, s.cfg.Now())
	if err != nil {
		return err
	}
	if n > 0 {
		logger.Info("purged expired tokens", "count", n)
	}
	return nil
}

// FlushCache drops every cached public response.
func (s *Scheduler) FlushCache(ctx context.Context) error {
	if s.cfg.Cache == nil {
		return nil
	}
	n, err := s.cfg.Cache.DeletePrefix(ctx, s.cfg.CachePrefix)
	if err != nil {
		return err
	}
	logger.Debug("flushed public cache", "keys", n)
	return nil
}

// cronLogger adapts the structured logger to cron.Logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logger.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logger.Error("cron: "+msg, append(keysAndValues, "err", err)...)
}
