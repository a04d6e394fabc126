package stats

import (
	"context"
	"fmt"

	"github.com/bryanwahyu/docguard/internal/domain/errs"
	"github.com/bryanwahyu/docguard/internal/domain/users"
	"github.com/bryanwahyu/docguard/internal/logging"
)

// Service updates and reads the per-user usage counters.
// Every write goes through Repo.AddCounters, which increments in place inside
// a transaction, so concurrent callers never lose updates.
type Service struct {
	Repo users.Repository
}

// IncrementCounter adds delta to one counter and returns its new value.
func (s *Service) IncrementCounter(ctx context.Context, userID int64, counter users.Counter, delta int64) (int64, error) {
	if !counter.Valid() {
		return 0, s.reject(ctx, userID, string(counter), errs.NewValidationError("counter", fmt.Sprintf("unknown counter %q", counter)))
	}
	if delta < 0 {
		return 0, s.reject(ctx, userID, string(counter), errs.NewValidationError("count", "Count must be positive"))
	}
	c, err := s.apply(ctx, userID, string(counter), map[users.Counter]int64{counter: delta})
	if err != nil {
		return 0, err
	}
	return c.Get(counter), nil
}

func (s *Service) IncrementDocumentsSaved(ctx context.Context, userID int64) (int64, error) {
	return s.IncrementCounter(ctx, userID, users.CounterDocumentsSaved, 1)
}

func (s *Service) IncrementDocumentsProcessed(ctx context.Context, userID int64) (int64, error) {
	return s.IncrementCounter(ctx, userID, users.CounterDocumentsProcessed, 1)
}

func (s *Service) IncrementDocumentsShared(ctx context.Context, userID int64) (int64, error) {
	return s.IncrementCounter(ctx, userID, users.CounterDocumentsShared, 1)
}

func (s *Service) IncrementSensitiveItemsDetected(ctx context.Context, userID int64, count int64) (int64, error) {
	return s.IncrementCounter(ctx, userID, users.CounterSensitiveItemsDetected, count)
}

func (s *Service) IncrementNonDetectedItems(ctx context.Context, userID int64, count int64) (int64, error) {
	return s.IncrementCounter(ctx, userID, users.CounterNonDetectedItems, count)
}

// UpdateAfterAnalysis adds to both detection counters in one transaction.
func (s *Service) UpdateAfterAnalysis(ctx context.Context, userID int64, sensitive, nonSensitive int64) (users.Counters, error) {
	const label = "sensitive_items_detected+non_detected_items"
	if sensitive < 0 || nonSensitive < 0 {
		return users.Counters{}, s.reject(ctx, userID, label, errs.NewValidationError("count", "Counts must be non-negative"))
	}
	return s.apply(ctx, userID, label, map[users.Counter]int64{
		users.CounterSensitiveItemsDetected: sensitive,
		users.CounterNonDetectedItems:       nonSensitive,
	})
}

// RecordAnalysis books the outcome of one completed scan: k detected items
// add k to the sensitive counter, a scan with none adds a single
// non-detected event.
func (s *Service) RecordAnalysis(ctx context.Context, userID int64, k int) (int64, error) {
	if k > 0 {
		return s.IncrementSensitiveItemsDetected(ctx, userID, int64(k))
	}
	return s.IncrementNonDetectedItems(ctx, userID, 1)
}

// Snapshot returns the counters and derived accuracy for a user.
func (s *Service) Snapshot(ctx context.Context, userID int64) (users.Stats, error) {
	u, err := s.Repo.Get(ctx, userID)
	if err != nil {
		return users.Stats{}, err
	}
	return users.NewStats(u.Counters), nil
}

// Reset zeroes all five counters. Administrative use only.
func (s *Service) Reset(ctx context.Context, userID int64) error {
	log := logging.FromContext(ctx)
	if err := s.Repo.ResetCounters(ctx, userID); err != nil {
		log.Error("reset stats failed", "user_id", userID, "err", err)
		return &errs.StatsUpdateError{UserID: userID, Counter: "all", Err: err}
	}
	log.Info("reset all stats", "user_id", userID)
	return nil
}

func (s *Service) apply(ctx context.Context, userID int64, label string, deltas map[users.Counter]int64) (users.Counters, error) {
	log := logging.FromContext(ctx)
	c, err := s.Repo.AddCounters(ctx, userID, deltas)
	if err != nil {
		log.Error("stats update failed", "user_id", userID, "counter", label, "err", err)
		return users.Counters{}, &errs.StatsUpdateError{UserID: userID, Counter: label, Err: err}
	}
	for name, d := range deltas {
		log.Info("stats incremented", "user_id", userID, "counter", string(name), "delta", d, "value", c.Get(name))
	}
	return c, nil
}

func (s *Service) reject(ctx context.Context, userID int64, label string, err error) error {
	logging.FromContext(ctx).Warn("stats update rejected", "user_id", userID, "counter", label, "err", err)
	return err
}
