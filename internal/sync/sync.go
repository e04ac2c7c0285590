// Package sync provides the incremental reconciliation of locally cached
// person records against the remote change feed.
package sync

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// retentionWindow is how far back the change feed can be queried. The
// remote service retains roughly fourteen days of history; queries
// beyond that yield incomplete results, so lookback is clamped one day
// short of the limit.
const retentionWindow = 13 * 24 * time.Hour

// CursorStore persists the last-successful-sync timestamp.
type CursorStore interface {
	ShouldRun(now time.Time) bool
	Load() (time.Time, bool)
	Save(now time.Time) error
}

// EntityIndex enumerates the entities already cached on disk.
type EntityIndex interface {
	EnsureRoot() error
	List() ([]string, error)
	EntityPath(id string) string
}

// ChangeFetcher aggregates the remote change feed into a flat id list.
type ChangeFetcher interface {
	FetchAllChanges(ctx context.Context, since time.Time) ([]string, error)
}

// Refresher re-downloads a single entity's detail data.
type Refresher interface {
	Refresh(ctx context.Context, id, dataPath string) error
}

// ProgressFunc receives completion percentages in [0, 100],
// monotonically non-decreasing within a run.
type ProgressFunc func(percent float64)

// Options carries the feature flags and progress sink for a Service.
type Options struct {
	// EnableInternetProviders gates all remote metadata access.
	EnableInternetProviders bool
	// EnableProviderUpdates gates this provider's change feed task.
	EnableProviderUpdates bool
	// Progress, if set, receives completion percentages during a run.
	Progress ProgressFunc
}

// Service orchestrates one incremental sync run: due-check, window
// clamp, change aggregation, intersection with the local index, the
// per-entity refresh loop and the cursor commit.
type Service struct {
	cursor  CursorStore
	index   EntityIndex
	feed    ChangeFetcher
	refresh Refresher
	opts    Options
}

// NewService creates a new reconciliation service
func NewService(cursor CursorStore, index EntityIndex, feed ChangeFetcher, refresh Refresher, opts Options) *Service {
	return &Service{
		cursor:  cursor,
		index:   index,
		feed:    feed,
		refresh: refresh,
		opts:    opts,
	}
}

// Run executes a single sync pass. Feed transport and decode failures
// are fatal and leave the cursor untouched; individual refresh failures
// are logged and skipped. A run that is not yet due returns silently
// without reporting progress.
func (s *Service) Run(ctx context.Context) error {
	if !s.opts.EnableInternetProviders || !s.opts.EnableProviderUpdates {
		logrus.Debug("People sync disabled by configuration")
		s.reportProgress(100)
		return nil
	}

	if err := s.index.EnsureRoot(); err != nil {
		return err
	}

	now := time.Now().UTC()
	if !s.cursor.ShouldRun(now) {
		logrus.Debug("People sync not due yet, skipping")
		return nil
	}

	last, ok := s.cursor.Load()
	if !ok {
		// First run: establish the baseline without refreshing anything.
		// Changes published before this point were never consumed.
		logrus.Info("No sync cursor found, establishing baseline")
		if err := s.cursor.Save(now); err != nil {
			return fmt.Errorf("failed to save sync cursor: %w", err)
		}
		s.reportProgress(100)
		return nil
	}

	since := last
	if now.Sub(since) > retentionWindow {
		since = now.Add(-retentionWindow)
		logrus.WithFields(logrus.Fields{
			"cursor":  last.Format(time.RFC3339),
			"clamped": since.Format(time.RFC3339),
		}).Info("Cursor exceeds feed retention, clamping start date")
	}

	changed, err := s.feed.FetchAllChanges(ctx, since)
	if err != nil {
		return fmt.Errorf("failed to aggregate change feed: %w", err)
	}

	targets, err := s.reconcile(changed)
	if err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"changed": len(changed),
		"local":   len(targets),
	}).Info("Reconciled change feed against local cache")

	if err := s.refreshAll(ctx, targets); err != nil {
		return err
	}

	if err := s.cursor.Save(now); err != nil {
		return fmt.Errorf("failed to save sync cursor: %w", err)
	}
	s.reportProgress(100)

	logrus.Info("People sync completed successfully")
	return nil
}

// reconcile intersects the aggregated change set with the local entity
// index. Ids not cached locally are dropped: this task refreshes known
// entities, it does not discover new ones. Empty and whitespace ids are
// discarded. Matching is case-insensitive.
func (s *Service) reconcile(changed []string) ([]string, error) {
	names, err := s.index.List()
	if err != nil {
		return nil, err
	}

	local := make(map[string]struct{}, len(names))
	for _, name := range names {
		local[strings.ToLower(name)] = struct{}{}
	}

	targets := make([]string, 0, len(changed))
	for _, id := range changed {
		if strings.TrimSpace(id) == "" {
			continue
		}
		if _, ok := local[strings.ToLower(id)]; ok {
			targets = append(targets, id)
		}
	}
	return targets, nil
}

// refreshAll invokes the refresher for each target id in order. A
// failed refresh is logged with the offending id and does not abort the
// loop or the run. Progress is reported after every item.
func (s *Service) refreshAll(ctx context.Context, targets []string) error {
	total := len(targets)
	for completed, id := range targets {
		if err := ctx.Err(); err != nil {
			return err
		}

		dataPath := s.index.EntityPath(id)
		if err := os.MkdirAll(dataPath, 0755); err != nil {
			logrus.WithError(err).WithField("person_id", id).Error("Failed to create entity data directory")
		} else if err := s.refresh.Refresh(ctx, id, dataPath); err != nil {
			logrus.WithError(err).WithField("person_id", id).Error("Failed to refresh person record")
			// Continue refreshing other entities rather than failing entirely
		}

		s.reportProgress(float64(completed+1) / float64(total) * 100)
	}
	return nil
}

func (s *Service) reportProgress(percent float64) {
	if s.opts.Progress != nil {
		s.opts.Progress(percent)
	}
}
