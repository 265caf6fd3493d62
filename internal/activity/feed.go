package activity

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/MarcoPoloResearchLab/compass/backend/internal/observability"
	"github.com/MarcoPoloResearchLab/compass/backend/internal/realtime"
	"go.uber.org/zap"
)

var (
	errMissingService    = errors.New("activity service is required")
	errMissingDispatcher = errors.New("change-feed dispatcher is required")
)

// FeedConfig describes the dependencies of a Feed.
type FeedConfig struct {
	Service    *Service
	Dispatcher *realtime.Dispatcher
	Clock      func() time.Time
	Logger     *zap.Logger
	Limit      int
}

// Feed maintains a near-real-time, size-bounded mirror of a conference's
// recent activity and today's check-ins. The mirror is eventually consistent
// with the store: it holds at most Limit activities, newest first, and
// check-ins for exactly one calendar date.
//
// All mutation happens on the feed's own event goroutine; readers only ever
// see snapshots. A re-fetch completing after Stop, or after a newer
// subscription generation replaced it, is discarded.
type Feed struct {
	service    *Service
	dispatcher *realtime.Dispatcher
	clock      func() time.Time
	logger     *zap.Logger
	limit      int

	mu           sync.RWMutex
	conferenceID string
	activities   []Entry
	checkIns     []DailyCheckIn
	lastErr      error
	loading      bool
	generation   int64
	lastSeq      map[string]int64
	cancel       func()
}

// NewFeed constructs a Feed. Start must be called before reads are useful.
func NewFeed(cfg FeedConfig) (*Feed, error) {
	if cfg.Service == nil {
		return nil, errMissingService
	}
	if cfg.Dispatcher == nil {
		return nil, errMissingDispatcher
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	limit := cfg.Limit
	if limit <= 0 {
		limit = DefaultActivityLimit
	}
	return &Feed{
		service:    cfg.Service,
		dispatcher: cfg.Dispatcher,
		clock:      clock,
		logger:     logger,
		limit:      limit,
		lastSeq:    make(map[string]int64),
	}, nil
}

// Start loads the initial state for the conference and subscribes to the
// change feed. Calling it again first tears down any prior subscription, so
// at most one subscription exists per feed. A load failure records the error
// and leaves previously held state untouched.
func (f *Feed) Start(ctx context.Context, conferenceID string) error {
	if err := validateIdentifier(conferenceID, ErrInvalidConferenceID); err != nil {
		return err
	}

	f.Stop()

	f.mu.Lock()
	f.loading = true
	f.mu.Unlock()

	activities, loadErr := f.service.LoadActivities(ctx, conferenceID, f.limit)
	var checkIns []DailyCheckIn
	if loadErr == nil {
		checkIns, loadErr = f.service.LoadCheckIns(ctx, conferenceID, DateOf(f.clock()))
	}

	f.mu.Lock()
	f.loading = false
	if loadErr != nil {
		f.lastErr = loadErr
		f.mu.Unlock()
		f.logger.Warn("feed initial load failed",
			zap.String("conference_id", conferenceID),
			zap.Error(loadErr))
		return nil
	}
	f.conferenceID = conferenceID
	f.activities = activities
	f.checkIns = checkIns
	f.lastErr = nil
	f.generation++
	generation := f.generation
	f.lastSeq = make(map[string]int64)

	subCtx, cancel := context.WithCancel(context.Background())
	stream, cleanup := f.dispatcher.Subscribe(subCtx, conferenceID)
	f.cancel = func() {
		cancel()
		cleanup()
	}
	f.mu.Unlock()

	go f.consume(subCtx, stream, generation)
	return nil
}

// Stop releases the active subscription. Safe to call when none exists.
func (f *Feed) Stop() {
	f.mu.Lock()
	cancel := f.cancel
	f.cancel = nil
	f.generation++
	f.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// LastError returns the most recent load failure, if any.
func (f *Feed) LastError() error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.lastErr
}

// Loading reports whether an initial load is in flight.
func (f *Feed) Loading() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.loading
}

// Activities returns a snapshot of the held activity list, newest first.
func (f *Feed) Activities() []Entry {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]Entry, len(f.activities))
	copy(out, f.activities)
	return out
}

// CheckIns returns a snapshot of the held check-in list, oldest first.
func (f *Feed) CheckIns() []DailyCheckIn {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]DailyCheckIn, len(f.checkIns))
	copy(out, f.checkIns)
	return out
}

// ActivitiesByType filters the held activities by type. No I/O.
func (f *Feed) ActivitiesByType(activityType Type) []Entry {
	f.mu.RLock()
	defer f.mu.RUnlock()
	var out []Entry
	for _, entry := range f.activities {
		if entry.ActivityType == activityType {
			out = append(out, entry)
		}
	}
	return out
}

// TodayCheckIns filters the held check-ins to the current calendar date. No I/O.
func (f *Feed) TodayCheckIns() []DailyCheckIn {
	today := DateOf(f.clock())
	f.mu.RLock()
	defer f.mu.RUnlock()
	var out []DailyCheckIn
	for _, checkIn := range f.checkIns {
		if checkIn.CheckInDate == today {
			out = append(out, checkIn)
		}
	}
	return out
}

func (f *Feed) consume(ctx context.Context, stream <-chan realtime.Message, generation int64) {
	for {
		select {
		case <-ctx.Done():
			return
		case message, ok := <-stream:
			if !ok {
				return
			}
			f.handle(ctx, message, generation)
		}
	}
}

func (f *Feed) handle(ctx context.Context, message realtime.Message, generation int64) {
	switch message.Table {
	case realtime.TableActivities:
		entry, err := f.service.GetActivity(ctx, message.RowID)
		if err != nil {
			f.logger.Warn("activity re-fetch failed",
				zap.String("row_id", message.RowID),
				zap.Error(err))
			return
		}
		f.applyActivity(entry, message.Seq, generation)
	case realtime.TableCheckIns:
		checkIn, err := f.service.GetCheckIn(ctx, message.RowID)
		if err != nil {
			f.logger.Warn("check-in re-fetch failed",
				zap.String("row_id", message.RowID),
				zap.Error(err))
			return
		}
		f.applyCheckIn(checkIn, message.Seq, generation)
	}
}

// applyActivity prepends a re-fetched activity, keeping newest-first order
// and truncating to the feed limit. Stale completions are discarded.
func (f *Feed) applyActivity(entry Entry, seq, generation int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.acceptLocked(realtime.TableActivities, seq, generation) {
		return
	}
	for _, held := range f.activities {
		if held.ID == entry.ID {
			return
		}
	}

	inserted := false
	merged := make([]Entry, 0, len(f.activities)+1)
	for _, held := range f.activities {
		if !inserted && entry.CreatedAt.After(held.CreatedAt) {
			merged = append(merged, entry)
			inserted = true
		}
		merged = append(merged, held)
	}
	if !inserted {
		merged = append(merged, entry)
	}
	if len(merged) > f.limit {
		merged = merged[:f.limit]
	}
	f.activities = merged
	observability.RecordFeedMerge(realtime.TableActivities)
}

// applyCheckIn appends a re-fetched check-in only when its date equals the
// current calendar date at arrival time.
func (f *Feed) applyCheckIn(checkIn DailyCheckIn, seq, generation int64) {
	today := DateOf(f.clock())

	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.acceptLocked(realtime.TableCheckIns, seq, generation) {
		return
	}
	if checkIn.CheckInDate != today {
		return
	}
	for _, held := range f.checkIns {
		if held.ID == checkIn.ID {
			return
		}
	}
	f.checkIns = append(f.checkIns, checkIn)
	observability.RecordFeedMerge(realtime.TableCheckIns)
}

// acceptLocked enforces the stale guard: a completion is dropped when the
// subscription generation changed underneath it or when a newer event for
// the same table has already been applied.
func (f *Feed) acceptLocked(table string, seq, generation int64) bool {
	if generation != f.generation {
		observability.RecordFeedDiscard(table)
		return false
	}
	if seq <= f.lastSeq[table] {
		observability.RecordFeedDiscard(table)
		return false
	}
	f.lastSeq[table] = seq
	return true
}
