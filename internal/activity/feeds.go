package activity

import (
	"context"
	"sync"
	"time"

	"github.com/MarcoPoloResearchLab/compass/backend/internal/realtime"
	"go.uber.org/zap"
)

// FeedManager owns one running Feed per conference so reads are answered
// from the in-memory mirror instead of the store. Feeds start lazily on
// first access and live until Shutdown.
type FeedManager struct {
	service    *Service
	dispatcher *realtime.Dispatcher
	clock      func() time.Time
	logger     *zap.Logger
	limit      int

	mu    sync.Mutex
	feeds map[string]*Feed
}

// NewFeedManager constructs a FeedManager sharing the Feed dependencies.
func NewFeedManager(cfg FeedConfig) (*FeedManager, error) {
	if cfg.Service == nil {
		return nil, errMissingService
	}
	if cfg.Dispatcher == nil {
		return nil, errMissingDispatcher
	}
	return &FeedManager{
		service:    cfg.Service,
		dispatcher: cfg.Dispatcher,
		clock:      cfg.Clock,
		logger:     cfg.Logger,
		limit:      cfg.Limit,
		feeds:      make(map[string]*Feed),
	}, nil
}

// Feed returns the running feed for a conference, starting one on first
// use. A feed whose initial load failed is not retained, so the next
// request retries the load.
func (m *FeedManager) Feed(ctx context.Context, conferenceID string) (*Feed, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if feed, ok := m.feeds[conferenceID]; ok {
		return feed, nil
	}

	feed, err := NewFeed(FeedConfig{
		Service:    m.service,
		Dispatcher: m.dispatcher,
		Clock:      m.clock,
		Logger:     m.logger,
		Limit:      m.limit,
	})
	if err != nil {
		return nil, err
	}
	if err := feed.Start(ctx, conferenceID); err != nil {
		return nil, err
	}
	if loadErr := feed.LastError(); loadErr != nil {
		return nil, loadErr
	}
	m.feeds[conferenceID] = feed
	return feed, nil
}

// Shutdown stops every running feed and forgets them.
func (m *FeedManager) Shutdown() {
	m.mu.Lock()
	feeds := make([]*Feed, 0, len(m.feeds))
	for _, feed := range m.feeds {
		feeds = append(feeds, feed)
	}
	m.feeds = make(map[string]*Feed)
	m.mu.Unlock()
	for _, feed := range feeds {
		feed.Stop()
	}
}
