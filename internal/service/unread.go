package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/harborview-properties/messaging-service/internal/metrics"
	"github.com/harborview-properties/messaging-service/internal/models"
)

// UnreadSource yields a non-negative unread count for a user, or fails.
type UnreadSource interface {
	Name() string
	CountUnread(ctx context.Context, userID string) (int64, error)
}

// UnreadAggregator combines the counts of independently-owned sources into
// one figure. A failing source contributes 0; the call itself never fails.
type UnreadAggregator struct {
	sources []UnreadSource
	log     *zap.SugaredLogger
}

func NewUnreadAggregator(log *zap.SugaredLogger, sources ...UnreadSource) *UnreadAggregator {
	return &UnreadAggregator{sources: sources, log: log}
}

// TotalUnread fans the count query out to every source concurrently and
// joins the results. Sources are order-insensitive. If the request context
// ends before all sources answer, outstanding queries are abandoned and the
// default 0 is returned.
func (a *UnreadAggregator) TotalUnread(ctx context.Context, userID string) int64 {
	type result struct {
		name  string
		count int64
		err   error
	}
	ch := make(chan result, len(a.sources))
	for _, src := range a.sources {
		go func(s UnreadSource) {
			n, err := s.CountUnread(ctx, userID)
			ch <- result{name: s.Name(), count: n, err: err}
		}(src)
	}

	var total int64
	var failed []string
	for range a.sources {
		select {
		case r := <-ch:
			if r.err != nil {
				failed = append(failed, r.name)
				metrics.UnreadSourceFailures.WithLabelValues(r.name).Inc()
				continue
			}
			total += r.count
		case <-ctx.Done():
			a.log.Warnw("unread aggregation abandoned", "user_id", userID, "err", ctx.Err())
			return 0
		}
	}

	switch {
	case len(failed) == len(a.sources) && len(failed) > 0:
		a.log.Warnw("all unread sources failed", "user_id", userID, "sources", failed)
	case len(failed) > 0:
		for _, name := range failed {
			a.log.Warnw("unread source degraded", "user_id", userID, "source", name)
		}
	}
	return total
}

// ConversationSource adapts the local message store to the UnreadSource
// contract consumed by the aggregator.
type ConversationSource struct {
	svc *MessageService
}

func NewConversationSource(svc *MessageService) *ConversationSource {
	return &ConversationSource{svc: svc}
}

func (s *ConversationSource) Name() string { return models.SourceConversations }

func (s *ConversationSource) CountUnread(ctx context.Context, userID string) (int64, error) {
	return s.svc.CountUnread(ctx, userID)
}
