package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/harborview-properties/messaging-service/internal/apperr"
)

type fakeSource struct {
	name  string
	count int64
	err   error
	fn    func(ctx context.Context) (int64, error)
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) CountUnread(ctx context.Context, userID string) (int64, error) {
	if f.fn != nil {
		return f.fn(ctx)
	}
	return f.count, f.err
}

func TestTotalUnreadSumsSources(t *testing.T) {
	agg := NewUnreadAggregator(zap.NewNop().Sugar(),
		&fakeSource{name: "conversations", count: 3},
		&fakeSource{name: "mail", count: 4},
	)
	assert.EqualValues(t, 7, agg.TotalUnread(context.Background(), "alice"))
}

func TestTotalUnreadOneSourceFails(t *testing.T) {
	agg := NewUnreadAggregator(zap.NewNop().Sugar(),
		&fakeSource{name: "mail", count: 4},
		&fakeSource{name: "conversations", err: apperr.ErrSourceUnavailable},
	)
	assert.EqualValues(t, 4, agg.TotalUnread(context.Background(), "alice"))
}

func TestTotalUnreadAllSourcesFail(t *testing.T) {
	agg := NewUnreadAggregator(zap.NewNop().Sugar(),
		&fakeSource{name: "conversations", err: errors.New("mongo down")},
		&fakeSource{name: "mail", err: apperr.ErrSourceUnavailable},
	)
	assert.EqualValues(t, 0, agg.TotalUnread(context.Background(), "alice"))
}

func TestTotalUnreadCancelledContext(t *testing.T) {
	slow := &fakeSource{name: "mail", fn: func(ctx context.Context) (int64, error) {
		<-ctx.Done()
		return 9, nil
	}}
	agg := NewUnreadAggregator(zap.NewNop().Sugar(),
		&fakeSource{name: "conversations", fn: func(ctx context.Context) (int64, error) {
			<-ctx.Done()
			return 9, nil
		}},
		slow,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.EqualValues(t, 0, agg.TotalUnread(ctx, "alice"))
}

func TestSourcesQueriedConcurrently(t *testing.T) {
	// each source only completes once the other is also in flight
	var wg sync.WaitGroup
	wg.Add(2)
	rendezvous := func(ctx context.Context) (int64, error) {
		wg.Done()
		wg.Wait()
		return 1, nil
	}
	agg := NewUnreadAggregator(zap.NewNop().Sugar(),
		&fakeSource{name: "conversations", fn: rendezvous},
		&fakeSource{name: "mail", fn: rendezvous},
	)
	assert.EqualValues(t, 2, agg.TotalUnread(context.Background(), "alice"))
}

func TestTotalUnreadSingleSource(t *testing.T) {
	agg := NewUnreadAggregator(zap.NewNop().Sugar(), &fakeSource{name: "mail", count: 2})
	assert.EqualValues(t, 2, agg.TotalUnread(context.Background(), "alice"))
}
