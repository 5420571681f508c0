// Package mail queries the internal-mail subsystem for per-user unread
// counts. Mail is fully external; failures here must only ever degrade the
// aggregate, never fail it.
package mail

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/harborview-properties/messaging-service/internal/apperr"
	"github.com/harborview-properties/messaging-service/internal/discovery"
	"github.com/harborview-properties/messaging-service/internal/models"
)

type Options struct {
	Service         string
	Timeout         time.Duration
	RetryMaxElapsed time.Duration
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

type Client struct {
	http    *http.Client
	disc    discovery.Discovery
	service string
	breaker *gobreaker.CircuitBreaker
	retry   time.Duration
	log     *zap.SugaredLogger
}

func NewClient(disc discovery.Discovery, opts Options, log *zap.SugaredLogger) *Client {
	tr := &http.Transport{
		DialContext:     (&net.Dialer{Timeout: 5 * time.Second}).DialContext,
		MaxIdleConns:    16,
		IdleConnTimeout: 90 * time.Second,
	}
	st := gobreaker.Settings{
		Name:    "mail-unread",
		Timeout: opts.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= opts.BreakerFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Infow("circuit breaker state", "name", name, "from", from.String(), "to", to.String())
		},
	}
	return &Client{
		http:    &http.Client{Transport: tr, Timeout: opts.Timeout},
		disc:    disc,
		service: opts.Service,
		breaker: gobreaker.NewCircuitBreaker(st),
		retry:   opts.RetryMaxElapsed,
		log:     log,
	}
}

func (c *Client) Name() string { return models.SourceMail }

// CountUnread asks the mail service for the user's unread figure. Any
// failure surfaces as ErrSourceUnavailable; the aggregator decides what to
// do with that.
func (c *Client) CountUnread(ctx context.Context, userID string) (int64, error) {
	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.fetch(ctx, userID)
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", apperr.ErrSourceUnavailable, err)
	}
	return out.(int64), nil
}

func (c *Client) fetch(ctx context.Context, userID string) (int64, error) {
	base, err := c.disc.Lookup(c.service)
	if err != nil {
		return 0, err
	}
	url := fmt.Sprintf("%s/v1/mailbox/%s/unread-count", base, userID)

	var count int64
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer func() {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}()
		if resp.StatusCode >= 500 {
			return fmt.Errorf("mail service returned %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("mail service returned %d", resp.StatusCode))
		}
		var body struct {
			Count int64 `json:"count"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return backoff.Permanent(err)
		}
		if body.Count < 0 {
			return backoff.Permanent(fmt.Errorf("negative unread count %d", body.Count))
		}
		count = body.Count
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = c.retry
	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return 0, err
	}
	return count, nil
}
