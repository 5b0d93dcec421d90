package nats

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/maritime-docflow/internal/core/domain"
)

func TestClassifyPublishError(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		retryable bool
		record    bool
	}{
		{name: "cancelled", err: context.Canceled},
		{name: "deadline", err: fmt.Errorf("publish: %w", context.DeadlineExceeded)},
		{name: "closed", err: fmt.Errorf("publish: %w", nats.ErrConnectionClosed), retryable: true, record: true},
		{name: "reconnecting", err: nats.ErrConnectionReconnecting, retryable: true, record: true},
		{name: "bad subject", err: nats.ErrBadSubject, record: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := classifyPublishError(tc.err)
			if got.Retryable != tc.retryable || got.RecordFailure != tc.record {
				t.Fatalf("classifyPublishError(%v) = %+v", tc.err, got)
			}
		})
	}
}

func TestPublishFailure(t *testing.T) {
	if err := publishFailure("job-1", nil); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	err := publishFailure("job-1", nats.ErrTimeout)
	if !domain.IsKind(err, domain.ErrTemporary) || !errors.Is(err, nats.ErrTimeout) {
		t.Fatalf("expected temporary timeout, got %v", err)
	}
	permanent := errors.New("nats publish: bad payload")
	if err := publishFailure("job-1", permanent); err != permanent {
		t.Fatalf("expected permanent error unchanged, got %v", err)
	}
}

func TestDispatchSkipsEmptyIDs(t *testing.T) {
	var seen []string
	handler := func(_ context.Context, id string) error {
		seen = append(seen, id)
		return errors.New("render failed")
	}
	dispatch(context.Background(), "", handler)
	dispatch(context.Background(), "job-1", handler)
	if len(seen) != 1 || seen[0] != "job-1" {
		t.Fatalf("unexpected dispatched ids %v", seen)
	}
}

func TestConnectionOptionDefaults(t *testing.T) {
	resolve := func(o Options) nats.Options {
		opts := nats.GetDefaultOptions()
		for _, apply := range o.natsOptions() {
			if err := apply(&opts); err != nil {
				t.Fatalf("apply option: %v", err)
			}
		}
		return opts
	}

	got := resolve(Options{})
	if got.Name != "maritime-docflow" || got.MaxReconnect != 60 || got.Timeout != 2*time.Second || !got.RetryOnFailedConnect {
		t.Fatalf("unexpected defaults: name=%s reconnects=%d timeout=%s retry=%v",
			got.Name, got.MaxReconnect, got.Timeout, got.RetryOnFailedConnect)
	}
	if got.AsyncErrorCB == nil {
		t.Fatalf("expected async error handler")
	}

	got = resolve(Options{MaxReconnects: 5, ReconnectWait: time.Second, FailFast: true})
	if got.MaxReconnect != 5 || got.ReconnectWait != time.Second || got.RetryOnFailedConnect {
		t.Fatalf("explicit options ignored: %+v", got)
	}
}
