package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"

	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/example/scenegov/internal/ports/secondary"
)

type fakeNotifier struct {
	channel string
	err     error
	mu      *sync.Mutex
	seen    *[]string
}

func (f fakeNotifier) Channel() string { return f.channel }

func (f fakeNotifier) Notify(ctx context.Context, p secondary.NotificationPayload) error {
	f.mu.Lock()
	*f.seen = append(*f.seen, f.channel+":"+p.TraceID)
	f.mu.Unlock()
	return f.err
}

type fakeResolver struct {
	mu    sync.Mutex
	seen  []string
	fails map[string]error
}

func (r *fakeResolver) Resolve(channel string) (secondary.Notifier, error) {
	if channel == "bogus" {
		return nil, errors.New("unknown notify channel")
	}
	return fakeNotifier{channel: channel, err: r.fails[channel], mu: &r.mu, seen: &r.seen}, nil
}

func TestDispatcher_DeliversAndReportsResults(t *testing.T) {
	defer goleak.VerifyNone(t)

	resolver := &fakeResolver{fails: map[string]error{"webhook:x": errors.New("502")}}

	var (
		mu      sync.Mutex
		results []string
	)
	d := NewDispatcher(resolver, zap.NewNop(), DispatcherOptions{
		OnResult: func(r secondary.DeliveryResult) {
			mu.Lock()
			defer mu.Unlock()
			status := "ok"
			if r.Err != nil {
				status = "err"
			}
			results = append(results, r.Channel+":"+status)
		},
	})

	err := d.Dispatch(secondary.NotificationPayload{TraceID: "t1", Channels: []string{"log", "webhook:x", "bogus"}})
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	d.Close()

	sort.Strings(results)
	want := []string{"bogus:err", "log:ok", "webhook:x:err"}
	if len(results) != len(want) {
		t.Fatalf("results = %v, want %v", results, want)
	}
	for i := range want {
		if results[i] != want[i] {
			t.Errorf("results = %v, want %v", results, want)
		}
	}

	sort.Strings(resolver.seen)
	if len(resolver.seen) != 2 || resolver.seen[0] != "log:t1" {
		t.Errorf("notifiers saw %v", resolver.seen)
	}
}

func TestDispatcher_ClosedAndFull(t *testing.T) {
	defer goleak.VerifyNone(t)

	block := make(chan struct{})
	resolver := blockingResolver{block: block}
	d := NewDispatcher(resolver, zap.NewNop(), DispatcherOptions{QueueSize: 1})

	// The worker takes the first payload and blocks; the second fills the queue.
	if err := d.Dispatch(secondary.NotificationPayload{TraceID: "a", Channels: []string{"log"}}); err != nil {
		t.Fatalf("first Dispatch failed: %v", err)
	}
	var full bool
	for i := 0; i < 3; i++ {
		if err := d.Dispatch(secondary.NotificationPayload{TraceID: "b", Channels: []string{"log"}}); errors.Is(err, ErrQueueFull) {
			full = true
			break
		}
	}
	if !full {
		t.Error("expected ErrQueueFull while the worker is blocked")
	}

	close(block)
	d.Close()
	d.Close()

	if err := d.Dispatch(secondary.NotificationPayload{TraceID: "c"}); !errors.Is(err, ErrClosed) {
		t.Errorf("Dispatch after Close: expected ErrClosed, got %v", err)
	}
}

type blockingResolver struct {
	block chan struct{}
}

func (r blockingResolver) Resolve(channel string) (secondary.Notifier, error) {
	<-r.block
	return NewLogNotifier(zap.NewNop()), nil
}

func TestWebhookNotifier(t *testing.T) {
	var got secondary.NotificationPayload
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.Header.Get("Content-Type") != "application/json" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ok.Close()

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer failing.Close()

	payload := secondary.NotificationPayload{
		TraceID:     "trace-9",
		ActionTaken: "rollback_pinned",
		ReasonCodes: []string{"resolve_error:target_missing:1"},
	}

	n := NewWebhookNotifier(ok.URL, ok.Client())
	if err := n.Notify(context.Background(), payload); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}
	if got.TraceID != "trace-9" || len(got.ReasonCodes) != 1 {
		t.Errorf("server received %+v", got)
	}
	if n.Channel() != "webhook:"+ok.URL {
		t.Errorf("Channel = %s", n.Channel())
	}

	if err := NewWebhookNotifier(failing.URL, failing.Client()).Notify(context.Background(), payload); err == nil {
		t.Error("expected error on 500")
	}
}

func TestResolver(t *testing.T) {
	r := NewResolver(zap.NewNop(), nil)

	tests := []struct {
		channel string
		wantErr bool
	}{
		{"log", false},
		{"webhook:https://hooks.example.com/scene", false},
		{"webhook:ftp://nope", true},
		{"pager", true},
	}
	for _, tt := range tests {
		t.Run(tt.channel, func(t *testing.T) {
			n, err := r.Resolve(tt.channel)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if n.Channel() != tt.channel {
				t.Errorf("Channel = %s, want %s", n.Channel(), tt.channel)
			}
		})
	}
}
