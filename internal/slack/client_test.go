package slack

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/BrandonDHaskell/doorgate/internal/doorgate/service"
	"github.com/BrandonDHaskell/doorgate/internal/doorgate/types"
)

var door = types.Door{ID: "front", Name: "Front Door", Relay: 3}

type recordedCall struct {
	Method string
	Auth   string
	Body   message
}

type fakeSlack struct {
	mu    sync.Mutex
	calls []recordedCall
	reply func(method string) (int, string)
}

func (f *fakeSlack) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var m message
	_ = json.NewDecoder(r.Body).Decode(&m)
	method := strings.TrimPrefix(r.URL.Path, "/api/")

	f.mu.Lock()
	f.calls = append(f.calls, recordedCall{Method: method, Auth: r.Header.Get("Authorization"), Body: m})
	f.mu.Unlock()

	status, body := http.StatusOK, `{"ok":true,"channel":"D024BE91L","ts":"1503435956.000247"}`
	if f.reply != nil {
		status, body = f.reply(method)
	}
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func (f *fakeSlack) last() recordedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

func newTestClient(t *testing.T, reportChannel string) (*Client, *fakeSlack) {
	t.Helper()
	fake := &fakeSlack{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	c := NewClient(Config{
		Token:         "xoxb-test",
		ReportChannel: reportChannel,
		APIBaseURL:    srv.URL + "/api/",
		Timeout:       2 * time.Second,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return c, fake
}

func TestRequestConfirmation(t *testing.T) {
	c, fake := newTestClient(t, "C1")

	h, err := c.RequestConfirmation(context.Background(), "U1", door, "v1:front:U1:1:abc")
	if err != nil {
		t.Fatalf("RequestConfirmation: %v", err)
	}
	if h.Channel != "D024BE91L" || h.Timestamp != "1503435956.000247" {
		t.Errorf("handle = %+v", h)
	}

	call := fake.last()
	if call.Method != "chat.postMessage" || call.Auth != "Bearer xoxb-test" {
		t.Fatalf("call = %s auth %q", call.Method, call.Auth)
	}
	if call.Body.Channel != "U1" || len(call.Body.Attachments) != 1 {
		t.Fatalf("body = %+v", call.Body)
	}
	att := call.Body.Attachments[0]
	if att.CallbackID != "v1:front:U1:1:abc" || !strings.Contains(att.Text, "*Front Door*") {
		t.Errorf("attachment = %+v", att)
	}
	if len(att.Actions) != 2 || att.Actions[0].Value != "open" || att.Actions[0].Style != "primary" ||
		att.Actions[1].Value != "report" || att.Actions[1].Style != "danger" {
		t.Errorf("actions = %+v", att.Actions)
	}
}

func TestMarkExpired_KeepsOnlyReport(t *testing.T) {
	c, fake := newTestClient(t, "C1")

	err := c.MarkExpired(context.Background(), types.MessageHandle{Channel: "D1", Timestamp: "1.2"}, door, "cb")
	if err != nil {
		t.Fatalf("MarkExpired: %v", err)
	}

	call := fake.last()
	if call.Method != "chat.update" || call.Body.Channel != "D1" || call.Body.TS != "1.2" {
		t.Fatalf("call = %+v", call)
	}
	acts := call.Body.Attachments[0].Actions
	if len(acts) != 1 || acts[0].Value != "report" {
		t.Errorf("actions = %+v, want only report", acts)
	}
	if call.Body.Attachments[0].CallbackID != "cb" {
		t.Error("expired attachment lost its callback id")
	}
}

func TestReport(t *testing.T) {
	c, fake := newTestClient(t, "C-REPORTS")

	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	if err := c.Report(context.Background(), "U1", door, at); err != nil {
		t.Fatalf("Report: %v", err)
	}
	call := fake.last()
	if call.Body.Channel != "C-REPORTS" {
		t.Errorf("channel = %q", call.Body.Channel)
	}
	if !strings.Contains(call.Body.Text, "<@U1>") || !strings.Contains(call.Body.Text, "Front Door") {
		t.Errorf("text = %q", call.Body.Text)
	}
}

func TestReport_NoChannelIsDropped(t *testing.T) {
	c, fake := newTestClient(t, "")
	if err := c.Report(context.Background(), "U1", door, time.Now()); err != nil {
		t.Fatalf("Report: %v", err)
	}
	if len(fake.calls) != 0 {
		t.Errorf("calls = %d, want 0", len(fake.calls))
	}
}

func TestCall_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"api not ok", http.StatusOK, `{"ok":false,"error":"channel_not_found"}`},
		{"http status", http.StatusInternalServerError, "boom"},
		{"bad json", http.StatusOK, "not json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, fake := newTestClient(t, "C1")
			fake.reply = func(string) (int, string) { return tt.status, tt.body }

			err := c.NotifyUser(context.Background(), "U1", "hi")
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.name != "bad json" && !errors.Is(err, ErrAPI) {
				t.Errorf("err = %v, want ErrAPI", err)
			}
		})
	}
}

func TestHealthAlerts(t *testing.T) {
	c, fake := newTestClient(t, "C-OPS")
	ctx := context.Background()

	c.OpenerDegraded(ctx, service.HealthAlert{Silence: 3 * time.Minute})
	if !strings.Contains(fake.last().Body.Text, "not responding") {
		t.Errorf("degraded text = %q", fake.last().Body.Text)
	}

	c.OpenerDegraded(ctx, service.HealthAlert{Silence: 5 * time.Hour, Reminder: true})
	if !strings.Contains(fake.last().Body.Text, "still not responding") {
		t.Errorf("reminder text = %q", fake.last().Body.Text)
	}

	c.OpenerRecovered(ctx, service.HealthAlert{Silence: 5 * time.Hour})
	if !strings.Contains(fake.last().Body.Text, "back after 5h0m0s") {
		t.Errorf("recovered text = %q", fake.last().Body.Text)
	}
}
