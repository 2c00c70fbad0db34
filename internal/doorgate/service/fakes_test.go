package service_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/BrandonDHaskell/doorgate/internal/doorgate/types"
)

func silentLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type sentPrompt struct {
	UserID     string
	DoorID     string
	CallbackID string
	Handle     types.MessageHandle
}

type fakeNotifier struct {
	mu       sync.Mutex
	prompts  []sentPrompt
	expired  []types.MessageHandle
	messages []string
	reports  []string
	calls    []string
	failSend error
	seq      int
}

func (n *fakeNotifier) RequestConfirmation(_ context.Context, userID string, door types.Door, callbackID string) (types.MessageHandle, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, "send")
	if n.failSend != nil {
		return types.MessageHandle{}, n.failSend
	}
	n.seq++
	h := types.MessageHandle{Channel: "D" + userID, Timestamp: fmt.Sprintf("%d.000100", n.seq)}
	n.prompts = append(n.prompts, sentPrompt{UserID: userID, DoorID: door.ID, CallbackID: callbackID, Handle: h})
	return h, nil
}

func (n *fakeNotifier) MarkExpired(_ context.Context, handle types.MessageHandle, _ types.Door, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, "expire")
	n.expired = append(n.expired, handle)
	return nil
}

func (n *fakeNotifier) NotifyUser(_ context.Context, userID, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, userID+": "+text)
	return nil
}

func (n *fakeNotifier) Report(_ context.Context, userID string, door types.Door, _ time.Time) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reports = append(n.reports, userID+"@"+door.ID)
	return nil
}

func (n *fakeNotifier) lastPrompt() sentPrompt {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.prompts) == 0 {
		return sentPrompt{}
	}
	return n.prompts[len(n.prompts)-1]
}

func (n *fakeNotifier) counts() (prompts, expired, messages, reports int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.prompts), len(n.expired), len(n.messages), len(n.reports)
}

type fakeOpener struct {
	mu     sync.Mutex
	relays []uint8
	err    error
}

func (o *fakeOpener) Open(_ context.Context, relay uint8) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.relays = append(o.relays, relay)
	return o.err
}

func (o *fakeOpener) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.relays)
}
