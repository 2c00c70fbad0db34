package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BrandonDHaskell/doorgate/internal/clock"
	"github.com/BrandonDHaskell/doorgate/internal/doorgate/callback"
	"github.com/BrandonDHaskell/doorgate/internal/doorgate/store"
	"github.com/BrandonDHaskell/doorgate/internal/doorgate/types"
)

// Policy holds the timing and token rules of the decision engine.
type Policy struct {
	ReauthWindow       time.Duration
	ConfirmationWindow time.Duration
	// RequireDeviceToken rejects scans for doors without a configured token.
	RequireDeviceToken bool
}

// EngineDeps wires an AuthDecisionEngine. Events, Metrics, Clock and Logger
// are optional.
type EngineDeps struct {
	Doors    store.DoorStore
	ACL      *AccessControlLookup
	Throttle *AttemptThrottle
	Recent   *RecentAuthentications
	Tracker  *ConfirmationTracker
	Codec    *callback.Codec
	Opener   DoorOpener
	Notifier Notifier
	Events   EventSink
	Metrics  Metrics
	Clock    clock.Clock
	Logger   *slog.Logger
	Policy   Policy
}

// AuthDecisionEngine decides what happens to badge scans and to button
// presses on confirmation prompts.
type AuthDecisionEngine struct {
	doors    store.DoorStore
	acl      *AccessControlLookup
	throttle *AttemptThrottle
	recent   *RecentAuthentications
	tracker  *ConfirmationTracker
	codec    *callback.Codec
	opener   DoorOpener
	notifier Notifier
	events   EventSink
	metrics  Metrics
	clock    clock.Clock
	logger   *slog.Logger
	policy   Policy
}

func NewAuthDecisionEngine(d EngineDeps) *AuthDecisionEngine {
	e := &AuthDecisionEngine{
		doors:    d.Doors,
		acl:      d.ACL,
		throttle: d.Throttle,
		recent:   d.Recent,
		tracker:  d.Tracker,
		codec:    d.Codec,
		opener:   d.Opener,
		notifier: d.Notifier,
		events:   d.Events,
		metrics:  d.Metrics,
		clock:    d.Clock,
		logger:   d.Logger,
		policy:   d.Policy,
	}
	if e.events == nil {
		e.events = nopEvents{}
	}
	if e.metrics == nil {
		e.metrics = nopMetrics{}
	}
	if e.clock == nil {
		e.clock = clock.Real()
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.policy.ReauthWindow <= 0 {
		e.policy.ReauthWindow = DefaultReauthWindow
	}
	if e.policy.ConfirmationWindow <= 0 {
		e.policy.ConfirmationWindow = DefaultConfirmationWindow
	}
	if e.recent == nil {
		e.recent = NewRecentAuthentications()
	}
	if e.throttle == nil {
		e.throttle = NewAttemptThrottle(DefaultThrottleCooldown)
	}
	return e
}

// HandleScan processes one badge read. The returned error is one of
// ErrValidation, ErrUnauthorized, ErrThrottled (all checked with errors.Is) or
// an internal failure.
func (e *AuthDecisionEngine) HandleScan(ctx context.Context, req types.ScanRequest) (types.ScanResponse, error) {
	now := e.clock.Now()

	doorID := strings.TrimSpace(req.DoorID)
	if doorID == "" || req.RawBadge == "" {
		return types.ScanResponse{}, ErrMissingParameter
	}

	badge := NormalizeBadge(req.RawBadge)
	if badge == "" {
		return types.ScanResponse{}, ErrEmptyBadge
	}

	door, ok, err := e.doors.Door(ctx, doorID)
	if err != nil {
		return types.ScanResponse{}, fmt.Errorf("lookup door: %w", err)
	}
	if !ok || !e.tokenAccepted(door, req.Token) {
		e.logger.Info("scan rejected", "door_id", doorID, "reason", "door")
		e.publish(ctx, EventScan, doorID, "", "unknown_door", now)
		return types.ScanResponse{}, ErrNoDoor
	}

	release := e.throttle.Guard(badge)
	if e.throttle.Check(badge, now) == TooSoon {
		release()
		e.logger.Info("scan throttled", "door_id", door.ID)
		e.publish(ctx, EventScan, door.ID, "", "throttled", now)
		return types.ScanResponse{}, ErrThrottled
	}

	owner, ok, err := e.acl.Lookup(ctx, badge)
	if err != nil {
		release()
		return types.ScanResponse{}, err
	}
	if !ok {
		release()
		e.logger.Info("scan rejected", "door_id", door.ID, "reason", "badge")
		e.publish(ctx, EventScan, door.ID, "", "unknown_badge", now)
		return types.ScanResponse{}, ErrNoUser
	}
	e.throttle.Record(badge, now)
	release()

	if e.recent.Within(owner, now, e.policy.ReauthWindow) {
		return e.directOpen(ctx, door, owner), nil
	}

	token, err := e.codec.Craft(door.ID, owner, now)
	if err != nil {
		return types.ScanResponse{}, fmt.Errorf("craft callback: %w", err)
	}
	if err := e.tracker.Create(ctx, owner, door, token); err != nil {
		return types.ScanResponse{}, fmt.Errorf("request confirmation: %w", err)
	}

	e.logger.Info("confirmation requested", "door_id", door.ID, "user_id", owner)
	e.publish(ctx, EventScan, door.ID, owner, string(types.OutcomeAwaitingConfirmation), now)
	return types.ScanResponse{OK: true, Outcome: types.OutcomeAwaitingConfirmation}, nil
}

func (e *AuthDecisionEngine) directOpen(ctx context.Context, door types.Door, owner string) types.ScanResponse {
	opened := e.openDoor(ctx, door)
	if opened {
		e.recent.Touch(owner, e.clock.Now())
	}

	if err := e.notifier.NotifyUser(ctx, owner, directOpenText(door.Name, opened)); err != nil {
		e.logger.Warn("notify user failed", "user_id", owner, "error", err)
	}

	outcome := string(types.OutcomeDirectOpen)
	if !opened {
		outcome = string(types.OutcomeOpenFailed)
	}
	e.publish(ctx, EventScan, door.ID, owner, outcome, e.clock.Now())
	return types.ScanResponse{OK: true, Outcome: types.OutcomeDirectOpen, Opened: &opened}
}

// HandleAction processes a button press. Rejections carry ErrActionCount,
// ErrSignature or ErrUnknownAction and have no side effects.
func (e *AuthDecisionEngine) HandleAction(ctx context.Context, req types.ActionRequest) (types.ActionResponse, error) {
	if len(req.Actions) != 1 {
		return types.ActionResponse{}, ErrActionCount
	}

	claims, err := e.codec.Verify(req.CallbackID)
	if err != nil {
		return types.ActionResponse{}, fmt.Errorf("%w: %v", ErrSignature, err)
	}
	if claims.UserID != req.UserID {
		return types.ActionResponse{}, fmt.Errorf("%w: user mismatch", ErrSignature)
	}

	door, ok, err := e.doors.Door(ctx, claims.DoorID)
	if err != nil {
		return types.ActionResponse{}, fmt.Errorf("lookup door: %w", err)
	}
	if !ok {
		return types.ActionResponse{}, ErrActionDoor
	}

	switch req.Actions[0] {
	case types.ActionOpen:
		return e.confirmOpen(ctx, door, claims, req.CallbackID), nil
	case types.ActionReport:
		return e.report(ctx, door, claims, req.CallbackID)
	default:
		return types.ActionResponse{}, ErrUnknownAction
	}
}

func (e *AuthDecisionEngine) confirmOpen(ctx context.Context, door types.Door, claims callback.Claims, callbackID string) types.ActionResponse {
	now := e.clock.Now()

	if now.Sub(claims.IssuedAt) > e.policy.ConfirmationWindow {
		if err := e.tracker.Expire(ctx, claims.UserID, callbackID); err != nil {
			e.logger.Warn("expire stale confirmation failed", "user_id", claims.UserID, "error", err)
		}
		e.publish(ctx, EventAction, door.ID, claims.UserID, string(types.OutcomeExpired), now)
		return types.ActionResponse{Outcome: types.OutcomeExpired, Text: expiredText(door.Name)}
	}

	// Only the live prompt may open; replaced or already used tokens are spent.
	if !e.tracker.Take(claims.UserID, callbackID) {
		e.logger.Info("open ignored for inactive confirmation", "door_id", door.ID, "user_id", claims.UserID)
		e.publish(ctx, EventAction, door.ID, claims.UserID, string(types.OutcomeExpired), now)
		return types.ActionResponse{Outcome: types.OutcomeExpired, Text: expiredText(door.Name)}
	}

	opened := e.openDoor(ctx, door)
	if !opened {
		e.publish(ctx, EventAction, door.ID, claims.UserID, string(types.OutcomeOpenFailed), now)
		return types.ActionResponse{Outcome: types.OutcomeOpenFailed, Text: openFailedText(door.Name)}
	}

	e.recent.Touch(claims.UserID, e.clock.Now())
	e.logger.Info("door opened after confirmation", "door_id", door.ID, "user_id", claims.UserID)
	e.publish(ctx, EventAction, door.ID, claims.UserID, string(types.OutcomeOpened), now)
	return types.ActionResponse{Outcome: types.OutcomeOpened, Text: openedText(door.Name)}
}

func (e *AuthDecisionEngine) report(ctx context.Context, door types.Door, claims callback.Claims, callbackID string) (types.ActionResponse, error) {
	if err := e.notifier.Report(ctx, claims.UserID, door, claims.IssuedAt); err != nil {
		return types.ActionResponse{}, fmt.Errorf("report attempt: %w", err)
	}
	e.tracker.Clear(claims.UserID, callbackID)

	e.logger.Warn("attempt reported", "door_id", door.ID, "user_id", claims.UserID)
	e.publish(ctx, EventAction, door.ID, claims.UserID, string(types.OutcomeReported), e.clock.Now())
	return types.ActionResponse{Outcome: types.OutcomeReported, Text: reportedText(door.Name)}, nil
}

// openDoor runs one handshake. Failures are logged and reported as false.
func (e *AuthDecisionEngine) openDoor(ctx context.Context, door types.Door) bool {
	start := e.clock.Now()
	err := e.opener.Open(ctx, door.Relay)
	e.metrics.ObserveHandshake(door.ID, err == nil, e.clock.Now().Sub(start))

	if err != nil {
		e.logger.Error("door open failed", "door_id", door.ID, "relay", door.Relay, "error", err)
		return false
	}
	return true
}

func (e *AuthDecisionEngine) tokenAccepted(door types.Door, presented string) bool {
	if door.Token == "" {
		return !e.policy.RequireDeviceToken
	}
	return subtle.ConstantTimeCompare([]byte(door.Token), []byte(presented)) == 1
}

func (e *AuthDecisionEngine) publish(ctx context.Context, kind, doorID, userID, outcome string, at time.Time) {
	e.events.Publish(ctx, Event{Kind: kind, DoorID: doorID, UserID: userID, Outcome: outcome, At: at.UTC()})
}

// IsRejection reports whether err is a client-side rejection rather than an
// internal failure.
func IsRejection(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrThrottled) ||
		errors.Is(err, ErrActionCount) ||
		errors.Is(err, ErrSignature) ||
		errors.Is(err, ErrUnknownAction)
}
