package types

// Door is a physical door behind the opener device.
type Door struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Relay uint8  `json:"relay"`
	// Token is the secret the badge reader presents with every scan.
	// Empty means the door does not carry one.
	Token string `json:"-"`
}

// ScanRequest is one badge read reported by a reader.
type ScanRequest struct {
	DoorID   string
	RawBadge string
	Token    string
}

type ScanOutcome string

const (
	OutcomeDirectOpen           ScanOutcome = "direct_open"
	OutcomeAwaitingConfirmation ScanOutcome = "awaiting_confirmation"
)

type ScanResponse struct {
	OK      bool        `json:"ok"`
	Outcome ScanOutcome `json:"outcome,omitempty"`
	// Opened is set for direct opens only.
	Opened *bool `json:"opened,omitempty"`
}

// ActionRequest is a button press on a confirmation message.
type ActionRequest struct {
	UserID     string
	CallbackID string
	Actions    []string
}

const (
	ActionOpen   = "open"
	ActionReport = "report"
)

type ActionOutcome string

const (
	OutcomeOpened     ActionOutcome = "opened"
	OutcomeOpenFailed ActionOutcome = "open_failed"
	OutcomeExpired    ActionOutcome = "expired"
	OutcomeReported   ActionOutcome = "reported"
)

type ActionResponse struct {
	Outcome ActionOutcome `json:"-"`
	Text    string        `json:"text"`
}

// MessageHandle identifies a chat message so it can be edited later.
type MessageHandle struct {
	Channel   string
	Timestamp string
}

func (h MessageHandle) IsZero() bool { return h.Channel == "" && h.Timestamp == "" }
