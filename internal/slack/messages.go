package slack

import (
	"fmt"
	"time"

	"github.com/BrandonDHaskell/doorgate/internal/doorgate/service"
	"github.com/BrandonDHaskell/doorgate/internal/doorgate/types"
)

type message struct {
	Channel     string       `json:"channel"`
	TS          string       `json:"ts,omitempty"`
	AsUser      bool         `json:"as_user,omitempty"`
	Text        string       `json:"text,omitempty"`
	Attachments []attachment `json:"attachments,omitempty"`
}

type attachment struct {
	Text       string   `json:"text"`
	CallbackID string   `json:"callback_id"`
	Color      string   `json:"color,omitempty"`
	Actions    []action `json:"actions,omitempty"`
	MrkdwnIn   []string `json:"mrkdwn_in,omitempty"`
}

type action struct {
	Name  string `json:"name"`
	Text  string `json:"text"`
	Type  string `json:"type"`
	Value string `json:"value"`
	Style string `json:"style,omitempty"`
}

var (
	openButton = action{
		Name:  "accept",
		Text:  "Open door",
		Type:  "button",
		Value: types.ActionOpen,
		Style: "primary",
	}
	reportButton = action{
		Name:  "report",
		Text:  "That wasn't me!",
		Type:  "button",
		Value: types.ActionReport,
		Style: "danger",
	}
)

func confirmationAttachment(userID string, door types.Door, callbackID string) attachment {
	return attachment{
		Text:       fmt.Sprintf("<@%s> your badge was read at door *%s*", userID, door.Name),
		CallbackID: callbackID,
		Actions:    []action{openButton, reportButton},
		MrkdwnIn:   []string{"text"},
	}
}

// expiredAttachment keeps the callback id so the report button still works.
func expiredAttachment(door types.Door, callbackID string) attachment {
	return attachment{
		Text:       fmt.Sprintf("This request to open *%s* has expired. Scan your badge again to open the door.", door.Name),
		CallbackID: callbackID,
		Color:      "#999999",
		Actions:    []action{reportButton},
		MrkdwnIn:   []string{"text"},
	}
}

func reportText(userID string, door types.Door, attemptedAt time.Time) string {
	return fmt.Sprintf("<@%s> reports an unauthorized attempt to open door *%s* at %s",
		userID, door.Name, attemptedAt.UTC().Format(time.RFC3339))
}

func degradedText(a service.HealthAlert) string {
	prefix := ":warning: Door opener is not responding"
	if a.Reminder {
		prefix = ":warning: Door opener is still not responding"
	}
	return fmt.Sprintf("%s, last heartbeat %s ago.", prefix, a.Silence.Round(time.Second))
}

func recoveredText(a service.HealthAlert) string {
	return fmt.Sprintf(":white_check_mark: Door opener is back after %s without heartbeat.", a.Silence.Round(time.Second))
}
