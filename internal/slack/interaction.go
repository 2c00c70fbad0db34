package slack

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/BrandonDHaskell/doorgate/internal/doorgate/types"
)

var (
	ErrMalformedPayload  = errors.New("malformed interaction payload")
	ErrVerificationToken = errors.New("verification token mismatch")
)

// Interaction is the subset of an interactive message payload the gateway
// reads.
type Interaction struct {
	Token      string `json:"token"`
	CallbackID string `json:"callback_id"`
	User       struct {
		ID string `json:"id"`
	} `json:"user"`
	Actions []struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	} `json:"actions"`
}

// ParseInteraction decodes the JSON carried in the "payload" form field and
// checks its verification token before anything else is looked at.
func ParseInteraction(payload, verificationToken string) (types.ActionRequest, error) {
	var in Interaction
	if err := json.Unmarshal([]byte(payload), &in); err != nil {
		return types.ActionRequest{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	if verificationToken == "" ||
		subtle.ConstantTimeCompare([]byte(in.Token), []byte(verificationToken)) != 1 {
		return types.ActionRequest{}, ErrVerificationToken
	}

	req := types.ActionRequest{
		UserID:     in.User.ID,
		CallbackID: in.CallbackID,
		Actions:    make([]string, 0, len(in.Actions)),
	}
	for _, a := range in.Actions {
		req.Actions = append(req.Actions, a.Value)
	}
	return req, nil
}
