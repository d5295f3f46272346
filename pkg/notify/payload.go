// Package notify implements the agent's out-of-band notification channel:
// inbound push payloads, user-facing alerts and alert interaction routing.
package notify

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Payload defaults.
const (
	DefaultTitle   = "New Notification"
	DefaultBody    = "Something happened!"
	DefaultIcon    = "/images/icon-192.png"
	DefaultBadge   = "/images/icon-192.png"
	DefaultOpenURL = "/"
)

// DefaultVibrate is the vibration pattern of every alert.
var DefaultVibrate = []int{100, 50, 100}

// ErrMalformedPushPayload is reported when a push message is not a JSON
// payload object. The caller still gets a usable payload.
var ErrMalformedPushPayload = errors.New("malformed push payload")

// PushPayload is the wire shape of a push message.
type PushPayload struct {
	Title   string `json:"title"`
	Body    string `json:"body"`
	Icon    string `json:"icon,omitempty"`
	OpenURL string `json:"openUrl,omitempty"`
}

// ParsePayload decodes raw into a payload and applies defaults.
//
// An empty message yields the default title and body. A message that is not
// a JSON object yields the default title with the raw text as body, along
// with an error wrapping ErrMalformedPushPayload; the returned payload is
// usable either way.
func ParsePayload(raw []byte) (PushPayload, error) {
	if len(raw) == 0 {
		return withDefaults(PushPayload{Body: DefaultBody}), nil
	}

	var p PushPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return withDefaults(PushPayload{Body: string(raw)}),
			fmt.Errorf("%w: %v", ErrMalformedPushPayload, err)
	}
	return withDefaults(p), nil
}

func withDefaults(p PushPayload) PushPayload {
	if p.Title == "" {
		p.Title = DefaultTitle
	}
	if p.Icon == "" {
		p.Icon = DefaultIcon
	}
	if p.OpenURL == "" {
		p.OpenURL = DefaultOpenURL
	}
	return p
}
