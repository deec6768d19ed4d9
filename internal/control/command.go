package control

import (
	"encoding/json"
	"strings"
)

// Command is the inbound wire format on the command topic.
type Command struct {
	Password string            `json:"password"`
	Pins     map[string]string `json:"pins"`
}

// ParseCommand decodes an inbound payload. A malformed payload is the
// caller's cue to discard the message; the protocol has no error reply.
func ParseCommand(payload []byte) (Command, error) {
	var cmd Command
	err := json.Unmarshal(payload, &cmd)
	return cmd, err
}

// WantsOn maps a requested pin value to a state. "on" and "high" mean ON,
// case-insensitively; every other value, including "low", means OFF.
func WantsOn(value string) bool {
	switch strings.ToLower(value) {
	case "on", "high":
		return true
	}
	return false
}
