package gateway

import "termsheet/internal/port"

// StitchRoles flattens a request for providers without role separation:
// the system block first, then the user block.
func StitchRoles(msgs port.Messages) string {
	return "SYSTEM: " + msgs.System + "\n\n" + "USER: " + msgs.User + "\n\n"
}
