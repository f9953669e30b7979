// Package recovery salvages structured JSON from raw model output.
package recovery

import (
	"encoding/json"
	"regexp"
	"strings"
)

// RawKey is the sentinel field wrapping output that could not be recovered.
const RawKey = "_raw"

// Kind says how a value was recovered.
type Kind string

const (
	KindDirect   Kind = "direct"
	KindEmbedded Kind = "embedded"
	KindRaw      Kind = "raw"
)

// embedded matches from the first brace or bracket to the last matching closer.
var embedded = regexp.MustCompile(`(?s)(\{.*\}|\[.*\])`)

// Recovered is the best-effort structured value for one model response.
type Recovered struct {
	Value json.RawMessage
	Kind  Kind
}

// Fallback reports whether the value did not come from a direct parse.
func (r Recovered) Fallback() bool {
	return r.Kind != KindDirect
}

// Recover parses raw as JSON, then tries the first embedded object or array,
// and finally wraps raw as {"_raw": raw}. It never fails.
func Recover(raw string) Recovered {
	if json.Valid([]byte(raw)) {
		return Recovered{Value: json.RawMessage(strings.TrimSpace(raw)), Kind: KindDirect}
	}
	if m := embedded.FindString(raw); m != "" && json.Valid([]byte(m)) {
		return Recovered{Value: json.RawMessage(m), Kind: KindEmbedded}
	}
	return Recovered{Value: Sentinel(raw), Kind: KindRaw}
}

// Sentinel wraps raw text as {"_raw": raw}.
func Sentinel(raw string) json.RawMessage {
	b, _ := json.Marshal(map[string]string{RawKey: raw})
	return b
}

// RawText returns the wrapped text when v is a sentinel.
func RawText(v json.RawMessage) (string, bool) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(v, &m); err != nil || len(m) != 1 {
		return "", false
	}
	inner, ok := m[RawKey]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(inner, &s); err != nil {
		return "", false
	}
	return s, true
}
