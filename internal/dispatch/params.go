package dispatch

import (
	"encoding/json"
	"math"
)

// params is a lenient view over a command's params object. A missing or
// non-object params value behaves like an empty object.
type params map[string]json.RawMessage

func parseParams(raw json.RawMessage) params {
	if len(raw) == 0 {
		return nil
	}
	var p params
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil
	}
	return p
}

// lookupString returns the string at key. ok is false when the key is
// missing or holds anything other than a JSON string.
func (p params) lookupString(key string) (string, bool) {
	raw, present := p[key]
	if !present {
		return "", false
	}
	var s *string
	if err := json.Unmarshal(raw, &s); err != nil || s == nil {
		return "", false
	}
	return *s, true
}

func (p params) stringOr(key, def string) string {
	if s, ok := p.lookupString(key); ok {
		return s
	}
	return def
}

// uint32Or returns the non-negative integer at key, or def when the value is
// missing, not an integer, negative, or too large for uint32.
func (p params) uint32Or(key string, def uint32) uint32 {
	raw, present := p[key]
	if !present {
		return def
	}
	var n *uint64
	if err := json.Unmarshal(raw, &n); err != nil || n == nil || *n > math.MaxUint32 {
		return def
	}
	return uint32(*n)
}
