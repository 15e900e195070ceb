// Package fingerprint derives the heuristic device identifier that
// buckets per-device abuse counters. The identifier is deterministic
// for a given set of client signals but carries no uniqueness
// guarantee across devices; collisions are tolerated.
package fingerprint

import (
	"hash/fnv"
	"strconv"
	"strings"
)

// Provider yields the device identifier for the current caller. The
// gate and ledger depend only on this interface, so tests and
// non-browser hosts can inject a stable id.
type Provider interface {
	DeviceID() string
}

// Static is a fixed-id Provider for tests and trusted clients.
type Static struct {
	ID string
}

func (s Static) DeviceID() string { return s.ID }

// Signals are the ambient client properties submitted with an upload.
// CanvasDigest is a client-computed digest of a rendered canvas
// snapshot; it may be empty when canvas rendering is unavailable, in
// which case the identifier degrades to the remaining signals.
type Signals struct {
	UserAgent      string `json:"user_agent"`
	Language       string `json:"language"`
	ScreenWidth    int    `json:"screen_width"`
	ScreenHeight   int    `json:"screen_height"`
	TimezoneOffset int    `json:"timezone_offset"`
	CanvasDigest   string `json:"canvas_digest,omitempty"`
}

// DeviceID derives the identifier from the signals. Two calls with the
// same signals return the same id.
func (s Signals) DeviceID() string {
	var b strings.Builder
	b.WriteString(s.UserAgent)
	b.WriteByte('|')
	b.WriteString(s.Language)
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(s.ScreenWidth))
	b.WriteByte('x')
	b.WriteString(strconv.Itoa(s.ScreenHeight))
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(s.TimezoneOffset))
	if s.CanvasDigest != "" {
		b.WriteByte('|')
		b.WriteString(s.CanvasDigest)
	}

	h := fnv.New64a()
	h.Write([]byte(b.String()))
	return "dev_" + strconv.FormatUint(h.Sum64(), 36)
}
