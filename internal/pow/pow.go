// Package pow implements the proof-of-work stamp attached to upload
// requests. The stamp adds friction against automated bulk submission;
// it is not a security boundary on its own, so verification only
// checks plausibility.
package pow

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// ErrGenerationInFlight is returned when Generate is called while a
// previous generation on the same Generator has not finished. Callers
// should treat it as a bug or a race, not a user-facing state.
var ErrGenerationInFlight = errors.New("pow: token generation already in progress")

// ErrMalformedToken is returned by ParseToken for strings that do not
// decode to a token.
var ErrMalformedToken = errors.New("pow: malformed token")

// Payload size tiers and their required leading zero hex digits.
const (
	smallPayloadLimit  = 1 << 20 // 1 MiB
	mediumPayloadLimit = 8 << 20 // 8 MiB

	difficultySmall  = 2
	difficultyMedium = 3
	difficultyLarge  = 4
)

// maxSearchTime is the wall-clock ceiling on the hash search. When it
// is reached the token carries the nonce reached so far.
const maxSearchTime = 2 * time.Second

// yieldEvery is how many hash iterations run between checks of the
// deadline and the caller's context.
const yieldEvery = 256

// DifficultyFor maps a payload size to its required leading-zero
// digit count.
func DifficultyFor(payloadSize int64) int {
	switch {
	case payloadSize < smallPayloadLimit:
		return difficultySmall
	case payloadSize < mediumPayloadLimit:
		return difficultyMedium
	default:
		return difficultyLarge
	}
}

// Token is the computational stamp. Prefix is the leading hex digits
// of the digest found at Nonce, enough for a verifier to re-check
// plausibility without repeating the search.
type Token struct {
	Difficulty int
	Timestamp  int64 // unix milliseconds of challenge creation
	Seed       string
	Signal     string
	Nonce      uint64
	Prefix     string
}

// String encodes the token for transport as a form field. Fields are
// colon-separated; Signal must not contain a colon.
func (t *Token) String() string {
	return fmt.Sprintf("v1:%d:%d:%s:%s:%d:%s",
		t.Difficulty, t.Timestamp, t.Seed, t.Signal, t.Nonce, t.Prefix)
}

// ParseToken decodes a token produced by String.
func ParseToken(s string) (*Token, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 7 || parts[0] != "v1" {
		return nil, ErrMalformedToken
	}
	difficulty, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil, ErrMalformedToken
	}
	timestamp, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return nil, ErrMalformedToken
	}
	nonce, err := strconv.ParseUint(parts[5], 10, 64)
	if err != nil {
		return nil, ErrMalformedToken
	}
	return &Token{
		Difficulty: difficulty,
		Timestamp:  timestamp,
		Seed:       parts[3],
		Signal:     parts[4],
		Nonce:      nonce,
		Prefix:     parts[6],
	}, nil
}

// Generator produces tokens one at a time. A second Generate while one
// is running fails fast with ErrGenerationInFlight rather than queuing.
type Generator struct {
	signal   string
	inFlight atomic.Bool

	// now is swappable in tests.
	now func() time.Time
}

// NewGenerator returns a Generator stamped with the given client
// signal (typically the device identifier). The signal must not
// contain a colon.
func NewGenerator(clientSignal string) *Generator {
	return &Generator{signal: clientSignal, now: time.Now}
}

// Generate searches for a digest with the payload tier's required
// leading zero digits. The search yields to the scheduler and checks
// ctx periodically; it stops at the first of: a matching digest, the
// 2-second ceiling (returning the nonce reached), or ctx cancellation
// (returning ctx's error).
func (g *Generator) Generate(ctx context.Context, payloadSize int64) (*Token, error) {
	if !g.inFlight.CompareAndSwap(false, true) {
		return nil, ErrGenerationInFlight
	}
	defer g.inFlight.Store(false)

	seed := make([]byte, 8)
	if _, err := rand.Read(seed); err != nil {
		return nil, fmt.Errorf("pow: seed generation: %w", err)
	}

	difficulty := DifficultyFor(payloadSize)
	timestamp := g.now().UnixMilli()
	deadline := g.now().Add(maxSearchTime)
	target := strings.Repeat("0", difficulty)
	prefix := challengePrefix(timestamp, payloadSize, difficulty, g.signal, hex.EncodeToString(seed))

	var nonce uint64
	var digest string
	for {
		for i := 0; i < yieldEvery; i++ {
			digest = challengeDigest(prefix, nonce)
			if strings.HasPrefix(digest, target) {
				return g.token(difficulty, timestamp, seed, nonce, digest), nil
			}
			nonce++
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		if g.now().After(deadline) {
			// Ceiling reached: hand back the work done so far.
			return g.token(difficulty, timestamp, seed, nonce-1, digest), nil
		}
		runtime.Gosched()
	}
}

func (g *Generator) token(difficulty int, timestamp int64, seed []byte, nonce uint64, digest string) *Token {
	return &Token{
		Difficulty: difficulty,
		Timestamp:  timestamp,
		Seed:       hex.EncodeToString(seed),
		Signal:     g.signal,
		Nonce:      nonce,
		Prefix:     digest[:8],
	}
}

// Verify re-checks a token's plausibility for the given payload size:
// the difficulty must match the payload tier and the embedded prefix
// must match the digest recomputed at the embedded nonce. It does not
// require the difficulty target to have been met, since generation may
// legitimately stop at the wall-clock ceiling.
func Verify(t *Token, payloadSize int64) error {
	if t == nil {
		return ErrMalformedToken
	}
	if t.Difficulty != DifficultyFor(payloadSize) {
		return fmt.Errorf("pow: difficulty %d does not match payload tier %d", t.Difficulty, DifficultyFor(payloadSize))
	}
	prefix := challengePrefix(t.Timestamp, payloadSize, t.Difficulty, t.Signal, t.Seed)
	digest := challengeDigest(prefix, t.Nonce)
	if len(t.Prefix) != 8 || !strings.HasPrefix(digest, t.Prefix) {
		return fmt.Errorf("pow: digest prefix mismatch")
	}
	return nil
}

func challengePrefix(timestamp, payloadSize int64, difficulty int, signal, seed string) string {
	return fmt.Sprintf("%d:%d:%d:%s:%s:", timestamp, payloadSize, difficulty, signal, seed)
}

func challengeDigest(prefix string, nonce uint64) string {
	sum := sha256.Sum256([]byte(prefix + strconv.FormatUint(nonce, 10)))
	return hex.EncodeToString(sum[:])
}
