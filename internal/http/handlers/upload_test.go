package handlers

import (
	"mime/multipart"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/valyala/fasthttp"
)

func TestParseTags(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		gender string
		want   []string
	}{
		{"empty", "", "", nil},
		{"plain", "ambient, chill", "", []string{"ambient", "chill"}},
		{"gender appended", "ambient", "female", []string{"ambient", "female"}},
		{"gender only", "", "male", []string{"male"}},
		{"whitespace trimmed", " a , , b ", "", []string{"a", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseTags(tt.raw, tt.gender))
		})
	}
}

func TestEstimatedWait(t *testing.T) {
	assert.Equal(t, "under 2 hours", estimatedWait(0))
	assert.Equal(t, "under 2 hours", estimatedWait(9))
	assert.Equal(t, "up to 24 hours", estimatedWait(10))
}

func TestSignalsFromFormHeaderFallback(t *testing.T) {
	var ctx fasthttp.RequestCtx
	ctx.Request.Header.SetUserAgent("test-agent/1.0")
	ctx.Request.Header.Set("Accept-Language", "de-DE")

	form := &multipart.Form{Value: map[string][]string{
		"screen_width":  {"1920"},
		"screen_height": {"1080"},
	}}

	sig := signalsFromForm(&ctx, form)
	assert.Equal(t, "test-agent/1.0", sig.UserAgent)
	assert.Equal(t, "de-DE", sig.Language)
	assert.Equal(t, 1920, sig.ScreenWidth)
	assert.Equal(t, 1080, sig.ScreenHeight)
}

func TestSignalsFromFormPrefersClientValues(t *testing.T) {
	var ctx fasthttp.RequestCtx
	ctx.Request.Header.SetUserAgent("server-seen-agent")

	form := &multipart.Form{Value: map[string][]string{
		"user_agent":    {"client-agent"},
		"language":      {"en-US"},
		"canvas_digest": {"9f2c1a7e"},
	}}

	sig := signalsFromForm(&ctx, form)
	assert.Equal(t, "client-agent", sig.UserAgent)
	assert.Equal(t, "en-US", sig.Language)
	assert.Equal(t, "9f2c1a7e", sig.CanvasDigest)
}
