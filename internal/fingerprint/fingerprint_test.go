package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func browserSignals() Signals {
	return Signals{
		UserAgent:      "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36",
		Language:       "en-US",
		ScreenWidth:    2560,
		ScreenHeight:   1440,
		TimezoneOffset: -120,
		CanvasDigest:   "9f2c1a7e",
	}
}

func TestDeviceIDDeterministic(t *testing.T) {
	sig := browserSignals()
	assert.Equal(t, sig.DeviceID(), sig.DeviceID())
	assert.True(t, len(sig.DeviceID()) > 4)
}

func TestDeviceIDVariesWithSignals(t *testing.T) {
	a := browserSignals()
	b := browserSignals()
	b.UserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7)"
	assert.NotEqual(t, a.DeviceID(), b.DeviceID())

	c := browserSignals()
	c.ScreenWidth = 1920
	assert.NotEqual(t, a.DeviceID(), c.DeviceID())
}

func TestDeviceIDDegradesWithoutCanvas(t *testing.T) {
	// No canvas digest still yields a stable identifier from the
	// remaining signals.
	sig := browserSignals()
	sig.CanvasDigest = ""
	assert.Equal(t, sig.DeviceID(), sig.DeviceID())
	assert.NotEqual(t, sig.DeviceID(), browserSignals().DeviceID())
}

func TestStaticProvider(t *testing.T) {
	var p Provider = Static{ID: "dev_fixed"}
	assert.Equal(t, "dev_fixed", p.DeviceID())
}

func TestSignalsImplementProvider(t *testing.T) {
	var p Provider = browserSignals()
	assert.NotEmpty(t, p.DeviceID())
}
