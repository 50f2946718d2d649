// internal/config/validate.go
package config

import (
	"fmt"
	"math"
	"net/url"

	"github.com/hexfellow/liftlink/internal/loop"
)

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	l := cfg.Lift

	// ------------------------------------------------------------
	// ENDPOINT
	// ------------------------------------------------------------

	if l.Endpoint == "" {
		return fmt.Errorf("lift: endpoint required")
	}
	u, err := url.Parse(l.Endpoint)
	if err != nil {
		return fmt.Errorf("lift: endpoint %q: %w", l.Endpoint, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("lift: endpoint %q: scheme must be ws or wss", l.Endpoint)
	}
	if u.Host == "" {
		return fmt.Errorf("lift: endpoint %q: host required", l.Endpoint)
	}

	// ------------------------------------------------------------
	// CONTROL FREQUENCY
	// ------------------------------------------------------------

	if l.ControlHz <= 0 {
		return fmt.Errorf("lift: control_hz must be > 0")
	}
	if l.ControlHz > loop.MaxControlHz {
		return fmt.Errorf("lift: control_hz %d exceeds limit %d", l.ControlHz, loop.MaxControlHz)
	}

	// ------------------------------------------------------------
	// TIMEOUTS / RECONNECT
	// ------------------------------------------------------------

	if l.Timeouts.DialMs < 0 || l.Timeouts.WriteMs < 0 || l.Timeouts.StaleMs < 0 {
		return fmt.Errorf("lift: timeouts must be >= 0")
	}
	if l.Reconnect.MaxAttempts < 0 {
		return fmt.Errorf("lift: reconnect max_attempts must be >= 0")
	}
	if l.Reconnect.BaseDelayMs < 0 {
		return fmt.Errorf("lift: reconnect base_delay_ms must be >= 0")
	}

	// ------------------------------------------------------------
	// TRAVEL
	// ------------------------------------------------------------

	if math.IsNaN(l.Travel.MinPosM) || math.IsInf(l.Travel.MinPosM, 0) ||
		math.IsNaN(l.Travel.MaxPosM) || math.IsInf(l.Travel.MaxPosM, 0) {
		return fmt.Errorf("lift: travel limits must be finite")
	}
	if l.Travel.MinPosM > l.Travel.MaxPosM {
		return fmt.Errorf("lift: travel min_pos_m %v exceeds max_pos_m %v",
			l.Travel.MinPosM, l.Travel.MaxPosM)
	}
	if l.Travel.PulsePerMeter < 0 {
		return fmt.Errorf("lift: pulse_per_meter must be >= 0")
	}

	return nil
}
