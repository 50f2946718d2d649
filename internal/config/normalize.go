// internal/config/normalize.go
package config

// Normalize applies post-validation normalization.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	l := &cfg.Lift

	// Defaults mirror the library's own fallbacks so a minimal file
	// (endpoint + control_hz) is a complete configuration.
	if l.Timeouts.DialMs == 0 {
		l.Timeouts.DialMs = 5000
	}
	if l.Timeouts.WriteMs == 0 {
		l.Timeouts.WriteMs = 1000
	}
	if l.Timeouts.StaleMs == 0 {
		l.Timeouts.StaleMs = 1000
	}
	if l.Reconnect.MaxAttempts == 0 {
		l.Reconnect.MaxAttempts = 5
	}
	if l.Reconnect.BaseDelayMs == 0 {
		l.Reconnect.BaseDelayMs = 1000
	}
}
