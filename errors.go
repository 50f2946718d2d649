// errors.go
package liftlink

import (
	"fmt"
	"math"

	"github.com/hexfellow/liftlink/internal/transport"
)

// Transport sentinels re-exported so callers can errors.Is against
// them; the internal packages are not importable.
var (
	// ErrNotConnected is returned when no session is established.
	ErrNotConnected = transport.ErrNotConnected

	// ErrRetriesExceeded marks the fatal error delivered on Fatal()
	// after the reconnect budget is spent.
	ErrRetriesExceeded = transport.ErrRetriesExceeded
)

// ValidationError rejects a caller-supplied command value before it
// reaches the pending-command slot.
type ValidationError struct {
	Field  string
	Value  float64
	Min    float64
	Max    float64
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("liftlink: %s %v rejected: %s", e.Field, e.Value, e.Reason)
	}
	return fmt.Sprintf("liftlink: %s %v out of range [%v, %v]", e.Field, e.Value, e.Min, e.Max)
}

func validFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
