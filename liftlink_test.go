// liftlink_test.go
package liftlink

import (
	"bytes"
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hexfellow/liftlink/internal/lift"
	"github.com/hexfellow/liftlink/internal/wire"
)

// liftServer simulates the device end: it records every received
// command frame and optionally streams telemetry.
type liftServer struct {
	srv *httptest.Server

	telemetry func(seq uint64) []byte // nil = silent device
	every     time.Duration

	mu     sync.Mutex
	frames [][]byte
}

func newLiftServer(t *testing.T, telemetry func(seq uint64) []byte, every time.Duration) *liftServer {
	t.Helper()

	ls := &liftServer{telemetry: telemetry, every: every}
	upgrader := websocket.Upgrader{}

	ls.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		done := make(chan struct{})
		defer close(done)

		if ls.telemetry != nil {
			go func() {
				var seq uint64
				ticker := time.NewTicker(ls.every)
				defer ticker.Stop()
				for {
					select {
					case <-done:
						return
					case <-ticker.C:
						seq++
						if err := conn.WriteMessage(websocket.BinaryMessage, ls.telemetry(seq)); err != nil {
							return
						}
					}
				}
			}()
		}

		for {
			typ, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if typ != websocket.BinaryMessage {
				continue
			}
			ls.mu.Lock()
			ls.frames = append(ls.frames, msg)
			ls.mu.Unlock()
		}
	}))
	t.Cleanup(ls.srv.Close)
	return ls
}

func (ls *liftServer) url() string {
	return "ws" + strings.TrimPrefix(ls.srv.URL, "http")
}

func (ls *liftServer) received() [][]byte {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	out := make([][]byte, len(ls.frames))
	copy(out, ls.frames)
	return out
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}

// ---- tests ----

func TestNew_Validation(t *testing.T) {
	cases := []Config{
		{URL: "", ControlHz: 100},
		{URL: "http://host:1", ControlHz: 100},
		{URL: "ws://host:1", ControlHz: 0},
		{URL: "ws://host:1", ControlHz: MaxControlHz + 1},
		{URL: "ws://host:1", ControlHz: 100, MinPos: 1, MaxPos: 0},
		{URL: "ws://host:1", ControlHz: 100, MaxPos: math.NaN()},
	}
	for i, cfg := range cases {
		if _, err := New(cfg); err == nil {
			t.Fatalf("case %d: expected error for %+v", i, cfg)
		}
	}
}

func TestSetTargetPos_Boundaries(t *testing.T) {
	c, err := New(Config{URL: "ws://host:1", ControlHz: 100, MinPos: 0, MaxPos: 1.0})
	if err != nil {
		t.Fatalf("New err=%v", err)
	}

	if err := c.SetTargetPos(0); err != nil {
		t.Fatalf("exact minimum rejected: %v", err)
	}
	if err := c.SetTargetPos(1.0); err != nil {
		t.Fatalf("exact maximum rejected: %v", err)
	}

	var verr *ValidationError
	if err := c.SetTargetPos(-0.0001); !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError below range, got %v", err)
	}
	if err := c.SetTargetPos(1.0001); !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError above range, got %v", err)
	}
	if err := c.SetTargetPos(math.NaN()); !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError for NaN, got %v", err)
	}
}

func TestSetTargetPos_UnknownRangeRejected(t *testing.T) {
	c, err := New(Config{URL: "ws://host:1", ControlHz: 100})
	if err != nil {
		t.Fatalf("New err=%v", err)
	}

	var verr *ValidationError
	if err := c.SetTargetPos(0.5); !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError without known travel range, got %v", err)
	}
}

func TestSetMaxSpeed_NegativeRejected(t *testing.T) {
	c, err := New(Config{URL: "ws://host:1", ControlHz: 100})
	if err != nil {
		t.Fatalf("New err=%v", err)
	}

	var verr *ValidationError
	if err := c.SetMaxSpeed(-1); !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError for negative speed, got %v", err)
	}
	if err := c.SetMaxSpeed(20000); err != nil {
		t.Fatalf("valid speed rejected: %v", err)
	}
}

func TestGetters_BeforeTelemetry(t *testing.T) {
	c, err := New(Config{URL: "ws://host:1", ControlHz: 100})
	if err != nil {
		t.Fatalf("New err=%v", err)
	}

	if _, ok := c.Status(); ok {
		t.Fatalf("Status should not be ok before telemetry")
	}
	if _, ok := c.MotorData(); ok {
		t.Fatalf("MotorData should not be ok before telemetry")
	}
}

func TestScenario_CommandDispatchedOnce(t *testing.T) {
	ls := newLiftServer(t, nil, 0)

	c, err := New(Config{
		URL:           ls.url(),
		ControlHz:     100,
		MinPos:        0,
		MaxPos:        100,
		PulsePerMeter: 1,
	})
	if err != nil {
		t.Fatalf("New err=%v", err)
	}

	if err := c.SetTargetPos(50); err != nil {
		t.Fatalf("SetTargetPos err=%v", err)
	}
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start err=%v", err)
	}
	defer c.Stop()

	waitFor(t, time.Second, func() bool { return len(ls.received()) >= 1 })

	// Give the loop a few more cycles: the slot was cleared, so no
	// duplicate dispatch may follow.
	time.Sleep(50 * time.Millisecond)

	frames := ls.received()
	if len(frames) != 1 {
		t.Fatalf("expected exactly 1 command frame, got %d", len(frames))
	}

	pulses := int64(50)
	want, err := wire.EncodeCommand(wire.Command{TargetPos: &pulses})
	if err != nil {
		t.Fatalf("EncodeCommand err=%v", err)
	}
	if !bytes.Equal(frames[0], want) {
		t.Fatalf("command mismatch: got=%x want=%x", frames[0], want)
	}
}

func TestScenario_TelemetryFlow(t *testing.T) {
	telemetry := func(seq uint64) []byte {
		return wire.EncodeStatus(wire.Status{
			RobotType:     wire.RobotTypeLinearLift,
			State:         uint64(lift.StateAlgorithmControl),
			Calibrated:    true,
			CurrentPos:    -150000,
			MaxPos:        -300000,
			Speed:         20000,
			MaxSpeed:      75000,
			PulsePerMeter: 1000000,
			Seq:           seq,
		})
	}
	ls := newLiftServer(t, telemetry, 2*time.Millisecond)

	c, err := New(Config{URL: ls.url(), ControlHz: 200})
	if err != nil {
		t.Fatalf("New err=%v", err)
	}

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start err=%v", err)
	}
	defer c.Stop()

	waitFor(t, time.Second, func() bool {
		_, ok := c.Status()
		return ok
	})

	st, ok := c.Status()
	if !ok {
		t.Fatalf("Status not ok")
	}
	if st.CurrentPos != -0.15 || st.MaxPos != -0.3 {
		t.Fatalf("unexpected positions: %+v", st)
	}
	if st.State != LiftAlgorithmControl || !st.Calibrated {
		t.Fatalf("unexpected status: %+v", st)
	}
	if !st.Fresh(time.Second) {
		t.Fatalf("just-received status not fresh: %+v", st)
	}

	md, ok := c.MotorData()
	if !ok {
		t.Fatalf("MotorData not ok")
	}
	if md.Speed != 20000 || md.MaxSpeed != 75000 || md.PulsePerMeter != 1000000 {
		t.Fatalf("unexpected motor data: %+v", md)
	}

	// Device travel is negative: [max_pos, 0].
	if err := c.SetTargetPos(-0.3); err != nil {
		t.Fatalf("in-range target rejected: %v", err)
	}
	var verr *ValidationError
	if err := c.SetTargetPos(0.1); !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError above negative travel, got %v", err)
	}

	if err := c.Stop(); err != nil {
		t.Fatalf("Stop err=%v", err)
	}
	if got := c.Session(); got != Disconnected {
		t.Fatalf("session=%v after stop, want disconnected", got)
	}

	if err := c.Stop(); err != nil {
		t.Fatalf("second Stop err=%v", err)
	}
	if got := c.Session(); got != Disconnected {
		t.Fatalf("session=%v after second stop, want disconnected", got)
	}
}

func TestScenario_FatalReportedOnce(t *testing.T) {
	ls := newLiftServer(t, nil, 0)

	c, err := New(Config{
		URL:           ls.url(),
		ControlHz:     100,
		MinPos:        0,
		MaxPos:        1,
		MaxReconnects: 2,
		ReconnectBase: time.Millisecond,
		DialTimeout:   200 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("New err=%v", err)
	}

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start err=%v", err)
	}
	defer c.Stop()

	// Kill the endpoint: the session drops and every reconnect fails.
	ls.srv.CloseClientConnections()
	ls.srv.Close()

	select {
	case err := <-c.Fatal():
		if !errors.Is(err, ErrRetriesExceeded) {
			t.Fatalf("expected ErrRetriesExceeded, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("fatal not reported")
	}

	select {
	case err := <-c.Fatal():
		t.Fatalf("fatal reported twice: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	if err := c.Stop(); err != nil {
		t.Fatalf("Stop after fatal err=%v", err)
	}
}
