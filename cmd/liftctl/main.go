// cmd/liftctl/main.go
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/hexfellow/liftlink"
	"github.com/hexfellow/liftlink/internal/config"
)

// Version information set at build time.
var version = "dev"

func main() {
	root := &cobra.Command{
		Use:           "liftctl",
		Short:         "Control and monitor a hex lift over WebSocket",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		runCmd(),
		checkConfigCmd(),
		versionCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	config.Normalize(cfg)
	return cfg, nil
}

func clientConfig(cfg *config.Config, logger *slog.Logger, reg prometheus.Registerer) liftlink.Config {
	l := cfg.Lift
	return liftlink.Config{
		URL:           l.Endpoint,
		ControlHz:     l.ControlHz,
		DialTimeout:   time.Duration(l.Timeouts.DialMs) * time.Millisecond,
		WriteTimeout:  time.Duration(l.Timeouts.WriteMs) * time.Millisecond,
		StaleAfter:    time.Duration(l.Timeouts.StaleMs) * time.Millisecond,
		MaxReconnects: l.Reconnect.MaxAttempts,
		ReconnectBase: time.Duration(l.Reconnect.BaseDelayMs) * time.Millisecond,
		MinPos:        l.Travel.MinPosM,
		MaxPos:        l.Travel.MaxPosM,
		PulsePerMeter: l.Travel.PulsePerMeter,
		Logger:        logger,
		Metrics:       reg,
	}
}

func runCmd() *cobra.Command {
	var (
		calibrate bool
		targetPos float64
	)

	cmd := &cobra.Command{
		Use:   "run <config.yaml>",
		Short: "Run the control loop and print lift telemetry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(args[0])
			if err != nil {
				return err
			}

			logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

			reg := prometheus.NewRegistry()
			if listen := cfg.Lift.Metrics.Listen; listen != "" {
				mux := http.NewServeMux()
				mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
				go func() {
					if err := http.ListenAndServe(listen, mux); err != nil {
						logger.Error("metrics endpoint failed", "error", err)
					}
				}()
				logger.Info("metrics endpoint up", "listen", listen)
			}

			client, err := liftlink.New(clientConfig(cfg, logger, reg))
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := client.Start(ctx); err != nil {
				return err
			}
			defer client.Stop()

			if calibrate {
				client.Calibrate()
				logger.Info("calibration requested")
			}
			if cmd.Flags().Changed("target-pos") {
				if err := client.SetTargetPos(targetPos); err != nil {
					logger.Error("target rejected", "pos", targetPos, "error", err)
				} else {
					logger.Info("target queued", "pos", targetPos)
				}
			}

			return monitor(ctx, client, logger)
		},
	}

	cmd.Flags().BoolVar(&calibrate, "calibrate", false, "request calibration on start")
	cmd.Flags().Float64Var(&targetPos, "target-pos", 0, "queue a target position in meters")
	return cmd
}

// monitor prints lift state transitions and fresh telemetry until the
// context ends or connectivity is fatally lost.
func monitor(ctx context.Context, client *liftlink.Client, logger *slog.Logger) error {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	var lastSeq uint64
	var lastState liftlink.LiftState = -1

	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			return nil

		case err := <-client.Fatal():
			return err

		case <-ticker.C:
			st, ok := client.Status()
			if !ok || st.Seq == lastSeq {
				continue
			}
			lastSeq = st.Seq

			if st.State != lastState {
				lastState = st.State
				logger.Info("lift state changed", "state", st.State.String())
			}

			md, _ := client.MotorData()
			logger.Info("telemetry",
				"pos_m", st.CurrentPos,
				"max_pos_m", st.MaxPos,
				"calibrated", st.Calibrated,
				"speed", md.Speed,
				"estop", st.EmergencyStop,
				"button", st.CustomButtonPressed,
				"overruns", client.Overruns(),
			)
		}
	}
}

func checkConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-config <config.yaml>",
		Short: "Validate a configuration file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("config OK: endpoint=%s control_hz=%d\n",
				cfg.Lift.Endpoint, cfg.Lift.ControlHz)
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the liftctl version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("liftctl", version)
		},
	}
}
