// Command wheelsafe runs the racing-wheel safety supervisor.
//
// It loads the safety configuration, starts the watchdog sweep and the
// fault log, and optionally drives a simulated wheel from a 1 kHz control
// loop so the interlock can be exercised without hardware.
//
// Usage:
//
//	wheelsafe [flags]
//
// Flags:
//
//	-config string     Configuration file path (YAML)
//	-log-level string  Log level: debug, info, warn, error (default "info")
//	-fault-log string  Fault log file (overrides log.fault_log_path)
//	-simulate          Drive a simulated wheel from the control loop
//	-interactive       Start the interactive console
//
// Examples:
//
//	# Simulated wheel with a console
//	wheelsafe -simulate -interactive
//
//	# Production limits, fault log on disk
//	wheelsafe -config /etc/wheelsafe/safety.yaml -fault-log /var/log/wheelsafe/session.flog
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/openracing/wheelsafe/cmd/wheelsafe/interactive"
	"github.com/openracing/wheelsafe/pkg/config"
	"github.com/openracing/wheelsafe/pkg/supervisor"
	"golang.org/x/term"
)

// Flags holds the command line options.
type Flags struct {
	ConfigFile  string
	LogLevel    string
	FaultLog    string
	Simulate    bool
	Interactive bool
}

var flags Flags

func init() {
	flag.StringVar(&flags.ConfigFile, "config", "", "Configuration file path (YAML)")
	flag.StringVar(&flags.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flag.StringVar(&flags.FaultLog, "fault-log", "", "Fault log file (overrides log.fault_log_path)")
	flag.BoolVar(&flags.Simulate, "simulate", false, "Drive a simulated wheel from the control loop")
	flag.BoolVar(&flags.Interactive, "interactive", false, "Start the interactive console")
}

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	level, err := parseLevel(flags.LogLevel)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The console owns the terminal; logs go through it so they do not
	// corrupt the prompt.
	var console *interactive.Console
	var logOut io.Writer = os.Stderr
	if flags.Interactive {
		console, err = interactive.New()
		if err != nil {
			return err
		}
		logOut = console.Stderr()
	}
	logger := newLogger(logOut, level)

	sup, err := supervisor.New(cfg, supervisor.WithLogger(logger))
	if err != nil {
		return err
	}
	defer func() {
		if err := sup.Close(); err != nil {
			logger.Error("close fault log", "error", err)
		}
	}()

	logger.Info("wheelsafe starting",
		"session", sup.SessionID(),
		"maxSafeTorqueNm", cfg.Policy.MaxSafeTorqueNm,
		"maxHighTorqueNm", cfg.Policy.MaxHighTorqueNm,
		"faultLog", cfg.Log.FaultLogPath,
		"simulate", flags.Simulate)

	done := make(chan struct{})
	go func() {
		sup.Run(ctx)
		close(done)
	}()

	var sim *Simulation
	if flags.Simulate {
		sim = NewSimulation(sup, logger)
		go sim.Run(ctx)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received signal", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	if console != nil {
		var wheel interactive.Wheel
		if sim != nil {
			wheel = sim
		}
		console.Run(ctx, cancel, sup, wheel)
	}

	<-ctx.Done()
	<-done
	logger.Info("wheelsafe stopped", "state", sup.Safety().State().String())
	return nil
}

func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if flags.ConfigFile != "" {
		loaded, err := config.Load(flags.ConfigFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if flags.FaultLog != "" {
		cfg.Log.FaultLogPath = flags.FaultLog
	}
	return cfg, nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

// newLogger uses a text handler on a terminal and JSON otherwise.
func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if f, ok := w.(*os.File); ok && !term.IsTerminal(int(f.Fd())) {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
