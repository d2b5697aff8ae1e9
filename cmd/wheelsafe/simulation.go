package main

import (
	"context"
	"log/slog"
	"math"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/openracing/wheelsafe/pkg/supervisor"
	"github.com/openracing/wheelsafe/pkg/torque"
	"github.com/openracing/wheelsafe/pkg/watchdog"
)

const (
	controlPeriod = time.Millisecond

	// Simulated force feedback: a slow sine around the safe ceiling.
	simAmplitudeNm = 6.0
	simFrequencyHz = 0.5

	smoothingPlugin = "ffb-smoothing"
)

// Simulation drives a virtual wheel through the supervisor at 1 kHz.
type Simulation struct {
	sup    *supervisor.Supervisor
	logger *slog.Logger

	flags        atomic.Uint32
	temperatureC atomic.Uint64 // float64 bits
	lastOutputNm atomic.Uint64 // float64 bits
	smoothed     float64       // control loop only
}

// NewSimulation creates a simulated 20 Nm direct-drive wheel.
func NewSimulation(sup *supervisor.Supervisor, logger *slog.Logger) *Simulation {
	s := &Simulation{sup: sup, logger: logger}
	s.temperatureC.Store(math.Float64bits(35))
	return s
}

// Device returns the simulated device as the control loop sees it.
func (s *Simulation) Device() torque.Device {
	return torque.Device{
		ID:         "sim-wheel",
		State:      torque.DeviceActive,
		FaultFlags: torque.FaultFlags(s.flags.Load()),
		Capabilities: torque.Capabilities{
			MaxTorque:             torque.MustNew(20),
			SupportsRawTorque1kHz: true,
			EncoderCPR:            65535,
			MinReportPeriod:       controlPeriod,
		},
	}
}

// SetFaultFlags sets the flags the device reports on the next cycle.
func (s *Simulation) SetFaultFlags(f torque.FaultFlags) {
	s.flags.Store(uint32(f))
}

// TemperatureC returns the simulated motor temperature.
func (s *Simulation) TemperatureC() float64 {
	return math.Float64frombits(s.temperatureC.Load())
}

// SetTemperatureC sets the simulated motor temperature.
func (s *Simulation) SetTemperatureC(c float64) {
	s.temperatureC.Store(math.Float64bits(c))
}

// LastOutputNm returns the torque sent to the device on the last cycle.
func (s *Simulation) LastOutputNm() float64 {
	return math.Float64frombits(s.lastOutputNm.Load())
}

// Run executes the control loop on a locked OS thread until ctx is done.
func (s *Simulation) Run(ctx context.Context) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := setRealtimePriority(); err != nil {
		s.logger.Warn("real-time priority unavailable, running at normal priority", "error", err)
	}

	ticker := time.NewTicker(controlPeriod)
	defer ticker.Stop()

	start := time.Now()
	var cycles uint64
	for {
		select {
		case <-ctx.Done():
			s.lastOutputNm.Store(0)
			return
		case now := <-ticker.C:
			s.sup.Heartbeat(watchdog.RtThread)
			s.sup.Heartbeat(watchdog.HidCommunication)
			s.sup.Heartbeat(watchdog.TelemetryAdapter)

			elapsed := now.Sub(start).Seconds()
			requested := simAmplitudeNm * math.Sin(2*math.Pi*simFrequencyHz*elapsed)
			requested = s.runPlugins(requested)

			out := s.sup.Tick(requested, s.Device())
			s.lastOutputNm.Store(math.Float64bits(out))

			cycles++
			if cycles%1000 == 0 {
				s.logger.Debug("control loop",
					"cycles", cycles,
					"requestedNm", requested,
					"outputNm", out,
					"ceilingNm", s.sup.Safety().MaxTorqueNm())
			}
		}
	}
}

// runPlugins applies the smoothing plugin unless it is quarantined.
func (s *Simulation) runPlugins(requested float64) float64 {
	if s.sup.IsPluginQuarantined(smoothingPlugin) {
		return requested
	}
	began := time.Now()
	s.smoothed += 0.2 * (requested - s.smoothed)
	s.sup.RecordPluginExecution(smoothingPlugin, time.Since(began))
	return s.smoothed
}
