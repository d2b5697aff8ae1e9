package watchdog

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/openracing/wheelsafe/pkg/clock"
	"github.com/openracing/wheelsafe/pkg/fault"
	"github.com/openracing/wheelsafe/pkg/fault/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func newTestWatchdog(t *testing.T) (*Watchdog, *clock.FakeClock) {
	t.Helper()
	clk := clock.Fake(epoch)
	w, err := New(DefaultConfig(), WithClock(clk))
	require.NoError(t, err)
	return w, clk
}

const overBudget = 150 * time.Microsecond
const inBudget = 50 * time.Microsecond

func TestNewStartsClean(t *testing.T) {
	w, _ := newTestWatchdog(t)

	assert.Equal(t, 0, w.PluginCount())
	assert.True(t, w.QuarantinePolicyEnabled())
	for c, status := range w.HealthSummary() {
		assert.Equal(t, HealthUnknown, status, c.String())
	}
	assert.False(t, w.HasFaultedComponents())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero plugin timeout", func(c *Config) { c.PluginTimeout = 0 }},
		{"zero max timeouts", func(c *Config) { c.PluginMaxTimeouts = 0 }},
		{"zero quarantine", func(c *Config) { c.PluginQuarantineDuration = 0 }},
		{"zero rt timeout", func(c *Config) { c.RtThreadTimeout = 0 }},
		{"zero hid timeout", func(c *Config) { c.HidTimeout = 0 }},
		{"zero telemetry timeout", func(c *Config) { c.TelemetryTimeout = 0 }},
		{"zero interval", func(c *Config) { c.HealthCheckInterval = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			_, err := New(cfg)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestPluginQuarantinedOnFifthConsecutiveTimeout(t *testing.T) {
	w, _ := newTestWatchdog(t)

	sub := mocks.NewMockSubscriber(t)
	sub.EXPECT().Notify("ffb-filter", fault.PluginOverrun).Once()
	w.Subscribe(sub)

	for i := 1; i <= 4; i++ {
		_, quarantined := w.RecordPluginExecution("ffb-filter", overBudget)
		require.False(t, quarantined, "execution %d", i)
	}
	ft, quarantined := w.RecordPluginExecution("ffb-filter", overBudget)
	require.True(t, quarantined)
	assert.Equal(t, fault.PluginOverrun, ft)
	assert.True(t, w.IsPluginQuarantined("ffb-filter"))

	stats, ok := w.PluginStats("ffb-filter")
	require.True(t, ok)
	assert.Equal(t, uint64(5), stats.Executions)
	assert.Equal(t, uint64(5), stats.Timeouts)
	assert.Equal(t, uint32(0), stats.ConsecutiveTimeouts)
	assert.Equal(t, uint32(1), stats.QuarantineCount)
	assert.Equal(t, 100.0, stats.TimeoutRate())
}

func TestInBudgetExecutionResetsStreak(t *testing.T) {
	w, _ := newTestWatchdog(t)

	for i := 0; i < 4; i++ {
		w.RecordPluginExecution("p", overBudget)
	}
	_, quarantined := w.RecordPluginExecution("p", inBudget)
	assert.False(t, quarantined)
	assert.False(t, w.IsPluginQuarantined("p"))

	stats, _ := w.PluginStats("p")
	assert.Equal(t, uint32(0), stats.ConsecutiveTimeouts)
	assert.Equal(t, uint64(4), stats.Timeouts, "lifetime count persists")

	// Budget is exclusive: exactly at the limit is in budget.
	_, quarantined = w.RecordPluginExecution("p", DefaultPluginTimeout)
	assert.False(t, quarantined)
	stats, _ = w.PluginStats("p")
	assert.Equal(t, uint32(0), stats.ConsecutiveTimeouts)
}

func TestQuarantineExpiresWithoutRelease(t *testing.T) {
	w, clk := newTestWatchdog(t)

	for i := 0; i < DefaultPluginMaxTimeouts; i++ {
		w.RecordPluginExecution("p", overBudget)
	}
	require.True(t, w.IsPluginQuarantined("p"))

	remaining := w.QuarantinedPlugins()
	assert.Equal(t, DefaultPluginQuarantineDuration, remaining["p"])

	clk.Advance(DefaultPluginQuarantineDuration - time.Millisecond)
	assert.True(t, w.IsPluginQuarantined("p"))

	clk.Advance(time.Millisecond)
	assert.False(t, w.IsPluginQuarantined("p"))
	assert.Empty(t, w.QuarantinedPlugins())

	w.PerformHealthChecks()
	stats, _ := w.PluginStats("p")
	assert.True(t, stats.QuarantinedUntil.IsZero(), "sweep clears expired quarantine")
	assert.Equal(t, uint32(1), stats.QuarantineCount, "count persists across cycles")
}

func TestReleasePluginQuarantine(t *testing.T) {
	w, _ := newTestWatchdog(t)

	assert.ErrorIs(t, w.ReleasePluginQuarantine("ghost"), ErrPluginNotFound)

	w.RegisterPlugin("p")
	assert.ErrorIs(t, w.ReleasePluginQuarantine("p"), ErrNotQuarantined)

	for i := 0; i < DefaultPluginMaxTimeouts; i++ {
		w.RecordPluginExecution("p", overBudget)
	}
	require.NoError(t, w.ReleasePluginQuarantine("p"))
	assert.False(t, w.IsPluginQuarantined("p"))
}

func TestQuarantinePolicyDisabled(t *testing.T) {
	w, _ := newTestWatchdog(t)
	w.SetQuarantinePolicyEnabled(false)

	for i := 0; i < 50; i++ {
		_, quarantined := w.RecordPluginExecution("p", overBudget)
		require.False(t, quarantined)
	}
	assert.False(t, w.IsPluginQuarantined("p"))

	w.SetQuarantinePolicyEnabled(true)
	stats, _ := w.PluginStats("p")
	assert.Equal(t, uint32(0), stats.ConsecutiveTimeouts, "re-enable starts a clean streak")

	for i := 1; i < DefaultPluginMaxTimeouts; i++ {
		_, quarantined := w.RecordPluginExecution("p", overBudget)
		require.False(t, quarantined, "execution %d", i)
	}
	_, quarantined := w.RecordPluginExecution("p", overBudget)
	assert.True(t, quarantined)
}

func TestPluginRegistry(t *testing.T) {
	w, _ := newTestWatchdog(t)

	w.RegisterPlugin("a")
	w.RegisterPlugin("a")
	w.RecordPluginExecution("b", inBudget)
	assert.Equal(t, 2, w.PluginCount())
	assert.Len(t, w.AllPluginStats(), 2)

	require.NoError(t, w.ResetPluginStats("b"))
	stats, ok := w.PluginStats("b")
	require.True(t, ok)
	assert.Equal(t, uint64(0), stats.Executions)
	assert.ErrorIs(t, w.ResetPluginStats("ghost"), ErrPluginNotFound)

	w.RecordPluginExecution("a", 80*time.Microsecond)
	w.RecordPluginExecution("a", 40*time.Microsecond)
	stats, _ = w.PluginStats("a")
	assert.Equal(t, 60*time.Microsecond, stats.AverageExecutionTime())

	w.ResetAllPluginStats()
	assert.Equal(t, 2, w.PluginCount())
	stats, _ = w.PluginStats("a")
	assert.Equal(t, uint64(0), stats.Executions)

	require.NoError(t, w.UnregisterPlugin("a"))
	assert.ErrorIs(t, w.UnregisterPlugin("a"), ErrPluginNotFound)
	assert.Equal(t, 1, w.PluginCount())
}

func TestComponentHealthThresholds(t *testing.T) {
	w, _ := newTestWatchdog(t)
	failure := errors.New("read error")

	w.ReportComponentFailure(HidCommunication, failure)
	rec, _ := w.ComponentHealth(HidCommunication)
	assert.Equal(t, HealthHealthy, rec.Status)

	w.ReportComponentFailure(HidCommunication, failure)
	rec, _ = w.ComponentHealth(HidCommunication)
	assert.Equal(t, HealthDegraded, rec.Status)
	assert.Equal(t, uint32(2), rec.ConsecutiveFailures)
	assert.Equal(t, "read error", rec.LastError)

	w.Heartbeat(HidCommunication)
	rec, _ = w.ComponentHealth(HidCommunication)
	assert.Equal(t, HealthHealthy, rec.Status)
	assert.Equal(t, uint32(0), rec.ConsecutiveFailures)
	assert.Empty(t, rec.LastError)
}

func TestComponentFaultedNotifiesOnce(t *testing.T) {
	tests := []struct {
		component Component
		want      fault.Type
	}{
		{RtThread, fault.TimingViolation},
		{HidCommunication, fault.UsbStall},
		{TelemetryAdapter, fault.TimingViolation},
		{PluginHost, fault.PluginOverrun},
		{SafetySystem, fault.SafetyInterlockViolation},
		{DeviceManager, fault.UsbStall},
	}
	for _, tt := range tests {
		t.Run(tt.component.String(), func(t *testing.T) {
			w, _ := newTestWatchdog(t)
			sub := mocks.NewMockSubscriber(t)
			sub.EXPECT().Notify(tt.component.String(), tt.want).Once()
			w.Subscribe(sub)

			for i := 0; i < 4; i++ {
				w.ReportComponentFailure(tt.component, nil)
			}
			assert.False(t, w.HasFaultedComponents())

			w.ReportComponentFailure(tt.component, nil)
			assert.True(t, w.HasFaultedComponents())

			// Already faulted: no second notification.
			w.ReportComponentFailure(tt.component, nil)
		})
	}
}

func TestCheckTimeout(t *testing.T) {
	w, clk := newTestWatchdog(t)

	assert.False(t, w.CheckTimeout(RtThread, time.Millisecond), "never-seen component is not checked")

	w.Heartbeat(RtThread)
	clk.Advance(5 * time.Millisecond)
	assert.False(t, w.CheckTimeout(RtThread, 10*time.Millisecond))

	clk.Advance(6 * time.Millisecond)
	assert.True(t, w.CheckTimeout(RtThread, 10*time.Millisecond))
	rec, _ := w.ComponentHealth(RtThread)
	assert.Equal(t, uint32(1), rec.ConsecutiveFailures)
	assert.Equal(t, "heartbeat timeout", rec.LastError)

	since, ok := w.TimeSinceHeartbeat(RtThread)
	require.True(t, ok)
	assert.Equal(t, 11*time.Millisecond, since)
	_, ok = w.TimeSinceHeartbeat(DeviceManager)
	assert.False(t, ok)
}

func TestPerformHealthChecksGated(t *testing.T) {
	w, clk := newTestWatchdog(t)
	w.Heartbeat(RtThread)

	clk.Advance(50 * time.Millisecond)
	assert.Nil(t, w.PerformHealthChecks())
	rec, _ := w.ComponentHealth(RtThread)
	assert.Equal(t, uint32(0), rec.ConsecutiveFailures, "gated sweep must not run")

	clk.Advance(50 * time.Millisecond)
	w.PerformHealthChecks()
	rec, _ = w.ComponentHealth(RtThread)
	assert.Equal(t, uint32(1), rec.ConsecutiveFailures)

	// Immediately again: gated.
	w.PerformHealthChecks()
	rec, _ = w.ComponentHealth(RtThread)
	assert.Equal(t, uint32(1), rec.ConsecutiveFailures)
}

func TestSweepEscalatesStalledHID(t *testing.T) {
	w, clk := newTestWatchdog(t)

	var mu sync.Mutex
	var got []fault.Type
	w.Subscribe(fault.SubscriberFunc(func(_ string, ft fault.Type) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, ft)
	}))

	w.Heartbeat(HidCommunication)
	var escalated []fault.Type
	for i := 0; i < FaultedThreshold; i++ {
		clk.Advance(DefaultHealthCheckInterval)
		escalated = append(escalated, w.PerformHealthChecks()...)
	}

	assert.Equal(t, []fault.Type{fault.UsbStall}, escalated)
	mu.Lock()
	assert.Equal(t, []fault.Type{fault.UsbStall}, got)
	mu.Unlock()
}

func TestTelemetryTimeoutNeverEscalates(t *testing.T) {
	w, clk := newTestWatchdog(t)
	sub := mocks.NewMockSubscriber(t)
	w.Subscribe(sub)

	w.Heartbeat(TelemetryAdapter)
	for i := 0; i < 10; i++ {
		clk.Advance(2 * DefaultTelemetryTimeout)
		assert.Empty(t, w.PerformHealthChecks())
	}

	rec, _ := w.ComponentHealth(TelemetryAdapter)
	assert.Equal(t, HealthFaulted, rec.Status)
	sub.AssertNotCalled(t, "Notify")
}

func TestRunSweepsOnTicker(t *testing.T) {
	w, clk := newTestWatchdog(t)
	w.Heartbeat(RtThread)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		clk.Advance(DefaultHealthCheckInterval)
		rec, _ := w.ComponentHealth(RtThread)
		return rec.ConsecutiveFailures > 0
	}, time.Second, time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestComponentMetrics(t *testing.T) {
	w, _ := newTestWatchdog(t)
	w.AddComponentMetric(RtThread, "jitter_us", 12.5)

	rec, ok := w.ComponentHealth(RtThread)
	require.True(t, ok)
	assert.Equal(t, 12.5, rec.Metrics["jitter_us"])

	rec.Metrics["jitter_us"] = 0
	again, _ := w.ComponentHealth(RtThread)
	assert.Equal(t, 12.5, again.Metrics["jitter_us"], "snapshot must not alias")

	_, ok = w.ComponentHealth(Component(99))
	assert.False(t, ok)
}

func TestComponentNames(t *testing.T) {
	for _, c := range Components {
		parsed, ok := ParseComponent(c.String())
		require.True(t, ok, c.String())
		assert.Equal(t, c, parsed)
	}
	_, ok := ParseComponent("nope")
	assert.False(t, ok)
}

func TestConcurrentRecording(t *testing.T) {
	w, _ := newTestWatchdog(t)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				w.RecordPluginExecution("shared", inBudget)
				w.Heartbeat(PluginHost)
				w.IsPluginQuarantined("shared")
			}
		}()
	}
	wg.Wait()

	stats, _ := w.PluginStats("shared")
	assert.Equal(t, uint64(8000), stats.Executions)
}
