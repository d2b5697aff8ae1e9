package safety_test

import (
	"math"
	"sync"
	"testing"
	"testing/quick"
	"time"

	"github.com/openracing/wheelsafe/pkg/clock"
	"github.com/openracing/wheelsafe/pkg/fault"
	"github.com/openracing/wheelsafe/pkg/safety"
	"github.com/openracing/wheelsafe/pkg/torque"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitialState(t *testing.T) {
	m := safety.New(torque.MustNew(5))

	s := m.State()
	assert.Equal(t, safety.SafeTorque, s.Kind)
	assert.False(t, s.IsFaulted())
	assert.Equal(t, "SAFE_TORQUE", s.String())
	assert.Equal(t, 5.0, m.MaxTorqueNm())
}

func TestClampBeforeFault(t *testing.T) {
	m := safety.New(torque.MustNew(5))

	tests := []struct {
		in, want float64
	}{
		{0, 0},
		{3, 3},
		{5, 5},
		{25, 5},
		{-10, -5},
		{-2.5, -2.5},
		{math.NaN(), 0},
		{math.Inf(1), 0},
		{math.Inf(-1), 0},
	}
	for _, tt := range tests {
		if got := m.ClampTorqueNm(tt.in); got != tt.want {
			t.Errorf("ClampTorqueNm(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestClampMatchesMinForNonNegative(t *testing.T) {
	m := safety.New(torque.MustNew(12))
	prop := func(x float64) bool {
		x = math.Abs(x)
		if math.IsInf(x, 0) || math.IsNaN(x) {
			return true
		}
		return m.ClampTorqueNm(x) == math.Min(x, m.MaxTorqueNm())
	}
	require.NoError(t, quick.Check(prop, nil))
}

func TestSetCeiling(t *testing.T) {
	m := safety.New(torque.Zero)
	assert.Equal(t, 0.0, m.ClampTorqueNm(3))

	m.SetCeiling(torque.MustNew(20))
	assert.Equal(t, 20.0, m.MaxTorqueNm())
	assert.Equal(t, 15.0, m.ClampTorqueNm(15))

	m.SetCeiling(torque.MustNew(-4))
	assert.Equal(t, 0.0, m.MaxTorqueNm())
}

func TestFaultScenario(t *testing.T) {
	for _, ft := range []fault.Type{fault.UsbStall, fault.EncoderNaN, fault.ThermalLimit, fault.Overcurrent} {
		t.Run(ft.String(), func(t *testing.T) {
			m := safety.New(torque.MustNew(25))

			start := time.Now()
			require.True(t, m.ReportFault(ft))
			assert.Less(t, time.Since(start), 50*time.Millisecond)

			s := m.State()
			assert.True(t, s.IsFaulted())
			assert.Equal(t, ft, s.Fault)
			assert.Equal(t, 0.0, m.MaxTorqueNm())
			for _, x := range []float64{0, 25, -10, 1e-9, -50} {
				assert.Equal(t, 0.0, m.ClampTorqueNm(x), "clamp(%v)", x)
			}
		})
	}
}

func TestClampZeroForAllInputsWhenFaulted(t *testing.T) {
	m := safety.New(torque.MustNew(25))
	m.ReportFault(fault.TimingViolation)

	prop := func(x float64) bool {
		return m.ClampTorqueNm(x) == 0
	}
	require.NoError(t, quick.Check(prop, nil))

	m.SetCeiling(torque.MustNew(50))
	assert.Equal(t, 0.0, m.ClampTorqueNm(10), "ceiling change does not heal")
}

func TestFirstFaultWins(t *testing.T) {
	clk := clock.Fake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	m := safety.New(torque.MustNew(5), safety.WithClock(clk))

	require.True(t, m.ReportFault(fault.ThermalLimit))
	clk.Advance(time.Second)
	assert.False(t, m.ReportFault(fault.Overcurrent))
	m.Notify("hid_communication", fault.UsbStall)

	s := m.State()
	assert.Equal(t, fault.ThermalLimit, s.Fault)
	assert.Equal(t, clk.Now().Add(-time.Second), s.Since)
	assert.Empty(t, s.Source)

	assert.Equal(t, uint64(1), m.FaultCount(fault.ThermalLimit))
	assert.Equal(t, uint64(1), m.FaultCount(fault.Overcurrent))
	assert.Equal(t, uint64(1), m.FaultCount(fault.UsbStall))
	assert.Equal(t, uint64(0), m.FaultCount(fault.EncoderNaN))
}

func TestNotifyRecordsSource(t *testing.T) {
	m := safety.New(torque.MustNew(5))
	var sub fault.Subscriber = m
	sub.Notify("wheel-plugin", fault.PluginOverrun)

	s := m.State()
	assert.Equal(t, fault.PluginOverrun, s.Fault)
	assert.Equal(t, "wheel-plugin", s.Source)
	assert.Contains(t, s.String(), "wheel-plugin")
}

func TestUnknownFaultTreatedAsInterlock(t *testing.T) {
	m := safety.New(torque.MustNew(5))
	m.ReportFault(fault.Type(200))
	assert.Equal(t, fault.SafetyInterlockViolation, m.State().Fault)
	assert.Equal(t, uint64(0), m.FaultCount(fault.Type(200)))
}

func TestOnlyFirstReportTransitions(t *testing.T) {
	m := safety.New(torque.MustNew(5))

	assert.True(t, m.ReportFault(fault.Overcurrent))
	assert.False(t, m.ReportFault(fault.Overcurrent))
	assert.False(t, m.ReportFault(fault.UsbStall))
	assert.Equal(t, fault.Overcurrent, m.State().Fault)
	assert.Equal(t, uint64(2), m.FaultCount(fault.Overcurrent))
}

func TestConcurrentReportsSingleWinner(t *testing.T) {
	m := safety.New(torque.MustNew(25))

	const perType = 200
	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	for _, ft := range fault.All {
		wg.Add(1)
		go func(ft fault.Type) {
			defer wg.Done()
			for i := 0; i < perType; i++ {
				if m.ReportFault(ft) {
					mu.Lock()
					winners++
					mu.Unlock()
				}
				_ = m.ClampTorqueNm(10)
			}
		}(ft)
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
	for _, ft := range fault.All {
		assert.Equal(t, uint64(perType), m.FaultCount(ft), ft.String())
	}
	assert.Equal(t, 0.0, m.ClampTorqueNm(10))
}
