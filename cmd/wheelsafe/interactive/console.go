// Package interactive provides the operator console for wheelsafe.
package interactive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/openracing/wheelsafe/pkg/fault"
	"github.com/openracing/wheelsafe/pkg/supervisor"
	"github.com/openracing/wheelsafe/pkg/torque"
	"github.com/openracing/wheelsafe/pkg/watchdog"
)

// consoleSource is the fault source for faults injected from the console.
const consoleSource = "console"

// Wheel is the simulated device the console can manipulate.
type Wheel interface {
	Device() torque.Device
	SetFaultFlags(torque.FaultFlags)
	TemperatureC() float64
	SetTemperatureC(float64)
	LastOutputNm() float64
}

// Console is the interactive command loop.
type Console struct {
	rl    *readline.Instance
	out   io.Writer
	sup   *supervisor.Supervisor
	wheel Wheel
}

// New creates the console. Run must be called to process commands.
func New() (*Console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "wheelsafe> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &Console{rl: rl, out: rl.Stdout()}, nil
}

// Stderr returns a writer that coordinates with the readline prompt.
// Use it for log output.
func (c *Console) Stderr() io.Writer {
	return c.rl.Stderr()
}

// Run reads commands until quit, EOF or ctx is done. wheel may be nil when
// no simulation is running.
func (c *Console) Run(ctx context.Context, cancel context.CancelFunc, sup *supervisor.Supervisor, wheel Wheel) {
	defer c.rl.Close()
	c.sup = sup
	c.wheel = wheel

	c.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := c.rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			fmt.Fprintln(c.out, "Exiting...")
			cancel()
			return
		}
		if !c.Execute(line) {
			fmt.Fprintln(c.out, "Exiting...")
			cancel()
			return
		}
	}
}

// Execute runs one command line. It returns false for quit.
func (c *Console) Execute(line string) bool {
	parts := strings.Fields(strings.TrimSpace(line))
	if len(parts) == 0 {
		return true
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "?":
		c.printHelp()
	case "status", "s":
		c.cmdStatus()
	case "fault":
		c.cmdFault(args)
	case "flags":
		c.cmdFlags(args)
	case "temp":
		c.cmdTemp(args)
	case "heartbeat", "hb":
		c.cmdHeartbeat(args)
	case "fail":
		c.cmdFail(args)
	case "plugin":
		c.cmdPlugin(args)
	case "release":
		c.cmdRelease(args)
	case "high":
		c.cmdHigh()
	case "safe":
		c.sup.DisableHighTorque()
		fmt.Fprintln(c.out, "Safe torque mode")
	case "quit", "exit", "q":
		return false
	default:
		fmt.Fprintf(c.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return true
}

func (c *Console) printHelp() {
	fmt.Fprintln(c.out, `
wheelsafe Commands:
  State:
    status                 - Show safety state, health and plugins
    high                   - Request high-torque mode
    safe                   - Return to safe-torque mode

  Fault injection:
    fault <type>           - Report a fault (e.g. THERMAL_LIMIT)
    flags <hex>            - Set device fault flags (simulation only)
    temp <celsius>         - Set motor temperature (simulation only)
    heartbeat <component>  - Record a component heartbeat
    fail <component>       - Report a component failure
    plugin <id> <us>       - Record a plugin execution time
    release <id>           - Release a plugin from quarantine

  Other:
    help                   - Show this help
    quit                   - Exit`)
}

func (c *Console) cmdStatus() {
	st := c.sup.Status()
	fmt.Fprintln(c.out, "\nSafety Status")
	fmt.Fprintln(c.out, "-------------------------------------------")
	fmt.Fprintf(c.out, "  Session:        %s\n", st.SessionID)
	fmt.Fprintf(c.out, "  State:          %s\n", st.State)
	fmt.Fprintf(c.out, "  High Torque:    %t\n", st.HighTorque)
	fmt.Fprintf(c.out, "  Ceiling:        %.2f Nm\n", st.CeilingNm)
	if c.wheel != nil {
		fmt.Fprintf(c.out, "  Output:         %.2f Nm\n", c.wheel.LastOutputNm())
		fmt.Fprintf(c.out, "  Device Flags:   %s\n", c.wheel.Device().FaultFlags)
		fmt.Fprintf(c.out, "  Temperature:    %.1f C\n", c.wheel.TemperatureC())
	}

	fmt.Fprintln(c.out, "\n  Components:")
	for _, comp := range watchdog.Components {
		fmt.Fprintf(c.out, "    %-20s %s\n", comp, st.Health[comp])
	}

	if len(st.Quarantined) > 0 {
		fmt.Fprintln(c.out, "\n  Quarantined Plugins:")
		ids := make([]string, 0, len(st.Quarantined))
		for id := range st.Quarantined {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			fmt.Fprintf(c.out, "    %-20s %s remaining\n", id, st.Quarantined[id].Round(time.Second))
		}
	}

	if len(st.FaultCounts) > 0 {
		fmt.Fprintln(c.out, "\n  Fault Counts:")
		for _, t := range fault.All {
			if n, ok := st.FaultCounts[t]; ok {
				fmt.Fprintf(c.out, "    %-28s %d\n", t, n)
			}
		}
	}
	if st.DroppedEvents > 0 {
		fmt.Fprintf(c.out, "\n  Dropped log events: %d\n", st.DroppedEvents)
	}
	fmt.Fprintln(c.out)
}

func (c *Console) cmdFault(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(c.out, "Usage: fault <type>")
		names := make([]string, 0, len(fault.All))
		for _, t := range fault.All {
			names = append(names, t.String())
		}
		fmt.Fprintf(c.out, "  Types: %s\n", strings.Join(names, ", "))
		return
	}
	t, ok := fault.Parse(strings.ToUpper(args[0]))
	if !ok {
		fmt.Fprintf(c.out, "Unknown fault type: %s\n", args[0])
		return
	}
	c.sup.ReportFault(consoleSource, t)
	fmt.Fprintf(c.out, "Reported %s, state %s\n", t, c.sup.Safety().State())
}

func (c *Console) cmdFlags(args []string) {
	if c.wheel == nil {
		fmt.Fprintln(c.out, "No simulated wheel (start with -simulate)")
		return
	}
	if len(args) < 1 {
		fmt.Fprintln(c.out, "Usage: flags <hex>  (0x01 comm, 0x02 encoder, 0x04 thermal, 0x08 overcurrent)")
		return
	}
	v, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(args[0]), "0x"), 16, 8)
	if err != nil {
		fmt.Fprintf(c.out, "Invalid flags: %v\n", err)
		return
	}
	c.wheel.SetFaultFlags(torque.FaultFlags(v))
	fmt.Fprintf(c.out, "Device flags set to %s\n", torque.FaultFlags(v))
}

func (c *Console) cmdTemp(args []string) {
	if c.wheel == nil {
		fmt.Fprintln(c.out, "No simulated wheel (start with -simulate)")
		return
	}
	if len(args) < 1 {
		fmt.Fprintln(c.out, "Usage: temp <celsius>")
		return
	}
	v, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		fmt.Fprintf(c.out, "Invalid temperature: %v\n", err)
		return
	}
	c.wheel.SetTemperatureC(v)
}

func (c *Console) cmdHeartbeat(args []string) {
	comp, ok := c.component(args, "heartbeat")
	if !ok {
		return
	}
	c.sup.Heartbeat(comp)
	fmt.Fprintf(c.out, "Heartbeat recorded for %s\n", comp)
}

func (c *Console) cmdFail(args []string) {
	comp, ok := c.component(args, "fail")
	if !ok {
		return
	}
	var err error
	if len(args) > 1 {
		err = errors.New(strings.Join(args[1:], " "))
	}
	c.sup.ReportComponentFailure(comp, err)
	rec, _ := c.sup.Watchdog().ComponentHealth(comp)
	fmt.Fprintf(c.out, "%s is %s (%d consecutive failures)\n", comp, rec.Status, rec.ConsecutiveFailures)
}

func (c *Console) component(args []string, cmd string) (watchdog.Component, bool) {
	if len(args) < 1 {
		names := make([]string, 0, len(watchdog.Components))
		for _, comp := range watchdog.Components {
			names = append(names, comp.String())
		}
		fmt.Fprintf(c.out, "Usage: %s <component>\n  Components: %s\n", cmd, strings.Join(names, ", "))
		return 0, false
	}
	comp, ok := watchdog.ParseComponent(strings.ToLower(args[0]))
	if !ok {
		fmt.Fprintf(c.out, "Unknown component: %s\n", args[0])
	}
	return comp, ok
}

func (c *Console) cmdPlugin(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(c.out, "Usage: plugin <id> <microseconds>")
		return
	}
	us, err := strconv.ParseUint(args[1], 10, 32)
	if err != nil {
		fmt.Fprintf(c.out, "Invalid execution time: %v\n", err)
		return
	}
	ft, quarantined := c.sup.RecordPluginExecution(args[0], time.Duration(us)*time.Microsecond)
	if quarantined {
		fmt.Fprintf(c.out, "Plugin %s quarantined (%s)\n", args[0], ft)
		return
	}
	stats, _ := c.sup.Watchdog().PluginStats(args[0])
	fmt.Fprintf(c.out, "Plugin %s: %d executions, %d consecutive timeouts, avg %s\n",
		args[0], stats.Executions, stats.ConsecutiveTimeouts, stats.AverageExecutionTime())
}

func (c *Console) cmdRelease(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(c.out, "Usage: release <id>")
		return
	}
	if err := c.sup.ReleasePluginQuarantine(args[0]); err != nil {
		fmt.Fprintf(c.out, "Release failed: %v\n", err)
		return
	}
	fmt.Fprintf(c.out, "Plugin %s released\n", args[0])
}

func (c *Console) cmdHigh() {
	if c.wheel == nil {
		fmt.Fprintln(c.out, "No simulated wheel (start with -simulate)")
		return
	}
	if err := c.sup.RequestHighTorque(c.wheel.Device(), 0, c.wheel.TemperatureC()); err != nil {
		fmt.Fprintf(c.out, "High torque denied: %v\n", err)
		return
	}
	fmt.Fprintf(c.out, "High torque enabled, ceiling %.2f Nm\n", c.sup.Safety().MaxTorqueNm())
}
