// Package torque defines the value types shared by the safety subsystem:
// torque magnitudes, device state and capability snapshots, and the
// hardware fault-flag byte.
//
// # Torque Values
//
// A [Value] is a signed torque in Newton-meters. Values are validated at
// construction: they must be finite and their magnitude must not exceed
// [MaxNm]. The sign encodes direction; limits are applied to the magnitude.
//
// # Fault Flags
//
// Devices report hardware faults as a single byte with a fixed bit layout:
//
//	bit 0  communication / USB fault
//	bit 1  encoder fault
//	bit 2  thermal fault
//	bit 3  overcurrent fault
//	bit 4+ reserved
//
// The layout is a wire-compatibility contract with device firmware and
// must never be renumbered.
package torque
