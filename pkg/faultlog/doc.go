// Package faultlog records safety events in a machine-readable form.
//
// It is separate from operational logging (slog): operational logs are for
// operators, while the fault log is a complete event trace of faults,
// violations, quarantines, health transitions and safety state changes that
// can be replayed and exported after an incident.
//
// # Basic Usage
//
//	// Console only
//	logger := faultlog.NewSlogAdapter(slog.Default())
//
//	// Binary file plus console
//	file, _ := faultlog.NewFileLogger("/var/log/wheelsafe/session.flog")
//	logger := faultlog.NewMultiLogger(faultlog.NewSlogAdapter(slog.Default()), file)
//
//	// Keep file I/O off the control loop
//	async := faultlog.NewAsyncLogger(logger, 1024)
//	go async.Run(ctx)
//
// # File Format
//
// Log files are a stream of CBOR-encoded events with the .flog extension.
// The wheelsafe-log tool provides viewing, statistics and export.
package faultlog
