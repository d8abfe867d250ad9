// Package contracts pins the constants shared with the collector and its
// UI. They are defined externally (the collector's contract files are the
// source of truth); this node consumes them as opaque values and echoes the
// field labels in logs and debug output, never parses them.
package contracts

// UDP ports of the telemetry contract.
const (
	ServerUDPDataPort    = 9000
	ServerUDPControlPort = 9001
	NodeControlPortBase  = 9010
)

// Metric field labels produced by the collector's analysis pipeline.
const (
	FieldVibrationStrengthDB = "vibration_strength_db"
	FieldStrengthBucket      = "strength_bucket"
	FieldPeakHz              = "peak_hz"
)
