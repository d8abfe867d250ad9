// Package bus provides the register-level transports the accelerometer
// driver runs on.
//
// Two interchangeable variants implement the same capability set: a framed
// chip-select bus (SPI, always-blocking, no failure signal) and an addressed
// two-wire bus (I2C, explicit success/failure per transaction). The driver
// on top stays transport-agnostic; it only ever sees Transport.
package bus

// Transport is the capability set a register-addressed device needs:
// read one register, write one register, read N contiguous registers.
//
// Implementations are synchronous and blocking for the duration of the
// physical transfer. They are not safe for concurrent use; the caller must
// serialize access.
type Transport interface {
	// ReadReg reads a single register. A transport without failure
	// detection returns a nil error unconditionally; the value may then be
	// garbage if the bus is not physically connected.
	ReadReg(reg uint8) (uint8, error)

	// WriteReg writes a single register.
	WriteReg(reg, value uint8) error

	// ReadMulti reads len(dst) contiguous registers starting at reg. On a
	// failed transaction dst is zero-filled in full before the error is
	// returned, so callers never observe stale bytes.
	ReadMulti(reg uint8, dst []byte) error
}

// Fixed bus clock rates for the sensor attach point. The transports are
// constructed at these rates by OpenSPI/OpenI2C; the rates are not
// renegotiated afterwards.
const (
	SPIClockHz = 5000000
	I2CClockHz = 400000
)
