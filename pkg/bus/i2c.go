package bus

// Wire is an addressed two-wire bus endpoint bound to one device address.
// Tx writes w to the device and, when r is non-empty, reads len(r) bytes in
// the same transaction without releasing the bus in between (repeated
// start).
type Wire interface {
	Tx(w, r []byte) error
}

// I2CTransport is the addressed transport variant. Every operation reports
// success or failure explicitly.
type I2CTransport struct {
	wire Wire
}

// NewI2C creates an addressed transport over a wire endpoint.
func NewI2C(wire Wire) *I2CTransport {
	return &I2CTransport{wire: wire}
}

// ReadReg implements Transport. A failed read yields 0.
func (t *I2CTransport) ReadReg(reg uint8) (uint8, error) {
	var buf [1]byte
	if err := t.wire.Tx([]byte{reg}, buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

// WriteReg implements Transport.
func (t *I2CTransport) WriteReg(reg, value uint8) error {
	return t.wire.Tx([]byte{reg, value}, nil)
}

// ReadMulti implements Transport. A failed transaction zero-fills the whole
// destination; the caller sees a data gap, never a partial read.
func (t *I2CTransport) ReadMulti(reg uint8, dst []byte) error {
	if err := t.wire.Tx([]byte{reg}, dst); err != nil {
		for i := range dst {
			dst[i] = 0
		}
		return err
	}
	return nil
}
