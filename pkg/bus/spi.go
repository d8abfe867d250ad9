package bus

// Conn exchanges one byte on a full-duplex synchronous bus. A transfer
// always completes from the controller's point of view; this bus has no way
// to report failure.
type Conn interface {
	Transfer(b byte) byte
}

// SelectLine frames transfers on a shared synchronous bus. Assert must be
// held for the whole register transaction, not per byte.
type SelectLine interface {
	Assert()
	Release()
}

// SPI command framing: bit 7 flags a read, bit 6 enables multi-byte
// auto-increment, writes carry the bare 6-bit register address.
const (
	spiCmdRead      = 0x80
	spiCmdMultiRead = 0xC0
	spiAddrMask     = 0x3F
)

// SPITransport is the framed-select transport variant. All methods succeed
// unconditionally; a disconnected bus yields garbage reads, not errors.
type SPITransport struct {
	conn Conn
	sel  SelectLine
}

// NewSPI creates a framed-select transport and leaves the select line
// released.
func NewSPI(conn Conn, sel SelectLine) *SPITransport {
	sel.Release()
	return &SPITransport{conn: conn, sel: sel}
}

// ReadReg implements Transport.
func (t *SPITransport) ReadReg(reg uint8) (uint8, error) {
	var value uint8
	t.framed(func() {
		t.conn.Transfer(reg | spiCmdRead)
		value = t.conn.Transfer(0x00)
	})
	return value, nil
}

// WriteReg implements Transport.
func (t *SPITransport) WriteReg(reg, value uint8) error {
	t.framed(func() {
		t.conn.Transfer(reg & spiAddrMask)
		t.conn.Transfer(value)
	})
	return nil
}

// ReadMulti implements Transport.
func (t *SPITransport) ReadMulti(reg uint8, dst []byte) error {
	t.framed(func() {
		t.conn.Transfer(reg | spiCmdMultiRead)
		for i := range dst {
			dst[i] = t.conn.Transfer(0x00)
		}
	})
	return nil
}

// framed runs fn with the select line asserted. Release is deferred so the
// line cannot stay asserted on any exit path.
func (t *SPITransport) framed(fn func()) {
	t.sel.Assert()
	defer t.sel.Release()
	fn()
}
