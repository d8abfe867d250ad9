package bus

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// OpenSPI opens a framed-select transport on a spidev port with a dedicated
// GPIO select line. The port is configured once, at the fixed sensor clock
// rate, in mode 3. The returned closer releases the port.
//
// Chip select is driven by the named GPIO rather than the port's own CS so
// a register transaction can span multiple byte transfers in one frame.
func OpenSPI(portName, selectPin string) (*SPITransport, func() error, error) {
	if _, err := host.Init(); err != nil {
		return nil, nil, err
	}
	port, err := spireg.Open(portName)
	if err != nil {
		return nil, nil, err
	}
	conn, err := port.Connect(SPIClockHz*physic.Hertz, spi.Mode3|spi.NoCS, 8)
	if err != nil {
		port.Close()
		return nil, nil, err
	}
	pin := gpioreg.ByName(selectPin)
	if pin == nil {
		port.Close()
		return nil, nil, fmt.Errorf("bus: no GPIO named %q", selectPin)
	}
	if err := pin.Out(gpio.High); err != nil {
		port.Close()
		return nil, nil, err
	}
	t := NewSPI(&periphConn{conn: conn}, &periphSelect{pin: pin})
	return t, port.Close, nil
}

// OpenI2C opens an addressed transport on an I2C bus for a device address.
// The bus speed is set once, at the fixed sensor clock rate. The returned
// closer releases the bus.
func OpenI2C(busName string, addr uint16) (*I2CTransport, func() error, error) {
	if _, err := host.Init(); err != nil {
		return nil, nil, err
	}
	b, err := i2creg.Open(busName)
	if err != nil {
		return nil, nil, err
	}
	if err := b.SetSpeed(I2CClockHz * physic.Hertz); err != nil {
		b.Close()
		return nil, nil, err
	}
	return NewI2C(&i2c.Dev{Bus: b, Addr: addr}), b.Close, nil
}

type periphConn struct {
	conn spi.Conn
}

// Transfer implements Conn. The underlying spidev transfer can fail, but the
// framed-select bus has no failure channel; a failed exchange reads as 0.
func (c *periphConn) Transfer(b byte) byte {
	var r [1]byte
	if err := c.conn.Tx([]byte{b}, r[:]); err != nil {
		return 0
	}
	return r[0]
}

type periphSelect struct {
	pin gpio.PinOut
}

// Assert implements SelectLine. The line is active low.
func (s *periphSelect) Assert() { s.pin.Out(gpio.Low) }

// Release implements SelectLine.
func (s *periphSelect) Release() { s.pin.Out(gpio.High) }
