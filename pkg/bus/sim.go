package bus

import (
	"encoding/binary"
	"math"
	"sync"
	"time"
)

// Register surface the simulator mirrors. Kept local: the simulator models
// the part, it does not depend on the driver.
const (
	simRegDevID      = 0x00
	simRegDataX0     = 0x32
	simRegFIFOStatus = 0x39

	simDevID       = 0xE5
	simFIFODepth   = 32
	simSampleHz    = 800
	simEntriesMask = 0x3F
)

// SimDevice emulates the register surface of the accelerometer with a
// synthetic vibration source. It implements Transport directly and is used
// by tests and by the daemon's -sim mode, where no physical bus exists.
//
// The synthetic signal mixes three fixed tones so a spectrum view on the
// collector side shows recognizable peaks.
type SimDevice struct {
	mu       sync.Mutex
	regs     [0x40]uint8
	start    time.Time
	consumed uint64
	now      func() time.Time
}

// NewSim creates a simulated device with an identity register already
// matching the real part.
func NewSim() *SimDevice {
	d := &SimDevice{start: time.Now(), now: time.Now}
	d.regs[simRegDevID] = simDevID
	return d
}

// ReadReg implements Transport.
func (d *SimDevice) ReadReg(reg uint8) (uint8, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if reg == simRegFIFOStatus {
		return uint8(d.pending()) & simEntriesMask, nil
	}
	return d.regs[reg], nil
}

// WriteReg implements Transport.
func (d *SimDevice) WriteReg(reg, value uint8) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.regs[reg] = value
	return nil
}

// ReadMulti implements Transport. Reads from the FIFO data window pop whole
// samples; any other address reads back stored register values.
func (d *SimDevice) ReadMulti(reg uint8, dst []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if reg != simRegDataX0 {
		for i := range dst {
			dst[i] = d.regs[(int(reg)+i)%len(d.regs)]
		}
		return nil
	}
	for off := 0; off+6 <= len(dst); off += 6 {
		x, y, z := d.synth(d.consumed)
		binary.LittleEndian.PutUint16(dst[off:], uint16(x))
		binary.LittleEndian.PutUint16(dst[off+2:], uint16(y))
		binary.LittleEndian.PutUint16(dst[off+4:], uint16(z))
		d.consumed++
	}
	return nil
}

// pending reports how many synthetic samples have accumulated since the
// last FIFO pop, clamped to the physical FIFO depth.
func (d *SimDevice) pending() uint64 {
	produced := uint64(d.now().Sub(d.start).Seconds() * simSampleHz)
	if produced <= d.consumed {
		return 0
	}
	n := produced - d.consumed
	if n > simFIFODepth {
		return simFIFODepth
	}
	return n
}

func (d *SimDevice) synth(i uint64) (x, y, z int16) {
	t := float64(i) / simSampleHz
	x = int16(700 * math.Sin(2*math.Pi*13*t))
	y = int16(350 * math.Sin(2*math.Pi*27*t+0.7))
	z = int16(900 * math.Sin(2*math.Pi*41*t+1.1))
	return
}
