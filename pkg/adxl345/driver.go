// Package adxl345 drives an ADXL345 3-axis accelerometer over a
// register-level bus transport.
//
// The driver owns one bus.Transport and is transport-agnostic: the framed
// chip-select and addressed two-wire variants behave identically at the
// register level. Only the failure signaling differs: the framed variant
// never reports errors, so configuration there is effectively
// fire-and-forget.
//
// The driver is single-owner: one polling goroutine at a time. It never
// blocks beyond the fixed number of bus transactions an operation needs.
package adxl345

import (
	"encoding/binary"

	"github.com/Skamba/VibeSensor-sub002/pkg/bus"
)

// Sample is one accelerometer reading, in raw device LSBs. No unit
// conversion happens at this layer.
type Sample struct {
	X, Y, Z int16
}

// BytesPerSample is the wire size of one sample: three little-endian int16.
const BytesPerSample = 6

// burstSamples bounds a single FIFO transfer to 12 samples (72 bytes).
// Larger requests are split into bursts so the transfer buffer stays small
// and fixed regardless of how much the caller asks for; chunking does not
// change the register address, byte order, or decoded values.
const burstSamples = 12

// Stats counts degraded-path events since bring-up. Counters only ever
// increase; they reset on a successful Begin.
type Stats struct {
	ReadErrors    uint32 // failed FIFO status or data reads
	FIFOTruncated uint32 // FIFO held more entries than the caller's buffer
}

// Driver manages device bring-up and bounded-chunk FIFO sampling.
type Driver struct {
	transport bus.Transport
	watermark uint8
	available bool
	stats     Stats
	burst     [burstSamples * BytesPerSample]byte
}

// New creates a driver over a transport. fifoWatermark is a 5-bit field;
// out-of-range values are masked at the wire. The device is not touched
// until Begin.
func New(transport bus.Transport, fifoWatermark uint8) *Driver {
	return &Driver{transport: transport, watermark: fifoWatermark}
}

// Begin verifies the device identity and runs the full configuration
// sequence. It returns false and leaves the driver unavailable when the
// expected part is absent or any configuration write fails; bring-up can be
// retried later by calling Begin again.
func (d *Driver) Begin() bool {
	d.available = false

	devid, err := d.transport.ReadReg(regDevID)
	if err != nil || devid != DeviceID {
		return false
	}

	sequence := []struct{ reg, value uint8 }{
		{regPowerCtl, valPowerStandby},
		{regDataFormat, valFullRes16g},
		{regBWRate, valODR800Hz},
		{regFIFOCtl, valFIFOStream | (d.watermark & watermarkMask)},
		{regIntEnable, valIntWatermark},
		{regPowerCtl, valPowerMeasure},
	}
	for _, w := range sequence {
		if err := d.transport.WriteReg(w.reg, w.value); err != nil {
			// Abort on the first failed write: a partially configured
			// device must never be observable as available.
			return false
		}
	}

	d.stats = Stats{}
	d.available = true
	return true
}

// Available reports whether bring-up completed. It degrades to false only
// through a failed Begin; there is no automatic recovery here.
func (d *Driver) Available() bool {
	return d.available
}

// Stats returns the degraded-path counters.
func (d *Driver) Stats() Stats {
	return d.stats
}

// ReadSamples drains up to len(dst) samples from the hardware FIFO and
// returns the exact count written. A zero return with a nil error means
// nothing is ready yet; it is not an error. The count never exceeds the
// FIFO's reported entry count.
//
// On a failed transfer the samples decoded so far are kept and the error is
// returned; the affected burst reads as zeros (the addressed bus fabricates
// a zero-filled gap, the framed bus cannot fail).
func (d *Driver) ReadSamples(dst []Sample) (int, error) {
	if !d.available || len(dst) == 0 {
		return 0, nil
	}

	status, err := d.transport.ReadReg(regFIFOStatus)
	if err != nil {
		d.stats.ReadErrors++
		return 0, err
	}
	entries := int(status & fifoEntriesMask)
	if entries == 0 {
		return 0, nil
	}
	count := entries
	if count > len(dst) {
		count = len(dst)
		d.stats.FIFOTruncated++
	}

	for done := 0; done < count; {
		n := count - done
		if n > burstSamples {
			n = burstSamples
		}
		raw := d.burst[:n*BytesPerSample]
		if err := d.transport.ReadMulti(regDataX0, raw); err != nil {
			d.stats.ReadErrors++
			return done, err
		}
		for i := 0; i < n; i++ {
			off := i * BytesPerSample
			dst[done+i] = Sample{
				X: int16(binary.LittleEndian.Uint16(raw[off:])),
				Y: int16(binary.LittleEndian.Uint16(raw[off+2:])),
				Z: int16(binary.LittleEndian.Uint16(raw[off+4:])),
			}
		}
		done += n
	}
	return count, nil
}
