package bus

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// spiTrace records every bus event in order so tests can assert that the
// select line brackets each whole transaction.
type spiTrace struct {
	events []spiEvent
	rx     []byte
	rxPos  int
}

type spiEvent struct {
	kind string // "assert", "release", "xfer"
	tx   byte
}

func (s *spiTrace) Transfer(b byte) byte {
	s.events = append(s.events, spiEvent{kind: "xfer", tx: b})
	if s.rxPos < len(s.rx) {
		v := s.rx[s.rxPos]
		s.rxPos++
		return v
	}
	return 0
}

func (s *spiTrace) Assert()  { s.events = append(s.events, spiEvent{kind: "assert"}) }
func (s *spiTrace) Release() { s.events = append(s.events, spiEvent{kind: "release"}) }

func (s *spiTrace) reset() { s.events = nil }

func newSPIUnderTest(rx []byte) (*SPITransport, *spiTrace) {
	trace := &spiTrace{rx: rx}
	t := NewSPI(trace, trace)
	trace.reset() // drop the constructor's initial release
	return t, trace
}

func TestSPIReadReg(t *testing.T) {
	tr, trace := newSPIUnderTest([]byte{0xAA, 0xE5})
	v, err := tr.ReadReg(0x00)
	require.NoError(t, err)
	require.Equal(t, uint8(0xE5), v)
	require.Equal(t, []spiEvent{
		{kind: "assert"},
		{kind: "xfer", tx: 0x80}, // reg | read flag
		{kind: "xfer", tx: 0x00}, // dummy byte clocks the value out
		{kind: "release"},
	}, trace.events)
}

func TestSPIWriteReg(t *testing.T) {
	tr, trace := newSPIUnderTest(nil)
	require.NoError(t, tr.WriteReg(0xF1, 0x0B))
	require.Equal(t, []spiEvent{
		{kind: "assert"},
		{kind: "xfer", tx: 0x31}, // upper command bits stripped for writes
		{kind: "xfer", tx: 0x0B},
		{kind: "release"},
	}, trace.events)
}

func TestSPIReadMulti(t *testing.T) {
	rx := []byte{0x00, 1, 2, 3, 4, 5, 6}
	tr, trace := newSPIUnderTest(rx)
	dst := make([]byte, 6)
	require.NoError(t, tr.ReadMulti(0x32, dst))
	require.Equal(t, []byte{1, 2, 3, 4, 5, 6}, dst)

	require.Len(t, trace.events, 9)
	require.Equal(t, spiEvent{kind: "assert"}, trace.events[0])
	require.Equal(t, spiEvent{kind: "xfer", tx: 0xF2}, trace.events[1]) // reg | multi-read flag
	require.Equal(t, spiEvent{kind: "release"}, trace.events[8])
	for _, ev := range trace.events[2:8] {
		require.Equal(t, spiEvent{kind: "xfer", tx: 0x00}, ev)
	}
}

func TestSPISelectBracketsEveryTransaction(t *testing.T) {
	tr, trace := newSPIUnderTest(nil)
	_, _ = tr.ReadReg(0x39)
	_ = tr.WriteReg(0x2D, 0x08)
	_ = tr.ReadMulti(0x32, make([]byte, 12))

	depth := 0
	for _, ev := range trace.events {
		switch ev.kind {
		case "assert":
			depth++
			require.Equal(t, 1, depth, "select asserted while already asserted")
		case "release":
			depth--
			require.Equal(t, 0, depth, "select released while not asserted")
		case "xfer":
			require.Equal(t, 1, depth, "transfer outside select frame")
		}
	}
	require.Equal(t, 0, depth, "select left asserted")
}

func TestSPINeverFails(t *testing.T) {
	// The framed-select bus has no failure signal; all paths return nil.
	tr, _ := newSPIUnderTest(nil)
	_, err := tr.ReadReg(0x00)
	require.NoError(t, err)
	require.NoError(t, tr.WriteReg(0x2C, 0x0D))
	require.NoError(t, tr.ReadMulti(0x32, make([]byte, 72)))
}
