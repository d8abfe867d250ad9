package wire

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Skamba/VibeSensor-sub002/pkg/adxl345"
)

var testID = ClientID{0xAA, 0xBB, 0xCC, 0x11, 0x22, 0x33}

func TestParseMAC(t *testing.T) {
	id, ok := ParseMAC("aa:bb:cc:11:22:33")
	require.True(t, ok)
	require.Equal(t, testID, id)
	require.Equal(t, "aabbcc112233", id.Hex())

	_, ok = ParseMAC("not-a-mac")
	require.False(t, ok)
	// EUI-64 parses as a MAC but is not a valid client id.
	_, ok = ParseMAC("01:02:03:04:05:06:07:08")
	require.False(t, ok)
}

func TestHelloLayout(t *testing.T) {
	h := Hello{
		ClientID:           testID,
		ControlPort:        9010,
		SampleRateHz:       800,
		FrameSamples:       200,
		Name:               "vibe-node",
		FirmwareVersion:    "go-node-0.1",
		QueueOverflowDrops: 7,
	}
	buf := make([]byte, 128)
	n := PackHello(buf, h)
	require.Equal(t, HelloFixedBytes+len(h.Name)+len(h.FirmwareVersion), n)

	// Fixed header prefix, byte for byte.
	require.Equal(t, []byte{
		MsgHello, ProtoVersion,
		0xAA, 0xBB, 0xCC, 0x11, 0x22, 0x33,
		0x32, 0x23, // control port 9010 LE
		0x20, 0x03, // sample rate 800 LE
		0xC8, 0x00, // frame samples 200 LE
		9, // name length
	}, buf[:15])

	got, ok := ParseHello(buf[:n])
	require.True(t, ok)
	require.Equal(t, h, got)
}

func TestHelloShortBuffer(t *testing.T) {
	h := Hello{ClientID: testID, Name: "n", FirmwareVersion: "fw"}
	require.Zero(t, PackHello(make([]byte, HelloFixedBytes+2), h))
}

func TestHelloTruncatesLongStrings(t *testing.T) {
	long := "0123456789012345678901234567890123456789"
	h := Hello{ClientID: testID, Name: long, FirmwareVersion: long}
	buf := make([]byte, 256)
	n := PackHello(buf, h)
	require.NotZero(t, n)
	got, ok := ParseHello(buf[:n])
	require.True(t, ok)
	require.Len(t, got.Name, 32)
	require.Len(t, got.FirmwareVersion, 32)
}

func TestDataLayout(t *testing.T) {
	samples := []adxl345.Sample{
		{X: 1, Y: -2, Z: 3},
		{X: -32768, Y: 32767, Z: 0},
	}
	buf := make([]byte, 64)
	n := PackData(buf, testID, 0xDEADBEEF, 0x0102030405060708, samples)
	require.Equal(t, DataHeaderBytes+12, n)

	require.Equal(t, []byte{
		MsgData, ProtoVersion,
		0xAA, 0xBB, 0xCC, 0x11, 0x22, 0x33,
		0xEF, 0xBE, 0xAD, 0xDE, // seq LE
		0x08, 0x07, 0x06, 0x05, 0x04, 0x03, 0x02, 0x01, // t0 LE
		0x02, 0x00, // sample count
		0x01, 0x00, 0xFE, 0xFF, 0x03, 0x00, // (1, -2, 3)
		0x00, 0x80, 0xFF, 0x7F, 0x00, 0x00, // (-32768, 32767, 0)
	}, buf[:n])

	got, ok := ParseData(buf[:n])
	require.True(t, ok)
	require.Equal(t, uint32(0xDEADBEEF), got.Seq)
	require.Equal(t, uint64(0x0102030405060708), got.T0US)
	require.Equal(t, samples, got.Samples)
}

func TestDataShortBuffer(t *testing.T) {
	samples := make([]adxl345.Sample, 4)
	require.Zero(t, PackData(make([]byte, DataHeaderBytes+23), testID, 1, 2, samples))
}

func TestParseDataTruncatedPayload(t *testing.T) {
	buf := make([]byte, 64)
	n := PackData(buf, testID, 1, 2, make([]adxl345.Sample, 4))
	_, ok := ParseData(buf[:n-1])
	require.False(t, ok)
}

func TestCmdIdentifyRoundTrip(t *testing.T) {
	buf := make([]byte, 32)
	n := PackCmdIdentify(buf, testID, 42, 10000)
	require.Equal(t, CmdIdentifyBytes, n)

	cmd, ok := ParseCmd(buf[:n], testID)
	require.True(t, ok)
	require.Equal(t, uint8(CmdIdentify), cmd.ID)
	require.Equal(t, uint32(42), cmd.Seq)
	require.Equal(t, uint16(10000), cmd.IdentifyDurationMS)
}

func TestCmdSyncClockRoundTrip(t *testing.T) {
	buf := make([]byte, 32)
	n := PackCmdSyncClock(buf, testID, 43, 1234567890123)
	require.Equal(t, CmdSyncClockBytes, n)

	cmd, ok := ParseCmd(buf[:n], testID)
	require.True(t, ok)
	require.Equal(t, uint8(CmdSyncClock), cmd.ID)
	require.Equal(t, uint32(43), cmd.Seq)
	require.Equal(t, uint64(1234567890123), cmd.ServerTimeUS)
}

func TestParseCmdRejectsForeignNode(t *testing.T) {
	buf := make([]byte, 32)
	n := PackCmdIdentify(buf, testID, 1, 500)
	other := ClientID{1, 2, 3, 4, 5, 6}
	_, ok := ParseCmd(buf[:n], other)
	require.False(t, ok)
}

func TestParseCmdTruncatedPayload(t *testing.T) {
	buf := make([]byte, 32)
	n := PackCmdSyncClock(buf, testID, 1, 99)
	_, ok := ParseCmd(buf[:n-1], testID)
	require.False(t, ok)
}

func TestAckRoundTrip(t *testing.T) {
	buf := make([]byte, 32)
	n := PackAck(buf, testID, 42, 0)
	require.Equal(t, AckBytes, n)

	ack, ok := ParseAck(buf[:n])
	require.True(t, ok)
	require.Equal(t, Ack{ClientID: testID, CmdSeq: 42, Status: 0}, ack)
}

func TestDataAckRoundTrip(t *testing.T) {
	buf := make([]byte, 32)
	n := PackDataAck(buf, testID, 0xFFFFFFFE)
	require.Equal(t, DataAckBytes, n)

	seq, ok := ParseDataAck(buf[:n], testID)
	require.True(t, ok)
	require.Equal(t, uint32(0xFFFFFFFE), seq)

	_, ok = ParseDataAck(buf[:n], ClientID{9, 9, 9, 9, 9, 9})
	require.False(t, ok)
}

func TestParseRejectsWrongTypeAndVersion(t *testing.T) {
	buf := make([]byte, 64)
	n := PackHello(buf, Hello{ClientID: testID})
	require.NotZero(t, n)

	bad := append([]byte(nil), buf[:n]...)
	bad[0] = MsgData
	_, ok := ParseHello(bad)
	require.False(t, ok)

	bad = append([]byte(nil), buf[:n]...)
	bad[1] = ProtoVersion + 1
	_, ok = ParseHello(bad)
	require.False(t, ok)
}
