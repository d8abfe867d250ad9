// Package wire implements the datagram codec shared between a sensor node
// and the collector.
//
// The byte layout is a fixed external contract: every multi-byte field is
// little-endian, every message starts with a type byte and the protocol
// version, followed by the 6-byte client id. Pack functions write into a
// caller-supplied buffer and return the encoded length, or 0 when the
// buffer is too short. Parse functions never panic on truncated or foreign
// input; they return ok=false.
package wire

import (
	"encoding/binary"
	"encoding/hex"
	"net"

	"github.com/Skamba/VibeSensor-sub002/pkg/adxl345"
)

// ProtoVersion is the wire protocol revision spoken by this node.
const ProtoVersion = 1

// ClientIDBytes is the length of a node identity on the wire.
const ClientIDBytes = 6

// Message types.
const (
	MsgHello   = 1
	MsgData    = 2
	MsgCmd     = 3
	MsgAck     = 4
	MsgDataAck = 5
)

// Command ids carried by MsgCmd.
const (
	CmdIdentify  = 1
	CmdSyncClock = 2
)

// Fixed message sizes. Hello additionally carries two length-prefixed
// strings; Data additionally carries sample_count * 6 payload bytes.
const (
	HelloFixedBytes   = 1 + 1 + ClientIDBytes + 2 + 2 + 2 + 1 + 1 + 4
	DataHeaderBytes   = 1 + 1 + ClientIDBytes + 4 + 8 + 2
	AckBytes          = 1 + 1 + ClientIDBytes + 4 + 1
	DataAckBytes      = 1 + 1 + ClientIDBytes + 4
	CmdHeaderBytes    = 1 + 1 + ClientIDBytes + 1 + 4
	CmdIdentifyBytes  = CmdHeaderBytes + 2
	CmdSyncClockBytes = CmdHeaderBytes + 8
)

// maxNameBytes caps the length-prefixed strings in Hello.
const maxNameBytes = 32

// ClientID identifies a node, conventionally its uplink MAC address.
type ClientID [ClientIDBytes]byte

// ParseMAC converts a textual MAC address into a client id.
func ParseMAC(s string) (ClientID, bool) {
	var id ClientID
	hw, err := net.ParseMAC(s)
	if err != nil || len(hw) != ClientIDBytes {
		return id, false
	}
	copy(id[:], hw)
	return id, true
}

// Hex renders the id the way the collector keys nodes: lowercase hex, no
// separators.
func (id ClientID) Hex() string {
	return hex.EncodeToString(id[:])
}

func packHeader(dst []byte, msgType uint8, id ClientID) int {
	dst[0] = msgType
	dst[1] = ProtoVersion
	copy(dst[2:], id[:])
	return 2 + ClientIDBytes
}

func checkHeader(data []byte, msgType uint8) bool {
	return len(data) >= 2+ClientIDBytes && data[0] == msgType && data[1] == ProtoVersion
}

func headerID(data []byte) ClientID {
	var id ClientID
	copy(id[:], data[2:2+ClientIDBytes])
	return id
}

// Hello is the periodic node announcement.
type Hello struct {
	ClientID           ClientID
	ControlPort        uint16
	SampleRateHz       uint16
	FrameSamples       uint16
	Name               string
	FirmwareVersion    string
	QueueOverflowDrops uint32
}

// PackHello encodes a Hello.
func PackHello(dst []byte, h Hello) int {
	name := truncate(h.Name)
	fw := truncate(h.FirmwareVersion)
	need := HelloFixedBytes + len(name) + len(fw)
	if len(dst) < need {
		return 0
	}
	o := packHeader(dst, MsgHello, h.ClientID)
	binary.LittleEndian.PutUint16(dst[o:], h.ControlPort)
	o += 2
	binary.LittleEndian.PutUint16(dst[o:], h.SampleRateHz)
	o += 2
	binary.LittleEndian.PutUint16(dst[o:], h.FrameSamples)
	o += 2
	dst[o] = uint8(len(name))
	o++
	o += copy(dst[o:], name)
	dst[o] = uint8(len(fw))
	o++
	o += copy(dst[o:], fw)
	binary.LittleEndian.PutUint32(dst[o:], h.QueueOverflowDrops)
	o += 4
	return o
}

// ParseHello decodes a Hello from any node.
func ParseHello(data []byte) (Hello, bool) {
	var h Hello
	if !checkHeader(data, MsgHello) || len(data) < HelloFixedBytes {
		return h, false
	}
	h.ClientID = headerID(data)
	o := 2 + ClientIDBytes
	h.ControlPort = binary.LittleEndian.Uint16(data[o:])
	o += 2
	h.SampleRateHz = binary.LittleEndian.Uint16(data[o:])
	o += 2
	h.FrameSamples = binary.LittleEndian.Uint16(data[o:])
	o += 2
	var ok bool
	if h.Name, o, ok = parseString(data, o); !ok {
		return h, false
	}
	if h.FirmwareVersion, o, ok = parseString(data, o); !ok {
		return h, false
	}
	if len(data) < o+4 {
		return h, false
	}
	h.QueueOverflowDrops = binary.LittleEndian.Uint32(data[o:])
	return h, true
}

// Data is one frame of samples with its sequence number and the
// server-relative timestamp of the first sample.
type Data struct {
	ClientID ClientID
	Seq      uint32
	T0US     uint64
	Samples  []adxl345.Sample
}

// PackData encodes a data frame.
func PackData(dst []byte, id ClientID, seq uint32, t0US uint64, samples []adxl345.Sample) int {
	need := DataHeaderBytes + len(samples)*adxl345.BytesPerSample
	if len(dst) < need || len(samples) > 0xFFFF {
		return 0
	}
	o := packHeader(dst, MsgData, id)
	binary.LittleEndian.PutUint32(dst[o:], seq)
	o += 4
	binary.LittleEndian.PutUint64(dst[o:], t0US)
	o += 8
	binary.LittleEndian.PutUint16(dst[o:], uint16(len(samples)))
	o += 2
	for _, s := range samples {
		binary.LittleEndian.PutUint16(dst[o:], uint16(s.X))
		binary.LittleEndian.PutUint16(dst[o+2:], uint16(s.Y))
		binary.LittleEndian.PutUint16(dst[o+4:], uint16(s.Z))
		o += adxl345.BytesPerSample
	}
	return o
}

// ParseData decodes a data frame from any node.
func ParseData(data []byte) (Data, bool) {
	var d Data
	if !checkHeader(data, MsgData) || len(data) < DataHeaderBytes {
		return d, false
	}
	d.ClientID = headerID(data)
	o := 2 + ClientIDBytes
	d.Seq = binary.LittleEndian.Uint32(data[o:])
	o += 4
	d.T0US = binary.LittleEndian.Uint64(data[o:])
	o += 8
	count := int(binary.LittleEndian.Uint16(data[o:]))
	o += 2
	if len(data) < o+count*adxl345.BytesPerSample {
		return d, false
	}
	d.Samples = make([]adxl345.Sample, count)
	for i := range d.Samples {
		d.Samples[i] = adxl345.Sample{
			X: int16(binary.LittleEndian.Uint16(data[o:])),
			Y: int16(binary.LittleEndian.Uint16(data[o+2:])),
			Z: int16(binary.LittleEndian.Uint16(data[o+4:])),
		}
		o += adxl345.BytesPerSample
	}
	return d, true
}

// Cmd is a control command addressed to one node.
type Cmd struct {
	ID                 uint8
	Seq                uint32
	IdentifyDurationMS uint16 // CmdIdentify only
	ServerTimeUS       uint64 // CmdSyncClock only
}

// PackCmdIdentify encodes an identify command.
func PackCmdIdentify(dst []byte, id ClientID, seq uint32, durationMS uint16) int {
	if len(dst) < CmdIdentifyBytes {
		return 0
	}
	o := packCmdHeader(dst, id, CmdIdentify, seq)
	binary.LittleEndian.PutUint16(dst[o:], durationMS)
	return o + 2
}

// PackCmdSyncClock encodes a clock-sync command carrying the server time in
// microseconds.
func PackCmdSyncClock(dst []byte, id ClientID, seq uint32, serverTimeUS uint64) int {
	if len(dst) < CmdSyncClockBytes {
		return 0
	}
	o := packCmdHeader(dst, id, CmdSyncClock, seq)
	binary.LittleEndian.PutUint64(dst[o:], serverTimeUS)
	return o + 8
}

func packCmdHeader(dst []byte, id ClientID, cmdID uint8, seq uint32) int {
	o := packHeader(dst, MsgCmd, id)
	dst[o] = cmdID
	o++
	binary.LittleEndian.PutUint32(dst[o:], seq)
	return o + 4
}

// ParseCmd decodes a command addressed to expect. Commands for other nodes
// sharing the port are rejected, not routed.
func ParseCmd(data []byte, expect ClientID) (Cmd, bool) {
	var c Cmd
	if !checkHeader(data, MsgCmd) || len(data) < CmdHeaderBytes {
		return c, false
	}
	if headerID(data) != expect {
		return c, false
	}
	o := 2 + ClientIDBytes
	c.ID = data[o]
	o++
	c.Seq = binary.LittleEndian.Uint32(data[o:])
	o += 4
	switch c.ID {
	case CmdIdentify:
		if len(data) < CmdIdentifyBytes {
			return c, false
		}
		c.IdentifyDurationMS = binary.LittleEndian.Uint16(data[o:])
	case CmdSyncClock:
		if len(data) < CmdSyncClockBytes {
			return c, false
		}
		c.ServerTimeUS = binary.LittleEndian.Uint64(data[o:])
	}
	return c, true
}

// Ack is the node's reply to a command.
type Ack struct {
	ClientID ClientID
	CmdSeq   uint32
	Status   uint8
}

// PackAck encodes a command acknowledgement.
func PackAck(dst []byte, id ClientID, cmdSeq uint32, status uint8) int {
	if len(dst) < AckBytes {
		return 0
	}
	o := packHeader(dst, MsgAck, id)
	binary.LittleEndian.PutUint32(dst[o:], cmdSeq)
	o += 4
	dst[o] = status
	return o + 1
}

// ParseAck decodes an acknowledgement from any node.
func ParseAck(data []byte) (Ack, bool) {
	var a Ack
	if !checkHeader(data, MsgAck) || len(data) < AckBytes {
		return a, false
	}
	a.ClientID = headerID(data)
	o := 2 + ClientIDBytes
	a.CmdSeq = binary.LittleEndian.Uint32(data[o:])
	a.Status = data[o+4]
	return a, true
}

// PackDataAck encodes the collector's cumulative data acknowledgement.
func PackDataAck(dst []byte, id ClientID, lastSeqReceived uint32) int {
	if len(dst) < DataAckBytes {
		return 0
	}
	o := packHeader(dst, MsgDataAck, id)
	binary.LittleEndian.PutUint32(dst[o:], lastSeqReceived)
	return o + 4
}

// ParseDataAck decodes a data acknowledgement addressed to expect.
func ParseDataAck(data []byte, expect ClientID) (lastSeqReceived uint32, ok bool) {
	if !checkHeader(data, MsgDataAck) || len(data) < DataAckBytes {
		return 0, false
	}
	if headerID(data) != expect {
		return 0, false
	}
	return binary.LittleEndian.Uint32(data[2+ClientIDBytes:]), true
}

func truncate(s string) string {
	if len(s) > maxNameBytes {
		return s[:maxNameBytes]
	}
	return s
}

func parseString(data []byte, o int) (string, int, bool) {
	if len(data) < o+1 {
		return "", o, false
	}
	n := int(data[o])
	o++
	if len(data) < o+n {
		return "", o, false
	}
	return string(data[o : o+n]), o + n, true
}
