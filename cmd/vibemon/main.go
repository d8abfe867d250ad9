// vibemon is a debug collector stand-in: it binds the collector ports, logs
// hello beacons and data frames, and acks data so a node under test drains
// its queue. The strength estimate it prints is a rough preview of the
// collector's analysis output, not a replacement for it.
package main

import (
	"flag"
	"log"
	"math"
	"net"
	"os"
	"strconv"

	"github.com/Skamba/VibeSensor-sub002/pkg/adxl345"
	"github.com/Skamba/VibeSensor-sub002/pkg/contracts"
	"github.com/Skamba/VibeSensor-sub002/pkg/wire"
)

var (
	dataPort    = contracts.ServerUDPDataPort
	controlPort = contracts.ServerUDPControlPort
	ackData     = true
)

func init() {
	if val := os.Getenv("VIBE_DATA_PORT"); val != "" {
		if p, err := strconv.Atoi(val); err == nil {
			dataPort = p
		}
	}
	flag.IntVar(&dataPort, "data-port", dataPort, "UDP port to receive data frames on.")
	flag.IntVar(&controlPort, "control-port", controlPort, "UDP port to receive hello beacons on.")
	flag.BoolVar(&ackData, "ack", ackData, "Acknowledge received data frames.")
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	go helloLoop()
	dataLoop()
}

func helloLoop() {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: controlPort})
	if err != nil {
		log.Fatalln(err)
	}
	var buf [2048]byte
	for {
		n, src, err := conn.ReadFromUDP(buf[:])
		if err != nil {
			log.Fatalln(err)
		}
		h, ok := wire.ParseHello(buf[:n])
		if !ok {
			log.Printf("%s: bad hello (%d bytes)", src, n)
			continue
		}
		log.Printf("%s: hello %s %q fw=%q ctl=%d %dHz x%d drops=%d",
			src.IP, h.ClientID.Hex(), h.Name, h.FirmwareVersion,
			h.ControlPort, h.SampleRateHz, h.FrameSamples, h.QueueOverflowDrops)
	}
}

func dataLoop() {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: dataPort})
	if err != nil {
		log.Fatalln(err)
	}
	var buf [65536]byte
	var ack [wire.DataAckBytes]byte
	for {
		n, src, err := conn.ReadFromUDP(buf[:])
		if err != nil {
			log.Fatalln(err)
		}
		d, ok := wire.ParseData(buf[:n])
		if !ok {
			log.Printf("%s: bad data frame (%d bytes)", src, n)
			continue
		}
		log.Printf("%s: %s seq=%d t0=%dus n=%d %s=%.1f",
			src.IP, d.ClientID.Hex(), d.Seq, d.T0US, len(d.Samples),
			contracts.FieldVibrationStrengthDB, strengthDB(d.Samples))
		if ackData {
			if m := wire.PackDataAck(ack[:], d.ClientID, d.Seq); m > 0 {
				conn.WriteToUDP(ack[:m], src)
			}
		}
	}
}

// strengthDB estimates the frame's vibration strength as the RMS of the
// sample magnitudes, in dB relative to one LSB.
func strengthDB(samples []adxl345.Sample) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		x, y, z := float64(s.X), float64(s.Y), float64(s.Z)
		sum += x*x + y*y + z*z
	}
	rms := math.Sqrt(sum / float64(len(samples)))
	if rms <= 0 {
		return 0
	}
	return 20 * math.Log10(rms)
}
