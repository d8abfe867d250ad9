// Package sh provides the ishell backed control shell for sensor nodes:
// discover nodes from their hello beacons, then issue identify and clock
// sync commands over the control protocol.
package sh

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"strconv"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/Skamba/VibeSensor-sub002/pkg/contracts"
	"github.com/Skamba/VibeSensor-sub002/pkg/wire"
)

// NodeInfo is one discovered node.
type NodeInfo struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Firmware     string `json:"firmware"`
	Host         string `json:"host"`
	ControlPort  uint16 `json:"control_port"`
	SampleRateHz uint16 `json:"sample_rate_hz"`
	FrameSamples uint16 `json:"frame_samples"`
	Drops        uint32 `json:"queue_overflow_drops"`
}

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	OutputJSON  bool

	Shell *ishell.Shell

	target     *net.UDPAddr
	targetID   wire.ClientID
	cmdSeq     uint32
	discovered map[string]NodeInfo
}

const (
	shellKey          = "$shell"
	unconnectedPrompt = "[none] > "

	cmdTimeout     = time.Second
	discoverWindow = 3 * time.Second
)

var (
	// flags

	evalOnly   bool
	outputJSON bool
	helloPort  = contracts.ServerUDPControlPort

	commands = []*ishell.Cmd{
		&DiscoverCmd,
		&ConnectCmd,
		&DisconnectCmd,
		&IdentifyCmd,
		&SyncClockCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
	flag.IntVar(&helloPort, "hello-port", helloPort, "UDP port to listen on for node hello beacons.")
}

// New creates a new shell.
func New() *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,

		Shell:      ishell.New(),
		discovered: make(map[string]NodeInfo),
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(unconnectedPrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// MustBeConnected wraps command func requires a connected node.
func MustBeConnected(fn func(c *ishell.Context)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		if ShellFrom(c).target == nil {
			c.Err(fmt.Errorf("not connected"))
			return
		}
		fn(c)
	}
}

// DiscoverNodes listens for hello beacons for one discovery window. It only
// works while the collector is not bound to the hello port.
func (s *Shell) DiscoverNodes() ([]NodeInfo, error) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: helloPort})
	if err != nil {
		return nil, fmt.Errorf("listen for hellos: %w", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(discoverWindow))

	var buf [2048]byte
	for {
		n, src, err := conn.ReadFromUDP(buf[:])
		if err != nil {
			break
		}
		h, ok := wire.ParseHello(buf[:n])
		if !ok {
			continue
		}
		info := NodeInfo{
			ID:           h.ClientID.Hex(),
			Name:         h.Name,
			Firmware:     h.FirmwareVersion,
			Host:         src.IP.String(),
			ControlPort:  h.ControlPort,
			SampleRateHz: h.SampleRateHz,
			FrameSamples: h.FrameSamples,
			Drops:        h.QueueOverflowDrops,
		}
		s.discovered[info.ID] = info
	}

	out := make([]NodeInfo, 0, len(s.discovered))
	for _, info := range s.discovered {
		out = append(out, info)
	}
	return out, nil
}

// Connect targets a node by MAC. The address comes from a prior discovery,
// or from an explicit host override.
func (s *Shell) Connect(mac, host string) error {
	id, ok := wire.ParseMAC(mac)
	if !ok {
		return fmt.Errorf("bad node id %q", mac)
	}
	info, known := s.discovered[id.Hex()]
	if host == "" {
		if !known {
			return fmt.Errorf("node %s not discovered, pass its host explicitly", id.Hex())
		}
		host = info.Host
	}
	port := contracts.NodeControlPortBase
	if known {
		port = int(info.ControlPort)
	}
	addr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return err
	}
	s.target = addr
	s.targetID = id
	s.Shell.SetPrompt(fmt.Sprintf("%s > ", id.Hex()))
	return nil
}

// Disconnect drops the current target.
func (s *Shell) Disconnect() {
	s.target = nil
	s.Shell.SetPrompt(unconnectedPrompt)
}

// DoCommand sends one already-encoded command datagram and waits for the
// node's ack.
func (s *Shell) DoCommand(c *ishell.Context, packet []byte, seq uint32) {
	conn, err := net.DialUDP("udp", nil, s.target)
	if err != nil {
		c.Err(err)
		return
	}
	defer conn.Close()
	if _, err := conn.Write(packet); err != nil {
		c.Err(err)
		return
	}
	conn.SetReadDeadline(time.Now().Add(cmdTimeout))
	var buf [64]byte
	for {
		n, err := conn.Read(buf[:])
		if err != nil {
			c.Err(fmt.Errorf("command timeout"))
			return
		}
		ack, ok := wire.ParseAck(buf[:n])
		if !ok || ack.CmdSeq != seq {
			continue
		}
		if ack.Status != 0 {
			c.Err(fmt.Errorf("node rejected command (status %d)", ack.Status))
			return
		}
		c.Println("OK")
		return
	}
}

func (s *Shell) nextSeq() uint32 {
	s.cmdSeq++
	return s.cmdSeq
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

var (
	// DiscoverCmd lists nodes heard on the hello port.
	DiscoverCmd = ishell.Cmd{
		Name:    "discover",
		Aliases: []string{"list", "l"},
		Help:    "",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			infoList, err := s.DiscoverNodes()
			if err != nil {
				c.Err(err)
				return
			}
			if s.OutputJSON {
				if len(infoList) == 0 {
					infoList = []NodeInfo{}
				}
				out, err := json.Marshal(infoList)
				if err != nil {
					c.Err(err)
					return
				}
				c.Println(string(out))
				return
			}
			if len(infoList) == 0 {
				c.Println("No nodes heard")
				return
			}
			for _, info := range infoList {
				c.Printf("%s %s (%s) %s:%d %dHz x%d drops=%d\n",
					info.ID, info.Name, info.Firmware,
					info.Host, info.ControlPort,
					info.SampleRateHz, info.FrameSamples, info.Drops)
			}
		},
	}

	// ConnectCmd targets a node.
	ConnectCmd = ishell.Cmd{
		Name:    "connect",
		Aliases: []string{"c"},
		Help:    "MAC [HOST]",
		Func: func(c *ishell.Context) {
			if len(c.Args) == 0 {
				c.Err(fmt.Errorf("node MAC expected"))
				return
			}
			host := ""
			if len(c.Args) > 1 {
				host = c.Args[1]
			}
			if err := ShellFrom(c).Connect(c.Args[0], host); err != nil {
				c.Err(err)
			}
		},
	}

	// DisconnectCmd drops the current target.
	DisconnectCmd = ishell.Cmd{
		Name:    "disconnect",
		Aliases: []string{"d"},
		Help:    "",
		Func: func(c *ishell.Context) {
			ShellFrom(c).Disconnect()
		},
	}

	// IdentifyCmd makes the targeted node identify itself.
	IdentifyCmd = ishell.Cmd{
		Name: "identify",
		Help: "[DURATION_MS]",
		Func: MustBeConnected(func(c *ishell.Context) {
			s := ShellFrom(c)
			duration := uint64(2000)
			if len(c.Args) > 0 {
				var err error
				if duration, err = strconv.ParseUint(c.Args[0], 10, 16); err != nil {
					c.Err(fmt.Errorf("bad duration %q", c.Args[0]))
					return
				}
			}
			seq := s.nextSeq()
			var buf [wire.CmdIdentifyBytes]byte
			wire.PackCmdIdentify(buf[:], s.targetID, seq, uint16(duration))
			s.DoCommand(c, buf[:], seq)
		}),
	}

	// SyncClockCmd pushes this host's clock to the targeted node.
	SyncClockCmd = ishell.Cmd{
		Name:    "syncclock",
		Aliases: []string{"sync"},
		Help:    "",
		Func: MustBeConnected(func(c *ishell.Context) {
			s := ShellFrom(c)
			seq := s.nextSeq()
			var buf [wire.CmdSyncClockBytes]byte
			wire.PackCmdSyncClock(buf[:], s.targetID, seq, uint64(time.Now().UnixMicro()))
			s.DoCommand(c, buf[:], seq)
		}),
	}
)

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	New().Run(flag.Args()...)
}
