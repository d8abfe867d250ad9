package node

import (
	"context"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/golang/glog"

	"github.com/Skamba/VibeSensor-sub002/pkg/wire"
)

// Command ack status codes.
const (
	ackStatusOK         = 0
	ackStatusUnknownCmd = 1
)

// Control owns the node's control socket. It announces the node to the
// collector with a periodic hello and executes the commands the collector
// sends back: identify and clock sync.
type Control struct {
	clientID      wire.ClientID
	cfg           Config
	queue         *frameQueue
	clockOffsetUS *atomic.Int64
	onIdentify    func(durationMS uint16)

	boundPort int

	helloSent      atomic.Uint32
	cmdsHandled    atomic.Uint32
	cmdParseErrors atomic.Uint32
	clockSyncs     atomic.Uint32
}

func newControl(clientID wire.ClientID, cfg Config, queue *frameQueue, offset *atomic.Int64, onIdentify func(durationMS uint16)) *Control {
	return &Control{
		clientID:      clientID,
		cfg:           cfg,
		queue:         queue,
		clockOffsetUS: offset,
		onIdentify:    onIdentify,
	}
}

// Run implements run.Runnable.
func (c *Control) Run(ctx context.Context) error {
	server, err := net.ResolveUDPAddr("udp",
		net.JoinHostPort(c.cfg.Server.Host, fmt.Sprint(c.cfg.Server.ControlPort)))
	if err != nil {
		return fmt.Errorf("control: resolve collector: %w", err)
	}
	conn, err := c.listen()
	if err != nil {
		return err
	}
	defer conn.Close()
	glog.Infof("control: listening on udp port %d as %s", c.boundPort, c.clientID.Hex())

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		c.readLoop(conn)
	}()

	// First hello right away so the collector learns about the node
	// without waiting out an interval.
	c.sendHello(conn, server)
	ticker := time.NewTicker(helloInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			conn.Close()
			<-readDone
			return ctx.Err()
		case <-ticker.C:
			c.sendHello(conn, server)
		}
	}
}

// listen binds the first free port in the node control range. Several nodes
// can share a host; each scans past its siblings.
func (c *Control) listen() (*net.UDPConn, error) {
	base := c.cfg.Node.ControlPort
	var lastErr error
	for port := base; port < base+controlPortScanRange; port++ {
		conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: port})
		if err == nil {
			c.boundPort = port
			return conn, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("control: no free port in %d..%d: %w", base, base+controlPortScanRange-1, lastErr)
}

func (c *Control) sendHello(conn *net.UDPConn, server *net.UDPAddr) {
	var buf [wire.HelloFixedBytes + 2*64]byte
	n := wire.PackHello(buf[:], wire.Hello{
		ClientID:           c.clientID,
		ControlPort:        uint16(c.boundPort),
		SampleRateHz:       c.cfg.Node.SampleRateHz,
		FrameSamples:       c.cfg.Node.FrameSamples,
		Name:               c.cfg.Node.Name,
		FirmwareVersion:    c.cfg.Node.FirmwareVersion,
		QueueOverflowDrops: c.queue.overflowDropCount(),
	})
	if n == 0 {
		return
	}
	if _, err := conn.WriteToUDP(buf[:n], server); err != nil {
		glog.V(2).Infof("control: hello: %v", err)
		return
	}
	c.helloSent.Add(1)
}

func (c *Control) readLoop(conn *net.UDPConn) {
	var buf [256]byte
	for {
		n, src, err := conn.ReadFromUDP(buf[:])
		if err != nil {
			return
		}
		cmd, ok := wire.ParseCmd(buf[:n], c.clientID)
		if !ok {
			c.cmdParseErrors.Add(1)
			continue
		}
		c.handleCmd(conn, src, cmd)
	}
}

func (c *Control) handleCmd(conn *net.UDPConn, src *net.UDPAddr, cmd wire.Cmd) {
	status := uint8(ackStatusOK)
	switch cmd.ID {
	case wire.CmdIdentify:
		dur := cmd.IdentifyDurationMS
		if dur > maxIdentifyDurationMS {
			dur = maxIdentifyDurationMS
		}
		glog.Infof("control: identify for %dms", dur)
		if c.onIdentify != nil {
			c.onIdentify(dur)
		}
	case wire.CmdSyncClock:
		offset := int64(cmd.ServerTimeUS) - int64(bootUS())
		c.clockOffsetUS.Store(offset)
		c.clockSyncs.Add(1)
		glog.V(1).Infof("control: clock offset set to %dus", offset)
	default:
		glog.Warningf("control: unknown command %d", cmd.ID)
		status = ackStatusUnknownCmd
	}
	c.cmdsHandled.Add(1)

	var buf [wire.AckBytes]byte
	if n := wire.PackAck(buf[:], c.clientID, cmd.Seq, status); n > 0 {
		if _, err := conn.WriteToUDP(buf[:n], src); err != nil {
			glog.V(2).Infof("control: ack: %v", err)
		}
	}
}
