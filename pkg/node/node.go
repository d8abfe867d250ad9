package node

import (
	"sync/atomic"

	"github.com/golang/glog"

	"github.com/Skamba/VibeSensor-sub002/pkg/adxl345"
	"github.com/Skamba/VibeSensor-sub002/pkg/run"
	"github.com/Skamba/VibeSensor-sub002/pkg/wire"
)

// Node ties the pieces of a telemetry node together: one sampler owning the
// sensor, one uplink draining the shared frame queue, one control channel,
// and one status reporter. All cross-goroutine state is the locked queue and
// a handful of atomics.
type Node struct {
	cfg      Config
	clientID wire.ClientID
	driver   *adxl345.Driver
	closeBus func() error

	queue         *frameQueue
	clockOffsetUS atomic.Int64

	sampler *Sampler
	uplink  *Uplink
	control *Control
	status  *statusReporter

	identifyUntilMS atomic.Uint32
}

// New assembles a node. closeBus releases the sensor bus on shutdown and may
// be nil. onIdentify is invoked when the collector asks the node to make
// itself visible; when nil the node only tracks the identify deadline.
func New(cfg Config, clientID wire.ClientID, driver *adxl345.Driver, closeBus func() error, onIdentify func(durationMS uint16)) (*Node, error) {
	n := &Node{
		cfg:      cfg,
		clientID: clientID,
		driver:   driver,
		closeBus: closeBus,
		queue:    newFrameQueue(cfg.Node.QueueLen),
	}
	identify := func(durationMS uint16) {
		n.identifyUntilMS.Store(bootMS32() + uint32(durationMS))
		if onIdentify != nil {
			onIdentify(durationMS)
		}
	}
	n.sampler = newSampler(driver, n.queue, &n.clockOffsetUS, cfg.Node.SampleRateHz, cfg.Node.FrameSamples)
	n.uplink = newUplink(n.queue, clientID, cfg.Server.Host, cfg.Server.DataPort)
	n.control = newControl(clientID, cfg, n.queue, &n.clockOffsetUS, identify)
	status, err := newStatusReporter(n.Snapshot, cfg.Status)
	if err != nil {
		return nil, err
	}
	n.status = status
	return n, nil
}

// Runnables returns the node's long-running tasks for a run.Runner.
func (n *Node) Runnables() []run.Runnable {
	return []run.Runnable{
		run.NamedRun("sampler", n.sampler),
		run.NamedRun("uplink", n.uplink),
		run.NamedRun("control", n.control),
		run.NamedRun("status", n.status),
	}
}

// IdentifyActive reports whether an identify request is still in effect.
func (n *Node) IdentifyActive() bool {
	until := n.identifyUntilMS.Load()
	return until != 0 && int32(bootMS32()-until) < 0
}

// Snapshot collects the node's runtime counters.
func (n *Node) Snapshot() StatusSnapshot {
	return StatusSnapshot{
		ClientID:      n.clientID.Hex(),
		UptimeS:       bootUS() / 1000000,
		ClockOffsetUS: n.clockOffsetUS.Load(),

		QueueDepth:    n.queue.depth(),
		QueueCapacity: n.queue.capacity(),
		OverflowDrops: n.queue.overflowDropCount(),

		TxFrames:    n.uplink.txFrames.Load(),
		TxErrors:    n.uplink.txErrors.Load(),
		AckedFrames: n.uplink.ackedFrames.Load(),
		PackDrops:   n.uplink.packDrops.Load(),

		ReadErrors:     n.sampler.readErrors.Load(),
		MissedSamples:  n.sampler.missedSamples.Load(),
		FIFOTruncated:  n.sampler.fifoTruncated.Load(),
		ReinitAttempts: n.sampler.reinitAttempts.Load(),
		ReinitSuccess:  n.sampler.reinitSuccess.Load(),

		HelloSent:      n.control.helloSent.Load(),
		CmdsHandled:    n.control.cmdsHandled.Load(),
		CmdParseErrors: n.control.cmdParseErrors.Load(),
		ClockSyncs:     n.control.clockSyncs.Load(),
	}
}

// Close releases the sensor bus.
func (n *Node) Close() error {
	if n.closeBus == nil {
		return nil
	}
	if err := n.closeBus(); err != nil {
		glog.Warningf("node: bus close: %v", err)
		return err
	}
	return nil
}
