package node

import (
	"context"
	"encoding/json"
	"time"

	"github.com/golang/glog"

	"github.com/Skamba/VibeSensor-sub002/pkg/mq"
)

// StatusSnapshot is the node's runtime counters at one instant.
type StatusSnapshot struct {
	ClientID      string `json:"client_id"`
	UptimeS       uint64 `json:"uptime_s"`
	ClockOffsetUS int64  `json:"clock_offset_us"`

	QueueDepth    int    `json:"queue_depth"`
	QueueCapacity int    `json:"queue_capacity"`
	OverflowDrops uint32 `json:"overflow_drops"`

	TxFrames    uint32 `json:"tx_frames"`
	TxErrors    uint32 `json:"tx_errors"`
	AckedFrames uint32 `json:"acked_frames"`
	PackDrops   uint32 `json:"pack_drops"`

	ReadErrors     uint32 `json:"read_errors"`
	MissedSamples  uint32 `json:"missed_samples"`
	FIFOTruncated  uint32 `json:"fifo_truncated"`
	ReinitAttempts uint32 `json:"reinit_attempts"`
	ReinitSuccess  uint32 `json:"reinit_success"`

	HelloSent      uint32 `json:"hello_sent"`
	CmdsHandled    uint32 `json:"cmds_handled"`
	CmdParseErrors uint32 `json:"cmd_parse_errors"`
	ClockSyncs     uint32 `json:"clock_syncs"`
}

// statusReporter periodically logs a compact counter line and, when an MQTT
// broker is configured, publishes the snapshot as JSON for dashboards.
type statusReporter struct {
	snapshot func() StatusSnapshot
	broker   *mq.Queue
	topic    string

	connected bool
	disabled  bool
}

func newStatusReporter(snapshot func() StatusSnapshot, cfg StatusConfig) (*statusReporter, error) {
	r := &statusReporter{snapshot: snapshot, topic: cfg.Topic}
	if cfg.MQTTURL != "" {
		broker, err := mq.NewQueueFromURL(cfg.MQTTURL)
		if err != nil {
			return nil, err
		}
		r.broker = broker
	}
	return r, nil
}

// Run implements run.Runnable.
func (r *statusReporter) Run(ctx context.Context) error {
	ticker := time.NewTicker(statusReportInterval)
	defer ticker.Stop()
	defer func() {
		if r.broker != nil && r.connected {
			r.broker.Close()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.report()
		}
	}
}

func (r *statusReporter) report() {
	s := r.snapshot()
	glog.Infof("status: up=%ds q=%d/%d drops=%d tx=%d txerr=%d acked=%d readerr=%d missed=%d reinit=%d/%d",
		s.UptimeS, s.QueueDepth, s.QueueCapacity, s.OverflowDrops,
		s.TxFrames, s.TxErrors, s.AckedFrames,
		s.ReadErrors, s.MissedSamples, s.ReinitSuccess, s.ReinitAttempts)
	r.publish(s)
}

func (r *statusReporter) publish(s StatusSnapshot) {
	if r.broker == nil || r.disabled {
		return
	}
	if !r.connected {
		if err := r.broker.Connect(); err != nil {
			// A node must keep streaming with or without a broker.
			glog.Warningf("status: mqtt connect failed, disabling publish: %v", err)
			r.disabled = true
			return
		}
		r.connected = true
	}
	payload, err := json.Marshal(s)
	if err != nil {
		return
	}
	if err := r.broker.Pub(r.topic, payload); err != nil {
		glog.V(2).Infof("status: publish: %v", err)
	}
}
