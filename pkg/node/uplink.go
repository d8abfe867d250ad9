package node

import (
	"context"
	"fmt"
	"math/rand"
	"net"
	"sync/atomic"
	"time"

	"github.com/golang/glog"
	"golang.org/x/net/ipv4"

	"github.com/Skamba/VibeSensor-sub002/pkg/reliability"
	"github.com/Skamba/VibeSensor-sub002/pkg/wire"
)

// dscpEF marks data packets Expedited Forwarding so sample frames win over
// bulk traffic on a congested uplink. TOS byte, so DSCP 46 shifted left 2.
const dscpEF = 0xb8

// Uplink drains the frame queue toward the collector's data port over UDP
// and trims it on cumulative acks. Send failures feed a jittered exponential
// backoff; the queue keeps absorbing samples while the uplink waits, so a
// network blip costs latency, not data.
type Uplink struct {
	queue    *frameQueue
	clientID wire.ClientID
	addr     string

	nowMS func() uint32 // test hook, defaults to bootMS32
	rnd   *rand.Rand

	retryFailureCount uint8
	retryAtMS         uint32

	buf [maxUDPPayloadBytes]byte

	txFrames    atomic.Uint32
	txErrors    atomic.Uint32
	ackedFrames atomic.Uint32
	packDrops   atomic.Uint32
}

func newUplink(queue *frameQueue, clientID wire.ClientID, host string, dataPort int) *Uplink {
	return &Uplink{
		queue:    queue,
		clientID: clientID,
		addr:     net.JoinHostPort(host, fmt.Sprint(dataPort)),
		nowMS:    bootMS32,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Run implements run.Runnable.
func (u *Uplink) Run(ctx context.Context) error {
	conn, err := net.Dial("udp", u.addr)
	if err != nil {
		return fmt.Errorf("uplink: dial %s: %w", u.addr, err)
	}
	defer conn.Close()
	if err := ipv4.NewConn(conn).SetTOS(dscpEF); err != nil {
		glog.V(2).Infof("uplink: set tos: %v", err)
	}
	go u.readAcks(conn)

	ticker := time.NewTicker(dataTxInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			u.serviceTX(conn, u.nowMS())
		}
	}
}

// serviceTX sends up to maxTxFramesPerPass due frames. A frame stays queued
// until acked; between sends it is only retried on the retransmit cadence.
func (u *Uplink) serviceTX(conn net.Conn, now uint32) {
	if !reliability.RetryDue(now, u.retryAtMS) {
		return
	}
	for i := 0; i < maxTxFramesPerPass; i++ {
		item, ok := u.queue.peekSendable(now, dataRetransmitIntervalMS)
		if !ok {
			return
		}
		n := wire.PackData(u.buf[:], u.clientID, item.seq, item.t0US, item.samples)
		if n == 0 {
			// Frame cannot fit the payload cap. Unsendable forever,
			// so drop it rather than wedge the queue.
			u.queue.dropFront()
			u.packDrops.Add(1)
			continue
		}
		if _, err := conn.Write(u.buf[:n]); err != nil {
			u.txErrors.Add(1)
			u.retryFailureCount = reliability.SaturatingIncU8(u.retryFailureCount)
			delay := reliability.ComputeRetryDelayMS(retryBackoffBaseMS, retryBackoffMaxMS, u.retryFailureCount, u.rnd.Uint32())
			u.retryAtMS = now + delay
			if u.retryAtMS == 0 {
				u.retryAtMS = 1
			}
			glog.V(2).Infof("uplink: send seq=%d failed (attempt %d, retry in %dms): %v", item.seq, u.retryFailureCount, delay, err)
			return
		}
		u.retryFailureCount = 0
		u.retryAtMS = 0
		u.queue.markTransmitted(item.seq, now)
		u.txFrames.Add(1)
	}
}

// readAcks trims the queue on the collector's cumulative data acks. Exits
// when the connection is closed.
func (u *Uplink) readAcks(conn net.Conn) {
	var buf [64]byte
	for {
		n, err := conn.Read(buf[:])
		if err != nil {
			return
		}
		if seq, ok := wire.ParseDataAck(buf[:n], u.clientID); ok {
			trimmed := u.queue.ackThrough(seq)
			u.ackedFrames.Add(uint32(trimmed))
		}
	}
}
