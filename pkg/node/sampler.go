package node

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/golang/glog"

	"github.com/Skamba/VibeSensor-sub002/pkg/adxl345"
	"github.com/Skamba/VibeSensor-sub002/pkg/reliability"
)

// Sampler paces acquisition at the configured rate against the wall clock,
// drains the driver in small batches, and builds outbound frames. When the
// sensor falls behind or away it accounts for the gap instead of inventing
// samples: synthetic or held readings would show up as artificial tones in
// the collector's spectrum.
type Sampler struct {
	driver        *adxl345.Driver
	queue         *frameQueue
	clockOffsetUS *atomic.Int64
	sampleRateHz  uint16
	frameSamples  int

	nowUS func() uint64 // test hook, defaults to bootUS

	build     []adxl345.Sample
	buildT0US uint64
	nextDueUS uint64

	batch      [sensorReadBatchSamples]adxl345.Sample
	batchCount int
	batchIndex int

	consecutiveErrors uint8
	lastReinitMS      uint32
	everReinit        bool

	readErrors     atomic.Uint32
	missedSamples  atomic.Uint32
	fifoTruncated  atomic.Uint32
	reinitAttempts atomic.Uint32
	reinitSuccess  atomic.Uint32
}

func newSampler(driver *adxl345.Driver, queue *frameQueue, offset *atomic.Int64, sampleRateHz, frameSamples uint16) *Sampler {
	return &Sampler{
		driver:        driver,
		queue:         queue,
		clockOffsetUS: offset,
		sampleRateHz:  sampleRateHz,
		frameSamples:  int(frameSamples),
		nowUS:         bootUS,
		build:         make([]adxl345.Sample, 0, frameSamples),
	}
}

// Run implements run.Runnable. The sampler is the single owner of the
// driver and the bus; nothing else may touch them while it runs.
func (s *Sampler) Run(ctx context.Context) error {
	tick := time.Second / time.Duration(s.sampleRateHz)
	if tick > time.Millisecond {
		tick = time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	s.nextDueUS = s.nowUS()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.service(s.nowUS())
		}
	}
}

// service keeps up with wall-clock sampling. Catch-up per tick is bounded;
// any remaining lag is converted to missed-sample accounting so the pace
// never drifts.
func (s *Sampler) service(now uint64) {
	stepUS := uint64(1000000) / uint64(s.sampleRateHz)
	catchUp := 0
	for int64(now-s.nextDueUS) >= 0 && catchUp < maxCatchUpSamplesPerTick {
		if !s.sampleOnce() {
			// No data ready. The lag accounting below covers the due
			// samples, so nothing is counted twice.
			break
		}
		s.nextDueUS += stepUS
		catchUp++
		now = s.nowUS()
	}

	if int64(now-s.nextDueUS) >= 0 {
		lagUS := now - s.nextDueUS
		skipped := lagUS/stepUS + 1
		s.missedSamples.Add(uint32(skipped))
		s.nextDueUS += skipped * stepUS
	}
}

func (s *Sampler) sampleOnce() bool {
	smp, ok := s.nextSensorSample()
	if !ok {
		return false
	}
	if len(s.build) == 0 {
		s.buildT0US = s.nextDueUS
	}
	s.build = append(s.build, smp)
	if len(s.build) >= s.frameSamples {
		t0 := uint64(int64(s.buildT0US) + s.clockOffsetUS.Load())
		s.queue.push(t0, s.build)
		s.build = s.build[:0]
	}
	return true
}

func (s *Sampler) nextSensorSample() (adxl345.Sample, bool) {
	if s.batchIndex >= s.batchCount {
		s.refillBatch()
	}
	if s.batchIndex >= s.batchCount {
		return adxl345.Sample{}, false
	}
	smp := s.batch[s.batchIndex]
	s.batchIndex++
	return smp, true
}

func (s *Sampler) refillBatch() {
	s.batchIndex, s.batchCount = 0, 0
	if !s.driver.Available() {
		s.maybeReinit(true)
		if !s.driver.Available() {
			return
		}
	}
	n, err := s.driver.ReadSamples(s.batch[:])
	// The driver is single-owner; mirror its counter into an atomic the
	// status reporter may read from its own goroutine.
	s.fifoTruncated.Store(s.driver.Stats().FIFOTruncated)
	if err != nil {
		s.readErrors.Add(1)
		s.consecutiveErrors = reliability.SaturatingIncU8(s.consecutiveErrors)
		s.maybeReinit(false)
		return
	}
	if n > 0 {
		s.consecutiveErrors = 0
	}
	s.batchCount = n
}

// maybeReinit re-runs device bring-up, either because the sensor never came
// up (force) or after enough consecutive read errors. Attempts are spaced
// by a cooldown so a dead bus is not hammered.
func (s *Sampler) maybeReinit(force bool) {
	if !force && s.consecutiveErrors < sensorReinitErrorThreshold {
		return
	}
	now := uint32(s.nowUS() / 1000)
	if s.everReinit && now-s.lastReinitMS < sensorReinitCooldownMS {
		return
	}
	s.lastReinitMS = now
	s.everReinit = true
	s.reinitAttempts.Add(1)
	if s.driver.Begin() {
		s.reinitSuccess.Add(1)
		s.consecutiveErrors = 0
		glog.Info("sensor brought up")
		return
	}
	glog.Warning("sensor bring-up failed, will retry")
}
