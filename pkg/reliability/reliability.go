// Package reliability provides the link-reliability policy for a telemetry
// node: clamping of configured sampling/framing parameters against hardware
// and datagram limits, and retry timing with jittered exponential backoff.
//
// Every function is pure and reentrant. Retry state (failure count, retry
// deadline) is owned by the caller, one per logical link.
package reliability

// BytesPerSample is the wire size of one x/y/z int16 sample triple.
const BytesPerSample = 6

// maxBackoffShift caps multiplicative backoff growth at 64x the base delay.
const maxBackoffShift = 6

// ClampSampleRate returns configuredHz clamped into [minHz, maxHz].
func ClampSampleRate(configuredHz, minHz, maxHz uint16) uint16 {
	if configuredHz < minHz {
		return minHz
	}
	if configuredHz > maxHz {
		return maxHz
	}
	return configuredHz
}

// ClampFrameSamples limits a configured per-frame sample count to what fits
// a single datagram after header overhead. A configured value of 0 means
// "at least one sample per frame".
func ClampFrameSamples(configuredSamples uint16, maxDatagramBytes, dataHeaderBytes int) uint16 {
	maxByDatagram := (maxDatagramBytes - dataHeaderBytes) / BytesPerSample
	if maxByDatagram < 0 {
		maxByDatagram = 0
	}
	hi := uint16(0xFFFF)
	if maxByDatagram < 0xFFFF {
		hi = uint16(maxByDatagram)
	}
	if configuredSamples == 0 {
		return 1
	}
	if configuredSamples > hi {
		return hi
	}
	return configuredSamples
}

// SaturatingIncU8 increments an 8-bit failure counter, holding at 255
// instead of wrapping to 0.
func SaturatingIncU8(value uint8) uint8 {
	if value == 0xFF {
		return value
	}
	return value + 1
}

// ComputeRetryDelayMS computes the next retry delay: exponential in
// failureCount (capped at 64x base), clamped to maxMS, then perturbed by up
// to +/-12.5% so retries from many nodes do not synchronize. randomValue
// supplies the entropy; pass 0 for a deterministic, unjittered delay.
func ComputeRetryDelayMS(baseMS, maxMS uint32, failureCount uint8, randomValue uint32) uint32 {
	shift := failureCount
	if shift > maxBackoffShift {
		shift = maxBackoffShift
	}
	delayMS := baseMS << shift
	if delayMS > maxMS {
		delayMS = maxMS
	}
	jitterSpan := delayMS / 4
	if jitterSpan == 0 {
		return delayMS
	}
	jittered := delayMS - jitterSpan/2 + randomValue%jitterSpan
	if jittered > maxMS {
		return maxMS
	}
	return jittered
}

// RetryDue reports whether a retry deadline has passed. A deadline of 0 is
// the sentinel for "due immediately". The comparison uses signed 32-bit
// subtraction so it stays correct across millisecond-counter rollover.
func RetryDue(nowMS, retryAtMS uint32) bool {
	return retryAtMS == 0 || int32(nowMS-retryAtMS) >= 0
}
