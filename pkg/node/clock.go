package node

import "time"

var processStart = time.Now()

// bootUS is the node's monotonic time base: microseconds since process
// start. Frame timestamps are bootUS plus the collector-supplied clock
// offset.
func bootUS() uint64 {
	return uint64(time.Since(processStart).Microseconds())
}

// bootMS32 is the truncated 32-bit millisecond counter used with the
// wraparound-safe reliability helpers.
func bootMS32() uint32 {
	return uint32(bootUS() / 1000)
}
