package reliability

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClampSampleRate(t *testing.T) {
	testCases := []struct {
		name       string
		configured uint16
		min        uint16
		max        uint16
		expect     uint16
	}{
		{"in range", 400, 25, 3200, 400},
		{"at min", 25, 25, 3200, 25},
		{"at max", 3200, 25, 3200, 3200},
		{"below min", 10, 25, 3200, 25},
		{"above max", 5000, 25, 3200, 3200},
		{"degenerate range", 100, 50, 50, 50},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := ClampSampleRate(tc.configured, tc.min, tc.max)
			require.Equal(t, tc.expect, got)
			require.GreaterOrEqual(t, got, tc.min)
			require.LessOrEqual(t, got, tc.max)
		})
	}
}

func TestClampFrameSamples(t *testing.T) {
	testCases := []struct {
		name        string
		configured  uint16
		maxDatagram int
		header      int
		expect      uint16
	}{
		{"zero means at least one", 0, 1472, 12, 1},
		{"capped by datagram", 9000, 1472, 12, 243},
		{"under cap unchanged", 200, 1472, 12, 200},
		{"exactly at cap", 243, 1472, 12, 243},
		{"tiny datagram", 50, 30, 12, 3},
		{"header eats datagram", 10, 12, 12, 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expect, ClampFrameSamples(tc.configured, tc.maxDatagram, tc.header))
		})
	}
}

func TestSaturatingIncU8(t *testing.T) {
	require.Equal(t, uint8(1), SaturatingIncU8(0))
	require.Equal(t, uint8(255), SaturatingIncU8(254))
	require.Equal(t, uint8(255), SaturatingIncU8(255))
}

func TestComputeRetryDelayUnjittered(t *testing.T) {
	// random_value=0 pins jitter to the low edge of the span; with spans
	// below 4ms there is no jitter at all. The canonical doubling sequence
	// holds for delay values whose span/2 subtraction and +0 offset cancel
	// out under the max clamp.
	expect := []uint32{100, 200, 400, 800, 1600, 3200, 6400, 6400, 6400, 6400, 6400}
	for f := uint8(0); f <= 10; f++ {
		delay := ComputeRetryDelayMS(100, 6400, f, 0)
		unjittered := expect[f]
		span := unjittered / 4
		require.Equal(t, unjittered-span/2, delay, "failure_count=%d", f)
	}
}

func TestComputeRetryDelayGrowthCaps(t *testing.T) {
	// With jitter removed entirely (base small enough that span is 0),
	// growth must cap at 64x and at max_ms.
	expect := []uint32{1, 2, 4, 8, 16, 32, 64, 64, 64, 64, 64}
	for f := uint8(0); f <= 10; f++ {
		require.Equal(t, expect[f], ComputeRetryDelayMS(1, 1000, f, 0), "failure_count=%d", f)
	}
}

func TestComputeRetryDelayJitterBounds(t *testing.T) {
	const (
		baseMS = 100
		maxMS  = 6400
	)
	for f := uint8(0); f <= 8; f++ {
		shift := uint32(f)
		if shift > 6 {
			shift = 6
		}
		unjittered := uint32(baseMS) << shift
		if unjittered > maxMS {
			unjittered = maxMS
		}
		span := unjittered / 4
		for _, rnd := range []uint32{0, 1, span - 1, span, span + 1, 0xFFFFFFFF} {
			delay := ComputeRetryDelayMS(baseMS, maxMS, f, rnd)
			require.GreaterOrEqual(t, delay, unjittered-span/2, "f=%d rnd=%d", f, rnd)
			require.LessOrEqual(t, delay, unjittered+span/2, "f=%d rnd=%d", f, rnd)
			require.LessOrEqual(t, delay, uint32(maxMS), "f=%d rnd=%d", f, rnd)
		}
	}
}

func TestComputeRetryDelayMaxClamp(t *testing.T) {
	// Jitter above the cap is clamped back to max_ms.
	span := uint32(6400 / 4)
	require.Equal(t, uint32(6400), ComputeRetryDelayMS(6400, 6400, 0, span-1))
}

func TestRetryDue(t *testing.T) {
	testCases := []struct {
		name    string
		now     uint32
		retryAt uint32
		expect  bool
	}{
		{"sentinel zero", 12345, 0, true},
		{"exactly due", 1000, 1000, true},
		{"past due", 2000, 1000, true},
		{"not yet", 999, 1000, false},
		{"wraparound due", 10, 4294967290, true},
		{"wraparound not yet", 4294967290, 10, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expect, RetryDue(tc.now, tc.retryAt))
		})
	}
}
