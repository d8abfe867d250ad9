package bus

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type wireTx struct {
	w []byte
	r int
}

// fakeWire scripts an addressed bus endpoint. Each Tx is recorded; fail
// forces every transaction to fail.
type fakeWire struct {
	txs  []wireTx
	fail error
	rx   []byte
}

func (f *fakeWire) Tx(w, r []byte) error {
	f.txs = append(f.txs, wireTx{w: append([]byte(nil), w...), r: len(r)})
	if f.fail != nil {
		return f.fail
	}
	copy(r, f.rx)
	return nil
}

func TestI2CReadReg(t *testing.T) {
	w := &fakeWire{rx: []byte{0xE5}}
	tr := NewI2C(w)
	v, err := tr.ReadReg(0x00)
	require.NoError(t, err)
	require.Equal(t, uint8(0xE5), v)
	// One combined transaction: register pointer write, then the read,
	// without releasing the bus in between.
	require.Equal(t, []wireTx{{w: []byte{0x00}, r: 1}}, w.txs)
}

func TestI2CReadRegFailureYieldsZero(t *testing.T) {
	w := &fakeWire{fail: errors.New("nack")}
	tr := NewI2C(w)
	v, err := tr.ReadReg(0x39)
	require.Error(t, err)
	require.Equal(t, uint8(0), v)
}

func TestI2CWriteReg(t *testing.T) {
	w := &fakeWire{}
	tr := NewI2C(w)
	require.NoError(t, tr.WriteReg(0x2D, 0x08))
	require.Equal(t, []wireTx{{w: []byte{0x2D, 0x08}, r: 0}}, w.txs)
}

func TestI2CReadMulti(t *testing.T) {
	w := &fakeWire{rx: []byte{1, 2, 3, 4, 5, 6}}
	tr := NewI2C(w)
	dst := make([]byte, 6)
	require.NoError(t, tr.ReadMulti(0x32, dst))
	require.Equal(t, []byte{1, 2, 3, 4, 5, 6}, dst)
	require.Equal(t, []wireTx{{w: []byte{0x32}, r: 6}}, w.txs)
}

func TestI2CReadMultiFailureZeroFills(t *testing.T) {
	w := &fakeWire{fail: errors.New("bus stuck")}
	tr := NewI2C(w)
	dst := []byte{0xDE, 0xAD, 0xBE, 0xEF, 0xDE, 0xAD}
	err := tr.ReadMulti(0x32, dst)
	require.Error(t, err)
	require.Equal(t, make([]byte, 6), dst, "failed multi read must not leave stale bytes")
}
