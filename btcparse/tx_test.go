package btcparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1sixtech/mojave-bridge-go/common"
)

func TestScanOutputs(t *testing.T) {
	outputs := []TxOutput{
		{Value: 50000, PkScript: []byte{0x00, 0x14, 0xaa, 0xbb}},
		{Value: 0, PkScript: BuildOpReturnScript([]byte("payload"))},
		{Value: 12345, PkScript: []byte{0x51}},
	}
	raw := BuildRawTx(2, outputs, false)

	got, err := ScanOutputs(raw)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, out := range outputs {
		assert.Equal(t, out.Value, got[i].Value)
		assert.Equal(t, out.PkScript, got[i].PkScript)
		assert.Equal(t, uint32(i), got[i].Index)
	}
}

func TestScanOutputsSegwit(t *testing.T) {
	outputs := []TxOutput{{Value: 700, PkScript: []byte{0x51, 0x52}}}
	raw := BuildRawTx(1, outputs, true)

	got, err := ScanOutputs(raw)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, uint64(700), got[0].Value)
}

func TestScanOutputsTruncated(t *testing.T) {
	raw := BuildRawTx(1, []TxOutput{{Value: 10, PkScript: []byte{0x51}}}, false)

	// chop bytes off at every boundary; all must fail cleanly, none may panic
	for cut := 1; cut < len(raw)-5; cut++ {
		_, err := ScanOutputs(raw[:cut])
		if err == nil {
			// a cut inside the trailing locktime still leaves whole outputs
			assert.GreaterOrEqual(t, cut, len(raw)-4)
		}
	}

	_, err := ScanOutputs(nil)
	assert.Error(t, err)
}

func TestScanOutputsRejectsHugeCounts(t *testing.T) {
	raw := appendUint32LE(nil, 2)
	raw = AppendVarInt(raw, uint64(maxTxItems)+1)
	_, err := ScanOutputs(raw)
	assert.ErrorIs(t, err, ErrCountTooLarge)

	raw = appendUint32LE(nil, 2)
	raw = AppendVarInt(raw, 1)
	raw = append(raw, make([]byte, 36)...)
	raw = AppendVarInt(raw, uint64(maxScriptLen)+1)
	_, err = ScanOutputs(raw)
	assert.ErrorIs(t, err, ErrScriptTooLong)
}

func TestExtractOpReturn(t *testing.T) {
	short := []byte("hello")
	payload, ok := ExtractOpReturn(BuildOpReturnScript(short))
	require.True(t, ok)
	assert.Equal(t, short, payload)

	// 108-byte envelope payload takes the OP_PUSHDATA1 path
	long := common.RandBytes(108)
	payload, ok = ExtractOpReturn(BuildOpReturnScript(long))
	require.True(t, ok)
	assert.Equal(t, long, payload)

	wide := common.RandBytes(300)
	payload, ok = ExtractOpReturn(BuildOpReturnScript(wide))
	require.True(t, ok)
	assert.Equal(t, wide, payload)
}

func TestExtractOpReturnRejects(t *testing.T) {
	// not OP_RETURN
	_, ok := ExtractOpReturn([]byte{0x51, 0x01, 0xaa})
	assert.False(t, ok)

	// declared push longer than the script
	_, ok = ExtractOpReturn([]byte{opReturn, 0x05, 0x01})
	assert.False(t, ok)

	// trailing garbage after the push
	script := append(BuildOpReturnScript([]byte("x")), 0x00)
	_, ok = ExtractOpReturn(script)
	assert.False(t, ok)

	_, ok = ExtractOpReturn([]byte{opReturn})
	assert.False(t, ok)
}
