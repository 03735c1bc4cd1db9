package codec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	type inner struct {
		A uint64
		B []byte
		C []uint64
	}
	x := inner{A: 42, B: []byte("hello"), C: []uint64{1, 2, 3}}

	enc, err := EncodeToBytes(x)
	require.NoError(t, err)

	var out inner
	require.NoError(t, DecodeBytes(enc, &out))
	require.Equal(t, x, out)
}

func TestDecodeBytesRejectsTrailingData(t *testing.T) {
	enc, err := EncodeToBytes(uint64(7))
	require.NoError(t, err)
	enc = append(enc, 0x00)

	var out uint64
	err = DecodeBytes(enc, &out)
	require.ErrorIs(t, err, ErrInvalidRLP)
}

func TestSplitJoinEnvelope(t *testing.T) {
	legacy := []byte{0xc2, 0x01, 0x02}
	typ, body, err := SplitEnvelope(legacy)
	require.NoError(t, err)
	require.Equal(t, LegacyEnvelope, typ)
	require.Equal(t, legacy, body)
	require.Equal(t, legacy, JoinEnvelope(typ, body))

	typed := []byte{0x05, 0xc1, 0x01}
	typ, body, err = SplitEnvelope(typed)
	require.NoError(t, err)
	require.Equal(t, EnvelopeType(0x05), typ)
	require.Equal(t, []byte{0xc1, 0x01}, body)
	require.Equal(t, typed, JoinEnvelope(typ, body))
}

func TestSplitEnvelopeRejectsEmptyAndTruncated(t *testing.T) {
	_, _, err := SplitEnvelope(nil)
	require.ErrorIs(t, err, ErrInvalidRLP)

	_, _, err = SplitEnvelope([]byte{0x05})
	require.ErrorIs(t, err, ErrInvalidRLP)
}
