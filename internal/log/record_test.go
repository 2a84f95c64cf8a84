package log

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecordRoundTrip(t *testing.T) {
	cases := []*Record{
		{Offset: 0, Timestamp: 1_700_000_000_000, Key: []byte("k"), Value: []byte{0x01, 0x02}},
		{Offset: 42, Timestamp: 1, Key: nil, Value: []byte("hello world")},
		{Offset: 7, Timestamp: 0, Key: []byte{}, Value: []byte{}},
	}

	for _, want := range cases {
		var buf bytes.Buffer
		n, err := Encode(want, &buf)
		require.NoError(t, err)
		require.Equal(t, want.BinarySize(), n)

		got, err := Decode(&buf)
		require.NoError(t, err)
		require.Equal(t, want.Offset, got.Offset)
		require.Equal(t, want.Timestamp, got.Timestamp)
		require.Equal(t, want.Value, got.Value)
		if len(want.Key) == 0 {
			require.Nil(t, got.Key)
		} else {
			require.Equal(t, want.Key, got.Key)
		}
	}
}

func TestRecordBinarySize(t *testing.T) {
	r := &Record{Key: []byte("test_key"), Value: []byte("test_value")}
	require.Equal(t, 8+16+4+8+4+10, r.BinarySize())
}

func TestRecordDecodeTruncated(t *testing.T) {
	r := &Record{Key: []byte("k"), Value: []byte("value")}
	var buf bytes.Buffer
	_, err := Encode(r, &buf)
	require.NoError(t, err)

	truncated := bytes.NewReader(buf.Bytes()[:buf.Len()-3])
	_, err = Decode(truncated)
	require.ErrorIs(t, err, ErrTruncated)
}

func TestRecordAbsentKey(t *testing.T) {
	r := &Record{Value: []byte{0, 0, 1, 0}}
	var buf bytes.Buffer
	_, err := Encode(r, &buf)
	require.NoError(t, err)

	got, err := Decode(&buf)
	require.NoError(t, err)
	require.Nil(t, got.Key)
	require.Equal(t, r.Value, got.Value)
}
