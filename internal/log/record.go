// this file implements the binary codec for a single record: the smallest
// unit of data appended to a partition
package log

import (
	"encoding/binary"
	"errors"
	"io"
)

// encoding used for every fixed-width field in a record or index entry
var enc = binary.BigEndian

const (
	offsetWidth    = 8
	timestampWidth = 16
	keyLenWidth    = 4
	valueLenWidth  = 4

	// width of the fixed header read before key/value bytes: offset,
	// timestamp, key_len
	recordHeaderWidth = offsetWidth + timestampWidth + keyLenWidth
)

// ErrTruncated is returned by Decode when the source ends before a
// complete record frame has been read.
var ErrTruncated = errors.New("log: truncated record")

// Record is an immutable event at a position in the partition. Key is nil
// when absent; Value is never nil (it may be empty).
type Record struct {
	Offset uint64
	// milliseconds since the Unix epoch, encoded on the wire as a 128-bit
	// big-endian integer whose high 64 bits are always zero
	Timestamp uint64
	Key       []byte
	Value     []byte
}

// BinarySize returns the exact number of bytes Encode writes for r.
func (r *Record) BinarySize() int {
	return offsetWidth + timestampWidth + keyLenWidth + len(r.Key) + valueLenWidth + len(r.Value)
}

// Encode writes r's wire format to sink and returns the number of bytes
// written, which always equals r.BinarySize().
func Encode(r *Record, sink io.Writer) (int, error) {
	buf := make([]byte, r.BinarySize())
	pos := 0

	enc.PutUint64(buf[pos:], r.Offset)
	pos += offsetWidth

	// high 64 bits of the 128-bit timestamp are unused; wall-clock millis
	// since epoch fit comfortably in the low 64
	enc.PutUint64(buf[pos:], 0)
	pos += 8
	enc.PutUint64(buf[pos:], r.Timestamp)
	pos += 8

	enc.PutUint32(buf[pos:], uint32(len(r.Key)))
	pos += keyLenWidth
	pos += copy(buf[pos:], r.Key)

	enc.PutUint32(buf[pos:], uint32(len(r.Value)))
	pos += valueLenWidth
	pos += copy(buf[pos:], r.Value)

	return sink.Write(buf)
}

// Decode reads and validates one record frame from source. A key_len of
// zero decodes to a nil Key.
func Decode(source io.Reader) (*Record, error) {
	hdr := make([]byte, recordHeaderWidth)
	if _, err := io.ReadFull(source, hdr); err != nil {
		return nil, truncatedErr(err)
	}
	offset := enc.Uint64(hdr[0:8])
	timestamp := enc.Uint64(hdr[16:24])
	keyLen := enc.Uint32(hdr[24:28])

	var key []byte
	if keyLen > 0 {
		key = make([]byte, keyLen)
		if _, err := io.ReadFull(source, key); err != nil {
			return nil, truncatedErr(err)
		}
	}

	var vlBuf [valueLenWidth]byte
	if _, err := io.ReadFull(source, vlBuf[:]); err != nil {
		return nil, truncatedErr(err)
	}
	valueLen := enc.Uint32(vlBuf[:])
	value := make([]byte, valueLen)
	if valueLen > 0 {
		if _, err := io.ReadFull(source, value); err != nil {
			return nil, truncatedErr(err)
		}
	}

	return &Record{Offset: offset, Timestamp: timestamp, Key: key, Value: value}, nil
}

func truncatedErr(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrTruncated
	}
	return err
}
