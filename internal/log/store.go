// this file implements a segment's log file: a preallocated, memory-mapped
// byte container for an append-only sequence of encoded records
package log

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/tysonmote/gommap"
	"go.uber.org/zap"
)

type store struct {
	file *os.File
	mmap gommap.MMap

	maxSize uint64
	size    uint64

	baseOffset    uint64
	currentOffset uint64
}

func logFileName(dir string, baseOffset uint64) string {
	return filepath.Join(dir, fmt.Sprintf("%020d.log", baseOffset))
}

var storeLogger = zap.L().Named("store")

// newStore creates a fresh log file for a new segment, preallocated to
// maxSize bytes and memory-mapped read/write.
func newStore(dir string, baseOffset, maxSize uint64) (*store, error) {
	name := logFileName(dir, baseOffset)
	f, err := os.OpenFile(name, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		storeLogger.Error("open log file", zap.String("path", name), zap.Error(err))
		return nil, err
	}
	if err := f.Truncate(int64(maxSize)); err != nil {
		storeLogger.Error("preallocate log file", zap.String("path", name), zap.Error(err))
		f.Close()
		return nil, err
	}
	m, err := gommap.Map(f.Fd(), gommap.PROT_READ|gommap.PROT_WRITE, gommap.MAP_SHARED)
	if err != nil {
		storeLogger.Error("mmap log file", zap.String("path", name), zap.Error(err))
		f.Close()
		return nil, err
	}
	return &store{
		file:          f,
		mmap:          m,
		maxSize:       maxSize,
		baseOffset:    baseOffset,
		currentOffset: baseOffset,
	}, nil
}

// loadStore recovers a log file written by a previous process. It replays
// records from the start, counting them and accumulating the true byte
// size consumed, rather than trusting the file's on-disk length (which
// stays at maxSize for a file that was not closed). Decoding stops at the
// first error; a
// prior Close() truncates the file to its true size, so that first error
// is expected to land exactly at the live data's end, not mid-record.
func loadStore(dir string, baseOffset, maxSize uint64) (*store, error) {
	path := logFileName(dir, baseOffset)
	f, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		storeLogger.Error("open log file", zap.String("path", path), zap.Error(err))
		return nil, err
	}

	fi, err := f.Stat()
	if err != nil {
		storeLogger.Error("stat log file", zap.String("path", path), zap.Error(err))
		f.Close()
		return nil, err
	}
	raw := make([]byte, fi.Size())
	if _, err := io.ReadFull(f, raw); err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		storeLogger.Error("read log file", zap.String("path", path), zap.Error(err))
		f.Close()
		return nil, err
	}

	var size uint64
	var recordCount uint64
	reader := bytes.NewReader(raw)
	for {
		rec, err := Decode(reader)
		if err != nil {
			break
		}
		size += uint64(rec.BinarySize())
		recordCount++
	}

	if err := f.Truncate(int64(maxSize)); err != nil {
		storeLogger.Error("re-extend log file", zap.String("path", path), zap.Error(err))
		f.Close()
		return nil, err
	}
	m, err := gommap.Map(f.Fd(), gommap.PROT_READ|gommap.PROT_WRITE, gommap.MAP_SHARED)
	if err != nil {
		storeLogger.Error("mmap log file", zap.String("path", path), zap.Error(err))
		f.Close()
		return nil, err
	}

	return &store{
		file:          f,
		mmap:          m,
		maxSize:       maxSize,
		size:          size,
		baseOffset:    baseOffset,
		currentOffset: baseOffset + recordCount,
	}, nil
}

// CanFit reports whether n more bytes can be appended without exceeding
// maxSize.
func (s *store) CanFit(n uint64) bool {
	return s.maxSize-s.size >= n
}

// AppendBytes writes buf at the current append cursor and returns the
// offset assigned to it and the byte position it starts at. The caller
// must have already checked CanFit(len(buf)).
func (s *store) AppendBytes(buf []byte) (assignedOffset, startPosition uint64, err error) {
	n := uint64(len(buf))
	startPosition = s.size
	copy(s.mmap[s.size:s.size+n], buf)
	s.size += n

	assignedOffset = s.currentOffset
	s.currentOffset++
	return assignedOffset, startPosition, nil
}

// ReadAt returns the slice [begin, end) of the mapped file without
// copying.
func (s *store) ReadAt(begin, end uint64) []byte {
	return s.mmap[begin:end]
}

// Flush requests an asynchronous flush of the mapped region to disk.
func (s *store) Flush() error {
	if err := s.mmap.Sync(gommap.MS_ASYNC); err != nil {
		storeLogger.Error("flush log file", zap.String("path", s.file.Name()), zap.Error(err))
		return err
	}
	return nil
}

// Close synchronously flushes, unmaps, and truncates the file down to its
// live size before closing it.
func (s *store) Close() error {
	if err := s.mmap.Sync(gommap.MS_SYNC); err != nil {
		storeLogger.Error("sync log file", zap.String("path", s.file.Name()), zap.Error(err))
		return err
	}
	if err := s.mmap.UnsafeUnmap(); err != nil {
		storeLogger.Error("unmap log file", zap.String("path", s.file.Name()), zap.Error(err))
		return err
	}
	if err := s.file.Truncate(int64(s.size)); err != nil {
		storeLogger.Error("truncate log file", zap.String("path", s.file.Name()), zap.Error(err))
		return err
	}
	return s.file.Close()
}

func (s *store) Name() string {
	return s.file.Name()
}
