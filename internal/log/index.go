// this file implements a segment's sparse index: a memory-mapped,
// append-only array of (relative_offset, position) samples that turns an
// offset lookup into "find the sample at or before the target, then scan a
// bounded window of the log"
package log

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/tysonmote/gommap"
	"go.uber.org/zap"
)

var indexLogger = zap.L().Named("index")

const (
	offWidth uint64 = 4
	posWidth uint64 = 4
	entWidth uint64 = offWidth + posWidth
)

// position is one sample: a record's offset relative to the segment's
// base_offset, and the byte position of that record's first byte in the
// log file.
type position struct {
	relativeOffset uint32
	position       uint32
}

// offsetRange is the hint index.FindOffset returns. When begin == end, the
// caller must scan the log from begin.position to the log's current size;
// otherwise the target lies within [begin.position, end.position].
type offsetRange struct {
	begin position
	end   position
}

type index struct {
	file *os.File
	mmap gommap.MMap

	maxBytes       uint64
	size           uint64
	baseOffset     uint64
	offsetInterval uint64
}

func indexFileName(dir string, baseOffset uint64) string {
	return filepath.Join(dir, fmt.Sprintf("%020d.index", baseOffset))
}

// newIndex creates a fresh, empty index file for a new segment, preallocated
// to maxBytes and memory-mapped read/write.
func newIndex(dir string, baseOffset, maxBytes, offsetInterval uint64) (*index, error) {
	name := indexFileName(dir, baseOffset)
	f, err := os.OpenFile(name, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		indexLogger.Error("open index file", zap.String("path", name), zap.Error(err))
		return nil, err
	}
	if err := f.Truncate(int64(maxBytes)); err != nil {
		indexLogger.Error("preallocate index file", zap.String("path", name), zap.Error(err))
		f.Close()
		return nil, err
	}
	m, err := gommap.Map(f.Fd(), gommap.PROT_READ|gommap.PROT_WRITE, gommap.MAP_SHARED)
	if err != nil {
		indexLogger.Error("mmap index file", zap.String("path", name), zap.Error(err))
		f.Close()
		return nil, err
	}
	return &index{
		file: f, mmap: m, maxBytes: maxBytes,
		baseOffset: baseOffset, offsetInterval: offsetInterval,
	}, nil
}

// loadIndex recovers an index file written by a previous process. The
// index's prior Close truncated it to its true size, so the file's on-disk
// length at open time is taken as authoritative; unlike loadStore, no
// decode-scan is made.
func loadIndex(dir string, baseOffset, maxBytes, offsetInterval uint64) (*index, error) {
	path := indexFileName(dir, baseOffset)
	f, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		indexLogger.Error("open index file", zap.String("path", path), zap.Error(err))
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		indexLogger.Error("stat index file", zap.String("path", path), zap.Error(err))
		f.Close()
		return nil, err
	}
	size := uint64(fi.Size())

	if err := f.Truncate(int64(maxBytes)); err != nil {
		indexLogger.Error("re-extend index file", zap.String("path", path), zap.Error(err))
		f.Close()
		return nil, err
	}
	m, err := gommap.Map(f.Fd(), gommap.PROT_READ|gommap.PROT_WRITE, gommap.MAP_SHARED)
	if err != nil {
		indexLogger.Error("mmap index file", zap.String("path", path), zap.Error(err))
		f.Close()
		return nil, err
	}
	return &index{
		file: f, mmap: m, maxBytes: maxBytes, size: size,
		baseOffset: baseOffset, offsetInterval: offsetInterval,
	}, nil
}

func (i *index) Name() string {
	return i.file.Name()
}

// AppendPosition appends (offset - baseOffset, logPosition) as a new
// sample. The caller guarantees offset increases monotonically across
// calls.
func (i *index) AppendPosition(offset, logPosition uint64) error {
	if i.size+entWidth > uint64(len(i.mmap)) {
		return fmt.Errorf("log: index for segment base_offset=%d is full", i.baseOffset)
	}
	rel := uint32(offset - i.baseOffset)
	enc.PutUint32(i.mmap[i.size:i.size+offWidth], rel)
	enc.PutUint32(i.mmap[i.size+offWidth:i.size+entWidth], uint32(logPosition))
	i.size += entWidth
	return nil
}

func (i *index) entryAt(pos uint64) position {
	return position{
		relativeOffset: enc.Uint32(i.mmap[pos : pos+offWidth]),
		position:       enc.Uint32(i.mmap[pos+offWidth : pos+entWidth]),
	}
}

// FindOffset computes the bounded scan window for an absolute target
// offset, per the sampling scheme described on index: a window of at most
// two entries straddling the target's bucket.
func (i *index) FindOffset(target uint64) offsetRange {
	if i.size == 0 {
		return offsetRange{}
	}

	rel := target - i.baseOffset
	slot := rel / i.offsetInterval
	start := slot * entWidth
	if start != 0 {
		start -= entWidth
	}
	end := start + entWidth*2
	if end > i.size {
		end = i.size
	}

	var entries []position
	for p := start; p+entWidth <= end; p += entWidth {
		entries = append(entries, i.entryAt(p))
	}

	if uint32(rel) < entries[0].relativeOffset {
		return offsetRange{begin: position{}, end: entries[0]}
	}
	if len(entries) > 1 {
		return offsetRange{begin: entries[0], end: entries[1]}
	}
	return offsetRange{begin: entries[0], end: entries[0]}
}

// Flush requests an asynchronous flush of the mapped region to disk.
func (i *index) Flush() error {
	if err := i.mmap.Sync(gommap.MS_ASYNC); err != nil {
		indexLogger.Error("flush index file", zap.String("path", i.file.Name()), zap.Error(err))
		return err
	}
	return nil
}

// Close synchronously flushes, unmaps, and truncates the file down to its
// live size before closing it.
func (i *index) Close() error {
	if err := i.mmap.Sync(gommap.MS_SYNC); err != nil {
		indexLogger.Error("sync index file", zap.String("path", i.file.Name()), zap.Error(err))
		return err
	}
	if err := i.mmap.UnsafeUnmap(); err != nil {
		indexLogger.Error("unmap index file", zap.String("path", i.file.Name()), zap.Error(err))
		return err
	}
	if err := i.file.Truncate(int64(i.size)); err != nil {
		indexLogger.Error("truncate index file", zap.String("path", i.file.Name()), zap.Error(err))
		return err
	}
	return i.file.Close()
}
