// this file implements the partition: an ordered collection of segments
// with one active segment at the tail, routing appends and offset lookups
// to the right place and rolling a new active segment on overflow
package log

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	api "github.com/kodelog/partlog/api/v1"
	"go.uber.org/zap"
)

// Partition is a single append-only, offset-addressed commit log backed by
// a directory of segment file pairs.
type Partition struct {
	mu sync.Mutex

	dir    string
	config Config

	segments []*segment
	active   *segment

	logger *zap.Logger
}

// NewPartition opens (or creates) a partition rooted at dir. If dir is
// empty of segment files, a fresh segment at base_offset 0 is created;
// otherwise every existing segment is recovered and the one with the
// highest base_offset becomes active.
func NewPartition(dir string, cfg Config) (*Partition, error) {
	if cfg.Segment.MaxStoreBytes == 0 {
		cfg.Segment.MaxStoreBytes = defaultMaxStoreBytes
	}
	if cfg.Segment.OffsetInterval == 0 {
		cfg.Segment.OffsetInterval = defaultOffsetInterval
	}

	p := &Partition{
		dir:    dir,
		config: cfg,
		logger: zap.L().Named("partition"),
	}
	if err := p.setup(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Partition) setup() error {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		p.logger.Error("read partition directory", zap.String("dir", p.dir), zap.Error(err))
		return err
	}

	seen := make(map[uint64]bool)
	var baseOffsets []uint64
	for _, e := range entries {
		name := e.Name()
		ext := filepath.Ext(name)
		if ext != ".log" && ext != ".index" {
			p.logger.Warn("invalid segment file name", zap.String("name", name))
			return api.ErrInvalidSegmentFile{Name: name}
		}
		stem := strings.TrimSuffix(name, ext)
		off, err := strconv.ParseUint(stem, 10, 64)
		if err != nil || len(stem) != 20 {
			p.logger.Warn("invalid segment file name", zap.String("name", name))
			return api.ErrInvalidSegmentFile{Name: name}
		}
		if !seen[off] {
			seen[off] = true
			baseOffsets = append(baseOffsets, off)
		}
	}

	if len(baseOffsets) == 0 {
		return p.newActiveSegment(0)
	}

	sort.Slice(baseOffsets, func(i, j int) bool { return baseOffsets[i] < baseOffsets[j] })

	p.segments = make([]*segment, 0, len(baseOffsets))
	for _, off := range baseOffsets {
		seg, err := loadSegment(p.dir, off, p.config)
		if err != nil {
			return err
		}
		p.segments = append(p.segments, seg)
	}

	active := p.segments[len(p.segments)-1]
	active.active = true
	p.active = active
	p.logger.Info("recovered partition",
		zap.Int("segments", len(p.segments)),
		zap.Uint64("active_base_offset", active.baseOffset),
	)
	return nil
}

func (p *Partition) newActiveSegment(baseOffset uint64) error {
	seg, err := newSegment(p.dir, baseOffset, p.config)
	if err != nil {
		return err
	}
	p.segments = append(p.segments, seg)
	p.active = seg
	return nil
}

// Append assigns the next offset to (key, value) and writes it to the
// active segment, rolling a new active segment first if the current one
// has no room left.
func (p *Partition) Append(key, value []byte) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	off, err := p.active.Append(key, value)
	if err == nil {
		return off, nil
	}
	if err != ErrFullSegment {
		return 0, err
	}

	rolled := p.active
	rolled.Seal()
	if err := p.newActiveSegment(rolled.LatestOffset()); err != nil {
		return 0, err
	}

	off, err = p.active.Append(key, value)
	if err != nil {
		// a just-rolled, empty segment that still can't hold a single
		// record means max_size is configured too small; there is no
		// sensible way to make progress
		panic("log: segment base_offset=" + strconv.FormatUint(p.active.baseOffset, 10) + " cannot hold a single record")
	}
	return off, nil
}

// Find returns the record assigned to offset target.
func (p *Partition) Find(target uint64) (*Record, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if target >= p.active.LatestOffset() {
		return nil, api.ErrOffsetOutOfRange{Offset: target}
	}

	if target == p.active.baseOffset || len(p.segments) == 1 || target < p.segments[0].baseOffset {
		return p.active.Read(target)
	}

	// binary search for the unique segment S with
	// S.base_offset <= target < next_segment.base_offset
	i := sort.Search(len(p.segments), func(i int) bool {
		return p.segments[i].baseOffset > target
	})
	owner := i - 1
	if owner < 0 {
		owner = 0
	}
	return p.segments[owner].Read(target)
}

// Flush requests a flush of the active segment's log and index.
func (p *Partition) Flush() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active.Flush()
}

// Close releases every segment's file handles and mappings.
func (p *Partition) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range p.segments {
		if err := s.Close(); err != nil {
			p.logger.Error("close segment", zap.Uint64("base_offset", s.baseOffset), zap.Error(err))
			return err
		}
	}
	return nil
}
