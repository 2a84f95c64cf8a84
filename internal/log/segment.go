// this file composes a log file and a sparse index under a shared
// base_offset, enforcing capacity, driving index sampling, and answering
// offset lookups via an index hint plus a bounded forward scan
package log

import (
	"bytes"
	"time"

	api "github.com/kodelog/partlog/api/v1"
	"go.uber.org/zap"
)

type segment struct {
	store *store
	index *index

	baseOffset     uint64
	prevOffset     uint64
	offsetInterval uint64
	active         bool

	logger *zap.Logger
}

// newSegment creates a brand-new active segment at baseOffset.
func newSegment(dir string, baseOffset uint64, cfg Config) (*segment, error) {
	logger := zap.L().Named("segment")
	st, err := newStore(dir, baseOffset, cfg.Segment.MaxStoreBytes)
	if err != nil {
		logger.Error("create segment store", zap.Uint64("base_offset", baseOffset), zap.Error(err))
		return nil, err
	}
	idx, err := newIndex(dir, baseOffset, indexMaxBytes(cfg), cfg.Segment.OffsetInterval)
	if err != nil {
		logger.Error("create segment index", zap.Uint64("base_offset", baseOffset), zap.Error(err))
		st.Close()
		return nil, err
	}
	return &segment{
		store:          st,
		index:          idx,
		baseOffset:     baseOffset,
		prevOffset:     baseOffset,
		offsetInterval: cfg.Segment.OffsetInterval,
		active:         true,
		logger:         logger,
	}, nil
}

// loadSegment recovers a segment written by a previous process. The
// recovered segment starts sealed; Partition promotes the last one loaded
// back to active.
func loadSegment(dir string, baseOffset uint64, cfg Config) (*segment, error) {
	logger := zap.L().Named("segment")
	st, err := loadStore(dir, baseOffset, cfg.Segment.MaxStoreBytes)
	if err != nil {
		logger.Error("recover segment store", zap.Uint64("base_offset", baseOffset), zap.Error(err))
		return nil, err
	}
	idx, err := loadIndex(dir, baseOffset, indexMaxBytes(cfg), cfg.Segment.OffsetInterval)
	if err != nil {
		logger.Error("recover segment index", zap.Uint64("base_offset", baseOffset), zap.Error(err))
		st.Close()
		return nil, err
	}
	return &segment{
		store:          st,
		index:          idx,
		baseOffset:     baseOffset,
		prevOffset:     recoverPrevOffset(baseOffset, st.currentOffset, cfg.Segment.OffsetInterval),
		offsetInterval: cfg.Segment.OffsetInterval,
		active:         false,
		logger:         logger,
	}, nil
}

// recoverPrevOffset reconstructs the offset the index was last sampled at
// from the recovered current_offset, without re-reading the index's last
// entry (which is only a lower bound, not the exact modulus boundary the
// live sampler expects).
func recoverPrevOffset(baseOffset, currentOffset, offsetInterval uint64) uint64 {
	n := currentOffset - baseOffset
	switch {
	case n == 0:
		return baseOffset
	case n < offsetInterval:
		// fewer than offsetInterval records have ever been appended, so no
		// index sample has been taken yet
		return baseOffset
	case n%offsetInterval == 0:
		return baseOffset + n - offsetInterval
	default:
		return baseOffset + n - (n % offsetInterval)
	}
}

// LatestOffset is the next offset this segment will assign.
func (s *segment) LatestOffset() uint64 {
	return s.store.currentOffset
}

// Append constructs, encodes, and writes a new record, sampling the index
// when the sampling stride has been crossed.
func (s *segment) Append(key, value []byte) (uint64, error) {
	rec := &Record{
		Offset:    s.store.currentOffset,
		Timestamp: uint64(time.Now().UnixMilli()),
		Key:       key,
		Value:     value,
	}
	if !s.store.CanFit(uint64(rec.BinarySize())) {
		return 0, ErrFullSegment
	}

	var buf bytes.Buffer
	if _, err := Encode(rec, &buf); err != nil {
		s.logger.Error("encode record", zap.Uint64("offset", rec.Offset), zap.Error(err))
		return 0, err
	}

	lastOffset, logPosition, err := s.store.AppendBytes(buf.Bytes())
	if err != nil {
		s.logger.Error("append to store", zap.Uint64("offset", rec.Offset), zap.Error(err))
		return 0, err
	}

	if lastOffset-s.prevOffset >= s.offsetInterval {
		if err := s.index.AppendPosition(lastOffset, logPosition); err != nil {
			s.logger.Error("sample index", zap.Uint64("offset", lastOffset), zap.Error(err))
			return 0, err
		}
		s.prevOffset = lastOffset
	}
	return lastOffset, nil
}

// Read returns the record at the absolute offset target, which must lie
// within [baseOffset, LatestOffset()).
func (s *segment) Read(target uint64) (*Record, error) {
	rng := s.index.FindOffset(target)

	begin := uint64(rng.begin.position)
	var end uint64
	if rng.begin == rng.end {
		end = s.store.size
	} else {
		end = uint64(rng.end.position)
	}

	data := s.store.ReadAt(begin, end)
	reader := bytes.NewReader(data)

	var toRead uint64
	switch {
	case target == 0:
		toRead = 1
	case target < s.baseOffset+uint64(rng.begin.relativeOffset):
		toRead = target - s.baseOffset + 1
	case target == s.baseOffset+uint64(rng.begin.relativeOffset):
		toRead = 1
	default:
		toRead = target - s.baseOffset - uint64(rng.begin.relativeOffset) + 1
	}

	var last *Record
	for n := uint64(0); n < toRead; n++ {
		rec, err := Decode(reader)
		if err != nil {
			s.logger.Warn("corrupt record on read",
				zap.Uint64("offset", target), zap.Error(err),
			)
			return nil, api.ErrCorruptRecord{Offset: target, Cause: err}
		}
		last = rec
	}
	return last, nil
}

// Seal transitions the segment to its terminal, read-only state.
func (s *segment) Seal() {
	s.active = false
	s.logger.Info("sealed segment",
		zap.Uint64("base_offset", s.baseOffset),
		zap.Uint64("latest_offset", s.LatestOffset()),
	)
}

func (s *segment) Flush() error {
	if err := s.store.Flush(); err != nil {
		return err
	}
	return s.index.Flush()
}

func (s *segment) Close() error {
	if err := s.index.Close(); err != nil {
		s.logger.Error("close segment index", zap.Uint64("base_offset", s.baseOffset), zap.Error(err))
		return err
	}
	if err := s.store.Close(); err != nil {
		s.logger.Error("close segment store", zap.Uint64("base_offset", s.baseOffset), zap.Error(err))
		return err
	}
	return nil
}
