package log

// Config configures a Partition's segments.
type Config struct {
	Segment struct {
		// preallocated bytes per log file; governs when a segment is
		// declared full
		MaxStoreBytes uint64
		// one index entry is sampled per this many appended records
		OffsetInterval uint64
	}
}

// Recommended defaults per the design: a small demo-scale segment size and
// a sampling stride that keeps the bounded forward scan short.
const (
	defaultMaxStoreBytes  uint64 = 4096
	defaultOffsetInterval uint64 = 16
)

// indexMaxBytes derives the sparse index's preallocated size from its
// segment's worst case: every byte of the log holding its own one-byte
// record, sampled at offsetInterval. Config enumerates log_max_size and
// offset_interval only; this keeps the index's mmap bound internal rather
// than adding a third knob a caller could set inconsistently with the
// other two.
func indexMaxBytes(cfg Config) uint64 {
	maxSamples := cfg.Segment.MaxStoreBytes/cfg.Segment.OffsetInterval + 1
	return maxSamples * entWidth
}
