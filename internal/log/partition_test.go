package log

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	api "github.com/kodelog/partlog/api/v1"
	"github.com/stretchr/testify/require"
)

func recordValue(i int) []byte {
	return []byte(fmt.Sprintf("value-%d", i))
}

func TestPartitionTinyRoundTrip(t *testing.T) {
	dir, err := os.MkdirTemp("", "partition_tiny_test")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	p, err := NewPartition(dir, Config{})
	require.NoError(t, err)
	defer p.Close()

	for i := 0; i < 3; i++ {
		off, err := p.Append(nil, recordValue(i))
		require.NoError(t, err)
		require.Equal(t, uint64(i), off)
	}

	for i := 0; i < 3; i++ {
		rec, err := p.Find(uint64(i))
		require.NoError(t, err)
		require.Equal(t, recordValue(i), rec.Value)
	}

	_, err = p.Find(3)
	require.Error(t, err)
	var outOfRange api.ErrOffsetOutOfRange
	require.ErrorAs(t, err, &outOfRange)
}

func TestPartitionSparseIndexSampling(t *testing.T) {
	dir, err := os.MkdirTemp("", "partition_sampling_test")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	cfg := Config{}
	cfg.Segment.MaxStoreBytes = 4096
	cfg.Segment.OffsetInterval = 16

	p, err := NewPartition(dir, cfg)
	require.NoError(t, err)
	defer p.Close()

	for i := 0; i < 17; i++ {
		_, err := p.Append(nil, recordValue(i))
		require.NoError(t, err)
	}
	// offset 16 is the 17th record appended; 16-0 >= 16 triggers exactly
	// one sample
	require.Equal(t, entWidth, p.active.index.size)
}

func TestPartitionInBucketScan(t *testing.T) {
	dir, err := os.MkdirTemp("", "partition_in_bucket_test")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	cfg := Config{}
	cfg.Segment.MaxStoreBytes = 8192
	cfg.Segment.OffsetInterval = 16

	p, err := NewPartition(dir, cfg)
	require.NoError(t, err)
	defer p.Close()

	for i := 0; i < 48; i++ {
		_, err := p.Append(nil, recordValue(i))
		require.NoError(t, err)
	}

	rec, err := p.Find(5)
	require.NoError(t, err)
	require.Equal(t, recordValue(5), rec.Value)
}

func TestPartitionAcrossBucketScan(t *testing.T) {
	dir, err := os.MkdirTemp("", "partition_across_bucket_test")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	cfg := Config{}
	cfg.Segment.MaxStoreBytes = 8192
	cfg.Segment.OffsetInterval = 16

	p, err := NewPartition(dir, cfg)
	require.NoError(t, err)
	defer p.Close()

	for i := 0; i < 48; i++ {
		_, err := p.Append(nil, recordValue(i))
		require.NoError(t, err)
	}

	rec, err := p.Find(37)
	require.NoError(t, err)
	require.Equal(t, recordValue(37), rec.Value)
}

func TestPartitionSegmentRoll(t *testing.T) {
	dir, err := os.MkdirTemp("", "partition_roll_test")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	recSize := (&Record{Value: recordValue(0)}).BinarySize()
	cfg := Config{}
	cfg.Segment.MaxStoreBytes = uint64(recSize * 60)
	cfg.Segment.OffsetInterval = 16

	p, err := NewPartition(dir, cfg)
	require.NoError(t, err)
	defer p.Close()

	for i := 0; i < 120; i++ {
		_, err := p.Append(nil, recordValue(i))
		require.NoError(t, err)
	}

	require.Greater(t, len(p.segments), 1)

	for _, seg := range p.segments {
		name := filepath.Join(dir, fmt.Sprintf("%020d.log", seg.baseOffset))
		_, err := os.Stat(name)
		require.NoError(t, err)
	}

	rec, err := p.Find(100)
	require.NoError(t, err)
	require.Equal(t, recordValue(100), rec.Value)
}

func TestPartitionRestartDurability(t *testing.T) {
	dir, err := os.MkdirTemp("", "partition_restart_test")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	cfg := Config{}
	cfg.Segment.MaxStoreBytes = 8192
	cfg.Segment.OffsetInterval = 8

	p, err := NewPartition(dir, cfg)
	require.NoError(t, err)

	for i := 0; i < 100; i++ {
		_, err := p.Append(nil, recordValue(i))
		require.NoError(t, err)
	}
	require.NoError(t, p.Flush())
	require.NoError(t, p.Close())

	reopened, err := NewPartition(dir, cfg)
	require.NoError(t, err)
	defer reopened.Close()

	for _, off := range []uint64{0, 99, 50} {
		rec, err := reopened.Find(off)
		require.NoError(t, err)
		require.Equal(t, recordValue(int(off)), rec.Value)
	}
}
