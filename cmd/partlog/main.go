// this is a thin smoke-test driver that exercises a partition: append a
// few demo records, flush, then replay a handful of offsets back. It is
// deliberately minimal -- the partition's own semantics are what this
// repo cares about, not the driver.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/kodelog/partlog/internal/config"
	"github.com/kodelog/partlog/internal/log"
	"go.uber.org/zap"
)

func main() {
	dir := flag.String("dir", "", "partition data directory (default: $CONFIG_DIR/data or ~/.partlog/data)")
	appendCount := flag.Int("append", 0, "number of demo records to append before replaying")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	dataDir := *dir
	if dataDir == "" {
		dataDir, err = config.DefaultDataDir()
		if err != nil {
			logger.Fatal("resolve data directory", zap.Error(err))
		}
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		logger.Fatal("create data directory", zap.Error(err))
	}

	partition, err := log.NewPartition(dataDir, log.Config{})
	if err != nil {
		logger.Fatal("open partition", zap.Error(err))
	}
	defer partition.Close()

	for i := 0; i < *appendCount; i++ {
		if _, err := partition.Append(nil, []byte(fmt.Sprintf("record-%d", i))); err != nil {
			logger.Fatal("append", zap.Error(err))
		}
	}
	if err := partition.Flush(); err != nil {
		logger.Fatal("flush", zap.Error(err))
	}

	for _, arg := range flag.Args() {
		var target uint64
		if _, err := fmt.Sscanf(arg, "%d", &target); err != nil {
			logger.Warn("skipping non-numeric offset argument", zap.String("arg", arg))
			continue
		}
		rec, err := partition.Find(target)
		if err != nil {
			logger.Error("find", zap.Uint64("offset", target), zap.Error(err))
			continue
		}
		fmt.Printf("offset=%d timestamp=%d key=%q value=%q\n", rec.Offset, rec.Timestamp, rec.Key, rec.Value)
	}
}
