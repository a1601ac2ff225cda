package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/Leadrive/eventql/internal/allocator"
	"github.com/Leadrive/eventql/internal/config"
	"github.com/Leadrive/eventql/internal/coordinator"
	"github.com/Leadrive/eventql/internal/directory"
	"github.com/Leadrive/eventql/internal/logger"
	"github.com/Leadrive/eventql/internal/lsm"
	"github.com/Leadrive/eventql/internal/metadata"
	"github.com/Leadrive/eventql/internal/record"
	"github.com/Leadrive/eventql/internal/skipindex"
)

func newBenchCmd() *cobra.Command {
	var dataDir string
	var numRecords int

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "drive insert throughput against a single local partition",
		RunE: func(cmd *cobra.Command, args []string) error {
			logr := logger.Default()

			dir := directory.NewInMemory("bench-server")
			dir.AddServer(directory.ServerConfig{ServerID: "bench-server", Addr: "local", Up: true})
			table := config.DefaultTableConfig("bench", "events")
			dir.PutTableConfig(table)

			cache, err := skipindex.New(config.DefaultSkipIndexCacheSize)
			if err != nil {
				return err
			}
			tracker := lsm.NewFileTracker(dataDir, logr)
			coord := coordinator.New(dir, logr)
			alloc := allocator.NewInMemory([]string{"bench-server"})

			partitionDir := filepath.Join(dataDir, "bench-partition")
			w, err := lsm.NewWriter(partitionDir, metadata.NewPartitionID(), lsm.Keyrange{}, *table, lsm.Deps{
				SkipCache: cache, Tracker: tracker, Coord: coord, Directory: dir, Allocator: alloc, Logger: logr,
			})
			if err != nil {
				return err
			}

			start := time.Now()
			for i := 0; i < numRecords; i++ {
				var id record.ID
				id[0] = byte(i)
				id[1] = byte(i >> 8)
				id[2] = byte(i >> 16)
				v, err := record.NewVersion(uint64(record.MinValidVersion) + uint64(i) + 1)
				if err != nil {
					return err
				}
				if _, err := w.Insert([]record.Record{{ID: id, Version: v, Payload: []byte("x")}}); err != nil {
					return err
				}
			}
			elapsed := time.Since(start)
			rate := float64(numRecords) / elapsed.Seconds()
			fmt.Printf("inserted %d records in %s (%.0f/s)\n", numRecords, elapsed, rate)
			return nil
		},
	}
	cmd.Flags().StringVar(&dataDir, "data-dir", "./data", "directory for partition files")
	cmd.Flags().IntVar(&numRecords, "records", 10000, "number of records to insert")
	return cmd
}
