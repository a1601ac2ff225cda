package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Leadrive/eventql/internal/allocator"
	"github.com/Leadrive/eventql/internal/config"
	"github.com/Leadrive/eventql/internal/coordinator"
	"github.com/Leadrive/eventql/internal/directory"
	"github.com/Leadrive/eventql/internal/logger"
	"github.com/Leadrive/eventql/internal/lsm"
	"github.com/Leadrive/eventql/internal/metadata"
	"github.com/Leadrive/eventql/internal/metadatasrv"
	"github.com/Leadrive/eventql/internal/skipindex"
)

func newServeCmd() *cobra.Command {
	var cfgPath string
	var dataDir string
	var httpAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "start a storage node's metadata RPC server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.DefaultNodeConfig()

			if cfgPath != "" {
				v := viper.New()
				v.SetConfigFile(cfgPath)
				if err := v.ReadInConfig(); err != nil {
					return fmt.Errorf("reading config: %w", err)
				}
				if err := v.Unmarshal(cfg); err != nil {
					return fmt.Errorf("parsing config: %w", err)
				}
			}
			if dataDir != "" {
				cfg.DataDir = dataDir
			}
			if httpAddr != "" {
				cfg.HTTPAddr = httpAddr
			}

			logr := logger.Default()
			logr.Info("Starting eventqlnode...")
			logr.Info("Data directory: %s", cfg.DataDir)

			if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
				return fmt.Errorf("creating data dir: %w", err)
			}

			srv := metadatasrv.New(logr)
			httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Handler()}

			host, dispatcher, err := startPartitionHost(cfg, logr)
			if err != nil {
				return fmt.Errorf("starting partition host: %w", err)
			}
			defer dispatcher.Release()

			sweep := time.NewTicker(config.DefaultCompactionSweepInterval)
			defer sweep.Stop()
			stopSweep := make(chan struct{})
			defer close(stopSweep)
			go func() {
				for {
					select {
					case <-sweep.C:
						dispatcher.MaintainOnce(host.List())
					case <-stopSweep:
						return
					}
				}
			}()

			errCh := make(chan error, 1)
			go func() {
				logr.Info("metadata server listening on %s", cfg.HTTPAddr)
				if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- err
				}
			}()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

			select {
			case err := <-errCh:
				return fmt.Errorf("metadata server: %w", err)
			case <-sigCh:
			}

			logr.Info("Shutting down...")
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return httpSrv.Shutdown(ctx)
		},
	}
	cmd.Flags().StringVar(&cfgPath, "config", "", "path to config file (optional)")
	cmd.Flags().StringVar(&dataDir, "data-dir", "", "directory for partition files")
	cmd.Flags().StringVar(&httpAddr, "http-addr", "", "address for the metadata RPC server")
	return cmd
}

// startPartitionHost wires up this node's shared LSM collaborators (skip
// index cache, file tracker, coordinator client, server directory,
// allocator), hosts the node's default partition, and starts a Dispatcher
// sized for background maintenance. The returned host and dispatcher back
// the periodic compaction sweep the serve loop runs for as long as the
// process is up.
func startPartitionHost(cfg *config.NodeConfig, logr *logger.Logger) (*lsm.PartitionHost, *lsm.Dispatcher, error) {
	dir := directory.NewInMemory(cfg.ServerID)
	dir.AddServer(directory.ServerConfig{ServerID: cfg.ServerID, Addr: cfg.HTTPAddr, Up: true})
	table := config.DefaultTableConfig("default", "events")
	dir.PutTableConfig(table)

	cache, err := skipindex.New(config.DefaultSkipIndexCacheSize)
	if err != nil {
		return nil, nil, err
	}
	partitionsDir := filepath.Join(cfg.DataDir, "partitions")
	tracker := lsm.NewFileTracker(partitionsDir, logr)
	if err := os.MkdirAll(partitionsDir, 0755); err != nil {
		return nil, nil, err
	}
	if err := tracker.Load(); err != nil {
		return nil, nil, err
	}
	coord := coordinator.New(dir, logr)
	alloc := allocator.NewInMemory([]string{cfg.ServerID})

	deps := lsm.Deps{
		SkipCache: cache,
		Tracker:   tracker,
		Coord:     coord,
		Directory: dir,
		Allocator: alloc,
		Logger:    logr,
	}

	host := lsm.NewPartitionHost()
	partitionID := metadata.NewPartitionID()
	w, err := lsm.NewWriter(filepath.Join(partitionsDir, partitionID.String()), partitionID, lsm.Keyrange{}, *table, deps)
	if err != nil {
		return nil, nil, err
	}
	host.Add(partitionID.String(), w)

	dispatcher, err := lsm.NewDispatcher(config.DefaultDispatcherWorkers, 0, logr)
	if err != nil {
		return nil, nil, err
	}
	return host, dispatcher, nil
}
