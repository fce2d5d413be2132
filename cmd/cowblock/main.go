// Command cowblock mounts a copy-on-write overlay of a base file (§6).
package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/remram44/cowblock/internal/mount"
	"github.com/remram44/cowblock/internal/overlay"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var diffPath, extraPath string
	var blockSize int64

	cmd := &cobra.Command{
		Use:   "cowblock <base> <mountpoint>",
		Short: "Mount a copy-on-write block overlay of a base file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			basePath, mountpoint := args[0], args[1]
			if diffPath == "" {
				diffPath = mountpoint + "-diff"
			}
			if extraPath == "" {
				extraPath = mountpoint + "-extra"
			}
			return run(basePath, mountpoint, diffPath, extraPath, blockSize)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Flags().StringVar(&diffPath, "diff", "", "path to the diff sidecar (default: <mountpoint>-diff)")
	cmd.Flags().StringVar(&extraPath, "extra", "", "path to the extra sidecar (default: <mountpoint>-extra)")
	cmd.Flags().Int64Var(&blockSize, "block-size", 4096, "block size in bytes (minimum 4)")

	return cmd
}

func run(basePath, mountpoint, diffPath, extraPath string, blockSize int64) error {
	logger := newLogger()
	defer logger.Sync() //nolint:errcheck

	engine, err := overlay.Open(basePath, diffPath, extraPath, blockSize)
	if err != nil {
		return fmt.Errorf("cowblock: setup failed: %w", err)
	}
	defer engine.Close()

	server, err := mount.Mount(engine, mountpoint, mount.Options{
		Filename: filepath.Base(basePath),
		Logger:   logger.Sugar(),
	})
	if err != nil {
		return fmt.Errorf("cowblock: mount failed: %w", err)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		server.Unmount() //nolint:errcheck
	}()

	server.Wait()
	return nil
}

func newLogger() *zap.Logger {
	logger, err := zap.NewProduction()
	if err != nil {
		logger = zap.NewNop()
	}
	return logger
}
