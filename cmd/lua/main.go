// Copyright 2024 The zb Authors
// SPDX-License-Identifier: MIT

// Command lua runs Lua 5.1 scripts against the lunamoth.dev/lua VM.
package main

import (
	"context"
	"os"
	"sync"

	"github.com/spf13/cobra"
	"zombiezen.com/go/log"
)

var initLogOnce sync.Once

func initLogging(showDebug bool) {
	initLogOnce.Do(func() {
		minLogLevel := log.Info
		if showDebug {
			minLogLevel = log.Debug
		}
		log.SetDefault(&log.LevelFilter{
			Min:    minLogLevel,
			Output: log.New(os.Stderr, "lua: ", log.StdFlags, nil),
		})
	})
}

func main() {
	rootCommand := &cobra.Command{
		Use:           "lua FILE",
		Short:         "run a Lua 5.1 script",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	opts := new(runOptions)
	rootCommand.Args = cobra.ExactArgs(1)
	rootCommand.DisableFlagsInUseLine = true
	rootCommand.Flags().StringVar(&opts.source, "source", "", "source `name` to show in error messages instead of the filename")
	rootCommand.Flags().BoolVar(&opts.gcStress, "gc-stress", false, "run a full collection on every allocation (slow; for finding GC bugs)")
	rootCommand.Flags().CountVarP(&opts.list, "list", "l", "disassemble instead of running")
	showDebug := rootCommand.PersistentFlags().Bool("debug", false, "show debugging output")
	rootCommand.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		initLogging(*showDebug)
		return nil
	}
	rootCommand.RunE = func(cmd *cobra.Command, args []string) error {
		opts.inputFilename = args[0]
		return run(cmd.Context(), opts)
	}

	ctx := context.Background()
	err := rootCommand.ExecuteContext(ctx)
	if err != nil {
		initLogging(*showDebug)
		log.Errorf(ctx, "%v", err)
		os.Exit(1)
	}
}
