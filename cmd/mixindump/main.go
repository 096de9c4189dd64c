// Copyright 2024 The Mixinforge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command mixindump parses and prints a class-file tree from the
// engine's wire format, and can run a small set of mixin configurations
// against it to preview the applied result.
package main

import (
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"
	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"

	mixin "github.com/mixinforge/mixin"
	mlog "github.com/mixinforge/mixin/internal/log"
)

var verbose bool

func main() {
	root := &cobra.Command{
		Use:   "mixindump",
		Short: "Inspect class-file trees and preview mixin applications",
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	root.AddCommand(newDumpCommand(), newApplyCommand(), newVersionCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func logger() *mlog.Helper {
	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	return mlog.NewStdLogger(level)
}

// loadClass mmaps path and parses it with the engine's Model, so
// dumping a large class-file tree never copies the whole file into the
// Go heap up front.
func loadClass(path string) (*mixin.Class, func() error, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	region, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("mmapping %s: %w", path, err)
	}

	var model mixin.Model
	class, err := model.Parse(region)
	closeFn := func() error {
		region.Unmap()
		return f.Close()
	}
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return class, closeFn, nil
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the mixindump version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("mixindump (mixinforge/mixin)")
			return nil
		},
	}
}
