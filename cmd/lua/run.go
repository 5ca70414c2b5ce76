// Copyright 2024 The zb Authors
// SPDX-License-Identifier: MIT

package main

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"zombiezen.com/go/log"

	"lunamoth.dev/lua/internal/luacode"
	"lunamoth.dev/lua/lua"
)

type runOptions struct {
	inputFilename string
	source        string
	gcStress      bool
	list          int
}

func run(ctx context.Context, opts *runOptions) error {
	f, err := os.Open(opts.inputFilename)
	if err != nil {
		return err
	}
	defer f.Close()

	var sourceName luacode.Source
	if opts.source != "" {
		sourceName = luacode.Source(opts.source)
	} else {
		sourceName = luacode.FilenameSource(opts.inputFilename)
	}

	br := bufio.NewReader(f)

	if opts.list > 0 {
		proto, err := luacode.Parse(sourceName, br)
		if err != nil {
			return err
		}
		return listProto(os.Stdout, proto)
	}

	g := lua.NewGlobal(nil)
	g.SetGCStress(opts.gcStress)
	g.SetPanicHook(func(s *lua.State, err error) {
		log.Errorf(ctx, "uncaught error in VM %s: %v", g.InstanceID(), err)
	})

	s := g.NewState()
	defer s.Close()
	s.OpenBase()

	if err := s.Load(br, sourceName); err != nil {
		return fmt.Errorf("%s: %w", opts.inputFilename, err)
	}
	if err := s.Call(0, 0); err != nil {
		return fmt.Errorf("%s: %w", opts.inputFilename, err)
	}
	return nil
}
