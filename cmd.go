// Copyright (C) The Strif Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package strif

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

var version = "development"

// A handler implements one subcommand. The return value of
// RunCommand becomes the process exit status.
type handler interface {
	RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int
}

var commands = map[string]handler{
	"version":   versionCmd{},
	"-version":  versionCmd{},
	"--version": versionCmd{},

	"prioritize": &prioritizer{},
	"merge":      &merger{},
}

func Main() {
	if !isatty.IsTerminal(os.Stderr.Fd()) {
		logrus.StandardLogger().Formatter = &logrus.TextFormatter{DisableTimestamp: true}
	}
	os.Exit(run(os.Args[0], os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		usage(prog, stderr)
		return 2
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(stderr, "%s: unrecognized command %q\n", filepath.Base(prog), args[0])
		usage(prog, stderr)
		return 2
	}
	return cmd.RunCommand(prog+" "+args[0], args[1:], stdin, stdout, stderr)
}

func usage(prog string, stderr io.Writer) {
	names := make([]string, 0, len(commands))
	for name := range commands {
		if !strings.HasPrefix(name, "-") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	fmt.Fprintf(stderr, "usage: %s command [options]\n\navailable commands:\n", filepath.Base(prog))
	for _, name := range names {
		fmt.Fprintf(stderr, "    %s\n", name)
	}
}

type versionCmd struct{}

func (versionCmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fmt.Fprintf(stdout, "strif %s (%s)\n", version, runtime.Version())
	return 0
}
