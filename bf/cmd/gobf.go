package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/awisniewski/gobf/bf"

	"github.com/peterh/liner"
)

const historyFile = ".gobf_history"

var (
	charOutput bool
	verbose    bool
)

func init() {
	flag.BoolVar(&charOutput, "c", false, "render output cells as characters instead of decimal values")
	flag.BoolVar(&verbose, "v", false, "report compile timing")
	flag.Usage = usage
}

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), "usage: gobf [-c] [-v] [file.bf]\n\nWith no file, start an interactive session. Type 'exit' to leave it.\n\n")
	flag.PrintDefaults()
}

func main() {
	flag.Parse()

	opts := bf.Options{CharOutput: charOutput, Verbose: verbose}

	switch flag.NArg() {
	case 0:
		os.Exit(repl(opts))
	case 1:
		os.Exit(runFile(flag.Arg(0), opts))
	default:
		usage()
		os.Exit(2)
	}
}

func runFile(filename string, opts bf.Options) int {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if ext := filepath.Ext(filename); ext != ".bf" && ext != ".brainfuck" {
		fmt.Fprintf(os.Stderr, "error: %s is not a .bf file\n", filename)
		return 1
	}

	source, err := os.ReadFile(filename)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error reading file: %v\n", err)
		return 1
	}

	if err := bf.RunContext(ctx, string(source), os.Stdin, os.Stdout, opts); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func repl(opts bf.Options) int {
	fmt.Println("Welcome to brainfuck!")

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	if f, err := os.Open(histPath); err == nil {
		ln.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			ln.WriteHistory(f)
			f.Close()
		}
	}()

	session := bf.NewSession(os.Stdin, os.Stdout, opts)

	for {
		line, err := ln.Prompt("> ")
		switch {
		case errors.Is(err, io.EOF):
			fmt.Println()
			return 0
		case errors.Is(err, liner.ErrPromptAborted):
			continue
		case err != nil:
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" {
			return 0
		}
		ln.AppendHistory(line)

		// Scope the interrupt handling to this evaluation, so a Ctrl+C
		// that stops a runaway program leaves the session usable.
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		err = session.Eval(ctx, line)
		cancel()
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			// A bounds violation trashes the run for good. Everything
			// else only aborts the current line.
			if errors.Is(err, bf.ErrTapeOutOfBounds) {
				return 1
			}
		}
	}
}
