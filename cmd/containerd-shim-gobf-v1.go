package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/awisniewski/gobf/bf"
	gobf_shim "github.com/awisniewski/gobf/shim"

	"github.com/containerd/containerd/v2/pkg/shim"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Maybe hijack the shim to run as a plain interpreter. This is what the
	// shim's Create call re-execs.
	brainfuck, args := isBrainfuckArg(os.Args[1:])

	if brainfuck {
		if err := runBrainfuck(ctx, args); err != nil {
			fmt.Fprintln(os.Stderr, "Error running brainfuck:", err)
			os.Exit(1)
		}
	} else {
		shim.Run(ctx, gobf_shim.NewManager("io.containerd.gobf.v1"))
	}
}

///////////////

func isBrainfuckArg(args []string) (bool, []string) {
	for i, arg := range args {
		if arg == "brainfuck" {
			return true, append(args[:i], args[i+1:]...)
		}
	}
	return false, args
}

func runBrainfuck(ctx context.Context, args []string) error {
	flagset := flag.NewFlagSet("brainfuck", flag.ExitOnError)
	filename := flagset.String("file", "", "brainfuck source file")
	charOutput := flagset.Bool("char", false, "render output cells as characters")
	verbose := flagset.Bool("verbose", false, "report compile timing")
	if err := flagset.Parse(args); err != nil {
		return err
	}

	if *filename == "" {
		return fmt.Errorf("invalid argument: -file is required")
	}

	source, err := os.ReadFile(*filename)
	if err != nil {
		return err
	}

	return bf.RunContext(ctx, string(source), os.Stdin, os.Stdout, bf.Options{
		CharOutput: *charOutput,
		Verbose:    *verbose,
	})
}
