// Command lamarun loads a bytecode image and runs it to completion.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/OldKrab/lama-interpreter/internal/gcroots"
	"github.com/OldKrab/lama-interpreter/internal/image"
	"github.com/OldKrab/lama-interpreter/internal/runtime"
	"github.com/OldKrab/lama-interpreter/internal/vm"
)

var traceFlag bool

var rootCmd = &cobra.Command{
	Use:   "lamarun <image>",
	Short: "Run a compiled bytecode image",
	Args:  cobra.ExactArgs(1),
	RunE:  run,
}

func init() {
	rootCmd.Flags().BoolVar(&traceFlag, "trace", false, "print one line per decoded instruction to stderr")
}

func run(cmd *cobra.Command, args []string) error {
	img, err := image.Load(args[0])
	if err != nil {
		return err
	}

	lib := runtime.New(os.Stdin, os.Stdout)
	roots := &gcroots.Roots{}

	m := vm.NewMachine(img, lib, roots)
	if traceFlag {
		m.Trace = os.Stderr
	}

	restore := gcroots.Pin()
	runErr := m.Run()
	restore()

	if flushErr := lib.Flush(); flushErr != nil && runErr == nil {
		runErr = flushErr
	}
	return runErr
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "lamarun: %s\n", err)
		os.Exit(1)
	}
}
