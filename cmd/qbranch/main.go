// Command qbranch is the CLI entry point: a cobra command tree replacing
// the teacher's flag-based main.go, with run/repl/example subcommands
// over the same persistent --qubits/--epsilon/--verbose flags
// SPEC_FULL.md §7 specifies.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/sammylord/qbranch/examples"
	"github.com/sammylord/qbranch/internal/repl"
	"github.com/sammylord/qbranch/internal/script"
	"github.com/sammylord/qbranch/machine"
)

var (
	flagEpsilon   float64
	flagQubitWarn int
	flagVerbose   bool
)

func newLogger() zerolog.Logger {
	if !flagVerbose {
		return zerolog.Nop()
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
}

func newConfig() machine.Config {
	cfg := machine.DefaultConfig()
	if flagEpsilon > 0 {
		cfg.Epsilon = flagEpsilon
	}
	if flagQubitWarn > 0 {
		cfg.QubitWarn = flagQubitWarn
	}
	return cfg
}

func main() {
	root := &cobra.Command{
		Use:   "qbranch",
		Short: "An embedded quantum-programming layer over explicit branch enumeration",
	}
	root.PersistentFlags().Float64Var(&flagEpsilon, "epsilon", 0, "amplitude prune threshold (default 1e-10)")
	root.PersistentFlags().IntVar(&flagQubitWarn, "qubits", 0, "register-count warning threshold (default 24)")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable structured debug logging")

	root.AddCommand(runCmd(), replCmd(), exampleCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <file.qb>",
		Short: "Execute a .qb script",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			eng := machine.New(newConfig(), newLogger(), nil)
			interp := script.New(eng)
			interp.Out = func(line string) { fmt.Println(line) }
			return interp.Run(string(data))
		},
	}
}

func replCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Start an interactive qbranch session",
		RunE: func(cmd *cobra.Command, args []string) error {
			repl.New(newConfig(), newLogger()).Start()
			return nil
		},
	}
}

func exampleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "example <name>",
		Short: "Run one of the bundled example programs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng := machine.New(newConfig(), newLogger(), nil)
			out, err := examples.Run(eng, args[0])
			if err != nil {
				return err
			}
			fmt.Println(out)
			return nil
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the bundled example names",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range examples.Names() {
				fmt.Println(name)
			}
			return nil
		},
	})
	return cmd
}
