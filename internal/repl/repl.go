// Package repl provides the REPL (Read-Eval-Print Loop) for qbranch,
// structurally the same read-split-dispatch loop as the teacher's
// repl.REPL, re-pointed at commands.Handler's .qb dispatch instead of
// RISC-V text.
package repl

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/sammylord/qbranch/internal/commands"
	"github.com/sammylord/qbranch/machine"
)

// REPL is an interactive qbranch session.
type REPL struct {
	handler *commands.Handler
	reader  *bufio.Reader
	cfg     machine.Config
	log     zerolog.Logger
}

// New creates a REPL over a fresh engine configured by cfg/log.
func New(cfg machine.Config, log zerolog.Logger) *REPL {
	return &REPL{
		handler: commands.NewHandler(cfg, log),
		reader:  bufio.NewReader(os.Stdin),
		cfg:     cfg,
		log:     log,
	}
}

// Start begins the REPL session, blocking until the user exits.
func (r *REPL) Start() {
	fmt.Println("qbranch — explicit branch-enumeration quantum simulator")
	fmt.Println("Type 'help' for available commands")

	for {
		fmt.Print("\nqbranch> ")
		input, err := r.reader.ReadString('\n')
		if err != nil {
			fmt.Printf("error reading input: %v\n", err)
			continue
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if err := r.dispatch(input); err != nil {
			fmt.Printf("error: %v\n", err)
		}
	}
}

func (r *REPL) dispatch(input string) error {
	first := strings.Fields(input)[0]
	switch first {
	case "exit", "quit":
		fmt.Println("goodbye")
		os.Exit(0)
	case "help":
		r.handler.ShowHelp()
		return nil
	case "state":
		return r.handler.HandleState()
	case "reset":
		r.handler.Reset(r.cfg, r.log)
		return nil
	default:
		return r.handler.HandleLine(input)
	}
	return nil
}
