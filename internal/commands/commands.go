// Package commands provides command handlers for the qbranch REPL,
// structured the way the teacher's commands.Handler dispatches REPL verbs
// to a single underlying machine, re-pointed at machine.Engine and the
// .qb statement grammar instead of RISC-V instructions.
package commands

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/sammylord/qbranch/internal/help"
	"github.com/sammylord/qbranch/internal/script"
	"github.com/sammylord/qbranch/machine"
)

// Handler dispatches REPL lines to an Engine via a script.Interp.
type Handler struct {
	eng    *machine.Engine
	interp *script.Interp
}

// NewHandler creates a handler over a fresh engine with cfg/log.
func NewHandler(cfg machine.Config, log zerolog.Logger) *Handler {
	eng := machine.New(cfg, log, nil)
	interp := script.New(eng)
	interp.Out = func(line string) { fmt.Println(line) }
	return &Handler{eng: eng, interp: interp}
}

// ShowHelp prints the REPL's command and script-format help text.
func (h *Handler) ShowHelp() {
	fmt.Println(help.Basic())
	fmt.Println()
	fmt.Println(help.Script())
}

// HandleLine runs one .qb statement line.
func (h *Handler) HandleLine(line string) error {
	return h.interp.RunLine(line)
}

// HandleState prints the current branch list.
func (h *Handler) HandleState() error {
	st := h.eng.Store()
	for i := 0; i < st.Len(); i++ {
		b := st.Branch(i)
		var parts []string
		for id, v := range b.Values {
			parts = append(parts, fmt.Sprintf("r%d=%d", id, v.Signed()))
		}
		fmt.Printf("branch %d: amp=%v  %s\n", i, b.Amp, strings.Join(parts, " "))
	}
	return nil
}

// Reset replaces the handler's engine with a fresh one under the same
// configuration.
func (h *Handler) Reset(cfg machine.Config, log zerolog.Logger) {
	h.eng = machine.New(cfg, log, nil)
	h.interp = script.New(h.eng)
	h.interp.Out = func(line string) { fmt.Println(line) }
}

// Engine exposes the underlying engine (used by `qbranch run`'s file
// mode, which drives the same Interp the REPL does).
func (h *Handler) Engine() *machine.Engine { return h.eng }

// Interp exposes the handler's script interpreter.
func (h *Handler) Interp() *script.Interp { return h.interp }
