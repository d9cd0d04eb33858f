// Package help provides help text and documentation for the qbranch REPL.
package help

// Basic returns the basic command help text.
func Basic() string {
	return `Available commands:
  <name> := reg                       - Allocate a fresh register, bound to <name>
  init <name> <expr>                  - Initialize <name> to <expr> (must be an integer)
  had <name> <bit>                    - Apply a Hadamard to bit <bit> of <name>
  qft <name> <d>                      - Apply the d-ary QFT to <name>
  phase <theta>                       - Multiply every controlled branch's amplitude by e^(i*theta)
  cnot <name> <bit1> <bit2>           - Flip bit <bit2> of <name> when bit <bit1> reads 1
  <name> += <expr>                    - Reversible add-assign
  <name> -= <expr>                    - Reversible sub-assign
  <name> *= <expr>                    - Reversible mul-assign (irreversible at 0)
  measure <expr...>                   - Collapse and sample the given expressions
  dist <expr...>                      - Show the classical distribution of the given expressions
  postselect <expr>                   - Keep only branches where <expr> is nonzero
  state                                - Show the current branch list
  help                                - Show this help message
  exit                                - Exit the REPL`
}

// Script returns help text for the .qb script line syntax.
func Script() string {
	return `qbranch .qb script format — one statement per line:
  x := reg
  init x 5
  had x 0
  cnot x 0 1
  x += 3
  measure x
  dist x
  # a comment line, ignored
Blank lines are ignored. Every line's first token is the statement keyword
except assignment lines (identifier ':=' 'reg' or identifier '+=' expr).`
}
