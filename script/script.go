// Package script is the program-text front end for GoChallengeSolver.
//
// It wraps the otto JavaScript parser to turn raw interpreter source into
// the AST consumed by the disasm package, and extracts the challenge options
// object that the platform embeds in the page HTML.  No evaluation happens
// here; otto is used purely as a parser.
package script

import (
	"fmt"

	"github.com/robertkrimen/otto/ast"
	"github.com/robertkrimen/otto/parser"
)

// Parse parses JavaScript source into an otto AST.  The returned program is
// treated as immutable by every downstream pass.
func Parse(src string) (*ast.Program, error) {
	program, err := parser.ParseFile(nil, "", src, 0)
	if err != nil {
		return nil, fmt.Errorf("script: parse interpreter source: %w", err)
	}
	return program, nil
}
