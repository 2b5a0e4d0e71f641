// Package filter compiles AIP-160 filter expressions and evaluates them
// against in-memory records.
package filter

import (
	"fmt"
	"strings"

	"go.einride.tech/aip/filtering"
	expr "google.golang.org/genproto/googleapis/api/expr/v1alpha1"
)

// Field declares an identifier usable in expressions.
type Field struct {
	Name string
	Type *expr.Type
}

// String declares a string field.
func String(name string) Field { return Field{Name: name, Type: filtering.TypeString} }

// Int declares an integer field.
func Int(name string) Field { return Field{Name: name, Type: filtering.TypeInt} }

// Resolver returns a value for a field name.
type Resolver func(name string) (any, bool)

// Program is a compiled expression. The zero Program matches everything.
type Program struct {
	source string
	root   *expr.Expr
}

// Compile parses and type-checks expression against fields. An empty
// expression compiles to a program that matches every record.
func Compile(expression string, fields ...Field) (*Program, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return &Program{}, nil
	}

	opts := []filtering.DeclarationOption{filtering.DeclareStandardFunctions()}
	for _, f := range fields {
		opts = append(opts, filtering.DeclareIdent(f.Name, f.Type))
	}
	decls, err := filtering.NewDeclarations(opts...)
	if err != nil {
		return nil, fmt.Errorf("create declarations: %w", err)
	}

	parsed, err := filtering.ParseFilterString(expression, decls)
	if err != nil {
		return nil, fmt.Errorf("parse filter: %w", err)
	}
	if parsed.CheckedExpr == nil {
		return &Program{source: expression}, nil
	}
	return &Program{source: expression, root: parsed.CheckedExpr.Expr}, nil
}

// String returns the source expression.
func (p *Program) String() string {
	if p == nil {
		return ""
	}
	return p.source
}

// Matches evaluates the program against resolve.
func (p *Program) Matches(resolve Resolver) (bool, error) {
	if p == nil || p.root == nil {
		return true, nil
	}
	return Evaluate(p.root, resolve)
}
