package migrate

import (
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
	"github.com/pkg/errors"
)

const (
	symbolHead  = "head"
	symbolHeads = "heads"
	symbolBase  = "base"
)

var (
	targetLexer = lexer.MustSimple([]lexer.SimpleRule{
		{Name: "Offset", Pattern: `[-+]\d+`},
		{Name: "Ident", Pattern: `[A-Za-z0-9_]+`},
		{Name: "Punct", Pattern: `[:@]`},
		{Name: "Whitespace", Pattern: `\s+`},
	})

	targetParser = participle.MustBuild[Expression](
		participle.Lexer(targetLexer),
		participle.Elide("Whitespace"),
	)
)

type (
	// Expression is a parsed revision expression.
	//
	// A single reference (`head`, `ae10+1`, `shop@head`, `-1`) leaves Range
	// false. A range (`head:-1`, `:ae10`, `ae10:`) sets Range, and either end may
	// be nil, meaning "base" for Start and "heads" for End.
	Expression struct {
		Start *Reference `parser:"@@?"`
		Range bool       `parser:"( @':'"`
		End   *Reference `parser:"  @@? )?"`
	}

	// Reference is one side of an expression.
	//
	// `label@head` is captured as Name=label, Head=head. Offset keeps its sign,
	// e.g. "+2" or "-1".
	Reference struct {
		Name   string `parser:"( @Ident"`
		Head   string `parser:"  ( '@' @Ident )?"`
		Offset string `parser:"  @Offset? | @Offset )"`
	}
)

// ParseTarget parses a revision expression.
//
// Supported forms:
//
//	head            the single head revision
//	heads           every head revision
//	base            before the first revision
//	ae10            a revision id, or any unique prefix of one, or a branch label
//	shop@head       the head of the branch labelled shop
//	-1, +2          relative to the current revision
//	ae10+1, head-2  relative to a revision
//	head:-1         a range, ends may be omitted (":ae10", "ae10:")
func ParseTarget(s string) (*Expression, error) {
	if strings.TrimSpace(s) == "" {
		return nil, errors.New("empty revision expression")
	}

	expr, err := targetParser.ParseString("", s)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid revision expression: %q", s)
	}

	if expr.Start.IsZero() {
		expr.Start = nil
	}

	if expr.End.IsZero() {
		expr.End = nil
	}

	if !expr.Range && expr.Start == nil {
		return nil, errors.Errorf("invalid revision expression: %q", s)
	}

	return expr, nil
}

// IsZero reports whether the reference is nil or matched nothing.
func (r *Reference) IsZero() bool {
	return r == nil || (r.Name == "" && r.Head == "" && r.Offset == "")
}

// Symbol returns the revision id, label or keyword being referenced.
func (r *Reference) Symbol() string {
	if r.Head != "" {
		return r.Head
	}

	return r.Name
}

// Branch returns the branch label of a `label@head` reference.
func (r *Reference) Branch() string {
	if r.Head != "" {
		return r.Name
	}

	return ""
}

// Steps returns the signed offset, or 0 when there is none.
func (r *Reference) Steps() int {
	if r.Offset == "" {
		return 0
	}

	// The lexer guarantees a sign followed by digits.
	n, _ := strconv.Atoi(r.Offset)
	return n
}

// IsRelative reports whether the reference is an offset from the current revision.
func (r *Reference) IsRelative() bool {
	return r.Symbol() == "" && r.Offset != ""
}

// String renders the reference the way it was written.
func (r *Reference) String() string {
	if r == nil {
		return ""
	}

	var sb strings.Builder
	if r.Head != "" {
		sb.WriteString(r.Name)
		sb.WriteString("@")
		sb.WriteString(r.Head)
	} else {
		sb.WriteString(r.Name)
	}

	sb.WriteString(r.Offset)
	return sb.String()
}
