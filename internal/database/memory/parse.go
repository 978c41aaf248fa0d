package memory

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

var (
	sqlLexer = lexer.MustSimple([]lexer.SimpleRule{
		{Name: "Keyword", Pattern: `(?i)\b(SELECT|FROM|WHERE|AND|AS|INSERT|INTO|VALUES|DELETE|CALL|TRUE|FALSE|NULL)\b`},
		{Name: "Param", Pattern: `\$\d+`},
		{Name: "QuotedIdent", Pattern: `"(?:[^"]|"")*"`},
		{Name: "String", Pattern: `'(?:[^']|'')*'`},
		{Name: "Number", Pattern: `-?\d+(?:\.\d+)?`},
		{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`},
		{Name: "Punct", Pattern: `[,().*=;]`},
		{Name: "Whitespace", Pattern: `\s+`},
	})

	sqlParser = participle.MustBuild[astStatement](
		participle.Lexer(sqlLexer),
		participle.Map(unquote, "String", "QuotedIdent"),
		participle.CaseInsensitive("Keyword"),
		participle.Elide("Whitespace"),
	)
)

// unquote strips the outer quotes. A doubled quote escapes itself.
func unquote(tok lexer.Token) (lexer.Token, error) {
	q := tok.Value[:1]
	tok.Value = strings.ReplaceAll(tok.Value[1:len(tok.Value)-1], q+q, q)
	return tok, nil
}

// operand is a statement value: a literal or a 1-based parameter.
type operand struct {
	param   int
	literal any
}

func (o operand) resolve(args []any) (any, error) {
	if o.param == 0 {
		return o.literal, nil
	}
	if o.param > len(args) {
		return nil, fmt.Errorf("missing argument $%d", o.param)
	}
	return args[o.param-1], nil
}

type selectItem struct {
	star    bool
	table   string
	column  string
	alias   string
	literal *operand
}

type tableRef struct {
	name  string
	alias string
}

type condition struct {
	table  string
	column string
	value  operand
}

type selectStmt struct {
	items []selectItem
	from  []tableRef
	where []condition
}

type insertStmt struct {
	table   string
	columns []string
	rows    [][]operand
}

type deleteStmt struct {
	table string
	where []condition
}

type callStmt struct {
	name string
	args []operand
}

// parse returns a *selectStmt, *insertStmt, *deleteStmt or *callStmt.
func parse(query string) (any, error) {
	query = strings.TrimSpace(query)
	ast, err := sqlParser.ParseString("", query)
	if err != nil {
		return nil, syntaxError(query, err)
	}
	return ast.toStatement()
}

// syntaxError rewrites a lexer or parser failure into the server's wording.
func syntaxError(query string, err error) error {
	var perr participle.Error
	if !errors.As(err, &perr) {
		return fmt.Errorf("syntax error: %w", err)
	}
	offset := perr.Position().Offset
	if offset >= len(query) {
		return errors.New("syntax error at end of input")
	}
	return fmt.Errorf("syntax error at or near %q", near(query[offset:]))
}

// near returns the word that starts rest.
func near(rest string) string {
	end := strings.IndexFunc(rest, func(r rune) bool {
		return unicode.IsSpace(r) || strings.ContainsRune(",();=", r)
	})
	switch {
	case end < 0:
		return rest
	case end == 0:
		return rest[:1]
	}
	return rest[:end]
}
