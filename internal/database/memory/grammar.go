package memory

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// The engine understands a small statement subset:
//
//	SELECT items FROM table [alias] [, table [alias]]... [WHERE col = value [AND ...]]
//	INSERT INTO table [(cols)] VALUES (values) [, (values)]...
//	DELETE FROM table [WHERE col = value [AND ...]]
//	CALL procedure([values])
//
// Values are literals (numbers, 'strings', TRUE, FALSE, NULL) or $n
// parameters.

type astStatement struct {
	Select *astSelect `parser:"  @@"`
	Insert *astInsert `parser:"| @@"`
	Delete *astDelete `parser:"| @@"`
	Call   *astCall   `parser:"| @@"`
}

type astSelect struct {
	Items []*astSelectItem `parser:"'SELECT' @@ (',' @@)*"`
	From  []*astTableRef   `parser:"'FROM' @@ (',' @@)*"`
	Where []*astCondition  `parser:"('WHERE' @@ ('AND' @@)*)? ';'?"`
}

type astSelectItem struct {
	Expr  *astSelectExpr `parser:"@@"`
	Alias *astName       `parser:"('AS'? @@)?"`
}

type astSelectExpr struct {
	Star    bool          `parser:"  @'*'"`
	Literal *astValue     `parser:"| @@"`
	Column  *astColumnRef `parser:"| @@"`
}

// astColumnRef is col, t.col or t.*.
type astColumnRef struct {
	First *astName       `parser:"@@"`
	Rest  *astColumnTail `parser:"('.' @@)?"`
}

type astColumnTail struct {
	Star bool     `parser:"  @'*'"`
	Name *astName `parser:"| @@"`
}

type astTableRef struct {
	Table *astQualified `parser:"@@"`
	Alias *astName      `parser:"('AS'? @@)?"`
}

type astCondition struct {
	Column *astQualified `parser:"@@"`
	Value  *astValue     `parser:"'=' @@"`
}

type astInsert struct {
	Table   *astQualified `parser:"'INSERT' 'INTO' @@"`
	Columns []*astName    `parser:"('(' @@ (',' @@)* ')')?"`
	Rows    []*astRow     `parser:"'VALUES' @@ (',' @@)* ';'?"`
}

type astRow struct {
	Values []*astValue `parser:"'(' @@ (',' @@)* ')'"`
}

type astDelete struct {
	Table *astQualified   `parser:"'DELETE' 'FROM' @@"`
	Where []*astCondition `parser:"('WHERE' @@ ('AND' @@)*)? ';'?"`
}

type astCall struct {
	Name *astQualified `parser:"'CALL' @@"`
	Args []*astValue   `parser:"'(' (@@ (',' @@)*)? ')' ';'?"`
}

// astQualified is name or qualifier.name.
type astQualified struct {
	Parts []*astName `parser:"@@ ('.' @@)?"`
}

type astName struct {
	Ident  *string `parser:"  @Ident"`
	Quoted *string `parser:"| @QuotedIdent"`
}

type astValue struct {
	Param  *string `parser:"  @Param"`
	Number *string `parser:"| @Number"`
	String *string `parser:"| @String"`
	Bool   *string `parser:"| @('TRUE' | 'FALSE')"`
	Null   bool    `parser:"| @'NULL'"`
}

func (n *astName) String() string {
	if n.Quoted != nil {
		return *n.Quoted
	}
	return *n.Ident
}

// split returns the qualifier, if any, and the final name.
func (q *astQualified) split() (qualifier, name string) {
	if len(q.Parts) == 1 {
		return "", q.Parts[0].String()
	}
	return q.Parts[0].String(), q.Parts[1].String()
}

func (q *astQualified) name() string {
	_, name := q.split()
	return name
}

func (v *astValue) operand() (operand, error) {
	switch {
	case v.Param != nil:
		n, err := strconv.Atoi(strings.TrimPrefix(*v.Param, "$"))
		if err != nil || n < 1 {
			return operand{}, fmt.Errorf("invalid parameter %s", *v.Param)
		}
		return operand{param: n}, nil
	case v.Number != nil:
		if strings.Contains(*v.Number, ".") {
			d, err := decimal.NewFromString(*v.Number)
			if err != nil {
				return operand{}, fmt.Errorf("invalid number %s", *v.Number)
			}
			return operand{literal: d}, nil
		}
		n, err := strconv.ParseInt(*v.Number, 10, 64)
		if err != nil {
			return operand{}, fmt.Errorf("invalid number %s", *v.Number)
		}
		return operand{literal: n}, nil
	case v.String != nil:
		return operand{literal: *v.String}, nil
	case v.Bool != nil:
		return operand{literal: strings.EqualFold(*v.Bool, "TRUE")}, nil
	}
	return operand{}, nil
}

func operands(values []*astValue) ([]operand, error) {
	var out []operand
	for _, v := range values {
		op, err := v.operand()
		if err != nil {
			return nil, err
		}
		out = append(out, op)
	}
	return out, nil
}

func conditions(ast []*astCondition) ([]condition, error) {
	var out []condition
	for _, c := range ast {
		op, err := c.Value.operand()
		if err != nil {
			return nil, err
		}
		table, column := c.Column.split()
		out = append(out, condition{table: table, column: column, value: op})
	}
	return out, nil
}

func (s *astStatement) toStatement() (any, error) {
	switch {
	case s.Select != nil:
		return s.Select.toStatement()
	case s.Insert != nil:
		return s.Insert.toStatement()
	case s.Delete != nil:
		where, err := conditions(s.Delete.Where)
		if err != nil {
			return nil, err
		}
		return &deleteStmt{table: s.Delete.Table.name(), where: where}, nil
	default:
		args, err := operands(s.Call.Args)
		if err != nil {
			return nil, err
		}
		return &callStmt{name: s.Call.Name.name(), args: args}, nil
	}
}

func (s *astSelect) toStatement() (*selectStmt, error) {
	stmt := &selectStmt{}
	for _, it := range s.Items {
		var item selectItem
		switch expr := it.Expr; {
		case expr.Star:
			item.star = true
		case expr.Literal != nil:
			op, err := expr.Literal.operand()
			if err != nil {
				return nil, err
			}
			item.literal = &op
		case expr.Column.Rest == nil:
			item.column = expr.Column.First.String()
		case expr.Column.Rest.Star:
			item.star = true
			item.table = expr.Column.First.String()
		default:
			item.table = expr.Column.First.String()
			item.column = expr.Column.Rest.Name.String()
		}
		if it.Alias != nil {
			item.alias = it.Alias.String()
		}
		stmt.items = append(stmt.items, item)
	}

	for _, ref := range s.From {
		t := tableRef{name: ref.Table.name()}
		if ref.Alias != nil {
			t.alias = ref.Alias.String()
		}
		stmt.from = append(stmt.from, t)
	}

	where, err := conditions(s.Where)
	if err != nil {
		return nil, err
	}
	stmt.where = where
	return stmt, nil
}

func (s *astInsert) toStatement() (*insertStmt, error) {
	stmt := &insertStmt{table: s.Table.name()}
	for _, c := range s.Columns {
		stmt.columns = append(stmt.columns, c.String())
	}
	for _, row := range s.Rows {
		ops, err := operands(row.Values)
		if err != nil {
			return nil, err
		}
		stmt.rows = append(stmt.rows, ops)
	}
	return stmt, nil
}
