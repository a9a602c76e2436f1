package sqlast

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jlang/reldb/codec"
)

// typeNames maps the grammar's column type keywords to codec tags.
var typeNames = map[string]codec.Tag{
	"SMALLINT":  codec.SMALLINT,
	"INT":       codec.INT,
	"BIGINT":    codec.BIGINT,
	"DOUBLE":    codec.DOUBLE,
	"CHAR":      codec.CHAR,
	"VARCHAR":   codec.VARCHAR,
	"BOOLEAN":   codec.BOOLEAN,
	"UUID":      codec.UUID,
	"DATE":      codec.DATE,
	"TIME":      codec.TIME,
	"TIMESTAMP": codec.TIMESTAMP,
	"GEOMETRIC": codec.GEOMETRIC,
	"JSON":      codec.JSON,
	"DECIMAL":   codec.DECIMAL,
}

// Parser consumes a token stream produced by Lexer and builds one
// Statement, recursive-descent style.
type Parser struct {
	lex *Lexer
	tok Token
}

// Parse lexes and parses sql into a single Statement.
func Parse(sql string) (Statement, error) {
	p := &Parser{lex: NewLexer(sql)}
	if err := p.next(); err != nil {
		return nil, err
	}
	return p.parseStatement()
}

func (p *Parser) next() error {
	t, err := p.lex.Next()
	if err != nil {
		return err
	}
	p.tok = t
	return nil
}

func (p *Parser) expectKeyword(kw string) error {
	if p.tok.Kind != KEYWORD || p.tok.Text != kw {
		return fmt.Errorf("%w: expected %s, got %q", ErrSyntax, kw, p.tok.Text)
	}
	return p.next()
}

func (p *Parser) isKeyword(kw string) bool {
	return p.tok.Kind == KEYWORD && p.tok.Text == kw
}

func (p *Parser) expectIdent() (string, error) {
	if p.tok.Kind != IDENT {
		return "", fmt.Errorf("%w: expected identifier, got %q", ErrSyntax, p.tok.Text)
	}
	name := p.tok.Text
	return name, p.next()
}

func (p *Parser) expectKind(k Kind, what string) error {
	if p.tok.Kind != k {
		return fmt.Errorf("%w: expected %s, got %q", ErrSyntax, what, p.tok.Text)
	}
	return p.next()
}

// qualifiedName parses `a.b.c`, returning its dot-separated parts.
func (p *Parser) qualifiedName() ([]string, error) {
	first, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	parts := []string{first}
	for p.tok.Kind == DOT {
		if err := p.next(); err != nil {
			return nil, err
		}
		part, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		parts = append(parts, part)
	}
	return parts, nil
}

func (p *Parser) parseStatement() (Statement, error) {
	switch {
	case p.isKeyword("CREATE"):
		return p.parseCreate()
	case p.isKeyword("INSERT"):
		return p.parseInsert()
	case p.isKeyword("COPY"):
		return p.parseCopy()
	case p.isKeyword("SELECT"):
		return p.parseSelect()
	case p.isKeyword("DELETE"):
		return p.parseDelete()
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedStatement, p.tok.Text)
	}
}

func (p *Parser) parseCreate() (Statement, error) {
	if err := p.expectKeyword("CREATE"); err != nil {
		return nil, err
	}
	switch {
	case p.isKeyword("DATABASE"):
		p.next()
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		return CreateDatabase{Name: name}, nil
	case p.isKeyword("SCHEMA"):
		p.next()
		parts, err := p.qualifiedName()
		if err != nil {
			return nil, err
		}
		if len(parts) != 2 {
			return nil, fmt.Errorf("%w: CREATE SCHEMA expects <db>.<name>", ErrSyntax)
		}
		return CreateSchema{DB: parts[0], Name: parts[1]}, nil
	case p.isKeyword("TABLE"):
		p.next()
		parts, err := p.qualifiedName()
		if err != nil {
			return nil, err
		}
		if len(parts) != 3 {
			return nil, fmt.Errorf("%w: CREATE TABLE expects <db>.<schema>.<name>", ErrSyntax)
		}
		cols, err := p.parseColumnDefs()
		if err != nil {
			return nil, err
		}
		return CreateTable{DB: parts[0], Schema: parts[1], Name: parts[2], Columns: cols}, nil
	case p.isKeyword("INDEX"):
		p.next()
		idxName, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if err := p.expectKeyword("ON"); err != nil {
			return nil, err
		}
		parts, err := p.qualifiedName()
		if err != nil {
			return nil, err
		}
		if len(parts) != 3 {
			return nil, fmt.Errorf("%w: CREATE INDEX ON expects <db>.<schema>.<table>", ErrSyntax)
		}
		if err := p.expectKeyword("USING"); err != nil {
			return nil, err
		}
		using, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if err := p.expectKind(LPAREN, "("); err != nil {
			return nil, err
		}
		col, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if err := p.expectKind(RPAREN, ")"); err != nil {
			return nil, err
		}
		return CreateIndex{Name: idxName, DB: parts[0], Schema: parts[1], Table: parts[2], Using: strings.ToUpper(using), Column: col}, nil
	default:
		return nil, fmt.Errorf("%w: CREATE %q", ErrUnsupportedStatement, p.tok.Text)
	}
}

func (p *Parser) parseColumnDefs() ([]ColumnDef, error) {
	if err := p.expectKind(LPAREN, "("); err != nil {
		return nil, err
	}
	var cols []ColumnDef
	for {
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		typeName, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		tag, ok := typeNames[strings.ToUpper(typeName)]
		if !ok {
			return nil, fmt.Errorf("%w: unknown column type %q", ErrSyntax, typeName)
		}
		length := codec.Size(tag, 0)
		if p.tok.Kind == LPAREN {
			p.next()
			if p.tok.Kind != NUMBER {
				return nil, fmt.Errorf("%w: expected length literal, got %q", ErrSyntax, p.tok.Text)
			}
			n, err := strconv.Atoi(p.tok.Text)
			if err != nil {
				return nil, fmt.Errorf("%w: invalid length %q", ErrSyntax, p.tok.Text)
			}
			length = n
			p.next()
			if err := p.expectKind(RPAREN, ")"); err != nil {
				return nil, err
			}
		}
		col := ColumnDef{Name: name, Tag: tag, Len: length}
		for p.isKeyword("NOT") || p.isKeyword("DEFAULT") {
			if p.isKeyword("NOT") {
				p.next()
				if err := p.expectKeyword("NULL"); err != nil {
					return nil, err
				}
				col.NotNull = true
				continue
			}
			p.next() // DEFAULT
			if _, err := p.parseLiteral(); err != nil {
				return nil, err
			}
			col.HasDefault = true
		}
		cols = append(cols, col)
		if p.tok.Kind == COMMA {
			p.next()
			continue
		}
		break
	}
	return cols, p.expectKind(RPAREN, ")")
}

func (p *Parser) parseLiteral() (any, error) {
	switch p.tok.Kind {
	case STRING:
		v := p.tok.Text
		return v, p.next()
	case NUMBER:
		text := p.tok.Text
		if strings.Contains(text, ".") {
			f, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: invalid number %q", ErrSyntax, text)
			}
			return f, p.next()
		}
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid number %q", ErrSyntax, text)
		}
		return n, p.next()
	case KEYWORD:
		switch p.tok.Text {
		case "TRUE":
			return true, p.next()
		case "FALSE":
			return false, p.next()
		case "NULL":
			return nil, p.next()
		}
		return nil, fmt.Errorf("%w: unexpected keyword %q in literal position", ErrSyntax, p.tok.Text)
	default:
		return nil, fmt.Errorf("%w: expected literal, got %q", ErrSyntax, p.tok.Text)
	}
}

func (p *Parser) parseInsert() (Statement, error) {
	if err := p.expectKeyword("INSERT"); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("INTO"); err != nil {
		return nil, err
	}
	parts, err := p.qualifiedName()
	if err != nil {
		return nil, err
	}
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: INSERT INTO expects <db>.<schema>.<table>", ErrSyntax)
	}
	if err := p.expectKind(LPAREN, "("); err != nil {
		return nil, err
	}
	var cols []string
	for {
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		cols = append(cols, name)
		if p.tok.Kind == COMMA {
			p.next()
			continue
		}
		break
	}
	if err := p.expectKind(RPAREN, ")"); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("VALUES"); err != nil {
		return nil, err
	}
	var rows [][]any
	for {
		if err := p.expectKind(LPAREN, "("); err != nil {
			return nil, err
		}
		var row []any
		for {
			v, err := p.parseLiteral()
			if err != nil {
				return nil, err
			}
			row = append(row, v)
			if p.tok.Kind == COMMA {
				p.next()
				continue
			}
			break
		}
		if err := p.expectKind(RPAREN, ")"); err != nil {
			return nil, err
		}
		rows = append(rows, row)
		if p.tok.Kind == COMMA {
			p.next()
			continue
		}
		break
	}
	return InsertInto{DB: parts[0], Schema: parts[1], Table: parts[2], Columns: cols, Rows: rows}, nil
}

func (p *Parser) parseCopy() (Statement, error) {
	if err := p.expectKeyword("COPY"); err != nil {
		return nil, err
	}
	parts, err := p.qualifiedName()
	if err != nil {
		return nil, err
	}
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: COPY expects <db>.<schema>.<table>", ErrSyntax)
	}
	if err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	if p.tok.Kind != STRING {
		return nil, fmt.Errorf("%w: expected quoted path, got %q", ErrSyntax, p.tok.Text)
	}
	path := p.tok.Text
	if err := p.next(); err != nil {
		return nil, err
	}
	return Copy{DB: parts[0], Schema: parts[1], Table: parts[2], Path: path}, nil
}

func (p *Parser) parseSelect() (Statement, error) {
	if err := p.expectKeyword("SELECT"); err != nil {
		return nil, err
	}
	var cols []string
	if p.tok.Kind == STAR {
		p.next()
	} else {
		for {
			name, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			cols = append(cols, name)
			if p.tok.Kind == COMMA {
				p.next()
				continue
			}
			break
		}
	}
	if err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	parts, err := p.qualifiedName()
	if err != nil {
		return nil, err
	}
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: SELECT FROM expects <db>.<schema>.<table>", ErrSyntax)
	}
	stmt := Select{DB: parts[0], Schema: parts[1], Table: parts[2], Columns: cols}
	if p.isKeyword("WHERE") {
		p.next()
		pred, err := p.parseWhere()
		if err != nil {
			return nil, err
		}
		stmt.Where = pred
	}
	return stmt, nil
}

// parseWhere parses an equality predicate, a BETWEEN range, or a
// four-range spatial conjunction (`x BETWEEN .. AND y BETWEEN ..`).
func (p *Parser) parseWhere() (Predicate, error) {
	col, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if p.tok.Kind == EQ {
		p.next()
		v, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		return EqPredicate{Column: col, Value: v}, nil
	}
	if err := p.expectKeyword("BETWEEN"); err != nil {
		return nil, err
	}
	low, err := p.parseLiteral()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("AND"); err != nil {
		return nil, err
	}
	high, err := p.parseLiteral()
	if err != nil {
		return nil, err
	}
	if !p.isKeyword("AND") {
		return BetweenPredicate{Column: col, Low: low, High: high}, nil
	}
	p.next() // AND
	yCol, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("BETWEEN"); err != nil {
		return nil, err
	}
	yLow, err := p.parseLiteral()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("AND"); err != nil {
		return nil, err
	}
	yHigh, err := p.parseLiteral()
	if err != nil {
		return nil, err
	}
	return SpatialPredicate{
		XColumn: col, XLow: toFloat(low), XHigh: toFloat(high),
		YColumn: yCol, YLow: toFloat(yLow), YHigh: toFloat(yHigh),
	}, nil
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case int64:
		return float64(n)
	case float64:
		return n
	default:
		return 0
	}
}

func (p *Parser) parseDelete() (Statement, error) {
	if err := p.expectKeyword("DELETE"); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	parts, err := p.qualifiedName()
	if err != nil {
		return nil, err
	}
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: DELETE FROM expects <db>.<schema>.<table>", ErrSyntax)
	}
	if err := p.expectKeyword("WHERE"); err != nil {
		return nil, err
	}
	pred, err := p.parseWhere()
	if err != nil {
		return nil, err
	}
	eq, ok := pred.(EqPredicate)
	if !ok {
		return nil, fmt.Errorf("%w: DELETE requires an equality predicate", ErrSyntax)
	}
	return Delete{DB: parts[0], Schema: parts[1], Table: parts[2], Where: eq}, nil
}
