// Package parser implements a recursive-descent parser over the
// restricted SQL dialect normlite accepts. It does not resolve
// identifiers against schema; that happens later in internal/compiler.
package parser

import (
	"fmt"
	"strings"

	"normlite/internal/ast"
	"normlite/internal/lexer"
	"normlite/internal/normerr"
)

// Parser consumes a token stream and builds one AST node per call to
// Parse.
type Parser struct {
	toks []lexer.Token
	pos  int
}

// Parse tokenizes and parses a single SQL statement, returning its
// AST. A trailing `;` is optional and consumed if present.
func Parse(sql string) (ast.Node, error) {
	toks, err := lexer.All(sql)
	if err != nil {
		return nil, err
	}
	p := &Parser{toks: toks}
	return p.parseStatement()
}

func (p *Parser) cur() lexer.Token {
	return p.toks[p.pos]
}

func (p *Parser) advance() lexer.Token {
	tok := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return tok
}

func (p *Parser) isKeyword(kw string) bool {
	tok := p.cur()
	return tok.Kind == lexer.KEYWORD && strings.EqualFold(tok.Lexeme, kw)
}

func (p *Parser) isSymbol(sym string) bool {
	tok := p.cur()
	return tok.Kind == lexer.SYMBOL && tok.Lexeme == sym
}

func (p *Parser) expectKeyword(kw string) (lexer.Token, error) {
	if !p.isKeyword(kw) {
		return lexer.Token{}, p.unexpected(kw)
	}
	return p.advance(), nil
}

func (p *Parser) expectSymbol(sym string) (lexer.Token, error) {
	if !p.isSymbol(sym) {
		return lexer.Token{}, p.unexpected(sym)
	}
	return p.advance(), nil
}

func (p *Parser) expectIdentifier() (lexer.Token, error) {
	tok := p.cur()
	if tok.Kind != lexer.IDENTIFIER {
		return lexer.Token{}, p.unexpected("identifier")
	}
	return p.advance(), nil
}

func (p *Parser) unexpected(expected string) error {
	tok := p.cur()
	return &normerr.SyntaxError{
		Position: tok.Position,
		Message:  fmt.Sprintf("expected %s, got %s %q", expected, tok.Kind, tok.Lexeme),
	}
}

func (p *Parser) parseStatement() (ast.Node, error) {
	switch {
	case p.isKeyword("CREATE"):
		return p.parseCreateTable()
	case p.isKeyword("INSERT"):
		return p.parseInsert()
	case p.isKeyword("SELECT"):
		return p.parseSelect()
	case p.isKeyword("DROP"):
		return p.parseDropTable()
	default:
		return nil, p.unexpected("CREATE, INSERT, SELECT, or DROP")
	}
}

// parseCreateTable: CREATE TABLE name (col type [PRIMARY KEY], ...)
func (p *Parser) parseCreateTable() (*ast.CreateTable, error) {
	if _, err := p.expectKeyword("CREATE"); err != nil {
		return nil, err
	}
	if _, err := p.expectKeyword("TABLE"); err != nil {
		return nil, err
	}
	name, err := p.expectIdentifier()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectSymbol("("); err != nil {
		return nil, err
	}

	var cols []*ast.ColumnDef
	for {
		col, err := p.parseColumnDef()
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
		if p.isSymbol(",") {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expectSymbol(")"); err != nil {
		return nil, err
	}
	p.consumeOptionalSemicolon()
	return &ast.CreateTable{Table: name.Lexeme, Columns: cols}, nil
}

func (p *Parser) parseColumnDef() (*ast.ColumnDef, error) {
	name, err := p.expectIdentifier()
	if err != nil {
		return nil, err
	}
	typ, err := p.parseColumnType()
	if err != nil {
		return nil, err
	}
	col := &ast.ColumnDef{Name: name.Lexeme, Type: typ}
	if p.isKeyword("PRIMARY") {
		p.advance()
		if _, err := p.expectKeyword("KEY"); err != nil {
			return nil, err
		}
		col.PrimaryKey = true
	}
	return col, nil
}

var typeKeywords = map[string]bool{
	"INT": true, "VARCHAR": true, "TITLE_VARCHAR": true,
	"BOOL": true, "DATE": true, "NUMBER": true, "MONEY": true,
}

func (p *Parser) parseColumnType() (ast.ColumnType, error) {
	tok := p.cur()
	if tok.Kind != lexer.KEYWORD || !typeKeywords[strings.ToUpper(tok.Lexeme)] {
		return ast.ColumnType{}, p.unexpected("a column type")
	}
	p.advance()
	name := strings.ToUpper(tok.Lexeme)
	typ := ast.ColumnType{Name: name}

	switch name {
	case "VARCHAR", "TITLE_VARCHAR":
		if _, err := p.expectSymbol("("); err != nil {
			return ast.ColumnType{}, err
		}
		sizeTok := p.cur()
		if sizeTok.Kind != lexer.NUMBER {
			return ast.ColumnType{}, p.unexpected("a size")
		}
		p.advance()
		size, err := ast.ParseInt64(sizeTok.Lexeme)
		if err != nil {
			return ast.ColumnType{}, &normerr.SyntaxError{Position: sizeTok.Position, Message: "invalid size literal"}
		}
		typ.Size = int(size)
		if _, err := p.expectSymbol(")"); err != nil {
			return ast.ColumnType{}, err
		}
	case "MONEY":
		if _, err := p.expectSymbol("("); err != nil {
			return ast.ColumnType{}, err
		}
		curTok, err := p.expectIdentifier()
		if err != nil {
			return ast.ColumnType{}, err
		}
		typ.Currency = curTok.Lexeme
		if _, err := p.expectSymbol(")"); err != nil {
			return ast.ColumnType{}, err
		}
	}
	return typ, nil
}

// parseInsert: INSERT INTO name (cols) VALUES (lits_or_:params)
func (p *Parser) parseInsert() (*ast.Insert, error) {
	if _, err := p.expectKeyword("INSERT"); err != nil {
		return nil, err
	}
	if _, err := p.expectKeyword("INTO"); err != nil {
		return nil, err
	}
	name, err := p.expectIdentifier()
	if err != nil {
		return nil, err
	}
	cols, err := p.parseIdentList()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectKeyword("VALUES"); err != nil {
		return nil, err
	}
	if _, err := p.expectSymbol("("); err != nil {
		return nil, err
	}
	var values []ast.Expression
	for {
		val, err := p.parseInsertValue()
		if err != nil {
			return nil, err
		}
		values = append(values, val)
		if p.isSymbol(",") {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expectSymbol(")"); err != nil {
		return nil, err
	}
	p.consumeOptionalSemicolon()

	if len(values) != len(cols) {
		return nil, &normerr.SyntaxError{
			Position: p.cur().Position,
			Message:  fmt.Sprintf("column count %d does not match value count %d", len(cols), len(values)),
		}
	}
	return &ast.Insert{Table: name.Lexeme, Columns: cols, Values: values}, nil
}

func (p *Parser) parseIdentList() ([]string, error) {
	if _, err := p.expectSymbol("("); err != nil {
		return nil, err
	}
	var names []string
	for {
		tok, err := p.expectIdentifier()
		if err != nil {
			return nil, err
		}
		names = append(names, tok.Lexeme)
		if p.isSymbol(",") {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expectSymbol(")"); err != nil {
		return nil, err
	}
	return names, nil
}

func (p *Parser) parseInsertValue() (ast.Expression, error) {
	if p.isSymbol(":") {
		p.advance()
		name, err := p.expectIdentifier()
		if err != nil {
			return nil, err
		}
		return &ast.Param{Name: name.Lexeme}, nil
	}
	return p.parseLiteral()
}

func (p *Parser) parseLiteral() (*ast.Constant, error) {
	tok := p.cur()
	switch tok.Kind {
	case lexer.NUMBER:
		p.advance()
		n, err := ast.ParseInt64(tok.Lexeme)
		if err != nil {
			return nil, &normerr.SyntaxError{Position: tok.Position, Message: "invalid number literal"}
		}
		return &ast.Constant{Kind: ast.ConstantNumber, Raw: tok.Lexeme, Value: n}, nil
	case lexer.STRING:
		p.advance()
		return &ast.Constant{Kind: ast.ConstantString, Raw: tok.Lexeme, Value: tok.Lexeme}, nil
	case lexer.KEYWORD:
		if strings.EqualFold(tok.Lexeme, "TRUE") {
			p.advance()
			return &ast.Constant{Kind: ast.ConstantBool, Raw: tok.Lexeme, Value: true}, nil
		}
		if strings.EqualFold(tok.Lexeme, "FALSE") {
			p.advance()
			return &ast.Constant{Kind: ast.ConstantBool, Raw: tok.Lexeme, Value: false}, nil
		}
	}
	return nil, p.unexpected("a literal value")
}

// parseSelect: SELECT cols|* FROM name [WHERE expr]
func (p *Parser) parseSelect() (*ast.Select, error) {
	if _, err := p.expectKeyword("SELECT"); err != nil {
		return nil, err
	}
	sel := &ast.Select{}
	if p.isSymbol("*") {
		p.advance()
		sel.Star = true
	} else {
		cols, err := p.parseSelectColumnList()
		if err != nil {
			return nil, err
		}
		sel.Columns = cols
	}
	if _, err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	name, err := p.expectIdentifier()
	if err != nil {
		return nil, err
	}
	sel.Table = name.Lexeme

	if p.isKeyword("WHERE") {
		p.advance()
		expr, err := p.parseOrExpr()
		if err != nil {
			return nil, err
		}
		sel.Where = &ast.Where{Expr: expr}
	}
	p.consumeOptionalSemicolon()
	return sel, nil
}

func (p *Parser) parseSelectColumnList() ([]string, error) {
	var cols []string
	for {
		tok, err := p.expectIdentifier()
		if err != nil {
			return nil, err
		}
		cols = append(cols, tok.Lexeme)
		if p.isSymbol(",") {
			p.advance()
			continue
		}
		break
	}
	return cols, nil
}

func (p *Parser) parseDropTable() (*ast.DropTable, error) {
	if _, err := p.expectKeyword("DROP"); err != nil {
		return nil, err
	}
	if _, err := p.expectKeyword("TABLE"); err != nil {
		return nil, err
	}
	name, err := p.expectIdentifier()
	if err != nil {
		return nil, err
	}
	p.consumeOptionalSemicolon()
	return &ast.DropTable{Table: name.Lexeme}, nil
}

// WHERE precedence: AND binds tighter than OR; parentheses regroup.
func (p *Parser) parseOrExpr() (ast.Expression, error) {
	left, err := p.parseAndExpr()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("OR") {
		p.advance()
		right, err := p.parseAndExpr()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryOp{Op: "OR", Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseAndExpr() (ast.Expression, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("AND") {
		p.advance()
		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryOp{Op: "AND", Left: left, Right: right}
	}
	return left, nil
}

var comparisonOps = map[string]bool{
	"=": true, "!=": true, "<": true, "<=": true, ">": true, ">=": true,
}

func (p *Parser) parseComparison() (ast.Expression, error) {
	if p.isSymbol("(") {
		p.advance()
		expr, err := p.parseOrExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectSymbol(")"); err != nil {
			return nil, err
		}
		return expr, nil
	}

	if p.isKeyword("NOT") {
		p.advance()
		operand, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		// NOT is modeled as a BinaryOp tagged "NOT" over its single
		// operand, keeping the AST surface to the variants named in
		// spec.md §3 rather than introducing a new unary node.
		return &ast.BinaryOp{Op: "NOT", Left: operand}, nil
	}

	left, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	tok := p.cur()
	if tok.Kind != lexer.SYMBOL || !comparisonOps[tok.Lexeme] {
		return nil, p.unexpected("a comparison operator")
	}
	op := p.advance().Lexeme
	right, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	return &ast.BinaryOp{Op: op, Left: left, Right: right}, nil
}

func (p *Parser) parseOperand() (ast.Expression, error) {
	tok := p.cur()
	switch tok.Kind {
	case lexer.IDENTIFIER:
		p.advance()
		return &ast.Identifier{Name: tok.Lexeme}, nil
	case lexer.SYMBOL:
		if tok.Lexeme == ":" {
			p.advance()
			name, err := p.expectIdentifier()
			if err != nil {
				return nil, err
			}
			return &ast.Param{Name: name.Lexeme}, nil
		}
	case lexer.NUMBER, lexer.STRING:
		return p.parseLiteral()
	case lexer.KEYWORD:
		if strings.EqualFold(tok.Lexeme, "TRUE") || strings.EqualFold(tok.Lexeme, "FALSE") {
			return p.parseLiteral()
		}
	}
	return nil, p.unexpected("an identifier, literal, or parameter")
}

func (p *Parser) consumeOptionalSemicolon() {
	if p.isSymbol(";") {
		p.advance()
	}
}
