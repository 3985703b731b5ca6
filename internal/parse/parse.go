// Package parse builds a typed internal/ast.Unit from the token sequence
// internal/lex produces (spec §4.2).
//
// The parser struct — an accumulating, capped error list plus a
// p.error(msg) helper — is grounded on the teacher's asm/parser.go parser
// type, even though the grammar itself (a Pascal-like expression/statement
// language) has no analogue in Ngaro assembly, which has no expressions at
// all.
package parse

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/db47h/zplc/internal/ast"
	"github.com/db47h/zplc/internal/lex"
	"github.com/db47h/zplc/internal/token"
	"github.com/pkg/errors"
)

const maxErrors = 10

// Error is a single parse-phase error (spec §4.2/§7).
type Error struct {
	File    string
	Line    int
	Col     int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Col, e.Message)
}

// ErrorList aggregates every parse error found in one compilation unit.
type ErrorList []*Error

func (l ErrorList) Error() string {
	s := make([]string, len(l))
	for i, e := range l {
		s[i] = e.Error()
	}
	return strings.Join(s, "\n")
}

type parser struct {
	file string
	toks []token.Token
	pos  int
	errs ErrorList
}

// ParseSource lexes and parses one source file into a standalone Unit
// (holding only the declarations found in this file; internal/link parses
// and compiles each program source into its own Unit, without merging).
func ParseSource(file, src string) (*ast.Unit, error) {
	toks, err := lex.New(file, src).Tokenize()
	if err != nil {
		return nil, errors.Wrapf(err, "parse %s", file)
	}
	p := &parser{file: file, toks: toks}
	u := p.parseUnit()
	if len(p.errs) > 0 {
		return nil, p.errs
	}
	return u, nil
}

func (p *parser) error(msg string) {
	if len(p.errs) >= maxErrors {
		return
	}
	t := p.cur()
	p.errs = append(p.errs, &Error{File: p.file, Line: t.Line, Col: t.Col, Message: msg})
}

func (p *parser) cur() token.Token {
	if p.pos >= len(p.toks) {
		return token.Token{Kind: token.EOF}
	}
	return p.toks[p.pos]
}

func (p *parser) at(k token.Kind) bool { return p.cur().Kind == k }

func (p *parser) advance() token.Token {
	t := p.cur()
	if p.pos < len(p.toks) {
		p.pos++
	}
	return t
}

func (p *parser) expect(k token.Kind) token.Token {
	if !p.at(k) {
		p.error(fmt.Sprintf("expected %s, got %s", k, p.cur().Kind))
		return p.cur()
	}
	return p.advance()
}

// skipToRecover advances past tokens until one of the given kinds (or EOF)
// is reached, so that one malformed declaration doesn't cascade into
// spurious errors for the rest of the unit.
func (p *parser) skipToRecover(kinds ...token.Kind) {
	for !p.at(token.EOF) {
		for _, k := range kinds {
			if p.at(k) {
				return
			}
		}
		p.advance()
	}
}

// ---- top level --------------------------------------------------------

func (p *parser) parseUnit() *ast.Unit {
	u := &ast.Unit{}
	for !p.at(token.EOF) && len(p.errs) < maxErrors {
		switch p.cur().Kind {
		case token.KwType:
			if sd := p.parseStructDef(); sd != nil {
				u.Structs = append(u.Structs, sd)
			}
		case token.KwVarGlobal:
			if vb := p.parseVarBlock(); vb != nil {
				u.Globals = append(u.Globals, vb)
			}
		case token.KwFunction:
			if fn := p.parseFunction(); fn != nil {
				u.Functions = append(u.Functions, fn)
			}
		case token.KwFunctionBlock:
			if fb := p.parseFunctionBlock(); fb != nil {
				u.FBs = append(u.FBs, fb)
			}
		case token.KwProgram:
			if pr := p.parseProgram(); pr != nil {
				u.Programs = append(u.Programs, pr)
			}
		default:
			p.error(fmt.Sprintf("unexpected token %s at top level", p.cur().Kind))
			p.skipToRecover(token.KwType, token.KwVarGlobal, token.KwFunction, token.KwFunctionBlock, token.KwProgram)
		}
	}
	return u
}

func (p *parser) parseStructDef() *ast.StructDef {
	line := p.cur().Line
	p.expect(token.KwType)
	name := p.expect(token.Ident).Lexeme
	p.expect(token.Colon)
	p.expect(token.KwStruct)
	sd := &ast.StructDef{Name: name, Line: line}
	for !p.at(token.KwEndStruct) && !p.at(token.EOF) {
		d := p.parseVarDecl(ast.SectionRegular)
		if d == nil {
			p.skipToRecover(token.Semi, token.KwEndStruct)
			if p.at(token.Semi) {
				p.advance()
			}
			continue
		}
		sd.Members = append(sd.Members, d)
	}
	p.expect(token.KwEndStruct)
	p.expect(token.Semi)
	p.expect(token.KwEndType)
	return sd
}

func sectionFor(k token.Kind) ast.Section {
	switch k {
	case token.KwVarInput:
		return ast.SectionInput
	case token.KwVarOutput:
		return ast.SectionOutput
	case token.KwVarInOut:
		return ast.SectionInOut
	case token.KwVarTemp:
		return ast.SectionTemp
	case token.KwVarRetain:
		return ast.SectionRetain
	case token.KwVarGlobal:
		return ast.SectionGlobal
	default:
		return ast.SectionRegular
	}
}

func (p *parser) parseVarBlock() *ast.VarBlock {
	line := p.cur().Line
	kind := p.cur().Kind
	p.advance() // the VAR[_*] token
	section := sectionFor(kind)
	vb := &ast.VarBlock{Section: section, Line: line}
	for !p.at(token.KwEndVar) && !p.at(token.EOF) {
		d := p.parseVarDecl(section)
		if d == nil {
			p.skipToRecover(token.Semi, token.KwEndVar)
			if p.at(token.Semi) {
				p.advance()
			}
			continue
		}
		vb.Decls = append(vb.Decls, d)
	}
	p.expect(token.KwEndVar)
	p.expect(token.Semi)
	return vb
}

func (p *parser) parseVarDecl(section ast.Section) *ast.VarDecl {
	if !p.at(token.Ident) {
		p.error(fmt.Sprintf("expected variable name, got %s", p.cur().Kind))
		return nil
	}
	line := p.cur().Line
	name := p.advance().Lexeme
	var addr *ast.IOAddr
	if p.at(token.KwAt) {
		p.advance()
		addr = p.parseIOAddr()
	}
	p.expect(token.Colon)
	typ := p.parseTypeRef()
	var init ast.Expr
	if p.at(token.Assign) {
		p.advance()
		if p.at(token.LBrack) {
			init = p.parseArrayLit()
		} else {
			init = p.parseExpr()
		}
	}
	p.expect(token.Semi)
	return &ast.VarDecl{Name: name, Type: typ, Init: init, IOAddr: addr, Section: section, Line: line}
}

func (p *parser) parseIOAddr() *ast.IOAddr {
	t := p.expect(token.IOAddrLit)
	lexeme := t.Lexeme
	if len(lexeme) < 2 {
		return &ast.IOAddr{}
	}
	area := lexeme[1]
	rest := lexeme[2:]
	var size byte = 'X'
	if len(rest) > 0 {
		switch rest[0] {
		case 'X', 'B', 'W', 'D':
			size = rest[0]
			rest = rest[1:]
		}
	}
	var bit *int
	idxPart := rest
	if dot := strings.IndexByte(rest, '.'); dot >= 0 {
		idxPart = rest[:dot]
		b, _ := strconv.Atoi(rest[dot+1:])
		bit = &b
		if size == 'X' && len(rest[:dot]) > 0 {
			// size was implicit; bit part confirms bit-level addressing
		}
	}
	idx, _ := strconv.Atoi(idxPart)
	if bit != nil {
		size = 'X'
	}
	return &ast.IOAddr{Area: area, Size: size, Index: idx, Bit: bit}
}

func (p *parser) parseTypeRef() *ast.TypeRef {
	line := p.cur().Line
	if p.at(token.KwArray) {
		p.advance()
		p.expect(token.LBrack)
		var dims []ast.ArrayDim
		for {
			lo := p.parseConstInt()
			p.expect(token.Range)
			hi := p.parseConstInt()
			dims = append(dims, ast.ArrayDim{Lo: lo, Hi: hi})
			if p.at(token.Comma) {
				p.advance()
				continue
			}
			break
		}
		p.expect(token.RBrack)
		if len(dims) > 3 {
			p.error("array rank greater than 3 is not supported")
		}
		p.expect(token.KwOf)
		elem := p.parseTypeRef()
		return &ast.TypeRef{Kind: ast.TypeArray, Dims: dims, ArrElem: elem, Line: line}
	}
	if elem, ok := elementaryFor(p.cur().Kind); ok {
		p.advance()
		return &ast.TypeRef{Kind: ast.TypeElementary, Elem: elem, Line: line}
	}
	if p.at(token.Ident) {
		name := p.advance().Lexeme
		return &ast.TypeRef{Kind: ast.TypeNamed, Name: name, Line: line}
	}
	p.error(fmt.Sprintf("expected a type, got %s", p.cur().Kind))
	return &ast.TypeRef{Kind: ast.TypeElementary, Elem: ast.ElemInt, Line: line}
}

func elementaryFor(k token.Kind) (ast.Elementary, bool) {
	switch k {
	case token.KwBool:
		return ast.ElemBool, true
	case token.KwSint:
		return ast.ElemSint, true
	case token.KwInt:
		return ast.ElemInt, true
	case token.KwDint:
		return ast.ElemDint, true
	case token.KwLint:
		return ast.ElemLint, true
	case token.KwUsint:
		return ast.ElemUsint, true
	case token.KwUint:
		return ast.ElemUint, true
	case token.KwUdint:
		return ast.ElemUdint, true
	case token.KwUlint:
		return ast.ElemUlint, true
	case token.KwReal:
		return ast.ElemReal, true
	case token.KwLreal:
		return ast.ElemLreal, true
	case token.KwTime:
		return ast.ElemTime, true
	case token.KwString:
		return ast.ElemString, true
	}
	return 0, false
}

func (p *parser) parseConstInt() int {
	neg := false
	if p.at(token.Minus) {
		neg = true
		p.advance()
	}
	t := p.expect(token.IntLit)
	v := parseIntLexeme(t.Lexeme)
	if neg {
		v = -v
	}
	return int(v)
}

func parseIntLexeme(s string) int64 {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, _ := strconv.ParseInt(s[2:], 16, 64)
		return v
	}
	v, _ := strconv.ParseInt(s, 10, 64)
	return v
}

func (p *parser) parseArrayLit() ast.Expr {
	line := p.cur().Line
	p.expect(token.LBrack)
	var elems []ast.Expr
	for !p.at(token.RBrack) && !p.at(token.EOF) {
		elems = append(elems, p.parseExpr())
		if p.at(token.Comma) {
			p.advance()
			continue
		}
		break
	}
	p.expect(token.RBrack)
	return ast.NewArrayLit(elems, line)
}

// ---- functions / FBs / programs ---------------------------------------

func (p *parser) parseVarBlocksAndBody(endKind token.Kind) ([]*ast.VarBlock, []ast.Stmt) {
	var blocks []*ast.VarBlock
	for isVarBlockStart(p.cur().Kind) {
		blocks = append(blocks, p.parseVarBlock())
	}
	body := p.parseStatements(endKind)
	return blocks, body
}

func isVarBlockStart(k token.Kind) bool {
	switch k {
	case token.KwVar, token.KwVarInput, token.KwVarOutput, token.KwVarInOut,
		token.KwVarTemp, token.KwVarRetain, token.KwVarGlobal:
		return true
	}
	return false
}

func (p *parser) parseFunction() *ast.Function {
	line := p.cur().Line
	p.expect(token.KwFunction)
	name := p.expect(token.Ident).Lexeme
	var ret *ast.TypeRef
	if p.at(token.Colon) {
		p.advance()
		ret = p.parseTypeRef()
	}
	blocks, body := p.parseVarBlocksAndBody(token.KwEndFunction)
	p.expect(token.KwEndFunction)
	return &ast.Function{Name: name, ReturnType: ret, Blocks: blocks, Body: body, Line: line}
}

func (p *parser) parseFunctionBlock() *ast.FunctionBlock {
	line := p.cur().Line
	p.expect(token.KwFunctionBlock)
	name := p.expect(token.Ident).Lexeme
	blocks, body := p.parseVarBlocksAndBody(token.KwEndFunctionBlock)
	p.expect(token.KwEndFunctionBlock)
	return &ast.FunctionBlock{Name: name, Blocks: blocks, Body: body, Line: line}
}

func (p *parser) parseProgram() *ast.Program {
	line := p.cur().Line
	p.expect(token.KwProgram)
	name := p.expect(token.Ident).Lexeme
	blocks, body := p.parseVarBlocksAndBody(token.KwEndProgram)
	p.expect(token.KwEndProgram)
	return &ast.Program{Name: name, Blocks: blocks, Body: body, Line: line}
}

// ---- statements ---------------------------------------------------------

func isStmtTerminator(k token.Kind) bool {
	switch k {
	case token.KwEndProgram, token.KwEndFunction, token.KwEndFunctionBlock,
		token.KwEndIf, token.KwElsif, token.KwElse, token.KwEndWhile,
		token.KwEndFor, token.KwUntil, token.KwEndRepeat, token.KwEndCase, token.EOF:
		return true
	}
	return false
}

func (p *parser) parseStatements(end token.Kind) []ast.Stmt {
	var stmts []ast.Stmt
	for !isStmtTerminator(p.cur().Kind) && len(p.errs) < maxErrors {
		s := p.parseStatement()
		if s == nil {
			p.skipToRecover(token.Semi)
			if p.at(token.Semi) {
				p.advance()
			}
			continue
		}
		stmts = append(stmts, s)
	}
	_ = end
	return stmts
}

func (p *parser) parseStatement() ast.Stmt {
	switch p.cur().Kind {
	case token.KwIf:
		return p.parseIf()
	case token.KwWhile:
		return p.parseWhile()
	case token.KwFor:
		return p.parseFor()
	case token.KwRepeat:
		return p.parseRepeat()
	case token.KwCase:
		return p.parseCase()
	case token.KwExit:
		line := p.advance().Line
		p.expect(token.Semi)
		return ast.NewExit(line)
	case token.KwContinue:
		line := p.advance().Line
		p.expect(token.Semi)
		return ast.NewContinue(line)
	case token.KwReturn:
		line := p.advance().Line
		p.expect(token.Semi)
		return ast.NewReturn(line)
	case token.Ident:
		return p.parseAssignOrCall()
	default:
		p.error(fmt.Sprintf("unexpected token %s at start of statement", p.cur().Kind))
		return nil
	}
}

func (p *parser) parseIf() ast.Stmt {
	line := p.advance().Line // IF
	cond := p.parseExpr()
	p.expect(token.KwThen)
	body := p.parseStatements(token.KwEndIf)
	var elsifs []ast.ElsIf
	for p.at(token.KwElsif) {
		p.advance()
		c := p.parseExpr()
		p.expect(token.KwThen)
		b := p.parseStatements(token.KwEndIf)
		elsifs = append(elsifs, ast.ElsIf{Cond: c, Body: b})
	}
	var els []ast.Stmt
	if p.at(token.KwElse) {
		p.advance()
		els = p.parseStatements(token.KwEndIf)
	}
	p.expect(token.KwEndIf)
	p.expect(token.Semi)
	return ast.NewIf(cond, body, elsifs, els, line)
}

func (p *parser) parseWhile() ast.Stmt {
	line := p.advance().Line
	cond := p.parseExpr()
	p.expect(token.KwDo)
	body := p.parseStatements(token.KwEndWhile)
	p.expect(token.KwEndWhile)
	p.expect(token.Semi)
	return ast.NewWhile(cond, body, line)
}

func (p *parser) parseFor() ast.Stmt {
	line := p.advance().Line
	ctr := p.expect(token.Ident).Lexeme
	p.expect(token.Assign)
	start := p.parseExpr()
	p.expect(token.KwTo)
	end := p.parseExpr()
	var step ast.Expr
	if p.at(token.KwBy) {
		p.advance()
		step = p.parseExpr()
	}
	p.expect(token.KwDo)
	body := p.parseStatements(token.KwEndFor)
	p.expect(token.KwEndFor)
	p.expect(token.Semi)
	return ast.NewFor(ctr, start, end, step, body, line)
}

func (p *parser) parseRepeat() ast.Stmt {
	line := p.advance().Line
	body := p.parseStatements(token.KwUntil)
	p.expect(token.KwUntil)
	cond := p.parseExpr()
	p.expect(token.Semi)
	p.expect(token.KwEndRepeat)
	p.expect(token.Semi)
	return ast.NewRepeat(body, cond, line)
}

func (p *parser) parseCase() ast.Stmt {
	line := p.advance().Line
	sel := p.parseExpr()
	p.expect(token.KwOf)
	var branches []ast.CaseBranch
	for p.isCaseLabelStart() {
		var labels []ast.CaseLabel
		for {
			labels = append(labels, p.parseCaseLabel())
			if p.at(token.Comma) {
				p.advance()
				continue
			}
			break
		}
		p.expect(token.Colon)
		body := p.parseStatements(token.KwEndCase)
		branches = append(branches, ast.CaseBranch{Labels: labels, Body: body})
	}
	var els []ast.Stmt
	if p.at(token.KwElse) {
		p.advance()
		els = p.parseStatements(token.KwEndCase)
	}
	p.expect(token.KwEndCase)
	p.expect(token.Semi)
	return ast.NewCase(sel, branches, els, line)
}

func (p *parser) isCaseLabelStart() bool {
	switch p.cur().Kind {
	case token.IntLit, token.Minus, token.Ident:
		return true
	}
	return false
}

func (p *parser) parseCaseLabel() ast.CaseLabel {
	v := p.parseExpr()
	if p.at(token.Range) {
		p.advance()
		hi := p.parseExpr()
		return ast.CaseLabel{IsRange: true, RangeLo: v, RangeHi: hi}
	}
	return ast.CaseLabel{Value: v}
}

// parseAssignOrCall disambiguates `Ident := expr;`, `Ident(Name := expr,
// ...);` (FB call statement) and member/array-indexed assignment targets.
func (p *parser) parseAssignOrCall() ast.Stmt {
	line := p.cur().Line
	name := p.advance().Lexeme
	if p.at(token.LParen) {
		call := p.parseFBCallArgs(name, line)
		p.expect(token.Semi)
		return ast.NewFBCallStmt(call, line)
	}
	var target ast.Expr = ast.NewIdent(name, line)
	target = p.parsePostfixFrom(target)
	p.expect(token.Assign)
	value := p.parseExpr()
	p.expect(token.Semi)
	return ast.NewAssign(target, value, line)
}

func (p *parser) parseFBCallArgs(name string, line int) *ast.FBCall {
	p.expect(token.LParen)
	var params []ast.Param
	for !p.at(token.RParen) && !p.at(token.EOF) {
		pname := p.expect(token.Ident).Lexeme
		p.expect(token.Assign)
		val := p.parseExpr()
		params = append(params, ast.Param{Name: pname, Value: val})
		if p.at(token.Comma) {
			p.advance()
			continue
		}
		break
	}
	p.expect(token.RParen)
	return ast.NewFBCall(name, params, line)
}

// ---- expressions --------------------------------------------------------
//
// Precedence, low to high (spec §4.2): OR, XOR, AND, comparison, additive,
// multiplicative, unary, postfix, primary.

func (p *parser) parseExpr() ast.Expr { return p.parseOr() }

func (p *parser) parseOr() ast.Expr {
	lhs := p.parseXor()
	for p.at(token.KwOr) {
		line := p.advance().Line
		rhs := p.parseXor()
		lhs = ast.NewBinary(ast.BinOr, lhs, rhs, line)
	}
	return lhs
}

func (p *parser) parseXor() ast.Expr {
	lhs := p.parseAnd()
	for p.at(token.KwXor) {
		line := p.advance().Line
		rhs := p.parseAnd()
		lhs = ast.NewBinary(ast.BinXor, lhs, rhs, line)
	}
	return lhs
}

func (p *parser) parseAnd() ast.Expr {
	lhs := p.parseComparison()
	for p.at(token.KwAnd) {
		line := p.advance().Line
		rhs := p.parseComparison()
		lhs = ast.NewBinary(ast.BinAnd, lhs, rhs, line)
	}
	return lhs
}

func cmpOp(k token.Kind) (ast.BinaryOp, bool) {
	switch k {
	case token.Eq:
		return ast.BinEq, true
	case token.Ne:
		return ast.BinNe, true
	case token.Lt:
		return ast.BinLt, true
	case token.Le:
		return ast.BinLe, true
	case token.Gt:
		return ast.BinGt, true
	case token.Ge:
		return ast.BinGe, true
	}
	return 0, false
}

func (p *parser) parseComparison() ast.Expr {
	lhs := p.parseAdditive()
	for {
		op, ok := cmpOp(p.cur().Kind)
		if !ok {
			break
		}
		line := p.advance().Line
		rhs := p.parseAdditive()
		lhs = ast.NewBinary(op, lhs, rhs, line)
	}
	return lhs
}

func (p *parser) parseAdditive() ast.Expr {
	lhs := p.parseMultiplicative()
	for p.at(token.Plus) || p.at(token.Minus) {
		op := ast.BinAdd
		if p.cur().Kind == token.Minus {
			op = ast.BinSub
		}
		line := p.advance().Line
		rhs := p.parseMultiplicative()
		lhs = ast.NewBinary(op, lhs, rhs, line)
	}
	return lhs
}

func (p *parser) parseMultiplicative() ast.Expr {
	lhs := p.parseUnary()
	for p.at(token.Star) || p.at(token.Slash) || p.at(token.KwMod) {
		var op ast.BinaryOp
		switch p.cur().Kind {
		case token.Star:
			op = ast.BinMul
		case token.Slash:
			op = ast.BinDiv
		case token.KwMod:
			op = ast.BinMod
		}
		line := p.advance().Line
		rhs := p.parseUnary()
		lhs = ast.NewBinary(op, lhs, rhs, line)
	}
	return lhs
}

func (p *parser) parseUnary() ast.Expr {
	if p.at(token.KwNot) {
		line := p.advance().Line
		return ast.NewUnary(ast.UnaryNot, p.parseUnary(), line)
	}
	if p.at(token.Minus) {
		line := p.advance().Line
		return ast.NewUnary(ast.UnaryNeg, p.parseUnary(), line)
	}
	return p.parsePostfix()
}

func (p *parser) parsePostfix() ast.Expr {
	return p.parsePostfixFrom(p.parsePrimary())
}

func (p *parser) parsePostfixFrom(e ast.Expr) ast.Expr {
	for {
		switch p.cur().Kind {
		case token.Dot:
			line := p.advance().Line
			name := p.expect(token.Ident).Lexeme
			e = ast.NewMember(e, name, line)
		case token.LBrack:
			line := p.advance().Line
			var idx []ast.Expr
			idx = append(idx, p.parseExpr())
			for p.at(token.Comma) {
				p.advance()
				idx = append(idx, p.parseExpr())
			}
			p.expect(token.RBrack)
			if len(idx) > 3 {
				p.error("array access with more than 3 indices is not supported")
			}
			e = ast.NewIndex(e, idx, line)
		default:
			return e
		}
	}
}

func (p *parser) parsePrimary() ast.Expr {
	t := p.cur()
	switch t.Kind {
	case token.KwTrue:
		p.advance()
		return ast.NewBoolLit(true, t.Line)
	case token.KwFalse:
		p.advance()
		return ast.NewBoolLit(false, t.Line)
	case token.IntLit:
		p.advance()
		return ast.NewIntLit(parseIntLexeme(t.Lexeme), t.Line)
	case token.RealLit:
		p.advance()
		v, _ := strconv.ParseFloat(t.Lexeme, 64)
		return ast.NewRealLit(v, t.Line)
	case token.TimeLit:
		p.advance()
		return ast.NewTimeLit(parseTimeMillis(t.Lexeme), t.Line)
	case token.StringLit:
		p.advance()
		return ast.NewStringLit(t.Lexeme, t.Line)
	case token.LParen:
		p.advance()
		e := p.parseExpr()
		p.expect(token.RParen)
		return e
	case token.Ident:
		p.advance()
		if p.at(token.LParen) {
			return p.parseCallArgs(t.Lexeme, t.Line)
		}
		return ast.NewIdent(t.Lexeme, t.Line)
	default:
		p.error(fmt.Sprintf("unexpected token %s in expression", t.Kind))
		p.advance()
		return ast.NewIntLit(0, t.Line)
	}
}

func (p *parser) parseCallArgs(name string, line int) ast.Expr {
	p.expect(token.LParen)
	var args []ast.Expr
	for !p.at(token.RParen) && !p.at(token.EOF) {
		args = append(args, p.parseExpr())
		if p.at(token.Comma) {
			p.advance()
			continue
		}
		break
	}
	p.expect(token.RParen)
	return ast.NewCall(name, args, line)
}

func parseTimeMillis(lexeme string) int64 {
	// lexeme is "T#<digits><unit>" or "TIME#<digits><unit>"
	hash := strings.IndexByte(lexeme, '#')
	if hash < 0 {
		return 0
	}
	body := lexeme[hash+1:]
	i := 0
	for i < len(body) && body[i] >= '0' && body[i] <= '9' {
		i++
	}
	n, _ := strconv.ParseInt(body[:i], 10, 64)
	unit := body[i:]
	return n * lex.TimeUnitMillis(unit)
}
