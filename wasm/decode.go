package wasm

import (
	"fmt"

	"github.com/zenhumany/binaryen/errors"
	"github.com/zenhumany/binaryen/wasm/internal/binary"
)

// ParseModule parses a binary module. Bodies are rebuilt bottom-up by
// stack simulation: operands accumulate on a scratch stack and each
// structural byte pops everything since its matching opener. Malformed
// input is fatal; the returned error carries the byte offset and section.
func ParseModule(data []byte) (m *Module, err error) {
	p := &parser{
		r:             binary.NewReader(data),
		module:        &Module{},
		startIndex:    -1,
		functionCalls: make(map[uint32][]*Call),
	}
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(*errors.Error); ok {
				m, err = nil, e
				return
			}
			panic(r)
		}
	}()
	p.read()
	if err := Validate(p.module); err != nil {
		return nil, err
	}
	return p.module, nil
}

type parser struct {
	module *Module
	r      *binary.Reader

	section     string
	opcodeTable *OpcodeTable

	startIndex    int32
	functionTypes []*FunctionType // one per declared function
	functions     []*Function
	functionCalls map[uint32][]*Call // function index => calls to backpatch
	exportIndexes []exportIndex
	functionTable []uint32

	curFunction   *Function
	endOfFunction int
	breakStack    []string
	exprStack     []Expression
	lastSeparator byte
	nextLabel     int
}

type exportIndex struct {
	export *Export
	index  uint32
}

func (p *parser) fail(kind errors.Kind, format string, args ...any) {
	panic(errors.New(errors.PhaseParse, kind).
		Section(p.section).
		Offset(p.r.Pos()).
		Detail(format, args...).
		Build())
}

// read helpers; truncation is fatal

func (p *parser) byte() byte {
	b, err := p.r.ReadByte()
	if err != nil {
		panic(errors.Truncated(p.section, p.r.Pos(), err))
	}
	return b
}

func (p *parser) u32() uint32 {
	v, err := p.r.ReadU32()
	if err != nil {
		panic(errors.Truncated(p.section, p.r.Pos(), err))
	}
	return v
}

func (p *parser) s32() int32 {
	v, err := p.r.ReadS32()
	if err != nil {
		panic(errors.Truncated(p.section, p.r.Pos(), err))
	}
	return v
}

func (p *parser) s64() int64 {
	v, err := p.r.ReadS64()
	if err != nil {
		panic(errors.Truncated(p.section, p.r.Pos(), err))
	}
	return v
}

func (p *parser) u32le() uint32 {
	v, err := p.r.ReadU32LE()
	if err != nil {
		panic(errors.Truncated(p.section, p.r.Pos(), err))
	}
	return v
}

func (p *parser) u64le() uint64 {
	v, err := p.r.ReadU64LE()
	if err != nil {
		panic(errors.Truncated(p.section, p.r.Pos(), err))
	}
	return v
}

func (p *parser) inlineString() string {
	s, err := p.r.ReadInlineString()
	if err != nil {
		panic(errors.Truncated(p.section, p.r.Pos(), err))
	}
	return s
}

func (p *parser) valueType() Type {
	b := p.byte()
	t, ok := DecodeType(b)
	if !ok {
		panic(errors.InvalidType(p.r.Pos()-1, b))
	}
	return t
}

func (p *parser) read() {
	p.readHeader()

	for p.r.More() {
		name := p.inlineString()
		size := int(p.u32())
		before := p.r.Pos()
		p.section = name

		switch name {
		case SectionStart:
			p.readStart()
		case SectionMemory:
			p.readMemory()
		case SectionSignatures:
			p.readSignatures()
		case SectionImportTable:
			p.readImports()
		case SectionFunctionSignatures:
			p.readFunctionSignatures()
		case SectionFunctions:
			p.readFunctions()
		case SectionExportTable:
			p.readExports()
		case SectionDataSegments:
			p.readDataSegments()
		case SectionFunctionTable:
			p.readFunctionTable()
		case SectionOpcodes:
			p.readOpcodeTable()
		case SectionNames:
			p.readNames()
		default:
			panic(errors.UnknownSection(name, before))
		}

		if p.r.Pos() != before+size {
			panic(errors.SizeMismatch(name, before+size, p.r.Pos()))
		}
	}

	p.processFunctions()
}

func (p *parser) readHeader() {
	p.section = "header"
	if p.u32le() != Magic {
		p.fail(errors.KindBadMagic, "invalid magic number")
	}
	if v := p.u32le(); v != Version {
		p.fail(errors.KindBadVersion, "version %d, expected %d", v, Version)
	}
}

func (p *parser) readStart() {
	p.startIndex = int32(p.u32())
}

func (p *parser) readMemory() {
	p.module.Memory.Initial = p.u32()
	p.module.Memory.Max = p.u32()
	if p.byte() != 0 {
		p.module.Memory.ExportName = "memory"
	}
}

func (p *parser) readSignatures() {
	numTypes := p.u32()
	for i := uint32(0); i < numTypes; i++ {
		if form := p.byte(); form != TypeFormBasic {
			p.fail(errors.KindInvalidData, "unknown signature form 0x%02x", form)
		}
		ft := &FunctionType{Name: fmt.Sprintf("type$%d", i)}
		numParams := p.u32()
		for j := uint32(0); j < numParams; j++ {
			ft.Params = append(ft.Params, p.valueType())
		}
		switch numResults := p.u32(); numResults {
		case 0:
			ft.Result = None
		case 1:
			ft.Result = p.valueType()
		default:
			p.fail(errors.KindBadArity, "%d results in signature", numResults)
		}
		p.module.AddFunctionType(ft)
	}
}

func (p *parser) readImports() {
	num := p.u32()
	for i := uint32(0); i < num; i++ {
		index := p.u32()
		if int(index) >= len(p.module.FunctionTypes) {
			p.fail(errors.KindOutOfBounds, "import signature index %d", index)
		}
		im := &Import{
			Name: fmt.Sprintf("import$%d", i),
			Type: p.module.FunctionTypes[index],
		}
		im.Module = p.inlineString()
		im.Base = p.inlineString()
		p.module.AddImport(im)
	}
}

func (p *parser) readFunctionSignatures() {
	num := p.u32()
	for i := uint32(0); i < num; i++ {
		index := p.u32()
		if int(index) >= len(p.module.FunctionTypes) {
			p.fail(errors.KindOutOfBounds, "function signature index %d", index)
		}
		p.functionTypes = append(p.functionTypes, p.module.FunctionTypes[index])
	}
}

func (p *parser) readFunctions() {
	total := p.u32()
	if int(total) != len(p.functionTypes) {
		p.fail(errors.KindSizeMismatch, "%d bodies for %d signatures", total, len(p.functionTypes))
	}
	for i := uint32(0); i < total; i++ {
		size := int(p.u32())
		if size == 0 {
			p.fail(errors.KindInvalidData, "empty function body")
		}
		p.endOfFunction = p.r.Pos() + size

		ftype := p.functionTypes[i]
		f := &Function{
			Name:   fmt.Sprintf("$%d", i),
			Result: ftype.Result,
			Type:   ftype,
		}
		nextVar := 0
		addVar := func(t Type) NameType {
			nt := NameType{Name: fmt.Sprintf("var$%d", nextVar), Type: t}
			nextVar++
			return nt
		}
		for _, t := range ftype.Params {
			f.Params = append(f.Params, addVar(t))
		}
		numLocalTypes := p.u32()
		for t := uint32(0); t < numLocalTypes; t++ {
			num := p.u32()
			typ := p.valueType()
			for ; num > 0; num-- {
				f.Vars = append(f.Vars, addVar(typ))
			}
		}

		p.curFunction = f
		p.nextLabel = 0
		p.breakStack = p.breakStack[:0]
		p.exprStack = p.exprStack[:0]
		f.Body = p.getMaybeBlock()
		if p.r.Pos() != p.endOfFunction {
			p.fail(errors.KindSizeMismatch, "body ends at %d, expected %d", p.r.Pos(), p.endOfFunction)
		}
		p.curFunction = nil
		p.functions = append(p.functions, f)
	}
}

func (p *parser) readExports() {
	num := p.u32()
	for i := uint32(0); i < num; i++ {
		index := p.u32()
		if int(index) >= len(p.functionTypes) {
			p.fail(errors.KindOutOfBounds, "export function index %d", index)
		}
		exp := &Export{Name: p.inlineString()}
		p.exportIndexes = append(p.exportIndexes, exportIndex{export: exp, index: index})
	}
}

func (p *parser) readDataSegments() {
	num := p.u32()
	for i := uint32(0); i < num; i++ {
		offset := p.u32()
		size := int(p.u32())
		data, err := p.r.ReadBytes(size)
		if err != nil {
			panic(errors.Truncated(p.section, p.r.Pos(), err))
		}
		seg := Segment{Offset: offset, Data: append([]byte(nil), data...)}
		p.module.Memory.Segments = append(p.module.Memory.Segments, seg)
	}
}

func (p *parser) readFunctionTable() {
	num := p.u32()
	for i := uint32(0); i < num; i++ {
		p.functionTable = append(p.functionTable, p.u32())
	}
}

func (p *parser) readOpcodeTable() {
	t := &OpcodeTable{Mapping: make(map[OpcodeEntry]byte)}
	num := int(p.byte())
	for i := 0; i < num; i++ {
		usedIndex := p.byte()
		var entry OpcodeEntry
		entry.Op = p.byte()
		entry.Size = int(p.byte())
		if entry.Size > MaxImmediates {
			p.fail(errors.KindInvalidData, "opcode entry with %d immediates", entry.Size)
		}
		for j := 0; j < entry.Size; j++ {
			switch vt := p.valueType(); vt {
			case I32:
				entry.Values[j] = LiteralI32(p.s32())
			case I64:
				entry.Values[j] = LiteralI64(p.s64())
			case F32:
				entry.Values[j] = LiteralF32Bits(p.u32le())
			case F64:
				entry.Values[j] = LiteralF64Bits(p.u64le())
			default:
				p.fail(errors.KindInvalidType, "opcode entry immediate with no type")
			}
		}
		t.Used[usedIndex] = true
		t.Entries[usedIndex] = entry
		t.Mapping[entry] = usedIndex
	}
	p.opcodeTable = t
}

func (p *parser) readNames() {
	num := p.u32()
	if int(num) > len(p.functions) {
		p.fail(errors.KindSizeMismatch, "%d names for %d functions", num, len(p.functions))
	}
	for i := uint32(0); i < num; i++ {
		p.functions[i].Name = p.inlineString()
		if numLocals := p.u32(); numLocals != 0 {
			p.fail(errors.KindInvalidData, "local names are not supported")
		}
	}
}

// processFunctions resolves everything that needed function names: calls
// parsed as numeric indices, the start function, exports, and the table.
func (p *parser) processFunctions() {
	for _, f := range p.functions {
		p.module.AddFunction(f)
	}

	if p.startIndex >= 0 {
		if int(p.startIndex) >= len(p.module.Functions) {
			p.fail(errors.KindOutOfBounds, "start index %d", p.startIndex)
		}
		p.module.Start = p.module.Functions[p.startIndex].Name
	}

	for _, ei := range p.exportIndexes {
		ei.export.Value = p.module.Functions[ei.index].Name
		p.module.Exports = append(p.module.Exports, ei.export)
	}

	for index, calls := range p.functionCalls {
		for _, call := range calls {
			call.Target = p.module.Functions[index].Name
		}
	}

	for _, index := range p.functionTable {
		if int(index) >= len(p.module.Functions) {
			p.fail(errors.KindOutOfBounds, "table entry %d", index)
		}
		p.module.Table = append(p.module.Table, p.module.Functions[index].Name)
	}
}

// expression parsing

func (p *parser) getNextLabel() string {
	label := fmt.Sprintf("label$%d", p.nextLabel)
	p.nextLabel++
	return label
}

func (p *parser) getBreakName(offset uint32) string {
	if int(offset) >= len(p.breakStack) {
		p.fail(errors.KindBadLabel, "break depth %d with %d labels live", offset, len(p.breakStack))
	}
	return p.breakStack[len(p.breakStack)-1-int(offset)]
}

func (p *parser) push(e Expression) {
	p.exprStack = append(p.exprStack, e)
}

func (p *parser) pop() Expression {
	if len(p.exprStack) == 0 {
		p.fail(errors.KindInvalidData, "expression stack underflow")
	}
	e := p.exprStack[len(p.exprStack)-1]
	p.exprStack = p.exprStack[:len(p.exprStack)-1]
	return e
}

// processExpressions reads until an End or Else marker, or the end of the
// function, accumulating results on the expression stack.
func (p *parser) processExpressions() {
	for {
		expr, separator := p.readExpression()
		if expr == nil {
			p.lastSeparator = separator
			return
		}
		p.push(expr)
	}
}

// getMaybeBlock reads a run of expressions, returning a single expression
// directly and wrapping longer runs in an unlabeled block.
func (p *parser) getMaybeBlock() Expression {
	start := len(p.exprStack)
	p.processExpressions()
	end := len(p.exprStack)
	if end-start == 1 {
		return p.pop()
	}
	block := &Block{}
	block.List = append(block.List, p.exprStack[start:end]...)
	p.exprStack = p.exprStack[:start]
	block.Finalize()
	return block
}

// getBlock reads a labeled block body, as used for if arms.
func (p *parser) getBlock() Expression {
	label := p.getNextLabel()
	p.breakStack = append(p.breakStack, label)
	block := (&Builder{Module: p.module}).Blockify(p.getMaybeBlock())
	p.breakStack = p.breakStack[:len(p.breakStack)-1]
	block.Name = label
	return block
}

// readExpression reads one expression. It returns nil with the separator
// byte when it hits End, Else, or the end of the function.
func (p *parser) readExpression() (Expression, byte) {
	if p.r.Pos() == p.endOfFunction {
		return nil, OpEnd
	}
	code := p.byte()

	// table hits substitute the original opcode and pre-decoded immediates
	var entry *OpcodeEntry
	if p.opcodeTable != nil && p.opcodeTable.Used[code] {
		entry = &p.opcodeTable.Entries[code]
		code = entry.Op
	}

	switch code {
	case OpBlock:
		return p.readBlock(), code
	case OpIf:
		return p.readIf(), code
	case OpLoop:
		return p.readLoop(), code
	case OpBr, OpBrIf:
		return p.readBreak(code, entry), code
	case OpTableSwitch:
		return p.readSwitch(entry), code
	case OpCallFunction:
		return p.readCall(entry), code
	case OpCallImport:
		return p.readCallImport(entry), code
	case OpCallIndirect:
		return p.readCallIndirect(entry), code
	case OpGetLocal:
		return p.readGetLocal(entry), code
	case OpSetLocal:
		return p.readSetLocal(entry), code
	case OpSelect:
		return p.readSelect(), code
	case OpReturn:
		return p.readReturn(entry), code
	case OpNop:
		return &Nop{}, code
	case OpUnreachable:
		return &Unreachable{}, code
	case OpEnd, OpElse:
		return nil, code
	}
	if e := p.maybeReadConst(code, entry); e != nil {
		return e, code
	}
	if e := p.maybeReadLoad(code, entry); e != nil {
		return e, code
	}
	if e := p.maybeReadStore(code, entry); e != nil {
		return e, code
	}
	if e := p.maybeReadUnary(code); e != nil {
		return e, code
	}
	if e := p.maybeReadBinary(code); e != nil {
		return e, code
	}
	if e := p.maybeReadHost(code); e != nil {
		return e, code
	}
	panic(errors.UnknownOpcode(code, p.r.Pos()-1))
}

// readBlock iterates instead of recursing for blocks nested in first
// position, a common pattern that can be very deep.
func (p *parser) readBlock() Expression {
	curr := &Block{}
	var stack []*Block
	for {
		curr.Name = p.getNextLabel()
		p.breakStack = append(p.breakStack, curr.Name)
		stack = append(stack, curr)
		if p.byte() == OpBlock {
			curr = &Block{}
			continue
		}
		p.r.UngetByte()
		break
	}
	var last *Block
	for len(stack) > 0 {
		curr = stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		start := len(p.exprStack)
		if last != nil {
			// the previous block is our first-position element
			p.push(last)
		}
		last = curr
		p.processExpressions()
		curr.List = append(curr.List, p.exprStack[start:]...)
		p.exprStack = p.exprStack[:start]
		curr.Finalize()
		p.breakStack = p.breakStack[:len(p.breakStack)-1]
	}
	return last
}

func (p *parser) readIf() Expression {
	iff := &If{}
	iff.Condition = p.pop()
	iff.IfTrue = p.getBlock()
	if p.lastSeparator == OpElse {
		iff.IfFalse = p.getBlock()
		iff.Finalize()
	}
	if p.lastSeparator != OpEnd {
		p.fail(errors.KindInvalidData, "if not terminated by end")
	}
	return iff
}

func (p *parser) readLoop() Expression {
	loop := &Loop{}
	loop.Out = p.getNextLabel()
	loop.In = p.getNextLabel()
	p.breakStack = append(p.breakStack, loop.Out, loop.In)
	loop.Body = p.getMaybeBlock()
	p.breakStack = p.breakStack[:len(p.breakStack)-2]
	loop.Finalize()
	return loop
}

func (p *parser) entryImmediates(entry *OpcodeEntry) (uint32, uint32) {
	return uint32(entry.Values[0].I32()), uint32(entry.Values[1].I32())
}

func (p *parser) readBreak(code byte, entry *OpcodeEntry) Expression {
	var arity, breakIndex uint32
	if entry != nil {
		arity, breakIndex = p.entryImmediates(entry)
	} else {
		arity = p.u32()
		breakIndex = p.u32()
	}
	if arity > 1 {
		p.fail(errors.KindBadArity, "break arity %d", arity)
	}
	br := &Break{Name: p.getBreakName(breakIndex)}
	if code == OpBrIf {
		br.Condition = p.pop()
	}
	if arity == 1 {
		br.Value = p.pop()
	}
	br.Finalize()
	return br
}

func (p *parser) readSwitch(entry *OpcodeEntry) Expression {
	var arity, numTargets uint32
	if entry != nil {
		arity, numTargets = p.entryImmediates(entry)
	} else {
		arity = p.u32()
		numTargets = p.u32()
	}
	if arity > 1 {
		p.fail(errors.KindBadArity, "switch arity %d", arity)
	}
	sw := &Switch{}
	sw.Condition = p.pop()
	if arity == 1 {
		sw.Value = p.pop()
	}
	for i := uint32(0); i < numTargets; i++ {
		sw.Targets = append(sw.Targets, p.getBreakName(p.u32le()))
	}
	sw.Default = p.getBreakName(p.u32le())
	return sw
}

func (p *parser) popCallOperands(num int) []Expression {
	operands := make([]Expression, num)
	for i := 0; i < num; i++ {
		operands[num-i-1] = p.pop()
	}
	return operands
}

func (p *parser) readCall(entry *OpcodeEntry) Expression {
	var arity, index uint32
	if entry != nil {
		arity, index = p.entryImmediates(entry)
	} else {
		arity = p.u32()
		index = p.u32()
	}
	if int(index) >= len(p.functionTypes) {
		p.fail(errors.KindOutOfBounds, "call target %d", index)
	}
	ftype := p.functionTypes[index]
	if int(arity) != len(ftype.Params) {
		p.fail(errors.KindBadArity, "call arity %d, signature takes %d", arity, len(ftype.Params))
	}
	call := &Call{
		Operands: p.popCallOperands(len(ftype.Params)),
		Typ:      ftype.Result,
	}
	// the target name is not known yet; backpatched in processFunctions
	p.functionCalls[index] = append(p.functionCalls[index], call)
	return call
}

func (p *parser) readCallImport(entry *OpcodeEntry) Expression {
	var arity, index uint32
	if entry != nil {
		arity, index = p.entryImmediates(entry)
	} else {
		arity = p.u32()
		index = p.u32()
	}
	if int(index) >= len(p.module.Imports) {
		p.fail(errors.KindOutOfBounds, "import call target %d", index)
	}
	im := p.module.Imports[index]
	if int(arity) != len(im.Type.Params) {
		p.fail(errors.KindBadArity, "import call arity %d, signature takes %d", arity, len(im.Type.Params))
	}
	return &CallImport{
		Target:   im.Name,
		Operands: p.popCallOperands(len(im.Type.Params)),
		Typ:      im.Type.Result,
	}
}

func (p *parser) readCallIndirect(entry *OpcodeEntry) Expression {
	var arity, index uint32
	if entry != nil {
		arity, index = p.entryImmediates(entry)
	} else {
		arity = p.u32()
		index = p.u32()
	}
	if int(index) >= len(p.module.FunctionTypes) {
		p.fail(errors.KindOutOfBounds, "indirect call signature %d", index)
	}
	ftype := p.module.FunctionTypes[index]
	if int(arity) != len(ftype.Params) {
		p.fail(errors.KindBadArity, "indirect call arity %d, signature takes %d", arity, len(ftype.Params))
	}
	call := &CallIndirect{
		FullType: ftype,
		Operands: p.popCallOperands(len(ftype.Params)),
		Typ:      ftype.Result,
	}
	call.Target = p.pop()
	return call
}

func (p *parser) readGetLocal(entry *OpcodeEntry) Expression {
	var index uint32
	if entry != nil {
		index = uint32(entry.Values[0].I32())
	} else {
		index = p.u32()
	}
	if int(index) >= p.curFunction.NumLocals() {
		p.fail(errors.KindOutOfBounds, "local %d", index)
	}
	return &GetLocal{Index: index, Typ: p.curFunction.LocalType(index)}
}

func (p *parser) readSetLocal(entry *OpcodeEntry) Expression {
	var index uint32
	if entry != nil {
		index = uint32(entry.Values[0].I32())
	} else {
		index = p.u32()
	}
	if int(index) >= p.curFunction.NumLocals() {
		p.fail(errors.KindOutOfBounds, "local %d", index)
	}
	// at this version a set always forwards its value; drop-return-values
	// demotes the ones whose result goes unused
	set := &SetLocal{Index: index, Value: p.pop(), IsTee: true}
	set.Typ = set.Value.Type()
	return set
}

func (p *parser) readSelect() Expression {
	sel := &Select{}
	sel.Condition = p.pop()
	sel.IfFalse = p.pop()
	sel.IfTrue = p.pop()
	sel.Finalize()
	return sel
}

func (p *parser) readReturn(entry *OpcodeEntry) Expression {
	var arity uint32
	if entry != nil {
		arity = uint32(entry.Values[0].I32())
	} else {
		arity = p.u32()
	}
	if arity > 1 {
		p.fail(errors.KindBadArity, "return arity %d", arity)
	}
	ret := &Return{}
	if arity == 1 {
		ret.Value = p.pop()
	}
	return ret
}

func (p *parser) maybeReadConst(code byte, entry *OpcodeEntry) Expression {
	switch code {
	case OpI32Const, OpI64Const, OpF32Const, OpF64Const:
	default:
		return nil
	}
	var value Literal
	if entry != nil {
		value = entry.Values[0]
	} else {
		switch code {
		case OpI32Const:
			value = LiteralI32(p.s32())
		case OpI64Const:
			value = LiteralI64(p.s64())
		case OpF32Const:
			value = LiteralF32Bits(p.u32le())
		case OpF64Const:
			value = LiteralF64Bits(p.u64le())
		}
	}
	return &Const{Value: value, Typ: value.Type}
}

func (p *parser) readMemoryAccess(entry *OpcodeEntry) (align uint32, offset uint32) {
	if entry != nil {
		return 1 << uint32(entry.Values[0].I32()), uint32(entry.Values[1].I32())
	}
	return 1 << p.u32(), p.u32()
}

func (p *parser) maybeReadLoad(code byte, entry *OpcodeEntry) Expression {
	load := &Load{}
	switch code {
	case OpI32LoadMem8S:
		load.Bytes, load.Typ, load.Signed = 1, I32, true
	case OpI32LoadMem8U:
		load.Bytes, load.Typ = 1, I32
	case OpI32LoadMem16S:
		load.Bytes, load.Typ, load.Signed = 2, I32, true
	case OpI32LoadMem16U:
		load.Bytes, load.Typ = 2, I32
	case OpI32LoadMem:
		load.Bytes, load.Typ = 4, I32
	case OpI64LoadMem8S:
		load.Bytes, load.Typ, load.Signed = 1, I64, true
	case OpI64LoadMem8U:
		load.Bytes, load.Typ = 1, I64
	case OpI64LoadMem16S:
		load.Bytes, load.Typ, load.Signed = 2, I64, true
	case OpI64LoadMem16U:
		load.Bytes, load.Typ = 2, I64
	case OpI64LoadMem32S:
		load.Bytes, load.Typ, load.Signed = 4, I64, true
	case OpI64LoadMem32U:
		load.Bytes, load.Typ = 4, I64
	case OpI64LoadMem:
		load.Bytes, load.Typ = 8, I64
	case OpF32LoadMem:
		load.Bytes, load.Typ = 4, F32
	case OpF64LoadMem:
		load.Bytes, load.Typ = 8, F64
	default:
		return nil
	}
	load.Align, load.Offset = p.readMemoryAccess(entry)
	load.Ptr = p.pop()
	return load
}

func (p *parser) maybeReadStore(code byte, entry *OpcodeEntry) Expression {
	store := &Store{}
	switch code {
	case OpI32StoreMem8:
		store.Bytes, store.ValueType = 1, I32
	case OpI32StoreMem16:
		store.Bytes, store.ValueType = 2, I32
	case OpI32StoreMem:
		store.Bytes, store.ValueType = 4, I32
	case OpI64StoreMem8:
		store.Bytes, store.ValueType = 1, I64
	case OpI64StoreMem16:
		store.Bytes, store.ValueType = 2, I64
	case OpI64StoreMem32:
		store.Bytes, store.ValueType = 4, I64
	case OpI64StoreMem:
		store.Bytes, store.ValueType = 8, I64
	case OpF32StoreMem:
		store.Bytes, store.ValueType = 4, F32
	case OpF64StoreMem:
		store.Bytes, store.ValueType = 8, F64
	default:
		return nil
	}
	// at this version a store forwards its value like a set does
	store.Typ = store.ValueType
	store.Align, store.Offset = p.readMemoryAccess(entry)
	store.Value = p.pop()
	store.Ptr = p.pop()
	return store
}

// unaryDecode maps opcode bytes to op and node type. The node type mirrors
// the writer's opcode selection, which keys on it; for eqz that is the
// operand type, not the result type.
var unaryDecode = map[byte]struct {
	Op  UnaryOp
	Typ Type
}{
	OpI32Clz:            {Clz, I32},
	OpI64Clz:            {Clz, I64},
	OpI32Ctz:            {Ctz, I32},
	OpI64Ctz:            {Ctz, I64},
	OpI32Popcnt:         {Popcnt, I32},
	OpI64Popcnt:         {Popcnt, I64},
	OpI32EqZ:            {EqZ, I32},
	OpI64EqZ:            {EqZ, I64},
	OpF32Neg:            {Neg, F32},
	OpF64Neg:            {Neg, F64},
	OpF32Abs:            {Abs, F32},
	OpF64Abs:            {Abs, F64},
	OpF32Ceil:           {Ceil, F32},
	OpF64Ceil:           {Ceil, F64},
	OpF32Floor:          {Floor, F32},
	OpF64Floor:          {Floor, F64},
	OpF32Trunc:          {Trunc, F32},
	OpF64Trunc:          {Trunc, F64},
	OpF32NearestInt:     {Nearest, F32},
	OpF64NearestInt:     {Nearest, F64},
	OpF32Sqrt:           {Sqrt, F32},
	OpF64Sqrt:           {Sqrt, F64},
	OpF32UConvertI32:    {ConvertUInt32, F32},
	OpF64UConvertI32:    {ConvertUInt32, F64},
	OpF32SConvertI32:    {ConvertSInt32, F32},
	OpF64SConvertI32:    {ConvertSInt32, F64},
	OpF32UConvertI64:    {ConvertUInt64, F32},
	OpF64UConvertI64:    {ConvertUInt64, F64},
	OpF32SConvertI64:    {ConvertSInt64, F32},
	OpF64SConvertI64:    {ConvertSInt64, F64},
	OpI64STruncI32:      {ExtendSInt32, I64},
	OpI64UTruncI32:      {ExtendUInt32, I64},
	OpI32ConvertI64:     {WrapInt64, I32},
	OpI32UTruncF32:      {TruncUFloat32, I32},
	OpI32UTruncF64:      {TruncUFloat64, I32},
	OpI32STruncF32:      {TruncSFloat32, I32},
	OpI32STruncF64:      {TruncSFloat64, I32},
	OpI64UTruncF32:      {TruncUFloat32, I64},
	OpI64UTruncF64:      {TruncUFloat64, I64},
	OpI64STruncF32:      {TruncSFloat32, I64},
	OpI64STruncF64:      {TruncSFloat64, I64},
	OpF32ConvertF64:     {DemoteFloat64, F32},
	OpF64ConvertF32:     {PromoteFloat32, F64},
	OpI32ReinterpretF32: {ReinterpretFloat, I32},
	OpI64ReinterpretF64: {ReinterpretFloat, I64},
	OpF64ReinterpretI64: {ReinterpretInt, F64},
	OpF32ReinterpretI32: {ReinterpretInt, F32},
}

func (p *parser) maybeReadUnary(code byte) Expression {
	info, ok := unaryDecode[code]
	if !ok {
		return nil
	}
	return &Unary{Op: info.Op, Value: p.pop(), Typ: info.Typ}
}

var binaryDecode = map[byte]BinaryOp{
	OpI32Add: Add, OpI64Add: Add, OpF32Add: Add, OpF64Add: Add,
	OpI32Sub: Sub, OpI64Sub: Sub, OpF32Sub: Sub, OpF64Sub: Sub,
	OpI32Mul: Mul, OpI64Mul: Mul, OpF32Mul: Mul, OpF64Mul: Mul,
	OpI32DivS: DivS, OpI64DivS: DivS,
	OpI32DivU: DivU, OpI64DivU: DivU,
	OpI32RemS: RemS, OpI64RemS: RemS,
	OpI32RemU: RemU, OpI64RemU: RemU,
	OpI32And: And, OpI64And: And,
	OpI32Or: Or, OpI64Or: Or,
	OpI32Xor: Xor, OpI64Xor: Xor,
	OpI32Shl: Shl, OpI64Shl: Shl,
	OpI32ShrU: ShrU, OpI64ShrU: ShrU,
	OpI32ShrS: ShrS, OpI64ShrS: ShrS,
	OpI32RotL: RotL, OpI64RotL: RotL,
	OpI32RotR: RotR, OpI64RotR: RotR,
	OpF32Div: Div, OpF64Div: Div,
	OpF32CopySign: CopySign, OpF64CopySign: CopySign,
	OpF32Min: Min, OpF64Min: Min,
	OpF32Max: Max, OpF64Max: Max,
	OpI32Eq: Eq, OpI64Eq: Eq, OpF32Eq: Eq, OpF64Eq: Eq,
	OpI32Ne: Ne, OpI64Ne: Ne, OpF32Ne: Ne, OpF64Ne: Ne,
	OpI32LtS: LtS, OpI64LtS: LtS,
	OpI32LtU: LtU, OpI64LtU: LtU,
	OpI32LeS: LeS, OpI64LeS: LeS,
	OpI32LeU: LeU, OpI64LeU: LeU,
	OpI32GtS: GtS, OpI64GtS: GtS,
	OpI32GtU: GtU, OpI64GtU: GtU,
	OpI32GeS: GeS, OpI64GeS: GeS,
	OpI32GeU: GeU, OpI64GeU: GeU,
	OpF32Lt: Lt, OpF64Lt: Lt,
	OpF32Le: Le, OpF64Le: Le,
	OpF32Gt: Gt, OpF64Gt: Gt,
	OpF32Ge: Ge, OpF64Ge: Ge,
}

func (p *parser) maybeReadBinary(code byte) Expression {
	op, ok := binaryDecode[code]
	if !ok {
		return nil
	}
	bin := &Binary{Op: op}
	bin.Right = p.pop()
	bin.Left = p.pop()
	bin.Finalize()
	return bin
}

func (p *parser) maybeReadHost(code byte) Expression {
	switch code {
	case OpCurrentMemory:
		host := &Host{Op: CurrentMemory}
		host.Finalize()
		return host
	case OpGrowMemory:
		host := &Host{Op: GrowMemory}
		host.Operands = []Expression{p.pop()}
		host.Finalize()
		return host
	default:
		return nil
	}
}
