package wasm

import (
	"github.com/zenhumany/binaryen/errors"
	"github.com/zenhumany/binaryen/wasm/internal/binary"
)

// TOCEntry records where one function body landed in the output stream.
type TOCEntry struct {
	Name   string
	Offset int
	Size   int
}

// TableOfContents lists the emitted function bodies in module order. The
// function-ordering pass uses it to compare encoded bodies byte-for-byte.
type TableOfContents struct {
	Functions []TOCEntry
}

// Writer emits a module as a sectioned binary. Each section is keyed by an
// inline name, then a 5-byte size placeholder backpatched on section close;
// function bodies are size-prefixed the same way.
type Writer struct {
	module *Module
	o      *binary.Writer
	emit   emitter

	useOpcodeTable bool
	opcodeTable    *OpcodeTable

	toc TableOfContents

	mappedLocals    map[Index]Index
	numLocalsByType map[Type]uint32
	breakStack      []string

	mappedFunctions map[string]uint32
	mappedImports   map[string]uint32
}

// NewWriter creates a writer for the given module.
func NewWriter(m *Module) *Writer {
	return &Writer{module: m}
}

// SetOpcodeTable enables the per-module opcode-table compression layer:
// a preprocessing emit collects tuple frequencies, then the real emit
// replaces the highest-cost tuples with single unused opcode bytes.
func (w *Writer) SetOpcodeTable(enabled bool) {
	w.useOpcodeTable = enabled
}

// TOC returns the table of contents of the last Write.
func (w *Writer) TOC() *TableOfContents {
	return &w.toc
}

// Write emits the module and returns the binary.
func (w *Writer) Write() (data []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(*errors.Error); ok {
				err = e
				return
			}
			panic(r)
		}
	}()

	if w.useOpcodeTable {
		// Preprocess: a virtual emit that only records tuple frequencies.
		info := NewOpcodeInfo()
		pre := &Writer{module: w.module}
		pre.o = binary.NewWriter()
		pre.emit = &recordingEmitter{base: &baseEmitter{w: pre}, info: info}
		pre.write()
		w.opcodeTable = NewOpcodeTable(info)
	}

	w.o = binary.NewWriter()
	if w.opcodeTable != nil {
		w.emit = &compressingEmitter{base: &baseEmitter{w: w}, table: w.opcodeTable}
	} else {
		w.emit = &baseEmitter{w: w}
	}
	w.toc = TableOfContents{}
	w.write()
	return w.o.Bytes(), nil
}

// Encode emits the module without the opcode-table layer.
func (m *Module) Encode() ([]byte, error) {
	return NewWriter(m).Write()
}

func (w *Writer) write() {
	w.writeHeader()
	w.writeSignatures()
	w.writeImports()
	w.writeFunctionSignatures()
	w.writeFunctionTable()
	w.writeMemory()
	w.writeExports()
	w.writeStart()
	if w.opcodeTable != nil {
		// the reader needs the table before it sees any body
		w.opcodeTable.writeSection(w)
	}
	w.writeFunctions()
	w.writeDataSegments()
	w.writeNames()
}

func (w *Writer) fail(err *errors.Error) {
	panic(err)
}

func (w *Writer) writeHeader() {
	w.o.WriteU32LE(Magic)
	w.o.WriteU32LE(Version)
}

func (w *Writer) startSection(name string) int {
	w.o.WriteInlineString(name)
	return w.o.PlaceholderU32()
}

func (w *Writer) finishSection(start int) {
	// the size field does not include its own 5 bytes
	w.o.PatchU32(start, uint32(w.o.Len()-start-binary.PlaceholderSize))
}

func (w *Writer) writeSignatures() {
	if len(w.module.FunctionTypes) == 0 {
		return
	}
	start := w.startSection(SectionSignatures)
	w.o.WriteU32(uint32(len(w.module.FunctionTypes)))
	for _, ft := range w.module.FunctionTypes {
		w.o.Byte(TypeFormBasic)
		w.o.WriteU32(uint32(len(ft.Params)))
		for _, p := range ft.Params {
			w.o.Byte(EncodeType(p))
		}
		if ft.Result == None {
			w.o.WriteU32(0)
		} else {
			w.o.WriteU32(1)
			w.o.Byte(EncodeType(ft.Result))
		}
	}
	w.finishSection(start)
}

func (w *Writer) writeImports() {
	if len(w.module.Imports) == 0 {
		return
	}
	start := w.startSection(SectionImportTable)
	w.o.WriteU32(uint32(len(w.module.Imports)))
	for _, im := range w.module.Imports {
		w.o.WriteU32(w.getFunctionTypeIndex(im.Type.Name))
		w.o.WriteInlineString(im.Module)
		w.o.WriteInlineString(im.Base)
	}
	w.finishSection(start)
}

func (w *Writer) writeFunctionSignatures() {
	if len(w.module.Functions) == 0 {
		return
	}
	start := w.startSection(SectionFunctionSignatures)
	w.o.WriteU32(uint32(len(w.module.Functions)))
	for _, f := range w.module.Functions {
		w.o.WriteU32(w.getFunctionTypeIndex(f.Type.Name))
	}
	w.finishSection(start)
}

func (w *Writer) writeFunctionTable() {
	if len(w.module.Table) == 0 {
		return
	}
	start := w.startSection(SectionFunctionTable)
	w.o.WriteU32(uint32(len(w.module.Table)))
	for _, name := range w.module.Table {
		w.o.WriteU32(w.getFunctionIndex(name))
	}
	w.finishSection(start)
}

func (w *Writer) writeMemory() {
	if w.module.Memory.Max == 0 {
		return
	}
	start := w.startSection(SectionMemory)
	w.o.WriteU32(w.module.Memory.Initial)
	w.o.WriteU32(w.module.Memory.Max)
	if w.module.Memory.ExportName != "" {
		w.o.Byte(1)
	} else {
		w.o.Byte(0)
	}
	w.finishSection(start)
}

func (w *Writer) writeExports() {
	if len(w.module.Exports) == 0 {
		return
	}
	start := w.startSection(SectionExportTable)
	w.o.WriteU32(uint32(len(w.module.Exports)))
	for _, exp := range w.module.Exports {
		w.o.WriteU32(w.getFunctionIndex(exp.Value))
		w.o.WriteInlineString(exp.Name)
	}
	w.finishSection(start)
}

func (w *Writer) writeStart() {
	if w.module.Start == "" {
		return
	}
	start := w.startSection(SectionStart)
	w.o.WriteU32(w.getFunctionIndex(w.module.Start))
	w.finishSection(start)
}

func (w *Writer) writeFunctions() {
	if len(w.module.Functions) == 0 {
		return
	}
	start := w.startSection(SectionFunctions)
	w.o.WriteU32(uint32(len(w.module.Functions)))
	for _, f := range w.module.Functions {
		sizePos := w.o.PlaceholderU32()
		bodyStart := w.o.Len()
		w.mapLocals(f)
		distinct := uint32(0)
		for _, t := range []Type{I32, I64, F32, F64} {
			if w.numLocalsByType[t] > 0 {
				distinct++
			}
		}
		w.o.WriteU32(distinct)
		for _, t := range []Type{I32, I64, F32, F64} {
			if n := w.numLocalsByType[t]; n > 0 {
				w.o.WriteU32(n)
				w.o.Byte(EncodeType(t))
			}
		}
		w.breakStack = w.breakStack[:0]
		w.visit(f.Body)
		size := w.o.Len() - bodyStart
		w.o.PatchU32(sizePos, uint32(size))
		w.toc.Functions = append(w.toc.Functions, TOCEntry{
			Name:   f.Name,
			Offset: bodyStart,
			Size:   size,
		})
	}
	w.finishSection(start)
}

func (w *Writer) writeDataSegments() {
	num := uint32(0)
	for _, seg := range w.module.Memory.Segments {
		if len(seg.Data) > 0 {
			num++
		}
	}
	if num == 0 {
		return
	}
	start := w.startSection(SectionDataSegments)
	w.o.WriteU32(num)
	for _, seg := range w.module.Memory.Segments {
		if len(seg.Data) == 0 {
			continue
		}
		w.o.WriteU32(seg.Offset)
		w.o.WriteU32(uint32(len(seg.Data)))
		w.o.WriteBytes(seg.Data)
	}
	w.finishSection(start)
}

func (w *Writer) writeNames() {
	if len(w.module.Functions) == 0 {
		return
	}
	start := w.startSection(SectionNames)
	w.o.WriteU32(uint32(len(w.module.Functions)))
	for _, f := range w.module.Functions {
		w.o.WriteInlineString(f.Name)
		w.o.WriteU32(0) // no local names
	}
	w.finishSection(start)
}

// mapLocals remaps source-order local indices to the canonical encoding
// order: parameters first in declaration order, then vars grouped by type
// in the order i32, i64, f32, f64.
func (w *Writer) mapLocals(f *Function) {
	w.mappedLocals = make(map[Index]Index, f.NumLocals())
	for i := 0; i < f.NumParams(); i++ {
		w.mappedLocals[Index(i)] = Index(i)
	}
	w.numLocalsByType = make(map[Type]uint32, 4)
	for _, v := range f.Vars {
		w.numLocalsByType[v.Type]++
	}
	curr := make(map[Type]Index, 4)
	for i := f.VarIndexBase(); int(i) < f.NumLocals(); i++ {
		t := f.LocalType(i)
		base := Index(f.NumParams())
		switch t {
		case I64:
			base += Index(w.numLocalsByType[I32])
		case F32:
			base += Index(w.numLocalsByType[I32] + w.numLocalsByType[I64])
		case F64:
			base += Index(w.numLocalsByType[I32] + w.numLocalsByType[I64] + w.numLocalsByType[F32])
		}
		w.mappedLocals[i] = base + curr[t]
		curr[t]++
	}
}

func (w *Writer) getFunctionIndex(name string) uint32 {
	if w.mappedFunctions == nil {
		w.mappedFunctions = make(map[string]uint32, len(w.module.Functions))
		for i, f := range w.module.Functions {
			w.mappedFunctions[f.Name] = uint32(i)
		}
	}
	index, ok := w.mappedFunctions[name]
	if !ok {
		w.fail(errors.NotFound(errors.PhaseEncode, "function", name))
	}
	return index
}

func (w *Writer) getImportIndex(name string) uint32 {
	if w.mappedImports == nil {
		w.mappedImports = make(map[string]uint32, len(w.module.Imports))
		for i, im := range w.module.Imports {
			w.mappedImports[im.Name] = uint32(i)
		}
	}
	index, ok := w.mappedImports[name]
	if !ok {
		w.fail(errors.NotFound(errors.PhaseEncode, "import", name))
	}
	return index
}

func (w *Writer) getFunctionTypeIndex(name string) uint32 {
	for i, ft := range w.module.FunctionTypes {
		if ft.Name == name {
			return uint32(i)
		}
	}
	w.fail(errors.NotFound(errors.PhaseEncode, "function type", name))
	return 0
}

func (w *Writer) getBreakIndex(name string) uint32 {
	for i := len(w.breakStack) - 1; i >= 0; i-- {
		if w.breakStack[i] == name {
			return uint32(len(w.breakStack) - 1 - i)
		}
	}
	w.fail(errors.New(errors.PhaseEncode, errors.KindBadLabel).
		Detail("bad break: %s", name).Build())
	return 0
}

// impossibleContinue is pushed for the implicit labels the binary format
// gives if arms; nothing in the tree can name it.
const impossibleContinue = "impossible-continue"

// branchesTo reports whether any break or switch under e targets name.
func branchesTo(e Expression, name string) bool {
	found := false
	WalkExpressions(e, func(curr Expression) {
		switch n := curr.(type) {
		case *Break:
			if n.Name == name {
				found = true
			}
		case *Switch:
			if n.Default == name {
				found = true
			}
			for _, t := range n.Targets {
				if t == name {
					found = true
				}
			}
		}
	})
	return found
}

// visitPossibleBlockContents emits a node, but if it is a block that is
// never branched to, emits just the list of its contents.
func (w *Writer) visitPossibleBlockContents(curr Expression) {
	block, ok := curr.(*Block)
	if !ok || (block.Name != "" && branchesTo(curr, block.Name)) {
		w.visit(curr)
		return
	}
	for _, child := range block.List {
		w.visit(child)
	}
}

func (w *Writer) visit(curr Expression) {
	switch n := curr.(type) {
	case *Block:
		w.emit.emitOp(OpBlock)
		w.breakStack = append(w.breakStack, n.Name)
		for _, child := range n.List {
			w.visit(child)
		}
		w.breakStack = w.breakStack[:len(w.breakStack)-1]
		w.emit.emitOp(OpEnd)
	case *If:
		w.visit(n.Condition)
		w.emit.emitOp(OpIf)
		w.breakStack = append(w.breakStack, impossibleContinue)
		w.visitPossibleBlockContents(n.IfTrue)
		w.breakStack = w.breakStack[:len(w.breakStack)-1]
		if n.IfFalse != nil {
			w.emit.emitOp(OpElse)
			w.breakStack = append(w.breakStack, impossibleContinue)
			w.visitPossibleBlockContents(n.IfFalse)
			w.breakStack = w.breakStack[:len(w.breakStack)-1]
		}
		w.emit.emitOp(OpEnd)
	case *Loop:
		w.emit.emitOp(OpLoop)
		w.breakStack = append(w.breakStack, n.Out, n.In)
		w.visit(n.Body)
		w.breakStack = w.breakStack[:len(w.breakStack)-2]
		w.emit.emitOp(OpEnd)
	case *Break:
		if n.Value != nil {
			w.visit(n.Value)
		}
		if n.Condition != nil {
			w.visit(n.Condition)
		}
		op := OpBr
		if n.Condition != nil {
			op = OpBrIf
		}
		arity := uint32(0)
		if n.Value != nil {
			arity = 1
		}
		w.emit.emitU32U32(op, arity, w.getBreakIndex(n.Name))
	case *Switch:
		if n.Value != nil {
			w.visit(n.Value)
		}
		w.visit(n.Condition)
		arity := uint32(0)
		if n.Value != nil {
			arity = 1
		}
		w.emit.emitU32U32(OpTableSwitch, arity, uint32(len(n.Targets)))
		for _, target := range n.Targets {
			w.o.WriteU32LE(w.getBreakIndex(target))
		}
		w.o.WriteU32LE(w.getBreakIndex(n.Default))
	case *Call:
		for _, operand := range n.Operands {
			w.visit(operand)
		}
		w.emit.emitU32U32(OpCallFunction, uint32(len(n.Operands)), w.getFunctionIndex(n.Target))
	case *CallImport:
		for _, operand := range n.Operands {
			w.visit(operand)
		}
		w.emit.emitU32U32(OpCallImport, uint32(len(n.Operands)), w.getImportIndex(n.Target))
	case *CallIndirect:
		w.visit(n.Target)
		for _, operand := range n.Operands {
			w.visit(operand)
		}
		w.emit.emitU32U32(OpCallIndirect, uint32(len(n.Operands)), w.getFunctionTypeIndex(n.FullType.Name))
	case *GetLocal:
		w.emit.emitU32(OpGetLocal, uint32(w.mappedLocals[n.Index]))
	case *SetLocal:
		w.visit(n.Value)
		w.emit.emitU32(OpSetLocal, uint32(w.mappedLocals[n.Index]))
	case *Load:
		w.visit(n.Ptr)
		w.emitMemoryAccess(loadOpcode(n), n.Align, n.Bytes, n.Offset)
	case *Store:
		w.visit(n.Ptr)
		w.visit(n.Value)
		w.emitMemoryAccess(storeOpcode(n), n.Align, n.Bytes, n.Offset)
	case *Const:
		switch n.Value.Type {
		case I32:
			w.emit.emitS32(OpI32Const, n.Value.I32())
		case I64:
			w.emit.emitS64(OpI64Const, n.Value.I64())
		case F32:
			w.emit.emitF32(OpF32Const, n.Value.F32Bits())
		case F64:
			w.emit.emitF64(OpF64Const, n.Value.F64Bits())
		default:
			w.fail(errors.Unsupported(errors.PhaseEncode, "constant with no type"))
		}
	case *Unary:
		w.visit(n.Value)
		w.emit.emitOp(unaryOpcode(n))
	case *Binary:
		w.visit(n.Left)
		w.visit(n.Right)
		w.emit.emitOp(binaryOpcode(n))
	case *Select:
		w.visit(n.IfTrue)
		w.visit(n.IfFalse)
		w.visit(n.Condition)
		w.emit.emitOp(OpSelect)
	case *Drop:
		// drop has no encoding at this version; the value is emitted and
		// the stack discipline of structured parents discards it
		w.visit(n.Value)
	case *Return:
		arity := uint32(0)
		if n.Value != nil {
			w.visit(n.Value)
			arity = 1
		}
		w.emit.emitU32(OpReturn, arity)
	case *Host:
		switch n.Op {
		case CurrentMemory:
			w.emit.emitOp(OpCurrentMemory)
		case GrowMemory:
			w.visit(n.Operands[0])
			w.emit.emitOp(OpGrowMemory)
		}
	case *Nop:
		w.emit.emitOp(OpNop)
	case *Unreachable:
		w.emit.emitOp(OpUnreachable)
	case *GetGlobal, *SetGlobal:
		w.fail(errors.Unsupported(errors.PhaseEncode, "globals have no binary encoding"))
	default:
		w.fail(errors.Unsupported(errors.PhaseEncode, "unknown expression kind"))
	}
}

func (w *Writer) emitMemoryAccess(code byte, alignment uint32, bytes uint8, offset uint32) {
	align := alignment
	if align == 0 {
		align = uint32(bytes)
	}
	w.emit.emitU32U32(code, log2(align), offset)
}

func log2(v uint32) uint32 {
	var n uint32
	for v > 1 {
		v >>= 1
		n++
	}
	return n
}

func loadOpcode(n *Load) byte {
	switch n.Typ {
	case I32:
		switch n.Bytes {
		case 1:
			if n.Signed {
				return OpI32LoadMem8S
			}
			return OpI32LoadMem8U
		case 2:
			if n.Signed {
				return OpI32LoadMem16S
			}
			return OpI32LoadMem16U
		case 4:
			return OpI32LoadMem
		}
	case I64:
		switch n.Bytes {
		case 1:
			if n.Signed {
				return OpI64LoadMem8S
			}
			return OpI64LoadMem8U
		case 2:
			if n.Signed {
				return OpI64LoadMem16S
			}
			return OpI64LoadMem16U
		case 4:
			if n.Signed {
				return OpI64LoadMem32S
			}
			return OpI64LoadMem32U
		case 8:
			return OpI64LoadMem
		}
	case F32:
		return OpF32LoadMem
	case F64:
		return OpF64LoadMem
	}
	panic(errors.Unsupported(errors.PhaseEncode, "invalid load width"))
}

func storeOpcode(n *Store) byte {
	switch n.ValueType {
	case I32:
		switch n.Bytes {
		case 1:
			return OpI32StoreMem8
		case 2:
			return OpI32StoreMem16
		case 4:
			return OpI32StoreMem
		}
	case I64:
		switch n.Bytes {
		case 1:
			return OpI64StoreMem8
		case 2:
			return OpI64StoreMem16
		case 4:
			return OpI64StoreMem32
		case 8:
			return OpI64StoreMem
		}
	case F32:
		return OpF32StoreMem
	case F64:
		return OpF64StoreMem
	}
	panic(errors.Unsupported(errors.PhaseEncode, "invalid store width"))
}

func unaryOpcode(n *Unary) byte {
	pick := func(t Type, a, b byte) byte {
		if n.Typ == t {
			return a
		}
		return b
	}
	switch n.Op {
	case Clz:
		return pick(I32, OpI32Clz, OpI64Clz)
	case Ctz:
		return pick(I32, OpI32Ctz, OpI64Ctz)
	case Popcnt:
		return pick(I32, OpI32Popcnt, OpI64Popcnt)
	case EqZ:
		return pick(I32, OpI32EqZ, OpI64EqZ)
	case Neg:
		return pick(F32, OpF32Neg, OpF64Neg)
	case Abs:
		return pick(F32, OpF32Abs, OpF64Abs)
	case Ceil:
		return pick(F32, OpF32Ceil, OpF64Ceil)
	case Floor:
		return pick(F32, OpF32Floor, OpF64Floor)
	case Trunc:
		return pick(F32, OpF32Trunc, OpF64Trunc)
	case Nearest:
		return pick(F32, OpF32NearestInt, OpF64NearestInt)
	case Sqrt:
		return pick(F32, OpF32Sqrt, OpF64Sqrt)
	case ExtendSInt32:
		return OpI64STruncI32
	case ExtendUInt32:
		return OpI64UTruncI32
	case WrapInt64:
		return OpI32ConvertI64
	case TruncUFloat32:
		return pick(I32, OpI32UTruncF32, OpI64UTruncF32)
	case TruncSFloat32:
		return pick(I32, OpI32STruncF32, OpI64STruncF32)
	case TruncUFloat64:
		return pick(I32, OpI32UTruncF64, OpI64UTruncF64)
	case TruncSFloat64:
		return pick(I32, OpI32STruncF64, OpI64STruncF64)
	case ConvertUInt32:
		return pick(F32, OpF32UConvertI32, OpF64UConvertI32)
	case ConvertSInt32:
		return pick(F32, OpF32SConvertI32, OpF64SConvertI32)
	case ConvertUInt64:
		return pick(F32, OpF32UConvertI64, OpF64UConvertI64)
	case ConvertSInt64:
		return pick(F32, OpF32SConvertI64, OpF64SConvertI64)
	case DemoteFloat64:
		return OpF32ConvertF64
	case PromoteFloat32:
		return OpF64ConvertF32
	case ReinterpretFloat:
		return pick(I32, OpI32ReinterpretF32, OpI64ReinterpretF64)
	case ReinterpretInt:
		return pick(F32, OpF32ReinterpretI32, OpF64ReinterpretI64)
	}
	panic(errors.Unsupported(errors.PhaseEncode, "invalid unary op"))
}

// binaryOpcodes maps op then operand type to the opcode byte. A zero entry
// means the combination is invalid.
var binaryOpcodes = map[BinaryOp]map[Type]byte{
	Add:      {I32: OpI32Add, I64: OpI64Add, F32: OpF32Add, F64: OpF64Add},
	Sub:      {I32: OpI32Sub, I64: OpI64Sub, F32: OpF32Sub, F64: OpF64Sub},
	Mul:      {I32: OpI32Mul, I64: OpI64Mul, F32: OpF32Mul, F64: OpF64Mul},
	DivS:     {I32: OpI32DivS, I64: OpI64DivS},
	DivU:     {I32: OpI32DivU, I64: OpI64DivU},
	RemS:     {I32: OpI32RemS, I64: OpI64RemS},
	RemU:     {I32: OpI32RemU, I64: OpI64RemU},
	And:      {I32: OpI32And, I64: OpI64And},
	Or:       {I32: OpI32Or, I64: OpI64Or},
	Xor:      {I32: OpI32Xor, I64: OpI64Xor},
	Shl:      {I32: OpI32Shl, I64: OpI64Shl},
	ShrU:     {I32: OpI32ShrU, I64: OpI64ShrU},
	ShrS:     {I32: OpI32ShrS, I64: OpI64ShrS},
	RotL:     {I32: OpI32RotL, I64: OpI64RotL},
	RotR:     {I32: OpI32RotR, I64: OpI64RotR},
	Div:      {F32: OpF32Div, F64: OpF64Div},
	CopySign: {F32: OpF32CopySign, F64: OpF64CopySign},
	Min:      {F32: OpF32Min, F64: OpF64Min},
	Max:      {F32: OpF32Max, F64: OpF64Max},
	Eq:       {I32: OpI32Eq, I64: OpI64Eq, F32: OpF32Eq, F64: OpF64Eq},
	Ne:       {I32: OpI32Ne, I64: OpI64Ne, F32: OpF32Ne, F64: OpF64Ne},
	LtS:      {I32: OpI32LtS, I64: OpI64LtS},
	LtU:      {I32: OpI32LtU, I64: OpI64LtU},
	LeS:      {I32: OpI32LeS, I64: OpI64LeS},
	LeU:      {I32: OpI32LeU, I64: OpI64LeU},
	GtS:      {I32: OpI32GtS, I64: OpI64GtS},
	GtU:      {I32: OpI32GtU, I64: OpI64GtU},
	GeS:      {I32: OpI32GeS, I64: OpI64GeS},
	GeU:      {I32: OpI32GeU, I64: OpI64GeU},
	Lt:       {F32: OpF32Lt, F64: OpF64Lt},
	Le:       {F32: OpF32Le, F64: OpF64Le},
	Gt:       {F32: OpF32Gt, F64: OpF64Gt},
	Ge:       {F32: OpF32Ge, F64: OpF64Ge},
}

func binaryOpcode(n *Binary) byte {
	// comparisons type as i32; the opcode follows the operand type
	operandType := n.Left.Type()
	if operandType == None {
		operandType = n.Right.Type()
	}
	code := binaryOpcodes[n.Op][operandType]
	if code == 0 {
		panic(errors.Unsupported(errors.PhaseEncode, "invalid binary op/type combination"))
	}
	return code
}
