package wasm

import "sort"

// Opcode-table compression layer. A per-module dictionary maps opcode bytes
// the module never uses to its most expensive (opcode, immediates) tuples,
// so each occurrence of such a tuple costs a single byte.

// MaxImmediates is the largest number of immediates any tuple carries.
const MaxImmediates = 2

// OpcodeEntry is one (opcode, immediates) tuple. It is comparable and is
// used directly as a map key.
type OpcodeEntry struct {
	Op     byte
	Size   int
	Values [MaxImmediates]Literal
}

func entryOp(op byte) OpcodeEntry {
	return OpcodeEntry{Op: op}
}

func entryU32(op byte, x uint32) OpcodeEntry {
	return OpcodeEntry{Op: op, Size: 1, Values: [MaxImmediates]Literal{LiteralI32(int32(x))}}
}

func entryS32(op byte, x int32) OpcodeEntry {
	return OpcodeEntry{Op: op, Size: 1, Values: [MaxImmediates]Literal{LiteralI32(x)}}
}

func entryS64(op byte, x int64) OpcodeEntry {
	return OpcodeEntry{Op: op, Size: 1, Values: [MaxImmediates]Literal{LiteralI64(x)}}
}

func entryF32(op byte, bits uint32) OpcodeEntry {
	return OpcodeEntry{Op: op, Size: 1, Values: [MaxImmediates]Literal{LiteralF32Bits(bits)}}
}

func entryF64(op byte, bits uint64) OpcodeEntry {
	return OpcodeEntry{Op: op, Size: 1, Values: [MaxImmediates]Literal{LiteralF64Bits(bits)}}
}

func entryU32U32(op byte, x, y uint32) OpcodeEntry {
	return OpcodeEntry{Op: op, Size: 2, Values: [MaxImmediates]Literal{LiteralI32(int32(x)), LiteralI32(int32(y))}}
}

// encodedSize returns the payload byte size of the entry's immediates as
// they would appear on the wire.
func (e OpcodeEntry) encodedSize() int {
	size := 0
	for i := 0; i < e.Size; i++ {
		switch v := e.Values[i]; v.Type {
		case I32:
			size += slebSize(int64(v.I32()))
		case I64:
			size += slebSize(v.I64())
		case F32:
			size += 4
		case F64:
			size += 8
		}
	}
	return size
}

func slebSize(v int64) int {
	size := 0
	more := true
	for more {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			more = false
		}
		size++
	}
	return size
}

// OpcodeInfo accumulates tuple frequencies during the preprocessing emit.
type OpcodeInfo struct {
	Freqs   [MaxOpcode]int
	Entries map[OpcodeEntry]int
}

// NewOpcodeInfo creates an empty accumulator.
func NewOpcodeInfo() *OpcodeInfo {
	return &OpcodeInfo{Entries: make(map[OpcodeEntry]int)}
}

// Record notes one emission of the entry.
func (info *OpcodeInfo) Record(e OpcodeEntry) {
	info.Freqs[e.Op]++
	info.Entries[e]++
}

// Cost is the byte payoff of replacing every occurrence of the entry with a
// single byte: frequency times encoded immediate size.
func (info *OpcodeInfo) Cost(e OpcodeEntry) int {
	return info.Entries[e] * e.encodedSize()
}

// OpcodeTable assigns the opcode bytes this module never uses to its
// highest-cost tuples.
type OpcodeTable struct {
	Used    [MaxOpcode]bool
	Entries [MaxOpcode]OpcodeEntry
	Mapping map[OpcodeEntry]byte
}

// NewOpcodeTable builds a table from the recorded frequencies.
func NewOpcodeTable(info *OpcodeInfo) *OpcodeTable {
	t := &OpcodeTable{Mapping: make(map[OpcodeEntry]byte)}
	var order []OpcodeEntry
	for e := range info.Entries {
		if info.Cost(e) > 0 {
			order = append(order, e)
		}
	}
	sort.Slice(order, func(i, j int) bool {
		left, right := info.Cost(order[i]), info.Cost(order[j])
		if left != right {
			return left > right
		}
		if order[i].Op != order[j].Op {
			return order[i].Op < order[j].Op
		}
		return less(order[i], order[j])
	})
	next := 0
	for i := 0; i < MaxOpcode; i++ {
		if info.Freqs[i] > 0 || next >= len(order) {
			continue
		}
		t.Used[i] = true
		t.Entries[i] = order[next]
		t.Mapping[order[next]] = byte(i)
		next++
	}
	return t
}

// less orders entries with equal cost and opcode deterministically by
// unsigned immediate comparison.
func less(a, b OpcodeEntry) bool {
	for i := 0; i < MaxImmediates; i++ {
		x, y := a.Values[i], b.Values[i]
		if x.bits != y.bits {
			return x.bits < y.bits
		}
	}
	return false
}

// writeSection emits the opcode-table section: one record per assigned
// byte, carrying the original opcode and its pre-encoded immediates.
func (t *OpcodeTable) writeSection(w *Writer) {
	start := w.startSection(SectionOpcodes)
	w.o.Byte(byte(len(t.Mapping)))
	for i := 0; i < MaxOpcode; i++ {
		if !t.Used[i] {
			continue
		}
		entry := t.Entries[i]
		w.o.Byte(byte(i))
		w.o.Byte(entry.Op)
		w.o.Byte(byte(entry.Size))
		for j := 0; j < entry.Size; j++ {
			v := entry.Values[j]
			w.o.Byte(EncodeType(v.Type))
			switch v.Type {
			case I32:
				w.o.WriteS32(v.I32())
			case I64:
				w.o.WriteS64(v.I64())
			case F32:
				w.o.WriteU32LE(v.F32Bits())
			case F64:
				w.o.WriteU64LE(v.F64Bits())
			}
		}
	}
	w.finishSection(start)
}

// emitter is the expression emission surface. The base emitter writes
// opcode and immediates directly; the recording emitter additionally
// counts tuples; the compressing emitter substitutes assigned bytes for
// table hits.
type emitter interface {
	emitOp(op byte)
	emitU32(op byte, x uint32)
	emitS32(op byte, x int32)
	emitS64(op byte, x int64)
	emitF32(op byte, bits uint32)
	emitF64(op byte, bits uint64)
	emitU32U32(op byte, x, y uint32)
}

type baseEmitter struct {
	w *Writer
}

func (e *baseEmitter) emitOp(op byte) {
	e.w.o.Byte(op)
}

func (e *baseEmitter) emitU32(op byte, x uint32) {
	e.w.o.Byte(op)
	e.w.o.WriteU32(x)
}

func (e *baseEmitter) emitS32(op byte, x int32) {
	e.w.o.Byte(op)
	e.w.o.WriteS32(x)
}

func (e *baseEmitter) emitS64(op byte, x int64) {
	e.w.o.Byte(op)
	e.w.o.WriteS64(x)
}

func (e *baseEmitter) emitF32(op byte, bits uint32) {
	e.w.o.Byte(op)
	e.w.o.WriteU32LE(bits)
}

func (e *baseEmitter) emitF64(op byte, bits uint64) {
	e.w.o.Byte(op)
	e.w.o.WriteU64LE(bits)
}

func (e *baseEmitter) emitU32U32(op byte, x, y uint32) {
	e.w.o.Byte(op)
	e.w.o.WriteU32(x)
	e.w.o.WriteU32(y)
}

type recordingEmitter struct {
	base *baseEmitter
	info *OpcodeInfo
}

func (e *recordingEmitter) emitOp(op byte) {
	e.info.Record(entryOp(op))
	e.base.emitOp(op)
}

func (e *recordingEmitter) emitU32(op byte, x uint32) {
	e.info.Record(entryU32(op, x))
	e.base.emitU32(op, x)
}

func (e *recordingEmitter) emitS32(op byte, x int32) {
	e.info.Record(entryS32(op, x))
	e.base.emitS32(op, x)
}

func (e *recordingEmitter) emitS64(op byte, x int64) {
	e.info.Record(entryS64(op, x))
	e.base.emitS64(op, x)
}

func (e *recordingEmitter) emitF32(op byte, bits uint32) {
	e.info.Record(entryF32(op, bits))
	e.base.emitF32(op, bits)
}

func (e *recordingEmitter) emitF64(op byte, bits uint64) {
	e.info.Record(entryF64(op, bits))
	e.base.emitF64(op, bits)
}

func (e *recordingEmitter) emitU32U32(op byte, x, y uint32) {
	e.info.Record(entryU32U32(op, x, y))
	e.base.emitU32U32(op, x, y)
}

type compressingEmitter struct {
	base  *baseEmitter
	table *OpcodeTable
}

func (e *compressingEmitter) emitOp(op byte) {
	// a tuple without immediates never enters the table
	e.base.emitOp(op)
}

func (e *compressingEmitter) emitU32(op byte, x uint32) {
	if code, ok := e.table.Mapping[entryU32(op, x)]; ok {
		e.base.emitOp(code)
		return
	}
	e.base.emitU32(op, x)
}

func (e *compressingEmitter) emitS32(op byte, x int32) {
	if code, ok := e.table.Mapping[entryS32(op, x)]; ok {
		e.base.emitOp(code)
		return
	}
	e.base.emitS32(op, x)
}

func (e *compressingEmitter) emitS64(op byte, x int64) {
	if code, ok := e.table.Mapping[entryS64(op, x)]; ok {
		e.base.emitOp(code)
		return
	}
	e.base.emitS64(op, x)
}

func (e *compressingEmitter) emitF32(op byte, bits uint32) {
	if code, ok := e.table.Mapping[entryF32(op, bits)]; ok {
		e.base.emitOp(code)
		return
	}
	e.base.emitF32(op, bits)
}

func (e *compressingEmitter) emitF64(op byte, bits uint64) {
	if code, ok := e.table.Mapping[entryF64(op, bits)]; ok {
		e.base.emitOp(code)
		return
	}
	e.base.emitF64(op, bits)
}

func (e *compressingEmitter) emitU32U32(op byte, x, y uint32) {
	if code, ok := e.table.Mapping[entryU32U32(op, x, y)]; ok {
		e.base.emitOp(code)
		return
	}
	e.base.emitU32U32(op, x, y)
}
