package wasm

import "fmt"

// Builder constructs expression nodes owned by a module. Passes allocate
// replacements through it and splice them into parent slots in place.
type Builder struct {
	Module *Module
}

// NewBuilder creates a builder for the given module.
func NewBuilder(m *Module) *Builder {
	return &Builder{Module: m}
}

// MakeNop creates a nop.
func (b *Builder) MakeNop() *Nop {
	return &Nop{}
}

// MakeBlock creates an unlabeled block with the given elements.
func (b *Builder) MakeBlock(list ...Expression) *Block {
	block := &Block{List: list}
	block.Finalize()
	return block
}

// MakeSequence creates a block of two expressions.
func (b *Builder) MakeSequence(first, second Expression) *Block {
	return b.MakeBlock(first, second)
}

// MakeGetLocal creates a local read.
func (b *Builder) MakeGetLocal(index Index, typ Type) *GetLocal {
	return &GetLocal{Index: index, Typ: typ}
}

// MakeSetLocal creates a non-tee local write.
func (b *Builder) MakeSetLocal(index Index, value Expression) *SetLocal {
	return &SetLocal{Index: index, Value: value, Typ: None}
}

// MakeTeeLocal creates a local write that forwards the written value.
func (b *Builder) MakeTeeLocal(index Index, value Expression) *SetLocal {
	return &SetLocal{Index: index, Value: value, IsTee: true, Typ: value.Type()}
}

// MakeDrop wraps an expression so its value is discarded.
func (b *Builder) MakeDrop(value Expression) *Drop {
	return &Drop{Value: value}
}

// MakeConst creates a typed literal node.
func (b *Builder) MakeConst(value Literal) *Const {
	return &Const{Value: value, Typ: value.Type}
}

// MakeBreak creates a break to the given label.
func (b *Builder) MakeBreak(name string, value, condition Expression) *Break {
	return &Break{Name: name, Value: value, Condition: condition}
}

// Blockify returns the expression as a block, wrapping it if needed.
func (b *Builder) Blockify(e Expression) *Block {
	if block, ok := e.(*Block); ok && block.Name == "" {
		return block
	}
	return b.MakeBlock(e)
}

// AddVar appends a fresh local of the given type to a function and returns
// its index.
func (b *Builder) AddVar(f *Function, typ Type) Index {
	index := Index(f.NumLocals())
	f.Vars = append(f.Vars, NameType{
		Name: fmt.Sprintf("var$%d", index),
		Type: typ,
	})
	return index
}
