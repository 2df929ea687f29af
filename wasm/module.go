package wasm

// NameType pairs a local variable name with its type.
type NameType struct {
	Name string
	Type Type
}

// FunctionType is a named signature: parameter types and at most one result.
type FunctionType struct {
	Name   string
	Params []Type
	Result Type
}

// Equal reports whether two signatures have the same shape, ignoring names.
func (ft *FunctionType) Equal(other *FunctionType) bool {
	if ft.Result != other.Result || len(ft.Params) != len(other.Params) {
		return false
	}
	for i := range ft.Params {
		if ft.Params[i] != other.Params[i] {
			return false
		}
	}
	return true
}

// Function is a named, typed function definition. Locals are addressed by a
// dense index with parameters in the low slots and vars following.
type Function struct {
	Name   string
	Params []NameType
	Vars   []NameType
	Result Type
	Type   *FunctionType
	Body   Expression
}

// NumParams returns the number of parameters.
func (f *Function) NumParams() int {
	return len(f.Params)
}

// NumLocals returns the number of addressable locals, parameters included.
func (f *Function) NumLocals() int {
	return len(f.Params) + len(f.Vars)
}

// VarIndexBase returns the index of the first non-parameter local.
func (f *Function) VarIndexBase() Index {
	return Index(len(f.Params))
}

// LocalType returns the declared type of local i.
func (f *Function) LocalType(i Index) Type {
	if int(i) < len(f.Params) {
		return f.Params[i].Type
	}
	return f.Vars[int(i)-len(f.Params)].Type
}

// LocalName returns the declared name of local i.
func (f *Function) LocalName(i Index) string {
	if int(i) < len(f.Params) {
		return f.Params[i].Name
	}
	return f.Vars[int(i)-len(f.Params)].Name
}

// Import binds an internal name to an external module/base pair with a
// signature. Imports are callable via CallImport.
type Import struct {
	Name   string
	Module string
	Base   string
	Type   *FunctionType
}

// Export makes the function named Value visible externally as Name.
type Export struct {
	Name  string
	Value string
}

// Segment is a run of bytes placed at an absolute memory offset.
type Segment struct {
	Offset uint32
	Data   []byte
}

// Memory describes the module's linear memory in 64KiB pages.
type Memory struct {
	Initial    uint32
	Max        uint32
	ExportName string
	Segments   []Segment
}

// Module is an ordered collection of functions plus the surrounding
// structure: signatures, imports, exports, the indirect-call table, linear
// memory, and an optional start function. Modules are single-owner; the
// expression nodes of all function bodies belong to the module and live as
// long as it does.
type Module struct {
	FunctionTypes []*FunctionType
	Imports       []*Import
	Functions     []*Function
	Exports       []*Export
	Table         []string
	Memory        Memory
	Start         string

	functionMap map[string]*Function
	importMap   map[string]*Import
}

// GetFunction returns the function with the given name, or nil.
func (m *Module) GetFunction(name string) *Function {
	if m.functionMap == nil {
		m.functionMap = make(map[string]*Function, len(m.Functions))
		for _, f := range m.Functions {
			m.functionMap[f.Name] = f
		}
	}
	return m.functionMap[name]
}

// GetImport returns the import with the given internal name, or nil.
func (m *Module) GetImport(name string) *Import {
	if m.importMap == nil {
		m.importMap = make(map[string]*Import, len(m.Imports))
		for _, im := range m.Imports {
			m.importMap[im.Name] = im
		}
	}
	return m.importMap[name]
}

// AddFunction appends a function definition. Function names are unique.
func (m *Module) AddFunction(f *Function) {
	m.Functions = append(m.Functions, f)
	if m.functionMap != nil {
		m.functionMap[f.Name] = f
	}
}

// AddImport appends an import. Import names are unique.
func (m *Module) AddImport(im *Import) {
	m.Imports = append(m.Imports, im)
	if m.importMap != nil {
		m.importMap[im.Name] = im
	}
}

// AddFunctionType appends a signature definition.
func (m *Module) AddFunctionType(ft *FunctionType) {
	m.FunctionTypes = append(m.FunctionTypes, ft)
}

// GetFunctionType returns the signature with the given name, or nil.
func (m *Module) GetFunctionType(name string) *FunctionType {
	for _, ft := range m.FunctionTypes {
		if ft.Name == name {
			return ft
		}
	}
	return nil
}

// InvalidateNameCaches drops the internal name lookup maps; callers that
// reorder or rename functions must invalidate before the next lookup.
func (m *Module) InvalidateNameCaches() {
	m.functionMap = nil
	m.importMap = nil
}
