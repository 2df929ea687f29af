// Package wasm models modules of typed functions whose bodies are
// structured expression trees, and round-trips them through the sectioned,
// length-prefixed binary format (version 11, inline-named sections).
//
// The package provides the expression data model, execution-order operand
// iteration with assignable slots, post-order and linear-execution
// traversal, the local and effect analyses the optimization passes build
// on, a validator, and the binary reader and writer including the
// per-module opcode-table compression layer.
package wasm
