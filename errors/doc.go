// Package errors provides the structured error type shared by the binary
// reader, the binary writer, the validator, and the pass driver.
//
// Every failure carries the processing phase it occurred in and a kind
// describing what went wrong, plus whatever location context is available:
// a byte offset and section name for parse errors, a function name for
// validation and pass errors.
package errors
