// Package types is the value vocabulary shared by the engines and the
// runtime: core WebAssembly value kinds, signatures, global types and the
// fixed-width raw slot every value is lowered to at the call boundary.
package types
