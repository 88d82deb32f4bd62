//go:build !(amd64 || arm64)

package engine

// CompilerSupported reports whether the Compiler kind is available on this platform.
const CompilerSupported = false
