package wasm

import (
	"github.com/tetratelabs/wazero/api"
)

// SynthModuleBuilder builds the small guest modules an engine needs to put
// real guest frames between a caller and a host function, and to own
// globals the host can read and write.
type SynthModuleBuilder struct {
	hostModuleName string
	funcs          []synthFunc
	globals        []synthGlobal
}

type synthFunc struct {
	importName  string
	exportName  string
	paramTypes  []api.ValueType
	resultTypes []api.ValueType
}

type synthGlobal struct {
	exportName string
	valType    api.ValueType
	mutable    bool
	initBits   uint64
}

// NewSynthModuleBuilder creates a builder whose function imports come from
// hostModuleName.
func NewSynthModuleBuilder(hostModuleName string) *SynthModuleBuilder {
	return &SynthModuleBuilder{hostModuleName: hostModuleName}
}

// AddForwarder imports importName from the host module and exports a guest
// function under exportName that passes every parameter through to the
// import and returns its results.
func (b *SynthModuleBuilder) AddForwarder(importName, exportName string, params, results []api.ValueType) {
	b.funcs = append(b.funcs, synthFunc{
		importName:  importName,
		exportName:  exportName,
		paramTypes:  params,
		resultTypes: results,
	})
}

// AddGlobal adds an exported, locally defined global initialized to the raw
// bit pattern initBits.
func (b *SynthModuleBuilder) AddGlobal(exportName string, valType api.ValueType, mutable bool, initBits uint64) {
	b.globals = append(b.globals, synthGlobal{
		exportName: exportName,
		valType:    valType,
		mutable:    mutable,
		initBits:   initBits,
	})
}

// Build generates the WASM module bytes, or nil when nothing was added.
func (b *SynthModuleBuilder) Build() []byte {
	if len(b.funcs) == 0 && len(b.globals) == 0 {
		return nil
	}

	hasFuncs := len(b.funcs) > 0
	var wasm []byte

	// Magic and version
	wasm = append(wasm, 0x00, 0x61, 0x73, 0x6d)
	wasm = append(wasm, 0x01, 0x00, 0x00, 0x00)

	if hasFuncs {
		wasm = appendSection(wasm, 0x01, b.buildTypeSection())
		wasm = appendSection(wasm, 0x02, b.buildImportSection())
		wasm = appendSection(wasm, 0x03, b.buildFuncSection())
	}
	if len(b.globals) > 0 {
		wasm = appendSection(wasm, 0x06, b.buildGlobalSection())
	}
	wasm = appendSection(wasm, 0x07, b.buildExportSection())
	if hasFuncs {
		wasm = appendSection(wasm, 0x0a, b.buildCodeSection())
	}

	return wasm
}

func (b *SynthModuleBuilder) buildTypeSection() []byte {
	var section []byte
	section = append(section, EncodeULEB128(uint32(len(b.funcs)))...)

	for _, f := range b.funcs {
		section = append(section, 0x60)
		section = append(section, EncodeULEB128(uint32(len(f.paramTypes)))...)
		for _, t := range f.paramTypes {
			section = append(section, ValTypeToWasm(t))
		}
		section = append(section, EncodeULEB128(uint32(len(f.resultTypes)))...)
		for _, t := range f.resultTypes {
			section = append(section, ValTypeToWasm(t))
		}
	}

	return section
}

func (b *SynthModuleBuilder) buildImportSection() []byte {
	var section []byte
	section = append(section, EncodeULEB128(uint32(len(b.funcs)))...)

	for i, f := range b.funcs {
		section = appendName(section, b.hostModuleName)
		section = appendName(section, f.importName)
		section = append(section, 0x00)
		section = append(section, EncodeULEB128(uint32(i))...)
	}

	return section
}

func (b *SynthModuleBuilder) buildFuncSection() []byte {
	var section []byte
	section = append(section, EncodeULEB128(uint32(len(b.funcs)))...)
	for i := range b.funcs {
		section = append(section, EncodeULEB128(uint32(i))...)
	}
	return section
}

func (b *SynthModuleBuilder) buildGlobalSection() []byte {
	var section []byte
	section = append(section, EncodeULEB128(uint32(len(b.globals)))...)

	for _, g := range b.globals {
		section = append(section, ValTypeToWasm(g.valType))
		if g.mutable {
			section = append(section, 0x01)
		} else {
			section = append(section, 0x00)
		}
		section = append(section, ConstExpr(g.valType, g.initBits)...)
	}

	return section
}

func (b *SynthModuleBuilder) buildExportSection() []byte {
	var section []byte
	section = append(section, EncodeULEB128(uint32(len(b.funcs)+len(b.globals)))...)

	for i, g := range b.globals {
		section = appendName(section, g.exportName)
		section = append(section, 0x03)
		section = append(section, EncodeULEB128(uint32(i))...)
	}

	// Forwarders follow the imported functions in the index space.
	numImports := len(b.funcs)
	for i, f := range b.funcs {
		section = appendName(section, f.exportName)
		section = append(section, 0x00)
		section = append(section, EncodeULEB128(uint32(numImports+i))...)
	}

	return section
}

func (b *SynthModuleBuilder) buildCodeSection() []byte {
	var section []byte
	section = append(section, EncodeULEB128(uint32(len(b.funcs)))...)

	for i, f := range b.funcs {
		funcBody := b.buildFuncBody(i, f)
		section = append(section, EncodeULEB128(uint32(len(funcBody)))...)
		section = append(section, funcBody...)
	}

	return section
}

func (b *SynthModuleBuilder) buildFuncBody(importIdx int, f synthFunc) []byte {
	var body []byte
	body = append(body, 0x00)

	for i := range f.paramTypes {
		body = append(body, 0x20)
		body = append(body, EncodeULEB128(uint32(i))...)
	}

	body = append(body, 0x10)
	body = append(body, EncodeULEB128(uint32(importIdx))...)
	body = append(body, 0x0b)

	return body
}
