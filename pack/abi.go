package pack

import (
	"go.uber.org/zap"

	"github.com/wippyai/wasm-pack/wasm"
)

// DetectAbi guesses a module's ABI from the host namespaces it imports.
// A module importing from wasi_unstable or wasi_snapshot_preview1 is WASI.
// Unreadable bytes are treated as having no imports.
func DetectAbi(module []byte) Abi {
	names, err := wasm.ImportModules(module)
	if err != nil {
		Logger().Debug("import scan failed, assuming no ABI", zap.Error(err))
		return AbiNone
	}

	for _, name := range names {
		if name == wasm.WASIUnstable || name == wasm.WASISnapshotPreview {
			return AbiWasi
		}
	}
	return AbiNone
}
