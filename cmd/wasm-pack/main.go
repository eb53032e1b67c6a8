// Command wasm-pack generates npm and pip packages from WebAssembly
// containers.
package main

import (
	"context"
	"os"

	"github.com/charmbracelet/fang"

	wasmpack "github.com/wippyai/wasm-pack"
)

func main() {
	if err := fang.Execute(
		context.Background(),
		newRootCmd(),
		fang.WithVersion(wasmpack.Version),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		os.Exit(1)
	}
}
