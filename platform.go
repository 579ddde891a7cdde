package main

import "runtime"

// isWASM is true when running in a WebAssembly (browser) environment. There
// is no file system for logs or settings there.
var isWASM = (runtime.GOOS == "js" || runtime.GOARCH == "wasm")
