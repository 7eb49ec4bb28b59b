//go:build !(js && wasm)

package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Fprintln(os.Stderr, "scrapper-wasm only runs under GOOS=js GOARCH=wasm")
	os.Exit(2)
}
