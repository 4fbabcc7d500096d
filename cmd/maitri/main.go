// Maitri is a terminal chat companion with optional voice input and
// spoken replies.
//
// Usage:
//
//	maitri [chat] [--backend gemini|vertex|openai|echo] [--speech] [--voice]
//	maitri ask "what should I cook tonight?"
//	maitri print-config
//	maitri version
package main

import (
	"fmt"
	"os"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
