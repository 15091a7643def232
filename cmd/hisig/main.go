package main

import (
	"os"

	"github.com/profitmonk/high-intent-signals/cmd/hisig/commands"
)

// main is the entry point for the hisig CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/hisig [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
