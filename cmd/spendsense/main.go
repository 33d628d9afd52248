// Package main provides the entry point for the spendsense CLI application.
package main

import (
	"os"

	"github.com/joho/godotenv"

	"spendsense/pipeline/cmd/ingest"
	"spendsense/pipeline/cmd/insights"
	"spendsense/pipeline/cmd/root"
	"spendsense/pipeline/cmd/seed"
	"spendsense/pipeline/cmd/serve"
)

func main() {
	// A missing .env file is fine; environment variables still apply.
	_ = godotenv.Load()

	root.Cmd.AddCommand(serve.Cmd)
	root.Cmd.AddCommand(ingest.Cmd)
	root.Cmd.AddCommand(seed.Cmd)
	root.Cmd.AddCommand(insights.Cmd)

	if err := root.Cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
