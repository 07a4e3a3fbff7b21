package main

import (
	"github.com/joho/godotenv"
	"github.com/ppiankov/guardscan/internal/cli"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	// GUARDSCAN_* settings may come from a local .env; a missing file is fine.
	_ = godotenv.Load()

	cli.SetVersion(version)
	cli.Execute()
}
