package main

import (
	"regwatch/cmd"

	"github.com/joho/godotenv"
	_ "golang.org/x/crypto/x509roots/fallback" // We need this to make TLS work in scratch containers
)

func main() {
	// A missing .env file is fine, the environment may already be set
	_ = godotenv.Load()

	cmd.Execute()
}
