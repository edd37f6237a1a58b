package main

import (
	"os"

	"tuition_billing/internal/commands"
)

func main() {
	if err := commands.NewRootCommand(commands.DefaultOpener).Execute(); err != nil {
		os.Exit(1)
	}
}
