package main

import (
	"os"

	"github.com/ayusman/mudra/cmd/mudra/commands"
	_ "go.uber.org/automaxprocs"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
