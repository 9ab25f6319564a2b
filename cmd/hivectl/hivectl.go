package main

import (
	"os"

	"github.com/fatih/color"

	"github.com/kiosk404/hivelink/internal/hivectl/cmd"
)

func main() {
	command := cmd.NewDefaultHivectlCommand()
	if err := command.Execute(); err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}
