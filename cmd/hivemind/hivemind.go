package main

import (
	"context"
	"os"

	_ "go.uber.org/automaxprocs"

	"github.com/kiosk404/hivelink/internal/hivemind"
)

func main() {
	if err := hivemind.NewApp(hivemind.AppName).ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
