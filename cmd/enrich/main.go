package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/timmy/tubebench/internal/logger"
)

func main() {
	cmd := newRootCommand()
	err := cmd.Execute()
	_ = logger.Sync()
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
