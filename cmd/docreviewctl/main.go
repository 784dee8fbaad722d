package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/yungbote/docreview-backend/internal/cli"
)

func main() {
	env, err := cli.DefaultEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := cli.NewRootCmd(env).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
