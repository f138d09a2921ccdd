// main is the entry point for the kernscore CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/huangsam/kernscore/cmd"
	"github.com/huangsam/kernscore/internal/iocache"
)

func main() {
	os.Exit(run())
}

func run() int {
	// The first signal cancels ctx; stop then restores the default handler
	// so a second signal terminates the process immediately.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		stop()
	}()

	cmd.SetContext(ctx)
	cmd.SetCacheManager(iocache.Manager)
	defer iocache.CloseStores()

	err := cmd.Execute()
	if ctx.Err() != nil {
		_, _ = fmt.Fprintln(os.Stderr, "\nOperation cancelled")
		return 130 // Standard exit code for SIGINT
	}
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "❌", err)
		return 1
	}
	return 0
}
