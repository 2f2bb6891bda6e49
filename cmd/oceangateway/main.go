// Command oceangateway fetches ocean observations and model output from
// many sources and runs a gross range quality check over them.
//
// Logging:
//   - The base logger is built by the cli package from --log-* flags
//   - It is passed to every component; there is no slog.SetDefault
//   - Components scope loggers with their own attributes
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"oceangateway/cmd/oceangateway/cli"
)

var version = "dev"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := cli.NewRootCommand(version).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
