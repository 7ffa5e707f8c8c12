// Command bulkops applies one action to large selections of content in
// bounded, resumable batches.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/rshade/bulkops/internal/cli"
	"github.com/rshade/bulkops/internal/engine"
	"github.com/rshade/bulkops/pkg/version"
)

// Exit codes.
const (
	exitOK         = 0
	exitError      = 1
	exitValidation = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := cli.NewRootCmd(version.GetVersion())
	return exitCode(root.ExecuteContext(ctx))
}

// exitCode maps a command error to the process exit status. Submissions
// rejected before any processing exit with 2.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var verr *engine.ValidationError
	if errors.As(err, &verr) {
		return exitValidation
	}
	return exitError
}
