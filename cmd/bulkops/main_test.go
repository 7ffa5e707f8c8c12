package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rshade/bulkops/internal/cli"
	"github.com/rshade/bulkops/internal/engine"
	"github.com/rshade/bulkops/pkg/version"
)

func TestMainComponents(t *testing.T) {
	t.Run("version available", func(t *testing.T) {
		assert.NotEmpty(t, version.GetVersion())
	})

	t.Run("cli root command", func(t *testing.T) {
		root := cli.NewRootCmd(version.GetVersion())
		assert.NotNil(t, root)
		assert.Equal(t, "bulkops", root.Use)
	})
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil error returns 0", err: nil, want: exitOK},
		{name: "generic error", err: errors.New("boom"), want: exitError},
		{
			name: "validation error",
			err:  &engine.ValidationError{Message: engine.MsgNoItems},
			want: exitValidation,
		},
		{
			name: "wrapped validation error",
			err:  fmt.Errorf("submitting: %w", &engine.ValidationError{Message: engine.MsgNoAction}),
			want: exitValidation,
		},
		{name: "confirmation required", err: cli.ErrConfirmationRequired, want: exitError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}
