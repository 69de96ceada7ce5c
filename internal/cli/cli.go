package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/amirbrooks/tasker-chat/internal/client"
)

// Exit codes
const (
	ExitOK       = 0
	ExitUsage    = 2
	ExitNotFound = 3
	ExitConflict = 4
	ExitInternal = 10
)

// Version is set at build time with -ldflags "-X .../internal/cli.Version=...".
var Version = "dev"

type GlobalFlags struct {
	ConfigFile string
	EnvFile    string
	Server     string
	JSON       bool
}

// exitError carries the process exit code for an error returned by a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }

func (e *exitError) Unwrap() error { return e.err }

func usageError(format string, args ...any) error {
	return &exitError{code: ExitUsage, err: fmt.Errorf(format, args...)}
}

func Run(args []string) int {
	return run(args, os.Stdout, os.Stderr)
}

func run(args []string, stdout, stderr io.Writer) int {
	if args == nil {
		// cobra falls back to os.Args on nil
		args = []string{}
	}
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(stderr, "tasker:", err)
		return exitCode(err)
	}
	return ExitOK
}

// exitCode classifies err. Errors that did not come out of a command's RunE
// are cobra argument or flag errors.
func exitCode(err error) int {
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return ExitUsage
}

func newRootCmd() *cobra.Command {
	gf := &GlobalFlags{}
	root := &cobra.Command{
		Use:   "tasker",
		Short: "tasker - in-memory task manager with a chat command channel",
		Long: `tasker serves an in-memory task list over HTTP, with a chat endpoint that
turns plain-language messages into task operations.

Run "tasker serve" to start the server; the other task commands talk to a
running server.`,
		Version:       Version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = cmd.Help()
			return &exitError{code: ExitUsage, err: errors.New("no command given")}
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&gf.ConfigFile, "config", "", "YAML config file")
	pf.StringVar(&gf.EnvFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	pf.StringVar(&gf.Server, "server", envOr("TASKER_SERVER", client.DefaultBaseURL), "server base URL for task commands")
	pf.BoolVar(&gf.JSON, "json", false, "print JSON responses to stdout")

	root.AddCommand(
		newServeCmd(gf),
		newConfigCmd(gf),
		newVersionCmd(),
		newAddCmd(gf),
		newListCmd(gf),
		newDoneCmd(gf),
		newRemoveCmd(gf),
		newClearCmd(gf),
		newUndoCmd(gf),
		newChatCmd(gf),
	)
	return root
}

// runE marks errors from fn as runtime failures unless fn already chose a code.
func runE(fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := fn(cmd, args)
		if err == nil {
			return nil
		}
		var ee *exitError
		if errors.As(err, &ee) {
			return err
		}
		var apiErr *client.APIError
		if errors.As(err, &apiErr) {
			return &exitError{code: apiExitCode(apiErr), err: err}
		}
		return &exitError{code: ExitInternal, err: err}
	}
}

func apiExitCode(e *client.APIError) int {
	switch e.Code {
	case "not_found":
		return ExitNotFound
	case "token_used", "token_expired":
		return ExitConflict
	case "invalid_argument":
		return ExitUsage
	default:
		return ExitInternal
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "tasker %s\n", Version)
		},
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
