package cli

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/slitos/slit-install/internal/logging"
)

var (
	logLevel  string
	logFormat string
	logFile   string
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "slit-install",
		Short:         "Guided installer for SLIT OS: drive survey, configuration, phased install",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			_, err := newLogger()
			return err
		},
	}

	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug|info|warn|error")
	cmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format: text|json")
	cmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Append a copy of all logs to this file")

	cmd.AddCommand(newInstallCmd())
	cmd.AddCommand(newDrivesCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

func newLogger() (zerolog.Logger, error) {
	return logging.New(logging.Options{Level: logLevel, Format: logFormat, File: logFile})
}

// userError carries a message meant for the terminal user plus an optional
// recovery hint, as opposed to internal errors that only make sense in logs.
type userError struct {
	msg  string
	hint string
}

func (e *userError) Error() string { return e.msg }
func (e *userError) Hint() string  { return e.hint }

func Execute() error {
	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		red, yellow, cyan, reset := "\033[31m", "\033[33m", "\033[36m", "\033[0m"
		if !isatty.IsTerminal(os.Stderr.Fd()) {
			red, yellow, cyan, reset = "", "", "", ""
		}
		if ue, ok := err.(*userError); ok {
			fmt.Fprintf(os.Stderr, "%sError:%s %s\n", red, reset, ue.Error())
			if hint := ue.Hint(); hint != "" {
				fmt.Fprintf(os.Stderr, "%sHint:%s %s%s%s\n", yellow, reset, cyan, hint, reset)
			}
		} else {
			fmt.Fprintf(os.Stderr, "%sError:%s %v\n", red, reset, err)
		}
		return err
	}
	return nil
}
