package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"hebrewvocab/internal/config"
	"hebrewvocab/internal/logging"
	"hebrewvocab/internal/server"
)

const releaseVersion = "0.1.0"

func main() {
	cfg := &config.Config{}
	cobra.CheckErr(newCmd(cfg).Execute())
}

func newCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "hebrewvocab",
		Short:   "Multiplayer Hebrew vocabulary guessing rooms over a shared key-value store.",
		Args:    cobra.ExactArgs(0),
		Version: releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			logging.Setup(cfg.LogLevel, cfg.LogPretty)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return server.Run(ctx, *cfg)
		},
	}

	config.BindFlags(cmd.Flags(), cfg)

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("hebrewvocab v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
