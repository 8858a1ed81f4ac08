package cmd

import (
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"

	"loan-risk/config"
)

// cfg is loaded once per invocation before any subcommand runs.
var cfg config.Config

var RootCmd = &cobra.Command{
	Use:   "loan-risk",
	Short: "Monte Carlo credit loss simulation for loan portfolios",

	// SilenceUsage is an option to silence usage when an error occurs.
	SilenceUsage: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadDotEnv(); err != nil {
			return err
		}

		loaded, err := config.Load(viper.GetViper(), viper.GetString("config"))
		if err != nil {
			return err
		}
		cfg = loaded

		return setupLogging(cfg.Log, viper.GetBool("debug"))
	},
}

func init() {
	RootCmd.PersistentFlags().Bool("debug", false, "debug flag")
	RootCmd.PersistentFlags().String("config", "", "config file")

	if err := viper.BindPFlags(RootCmd.PersistentFlags()); err != nil {
		log.WithError(err).Errorf("failed to bind persistent flags. please check the flag settings.")
	}
}

func setupLogging(c config.LogConfig, debug bool) error {
	switch c.Format {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	default:
		log.SetFormatter(&prefixed.TextFormatter{FullTimestamp: true})
	}

	level, err := log.ParseLevel(c.Level)
	if err != nil {
		return errors.Wrapf(err, "log.level %q", c.Level)
	}
	if debug {
		level = log.DebugLevel
	}
	log.SetLevel(level)
	return nil
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		log.WithError(err).Fatalf("cannot execute command")
	}
}
