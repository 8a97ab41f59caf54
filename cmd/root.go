package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tphakala/audioload/cmd/load"
	"github.com/tphakala/audioload/cmd/support"
	"github.com/tphakala/audioload/internal/conf"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "audioload",
		Short: "Audio buffer load coordination CLI",
	}

	if err := setupFlags(rootCmd, settings); err != nil {
		cobra.CheckErr(err)
	}

	subcommands := []*cobra.Command{
		load.Command(settings),
		support.Command(settings),
	}

	rootCmd.AddCommand(subcommands...)

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) error {
	rootCmd.PersistentFlags().BoolVarP(&settings.Main.Debug, "debug", "d", viper.GetBool("main.debug"), "Enable debug output")
	rootCmd.PersistentFlags().StringVar(&settings.Fetch.BaseURL, "base-url", viper.GetString("fetch.baseurl"), "Base URL of the audio content endpoint")
	rootCmd.PersistentFlags().DurationVar(&settings.Fetch.Timeout, "timeout", viper.GetDuration("fetch.timeout"), "Per-request fetch timeout")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}

	return nil
}
