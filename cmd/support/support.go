// Package support implements diagnostics commands.
package support

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
	"github.com/tphakala/audioload/internal/buildinfo"
	"github.com/tphakala/audioload/internal/conf"
)

// Command creates the support command for collecting diagnostics.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "support",
		Short: "Print runtime and configuration diagnostics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSupport(settings)
		},
	}

	return cmd
}

func runSupport(settings *conf.Settings) error {
	build := buildinfo.Current()
	fmt.Printf("version:          %s\n", build.Version)
	fmt.Printf("build date:       %s\n", build.BuildDate)
	fmt.Printf("node name:        %s\n", settings.Main.Name)
	fmt.Printf("go version:       %s\n", runtime.Version())
	fmt.Printf("os/arch:          %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("num cpu:          %d\n", runtime.NumCPU())
	fmt.Println()
	fmt.Printf("fetch base url:   %s\n", settings.Fetch.BaseURL)
	fmt.Printf("fetch timeout:    %s\n", settings.Fetch.Timeout)
	fmt.Printf("cache ttl:        %s\n", settings.Cache.TTL)
	fmt.Printf("cache cleanup:    %s\n", settings.Cache.CleanupInterval)
	fmt.Printf("sentry enabled:   %t\n", settings.Sentry.Enabled)
	fmt.Printf("debug:            %t\n", settings.Main.Debug)

	return nil
}
