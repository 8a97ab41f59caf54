// Package load implements the one-shot content load command.
package load

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/tphakala/audioload/internal/buffercache"
	"github.com/tphakala/audioload/internal/conf"
	"github.com/tphakala/audioload/internal/fetchservice"
	"github.com/tphakala/audioload/internal/loader"
	"github.com/tphakala/audioload/internal/logging"
	"github.com/tphakala/audioload/internal/media"
	"github.com/tphakala/audioload/internal/observability"
	"github.com/tphakala/audioload/internal/telemetry"
)

// Command creates the load command: resolve one content identifier to a
// decoded buffer and print its properties.
func Command(settings *conf.Settings) *cobra.Command {
	var forceRefresh bool

	cmd := &cobra.Command{
		Use:   "load <content-id>",
		Short: "Resolve a content identifier to a decoded audio buffer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(settings, args[0], forceRefresh)
		},
	}

	cmd.Flags().BoolVar(&forceRefresh, "force-refresh", false, "Skip the cache and always fetch")

	return cmd
}

func runLoad(settings *conf.Settings, contentID string, forceRefresh bool) error {
	logger := logging.ForService("load")

	obs, err := observability.NewMetrics()
	if err != nil {
		return fmt.Errorf("failed to set up metrics: %w", err)
	}

	cache := buffercache.New(buffercache.Config{
		TTL:             settings.Cache.TTL,
		CleanupInterval: settings.Cache.CleanupInterval,
	}, logger)

	fetcher, err := fetchservice.New(fetchservice.Config{
		BaseURL:    settings.Fetch.BaseURL,
		Timeout:    settings.Fetch.Timeout,
		MaxRetries: settings.Fetch.MaxRetries,
		UserAgent:  settings.Fetch.UserAgent,
	}, cache, logger)
	if err != nil {
		return err
	}
	defer fetcher.Close()

	done := make(chan error, 1)

	coordinator, err := loader.New(loader.Config{
		Cache:    cache,
		Fetcher:  fetcher,
		Reporter: telemetry.NewReporter(logger),
		Metrics:  obs.Loader,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	defer coordinator.Dispose()

	opts := []loader.ResolveOption{
		loader.WithCallbacks(
			func(buf *media.Buffer) { done <- nil },
			func(err error) { done <- err },
		),
	}
	if forceRefresh {
		opts = append(opts, loader.WithForceRefresh())
	}

	coordinator.Resolve(contentID, opts...)

	waitTimeout := settings.Fetch.Timeout + 5*time.Second
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("load failed for %q: %w", contentID, err)
		}
	case <-time.After(waitTimeout):
		return fmt.Errorf("load timed out for %q after %s", contentID, waitTimeout)
	}

	snap := coordinator.State()
	buf := snap.Buffer
	fmt.Printf("content_id:   %s\n", buf.ContentID)
	fmt.Printf("sample_rate:  %d Hz\n", buf.SampleRate)
	fmt.Printf("channels:     %d\n", buf.NumChannels)
	fmt.Printf("bit_depth:    %d\n", buf.BitDepth)
	fmt.Printf("samples:      %d\n", buf.Samples())
	fmt.Printf("duration:     %s\n", buf.Duration().Round(time.Millisecond))
	fmt.Printf("memory:       %d bytes\n", buf.EstimateSize())

	return nil
}
