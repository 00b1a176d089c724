package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Progenics2025/LIMS-sub003/internal/config"
	"github.com/Progenics2025/LIMS-sub003/internal/event"
	"github.com/Progenics2025/LIMS-sub003/internal/logger"
	"github.com/Progenics2025/LIMS-sub003/internal/recycle"
)

type rootOptions struct {
	apiURL    string
	cacheFile string
	offline   bool
	logLevel  string
}

// client is one engine instance with its cache and change bus.
type client struct {
	engine *recycle.Engine
	local  *recycle.CacheStore
	bus    *event.InMemoryBus
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "recyclectl",
		Short: "Inspect and manage the LIMS recycle bin",
		Long: `recyclectl talks to the recycle API and keeps a local cache of the bin.
When the API cannot be reached every command falls back to the cache;
changes made offline stay pending until "recyclectl sync" pushes them.`,
		SilenceUsage: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.apiURL, "api-url", "", "recycle API base URL (default RECYCLE_API_URL)")
	flags.StringVar(&opts.cacheFile, "cache-file", "", "local cache file (default RECYCLE_CACHE_FILE)")
	flags.BoolVar(&opts.offline, "offline", false, "use the local cache only")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "log level: debug, info, warn, error")

	cmd.AddCommand(
		newListCmd(opts),
		newAddCmd(opts),
		newRemoveCmd(opts),
		newClearCmd(opts),
		newPendingCmd(opts),
		newSyncCmd(opts),
	)

	return cmd
}

func (o *rootOptions) client(cmd *cobra.Command) (*client, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if o.apiURL != "" {
		cfg.RecycleAPIURL = o.apiURL
	}
	if o.cacheFile != "" {
		cfg.RecycleCacheFile = o.cacheFile
	}

	log := logger.New(cmd.ErrOrStderr(), o.logLevel, logger.FormatPretty)

	medium, err := recycle.NewFileMedium(cfg.RecycleCacheFile)
	if err != nil {
		return nil, fmt.Errorf("open recycle cache: %w", err)
	}

	bus := event.NewBus()
	local := recycle.NewCacheStore(medium, bus, log)
	normalizer := recycle.NewNormalizer(recycle.DefaultFieldMap())

	var remote recycle.RemoteStore
	if !o.offline {
		remote = recycle.NewHTTPRemote(cfg.RecycleAPIURL, cfg.RecycleRemoteTimeout, normalizer, log)
	}

	engine := recycle.NewEngine(remote, local, normalizer,
		recycle.WithLogger(log.With(slog.String("component", "recycle"))),
		recycle.WithBus(bus),
	)

	return &client{engine: engine, local: local, bus: bus}, nil
}
