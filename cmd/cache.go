package cmd

import (
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/carolinespringscc/cricket-agent/internal/cache"
	"github.com/carolinespringscc/cricket-agent/internal/echo"
)

// CacheCmd creates the cache command group for inspecting and clearing
// the Redis-backed response cache without restarting the server.
func CacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Cache operations",
		Long:  "Inspect and invalidate cached entity, list, and upstream responses.",
	}
	cmd.AddCommand(CacheStatsCmd())
	cmd.AddCommand(CacheInvalidateCmd())
	return cmd
}

// CacheStatsCmd creates the "cache stats" command
func CacheStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats [pattern]",
		Short: "Show cached keys and remaining TTLs matching a pattern",
		Long:  "Defaults to every key under this app's namespace (e.g. \"cricket-agent:*:*:*\").",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pattern := "cricket-agent:*"
			if len(args) == 1 {
				pattern = args[0]
			}
			return cacheStats(cmd, pattern)
		},
	}
}

// CacheInvalidateCmd creates the "cache invalidate" command
func CacheInvalidateCmd() *cobra.Command {
	var keyType, resource string
	c := &cobra.Command{
		Use:   "invalidate",
		Short: "Delete every cached key for a given type/resource prefix",
		Long:  "Use sparingly in production; bumping cache.version is usually the safer bulk-invalidation path.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cacheInvalidate(cmd, keyType, resource)
		},
	}
	c.Flags().StringVar(&keyType, "type", "", "Key type: entity, list, search, or upstream")
	c.Flags().StringVar(&resource, "resource", "", "Resource name (e.g. \"scorecard\", \"roster\"); omit to match the whole type")
	_ = c.MarkFlagRequired("type")
	return c
}

func cacheStats(cmd *cobra.Command, pattern string) error {
	cacheClient, closeFn, err := dialAdminCacheClient(cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	ctx := cmd.Context()
	stats, err := cacheClient.GetStats(ctx, pattern)
	if err != nil {
		return fmt.Errorf("error: failed to read cache stats: %w", err)
	}

	echo.Header("Cache Stats")
	echo.Infof("%d keys matching %q", stats.Count, pattern)
	for _, key := range stats.Keys {
		echo.Info(fmt.Sprintf("  %s (ttl %s)", key, stats.TTLs[key]))
	}
	return nil
}

func cacheInvalidate(cmd *cobra.Command, keyType, resource string) error {
	cacheClient, closeFn, err := dialAdminCacheClient(cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	prefix := cacheClient.KeyPrefix(cache.KeyType(keyType), resource)
	deleted, err := cacheClient.InvalidateByPrefix(cmd.Context(), prefix)
	if err != nil {
		return fmt.Errorf("error: failed to invalidate cache: %w", err)
	}

	echo.Successf("✓ Deleted %d keys under prefix %s", deleted, prefix)
	return nil
}

// dialAdminCacheClient connects to Redis for a one-off admin command,
// reusing the same config-driven connection settings the server uses.
// The returned close func must be called once the command is done.
func dialAdminCacheClient(cmd *cobra.Command) (*cache.Client, func(), error) {
	cfg, err := loadConfigForCmd(cmd)
	if err != nil {
		return nil, nil, fmt.Errorf("error: failed to load config: %w", err)
	}

	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("error: failed to parse Redis URL: %w", err)
	}
	redisClient := redis.NewClient(opts)

	if _, err := redisClient.Ping(cmd.Context()).Result(); err != nil {
		_ = redisClient.Close()
		return nil, nil, fmt.Errorf("error: failed to connect to Redis: %w", err)
	}

	cacheClient := cache.NewClient(redisClient, cache.Config{
		App:     "cricket-agent",
		Env:     envName(cfg.Server.DebugMode),
		Version: cfg.Cache.Version,
		Enabled: cfg.Cache.Enabled,
	})
	return cacheClient, func() { _ = redisClient.Close() }, nil
}
