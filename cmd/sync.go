package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/carolinespringscc/cricket-agent/internal/cache"
	"github.com/carolinespringscc/cricket-agent/internal/config"
	"github.com/carolinespringscc/cricket-agent/internal/core"
	"github.com/carolinespringscc/cricket-agent/internal/echo"
	"github.com/carolinespringscc/cricket-agent/internal/objectstorage"
	"github.com/carolinespringscc/cricket-agent/internal/secrets"
	"github.com/carolinespringscc/cricket-agent/internal/sync"
	"github.com/carolinespringscc/cricket-agent/internal/upstream"
	"github.com/carolinespringscc/cricket-agent/internal/vectorstore"
)

// SyncCmd creates the sync command group for manually triggering
// ingestion scopes from the command line (§4.4), without standing up
// the full HTTP server.
func SyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Sync operations",
		Long:  "Trigger one-off ingestion runs against the upstream provider.",
	}

	cmd.AddCommand(SyncAllCmd())
	cmd.AddCommand(SyncTeamCmd())
	cmd.AddCommand(SyncMatchCmd())
	cmd.AddCommand(SyncLadderCmd())
	return cmd
}

// SyncAllCmd creates the "sync all" command
func SyncAllCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "all",
		Short: "Run a full refresh",
		Long:  "Ingest every team, fixture, ladder, scorecard, and roster for a grade/season (§4.4 FullRefresh).",
		RunE: func(cmd *cobra.Command, args []string) error {
			grade, _ := cmd.Flags().GetString("grade")
			season, _ := cmd.Flags().GetString("season")
			return runSyncScope(cmd, func(e *sync.Engine) (sync.Stats, error) {
				return e.FullRefresh(cmd.Context(), core.GradeID(grade), core.SeasonID(season))
			})
		},
	}
	cmd.Flags().String("grade", "", "Grade ID to refresh")
	cmd.Flags().String("season", "", "Season ID to refresh")
	return cmd
}

// SyncTeamCmd creates the "sync team" command
func SyncTeamCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "team [team-id]",
		Short: "Refresh one team's fixtures and roster",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			grade, _ := cmd.Flags().GetString("grade")
			season, _ := cmd.Flags().GetString("season")
			team := core.Team{ID: core.TeamID(args[0]), Grade: core.GradeID(grade), Season: core.SeasonID(season)}
			return runSyncScope(cmd, func(e *sync.Engine) (sync.Stats, error) {
				return e.PerTeamRefresh(cmd.Context(), team, core.SeasonID(season))
			})
		},
	}
	cmd.Flags().String("grade", "", "Grade ID the team belongs to")
	cmd.Flags().String("season", "", "Season ID the team belongs to")
	return cmd
}

// SyncMatchCmd creates the "sync match" command
func SyncMatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "match [fixture-id] [team-slug]",
		Short: "Refresh one fixture's scorecard",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSyncScope(cmd, func(e *sync.Engine) (sync.Stats, error) {
				return e.PerMatchRefresh(cmd.Context(), core.FixtureID(args[0]), args[1])
			})
		},
	}
	return cmd
}

// SyncLadderCmd creates the "sync ladder" command
func SyncLadderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ladder [grade-id]",
		Short: "Refresh one grade's ladder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSyncScope(cmd, func(e *sync.Engine) (sync.Stats, error) {
				return e.PerLadderRefresh(cmd.Context(), core.GradeID(args[0]))
			})
		},
	}
	return cmd
}

func runSyncScope(cmd *cobra.Command, run func(*sync.Engine) (sync.Stats, error)) error {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("error: failed to load config: %w", err)
	}

	resolver := secrets.Static{}
	ctx := cmd.Context()
	apiKey, _ := resolver.Resolve(ctx, cfg.Secrets.UpstreamAPIKeyRef)
	orgID, _ := resolver.Resolve(ctx, cfg.Secrets.UpstreamTenantRef)

	cacheClient := dialCacheClient(ctx, cfg)
	upstreamOpts := []upstream.Option{upstream.WithMaxRetries(cfg.Upstream.MaxRetries)}
	if cacheClient != nil {
		upstreamOpts = append(upstreamOpts, upstream.WithResponseCache(cacheClient, time.Duration(cfg.Cache.TTLs.Upstream)*time.Second))
	}
	upstreamClient := upstream.New(cfg.Upstream.BaseURL, apiKey, orgID, cfg.Upstream.RequestsPerSecond, upstreamOpts...)
	mirror := objectstorage.NewLocalFallback(cfg.ObjectStorage.LocalFallback)
	store := vectorstore.NewMemoryStore(cfg.ObjectStorage.LocalFallback + "/vectorstore-snapshot.json")
	engine := sync.NewEngine(upstreamClient, store, mirror, cfg.Sync.WorkerPoolSize, sync.WithResponseCache(cacheClient))

	echo.Header("Sync")
	stats, err := run(engine)
	if err != nil {
		return fmt.Errorf("error: %w", err)
	}

	out, _ := json.MarshalIndent(stats, "", "  ")
	echo.Info(string(out))
	echo.Success("✓ Sync complete")
	return nil
}

// dialCacheClient best-effort connects to Redis so a manual CLI sync
// gets the same upstream response caching as the server (§4.1). A
// one-off sync run shouldn't fail just because Redis is unreachable,
// so any error here silently falls back to an uncached upstream client.
func dialCacheClient(ctx context.Context, cfg *config.Config) *cache.Client {
	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil
	}
	redisClient := redis.NewClient(opts)
	if _, err := redisClient.Ping(ctx).Result(); err != nil {
		_ = redisClient.Close()
		return nil
	}
	return cache.NewClient(redisClient, cache.Config{
		App:     "cricket-agent",
		Env:     "cli",
		Version: cfg.Cache.Version,
		Enabled: cfg.Cache.Enabled,
		TTLs: cache.TTLConfig{
			Entity:   time.Duration(cfg.Cache.TTLs.Entity) * time.Second,
			List:     time.Duration(cfg.Cache.TTLs.List) * time.Second,
			Search:   time.Duration(cfg.Cache.TTLs.Search) * time.Second,
			Upstream: time.Duration(cfg.Cache.TTLs.Upstream) * time.Second,
			Negative: time.Duration(cfg.Cache.TTLs.Negative) * time.Second,
		},
	})
}
