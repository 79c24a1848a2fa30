package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/carolinespringscc/cricket-agent/internal/api"
	"github.com/carolinespringscc/cricket-agent/internal/cache"
	"github.com/carolinespringscc/cricket-agent/internal/config"
	"github.com/carolinespringscc/cricket-agent/internal/db"
	"github.com/carolinespringscc/cricket-agent/internal/echo"
	"github.com/carolinespringscc/cricket-agent/internal/llm"
	"github.com/carolinespringscc/cricket-agent/internal/middleware"
	"github.com/carolinespringscc/cricket-agent/internal/objectstorage"
	"github.com/carolinespringscc/cricket-agent/internal/rag"
	"github.com/carolinespringscc/cricket-agent/internal/secrets"
	"github.com/carolinespringscc/cricket-agent/internal/sync"
	"github.com/carolinespringscc/cricket-agent/internal/upstream"
	"github.com/carolinespringscc/cricket-agent/internal/vectorstore"
	"github.com/carolinespringscc/cricket-agent/internal/webhook"
)

const baseURL string = "http://localhost:8080/v1/"

// ServerCmd creates the server command group
func ServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Server operations",
		Long:  "Start and manage the cricket question-answering API server.",
	}

	cmd.AddCommand(ServerStartCmd())
	cmd.AddCommand(ServerFetchCmd())
	cmd.AddCommand(ServerHealthCmd())
	return cmd
}

// ServerStartCmd creates the start command
func ServerStartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the API server",
		Long:  "Start the cricket question-answering API HTTP server.",
		RunE:  startServer,
	}

	cmd.Flags().Bool("debug", false, "Enable debug mode (verbose logging)")
	return cmd
}

// ServerFetchCmd creates the server fetch command
func ServerFetchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch [path]",
		Short: "Test API endpoints",
		Long: `cURL-like tool for testing API endpoints with formatted output.

Path should be relative to /v1/ (e.g., 'ask').`,
		Args: cobra.ExactArgs(1),
		RunE: fetchEndpoint,
	}

	cmd.Flags().StringP("format", "f", "json", "Output format (json|table)")
	cmd.Flags().BoolP("raw", "r", false, "Output raw JSON without colors or formatting (suitable for piping to jq)")
	cmd.Flags().StringP("token", "t", "", "Bearer token for authentication")
	return cmd
}

// ServerHealthCmd creates the health command
func ServerHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check server health",
		Long:  "Perform health check on the running API server.",
		RunE:  checkHealth,
	}
}

func fetchEndpoint(cmd *cobra.Command, args []string) error {
	path := args[0]
	format, _ := cmd.Flags().GetString("format")
	raw, _ := cmd.Flags().GetBool("raw")
	token, _ := cmd.Flags().GetString("token")

	url := baseURL + path

	if !raw {
		echo.Header("API Test")
		echo.Infof("Fetching: %s", url)
		echo.Info("")
	}

	req, err := http.NewRequest("POST", url, nil)
	if err != nil {
		return fmt.Errorf("error: failed to create request: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("error: %w", err)
	}
	defer resp.Body.Close()

	if !raw {
		echo.Infof("Status: %s", resp.Status)
		echo.Info("")
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error: failed to read response: %w", err)
	}

	if raw {
		var prettyJSON bytes.Buffer
		if err := json.Indent(&prettyJSON, body, "", "  "); err != nil {
			fmt.Println(string(body))
		} else {
			fmt.Println(prettyJSON.String())
		}
		return nil
	}

	if format == "table" {
		echo.Info("Table format not yet implemented, showing JSON:")
		echo.Info("")
	}

	var prettyJSON bytes.Buffer
	if err := json.Indent(&prettyJSON, body, "", "  "); err != nil {
		echo.Info(string(body))
	} else {
		echo.Info(prettyJSON.String())
	}

	echo.Info("")
	echo.Successf("✓ Request completed (%d bytes)", len(body))
	return nil
}

func checkHealth(cmd *cobra.Command, args []string) error {
	echo.Header("Health Check")

	serverURL := "http://localhost:8080/healthz"
	echo.Infof("Checking: %s", serverURL)
	echo.Info("")

	resp, err := http.Get(serverURL)
	if err != nil {
		return fmt.Errorf("error: server is not running or unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		echo.Successf("✓ Server is healthy (Status: %s)", resp.Status)

		body, err := io.ReadAll(resp.Body)
		if err == nil && len(body) > 0 {
			var prettyJSON bytes.Buffer
			if err := json.Indent(&prettyJSON, body, "", "  "); err == nil {
				echo.Info("")
				echo.Info(prettyJSON.String())
			}
		}
		return nil
	}

	return fmt.Errorf("error: server returned status: %s", resp.Status)
}

func startServer(cmd *cobra.Command, args []string) error {
	echo.Header("Starting Server")
	echo.Info("Loading configuration...")

	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("error: failed to load config: %w", err)
	}

	debugMode, _ := cmd.Flags().GetBool("debug")
	if debugMode {
		cfg.Server.DebugMode = true
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("error: %w", err)
	}

	ctx := cmd.Context()
	resolver := secrets.Static{}

	echo.Info("Connecting to Redis...")
	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("error: failed to parse Redis URL: %w", err)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	var cacheClient *cache.Client
	if _, err := redisClient.Ping(ctx).Result(); err != nil {
		echo.Infof("⚠ Redis connection failed: %v", err)
		echo.Info("  Rate limiting and response caching will be disabled")
		redisClient = nil
	} else {
		echo.Success("✓ Connected to Redis")
		cacheClient = cache.NewClient(redisClient, cache.Config{
			App:     "cricket-agent",
			Env:     envName(cfg.Server.DebugMode),
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

	store, err := buildVectorStore(ctx, cfg, redisClient, cacheClient)
	if err != nil {
		return fmt.Errorf("error: failed to build vector store: %w", err)
	}
	echo.Successf("✓ Vector store ready (backend: %s)", cfg.Vector.Backend)

	apiKey, _ := resolver.Resolve(ctx, cfg.Secrets.UpstreamAPIKeyRef)
	orgID, _ := resolver.Resolve(ctx, cfg.Secrets.UpstreamTenantRef)
	upstreamClient := upstream.New(cfg.Upstream.BaseURL, apiKey, orgID, cfg.Upstream.RequestsPerSecond,
		upstream.WithMaxRetries(cfg.Upstream.MaxRetries),
		upstream.WithResponseCache(cacheClient, time.Duration(cfg.Cache.TTLs.Upstream)*time.Second))

	mirror := objectstorage.NewLocalFallback(cfg.ObjectStorage.LocalFallback)
	engine := sync.NewEngine(upstreamClient, store, mirror, cfg.Sync.WorkerPoolSize, sync.WithResponseCache(cacheClient))

	provider := llm.NewStub()
	adapter := llm.NewAdapter(provider, cfg.LLM.MaxContextTokens)
	disambiguator := rag.NewTeamDisambiguator(nil)
	router := rag.NewRouter(store, adapter, disambiguator, cacheClient, false)

	var webhookHandler *webhook.Handler
	if cfg.Mode == config.ModePrivate {
		hmacSecret, _ := resolver.Resolve(ctx, cfg.Secrets.WebhookHMACSecretRef)
		webhookHandler, err = webhook.NewHandler(hmacSecret, store)
		if err != nil {
			return fmt.Errorf("error: %w", err)
		}
		echo.Success("✓ Webhook handler initialized (private mode)")
	}

	bearerToken, _ := resolver.Resolve(ctx, cfg.Secrets.InternalBearerTokenRef)

	server := api.NewServer(api.Dependencies{
		Store:          store,
		Router:         router,
		Engine:         engine,
		WebhookHandler: webhookHandler,
		BearerToken:    bearerToken,
		Env:            envName(cfg.Server.DebugMode),
		Mode:           string(cfg.Mode),
		RAGMode:        "llm_rag",
	})

	timeFmt := time.DateTime
	if cfg.Server.DebugMode {
		timeFmt = time.Kitchen
	}

	logger := log.NewWithOptions(cmd.OutOrStdout(), log.Options{
		ReportTimestamp: true,
		TimeFormat:      timeFmt,
		Prefix:          "🏏",
		ReportCaller:    cfg.Server.DebugMode,
	})

	rateLimiter := middleware.NewRateLimiter(redisClient, cfg.Server.DebugMode, 120, 60, time.Minute)

	var handler http.Handler = server
	handler = middleware.Metrics(handler)
	handler = middleware.TraceMiddleware(handler)
	bind := middleware.Logger(logger)
	handler = bind(handler)

	if !cfg.Server.DebugMode && redisClient != nil {
		handler = rateLimiter.Middleware(handler)
		echo.Info("✓ Rate limiting enabled (60 req/min per IP)")
	} else {
		echo.Info("⚠ Rate limiting disabled (debug mode or Redis unavailable)")
	}

	echo.Info("✓ Request logging enabled")

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	echo.Success(fmt.Sprintf("✓ Server starting on %s", addr))
	echo.Infof("  Mode: %s", cfg.Mode)
	echo.Info("Press Ctrl+C to stop")
	echo.Info("")
	return http.ListenAndServe(addr, handler)
}

func envName(debug bool) string {
	if debug {
		return "development"
	}
	return "production"
}

// buildVectorStore composes the tiered backend named by cfg.Vector.Priority,
// building only the concrete backends actually required (§4.3, §9).
func buildVectorStore(ctx context.Context, cfg *config.Config, redisClient *redis.Client, cacheClient *cache.Client) (vectorstore.Store, error) {
	var backends []vectorstore.Store

	for _, name := range cfg.Vector.Priority {
		switch name {
		case "memory":
			backends = append(backends, vectorstore.NewMemoryStore(cfg.ObjectStorage.LocalFallback+"/vectorstore-snapshot.json"))
		case "redis":
			if redisClient != nil && cacheClient != nil {
				backends = append(backends, vectorstore.NewRedisStore(redisClient, cacheClient, cfg.Cache.TTLs.Entity))
			}
		case "postgres":
			conn, err := db.Connect(cfg.Postgres.URL)
			if err != nil {
				return nil, fmt.Errorf("connect postgres vector backend: %w", err)
			}
			if err := conn.Migrate(ctx); err != nil {
				return nil, fmt.Errorf("migrate postgres vector backend: %w", err)
			}
			backends = append(backends, vectorstore.NewPostgresStore(conn))
		case "managed":
			backends = append(backends, vectorstore.NewManagedStub())
		}
	}

	if len(backends) == 0 {
		backends = append(backends, vectorstore.NewMemoryStore(""))
	}
	if len(backends) == 1 {
		return backends[0], nil
	}

	tiered := vectorstore.NewTiered(backends...)
	for _, b := range backends {
		if mem, ok := b.(*vectorstore.MemoryStore); ok {
			if err := tiered.Warm(ctx, mem); err != nil {
				echo.Errorf("vector store warm: %v", err)
			}
			break
		}
	}
	return tiered, nil
}
