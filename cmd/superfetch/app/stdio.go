package app

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/j0hanz/super-fetch-mcp-server-sub000/pkg/cache"
	"github.com/j0hanz/super-fetch-mcp-server-sub000/pkg/config"
	"github.com/j0hanz/super-fetch-mcp-server-sub000/pkg/fetcher"
	"github.com/j0hanz/super-fetch-mcp-server-sub000/pkg/logger"
	"github.com/j0hanz/super-fetch-mcp-server-sub000/pkg/mcptool"
	"github.com/j0hanz/super-fetch-mcp-server-sub000/pkg/transform"
	"github.com/j0hanz/super-fetch-mcp-server-sub000/pkg/urlguard"
)

var stdioCmd = &cobra.Command{
	Use:   "stdio",
	Short: "Run the fetch-url tool over stdio transport",
	Long:  "Run superFetch as a single-session MCP server over stdio, sharing the same fetch-url contract as serve.",
	RunE:  runStdio,
}

func runStdio(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}
	// See serve.go's runServe for why SetForTest is reused here.
	restoreLogger := logger.SetForTest(logger.NewLogger(cfg.LogLevel, cfg.UnstructuredLogs))
	defer restoreLogger()

	guard := urlguard.New()
	f := fetcher.New(cfg.UserAgent, guard)

	poolCfg := transform.DefaultConfig()
	poolCfg.TaskTimeout = cfg.TransformTimeout
	pool := transform.New(poolCfg)
	defer pool.Close()

	contentCache := cache.New(cfg.CacheMaxEntries, cfg.CacheTTL, cfg.CacheTTL/4)
	defer contentCache.Close()

	tool := &mcptool.Service{Fetcher: f, Pool: pool, Cache: contentCache, CacheDisabled: !cfg.CacheEnabled}

	server := mcp.NewServer(&mcp.Implementation{Name: "superfetch", Version: "1.0.0"}, nil)
	tool.Register(server)

	logger.Info("superfetch running on stdio")
	return server.Run(context.Background(), &mcp.StdioTransport{})
}
