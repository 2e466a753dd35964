// Package app provides the entry point for the superfetch command-line
// application: an MCP gateway that fetches a single public web page and
// returns LLM-ready Markdown plus metadata.
package app

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/j0hanz/super-fetch-mcp-server-sub000/pkg/config"
)

var rootCmd = &cobra.Command{
	Use:   "superfetch",
	Short: "superFetch — an MCP gateway that fetches a web page and returns Markdown",
	Long: `superfetch is an MCP (Model Context Protocol) server exposing a single
fetch-url tool: give it a public web page URL and it returns LLM-ready
Markdown plus metadata, with SSRF-safe fetching, noise stripping, and
a content-addressed cache.`,
	Run: func(cmd *cobra.Command, _ []string) {
		if err := cmd.Help(); err != nil {
			cmd.PrintErrf("error displaying help: %v\n", err)
		}
	},
}

func init() {
	if err := config.RegisterFlags(rootCmd.PersistentFlags(), viper.New()); err != nil {
		panic(err)
	}
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(stdioCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
