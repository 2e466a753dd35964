// Command superfetch is an MCP gateway that fetches a single public
// web page and returns LLM-ready Markdown plus metadata, over either
// Streamable HTTP (serve) or stdio (stdio).
package main

import (
	"fmt"
	"os"

	"github.com/j0hanz/super-fetch-mcp-server-sub000/cmd/superfetch/app"
)

func main() {
	if err := app.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
