// Package mcp exposes the rewrite service as MCP tools.
//
// The server uses the MCP SDK (github.com/modelcontextprotocol/go-sdk/mcp)
// over stdio and calls the sanitize service directly, so tool results match
// the HTTP API. Tools:
//
//   - sanitize_text: rewrite text for a described audience
//   - classify_context: report which rule category a context selects
//   - list_rules: enumerate the local rule tables for a category
package mcp
