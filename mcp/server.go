// Package mcp provides the MCP (Model Context Protocol) server for Dendrite.
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Benny93/dendrite-go/internal/graph"
	"github.com/Benny93/dendrite-go/internal/storage"
)

// Server exposes a read-only graph store over MCP stdio.
type Server struct {
	store  storage.GraphStore
	server *mcp.Server
}

// Tool represents an MCP tool.
type Tool struct {
	Name        string
	Description string
	InputSchema *jsonschema.Schema
}

// Resource represents an MCP resource.
type Resource struct {
	URI         string
	Name        string
	Description string
	MimeType    string
}

// NewServer creates a new MCP server over the given store.
func NewServer(store storage.GraphStore) *Server {
	s := &Server{
		store: store,
	}

	s.server = mcp.NewServer(&mcp.Implementation{
		Name:    "dendrite",
		Version: "0.1.0",
	}, nil)

	return s
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []Tool {
	return []Tool{
		{
			Name:        "list_commits",
			Description: "List indexed commits, newest first. Each commit has a stored relationship graph.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"limit": {Type: "integer", Description: "Maximum number of commits to return"},
				},
			},
		},
		{
			Name:        "graph_stats",
			Description: "Node and edge counts for a commit's graph, optionally restricted to a projection preset.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"commit": {Type: "string", Description: "Commit hash or unique prefix"},
					"preset": {Type: "string", Description: "Projection preset name"},
				},
				Required: []string{"commit"},
			},
		},
		{
			Name:        "search_nodes",
			Description: "Search a commit's graph nodes by name tokens. Queries match snake_case and camelCase fragments.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"commit": {Type: "string", Description: "Commit hash or unique prefix"},
					"query":  {Type: "string", Description: "Search query text"},
					"kinds": {
						Type:        "array",
						Items:       &jsonschema.Schema{Type: "string"},
						Description: "Node kinds to keep, e.g. class, function",
					},
				},
				Required: []string{"commit", "query"},
			},
		},
		{
			Name:        "export_graph",
			Description: "Export a commit's graph as JSON, optionally projected to a preset.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"commit": {Type: "string", Description: "Commit hash or unique prefix"},
					"preset": {Type: "string", Description: "Projection preset name"},
				},
				Required: []string{"commit"},
			},
		},
	}
}

// ListResources returns all registered resources.
func (s *Server) ListResources() []Resource {
	return []Resource{
		{
			URI:         "dendrite://overview",
			Name:        "Store Overview",
			Description: "Repository metadata and counts for the indexed graph store",
			MimeType:    "text/plain",
		},
		{
			URI:         "dendrite://schema",
			Name:        "Graph Schema",
			Description: "Node and edge kinds of the relationship graph",
			MimeType:    "text/plain",
		},
		{
			URI:         "dendrite://presets",
			Name:        "Projection Presets",
			Description: "Named node and edge kind subsets the graph can be projected to",
			MimeType:    "text/plain",
		},
	}
}

// CallTool executes a tool with the given arguments.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	switch name {
	case "list_commits":
		limit, _ := args["limit"].(float64)
		if limit == 0 {
			limit = 20
		}
		return handleListCommits(s.store, int(limit))
	case "graph_stats":
		commit, _ := args["commit"].(string)
		preset, _ := args["preset"].(string)
		return handleGraphStats(s.store, commit, preset)
	case "search_nodes":
		commit, _ := args["commit"].(string)
		query, _ := args["query"].(string)
		kindsArg, _ := args["kinds"].([]any)
		kinds := make([]string, 0, len(kindsArg))
		for _, k := range kindsArg {
			if kind, ok := k.(string); ok {
				kinds = append(kinds, kind)
			}
		}
		return handleSearchNodes(s.store, commit, query, kinds)
	case "export_graph":
		commit, _ := args["commit"].(string)
		preset, _ := args["preset"].(string)
		return handleExportGraph(s.store, commit, preset)
	default:
		return "", fmt.Errorf("unknown tool: %s", name)
	}
}

// ReadResource reads a resource by URI.
func (s *Server) ReadResource(ctx context.Context, uri string) (string, error) {
	switch uri {
	case "dendrite://overview":
		return getOverview(s.store), nil
	case "dendrite://schema":
		return getSchema(), nil
	case "dendrite://presets":
		return getPresets(), nil
	default:
		return "", fmt.Errorf("unknown resource: %s", uri)
	}
}

// Run starts the MCP server with stdio transport.
func (s *Server) Run(ctx context.Context, stdin io.Reader, stdout io.Writer) error {
	if stdin == nil || stdout == nil {
		return fmt.Errorf("stdin and stdout must not be nil")
	}

	reader := bufio.NewReader(stdin)
	encoder := json.NewEncoder(stdout)
	// Note: Do NOT use SetIndent - MCP protocol requires compact JSON (one line per message)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := reader.ReadBytes('\n')
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		// Parse JSON-RPC request
		var req map[string]any
		if err := json.Unmarshal(line, &req); err != nil {
			continue
		}

		// Handle request
		resp := s.handleRequest(ctx, req)
		if err := encoder.Encode(resp); err != nil {
			return err
		}
	}
}

func (s *Server) handleRequest(ctx context.Context, req map[string]any) map[string]any {
	method, _ := req["method"].(string)
	id := req["id"]

	switch method {
	case "initialize":
		return s.handleInitialize(id)
	case "tools/list":
		return s.handleToolsList(id)
	case "tools/call":
		return s.handleToolsCall(ctx, id, req)
	case "resources/list":
		return s.handleResourcesList(id)
	case "resources/read":
		return s.handleResourcesRead(ctx, id, req)
	default:
		return errorResponse(id, -32601, "Method not found: "+method)
	}
}

func (s *Server) handleInitialize(id any) map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"protocolVersion": "2024-11-05",
			"serverInfo": map[string]any{
				"name":    "dendrite",
				"version": "0.1.0",
			},
			"capabilities": map[string]any{
				"tools": map[string]any{
					"listChanged": false,
				},
				"resources": map[string]any{
					"listChanged": false,
				},
			},
		},
	}
}

func (s *Server) handleToolsList(id any) map[string]any {
	tools := s.ListTools()
	toolList := make([]map[string]any, len(tools))
	for i, tool := range tools {
		schema, _ := json.Marshal(tool.InputSchema)
		var schemaMap map[string]any
		json.Unmarshal(schema, &schemaMap)

		toolList[i] = map[string]any{
			"name":        tool.Name,
			"description": tool.Description,
			"inputSchema": schemaMap,
		}
	}

	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"tools": toolList,
		},
	}
}

func (s *Server) handleToolsCall(ctx context.Context, id any, req map[string]any) map[string]any {
	params, _ := req["params"].(map[string]any)
	if params == nil {
		return errorResponse(id, -32602, "Invalid params")
	}

	name, _ := params["name"].(string)
	args, _ := params["arguments"].(map[string]any)

	result, err := s.CallTool(ctx, name, args)
	if err != nil {
		return errorResponse(id, -32000, err.Error())
	}

	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"content": []map[string]any{
				{
					"type": "text",
					"text": result,
				},
			},
		},
	}
}

func (s *Server) handleResourcesList(id any) map[string]any {
	resources := s.ListResources()
	resourceList := make([]map[string]any, len(resources))
	for i, res := range resources {
		resourceList[i] = map[string]any{
			"uri":         res.URI,
			"name":        res.Name,
			"description": res.Description,
			"mimeType":    res.MimeType,
		}
	}

	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"resources": resourceList,
		},
	}
}

func (s *Server) handleResourcesRead(ctx context.Context, id any, req map[string]any) map[string]any {
	params, _ := req["params"].(map[string]any)
	if params == nil {
		return errorResponse(id, -32602, "Invalid params")
	}

	uri, _ := params["uri"].(string)

	content, err := s.ReadResource(ctx, uri)
	if err != nil {
		return errorResponse(id, -32000, err.Error())
	}

	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"contents": []map[string]any{
				{
					"uri":      uri,
					"mimeType": "text/plain",
					"text":     content,
				},
			},
		},
	}
}

// Tool Handlers

func handleListCommits(store storage.GraphStore, limit int) (string, error) {
	commits, err := store.ListCommits()
	if err != nil {
		return "", err
	}
	if len(commits) == 0 {
		return "No commits indexed yet. Run `dendrite history` to build snapshot graphs.", nil
	}
	if limit > 0 && len(commits) > limit {
		commits = commits[:limit]
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Indexed Commits (%d)\n\n", len(commits)))
	for i, c := range commits {
		sb.WriteString(fmt.Sprintf("%d. `%s` %s %s: %s\n", i+1, c.ShortHash(), c.When.Format("2006-01-02"), c.Author, c.Summary))
	}
	sb.WriteString("\nNext: Use `graph_stats` on a commit to see its graph.")

	return sb.String(), nil
}

func handleGraphStats(store storage.GraphStore, commit, preset string) (string, error) {
	projected, hash, err := loadProjected(store, commit, preset)
	if err != nil {
		return "", err
	}
	stats := projected.Stats()

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Graph for `%s`\n\n", hash))
	if preset != "" {
		sb.WriteString(fmt.Sprintf("Preset: %s\n\n", preset))
	}
	sb.WriteString(fmt.Sprintf("**Nodes:** %d\n", stats.Nodes))
	sb.WriteString(fmt.Sprintf("**Edges:** %d\n", stats.Edges))
	sb.WriteString("\n### Nodes by kind\n\n")
	for _, kind := range graph.AllNodeKinds() {
		if n := stats.NodesByKind[kind]; n > 0 {
			sb.WriteString(fmt.Sprintf("- %s: %d\n", kind, n))
		}
	}
	sb.WriteString("\n### Edges by kind\n\n")
	for _, kind := range graph.AllEdgeKinds() {
		if n := stats.EdgesByKind[kind]; n > 0 {
			sb.WriteString(fmt.Sprintf("- %s: %d\n", kind, n))
		}
	}
	sb.WriteString("\nNext: Use `search_nodes` to find specific symbols in this graph.")

	return sb.String(), nil
}

func handleSearchNodes(store storage.GraphStore, commit, query string, kindNames []string) (string, error) {
	if query == "" {
		return "No query provided", nil
	}
	hash, err := storage.ResolveCommit(store, commit)
	if err != nil {
		return "", err
	}

	var kinds []graph.NodeKind
	for _, name := range kindNames {
		kind, ok := graph.ParseNodeKind(name)
		if !ok {
			return "", fmt.Errorf("unknown node kind %q", name)
		}
		kinds = append(kinds, kind)
	}

	results, err := store.SearchNodes(hash, query, kinds)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "No results found", nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d nodes for '%s':\n\n", len(results), query))
	for i, r := range results {
		sb.WriteString(fmt.Sprintf("%d. **%s** (%s)\n", i+1, r.Name, r.Kind))
	}
	sb.WriteString("\nNext: Use `export_graph` to fetch the edges around these nodes.")

	return sb.String(), nil
}

func handleExportGraph(store storage.GraphStore, commit, preset string) (string, error) {
	projected, _, err := loadProjected(store, commit, preset)
	if err != nil {
		return "", err
	}
	data, err := projected.MarshalIndent()
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// loadProjected resolves commit, loads its graph, and applies the preset.
// An empty preset means the full graph.
func loadProjected(store storage.GraphStore, commit, preset string) (*graph.Graph, string, error) {
	hash, err := storage.ResolveCommit(store, commit)
	if err != nil {
		return nil, "", err
	}
	g, err := store.LoadGraph(hash)
	if err != nil {
		return nil, "", err
	}
	if preset == "" {
		return g, hash, nil
	}
	projected, err := graph.ProjectPreset(g, graph.Preset(preset))
	if err != nil {
		return nil, "", err
	}
	return projected, hash, nil
}

// Resource Handlers

func getOverview(store storage.GraphStore) string {
	var sb strings.Builder
	sb.WriteString("# Dendrite Store Overview\n\n")

	if meta, err := store.LoadMeta(); err == nil {
		sb.WriteString(fmt.Sprintf("**Repository:** %s\n", meta.RepoPath))
		if meta.Branch != "" {
			sb.WriteString(fmt.Sprintf("**Branch:** %s\n", meta.Branch))
		}
		sb.WriteString(fmt.Sprintf("**Indexed since:** %s\n", meta.CreatedAt.Format("2006-01-02")))
	}

	graphs, _ := store.ListGraphs()
	sb.WriteString(fmt.Sprintf("**Stored graphs:** %d\n", len(graphs)))

	if commits, _ := store.ListCommits(); len(commits) > 0 {
		latest := commits[0]
		sb.WriteString(fmt.Sprintf("**Latest commit:** `%s` %s\n", latest.ShortHash(), latest.Summary))
	}

	return sb.String()
}

func getSchema() string {
	var sb strings.Builder
	sb.WriteString("# Dendrite Graph Schema\n\n")
	sb.WriteString("Node names are canonical paths of the form `scope/identifier`,\n")
	sb.WriteString("rooted at the repository folder.\n")
	sb.WriteString("\n## Node Kinds\n\n")
	for _, kind := range graph.AllNodeKinds() {
		sb.WriteString(fmt.Sprintf("- `%s`\n", kind))
	}
	sb.WriteString("\n## Edge Kinds\n\n")
	for _, kind := range graph.AllEdgeKinds() {
		sb.WriteString(fmt.Sprintf("- `%s`\n", kind))
	}
	return sb.String()
}

func getPresets() string {
	var sb strings.Builder
	sb.WriteString("# Projection Presets\n\n")
	for _, p := range graph.Presets() {
		nodeKinds, edgeKinds, err := graph.PresetKinds(p)
		if err != nil {
			continue
		}
		sb.WriteString(fmt.Sprintf("## %s\n\n", p))
		sb.WriteString(fmt.Sprintf("- Node kinds: %s\n", nodeKindList(nodeKinds)))
		sb.WriteString(fmt.Sprintf("- Edge kinds: %s\n\n", edgeKindList(edgeKinds)))
	}
	return sb.String()
}

func nodeKindList(kinds []graph.NodeKind) string {
	if kinds == nil {
		return "all"
	}
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}

func edgeKindList(kinds []graph.EdgeKind) string {
	if kinds == nil {
		return "all"
	}
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}

// Helper functions

func errorResponse(id any, code int, message string) map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	}
}
