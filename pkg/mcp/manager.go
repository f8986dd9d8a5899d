// Package mcp maintains the named connections to external MCP tool
// servers. Two transports are supported: stdio sub-processes and
// streamable HTTP. Protocol framing is delegated to the mcp-go SDK; this
// package owns the connection lifecycle, the cached tool lists, and the
// qualified-name routing used by the tool adapters.
package mcp

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	mcpgo "github.com/mark3labs/mcp-go/mcp"

	"github.com/maestro-cli/maestro/pkg/logger"
	"github.com/maestro-cli/maestro/pkg/tools"
)

const protocolVersion = "2024-11-05"

// ServerConfig describes one tool server. Command selects the stdio
// transport; URL selects streamable HTTP.
type ServerConfig struct {
	Name    string            `yaml:"name"`
	Command string            `yaml:"command,omitempty"`
	Args    []string          `yaml:"args,omitempty"`
	Env     map[string]string `yaml:"env,omitempty"`
	URL     string            `yaml:"url,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
}

func (c ServerConfig) Transport() string {
	if c.Command != "" {
		return "stdio"
	}
	return "streamable-http"
}

// ToolName pairs a tool's qualified name with the name the server
// advertised.
type ToolName struct {
	Qualified string `json:"qualified"`
	Original  string `json:"original"`
}

// ServerInfo is the per-server view exposed to the CLI.
type ServerInfo struct {
	Name          string     `json:"name"`
	Transport     string     `json:"transport"`
	Tools         []ToolName `json:"tools"`
	ServerName    string     `json:"server_name,omitempty"`
	ServerVersion string     `json:"server_version,omitempty"`
}

type connection struct {
	cfg    ServerConfig
	client *client.Client
	tools  []mcpgo.Tool
	info   mcpgo.Implementation
}

// Manager owns the set of live server connections.
type Manager struct {
	mu    sync.RWMutex
	conns map[string]*connection
}

func NewManager() *Manager {
	return &Manager{conns: make(map[string]*connection)}
}

// Connect establishes a session with one server, lists its tools once,
// and caches them. An existing connection of the same name is closed and
// replaced.
func (m *Manager) Connect(ctx context.Context, cfg ServerConfig) error {
	log := logger.GetLogger()

	mcpClient, err := m.newClient(cfg)
	if err != nil {
		return fmt.Errorf("failed to create client for server '%s': %w", cfg.Name, err)
	}

	if err := mcpClient.Start(ctx); err != nil {
		return fmt.Errorf("failed to start client for server '%s': %w", cfg.Name, err)
	}

	initReq := mcpgo.InitializeRequest{}
	initReq.Params.ClientInfo = mcpgo.Implementation{Name: "maestro", Version: "1.0.0"}
	initReq.Params.ProtocolVersion = protocolVersion

	initResp, err := mcpClient.Initialize(ctx, initReq)
	if err != nil {
		mcpClient.Close()
		return fmt.Errorf("failed to initialize server '%s': %w", cfg.Name, err)
	}

	listResp, err := mcpClient.ListTools(ctx, mcpgo.ListToolsRequest{})
	if err != nil {
		mcpClient.Close()
		return fmt.Errorf("failed to list tools on server '%s': %w", cfg.Name, err)
	}

	conn := &connection{cfg: cfg, client: mcpClient, tools: listResp.Tools}
	if initResp != nil {
		conn.info = initResp.ServerInfo
	}

	m.mu.Lock()
	if old, ok := m.conns[cfg.Name]; ok {
		old.client.Close()
	}
	m.conns[cfg.Name] = conn
	m.mu.Unlock()

	log.Info("Connected to tool server",
		"server", cfg.Name,
		"transport", cfg.Transport(),
		"tools", len(listResp.Tools))
	return nil
}

func (m *Manager) newClient(cfg ServerConfig) (*client.Client, error) {
	if cfg.Command != "" {
		env := make([]string, 0, len(cfg.Env))
		for k, v := range cfg.Env {
			env = append(env, k+"="+v)
		}
		sort.Strings(env)
		return client.NewStdioMCPClient(cfg.Command, env, cfg.Args...)
	}
	if cfg.URL == "" {
		return nil, fmt.Errorf("server config needs either command or url")
	}

	opts := []transport.StreamableHTTPCOption{}
	if headers := ExpandHeaders(cfg.Headers); len(headers) > 0 {
		opts = append(opts, transport.WithHTTPHeaders(headers))
	}
	return client.NewStreamableHttpClient(cfg.URL, opts...)
}

// Initialize connects all configured servers in parallel. Per-server
// failures invoke onError and do not abort the rest; partial success is
// the normal case.
func (m *Manager) Initialize(ctx context.Context, configs []ServerConfig, onError func(server string, err error)) {
	var wg sync.WaitGroup
	for _, cfg := range configs {
		wg.Add(1)
		go func(cfg ServerConfig) {
			defer wg.Done()
			if err := m.Connect(ctx, cfg); err != nil {
				logger.GetLogger().Warn("Tool server connection failed",
					"server", cfg.Name, "error", err)
				if onError != nil {
					onError(cfg.Name, err)
				}
			}
		}(cfg)
	}
	wg.Wait()
}

// ListTools returns the flat namespaced catalog across all servers as
// adapter-ready descriptors keyed by qualified name.
func (m *Manager) ListTools() map[string]tools.ToolDescriptor {
	m.mu.RLock()
	defer m.mu.RUnlock()

	catalog := make(map[string]tools.ToolDescriptor)
	for serverName, conn := range m.conns {
		for _, t := range conn.tools {
			catalog[serverName+"/"+t.Name] = tools.ToolDescriptor{
				Name:        t.Name,
				Description: t.Description,
				InputSchema: toSchemaMap(t.InputSchema),
			}
		}
	}
	return catalog
}

// Catalog builds the adapter-wrapped tool map. injectedByTool maps
// qualified tool names to fixed parameters merged into every call.
func (m *Manager) Catalog(injectedByTool map[string]map[string]any) tools.ToolMap {
	m.mu.RLock()
	defer m.mu.RUnlock()

	catalog := make(tools.ToolMap)
	for serverName, conn := range m.conns {
		for _, t := range conn.tools {
			qualified := serverName + "/" + t.Name
			desc := tools.ToolDescriptor{
				Name:        t.Name,
				Description: t.Description,
				InputSchema: toSchemaMap(t.InputSchema),
			}
			catalog[qualified] = tools.NewAdapter(serverName, desc, injectedByTool[qualified],
				func(ctx context.Context, args map[string]any) (string, error) {
					return m.ExecuteTool(ctx, qualified, args)
				})
		}
	}
	return catalog
}

// ServerInfos describes every live connection, sorted by server name.
func (m *Manager) ServerInfos() []ServerInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	infos := make([]ServerInfo, 0, len(m.conns))
	for name, conn := range m.conns {
		info := ServerInfo{
			Name:          name,
			Transport:     conn.cfg.Transport(),
			ServerName:    conn.info.Name,
			ServerVersion: conn.info.Version,
		}
		for _, t := range conn.tools {
			info.Tools = append(info.Tools, ToolName{
				Qualified: name + "/" + t.Name,
				Original:  t.Name,
			})
		}
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// ExecuteTool routes a qualified tool name to its server and returns the
// concatenated text content. A protocol failure and a tool-level error
// both surface as errors, with distinct messages.
func (m *Manager) ExecuteTool(ctx context.Context, qualifiedName string, args map[string]any) (string, error) {
	serverName, toolName, err := SplitQualifiedName(qualifiedName)
	if err != nil {
		return "", err
	}

	m.mu.RLock()
	conn, ok := m.conns[serverName]
	m.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("no connection to server '%s'", serverName)
	}

	req := mcpgo.CallToolRequest{}
	req.Params.Name = toolName
	req.Params.Arguments = args

	resp, err := conn.client.CallTool(ctx, req)
	if err != nil {
		return "", fmt.Errorf("tool call '%s' failed: %w", qualifiedName, err)
	}

	text := ConcatTextContent(resp.Content)
	if resp.IsError {
		if text == "" {
			text = "unknown error"
		}
		return "", fmt.Errorf("tool '%s' returned an error: %s", qualifiedName, text)
	}
	return text, nil
}

// Disconnect closes the named servers, or all of them when called with no
// names. Close errors are swallowed; the connection is gone either way.
func (m *Manager) Disconnect(names ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(names) == 0 {
		for name := range m.conns {
			names = append(names, name)
		}
	}
	for _, name := range names {
		if conn, ok := m.conns[name]; ok {
			_ = conn.client.Close()
			delete(m.conns, name)
		}
	}
}

// Reconnect drops and re-establishes one server connection using its
// last-known config.
func (m *Manager) Reconnect(ctx context.Context, name string) error {
	m.mu.RLock()
	conn, ok := m.conns[name]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("no connection to server '%s'", name)
	}

	cfg := conn.cfg
	m.Disconnect(name)
	return m.Connect(ctx, cfg)
}

// SplitQualifiedName splits "<server>/<tool>" on the first slash.
func SplitQualifiedName(qualified string) (server, tool string, err error) {
	idx := strings.Index(qualified, "/")
	if idx <= 0 || idx == len(qualified)-1 {
		return "", "", fmt.Errorf("malformed tool name '%s': want <server>/<tool>", qualified)
	}
	return qualified[:idx], qualified[idx+1:], nil
}

// ConcatTextContent joins the text parts of a tool response.
func ConcatTextContent(contents []mcpgo.Content) string {
	var texts []string
	for _, content := range contents {
		if textContent, ok := content.(mcpgo.TextContent); ok {
			texts = append(texts, textContent.Text)
		}
	}
	return strings.Join(texts, "\n")
}

func toSchemaMap(schema mcpgo.ToolInputSchema) map[string]any {
	raw := map[string]any{"type": schema.Type}
	if len(schema.Properties) > 0 {
		raw["properties"] = schema.Properties
	}
	if len(schema.Required) > 0 {
		required := make([]any, len(schema.Required))
		for i, r := range schema.Required {
			required[i] = r
		}
		raw["required"] = required
	}
	return raw
}
