package forge

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/AshleyColeman/templateForgeAi/kit"
)

// RegisterMCP registers the extraction tools on an MCP server.
func (s *Service) RegisterMCP(srv *mcp.Server) {
	s.registerExtractTool(srv)
	s.registerReplayTool(srv)
	s.registerBlueprintsTool(srv)
	s.registerRunTool(srv)
	s.registerHealthTool(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	sc := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		sc["required"] = required
	}
	return sc
}

// --- extract_categories ---

type extractReq struct {
	RetailerID int64  `json:"retailer_id"`
	URL        string `json:"url"`
}

func (s *Service) registerExtractTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "extract_categories",
		Description: "Extract the category tree of an e-commerce site with the AI analyzer, persist it, and record a replay blueprint.",
		InputSchema: inputSchema(map[string]any{
			"retailer_id": map[string]any{"type": "integer", "description": "Retailer the categories belong to"},
			"url":         map[string]any{"type": "string", "description": "Page to extract, usually the homepage"},
		}, []string{"retailer_id", "url"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*extractReq)
		out, err := s.Run(ctx, r.RetailerID, r.URL)
		if err != nil {
			if out != nil {
				// The failed run is on record; point the caller at it.
				return nil, fmt.Errorf("run %s failed at %s: %w", out.ID, out.Stage, err)
			}
			return nil, err
		}
		return out, nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r extractReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- replay_blueprint ---

type replayReq struct {
	RetailerID int64  `json:"retailer_id,omitempty"`
	URL        string `json:"url,omitempty"`
	Blueprint  string `json:"blueprint,omitempty"`
}

func (s *Service) registerReplayTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "replay_blueprint",
		Description: "Re-extract categories from a recorded blueprint without calling the AI analyzer.",
		InputSchema: inputSchema(map[string]any{
			"retailer_id": map[string]any{"type": "integer", "description": "Retailer whose newest blueprint to replay (ignored when blueprint is set)"},
			"url":         map[string]any{"type": "string", "description": "Override the recorded site URL"},
			"blueprint":   map[string]any{"type": "string", "description": "Blueprint file name from list_blueprints"},
		}, nil),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*replayReq)
		path := ""
		if r.Blueprint != "" {
			var err error
			path, err = s.ResolveBlueprint(r.Blueprint)
			if err != nil {
				return nil, err
			}
		} else if r.RetailerID == 0 {
			return nil, fmt.Errorf("either retailer_id or blueprint is required")
		}
		out, err := s.Replay(ctx, r.RetailerID, r.URL, path)
		if err != nil {
			if out != nil {
				return nil, fmt.Errorf("replay %s failed at %s: %w", out.ID, out.Stage, err)
			}
			return nil, err
		}
		return out, nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r replayReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- list_blueprints ---

type listBlueprintsReq struct {
	RetailerID int64 `json:"retailer_id,omitempty"`
}

func (s *Service) registerBlueprintsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "list_blueprints",
		Description: "List recorded blueprints, newest first, optionally for one retailer.",
		InputSchema: inputSchema(map[string]any{
			"retailer_id": map[string]any{"type": "integer", "description": "Only blueprints for this retailer"},
		}, nil),
	}

	endpoint := func(_ context.Context, req any) (any, error) {
		r := req.(*listBlueprintsReq)
		entries, err := s.registry.List()
		if err != nil {
			return nil, err
		}
		if r.RetailerID != 0 {
			kept := entries[:0]
			for _, e := range entries {
				if e.RetailerID == r.RetailerID {
					kept = append(kept, e)
				}
			}
			entries = kept
		}
		return map[string]any{"blueprints": entries, "count": len(entries)}, nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r listBlueprintsReq
		if len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
				return nil, err
			}
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- get_run ---

type getRunReq struct {
	RunID string `json:"run_id"`
}

func (s *Service) registerRunTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "get_run",
		Description: "Fetch one extraction run with its stage history.",
		InputSchema: inputSchema(map[string]any{
			"run_id": map[string]any{"type": "string", "description": "Run ID returned by extract_categories or replay_blueprint"},
		}, []string{"run_id"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*getRunReq)
		run, stages, err := s.store.GetRun(ctx, r.RunID)
		if err != nil {
			return nil, err
		}
		return map[string]any{"run": run, "stages": stages}, nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r getRunReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- health ---

func (s *Service) registerHealthTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "health",
		Description: "Report store, browser and blueprint directory health.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(ctx context.Context, _ any) (any, error) {
		return s.Health(ctx, false), nil
	}

	decode := func(_ *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{Request: nil}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}
