package api

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/promptcap/kit"
)

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

var optionsSchema = map[string]any{
	"type":        "object",
	"description": "Compile options: format (paragraph|bullets|numbered), tone (neutral|formal|casual|technical), mode (summary|detailed), includeAI, provider, model, additionalInfo",
}

// RegisterMCP registers the promptcap tools on srv.
func (s *Server) RegisterMCP(srv *mcp.Server) {
	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "promptcap_extract",
		Description: "Extract the user prompts of the attached chat page, optionally compiled into one summary.",
		InputSchema: inputSchema(map[string]any{
			"mode":    map[string]any{"type": "string", "enum": []string{"capture", "compile"}},
			"source":  map[string]any{"type": "string", "enum": []string{"auto", "dom", "keylog"}},
			"options": optionsSchema,
		}, nil),
	}, s.extract, kit.DecodeArgs[ExtractRequest]())

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "promptcap_summarize",
		Description: "Compile a list of prompts into one consolidated paragraph. Falls back to a local summary when no cloud provider answers.",
		InputSchema: inputSchema(map[string]any{
			"texts":   map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"options": optionsSchema,
		}, []string{"texts"}),
	}, s.summarize, kit.DecodeArgs[SummarizeRequest]())

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "promptcap_platform",
		Description: "Report which chat platform the attached page belongs to.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}, s.platform, kit.DecodeArgs[struct{}]())
}
