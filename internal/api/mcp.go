package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hakivo/enricher/internal/queue"
	"github.com/hakivo/enricher/internal/storage"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Records   RecordReader
	Publisher queue.Publisher
	Stats     queue.StatsReporter // optional; queue://stats reports an error when nil
}

// NewMCPServer creates an MCP server with the enrichment tools and the queue
// stats resource registered.
func NewMCPServer(deps MCPDeps, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"enricher",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("enricher: queue civic content for AI enrichment and read the resulting summaries and analyses."),
		server.WithRecovery(),
	)

	typeNames := make([]string, len(queue.JobTypes))
	for i, t := range queue.JobTypes {
		typeNames[i] = string(t)
	}

	s.AddTool(
		mcp.NewTool("enqueue_job",
			mcp.WithDescription("Queue a news article or bill for enrichment or deep analysis."),
			mcp.WithString("type", mcp.Description("Job type"), mcp.Enum(typeNames...), mcp.Required()),
			mcp.WithString("entity_id", mcp.Description("Article, bill or state bill id"), mcp.Required()),
		),
		mcpEnqueueJob(deps),
	)

	s.AddTool(
		mcp.NewTool("get_enrichment",
			mcp.WithDescription("Read the quick enrichment record for a news article or federal bill."),
			mcp.WithString("kind", mcp.Description("Entity kind"), mcp.Enum("news", "bill"), mcp.Required()),
			mcp.WithString("id", mcp.Description("Entity id"), mcp.Required()),
		),
		mcpGetEnrichment(deps),
	)

	s.AddTool(
		mcp.NewTool("get_analysis",
			mcp.WithDescription("Read the deep analysis record for a federal or state bill."),
			mcp.WithString("kind", mcp.Description("Bill kind"), mcp.Enum("bill", "state_bill"), mcp.Required()),
			mcp.WithString("id", mcp.Description("Bill id"), mcp.Required()),
		),
		mcpGetAnalysis(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"queue://stats",
			"Queue Stats",
			mcp.WithResourceDescription("Job counts by state for the configured queue transport"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceStats(deps),
	)

	return s
}

func mcpEnqueueJob(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		rawType, err := req.RequireString("type")
		if err != nil {
			return mcpError("type is required"), nil
		}
		entityID, err := req.RequireString("entity_id")
		if err != nil || entityID == "" {
			return mcpError("entity_id is required"), nil
		}
		typ, err := queue.ParseJobType(rawType)
		if err != nil {
			return mcpError(err.Error()), nil
		}

		id, err := deps.Publisher.Publish(ctx, queue.NewJob(typ, entityID))
		if err != nil {
			return mcpError(fmt.Sprintf("failed to enqueue job: %v", err)), nil
		}
		if id == "" {
			return mcpText(fmt.Sprintf("Queued %s for %s", typ, entityID)), nil
		}
		return mcpText(fmt.Sprintf("Queued %s for %s (job %s)", typ, entityID, id)), nil
	}
}

func mcpGetEnrichment(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		kind := req.GetString("kind", "")
		id, err := req.RequireString("id")
		if err != nil {
			return mcpError("id is required"), nil
		}

		var rec storage.Enrichment
		switch kind {
		case "news":
			rec, err = deps.Records.GetNewsEnrichment(ctx, id)
		case "bill":
			rec, err = deps.Records.GetBillEnrichment(ctx, id)
		default:
			return mcpError(fmt.Sprintf("unknown kind %q (want news or bill)", kind)), nil
		}
		return mcpRecord(rec, err, "enrichment")
	}
}

func mcpGetAnalysis(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		kind := req.GetString("kind", "")
		id, err := req.RequireString("id")
		if err != nil {
			return mcpError("id is required"), nil
		}

		var rec storage.Analysis
		switch kind {
		case "bill":
			rec, err = deps.Records.GetBillAnalysis(ctx, id)
		case "state_bill":
			rec, err = deps.Records.GetStateBillAnalysis(ctx, id)
		default:
			return mcpError(fmt.Sprintf("unknown kind %q (want bill or state_bill)", kind)), nil
		}
		return mcpRecord(rec, err, "analysis")
	}
}

func mcpRecord(rec any, err error, what string) (*mcp.CallToolResult, error) {
	if errors.Is(err, storage.ErrNotFound) {
		return mcpError(what + " not found"), nil
	}
	if err != nil {
		return mcpError(fmt.Sprintf("failed to get %s: %v", what, err)), nil
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal %s: %v", what, err)), nil
	}
	return mcpText(string(b)), nil
}

func mcpResourceStats(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		if deps.Stats == nil {
			return nil, errors.New("queue transport does not report stats")
		}
		stats, err := deps.Stats.Stats(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read queue stats: %w", err)
		}

		b, err := json.Marshal(stats)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal stats: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
