// Package mcpserver provides an MCP (Model Context Protocol) server that
// exposes the letter and disposition workflow for LLM integration via stdio
// transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/sinorat/sinorat/internal/agenda"
	"github.com/sinorat/sinorat/internal/disposisi"
	"github.com/sinorat/sinorat/internal/letters"
	"github.com/sinorat/sinorat/internal/models"
	"github.com/sinorat/sinorat/internal/numbering"
)

// Server wraps the MCP server with letter-tracking tools.
type Server struct {
	mcp       *server.MCPServer
	letters   *letters.Service
	disposisi *disposisi.Service
	agenda    *agenda.Service
	resolver  *numbering.Resolver
}

// New creates a new MCP server with all tools registered.
func New(ls *letters.Service, ds *disposisi.Service, as *agenda.Service, res *numbering.Resolver) *Server {
	s := &Server{letters: ls, disposisi: ds, agenda: as, resolver: res}

	s.mcp = server.NewMCPServer(
		"SINORAT",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_letter",
		mcp.WithDescription("Find an incoming letter by its agenda number. "+
			"Returns the letter record including the backend id needed for dispositions."),
		mcp.WithString("noAgenda", mcp.Required(), mcp.Description("Agenda number (e.g. 142)")),
		mcp.WithString("tahun", mcp.Description("Agenda year; omit for the current year")),
	), s.searchLetter)

	s.mcp.AddTool(mcp.NewTool("check_disposition",
		mcp.WithDescription("Report whether a letter already has dispositions attached."),
		mcp.WithString("noAgenda", mcp.Required(), mcp.Description("Agenda number")),
		mcp.WithString("tahun", mcp.Description("Agenda year; omit for the current year")),
	), s.checkDisposition)

	s.mcp.AddTool(mcp.NewTool("next_disposition_number",
		mcp.WithDescription("Resolve the next disposition sequence number. The answer names "+
			"the tier that produced it (server, scan, local, or manual)."),
		mcp.WithString("manual", mcp.Description("Pass \"true\" for the manual escape hatch (local floor, persisted)")),
	), s.nextDispositionNumber)

	s.mcp.AddTool(mcp.NewTool("create_disposition",
		mcp.WithDescription("Create a disposition on the backend. The payload MUST follow the "+
			"contract; read it first via the get_disposisi_contract tool or the "+
			"sinorat://disposisi-payload resource."),
		mcp.WithString("letterIn_id", mcp.Required(), mcp.Description("Backend id of the letter (from search_letter)")),
		mcp.WithString("noDispo", mcp.Required(), mcp.Description("Positive sequence number (from next_disposition_number)")),
		mcp.WithString("tglDispo", mcp.Required(), mcp.Description("Disposition date, YYYY-MM-DD")),
		mcp.WithString("dispoKe", mcp.Required(), mcp.Description("Comma-separated recipient position titles")),
		mcp.WithString("isiDispo", mcp.Required(), mcp.Description("Instruction text, 10 to 500 characters")),
	), s.createDisposition)

	s.mcp.AddTool(mcp.NewTool("get_disposisi_contract",
		mcp.WithDescription("Returns the canonical disposition payload contract. "+
			"Call this before creating dispositions to ensure correct structure."),
	), s.getDisposisiContract)

	s.mcp.AddTool(mcp.NewTool("list_offline_dispositions",
		mcp.WithDescription("List dispositions stored locally while the backend was unreachable."),
	), s.listOfflineDispositions)

	// Resource: disposition payload contract.
	s.mcp.AddResource(
		mcp.NewResource("sinorat://disposisi-payload", "Disposition Payload Contract",
			mcp.WithResourceDescription("Canonical disposition creation payload that all consumers must follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readContractResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) searchLetter(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	noAgenda, err := req.RequireString("noAgenda")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	tahun := ""
	if v, tErr := req.RequireString("tahun"); tErr == nil {
		tahun = v
	}
	letter, err := s.letters.Search(ctx, tahun, noAgenda)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("letter %s: %v", noAgenda, err)), nil
	}
	out, _ := json.MarshalIndent(letter, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) checkDisposition(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	noAgenda, err := req.RequireString("noAgenda")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	tahun := ""
	if v, tErr := req.RequireString("tahun"); tErr == nil {
		tahun = v
	}
	status, err := s.letters.CheckDisposed(ctx, tahun, noAgenda)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("letter %s: %v", noAgenda, err)), nil
	}
	out, _ := json.MarshalIndent(status, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) nextDispositionNumber(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if v, err := req.RequireString("manual"); err == nil && v == "true" {
		n, mErr := s.resolver.ManualNext()
		if mErr != nil {
			return mcp.NewToolResultError(mErr.Error()), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf(`{"nextNumber": %d, "source": %q}`, n, numbering.SourceManual)), nil
	}
	n, source, err := s.resolver.Next(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf(`{"nextNumber": %d, "source": %q}`, n, source)), nil
}

func (s *Server) createDisposition(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	letterID, err := req.RequireString("letterIn_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rawNo, err := req.RequireString("noDispo")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	noDispo, err := strconv.Atoi(rawNo)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("noDispo must be a number: %q", rawNo)), nil
	}
	tglDispo, err := req.RequireString("tglDispo")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rawKe, err := req.RequireString("dispoKe")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	isiDispo, err := req.RequireString("isiDispo")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var dispoKe []string
	for _, part := range strings.Split(rawKe, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			dispoKe = append(dispoKe, trimmed)
		}
	}

	d, err := s.disposisi.Create(ctx, models.DisposisiPayload{
		LetterInID: letterID,
		NoDispo:    noDispo,
		TglDispo:   tglDispo,
		DispoKe:    dispoKe,
		IsiDispo:   isiDispo,
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(d, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getDisposisiContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(DisposisiPayloadContract), nil
}

func (s *Server) readContractResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "sinorat://disposisi-payload",
			MIMEType: "text/markdown",
			Text:     DisposisiPayloadContract,
		},
	}, nil
}

func (s *Server) listOfflineDispositions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	list, err := s.disposisi.Offline()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(list) == 0 {
		return mcp.NewToolResultText("no offline dispositions pending"), nil
	}
	out, _ := json.MarshalIndent(list, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}
