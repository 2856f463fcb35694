// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes vault tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"net"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/docvault/internal/capability"
	"github.com/starford/docvault/internal/db"
	"github.com/starford/docvault/internal/intake"
	"github.com/starford/docvault/internal/itemservice"
	"github.com/starford/docvault/internal/models"
	"github.com/starford/docvault/internal/vaultindex"
)

const contractURI = "docvault://item-format"

// Deps are the domain components the tools call into.
type Deps struct {
	Vault    *capability.Store
	Index    *vaultindex.Builder
	Items    *itemservice.Service
	Intake   *intake.Service
	Contacts db.ContactStore
}

// Server wraps the MCP server with vault tools.
type Server struct {
	mcp  *server.MCPServer
	deps Deps

	// ipCheck guards ingest_document downloads, both before the request and
	// on every dial.
	ipCheck func(ip net.IP) error
}

// New creates a new MCP server with all vault tools registered.
func New(deps Deps, version string) *Server {
	s := &Server{deps: deps, ipCheck: checkBlockedIP}

	s.mcp = server.NewMCPServer(
		"docvault",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("load_index",
		mcp.WithDescription("Rebuild the vault index: every valid document and memo, the clients from clients.json, "+
			"and warnings for files that could not be read."),
	), s.loadIndex)

	s.mcp.AddTool(mcp.NewTool("list_items",
		mcp.WithDescription("List documents and memos, newest first, optionally filtered."),
		mcp.WithString("type", mcp.Description("document or memo")),
		mcp.WithString("status", mcp.Description("processing, ready or error")),
		mcp.WithString("query", mcp.Description("Case-insensitive text matched against metadata keys and values")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of items (default 50)")),
	), s.listItems)

	s.mcp.AddTool(mcp.NewTool("read_file",
		mcp.WithDescription("Read a vault file as UTF-8 text, e.g. documents/<id>/text.txt or clients.json."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Slash-separated path relative to the vault root")),
	), s.readFile)

	s.mcp.AddTool(mcp.NewTool("list_tree",
		mcp.WithDescription("List every file and directory below a vault directory."),
		mcp.WithString("dir", mcp.Description("Directory to list (empty for the vault root)")),
	), s.listTree)

	s.mcp.AddTool(mcp.NewTool("resolve_client",
		mcp.WithDescription("Find the first client whose first and last name both occur in the text."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Text to match, usually OCR output")),
	), s.resolveClient)

	s.mcp.AddTool(mcp.NewTool("create_memo",
		mcp.WithDescription("Create a memo item. Read the item format first via get_item_contract or the "+
			contractURI+" resource."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Memo title")),
		mcp.WithString("text", mcp.Required(), mcp.Description("Memo body")),
		mcp.WithString("client_id", mcp.Description("Optional client id from clients.json")),
	), s.createMemo)

	s.mcp.AddTool(mcp.NewTool("list_contacts",
		mcp.WithDescription("List contacts, or search them by name, role or organization."),
		mcp.WithString("query", mcp.Description("Optional search text")),
	), s.listContacts)

	s.mcp.AddTool(mcp.NewTool("ingest_document",
		mcp.WithDescription("Download a PDF (http/https URL or base64 data URI) and run it through OCR and "+
			"metadata extraction. Returns the final intake row."),
		mcp.WithString("url", mcp.Required(), mcp.Description("http(s) URL or data:application/pdf;base64,... URI")),
		mcp.WithString("filename", mcp.Description("Original filename (derived from the URL when empty)")),
	), s.ingestDocument)

	s.mcp.AddTool(mcp.NewTool("get_item_contract",
		mcp.WithDescription("Returns the vault layout and item envelope format."),
	), s.getItemContract)

	s.mcp.AddResource(
		mcp.NewResource(contractURI, "Item Format Contract",
			mcp.WithResourceDescription("Vault layout and the JSON envelope every item carries."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readContractResource,
	)

	return s
}

// Serve runs the stdio transport over in and out until ctx is done or in
// is closed.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	return server.NewStdioServer(s.mcp).Listen(ctx, in, out)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) loadIndex(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	idx, err := s.deps.Index.LoadIndex(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(idx)
}

func (s *Server) listItems(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	f := itemservice.Filter{
		Type:   models.ItemType(req.GetString("type", "")),
		Status: models.Status(req.GetString("status", "")),
		Query:  req.GetString("query", ""),
		Limit:  req.GetInt("limit", 50),
	}
	items, total, err := s.deps.Items.ListItems(ctx, f)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{"items": items, "total": total})
}

func (s *Server) readFile(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	c, err := s.deps.Vault.Ensure()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	text, err := c.FS().ReadText(path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(text), nil
}

func (s *Server) listTree(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	c, err := s.deps.Vault.Ensure()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := c.FS().Walk(req.GetString("dir", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	lines := make([]string, 0, len(res.Entries))
	for _, e := range res.Entries {
		if e.Kind == models.KindDirectory {
			lines = append(lines, e.Path+"/")
		} else {
			lines = append(lines, e.Path)
		}
	}
	for _, w := range res.Warnings {
		lines = append(lines, fmt.Sprintf("! %s: %s", w.Path, w.Message))
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) resolveClient(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, ok, err := s.deps.Index.ResolveClientForText(ctx, text)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !ok {
		return mcp.NewToolResultText("no matching client"), nil
	}
	return mcp.NewToolResultText(id), nil
}

func (s *Server) createMemo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	in := itemservice.MemoInput{Title: title, Text: text}
	if cid := req.GetString("client_id", ""); cid != "" {
		in.ClientID = &cid
	}
	d, err := s.deps.Items.CreateMemo(ctx, in)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s", d.Path)), nil
}

func (s *Server) listContacts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var (
		contacts []models.Contact
		err      error
	)
	if q := req.GetString("query", ""); q != "" {
		contacts, err = s.deps.Contacts.SearchContacts(ctx, q, 0)
	} else {
		contacts, err = s.deps.Contacts.ListContacts(ctx)
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(contacts)
}

func (s *Server) getItemContract(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(ItemFormatContract), nil
}

func (s *Server) readContractResource(context.Context, mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      contractURI,
			MIMEType: "text/markdown",
			Text:     ItemFormatContract,
		},
	}, nil
}
