// Package mcpserver exposes shared summaries to MCP clients over stdio so a
// consultant's assistant can list and read them.
package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rbright/consult/internal/document"
	"github.com/rbright/consult/internal/store"
	"github.com/rbright/consult/internal/version"
)

const defaultListLimit = 20

// Reader is the read side of the record store.
type Reader interface {
	List(ctx context.Context, limit int) ([]store.Entry, error)
	Get(ctx context.Context, id int64) (store.Record, error)
}

// Server wraps an MCP server bound to a record store.
type Server struct {
	reader Reader
	logger *slog.Logger
	server *mcpsdk.Server
}

type listInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"maximum number of summaries to return, newest first"`
}

// Entry is one listed summary.
type Entry struct {
	ID        int64  `json:"id"`
	Filename  string `json:"filename"`
	Timestamp string `json:"timestamp"`
	Bytes     int64  `json:"bytes"`
}

type listOutput struct {
	Summaries []Entry `json:"summaries"`
}

type getInput struct {
	ID int64 `json:"id" jsonschema:"summary id as returned by list_summaries"`
}

// Summary is the text of one stored document.
type Summary struct {
	ID        int64  `json:"id"`
	Filename  string `json:"filename"`
	Timestamp string `json:"timestamp"`
	Text      string `json:"text"`
}

func New(reader Reader, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{
		reader: reader,
		logger: logger,
		server: mcpsdk.NewServer(&mcpsdk.Implementation{Name: version.Name, Version: version.Version}, nil),
	}

	mcpsdk.AddTool(s.server, &mcpsdk.Tool{
		Name:        "list_summaries",
		Description: "List patient consultation summaries shared with the consultant, newest first.",
	}, s.listSummaries)
	mcpsdk.AddTool(s.server, &mcpsdk.Tool{
		Name:        "get_summary",
		Description: "Return the text of one shared patient consultation summary.",
	}, s.getSummary)
	return s
}

// Run serves MCP over stdin/stdout until ctx ends or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcpsdk.StdioTransport{})
}

// Connect serves one session over transport.
func (s *Server) Connect(ctx context.Context, transport mcpsdk.Transport) (*mcpsdk.ServerSession, error) {
	return s.server.Connect(ctx, transport, nil)
}

func (s *Server) listSummaries(ctx context.Context, _ *mcpsdk.CallToolRequest, in listInput) (*mcpsdk.CallToolResult, listOutput, error) {
	limit := in.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	entries, err := s.reader.List(ctx, limit)
	if err != nil {
		s.logger.Error("list summaries failed", "error", err)
		return nil, listOutput{}, fmt.Errorf("list summaries: %w", err)
	}

	out := listOutput{Summaries: make([]Entry, 0, len(entries))}
	for _, e := range entries {
		out.Summaries = append(out.Summaries, Entry{ID: e.ID, Filename: e.Filename, Timestamp: e.Timestamp, Bytes: e.Size})
	}
	return nil, out, nil
}

func (s *Server) getSummary(ctx context.Context, _ *mcpsdk.CallToolRequest, in getInput) (*mcpsdk.CallToolResult, Summary, error) {
	if in.ID <= 0 {
		return nil, Summary{}, errors.New("id must be a positive integer")
	}
	rec, err := s.reader.Get(ctx, in.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, Summary{}, fmt.Errorf("summary %d not found", in.ID)
		}
		s.logger.Error("get summary failed", "id", in.ID, "error", err)
		return nil, Summary{}, fmt.Errorf("get summary %d: %w", in.ID, err)
	}

	text, err := document.ExtractText(rec.Data)
	if err != nil {
		return nil, Summary{}, fmt.Errorf("summary %d: %w", in.ID, err)
	}
	s.logger.Info("summary read", "id", rec.ID, "filename", rec.Filename)
	return nil, Summary{ID: rec.ID, Filename: rec.Filename, Timestamp: rec.Timestamp, Text: text}, nil
}
