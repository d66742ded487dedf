package toolserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/boat-builder/peoplepod/store"
)

var errMissingArgument = errors.New("missing required argument")

// addData inserts one person. Invalid arguments never reach the store.
// Storage failures are logged here and answered with false plus the cause.
func (s *Server) addData(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	requestID := uuid.NewString()
	logger := s.logger.With("tool", ToolAddData, "request_id", requestID)
	ctx, span := s.tracer.Start(ctx, "tool."+ToolAddData, trace.WithAttributes(
		attribute.String("tool.request_id", requestID),
	))
	defer span.End()

	person, err := parseAddDataArgs(request.GetArguments())
	if err != nil {
		logger.Warn("Rejected tool call", "error", err)
		span.SetStatus(codes.Error, "invalid arguments")
		return mcp.NewToolResultError("invalid arguments: " + err.Error()), nil
	}

	created, err := s.store.Insert(ctx, person)
	if err != nil {
		logger.Error("Error adding data", "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "storage error")
		result := mcp.NewToolResultStructured(map[string]any{"ok": false, "error": err.Error()}, "false")
		result.IsError = true
		return result, nil
	}

	logger.Info("Added person", "id", created.ID)
	span.SetAttributes(attribute.Int64("people.id", created.ID))
	return mcp.NewToolResultStructured(map[string]any{"ok": true, "record": created}, "true"), nil
}

// readData returns the matching records as a JSON array of
// (id, name, age, profession) tuples. An empty array always means nothing
// matched; failures are error results.
func (s *Server) readData(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	requestID := uuid.NewString()
	logger := s.logger.With("tool", ToolReadData, "request_id", requestID)
	ctx, span := s.tracer.Start(ctx, "tool."+ToolReadData, trace.WithAttributes(
		attribute.String("tool.request_id", requestID),
	))
	defer span.End()

	query, err := parseReadDataArgs(request.GetArguments())
	if err == nil {
		err = query.Validate()
	}
	if err != nil {
		logger.Warn("Rejected tool call", "error", err)
		span.SetStatus(codes.Error, "invalid filter")
		return mcp.NewToolResultError(err.Error()), nil
	}

	people, err := s.store.Query(ctx, query)
	if err != nil {
		logger.Error("Error reading data", "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "storage error")
		return mcp.NewToolResultError("read failed: " + err.Error()), nil
	}

	tuples := make([][]any, 0, len(people))
	for _, p := range people {
		tuples = append(tuples, p.Tuple())
	}
	text, err := json.Marshal(tuples)
	if err != nil {
		return nil, fmt.Errorf("failed to encode records: %w", err)
	}

	logger.Info("Read people", "filters", len(query.Filters), "count", len(people))
	span.SetAttributes(attribute.Int("people.count", len(people)))
	return mcp.NewToolResultStructured(map[string]any{"records": people}, string(text)), nil
}

func parseAddDataArgs(args map[string]any) (store.NewPerson, error) {
	var p store.NewPerson

	name, err := stringArg(args, "name")
	if err != nil {
		return p, err
	}
	rawAge, ok := args["age"]
	if !ok || rawAge == nil {
		return p, fmt.Errorf("%w: age", errMissingArgument)
	}
	age, err := store.ToInt(rawAge)
	if err != nil {
		return p, fmt.Errorf("age: %v", err)
	}
	profession, err := stringArg(args, "profession")
	if err != nil {
		return p, err
	}

	p = store.NewPerson{Name: strings.TrimSpace(name), Age: age, Profession: strings.TrimSpace(profession)}
	if err := p.Validate(); err != nil {
		return store.NewPerson{}, err
	}
	return p, nil
}

func stringArg(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return "", fmt.Errorf("%w: %s", errMissingArgument, key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%s must be a string, got %T", key, v)
	}
	return s, nil
}

// parseReadDataArgs accepts filters as a list of {field, op, value}
// objects, or a single such object.
func parseReadDataArgs(args map[string]any) (store.Query, error) {
	var q store.Query
	if raw, ok := args["query"]; ok && raw != nil && raw != "" {
		return q, fmt.Errorf("%w: free-form query strings are not supported, use filters", store.ErrInvalidFilter)
	}

	if raw, ok := args["limit"]; ok && raw != nil {
		limit, err := store.ToInt(raw)
		if err != nil {
			return q, fmt.Errorf("%w: limit: %v", store.ErrInvalidFilter, err)
		}
		q.Limit = limit
	}

	var items []any
	switch v := args["filters"].(type) {
	case nil:
	case []any:
		items = v
	case map[string]any:
		items = []any{v}
	default:
		return q, fmt.Errorf("%w: filters must be a list of {field, op, value} objects", store.ErrInvalidFilter)
	}

	for i, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return q, fmt.Errorf("%w: filter %d is not an object", store.ErrInvalidFilter, i)
		}
		field, _ := m["field"].(string)
		op, _ := m["op"].(string)
		q.Filters = append(q.Filters, store.Filter{
			Field: store.Column(strings.ToLower(strings.TrimSpace(field))),
			Op:    store.Operator(strings.ToLower(strings.TrimSpace(op))),
			Value: m["value"],
		})
	}
	return q, nil
}
