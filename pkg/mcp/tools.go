package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kevinpbuckley/blueprintd/internal/connect"
	"github.com/kevinpbuckley/blueprintd/internal/graph"
	"github.com/kevinpbuckley/blueprintd/internal/logging"
	"github.com/kevinpbuckley/blueprintd/internal/signature"
	"github.com/kevinpbuckley/blueprintd/internal/topology"
	"github.com/kevinpbuckley/blueprintd/pkg/schema"
)

// document resolves the document_id argument and loads the document.
func (s *BlueprintServer) document(ctx context.Context, args map[string]any) (*graph.Document, context.Context, error) {
	id := aliasString(args, "document_id")
	if id == "" {
		return nil, ctx, schema.NewError(schema.ErrCodeParamMissing, "document_id is required")
	}
	doc, err := s.workspace.Get(ctx, id)
	if err != nil {
		return nil, ctx, err
	}
	return doc, logging.WithDocumentID(ctx, id), nil
}

// handleConnect runs a connect batch against one document.
func (s *BlueprintServer) handleConnect(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	doc, ctx, err := s.document(ctx, args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	payload := canonicalConnectPayload(args)
	if err := s.validator.ValidateConnectBatch(payload); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var reqs []schema.ConnectionRequest
	if err := reencode(payload["connections"], &reqs); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid connections: %v", err)), nil
	}
	var defaults schema.BatchDefaults
	if d, ok := payload["defaults"]; ok {
		if err := reencode(d, &defaults); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid defaults: %v", err)), nil
		}
	}

	ctx = logging.WithOperation(ctx, "connect_pins")
	result := connect.New(doc, s.logger).ConnectBatch(ctx, reqs, defaults)
	return marshalResult(result)
}

// handleDisconnect runs a disconnect batch against one document.
func (s *BlueprintServer) handleDisconnect(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	doc, ctx, err := s.document(ctx, args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	payload := canonicalDisconnectPayload(args)
	if err := s.validator.ValidateDisconnectBatch(payload); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var ops []schema.DisconnectOperation
	if err := reencode(payload["operations"], &ops); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid operations: %v", err)), nil
	}

	ctx = logging.WithOperation(ctx, "disconnect_pins")
	result := connect.New(doc, s.logger).DisconnectBatch(ctx, ops)
	return marshalResult(result)
}

// handleSplit splits composite pins into sub-pins.
func (s *BlueprintServer) handleSplit(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.topologyOp(ctx, req, "split_pin",
		func(ctx context.Context, e *topology.Editor, node string, pins []string, args map[string]any) schema.TopologyResult {
			return e.Split(ctx, node, pins)
		})
}

// handleRecombine merges sub-pins back into their parents.
func (s *BlueprintServer) handleRecombine(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.topologyOp(ctx, req, "recombine_pin",
		func(ctx context.Context, e *topology.Editor, node string, pins []string, args map[string]any) schema.TopologyResult {
			return e.Recombine(ctx, node, pins)
		})
}

// handleResetDefaults resets pin defaults to their autogenerated values.
func (s *BlueprintServer) handleResetDefaults(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.topologyOp(ctx, req, "reset_pin_defaults",
		func(ctx context.Context, e *topology.Editor, node string, pins []string, args map[string]any) schema.TopologyResult {
			resetAll, _ := aliasBool(args, "reset_all")
			compile, _ := aliasBool(args, "compile")
			return e.ResetDefaults(ctx, node, pins, resetAll, compile)
		})
}

type topologyFunc func(ctx context.Context, e *topology.Editor, node string, pins []string, args map[string]any) schema.TopologyResult

func (s *BlueprintServer) topologyOp(ctx context.Context, req mcp.CallToolRequest, operation string, fn topologyFunc) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	doc, ctx, err := s.document(ctx, args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	node := aliasString(args, "node")
	if node == "" {
		return mcp.NewToolResultError("node is required"), nil
	}
	pins := aliasStrings(args, "pin_names")
	resetAll, _ := aliasBool(args, "reset_all")
	if len(pins) == 0 && !resetAll {
		return mcp.NewToolResultError("pin_names is required"), nil
	}

	ctx = logging.WithOperation(ctx, operation)
	result := fn(ctx, topology.New(doc, s.logger), node, pins, args)
	return marshalResult(result)
}

// handleManageFunction dispatches function and signature actions.
func (s *BlueprintServer) handleManageFunction(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	action, err := req.RequireString("action")
	if err != nil {
		return mcp.NewToolResultError("action is required"), nil
	}

	args := req.GetArguments()
	doc, ctx, derr := s.document(ctx, args)
	if derr != nil {
		return mcp.NewToolResultError(derr.Error()), nil
	}

	editor := signature.New(doc, s.compiler, s.logger)
	ctx = logging.WithOperation(ctx, "manage_function")

	fn := aliasString(args, "function_name")
	name := aliasString(args, "param_name")
	direction := aliasString(args, "direction")

	switch action {
	case "list":
		return marshalResult(map[string]any{"functions": editor.List(ctx)})
	case "get":
		info, err := editor.Get(ctx, fn)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return marshalResult(info)
	case "create":
		info, err := editor.Create(ctx, fn)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return marshalResult(info)
	case "delete":
		if err := editor.Delete(ctx, fn); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return marshalResult(map[string]any{"deleted": fn})

	case "list_params":
		params, err := editor.ListParams(ctx, fn)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return marshalResult(map[string]any{"params": params})
	case "add_param":
		err := editor.AddParam(ctx, fn, name, direction, aliasString(args, "type"), aliasString(args, "default"))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return marshalResult(map[string]any{"added": name})
	case "remove_param":
		if err := editor.RemoveParam(ctx, fn, name, direction); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return marshalResult(map[string]any{"removed": name})
	case "update_param":
		err := editor.UpdateParam(ctx, fn, name, direction, aliasString(args, "new_type"), aliasString(args, "new_name"))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return marshalResult(map[string]any{"updated": name})

	case "list_locals":
		locals, err := editor.ListLocals(ctx, fn)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return marshalResult(map[string]any{"locals": locals})
	case "add_local":
		local := schema.LocalDescriptor{
			Name:    name,
			Type:    aliasString(args, "type"),
			Default: aliasString(args, "default"),
		}
		local.Const, _ = aliasBool(args, "const")
		local.Reference, _ = aliasBool(args, "reference")
		local.Editable, _ = aliasBool(args, "editable")
		if err := editor.AddLocal(ctx, fn, local); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return marshalResult(map[string]any{"added": name})
	case "remove_local":
		if err := editor.RemoveLocal(ctx, fn, name); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return marshalResult(map[string]any{"removed": name})
	case "update_local":
		update := signature.LocalUpdate{
			NewName: aliasString(args, "new_name"),
			NewType: aliasString(args, "new_type"),
		}
		if v, ok := lookupAlias(args, "default"); ok {
			if str, ok := v.(string); ok {
				update.Default = &str
			}
		}
		if b, ok := aliasBool(args, "const"); ok {
			update.Const = &b
		}
		if b, ok := aliasBool(args, "reference"); ok {
			update.Reference = &b
		}
		if b, ok := aliasBool(args, "editable"); ok {
			update.Editable = &b
		}
		if err := editor.UpdateLocal(ctx, fn, name, update); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return marshalResult(map[string]any{"updated": name})
	}

	return mcp.NewToolResultError(fmt.Sprintf("unknown action %q", action)), nil
}

// handleQueryGraph evaluates a jq expression over a document.
func (s *BlueprintServer) handleQueryGraph(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	doc, ctx, err := s.document(ctx, args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	expression := aliasString(args, "expression")
	if expression == "" {
		return mcp.NewToolResultError("expression is required"), nil
	}

	result, err := s.query.Run(ctx, doc, expression)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return marshalResult(map[string]any{"result": result})
}

// --- Payload canonicalization ---

// canonicalConnectPayload rewrites a connect request onto the canonical
// field names the validator knows.
func canonicalConnectPayload(args map[string]any) map[string]any {
	payload := map[string]any{}
	if conns := aliasList(args, "connections"); conns != nil {
		items := make([]any, 0, len(conns))
		for _, c := range conns {
			item := map[string]any{}
			if v, ok := lookupAlias(c, "source"); ok {
				if ref := canonicalPinRef(v); ref != nil {
					item["source"] = ref
				}
			}
			if v, ok := lookupAlias(c, "target"); ok {
				if ref := canonicalPinRef(v); ref != nil {
					item["target"] = ref
				}
			}
			for _, flag := range []string{"allow_conversion_node", "allow_promotion", "break_existing_links"} {
				if b, ok := aliasBool(c, flag); ok {
					item[flag] = b
				}
			}
			items = append(items, item)
		}
		payload["connections"] = items
	}
	if d := aliasMap(args, "defaults"); d != nil {
		defaults := map[string]any{}
		for _, flag := range []string{"allow_conversion_node", "allow_promotion", "break_existing_links"} {
			if b, ok := aliasBool(d, flag); ok {
				defaults[flag] = b
			}
		}
		payload["defaults"] = defaults
	}
	return payload
}

// canonicalDisconnectPayload rewrites a disconnect request onto the
// canonical field names the validator knows.
func canonicalDisconnectPayload(args map[string]any) map[string]any {
	payload := map[string]any{}
	if ops := aliasList(args, "operations"); ops != nil {
		items := make([]any, 0, len(ops))
		for _, o := range ops {
			item := map[string]any{}
			if v, ok := lookupAlias(o, "pin"); ok {
				if ref := canonicalPinRef(v); ref != nil {
					item["pin"] = ref
				}
			}
			if v, ok := lookupAlias(o, "target"); ok {
				if ref := canonicalPinRef(v); ref != nil {
					item["target"] = ref
				}
			}
			if b, ok := aliasBool(o, "break_all"); ok {
				item["break_all"] = b
			}
			items = append(items, item)
		}
		payload["operations"] = items
	}
	return payload
}

// reencode round-trips a canonical payload fragment into its typed form.
func reencode(v any, out any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultJSON(json.RawMessage(data))
}
