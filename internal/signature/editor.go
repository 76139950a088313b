// Package signature edits the parameter and local-variable signatures of
// function-like subgraphs. Input parameters live on the Entry node as output
// pins; out and return parameters live on Result nodes as input pins.
package signature

import (
	"context"
	"log/slog"
	"strings"

	"github.com/kevinpbuckley/blueprintd/internal/graph"
	"github.com/kevinpbuckley/blueprintd/internal/logging"
	"github.com/kevinpbuckley/blueprintd/internal/pintype"
	"github.com/kevinpbuckley/blueprintd/pkg/schema"
	"github.com/google/uuid"
)

// Editor performs signature operations against one document.
type Editor struct {
	doc      *graph.Document
	compiler *pintype.Compiler
	logger   *slog.Logger
}

// New creates an editor for doc. Type strings in parameter and local
// operations are compiled with compiler.
func New(doc *graph.Document, compiler *pintype.Compiler, logger *slog.Logger) *Editor {
	return &Editor{doc: doc, compiler: compiler, logger: logger}
}

// List summarizes every function graph in the document.
func (e *Editor) List(ctx context.Context) []schema.FunctionInfo {
	var out []schema.FunctionInfo
	for _, g := range e.doc.Graphs() {
		if g.Kind != graph.GraphFunction {
			continue
		}
		out = append(out, e.describe(g))
	}
	return out
}

// Get returns the full signature of one function.
func (e *Editor) Get(ctx context.Context, name string) (schema.FunctionInfo, error) {
	g, err := e.function(name)
	if err != nil {
		return schema.FunctionInfo{}, err
	}
	return e.describe(g), nil
}

// Create adds a new function graph with an empty Entry node.
func (e *Editor) Create(ctx context.Context, name string) (schema.FunctionInfo, error) {
	if name == "" {
		return schema.FunctionInfo{}, schema.NewError(schema.ErrCodeParamMissing, "function name is required")
	}
	if e.doc.GraphByName(name) != nil {
		return schema.FunctionInfo{}, schema.NewErrorf(schema.ErrCodeParamExists, "a graph named %q already exists", name).WithIdentifier(name)
	}

	tx := e.doc.Begin("Create Function")
	defer tx.Cancel()

	g := e.doc.AddGraph(graph.NewGraph(name, graph.GraphFunction))
	g.AddNode(graph.NewNode(name, graph.NodeEntry))
	tx.Touch(g)
	tx.Commit()

	logging.LogWith(ctx, e.logger).Info("function created", slog.String("function", name))
	return e.describe(g), nil
}

// Delete removes a function graph and everything in it.
func (e *Editor) Delete(ctx context.Context, name string) error {
	g, err := e.function(name)
	if err != nil {
		return err
	}

	tx := e.doc.Begin("Delete Function")
	defer tx.Cancel()

	e.doc.RemoveGraph(g.ID)
	tx.Touch(g)
	tx.Commit()

	logging.LogWith(ctx, e.logger).Info("function deleted", slog.String("function", name))
	return nil
}

// ListParams returns the function's parameters: Entry outputs first, then
// Result inputs.
func (e *Editor) ListParams(ctx context.Context, name string) ([]schema.ParamDescriptor, error) {
	g, err := e.function(name)
	if err != nil {
		return nil, err
	}
	return e.params(g), nil
}

// AddParam appends a parameter. Duplicate names within the same direction
// class are rejected case-insensitively; a second return parameter is
// rejected outright.
func (e *Editor) AddParam(ctx context.Context, fn, name, direction, typeExpr, defaultValue string) error {
	if name == "" || typeExpr == "" {
		return schema.NewError(schema.ErrCodeParamMissing, "parameter name and type are required")
	}
	desc, err := e.compiler.Parse(typeExpr)
	if err != nil {
		return err
	}
	g, err := e.function(fn)
	if err != nil {
		return err
	}
	entry, err := entryNode(g)
	if err != nil {
		return err
	}

	switch direction {
	case schema.ParamInput:
		if pinNamed(entry.Pins, name) != nil {
			return paramExists(name, direction)
		}
	case schema.ParamOut, schema.ParamReturn:
		for _, result := range g.NodesOfKind(graph.NodeResult) {
			if p := pinNamed(result.Pins, name); p != nil {
				return paramExists(name, direction)
			}
			if direction == schema.ParamReturn && returnPin(result) != nil {
				return schema.NewErrorf(schema.ErrCodeParamExists, "function %q already has a return parameter", fn).WithIdentifier(name)
			}
		}
	default:
		return schema.NewErrorf(schema.ErrCodeValidation, "unknown parameter direction %q", direction)
	}

	tx := e.doc.Begin("Add Parameter")
	defer tx.Cancel()

	if direction == schema.ParamInput {
		p := entry.AddPin(graph.NewPin(name, graph.Output, desc))
		p.Default = defaultValue
	} else {
		result := g.FirstNodeOfKind(graph.NodeResult)
		if result == nil {
			result = g.AddNode(graph.NewNode("Return Node", graph.NodeResult))
		}
		p := result.AddPin(graph.NewPin(name, graph.Input, desc))
		p.Default = defaultValue
		p.ReturnParam = direction == schema.ParamReturn
	}
	tx.Touch(g)
	tx.Commit()
	e.doc.Compile()
	return nil
}

// RemoveParam deletes a parameter, including every Result-node copy of an
// out or return parameter.
func (e *Editor) RemoveParam(ctx context.Context, fn, name, direction string) error {
	g, err := e.function(fn)
	if err != nil {
		return err
	}
	pins, err := e.matchParam(g, name, direction)
	if err != nil {
		return err
	}

	tx := e.doc.Begin("Remove Parameter")
	defer tx.Cancel()

	for _, p := range pins {
		graph.BreakAll(p)
		p.Node().RemovePin(p)
	}
	tx.Touch(g)
	tx.Commit()
	e.doc.Compile()
	return nil
}

// UpdateParam retypes and/or renames a parameter in place. Return
// parameters are never renamed.
func (e *Editor) UpdateParam(ctx context.Context, fn, name, direction, newType, newName string) error {
	if newType == "" && newName == "" {
		return schema.NewError(schema.ErrCodeParamMissing, "nothing to update: provide new_type or new_name")
	}
	var desc *pintype.Descriptor
	if newType != "" {
		var err error
		desc, err = e.compiler.Parse(newType)
		if err != nil {
			return err
		}
	}
	g, err := e.function(fn)
	if err != nil {
		return err
	}
	pins, err := e.matchParam(g, name, direction)
	if err != nil {
		return err
	}
	if newName != "" {
		if direction == schema.ParamReturn {
			return schema.NewError(schema.ErrCodeValidation, "return parameters cannot be renamed").WithIdentifier(name)
		}
		for _, existing := range e.params(g) {
			if existing.Direction == direction && strings.EqualFold(existing.Name, newName) && !strings.EqualFold(existing.Name, name) {
				return paramExists(newName, direction)
			}
		}
	}

	tx := e.doc.Begin("Update Parameter")
	defer tx.Cancel()

	for _, p := range pins {
		if desc != nil {
			p.Type = desc
		}
		if newName != "" {
			p.Name = newName
		}
	}
	tx.Touch(g)
	tx.Commit()
	e.doc.Compile()
	return nil
}

// ListLocals returns the function's local variables.
func (e *Editor) ListLocals(ctx context.Context, name string) ([]schema.LocalDescriptor, error) {
	g, err := e.function(name)
	if err != nil {
		return nil, err
	}
	entry, err := entryNode(g)
	if err != nil {
		return nil, err
	}
	return localDescriptors(entry), nil
}

// AddLocal appends a local variable to the function's table.
func (e *Editor) AddLocal(ctx context.Context, fn string, local schema.LocalDescriptor) error {
	if local.Name == "" || local.Type == "" {
		return schema.NewError(schema.ErrCodeParamMissing, "local name and type are required")
	}
	desc, err := e.compiler.Parse(local.Type)
	if err != nil {
		return err
	}
	g, err := e.function(fn)
	if err != nil {
		return err
	}
	entry, err := entryNode(g)
	if err != nil {
		return err
	}
	if localNamed(entry, local.Name) != nil {
		return schema.NewErrorf(schema.ErrCodeParamExists, "local %q already exists", local.Name).WithIdentifier(local.Name)
	}

	tx := e.doc.Begin("Add Local Variable")
	defer tx.Cancel()

	entry.Locals = append(entry.Locals, &graph.LocalVariable{
		ID:        uuid.New(),
		Name:      local.Name,
		Type:      desc,
		Default:   local.Default,
		Const:     local.Const,
		Reference: local.Reference,
		Editable:  local.Editable,
	})
	tx.Touch(g)
	tx.Commit()
	e.doc.Compile()
	return nil
}

// RemoveLocal deletes a local variable from the function's table.
func (e *Editor) RemoveLocal(ctx context.Context, fn, name string) error {
	g, err := e.function(fn)
	if err != nil {
		return err
	}
	entry, err := entryNode(g)
	if err != nil {
		return err
	}

	for i, lv := range entry.Locals {
		if !strings.EqualFold(lv.Name, name) {
			continue
		}
		tx := e.doc.Begin("Remove Local Variable")
		entry.Locals = append(entry.Locals[:i], entry.Locals[i+1:]...)
		tx.Touch(g)
		tx.Commit()
		e.doc.Compile()
		return nil
	}
	return schema.NewErrorf(schema.ErrCodeNotFound, "local %q not found in function %q", name, fn).WithIdentifier(name)
}

// LocalUpdate carries the optional mutations of an update_local operation.
// Nil pointers leave the corresponding field untouched.
type LocalUpdate struct {
	NewName   string
	NewType   string
	Default   *string
	Const     *bool
	Reference *bool
	Editable  *bool
}

// UpdateLocal mutates a local variable. Rename and retype go through the
// compiled scope when one exists, so references elsewhere stay consistent;
// without a compiled scope they mutate the table directly.
func (e *Editor) UpdateLocal(ctx context.Context, fn, name string, update LocalUpdate) error {
	var desc *pintype.Descriptor
	if update.NewType != "" {
		var err error
		desc, err = e.compiler.Parse(update.NewType)
		if err != nil {
			return err
		}
	}
	g, err := e.function(fn)
	if err != nil {
		return err
	}
	entry, err := entryNode(g)
	if err != nil {
		return err
	}
	lv := localNamed(entry, name)
	if lv == nil {
		return schema.NewErrorf(schema.ErrCodeNotFound, "local %q not found in function %q", name, fn).WithIdentifier(name)
	}
	if update.NewName != "" && !strings.EqualFold(update.NewName, name) && localNamed(entry, update.NewName) != nil {
		return schema.NewErrorf(schema.ErrCodeParamExists, "local %q already exists", update.NewName).WithIdentifier(update.NewName)
	}

	tx := e.doc.Begin("Update Local Variable")
	defer tx.Cancel()

	scope, compiled := e.doc.CompiledScope(g)
	if update.NewName != "" {
		if compiled {
			if err := scope.RenameLocal(lv.ID, update.NewName); err != nil {
				return schema.NewError(schema.ErrCodeValidation, "scope rename failed").WithCause(err).WithIdentifier(name)
			}
		}
		lv.Name = update.NewName
	}
	if desc != nil {
		if compiled {
			if err := scope.ChangeLocalType(lv.ID, desc); err != nil {
				return schema.NewError(schema.ErrCodeValidation, "scope type change failed").WithCause(err).WithIdentifier(name)
			}
		}
		lv.Type = desc
	}
	if update.Default != nil {
		lv.Default = *update.Default
	}
	if update.Const != nil {
		lv.Const = *update.Const
	}
	if update.Reference != nil {
		lv.Reference = *update.Reference
	}
	if update.Editable != nil {
		lv.Editable = *update.Editable
	}
	tx.Touch(g)
	tx.Commit()
	e.doc.Compile()
	return nil
}

func (e *Editor) function(name string) (*graph.Graph, error) {
	if name == "" {
		return nil, schema.NewError(schema.ErrCodeParamMissing, "function name is required")
	}
	g := e.doc.GraphByName(name)
	if g == nil || g.Kind != graph.GraphFunction {
		return nil, schema.NewErrorf(schema.ErrCodeFunctionNotFound, "function %q not found", name).WithIdentifier(name)
	}
	return g, nil
}

func (e *Editor) describe(g *graph.Graph) schema.FunctionInfo {
	info := schema.FunctionInfo{ID: g.ID, Name: g.Name, Params: e.params(g)}
	if entry := g.FirstNodeOfKind(graph.NodeEntry); entry != nil {
		info.Locals = localDescriptors(entry)
	}
	return info
}

func (e *Editor) params(g *graph.Graph) []schema.ParamDescriptor {
	var out []schema.ParamDescriptor
	if entry := g.FirstNodeOfKind(graph.NodeEntry); entry != nil {
		for _, p := range entry.Pins {
			if p.Direction != graph.Output {
				continue
			}
			out = append(out, schema.ParamDescriptor{
				Name: p.Name, Direction: schema.ParamInput, Type: p.Type.String(), Default: p.Default,
			})
		}
	}
	for _, result := range g.NodesOfKind(graph.NodeResult) {
		for _, p := range result.Pins {
			if p.Direction != graph.Input {
				continue
			}
			dir := schema.ParamOut
			if p.ReturnParam {
				dir = schema.ParamReturn
			}
			out = append(out, schema.ParamDescriptor{
				Name: p.Name, Direction: dir, Type: p.Type.String(), Default: p.Default,
			})
		}
	}
	return out
}

// matchParam locates a parameter's pins. Out and return parameters may be
// mirrored on several Result nodes; every copy is returned.
func (e *Editor) matchParam(g *graph.Graph, name, direction string) ([]*graph.Pin, error) {
	var pins []*graph.Pin
	switch direction {
	case schema.ParamInput:
		entry, err := entryNode(g)
		if err != nil {
			return nil, err
		}
		if p := pinNamed(entry.Pins, name); p != nil {
			pins = append(pins, p)
		}
	case schema.ParamOut, schema.ParamReturn:
		wantReturn := direction == schema.ParamReturn
		for _, result := range g.NodesOfKind(graph.NodeResult) {
			if p := pinNamed(result.Pins, name); p != nil && p.ReturnParam == wantReturn {
				pins = append(pins, p)
			}
		}
	default:
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "unknown parameter direction %q", direction)
	}
	if len(pins) == 0 {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "parameter %q (%s) not found in function %q", name, direction, g.Name).WithIdentifier(name)
	}
	return pins, nil
}

func entryNode(g *graph.Graph) (*graph.Node, error) {
	entry := g.FirstNodeOfKind(graph.NodeEntry)
	if entry == nil {
		return nil, schema.NewErrorf(schema.ErrCodeFunctionNotFound, "function %q has no entry node", g.Name).WithIdentifier(g.Name)
	}
	return entry, nil
}

func paramExists(name, direction string) *schema.GraphError {
	return schema.NewErrorf(schema.ErrCodeParamExists,
		"parameter %q (%s) already exists", name, direction).WithIdentifier(name)
}

func pinNamed(pins []*graph.Pin, name string) *graph.Pin {
	for _, p := range pins {
		if strings.EqualFold(p.Name, name) {
			return p
		}
	}
	return nil
}

func returnPin(n *graph.Node) *graph.Pin {
	for _, p := range n.Pins {
		if p.ReturnParam {
			return p
		}
	}
	return nil
}

func localNamed(entry *graph.Node, name string) *graph.LocalVariable {
	for _, lv := range entry.Locals {
		if strings.EqualFold(lv.Name, name) {
			return lv
		}
	}
	return nil
}

func localDescriptors(entry *graph.Node) []schema.LocalDescriptor {
	var out []schema.LocalDescriptor
	for _, lv := range entry.Locals {
		out = append(out, schema.LocalDescriptor{
			ID:        lv.ID.String(),
			Name:      lv.Name,
			Type:      lv.Type.String(),
			Default:   lv.Default,
			Const:     lv.Const,
			Reference: lv.Reference,
			Editable:  lv.Editable,
		})
	}
	return out
}
