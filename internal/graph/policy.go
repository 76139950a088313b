package graph

import (
	"github.com/kevinpbuckley/blueprintd/internal/pintype"
)

// ConnectResponse is the compatibility policy's verdict for one candidate
// connection.
type ConnectResponse int

const (
	Disallow ConnectResponse = iota
	Allow
	AllowWithConversionNode
	AllowWithPromotion
	RequiresBreakSource
	RequiresBreakTarget
	RequiresBreakBoth
	AlreadyLinked
)

func (r ConnectResponse) String() string {
	switch r {
	case Disallow:
		return "disallow"
	case Allow:
		return "allow"
	case AllowWithConversionNode:
		return "allow_with_conversion"
	case AllowWithPromotion:
		return "allow_with_promotion"
	case RequiresBreakSource:
		return "requires_break_source"
	case RequiresBreakTarget:
		return "requires_break_target"
	case RequiresBreakBoth:
		return "requires_break_both"
	case AlreadyLinked:
		return "already_linked"
	}
	return "unknown"
}

// SubPinSpec describes one component of a decomposable pin type.
type SubPinSpec struct {
	Suffix string
	Type   *pintype.Descriptor
}

// Schema is the per-graph compatibility and defaults policy.
type Schema interface {
	// CanConnect evaluates the candidate link out→in.
	CanConnect(out, in *Pin) ConnectResponse
	// IsDefaultManaged reports whether the schema manages the pin's
	// default value; unmanaged pins are ignored by reset operations.
	IsDefaultManaged(p *Pin) bool
	// AutogeneratedDefault returns the default value for the pin's type.
	AutogeneratedDefault(p *Pin) string
	// SubPinSpecs returns the decomposition of a type, if it has one.
	SubPinSpecs(d *pintype.Descriptor) ([]SubPinSpec, bool)
}

var defaultSchema Schema = DefaultSchema{}

// DefaultSchema is the built-in compatibility policy: exact type matches
// connect freely, widening numeric pairs need promotion approval, lossy or
// cross-kind pairs need a conversion node, and occupied single-link
// endpoints require breaking.
type DefaultSchema struct{}

func (DefaultSchema) CanConnect(out, in *Pin) ConnectResponse {
	if out == nil || in == nil || out.Type == nil || in.Type == nil {
		return Disallow
	}
	if out.LinkedTo(in) {
		return AlreadyLinked
	}

	compat := typeCompatibility(out.Type, in.Type)
	if compat == Disallow {
		return Disallow
	}
	// Type-level verdicts surface before link occupancy so an unapproved
	// conversion is reported as such even when breaking would also apply.
	if compat != Allow {
		return compat
	}

	srcOccupied := out.HasLinks()
	tgtOccupied := in.HasLinks()
	switch {
	case srcOccupied && tgtOccupied:
		return RequiresBreakBoth
	case srcOccupied:
		return RequiresBreakSource
	case tgtOccupied:
		return RequiresBreakTarget
	}
	return Allow
}

// promotions maps a source kind to the wider kinds it promotes into.
var promotions = map[pintype.Kind][]pintype.Kind{
	pintype.KindByte:  {pintype.KindInt, pintype.KindInt64, pintype.KindFloat, pintype.KindDouble},
	pintype.KindInt:   {pintype.KindInt64, pintype.KindFloat, pintype.KindDouble},
	pintype.KindInt64: {pintype.KindDouble},
	pintype.KindFloat: {pintype.KindDouble},
}

func typeCompatibility(from, to *pintype.Descriptor) ConnectResponse {
	if from.Equal(to) {
		return Allow
	}
	// Containers must match exactly.
	if from.Container != pintype.ContainerNone || to.Container != pintype.ContainerNone {
		return Disallow
	}
	for _, wider := range promotions[from.Kind] {
		if to.Kind == wider {
			return AllowWithPromotion
		}
	}
	if convertible(from.Kind, to.Kind) {
		return AllowWithConversionNode
	}
	return Disallow
}

// convertible covers the pairs a conversion node can bridge.
func convertible(from, to pintype.Kind) bool {
	switch to {
	case pintype.KindString, pintype.KindText:
		switch from {
		case pintype.KindBool, pintype.KindByte, pintype.KindInt, pintype.KindInt64,
			pintype.KindFloat, pintype.KindDouble, pintype.KindName, pintype.KindString,
			pintype.KindText, pintype.KindVector, pintype.KindRotator:
			return true
		}
	case pintype.KindInt:
		return from == pintype.KindFloat || from == pintype.KindDouble || from == pintype.KindBool
	case pintype.KindFloat:
		return from == pintype.KindDouble
	case pintype.KindName:
		return from == pintype.KindString
	case pintype.KindLinearColor:
		return from == pintype.KindColor
	case pintype.KindColor:
		return from == pintype.KindLinearColor
	}
	return false
}

func (DefaultSchema) IsDefaultManaged(p *Pin) bool {
	if p == nil || p.Type == nil || p.Direction != Input {
		return false
	}
	if p.Type.Container != pintype.ContainerNone {
		return false
	}
	switch p.Type.Kind {
	case pintype.KindObject, pintype.KindClass, pintype.KindInterface,
		pintype.KindSoftObject, pintype.KindSoftClass:
		return false
	}
	return true
}

func (DefaultSchema) AutogeneratedDefault(p *Pin) string {
	if p == nil || p.Type == nil || p.Type.Container != pintype.ContainerNone {
		return ""
	}
	switch p.Type.Kind {
	case pintype.KindBool:
		return "false"
	case pintype.KindByte, pintype.KindInt, pintype.KindInt64:
		return "0"
	case pintype.KindFloat, pintype.KindDouble:
		return "0.0"
	case pintype.KindVector, pintype.KindRotator:
		return "0,0,0"
	case pintype.KindVector2D:
		return "0,0"
	case pintype.KindVector4:
		return "0,0,0,0"
	case pintype.KindTransform:
		return "0,0,0|0,0,0|1,1,1"
	case pintype.KindColor:
		return "0,0,0,255"
	case pintype.KindLinearColor:
		return "0,0,0,1"
	}
	return ""
}

var float = pintype.Scalar(pintype.KindFloat)

var subPinTable = map[pintype.Kind][]SubPinSpec{
	pintype.KindVector:   {{"X", float}, {"Y", float}, {"Z", float}},
	pintype.KindVector2D: {{"X", float}, {"Y", float}},
	pintype.KindVector4:  {{"X", float}, {"Y", float}, {"Z", float}, {"W", float}},
	pintype.KindRotator:  {{"Roll", float}, {"Pitch", float}, {"Yaw", float}},
	pintype.KindColor: {
		{"R", pintype.Scalar(pintype.KindByte)}, {"G", pintype.Scalar(pintype.KindByte)},
		{"B", pintype.Scalar(pintype.KindByte)}, {"A", pintype.Scalar(pintype.KindByte)},
	},
	pintype.KindLinearColor: {{"R", float}, {"G", float}, {"B", float}, {"A", float}},
	pintype.KindTransform: {
		{"Location", pintype.Scalar(pintype.KindVector)},
		{"Rotation", pintype.Scalar(pintype.KindRotator)},
		{"Scale", pintype.Scalar(pintype.KindVector)},
	},
}

func (DefaultSchema) SubPinSpecs(d *pintype.Descriptor) ([]SubPinSpec, bool) {
	if d == nil || d.Container != pintype.ContainerNone {
		return nil, false
	}
	specs, ok := subPinTable[d.Kind]
	return specs, ok
}
