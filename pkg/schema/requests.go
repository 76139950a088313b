package schema

// PinRef is a flexible reference to a single pin. Exactly one of the three
// accepted shapes must be populated: an opaque persistent pin id, a composite
// "<node-id>:<pin-name>" string, or a (node identifier, pin name) pair.
type PinRef struct {
	PinID     string `json:"pin_id,omitempty"`
	Composite string `json:"ref,omitempty"`
	Node      string `json:"node_id,omitempty"`
	Pin       string `json:"pin_name,omitempty"`
}

// Empty reports whether the reference carries no usable identifier.
func (r PinRef) Empty() bool {
	return r.PinID == "" && r.Composite == "" && r.Node == "" && r.Pin == ""
}

// String returns the most specific identifier present, for diagnostics.
func (r PinRef) String() string {
	switch {
	case r.PinID != "":
		return r.PinID
	case r.Composite != "":
		return r.Composite
	case r.Pin != "":
		return r.Node + ":" + r.Pin
	default:
		return r.Node
	}
}

// ConnectionRequest is one source→target pair in a connect batch. The three
// override flags, when nil, fall back to the batch defaults.
type ConnectionRequest struct {
	Source              PinRef `json:"source"`
	Target              PinRef `json:"target"`
	AllowConversionNode *bool  `json:"allow_conversion_node,omitempty"`
	AllowPromotion      *bool  `json:"allow_promotion,omitempty"`
	BreakExisting       *bool  `json:"break_existing_links,omitempty"`
}

// BatchDefaults are the batch-wide fallbacks for per-request override flags.
type BatchDefaults struct {
	AllowConversionNode bool `json:"allow_conversion_node,omitempty"`
	AllowPromotion      bool `json:"allow_promotion,omitempty"`
	BreakExisting       bool `json:"break_existing_links,omitempty"`
}

// Link reports one created or broken connection, directional source→target.
type Link struct {
	SourceNode string `json:"source_node"`
	SourcePin  string `json:"source_pin"`
	TargetNode string `json:"target_node"`
	TargetPin  string `json:"target_pin"`
}

// Key returns the from→to deduplication key for diff reporting.
func (l Link) Key() string {
	return l.SourceNode + ":" + l.SourcePin + "->" + l.TargetNode + ":" + l.TargetPin
}

// ConnectionResult is the per-item outcome of a connect request.
type ConnectionResult struct {
	Index            int    `json:"index"`
	Success          bool   `json:"success"`
	Code             string `json:"code,omitempty"`
	Message          string `json:"message,omitempty"`
	AlreadyConnected bool   `json:"already_connected,omitempty"`
	CreatedLinks     []Link `json:"created_links,omitempty"`
	BrokenLinks      []Link `json:"broken_links,omitempty"`
}

// ConnectBatchResult aggregates a whole connect batch. Success is true iff
// zero items failed; earlier successes stay committed regardless.
type ConnectBatchResult struct {
	Success        bool               `json:"success"`
	Attempted      int                `json:"attempted"`
	Succeeded      int                `json:"succeeded"`
	Failed         int                `json:"failed"`
	Results        []ConnectionResult `json:"results"`
	ModifiedGraphs []string           `json:"modified_graphs,omitempty"`
}

// DisconnectOperation is one item in a disconnect batch: break every link on
// the referenced pin, or only the link to Target when given.
type DisconnectOperation struct {
	Pin      PinRef  `json:"pin"`
	Target   *PinRef `json:"target,omitempty"`
	BreakAll bool    `json:"break_all,omitempty"`
}

// DisconnectResult is the per-item outcome of a disconnect operation.
type DisconnectResult struct {
	Index       int    `json:"index"`
	Success     bool   `json:"success"`
	Code        string `json:"code,omitempty"`
	Message     string `json:"message,omitempty"`
	BrokenLinks []Link `json:"broken_links,omitempty"`
}

// DisconnectBatchResult aggregates a whole disconnect batch.
type DisconnectBatchResult struct {
	Success        bool               `json:"success"`
	Results        []DisconnectResult `json:"results"`
	ModifiedGraphs []string           `json:"modified_graphs,omitempty"`
}

// Per-pin statuses for topology operations.
const (
	StatusApplied = "applied"
	StatusNoop    = "noop"
	StatusFailed  = "failed"
	StatusIgnored = "ignored"
)

// PinStatus is one per-pin outcome of a split/recombine/reset operation.
type PinStatus struct {
	Pin     string `json:"pin"`
	Status  string `json:"status"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// TopologyResult aggregates the per-pin outcomes of a topology batch.
type TopologyResult struct {
	Success  bool        `json:"success"`
	Statuses []PinStatus `json:"statuses"`
	Compiled bool        `json:"compiled,omitempty"`
}

// Parameter direction vocabulary for function signatures.
const (
	ParamInput  = "input"
	ParamOut    = "out"
	ParamReturn = "return"
)

// ParamDescriptor describes one function parameter.
type ParamDescriptor struct {
	Name      string `json:"name"`
	Direction string `json:"direction"`
	Type      string `json:"type"`
	Default   string `json:"default,omitempty"`
	Const     bool   `json:"const,omitempty"`
	Reference bool   `json:"reference,omitempty"`
}

// LocalDescriptor describes one function-scoped local variable.
type LocalDescriptor struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	Default   string `json:"default,omitempty"`
	Const     bool   `json:"const,omitempty"`
	Reference bool   `json:"reference,omitempty"`
	Editable  bool   `json:"editable,omitempty"`
}

// FunctionInfo summarizes one function-like subgraph.
type FunctionInfo struct {
	ID     string            `json:"id"`
	Name   string            `json:"name"`
	Params []ParamDescriptor `json:"params,omitempty"`
	Locals []LocalDescriptor `json:"locals,omitempty"`
}
