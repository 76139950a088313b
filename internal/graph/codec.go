package graph

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/kevinpbuckley/blueprintd/internal/pintype"
)

// JSON codec for documents. Links are stored once per document as pin-id
// pairs (output first), pins nest their sub-pins, and type descriptors are
// stored structurally so decoding needs no type registry.

type documentJSON struct {
	ID     string      `json:"id"`
	Name   string      `json:"name"`
	Graphs []graphJSON `json:"graphs"`
	Links  []linkJSON  `json:"links,omitempty"`
}

type graphJSON struct {
	ID    string     `json:"id"`
	Name  string     `json:"name"`
	Kind  GraphKind  `json:"kind"`
	Nodes []nodeJSON `json:"nodes,omitempty"`
}

type nodeJSON struct {
	ID        string           `json:"id"`
	Title     string           `json:"title,omitempty"`
	ShortName string           `json:"short_name,omitempty"`
	RuntimeID int              `json:"runtime_id,omitempty"`
	Kind      NodeKind         `json:"kind"`
	Pins      []pinJSON        `json:"pins,omitempty"`
	Locals    []*LocalVariable `json:"locals,omitempty"`
}

type pinJSON struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	DisplayName string              `json:"display_name,omitempty"`
	Direction   Direction           `json:"direction"`
	Type        *pintype.Descriptor `json:"type,omitempty"`
	Default     string              `json:"default,omitempty"`
	ReturnParam bool                `json:"return_param,omitempty"`
	SubPins     []pinJSON           `json:"sub_pins,omitempty"`
}

type linkJSON struct {
	From string `json:"from"` // output pin id
	To   string `json:"to"`   // input pin id
}

// EncodeDocument serializes a document to its persistent JSON form.
func EncodeDocument(d *Document) ([]byte, error) {
	out := documentJSON{ID: d.ID, Name: d.Name}
	for _, g := range d.graphs {
		gj := graphJSON{ID: g.ID, Name: g.Name, Kind: g.Kind}
		for _, n := range g.nodes {
			nj := nodeJSON{
				ID:        n.ID.String(),
				Title:     n.Title,
				ShortName: n.ShortName,
				RuntimeID: n.RuntimeID,
				Kind:      n.Kind,
				Locals:    n.Locals,
			}
			for _, p := range n.Pins {
				nj.Pins = append(nj.Pins, encodePin(p))
			}
			gj.Nodes = append(gj.Nodes, nj)

			// Record each link once, from its output side.
			for _, p := range n.AllPins() {
				if p.Direction != Output {
					continue
				}
				for _, in := range p.Links() {
					out.Links = append(out.Links, linkJSON{From: p.ID, To: in.ID})
				}
			}
		}
		out.Graphs = append(out.Graphs, gj)
	}
	return json.MarshalIndent(out, "", "  ")
}

func encodePin(p *Pin) pinJSON {
	pj := pinJSON{
		ID:          p.ID,
		Name:        p.Name,
		DisplayName: p.DisplayName,
		Direction:   p.Direction,
		Type:        p.Type,
		Default:     p.Default,
		ReturnParam: p.ReturnParam,
	}
	for _, sub := range p.SubPins {
		pj.SubPins = append(pj.SubPins, encodePin(sub))
	}
	return pj
}

// DecodeDocument reconstructs a document from its persistent JSON form.
func DecodeDocument(data []byte) (*Document, error) {
	var in documentJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}

	doc := NewDocument(in.ID, in.Name)
	pinIndex := make(map[string]*Pin)

	for _, gj := range in.Graphs {
		g := &Graph{ID: gj.ID, Name: gj.Name, Kind: gj.Kind}
		doc.AddGraph(g)
		for _, nj := range gj.Nodes {
			id, err := uuid.Parse(nj.ID)
			if err != nil {
				return nil, fmt.Errorf("decode node id %q: %w", nj.ID, err)
			}
			n := &Node{
				ID:        id,
				Title:     nj.Title,
				ShortName: nj.ShortName,
				RuntimeID: nj.RuntimeID,
				Kind:      nj.Kind,
				Locals:    nj.Locals,
			}
			g.AddNode(n)
			for _, pj := range nj.Pins {
				p := decodePin(pj, pinIndex)
				n.AddPin(p)
				setNode(p, n)
			}
		}
	}

	for _, lj := range in.Links {
		from, ok := pinIndex[lj.From]
		if !ok {
			return nil, fmt.Errorf("link references unknown pin %q", lj.From)
		}
		to, ok := pinIndex[lj.To]
		if !ok {
			return nil, fmt.Errorf("link references unknown pin %q", lj.To)
		}
		if err := Connect(from, to); err != nil {
			return nil, fmt.Errorf("restore link %s->%s: %w", lj.From, lj.To, err)
		}
	}
	return doc, nil
}

func decodePin(pj pinJSON, index map[string]*Pin) *Pin {
	p := &Pin{
		ID:          pj.ID,
		Name:        pj.Name,
		DisplayName: pj.DisplayName,
		Direction:   pj.Direction,
		Type:        pj.Type,
		Default:     pj.Default,
		ReturnParam: pj.ReturnParam,
	}
	index[p.ID] = p
	for _, sj := range pj.SubPins {
		sub := decodePin(sj, index)
		sub.Parent = p
		p.SubPins = append(p.SubPins, sub)
	}
	return p
}

func setNode(p *Pin, n *Node) {
	p.node = n
	for _, sub := range p.SubPins {
		setNode(sub, n)
	}
}
