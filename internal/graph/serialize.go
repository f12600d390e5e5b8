package graph

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// SchemaVersion identifies the graph construction and serialization
// schema. It participates in storage keys, so bumping it makes graphs
// built by older resolution logic invisible instead of silently stale.
// Increment on any change to node/edge semantics or the wire format.
const SchemaVersion = "1"

// SerializableGraph is the JSON form of a Graph. Nodes are sorted by
// canonical name and edges by (kind, source, target), so equal graphs
// marshal to byte-identical JSON.
type SerializableGraph struct {
	SchemaVersion string             `json:"schema_version"`
	Snapshot      string             `json:"snapshot"`
	Nodes         []SerializableNode `json:"nodes"`
	Edges         []SerializableEdge `json:"edges"`
}

// SerializableNode is the JSON form of a Node. The syntax subtree is
// dropped: stored graphs serve queries, not re-resolution.
type SerializableNode struct {
	Name string   `json:"name"`
	Kind NodeKind `json:"kind"`
}

// SerializableEdge is the JSON form of an Edge.
type SerializableEdge struct {
	Kind   EdgeKind `json:"kind"`
	Source string   `json:"source"`
	Target string   `json:"target"`
}

// ToSerializable converts the graph to its deterministic JSON form.
func (g *Graph) ToSerializable() *SerializableGraph {
	sg := &SerializableGraph{
		SchemaVersion: SchemaVersion,
		Snapshot:      g.Snapshot(),
		Nodes:         make([]SerializableNode, 0, g.NodeCount()),
		Edges:         make([]SerializableEdge, 0, g.EdgeCount()),
	}
	for _, n := range g.Nodes() {
		sg.Nodes = append(sg.Nodes, SerializableNode{Name: n.Name, Kind: n.Kind})
	}
	for _, e := range g.edges {
		sg.Edges = append(sg.Edges, SerializableEdge{Kind: e.Kind, Source: e.Source, Target: e.Target})
	}
	sort.SliceStable(sg.Edges, func(i, j int) bool {
		a, b := sg.Edges[i], sg.Edges[j]
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		return a.Target < b.Target
	})
	return sg
}

// FromSerializable reconstructs a Graph. Node syntax subtrees are nil in
// the result.
func FromSerializable(sg *SerializableGraph) *Graph {
	g := New(sg.Snapshot)
	for _, n := range sg.Nodes {
		g.AddNode(&Node{Name: n.Name, Kind: n.Kind})
	}
	for _, e := range sg.Edges {
		g.AddEdge(Edge{Kind: e.Kind, Source: e.Source, Target: e.Target})
	}
	return g
}

// Marshal encodes the graph as compact deterministic JSON.
func (g *Graph) Marshal() ([]byte, error) {
	data, err := json.Marshal(g.ToSerializable())
	if err != nil {
		return nil, fmt.Errorf("marshaling graph: %w", err)
	}
	return data, nil
}

// MarshalIndent encodes the graph as indented deterministic JSON for
// export.
func (g *Graph) MarshalIndent() ([]byte, error) {
	data, err := json.MarshalIndent(g.ToSerializable(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling graph: %w", err)
	}
	return data, nil
}

// Unmarshal decodes a graph from its JSON form.
func Unmarshal(data []byte) (*Graph, error) {
	var sg SerializableGraph
	if err := json.Unmarshal(data, &sg); err != nil {
		return nil, fmt.Errorf("unmarshaling graph: %w", err)
	}
	return FromSerializable(&sg), nil
}

// Fingerprint returns the SHA-256 hex digest of the graph's compact
// deterministic JSON. Structurally equal graphs for the same snapshot
// have equal fingerprints.
func (g *Graph) Fingerprint() (string, error) {
	data, err := g.Marshal()
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// StructuralFingerprint is Fingerprint with the snapshot identifier
// blanked, so the same structure observed at different commits compares
// equal.
func (g *Graph) StructuralFingerprint() (string, error) {
	sg := g.ToSerializable()
	sg.Snapshot = ""
	data, err := json.Marshal(sg)
	if err != nil {
		return "", fmt.Errorf("marshaling graph: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
