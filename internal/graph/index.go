// Package graph provides a read-only, handle-addressed index over a frozen
// procurement dataset. An Index is never mutated after Build returns, so it
// is safe for concurrent readers without locking.
package graph

import (
	"fmt"

	"github.com/opensource-finance/tenderwatch/internal/domain"
)

// Handle addresses a node in an Index. Handles are dense: companies first,
// then directors, tenders and departments, each in dataset order.
type Handle int32

// Invalid is returned by lookups that find nothing.
const Invalid Handle = -1

// Direction selects which edges Neighbors follows.
type Direction int

const (
	Out Direction = iota
	In
	Both
)

// Node is one entity of the index.
type Node struct {
	ID      string
	Kind    domain.EntityKind
	Ordinal int // position within its kind's slice in the dataset
}

// Edge is a typed, directed edge between two handles.
type Edge struct {
	Source Handle
	Target Handle
	Type   domain.RelationshipType
}

// Index is the arena of nodes and edges of one dataset.
type Index struct {
	ds    *domain.Dataset
	nodes []Node
	edges []Edge
	byID  map[string]Handle
	out   [][]int32 // node -> edge indices
	in    [][]int32

	first map[domain.EntityKind]Handle
	count map[domain.EntityKind]int
}

// Build indexes ds. The dataset must not be modified afterwards.
func Build(ds *domain.Dataset) (*Index, error) {
	if ds == nil {
		return nil, fmt.Errorf("%w: nil dataset", domain.ErrInvalidDataset)
	}
	n := len(ds.Companies) + len(ds.Directors) + len(ds.Tenders) + len(ds.Departments)
	ix := &Index{
		ds:    ds,
		nodes: make([]Node, 0, n),
		edges: make([]Edge, 0, len(ds.Relationships)),
		byID:  make(map[string]Handle, n),
		out:   make([][]int32, n),
		in:    make([][]int32, n),
		first: make(map[domain.EntityKind]Handle, 4),
		count: make(map[domain.EntityKind]int, 4),
	}

	add := func(kind domain.EntityKind, ids []string) error {
		ix.first[kind] = Handle(len(ix.nodes))
		ix.count[kind] = len(ids)
		for i, id := range ids {
			if _, dup := ix.byID[id]; dup {
				return fmt.Errorf("%w: duplicate id %s", domain.ErrInvalidDataset, id)
			}
			ix.byID[id] = Handle(len(ix.nodes))
			ix.nodes = append(ix.nodes, Node{ID: id, Kind: kind, Ordinal: i})
		}
		return nil
	}

	ids := make([]string, 0, len(ds.Companies))
	for _, c := range ds.Companies {
		ids = append(ids, c.ID)
	}
	if err := add(domain.KindCompany, ids); err != nil {
		return nil, err
	}
	ids = ids[:0]
	for _, d := range ds.Directors {
		ids = append(ids, d.ID)
	}
	if err := add(domain.KindDirector, ids); err != nil {
		return nil, err
	}
	ids = ids[:0]
	for _, t := range ds.Tenders {
		ids = append(ids, t.ID)
	}
	if err := add(domain.KindTender, ids); err != nil {
		return nil, err
	}
	ids = ids[:0]
	for _, d := range ds.Departments {
		ids = append(ids, d.ID)
	}
	if err := add(domain.KindDepartment, ids); err != nil {
		return nil, err
	}

	for _, r := range ds.Relationships {
		src, ok := ix.byID[r.SourceID]
		if !ok {
			return nil, fmt.Errorf("%w: dangling source %s", domain.ErrInvalidDataset, r.SourceID)
		}
		dst, ok := ix.byID[r.TargetID]
		if !ok {
			return nil, fmt.Errorf("%w: dangling target %s", domain.ErrInvalidDataset, r.TargetID)
		}
		e := int32(len(ix.edges))
		ix.edges = append(ix.edges, Edge{Source: src, Target: dst, Type: r.Type})
		ix.out[src] = append(ix.out[src], e)
		ix.in[dst] = append(ix.in[dst], e)
	}
	return ix, nil
}

// Dataset returns the indexed dataset. Callers must treat it as read-only.
func (ix *Index) Dataset() *domain.Dataset { return ix.ds }

// Len returns the number of nodes.
func (ix *Index) Len() int { return len(ix.nodes) }

// EdgeCount returns the number of edges.
func (ix *Index) EdgeCount() int { return len(ix.edges) }

// Lookup resolves an entity id.
func (ix *Index) Lookup(id string) (Handle, bool) {
	h, ok := ix.byID[id]
	if !ok {
		return Invalid, false
	}
	return h, true
}

// Node returns the node at h.
func (ix *Index) Node(h Handle) Node { return ix.nodes[h] }

// Edge returns the i-th edge in dataset order.
func (ix *Index) Edge(i int) Edge { return ix.edges[i] }

// Handles returns the handles of all nodes of a kind, in dataset order.
func (ix *Index) Handles(kind domain.EntityKind) []Handle {
	n := ix.count[kind]
	out := make([]Handle, n)
	for i := range out {
		out[i] = ix.first[kind] + Handle(i)
	}
	return out
}

// Count returns the number of nodes of a kind.
func (ix *Index) Count(kind domain.EntityKind) int { return ix.count[kind] }

// HandleOf returns the handle of the ordinal-th entity of a kind.
func (ix *Index) HandleOf(kind domain.EntityKind, ordinal int) Handle {
	if ordinal < 0 || ordinal >= ix.count[kind] {
		return Invalid
	}
	return ix.first[kind] + Handle(ordinal)
}

// Company returns the company record at h.
func (ix *Index) Company(h Handle) (domain.Company, bool) {
	n := ix.nodes[h]
	if n.Kind != domain.KindCompany {
		return domain.Company{}, false
	}
	return ix.ds.Companies[n.Ordinal], true
}

// Director returns the director record at h.
func (ix *Index) Director(h Handle) (domain.Director, bool) {
	n := ix.nodes[h]
	if n.Kind != domain.KindDirector {
		return domain.Director{}, false
	}
	return ix.ds.Directors[n.Ordinal], true
}

// Tender returns the tender record at h.
func (ix *Index) Tender(h Handle) (domain.Tender, bool) {
	n := ix.nodes[h]
	if n.Kind != domain.KindTender {
		return domain.Tender{}, false
	}
	return ix.ds.Tenders[n.Ordinal], true
}

// Department returns the department record at h.
func (ix *Index) Department(h Handle) (domain.Department, bool) {
	n := ix.nodes[h]
	if n.Kind != domain.KindDepartment {
		return domain.Department{}, false
	}
	return ix.ds.Departments[n.Ordinal], true
}

// Label returns a display name for h.
func (ix *Index) Label(h Handle) string {
	n := ix.nodes[h]
	switch n.Kind {
	case domain.KindCompany:
		return ix.ds.Companies[n.Ordinal].Name
	case domain.KindDirector:
		return ix.ds.Directors[n.Ordinal].Name
	case domain.KindDepartment:
		return ix.ds.Departments[n.Ordinal].Name
	}
	return n.ID
}

// Neighbors returns the nodes linked to h by edges of type typ in the given
// direction, in edge order. An empty typ matches every type.
func (ix *Index) Neighbors(h Handle, typ domain.RelationshipType, dir Direction) []Handle {
	var out []Handle
	if dir == Out || dir == Both {
		for _, e := range ix.out[h] {
			if typ == "" || ix.edges[e].Type == typ {
				out = append(out, ix.edges[e].Target)
			}
		}
	}
	if dir == In || dir == Both {
		for _, e := range ix.in[h] {
			if typ == "" || ix.edges[e].Type == typ {
				out = append(out, ix.edges[e].Source)
			}
		}
	}
	return out
}

// IncidentEdges returns the indices of every edge touching h, outgoing first.
func (ix *Index) IncidentEdges(h Handle) []int {
	out := make([]int, 0, len(ix.out[h])+len(ix.in[h]))
	for _, e := range ix.out[h] {
		out = append(out, int(e))
	}
	for _, e := range ix.in[h] {
		out = append(out, int(e))
	}
	return out
}

// Degree returns the number of edges of type typ touching h in either
// direction. An empty typ counts every edge.
func (ix *Index) Degree(h Handle, typ domain.RelationshipType) int {
	if typ == "" {
		return len(ix.out[h]) + len(ix.in[h])
	}
	n := 0
	for _, e := range ix.out[h] {
		if ix.edges[e].Type == typ {
			n++
		}
	}
	for _, e := range ix.in[h] {
		if ix.edges[e].Type == typ {
			n++
		}
	}
	return n
}
