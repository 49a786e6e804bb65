package domain

import (
	"sort"
)

// Collection is an arena of provenance objects addressed by identifier.
// It is not safe for concurrent mutation.
type Collection struct {
	nodes  map[string]*Node
	edges  map[string]Edge
	npes   map[string]NonProvenanceEdge
	actors map[string]Actor
	tags   map[string]map[string]string
}

func NewCollection() *Collection {
	return &Collection{
		nodes:  make(map[string]*Node),
		edges:  make(map[string]Edge),
		npes:   make(map[string]NonProvenanceEdge),
		actors: make(map[string]Actor),
		tags:   make(map[string]map[string]string),
	}
}

// AddNode validates n and stores it. Adding a node whose ID is already
// present is a no-op and returns false.
func (c *Collection) AddNode(n *Node) (bool, error) {
	if err := n.Validate(); err != nil {
		return false, err
	}
	if _, ok := c.nodes[n.ID]; ok {
		return false, nil
	}
	c.nodes[n.ID] = n
	return true, nil
}

// PutNode replaces any node stored under n.ID.
func (c *Collection) PutNode(n *Node) error {
	if err := n.Validate(); err != nil {
		return err
	}
	c.nodes[n.ID] = n
	return nil
}

// AddEdge stores e even when its endpoints are absent; such edges are
// reported by DanglingEdges and skipped by ResolvableEdges.
func (c *Collection) AddEdge(e Edge) (bool, error) {
	if err := e.Validate(); err != nil {
		return false, err
	}
	if e.Workflow == "" {
		e.Workflow = DefaultWorkflow
	}
	id := e.ID()
	if _, ok := c.edges[id]; ok {
		return false, nil
	}
	c.edges[id] = e
	return true, nil
}

func (c *Collection) AddNPE(e NonProvenanceEdge) (bool, error) {
	if err := e.Validate(); err != nil {
		return false, err
	}
	if _, ok := c.npes[e.ID]; ok {
		return false, nil
	}
	c.npes[e.ID] = e
	return true, nil
}

func (c *Collection) AddActor(a Actor) bool {
	if a.ID == "" {
		return false
	}
	if _, ok := c.actors[a.ID]; ok {
		return false
	}
	c.actors[a.ID] = a
	return true
}

// RemoveNode deletes the node; with cascade its incident edges, NPEs and
// tags go too.
func (c *Collection) RemoveNode(id string, cascade bool) bool {
	if _, ok := c.nodes[id]; !ok {
		return false
	}
	delete(c.nodes, id)
	delete(c.tags, id)
	if !cascade {
		return true
	}
	for key, e := range c.edges {
		if e.From == id || e.To == id {
			delete(c.edges, key)
		}
	}
	for key, e := range c.npes {
		if e.Touches(id) {
			delete(c.npes, key)
		}
	}
	return true
}

func (c *Collection) RemoveEdge(e Edge) bool {
	id := e.ID()
	if _, ok := c.edges[id]; !ok {
		return false
	}
	delete(c.edges, id)
	return true
}

func (c *Collection) RemoveNPE(id string) bool {
	if _, ok := c.npes[id]; !ok {
		return false
	}
	delete(c.npes, id)
	return true
}

func (c *Collection) RemoveActor(id string) bool {
	if _, ok := c.actors[id]; !ok {
		return false
	}
	delete(c.actors, id)
	return true
}

func (c *Collection) ContainsNode(id string) bool {
	_, ok := c.nodes[id]
	return ok
}

func (c *Collection) ContainsEdge(e Edge) bool {
	_, ok := c.edges[e.ID()]
	return ok
}

func (c *Collection) ContainsNPE(id string) bool {
	_, ok := c.npes[id]
	return ok
}

func (c *Collection) ContainsActor(id string) bool {
	_, ok := c.actors[id]
	return ok
}

func (c *Collection) Node(id string) (*Node, bool) {
	n, ok := c.nodes[id]
	return n, ok
}

func (c *Collection) Actor(id string) (Actor, bool) {
	a, ok := c.actors[id]
	return a, ok
}

func (c *Collection) NodeCount() int  { return len(c.nodes) }
func (c *Collection) EdgeCount() int  { return len(c.edges) }
func (c *Collection) NPECount() int   { return len(c.npes) }
func (c *Collection) ActorCount() int { return len(c.actors) }

// NodesByCreated enumerates nodes oldest first; ties are broken by ID.
func (c *Collection) NodesByCreated() []*Node {
	out := make([]*Node, 0, len(c.nodes))
	for _, n := range c.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Created.Equal(out[j].Created) {
			return out[i].ID < out[j].ID
		}
		return out[i].Created.Before(out[j].Created)
	})
	return out
}

func (c *Collection) NodeIDs() []string {
	out := make([]string, 0, len(c.nodes))
	for id := range c.nodes {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Edges returns every edge, dangling ones included, in ID order.
func (c *Collection) Edges() []Edge {
	return sortedEdges(c.edges, func(Edge) bool { return true })
}

// ResolvableEdges returns the edges whose endpoints are both present.
func (c *Collection) ResolvableEdges() []Edge {
	return sortedEdges(c.edges, func(e Edge) bool {
		return c.ContainsNode(e.From) && c.ContainsNode(e.To)
	})
}

func (c *Collection) DanglingEdges() []Edge {
	return sortedEdges(c.edges, func(e Edge) bool {
		return !c.ContainsNode(e.From) || !c.ContainsNode(e.To)
	})
}

// EdgesFrom and EdgesTo return resolvable outgoing and incoming edges of id.
func (c *Collection) EdgesFrom(id string) []Edge {
	return sortedEdges(c.edges, func(e Edge) bool {
		return e.From == id && c.ContainsNode(e.To)
	})
}

func (c *Collection) EdgesTo(id string) []Edge {
	return sortedEdges(c.edges, func(e Edge) bool {
		return e.To == id && c.ContainsNode(e.From)
	})
}

func (c *Collection) NPEs() []NonProvenanceEdge {
	out := make([]NonProvenanceEdge, 0, len(c.npes))
	for _, e := range c.npes {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (c *Collection) Actors() []Actor {
	out := make([]Actor, 0, len(c.actors))
	for _, a := range c.actors {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (c *Collection) Tag(nodeID, key, value string) {
	m, ok := c.tags[nodeID]
	if !ok {
		m = make(map[string]string)
		c.tags[nodeID] = m
	}
	m[key] = value
}

func (c *Collection) Tags(nodeID string) map[string]string {
	m := c.tags[nodeID]
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Merge adds everything from other that c does not already hold. Objects
// present in both keep the version from c.
func (c *Collection) Merge(other *Collection) {
	if other == nil {
		return
	}
	for id, n := range other.nodes {
		if _, ok := c.nodes[id]; !ok {
			c.nodes[id] = n
		}
	}
	for id, e := range other.edges {
		if _, ok := c.edges[id]; !ok {
			c.edges[id] = e
		}
	}
	for id, e := range other.npes {
		if _, ok := c.npes[id]; !ok {
			c.npes[id] = e
		}
	}
	for id, a := range other.actors {
		if _, ok := c.actors[id]; !ok {
			c.actors[id] = a
		}
	}
	for id, tags := range other.tags {
		for k, v := range tags {
			if _, ok := c.tags[id][k]; !ok {
				c.Tag(id, k, v)
			}
		}
	}
}

// Union returns a new collection holding both a and b.
func Union(a, b *Collection) *Collection {
	out := NewCollection()
	out.Merge(a)
	out.Merge(b)
	return out
}

func sortedEdges(edges map[string]Edge, keep func(Edge) bool) []Edge {
	out := make([]Edge, 0, len(edges))
	for _, e := range edges {
		if keep(e) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}
