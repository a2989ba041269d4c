package hook

import (
	"sort"
	"sync"
)

// graphShard holds one stripe of the dependency graph and event set,
// guarded by its own mutex so that concurrent on_import/on_call/on_return
// calls for modules hashing to different shards never contend.
type graphShard struct {
	mu       sync.Mutex
	children map[ModuleId]map[ModuleId]struct{} // parent -> children
	events   map[ModuleId]map[string]struct{}   // module -> "kind:name"
}

// depGraph is the process-wide, concurrency-safe dependency graph and
// event set. Striped across shardCount buckets keyed by
// shardFor(parent) / shardFor(module).
type depGraph struct {
	shards [shardCount]*graphShard
}

func newDepGraph() *depGraph {
	g := &depGraph{}
	for i := range g.shards {
		g.shards[i] = &graphShard{
			children: make(map[ModuleId]map[ModuleId]struct{}),
			events:   make(map[ModuleId]map[string]struct{}),
		}
	}
	return g
}

func (g *depGraph) shardOf(id ModuleId) *graphShard {
	return g.shards[shardFor(id)]
}

// AddEdge records parent->child, returning true if the edge was newly
// inserted (false if it already existed). No self-edges are recorded.
func (g *depGraph) AddEdge(parent, child ModuleId) bool {
	if parent == child {
		return false
	}
	s := g.shardOf(parent)
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.children[parent]
	if !ok {
		set = make(map[ModuleId]struct{})
		s.children[parent] = set
	}
	if _, exists := set[child]; exists {
		return false
	}
	set[child] = struct{}{}
	return true
}

// HasEdge reports whether parent->child is already recorded.
func (g *depGraph) HasEdge(parent, child ModuleId) bool {
	s := g.shardOf(parent)
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.children[parent]
	if !ok {
		return false
	}
	_, exists := set[child]
	return exists
}

// Children returns a sorted, deduplicated copy of parent's recorded
// children.
func (g *depGraph) Children(parent ModuleId) []ModuleId {
	s := g.shardOf(parent)
	s.mu.Lock()
	defer s.mu.Unlock()
	set := s.children[parent]
	out := make([]ModuleId, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sortModuleIds(out)
	return out
}

// Parents returns every parent that has ever been recorded, across all
// shards, sorted.
func (g *depGraph) Parents() []ModuleId {
	out := make([]ModuleId, 0)
	for _, s := range g.shards {
		s.mu.Lock()
		for p := range s.children {
			out = append(out, p)
		}
		s.mu.Unlock()
	}
	sortModuleIds(out)
	return out
}

// AddEvent records "kind:name" into module's event set. Returns true if
// the tag was newly inserted. Deduplicated and append-only within a run.
func (g *depGraph) AddEvent(module ModuleId, tag string) bool {
	s := g.shardOf(module)
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.events[module]
	if !ok {
		set = make(map[string]struct{})
		s.events[module] = set
	}
	if _, exists := set[tag]; exists {
		return false
	}
	set[tag] = struct{}{}
	return true
}

// Events returns a sorted copy of module's recorded event tags.
func (g *depGraph) Events(module ModuleId) []string {
	s := g.shardOf(module)
	s.mu.Lock()
	defer s.mu.Unlock()
	set := s.events[module]
	out := make([]string, 0, len(set))
	for e := range set {
		out = append(out, e)
	}
	sortStrings(out)
	return out
}

// EventModules returns every module that has recorded at least one event,
// sorted.
func (g *depGraph) EventModules() []ModuleId {
	out := make([]ModuleId, 0)
	for _, s := range g.shards {
		s.mu.Lock()
		for m := range s.events {
			out = append(out, m)
		}
		s.mu.Unlock()
	}
	sortModuleIds(out)
	return out
}

func sortModuleIds(ids []ModuleId) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}

func sortStrings(s []string) {
	sort.Strings(s)
}
