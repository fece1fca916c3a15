// Package http exposes a read-only introspection API over a pipeline:
// its graph shape and the trace events captured while it ran.
package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/lenML/pflow"
)

// GraphNode is one node in the adjacency listing returned by GET /graph.
type GraphNode struct {
	ID    string            `json:"id"`
	Kind  string            `json:"kind"`
	Kinds []string          `json:"kinds"`
	Edges map[string]string `json:"edges,omitempty"`
	Start string            `json:"start,omitempty"`
}

// NewHandler builds the introspection router over root's graph and the
// given trace sink.
func NewHandler(root pflow.Node, sink *TraceSink, log *slog.Logger) http.Handler {
	s := &server{root: root, sink: sink, log: log}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/graph", s.getGraph)
	r.Get("/traces", s.getTraces)
	r.Get("/healthz", s.getHealth)
	return r
}

type server struct {
	root pflow.Node
	sink *TraceSink
	log  *slog.Logger
}

func (s *server) getGraph(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, flatten(s.root))
}

func (s *server) getTraces(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.sink.Events())
}

func (s *server) getHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]string{"status": "ok"})
}

func (s *server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("introspection encode failed", "err", err)
	}
}

// flatten walks every node reachable from root, through successor edges and
// flow starts, and returns a stable listing sorted by kind then id.
func flatten(root pflow.Node) []GraphNode {
	seen := map[string]pflow.Node{}
	walk(root, seen)

	out := make([]GraphNode, 0, len(seen))
	for _, n := range seen {
		gn := GraphNode{
			ID:    n.ID(),
			Kind:  n.Kinds()[0],
			Kinds: n.Kinds(),
		}
		if len(n.Successors()) > 0 {
			gn.Edges = make(map[string]string, len(n.Successors()))
			for action, next := range n.Successors() {
				gn.Edges[string(action)] = next.ID()
			}
		}
		if f, ok := n.(pflow.Flow); ok && f.Start() != nil {
			gn.Start = f.Start().ID()
		}
		out = append(out, gn)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func walk(n pflow.Node, seen map[string]pflow.Node) {
	if n == nil {
		return
	}
	if _, ok := seen[n.ID()]; ok {
		return
	}
	seen[n.ID()] = n

	if f, ok := n.(pflow.Flow); ok {
		walk(f.Start(), seen)
	}
	for _, next := range n.Successors() {
		walk(next, seen)
	}
}
