// Package loader builds runnable flows from declarative YAML pipeline
// definitions, resolving node types against a registry.
package loader

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/lenML/pflow"
	"github.com/lenML/pflow/pkg/domain"
	"github.com/lenML/pflow/pkg/registry"
)

// Definition is the YAML shape of a pipeline.
type Definition struct {
	Name  string           `yaml:"name"`
	Start string           `yaml:"start"`
	Nodes []NodeDefinition `yaml:"nodes"`
}

// NodeDefinition declares one node: its id, the registered type it uses,
// its parameter record, and its outgoing edges keyed by action.
type NodeDefinition struct {
	ID     string            `yaml:"id"`
	Uses   string            `yaml:"uses"`
	Params map[string]any    `yaml:"params"`
	Next   map[string]string `yaml:"next"`
}

// Load parses data and assembles the flow, building each node through reg.
// Every edge target and the start id must name a defined node.
func Load(data []byte, reg *registry.Registry) (pflow.Flow, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parse pipeline: %w", err)
	}
	return Build(def, reg)
}

// Build assembles a flow from an already parsed definition.
func Build(def Definition, reg *registry.Registry) (pflow.Flow, error) {
	if len(def.Nodes) == 0 {
		return nil, fmt.Errorf("pipeline %s: no nodes defined", def.Name)
	}
	if def.Start == "" {
		return nil, fmt.Errorf("pipeline %s: no start node", def.Name)
	}

	built := make(map[string]pflow.Node, len(def.Nodes))
	for _, nd := range def.Nodes {
		if nd.ID == "" {
			return nil, fmt.Errorf("pipeline %s: node without id", def.Name)
		}
		if _, dup := built[nd.ID]; dup {
			return nil, fmt.Errorf("pipeline %s: duplicate node id %q", def.Name, nd.ID)
		}
		node, err := reg.Build(nd.Uses, domain.Params(nd.Params))
		if err != nil {
			return nil, fmt.Errorf("pipeline %s: node %q: %w", def.Name, nd.ID, err)
		}
		built[nd.ID] = node
	}

	for _, nd := range def.Nodes {
		for action, target := range nd.Next {
			next, ok := built[target]
			if !ok {
				return nil, fmt.Errorf("pipeline %s: node %q: edge %q points to unknown node %q",
					def.Name, nd.ID, action, target)
			}
			built[nd.ID].On(domain.Action(action), next)
		}
	}

	start, ok := built[def.Start]
	if !ok {
		return nil, fmt.Errorf("pipeline %s: start %q is not a defined node", def.Name, def.Start)
	}

	name := def.Name
	if name == "" {
		name = "pipeline"
	}
	return pflow.NewFlow(name, start, pflow.Steps{}), nil
}
