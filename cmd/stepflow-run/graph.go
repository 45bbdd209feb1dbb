package main

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kode4food/stepflow/pkg/api"
)

var ErrEmptyGraph = errors.New("graph file defines no steps")

// loadGraph reads a graph definition. JSON files are accepted as well,
// since YAML is a superset of JSON
func loadGraph(path string) (*api.Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var g api.Graph
	if err := yaml.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(g.Steps) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyGraph, path)
	}
	return &g, nil
}
