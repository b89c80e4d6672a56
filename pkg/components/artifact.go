package components

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/paramforge/paramforge/pkg/engine"
)

// PortsFile is the name of the port descriptor file written next to a graph.
const PortsFile = "ports.json"

// GraphFile returns the name of the generated graph file of a component.
func GraphFile(component string) string {
	return component + "_generated_graph.h"
}

// portRecord is one entry of ports.json.
type portRecord struct {
	engine.Port
	WindowBytes int64 `json:"window_size,omitempty"`
	Complex     bool  `json:"is_complex"`
}

type portsDocument struct {
	Component   string       `json:"component"`
	HeaderFile  string       `json:"header_file,omitempty"`
	SearchPaths []string     `json:"search_paths,omitempty"`
	Ports       []portRecord `json:"ports"`
}

// WriteArtifact writes the graph text and ports.json of art into dir and
// returns the paths written.
func WriteArtifact(dir, component string, art *engine.Artifact) ([]string, error) {
	if art == nil {
		return nil, fmt.Errorf("no artifact for %s", component)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	graphPath := filepath.Join(dir, GraphFile(component))
	if err := os.WriteFile(graphPath, []byte(art.Text), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write graph: %w", err)
	}

	doc := portsDocument{
		Component:   component,
		HeaderFile:  art.HeaderFile,
		SearchPaths: art.SearchPaths,
		Ports:       make([]portRecord, 0, len(art.Ports)),
	}
	for _, p := range art.Ports {
		rec := portRecord{Port: p, Complex: IsComplex(p.DataType)}
		if n, err := SizeOf(p.DataType); err == nil {
			rec.WindowBytes = p.Count * n
		}
		doc.Ports = append(doc.Ports, rec)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode ports: %w", err)
	}
	portsPath := filepath.Join(dir, PortsFile)
	if err := os.WriteFile(portsPath, append(data, '\n'), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write ports: %w", err)
	}
	return []string{graphPath, portsPath}, nil
}
