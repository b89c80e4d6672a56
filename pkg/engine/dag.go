package engine

import (
	"fmt"
	"sort"
	"strings"
)

// IssueKind classifies a static problem in a declaration.
type IssueKind string

const (
	IssueEmptyName      IssueKind = "empty_name"
	IssueDuplicate      IssueKind = "duplicate"
	IssueUnknownArg     IssueKind = "unknown_arg"
	IssueSelfReference  IssueKind = "self_reference"
	IssueLaterReference IssueKind = "later_reference"
)

// OrderIssue is one static violation of the declared dependency order.
type OrderIssue struct {
	Kind      IssueKind `json:"kind"`
	Parameter string    `json:"parameter"`
	Arg       string    `json:"arg,omitempty"`
	Operation string    `json:"operation,omitempty"`
}

// Err converts the issue into a classified error.
func (i OrderIssue) Err() error {
	switch i.Kind {
	case IssueSelfReference, IssueLaterReference, IssueUnknownArg:
		e := NewOrderViolationError(i.Parameter, i.Arg).WithOperation(i.Operation)
		e.Message = i.String()
		return e
	default:
		return NewPermanentError(i.String(), nil).
			WithCode(ErrCodeDeclaration).
			WithParameter(i.Parameter)
	}
}

// String describes the issue.
func (i OrderIssue) String() string {
	switch i.Kind {
	case IssueEmptyName:
		return "parameter has empty name"
	case IssueDuplicate:
		return fmt.Sprintf("parameter %s is declared more than once", i.Parameter)
	case IssueUnknownArg:
		return fmt.Sprintf("%s of %s reads undeclared parameter %s", i.Operation, i.Parameter, i.Arg)
	case IssueSelfReference:
		return fmt.Sprintf("%s of %s reads the parameter itself", i.Operation, i.Parameter)
	case IssueLaterReference:
		return fmt.Sprintf("%s of %s reads %s, which is declared later", i.Operation, i.Parameter, i.Arg)
	default:
		return string(i.Kind)
	}
}

// CheckOrder statically verifies that every declared updater and validator arg
// names a parameter strictly earlier than its owner. It returns every issue
// found, in declaration order.
func CheckOrder(decl Declaration) []OrderIssue {
	issues := make([]OrderIssue, 0)
	position := make(map[string]int, len(decl.Params))
	for i, p := range decl.Params {
		if p.Name == "" {
			issues = append(issues, OrderIssue{Kind: IssueEmptyName})
			continue
		}
		if _, dup := position[p.Name]; dup {
			issues = append(issues, OrderIssue{Kind: IssueDuplicate, Parameter: p.Name})
			continue
		}
		position[p.Name] = i
	}

	check := func(owner string, at int, op string, args []string) {
		for _, a := range args {
			pos, ok := position[a]
			switch {
			case a == owner:
				issues = append(issues, OrderIssue{Kind: IssueSelfReference, Parameter: owner, Arg: a, Operation: op})
			case !ok:
				issues = append(issues, OrderIssue{Kind: IssueUnknownArg, Parameter: owner, Arg: a, Operation: op})
			case pos > at:
				issues = append(issues, OrderIssue{Kind: IssueLaterReference, Parameter: owner, Arg: a, Operation: op})
			}
		}
	}

	for i, p := range decl.Params {
		check(p.Name, i, opUpdate, p.UpdaterArgs)
		check(p.Name, i, opValidate, p.ValidatorArgs)
	}
	return issues
}

// DependencyGraph is the parameter dependency graph derived from declared args.
type DependencyGraph struct {
	// Nodes maps parameter names to graph nodes.
	Nodes map[string]*GraphNode `json:"nodes"`

	// Edges lists read relationships, from the read parameter to the reader.
	Edges []GraphEdge `json:"edges"`

	// Roots are parameters that read nothing.
	Roots []string `json:"roots"`

	// Depth is the number of levels.
	Depth int `json:"depth"`
}

// GraphNode is one parameter in the dependency graph.
type GraphNode struct {
	Name         string   `json:"name"`
	Index        int      `json:"index"`
	Level        int      `json:"level"`
	Dependencies []string `json:"dependencies"`
	Dependents   []string `json:"dependents"`
}

// GraphEdge is a read relationship; Operation is update or validate.
type GraphEdge struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Operation string `json:"operation"`
}

// DAGBuilder builds the dependency graph of a declaration. Parameters on the
// same level do not depend on each other.
type DAGBuilder struct {
	// params maps names to declarations
	params map[string]*ParameterDecl

	// position is the declared index of each parameter
	position map[string]int

	// adjacencyList maps a parameter to the parameters that read it
	adjacencyList map[string][]string

	// reverseAdjacencyList maps a parameter to the parameters it reads
	reverseAdjacencyList map[string][]string

	// inDegree tracks the number of distinct dependencies of each node
	inDegree map[string]int

	// edges keeps every read, including duplicate pairs from both operations
	edges []GraphEdge

	// levels maps level to parameter names at that level
	levels [][]string
}

// NewDAGBuilder creates a new DAG builder.
func NewDAGBuilder() *DAGBuilder {
	return &DAGBuilder{
		params:               make(map[string]*ParameterDecl),
		position:             make(map[string]int),
		adjacencyList:        make(map[string][]string),
		reverseAdjacencyList: make(map[string][]string),
		inDegree:             make(map[string]int),
		levels:               make([][]string, 0),
	}
}

// BuildGraph constructs the dependency graph. Unlike CheckOrder it accepts
// reads of later parameters, so that a broken declaration can still be drawn;
// only cycles and unknown names are errors.
func (b *DAGBuilder) BuildGraph(decl Declaration) (*DependencyGraph, error) {
	if len(decl.Params) == 0 {
		return &DependencyGraph{
			Nodes: make(map[string]*GraphNode),
			Edges: make([]GraphEdge, 0),
			Roots: make([]string, 0),
		}, nil
	}

	if err := b.initialize(decl.Params); err != nil {
		return nil, err
	}

	if err := b.detectCycles(); err != nil {
		return nil, err
	}

	if err := b.computeLevels(); err != nil {
		return nil, err
	}

	return b.buildGraph(), nil
}

func (b *DAGBuilder) initialize(params []ParameterDecl) error {
	for i := range params {
		p := &params[i]
		if p.Name == "" {
			return NewPermanentError("parameter has empty name", nil).
				WithCode(ErrCodeDeclaration)
		}
		if _, exists := b.params[p.Name]; exists {
			return NewPermanentError(fmt.Sprintf("duplicate parameter: %s", p.Name), nil).
				WithCode(ErrCodeDeclaration).
				WithParameter(p.Name)
		}
		b.params[p.Name] = p
		b.position[p.Name] = i
		b.adjacencyList[p.Name] = make([]string, 0)
		b.reverseAdjacencyList[p.Name] = make([]string, 0)
		b.inDegree[p.Name] = 0
	}

	for i := range params {
		p := &params[i]
		seen := make(map[string]bool)
		add := func(op string, args []string) error {
			for _, a := range args {
				if _, exists := b.params[a]; !exists {
					return NewOrderViolationError(p.Name, a).WithOperation(op)
				}
				b.edges = append(b.edges, GraphEdge{From: a, To: p.Name, Operation: op})
				if seen[a] {
					continue
				}
				seen[a] = true
				b.adjacencyList[a] = append(b.adjacencyList[a], p.Name)
				b.reverseAdjacencyList[p.Name] = append(b.reverseAdjacencyList[p.Name], a)
				b.inDegree[p.Name]++
			}
			return nil
		}
		if err := add(opUpdate, p.UpdaterArgs); err != nil {
			return err
		}
		if err := add(opValidate, p.ValidatorArgs); err != nil {
			return err
		}
	}
	return nil
}

// detectCycles uses depth-first search to detect circular reads.
func (b *DAGBuilder) detectCycles() error {
	visited := make(map[string]bool)
	recStack := make(map[string]bool)

	for _, name := range b.sortedNames() {
		if visited[name] {
			continue
		}
		if cycle := b.detectCyclesUtil(name, visited, recStack, nil); cycle != nil {
			return NewOrderViolationError(cycle[len(cycle)-1], cycle[len(cycle)-2]).
				WithDetail("cycle", formatCycle(cycle))
		}
	}
	return nil
}

func (b *DAGBuilder) detectCyclesUtil(name string, visited, recStack map[string]bool, path []string) []string {
	visited[name] = true
	recStack[name] = true
	path = append(path, name)

	for _, dependent := range b.adjacencyList[name] {
		if !visited[dependent] {
			if cycle := b.detectCyclesUtil(dependent, visited, recStack, path); cycle != nil {
				return cycle
			}
		} else if recStack[dependent] {
			for i, id := range path {
				if id == dependent {
					cycle := append([]string{}, path[i:]...)
					return append(cycle, dependent)
				}
			}
		}
	}

	recStack[name] = false
	return nil
}

// computeLevels assigns levels with Kahn's algorithm, visiting parameters in
// declared order within a level.
func (b *DAGBuilder) computeLevels() error {
	inDegreeCopy := make(map[string]int, len(b.inDegree))
	for id, degree := range b.inDegree {
		inDegreeCopy[id] = degree
	}

	currentLevel := make([]string, 0)
	for _, name := range b.sortedNames() {
		if inDegreeCopy[name] == 0 {
			currentLevel = append(currentLevel, name)
		}
	}

	processed := 0
	for len(currentLevel) > 0 {
		b.levels = append(b.levels, currentLevel)
		processed += len(currentLevel)

		next := make([]string, 0)
		for _, name := range currentLevel {
			for _, dependent := range b.adjacencyList[name] {
				inDegreeCopy[dependent]--
				if inDegreeCopy[dependent] == 0 {
					next = append(next, dependent)
				}
			}
		}
		sort.Slice(next, func(i, j int) bool { return b.position[next[i]] < b.position[next[j]] })
		currentLevel = next
	}

	if processed != len(b.params) {
		return NewPermanentError("failed to level all parameters - possible cycle", nil).
			WithCode(ErrCodeInternal)
	}
	return nil
}

func (b *DAGBuilder) buildGraph() *DependencyGraph {
	graph := &DependencyGraph{
		Nodes: make(map[string]*GraphNode, len(b.params)),
		Edges: append([]GraphEdge{}, b.edges...),
		Roots: make([]string, 0),
		Depth: len(b.levels),
	}
	for level, names := range b.levels {
		for _, name := range names {
			graph.Nodes[name] = &GraphNode{
				Name:         name,
				Index:        b.position[name],
				Level:        level,
				Dependencies: b.reverseAdjacencyList[name],
				Dependents:   b.adjacencyList[name],
			}
			if level == 0 {
				graph.Roots = append(graph.Roots, name)
			}
		}
	}
	return graph
}

func (b *DAGBuilder) sortedNames() []string {
	names := make([]string, 0, len(b.params))
	for n := range b.params {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool { return b.position[names[i]] < b.position[names[j]] })
	return names
}

// GetLevels returns the computed levels.
func (b *DAGBuilder) GetLevels() [][]string {
	return b.levels
}

// ToDOT generates a DOT representation of the graph for Graphviz. Reads of
// later parameters are drawn in red.
func (b *DAGBuilder) ToDOT(component string) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "digraph %q {\n", component)
	sb.WriteString("  rankdir=TB;\n")
	sb.WriteString("  node [shape=box, style=rounded];\n\n")

	for level, names := range b.levels {
		fmt.Fprintf(&sb, "  subgraph cluster_level_%d {\n", level)
		fmt.Fprintf(&sb, "    label=\"Level %d\";\n", level)
		sb.WriteString("    style=dashed;\n")
		for _, name := range names {
			p := b.params[name]
			fmt.Fprintf(&sb, "    %q [label=\"%d: %s\\n%s\", fillcolor=\"%s\", style=\"filled,rounded\"];\n",
				name, b.position[name], name, p.Type, getTypeColor(p))
		}
		sb.WriteString("  }\n\n")
	}

	for _, e := range b.edges {
		fmt.Fprintf(&sb, "  %q -> %q [%s];\n", e.From, e.To, b.edgeStyle(e))
	}

	sb.WriteString("}\n")
	return sb.String()
}

func (b *DAGBuilder) edgeStyle(e GraphEdge) string {
	if b.position[e.From] >= b.position[e.To] {
		return "style=bold, color=red"
	}
	if e.Operation == opValidate {
		return "style=dashed, color=blue"
	}
	return "style=solid, color=black"
}

// formatCycle formats a cycle path for error messages.
func formatCycle(cycle []string) string {
	return strings.Join(cycle, " -> ")
}

func getTypeColor(p *ParameterDecl) string {
	switch p.Type.String() {
	case "int":
		return "lightblue"
	case "string":
		return "lightgreen"
	case "vector":
		return "lightyellow"
	default:
		return "white"
	}
}

// DeclarationOf rebuilds the declaration of a registered component.
func DeclarationOf(c *Component) Declaration {
	decl := Declaration{Name: c.Name, Description: c.Description, Params: make([]ParameterDecl, len(c.Params))}
	for i, p := range c.Params {
		decl.Params[i] = ParameterDecl{
			Name:           p.Name,
			Type:           p.Type,
			Description:    p.Description,
			ElementType:    p.ElementType,
			UpdaterArgs:    cloneArgs(p.UpdaterArgs),
			ValidatorArgs:  cloneArgs(p.ValidatorArgs),
			SkipValidation: p.SkipValidation,
			Default:        p.Default,
		}
	}
	return decl
}
