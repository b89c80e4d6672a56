package commands

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/paramforge/paramforge/pkg/domain"
	"github.com/paramforge/paramforge/pkg/engine"
	"github.com/paramforge/paramforge/pkg/stores"
	"gopkg.in/yaml.v3"
)

// resultTable is an exploration result in tabular form: one column per
// parameter in declared order, one row per configuration.
type resultTable struct {
	Component string
	Strategy  string
	Status    string
	Params    []string

	// Rows holds the rendered values, Values the typed ones.
	Rows   [][]string
	Values [][]any
}

func tableFromResult(res *engine.ExploreResult) *resultTable {
	t := &resultTable{
		Component: res.Component,
		Strategy:  string(res.Strategy),
		Status:    string(res.Status),
	}
	for i, cfg := range res.Configurations {
		if i == 0 {
			t.Params = cfg.Names()
		}
		values := cfg.Values()
		typed := make([]any, len(values))
		for j, v := range values {
			typed[j] = v.Interface()
		}
		t.Rows = append(t.Rows, cfg.Row())
		t.Values = append(t.Values, typed)
	}
	return t
}

func tableFromStore(exp *stores.Exploration, rows []*stores.ConfigurationRow) *resultTable {
	t := &resultTable{
		Component: exp.Component,
		Strategy:  exp.Strategy,
		Status:    exp.Status,
		Params:    exp.Params,
	}
	for _, r := range rows {
		typed := make([]any, len(r.Values))
		for j, s := range r.Values {
			typed[j] = typedCell(s)
		}
		t.Rows = append(t.Rows, r.Values)
		t.Values = append(t.Values, typed)
	}
	return t
}

// typedCell recovers an encoder-friendly value from its rendered form.
func typedCell(s string) any {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}") {
		if v, err := domain.Parse(domain.VectorKind, s); err == nil {
			return v.AsVector()
		}
	}
	return s
}

func (t *resultTable) writeText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "#\t%s\n", strings.Join(t.Params, "\t"))
	for i, row := range t.Rows {
		fmt.Fprintf(tw, "%d\t%s\n", i+1, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

func (t *resultTable) writeCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Params); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return fmt.Errorf("failed to write CSV rows: %w", err)
	}
	return nil
}

// yamlDocument builds the YAML form with parameters in declared order.
func (t *resultTable) yamlDocument() (*yaml.Node, error) {
	doc := &yaml.Node{Kind: yaml.MappingNode}
	add := func(key string, value *yaml.Node) {
		doc.Content = append(doc.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: key}, value)
	}
	scalar := func(v string) *yaml.Node {
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v}
	}

	add("component", scalar(t.Component))
	add("strategy", scalar(t.Strategy))
	add("status", scalar(t.Status))

	params := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
	for _, p := range t.Params {
		params.Content = append(params.Content, scalar(p))
	}
	add("params", params)

	configs := &yaml.Node{Kind: yaml.SequenceNode}
	for _, row := range t.Values {
		m := &yaml.Node{Kind: yaml.MappingNode}
		for j, v := range row {
			var value yaml.Node
			if err := value.Encode(v); err != nil {
				return nil, fmt.Errorf("failed to encode %s: %w", t.Params[j], err)
			}
			if value.Kind == yaml.SequenceNode {
				value.Style = yaml.FlowStyle
			}
			m.Content = append(m.Content, scalar(t.Params[j]), &value)
		}
		configs.Content = append(configs.Content, m)
	}
	add("configurations", configs)

	return doc, nil
}

func (t *resultTable) writeYAML(w io.Writer) error {
	doc, err := t.yamlDocument()
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to write YAML: %w", err)
	}
	return enc.Close()
}

// writeFile creates path and fills it with write.
func writeFile(path string, write func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return write(f)
}
