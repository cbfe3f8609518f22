package depgraph

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"fragsplit/ir"
	"fragsplit/util"
)

// yamlGraph is a dependency graph as it is encoded in YAML.
type yamlGraph struct {
	Name    string     `yaml:"name"`
	Extends string     `yaml:"extends,omitempty"`
	Methods []yamlEdge `yaml:"methods"`
}

// yamlEdge records why a method is live.
type yamlEdge struct {
	Method string   `yaml:"method"`
	Chain  []string `yaml:"chain,flow,omitempty"`
}

// YAMLRecorder writes every dependency graph as a separate YAML document.
type YAMLRecorder struct {
	w   io.Writer
	enc *yaml.Encoder

	current *yamlGraph
	err     error
}

// NewYAMLRecorder creates a new recorder writing to w.
func NewYAMLRecorder(w io.Writer) *YAMLRecorder {
	return &YAMLRecorder{w: w}
}

func (yr *YAMLRecorder) Open() error {
	if yr.enc != nil {
		return errors.New("dependency recorder opened twice")
	}

	yr.enc = yaml.NewEncoder(yr.w)
	yr.enc.SetIndent(2)
	return nil
}

func (yr *YAMLRecorder) Close() error {
	if yr.enc == nil {
		return errors.New("dependency recorder closed before it was opened")
	}

	if err := yr.enc.Close(); err != nil && yr.err == nil {
		yr.err = err
	}

	return yr.err
}

func (yr *YAMLRecorder) StartGraph(name, extends string) {
	yr.current = &yamlGraph{Name: name, Extends: extends}
}

func (yr *YAMLRecorder) EndGraph() {
	if yr.current == nil || yr.enc == nil {
		return
	}

	if err := yr.enc.Encode(yr.current); err != nil && yr.err == nil {
		yr.err = fmt.Errorf("error encoding dependency graph %s: %w", yr.current.Name, err)
	}

	yr.current = nil
}

func (yr *YAMLRecorder) MethodIsLiveBecause(m *ir.Method, chain []*ir.Method) {
	if yr.current == nil {
		return
	}

	yr.current.Methods = append(yr.current.Methods, yamlEdge{
		Method: m.QualifiedName(),
		Chain:  util.Map(chain, (*ir.Method).QualifiedName),
	})
}
