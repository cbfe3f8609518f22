// Package progfile loads whole-program descriptions: YAML files declaring the
// types of a program together with a summary of what each method body
// references.
package progfile

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"fragsplit/ir"
	"fragsplit/report"
)

// yamlProgram represents a program description as it is encoded in YAML
type yamlProgram struct {
	Types    []*yamlType `yaml:"types"`
	Entry    []ref       `yaml:"entry"`
	Immortal []ref       `yaml:"immortal"`
	OnLoad   *ref        `yaml:"on-load"`
}

type yamlType struct {
	Name    ref           `yaml:"name"`
	Super   *ref          `yaml:"super"`
	Enum    bool          `yaml:"enum"`
	Fields  []*yamlField  `yaml:"fields"`
	Clinit  *yamlBody     `yaml:"clinit"`
	Methods []*yamlMethod `yaml:"methods"`
}

type yamlField struct {
	Name   ref              `yaml:"name"`
	Static bool             `yaml:"static"`
	Init   *yamlInitializer `yaml:"init"`
}

type yamlInitializer struct {
	String        *string  `yaml:"string"`
	Strings       []string `yaml:"strings"`
	ClassLiterals []ref    `yaml:"class-literals"`
	Methods       []ref    `yaml:"methods"`
}

type yamlMethod struct {
	Name      ref      `yaml:"name"`
	Kind      ref      `yaml:"kind"`
	Private   bool     `yaml:"private"`
	Params    []string `yaml:"params"`
	Overrides []ref    `yaml:"overrides"`

	Body yamlBody `yaml:",inline"`
}

// yamlBody is the summary of a method body.
type yamlBody struct {
	Calls         []ref             `yaml:"calls"`
	Instantiates  []ref             `yaml:"instantiates"`
	Reads         []ref             `yaml:"reads"`
	Writes        []ref             `yaml:"writes"`
	Strings       []string          `yaml:"strings"`
	ClassLiterals []ref             `yaml:"class-literals"`
	SplitPoints   []*yamlSplitPoint `yaml:"split-points"`
}

type yamlSplitPoint struct {
	Tag       string `yaml:"tag"`
	OnSuccess ref    `yaml:"on-success"`
}

// ref is a scalar naming a declaration of the program: `Type`, `Type.member`
// or `Type.method(params)`.  It remembers where it appeared so that resolution
// errors can point at it.
type ref struct {
	Value     string
	Line, Col int
}

func (r *ref) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a name", node.Line)
	}

	r.Value = node.Value
	r.Line = node.Line
	r.Col = node.Column
	return nil
}

// -----------------------------------------------------------------------------

// Load loads the program description at path.  All errors in the description
// are collected and returned.
func Load(path string) (*ir.Program, []*report.ConfigError) {
	f, err := os.Open(path)
	if err != nil {
		return nil, []*report.ConfigError{report.RaiseConfig(path, 0, 0, "%s", err)}
	}
	defer f.Close()

	return Decode(path, f)
}

// Decode decodes a program description read from r.  The path is only used to
// report errors.
func Decode(path string, r io.Reader) (*ir.Program, []*report.ConfigError) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	yp := &yamlProgram{}
	if err := dec.Decode(yp); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, []*report.ConfigError{report.RaiseConfig(path, 0, 0, "program description is empty")}
		}

		var terr *yaml.TypeError
		if errors.As(err, &terr) {
			errs := make([]*report.ConfigError, len(terr.Errors))
			for i, msg := range terr.Errors {
				errs[i] = report.RaiseConfig(path, 0, 0, "%s", msg)
			}

			return nil, errs
		}

		return nil, []*report.ConfigError{report.RaiseConfig(path, 0, 0, "%s", err)}
	}

	l := newLoader(path)
	return l.load(yp)
}
