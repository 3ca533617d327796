package workflow

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaSource string

// Format is a workflow definition encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatCUE  Format = "cue"
)

// FormatFromPath picks a format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	case ".cue":
		return FormatCUE, nil
	default:
		return "", fmt.Errorf("unsupported workflow file extension %q", filepath.Ext(path))
	}
}

// Definition is a workflow as written in a definition file.
type Definition struct {
	Name  string `json:"name,omitempty" yaml:"name,omitempty"`
	Steps []Step `json:"steps" yaml:"steps"`
}

// Graph constructs the definition's graph. It does not validate beyond New.
func (d *Definition) Graph() (*Graph, error) {
	return New(d.Steps)
}

// LoadFile reads a definition, choosing the decoder by extension.
func LoadFile(path string) (*Definition, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workflow: %w", err)
	}
	return Parse(data, format, filepath.Base(path))
}

// Parse decodes a definition. Unknown fields are rejected in every format.
// filename is only used in CUE error positions.
func Parse(data []byte, format Format, filename string) (*Definition, error) {
	var (
		def Definition
		err error
	)
	switch format {
	case FormatYAML:
		err = decodeYAML(data, &def)
	case FormatJSON:
		err = decodeJSON(data, &def)
	case FormatCUE:
		err = decodeCUE(data, filename, &def)
	default:
		err = fmt.Errorf("unsupported workflow format %q", format)
	}
	if err != nil {
		return nil, err
	}
	if len(def.Steps) == 0 {
		return nil, errors.New("parse workflow: no steps defined")
	}
	return &def, nil
}

func decodeYAML(data []byte, def *Definition) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(def); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse workflow yaml: %w", err)
	}
	return nil
}

func decodeJSON(data []byte, def *Definition) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(def); err != nil {
		return fmt.Errorf("parse workflow json: %w", err)
	}
	return nil
}

// decodeCUE unifies the file with the embedded #Workflow schema, so a
// misspelled field or a non-string dependency fails with a CUE position.
func decodeCUE(data []byte, filename string, def *Definition) error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile workflow schema: %w", err)
	}

	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return fmt.Errorf("parse workflow cue: %s", formatCUEError(err))
	}

	unified := schema.LookupPath(cue.ParsePath("#Workflow")).Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("validate workflow cue: %s", formatCUEError(err))
	}
	if err := unified.Decode(def); err != nil {
		return fmt.Errorf("decode workflow cue: %s", formatCUEError(err))
	}
	return nil
}

func formatCUEError(err error) string {
	var msgs []string
	for _, e := range cueerrors.Errors(err) {
		msg := e.Error()
		if pos := e.Position(); pos.IsValid() {
			msg = fmt.Sprintf("%s:%d:%d: %s", pos.Filename(), pos.Line(), pos.Column(), msg)
		}
		msgs = append(msgs, msg)
	}
	if len(msgs) == 0 {
		return err.Error()
	}
	return strings.Join(msgs, "; ")
}
