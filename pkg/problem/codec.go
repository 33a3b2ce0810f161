package problem

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/matzehuels/vpsc/pkg/errors"
	"github.com/matzehuels/vpsc/pkg/solver"
)

// Format is a problem or result file encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
)

// Formats lists the supported formats.
var Formats = []Format{FormatJSON, FormatTOML, FormatYAML}

// ParseFormat parses a format name. "yml" is accepted for YAML.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "json":
		return FormatJSON, nil
	case "toml":
		return FormatTOML, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", errors.New(errors.ErrCodeInvalidFormat, "unsupported format %q (want json, toml or yaml)", s)
}

// FormatFromPath selects the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	if err := errors.ValidateProblemFilename(path); err != nil {
		return "", err
	}
	return ParseFormat(filepath.Ext(path))
}

// Read decodes a problem. Unknown fields are rejected. Parameters present
// in the input override the defaults field by field.
func Read(r io.Reader, format Format) (*Problem, error) {
	return ReadWithDefaults(r, format, solver.DefaultParameters())
}

// ReadWithDefaults is Read with a caller-supplied parameter base.
func ReadWithDefaults(r io.Reader, format Format, defaults solver.Parameters) (*Problem, error) {
	p := &Problem{Parameters: &defaults}
	if err := decode(r, format, p); err != nil {
		return nil, err
	}
	return p, nil
}

// ReadFile reads a problem, selecting the format from the file extension.
func ReadFile(path string) (*Problem, error) {
	return ReadFileWithDefaults(path, solver.DefaultParameters())
}

// ReadFileWithDefaults is ReadFile with a caller-supplied parameter base.
func ReadFileWithDefaults(path string, defaults solver.Parameters) (*Problem, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "problem file %s", path)
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	p, err := ReadWithDefaults(f, format, defaults)
	if err != nil {
		return nil, errors.Wrap(errors.GetCode(err), err, "read %s", path)
	}
	if p.Name == "" {
		p.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return p, nil
}

// Write encodes the problem.
func (p *Problem) Write(w io.Writer, format Format) error {
	return encode(w, format, p)
}

// WriteFile writes the problem, selecting the format from the file extension.
func (p *Problem) WriteFile(path string) error {
	return writeFile(path, p)
}

func writeFile(path string, v any) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := encode(&buf, format, v); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

func decode(r io.Reader, format Format, v any) error {
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(v); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidFormat, err, "decode json")
		}
	case FormatTOML:
		md, err := toml.NewDecoder(r).Decode(v)
		if err != nil {
			return errors.Wrap(errors.ErrCodeInvalidFormat, err, "decode toml")
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return errors.New(errors.ErrCodeInvalidFormat, "decode toml: unknown field %q", undecoded[0].String())
		}
	case FormatYAML:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(v); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidFormat, err, "decode yaml")
		}
	default:
		return errors.New(errors.ErrCodeInvalidFormat, "unsupported format %q", format)
	}
	return nil
}

func encode(w io.Writer, format Format, v any) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatTOML:
		return toml.NewEncoder(w).Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	return errors.New(errors.ErrCodeInvalidFormat, "unsupported format %q", format)
}
