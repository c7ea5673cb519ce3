package fluid

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadParams reads a YAML parameter file over DefaultParams and validates
// the result. Keys absent from the file keep their defaults; unknown keys
// are rejected.
//
// Example file:
//
//	velocity_resolution: 128
//	dye_resolution: 1024
//	curl_strength: 20
//	palette: ocean
func LoadParams(path string) (Params, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Params{}, fmt.Errorf("fluid: load params: %w", err)
	}
	p, err := ParseParams(data)
	if err != nil {
		return Params{}, fmt.Errorf("fluid: load params %s: %w", path, err)
	}
	return p, nil
}

// ParseParams decodes YAML parameters over DefaultParams and validates them.
// An empty document yields DefaultParams.
func ParseParams(data []byte) (Params, error) {
	p := DefaultParams()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		return Params{}, fmt.Errorf("%w: %w", ErrInvalidParams, err)
	}
	if err := p.Validate(); err != nil {
		return Params{}, err
	}
	return p, nil
}

// MarshalParams encodes p as YAML in the format LoadParams reads.
func MarshalParams(p Params) ([]byte, error) {
	return yaml.Marshal(p)
}
