// Package casefile reads site cases written by hand for offline assessment.
package casefile

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/couchcryptid/vent-capacity-service/internal/domain"
	"gopkg.in/yaml.v3"
)

// Format is a case file encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
	FormatJSON Format = "json"
)

// ErrUnsupportedFormat is returned for a file extension with no decoder.
var ErrUnsupportedFormat = errors.New("unsupported case file format")

// FormatFromPath picks the format by file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// Load reads and decodes the case file at path.
func Load(path string) (domain.AssessmentRequest, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return domain.AssessmentRequest{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		return domain.AssessmentRequest{}, fmt.Errorf("open case file: %w", err)
	}
	defer f.Close()

	req, err := Decode(f, format)
	if err != nil {
		return domain.AssessmentRequest{}, fmt.Errorf("%s: %w", path, err)
	}
	return req, nil
}

// LoadSite reads a case file and validates it into engine inputs.
func LoadSite(path string) (domain.Site, error) {
	req, err := Load(path)
	if err != nil {
		return domain.Site{}, err
	}
	return req.ToSite()
}

// Decode reads one case in the given format. Unknown keys are rejected so a
// misspelled field never silently drops an input.
func Decode(r io.Reader, format Format) (domain.AssessmentRequest, error) {
	var req domain.AssessmentRequest
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			return req, fmt.Errorf("decode yaml case: %w", err)
		}
	case FormatTOML:
		md, err := toml.NewDecoder(r).Decode(&req)
		if err != nil {
			return req, fmt.Errorf("decode toml case: %w", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return req, fmt.Errorf("decode toml case: unknown keys %v", undecoded)
		}
	case FormatJSON:
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			return req, fmt.Errorf("decode json case: %w", err)
		}
	default:
		return req, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	return req, nil
}
