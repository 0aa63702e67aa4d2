package routes

import (
	"fmt"
	"path/filepath"
	"strings"

	kjson "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type fileDoc struct {
	Routes Table `koanf:"routes"`
}

// LoadFile reads a route table from a YAML, JSON or TOML document of the form
//
//	routes:
//	  - path: /dni
//	    upstream: /v1/dni
//	    required: [dni]
//
// A route without an upstream path forwards to its own path.
func LoadFile(path string) (Table, error) {
	parser, err := parserFor(path)
	if err != nil {
		return nil, err
	}
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, fmt.Errorf("routes: load %s: %w", path, err)
	}

	var doc fileDoc
	if err := k.Unmarshal("", &doc); err != nil {
		return nil, fmt.Errorf("routes: decode %s: %w", path, err)
	}
	for i := range doc.Routes {
		if doc.Routes[i].Upstream == "" {
			doc.Routes[i].Upstream = doc.Routes[i].Path
		}
	}
	if err := doc.Routes.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc.Routes, nil
}

// Load returns the table in path, or Default when path is empty.
func Load(path string) (Table, error) {
	if path == "" {
		return Default, nil
	}
	return LoadFile(path)
}

func parserFor(path string) (koanf.Parser, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	case ".json":
		return kjson.Parser(), nil
	case ".toml":
		return toml.Parser(), nil
	default:
		return nil, fmt.Errorf("routes: unsupported file extension %q", ext)
	}
}
