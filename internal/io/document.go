package io

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.yaml.in/yaml/v3"
)

// WriteDocument writes v as indented JSON or YAML. format is "json",
// "yaml" or "auto", which picks YAML for .yaml/.yml files.
func WriteDocument(path, format string, v any) error {
	data, err := MarshalDocument(path, format, v)
	if err != nil {
		return err
	}
	if err := ensureDir(path); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadDocument decodes a JSON or YAML document written by WriteDocument
// into v. YAML keys follow the json tags of v.
func ReadDocument(path, format string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	actual, err := documentFormat(path, format)
	if err != nil {
		return err
	}
	if actual == "yaml" {
		var tree any
		if err := yaml.Unmarshal(data, &tree); err != nil {
			return fmt.Errorf("decode %s: %w", path, err)
		}
		if data, err = json.Marshal(tree); err != nil {
			return fmt.Errorf("decode %s: %w", path, err)
		}
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func documentFormat(path, format string) (string, error) {
	actual := strings.ToLower(strings.TrimSpace(format))
	switch actual {
	case "", "auto":
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			return "yaml", nil
		}
		return "json", nil
	case "json", "yaml":
		return actual, nil
	}
	return "", fmt.Errorf("unsupported document format: %q", format)
}

// MarshalDocument renders v the way WriteDocument would write it to path.
func MarshalDocument(path, format string, v any) ([]byte, error) {
	actual, err := documentFormat(path, format)
	if err != nil {
		return nil, err
	}
	if actual == "yaml" {
		// Round-trip through JSON so YAML keys follow the json tags.
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		var tree any
		if err := yaml.Unmarshal(raw, &tree); err != nil {
			return nil, err
		}
		return yaml.Marshal(tree)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
