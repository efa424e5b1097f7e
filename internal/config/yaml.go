// ABOUTME: koanf parser backed by gopkg.in/yaml.v3
// ABOUTME: Lets the same config schema be written as YAML instead of TOML
package config

import (
	"gopkg.in/yaml.v3"
)

// YAML implements koanf.Parser
type YAML struct{}

// YAMLParser returns a YAML parser
func YAMLParser() *YAML {
	return &YAML{}
}

// Unmarshal parses YAML bytes into a nested map
func (p *YAML) Unmarshal(b []byte) (map[string]interface{}, error) {
	var out map[string]interface{}
	if err := yaml.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = make(map[string]interface{})
	}
	return out, nil
}

// Marshal encodes a nested map as YAML
func (p *YAML) Marshal(o map[string]interface{}) ([]byte, error) {
	return yaml.Marshal(o)
}
