package provenance

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// policyDocument is the on-disk shape of a policy, following the same
// plain-struct-plus-yaml-tags convention the rest of this service uses for
// configuration (internal/config.Config).
type policyDocument struct {
	Edges map[string][]string `yaml:"edges"`
}

// LoadPolicyYAML reads a string-keyed Policy from a YAML file shaped like:
//
//	edges:
//	  IDLE: [INIT, ERROR, TERMINATED]
//	  INIT: [GOAL_PARSE, ERROR, TERMINATED, IDLE]
//
// so that a deployment can ship its transition graph as data instead of Go
// code, the way sub-domain policies (persona evolution, content pipelines)
// are expected to.
func LoadPolicyYAML(path string) (*Policy[string], error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file %s: %w", path, err)
	}
	var doc policyDocument
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse policy file %s: %w", path, err)
	}
	return NewPolicy(doc.Edges), nil
}
