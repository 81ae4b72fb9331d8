package probe

import "gopkg.in/yaml.v3"

// yamlProbe is the intermediate struct for parsing a probe.
// The feature mapping holds one kind key plus an optional description:
//
//	feature:
//	  api: java.net.Socket.<init>
//	  description: outbound connection
type yamlProbe struct {
	ID          string    `yaml:"id"`
	Name        string    `yaml:"name"`
	Description string    `yaml:"description,omitempty"`
	Scopes      []string  `yaml:"scopes,omitempty"`
	Feature     yaml.Node `yaml:"feature"`
}

// yamlProbesFile is the top-level structure of a probes YAML file.
type yamlProbesFile struct {
	Probes []yamlProbe `yaml:"probes"`
}
