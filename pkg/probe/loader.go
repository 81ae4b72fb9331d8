package probe

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/praetorian-inc/capmatch/pkg/extractor"
	"github.com/praetorian-inc/capmatch/pkg/feature"
)

// ErrNoProbes is returned when a YAML document defines no probes.
var ErrNoProbes = errors.New("no probes found in YAML")

// Loader handles loading probes from YAML files.
type Loader struct {
	fs fs.FS // embedded filesystem for built-in probes
}

// NewLoader creates a loader with built-in probes from the embedded filesystem.
func NewLoader() *Loader {
	return &Loader{
		fs: builtinProbesFS,
	}
}

// NewLoaderWithFS creates a loader with a custom filesystem for built-ins.
func NewLoaderWithFS(fsys fs.FS) *Loader {
	return &Loader{
		fs: fsys,
	}
}

// LoadProbe loads a single probe from YAML bytes.
// Returns error if YAML is invalid or multiple probes are present.
func (l *Loader) LoadProbe(data []byte) (*Probe, error) {
	probes, err := l.LoadProbes(data)
	if err != nil {
		return nil, err
	}
	if len(probes) > 1 {
		return nil, fmt.Errorf("expected single probe, found %d", len(probes))
	}
	return probes[0], nil
}

// LoadProbes loads every probe from YAML bytes.
func (l *Loader) LoadProbes(data []byte) ([]*Probe, error) {
	var yamlFile yamlProbesFile
	if err := yaml.Unmarshal(data, &yamlFile); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if len(yamlFile.Probes) == 0 {
		return nil, ErrNoProbes
	}

	probes := make([]*Probe, 0, len(yamlFile.Probes))
	for _, yp := range yamlFile.Probes {
		p, err := convertYAMLProbe(yp)
		if err != nil {
			return nil, err
		}
		probes = append(probes, p)
	}
	return probes, nil
}

// LoadFile loads the probes of a YAML file.
func (l *Loader) LoadFile(path string) ([]*Probe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	probes, err := l.LoadProbes(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return probes, nil
}

// LoadDir loads every .yml and .yaml file under dir in lexical order.
func (l *Loader) LoadDir(dir string) ([]*Probe, error) {
	return l.loadTree(os.DirFS(dir), ".", dir)
}

// LoadPath loads a probe file, or every probe file under a directory.
func (l *Loader) LoadPath(path string) ([]*Probe, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return l.LoadDir(path)
	}
	return l.LoadFile(path)
}

// LoadBuiltin loads all built-in probes from the embedded filesystem.
func (l *Loader) LoadBuiltin() ([]*Probe, error) {
	return l.loadTree(l.fs, "probes", "builtin")
}

func (l *Loader) loadTree(fsys fs.FS, root, label string) ([]*Probe, error) {
	var probes []*Probe

	err := fs.WalkDir(fsys, root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isYAML(path) {
			return nil
		}

		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}

		loaded, err := l.LoadProbes(data)
		if errors.Is(err, ErrNoProbes) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%s: %w", filepath.Join(label, path), err)
		}
		probes = append(probes, loaded...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return probes, nil
}

func isYAML(path string) bool {
	ext := filepath.Ext(path)
	return ext == ".yml" || ext == ".yaml"
}

// convertYAMLProbe converts yamlProbe to Probe, parsing the feature and scopes.
func convertYAMLProbe(yp yamlProbe) (*Probe, error) {
	f, err := convertYAMLFeature(&yp.Feature)
	if err != nil {
		return nil, fmt.Errorf("probe %q: %w", yp.ID, err)
	}

	p := &Probe{
		ID:          yp.ID,
		Name:        yp.Name,
		Description: yp.Description,
		Feature:     f,
	}
	for _, name := range yp.Scopes {
		s, err := extractor.ParseScope(name)
		if err != nil {
			return nil, fmt.Errorf("probe %q: %w", yp.ID, err)
		}
		p.Scopes = append(p.Scopes, s)
	}
	return p, nil
}

func convertYAMLFeature(node *yaml.Node) (feature.Feature, error) {
	if node.Kind != yaml.MappingNode {
		return feature.Feature{}, errors.New("feature must be a mapping of kind to value")
	}

	var kind, value, description string
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		if val.Kind != yaml.ScalarNode {
			return feature.Feature{}, fmt.Errorf("feature %s: value must be a scalar", key.Value)
		}
		if key.Value == "description" {
			description = val.Value
			continue
		}
		if kind != "" {
			return feature.Feature{}, fmt.Errorf("feature has both %s and %s", kind, key.Value)
		}
		kind, value = key.Value, val.Value
	}
	if kind == "" {
		return feature.Feature{}, errors.New("feature has no kind")
	}

	f, err := feature.Parse(kind, value)
	if err != nil {
		return feature.Feature{}, err
	}
	return f.WithDescription(description), nil
}
