package probe

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/praetorian-inc/capmatch/pkg/extractor"
	"github.com/praetorian-inc/capmatch/pkg/feature"
)

func TestLoadProbe_Valid(t *testing.T) {
	loader := NewLoader()

	validYAML := `probes:
  - id: android.net.socket
    name: open network socket
    description: outbound TCP connection
    scopes: [call, thread]
    feature:
      api: java.net.Socket.<init>
      description: socket constructor
`

	p, err := loader.LoadProbe([]byte(validYAML))
	if err != nil {
		t.Fatalf("LoadProbe failed: %v", err)
	}

	if p.ID != "android.net.socket" {
		t.Errorf("expected ID android.net.socket, got %s", p.ID)
	}
	if p.Name != "open network socket" {
		t.Errorf("expected name 'open network socket', got %s", p.Name)
	}
	if p.Description != "outbound TCP connection" {
		t.Errorf("expected description, got %q", p.Description)
	}
	if len(p.Scopes) != 2 || p.Scopes[0] != extractor.ScopeCall || p.Scopes[1] != extractor.ScopeThread {
		t.Errorf("expected scopes [call thread], got %v", p.Scopes)
	}
	if !p.Feature.Equal(feature.API("java.net.Socket.<init>")) {
		t.Errorf("unexpected feature %s", p.Feature)
	}
	if p.Feature.Description() != "socket constructor" {
		t.Errorf("expected feature description, got %q", p.Feature.Description())
	}
}

func TestLoadProbe_FeatureKinds(t *testing.T) {
	loader := NewLoader()

	tests := []struct {
		name string
		yaml string
		want feature.Feature
	}{
		{"string", `string: /tmp/x`, feature.String("/tmp/x")},
		{"regex via string", `string: /fo+/i`, feature.MustRegex("/fo+/i")},
		{"substring", `substring: /ECB/`, feature.Substring("/ECB/")},
		{"hex number", `number: 0x10`, feature.Number(16)},
		{"bytes", `bytes: 4D 5A`, feature.Bytes([]byte{0x4d, 0x5a})},
		{"os", `os: android`, feature.OS(feature.OSAndroid)},
		{"characteristic", `characteristic: nzxor`, feature.Characteristic("nzxor")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := "probes:\n  - id: p\n    name: p\n    feature:\n      " + tt.yaml + "\n"
			p, err := loader.LoadProbe([]byte(doc))
			if err != nil {
				t.Fatalf("LoadProbe failed: %v", err)
			}
			if !p.Feature.Equal(tt.want) {
				t.Errorf("got %s, want %s", p.Feature, tt.want)
			}
		})
	}
}

func TestLoadProbe_Errors(t *testing.T) {
	loader := NewLoader()

	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"invalid yaml", `this is not valid yaml: [[[`, "parse YAML"},
		{"two kinds", "probes:\n  - id: p\n    feature:\n      api: a\n      string: b\n", "both api and string"},
		{"no kind", "probes:\n  - id: p\n    feature:\n      description: d\n", "no kind"},
		{"scalar feature", "probes:\n  - id: p\n    feature: api\n", "mapping"},
		{"missing feature", "probes:\n  - id: p\n", "mapping"},
		{"nested value", "probes:\n  - id: p\n    feature:\n      api: [a, b]\n", "scalar"},
		{"unknown kind", "probes:\n  - id: p\n    feature:\n      mnemonic: mov\n", "unknown feature kind"},
		{"bad regex", "probes:\n  - id: p\n    feature:\n      regex: /[/\n", "invalid regular expression"},
		{"bad scope", "probes:\n  - id: p\n    scopes: [function]\n    feature:\n      api: a\n", "unknown scope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loader.LoadProbe([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected %q in error, got: %v", tt.wantErr, err)
			}
		})
	}
}

func TestLoadProbe_NoProbes(t *testing.T) {
	loader := NewLoader()

	_, err := loader.LoadProbe([]byte(`probes: []`))
	if !errors.Is(err, ErrNoProbes) {
		t.Errorf("expected ErrNoProbes, got %v", err)
	}
}

func TestLoadProbe_MultipleProbes(t *testing.T) {
	loader := NewLoader()

	multipleYAML := `probes:
  - id: a
    name: A
    feature: {api: a}
  - id: b
    name: B
    feature: {api: b}
`
	if _, err := loader.LoadProbe([]byte(multipleYAML)); err == nil {
		t.Error("expected error for multiple probes")
	}

	probes, err := loader.LoadProbes([]byte(multipleYAML))
	if err != nil {
		t.Fatalf("LoadProbes failed: %v", err)
	}
	if got := strings.Join(IDs(probes), ","); got != "a,b" {
		t.Errorf("expected a,b, got %s", got)
	}
}

func TestLoadBuiltin(t *testing.T) {
	probes, err := NewLoader().LoadBuiltin()
	if err != nil {
		t.Fatalf("LoadBuiltin failed: %v", err)
	}
	if len(probes) == 0 {
		t.Fatal("expected built-in probes")
	}
	if err := ValidateAll(probes); err != nil {
		t.Errorf("built-in probes are invalid: %v", err)
	}
}

func TestLoadBuiltin_CustomFS(t *testing.T) {
	fsys := fstest.MapFS{
		"probes/b.yml":     {Data: []byte("probes:\n  - id: b\n    name: B\n    feature: {api: b}\n")},
		"probes/a.yaml":    {Data: []byte("probes:\n  - id: a\n    name: A\n    feature: {api: a}\n")},
		"probes/empty.yml": {Data: []byte("probes: []\n")},
		"probes/notes.txt": {Data: []byte("ignored")},
	}

	probes, err := NewLoaderWithFS(fsys).LoadBuiltin()
	if err != nil {
		t.Fatalf("LoadBuiltin failed: %v", err)
	}
	if got := strings.Join(IDs(probes), ","); got != "a,b" {
		t.Errorf("expected lexical order a,b, got %s", got)
	}
}

func TestLoadPath(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "net")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	write := func(path, data string) {
		if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write(filepath.Join(dir, "fs.yml"), "probes:\n  - id: fs\n    name: fs\n    feature: {substring: /tmp/}\n")
	write(filepath.Join(sub, "socket.yaml"), "probes:\n  - id: sock\n    name: sock\n    feature: {api: connect}\n")

	loader := NewLoader()

	probes, err := loader.LoadPath(dir)
	if err != nil {
		t.Fatalf("LoadPath(dir) failed: %v", err)
	}
	if got := strings.Join(IDs(probes), ","); got != "fs,sock" {
		t.Errorf("expected fs,sock, got %s", got)
	}

	probes, err = loader.LoadPath(filepath.Join(sub, "socket.yaml"))
	if err != nil {
		t.Fatalf("LoadPath(file) failed: %v", err)
	}
	if len(probes) != 1 || probes[0].ID != "sock" {
		t.Errorf("unexpected probes %v", IDs(probes))
	}

	write(filepath.Join(sub, "broken.yml"), "probes:\n  - id: x\n    feature: {regex: \"/[/\"}\n")
	_, err = loader.LoadDir(dir)
	if err == nil || !strings.Contains(err.Error(), "broken.yml") {
		t.Errorf("expected error naming broken.yml, got %v", err)
	}

	if _, err := loader.LoadPath(filepath.Join(dir, "missing")); err == nil {
		t.Error("expected error for missing path")
	}
}

func TestProbe_AppliesAt(t *testing.T) {
	p := New(feature.API("open"))
	if p.ID != "api(open)" {
		t.Errorf("unexpected id %s", p.ID)
	}
	for _, s := range extractor.DynamicScopes {
		if !p.AppliesAt(s) {
			t.Errorf("probe without scopes should apply at %s", s)
		}
	}
	if p.AppliesAt(extractor.ScopeGlobal) {
		t.Error("probes are never evaluated at global scope")
	}

	p.Scopes = []extractor.Scope{extractor.ScopeCall}
	if !p.AppliesAt(extractor.ScopeCall) || p.AppliesAt(extractor.ScopeThread) {
		t.Errorf("scoped probe applies at wrong scopes")
	}
}
