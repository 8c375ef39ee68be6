package federation

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ManifestName is the artifact emitted at the end of every build.
const ManifestName = "federated-modules.json"

// PluginName identifies this plugin to the host.
const PluginName = "ModuleFederationPlugin"

// Manifest is the emitted description of a build's federation setup. It
// echoes the configuration; it does not record which entries were used.
//
// A nil map is left out of the encoded document while an empty one is kept
// as {}, so a manifest decodes back to the configuration it came from.
type Manifest struct {
	Exposes    map[string]string        `json:"exposes"`
	Remotes    map[string]string        `json:"remotes"`
	Shared     map[string]SharedVersion `json:"shared"`
	ShareScope string                   `json:"shareScope,omitempty"`
}

type manifestDocument struct {
	Exposes    *map[string]string        `json:"exposes,omitempty"`
	Remotes    *map[string]string        `json:"remotes,omitempty"`
	Shared     *map[string]SharedVersion `json:"shared,omitempty"`
	ShareScope string                    `json:"shareScope,omitempty"`
}

// NewManifest snapshots cfg.
func NewManifest(cfg Config) Manifest {
	c := cfg.Clone()
	return Manifest{
		Exposes:    c.Exposes,
		Remotes:    c.Remotes,
		Shared:     c.Shared,
		ShareScope: c.ShareScope,
	}
}

// MarshalJSON omits nil maps and keeps empty ones.
func (m Manifest) MarshalJSON() ([]byte, error) {
	doc := manifestDocument{ShareScope: m.ShareScope}
	if m.Exposes != nil {
		doc.Exposes = &m.Exposes
	}
	if m.Remotes != nil {
		doc.Remotes = &m.Remotes
	}
	if m.Shared != nil {
		doc.Shared = &m.Shared
	}
	return marshalUnescaped(doc)
}

// Encode serializes the manifest. Map keys are sorted by encoding/json, so
// the output is stable across builds.
func (m Manifest) Encode() ([]byte, error) {
	data, err := marshalUnescaped(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode manifest: %w", err)
	}
	return data, nil
}

// EncodeIndent is Encode with two-space indentation.
func (m Manifest) EncodeIndent() ([]byte, error) {
	data, err := m.Encode()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return nil, fmt.Errorf("failed to indent manifest: %w", err)
	}
	return buf.Bytes(), nil
}

// Config converts the manifest back into a federation configuration.
func (m Manifest) Config() Config {
	return Config{
		Exposes:    m.Exposes,
		Remotes:    m.Remotes,
		Shared:     m.Shared,
		ShareScope: m.ShareScope,
	}.Clone()
}

// DecodeManifest parses a manifest document.
func DecodeManifest(data []byte) (Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return m, nil
}

// marshalUnescaped is json.Marshal without HTML escaping, so URLs keep their
// literal & < > characters.
func marshalUnescaped(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
