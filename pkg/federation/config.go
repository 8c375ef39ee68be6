package federation

import (
	"encoding/json"
	"fmt"
)

// Config is the federation configuration a Plugin is constructed with.
// Every field is optional and nothing is validated up front: a bad remote URL
// or a missing exposed file only shows up when a hook uses it.
type Config struct {
	Exposes    map[string]string        `json:"exposes"`
	Remotes    map[string]string        `json:"remotes"`
	Shared     map[string]SharedVersion `json:"shared"`
	ShareScope string                   `json:"shareScope,omitempty"`
}

// MarshalJSON encodes the configuration the same way as its manifest.
func (c Config) MarshalJSON() ([]byte, error) {
	return NewManifest(c).MarshalJSON()
}

// SharedVersion is a shared-module entry: either a version range such as
// "^2.0.0" or a plain boolean flag.
type SharedVersion struct {
	Version string
	Flag    bool
	IsFlag  bool
}

// SharedRange returns a version-string entry.
func SharedRange(version string) SharedVersion {
	return SharedVersion{Version: version}
}

// SharedFlag returns a boolean entry.
func SharedFlag(enabled bool) SharedVersion {
	return SharedVersion{Flag: enabled, IsFlag: true}
}

func (v SharedVersion) String() string {
	if v.IsFlag {
		return fmt.Sprintf("%t", v.Flag)
	}
	return v.Version
}

// MarshalJSON encodes the entry as a JSON string or bool.
func (v SharedVersion) MarshalJSON() ([]byte, error) {
	if v.IsFlag {
		return json.Marshal(v.Flag)
	}
	return marshalUnescaped(v.Version)
}

// UnmarshalJSON accepts a JSON string or bool.
func (v *SharedVersion) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to parse shared entry: %w", err)
	}

	switch val := raw.(type) {
	case string:
		*v = SharedRange(val)
	case bool:
		*v = SharedFlag(val)
	default:
		return fmt.Errorf("shared entry must be a version string or bool, got %T", raw)
	}
	return nil
}

// Clone returns a deep copy so the plugin never shares maps with its caller.
func (c Config) Clone() Config {
	out := Config{ShareScope: c.ShareScope}
	if c.Exposes != nil {
		out.Exposes = make(map[string]string, len(c.Exposes))
		for k, v := range c.Exposes {
			out.Exposes[k] = v
		}
	}
	if c.Remotes != nil {
		out.Remotes = make(map[string]string, len(c.Remotes))
		for k, v := range c.Remotes {
			out.Remotes[k] = v
		}
	}
	if c.Shared != nil {
		out.Shared = make(map[string]SharedVersion, len(c.Shared))
		for k, v := range c.Shared {
			out.Shared[k] = v
		}
	}
	return out
}
