package federation

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSharedVersion_JSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    SharedVersion
		wantErr bool
	}{
		{"Version range", `"^2.0.0"`, SharedRange("^2.0.0"), false},
		{"Flag true", `true`, SharedFlag(true), false},
		{"Flag false", `false`, SharedFlag(false), false},
		{"Number", `2`, SharedVersion{}, true},
		{"Object", `{"requiredVersion":"^1"}`, SharedVersion{}, true},
		{"Null", `null`, SharedVersion{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got SharedVersion
			err := json.Unmarshal([]byte(tt.input), &got)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			encoded, err := json.Marshal(got)
			require.NoError(t, err)
			assert.JSONEq(t, tt.input, string(encoded))
		})
	}
}

func TestSharedVersion_String(t *testing.T) {
	assert.Equal(t, "^18.2.0", SharedRange("^18.2.0").String())
	assert.Equal(t, "true", SharedFlag(true).String())
	assert.Equal(t, "false", SharedFlag(false).String())
}

func TestManifest_OmitsEmptyFields(t *testing.T) {
	data, err := NewManifest(Config{
		Remotes: map[string]string{"pkg-a": "https://cdn/a.js"},
	}).Encode()
	require.NoError(t, err)

	assert.Equal(t, `{"remotes":{"pkg-a":"https://cdn/a.js"}}`, string(data))
}

func TestManifest_KeepsEmptyMaps(t *testing.T) {
	cfg := Config{
		Exposes: map[string]string{},
		Remotes: map[string]string{"pkg-a": "https://cdn/a.js"},
	}

	data, err := NewManifest(cfg).Encode()
	require.NoError(t, err)
	assert.Equal(t, `{"exposes":{},"remotes":{"pkg-a":"https://cdn/a.js"}}`, string(data))

	decoded, err := DecodeManifest(data)
	require.NoError(t, err)
	assert.NotNil(t, decoded.Exposes)
	assert.Empty(t, decoded.Exposes)
	assert.Nil(t, decoded.Shared)
	assert.Equal(t, cfg, decoded.Config())
}

func TestManifest_DoesNotEscapeHTML(t *testing.T) {
	data, err := NewManifest(Config{
		Remotes: map[string]string{"pkg-a": "https://cdn/a.js?x=1&y=2"},
		Shared:  map[string]SharedVersion{"lib": SharedRange(">=1 <2")},
	}).Encode()
	require.NoError(t, err)

	assert.Equal(t, `{"remotes":{"pkg-a":"https://cdn/a.js?x=1&y=2"},"shared":{"lib":">=1 <2"}}`, string(data))
}

func TestManifest_EncodeIndent(t *testing.T) {
	data, err := NewManifest(Config{
		Remotes: map[string]string{"pkg-a": "https://cdn/a.js?x=1&y=2"},
	}).EncodeIndent()
	require.NoError(t, err)

	assert.Equal(t, "{\n  \"remotes\": {\n    \"pkg-a\": \"https://cdn/a.js?x=1&y=2\"\n  }\n}", string(data))
}

func TestConfig_MarshalMatchesManifest(t *testing.T) {
	cfg := Config{Exposes: map[string]string{}, ShareScope: "default"}

	data, err := json.Marshal(cfg)
	require.NoError(t, err)
	assert.JSONEq(t, `{"exposes":{},"shareScope":"default"}`, string(data))
}

func TestManifest_StableEncoding(t *testing.T) {
	cfg := Config{
		Exposes: map[string]string{"./b": "b.js", "./a": "a.js", "./c": "c.js"},
		Shared:  map[string]SharedVersion{"z": SharedFlag(true), "a": SharedRange("1")},
	}

	first, err := NewManifest(cfg).Encode()
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := NewManifest(cfg).Encode()
		require.NoError(t, err)
		assert.Equal(t, string(first), string(again))
	}
	assert.Equal(t, `{"exposes":{"./a":"a.js","./b":"b.js","./c":"c.js"},"shared":{"a":"1","z":true}}`, string(first))
}

func TestManifest_SnapshotIsIndependent(t *testing.T) {
	cfg := Config{Remotes: map[string]string{"pkg-a": "https://cdn/a.js"}}
	m := NewManifest(cfg)

	cfg.Remotes["pkg-a"] = "https://changed/a.js"
	assert.Equal(t, "https://cdn/a.js", m.Remotes["pkg-a"])
}

func TestDecodeManifest_Invalid(t *testing.T) {
	_, err := DecodeManifest([]byte(`{"shared":{"lib":1}}`))
	assert.Error(t, err)

	_, err = DecodeManifest([]byte(`not json`))
	assert.Error(t, err)
}
