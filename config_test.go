package tumble

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, float32(0.5), cfg.Ball.Radius)
	assert.Equal(t, float32(4.0), cfg.Camera.Distance)
	assert.Equal(t, "kinematic", cfg.Level.BodyKind)

	bindings, err := cfg.Keys.Resolve()
	require.NoError(t, err)
	assert.Equal(t, KeyW, bindings.Forward)
	assert.Equal(t, KeyR, bindings.Restart)
	assert.Equal(t, Key1, bindings.OrbitCamera)
	assert.Equal(t, KeyF1, bindings.GrabCursor)
	assert.Equal(t, KeyEscape, bindings.Quit)
}

func TestLoadConfig_OverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"ball:\n  radius: 0.75\nlevel:\n  body_kind: static\n",
	), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, float32(0.75), cfg.Ball.Radius)
	assert.Equal(t, "static", cfg.Level.BodyKind)
	// Untouched sections keep their defaults
	assert.Equal(t, float32(4.0), cfg.Camera.Distance)
	assert.Equal(t, "w", cfg.Keys.Forward)
}

func TestLoadConfig_UnknownFieldIsError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("bal:\n  radius: 0.75\n"), 0o644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestKeyConfig_ResolveUnknownKey(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Keys.Restart = "not_a_key"

	_, err := cfg.Keys.Resolve()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not_a_key")
}

func TestKeyByName(t *testing.T) {
	cases := map[string]int{
		"w":      KeyW,
		"D":      KeyD,
		"1":      Key1,
		"f1":     KeyF1,
		"escape": KeyEscape,
		"esc":    KeyEscape,
		"ctrl":   KeyControl,
	}
	for name, want := range cases {
		got, ok := keyByName(name)
		if !ok || got != want {
			t.Errorf("keyByName(%q) = %v, %v; want %v", name, got, ok, want)
		}
	}

	if _, ok := keyByName("volcano"); ok {
		t.Errorf("keyByName accepted an unknown name")
	}
}
