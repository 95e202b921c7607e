package tumble

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the YAML game configuration. Zero values fall back to the
// defaults below, so a partial file is fine.
type Config struct {
	Window WindowConfig `yaml:"window"`
	Level  LevelConfig  `yaml:"level"`
	Ball   BallConfig   `yaml:"ball"`
	Camera CameraConfig `yaml:"camera"`
	Audio  AudioConfig  `yaml:"audio"`
	Keys   KeyConfig    `yaml:"keys"`
}

type WindowConfig struct {
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	Title  string `yaml:"title"`
}

type LevelConfig struct {
	Path string `yaml:"path"`
	// BodyKind selects the body attached to collider_ parents:
	// "kinematic" for levels with animated geometry, "static" for
	// levels that never move.
	BodyKind string `yaml:"body_kind"`
}

type BallConfig struct {
	Radius     float32    `yaml:"radius"`
	ForceScale float32    `yaml:"force_scale"`
	Spawn      [3]float32 `yaml:"spawn"`
}

type CameraConfig struct {
	Distance    float32 `yaml:"distance"`
	Sensitivity float32 `yaml:"sensitivity"`
}

type AudioConfig struct {
	Disabled    bool    `yaml:"disabled"`
	RollingGain float32 `yaml:"rolling_gain"`
}

type KeyConfig struct {
	Forward     string `yaml:"forward"`
	Back        string `yaml:"back"`
	Left        string `yaml:"left"`
	Right       string `yaml:"right"`
	Restart     string `yaml:"restart"`
	OrbitCamera string `yaml:"orbit_camera"`
	FlyCamera   string `yaml:"fly_camera"`
	GrabCursor  string `yaml:"grab_cursor"`
	Quit        string `yaml:"quit"`
}

func DefaultConfig() Config {
	return Config{
		Window: WindowConfig{Width: 1280, Height: 720, Title: "Tumble"},
		Level:  LevelConfig{Path: "assets/levels/ring.gltf", BodyKind: "kinematic"},
		Ball:   BallConfig{Radius: 0.5, ForceScale: 2.0, Spawn: [3]float32{0, 1, 0}},
		Camera: CameraConfig{Distance: 4.0, Sensitivity: 0.000002},
		Audio:  AudioConfig{RollingGain: 0.08},
		Keys: KeyConfig{
			Forward:     "w",
			Back:        "s",
			Left:        "a",
			Right:       "d",
			Restart:     "r",
			OrbitCamera: "1",
			FlyCamera:   "2",
			GrabCursor:  "f1",
			Quit:        "escape",
		},
	}
}

// LoadConfig reads a YAML config file and overlays it on the defaults.
// Unknown fields are a config error.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}

	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	return cfg, nil
}

// KeyBindings is the resolved, engine-key form of KeyConfig, installed
// as a resource.
type KeyBindings struct {
	Forward     int
	Back        int
	Left        int
	Right       int
	Restart     int
	OrbitCamera int
	FlyCamera   int
	GrabCursor  int
	Quit        int
}

func (k KeyConfig) Resolve() (KeyBindings, error) {
	bindings := KeyBindings{}
	fields := []struct {
		name string
		src  string
		dst  *int
	}{
		{"forward", k.Forward, &bindings.Forward},
		{"back", k.Back, &bindings.Back},
		{"left", k.Left, &bindings.Left},
		{"right", k.Right, &bindings.Right},
		{"restart", k.Restart, &bindings.Restart},
		{"orbit_camera", k.OrbitCamera, &bindings.OrbitCamera},
		{"fly_camera", k.FlyCamera, &bindings.FlyCamera},
		{"grab_cursor", k.GrabCursor, &bindings.GrabCursor},
		{"quit", k.Quit, &bindings.Quit},
	}

	for _, f := range fields {
		key, ok := keyByName(f.src)
		if !ok {
			return bindings, fmt.Errorf("key binding %s: unknown key name %q", f.name, f.src)
		}
		*f.dst = key
	}
	return bindings, nil
}

// keyByName maps a config key name ("w", "f1", "escape", "1") to the
// engine key constant.
func keyByName(name string) (int, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if len(name) == 1 {
		c := name[0]
		switch {
		case c >= 'a' && c <= 'z':
			return KeyA + int(c-'a'), true
		case c >= '0' && c <= '9':
			return Key0 + int(c-'0'), true
		}
	}
	switch name {
	case "space":
		return KeySpace, true
	case "enter":
		return KeyEnter, true
	case "escape", "esc":
		return KeyEscape, true
	case "tab":
		return KeyTab, true
	case "shift":
		return KeyShift, true
	case "control", "ctrl":
		return KeyControl, true
	case "up":
		return KeyUp, true
	case "down":
		return KeyDown, true
	case "left_arrow":
		return KeyLeft, true
	case "right_arrow":
		return KeyRight, true
	case "f1":
		return KeyF1, true
	case "f2":
		return KeyF2, true
	case "f3":
		return KeyF3, true
	case "f4":
		return KeyF4, true
	}
	return 0, false
}

// ConfigModule installs the Config and the resolved KeyBindings as
// resources. Bad key names are an init-time defect.
type ConfigModule struct {
	Config Config
}

func (m ConfigModule) Install(app *App, cmd *Commands) {
	cfg := m.Config
	bindings, err := cfg.Keys.Resolve()
	if err != nil {
		panic(err)
	}
	cmd.AddResources(&cfg, &bindings)
}
