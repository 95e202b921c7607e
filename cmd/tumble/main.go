package main

import (
	"flag"
	"os"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/tumble3d/tumble"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	cfg := tumble.DefaultConfig()
	if *configPath != "" {
		loaded, err := tumble.LoadConfig(*configPath)
		if err != nil {
			os.Stderr.WriteString(err.Error() + "\n")
			os.Exit(1)
		}
		cfg = loaded
	}

	spawn := mgl32.Vec3{cfg.Ball.Spawn[0], cfg.Ball.Spawn[1], cfg.Ball.Spawn[2]}

	app := tumble.NewAppBuilder().
		UseModule(
			tumble.LoggingModule{Prefix: "tumble", Debug: *debug},
			tumble.TimeModule{},
			tumble.NewPlatformWindow(cfg.Window.Width, cfg.Window.Height, cfg.Window.Title),
			tumble.InputModule{},
			tumble.ConfigModule{Config: cfg},
			tumble.GameControlModule{},
			tumble.AssetServerModule{},
			tumble.SceneModule{Path: cfg.Level.Path, Watch: true},
			tumble.ScenePhysicsModule{},
			tumble.AudioModule{Disabled: cfg.Audio.Disabled},
			tumble.BallModule{
				Radius:      cfg.Ball.Radius,
				Spawn:       spawn,
				Restitution: 0.3,
			},
			tumble.CameraModule{},
			tumble.PhysicsModule{},
			tumble.GoalModule{},
			tumble.OverlayModule{ShowClock: true},
			tumble.HierarchyModule{},
		).
		Build()

	app.Run()
}
