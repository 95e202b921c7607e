package tumble

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

type BallComponent struct {
	Radius   float32
	InBounds bool
	SpawnPos mgl32.Vec3
	SpawnRot mgl32.Quat
}

// BallRegistry is the well-known handle to the singleton ball,
// maintained by the setup phase so per-tick systems never scan for it.
type BallRegistry struct {
	ball EntityId
	has  bool
}

func (r *BallRegistry) Ball() (EntityId, bool) {
	return r.ball, r.has
}

func (r *BallRegistry) setBall(eid EntityId) {
	r.ball = eid
	r.has = true
}

type boundsPhase int

const (
	boundsWaiting boundsPhase = iota
	boundsScheduled
	boundsArmed
	boundsDisabled
)

// BoundsState tracks the load stream independently of the collider
// attacher: "not yet loaded" and "loaded but no bottom node" are
// different conditions, and only the latter logs an error.
type BoundsState struct {
	phase      boundsPhase
	thresholdY float32
}

type BallModule struct {
	Radius      float32
	Spawn       mgl32.Vec3
	Restitution float32
}

func (m BallModule) Install(app *App, cmd *Commands) {
	registry := &BallRegistry{}
	cmd.AddResources(registry, &BoundsState{})

	radius := m.Radius
	if radius <= 0 {
		radius = 0.5
	}

	col := NewSphereCollider(radius)
	col.Restitution = m.Restitution

	spawnRot := mgl32.QuatIdent()
	eid := cmd.AddEntity(
		BallComponent{
			Radius:   radius,
			InBounds: true,
			SpawnPos: m.Spawn,
			SpawnRot: spawnRot,
		},
		TransformComponent{
			Position: m.Spawn,
			Rotation: spawnRot,
			Scale:    mgl32.Vec3{1, 1, 1},
		},
		RigidBodyComponent{
			Kind:         BodyDynamic,
			Mass:         1.0,
			GravityScale: 1.0,
		},
		col,
		ExternalForce{},
	)
	registry.setBall(eid)

	app.UseSystem(System(ballMeshSetupSystem).InStage(Prelude))
	app.UseSystem(System(ballControlSystem).InStage(Update))
	app.UseSystem(System(boundsMonitorSystem).InStage(Update))
	app.UseSystem(System(restartSystem).InStage(Update))
}

// ballMeshSetupSystem gives the ball its procedural sphere mesh once
// the asset server exists. The mesh is render data only; the collider
// is an analytic sphere.
func ballMeshSetupSystem(server *AssetServer, balls *BallRegistry, cmd *Commands) {
	ball, ok := balls.Ball()
	if !ok {
		return
	}
	if _, ok := GetComponent[MeshComponent](cmd, ball); ok {
		return
	}
	ballComp, ok := GetComponent[BallComponent](cmd, ball)
	if !ok {
		return
	}

	positions, indices := generateSphereMesh(ballComp.Radius, 16, 24)
	mesh := server.LoadMesh(positions, indices)
	cmd.AddComponents(ball, MeshComponent{Mesh: mesh})
}

// generateSphereMesh builds a latitude/longitude sphere.
func generateSphereMesh(radius float32, rings, segments int) ([]float32, []uint32) {
	var positions []float32
	for ring := 0; ring <= rings; ring++ {
		phi := math.Pi * float64(ring) / float64(rings)
		for seg := 0; seg <= segments; seg++ {
			theta := 2 * math.Pi * float64(seg) / float64(segments)
			x := float32(math.Sin(phi)*math.Cos(theta)) * radius
			y := float32(math.Cos(phi)) * radius
			z := float32(math.Sin(phi)*math.Sin(theta)) * radius
			positions = append(positions, x, y, z)
		}
	}

	var indices []uint32
	stride := uint32(segments + 1)
	for ring := uint32(0); ring < uint32(rings); ring++ {
		for seg := uint32(0); seg < uint32(segments); seg++ {
			a := ring*stride + seg
			b := a + stride
			indices = append(indices, a, b, a+1, a+1, b, b+1)
		}
	}
	return positions, indices
}

// ballControlSystem maps held movement keys to a world-space force
// relative to the orbit camera's yaw, flattened onto the ground plane.
// One key wins when several are held: forward beats back beats left
// beats right. The force is overwritten every tick, so releasing all
// keys zeroes it; without an orbit camera no force is applied.
func ballControlSystem(input *Input, bindings *KeyBindings, cfg *Config, balls *BallRegistry, cmd *Commands) {
	ball, ok := balls.Ball()
	if !ok {
		return
	}
	force, ok := GetComponent[ExternalForce](cmd, ball)
	if !ok {
		return
	}
	force.Force = mgl32.Vec3{}

	var camRot mgl32.Quat
	haveCam := false
	MakeQuery2[CameraComponent, CameraRigComponent](cmd).Map(func(eid EntityId, cam *CameraComponent, rig *CameraRigComponent) bool {
		if rig.Mode == CameraModeOrbit {
			camRot = cam.Rotation
			haveCam = true
			return false
		}
		return true
	})
	if !haveCam {
		return
	}

	forward := flattenDir(camRot.Rotate(mgl32.Vec3{0, 0, -1}))
	right := flattenDir(camRot.Rotate(mgl32.Vec3{1, 0, 0}))

	var dir mgl32.Vec3
	switch {
	case input.Pressed[bindings.Forward]:
		dir = forward
	case input.Pressed[bindings.Back]:
		dir = forward.Mul(-1)
	case input.Pressed[bindings.Left]:
		dir = right.Mul(-1)
	case input.Pressed[bindings.Right]:
		dir = right
	default:
		return
	}

	force.Force = dir.Mul(cfg.Ball.ForceScale)
}

func flattenDir(v mgl32.Vec3) mgl32.Vec3 {
	flat := mgl32.Vec3{v.X(), 0, v.Z()}
	if flat.Len() < 0.0001 {
		return mgl32.Vec3{}
	}
	return flat.Normalize()
}

// boundsMonitorSystem resolves the "bottom" threshold node once per
// load cycle and fires the fall sequence the first tick the ball dips
// below it. The InBounds flag debounces: while the ball stays below,
// nothing further happens until a restart re-arms it.
func boundsMonitorSystem(assets *SceneAssets, state *BoundsState, balls *BallRegistry, audio *AudioServer, log *DefaultLogger, cmd *Commands) {
	for _, ev := range assets.Events {
		switch ev.Kind {
		case SceneAssetReloading:
			state.phase = boundsWaiting
		case SceneAssetLoaded:
			state.phase = boundsScheduled
		}
	}
	if len(assets.Events) > 0 {
		// Same one-tick settle as the collider attacher: child
		// transforms are not world-resolved on the load tick.
		return
	}

	switch state.phase {
	case boundsScheduled:
		found := false
		MakeQuery2[NameComponent, TransformComponent](cmd).Map(func(eid EntityId, name *NameComponent, tr *TransformComponent) bool {
			if name.Name == bottomNodeName {
				state.thresholdY = tr.Position.Y()
				found = true
				return false
			}
			return true
		})
		if found {
			state.phase = boundsArmed
		} else {
			log.Errorf("level has no %q node, fall detection disabled until next load", bottomNodeName)
			state.phase = boundsDisabled
		}
		return
	case boundsArmed:
	default:
		return
	}

	ball, ok := balls.Ball()
	if !ok {
		return
	}
	ballComp, ok := GetComponent[BallComponent](cmd, ball)
	if !ok {
		return
	}
	tr, ok := GetComponent[TransformComponent](cmd, ball)
	if !ok {
		return
	}

	if ballComp.InBounds && tr.Position.Y() < state.thresholdY {
		ballComp.InBounds = false
		SpawnBanner(cmd, BannerFall, "You fell! Press R to restart", [4]float32{1, 0.3, 0.2, 1})
		audio.PlayCue(CueFall)
	}
}

// restartSystem resets every ball to its recorded spawn pose with zero
// velocity and clears the fall banner. The reset goes through the
// physics proxy so the solver cannot overwrite it this tick. Beyond
// replaying the cue, restarting with no fall state is a no-op.
func restartSystem(input *Input, bindings *KeyBindings, proxy *PhysicsProxy, audio *AudioServer, cmd *Commands) {
	if !input.JustPressed[bindings.Restart] {
		return
	}

	MakeQuery2[BallComponent, TransformComponent](cmd).Map(func(eid EntityId, ball *BallComponent, tr *TransformComponent) bool {
		ball.InBounds = true
		proxy.ResetBody(eid, ball.SpawnPos, ball.SpawnRot)
		return true
	})

	audio.PlayCue(CueRestart)
	DespawnBanners(cmd, BannerFall)
}
