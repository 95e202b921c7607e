package tumble

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func spawnTestBall(cmd *Commands, registry *BallRegistry, pos mgl32.Vec3) EntityId {
	eid := cmd.AddEntity(
		BallComponent{
			Radius:   0.5,
			InBounds: true,
			SpawnPos: pos,
			SpawnRot: mgl32.QuatIdent(),
		},
		TransformComponent{
			Position: pos,
			Rotation: mgl32.QuatIdent(),
			Scale:    mgl32.Vec3{1, 1, 1},
		},
		RigidBodyComponent{Kind: BodyDynamic, Mass: 1, GravityScale: 1},
		ExternalForce{},
	)
	registry.setBall(eid)
	return eid
}

func TestBoundsMonitor_FallFiresOnce(t *testing.T) {
	app := NewAppBuilder().Build()
	cmd := app.Commands()
	registry := &BallRegistry{}
	state := &BoundsState{}
	assets := &SceneAssets{}
	audio := &AudioServer{}
	log := NewQuietLogger()

	ball := spawnTestBall(cmd, registry, mgl32.Vec3{0, 1, 0})
	cmd.AddEntity(
		NameComponent{Name: "bottom"},
		TransformComponent{Position: mgl32.Vec3{0, -5, 0}, Rotation: mgl32.QuatIdent(), Scale: mgl32.Vec3{1, 1, 1}},
	)
	app.FlushCommands()

	tick := func() {
		boundsMonitorSystem(assets, state, registry, audio, log, cmd)
		app.FlushCommands()
		assets.Events = nil
	}

	// Loaded event, then the settle tick resolves the threshold
	assets.Events = []SceneAssetEvent{{Kind: SceneAssetLoaded}}
	tick()
	tick()
	assert.Equal(t, boundsArmed, state.phase)
	assert.Equal(t, float32(-5), state.thresholdY)

	// Above the threshold: nothing happens
	tick()
	assert.Empty(t, audio.Recorded())

	// Drop below: flag clears, banner spawns, fall cue plays, once
	tr, _ := GetComponent[TransformComponent](cmd, ball)
	tr.Position = mgl32.Vec3{0, -6, 0}
	tick()

	ballComp, _ := GetComponent[BallComponent](cmd, ball)
	assert.False(t, ballComp.InBounds)
	assert.True(t, HasBanner(cmd, BannerFall))
	assert.Equal(t, []CueKind{CueFall}, audio.Recorded())

	// Still below for many ticks: debounced by the flag
	tick()
	tick()
	tick()
	assert.Equal(t, []CueKind{CueFall}, audio.Recorded())

	fallBanners := 0
	MakeQuery1[Banner](cmd).Map(func(eid EntityId, b *Banner) bool {
		if b.Kind == BannerFall {
			fallBanners++
		}
		return true
	})
	assert.Equal(t, 1, fallBanners)
}

func TestBoundsMonitor_MissingBottomDisables(t *testing.T) {
	app := NewAppBuilder().Build()
	cmd := app.Commands()
	registry := &BallRegistry{}
	state := &BoundsState{}
	assets := &SceneAssets{}
	audio := &AudioServer{}
	log := NewQuietLogger()

	spawnTestBall(cmd, registry, mgl32.Vec3{0, -100, 0})
	app.FlushCommands()

	assets.Events = []SceneAssetEvent{{Kind: SceneAssetLoaded}}
	boundsMonitorSystem(assets, state, registry, audio, log, cmd)
	assets.Events = nil
	boundsMonitorSystem(assets, state, registry, audio, log, cmd)

	assert.Equal(t, boundsDisabled, state.phase)

	// Disabled means no fall detection, however deep the ball is
	boundsMonitorSystem(assets, state, registry, audio, log, cmd)
	assert.Empty(t, audio.Recorded())

	// The next load cycle retries
	assets.Events = []SceneAssetEvent{{Kind: SceneAssetLoaded}}
	boundsMonitorSystem(assets, state, registry, audio, log, cmd)
	assert.Equal(t, boundsScheduled, state.phase)
}

func TestRestart_ResetsBallAndClearsFallBanner(t *testing.T) {
	app := NewAppBuilder().Build()
	cmd := app.Commands()
	registry := &BallRegistry{}
	audio := &AudioServer{}
	proxy := newPhysicsProxy()
	proxy.synchronous = true
	proxy.solver = newPhysicsSolver(NewPhysicsWorld(), proxy)

	spawn := mgl32.Vec3{0, 1, 0}
	ball := spawnTestBall(cmd, registry, spawn)
	app.FlushCommands()

	// Simulate a fall
	ballComp, _ := GetComponent[BallComponent](cmd, ball)
	ballComp.InBounds = false
	tr, _ := GetComponent[TransformComponent](cmd, ball)
	tr.Position = mgl32.Vec3{3, -20, 1}
	rb, _ := GetComponent[RigidBodyComponent](cmd, ball)
	rb.Velocity = mgl32.Vec3{0, -30, 0}
	SpawnBanner(cmd, BannerFall, "You fell! Press R to restart", [4]float32{1, 0, 0, 1})
	SpawnBanner(cmd, BannerWin, "You Win!", [4]float32{1, 1, 0, 1})
	app.FlushCommands()

	input := &Input{}
	bindings := &KeyBindings{Restart: KeyR}
	input.JustPressed[KeyR] = true

	restartSystem(input, bindings, proxy, audio, cmd)

	// Resets go through the physics sync point
	world := NewPhysicsWorld()
	contacts := &Contacts{}
	PhysicsSyncSystem(cmd, &Time{}, world, proxy, contacts)
	app.FlushCommands()

	ballComp, _ = GetComponent[BallComponent](cmd, ball)
	assert.True(t, ballComp.InBounds)

	tr, _ = GetComponent[TransformComponent](cmd, ball)
	assert.Equal(t, spawn, tr.Position)

	rb, _ = GetComponent[RigidBodyComponent](cmd, ball)
	assert.Equal(t, mgl32.Vec3{}, rb.Velocity)
	assert.Equal(t, mgl32.Vec3{}, rb.AngularVelocity)

	assert.False(t, HasBanner(cmd, BannerFall), "fall banner must be cleared")
	assert.True(t, HasBanner(cmd, BannerWin), "win banner is not restart's business")
	assert.Equal(t, []CueKind{CueRestart}, audio.Recorded())

	// Idempotent: a second restart only replays the cue
	restartSystem(input, bindings, proxy, audio, cmd)
	app.FlushCommands()
	assert.Equal(t, []CueKind{CueRestart, CueRestart}, audio.Recorded())
}

func TestBallControl_KeyPriorityAndCameraRelative(t *testing.T) {
	app := NewAppBuilder().Build()
	cmd := app.Commands()
	registry := &BallRegistry{}
	cfg := DefaultConfig()
	cfg.Ball.ForceScale = 2.0

	ball := spawnTestBall(cmd, registry, mgl32.Vec3{})

	// Orbit camera looking down -Z (identity orientation)
	cmd.AddEntity(
		CameraComponent{Rotation: mgl32.QuatIdent()},
		CameraRigComponent{Mode: CameraModeOrbit},
	)
	app.FlushCommands()

	input := &Input{}
	bindings := &KeyBindings{Forward: KeyW, Back: KeyS, Left: KeyA, Right: KeyD}

	force := func() mgl32.Vec3 {
		f, _ := GetComponent[ExternalForce](cmd, ball)
		return f.Force
	}

	// W alone: camera forward, flattened
	input.Pressed[KeyW] = true
	ballControlSystem(input, bindings, &cfg, registry, cmd)
	assert.InDelta(t, 0, force().X(), 1e-5)
	assert.InDelta(t, -2, force().Z(), 1e-5)

	// W beats S, A and D
	input.Pressed[KeyS] = true
	input.Pressed[KeyA] = true
	input.Pressed[KeyD] = true
	ballControlSystem(input, bindings, &cfg, registry, cmd)
	assert.InDelta(t, -2, force().Z(), 1e-5)

	// S beats A and D
	input.Pressed[KeyW] = false
	ballControlSystem(input, bindings, &cfg, registry, cmd)
	assert.InDelta(t, 2, force().Z(), 1e-5)

	// A beats D
	input.Pressed[KeyS] = false
	ballControlSystem(input, bindings, &cfg, registry, cmd)
	assert.InDelta(t, -2, force().X(), 1e-5)

	// No keys: force overwritten to zero
	input.Pressed[KeyA] = false
	input.Pressed[KeyD] = false
	ballControlSystem(input, bindings, &cfg, registry, cmd)
	assert.Equal(t, mgl32.Vec3{}, force())
}

func TestBallControl_NoOrbitCameraNoForce(t *testing.T) {
	app := NewAppBuilder().Build()
	cmd := app.Commands()
	registry := &BallRegistry{}
	cfg := DefaultConfig()

	ball := spawnTestBall(cmd, registry, mgl32.Vec3{})
	// Free-fly camera only
	cmd.AddEntity(
		CameraComponent{Rotation: mgl32.QuatIdent()},
		CameraRigComponent{Mode: CameraModeFreeFly},
	)
	app.FlushCommands()

	input := &Input{}
	input.Pressed[KeyW] = true
	bindings := &KeyBindings{Forward: KeyW, Back: KeyS, Left: KeyA, Right: KeyD}

	// Leave a stale force to prove it is overwritten
	f, _ := GetComponent[ExternalForce](cmd, ball)
	f.Force = mgl32.Vec3{9, 9, 9}

	ballControlSystem(input, bindings, &cfg, registry, cmd)

	f, _ = GetComponent[ExternalForce](cmd, ball)
	assert.Equal(t, mgl32.Vec3{}, f.Force)
}

func TestGenerateSphereMesh(t *testing.T) {
	positions, indices := generateSphereMesh(0.5, 8, 12)

	require.NotEmpty(t, positions)
	require.True(t, len(positions)%3 == 0)
	require.True(t, len(indices)%3 == 0)

	// Every vertex sits on the sphere
	for i := 0; i+2 < len(positions); i += 3 {
		v := mgl32.Vec3{positions[i], positions[i+1], positions[i+2]}
		assert.InDelta(t, 0.5, v.Len(), 1e-4)
	}

	// Indices stay in range
	vertexCount := uint32(len(positions) / 3)
	for _, idx := range indices {
		assert.Less(t, idx, vertexCount)
	}
}
