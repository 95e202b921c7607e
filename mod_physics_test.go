package tumble

import (
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSyncPhysics() (*PhysicsWorld, *PhysicsProxy) {
	world := NewPhysicsWorld()
	proxy := newPhysicsProxy()
	proxy.synchronous = true
	proxy.solver = newPhysicsSolver(world, proxy)
	return world, proxy
}

func spawnBody(cmd *Commands, pos mgl32.Vec3, kind BodyKind, col ColliderComponent) EntityId {
	return cmd.AddEntity(
		TransformComponent{
			Position: pos,
			Rotation: mgl32.QuatIdent(),
			Scale:    mgl32.Vec3{1, 1, 1},
		},
		RigidBodyComponent{Kind: kind, Mass: 1, GravityScale: 1},
		col,
		ExternalForce{},
	)
}

func TestPhysics_SphereDropsOntoBoxFloor(t *testing.T) {
	app := NewAppBuilder().Build()
	cmd := app.Commands()
	world, proxy := newSyncPhysics()
	contacts := &Contacts{}

	floor := spawnBody(cmd, mgl32.Vec3{}, BodyStatic, NewBoxCollider(mgl32.Vec3{10, 0.5, 10}))

	sphereCol := NewSphereCollider(0.5)
	sphereCol.Restitution = 0.1
	ball := spawnBody(cmd, mgl32.Vec3{0, 2, 0}, BodyDynamic, sphereCol)
	app.FlushCommands()

	timeRes := &Time{Dt: time.Second / 60}
	var begins []ContactEvent
	for i := 0; i < 240; i++ {
		PhysicsSyncSystem(cmd, timeRes, world, proxy, contacts)
		for _, ev := range contacts.Events {
			if ev.Kind == ContactBegin {
				begins = append(begins, ev)
			}
		}
	}

	require.NotEmpty(t, begins, "ball never touched the floor")
	pair := makePair(begins[0].A, begins[0].B)
	assert.Equal(t, makePair(ball, floor), pair)

	// Settled: resting on the floor top at sphere-radius height
	tr, _ := GetComponent[TransformComponent](cmd, ball)
	assert.InDelta(t, 1.0, tr.Position.Y(), 0.05)

	rb, _ := GetComponent[RigidBodyComponent](cmd, ball)
	assert.Less(t, rb.Velocity.Len(), float32(0.1))
}

func TestPhysics_ExternalForceAccelerates(t *testing.T) {
	app := NewAppBuilder().Build()
	cmd := app.Commands()
	world, proxy := newSyncPhysics()
	contacts := &Contacts{}

	ball := cmd.AddEntity(
		TransformComponent{Position: mgl32.Vec3{}, Rotation: mgl32.QuatIdent(), Scale: mgl32.Vec3{1, 1, 1}},
		RigidBodyComponent{Kind: BodyDynamic, Mass: 1, GravityScale: 0},
		NewSphereCollider(0.5),
		ExternalForce{Force: mgl32.Vec3{2, 0, 0}},
	)
	app.FlushCommands()

	timeRes := &Time{Dt: time.Second / 60}
	for i := 0; i < 60; i++ {
		PhysicsSyncSystem(cmd, timeRes, world, proxy, contacts)
	}

	tr, _ := GetComponent[TransformComponent](cmd, ball)
	rb, _ := GetComponent[RigidBodyComponent](cmd, ball)
	assert.Greater(t, tr.Position.X(), float32(0.5))
	assert.Greater(t, rb.Velocity.X(), float32(1.0))
	assert.InDelta(t, 0, tr.Position.Y(), 1e-4)
}

func TestPhysics_SensorReportsButDoesNotCollide(t *testing.T) {
	app := NewAppBuilder().Build()
	cmd := app.Commands()
	world, proxy := newSyncPhysics()
	contacts := &Contacts{}

	sensorCol := NewBoxCollider(mgl32.Vec3{5, 0.25, 5})
	sensorCol.Sensor = true
	sensor := spawnBody(cmd, mgl32.Vec3{}, BodyStatic, sensorCol)
	ball := spawnBody(cmd, mgl32.Vec3{0, 2, 0}, BodyDynamic, NewSphereCollider(0.5))
	app.FlushCommands()

	timeRes := &Time{Dt: time.Second / 60}
	var begins, ends int
	for i := 0; i < 180; i++ {
		PhysicsSyncSystem(cmd, timeRes, world, proxy, contacts)
		for _, ev := range contacts.Events {
			if makePair(ev.A, ev.B) != makePair(ball, sensor) {
				continue
			}
			switch ev.Kind {
			case ContactBegin:
				begins++
			case ContactEnd:
				ends++
			}
		}
	}

	// The ball fell straight through, with one begin/end crossing
	assert.Equal(t, 1, begins)
	assert.Equal(t, 1, ends)
	tr, _ := GetComponent[TransformComponent](cmd, ball)
	assert.Less(t, tr.Position.Y(), float32(-1))
}

func TestPhysics_ResetWinsWithinTheTick(t *testing.T) {
	app := NewAppBuilder().Build()
	cmd := app.Commands()
	world, proxy := newSyncPhysics()
	contacts := &Contacts{}

	ball := spawnBody(cmd, mgl32.Vec3{0, 10, 0}, BodyDynamic, NewSphereCollider(0.5))
	app.FlushCommands()

	timeRes := &Time{Dt: time.Second / 60}
	for i := 0; i < 30; i++ {
		PhysicsSyncSystem(cmd, timeRes, world, proxy, contacts)
	}

	rb, _ := GetComponent[RigidBodyComponent](cmd, ball)
	require.Less(t, rb.Velocity.Y(), float32(-1), "ball should be falling")

	spawn := mgl32.Vec3{1, 5, -2}
	proxy.ResetBody(ball, spawn, mgl32.QuatIdent())
	PhysicsSyncSystem(cmd, timeRes, world, proxy, contacts)

	// Exact at the end of the tick the reset was requested
	tr, _ := GetComponent[TransformComponent](cmd, ball)
	assert.Equal(t, spawn, tr.Position)
	rb, _ = GetComponent[RigidBodyComponent](cmd, ball)
	assert.Equal(t, mgl32.Vec3{}, rb.Velocity)
	assert.Equal(t, mgl32.Vec3{}, rb.AngularVelocity)
}

func TestNewTriangleMeshCollider_BakesScale(t *testing.T) {
	asset := MeshAsset{
		Positions: []float32{0, 0, 0, 1, 0, 0, 0, 0, 1},
		Indices:   []uint32{0, 1, 2},
	}

	col, err := NewTriangleMeshCollider(asset, mgl32.Vec3{2, 1, 3})
	require.NoError(t, err)
	require.NotNil(t, col.triMesh)

	assert.Equal(t, mgl32.Vec3{2, 0, 0}, col.triMesh.vertices[1])
	assert.Equal(t, mgl32.Vec3{0, 0, 3}, col.triMesh.vertices[2])
}

func TestNewTriangleMeshCollider_RejectsMalformed(t *testing.T) {
	cases := []struct {
		name  string
		asset MeshAsset
	}{
		{"empty", MeshAsset{}},
		{"positions not xyz triples", MeshAsset{Positions: []float32{1, 2}, Indices: []uint32{0, 1, 2}}},
		{"no indices", MeshAsset{Positions: []float32{0, 0, 0, 1, 0, 0, 0, 0, 1}}},
		{"indices not triangles", MeshAsset{Positions: []float32{0, 0, 0, 1, 0, 0, 0, 0, 1}, Indices: []uint32{0, 1}}},
		{"index out of range", MeshAsset{Positions: []float32{0, 0, 0, 1, 0, 0, 0, 0, 1}, Indices: []uint32{0, 1, 7}}},
	}

	for _, tc := range cases {
		if _, err := NewTriangleMeshCollider(tc.asset, mgl32.Vec3{1, 1, 1}); err == nil {
			t.Errorf("%s: expected an error", tc.name)
		}
	}
}

func TestSphereVsTriMesh(t *testing.T) {
	// Unit square in the XZ plane at y=0, two triangles
	asset := MeshAsset{
		Positions: []float32{
			0, 0, 0,
			1, 0, 0,
			1, 0, 1,
			0, 0, 1,
		},
		Indices: []uint32{0, 1, 2, 0, 2, 3},
	}
	col, err := NewTriangleMeshCollider(asset, mgl32.Vec3{1, 1, 1})
	require.NoError(t, err)

	mesh := PhysicsEntityState{
		Rot:     mgl32.QuatIdent(),
		Scale:   mgl32.Vec3{1, 1, 1},
		Shape:   ShapeTriangleMesh,
		TriMesh: col.triMesh,
	}
	sphere := PhysicsEntityState{
		Pos:    mgl32.Vec3{0.5, 0.4, 0.5},
		Rot:    mgl32.QuatIdent(),
		Scale:  mgl32.Vec3{1, 1, 1},
		Shape:  ShapeSphere,
		Radius: 0.5,
	}

	hit, normal, penetration := sphereContact(&sphere, &mesh)
	require.True(t, hit)
	assert.InDelta(t, 1, normal.Y(), 1e-4)
	assert.InDelta(t, 0.1, penetration, 1e-4)

	// Clear of the surface
	sphere.Pos = mgl32.Vec3{0.5, 0.6, 0.5}
	hit, _, _ = sphereContact(&sphere, &mesh)
	assert.False(t, hit)

	// Off to the side, near the edge but out of reach
	sphere.Pos = mgl32.Vec3{2, 0.1, 0.5}
	hit, _, _ = sphereContact(&sphere, &mesh)
	assert.False(t, hit)
}

func TestSphereVsBox(t *testing.T) {
	box := PhysicsEntityState{
		Rot:         mgl32.QuatIdent(),
		Scale:       mgl32.Vec3{1, 1, 1},
		Shape:       ShapeBox,
		HalfExtents: mgl32.Vec3{1, 1, 1},
	}
	sphere := PhysicsEntityState{
		Pos:    mgl32.Vec3{0, 1.4, 0},
		Rot:    mgl32.QuatIdent(),
		Scale:  mgl32.Vec3{1, 1, 1},
		Shape:  ShapeSphere,
		Radius: 0.5,
	}

	hit, normal, penetration := sphereContact(&sphere, &box)
	require.True(t, hit)
	assert.InDelta(t, 1, normal.Y(), 1e-4)
	assert.InDelta(t, 0.1, penetration, 1e-4)

	// Box scale stretches the half extents
	box.Scale = mgl32.Vec3{1, 2, 1}
	sphere.Pos = mgl32.Vec3{0, 2.4, 0}
	hit, normal, penetration = sphereContact(&sphere, &box)
	require.True(t, hit)
	assert.InDelta(t, 1, normal.Y(), 1e-4)
	assert.InDelta(t, 0.1, penetration, 1e-4)

	// Sphere center inside: pushed out along the thinnest axis
	box.Scale = mgl32.Vec3{1, 1, 1}
	sphere.Pos = mgl32.Vec3{0.9, 0, 0}
	hit, normal, _ = sphereContact(&sphere, &box)
	require.True(t, hit)
	assert.InDelta(t, 1, normal.X(), 1e-4)
}

func TestClosestPointOnTriangle(t *testing.T) {
	a := mgl32.Vec3{0, 0, 0}
	b := mgl32.Vec3{2, 0, 0}
	c := mgl32.Vec3{0, 2, 0}

	cases := []struct {
		name string
		p    mgl32.Vec3
		want mgl32.Vec3
	}{
		{"interior projects onto face", mgl32.Vec3{0.5, 0.5, 3}, mgl32.Vec3{0.5, 0.5, 0}},
		{"vertex region a", mgl32.Vec3{-1, -1, 0}, a},
		{"vertex region b", mgl32.Vec3{5, -1, 0}, b},
		{"vertex region c", mgl32.Vec3{-1, 5, 0}, c},
		{"edge ab", mgl32.Vec3{1, -2, 0}, mgl32.Vec3{1, 0, 0}},
		{"edge ac", mgl32.Vec3{-2, 1, 0}, mgl32.Vec3{0, 1, 0}},
		{"edge bc", mgl32.Vec3{2, 2, 0}, mgl32.Vec3{1, 1, 0}},
	}

	for _, tc := range cases {
		got := closestPointOnTriangle(tc.p, a, b, c)
		if got.Sub(tc.want).Len() > 1e-5 {
			t.Errorf("%s: closestPointOnTriangle(%v) = %v, want %v", tc.name, tc.p, got, tc.want)
		}
	}
}
