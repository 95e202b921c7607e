package tumble

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl32"
)

type BodyKind int

const (
	BodyDynamic BodyKind = iota
	BodyStatic
	BodyKinematic
)

type ColliderShape int

const (
	ShapeSphere ColliderShape = iota
	ShapeBox
	ShapeTriangleMesh
)

type RigidBodyComponent struct {
	Kind            BodyKind
	Velocity        mgl32.Vec3
	AngularVelocity mgl32.Vec3
	Mass            float32
	GravityScale    float32
}

// ColliderComponent describes the collision shape of a body. Sensor
// colliders report contacts but never exert forces.
type ColliderComponent struct {
	Shape       ColliderShape
	Radius      float32    // ShapeSphere
	HalfExtents mgl32.Vec3 // ShapeBox
	Sensor      bool
	Friction    float32
	Restitution float32

	// ShapeTriangleMesh geometry, baked once at creation and shared
	// read-only with the solver thread.
	triMesh *bakedTriMesh
}

func NewSphereCollider(radius float32) ColliderComponent {
	return ColliderComponent{
		Shape:    ShapeSphere,
		Radius:   radius,
		Friction: 0.4,
	}
}

func NewBoxCollider(halfExtents mgl32.Vec3) ColliderComponent {
	return ColliderComponent{
		Shape:       ShapeBox,
		HalfExtents: halfExtents,
		Friction:    0.4,
	}
}

type bakedTriMesh struct {
	vertices []mgl32.Vec3 // node-local, scale baked in
	indices  []uint32
	grid     *SpatialHashGrid
}

// NewTriangleMeshCollider bakes a mesh asset into a collider, applying
// the node's scale to the vertices. Degenerate geometry is an error:
// the level format promises triangles wherever a collider is authored.
func NewTriangleMeshCollider(asset MeshAsset, scale mgl32.Vec3) (ColliderComponent, error) {
	if len(asset.Positions) == 0 || len(asset.Positions)%3 != 0 {
		return ColliderComponent{}, fmt.Errorf("mesh has %d position floats, want a non-empty multiple of 3", len(asset.Positions))
	}
	if len(asset.Indices) == 0 || len(asset.Indices)%3 != 0 {
		return ColliderComponent{}, fmt.Errorf("mesh has %d indices, want a non-empty multiple of 3", len(asset.Indices))
	}

	vertexCount := len(asset.Positions) / 3
	baked := &bakedTriMesh{
		vertices: make([]mgl32.Vec3, vertexCount),
		indices:  asset.Indices,
	}
	for i := 0; i < vertexCount; i++ {
		baked.vertices[i] = mgl32.Vec3{
			asset.Positions[i*3+0] * scale.X(),
			asset.Positions[i*3+1] * scale.Y(),
			asset.Positions[i*3+2] * scale.Z(),
		}
	}
	for _, idx := range asset.Indices {
		if int(idx) >= vertexCount {
			return ColliderComponent{}, fmt.Errorf("mesh index %d out of range (have %d vertices)", idx, vertexCount)
		}
	}

	baked.grid = NewSpatialHashGrid(1.0)
	for tri := 0; tri < len(baked.indices)/3; tri++ {
		a := baked.vertices[baked.indices[tri*3+0]]
		b := baked.vertices[baked.indices[tri*3+1]]
		c := baked.vertices[baked.indices[tri*3+2]]
		baked.grid.Insert(int32(tri), vecMin(vecMin(a, b), c), vecMax(vecMax(a, b), c))
	}

	return ColliderComponent{
		Shape:    ShapeTriangleMesh,
		Friction: 0.4,
		triMesh:  baked,
	}, nil
}

func vecMin(a, b mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{min(a.X(), b.X()), min(a.Y(), b.Y()), min(a.Z(), b.Z())}
}

func vecMax(a, b mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{max(a.X(), b.X()), max(a.Y(), b.Y()), max(a.Z(), b.Z())}
}

// ExternalForce is a continuous world-space force on a dynamic body,
// consumed by the solver every step until overwritten.
type ExternalForce struct {
	Force mgl32.Vec3
}

type ExternalTorque struct {
	Torque mgl32.Vec3
}

type ContactEventKind int

const (
	ContactBegin ContactEventKind = iota
	ContactEnd
)

// ContactEvent names the two bodies whose contact state changed.
type ContactEvent struct {
	Kind ContactEventKind
	A    EntityId
	B    EntityId
}

// Contacts is the per-tick contact event stream. Events is rebuilt
// every tick at the physics sync point; consumers must read it the
// tick it is published.
type Contacts struct {
	Events []ContactEvent
}

type PhysicsWorld struct {
	Gravity         mgl32.Vec3
	UpdateFrequency float32 // Hz
	LinearDamping   float32
	AngularDamping  float32
}

func NewPhysicsWorld() *PhysicsWorld {
	return &PhysicsWorld{
		Gravity:         mgl32.Vec3{0, -9.81, 0},
		UpdateFrequency: 60.0,
		LinearDamping:   0.995,
		AngularDamping:  0.99,
	}
}

// PhysicsModule runs the solver on its own goroutine, exchanging
// state with the frame loop through the PhysicsProxy: the sync system
// publishes a full snapshot each tick and applies the latest results.
// Synchronous mode steps the solver inline at the sync point instead,
// which makes a tick fully deterministic.
type PhysicsModule struct {
	Synchronous bool
}

func (m PhysicsModule) Install(app *App, cmd *Commands) {
	world := NewPhysicsWorld()
	proxy := newPhysicsProxy()
	proxy.synchronous = m.Synchronous

	cmd.AddResources(world, proxy, &Contacts{})

	if m.Synchronous {
		proxy.solver = newPhysicsSolver(world, proxy)
	} else {
		go physicsLoop(world, proxy)
	}

	app.UseSystem(
		System(PhysicsSyncSystem).
			InStage(Update),
	)
}

type PhysicsProxy struct {
	latestResults atomic.Pointer[PhysicsResults]
	pendingState  atomic.Pointer[PhysicsSnapshot]
	contacts      chan ContactEvent

	mu            sync.Mutex
	pendingResets []bodyReset

	synchronous bool
	solver      *physicsSolver
}

func newPhysicsProxy() *PhysicsProxy {
	return &PhysicsProxy{
		contacts: make(chan ContactEvent, 256),
	}
}

type bodyReset struct {
	eid EntityId
	pos mgl32.Vec3
	rot mgl32.Quat
}

// ResetBody teleports a body to a pose with zero velocity. Applied at
// the next sync point, after solver results, so the reset wins within
// the tick it was requested.
func (proxy *PhysicsProxy) ResetBody(eid EntityId, pos mgl32.Vec3, rot mgl32.Quat) {
	proxy.mu.Lock()
	proxy.pendingResets = append(proxy.pendingResets, bodyReset{eid: eid, pos: pos, rot: rot})
	proxy.mu.Unlock()
}

func (proxy *PhysicsProxy) takeResets() []bodyReset {
	proxy.mu.Lock()
	resets := proxy.pendingResets
	proxy.pendingResets = nil
	proxy.mu.Unlock()
	return resets
}

type PhysicsSnapshot struct {
	Entities []PhysicsEntityState
	Gravity  mgl32.Vec3
}

type PhysicsEntityState struct {
	Eid          EntityId
	Pos          mgl32.Vec3
	Rot          mgl32.Quat
	Scale        mgl32.Vec3
	Vel          mgl32.Vec3
	AngVel       mgl32.Vec3
	Kind         BodyKind
	Mass         float32
	GravityScale float32
	Force        mgl32.Vec3
	Torque       mgl32.Vec3

	Shape       ColliderShape
	Radius      float32
	HalfExtents mgl32.Vec3
	Sensor      bool
	Friction    float32
	Restitution float32
	TriMesh     *bakedTriMesh
}

type PhysicsResults struct {
	Entities []PhysicsEntityResult
}

type PhysicsEntityResult struct {
	Eid    EntityId
	Pos    mgl32.Vec3
	Rot    mgl32.Quat
	Vel    mgl32.Vec3
	AngVel mgl32.Vec3
}

// PhysicsSyncSystem is the single point where the frame loop and the
// solver exchange state: results in, resets applied, snapshot out,
// contact events drained.
func PhysicsSyncSystem(cmd *Commands, timeRes *Time, physics *PhysicsWorld, proxy *PhysicsProxy, contacts *Contacts) {
	applyResults := func() {
		results := proxy.latestResults.Swap(nil)
		if results == nil {
			return
		}
		resMap := make(map[EntityId]PhysicsEntityResult, len(results.Entities))
		for _, res := range results.Entities {
			resMap[res.Eid] = res
		}
		MakeQuery2[TransformComponent, RigidBodyComponent](cmd).Map(func(eid EntityId, tr *TransformComponent, rb *RigidBodyComponent) bool {
			if rb.Kind != BodyDynamic {
				return true
			}
			if res, ok := resMap[eid]; ok {
				tr.Position = res.Pos
				tr.Rotation = res.Rot
				rb.Velocity = res.Vel
				rb.AngularVelocity = res.AngVel
			}
			return true
		})
	}

	pushSnapshot := func() {
		snap := &PhysicsSnapshot{Gravity: physics.Gravity}
		MakeQuery5[TransformComponent, RigidBodyComponent, ColliderComponent, ExternalForce, ExternalTorque](cmd).Map(func(eid EntityId, tr *TransformComponent, rb *RigidBodyComponent, col *ColliderComponent, force *ExternalForce, torque *ExternalTorque) bool {
			state := PhysicsEntityState{
				Eid:          eid,
				Pos:          tr.Position,
				Rot:          tr.Rotation,
				Scale:        tr.Scale,
				Vel:          rb.Velocity,
				AngVel:       rb.AngularVelocity,
				Kind:         rb.Kind,
				Mass:         rb.Mass,
				GravityScale: rb.GravityScale,
				Shape:        col.Shape,
				Radius:       col.Radius,
				HalfExtents:  col.HalfExtents,
				Sensor:       col.Sensor,
				Friction:     col.Friction,
				Restitution:  col.Restitution,
				TriMesh:      col.triMesh,
			}
			if force != nil {
				state.Force = force.Force
			}
			if torque != nil {
				state.Torque = torque.Torque
			}
			snap.Entities = append(snap.Entities, state)
			return true
		}, ExternalForce{}, ExternalTorque{})
		proxy.pendingState.Store(snap)
	}

	applyResets := func() {
		for _, reset := range proxy.takeResets() {
			if tr, ok := GetComponent[TransformComponent](cmd, reset.eid); ok {
				tr.Position = reset.pos
				tr.Rotation = reset.rot
			}
			if rb, ok := GetComponent[RigidBodyComponent](cmd, reset.eid); ok {
				rb.Velocity = mgl32.Vec3{}
				rb.AngularVelocity = mgl32.Vec3{}
			}
		}
	}

	// Resets come after results in both modes, so a reset requested
	// this tick is what the components show at tick end; the solver
	// re-syncs from the next snapshot.
	if proxy.synchronous {
		pushSnapshot()
		proxy.solver.step(float32(timeRes.Dt.Seconds()))
		applyResults()
		applyResets()
	} else {
		applyResults()
		applyResets()
		pushSnapshot()
	}

	contacts.Events = contacts.Events[:0]
	for {
		select {
		case ev := <-proxy.contacts:
			contacts.Events = append(contacts.Events, ev)
			continue
		default:
		}
		break
	}
}

func physicsLoop(world *PhysicsWorld, proxy *PhysicsProxy) {
	ticker := time.NewTicker(time.Duration(1000.0/world.UpdateFrequency) * time.Millisecond)
	defer ticker.Stop()

	solver := newPhysicsSolver(world, proxy)
	dt := 1.0 / world.UpdateFrequency // fixed dt for stability

	for range ticker.C {
		solver.step(dt)
	}
}

type physicsSolver struct {
	world  *PhysicsWorld
	proxy  *PhysicsProxy
	bodies map[EntityId]*internalBody

	activePairs map[contactPair]bool
}

type contactPair struct {
	a, b EntityId
}

func makePair(a, b EntityId) contactPair {
	if a > b {
		a, b = b, a
	}
	return contactPair{a: a, b: b}
}

type internalBody struct {
	eid   EntityId
	state PhysicsEntityState
}

func newPhysicsSolver(world *PhysicsWorld, proxy *PhysicsProxy) *physicsSolver {
	return &physicsSolver{
		world:       world,
		proxy:       proxy,
		bodies:      make(map[EntityId]*internalBody),
		activePairs: make(map[contactPair]bool),
	}
}

func (s *physicsSolver) step(dt float32) {
	if dt <= 0 || dt > 0.25 {
		dt = 1.0 / s.world.UpdateFrequency
	}

	// Snapshot is the truth for external changes
	snap := s.proxy.pendingState.Swap(nil)
	if snap != nil {
		seen := make(map[EntityId]bool, len(snap.Entities))
		for _, es := range snap.Entities {
			seen[es.Eid] = true
			body, ok := s.bodies[es.Eid]
			if !ok {
				body = &internalBody{eid: es.Eid}
				s.bodies[es.Eid] = body
			}
			body.state = es
		}
		for eid := range s.bodies {
			if !seen[eid] {
				delete(s.bodies, eid)
			}
		}
	}

	if len(s.bodies) == 0 {
		return
	}

	gravity := s.world.Gravity
	if snap != nil {
		gravity = snap.Gravity
	}

	var all []*internalBody
	for _, b := range s.bodies {
		all = append(all, b)
	}

	pairs := make(map[contactPair]bool)

	for _, b := range all {
		st := &b.state
		if st.Kind != BodyDynamic {
			continue
		}

		if st.GravityScale != 0 {
			st.Vel = st.Vel.Add(gravity.Mul(st.GravityScale * dt))
		}
		if st.Mass > 0 {
			st.Vel = st.Vel.Add(st.Force.Mul(dt / st.Mass))
			inertia := sphereInertia(st.Mass, st.Radius)
			if inertia > 0 {
				st.AngVel = st.AngVel.Add(st.Torque.Mul(dt / inertia))
			}
		}

		st.Vel = st.Vel.Mul(s.world.LinearDamping)
		st.AngVel = st.AngVel.Mul(s.world.AngularDamping)

		st.Pos = st.Pos.Add(st.Vel.Mul(dt))
		if st.AngVel.Len() > 0 {
			spin := mgl32.Quat{W: 0, V: st.AngVel.Mul(0.5 * dt)}
			st.Rot = st.Rot.Add(spin.Mul(st.Rot)).Normalize()
		}

		for _, other := range all {
			if other.eid == b.eid {
				continue
			}
			hit, normal, penetration := sphereContact(st, &other.state)
			if !hit {
				continue
			}

			pairs[makePair(b.eid, other.eid)] = true

			if other.state.Sensor || st.Sensor {
				continue
			}

			s.resolveContact(st, &other.state, normal, penetration)
		}
	}

	// Contact begin/end from pair-set diff. Dropped events are better
	// than a blocked solver.
	for pair := range pairs {
		if !s.activePairs[pair] {
			s.emit(ContactEvent{Kind: ContactBegin, A: pair.a, B: pair.b})
		}
	}
	for pair := range s.activePairs {
		if !pairs[pair] {
			s.emit(ContactEvent{Kind: ContactEnd, A: pair.a, B: pair.b})
		}
	}
	s.activePairs = pairs

	res := &PhysicsResults{}
	for _, b := range all {
		if b.state.Kind != BodyDynamic {
			continue
		}
		res.Entities = append(res.Entities, PhysicsEntityResult{
			Eid:    b.eid,
			Pos:    b.state.Pos,
			Rot:    b.state.Rot,
			Vel:    b.state.Vel,
			AngVel: b.state.AngVel,
		})
	}
	s.proxy.latestResults.Store(res)
}

func (s *physicsSolver) emit(ev ContactEvent) {
	select {
	case s.proxy.contacts <- ev:
	default:
	}
}

// resolveContact pushes the sphere out of the other body and applies a
// restitution + friction impulse. The contact point sits at radius
// depth along the inverted normal, which also spins the sphere for a
// rolling feel.
func (s *physicsSolver) resolveContact(st, other *PhysicsEntityState, normal mgl32.Vec3, penetration float32) {
	st.Pos = st.Pos.Add(normal.Mul(penetration))

	rA := normal.Mul(-st.Radius)
	contactVel := st.Vel.Add(st.AngVel.Cross(rA))

	velAlongNormal := contactVel.Dot(normal)
	if velAlongNormal > 0 {
		return
	}

	restitution := (st.Restitution + other.Restitution) * 0.5
	inertia := sphereInertia(st.Mass, st.Radius)

	denom := float32(1.0)
	if st.Mass > 0 {
		denom = 1.0 / st.Mass
	}
	rAn := rA.Cross(normal)
	if inertia > 0 {
		denom += rAn.Dot(rAn) / inertia
	}

	j := -(1 + restitution) * velAlongNormal / denom
	impulse := normal.Mul(j)

	if st.Mass > 0 {
		st.Vel = st.Vel.Add(impulse.Mul(1.0 / st.Mass))
	}
	if inertia > 0 {
		st.AngVel = st.AngVel.Add(rA.Cross(impulse).Mul(1.0 / inertia))
	}

	friction := (st.Friction + other.Friction) * 0.5
	tangent := contactVel.Sub(normal.Mul(velAlongNormal))
	if tangent.Len() > 0.0001 {
		tangent = tangent.Normalize()
		jt := -contactVel.Dot(tangent) * friction / denom
		fImpulse := tangent.Mul(jt)
		if st.Mass > 0 {
			st.Vel = st.Vel.Add(fImpulse.Mul(1.0 / st.Mass))
		}
		if inertia > 0 {
			st.AngVel = st.AngVel.Add(rA.Cross(fImpulse).Mul(1.0 / inertia))
		}
	}
}

func sphereInertia(mass, radius float32) float32 {
	return 0.4 * mass * radius * radius
}

// sphereContact tests a dynamic sphere against another body. The
// normal points from the other body toward the sphere.
func sphereContact(sphere, other *PhysicsEntityState) (bool, mgl32.Vec3, float32) {
	if sphere.Shape != ShapeSphere {
		return false, mgl32.Vec3{}, 0
	}

	switch other.Shape {
	case ShapeSphere:
		d := sphere.Pos.Sub(other.Pos)
		dist := d.Len()
		penetration := sphere.Radius + other.Radius - dist
		if penetration <= 0 {
			return false, mgl32.Vec3{}, 0
		}
		if dist < 0.0001 {
			return true, mgl32.Vec3{0, 1, 0}, penetration
		}
		return true, d.Mul(1.0 / dist), penetration

	case ShapeBox:
		return sphereVsBox(sphere, other)

	case ShapeTriangleMesh:
		return sphereVsTriMesh(sphere, other)
	}
	return false, mgl32.Vec3{}, 0
}

func sphereVsBox(sphere, box *PhysicsEntityState) (bool, mgl32.Vec3, float32) {
	he := mgl32.Vec3{
		box.HalfExtents.X() * abs32(box.Scale.X()),
		box.HalfExtents.Y() * abs32(box.Scale.Y()),
		box.HalfExtents.Z() * abs32(box.Scale.Z()),
	}

	local := box.Rot.Conjugate().Rotate(sphere.Pos.Sub(box.Pos))
	closest := mgl32.Vec3{
		clamp32(local.X(), -he.X(), he.X()),
		clamp32(local.Y(), -he.Y(), he.Y()),
		clamp32(local.Z(), -he.Z(), he.Z()),
	}

	d := local.Sub(closest)
	dist := d.Len()
	if dist > sphere.Radius {
		return false, mgl32.Vec3{}, 0
	}

	if dist < 0.0001 {
		// Center inside the box: push out along the thinnest axis
		minDepth := he.X() - abs32(local.X())
		normal := mgl32.Vec3{sign32(local.X()), 0, 0}
		if depth := he.Y() - abs32(local.Y()); depth < minDepth {
			minDepth = depth
			normal = mgl32.Vec3{0, sign32(local.Y()), 0}
		}
		if depth := he.Z() - abs32(local.Z()); depth < minDepth {
			minDepth = depth
			normal = mgl32.Vec3{0, 0, sign32(local.Z())}
		}
		return true, box.Rot.Rotate(normal), minDepth + sphere.Radius
	}

	normal := box.Rot.Rotate(d.Mul(1.0 / dist))
	return true, normal, sphere.Radius - dist
}

func sphereVsTriMesh(sphere, mesh *PhysicsEntityState) (bool, mgl32.Vec3, float32) {
	baked := mesh.TriMesh
	if baked == nil {
		return false, mgl32.Vec3{}, 0
	}

	local := mesh.Rot.Conjugate().Rotate(sphere.Pos.Sub(mesh.Pos))

	best := float32(-1)
	var bestNormal mgl32.Vec3

	for _, tri := range baked.grid.QueryRadius(local, sphere.Radius) {
		a := baked.vertices[baked.indices[tri*3+0]]
		b := baked.vertices[baked.indices[tri*3+1]]
		c := baked.vertices[baked.indices[tri*3+2]]

		closest := closestPointOnTriangle(local, a, b, c)
		d := local.Sub(closest)
		dist := d.Len()
		if dist > sphere.Radius {
			continue
		}

		penetration := sphere.Radius - dist
		if penetration <= best {
			continue
		}

		var normal mgl32.Vec3
		if dist > 0.0001 {
			normal = d.Mul(1.0 / dist)
		} else {
			normal = b.Sub(a).Cross(c.Sub(a))
			if normal.Len() < 0.0001 {
				continue
			}
			normal = normal.Normalize()
		}

		best = penetration
		bestNormal = normal
	}

	if best < 0 {
		return false, mgl32.Vec3{}, 0
	}
	return true, mesh.Rot.Rotate(bestNormal), best
}

// closestPointOnTriangle is the standard voronoi-region point query.
func closestPointOnTriangle(p, a, b, c mgl32.Vec3) mgl32.Vec3 {
	ab := b.Sub(a)
	ac := c.Sub(a)
	ap := p.Sub(a)

	d1 := ab.Dot(ap)
	d2 := ac.Dot(ap)
	if d1 <= 0 && d2 <= 0 {
		return a
	}

	bp := p.Sub(b)
	d3 := ab.Dot(bp)
	d4 := ac.Dot(bp)
	if d3 >= 0 && d4 <= d3 {
		return b
	}

	vc := d1*d4 - d3*d2
	if vc <= 0 && d1 >= 0 && d3 <= 0 {
		v := d1 / (d1 - d3)
		return a.Add(ab.Mul(v))
	}

	cp := p.Sub(c)
	d5 := ab.Dot(cp)
	d6 := ac.Dot(cp)
	if d6 >= 0 && d5 <= d6 {
		return c
	}

	vb := d5*d2 - d1*d6
	if vb <= 0 && d2 >= 0 && d6 <= 0 {
		w := d2 / (d2 - d6)
		return a.Add(ac.Mul(w))
	}

	va := d3*d6 - d5*d4
	if va <= 0 && (d4-d3) >= 0 && (d5-d6) >= 0 {
		w := (d4 - d3) / ((d4 - d3) + (d5 - d6))
		return b.Add(c.Sub(b).Mul(w))
	}

	denom := 1.0 / (va + vb + vc)
	v := vb * denom
	w := vc * denom
	return a.Add(ab.Mul(v)).Add(ac.Mul(w))
}

func abs32(v float32) float32 {
	return float32(math.Abs(float64(v)))
}

func clamp32(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func sign32(v float32) float32 {
	if v < 0 {
		return -1
	}
	return 1
}
