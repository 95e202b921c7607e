package tumble

import (
	"fmt"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
)

// Node name prefixes are the level-authoring contract: a collider_
// node gives its parent a solid body, a goal_ node a sensor body with
// a GoalTag. A node literally named "bottom" marks the fall threshold.
const (
	colliderPrefix   = "collider_"
	goalPrefix       = "goal_"
	bottomNodeName   = "bottom"
	levelRestitution = 0.8
	goalSpinSpeed    = 0.8 // rad/s
)

type GoalTag struct{}

// Spinning rotates an entity about +Y at a fixed angular speed.
type Spinning struct {
	Speed float32
}

type SceneLoadPhase int

const (
	ScenePending SceneLoadPhase = iota
	SceneScheduledNextTick
	SceneReadyToAttach
	SceneAttached
)

// SceneLoadState gates collider attachment. Attachment is deferred a
// full tick past the loaded event because the instantiated hierarchy
// is not queryable with settled world transforms until then. A reload
// drops the state back to Pending so a stale pass cannot double-fire.
type SceneLoadState struct {
	Phase SceneLoadPhase
}

type ScenePhysicsModule struct{}

func (ScenePhysicsModule) Install(app *App, cmd *Commands) {
	cmd.AddResources(&SceneLoadState{Phase: ScenePending})
	app.UseSystem(System(sceneLoadWatcherSystem).InStage(Prelude))
	app.UseSystem(System(colliderAttachSystem).InStage(PreUpdate))
}

// sceneLoadWatcherSystem advances the load state machine from the
// asset event stream. Runs after the asset system in the same stage,
// so it sees this tick's events.
func sceneLoadWatcherSystem(assets *SceneAssets, state *SceneLoadState) {
	for _, ev := range assets.Events {
		switch ev.Kind {
		case SceneAssetReloading:
			state.Phase = ScenePending
		case SceneAssetLoaded:
			state.Phase = SceneScheduledNextTick
		}
	}
}

// colliderAttachSystem burns one tick between ScheduledNextTick and
// ReadyToAttach, then converts the level's placeholder nodes exactly
// once.
func colliderAttachSystem(state *SceneLoadState, cfg *Config, server *AssetServer, log *DefaultLogger, cmd *Commands) {
	switch state.Phase {
	case SceneScheduledNextTick:
		state.Phase = SceneReadyToAttach
		return
	case SceneReadyToAttach:
	default:
		return
	}

	bodyKind := BodyKinematic
	if cfg.Level.BodyKind == "static" {
		bodyKind = BodyStatic
	}

	solid, sensors := 0, 0

	MakeQuery3[SceneNodeTag, NameComponent, Parent](cmd).Map(func(eid EntityId, tag *SceneNodeTag, name *NameComponent, parent *Parent) bool {
		isCollider := strings.HasPrefix(name.Name, colliderPrefix)
		isGoal := strings.HasPrefix(name.Name, goalPrefix)
		if !isCollider && !isGoal {
			return true
		}

		col := buildNodeCollider(cmd, server, eid, name.Name)
		col.Restitution = levelRestitution

		if isCollider {
			cmd.AddComponents(parent.Entity,
				RigidBodyComponent{Kind: bodyKind},
				col,
			)
			solid++
		} else {
			col.Sensor = true
			cmd.AddComponents(parent.Entity,
				RigidBodyComponent{Kind: bodyKind},
				col,
				GoalTag{},
				Spinning{Speed: goalSpinSpeed},
			)
			sensors++
		}
		return true
	})

	log.Infof("level colliders attached: %d solid, %d goal sensors", solid, sensors)
	state.Phase = SceneAttached
}

// buildNodeCollider bakes a placeholder node's mesh, expressed in its
// parent's frame, into a triangle-mesh collider. A placeholder without
// usable geometry is an authoring defect in the level file and fatal.
func buildNodeCollider(cmd *Commands, server *AssetServer, eid EntityId, nodeName string) ColliderComponent {
	meshComp, ok := GetComponent[MeshComponent](cmd, eid)
	if !ok {
		panic(fmt.Sprintf("level authoring error: node %q has no mesh to build a collider from", nodeName))
	}
	asset, ok := server.MeshData(meshComp.Mesh)
	if !ok {
		panic(fmt.Sprintf("level authoring error: node %q references an unknown mesh", nodeName))
	}

	// Express vertices in the parent's frame: the body attaches to the
	// parent, the geometry is authored on the placeholder child.
	positions := asset.Positions
	if local, ok := GetComponent[LocalTransformComponent](cmd, eid); ok {
		positions = make([]float32, len(asset.Positions))
		for i := 0; i+2 < len(asset.Positions); i += 3 {
			v := mgl32.Vec3{
				asset.Positions[i] * local.Scale.X(),
				asset.Positions[i+1] * local.Scale.Y(),
				asset.Positions[i+2] * local.Scale.Z(),
			}
			v = local.Rotation.Rotate(v).Add(local.Position)
			positions[i], positions[i+1], positions[i+2] = v.X(), v.Y(), v.Z()
		}
	}

	col, err := NewTriangleMeshCollider(MeshAsset{Positions: positions, Indices: asset.Indices}, mgl32.Vec3{1, 1, 1})
	if err != nil {
		panic(fmt.Sprintf("level authoring error: node %q: %v", nodeName, err))
	}
	return col
}
