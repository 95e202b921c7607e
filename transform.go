package tumble

import (
	"github.com/go-gl/mathgl/mgl32"
)

// TransformComponent is the world-space pose of an entity.
type TransformComponent struct {
	Position mgl32.Vec3
	Rotation mgl32.Quat
	Scale    mgl32.Vec3
}

// LocalTransformComponent is a pose relative to the entity's Parent.
// The hierarchy system derives the world TransformComponent from it.
type LocalTransformComponent struct {
	Position mgl32.Vec3
	Rotation mgl32.Quat
	Scale    mgl32.Vec3
}

type Parent struct {
	Entity EntityId
}

// NameComponent carries the authored node name. The level format's
// naming conventions (collider_/goal_ prefixes, the bottom threshold
// node) are resolved against it.
type NameComponent struct {
	Name string
}

func IdentityTransform() TransformComponent {
	return TransformComponent{
		Rotation: mgl32.QuatIdent(),
		Scale:    mgl32.Vec3{1, 1, 1},
	}
}

// Forward returns the direction the transform faces, using the same
// yaw convention as the cameras: identity looks down -Z.
func (tr *TransformComponent) Forward() mgl32.Vec3 {
	return tr.Rotation.Rotate(mgl32.Vec3{0, 0, -1})
}

func (tr *TransformComponent) Back() mgl32.Vec3 {
	return tr.Rotation.Rotate(mgl32.Vec3{0, 0, 1})
}

func (tr *TransformComponent) Right() mgl32.Vec3 {
	return tr.Rotation.Rotate(mgl32.Vec3{1, 0, 0})
}

func (tr *TransformComponent) Left() mgl32.Vec3 {
	return tr.Rotation.Rotate(mgl32.Vec3{-1, 0, 0})
}
