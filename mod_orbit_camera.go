package tumble

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// pitch stops just short of ±π/2 to avoid gimbal flip
const cameraPitchLimit = 1.54

type CameraComponent struct {
	Position mgl32.Vec3
	Rotation mgl32.Quat
}

type CameraMode int

const (
	CameraModeFreeFly CameraMode = iota
	CameraModeOrbit
)

type OrbitCameraState struct {
	FollowTarget EntityId
	Distance     float32
	Sensitivity  float32
}

type FlyCameraState struct {
	Speed       float32
	Sensitivity float32
}

// CameraRigComponent holds the camera's control mode as a tagged
// variant: Mode selects which state is live, so a camera is never in
// both modes or neither.
type CameraRigComponent struct {
	Mode  CameraMode
	Orbit OrbitCameraState
	Fly   FlyCameraState
}

type CameraModule struct{}

func (m CameraModule) Install(app *App, cmd *Commands) {
	cmd.AddEntity(
		CameraComponent{
			Position: mgl32.Vec3{0, 3, 8},
			Rotation: mgl32.QuatIdent(),
		},
		CameraRigComponent{
			Mode: CameraModeFreeFly,
			Fly:  FlyCameraState{Speed: 5.0, Sensitivity: 0.002},
		},
	)

	app.UseSystem(System(cameraModeSystem).InStage(PreUpdate))
	app.UseSystem(System(orbitCameraSystem).InStage(PostUpdate))
	app.UseSystem(System(flyCameraSystem).InStage(PostUpdate))
}

// yaw/pitch convention: identity looks down -Z, pitch > 0 looks up.
func decomposeYawPitch(rot mgl32.Quat) (yaw, pitch float32) {
	forward := rot.Rotate(mgl32.Vec3{0, 0, -1})
	pitch = float32(math.Asin(float64(clamp32(forward.Y(), -1, 1))))
	yaw = float32(math.Atan2(float64(-forward.X()), float64(-forward.Z())))
	return yaw, pitch
}

// composeYawPitch rebuilds the orientation with roll fixed at zero.
func composeYawPitch(yaw, pitch float32) mgl32.Quat {
	return mgl32.QuatRotate(yaw, mgl32.Vec3{0, 1, 0}).
		Mul(mgl32.QuatRotate(pitch, mgl32.Vec3{1, 0, 0}))
}

// orbitCameraSystem runs the mouse-look orbit: accumulate this tick's
// mouse deltas into yaw/pitch (only while the cursor is captured —
// the input layer drains the queue either way), clamp pitch, and park
// the camera behind the follow target at the configured distance.
func orbitCameraSystem(input *Input, log *DefaultLogger, cmd *Commands) {
	MakeQuery2[CameraComponent, CameraRigComponent](cmd).Map(func(eid EntityId, cam *CameraComponent, rig *CameraRigComponent) bool {
		if rig.Mode != CameraModeOrbit {
			return true
		}

		yaw, pitch := decomposeYawPitch(cam.Rotation)

		if input.MouseCaptured {
			// Scaling by the smaller window dimension keeps angular
			// sensitivity consistent across aspect ratios.
			smaller := min(input.WindowWidth, input.WindowHeight)
			scale := rig.Orbit.Sensitivity * float32(smaller)
			for _, motion := range input.MouseMotions {
				yaw -= float32(motion.DeltaX) * scale
				pitch -= float32(motion.DeltaY) * scale
			}
		}

		pitch = clamp32(pitch, -cameraPitchLimit, cameraPitchLimit)
		cam.Rotation = composeYawPitch(yaw, pitch)

		target, ok := GetComponent[TransformComponent](cmd, rig.Orbit.FollowTarget)
		if !ok {
			log.Errorf("orbit camera: follow target %v has no pose", rig.Orbit.FollowTarget)
			return true
		}

		back := cam.Rotation.Rotate(mgl32.Vec3{0, 0, 1})
		cam.Position = target.Position.Add(back.Mul(rig.Orbit.Distance))
		return true
	})
}

func flyCameraSystem(input *Input, timeRes *Time, cmd *Commands) {
	dt := float32(timeRes.Dt.Seconds())
	if dt <= 0 {
		return
	}

	MakeQuery2[CameraComponent, CameraRigComponent](cmd).Map(func(eid EntityId, cam *CameraComponent, rig *CameraRigComponent) bool {
		if rig.Mode != CameraModeFreeFly {
			return true
		}

		yaw, pitch := decomposeYawPitch(cam.Rotation)

		if input.MouseCaptured {
			for _, motion := range input.MouseMotions {
				yaw -= float32(motion.DeltaX) * rig.Fly.Sensitivity
				pitch -= float32(motion.DeltaY) * rig.Fly.Sensitivity
			}
		}

		pitch = clamp32(pitch, -cameraPitchLimit, cameraPitchLimit)
		cam.Rotation = composeYawPitch(yaw, pitch)

		forward := cam.Rotation.Rotate(mgl32.Vec3{0, 0, -1})
		right := forward.Cross(mgl32.Vec3{0, 1, 0}).Normalize()
		up := mgl32.Vec3{0, 1, 0}

		move := mgl32.Vec3{}
		if input.Pressed[KeyW] {
			move = move.Add(forward)
		}
		if input.Pressed[KeyS] {
			move = move.Sub(forward)
		}
		if input.Pressed[KeyA] {
			move = move.Sub(right)
		}
		if input.Pressed[KeyD] {
			move = move.Add(right)
		}
		if input.Pressed[KeySpace] {
			move = move.Add(up)
		}
		if input.Pressed[KeyControl] {
			move = move.Sub(up)
		}

		if move.Len() > 0 {
			cam.Position = cam.Position.Add(move.Normalize().Mul(rig.Fly.Speed * dt))
		}
		return true
	})
}

// cameraModeSystem switches every camera rig between orbit and
// free-fly. Orbit needs the singleton ball as follow target; without
// one the switch is aborted with a warning.
func cameraModeSystem(input *Input, bindings *KeyBindings, cfg *Config, balls *BallRegistry, log *DefaultLogger, cmd *Commands) {
	if input.JustPressed[bindings.OrbitCamera] {
		ball, ok := balls.Ball()
		if !ok {
			log.Warnf("cannot switch to orbit camera: no ball")
		} else {
			MakeQuery1[CameraRigComponent](cmd).Map(func(eid EntityId, rig *CameraRigComponent) bool {
				rig.Mode = CameraModeOrbit
				rig.Orbit = OrbitCameraState{
					FollowTarget: ball,
					Distance:     cfg.Camera.Distance,
					Sensitivity:  cfg.Camera.Sensitivity,
				}
				return true
			})
		}
	}

	if input.JustPressed[bindings.FlyCamera] {
		MakeQuery1[CameraRigComponent](cmd).Map(func(eid EntityId, rig *CameraRigComponent) bool {
			rig.Mode = CameraModeFreeFly
			return true
		})
	}
}
