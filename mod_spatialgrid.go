package tumble

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// SpatialHashGrid buckets integer ids by the grid cells their AABB
// touches. The physics solver uses one per triangle-mesh collider so a
// sphere query touches a handful of triangles instead of the whole
// level.
type SpatialHashGrid struct {
	cellSize float32
	cells    map[uint64][]int32
}

func NewSpatialHashGrid(cellSize float32) *SpatialHashGrid {
	return &SpatialHashGrid{
		cellSize: cellSize,
		cells:    make(map[uint64][]int32),
	}
}

func (grid *SpatialHashGrid) Clear() {
	for k := range grid.cells {
		delete(grid.cells, k)
	}
}

func (grid *SpatialHashGrid) Insert(id int32, min, max mgl32.Vec3) {
	minX, maxX := grid.getCellIndex(min.X()), grid.getCellIndex(max.X())
	minY, maxY := grid.getCellIndex(min.Y()), grid.getCellIndex(max.Y())
	minZ, maxZ := grid.getCellIndex(min.Z()), grid.getCellIndex(max.Z())

	for x := minX; x <= maxX; x++ {
		for y := minY; y <= maxY; y++ {
			for z := minZ; z <= maxZ; z++ {
				key := grid.hashKey(x, y, z)
				grid.cells[key] = append(grid.cells[key], id)
			}
		}
	}
}

// QueryAABB returns broadphase candidates; callers do the exact test.
func (grid *SpatialHashGrid) QueryAABB(min, max mgl32.Vec3) []int32 {
	minX, maxX := grid.getCellIndex(min.X()), grid.getCellIndex(max.X())
	minY, maxY := grid.getCellIndex(min.Y()), grid.getCellIndex(max.Y())
	minZ, maxZ := grid.getCellIndex(min.Z()), grid.getCellIndex(max.Z())

	unique := make(map[int32]struct{})
	var results []int32

	for x := minX; x <= maxX; x++ {
		for y := minY; y <= maxY; y++ {
			for z := minZ; z <= maxZ; z++ {
				key := grid.hashKey(x, y, z)
				for _, id := range grid.cells[key] {
					if _, ok := unique[id]; !ok {
						unique[id] = struct{}{}
						results = append(results, id)
					}
				}
			}
		}
	}
	return results
}

func (grid *SpatialHashGrid) QueryRadius(center mgl32.Vec3, radius float32) []int32 {
	r := mgl32.Vec3{radius, radius, radius}
	return grid.QueryAABB(center.Sub(r), center.Add(r))
}

func (grid *SpatialHashGrid) getCellIndex(pos float32) int {
	return int(math.Floor(float64(pos / grid.cellSize)))
}

// Simple hash function for 3D coordinates
func (grid *SpatialHashGrid) hashKey(x, y, z int) uint64 {
	// large primes for mixing
	const p1 = 73856093
	const p2 = 19349663
	const p3 = 83492791
	return uint64(x*p1 ^ y*p2 ^ z*p3)
}
