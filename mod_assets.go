package tumble

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
)

type AssetId string

func makeAssetId() AssetId {
	return AssetId(uuid.NewString())
}

// Mesh is a handle to geometry registered with the AssetServer.
type Mesh struct {
	assetId AssetId
}

type MeshAsset struct {
	version   uint
	Positions []float32 // xyz triples
	Indices   []uint32
}

type AssetServer struct {
	meshes map[AssetId]MeshAsset
}

func (server *AssetServer) LoadMesh(positions []float32, indices []uint32) Mesh {
	id := makeAssetId()
	server.meshes[id] = MeshAsset{
		version:   0,
		Positions: positions,
		Indices:   indices,
	}
	return Mesh{assetId: id}
}

// MeshData resolves a mesh handle back into its geometry.
func (server *AssetServer) MeshData(mesh Mesh) (MeshAsset, bool) {
	asset, ok := server.meshes[mesh.assetId]
	return asset, ok
}

type AssetServerModule struct{}

func (AssetServerModule) Install(app *App, cmd *Commands) {
	app.addResources(&AssetServer{
		meshes: make(map[AssetId]MeshAsset),
	})
}

// MeshComponent links a scene-node entity to its registered geometry.
type MeshComponent struct {
	Mesh Mesh
}

// SceneNodeTag marks entities instantiated from the level document, so
// a hot reload can tear down exactly the previous instantiation.
type SceneNodeTag struct{}

type SceneAssetEventKind int

const (
	SceneAssetReloading SceneAssetEventKind = iota
	SceneAssetLoaded
)

type SceneAssetEvent struct {
	Kind SceneAssetEventKind
	Path string
}

type sceneLoadResult struct {
	doc *SceneDocument
	err error
}

// SceneAssets is the load-lifecycle surface of the level asset.
// Events holds this tick's lifecycle events and is rebuilt every tick;
// consumers that care must read it the tick it is published.
type SceneAssets struct {
	Events []SceneAssetEvent

	path    string
	results chan sceneLoadResult
	changes chan string
	watcher *fsnotify.Watcher

	loading bool
}

// SceneModule asynchronously loads the level document at Path,
// instantiates its nodes as entities, and (when Watch is set) reloads
// it whenever the file changes on disk.
type SceneModule struct {
	Path  string
	Watch bool
}

func (m SceneModule) Install(app *App, cmd *Commands) {
	assets := &SceneAssets{
		path:    m.Path,
		results: make(chan sceneLoadResult, 1),
		changes: make(chan string, 16),
	}

	if m.Watch {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			app.Logger().Errorf("scene watcher unavailable: %v", err)
		} else if err := watcher.Add(filepath.Dir(m.Path)); err != nil {
			app.Logger().Errorf("scene watcher on %s: %v", filepath.Dir(m.Path), err)
			watcher.Close()
		} else {
			assets.watcher = watcher
			go watchSceneFile(watcher, m.Path, assets.changes)
		}
	}

	assets.beginLoad()

	app.addResources(assets)
	app.UseSystem(System(sceneAssetSystem).InStage(Prelude))
}

func (assets *SceneAssets) beginLoad() {
	assets.loading = true
	path := assets.path
	results := assets.results
	go func() {
		doc, err := decodeGLTF(path)
		results <- sceneLoadResult{doc: doc, err: err}
	}()
}

func watchSceneFile(watcher *fsnotify.Watcher, path string, changes chan<- string) {
	abs, _ := filepath.Abs(path)
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			evAbs, _ := filepath.Abs(event.Name)
			if evAbs != abs {
				continue
			}
			select {
			case changes <- event.Name:
			default:
				// A reload is already queued
			}
		case _, ok := <-watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

// sceneAssetSystem drains the watcher and decoder channels, publishes
// this tick's lifecycle events, and instantiates freshly decoded
// documents as entities.
func sceneAssetSystem(assets *SceneAssets, server *AssetServer, log *DefaultLogger, cmd *Commands) {
	assets.Events = nil

	// File changed on disk: tear down the previous instantiation and
	// start a fresh decode.
	changed := false
	for {
		select {
		case <-assets.changes:
			changed = true
			continue
		default:
		}
		break
	}
	if changed {
		log.Infof("level %s changed on disk, reloading", assets.path)
		assets.Events = append(assets.Events, SceneAssetEvent{Kind: SceneAssetReloading, Path: assets.path})
		despawnSceneNodes(cmd)
		if !assets.loading {
			assets.beginLoad()
		}
	}

	select {
	case result := <-assets.results:
		assets.loading = false
		if result.err != nil {
			log.Errorf("level load failed: %v", result.err)
			return
		}
		instantiateScene(result.doc, server, cmd)
		log.Infof("level %s loaded: %d nodes", result.doc.Path, len(result.doc.Nodes))
		assets.Events = append(assets.Events, SceneAssetEvent{Kind: SceneAssetLoaded, Path: result.doc.Path})
	default:
	}
}

func despawnSceneNodes(cmd *Commands) {
	MakeQuery1[SceneNodeTag](cmd).Map(func(eid EntityId, tag *SceneNodeTag) bool {
		cmd.RemoveEntity(eid)
		return true
	})
}

// instantiateScene turns a decoded document into entities. Root nodes
// carry their authored transform as the world transform directly;
// children get a Parent link and are settled by the hierarchy system.
func instantiateScene(doc *SceneDocument, server *AssetServer, cmd *Commands) {
	entityByNode := make([]EntityId, len(doc.Nodes))

	for i, node := range doc.Nodes {
		components := []any{
			SceneNodeTag{},
			NameComponent{Name: node.Name},
			TransformComponent{
				Position: node.Translation,
				Rotation: node.Rotation,
				Scale:    node.Scale,
			},
		}

		if node.Parent >= 0 {
			components = append(components,
				Parent{Entity: entityByNode[node.Parent]},
				LocalTransformComponent{
					Position: node.Translation,
					Rotation: node.Rotation,
					Scale:    node.Scale,
				},
			)
		}

		if node.Mesh != nil {
			positions := make([]float32, 0, len(node.Mesh.Positions)*3)
			for _, p := range node.Mesh.Positions {
				positions = append(positions, p.X(), p.Y(), p.Z())
			}
			mesh := server.LoadMesh(positions, node.Mesh.Indices)
			components = append(components, MeshComponent{Mesh: mesh})
		}

		entityByNode[i] = cmd.AddEntity(components...)
	}
}
