package tumble

import (
	"fmt"
	"reflect"
	"runtime"
)

type systemFn any

// Module is an installable unit of engine or gameplay behavior: it
// registers resources and systems on the App. Mirrors what a plugin is
// in most ECS engines.
type Module interface {
	Install(app *App, cmd *Commands)
}

type App struct {
	stages    []Stage
	systems   map[string][]systemFn
	resources map[reflect.Type]any
	ecs       *Ecs

	quitRequested bool

	// Command buffering
	pendingAdditions    []pendingAdd
	pendingRemovals     []EntityId
	pendingCompAdds     []pendingCompAdd
	pendingCompRemovals []pendingCompRemoval
}

type pendingAdd struct {
	eid        EntityId
	components []any
}

type pendingCompAdd struct {
	eid        EntityId
	components []any
}

type pendingCompRemoval struct {
	eid        EntityId
	components []any
}

func (app *App) Commands() *Commands {
	return &Commands{
		app: app,
	}
}

// Run drives the tick loop until a system requests a quit via
// Commands.Quit. Each tick executes every stage in order with a
// command flush after each stage.
func (app *App) Run() {
	for !app.quitRequested {
		app.Tick()
	}
	app.Logger().Infof("run loop finished")
}

// Tick executes one frame. Exposed so tests can advance the world
// deterministically without entering the run loop.
func (app *App) Tick() {
	for _, stage := range app.stages {
		for _, system := range app.systems[stage.Name] {
			app.callSystem(system)
		}
		app.FlushCommands()
	}
}

func (app *App) addResources(resources ...any) *App {
	for _, resource := range resources {
		resourceType := reflect.TypeOf(resource)
		if _, ok := app.resources[resourceType.Elem()]; ok {
			panic(fmt.Sprintf("%s is already in resources", resourceType))
		}

		app.resources[resourceType.Elem()] = resource
	}
	return app
}

func (app *App) callSystem(system systemFn) {
	systemType := reflect.TypeOf(system)
	systemValue := reflect.ValueOf(system)

	args := make([]reflect.Value, systemType.NumIn())

	for i := 0; i < systemType.NumIn(); i++ {
		argType := systemType.In(i)
		underlyingType := argType.Elem()

		if underlyingType == typeOfCommands {
			args[i] = reflect.ValueOf(&Commands{app: app})
		} else if resource, argIsResource := app.resources[underlyingType]; argIsResource {
			args[i] = reflect.ValueOf(resource)
		} else {
			msg := fmt.Sprintf("Unable to resolve System dependency.\nSystem: %s\nSystem type: %s\nDependency: %s",
				runtime.FuncForPC(systemValue.Pointer()).Name(),
				fmt.Sprint(systemType),
				fmt.Sprint(argType),
			)
			panic(msg)
		}
	}
	systemValue.Call(args)
}

var typeOfCommands = reflect.TypeOf(Commands{})

func (app *App) FlushCommands() {
	if len(app.pendingAdditions) == 0 && len(app.pendingRemovals) == 0 &&
		len(app.pendingCompAdds) == 0 && len(app.pendingCompRemovals) == 0 {
		return
	}

	// Removals first, so we don't add to dead entities
	for _, eid := range app.pendingRemovals {
		app.ecs.removeEntity(eid)
	}
	app.pendingRemovals = app.pendingRemovals[:0]

	for _, add := range app.pendingAdditions {
		app.ecs.insertEntity(add.eid, add.components...)
	}
	app.pendingAdditions = app.pendingAdditions[:0]

	for _, add := range app.pendingCompAdds {
		app.ecs.addComponents(add.eid, add.components...)
	}
	app.pendingCompAdds = app.pendingCompAdds[:0]

	for _, rem := range app.pendingCompRemovals {
		app.ecs.removeComponents(rem.eid, rem.components...)
	}
	app.pendingCompRemovals = app.pendingCompRemovals[:0]
}
