// internal/core/usecases/module_task.go
package usecases

import (
	"context"

	"droidsweep/internal/core/ports"
)

// ModuleTask adapta la ejecución de un módulo a workerpool.Task.
type ModuleTask struct {
	name     string
	priority int
	weight   int
	run      func(ctx context.Context) (ports.Artifact, error)

	artifact ports.Artifact
	err      error
}

// NewModuleTask crea una tarea que ejecuta run para el módulo name.
func NewModuleTask(name string, priority, weight int, run func(ctx context.Context) (ports.Artifact, error)) *ModuleTask {
	return &ModuleTask{
		name:     name,
		priority: priority,
		weight:   weight,
		run:      run,
	}
}

func (mt *ModuleTask) Execute(ctx context.Context) error {
	mt.artifact, mt.err = mt.run(ctx)
	return mt.err
}

func (mt *ModuleTask) Priority() int { return mt.priority }

func (mt *ModuleTask) Weight() int { return mt.weight }

func (mt *ModuleTask) Name() string { return mt.name }

// Result retorna el artifact (posiblemente parcial) y el error de la ejecución.
func (mt *ModuleTask) Result() (ports.Artifact, error) {
	return mt.artifact, mt.err
}
