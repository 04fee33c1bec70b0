// internal/platform/workerpool/schedulers.go
package workerpool

import (
	"sort"
	"strings"
)

// PriorityScheduler ejecuta primero las tareas de mayor prioridad. Los empates
// van a la tarea más ligera y luego al nombre, así el orden es estable.
type PriorityScheduler struct{}

func NewPriorityScheduler() *PriorityScheduler {
	return &PriorityScheduler{}
}

func (s *PriorityScheduler) Schedule(tasks []Task) []Task {
	scheduled := append([]Task(nil), tasks...)
	sort.SliceStable(scheduled, func(i, j int) bool {
		a, b := scheduled[i], scheduled[j]
		if a.Priority() != b.Priority() {
			return a.Priority() > b.Priority()
		}
		if a.Weight() != b.Weight() {
			return a.Weight() < b.Weight()
		}
		return a.Name() < b.Name()
	})
	return scheduled
}

func (s *PriorityScheduler) Name() string { return "priority" }

// WeightedScheduler ordena tareas por peso (menor primero) para que los
// módulos baratos terminen antes que el backup o el dumpsys completo.
type WeightedScheduler struct{}

func NewWeightedScheduler() *WeightedScheduler {
	return &WeightedScheduler{}
}

func (s *WeightedScheduler) Schedule(tasks []Task) []Task {
	scheduled := append([]Task(nil), tasks...)
	sort.SliceStable(scheduled, func(i, j int) bool {
		a, b := scheduled[i], scheduled[j]
		if a.Weight() != b.Weight() {
			return a.Weight() < b.Weight()
		}
		return a.Priority() > b.Priority()
	})
	return scheduled
}

func (s *WeightedScheduler) Name() string { return "weighted" }

// FIFOScheduler mantiene el orden de envío.
type FIFOScheduler struct{}

func NewFIFOScheduler() *FIFOScheduler {
	return &FIFOScheduler{}
}

func (s *FIFOScheduler) Schedule(tasks []Task) []Task {
	return append([]Task(nil), tasks...)
}

func (s *FIFOScheduler) Name() string { return "fifo" }

// SchedulerByName resuelve el nombre configurado. Un nombre desconocido
// usa el PriorityScheduler.
func SchedulerByName(name string) Scheduler {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "weighted":
		return NewWeightedScheduler()
	case "fifo":
		return NewFIFOScheduler()
	default:
		return NewPriorityScheduler()
	}
}
