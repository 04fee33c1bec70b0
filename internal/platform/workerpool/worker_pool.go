// internal/platform/workerpool/worker_pool.go
package workerpool

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"droidsweep/internal/platform/errors"
	"droidsweep/internal/platform/logx"
)

// ErrTaskPanic se devuelve en el TaskResult cuando Execute hizo panic.
var ErrTaskPanic = errors.New("task panicked")

// Task representa una unidad de trabajo del pool (un módulo de análisis).
type Task interface {
	Execute(ctx context.Context) error

	// Priority retorna la prioridad de la tarea (mayor = más prioritario)
	Priority() int

	// Weight retorna el costo estimado de la tarea (0-100)
	Weight() int

	Name() string
}

// Scheduler decide el orden en que se encolan las tareas.
type Scheduler interface {
	Schedule(tasks []Task) []Task
	Name() string
}

// TaskResult representa el resultado de una tarea.
type TaskResult struct {
	Task     Task
	Error    error
	Duration time.Duration
}

// WorkerPoolConfig configura el worker pool.
type WorkerPoolConfig struct {
	Workers   int
	Scheduler Scheduler
	Logger    logx.Logger
}

type job struct {
	ctx     context.Context
	task    Task
	results chan<- TaskResult
}

// WorkerPool ejecuta tareas en un conjunto fijo de goroutines. Un panic en una
// tarea se recupera y se reporta como ErrTaskPanic sin tumbar el worker.
type WorkerPool struct {
	workers   int
	scheduler Scheduler
	logger    logx.Logger

	jobs chan job

	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	started sync.Once
	stopped sync.Once
}

// NewWorkerPool crea un nuevo worker pool. Workers vale 4 por defecto.
func NewWorkerPool(cfg WorkerPoolConfig) *WorkerPool {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.Scheduler == nil {
		cfg.Scheduler = NewPriorityScheduler()
	}
	if cfg.Logger == nil {
		cfg.Logger = logx.New()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerPool{
		workers:   cfg.Workers,
		scheduler: cfg.Scheduler,
		logger:    cfg.Logger.With("component", "worker-pool"),
		jobs:      make(chan job, cfg.Workers*2),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start inicia los workers. Una segunda llamada no hace nada.
func (wp *WorkerPool) Start() {
	wp.started.Do(func() {
		wp.logger.Debug("starting worker pool", "workers", wp.workers, "scheduler", wp.scheduler.Name())
		for i := 0; i < wp.workers; i++ {
			wp.wg.Add(1)
			go wp.worker(i)
		}
	})
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()
	for {
		select {
		case <-wp.ctx.Done():
			return
		case j := <-wp.jobs:
			j.results <- wp.executeTask(j.ctx, id, j.task)
		}
	}
}

func (wp *WorkerPool) executeTask(ctx context.Context, workerID int, task Task) (res TaskResult) {
	start := time.Now()
	res.Task = task

	defer func() {
		res.Duration = time.Since(start)
		if r := recover(); r != nil {
			res.Error = errors.Wrapf(ErrTaskPanic, "%s: %v", task.Name(), r)
			wp.logger.Warn("task panicked",
				"worker_id", workerID,
				"task", task.Name(),
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
			return
		}
		wp.logger.Debug("task completed",
			"worker_id", workerID,
			"task", task.Name(),
			"duration_ms", res.Duration.Milliseconds(),
			"error", res.Error != nil,
		)
	}()

	if err := ctx.Err(); err != nil {
		res.Error = err
		return res
	}
	res.Error = task.Execute(ctx)
	return res
}

// Submit encola las tareas, espera a todas y devuelve los resultados en orden
// de finalización. Las tareas que no se pudieron encolar porque ctx o el pool
// se cancelaron se reportan con el error del contexto.
func (wp *WorkerPool) Submit(ctx context.Context, tasks []Task) []TaskResult {
	if len(tasks) == 0 {
		return []TaskResult{}
	}
	wp.Start()

	scheduled := wp.scheduler.Schedule(tasks)
	wp.logger.Debug("submitting tasks", "total", len(scheduled), "scheduler", wp.scheduler.Name())

	// Con buffer: un worker nunca se bloquea si el caller deja de leer.
	resultsCh := make(chan TaskResult, len(scheduled))
	results := make([]TaskResult, 0, len(scheduled))
	queued := 0

	for _, task := range scheduled {
		select {
		case wp.jobs <- job{ctx: ctx, task: task, results: resultsCh}:
			queued++
		case <-ctx.Done():
			results = append(results, TaskResult{Task: task, Error: ctx.Err()})
		case <-wp.ctx.Done():
			results = append(results, TaskResult{Task: task, Error: context.Canceled})
		}
	}

	for i := 0; i < queued; i++ {
		select {
		case r := <-resultsCh:
			results = append(results, r)
		case <-wp.ctx.Done():
			wp.logger.Warn("pool stopped while waiting for results", "pending", queued-i)
			return results
		}
	}
	return results
}

// Stop detiene el worker pool y espera a que los workers terminen.
func (wp *WorkerPool) Stop() {
	wp.stopped.Do(func() {
		wp.cancel()
		wp.wg.Wait()
		wp.logger.Debug("worker pool stopped")
	})
}

// WorkerPoolStats contiene estadísticas del worker pool.
type WorkerPoolStats struct {
	Workers       int
	SchedulerName string
	QueueSize     int
}

func (wp *WorkerPool) Stats() WorkerPoolStats {
	return WorkerPoolStats{
		Workers:       wp.workers,
		SchedulerName: wp.scheduler.Name(),
		QueueSize:     len(wp.jobs),
	}
}
