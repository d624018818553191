package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/shortform-agent/internal/models"
	"github.com/shortform-agent/pkg/logger"
)

// Runner owns script execution and enforces the single-writer invariant:
// at most one controller run per script at a time. Distinct scripts run
// concurrently, each on its own goroutine.
type Runner struct {
	controller *Controller
	log        *logger.Logger

	mu     sync.Mutex
	active map[uint]struct{}
	wg     sync.WaitGroup

	// OnTerminal, when set, is invoked after a script reaches a terminal
	// state. The conveyor uses it to update spend counters.
	OnTerminal func(ctx context.Context, script *models.Script)
}

// NewRunner creates a runner around the controller
func NewRunner(controller *Controller, log *logger.Logger) *Runner {
	return &Runner{
		controller: controller,
		log:        log.WithComponent("runner"),
		active:     make(map[uint]struct{}),
	}
}

// Start begins running the script asynchronously. It fails if the script
// is already running.
func (r *Runner) Start(ctx context.Context, scriptID uint) error {
	r.mu.Lock()
	if _, ok := r.active[scriptID]; ok {
		r.mu.Unlock()
		return fmt.Errorf("script %d already running", scriptID)
	}
	r.active[scriptID] = struct{}{}
	r.mu.Unlock()

	r.wg.Add(1)
	// The run is detached from the caller's cancellation: a stop request
	// is honored only at iteration boundaries (Wait), never by aborting
	// an agent call or its persistence mid-flight.
	runCtx := context.WithoutCancel(ctx)
	go func() {
		defer r.wg.Done()
		defer func() {
			r.mu.Lock()
			delete(r.active, scriptID)
			r.mu.Unlock()
		}()

		script, err := r.controller.Run(runCtx, scriptID)
		if err != nil {
			r.log.Error().Err(err).Uint("script_id", scriptID).Msg("Script run ended with error")
		}
		if script != nil && r.OnTerminal != nil {
			r.OnTerminal(runCtx, script)
		}
	}()

	return nil
}

// Run executes the script synchronously, holding the same single-writer
// reservation as Start. Used by the CLI.
func (r *Runner) Run(ctx context.Context, scriptID uint) (*models.Script, error) {
	r.mu.Lock()
	if _, ok := r.active[scriptID]; ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("script %d already running", scriptID)
	}
	r.active[scriptID] = struct{}{}
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		delete(r.active, scriptID)
		r.mu.Unlock()
	}()

	script, err := r.controller.Run(ctx, scriptID)
	if script != nil && r.OnTerminal != nil {
		r.OnTerminal(ctx, script)
	}
	return script, err
}

// IsActive reports whether the script is currently running
func (r *Runner) IsActive(scriptID uint) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.active[scriptID]
	return ok
}

// ActiveCount returns the number of scripts currently running
func (r *Runner) ActiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}

// Wait blocks until all in-flight scripts finish. Pausing the conveyor
// never cancels runs; shutdown waits for iteration boundaries.
func (r *Runner) Wait() {
	r.wg.Wait()
}
