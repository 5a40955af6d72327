// Package scheduler owns the process's background loops. Jobs are
// registered with a fixed interval, started together, and stopped together;
// Stop waits for any running iteration to finish so an in-progress write is
// never cut off.
package scheduler

import (
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is one iteration of a background loop. Errors are logged, never
// fatal; the next iteration runs regardless.
type Job func() error

// Scheduler runs named interval jobs on a shared cron runner.
type Scheduler struct {
	cron *cron.Cron
}

// New creates a Scheduler. Iterations of the same job never overlap: if an
// iteration outlives its interval, the next tick is skipped.
func New() *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.SkipIfStillRunning(cron.DiscardLogger),
		)),
	}
}

// Add registers a job to run every interval. The first run happens one
// interval after Start.
func (s *Scheduler) Add(name string, interval time.Duration, job Job) error {
	if name == "" {
		return fmt.Errorf("scheduler: job name is required")
	}
	if interval <= 0 {
		return fmt.Errorf("scheduler: %s: interval must be positive", name)
	}
	spec := fmt.Sprintf("@every %s", interval)
	_, err := s.cron.AddFunc(spec, func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("scheduler: %s: panic recovered: %v", name, r)
			}
		}()
		if err := job(); err != nil {
			log.Printf("scheduler: %s: %v", name, err)
		}
	})
	if err != nil {
		return fmt.Errorf("scheduler: add %s: %w", name, err)
	}
	return nil
}

// Start begins running registered jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and blocks until running iterations complete.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
