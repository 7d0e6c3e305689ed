package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/chatsounds/soundboard-server/internal/metrics"
	"github.com/chatsounds/soundboard-server/internal/model"
	"github.com/chatsounds/soundboard-server/internal/session"
)

const taskTimeout = 30 * time.Second

// Task is one periodic maintenance step. Run returns how many items it touched.
type Task struct {
	Name string
	Run  func(ctx context.Context) (int, error)
}

// SessionSweep removes expired dashboard sessions.
func SessionSweep(store session.Store, recorder metrics.Recorder) Task {
	return Task{
		Name: "expired sessions",
		Run: func(ctx context.Context) (int, error) {
			n, err := store.SweepExpired(ctx)
			if err == nil {
				recorder.RecordSessionsSwept(n)
			}
			return n, err
		},
	}
}

type Reconciler interface {
	Reconcile(ctx context.Context) ([]model.PlayCountDrift, error)
}

// DriftCheck reports sounds whose play counter disagrees with the play log.
func DriftCheck(r Reconciler) Task {
	return Task{
		Name: "play counter drift",
		Run: func(ctx context.Context) (int, error) {
			drift, err := r.Reconcile(ctx)
			return len(drift), err
		},
	}
}

type CleanupJob struct {
	clock    clockwork.Clock
	interval time.Duration
	tasks    []Task
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

func NewCleanupJob(clock clockwork.Clock, interval time.Duration, tasks ...Task) *CleanupJob {
	return &CleanupJob{
		clock:    clock,
		interval: interval,
		tasks:    tasks,
		done:     make(chan struct{}),
	}
}

func (j *CleanupJob) Start() {
	j.wg.Add(1)
	go j.run()
	log.Info().Dur("interval", j.interval).Int("tasks", len(j.tasks)).Msg("cleanup job started")
}

// Stop waits for an in-flight pass to finish.
func (j *CleanupJob) Stop() {
	j.stopOnce.Do(func() {
		close(j.done)
		j.wg.Wait()
		log.Info().Msg("cleanup job stopped")
	})
}

func (j *CleanupJob) run() {
	defer j.wg.Done()

	ticker := j.clock.NewTicker(j.interval)
	defer ticker.Stop()

	j.cleanup()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.Chan():
			j.cleanup()
		}
	}
}

func (j *CleanupJob) cleanup() {
	for _, task := range j.tasks {
		j.runTask(task)
	}
}

func (j *CleanupJob) runTask(task Task) {
	ctx, cancel := context.WithTimeout(context.Background(), taskTimeout)
	defer cancel()

	count, err := task.Run(ctx)
	if err != nil {
		log.Error().Err(err).Msgf("failed to clean up %s", task.Name)
	} else if count > 0 {
		log.Info().Int("count", count).Msgf("cleaned up %s", task.Name)
	}
}
