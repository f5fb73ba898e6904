package pipeline

import (
	"context"
	"sync"

	"github.com/goshield/goshield/internal/adapters/repository"
	"github.com/goshield/goshield/internal/domain/model"
	"github.com/goshield/goshield/internal/retry"
	"github.com/goshield/goshield/pkg/logger"
	"github.com/goshield/goshield/pkg/metrics"
)

// persistQueue is the bounded retry queue for assessments whose synchronous
// append failed. A single worker drains it so repository pressure stays
// bounded during an outage.
type persistQueue struct {
	tasks  chan *model.RiskAssessment
	repo   repository.AssessmentRepository
	policy retry.Policy
	logger logger.Logger

	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

func newPersistQueue(repo repository.AssessmentRepository, size int, policy retry.Policy, log logger.Logger) *persistQueue {
	if size <= 0 {
		size = 64
	}
	return &persistQueue{
		tasks:  make(chan *model.RiskAssessment, size),
		repo:   repo,
		policy: policy,
		logger: log,
		done:   make(chan struct{}),
	}
}

func (q *persistQueue) start() {
	q.startOnce.Do(func() {
		q.wg.Add(1)
		go q.run()
	})
}

func (q *persistQueue) stop() {
	q.stopOnce.Do(func() {
		close(q.done)
	})
	q.wg.Wait()
}

// enqueue hands an assessment to the background worker. A full queue drops
// the task; the caller already surfaced the persistence failure.
func (q *persistQueue) enqueue(a *model.RiskAssessment) bool {
	select {
	case q.tasks <- a:
		q.updateGauges()
		return true
	default:
		q.logger.Error(context.Background(), "persistence retry queue full, dropping assessment",
			logger.String("sessionID", a.SessionID),
			logger.Uint64("seq", a.Seq),
		)
		return false
	}
}

func (q *persistQueue) run() {
	defer q.wg.Done()
	for {
		select {
		case <-q.done:
			// Drain what is already queued before exiting.
			for {
				select {
				case a := <-q.tasks:
					q.persist(a)
				default:
					return
				}
			}
		case a := <-q.tasks:
			q.persist(a)
			q.updateGauges()
		}
	}
}

func (q *persistQueue) persist(a *model.RiskAssessment) {
	ctx := context.Background()
	err := retry.Do(ctx, q.policy, func(int) {
		metrics.RecordPersistenceRetry()
	}, func(ctx context.Context) error {
		return q.repo.Append(ctx, a)
	})
	if err != nil {
		q.logger.Error(ctx, "assessment lost after persistence retries",
			logger.String("sessionID", a.SessionID),
			logger.Uint64("seq", a.Seq),
			logger.Error(err),
		)
		return
	}
	q.logger.Info(ctx, "assessment persisted on retry",
		logger.String("sessionID", a.SessionID),
		logger.Uint64("seq", a.Seq),
	)
}

func (q *persistQueue) updateGauges() {
	size := len(q.tasks)
	metrics.UpdateQueueSize(size)
	metrics.UpdateQueueUtilization(float64(size) / float64(cap(q.tasks)))
}
