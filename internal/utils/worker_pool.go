package utils

import (
	"sync"

	"go.uber.org/zap"
)

// WorkerPool runs submitted jobs on a fixed number of goroutines.
type WorkerPool struct {
	JobQueue  chan func()
	WorkerNum int

	log  *zap.Logger
	wg   sync.WaitGroup
	quit chan struct{}
	once sync.Once
}

func NewWorkerPool(workerNum, queueSize int, log *zap.Logger) *WorkerPool {
	if workerNum < 1 {
		workerNum = 1
	}
	return &WorkerPool{
		JobQueue:  make(chan func(), queueSize),
		WorkerNum: workerNum,
		log:       log,
		quit:      make(chan struct{}),
	}
}

func (p *WorkerPool) Start() {
	for i := 0; i < p.WorkerNum; i++ {
		p.wg.Add(1)
		go func(workerID int) {
			defer p.wg.Done()
			for {
				select {
				case job := <-p.JobQueue:
					p.run(workerID, job)
				case <-p.quit:
					return
				}
			}
		}(i)
	}
	p.log.Debug("Worker pool started", zap.Int("workers", p.WorkerNum))
}

// run keeps a panicking job from taking its worker down.
func (p *WorkerPool) run(workerID int, job func()) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("Worker job panicked", zap.Int("worker", workerID), zap.Any("panic", r))
		}
	}()
	job()
}

// Submit blocks while the queue is full.
func (p *WorkerPool) Submit(job func()) {
	p.JobQueue <- job
}

// RunAll submits every job and waits until all of them have finished.
func (p *WorkerPool) RunAll(jobs []func()) {
	var wg sync.WaitGroup
	wg.Add(len(jobs))
	for _, job := range jobs {
		p.Submit(func() {
			defer wg.Done()
			job()
		})
	}
	wg.Wait()
}

// Stop signals the workers and waits for running jobs. Queued jobs are
// dropped.
func (p *WorkerPool) Stop() {
	p.once.Do(func() { close(p.quit) })
	p.wg.Wait()
}
