package utils

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestWorkerPoolRunAll(t *testing.T) {
	pool := NewWorkerPool(3, 4, zap.NewNop())
	pool.Start()
	defer pool.Stop()

	var count atomic.Int32
	jobs := make([]func(), 50)
	for i := range jobs {
		jobs[i] = func() { count.Add(1) }
	}
	pool.RunAll(jobs)
	assert.Equal(t, int32(50), count.Load())
}

func TestWorkerPoolSurvivesPanic(t *testing.T) {
	pool := NewWorkerPool(1, 1, zap.NewNop())
	pool.Start()
	defer pool.Stop()

	var ran atomic.Bool
	pool.RunAll([]func(){
		func() { panic("boom") },
		func() { ran.Store(true) },
	})
	assert.True(t, ran.Load())
}

func TestWorkerPoolStopIsIdempotent(t *testing.T) {
	pool := NewWorkerPool(0, 0, zap.NewNop())
	assert.Equal(t, 1, pool.WorkerNum)
	pool.Start()
	pool.Stop()
	pool.Stop()
}
