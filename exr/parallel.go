package exr

import (
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
)

// WorkersEnv overrides the default worker count when set to a positive
// integer.
const WorkersEnv = "EXRCORE_WORKERS"

// ParallelConfig bounds the goroutines compressing or decompressing blocks.
type ParallelConfig struct {
	// NumWorkers is the number of blocks processed at once. 0 means
	// DefaultParallelConfig's value.
	NumWorkers int

	// GrainSize is the number of blocks each worker should have before
	// work is spread at all. Smaller jobs run on one worker.
	GrainSize int
}

var envWorkers = sync.OnceValue(func() int { return parseWorkers(os.Getenv(WorkersEnv)) })

// parseWorkers returns 0 unless s is a positive integer.
func parseWorkers(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return 0
	}
	return n
}

// DefaultParallelConfig uses GOMAXPROCS workers, or the value of
// EXRCORE_WORKERS read at first use.
func DefaultParallelConfig() ParallelConfig {
	n := envWorkers()
	if n == 0 {
		n = runtime.GOMAXPROCS(0)
	}
	return ParallelConfig{NumWorkers: n, GrainSize: 1}
}

// workers returns the number of workers to use for n blocks.
func (c ParallelConfig) workers(n int) int {
	w := c.NumWorkers
	if w <= 0 {
		w = DefaultParallelConfig().NumWorkers
	}
	if g := max(c.GrainSize, 1); n < g*w {
		w = max(n/g, 1)
	}
	return w
}
