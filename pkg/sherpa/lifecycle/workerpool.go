package lifecycle

import "sync"

// runBounded fans work out over at most n concurrent goroutines (§9 DESIGN
// NOTES: "a bounded worker pool driven by a channel, not an unbounded
// thread-per-item spawn"), joins every worker, then returns the first
// error encountered — a semaphore-bounded fan-out used for both disk
// cloning and domain creation (§4.7 steps 7-8's "join remaining workers,
// propagate the first error" rule).
func runBounded(n int, items int, work func(i int) error) error {
	if n <= 0 {
		n = 1
	}
	sem := make(chan struct{}, n)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for i := 0; i < items; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if err := work(i); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	return firstErr
}
