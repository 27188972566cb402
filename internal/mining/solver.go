package mining

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"

	"powtoken/internal/difficulty"
	"powtoken/internal/digest"
)

// ErrExhausted is returned when a search runs out of its attempt budget.
var ErrExhausted = errors.New("nonce search exhausted")

// checkEvery is how many attempts pass between context checks.
const checkEvery = 4096

// Solution is a nonce that solves a puzzle.
type Solution struct {
	Nonce    []byte
	Digest   digest.Digest
	Attempts uint64
}

// NonceBytes encodes a search counter as an 8-byte big-endian nonce.
func NonceBytes(counter uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], counter)
	return b[:]
}

// Solve searches counters start, start+1, ... for a nonce whose puzzle digest
// target accepts. maxAttempts == 0 means unbounded. It stops with ctx.Err()
// when ctx is cancelled.
func Solve(ctx context.Context, hasher digest.Hasher, prev digest.Digest, target difficulty.Target, start, maxAttempts uint64) (*Solution, error) {
	return search(ctx, hasher, prev, target, start, 1, maxAttempts)
}

// SolveParallel runs workers interleaved searches from start and returns the
// first solution found. maxAttempts bounds the attempts of each worker.
func SolveParallel(ctx context.Context, hasher digest.Hasher, prev digest.Digest, target difficulty.Target, start, maxAttempts uint64, workers int) (*Solution, error) {
	if workers <= 1 {
		return Solve(ctx, hasher, prev, target, start, maxAttempts)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		once   sync.Once
		found  *Solution
		wg     sync.WaitGroup
		failed = make(chan error, workers)
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(offset uint64) {
			defer wg.Done()
			sol, err := search(ctx, hasher, prev, target, start+offset, uint64(workers), maxAttempts)
			if err != nil {
				failed <- err
				return
			}
			once.Do(func() {
				found = sol
				cancel()
			})
		}(uint64(w))
	}
	wg.Wait()
	close(failed)

	if found != nil {
		return found, nil
	}
	for err := range failed {
		if !errors.Is(err, context.Canceled) {
			return nil, err
		}
	}
	return nil, context.Canceled
}

// search tries start, start+step, ...
func search(ctx context.Context, hasher digest.Hasher, prev digest.Digest, target difficulty.Target, start, step, maxAttempts uint64) (*Solution, error) {
	puzzle := make([]byte, digest.Size+8)
	copy(puzzle, prev[:])
	nonce := puzzle[digest.Size:]

	counter := start
	for attempts := uint64(1); maxAttempts == 0 || attempts <= maxAttempts; attempts++ {
		if attempts%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		binary.BigEndian.PutUint64(nonce, counter)
		d := hasher.Sum(puzzle)
		if target.Accepts(d) {
			return &Solution{Nonce: NonceBytes(counter), Digest: d, Attempts: attempts}, nil
		}
		counter += step
	}
	return nil, ErrExhausted
}
