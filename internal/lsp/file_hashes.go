package lsp

import (
	"context"

	"github.com/standardbeagle/reindex/internal/debug"
	"github.com/standardbeagle/reindex/internal/metrics"
	"github.com/standardbeagle/reindex/internal/types"
	"github.com/standardbeagle/reindex/internal/workerpool"
)

type hashResult struct {
	index int
	hash  types.FileHash
}

// ComputeFileHashes fingerprints every file that lacks one, inline.
func (ix *Indexer) ComputeFileHashes(files []*types.File) {
	ix.ComputeFileHashesWith(files, ix.emptyWorkers)
}

// ComputeFileHashesWith fingerprints every non-nil file that lacks one,
// spreading the work across workers. Files that already have a fingerprint
// are left alone, so calling it twice is a no-op.
func (ix *Indexer) ComputeFileHashesWith(files []*types.File, workers *workerpool.WorkerPool) {
	allHashed := true
	for _, f := range files {
		if f != nil && f.FileHash() == nil {
			allHashed = false
			break
		}
	}
	if allHashed {
		return
	}

	timer := metrics.NewTimer("computeFileHashes")
	defer timer.Stop()

	fileq := workerpool.NewConcurrentBoundedQueue[int](len(files))
	for i := range files {
		fileq.Push(i)
	}
	debug.LogHash("computing file hashes for %d files", len(files))

	resultq := workerpool.NewBlockingBoundedQueue[[]hashResult](len(files))
	job := workers.MultiplexJob(context.Background(), "lspStateHash", func(context.Context) error {
		var threadResult []hashResult
		processed := 0
		for job, ok := fileq.TryPop(); ok; job, ok = fileq.TryPop() {
			processed++
			f := files[job]
			if f == nil || f.FileHash() != nil {
				continue
			}
			threadResult = append(threadResult, hashResult{index: job, hash: ix.pipeline.ComputeFileHash(f)})
		}
		if processed > 0 {
			resultq.Push(threadResult, processed)
		}
		return nil
	})

	for batch, status := resultq.WaitPopTimed(workerpool.BlockInterval); status != workerpool.Done; batch, status = resultq.WaitPopTimed(workerpool.BlockInterval) {
		if status == workerpool.TimedOut {
			debug.LogHash("still waiting on file hashes")
			continue
		}
		for _, r := range batch {
			h := r.hash
			files[r.index].SetFileHash(&h)
		}
	}
	_ = job.Wait()
}
