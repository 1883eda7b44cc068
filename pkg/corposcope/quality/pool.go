package quality

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cognicore/corposcope/pkg/corposcope/internalerr"
	"github.com/cognicore/corposcope/pkg/corposcope/metadata"
)

// Outcome is the result of scoring one document in a pool run. Err is
// non-nil when the document could not be scored (timeout or canceled);
// such documents are routed to low quality by callers.
type Outcome struct {
	Index  int
	Record metadata.Record
	Err    error
}

// Pool scores documents concurrently. Scoring is stateless, so workers
// share only the read-only Control.
type Pool struct {
	Control *Control
	Workers int
	// Timeout bounds one document's detector execution. Zero means the
	// configured processing timeout.
	Timeout time.Duration
}

// Run scores all documents and returns outcomes in input order. A
// per-document timeout is treated as a failed score, not a batch
// failure; ctx cancellation stops feeding new work.
func (p *Pool) Run(ctx context.Context, docs []Document) []Outcome {
	workers := p.Workers
	if workers <= 0 {
		workers = p.Control.cfg.Processing.Workers
	}
	if workers <= 0 {
		workers = 1
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = time.Duration(p.Control.cfg.Processing.TimeoutSeconds) * time.Second
	}

	jobs := make(chan int)
	outcomes := make([]Outcome, len(docs))
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				outcomes[i] = p.scoreOne(ctx, i, docs[i], timeout)
			}
		}()
	}

feed:
	for i := range docs {
		select {
		case jobs <- i:
		case <-ctx.Done():
			for j := i; j < len(docs); j++ {
				outcomes[j] = Outcome{Index: j, Err: ctx.Err()}
			}
			break feed
		}
	}
	close(jobs)
	wg.Wait()
	return outcomes
}

// scoreOne runs the detectors in a goroutine so a stuck heuristic
// cannot block the batch past the timeout.
func (p *Pool) scoreOne(ctx context.Context, idx int, doc Document, timeout time.Duration) Outcome {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan metadata.Record, 1)
	go func() {
		done <- p.Control.Process(doc)
	}()

	select {
	case rec := <-done:
		return Outcome{Index: idx, Record: rec}
	case <-ctx.Done():
		p.Control.metrics.DetectorTimeouts.Inc()
		p.Control.logger.Warn("detector timed out", "domain", doc.Domain, "file_type", doc.FileType)
		return Outcome{Index: idx, Err: fmt.Errorf("%w after %s", internalerr.ErrDetectorTimeout, timeout)}
	}
}
