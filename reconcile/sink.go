package reconcile

import "hubgraph/types"

// Sink observes a job's progress. Implementations must not block for long: they are called
// on the loop goroutine between ticks.
type Sink interface {
	// Observe receives the pool state after every reconciliation step
	Observe(jobID string, snap types.PoolSnapshot)
	// Terminated receives the final result exactly once
	Terminated(jobID string, res Result)
}

// MultiSink fans out to several sinks in order
type MultiSink []Sink

func (m MultiSink) Observe(jobID string, snap types.PoolSnapshot) {
	for _, s := range m {
		if s != nil {
			s.Observe(jobID, snap)
		}
	}
}

func (m MultiSink) Terminated(jobID string, res Result) {
	for _, s := range m {
		if s != nil {
			s.Terminated(jobID, res)
		}
	}
}

type nopSink struct{}

func (nopSink) Observe(string, types.PoolSnapshot) {}
func (nopSink) Terminated(string, Result)          {}
