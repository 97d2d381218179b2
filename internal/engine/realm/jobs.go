package realm

// Job is one entry on the agent's microtask queue (§5 ordering guarantee
// 3: "Job queue execution is FIFO"). A Job returning an error is logged
// by MicrotaskCheckpoint through Agent.Log rather than propagated to the
// caller that originally enqueued it; no host hook is invoked for it.
type Job func(a *Agent) error
