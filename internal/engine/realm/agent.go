// Package realm implements the agent/realm layer of DATA MODEL §3.8 and
// the embedding API of EXTERNAL INTERFACES §6.1: the object that owns the
// shared heap, the VM machine, the weak-reference substrate, the job
// queue, and one or more realms (global environment plus intrinsics).
package realm

import (
	"github.com/trynova/nova-sub004/internal/engine/bytecode"
	"github.com/trynova/nova-sub004/internal/engine/gc"
	"github.com/trynova/nova-sub004/internal/engine/heap"
	"github.com/trynova/nova-sub004/internal/engine/params"
	"github.com/trynova/nova-sub004/internal/engine/rooting"
	"github.com/trynova/nova-sub004/internal/engine/value"
	"github.com/trynova/nova-sub004/internal/engine/vm"
	"github.com/trynova/nova-sub004/internal/engine/weakref"

	"github.com/trynova/nova-sub004/internal/jslog"
)

// Agent is DATA MODEL §3.8's agent: "the shared heap, an execution-context
// stack, a microtask/job queue, a stack-value scope vector, a kept-alive
// list, and per-GC bookkeeping". The execution-context stack itself is
// just the Go call stack of nested CallFunction/Run invocations plus each
// Vm frame's own state; nothing here tracks it as separate data.
type Agent struct {
	Machine *vm.Machine
	Weak    *weakref.Store
	Globals *rooting.Globals
	Config  params.EngineConfig
	Log     jslog.Logger

	realms    []*Realm
	jobs      []Job
	keptAlive []value.Value

	// liveEnvironments is read by Collect to seed root enumeration with
	// every call frame's current environment (§4.4 step 1). The VM has
	// no way to register these itself without importing gc (a cycle), so
	// CallFunction/Run push/pop through Agent instead -- see
	// EnterFrame/ExitFrame.
	liveEnvironments []heap.Index
}

// HostHooks is EXTERNAL INTERFACES §6.2: the set of host callbacks. A nil
// field is legal for hooks the embedder doesn't need. Agent holds no
// HostHooks and invokes none of these callbacks.
type HostHooks struct {
	EnqueuePromiseJob       func(job Job, realm *Realm)
	PromiseRejectionTracker func(promise value.Value, operation string)
	EnsureCanCompileStrings func(realm *Realm) error
	ResolveImportedModule   func(referrer *Realm, specifier string) (*bytecode.Executable, error)
	MakeJobCallback         func(fn value.Value) Job
}

// NewAgent implements EXTERNAL INTERFACES §6.1's create_agent.
func NewAgent(cfg params.EngineConfig) *Agent {
	return &Agent{
		Machine: vm.NewMachine(cfg.GCAllocThreshold),
		Weak:    weakref.NewStore(),
		Globals: rooting.NewGlobals(),
		Config:  cfg,
		Log:     jslog.Root(),
	}
}

// Realm is DATA MODEL §3.8's realm: "a set of intrinsics, a global
// environment, loaded modules, and host-defined data".
type Realm struct {
	Agent        *Agent
	GlobalEnv    heap.Index
	GlobalObject heap.Index
	Intrinsics   Intrinsics
	Modules      map[string]*bytecode.Executable
	HostData     map[string]value.Value
}

// CreateRealm implements create_realm(agent, global_init?): allocates a
// fresh global object/environment pair and wires the intrinsics in the
// fixed topological order §4.6 requires (prototypes before constructors
// before prototype properties).
func (a *Agent) CreateRealm() *Realm {
	globalObj := a.Machine.Objects.Create(value.Null, false)
	globalEnv := a.Machine.Environments.NewGlobal(globalObj)
	r := &Realm{
		Agent:        a,
		GlobalEnv:    globalEnv,
		GlobalObject: globalObj,
		Modules:      make(map[string]*bytecode.Executable),
		HostData:     make(map[string]value.Value),
	}
	r.Intrinsics = buildIntrinsics(a, r)
	a.realms = append(a.realms, r)
	return r
}

// Run implements run(agent, executable) -> Completion<Value>: evaluates
// exe as a top-level script against realm's global environment, per
// §6.1, then runs ClearKeptObjects per §4.9.
func (a *Agent) Run(realm *Realm, exe *bytecode.Executable) Completion {
	scope := rooting.NewRootScope(a.Machine.Stack)
	frame := vm.NewVm(a.Machine, exe, realm.GlobalEnv, value.Undefined)
	a.pushFrame(realm.GlobalEnv)
	v, err := frame.Run(scope)
	a.popFrame()
	a.ClearKeptObjects()
	return completionFrom(a.Machine, v, err)
}

// CallFunction implements call_function(agent, fn, this, args) ->
// Completion<Value>.
func (a *Agent) CallFunction(fn, thisArg value.Value, args []value.Value) Completion {
	scope := rooting.NewRootScope(a.Machine.Stack)
	v, err := a.Machine.CallFunction(scope, fn, thisArg, args, 0)
	a.ClearKeptObjects()
	return completionFrom(a.Machine, v, err)
}

func (a *Agent) pushFrame(env heap.Index) {
	a.liveEnvironments = append(a.liveEnvironments, env)
}

func (a *Agent) popFrame() {
	if n := len(a.liveEnvironments); n > 0 {
		a.liveEnvironments = a.liveEnvironments[:n-1]
	}
}

// EnqueueJob appends a job to the FIFO queue (§5 ordering guarantee 3).
// It always appends directly; HostHooks.EnqueuePromiseJob is not
// consulted.
func (a *Agent) EnqueueJob(j Job) {
	a.jobs = append(a.jobs, j)
}

// MicrotaskCheckpoint implements microtask_checkpoint(agent): drains the
// job queue FIFO (§5: "Job queue execution is FIFO"), running each job to
// completion before starting the next, then drains every
// FinalizationRegistry's pending cleanup jobs (enqueued by the most
// recent Collect) and runs those too.
func (a *Agent) MicrotaskCheckpoint() {
	for len(a.jobs) > 0 {
		j := a.jobs[0]
		a.jobs = a.jobs[1:]
		if err := j(a); err != nil {
			a.Log.Error("microtask job failed", "err", err)
		}
	}
	for i := 1; i < a.Weak.RegistriesLen(); i++ {
		idx := heap.Index(i)
		for _, cleanup := range a.Weak.DrainJobs(idx) {
			scope := rooting.NewRootScope(a.Machine.Stack)
			if _, err := a.Machine.CallFunction(scope, cleanup.Callback, value.Undefined, []value.Value{cleanup.HeldValue}, 0); err != nil {
				a.Log.Error("FinalizationRegistry cleanup callback threw", "err", err)
			}
		}
	}
}

// ClearKeptObjects implements §4.9's ClearKeptObjects: runs at the end of
// every synchronous ECMAScript execution, releasing every WeakRef target
// this turn's deref calls kept alive.
func (a *Agent) ClearKeptObjects() {
	a.keptAlive = a.keptAlive[:0]
}

// keepAlive appends v to the agent's kept-alive list, which
// ClearKeptObjects empties. Nothing in this package calls it: builder.go
// wires no WeakRef intrinsics.
func (a *Agent) keepAlive(v value.Value) {
	a.keptAlive = append(a.keptAlive, v)
}

// CollectGarbage implements collect_garbage(agent, mode): runs one full
// mark-sweep-compact cycle (COMPONENT DESIGN §4.4) over every live realm
// and call frame. mode is accepted for API parity with the spec's
// "(agent, mode)" signature; this collector only implements one mode
// (full, moving) -- see DESIGN.md's Open Question on incremental GC
// (a recorded Non-goal).
func (a *Agent) CollectGarbage(mode string) gc.Plan {
	a.Machine.Stack.Bump()
	roots := gc.Roots{
		StackValues:  a.Machine.Stack.All(),
		Globals:      a.Globals.Live(),
		Environments: append([]heap.Index(nil), a.liveEnvironments...),
	}
	for _, r := range a.realms {
		roots.Environments = append(roots.Environments, r.GlobalEnv)
		roots.Extra = append(roots.Extra, value.Object(uint32(r.GlobalObject)))
	}
	collector := &gc.Collector{
		Heap:         a.Machine.Heap,
		Objects:      a.Machine.Objects,
		Arrays:       a.Machine.Arrays,
		Shapes:       a.Machine.Objects.Shapes(),
		Environments: a.Machine.Environments,
		Functions:    a.Machine.Functions,
		Weak:         a.Weak,
	}
	plan := collector.Collect(roots)
	plan.ApplyTo(a.Machine.Stack, a.Globals)
	a.Machine.Heap.ResetAllocCounter()
	a.Log.Debug("gc cycle complete", "mode", mode, "objects", a.Machine.Objects.Len(), "arrays", a.Machine.Arrays.Len())
	return plan
}
