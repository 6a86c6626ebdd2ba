package switchyard

import "github.com/veighnsche/switchyard/internal/fsops"

// Switchyard is the engine: a configured Policy plus the capability
// collaborators (lock, ownership, attestation, smoke, rescue, facts/audit)
// it consults while planning, preflighting, applying, and rolling back.
// Construct one via NewSwitchyard and the With* options, mirroring the
// enumerated option set in spec.md §9 ("Builder-style construction
// enumerates the recognized options").
type Switchyard struct {
	policy  Policy
	lock    LockManager
	owner   OwnershipOracle
	attest  Attestor
	smoke   SmokeTestRunner
	rescue  RescueChecker
	metrics PerfObserver
	audit   *AuditLogger
	probes  gateProbes
}

// PerfObserver receives the performance aggregate summed over an apply's
// executed actions (one Observe call, stage "apply", per Apply that reaches
// the execution step), for integrators who want to export it (e.g. to
// Prometheus) without round-tripping through the audit stream.
type PerfObserver interface {
	Observe(stage string, perf PerfAgg)
}

// Option configures a Switchyard at construction time.
type Option func(*Switchyard)

// WithLockManager configures the LockManager capability.
func WithLockManager(l LockManager) Option { return func(s *Switchyard) { s.lock = l } }

// WithOwnershipOracle configures the OwnershipOracle capability.
func WithOwnershipOracle(o OwnershipOracle) Option { return func(s *Switchyard) { s.owner = o } }

// WithAttestor configures the Attestor capability.
func WithAttestor(a Attestor) Option { return func(s *Switchyard) { s.attest = a } }

// WithSmokeTestRunner configures the SmokeTestRunner capability.
func WithSmokeTestRunner(r SmokeTestRunner) Option { return func(s *Switchyard) { s.smoke = r } }

// WithRescueChecker configures the RescueChecker capability.
func WithRescueChecker(r RescueChecker) Option { return func(s *Switchyard) { s.rescue = r } }

// WithPerfObserver configures an optional performance-metrics sink.
func WithPerfObserver(m PerfObserver) Option { return func(s *Switchyard) { s.metrics = m } }

// WithFacts configures the FactsEmitter and AuditSink the engine's
// AuditLogger dispatches to. seed determinstically derives the run_id
// (e.g. a caller-chosen run identifier or the current plan's id string).
func WithFacts(seed string, emitter FactsEmitter, sink AuditSink, redact bool) Option {
	return func(s *Switchyard) { s.audit = NewAuditLogger(seed, emitter, sink, redact) }
}

// WithProbes overrides the default mount/immutable inspectors, for tests
// that need to simulate mount/attribute state without real privileged
// mounts.
func WithProbes(mounts fsops.MountInspector, immutable fsops.ImmutableChecker) Option {
	return func(s *Switchyard) { s.probes = gateProbes{mounts: mounts, immutable: immutable} }
}

// NewSwitchyard constructs an engine over policy, applying opts in order.
// A Switchyard with no options configured still performs SafePath/planning/
// preflight/apply/rollback correctly; it simply has no lock, ownership,
// attestation, smoke, or rescue collaborators, which gates as the spec
// defines (e.g. ownership_strict without an OwnershipOracle always STOPs).
func NewSwitchyard(policy Policy, opts ...Option) *Switchyard {
	sw := &Switchyard{
		policy: policy,
		probes: defaultGateProbes(),
		audit:  NewAuditLogger("switchyard", nil, nil, false),
	}
	for _, opt := range opts {
		opt(sw)
	}
	return sw
}

// Plan normalizes input into a Plan and emits its deterministic plan facts.
func (sw *Switchyard) Plan(input PlanInput, dryRun bool) Plan {
	p := BuildPlan(input)
	emitPlanFacts(sw.audit, p, dryRun)
	return p
}
