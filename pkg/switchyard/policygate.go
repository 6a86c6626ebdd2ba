package switchyard

import (
	"github.com/veighnsche/switchyard/internal/fsops"
)

// gateProbes bundles the read-only inspectors the gate consults.
// NewSwitchyard installs the host-reading defaults from defaultGateProbes
// (ProcMountInspector, LsattrImmutableChecker); tests substitute fakes via
// WithProbes.
type gateProbes struct {
	mounts    fsops.MountInspector
	immutable fsops.ImmutableChecker
}

func defaultGateProbes() gateProbes {
	return gateProbes{
		mounts:    fsops.ProcMountInspector{},
		immutable: fsops.LsattrImmutableChecker{},
	}
}

// GateOutcome is the result of evaluating one action under a Policy.
type GateOutcome struct {
	OK       bool
	Stops    []string
	Warnings []string
	Notes    map[string]interface{}
}

func (o *GateOutcome) stop(msg string) {
	o.OK = false
	o.Stops = append(o.Stops, msg)
}

func (o *GateOutcome) warn(msg string) {
	o.Warnings = append(o.Warnings, msg)
}

// gateAction runs the fixed-order check sequence from spec.md §4.6 against
// one action. owner and rescue may be nil; checks that need them degrade to
// their fail-closed or skip behavior as documented per-check.
func (sw *Switchyard) gateAction(a Action) GateOutcome {
	out := GateOutcome{OK: true, Notes: map[string]interface{}{}}
	p := sw.policy
	probes := sw.probes

	// 1. Extra mount checks.
	for _, m := range p.Apply.ExtraMountChecks {
		if !probes.mounts.RWExec(m) {
			out.stop("extra mount not rw+exec: " + m)
		}
	}

	// 2. target rw+exec.
	target := a.Target.AsPath()
	if !probes.mounts.RWExec(target) {
		out.stop("target not rw+exec: " + target)
	}

	// 3. target not immutable.
	if probes.immutable.IsImmutable(target) {
		out.stop("target is immutable: " + target)
	}

	if a.Kind == ActionEnsureSymlink {
		// 4. hardlink / suid-sgid / source trust / ownership-strict.
		if hazard, _ := fsops.HasHardlinkHazard(target); hazard {
			applyRisk(&out, p.Risks.Hardlinks, "hardlink hazard on target: "+target)
		}
		if risky, _ := fsops.HasSuidSgidRisk(target); risky {
			applyRisk(&out, p.Risks.SuidSgid, "suid/sgid risk on target: "+target)
		}
		sourceTrusted := sw.isSourceTrusted(a.Source.AsPath())
		switch p.Risks.SourceTrust {
		case SourceRequireTrusted:
			if !sourceTrusted {
				out.stop("source not trusted: " + a.Source.AsPath())
			}
		case SourceWarnOnUntrusted:
			if !sourceTrusted {
				out.warn("source not trusted: " + a.Source.AsPath())
			}
		case SourceAllowUntrusted:
			// no check
		}
		if p.Risks.OwnershipStrict {
			if sw.owner == nil {
				out.stop("ownership_strict requires an OwnershipOracle")
			} else if _, err := sw.owner.OwnerOf(a.Target); err != nil {
				out.stop("ownership lookup failed: " + err.Error())
			}
		}
	}

	// 5. scope.
	if !inScope(p.Scope, target) {
		out.stop("target out of policy scope: " + target)
	}

	// 6. restore: backup-artifact presence required when rescue required.
	if a.Kind == ActionRestoreFromBackup && p.Rescue.Require {
		present, err := fsops.HasBackupArtifacts(target, p.Backup.Tag)
		if err != nil || !present {
			out.stop("no backup artifacts present for required-rescue restore: " + target)
		}
	}

	return out
}

func applyRisk(out *GateOutcome, level RiskLevel, msg string) {
	switch level {
	case RiskStop:
		out.stop(msg)
	case RiskWarn:
		out.warn(msg)
	case RiskAllow:
		// no-op
	}
}

func inScope(s Scope, target string) bool {
	if len(s.AllowRoots) > 0 {
		allowed := false
		for _, r := range s.AllowRoots {
			if fsops.PathUnder(r, target) {
				allowed = true
				break
			}
		}
		if !allowed {
			return false
		}
	}
	for _, f := range s.ForbidPaths {
		if fsops.PathUnder(f, target) {
			return false
		}
	}
	return true
}

// isSourceTrusted is a minimal, conservative trust predicate: a source is
// trusted when it lives under one of the policy's allow_roots (the same
// scope the engine already trusts targets under), absent a dedicated
// trust-store collaborator. Integrators needing richer provenance wire an
// OwnershipOracle and set risks.ownership_strict instead.
func (sw *Switchyard) isSourceTrusted(source string) bool {
	if len(sw.policy.Scope.AllowRoots) == 0 {
		return true
	}
	for _, r := range sw.policy.Scope.AllowRoots {
		if fsops.PathUnder(r, source) {
			return true
		}
	}
	return false
}

// gatePlan evaluates every action and additionally checks the plan-level
// rescue-profile requirement (spec.md §4.6 final paragraph).
func (sw *Switchyard) gatePlan(p Plan) map[Action]GateOutcome {
	out := make(map[Action]GateOutcome, len(p.Actions))
	rescueOK := true
	var rescueFound int
	if sw.policy.Rescue.Require {
		if sw.rescue == nil {
			rescueOK = false
		} else {
			rescueOK, rescueFound = sw.rescue.Check(sw.policy.Rescue.ExecCheck, sw.policy.Rescue.MinCount)
		}
	}
	for _, a := range p.Actions {
		o := sw.gateAction(a)
		if sw.policy.Rescue.Require && !rescueOK {
			o.stop("rescue profile unavailable")
		}
		o.Notes["rescue_found"] = rescueFound
		out[a] = o
	}
	return out
}
