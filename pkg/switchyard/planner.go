package switchyard

import "sort"

// BuildPlan normalizes a PlanInput into a Plan: link and restore requests
// become their corresponding Action variants, the combined vector is stably
// sorted by (kind, target.rel), and a deterministic plan id is derived from
// the sorted action sequence (spec.md §4.7).
func BuildPlan(input PlanInput) Plan {
	actions := make([]Action, 0, len(input.Link)+len(input.Restore))
	for _, lr := range input.Link {
		actions = append(actions, EnsureSymlink(lr.Source, lr.Target))
	}
	for _, rr := range input.Restore {
		actions = append(actions, RestoreFromBackup(rr.Target))
	}
	sort.SliceStable(actions, func(i, j int) bool {
		if actions[i].Kind != actions[j].Kind {
			return actions[i].Kind.tag() < actions[j].Kind.tag()
		}
		return actions[i].Target.Rel() < actions[j].Target.Rel()
	})
	return Plan{ID: PlanID(actions), Actions: actions}
}

// emitPlanFacts emits one "plan" fact per action, carrying its derived
// action_id and the target's absolute path, redacted when dryRun.
func emitPlanFacts(logger *AuditLogger, plan Plan, dryRun bool) {
	if logger == nil {
		return
	}
	for i, a := range plan.Actions {
		aid := ActionID(plan.ID, a, i)
		logger.Emit("plan", "success", dryRun, map[string]interface{}{
			"plan_id":   plan.ID,
			"action_id": aid,
			"path":      a.Target.AsPath(),
			"kind":      a.Kind.String(),
		})
	}
}
