package switchyard

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"
)

// nsTag seeds the fixed UUIDv5 namespace every plan/action id is derived
// from. It is a constant, not a secret: determinism, not confidentiality, is
// the property it buys.
const nsTag = "switchyard.v1.ids"

func idNamespace() uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(nsTag))
}

// serializeAction renders the canonical `kind:source_rel->target_rel` (or
// `kind:target_rel` for restores) form used as UUIDv5 input. This exact
// string shape is part of the determinism contract in spec.md §3/§8: two
// structurally equal actions must serialize identically.
func serializeAction(a Action) string {
	switch a.Kind {
	case ActionEnsureSymlink:
		return fmt.Sprintf("E:%s->%s", a.Source.Rel(), a.Target.Rel())
	case ActionRestoreFromBackup:
		return fmt.Sprintf("R:%s", a.Target.Rel())
	default:
		return fmt.Sprintf("?:%s", a.Target.Rel())
	}
}

// PlanID derives the deterministic v5 UUID identifying a plan from the
// canonical serialization of its actions in order.
func PlanID(actions []Action) uuid.UUID {
	ns := idNamespace()
	var s string
	for _, a := range actions {
		s += serializeAction(a) + "\n"
	}
	return uuid.NewSHA1(ns, []byte(s))
}

// ActionID derives the deterministic v5 UUID for a single action, scoped
// under its plan's id and suffixed by the action's index so that two
// structurally identical actions at different positions get distinct ids.
func ActionID(planID uuid.UUID, a Action, idx int) uuid.UUID {
	s := serializeAction(a) + "#" + strconv.Itoa(idx)
	return uuid.NewSHA1(planID, []byte(s))
}
