package switchyard

import (
	"sort"

	"github.com/google/uuid"
	"github.com/veighnsche/switchyard/internal/fsops"
	"gopkg.in/yaml.v3"
)

// PreflightRow captures one action's gating evaluation in a structured,
// stably-serializable shape (spec.md §4.8).
type PreflightRow struct {
	ActionID              uuid.UUID                      `yaml:"action_id"`
	Path                  string                          `yaml:"path"`
	CurrentKind           string                          `yaml:"current_kind"`
	PlannedKind           string                          `yaml:"planned_kind"`
	PolicyOK              bool                            `yaml:"policy_ok"`
	Provenance            map[string]interface{}          `yaml:"provenance,omitempty"`
	Notes                 []string                        `yaml:"notes,omitempty"`
	Preservation          fsops.PreservationCapabilities  `yaml:"preservation"`
	PreservationSupported bool                            `yaml:"preservation_supported"`
	RestoreReady          bool                             `yaml:"restore_ready"`
	BackupTag             string                           `yaml:"backup_tag"`
}

// PreflightReport is the outcome of running preflight over a whole plan.
type PreflightReport struct {
	OK       bool           `yaml:"ok"`
	Warnings []string       `yaml:"warnings,omitempty"`
	Stops    []string       `yaml:"stops,omitempty"`
	Rows     []PreflightRow `yaml:"rows"`
}

// ToYAML renders the report as YAML, the stable serialization the glossary
// names for preflight rows.
func (r PreflightReport) ToYAML() ([]byte, error) {
	return yaml.Marshal(r)
}

// Preflight runs the policy gate over every action in p, emits one
// preflight fact per row plus a summary fact, and returns the aggregated
// report (spec.md §4.8).
func (sw *Switchyard) Preflight(p Plan, dryRun bool) PreflightReport {
	outcomes := sw.gatePlan(p)
	report := PreflightReport{OK: true}

	for i, a := range p.Actions {
		aid := ActionID(p.ID, a, i)
		o := outcomes[a]
		if !o.OK {
			report.OK = false
		}
		report.Stops = append(report.Stops, o.Stops...)
		report.Warnings = append(report.Warnings, o.Warnings...)

		curKind, _ := fsops.KindOf(a.Target.AsPath())
		var provenance map[string]interface{}
		if sw.owner != nil {
			if info, err := sw.owner.OwnerOf(a.Target); err == nil {
				provenance = map[string]interface{}{"uid": info.UID, "gid": info.GID, "pkg": info.Pkg}
			}
		}
		present, _ := fsops.HasBackupArtifacts(a.Target.AsPath(), sw.policy.Backup.Tag)
		caps := fsops.DetectPreservationCapabilities()
		want := fsops.PreservationCapabilities{}
		if sw.policy.Durability.Preservation == PreservationRequireBasic {
			want = fsops.PreservationCapabilities{Mode: true, Timestamps: true}
		}

		row := PreflightRow{
			ActionID:              aid,
			Path:                  a.Target.AsPath(),
			CurrentKind:           string(curKind),
			PlannedKind:           a.Kind.String(),
			PolicyOK:              o.OK,
			Provenance:            provenance,
			Notes:                 append(append([]string{}, o.Stops...), o.Warnings...),
			Preservation:          caps,
			PreservationSupported: caps.Supported(want),
			RestoreReady:          present,
			BackupTag:             sw.policy.Backup.Tag,
		}
		report.Rows = append(report.Rows, row)

		decision := "success"
		if !o.OK {
			decision = "failure"
		} else if len(o.Warnings) > 0 {
			decision = "warn"
		}
		fields := map[string]interface{}{
			"plan_id":   p.ID,
			"action_id": aid,
			"path":      row.Path,
			"policy_ok": o.OK,
			"notes":     row.Notes,
		}
		if !o.OK {
			fields["error_id"] = ErrPolicy
		}
		sw.audit.Emit("preflight", decision, dryRun, fields)
	}

	sort.SliceStable(report.Rows, func(i, j int) bool {
		if report.Rows[i].Path != report.Rows[j].Path {
			return report.Rows[i].Path < report.Rows[j].Path
		}
		return report.Rows[i].ActionID.String() < report.Rows[j].ActionID.String()
	})

	summaryFields := map[string]interface{}{
		"plan_id":        p.ID,
		"rescue_profile": sw.rescueStatusNote(),
	}
	decision := "success"
	if !report.OK {
		decision = "failure"
		summaryFields["error_id"] = ErrPolicy
	}
	sw.audit.Emit("preflight.summary", decision, dryRun, summaryFields)

	return report
}

func (sw *Switchyard) rescueStatusNote() string {
	if !sw.policy.Rescue.Require {
		return "not_required"
	}
	if sw.rescue == nil {
		return "unavailable"
	}
	ok, _ := sw.rescue.Check(sw.policy.Rescue.ExecCheck, sw.policy.Rescue.MinCount)
	if ok {
		return "available"
	}
	return "unavailable"
}
