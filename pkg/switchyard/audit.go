package switchyard

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// tsZero is the constant epoch substituted for ts under redaction, so that
// two redacted runs of the same plan are byte-identical (spec.md §4.11).
var tsZero = time.Unix(0, 0).UTC()

const schemaVersion = 2 // see DESIGN.md "Open Question decisions" re: v1 in original_source

// Redaction records whether, and why, an event's fields were masked.
type Redaction struct {
	Applied bool `json:"applied"`
}

// AuditEvent is the mandatory envelope every fact carries (spec.md §3).
// Stage-specific data rides in Fields, which is merged alongside the
// envelope at marshal time by FactsEmitter implementations.
type AuditEvent struct {
	SchemaVersion   int                    `json:"schema_version"`
	Ts              time.Time              `json:"ts"`
	PlanID          uuid.UUID              `json:"plan_id"`
	RunID           uuid.UUID              `json:"run_id"`
	EventID         uuid.UUID              `json:"event_id"`
	Seq             int64                  `json:"seq"`
	Stage           string                 `json:"stage"`
	Decision        string                 `json:"decision"` // success | failure | warn
	Path            string                 `json:"path,omitempty"`
	DryRun          bool                   `json:"dry_run"`
	Redacted        bool                   `json:"redacted"`
	Redaction       Redaction              `json:"redaction"`
	ActionID        *uuid.UUID             `json:"action_id,omitempty"`
	Provenance      map[string]interface{} `json:"provenance,omitempty"`
	Perf            *PerfAgg               `json:"perf,omitempty"`
	ErrorID         ErrorId                `json:"error_id,omitempty"`
	ExitCode        int                    `json:"exit_code,omitempty"`
	SummaryErrorIDs []ErrorId              `json:"summary_error_ids,omitempty"`
	Attestation     map[string]interface{} `json:"attestation,omitempty"`
	Fields          map[string]interface{} `json:"-"`
}

// PerfAgg aggregates per-stage timings collected during an executor's run.
type PerfAgg struct {
	HashMs   int64 `json:"hash_ms,omitempty"`
	BackupMs int64 `json:"backup_ms,omitempty"`
	SwapMs   int64 `json:"swap_ms,omitempty"`
}

// Add accumulates another PerfAgg's timings into p.
func (p *PerfAgg) Add(o PerfAgg) {
	p.HashMs += o.HashMs
	p.BackupMs += o.BackupMs
	p.SwapMs += o.SwapMs
}

// AuditLogger owns the envelope's monotonic seq counter and run_id, and
// applies dry-run/redact masking before handing events to the configured
// FactsEmitter. With a nil emitter (the engine's default) nothing is
// dispatched: Emit still advances seq, builds and redacts the event, and
// returns it, but no sink sees it.
type AuditLogger struct {
	RunID    uuid.UUID
	Emitter  FactsEmitter
	Sink     AuditSink
	Redact   bool
	seq      int64
	eventSeq int64
}

// NewAuditLogger derives a run_id deterministically from the supplied seed
// (typically the plan id plus a caller-chosen disambiguator, e.g. a start
// timestamp) and wires emitter/sink. Passing a zero seed still yields a
// stable, reproducible run_id for a given call site and is useful in tests.
func NewAuditLogger(seed string, emitter FactsEmitter, sink AuditSink, redact bool) *AuditLogger {
	runID := uuid.NewSHA1(idNamespace(), []byte("run:"+seed))
	return &AuditLogger{RunID: runID, Emitter: emitter, Sink: sink, Redact: redact}
}

func (l *AuditLogger) nextEventID() uuid.UUID {
	n := atomic.AddInt64(&l.eventSeq, 1)
	return uuid.NewSHA1(l.RunID, []byte(fmt.Sprintf("event:%d", n)))
}

// Emit constructs, redacts if applicable, and dispatches one audit event.
// stage/event namespaces the fact (e.g. "plan", "preflight", "apply.attempt",
// "apply.result", "rollback", "rollback.summary"); decision is one of
// success|failure|warn.
func (l *AuditLogger) Emit(stage, decision string, dryRun bool, fields map[string]interface{}) AuditEvent {
	seq := atomic.AddInt64(&l.seq, 1)
	ev := AuditEvent{
		SchemaVersion: schemaVersion,
		Ts:            time.Now().UTC(),
		RunID:         l.RunID,
		EventID:       l.nextEventID(),
		Seq:           seq,
		Stage:         stage,
		Decision:      decision,
		DryRun:        dryRun,
		Fields:        fields,
	}
	applyFieldsToEnvelope(&ev, fields)

	redact := l.Redact || dryRun
	if redact {
		redactEvent(&ev)
	}

	if l.Emitter != nil {
		merged := mergedFields(&ev)
		l.Emitter.Emit(subsystemOf(stage), stage, decision, merged)
	}
	return ev
}

// Log forwards a free-form diagnostic line to the configured AuditSink.
func (l *AuditLogger) Log(level, msg string) {
	if l.Sink != nil {
		l.Sink.Log(level, msg)
	}
}

func subsystemOf(stage string) string {
	for i, c := range stage {
		if c == '.' {
			return stage[:i]
		}
	}
	return stage
}

// applyFieldsToEnvelope lifts well-known envelope fields out of the
// stage-specific map so typed consumers (e.g. tests comparing AuditEvent
// values) don't need to know the map's key names.
func applyFieldsToEnvelope(ev *AuditEvent, fields map[string]interface{}) {
	if fields == nil {
		return
	}
	if v, ok := fields["plan_id"].(uuid.UUID); ok {
		ev.PlanID = v
	}
	if v, ok := fields["action_id"].(uuid.UUID); ok {
		ev.ActionID = &v
	}
	if v, ok := fields["path"].(string); ok {
		ev.Path = v
	}
	if v, ok := fields["provenance"].(map[string]interface{}); ok {
		ev.Provenance = v
	}
	if v, ok := fields["perf"].(PerfAgg); ok {
		ev.Perf = &v
	}
	if v, ok := fields["error_id"].(ErrorId); ok {
		ev.ErrorID = v
		ev.ExitCode = v.ExitCode()
	}
	if v, ok := fields["summary_error_ids"].([]ErrorId); ok {
		ev.SummaryErrorIDs = v
	}
	if v, ok := fields["attestation"].(map[string]interface{}); ok {
		ev.Attestation = v
	}
}

// redactEvent applies the masking described in spec.md §4.11: zero ts, drop
// duration_ms/lock_wait_ms, replace provenance.helper and attestation
// signature fields with "***", and set the redacted flags.
func redactEvent(ev *AuditEvent) {
	ev.Ts = tsZero
	ev.Redacted = true
	ev.Redaction = Redaction{Applied: true}

	delete(ev.Fields, "duration_ms")
	delete(ev.Fields, "lock_wait_ms")

	if ev.Provenance != nil {
		if _, ok := ev.Provenance["helper"]; ok {
			ev.Provenance["helper"] = "***"
		}
	}
	if ev.Attestation != nil {
		for _, k := range []string{"signature", "bundle_hash", "public_key_id"} {
			if _, ok := ev.Attestation[k]; ok {
				ev.Attestation[k] = "***"
			}
		}
	}
}

// mergedFields flattens the envelope and stage-specific fields into a single
// map for FactsEmitter implementations, which is the shape sinks (JSONL
// writers, log aggregators) expect.
func mergedFields(ev *AuditEvent) map[string]interface{} {
	out := map[string]interface{}{
		"schema_version": ev.SchemaVersion,
		"ts":             ev.Ts,
		"plan_id":        ev.PlanID,
		"run_id":         ev.RunID,
		"event_id":       ev.EventID,
		"seq":            ev.Seq,
		"stage":          ev.Stage,
		"decision":       ev.Decision,
		"dry_run":        ev.DryRun,
		"redacted":       ev.Redacted,
		"redaction":      ev.Redaction,
	}
	if ev.Path != "" {
		out["path"] = ev.Path
	}
	if ev.ActionID != nil {
		out["action_id"] = *ev.ActionID
	}
	if ev.Provenance != nil {
		out["provenance"] = ev.Provenance
	}
	if ev.Perf != nil {
		out["perf"] = *ev.Perf
	}
	if ev.ErrorID != "" {
		out["error_id"] = ev.ErrorID
		out["exit_code"] = ev.ExitCode
	}
	if len(ev.SummaryErrorIDs) > 0 {
		out["summary_error_ids"] = ev.SummaryErrorIDs
	}
	if ev.Attestation != nil {
		out["attestation"] = ev.Attestation
	}
	for k, v := range ev.Fields {
		if _, exists := out[k]; !exists {
			out[k] = v
		}
	}
	return out
}
