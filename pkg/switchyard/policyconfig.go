package switchyard

import (
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// PolicyConfig is the on-disk TOML shape a Policy loads from,
// grounded on the teacher pack's TOML config layer (shiyuanpei-ntm's
// internal/config.Config). Field names use snake_case keys to match the
// convention that repo's configs use.
type PolicyConfig struct {
	Scope struct {
		AllowRoots  []string `toml:"allow_roots"`
		ForbidPaths []string `toml:"forbid_paths"`
	} `toml:"scope"`
	Risks struct {
		SuidSgid        string `toml:"suid_sgid"`
		Hardlinks       string `toml:"hardlinks"`
		SourceTrust     string `toml:"source_trust"`
		OwnershipStrict bool   `toml:"ownership_strict"`
	} `toml:"risks"`
	Durability struct {
		BackupDurability bool   `toml:"backup_durability"`
		SidecarIntegrity bool   `toml:"sidecar_integrity"`
		Preservation     string `toml:"preservation"`
	} `toml:"durability"`
	Apply struct {
		Exdev                  string   `toml:"exdev"`
		OverridePreflight      bool     `toml:"override_preflight"`
		BestEffortRestore      bool     `toml:"best_effort_restore"`
		ExtraMountChecks       []string `toml:"extra_mount_checks"`
		CaptureRestoreSnapshot bool     `toml:"capture_restore_snapshot"`
	} `toml:"apply"`
	Governance struct {
		Locking             string `toml:"locking"`
		SmokeRequire        bool   `toml:"smoke_require"`
		SmokeAutoRollback   bool   `toml:"smoke_auto_rollback"`
		AllowUnlockedCommit bool   `toml:"allow_unlocked_commit"`
	} `toml:"governance"`
	Backup struct {
		Tag string `toml:"tag"`
	} `toml:"backup"`
	Rescue struct {
		Require   bool `toml:"require"`
		ExecCheck bool `toml:"exec_check"`
		MinCount  int  `toml:"min_count"`
	} `toml:"rescue"`
	Retention struct {
		Count  int    `toml:"count"`
		AgeSec int64  `toml:"age_seconds"`
	} `toml:"retention"`
	LockTimeoutMs int `toml:"lock_timeout_ms"`
}

// LoadPolicyFile reads and decodes a PolicyConfig from a TOML file and
// converts it to a Policy. Every field the file leaves unset keeps its
// DefaultPolicy() value: ToPolicy defaults empty enums, tag, counts and
// timeout, and the boolean keys whose default is true are restored here
// when the file does not define them.
func LoadPolicyFile(path string) (Policy, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, errors.Wrap(err, "reading policy file")
	}
	var cfg PolicyConfig
	md, err := toml.Decode(string(b), &cfg)
	if err != nil {
		return Policy{}, errors.Wrap(err, "decoding policy toml")
	}
	p := cfg.ToPolicy()
	def := DefaultPolicy()
	if !md.IsDefined("durability", "backup_durability") {
		p.Durability.BackupDurability = def.Durability.BackupDurability
	}
	if !md.IsDefined("durability", "sidecar_integrity") {
		p.Durability.SidecarIntegrity = def.Durability.SidecarIntegrity
	}
	if !md.IsDefined("governance", "allow_unlocked_commit") {
		p.Governance.AllowUnlockedCommit = def.Governance.AllowUnlockedCommit
	}
	return p, nil
}

// ToPolicy converts the on-disk config to the engine's Policy, defaulting
// any enum field left as the empty string to its DefaultPolicy() value.
func (c PolicyConfig) ToPolicy() Policy {
	p := DefaultPolicy()
	p.Scope.AllowRoots = c.Scope.AllowRoots
	p.Scope.ForbidPaths = c.Scope.ForbidPaths

	if v, ok := parseRiskLevel(c.Risks.SuidSgid); ok {
		p.Risks.SuidSgid = v
	}
	if v, ok := parseRiskLevel(c.Risks.Hardlinks); ok {
		p.Risks.Hardlinks = v
	}
	if v, ok := parseSourceTrust(c.Risks.SourceTrust); ok {
		p.Risks.SourceTrust = v
	}
	p.Risks.OwnershipStrict = c.Risks.OwnershipStrict

	p.Durability.BackupDurability = c.Durability.BackupDurability
	p.Durability.SidecarIntegrity = c.Durability.SidecarIntegrity
	if c.Durability.Preservation == "require_basic" {
		p.Durability.Preservation = PreservationRequireBasic
	}

	if c.Apply.Exdev == "degraded_fallback" {
		p.Apply.Exdev = ExdevDegradedFallback
	}
	p.Apply.OverridePreflight = c.Apply.OverridePreflight
	p.Apply.BestEffortRestore = c.Apply.BestEffortRestore
	p.Apply.ExtraMountChecks = c.Apply.ExtraMountChecks
	p.Apply.CaptureRestoreSnapshot = c.Apply.CaptureRestoreSnapshot

	if c.Governance.Locking == "required" {
		p.Governance.Locking = LockingRequired
	}
	p.Governance.Smoke = SmokePolicy{Require: c.Governance.SmokeRequire, AutoRollback: c.Governance.SmokeAutoRollback}
	p.Governance.AllowUnlockedCommit = c.Governance.AllowUnlockedCommit

	if c.Backup.Tag != "" {
		p.Backup.Tag = c.Backup.Tag
	}

	p.Rescue = Rescue{Require: c.Rescue.Require, ExecCheck: c.Rescue.ExecCheck, MinCount: c.Rescue.MinCount}

	if c.Retention.Count > 0 {
		p.Retention.Count = c.Retention.Count
	}
	if c.Retention.AgeSec > 0 {
		p.Retention.Age = secondsToDuration(c.Retention.AgeSec)
	}

	if c.LockTimeoutMs > 0 {
		p.LockTimeoutMs = c.LockTimeoutMs
	}

	return p
}

func parseRiskLevel(s string) (RiskLevel, bool) {
	switch s {
	case "stop":
		return RiskStop, true
	case "warn":
		return RiskWarn, true
	case "allow":
		return RiskAllow, true
	default:
		return 0, false
	}
}

func secondsToDuration(s int64) time.Duration {
	return time.Duration(s) * time.Second
}

func parseSourceTrust(s string) (SourceTrustPolicy, bool) {
	switch s {
	case "require_trusted":
		return SourceRequireTrusted, true
	case "warn_on_untrusted":
		return SourceWarnOnUntrusted, true
	case "allow_untrusted":
		return SourceAllowUntrusted, true
	default:
		return 0, false
	}
}
