package fsops

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
)

const (
	SidecarSchemaV1 = "backup_meta.v1"
	SidecarSchemaV2 = "backup_meta.v2"
)

// Sidecar is the structured record written alongside every backup payload
// (spec.md §3 "Backup artifact pair"). Schema v1 covers symlink/tombstone
// priors (no payload hash); v2 adds payload_hash for regular-file priors.
type Sidecar struct {
	Schema      string `json:"schema"`
	PriorKind   Kind   `json:"prior_kind"`
	PriorDest   string `json:"prior_dest,omitempty"`
	Mode        string `json:"mode,omitempty"`
	PayloadHash string `json:"payload_hash,omitempty"`
}

// SidecarPath returns the sidecar path for a given payload path.
func SidecarPath(payloadPath string) string { return payloadPath + ".meta.json" }

// WriteSidecar marshals s to sidecarPath and fsyncs it, so a crash between
// payload write and sidecar write never leaves a sidecar referencing
// nonexistent content without also being absent itself.
func WriteSidecar(sidecarPath string, s Sidecar) error {
	data, err := json.Marshal(s)
	if err != nil {
		return errors.Wrap(err, "marshal sidecar")
	}
	f, err := os.OpenFile(sidecarPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return errors.Wrapf(err, "create sidecar %s", sidecarPath)
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return errors.Wrapf(err, "write sidecar %s", sidecarPath)
	}
	if err := f.Sync(); err != nil {
		return errors.Wrapf(err, "fsync sidecar %s", sidecarPath)
	}
	return nil
}

// ReadSidecar parses the sidecar at sidecarPath. Callers fall back to
// legacy-rename restore behavior when this returns an os.IsNotExist error
// or a parse failure (spec.md §4.4 step 2).
func ReadSidecar(sidecarPath string) (Sidecar, error) {
	data, err := os.ReadFile(sidecarPath)
	if err != nil {
		return Sidecar{}, err
	}
	var s Sidecar
	if err := json.Unmarshal(data, &s); err != nil {
		return Sidecar{}, errors.Wrapf(err, "parse sidecar %s", sidecarPath)
	}
	return s, nil
}
