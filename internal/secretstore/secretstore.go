// Package secretstore provides staged-version secret storage for rotation.
//
// A secret holds a set of versions; each version carries zero or more stage
// labels. At most one version is labeled current and at most one pending at
// any time. The store is the only persistent state the rotation phases rely
// on: every phase re-derives its action from a fresh read instead of caching
// rotation progress in the process.
package secretstore

import "context"

// Stage labels used by the rotation protocol.
const (
	// StageCurrent marks the live version consumers read.
	StageCurrent = "AWSCURRENT"

	// StagePending marks the in-flight version a rotation attempt is building.
	StagePending = "AWSPENDING"

	// StageInit marks the bootstrap version of a secret that has never had a
	// current version. It is written once, out of band, when the secret is
	// first configured.
	StageInit = "CFINIT"
)

// Description is the rotation-relevant metadata of a secret.
type Description struct {
	// RotationEnabled reports whether the store has rotation configured for
	// the secret. Phases refuse to run against a disabled secret.
	RotationEnabled bool

	// VersionStages maps each version id to the stage labels it carries.
	VersionStages map[string][]string
}

// HasStage reports whether the given version carries the given stage label.
func (d Description) HasStage(versionID, stage string) bool {
	for _, s := range d.VersionStages[versionID] {
		if s == stage {
			return true
		}
	}
	return false
}

// VersionWithStage returns the id of the version carrying the given stage
// label, or "" if no version does.
func (d Description) VersionWithStage(stage string) string {
	for versionID, stages := range d.VersionStages {
		for _, s := range stages {
			if s == stage {
				return versionID
			}
		}
	}
	return ""
}

// Store is the staged-version secret storage capability the rotation phases
// consume. Implementations must return errors.NotFoundError for missing
// secrets and versions so callers can branch on absence without string
// matching.
type Store interface {
	// Describe returns the secret's rotation metadata and stage labels.
	Describe(ctx context.Context, secretID string) (Description, error)

	// GetVersion reads the payload of the version carrying the given stage.
	// When versionToken is non-empty the read additionally asserts the stage
	// is attached to that exact version.
	GetVersion(ctx context.Context, secretID, stage, versionToken string) ([]byte, error)

	// PutVersion writes a payload as the version identified by versionToken
	// and attaches the given stage labels to it.
	PutVersion(ctx context.Context, secretID, versionToken string, payload []byte, stages []string) error

	// MoveStage atomically moves a stage label to toVersion, removing it
	// from fromVersion. fromVersion may be empty when no version currently
	// carries the label.
	MoveStage(ctx context.Context, secretID, stage, toVersion, fromVersion string) error
}
