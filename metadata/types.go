package metadata

import "encoding/json"

// Top level role names.
const (
	ROOT      = "root"
	TIMESTAMP = "timestamp"
	SNAPSHOT  = "snapshot"
	TARGETS   = "targets"
)

// TOP_LEVEL_ROLE_NAMES lists the four roles every repository serves.
var TOP_LEVEL_ROLE_NAMES = []string{ROOT, TIMESTAMP, SNAPSHOT, TARGETS}

// Key types and signature methods understood by the verifier. Both are
// compared case-insensitively on the wire.
const (
	KeyTypeRSA     = "rsa"
	KeyTypeEd25519 = "ed25519"

	MethodRSASSAPSS = "rsassa-pss"
	MethodEd25519   = "ed25519"
)

// Roles is the generic constraint over the four role bodies.
type Roles interface {
	RootType | TimestampType | SnapshotType | TargetsType
}

// Metadata is a typed signed role document.
type Metadata[T Roles] struct {
	Signed             T           `json:"signed"`
	Signatures         []Signature `json:"signatures"`
	UnrecognizedFields map[string]any
}

// Signature is one entry of a document's signature list.
type Signature struct {
	KeyID              string   `json:"keyid"`
	Method             string   `json:"method"`
	Signature          HexBytes `json:"sig"`
	UnrecognizedFields map[string]any
}

// RootType is the body of a root document: the key table and the
// per-role key assignments and thresholds that anchor all other roles.
// The expiration timestamp is carried verbatim; enforcing it is the
// caller's concern.
type RootType struct {
	Type               string           `json:"_type"`
	Version            int64            `json:"version"`
	Expires            string           `json:"expires"`
	Keys               KeyMap           `json:"keys"`
	Roles              map[string]*Role `json:"roles"`
	UnrecognizedFields map[string]any
}

// TimestampType is the body of a timestamp document. Its version is
// the repository's freshness counter.
type TimestampType struct {
	Type               string               `json:"_type"`
	Version            int64                `json:"version"`
	Expires            string               `json:"expires"`
	Meta               map[string]MetaFiles `json:"meta"`
	UnrecognizedFields map[string]any
}

// SnapshotType is the body of a snapshot document. Meta enumerates the
// role documents this snapshot attests to, keyed by file name.
type SnapshotType struct {
	Type               string               `json:"_type"`
	Version            int64                `json:"version"`
	Expires            string               `json:"expires"`
	Meta               map[string]MetaFiles `json:"meta"`
	UnrecognizedFields map[string]any
}

// TargetsType is the body of a targets document.
type TargetsType struct {
	Type               string                 `json:"_type"`
	Version            int64                  `json:"version"`
	Expires            string                 `json:"expires"`
	Targets            map[string]TargetFiles `json:"targets"`
	UnrecognizedFields map[string]any
}

// Role is one entry of root's role table.
type Role struct {
	KeyIDs             []string `json:"keyids"`
	Threshold          int      `json:"threshold"`
	UnrecognizedFields map[string]any
}

// MetaFiles describes one role document referenced from snapshot or
// timestamp meta. Length and hashes are optional.
type MetaFiles struct {
	Version            int64  `json:"version"`
	Length             int64  `json:"length,omitempty"`
	Hashes             Hashes `json:"hashes,omitempty"`
	UnrecognizedFields map[string]any
}

// TargetFiles describes one target artifact: its byte length, content
// hashes, and an opaque custom blob passed through to consumers.
type TargetFiles struct {
	Length             int64           `json:"length"`
	Hashes             Hashes          `json:"hashes"`
	Custom             json.RawMessage `json:"custom,omitempty"`
	UnrecognizedFields map[string]any
}
