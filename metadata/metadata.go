package metadata

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/secure-systems-lab/go-securesystemslib/cjson"
	"github.com/sigstore/sigstore/pkg/signature"
	log "github.com/sirupsen/logrus"
)

// Root returns a new metadata instance of type Root.
func Root(expires ...string) *Metadata[RootType] {
	if len(expires) == 0 {
		expires = []string{""}
	}
	roles := map[string]*Role{}
	for _, r := range TOP_LEVEL_ROLE_NAMES {
		roles[r] = &Role{
			KeyIDs:    []string{},
			Threshold: 1,
		}
	}
	return &Metadata[RootType]{
		Signed: RootType{
			Type:    ROOT,
			Version: 1,
			Expires: expires[0],
			Keys:    KeyMap{},
			Roles:   roles,
		},
		Signatures: []Signature{},
	}
}

// Timestamp returns a new metadata instance of type Timestamp.
func Timestamp(expires ...string) *Metadata[TimestampType] {
	if len(expires) == 0 {
		expires = []string{""}
	}
	return &Metadata[TimestampType]{
		Signed: TimestampType{
			Type:    TIMESTAMP,
			Version: 1,
			Expires: expires[0],
			Meta: map[string]MetaFiles{
				"snapshot.json": {Version: 1},
			},
		},
		Signatures: []Signature{},
	}
}

// Snapshot returns a new metadata instance of type Snapshot.
func Snapshot(expires ...string) *Metadata[SnapshotType] {
	if len(expires) == 0 {
		expires = []string{""}
	}
	return &Metadata[SnapshotType]{
		Signed: SnapshotType{
			Type:    SNAPSHOT,
			Version: 1,
			Expires: expires[0],
			Meta: map[string]MetaFiles{
				"targets.json": {Version: 1},
			},
		},
		Signatures: []Signature{},
	}
}

// Targets returns a new metadata instance of type Targets.
func Targets(expires ...string) *Metadata[TargetsType] {
	if len(expires) == 0 {
		expires = []string{""}
	}
	return &Metadata[TargetsType]{
		Signed: TargetsType{
			Type:    TARGETS,
			Version: 1,
			Expires: expires[0],
			Targets: map[string]TargetFiles{},
		},
		Signatures: []Signature{},
	}
}

// FromBytes deserializes metadata from bytes, checking that the
// document's role matches the caller's type.
func (meta *Metadata[T]) FromBytes(data []byte) (*Metadata[T], error) {
	m, err := fromBytes[T](data)
	if err != nil {
		return nil, err
	}
	*meta = *m
	return meta, nil
}

// ToBytes serializes metadata to bytes.
func (meta *Metadata[T]) ToBytes(pretty bool) ([]byte, error) {
	if pretty {
		return json.MarshalIndent(meta, "", "\t")
	}
	return json.Marshal(meta)
}

// FromFile loads metadata from a file.
func (meta *Metadata[T]) FromFile(name string) (*Metadata[T], error) {
	in, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer in.Close()
	data, err := io.ReadAll(in)
	if err != nil {
		return nil, err
	}
	return meta.FromBytes(data)
}

// ToFile saves metadata to a file.
func (meta *Metadata[T]) ToFile(name string, pretty bool) error {
	data, err := meta.ToBytes(pretty)
	if err != nil {
		return err
	}
	return os.WriteFile(name, data, 0644)
}

// Sign creates a signature over Signed and appends it to Signatures.
// The signature method is derived from the signer's key type.
func (meta *Metadata[T]) Sign(signer signature.Signer) (*Signature, error) {
	payload, err := cjson.EncodeCanonical(meta.Signed)
	if err != nil {
		return nil, err
	}
	sb, err := signer.SignMessage(bytes.NewReader(payload))
	if err != nil {
		return nil, ErrValue{Msg: fmt.Sprintf("problem signing metadata: %v", err)}
	}
	publ, err := signer.PublicKey()
	if err != nil {
		return nil, err
	}
	key, err := KeyFromPublicKey(publ)
	if err != nil {
		return nil, err
	}
	method, err := key.Method()
	if err != nil {
		return nil, err
	}
	sig := &Signature{
		KeyID:     key.ID(),
		Method:    method,
		Signature: sb,
	}
	meta.Signatures = append(meta.Signatures, *sig)
	log.Debugf("signed metadata with key ID %s", key.ID())
	return sig, nil
}

// ClearSignatures clears Signatures.
func (meta *Metadata[T]) ClearSignatures() {
	meta.Signatures = []Signature{}
}

// fromBytes returns a *Metadata[T] object from bytes and verifies that
// the data corresponds to the caller struct type.
func fromBytes[T Roles](data []byte) (*Metadata[T], error) {
	meta := &Metadata[T]{}
	if err := checkType[T](data); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, meta); err != nil {
		return nil, err
	}
	return meta, nil
}

// checkType verifies that the role named by the document's _type is
// the one the generic type expects. Role names are compared
// case-insensitively.
func checkType[T Roles](data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	signedPart, ok := m["signed"].(map[string]any)
	if !ok {
		return ErrValue{Msg: "document has no signed part"}
	}
	signedType, ok := signedPart["_type"].(string)
	if !ok {
		return ErrValue{Msg: "signed part carries no _type"}
	}
	var want string
	switch any(new(T)).(type) {
	case *RootType:
		want = ROOT
	case *TimestampType:
		want = TIMESTAMP
	case *SnapshotType:
		want = SNAPSHOT
	case *TargetsType:
		want = TARGETS
	}
	if !strings.EqualFold(signedType, want) {
		return ErrValue{Msg: fmt.Sprintf("expected metadata type %s, got - %s", want, signedType)}
	}
	return nil
}
