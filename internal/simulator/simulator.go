// Package simulator is a test utility: an in-memory Uptane repository.
//
// Simulator implements the fetcher interface, so verifiers in tests
// "download" metadata and targets without network access or file I/O:
// role documents are signed on demand with the simulator's role keys,
// and every fetch is recorded so tests can assert which requests a
// client actually made.
package simulator

import (
	"crypto"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/sigstore/sigstore/pkg/signature"
	log "github.com/sirupsen/logrus"

	"github.com/uptane/go-uptane/keystore"
	"github.com/uptane/go-uptane/metadata"
)

// Simulator holds one mutable repository version. Tests modify the
// role structs directly; the changes are served on the next fetch.
type Simulator struct {
	Root      *metadata.Metadata[metadata.RootType]
	Timestamp *metadata.Metadata[metadata.TimestampType]
	Snapshot  *metadata.Metadata[metadata.SnapshotType]
	Targets   *metadata.Metadata[metadata.TargetsType]

	// Signers are used at fetch time to sign metadata: role -> keyid -> signer.
	Signers map[string]map[string]signature.Signer

	// PrivateKeys retains the generated ed25519 key per role so tests
	// can exercise key dump/restore.
	PrivateKeys map[string]ed25519.PrivateKey

	// TargetData serves target downloads.
	TargetData map[string][]byte

	// Serve overrides what a file name resolves to, bypassing signing.
	Serve map[string][]byte

	// FetchLog records the path of every DownloadFile call.
	FetchLog []string

	Expiry string
}

// New builds a minimal valid repository: one ed25519 key per role,
// threshold 1 everywhere, all four documents at version 1.
func New() *Simulator {
	s := &Simulator{
		Signers:     map[string]map[string]signature.Signer{},
		PrivateKeys: map[string]ed25519.PrivateKey{},
		TargetData:  map[string][]byte{},
		Serve:       map[string][]byte{},
		Expiry:      time.Now().UTC().AddDate(0, 0, 30).Format(time.RFC3339),
	}
	s.Root = metadata.Root(s.Expiry)
	s.Timestamp = metadata.Timestamp(s.Expiry)
	s.Snapshot = metadata.Snapshot(s.Expiry)
	s.Targets = metadata.Targets(s.Expiry)
	for _, role := range metadata.TOP_LEVEL_ROLE_NAMES {
		s.GenerateKey(role)
	}
	return s
}

// GenerateKey creates a fresh ed25519 key for role and registers it in
// root's tables. Returns the key ID.
func (s *Simulator) GenerateKey(role string) string {
	public, private, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		log.Fatalf("simulator: failed to generate key: %v", err)
	}
	signer, err := signature.LoadED25519Signer(private)
	if err != nil {
		log.Fatalf("simulator: failed to load signer: %v", err)
	}
	key, err := metadata.KeyFromPublicKey(public)
	if err != nil {
		log.Fatalf("simulator: key conversion failed: %v", err)
	}
	s.addKey(role, key, signer)
	s.PrivateKeys[role] = private
	return key.ID()
}

// GenerateRSAKey creates a fresh RSA key for role; documents signed
// with it carry rsassa-pss signatures.
func (s *Simulator) GenerateRSAKey(role string) string {
	private, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		log.Fatalf("simulator: failed to generate rsa key: %v", err)
	}
	signer, err := signature.LoadRSAPSSSignerVerifier(private, crypto.SHA256, &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthAuto, Hash: crypto.SHA256})
	if err != nil {
		log.Fatalf("simulator: failed to load rsa signer: %v", err)
	}
	key, err := metadata.KeyFromPublicKey(private.Public())
	if err != nil {
		log.Fatalf("simulator: key conversion failed: %v", err)
	}
	s.addKey(role, key, signer)
	return key.ID()
}

// RotateKeys replaces all of role's keys with fresh ones.
func (s *Simulator) RotateKeys(role string) {
	for id := range s.Signers[role] {
		delete(s.Root.Signed.Keys, id)
	}
	s.Signers[role] = map[string]signature.Signer{}
	s.Root.Signed.Roles[role].KeyIDs = []string{}
	s.GenerateKey(role)
}

func (s *Simulator) addKey(role string, key *metadata.Key, signer signature.Signer) {
	s.Root.Signed.Keys[key.ID()] = key
	entry := s.Root.Signed.Roles[role]
	entry.KeyIDs = append(entry.KeyIDs, key.ID())
	if s.Signers[role] == nil {
		s.Signers[role] = map[string]signature.Signer{}
	}
	s.Signers[role][key.ID()] = signer
}

// AddTarget registers a target payload with sha256 and sha512 digests.
func (s *Simulator) AddTarget(name string, data []byte) metadata.TargetFiles {
	h256 := sha256.Sum256(data)
	h512 := sha512.Sum512(data)
	tf := metadata.TargetFiles{
		Length: int64(len(data)),
		Hashes: metadata.Hashes{
			metadata.AlgSHA256: h256[:],
			metadata.AlgSHA512: h512[:],
		},
	}
	s.Targets.Signed.Targets[name] = tf
	s.TargetData[name] = data
	return tf
}

// PublishTargets bumps targets, snapshot, and timestamp so clients see
// a new consistent repository version.
func (s *Simulator) PublishTargets() {
	s.Targets.Signed.Version++
	s.Snapshot.Signed.Version++
	s.Snapshot.Signed.Meta["targets.json"] = metadata.MetaFiles{Version: s.Targets.Signed.Version}
	s.Timestamp.Signed.Version++
	s.Timestamp.Signed.Meta["snapshot.json"] = metadata.MetaFiles{Version: s.Snapshot.Signed.Version}
}

// ListRootInSnapshot adds root.json to snapshot meta, which makes
// clients re-anchor trust during their next refresh.
func (s *Simulator) ListRootInSnapshot() {
	s.Snapshot.Signed.Meta["root.json"] = metadata.MetaFiles{Version: s.Root.Signed.Version}
}

// SignedRole serializes one role document with fresh signatures.
func (s *Simulator) SignedRole(role string) ([]byte, error) {
	switch role {
	case metadata.ROOT:
		return signRole(s, metadata.ROOT, s.Root)
	case metadata.TIMESTAMP:
		return signRole(s, metadata.TIMESTAMP, s.Timestamp)
	case metadata.SNAPSHOT:
		return signRole(s, metadata.SNAPSHOT, s.Snapshot)
	case metadata.TARGETS:
		return signRole(s, metadata.TARGETS, s.Targets)
	}
	return nil, fmt.Errorf("simulator: unknown role %s", role)
}

// DownloadFile implements the fetcher interface.
func (s *Simulator) DownloadFile(urlPath string, maxLength int64) ([]byte, error) {
	name, err := fileName(urlPath)
	if err != nil {
		return nil, err
	}
	s.FetchLog = append(s.FetchLog, name)
	data, err := s.serve(name)
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxLength {
		return nil, metadata.ErrDownloadLengthMismatch{Msg: fmt.Sprintf("download failed for %s, length %d is larger than expected %d", urlPath, len(data), maxLength)}
	}
	return data, nil
}

// DumpKeys writes the repository's private role keys into an encrypted
// keystore so a later test run (or another tool) can re-sign metadata.
func (s *Simulator) DumpKeys(dir string, passphrase []byte) error {
	ks, err := keystore.NewStore(dir)
	if err != nil {
		return err
	}
	for role, private := range s.PrivateKeys {
		if err := ks.Save(role, private, passphrase); err != nil {
			return err
		}
	}
	return nil
}

func (s *Simulator) serve(name string) ([]byte, error) {
	if raw, ok := s.Serve[name]; ok {
		return raw, nil
	}
	switch name {
	case "root.json", "timestamp.json", "snapshot.json", "targets.json":
		return s.SignedRole(strings.TrimSuffix(name, ".json"))
	}
	if data, ok := s.TargetData[name]; ok {
		return data, nil
	}
	return nil, metadata.ErrDownloadHTTP{StatusCode: 404, URL: name}
}

func signRole[T metadata.Roles](s *Simulator, role string, md *metadata.Metadata[T]) ([]byte, error) {
	md.ClearSignatures()
	for _, signer := range s.Signers[role] {
		if _, err := md.Sign(signer); err != nil {
			return nil, err
		}
	}
	return md.ToBytes(true)
}

// fileName reduces a fetch URL to the repository-relative file name.
func fileName(urlPath string) (string, error) {
	u, err := url.Parse(urlPath)
	if err != nil {
		return "", err
	}
	return strings.TrimPrefix(u.Path, "/"), nil
}
