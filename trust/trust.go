// Package trust holds the verifier's in-memory trust anchor: the key
// set and per-role signature thresholds established by the most
// recently validated root document.
package trust

import (
	"bytes"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/uptane/go-uptane/metadata"
)

// Bounds on the signature threshold a root may assign to a role.
// Roots declaring thresholds outside [MinSignatures, MaxSignatures]
// are rejected. Callers may narrow the bounds through configuration.
const (
	MinSignatures = 1
	MaxSignatures = 1000
)

// State is the set of trusted keys and per-role thresholds. A State is
// built completely by IngestRoot or not at all; live state is replaced
// wholesale on root updates and never mutated in place.
type State struct {
	Keys       map[string]*metadata.Key
	Thresholds map[string]int
}

// IngestRoot builds a fresh State from root's key and role tables.
// minSignatures/maxSignatures bound the acceptable thresholds; zero
// values select the package defaults.
func IngestRoot(repo string, signed *metadata.RootType, minSignatures, maxSignatures int) (*State, error) {
	if minSignatures <= 0 {
		minSignatures = MinSignatures
	}
	if maxSignatures <= 0 {
		maxSignatures = MaxSignatures
	}
	keys := make(map[string]*metadata.Key, len(signed.Keys))
	for id, key := range signed.Keys {
		keyType := strings.ToLower(key.Type)
		if keyType != metadata.KeyTypeRSA && keyType != metadata.KeyTypeEd25519 {
			return nil, metadata.ErrSecurity{Repo: repo, Msg: fmt.Sprintf("Unsupported key type: %s", key.Type)}
		}
		keys[id] = key
	}
	thresholds := make(map[string]int, len(signed.Roles))
	for role, entry := range signed.Roles {
		threshold := 0
		if entry != nil {
			threshold = entry.Threshold
		}
		if threshold < minSignatures {
			log.Debugf("threshold for role %s too small: %d < %d", role, threshold, minSignatures)
			return nil, metadata.ErrIllegalThreshold{Repo: repo, Msg: fmt.Sprintf("The role %s had an illegal signature threshold %d", role, threshold)}
		}
		if threshold > maxSignatures {
			log.Debugf("threshold for role %s too large: %d > %d", role, threshold, maxSignatures)
			return nil, metadata.ErrIllegalThreshold{Repo: repo, Msg: fmt.Sprintf("The role %s requires too many signatures: %d", role, threshold)}
		}
		thresholds[strings.ToLower(role)] = threshold
	}
	return &State{Keys: keys, Thresholds: thresholds}, nil
}

// VerifySigned checks a role document's signatures against the trusted
// key set and the role's threshold. Any malformed, unknown-key, or
// invalid signature rejects the whole document; the threshold is then
// counted over distinct key IDs, so repeated signatures from one key
// count once.
func (s *State) VerifySigned(repo string, env *metadata.Envelope) error {
	role := env.Role()
	threshold, ok := s.Thresholds[role]
	if !ok {
		return metadata.ErrSecurity{Repo: repo, Msg: fmt.Sprintf("Role %s is not delegated by root", role)}
	}
	if len(env.Signatures) == 0 {
		return metadata.ErrSecurity{Repo: repo, Msg: "Missing signatures, verification failed"}
	}
	if len(env.Signatures) < threshold {
		return metadata.ErrSecurity{Repo: repo, Msg: "Signature count is smaller than the threshold, verification failed"}
	}
	payload, err := env.CanonicalSigned()
	if err != nil {
		return metadata.ErrSecurity{Repo: repo, Msg: fmt.Sprintf("Cannot canonicalize signed part: %v", err)}
	}
	valid := map[string]bool{}
	for _, sig := range env.Signatures {
		method := strings.ToLower(sig.Method)
		if method != metadata.MethodRSASSAPSS && method != metadata.MethodEd25519 {
			return metadata.ErrSecurity{Repo: repo, Msg: fmt.Sprintf("Unsupported sign method: %s", sig.Method)}
		}
		key, ok := s.Keys[sig.KeyID]
		if !ok {
			return metadata.ErrSecurity{Repo: repo, Msg: fmt.Sprintf("Couldn't find a key: %s", sig.KeyID)}
		}
		verifier, err := key.Verifier(method)
		if err != nil {
			return metadata.ErrSecurity{Repo: repo, Msg: fmt.Sprintf("Cannot verify with key %s: %v", sig.KeyID, err)}
		}
		if err := verifier.VerifySignature(bytes.NewReader(sig.Signature), bytes.NewReader(payload)); err != nil {
			return metadata.ErrSecurity{Repo: repo, Msg: "Invalid signature, verification failed"}
		}
		valid[sig.KeyID] = true
	}
	if len(valid) < threshold {
		return metadata.ErrSecurity{Repo: repo, Msg: fmt.Sprintf("Valid signatures from %d distinct keys, threshold is %d", len(valid), threshold)}
	}
	log.Debugf("verified %s with %d signatures, threshold %d", role, len(valid), threshold)
	return nil
}
