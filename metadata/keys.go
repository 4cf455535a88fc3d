package metadata

import (
	"bytes"
	"crypto"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/secure-systems-lab/go-securesystemslib/cjson"
	"github.com/sigstore/sigstore/pkg/cryptoutils"
	"github.com/sigstore/sigstore/pkg/signature"
)

// Key is a public key entry from root's key table.
type Key struct {
	Type               string `json:"keytype"`
	Value              KeyVal `json:"keyval"`
	UnrecognizedFields map[string]any
	id                 string
	idOnce             sync.Once
}

// KeyVal holds the serialized public key material: a PEM block for RSA
// keys, a hex (or base64) encoded point for Ed25519 keys.
type KeyVal struct {
	PublicKey          string `json:"public"`
	UnrecognizedFields map[string]any
}

// KeyMap is root's keyid to key table. Unlike a plain map it rejects
// duplicate key IDs instead of silently keeping the last entry.
type KeyMap map[string]*Key

func (km *KeyMap) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return ErrValue{Msg: "keys is not an object"}
	}
	m := KeyMap{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		id, ok := tok.(string)
		if !ok {
			return ErrValue{Msg: "key ID is not a string"}
		}
		if _, ok := m[id]; ok {
			return ErrValue{Msg: fmt.Sprintf("duplicate key ID %s", id)}
		}
		var k Key
		if err := dec.Decode(&k); err != nil {
			return err
		}
		m[id] = &k
	}
	*km = m
	return nil
}

// ToPublicKey generates a crypto.PublicKey from the key entry.
func (k *Key) ToPublicKey() (crypto.PublicKey, error) {
	switch strings.ToLower(k.Type) {
	case KeyTypeRSA:
		publicKey, err := cryptoutils.UnmarshalPEMToPublicKey([]byte(k.Value.PublicKey))
		if err != nil {
			return nil, err
		}
		rsaKey, ok := publicKey.(*rsa.PublicKey)
		if !ok {
			return nil, ErrValue{Msg: "invalid rsa public key"}
		}
		return rsaKey, nil
	case KeyTypeEd25519:
		raw, err := hex.DecodeString(k.Value.PublicKey)
		if err != nil {
			raw, err = base64.StdEncoding.DecodeString(k.Value.PublicKey)
			if err != nil {
				return nil, ErrValue{Msg: "ed25519 public key is neither hex nor base64"}
			}
		}
		if len(raw) != ed25519.PublicKeySize {
			return nil, ErrValue{Msg: fmt.Sprintf("ed25519 public key has length %d, want %d", len(raw), ed25519.PublicKeySize)}
		}
		return ed25519.PublicKey(raw), nil
	}
	return nil, ErrValue{Msg: fmt.Sprintf("unsupported key type %s", k.Type)}
}

// Verifier returns a signature verifier for the given signature
// method. The method must agree with the key type: an rsassa-pss
// signature cannot be checked with an ed25519 key and vice versa.
func (k *Key) Verifier(method string) (signature.Verifier, error) {
	publicKey, err := k.ToPublicKey()
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(method) {
	case MethodRSASSAPSS:
		rsaKey, ok := publicKey.(*rsa.PublicKey)
		if !ok {
			return nil, ErrType{Msg: fmt.Sprintf("method %s cannot be verified with a %s key", method, k.Type)}
		}
		return signature.LoadRSAPSSVerifier(rsaKey, crypto.SHA256, &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthAuto, Hash: crypto.SHA256})
	case MethodEd25519:
		edKey, ok := publicKey.(ed25519.PublicKey)
		if !ok {
			return nil, ErrType{Msg: fmt.Sprintf("method %s cannot be verified with a %s key", method, k.Type)}
		}
		return signature.LoadED25519Verifier(edKey)
	}
	return nil, ErrValue{Msg: fmt.Sprintf("unsupported signature method %s", method)}
}

// Method returns the signature method produced by this key's type.
func (k *Key) Method() (string, error) {
	switch strings.ToLower(k.Type) {
	case KeyTypeRSA:
		return MethodRSASSAPSS, nil
	case KeyTypeEd25519:
		return MethodEd25519, nil
	}
	return "", ErrValue{Msg: fmt.Sprintf("unsupported key type %s", k.Type)}
}

// KeyFromPublicKey generates a metadata Key from a crypto.PublicKey.
func KeyFromPublicKey(k crypto.PublicKey) (*Key, error) {
	key := &Key{}
	switch k := k.(type) {
	case *rsa.PublicKey:
		key.Type = KeyTypeRSA
		pemKey, err := cryptoutils.MarshalPublicKeyToPEM(k)
		if err != nil {
			return nil, err
		}
		key.Value.PublicKey = string(pemKey)
	case ed25519.PublicKey:
		key.Type = KeyTypeEd25519
		key.Value.PublicKey = hex.EncodeToString(k)
	default:
		return nil, ErrValue{Msg: "unsupported public key type"}
	}
	return key, nil
}

// ID returns the key ID: the hex encoded SHA-256 of the key's
// canonical serialization.
func (k *Key) ID() string {
	k.idOnce.Do(func() {
		data, err := cjson.EncodeCanonical(k)
		if err != nil {
			panic(fmt.Errorf("error creating key ID: %w", err))
		}
		digest := sha256.Sum256(data)
		k.id = hex.EncodeToString(digest[:])
	})
	return k.id
}
