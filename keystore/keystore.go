// Package keystore stores private signing keys encrypted at rest, for
// repository-side tooling and test fixtures. Keys are sealed with
// nacl/secretbox under a key derived from a passphrase with scrypt.
package keystore

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/scrypt"
)

const (
	boxKeySize   = 32
	saltSize     = 32
	nonceSize    = 24
	scryptN      = 65536
	scryptR      = 8
	scryptP      = 1
	cipherName   = "nacl/secretbox"
	kdfName      = "scrypt"
	keyFilePerms = 0600
)

type scryptParams struct {
	N int `json:"N"`
	R int `json:"r"`
	P int `json:"p"`
}

type kdf struct {
	Name   string       `json:"name"`
	Params scryptParams `json:"params"`
	Salt   []byte       `json:"salt"`
}

type cipher struct {
	Name  string `json:"name"`
	Nonce []byte `json:"nonce"`
}

type envelope struct {
	KDF        kdf    `json:"kdf"`
	Cipher     cipher `json:"cipher"`
	Ciphertext []byte `json:"ciphertext"`
}

// Encrypt seals plaintext under a key derived from passphrase and
// returns a self-describing JSON envelope.
func Encrypt(plaintext, passphrase []byte) ([]byte, error) {
	env := envelope{
		KDF: kdf{
			Name:   kdfName,
			Params: scryptParams{N: scryptN, R: scryptR, P: scryptP},
			Salt:   make([]byte, saltSize),
		},
		Cipher: cipher{
			Name:  cipherName,
			Nonce: make([]byte, nonceSize),
		},
	}
	if _, err := rand.Read(env.KDF.Salt); err != nil {
		return nil, err
	}
	if _, err := rand.Read(env.Cipher.Nonce); err != nil {
		return nil, err
	}
	key, err := deriveKey(passphrase, env.KDF)
	if err != nil {
		return nil, err
	}
	var nonce [nonceSize]byte
	copy(nonce[:], env.Cipher.Nonce)
	env.Ciphertext = secretbox.Seal(nil, plaintext, &nonce, key)
	return json.Marshal(&env)
}

// Decrypt opens an envelope produced by Encrypt.
func Decrypt(data, passphrase []byte) ([]byte, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	if env.KDF.Name != kdfName {
		return nil, fmt.Errorf("unsupported kdf %q", env.KDF.Name)
	}
	if env.Cipher.Name != cipherName {
		return nil, fmt.Errorf("unsupported cipher %q", env.Cipher.Name)
	}
	if len(env.Cipher.Nonce) != nonceSize {
		return nil, errors.New("malformed nonce")
	}
	key, err := deriveKey(passphrase, env.KDF)
	if err != nil {
		return nil, err
	}
	var nonce [nonceSize]byte
	copy(nonce[:], env.Cipher.Nonce)
	plaintext, ok := secretbox.Open(nil, env.Ciphertext, &nonce, key)
	if !ok {
		return nil, errors.New("decryption failed")
	}
	return plaintext, nil
}

func deriveKey(passphrase []byte, k kdf) (*[boxKeySize]byte, error) {
	if k.Params.N < 1024 || k.Params.R < 1 || k.Params.P < 1 {
		return nil, errors.New("unsafe scrypt parameters")
	}
	raw, err := scrypt.Key(passphrase, k.Salt, k.Params.N, k.Params.R, k.Params.P, boxKeySize)
	if err != nil {
		return nil, err
	}
	key := new([boxKeySize]byte)
	copy(key[:], raw)
	return key, nil
}

// Store keeps one encrypted key file per role under a directory.
type Store struct {
	dir string
}

// NewStore creates the keystore directory if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}
	return &Store{dir: dir}, nil
}

// Save encrypts and writes the key material for role.
func (s *Store) Save(role string, key, passphrase []byte) error {
	data, err := Encrypt(key, passphrase)
	if err != nil {
		return err
	}
	return os.WriteFile(s.path(role), data, keyFilePerms)
}

// Load reads and decrypts the key material for role.
func (s *Store) Load(role string, passphrase []byte) ([]byte, error) {
	data, err := os.ReadFile(s.path(role))
	if err != nil {
		return nil, err
	}
	return Decrypt(data, passphrase)
}

func (s *Store) path(role string) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s.key.json", role))
}
