package metadata

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

// Hash algorithms accepted in target and meta descriptors.
const (
	AlgSHA256 = "sha256"
	AlgSHA512 = "sha512"
)

type HexBytes []byte

type Hashes map[string]HexBytes

// Hash is a single selected digest for a target.
type Hash struct {
	Algorithm string
	Digest    HexBytes
}

// PreferredHash selects the strongest supported digest from a hash
// map, sha512 over sha256. The second return is false when neither
// algorithm is present.
func PreferredHash(hashes Hashes) (Hash, bool) {
	if d, ok := hashes[AlgSHA512]; ok {
		return Hash{Algorithm: AlgSHA512, Digest: d}, true
	}
	if d, ok := hashes[AlgSHA256]; ok {
		return Hash{Algorithm: AlgSHA256, Digest: d}, true
	}
	return Hash{}, false
}

// Matches reports whether data hashes to the expected digest. The
// digest comparison is constant time.
func (h Hash) Matches(data []byte) bool {
	var sum []byte
	switch h.Algorithm {
	case AlgSHA256:
		s := sha256.Sum256(data)
		sum = s[:]
	case AlgSHA512:
		s := sha512.Sum512(data)
		sum = s[:]
	default:
		return false
	}
	return hmac.Equal(h.Digest, sum)
}

func (h Hash) String() string {
	return fmt.Sprintf("%s:%s", h.Algorithm, hex.EncodeToString(h.Digest))
}

// VerifyLengthHashes checks whether data matches the length and hashes
// a snapshot or timestamp meta entry declares. Both are optional for
// meta entries.
func (f *MetaFiles) VerifyLengthHashes(data []byte) error {
	if len(f.Hashes) > 0 {
		if err := verifyHashes(data, f.Hashes); err != nil {
			return err
		}
	}
	if f.Length != 0 {
		if err := verifyLength(data, f.Length); err != nil {
			return err
		}
	}
	return nil
}

// verifyLength verifies if the passed data has the corresponding length
func verifyLength(data []byte, length int64) error {
	n, err := io.Copy(io.Discard, bytes.NewReader(data))
	if err != nil {
		return err
	}
	if length != n {
		return ErrValue{Msg: fmt.Sprintf("length verification failed - expected %d, got %d", length, n)}
	}
	return nil
}

// verifyHashes verifies if the hash of the passed data corresponds to it
func verifyHashes(data []byte, hashes Hashes) error {
	for alg, digest := range hashes {
		h := Hash{Algorithm: alg, Digest: digest}
		if alg != AlgSHA256 && alg != AlgSHA512 {
			return ErrValue{Msg: fmt.Sprintf("hash verification failed - unknown hashing algorithm - %s", alg)}
		}
		if !h.Matches(data) {
			return ErrValue{Msg: fmt.Sprintf("hash verification failed - mismatch for algorithm %s", alg)}
		}
	}
	return nil
}

func (b *HexBytes) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || len(data)%2 != 0 || data[0] != '"' || data[len(data)-1] != '"' {
		return errors.New("invalid JSON hex bytes")
	}
	res := make([]byte, hex.DecodedLen(len(data)-2))
	_, err := hex.Decode(res, data[1:len(data)-1])
	if err != nil {
		return err
	}
	*b = res
	return nil
}

func (b HexBytes) MarshalJSON() ([]byte, error) {
	res := make([]byte, hex.EncodedLen(len(b))+2)
	res[0] = '"'
	res[len(res)-1] = '"'
	hex.Encode(res[1:], b)
	return res, nil
}

func (b HexBytes) String() string {
	return hex.EncodeToString(b)
}
