package metadata

import (
	"encoding/json"
	"strings"

	"github.com/secure-systems-lab/go-securesystemslib/cjson"
)

// SignedHeader is the role-independent header every signed subtree
// carries. Expires is opaque at this layer and preserved verbatim.
type SignedHeader struct {
	Type    string `json:"_type"`
	Version int64  `json:"version"`
	Expires string `json:"expires"`
}

// Envelope is a signed role document as received from the wire. The
// signed subtree is kept verbatim: signatures cover the canonical form
// of these exact bytes, not of any re-marshaled struct.
type Envelope struct {
	Signed     json.RawMessage
	Signatures []Signature
	Header     SignedHeader
}

// EnvelopeFromBytes parses a {signed, signatures} document without
// committing to a role type.
func EnvelopeFromBytes(data []byte) (*Envelope, error) {
	var wire struct {
		Signed     json.RawMessage `json:"signed"`
		Signatures []Signature     `json:"signatures"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, err
	}
	if len(wire.Signed) == 0 {
		return nil, ErrValue{Msg: "document has no signed part"}
	}
	env := &Envelope{Signed: wire.Signed, Signatures: wire.Signatures}
	if err := json.Unmarshal(wire.Signed, &env.Header); err != nil {
		return nil, err
	}
	if env.Header.Type == "" {
		return nil, ErrValue{Msg: "signed part carries no _type"}
	}
	return env, nil
}

// Role returns the document's role name in normalized form.
func (e *Envelope) Role() string {
	return strings.ToLower(e.Header.Type)
}

// CanonicalSigned produces the byte string signatures are verified
// against: the canonical JSON form of the signed subtree.
func (e *Envelope) CanonicalSigned() ([]byte, error) {
	var v any
	if err := json.Unmarshal(e.Signed, &v); err != nil {
		return nil, err
	}
	return cjson.EncodeCanonical(v)
}
