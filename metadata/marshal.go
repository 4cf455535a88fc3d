package metadata

import (
	"encoding/json"
)

// The role bodies marshal through an explicit field dictionary so that
// fields a newer repository emits but this client does not model are
// preserved verbatim across load, canonicalization, and store.

func newDict(unrecognized map[string]any) map[string]any {
	dict := make(map[string]any, len(unrecognized)+8)
	for k, v := range unrecognized {
		dict[k] = v
	}
	return dict
}

func (meta *Metadata[T]) MarshalJSON() ([]byte, error) {
	dict := newDict(meta.UnrecognizedFields)
	dict["signed"] = meta.Signed
	dict["signatures"] = meta.Signatures
	return json.Marshal(dict)
}

func (meta *Metadata[T]) UnmarshalJSON(data []byte) error {
	var dict struct {
		Signed     T           `json:"signed"`
		Signatures []Signature `json:"signatures"`
	}
	if err := json.Unmarshal(data, &dict); err != nil {
		return err
	}
	meta.Signed = dict.Signed
	meta.Signatures = dict.Signatures

	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	delete(m, "signed")
	delete(m, "signatures")
	meta.UnrecognizedFields = m
	return nil
}

func (signed RootType) MarshalJSON() ([]byte, error) {
	dict := newDict(signed.UnrecognizedFields)
	dict["_type"] = signed.Type
	dict["version"] = signed.Version
	dict["expires"] = signed.Expires
	dict["keys"] = signed.Keys
	dict["roles"] = signed.Roles
	return json.Marshal(dict)
}

func (signed *RootType) UnmarshalJSON(data []byte) error {
	type Alias RootType
	var a Alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*signed = RootType(a)

	var dict map[string]any
	if err := json.Unmarshal(data, &dict); err != nil {
		return err
	}
	delete(dict, "_type")
	delete(dict, "version")
	delete(dict, "expires")
	delete(dict, "keys")
	delete(dict, "roles")
	signed.UnrecognizedFields = dict
	return nil
}

func (signed TimestampType) MarshalJSON() ([]byte, error) {
	dict := newDict(signed.UnrecognizedFields)
	dict["_type"] = signed.Type
	dict["version"] = signed.Version
	dict["expires"] = signed.Expires
	dict["meta"] = signed.Meta
	return json.Marshal(dict)
}

func (signed *TimestampType) UnmarshalJSON(data []byte) error {
	type Alias TimestampType
	var a Alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*signed = TimestampType(a)

	var dict map[string]any
	if err := json.Unmarshal(data, &dict); err != nil {
		return err
	}
	delete(dict, "_type")
	delete(dict, "version")
	delete(dict, "expires")
	delete(dict, "meta")
	signed.UnrecognizedFields = dict
	return nil
}

func (signed SnapshotType) MarshalJSON() ([]byte, error) {
	dict := newDict(signed.UnrecognizedFields)
	dict["_type"] = signed.Type
	dict["version"] = signed.Version
	dict["expires"] = signed.Expires
	dict["meta"] = signed.Meta
	return json.Marshal(dict)
}

func (signed *SnapshotType) UnmarshalJSON(data []byte) error {
	type Alias SnapshotType
	var a Alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*signed = SnapshotType(a)

	var dict map[string]any
	if err := json.Unmarshal(data, &dict); err != nil {
		return err
	}
	delete(dict, "_type")
	delete(dict, "version")
	delete(dict, "expires")
	delete(dict, "meta")
	signed.UnrecognizedFields = dict
	return nil
}

func (signed TargetsType) MarshalJSON() ([]byte, error) {
	dict := newDict(signed.UnrecognizedFields)
	dict["_type"] = signed.Type
	dict["version"] = signed.Version
	dict["expires"] = signed.Expires
	dict["targets"] = signed.Targets
	return json.Marshal(dict)
}

func (signed *TargetsType) UnmarshalJSON(data []byte) error {
	type Alias TargetsType
	var a Alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*signed = TargetsType(a)

	var dict map[string]any
	if err := json.Unmarshal(data, &dict); err != nil {
		return err
	}
	delete(dict, "_type")
	delete(dict, "version")
	delete(dict, "expires")
	delete(dict, "targets")
	signed.UnrecognizedFields = dict
	return nil
}

func (f MetaFiles) MarshalJSON() ([]byte, error) {
	dict := newDict(f.UnrecognizedFields)
	dict["version"] = f.Version
	if f.Length != 0 {
		dict["length"] = f.Length
	}
	if f.Hashes != nil {
		dict["hashes"] = f.Hashes
	}
	return json.Marshal(dict)
}

func (f *MetaFiles) UnmarshalJSON(data []byte) error {
	type Alias MetaFiles
	var a Alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*f = MetaFiles(a)

	var dict map[string]any
	if err := json.Unmarshal(data, &dict); err != nil {
		return err
	}
	delete(dict, "version")
	delete(dict, "length")
	delete(dict, "hashes")
	f.UnrecognizedFields = dict
	return nil
}

func (f TargetFiles) MarshalJSON() ([]byte, error) {
	dict := newDict(f.UnrecognizedFields)
	dict["length"] = f.Length
	dict["hashes"] = f.Hashes
	if f.Custom != nil {
		dict["custom"] = f.Custom
	}
	return json.Marshal(dict)
}

func (f *TargetFiles) UnmarshalJSON(data []byte) error {
	type Alias TargetFiles
	var a Alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*f = TargetFiles(a)

	var dict map[string]any
	if err := json.Unmarshal(data, &dict); err != nil {
		return err
	}
	delete(dict, "length")
	delete(dict, "hashes")
	delete(dict, "custom")
	f.UnrecognizedFields = dict
	return nil
}

func (k *Key) MarshalJSON() ([]byte, error) {
	dict := newDict(k.UnrecognizedFields)
	dict["keytype"] = k.Type
	dict["keyval"] = k.Value
	return json.Marshal(dict)
}

func (k *Key) UnmarshalJSON(data []byte) error {
	type Alias Key
	var a Alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	k.Type = a.Type
	k.Value = a.Value

	var dict map[string]any
	if err := json.Unmarshal(data, &dict); err != nil {
		return err
	}
	delete(dict, "keytype")
	delete(dict, "keyval")
	k.UnrecognizedFields = dict
	return nil
}

func (kv KeyVal) MarshalJSON() ([]byte, error) {
	dict := newDict(kv.UnrecognizedFields)
	dict["public"] = kv.PublicKey
	return json.Marshal(dict)
}

func (kv *KeyVal) UnmarshalJSON(data []byte) error {
	type Alias KeyVal
	var a Alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*kv = KeyVal(a)

	var dict map[string]any
	if err := json.Unmarshal(data, &dict); err != nil {
		return err
	}
	delete(dict, "public")
	kv.UnrecognizedFields = dict
	return nil
}

func (r *Role) MarshalJSON() ([]byte, error) {
	dict := newDict(r.UnrecognizedFields)
	dict["keyids"] = r.KeyIDs
	dict["threshold"] = r.Threshold
	return json.Marshal(dict)
}

func (r *Role) UnmarshalJSON(data []byte) error {
	type Alias Role
	var a Alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*r = Role(a)

	var dict map[string]any
	if err := json.Unmarshal(data, &dict); err != nil {
		return err
	}
	delete(dict, "keyids")
	delete(dict, "threshold")
	r.UnrecognizedFields = dict
	return nil
}

func (s Signature) MarshalJSON() ([]byte, error) {
	dict := newDict(s.UnrecognizedFields)
	dict["keyid"] = s.KeyID
	dict["method"] = s.Method
	dict["sig"] = s.Signature
	return json.Marshal(dict)
}

func (s *Signature) UnmarshalJSON(data []byte) error {
	type Alias Signature
	var a Alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*s = Signature(a)

	var dict map[string]any
	if err := json.Unmarshal(data, &dict); err != nil {
		return err
	}
	delete(dict, "keyid")
	delete(dict, "method")
	delete(dict, "sig")
	s.UnrecognizedFields = dict
	return nil
}
