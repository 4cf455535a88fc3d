// Package verifier implements the Uptane client update pipeline for a
// single repository: it fetches the signed role hierarchy, validates
// it against the trust anchored by root, persists what validated, and
// downloads the referenced targets.
//
// A Verifier is single-threaded: one Refresh at a time. Running the
// Director and Image repositories in parallel means one Verifier per
// repository; they share nothing.
package verifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"

	"github.com/uptane/go-uptane/config"
	"github.com/uptane/go-uptane/fetcher"
	"github.com/uptane/go-uptane/metadata"
	"github.com/uptane/go-uptane/store"
	"github.com/uptane/go-uptane/trust"
)

// Target is one artifact the repository's targets role references,
// reduced to the single strongest digest. Custom is passed through
// verbatim for consumers (installation logic, ECU routing).
type Target struct {
	Name   string
	Length int64
	Hash   metadata.Hash
	Custom json.RawMessage
}

// Verifier drives the update workflow for one repository.
type Verifier struct {
	name    string
	baseURL string
	cfg     *config.Config
	store   *store.FileStore
	fetch   fetcher.Fetcher

	trust            *trust.State
	timestampVersion int64
	targets          []Target
}

// New creates a Verifier for the named repository. Trust is seeded
// from an on-disk root.json if one exists, and the freshness counter
// from an on-disk timestamp.json; neither touches the network. A nil
// cfg selects the defaults, a nil f an HTTPS fetcher built from cfg.
func New(name, baseURL string, cfg *config.Config, f fetcher.Fetcher) (*Verifier, error) {
	if cfg == nil {
		cfg = config.New()
	}
	if f == nil {
		hf, err := fetcher.NewHTTPFetcher(cfg.RequestTimeout, cfg.TLS)
		if err != nil {
			return nil, err
		}
		f = hf
	}
	st, err := store.New(filepath.Join(cfg.MetadataRoot, name))
	if err != nil {
		return nil, err
	}
	v := &Verifier{
		name:    name,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		cfg:     cfg,
		store:   st,
		fetch:   f,
	}
	if data, err := st.Load(metadata.ROOT); err == nil {
		root, err := metadata.Root().FromBytes(data)
		if err != nil {
			return nil, err
		}
		state, err := trust.IngestRoot(name, &root.Signed, cfg.MinSignatures, cfg.MaxSignatures)
		if err != nil {
			return nil, err
		}
		v.trust = state
		log.Debugf("%s: seeded trust from on-disk root v%d", name, root.Signed.Version)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	if data, err := st.Load(metadata.TIMESTAMP); err == nil {
		env, err := metadata.EnvelopeFromBytes(data)
		if err != nil {
			return nil, err
		}
		v.timestampVersion = env.Header.Version
		log.Debugf("%s: seeded timestamp version %d from disk", name, env.Header.Version)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	return v, nil
}

// UpdateRoot fetches root.json, ingests its key and role tables into a
// candidate trust state, and verifies the document under that
// candidate: a new root must validate under the keys it declares. Only
// then is it persisted and the live trust replaced. A failed rotation
// leaves the prior trust intact.
func (v *Verifier) UpdateRoot() error {
	env, data, err := v.fetchRole(metadata.ROOT, v.cfg.RootMaxLength)
	if err != nil {
		return err
	}
	root, err := metadata.Root().FromBytes(data)
	if err != nil {
		return metadata.ErrSecurity{Repo: v.name, Msg: fmt.Sprintf("Invalid root metadata: %v", err)}
	}
	candidate, err := trust.IngestRoot(v.name, &root.Signed, v.cfg.MinSignatures, v.cfg.MaxSignatures)
	if err != nil {
		return err
	}
	if err := candidate.VerifySigned(v.name, env); err != nil {
		return err
	}
	if err := v.store.Save(metadata.ROOT, data); err != nil {
		return err
	}
	v.trust = candidate
	log.Infof("%s: trusted root updated to v%d", v.name, root.Signed.Version)
	return nil
}

// Refresh runs one pass of the update workflow: timestamp, then - only
// if the timestamp version moved forward - snapshot, a root
// re-anchoring when the snapshot lists one, every other role the
// snapshot attests to, and finally the targets referenced by the
// targets role. Any validation error aborts the pass; a root already
// re-anchored stays re-anchored.
func (v *Verifier) Refresh() (err error) {
	if v.trust == nil {
		return metadata.ErrSecurity{Repo: v.name, Msg: "No trusted root available, run UpdateRoot first"}
	}
	tsEnv, tsData, err := v.fetchRole(metadata.TIMESTAMP, v.cfg.TimestampMaxLength)
	if err != nil {
		return err
	}
	if err := v.trust.VerifySigned(v.name, tsEnv); err != nil {
		return err
	}
	if tsEnv.Header.Version <= v.timestampVersion {
		log.Debugf("%s: timestamp v%d is not newer than v%d, nothing to do", v.name, tsEnv.Header.Version, v.timestampVersion)
		return nil
	}
	if err := v.store.Save(metadata.TIMESTAMP, tsData); err != nil {
		return err
	}
	v.timestampVersion = tsEnv.Header.Version

	// A new snapshot is available: the previous target list no longer
	// describes the repository. It is restored if this pass fails, so
	// Targets keeps reporting the last successful refresh.
	previous := v.targets
	v.targets = nil
	defer func() {
		if err != nil {
			v.targets = previous
		}
	}()

	snapEnv, snapData, err := v.fetchRole(metadata.SNAPSHOT, v.cfg.SnapshotMaxLength)
	if err != nil {
		return err
	}
	if err := v.trust.VerifySigned(v.name, snapEnv); err != nil {
		return err
	}
	if err := v.store.Save(metadata.SNAPSHOT, snapData); err != nil {
		return err
	}
	snap, err := metadata.Snapshot().FromBytes(snapData)
	if err != nil {
		return metadata.ErrSecurity{Repo: v.name, Msg: fmt.Sprintf("Invalid snapshot metadata: %v", err)}
	}

	names := make([]string, 0, len(snap.Signed.Meta))
	for name := range snap.Signed.Meta {
		names = append(names, name)
	}
	slices.Sort(names)

	// Root is updated first so every other role verifies under the
	// re-anchored trust.
	for _, name := range names {
		if roleName(name) == metadata.ROOT {
			if err := v.UpdateRoot(); err != nil {
				return err
			}
		}
	}
	for _, name := range names {
		role := roleName(name)
		if role == metadata.ROOT {
			continue
		}
		env, data, err := v.fetchRole(role, v.roleMaxLength(role))
		if err != nil {
			return err
		}
		if info, ok := snap.Signed.Meta[name]; ok {
			if err := info.VerifyLengthHashes(data); err != nil {
				return metadata.ErrSecurity{Repo: v.name, Msg: fmt.Sprintf("The %s metadata does not match its snapshot meta: %v", role, err)}
			}
		}
		if err := v.trust.VerifySigned(v.name, env); err != nil {
			return err
		}
		if err := v.store.Save(role, data); err != nil {
			return err
		}
		if role == metadata.TARGETS {
			targets, err := metadata.Targets().FromBytes(data)
			if err != nil {
				return metadata.ErrSecurity{Repo: v.name, Msg: fmt.Sprintf("Invalid targets metadata: %v", err)}
			}
			if err := v.ingestTargets(targets); err != nil {
				return err
			}
		}
	}
	return nil
}

// Targets returns the target descriptors from the last successful
// refresh, in ingestion order.
func (v *Verifier) Targets() []Target {
	out := make([]Target, len(v.targets))
	copy(out, v.targets)
	return out
}

// ingestTargets walks the targets map in sorted order, reduces each
// entry to a descriptor with its strongest hash, and saves it.
func (v *Verifier) ingestTargets(md *metadata.Metadata[metadata.TargetsType]) error {
	names := make([]string, 0, len(md.Signed.Targets))
	for name := range md.Signed.Targets {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		tf := md.Signed.Targets[name]
		h, ok := metadata.PreferredHash(tf.Hashes)
		if !ok {
			return metadata.ErrSecurity{Repo: v.name, Msg: fmt.Sprintf("Target %s carries no supported hash", name)}
		}
		t := Target{Name: name, Length: tf.Length, Hash: h, Custom: tf.Custom}
		if err := v.saveTarget(t); err != nil {
			return err
		}
	}
	return nil
}

// saveTarget downloads and stores one target. The download is capped
// at the declared length; exceeding it is an oversize error, a digest
// mismatch a hash error. Zero-length targets are metadata-only: no
// download, but the descriptor still lands in the target list.
func (v *Verifier) saveTarget(t Target) error {
	if t.Length > 0 {
		data, err := v.fetch.DownloadFile(fmt.Sprintf("%s/%s", v.baseURL, t.Name), t.Length)
		if err != nil {
			if errors.Is(err, metadata.ErrDownloadLengthMismatch{}) {
				return metadata.ErrOversizedTarget{Repo: v.name, Target: t.Name}
			}
			return metadata.ErrTransport{Repo: v.name, Msg: fmt.Sprintf("failed to fetch target %s", t.Name), Err: err}
		}
		if !t.Hash.Matches(data) {
			return metadata.ErrTargetHashMismatch{Repo: v.name, Target: t.Name}
		}
		if err := v.store.SaveTarget(t.Name, data); err != nil {
			return err
		}
		log.Debugf("%s: saved target %s (%d bytes)", v.name, t.Name, len(data))
	}
	v.targets = append(v.targets, t)
	return nil
}

// fetchRole downloads and parses one role document. Transport and wire
// parse failures surface as ErrTransport; validation happens later.
func (v *Verifier) fetchRole(role string, maxLength int64) (*metadata.Envelope, []byte, error) {
	urlPath := fmt.Sprintf("%s/%s.json", v.baseURL, url.QueryEscape(role))
	data, err := v.fetch.DownloadFile(urlPath, maxLength)
	if err != nil {
		return nil, nil, metadata.ErrTransport{Repo: v.name, Msg: fmt.Sprintf("failed to fetch role %s", role), Err: err}
	}
	env, err := metadata.EnvelopeFromBytes(data)
	if err != nil {
		return nil, nil, metadata.ErrTransport{Repo: v.name, Msg: fmt.Sprintf("failed to parse role %s", role), Err: err}
	}
	return env, data, nil
}

func (v *Verifier) roleMaxLength(role string) int64 {
	switch role {
	case metadata.ROOT:
		return v.cfg.RootMaxLength
	case metadata.TIMESTAMP:
		return v.cfg.TimestampMaxLength
	case metadata.SNAPSHOT:
		return v.cfg.SnapshotMaxLength
	default:
		return v.cfg.TargetsMaxLength
	}
}

// roleName maps a snapshot meta file name ("targets.json") onto its
// role name.
func roleName(metaName string) string {
	return strings.TrimSuffix(strings.ToLower(metaName), ".json")
}
