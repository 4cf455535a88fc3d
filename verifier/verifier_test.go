package verifier

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uptane/go-uptane/config"
	"github.com/uptane/go-uptane/internal/simulator"
	"github.com/uptane/go-uptane/metadata"
)

const (
	repoName = "director"
	baseURL  = "https://uptane.example"
)

func newTestVerifier(t *testing.T, sim *simulator.Simulator) (*Verifier, *config.Config) {
	t.Helper()
	cfg := config.New()
	cfg.MetadataRoot = t.TempDir()
	v, err := New(repoName, baseURL, cfg, sim)
	require.NoError(t, err)
	return v, cfg
}

func storedFile(cfg *config.Config, parts ...string) string {
	return filepath.Join(append([]string{cfg.MetadataRoot, repoName}, parts...)...)
}

func TestRefreshValidRepository(t *testing.T) {
	sim := simulator.New()
	payload := []byte("firmware image payload")
	sim.AddTarget("firmware.bin", payload)

	v, cfg := newTestVerifier(t, sim)
	require.NoError(t, v.UpdateRoot())
	require.NoError(t, v.Refresh())

	targets := v.Targets()
	require.Len(t, targets, 1)
	assert.Equal(t, "firmware.bin", targets[0].Name)
	assert.Equal(t, int64(len(payload)), targets[0].Length)
	assert.Equal(t, metadata.AlgSHA512, targets[0].Hash.Algorithm)
	assert.True(t, targets[0].Hash.Matches(payload))

	saved, err := os.ReadFile(storedFile(cfg, "targets", "firmware.bin"))
	require.NoError(t, err)
	assert.Equal(t, payload, saved)

	// all four roles persisted
	for _, role := range metadata.TOP_LEVEL_ROLE_NAMES {
		_, err := os.Stat(storedFile(cfg, role+".json"))
		assert.NoError(t, err)
	}
}

func TestUpdateRootUnsigned(t *testing.T) {
	sim := simulator.New()
	sim.Root.ClearSignatures()
	unsigned, err := sim.Root.ToBytes(true)
	require.NoError(t, err)
	sim.Serve["root.json"] = unsigned

	v, cfg := newTestVerifier(t, sim)
	err = v.UpdateRoot()
	require.Error(t, err)
	assert.IsType(t, metadata.ErrSecurity{}, err)
	assert.Contains(t, err.Error(), "Missing signatures, verification failed")

	// nothing was persisted and trust stays unanchored
	_, statErr := os.Stat(storedFile(cfg, "root.json"))
	assert.Error(t, statErr)
	assert.Error(t, v.Refresh())
}

func TestUpdateRootIllegalThreshold(t *testing.T) {
	sim := simulator.New()
	sim.Root.Signed.Roles[metadata.SNAPSHOT].Threshold = 0

	v, _ := newTestVerifier(t, sim)
	err := v.UpdateRoot()
	require.Error(t, err)
	assert.IsType(t, metadata.ErrIllegalThreshold{}, err)
}

func TestRefreshOversizedTarget(t *testing.T) {
	sim := simulator.New()
	payload := make([]byte, 200)
	sim.AddTarget("fw.bin", payload)
	// declare half of what the server actually returns
	tf := sim.Targets.Signed.Targets["fw.bin"]
	tf.Length = 100
	sim.Targets.Signed.Targets["fw.bin"] = tf

	v, _ := newTestVerifier(t, sim)
	require.NoError(t, v.UpdateRoot())
	err := v.Refresh()
	require.Error(t, err)
	assert.IsType(t, metadata.ErrOversizedTarget{}, err)
}

func TestRefreshOversizedTargetByOneByte(t *testing.T) {
	sim := simulator.New()
	payload := make([]byte, 101)
	sim.AddTarget("fw.bin", payload)
	tf := sim.Targets.Signed.Targets["fw.bin"]
	tf.Length = 100
	sim.Targets.Signed.Targets["fw.bin"] = tf

	v, _ := newTestVerifier(t, sim)
	require.NoError(t, v.UpdateRoot())
	err := v.Refresh()
	require.Error(t, err)
	assert.IsType(t, metadata.ErrOversizedTarget{}, err)
}

func TestRefreshTargetHashMismatch(t *testing.T) {
	sim := simulator.New()
	payload := []byte("expected content!")
	sim.AddTarget("fw.bin", payload)
	served := make([]byte, len(payload))
	copy(served, payload)
	served[0] ^= 0xff
	sim.TargetData["fw.bin"] = served

	v, cfg := newTestVerifier(t, sim)
	require.NoError(t, v.UpdateRoot())
	err := v.Refresh()
	require.Error(t, err)
	assert.IsType(t, metadata.ErrTargetHashMismatch{}, err)

	// the mismatching payload must not land in the store
	_, statErr := os.Stat(storedFile(cfg, "targets", "fw.bin"))
	assert.Error(t, statErr)
}

func TestRefreshReplayedTimestamp(t *testing.T) {
	sim := simulator.New()
	sim.AddTarget("fw.bin", []byte("payload"))

	v, _ := newTestVerifier(t, sim)
	require.NoError(t, v.UpdateRoot())
	require.NoError(t, v.Refresh())
	require.Len(t, v.Targets(), 1)

	// no server-side change: the replayed timestamp version must stop
	// the workflow before any snapshot fetch
	sim.FetchLog = nil
	require.NoError(t, v.Refresh())
	assert.Equal(t, []string{"timestamp.json"}, sim.FetchLog)
	assert.Len(t, v.Targets(), 1)
}

func TestRefreshIdempotent(t *testing.T) {
	sim := simulator.New()
	sim.AddTarget("fw.bin", []byte("payload"))

	v, cfg := newTestVerifier(t, sim)
	require.NoError(t, v.UpdateRoot())
	require.NoError(t, v.Refresh())
	before := map[string][]byte{}
	for _, role := range metadata.TOP_LEVEL_ROLE_NAMES {
		data, err := os.ReadFile(storedFile(cfg, role+".json"))
		require.NoError(t, err)
		before[role] = data
	}
	targetsBefore := v.Targets()

	require.NoError(t, v.Refresh())
	for _, role := range metadata.TOP_LEVEL_ROLE_NAMES {
		data, err := os.ReadFile(storedFile(cfg, role+".json"))
		require.NoError(t, err)
		assert.Equal(t, before[role], data, "%s.json changed on a no-op refresh", role)
	}
	assert.Equal(t, targetsBefore, v.Targets())
}

func TestRefreshReanchorsRootFirst(t *testing.T) {
	sim := simulator.New()
	sim.AddTarget("fw.bin", []byte("payload"))

	v, cfg := newTestVerifier(t, sim)
	require.NoError(t, v.UpdateRoot())
	require.NoError(t, v.Refresh())

	// rotate the targets keys in a new root and list it in the next
	// snapshot; targets then verifies only under the re-anchored trust
	sim.RotateKeys(metadata.TARGETS)
	sim.Root.Signed.Version++
	sim.ListRootInSnapshot()
	sim.PublishTargets()

	sim.FetchLog = nil
	require.NoError(t, v.Refresh())

	rootIdx, targetsIdx := -1, -1
	for i, name := range sim.FetchLog {
		switch name {
		case "root.json":
			rootIdx = i
		case "targets.json":
			targetsIdx = i
		}
	}
	require.NotEqual(t, -1, rootIdx)
	require.NotEqual(t, -1, targetsIdx)
	assert.Less(t, rootIdx, targetsIdx, "root must re-anchor before other roles")

	stored, err := os.ReadFile(storedFile(cfg, "root.json"))
	require.NoError(t, err)
	root, err := metadata.Root().FromBytes(stored)
	require.NoError(t, err)
	assert.Equal(t, int64(2), root.Signed.Version)
}

func TestRefreshZeroLengthTargetIsMetadataOnly(t *testing.T) {
	sim := simulator.New()
	sim.AddTarget("marker.txt", []byte{})

	v, cfg := newTestVerifier(t, sim)
	require.NoError(t, v.UpdateRoot())
	require.NoError(t, v.Refresh())

	targets := v.Targets()
	require.Len(t, targets, 1)
	assert.Equal(t, int64(0), targets[0].Length)
	_, err := os.Stat(storedFile(cfg, "targets", "marker.txt"))
	assert.Error(t, err)
	assert.NotContains(t, sim.FetchLog, "marker.txt")
}

func TestRefreshSnapshotMetaMismatch(t *testing.T) {
	sim := simulator.New()
	sim.AddTarget("fw.bin", []byte("payload"))
	sim.Snapshot.Signed.Meta["targets.json"] = metadata.MetaFiles{Version: 1, Length: 1}

	v, _ := newTestVerifier(t, sim)
	require.NoError(t, v.UpdateRoot())
	err := v.Refresh()
	require.Error(t, err)
	assert.IsType(t, metadata.ErrSecurity{}, err)
	assert.Contains(t, err.Error(), "snapshot meta")
}

func TestNewSeedsFromDisk(t *testing.T) {
	sim := simulator.New()
	sim.AddTarget("fw.bin", []byte("payload"))

	cfg := config.New()
	cfg.MetadataRoot = t.TempDir()
	v, err := New(repoName, baseURL, cfg, sim)
	require.NoError(t, err)
	require.NoError(t, v.UpdateRoot())
	require.NoError(t, v.Refresh())

	// a fresh verifier over the same directory needs no UpdateRoot and
	// remembers the timestamp version across the restart
	sim.FetchLog = nil
	restarted, err := New(repoName, baseURL, cfg, sim)
	require.NoError(t, err)
	require.NoError(t, restarted.Refresh())
	assert.Equal(t, []string{"timestamp.json"}, sim.FetchLog)
}

func TestRefreshPicksUpPublishedUpdate(t *testing.T) {
	sim := simulator.New()
	sim.AddTarget("fw.bin", []byte("payload"))

	v, _ := newTestVerifier(t, sim)
	require.NoError(t, v.UpdateRoot())
	require.NoError(t, v.Refresh())
	require.Len(t, v.Targets(), 1)

	sim.AddTarget("fw2.bin", []byte("second payload"))
	sim.PublishTargets()
	require.NoError(t, v.Refresh())
	targets := v.Targets()
	require.Len(t, targets, 2)
	assert.Equal(t, "fw.bin", targets[0].Name)
	assert.Equal(t, "fw2.bin", targets[1].Name)
}

func TestRefreshWithoutTrustedRoot(t *testing.T) {
	sim := simulator.New()
	v, _ := newTestVerifier(t, sim)
	err := v.Refresh()
	require.Error(t, err)
	assert.IsType(t, metadata.ErrSecurity{}, err)
}
