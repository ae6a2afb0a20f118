package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// writePolicy replaces the file by rename so the watcher never sees a
// half-written policy.
func writePolicy(t *testing.T, path, body string) {
	t.Helper()
	tmp := path + ".tmp"
	require.NoError(t, os.WriteFile(tmp, []byte(body), 0o644))
	require.NoError(t, os.Rename(tmp, path))
}

func TestDefaultLedgerPolicyIsValid(t *testing.T) {
	p := DefaultLedgerPolicy()
	require.NoError(t, validateLedgerPolicy(p))
	assert.Equal(t, SequencePolicyScan, p.SequencePolicy)
	assert.Equal(t, DefaultSiteID, p.DefaultSiteID)
	assert.True(t, p.MarkBagUsed)
	assert.True(t, p.ValidateBag)
	assert.False(t, p.RejectDuplicateUsage)
	assert.Equal(t, time.UTC, p.Location())
}

func TestLoadLedgerPolicyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.yml")
	writePolicy(t, path, `
ledger:
  sequencePolicy: NAIVE
  lockTimeout: 5s
  defaultSiteId: SITE-7
  markBagUsed: false
  rejectDuplicateUsage: true
  maxBatchSize: 100
`)

	holder, err := LoadLedgerPolicyFile(path, zap.NewNop())
	require.NoError(t, err)

	p := holder.Get()
	assert.Equal(t, SequencePolicyNaive, p.SequencePolicy)
	assert.Equal(t, 5*time.Second, p.LockTimeout)
	assert.Equal(t, "SITE-7", p.DefaultSiteID)
	assert.False(t, p.MarkBagUsed)
	assert.True(t, p.ValidateBag, "unset keys keep defaults")
	assert.True(t, p.RejectDuplicateUsage)
	assert.Equal(t, 100, p.MaxBatchSize)
}

func TestLoadLedgerPolicyFileRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.yml")
	writePolicy(t, path, `
ledger:
  sequencePolicy: random
`)

	_, err := LoadLedgerPolicyFile(path, zap.NewNop())
	assert.Error(t, err)
}

func TestLedgerPolicyHotReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.yml")
	writePolicy(t, path, "ledger:\n  lockTimeout: 5s\n")

	holder, err := LoadLedgerPolicyFile(path, zap.NewNop())
	require.NoError(t, err)
	require.Equal(t, 5*time.Second, holder.Get().LockTimeout)

	writePolicy(t, path, "ledger:\n  lockTimeout: 9s\n")
	require.Eventually(t, func() bool {
		return holder.Get().LockTimeout == 9*time.Second
	}, 5*time.Second, 20*time.Millisecond)

	// An invalid edit keeps the last good policy.
	writePolicy(t, path, "ledger:\n  lockTimeout: -1s\n")
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, 9*time.Second, holder.Get().LockTimeout)
}

func TestNewLedgerPolicyHolderWithoutFile(t *testing.T) {
	t.Chdir(t.TempDir())

	holder, err := NewLedgerPolicyHolder(zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, DefaultLedgerPolicy(), holder.Get())
}

func TestLedgerPolicyLocation(t *testing.T) {
	p := DefaultLedgerPolicy()
	p.TimeZone = "Not/AZone"
	assert.Equal(t, time.UTC, p.Location())
}

func TestLedgerPolicyResolvesZoneOnLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.yml")
	writePolicy(t, path, "ledger:\n  timeZone: Asia/Jakarta\n")

	holder, err := LoadLedgerPolicyFile(path, zap.NewNop())
	require.NoError(t, err)

	p := holder.Get()
	require.NotNil(t, p.loc)
	assert.Equal(t, "Asia/Jakarta", p.Location().String())
	assert.Same(t, p.Location(), holder.Get().Location())
}

func TestStaticLedgerPolicyResolvesZone(t *testing.T) {
	p := DefaultLedgerPolicy()
	p.TimeZone = "Asia/Jakarta"
	p.loc = nil

	holder := NewStaticLedgerPolicy(p)
	assert.Same(t, holder.Get().Location(), holder.Get().Location())
	assert.Equal(t, "Asia/Jakarta", holder.Get().Location().String())

	p.TimeZone = "Europe/Berlin"
	holder.Set(p)
	assert.Equal(t, "Europe/Berlin", holder.Get().Location().String())
}
