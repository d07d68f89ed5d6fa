package mirror_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thepwagner/debmirror/pkg/debian"
	"github.com/thepwagner/debmirror/pkg/debian/debiantest"
	"github.com/thepwagner/debmirror/pkg/mirror"
	"github.com/thepwagner/debmirror/pkg/repo"
	"github.com/thepwagner/debmirror/pkg/transport"
	"github.com/thepwagner/debmirror/pkg/units"
)

// fakeTransport records fetched URLs and fails those matched by fail.
type fakeTransport struct {
	transport.Transport

	mu      sync.Mutex
	fetched []string
	fail    func(url string) error
}

func (f *fakeTransport) Fetch(ctx context.Context, res *repo.Resource) error {
	f.mu.Lock()
	f.fetched = append(f.fetched, res.URL)
	f.mu.Unlock()

	if f.fail != nil {
		if err := f.fail(res.URL); err != nil {
			return &debian.UnavailableError{Location: res.URL, Err: err}
		}
	}
	return f.Transport.Fetch(ctx, res)
}

func (f *fakeTransport) artifactFetches() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int
	for _, u := range f.fetched {
		if strings.Contains(u, "/pool/") {
			n++
		}
	}
	return n
}

type fixture struct {
	upstream  *debiantest.Repo
	transport *fakeTransport
	units     units.Store
	artifacts *mirror.ArtifactStore
	syncer    *mirror.Syncer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		upstream:  debiantest.NewRepo(t, "precise"),
		transport: &fakeTransport{Transport: transport.NewLocal()},
		units:     units.NewMemory(),
		artifacts: mirror.NewArtifactStore(t.TempDir()),
	}
	cfg := mirror.Config{
		URL:           f.upstream.URL(),
		Distribution:  "precise",
		Components:    []string{"main"},
		Architectures: []string{"amd64"},
	}
	f.syncer = mirror.NewSyncer("ubuntu", cfg, f.transport, f.units, f.artifacts)
	return f
}

// precise lists one source and two binary packages.
func (f *fixture) precise() {
	f.upstream.AddSource("main", "python-crypto", "2.6-1")
	f.upstream.AddBinary("main", "amd64", "hello", "2.10-2")
	f.upstream.AddBinary("main", "amd64", "libdaemon0", "0.14-2")
	f.upstream.Write()
}

func (f *fixture) storedKeys(t *testing.T) []string {
	t.Helper()
	list, err := f.units.List(context.Background())
	require.NoError(t, err)
	var keys []string
	for _, u := range list {
		keys = append(keys, u.Key.Name)
	}
	return keys
}

func TestSyncer_Run(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.precise()

	report := f.syncer.Run(context.Background())
	require.NoError(t, report.Err())

	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, "ubuntu", report.Repo)
	assert.Equal(t, mirror.PhaseDone, report.Phase)
	assert.False(t, report.Failed())
	assert.Equal(t, mirror.StateSuccess, report.Metadata.State)
	assert.Equal(t, 2, report.Metadata.QueryTotal)
	assert.Equal(t, 2, report.Metadata.QueryFinished)
	assert.Equal(t, 3, report.Metadata.Packages)

	assert.Equal(t, mirror.StateSuccess, report.Packages.State)
	assert.Equal(t, 3, report.Packages.Total)
	assert.Equal(t, 3, report.Packages.New)
	assert.Equal(t, 3, report.Packages.Finished)
	assert.Equal(t, 0, report.Packages.Errors)
	assert.Equal(t, 4, report.Packages.Downloaded)

	assert.Equal(t, []string{"hello", "libdaemon0", "python-crypto"}, f.storedKeys(t))
	for _, rel := range []string{
		"pool/main/h/hello/hello_2.10-2_amd64.deb",
		"pool/main/libd/libdaemon0/libdaemon0_0.14-2_amd64.deb",
		"pool/main/p/python-crypto/python-crypto_2.6-1.dsc",
		"pool/main/p/python-crypto/python-crypto_2.6-1.orig.tar.gz",
	} {
		ok, err := f.artifacts.Exists(rel)
		require.NoError(t, err)
		assert.True(t, ok, rel)
	}
}

func TestSyncer_RunTwice(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.precise()

	first := f.syncer.Run(context.Background())
	require.NoError(t, first.Err())
	fetches := f.transport.artifactFetches()
	assert.Equal(t, 4, fetches)

	second := f.syncer.Run(context.Background())
	require.NoError(t, second.Err())
	assert.NotEqual(t, first.RunID, second.RunID)
	assert.Equal(t, mirror.PhaseDone, second.Phase)
	assert.Equal(t, 3, second.Packages.Total)
	assert.Equal(t, 0, second.Packages.New)
	assert.Equal(t, 0, second.Packages.Downloaded)
	assert.Equal(t, fetches, f.transport.artifactFetches())
}

func TestSyncer_PartialFailure(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.upstream.AddBinary("main", "amd64", "aaa", "1.0")
	f.upstream.AddBinary("main", "amd64", "bbb", "1.0")
	f.upstream.AddBinary("main", "amd64", "ccc", "1.0")
	f.upstream.EnsureArch("main", "amd64")
	f.upstream.Write()

	f.transport.fail = func(url string) error {
		if strings.Contains(url, "/bbb_") {
			return transport.ErrRetrieval
		}
		return nil
	}

	report := f.syncer.Run(context.Background())
	assert.Equal(t, mirror.PhasePartialFailure, report.Phase)
	assert.False(t, report.Failed())
	assert.Equal(t, mirror.StateSuccess, report.Metadata.State)
	assert.Equal(t, mirror.StatePartial, report.Packages.State)
	assert.Equal(t, 3, report.Packages.New)
	assert.Equal(t, 2, report.Packages.Finished)
	assert.Equal(t, 1, report.Packages.Errors)

	failures := report.FailuresFor("bbb")
	require.Len(t, failures, 1)
	assert.Contains(t, failures[0].Key, "bbb_1.0_")
	assert.ErrorIs(t, report.Err(), transport.ErrRetrieval)
	assert.Equal(t, []string{"aaa", "ccc"}, f.storedKeys(t))

	// the failed package is retried by the next run
	f.transport.fail = nil
	report = f.syncer.Run(context.Background())
	require.NoError(t, report.Err())
	assert.Equal(t, 1, report.Packages.New)
	assert.Equal(t, 1, report.Packages.Finished)
	assert.Equal(t, []string{"aaa", "bbb", "ccc"}, f.storedKeys(t))
}

func TestSyncer_Stale(t *testing.T) {
	t.Parallel()

	for _, removeMissing := range []bool{false, true} {
		t.Run(map[bool]string{false: "keep", true: "remove"}[removeMissing], func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)
			f.syncer.Config.RemoveMissing = removeMissing
			f.upstream.AddBinary("main", "amd64", "aaa", "1.0")
			f.upstream.AddBinary("main", "amd64", "bbb", "1.0")
			f.upstream.Write()
			require.NoError(t, f.syncer.Run(context.Background()).Err())

			// upstream now lists {bbb, ccc}
			upstream := debiantest.NewRepo(t, "precise")
			upstream.AddBinary("main", "amd64", "bbb", "1.0")
			upstream.AddBinary("main", "amd64", "ccc", "1.0")
			upstream.Write()
			f.syncer.Config.URL = upstream.URL()

			report := f.syncer.Run(context.Background())
			require.NoError(t, report.Err())
			assert.Equal(t, 1, report.Packages.New)
			assert.Equal(t, 1, report.Packages.Stale)

			staleFile := "pool/main/a/aaa/aaa_1.0_amd64.deb"
			exists, err := f.artifacts.Exists(staleFile)
			require.NoError(t, err)
			if removeMissing {
				assert.Equal(t, 1, report.Packages.Removed)
				assert.Equal(t, []string{"bbb", "ccc"}, f.storedKeys(t))
				assert.False(t, exists)
			} else {
				assert.Equal(t, 0, report.Packages.Removed)
				assert.Equal(t, []string{"aaa", "bbb", "ccc"}, f.storedKeys(t))
				assert.True(t, exists)
			}
		})
	}
}

func TestSyncer_MetadataFailure(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.precise()
	f.upstream.Remove("dists/precise/main/binary-amd64/Packages.gz")

	report := f.syncer.Run(context.Background())
	assert.Equal(t, mirror.PhaseMetadataFailed, report.Phase)
	assert.True(t, report.Failed())
	assert.Equal(t, mirror.StateFailed, report.Metadata.State)
	assert.Equal(t, 1, report.Metadata.QueryFinished)
	assert.Equal(t, mirror.StateSkipped, report.Packages.State)
	assert.Equal(t, 0, f.transport.artifactFetches())
	assert.Empty(t, f.storedKeys(t))

	err := report.Err()
	assert.ErrorIs(t, err, debian.ErrResourceUnavailable)
	assert.ErrorIs(t, err, transport.ErrNotFound)
}

func TestSyncer_MalformedIndex(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.precise()

	fn := filepath.Join(f.upstream.Root, "dists", "precise", "main", "binary-amd64", "Packages.gz")
	require.NoError(t, os.WriteFile(fn, debiantest.Index(t, debian.CompressionGZIP,
		debian.Paragraph{"package": "hello", "version": "1.0"},
		debian.Paragraph{"version": "1.0"},
	), 0o644))

	report := f.syncer.Run(context.Background())
	assert.Equal(t, mirror.PhaseMetadataFailed, report.Phase)
	assert.ErrorIs(t, report.Err(), debian.ErrMalformedRecord)
	assert.Empty(t, f.storedKeys(t))
}

func TestSyncer_OptionalArchitecture(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.syncer.Config.OptionalArchitectures = []string{"arm64"}
	f.precise()

	report := f.syncer.Run(context.Background())
	require.NoError(t, report.Err())
	assert.Equal(t, mirror.PhaseDone, report.Phase)
	assert.Equal(t, 3, report.Metadata.QueryTotal)
	assert.Equal(t, 3, report.Metadata.QueryFinished)
	assert.Equal(t, 3, report.Packages.Finished)
}

func TestSyncer_EmptyArchitecture(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.upstream.AddSource("main", "python-crypto", "2.6-1")
	f.upstream.EnsureArch("main", "amd64")
	f.upstream.Write()

	report := f.syncer.Run(context.Background())
	require.NoError(t, report.Err())
	assert.Equal(t, 1, report.Packages.Total)
}

func TestSyncer_Cancelled(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.precise()

	var checks int
	f.syncer.Cancelled = func() bool {
		checks++
		return checks > 1
	}

	report := f.syncer.Run(context.Background())
	require.NoError(t, report.Err())
	assert.Equal(t, mirror.PhaseDone, report.Phase)
	assert.Equal(t, mirror.StateCancelled, report.Packages.State)
	assert.True(t, report.Packages.Cancelled)
	assert.Equal(t, 3, report.Packages.New)
	assert.Equal(t, 1, report.Packages.Finished)
	assert.Equal(t, 0, report.Packages.Errors)
	assert.Equal(t, []string{"hello"}, f.storedKeys(t))
}

func TestSyncer_CancelledSkipsRemoval(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.syncer.Config.RemoveMissing = true
	f.precise()

	stale := units.Unit{Key: debian.UnitKey{Name: "zzz", Version: "1.0"}, Component: "main"}
	require.NoError(t, f.units.Save(context.Background(), stale))
	f.syncer.Cancelled = func() bool { return true }

	report := f.syncer.Run(context.Background())
	assert.Equal(t, 1, report.Packages.Stale)
	assert.Equal(t, 0, report.Packages.Removed)
	assert.Equal(t, []string{"zzz"}, f.storedKeys(t))
}

func TestSyncer_ExistingArtifactNotDownloaded(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.precise()

	const rel = "pool/main/h/hello/hello_2.10-2_amd64.deb"
	require.NoError(t, f.artifacts.Write(rel, strings.NewReader("already here")))

	report := f.syncer.Run(context.Background())
	require.NoError(t, report.Err())
	assert.Equal(t, 3, report.Packages.Finished)
	assert.Equal(t, 3, report.Packages.Downloaded)

	p, err := f.artifacts.Path(rel)
	require.NoError(t, err)
	b, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "already here", string(b))
}

func TestSyncer_VerifyChecksums(t *testing.T) {
	t.Parallel()

	for _, verify := range []bool{false, true} {
		t.Run(map[bool]string{false: "off", true: "on"}[verify], func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)
			f.syncer.Config.VerifyChecksums = verify
			f.precise()

			fn := filepath.Join(f.upstream.Root, "pool", "main", "h", "hello", "hello_2.10-2_amd64.deb")
			require.NoError(t, os.WriteFile(fn, []byte("tampered"), 0o644))

			report := f.syncer.Run(context.Background())
			exists, err := f.artifacts.Exists("pool/main/h/hello/hello_2.10-2_amd64.deb")
			require.NoError(t, err)
			if verify {
				assert.Equal(t, 1, report.Packages.Errors)
				assert.ErrorIs(t, report.Err(), mirror.ErrChecksumMismatch)
				assert.False(t, exists)
			} else {
				require.NoError(t, report.Err())
				assert.True(t, exists)
			}
		})
	}
}

func TestSyncer_SharedAcrossComponents(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.syncer.Config.Components = []string{"main", "contrib"}
	f.upstream.AddBinary("main", "amd64", "hello", "1.0")
	f.upstream.AddBinary("contrib", "amd64", "hello", "1.0")
	f.upstream.AddSource("contrib", "python-crypto", "2.6-1")
	f.upstream.AddSource("main", "python-crypto", "2.6-1")
	f.upstream.Write()

	report := f.syncer.Run(context.Background())
	require.NoError(t, report.Err())
	assert.Equal(t, 4, report.Metadata.Packages)
	assert.Equal(t, 2, report.Packages.Total)
	assert.Equal(t, 2, report.Packages.Finished)
	assert.Equal(t, 3, report.Packages.Downloaded)

	u, err := f.units.Get(context.Background(), debian.UnitKey{Name: "hello", Version: "1.0", Maintainer: debiantest.Maintainer})
	require.NoError(t, err)
	assert.Equal(t, "main", u.Component)
}

func TestSyncer_InvalidConfig(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.syncer.Config.Components = []string{"main", "main"}

	report := f.syncer.Run(context.Background())
	assert.Equal(t, mirror.PhaseNotStarted, report.Phase)
	assert.True(t, report.Failed())
	var dup *repo.DuplicateComponentError
	assert.True(t, errors.As(report.Err(), &dup))
	assert.Empty(t, f.transport.fetched)
}

func TestSyncer_Snapshot(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.precise()

	dist, err := f.syncer.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Len(t, dist.Packages(), 3)

	res, err := dist.PackageResources()
	require.NoError(t, err)
	assert.Len(t, res, 4)
	assert.Equal(t, 0, f.transport.artifactFetches())
}

func TestSyncer_MaintainerChangeKeepsArtifact(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.syncer.Config.RemoveMissing = true
	p := f.upstream.AddBinary("main", "amd64", "aaa", "1.0")
	f.upstream.Write()
	require.NoError(t, f.syncer.Run(context.Background()).Err())

	const newMaintainer = "New Maintainer <new@example.com>"
	p["maintainer"] = newMaintainer
	f.upstream.Write()

	report := f.syncer.Run(context.Background())
	require.NoError(t, report.Err())
	assert.Equal(t, mirror.PhaseDone, report.Phase)
	assert.Equal(t, 1, report.Packages.New)
	assert.Equal(t, 1, report.Packages.Stale)
	assert.Equal(t, 1, report.Packages.Removed)

	list, err := f.units.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, newMaintainer, list[0].Key.Maintainer)

	ok, err := f.artifacts.Exists("pool/main/a/aaa/aaa_1.0_amd64.deb")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSyncer_SourceAndBinaryShareKey(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.upstream.AddSource("main", "hello", "2.10-2")
	f.upstream.AddBinary("main", "amd64", "hello", "2.10-2")
	f.upstream.Write()

	report := f.syncer.Run(context.Background())
	require.NoError(t, report.Err())
	assert.Equal(t, 2, report.Metadata.Packages)
	assert.Equal(t, 1, report.Packages.Total)
	assert.Equal(t, 1, report.Packages.Finished)
	assert.Equal(t, 3, report.Packages.Downloaded)

	for _, rel := range []string{
		"pool/main/h/hello/hello_2.10-2_amd64.deb",
		"pool/main/h/hello/hello_2.10-2.dsc",
		"pool/main/h/hello/hello_2.10-2.orig.tar.gz",
	} {
		ok, err := f.artifacts.Exists(rel)
		require.NoError(t, err)
		assert.True(t, ok, rel)
	}

	u, err := f.units.Get(context.Background(), debian.UnitKey{Name: "hello", Version: "2.10-2", Maintainer: debiantest.Maintainer})
	require.NoError(t, err)
	assert.Equal(t, debian.KindBinary, u.Kind)
	assert.Equal(t, "pool/main/h/hello/hello_2.10-2_amd64.deb", u.Metadata["filename"])
	assert.Len(t, u.Files, 3)
}
