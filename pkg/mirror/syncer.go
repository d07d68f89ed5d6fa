package mirror

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/thepwagner/debmirror/pkg/debian"
	"github.com/thepwagner/debmirror/pkg/repo"
	"github.com/thepwagner/debmirror/pkg/transport"
	"github.com/thepwagner/debmirror/pkg/units"
)

// Syncer mirrors one repository into an artifact store.
// Runs against the same Syncer must not overlap.
type Syncer struct {
	Name      string
	Config    Config
	Transport transport.Transport
	Units     units.Store
	Artifacts *ArtifactStore
	// Cancelled is consulted between package downloads. A run stops importing once it returns true.
	Cancelled func() bool
	Logger    *slog.Logger
}

func NewSyncer(name string, cfg Config, tr transport.Transport, store units.Store, artifacts *ArtifactStore) *Syncer {
	return &Syncer{
		Name:      name,
		Config:    cfg,
		Transport: tr,
		Units:     store,
		Artifacts: artifacts,
		Logger:    slog.Default(),
	}
}

func (s *Syncer) Close() error {
	return s.Units.Close()
}

// foundPackage is every record of one component that shares a unit key.
// A source and its same-named binary are one unit owning the files of both.
type foundPackage struct {
	component *repo.Component
	pkgs      []debian.Package
}

func (f *foundPackage) name() string {
	return f.pkgs[0].Name()
}

// unit takes the metadata of the first binary record and the files of every record.
func (f *foundPackage) unit() units.Unit {
	primary := f.pkgs[0]
	for _, pkg := range f.pkgs {
		if pkg.Kind() == debian.KindBinary {
			primary = pkg
			break
		}
	}

	u := units.FromPackage(f.component.Name, primary)
	seen := map[string]struct{}{}
	for _, file := range u.Files {
		seen[file.RelativePath] = struct{}{}
	}
	for _, pkg := range f.pkgs {
		for _, file := range pkg.Files(f.component.Name) {
			if _, ok := seen[file.RelativePath]; ok {
				continue
			}
			seen[file.RelativePath] = struct{}{}
			u.Files = append(u.Files, file)
		}
	}
	return u
}

// Run fetches the indexes, downloads packages that are not stored yet and, with
// RemoveMissing, removes stored packages no longer listed upstream.
// A single package failing does not stop the run.
func (s *Syncer) Run(ctx context.Context) *Report {
	report := newReport(uuid.NewString(), s.Name)
	log := s.logger().With(slog.String("repo", s.Name), slog.String("run_id", report.RunID))

	dist, err := s.Config.NewDistribution()
	if err != nil {
		log.Error("invalid repository configuration", slog.String("error", err.Error()))
		report.abort(err)
		return report
	}

	report.Phase = PhaseFetchingMetadata
	report.Metadata.State = StateRunning
	start := time.Now()
	err = s.fetchMetadata(ctx, log, dist, &report.Metadata)
	report.Metadata.Duration = time.Since(start)
	if err != nil {
		log.Error("fetching metadata failed", slog.String("error", err.Error()))
		report.metadataFailed(err)
		return report
	}
	report.Phase = PhaseMetadataParsed
	report.Metadata.State = StateSuccess
	log.Info("metadata parsed",
		slog.Int("indexes", report.Metadata.QueryFinished),
		slog.Int("packages", report.Metadata.Packages),
	)

	report.Phase = PhaseImportingPackages
	report.Packages.State = StateRunning
	start = time.Now()
	s.importPackages(ctx, log, dist, report)
	report.Packages.Duration = time.Since(start)
	report.finish()

	log.Info("sync finished",
		slog.String("phase", string(report.Phase)),
		slog.Int("total", report.Packages.Total),
		slog.Int("new", report.Packages.New),
		slog.Int("finished", report.Packages.Finished),
		slog.Int("errors", report.Packages.Errors),
		slog.Int("stale", report.Packages.Stale),
		slog.Int("removed", report.Packages.Removed),
		slog.Bool("cancelled", report.Packages.Cancelled),
	)
	return report
}

// Snapshot fetches and parses the indexes without importing anything.
func (s *Syncer) Snapshot(ctx context.Context) (*repo.Distribution, error) {
	dist, err := s.Config.NewDistribution()
	if err != nil {
		return nil, err
	}
	log := s.logger().With(slog.String("repo", s.Name))
	if err := s.fetchMetadata(ctx, log, dist, &MetadataReport{}); err != nil {
		return nil, err
	}
	return dist, nil
}

func (s *Syncer) fetchMetadata(ctx context.Context, log *slog.Logger, dist *repo.Distribution, report *MetadataReport) error {
	indexes, err := dist.Indexes()
	if err != nil {
		return fmt.Errorf("building index urls: %w", err)
	}
	report.QueryTotal = len(indexes)

	for _, idx := range indexes {
		n, err := s.fetchIndex(ctx, log, dist, idx)
		if err != nil {
			return err
		}
		report.QueryFinished++
		report.Packages += n
	}
	return nil
}

func (s *Syncer) fetchIndex(ctx context.Context, log *slog.Logger, dist *repo.Distribution, idx *repo.Resource) (int, error) {
	c, err := dist.Component(idx.Component)
	if err != nil {
		return 0, err
	}

	log.Debug("fetching index", slog.String("url", idx.URL))
	if err := s.Transport.Fetch(ctx, idx); err != nil {
		if !idx.Optional || !errors.Is(err, debian.ErrResourceUnavailable) {
			return 0, fmt.Errorf("fetching %s: %w", idx.URL, err)
		}
		log.Warn("optional index unavailable",
			slog.String("url", idx.URL),
			slog.String("architecture", idx.Architecture),
			slog.String("error", err.Error()),
		)
	}
	defer func() {
		if err := idx.Release(); err != nil {
			log.Warn("removing downloaded index", slog.String("path", idx.Path), slog.String("error", err.Error()))
		}
	}()

	n, err := c.UpdateFromIndex(idx, idx.Optional)
	if err != nil {
		return n, fmt.Errorf("parsing %s: %w", idx.URL, err)
	}
	log.Debug("parsed index", slog.String("url", idx.URL), slog.Int("packages", n))
	return n, nil
}

func (s *Syncer) importPackages(ctx context.Context, log *slog.Logger, dist *repo.Distribution, report *Report) {
	found := map[string]*foundPackage{}
	var foundKeys []string
	for _, c := range dist.Components() {
		for _, pkg := range c.Packages() {
			k := pkg.Key()
			f, ok := found[k]
			if !ok {
				f = &foundPackage{component: c}
				found[k] = f
				foundKeys = append(foundKeys, k)
			} else if f.component != c {
				// the first component listing a key owns it
				continue
			}
			f.pkgs = append(f.pkgs, pkg)
		}
	}

	existing, err := s.Units.List(ctx)
	if err != nil {
		report.packageFailed("", "", fmt.Errorf("listing stored units: %w", err))
		return
	}
	existingByKey := make(map[string]units.Unit, len(existing))
	existingKeys := make([]string, 0, len(existing))
	for _, u := range existing {
		k := u.Key.String()
		existingByKey[k] = u
		existingKeys = append(existingKeys, k)
	}

	added, stale := Diff(existingKeys, foundKeys)
	report.Packages.Total = len(foundKeys)
	report.Packages.New = len(added)
	report.Packages.Stale = len(stale)
	log.Info("reconciled packages",
		slog.Int("found", len(foundKeys)),
		slog.Int("existing", len(existingKeys)),
		slog.Int("new", len(added)),
		slog.Int("stale", len(stale)),
	)

	for i, k := range added {
		if s.cancelled(ctx) {
			report.Packages.Cancelled = true
			log.Info("sync cancelled", slog.Int("remaining", len(added)-i))
			break
		}

		f := found[k]
		downloaded, err := s.importPackage(ctx, log, f)
		report.Packages.Downloaded += downloaded
		if err != nil {
			log.Warn("importing package failed", slog.String("package", f.name()), slog.String("key", k), slog.String("error", err.Error()))
			report.packageFailed(f.name(), k, err)
			continue
		}
		report.Packages.Finished++
	}

	if !s.Config.RemoveMissing || report.Packages.Cancelled {
		return
	}
	referenced := referencedFiles(found, existingByKey, stale)
	for _, k := range stale {
		u := existingByKey[k]
		if err := s.removeUnit(ctx, u, referenced); err != nil {
			log.Warn("removing package failed", slog.String("key", k), slog.String("error", err.Error()))
			report.packageFailed(u.Key.Name, k, err)
			continue
		}
		log.Debug("removed package", slog.String("key", k))
		report.Packages.Removed++
	}
}

func (s *Syncer) cancelled(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	return s.Cancelled != nil && s.Cancelled()
}

// importPackage stores every file of a package and then saves its unit.
// It returns the number of files downloaded.
func (s *Syncer) importPackage(ctx context.Context, log *slog.Logger, f *foundPackage) (int, error) {
	var resources []*repo.Resource
	seen := map[string]struct{}{}
	for _, pkg := range f.pkgs {
		res, err := f.component.ArtifactResources(pkg)
		if err != nil {
			return 0, fmt.Errorf("building artifact urls: %w", err)
		}
		for _, r := range res {
			if _, ok := seen[r.RelativePath]; ok {
				continue
			}
			seen[r.RelativePath] = struct{}{}
			resources = append(resources, r)
		}
	}

	var downloaded int
	for _, res := range resources {
		ok, err := s.importArtifact(ctx, log, res)
		if ok {
			downloaded++
		}
		if err != nil {
			return downloaded, fmt.Errorf("%s: %w", res.RelativePath, err)
		}
	}

	if err := s.Units.Save(ctx, f.unit()); err != nil {
		return downloaded, fmt.Errorf("saving unit: %w", err)
	}
	return downloaded, nil
}

// importArtifact downloads a file unless it is already stored.
func (s *Syncer) importArtifact(ctx context.Context, log *slog.Logger, res *repo.Resource) (bool, error) {
	exists, err := s.Artifacts.Exists(res.RelativePath)
	if err != nil {
		return false, err
	}
	if exists {
		log.Debug("artifact already stored", slog.String("path", res.RelativePath))
		return false, nil
	}

	if err := s.Transport.Fetch(ctx, res); err != nil {
		return false, err
	}
	defer func() {
		if err := res.Release(); err != nil {
			log.Warn("removing download", slog.String("path", res.Path), slog.String("error", err.Error()))
		}
	}()

	if s.Config.VerifyChecksums && res.File != nil {
		var actual debian.File
		if res.Content != nil {
			actual, err = readChecksums(bytes.NewReader(res.Content))
		} else {
			actual, err = fileChecksums(res.Path)
		}
		if err != nil {
			return true, fmt.Errorf("hashing download: %w", err)
		}
		if err := verify(*res.File, actual); err != nil {
			return true, err
		}
	}

	if res.Content != nil {
		err = s.Artifacts.Write(res.RelativePath, bytes.NewReader(res.Content))
	} else {
		err = s.Artifacts.Put(res.RelativePath, res.Path)
	}
	if err != nil {
		return true, err
	}
	log.Debug("stored artifact", slog.String("path", res.RelativePath))
	return true, nil
}

// referencedFiles is the set of pool paths still owned by a listed package or a kept unit.
func referencedFiles(found map[string]*foundPackage, existing map[string]units.Unit, stale []string) map[string]struct{} {
	ret := map[string]struct{}{}
	for _, f := range found {
		for _, file := range f.unit().Files {
			ret[file.RelativePath] = struct{}{}
		}
	}

	removed := make(map[string]struct{}, len(stale))
	for _, k := range stale {
		removed[k] = struct{}{}
	}
	for k, u := range existing {
		if _, ok := removed[k]; ok {
			continue
		}
		for _, file := range u.Files {
			ret[file.RelativePath] = struct{}{}
		}
	}
	return ret
}

// removeUnit deletes a unit and the stored files no other package references.
func (s *Syncer) removeUnit(ctx context.Context, u units.Unit, referenced map[string]struct{}) error {
	for _, f := range u.Files {
		if _, ok := referenced[f.RelativePath]; ok {
			continue
		}
		if err := s.Artifacts.Remove(f.RelativePath); err != nil {
			return fmt.Errorf("removing %s: %w", f.RelativePath, err)
		}
	}
	return s.Units.Remove(ctx, u.Key)
}

func (s *Syncer) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
