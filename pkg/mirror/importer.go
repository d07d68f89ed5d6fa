package mirror

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strconv"

	"github.com/thepwagner/debmirror/pkg/debian"
	"github.com/thepwagner/debmirror/pkg/units"
)

// ImportDeb stores a local .deb in a component, as if it had been mirrored.
func (s *Syncer) ImportDeb(ctx context.Context, fn, component string) (units.Unit, error) {
	dist, err := s.Config.NewDistribution()
	if err != nil {
		return units.Unit{}, err
	}
	c, err := dist.Component(component)
	if err != nil {
		return units.Unit{}, err
	}

	graph, err := debian.ParagraphFromDebFile(fn)
	if err != nil {
		return units.Unit{}, fmt.Errorf("reading %s: %w", fn, err)
	}
	sums, err := fileChecksums(fn)
	if err != nil {
		return units.Unit{}, fmt.Errorf("hashing %s: %w", fn, err)
	}
	graph["size"] = strconv.FormatInt(sums.Size, 10)
	graph["md5sum"] = sums.MD5Sum
	graph["sha1"] = sums.SHA1
	graph["sha256"] = sums.SHA256
	delete(graph, "filename")

	pkg, err := debian.NewPackage(graph, debian.KindBinary)
	if err != nil {
		return units.Unit{}, err
	}
	graph["filename"] = pkg.RelativePath(c.Name, pkg.FilenameShort())

	unit := units.FromPackage(c.Name, pkg)
	for _, f := range unit.Files {
		if err := s.Artifacts.Put(f.RelativePath, fn); err != nil {
			return units.Unit{}, fmt.Errorf("storing %s: %w", f.RelativePath, err)
		}
	}
	if err := s.Units.Save(ctx, unit); err != nil {
		return units.Unit{}, fmt.Errorf("saving unit: %w", err)
	}

	s.logger().Info("imported package",
		slog.String("repo", s.Name),
		slog.String("component", c.Name),
		slog.String("key", unit.Key.String()),
		slog.String("path", graph["filename"]),
	)
	return unit, nil
}

// ImportDir imports every .deb below dir into a component.
func (s *Syncer) ImportDir(ctx context.Context, dir, component string) ([]units.Unit, error) {
	var ret []units.Unit
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(d.Name()) != ".deb" {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		u, err := s.ImportDeb(ctx, path, component)
		if err != nil {
			return err
		}
		ret = append(ret, u)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ret, nil
}
