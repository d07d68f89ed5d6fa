package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hashicorp/go-multierror"
	"github.com/thepwagner/debmirror/pkg/cache"
	"github.com/thepwagner/debmirror/pkg/debian"
	"github.com/thepwagner/debmirror/pkg/mirror"
	"github.com/thepwagner/debmirror/pkg/units"
)

// Rendered indexes are cached per kind. Configure their TTLs under cache.ttls.
const (
	PackagesNamespace = cache.Namespace("packages")
	SourcesNamespace  = cache.Namespace("sources")
)

type Handler struct {
	mux   *chi.Mux
	cache cache.Storage

	repos map[string]*mirrorRepo
}

// mirrorRepo serializes runs of one syncer and keeps the latest report.
type mirrorRepo struct {
	mu     sync.Mutex
	syncer *mirror.Syncer
	last   *mirror.Report
}

func NewHandler(cfg *Config) (*Handler, error) {
	h := &Handler{
		mux:   chi.NewRouter(),
		cache: cache.StorageFromConfig(cfg.Cache),
		repos: map[string]*mirrorRepo{},
	}
	h.mux.Use(middleware.RequestID)
	h.mux.Use(middleware.RealIP)
	h.mux.Use(Logger)

	h.mux.Get("/{repo}/units", h.Units)
	h.mux.Get("/{repo}/report", h.Report)
	h.mux.Post("/{repo}/sync", h.Sync)

	h.mux.Get("/{repo}/dists/{dist}/{component}/binary-{architecture}/Packages", h.Packages)
	h.mux.Get("/{repo}/dists/{dist}/{component}/binary-{architecture}/Packages{compression:(\\.[gx]z|)}", h.Packages)
	h.mux.Get("/{repo}/dists/{dist}/{component}/source/Sources", h.Sources)
	h.mux.Get("/{repo}/dists/{dist}/{component}/source/Sources{compression:(\\.[gx]z|)}", h.Sources)
	h.mux.Get("/{repo}/pool/*", h.Pool)

	for _, name := range cfg.RepoNames() {
		s, err := BuildSyncer(name, cfg)
		if err != nil {
			_ = h.Close()
			return nil, fmt.Errorf("error building repo %q: %w", name, err)
		}
		h.repos[name] = &mirrorRepo{syncer: s}
	}

	return h, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) Close() error {
	var errs *multierror.Error
	for _, repo := range h.repos {
		if err := repo.syncer.Close(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs.ErrorOrNil()
}

func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	repoName := chi.URLParam(r, "repo")
	repo, ok := h.repos[repoName]
	if !ok {
		http.NotFound(w, r)
		return
	}

	repo.mu.Lock()
	report := repo.syncer.Run(r.Context())
	repo.last = report
	repo.mu.Unlock()
	h.cache.Purge(PackagesNamespace)
	h.cache.Purge(SourcesNamespace)

	status := http.StatusOK
	if report.Failed() {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, report)
}

func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	repo, ok := h.repos[chi.URLParam(r, "repo")]
	if !ok {
		http.NotFound(w, r)
		return
	}

	repo.mu.Lock()
	last := repo.last
	repo.mu.Unlock()
	if last == nil {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, last)
}

func (h *Handler) Units(w http.ResponseWriter, r *http.Request) {
	repo, ok := h.repos[chi.URLParam(r, "repo")]
	if !ok {
		http.NotFound(w, r)
		return
	}

	list, err := repo.syncer.Units.List(r.Context())
	if err != nil {
		slog.Error("units.List", slog.String("error", err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) Packages(w http.ResponseWriter, r *http.Request) {
	h.index(w, r, debian.KindBinary, chi.URLParam(r, "architecture"))
}

func (h *Handler) Sources(w http.ResponseWriter, r *http.Request) {
	h.index(w, r, debian.KindSource, "")
}

func (h *Handler) index(w http.ResponseWriter, r *http.Request, kind debian.Kind, arch string) {
	repoName := chi.URLParam(r, "repo")
	dist := chi.URLParam(r, "dist")
	component := chi.URLParam(r, "component")
	compression := debian.ParseCompression(chi.URLParam(r, "compression"))
	slog.Info("handling index",
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("repo", repoName),
		slog.String("dist", dist),
		slog.String("component", component),
		slog.String("kind", string(kind)),
		slog.String("arch", arch),
		slog.Any("compression", compression),
	)

	repo, ok := h.repos[repoName]
	if !ok || repo.syncer.Config.Distribution != dist {
		http.NotFound(w, r)
		return
	}

	ns := PackagesNamespace
	if kind == debian.KindSource {
		ns = SourcesNamespace
	}
	key := ns.Key(repoName, component, arch, compression.String())
	if b, ok := h.cache.Get(r.Context(), key); ok {
		_, _ = w.Write(b)
		return
	}

	list, err := repo.syncer.Units.List(r.Context())
	if err != nil {
		slog.Error("units.List", slog.String("error", err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	b, err := renderIndex(list, component, kind, arch)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if b, err = compression.Compress(b); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.cache.Add(r.Context(), key, b)

	_, _ = w.Write(b)
}

// renderIndex writes the stored units of a component as an index.
// Binary units match the requested architecture or "all".
func renderIndex(list []units.Unit, component string, kind debian.Kind, arch string) ([]byte, error) {
	var graphs []debian.Paragraph
	for _, u := range list {
		if u.Component != component || u.Kind != kind {
			continue
		}
		if kind == debian.KindBinary {
			if a := u.Metadata["architecture"]; a != arch && a != "all" {
				continue
			}
		}
		graphs = append(graphs, u.Paragraph())
	}

	var buf bytes.Buffer
	if err := debian.WriteParagraphs(&buf, graphs...); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (h *Handler) Pool(w http.ResponseWriter, r *http.Request) {
	repoName := chi.URLParam(r, "repo")
	repo, ok := h.repos[repoName]
	if !ok {
		http.NotFound(w, r)
		return
	}

	rel := path.Join("pool", chi.URLParam(r, "*"))
	slog.Info("handling Pool",
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("repo", repoName),
		slog.String("path", rel),
	)

	f, err := repo.syncer.Artifacts.Open(rel)
	if errors.Is(err, os.ErrNotExist) {
		http.NotFound(w, r)
		return
	} else if err != nil {
		slog.Error("artifacts.Open", slog.String("error", err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	http.ServeContent(w, r, path.Base(rel), fi.ModTime(), f)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding response", slog.String("error", err.Error()))
	}
}
