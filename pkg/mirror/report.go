package mirror

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
)

// Phase is the progress of a sync run.
//
//	not-started -> fetching-metadata -> metadata-failed
//	                                 -> metadata-parsed -> importing-packages -> done
//	                                                                         -> partial-failure
type Phase string

const (
	PhaseNotStarted        Phase = "not-started"
	PhaseFetchingMetadata  Phase = "fetching-metadata"
	PhaseMetadataFailed    Phase = "metadata-failed"
	PhaseMetadataParsed    Phase = "metadata-parsed"
	PhaseImportingPackages Phase = "importing-packages"
	PhaseDone              Phase = "done"
	PhasePartialFailure    Phase = "partial-failure"
)

// State is the outcome of one step of a run.
type State string

const (
	StateNotStarted State = "not-started"
	StateRunning    State = "running"
	StateSuccess    State = "success"
	StateFailed     State = "failed"
	// StatePartial is a step that ran to completion with some items failing.
	StatePartial   State = "completed-with-errors"
	StateSkipped   State = "skipped"
	StateCancelled State = "cancelled"
)

type MetadataReport struct {
	State         State         `json:"state"`
	QueryTotal    int           `json:"query_total"`
	QueryFinished int           `json:"query_finished"`
	Packages      int           `json:"packages"`
	Error         string        `json:"error,omitempty"`
	Duration      time.Duration `json:"duration"`
}

type PackageFailure struct {
	Package string `json:"package"`
	Key     string `json:"key"`
	Error   string `json:"error"`
}

type PackagesReport struct {
	State State `json:"state"`
	// Total is the number of distinct units listed upstream.
	Total int `json:"total"`
	// New is the number of units listed upstream but not stored.
	New      int `json:"new"`
	Finished int `json:"finished"`
	Errors   int `json:"errors"`
	// Stale is the number of stored units no longer listed upstream.
	Stale      int              `json:"stale"`
	Removed    int              `json:"removed"`
	Downloaded int              `json:"downloaded"`
	Cancelled  bool             `json:"cancelled"`
	Failures   []PackageFailure `json:"failures,omitempty"`
	Duration   time.Duration    `json:"duration"`
}

// Report summarizes a sync run. Metadata and package outcomes are reported separately,
// so a failed run can be told apart from a partially mirrored one.
type Report struct {
	RunID      string         `json:"run_id"`
	Repo       string         `json:"repo"`
	Phase      Phase          `json:"phase"`
	Error      string         `json:"error,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Metadata   MetadataReport `json:"metadata"`
	Packages   PackagesReport `json:"packages"`

	errs []error
}

func newReport(runID, repoName string) *Report {
	return &Report{
		RunID:     runID,
		Repo:      repoName,
		Phase:     PhaseNotStarted,
		StartedAt: time.Now(),
		Metadata:  MetadataReport{State: StateNotStarted},
		Packages:  PackagesReport{State: StateNotStarted},
	}
}

// Failed reports whether the run aborted before importing packages.
func (r *Report) Failed() bool {
	return r.Phase == PhaseMetadataFailed || (r.Phase == PhaseNotStarted && r.Error != "")
}

// Err aggregates every error of the run, or returns nil.
func (r *Report) Err() error {
	var result *multierror.Error
	for _, err := range r.errs {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

func (r *Report) abort(err error) {
	r.Error = err.Error()
	r.errs = append(r.errs, err)
	r.Metadata.State = StateSkipped
	r.Packages.State = StateSkipped
	r.FinishedAt = time.Now()
}

func (r *Report) metadataFailed(err error) {
	r.Phase = PhaseMetadataFailed
	r.Error = err.Error()
	r.errs = append(r.errs, err)
	r.Metadata.State = StateFailed
	r.Metadata.Error = err.Error()
	r.Packages.State = StateSkipped
	r.FinishedAt = time.Now()
}

func (r *Report) packageFailed(pkg string, key string, err error) {
	r.Packages.Errors++
	r.Packages.Failures = append(r.Packages.Failures, PackageFailure{Package: pkg, Key: key, Error: err.Error()})
	r.errs = append(r.errs, fmt.Errorf("package %s: %w", key, err))
}

func (r *Report) finish() {
	switch {
	case r.Packages.Errors > 0:
		r.Phase = PhasePartialFailure
		r.Packages.State = StatePartial
	default:
		r.Phase = PhaseDone
		r.Packages.State = StateSuccess
	}
	if r.Packages.Cancelled {
		r.Packages.State = StateCancelled
	}
	r.FinishedAt = time.Now()
}

// FailuresFor returns the failures recorded for a package name.
func (r *Report) FailuresFor(name string) []PackageFailure {
	var ret []PackageFailure
	for _, f := range r.Packages.Failures {
		if f.Package == name {
			ret = append(ret, f)
		}
	}
	return ret
}
