// Package sandbox runs untrusted, pre-validated code with stdin injection,
// a hard wall-clock deadline and output capping. Isolation is advisory
// (static screening plus forced termination), not an OS-level security
// boundary.
package sandbox

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Execution outcome tags.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusTimeout = "timeout"
)

// DefaultTimeLimit applies when a request carries no explicit limit.
const DefaultTimeLimit = 5 * time.Second

// OutputLimit caps captured stdout/stderr, in characters. This bounds both
// memory use and persisted row size regardless of program output volume.
const OutputLimit = 10000

const truncationMarker = "\n... (output truncated)"

var (
	execDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "quizjudge",
		Subsystem: "sandbox",
		Name:      "execution_duration_seconds",
		Help:      "Duration of sandboxed executions",
		Buckets:   prometheus.DefBuckets,
	}, []string{"language"})

	execTimeouts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quizjudge",
		Subsystem: "sandbox",
		Name:      "execution_timeouts_total",
		Help:      "Number of executions that hit the wall-clock deadline",
	}, []string{"language"})

	execFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quizjudge",
		Subsystem: "sandbox",
		Name:      "execution_failures_total",
		Help:      "Number of executions that ended in an error outcome",
	}, []string{"language"})
)

// Request describes one execution of a source program against one input.
type Request struct {
	Source    string
	Stdin     string
	TimeLimit time.Duration
}

// Result summarises a single execution. Output and ErrorMsg are capped at
// OutputLimit; Duration is parent-observed wall-clock time.
type Result struct {
	Status   string
	Output   string
	ErrorMsg string
	Duration time.Duration
}

// Runner executes source programs for one language. Implementations never
// return a Go error: every failure mode, including infrastructure faults,
// is folded into the Result so a misbehaving program cannot crash a judge
// request.
type Runner interface {
	Run(ctx context.Context, req Request) Result
}

// Registry maps language tags to runners. Adding a language is registering
// an implementation, not branching inside existing code.
type Registry struct {
	mu      sync.RWMutex
	runners map[string]Runner
}

// NewRegistry constructs an empty runner registry.
func NewRegistry() *Registry {
	return &Registry{runners: make(map[string]Runner)}
}

// Register installs a runner under the given language tag.
func (r *Registry) Register(language string, runner Runner) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runners[normalizeLanguage(language)] = runner
}

// Lookup returns the runner registered for the language tag, if any.
func (r *Registry) Lookup(language string) (Runner, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	runner, ok := r.runners[normalizeLanguage(language)]
	return runner, ok
}

// Languages lists the registered language tags in stable order.
func (r *Registry) Languages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	languages := make([]string, 0, len(r.runners))
	for language := range r.runners {
		languages = append(languages, language)
	}
	sort.Strings(languages)
	return languages
}

func normalizeLanguage(language string) string {
	return strings.ToLower(strings.TrimSpace(language))
}

func truncateOutput(s string) string {
	if len(s) <= OutputLimit {
		return s
	}
	return s[:OutputLimit] + truncationMarker
}
