package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/edualab/quizjudge-api/pkg/codecheck"
)

// PythonConfig groups process runner configuration values.
type PythonConfig struct {
	// Interpreter is the python binary to invoke (default "python3").
	Interpreter string
	// WorkspaceRoot is where per-run temporary directories are created.
	WorkspaceRoot string
	// DefaultLimit applies to requests without an explicit time limit.
	DefaultLimit time.Duration
	Logger       zerolog.Logger
}

// PythonRunner executes Python programs as child processes. Each run gets an
// exclusively-owned temporary directory and its own process group, so
// concurrent runs share no mutable state.
type PythonRunner struct {
	interpreter   string
	workspaceRoot string
	defaultLimit  time.Duration
	logger        zerolog.Logger
	tracer        trace.Tracer
}

// NewPythonRunner constructs a subprocess-backed Python runner.
func NewPythonRunner(cfg PythonConfig) *PythonRunner {
	if cfg.Interpreter == "" {
		cfg.Interpreter = "python3"
	}
	if cfg.WorkspaceRoot == "" {
		cfg.WorkspaceRoot = os.TempDir()
	}

	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = DefaultTimeLimit
	}

	return &PythonRunner{
		interpreter:   cfg.Interpreter,
		workspaceRoot: cfg.WorkspaceRoot,
		defaultLimit:  cfg.DefaultLimit,
		logger:        cfg.Logger.With().Str("component", "python_runner").Logger(),
		tracer:        otel.Tracer("github.com/edualab/quizjudge-api/pkg/sandbox"),
	}
}

// Run validates the source, writes it to a fresh temporary file and executes
// the interpreter against it with req.Stdin on standard input. The deadline
// is enforced by the parent: an overrunning child is killed together with
// its process group and reaped. The temporary directory is removed on every
// exit path; removal failures never mask the execution verdict.
func (r *PythonRunner) Run(parent context.Context, req Request) Result {
	ctx, span := r.tracer.Start(parent, "sandbox.python.run", trace.WithAttributes(
		attribute.String("sandbox.language", "python"),
	))
	defer span.End()

	if err := codecheck.Validate(req.Source); err != nil {
		execFailures.WithLabelValues("python").Inc()
		return Result{Status: StatusError, ErrorMsg: err.Error()}
	}

	workspace, err := os.MkdirTemp(r.workspaceRoot, "run-")
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to create workspace")
		execFailures.WithLabelValues("python").Inc()
		return Result{Status: StatusError, ErrorMsg: "execution failed: could not prepare workspace"}
	}
	defer func() {
		if removeErr := os.RemoveAll(workspace); removeErr != nil {
			r.logger.Warn().Err(removeErr).Str("workspace", workspace).Msg("failed to remove workspace")
		}
	}()

	sourcePath := filepath.Join(workspace, "main.py")
	if err := os.WriteFile(sourcePath, []byte(req.Source), 0o600); err != nil {
		r.logger.Error().Err(err).Msg("failed to write source file")
		execFailures.WithLabelValues("python").Inc()
		return Result{Status: StatusError, ErrorMsg: "execution failed: could not write source"}
	}

	limit := req.TimeLimit
	if limit <= 0 {
		limit = r.defaultLimit
	}
	runCtx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, r.interpreter, sourcePath)
	cmd.Stdin = strings.NewReader(req.Stdin)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		// Kill the whole process group so the child cannot outlive the
		// deadline by forking.
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = time.Second

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)
	execDuration.WithLabelValues("python").Observe(elapsed.Seconds())

	if runCtx.Err() == context.DeadlineExceeded {
		execTimeouts.WithLabelValues("python").Inc()
		return Result{
			Status:   StatusTimeout,
			ErrorMsg: fmt.Sprintf("execution timed out after %s", limit),
			Duration: limit,
		}
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			execFailures.WithLabelValues("python").Inc()
			errorMsg := truncateOutput(stderr.String())
			if errorMsg == "" {
				errorMsg = fmt.Sprintf("process exited with code %d", exitErr.ExitCode())
			}
			return Result{
				Status:   StatusError,
				Output:   truncateOutput(stdout.String()),
				ErrorMsg: errorMsg,
				Duration: elapsed,
			}
		}

		r.logger.Error().Err(runErr).Msg("interpreter spawn failed")
		execFailures.WithLabelValues("python").Inc()
		return Result{Status: StatusError, ErrorMsg: "execution failed: could not start interpreter"}
	}

	return Result{
		Status:   StatusSuccess,
		Output:   truncateOutput(stdout.String()),
		Duration: elapsed,
	}
}
