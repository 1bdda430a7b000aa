package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/edualab/quizjudge-api/pkg/codecheck"
)

// DockerConfig groups container runner configuration values.
type DockerConfig struct {
	Host          string
	Image         string
	WorkspaceRoot string
	MemoryLimitMB int64
	CPUShares     int64
	// DefaultLimit applies to requests without an explicit time limit.
	DefaultLimit time.Duration
	Logger       zerolog.Logger
}

// DockerRunner executes Python programs inside throwaway containers with
// networking disabled. It satisfies the same Runner contract as the process
// backend and is selected via configuration where stronger isolation is
// wanted.
type DockerRunner struct {
	client *client.Client
	cfg    DockerConfig
	logger zerolog.Logger
	tracer trace.Tracer
}

// NewDockerRunner constructs a Docker-backed runner.
func NewDockerRunner(cfg DockerConfig) (*DockerRunner, error) {
	opts := []client.Opt{client.WithAPIVersionNegotiation()}
	if cfg.Host != "" {
		opts = append(opts, client.WithHost(cfg.Host))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}

	if cfg.Image == "" {
		cfg.Image = "python:3.11-alpine"
	}
	if cfg.WorkspaceRoot == "" {
		cfg.WorkspaceRoot = os.TempDir()
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = DefaultTimeLimit
	}

	return &DockerRunner{
		client: cli,
		cfg:    cfg,
		logger: cfg.Logger.With().Str("component", "docker_runner").Logger(),
		tracer: otel.Tracer("github.com/edualab/quizjudge-api/pkg/sandbox"),
	}, nil
}

// Run executes the source in a fresh container. Stdin is injected through a
// file in the bind-mounted workspace. On deadline the container is killed;
// the container and workspace are removed on every exit path.
func (r *DockerRunner) Run(parent context.Context, req Request) Result {
	ctx, span := r.tracer.Start(parent, "sandbox.docker.run", trace.WithAttributes(
		attribute.String("sandbox.language", "python"),
		attribute.String("docker.image", r.cfg.Image),
	))
	defer span.End()

	if err := codecheck.Validate(req.Source); err != nil {
		execFailures.WithLabelValues("python").Inc()
		return Result{Status: StatusError, ErrorMsg: err.Error()}
	}

	workspace, err := os.MkdirTemp(r.cfg.WorkspaceRoot, "run-")
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

	if err := os.WriteFile(filepath.Join(workspace, "main.py"), []byte(req.Source), 0o600); err != nil {
		execFailures.WithLabelValues("python").Inc()
		return Result{Status: StatusError, ErrorMsg: "execution failed: could not write source"}
	}
	if err := os.WriteFile(filepath.Join(workspace, "stdin.txt"), []byte(req.Stdin), 0o600); err != nil {
		execFailures.WithLabelValues("python").Inc()
		return Result{Status: StatusError, ErrorMsg: "execution failed: could not write input"}
	}

	limit := req.TimeLimit
	if limit <= 0 {
		limit = r.cfg.DefaultLimit
	}
	runCtx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	hostCfg := &container.HostConfig{
		NetworkMode: "none",
		Resources: container.Resources{
			Memory:    r.cfg.MemoryLimitMB * 1024 * 1024,
			CPUShares: r.cfg.CPUShares,
		},
		Mounts: []mount.Mount{{
			Type:   mount.TypeBind,
			Source: workspace,
			Target: "/workspace",
		}},
	}

	containerCfg := &container.Config{
		Image:        r.cfg.Image,
		Cmd:          []string{"sh", "-c", "python main.py < stdin.txt"},
		WorkingDir:   "/workspace",
		AttachStdout: true,
		AttachStderr: true,
	}

	start := time.Now()

	resp, err := r.client.ContainerCreate(runCtx, containerCfg, hostCfg, nil, nil, "")
	if err != nil {
		r.logger.Error().Err(err).Msg("container create failed")
		execFailures.WithLabelValues("python").Inc()
		return Result{Status: StatusError, ErrorMsg: "execution failed: could not create container"}
	}

	containerID := resp.ID
	defer func() {
		removeCtx, removeCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer removeCancel()
		if err := r.client.ContainerRemove(removeCtx, containerID, container.RemoveOptions{Force: true}); err != nil {
			r.logger.Warn().Err(err).Str("container_id", containerID).Msg("failed to remove container")
		}
	}()

	if err := r.client.ContainerStart(runCtx, containerID, container.StartOptions{}); err != nil {
		r.logger.Error().Err(err).Msg("container start failed")
		execFailures.WithLabelValues("python").Inc()
		return Result{Status: StatusError, ErrorMsg: "execution failed: could not start container"}
	}

	statusCh, errCh := r.client.ContainerWait(runCtx, containerID, container.WaitConditionNextExit)

	var exitCode int
	select {
	case <-runCtx.Done():
		execTimeouts.WithLabelValues("python").Inc()
		killCtx, killCancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer killCancel()
		if err := r.client.ContainerKill(killCtx, containerID, "KILL"); err != nil {
			r.logger.Warn().Err(err).Str("container_id", containerID).Msg("failed to kill timed out container")
		}
		return Result{
			Status:   StatusTimeout,
			ErrorMsg: fmt.Sprintf("execution timed out after %s", limit),
			Duration: limit,
		}
	case err := <-errCh:
		r.logger.Error().Err(err).Str("container_id", containerID).Msg("container wait failed")
		execFailures.WithLabelValues("python").Inc()
		return Result{Status: StatusError, ErrorMsg: "execution failed: container wait error"}
	case status := <-statusCh:
		exitCode = int(status.StatusCode)
	}

	elapsed := time.Since(start)
	execDuration.WithLabelValues("python").Observe(elapsed.Seconds())

	stdout, stderr := r.collectLogs(parent, containerID)

	if exitCode != 0 {
		execFailures.WithLabelValues("python").Inc()
		errorMsg := truncateOutput(stderr)
		if errorMsg == "" {
			errorMsg = fmt.Sprintf("process exited with code %d", exitCode)
		}
		return Result{
			Status:   StatusError,
			Output:   truncateOutput(stdout),
			ErrorMsg: errorMsg,
			Duration: elapsed,
		}
	}

	return Result{
		Status:   StatusSuccess,
		Output:   truncateOutput(stdout),
		Duration: elapsed,
	}
}

func (r *DockerRunner) collectLogs(ctx context.Context, containerID string) (string, string) {
	logReader, err := r.client.ContainerLogs(ctx, containerID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
	})
	if err != nil {
		r.logger.Warn().Err(err).Str("container_id", containerID).Msg("failed to fetch container logs")
		return "", ""
	}
	defer logReader.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, logReader); err != nil {
		r.logger.Warn().Err(err).Str("container_id", containerID).Msg("failed to read container logs")
		return "", ""
	}
	return stdout.String(), stderr.String()
}

// Close shuts down the runner's underlying Docker client.
func (r *DockerRunner) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}
