// Package cloud implements the ops-side agent: it deploys service containers
// through the Docker SDK and watches their health.
package cloud

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"go.uber.org/zap"

	"github.com/karl-ai/corehub/internal/common/config"
	"github.com/karl-ai/corehub/internal/common/logger"
)

// Labels stamped on every container this agent manages.
const (
	labelManaged = "karl.managed"
	labelService = "karl.service"
)

// Deployment describes one service container to run.
type Deployment struct {
	Service  string
	Image    string
	Cmd      []string
	Env      map[string]string
	Network  string
	MemoryMB int64
	CPUCores float64
}

// ServiceStatus is a snapshot of a deployed container.
type ServiceStatus struct {
	ContainerID string    `json:"container_id"`
	Service     string    `json:"service"`
	Image       string    `json:"image"`
	State       string    `json:"state"`
	Health      string    `json:"health,omitempty"`
	StartedAt   time.Time `json:"started_at,omitempty"`
	ExitCode    int       `json:"exit_code"`
}

// Agent deploys and inspects service containers.
type Agent struct {
	cli    *client.Client
	http   *http.Client
	cfg    config.DockerConfig
	logger *logger.Logger
}

// NewAgent creates a cloud agent against the configured Docker daemon.
func NewAgent(cfg config.DockerConfig, log *logger.Logger) (*Agent, error) {
	opts := []client.Opt{client.WithAPIVersionNegotiation()}
	if cfg.Host != "" {
		opts = append(opts, client.WithHost(cfg.Host))
	}
	if cfg.APIVersion != "" {
		opts = append(opts, client.WithVersion(cfg.APIVersion))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}

	log.Info("Docker client created", zap.String("host", cfg.Host))
	return &Agent{
		cli:    cli,
		http:   &http.Client{Timeout: 10 * time.Second},
		cfg:    cfg,
		logger: log,
	}, nil
}

// Close releases the Docker client.
func (a *Agent) Close() error {
	return a.cli.Close()
}

// Ping verifies the Docker daemon is reachable.
func (a *Agent) Ping(ctx context.Context) error {
	if _, err := a.cli.Ping(ctx); err != nil {
		return fmt.Errorf("docker ping failed: %w", err)
	}
	return nil
}

// Deploy pulls the image, creates the service container and starts it. The
// created container on a failed start is removed.
func (a *Agent) Deploy(ctx context.Context, d Deployment) (string, error) {
	a.logger.Info("Deploying service",
		zap.String("service", d.Service),
		zap.String("image", d.Image))

	if err := a.pullImage(ctx, d.Image); err != nil {
		return "", err
	}

	env := make([]string, 0, len(d.Env))
	for k, v := range d.Env {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}

	network := d.Network
	if network == "" {
		network = a.cfg.DefaultNetwork
	}

	containerCfg := &container.Config{
		Image: d.Image,
		Cmd:   d.Cmd,
		Env:   env,
		Labels: map[string]string{
			labelManaged: "true",
			labelService: d.Service,
		},
	}
	hostCfg := &container.HostConfig{
		NetworkMode: container.NetworkMode(network),
		Resources: container.Resources{
			Memory:   d.MemoryMB * 1024 * 1024,
			CPUQuota: int64(d.CPUCores * 100000),
		},
	}

	name := fmt.Sprintf("karl-%s", d.Service)
	resp, err := a.cli.ContainerCreate(ctx, containerCfg, hostCfg, nil, nil, name)
	if err != nil {
		return "", fmt.Errorf("create container for %s: %w", d.Service, err)
	}

	if err := a.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		_ = a.cli.ContainerRemove(ctx, resp.ID, container.RemoveOptions{Force: true})
		return "", fmt.Errorf("start container for %s: %w", d.Service, err)
	}

	a.logger.Info("Service deployed",
		zap.String("service", d.Service),
		zap.String("container_id", resp.ID))
	return resp.ID, nil
}

func (a *Agent) pullImage(ctx context.Context, imageName string) error {
	reader, err := a.cli.ImagePull(ctx, imageName, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("pull image %s: %w", imageName, err)
	}
	defer reader.Close()

	// Drain the progress stream so the pull completes.
	if _, err := io.Copy(io.Discard, reader); err != nil {
		return fmt.Errorf("read image pull output: %w", err)
	}
	return nil
}

// Status inspects one deployed container.
func (a *Agent) Status(ctx context.Context, containerID string) (*ServiceStatus, error) {
	inspect, err := a.cli.ContainerInspect(ctx, containerID)
	if err != nil {
		return nil, fmt.Errorf("inspect container %s: %w", containerID, err)
	}

	status := &ServiceStatus{
		ContainerID: inspect.ID,
		Service:     inspect.Config.Labels[labelService],
		Image:       inspect.Config.Image,
		State:       inspect.State.Status,
		ExitCode:    inspect.State.ExitCode,
	}
	if inspect.State.StartedAt != "" {
		if startedAt, err := time.Parse(time.RFC3339Nano, inspect.State.StartedAt); err == nil {
			status.StartedAt = startedAt
		}
	}
	if inspect.State.Health != nil {
		status.Health = inspect.State.Health.Status
	}
	return status, nil
}

// List returns every container this agent manages, running or not.
func (a *Agent) List(ctx context.Context) ([]ServiceStatus, error) {
	filterArgs := filters.NewArgs()
	filterArgs.Add("label", labelManaged+"=true")

	containers, err := a.cli.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filterArgs,
	})
	if err != nil {
		return nil, fmt.Errorf("list containers: %w", err)
	}

	out := make([]ServiceStatus, 0, len(containers))
	for _, ctr := range containers {
		out = append(out, ServiceStatus{
			ContainerID: ctr.ID,
			Service:     ctr.Labels[labelService],
			Image:       ctr.Image,
			State:       ctr.State,
		})
	}
	return out, nil
}

// Stop stops a deployed container, waiting up to timeout for it to exit.
func (a *Agent) Stop(ctx context.Context, containerID string, timeout time.Duration) error {
	seconds := int(timeout.Seconds())
	if err := a.cli.ContainerStop(ctx, containerID, container.StopOptions{Timeout: &seconds}); err != nil {
		return fmt.Errorf("stop container %s: %w", containerID, err)
	}
	a.logger.Info("Service stopped", zap.String("container_id", containerID))
	return nil
}

// Remove deletes a deployed container and its volumes.
func (a *Agent) Remove(ctx context.Context, containerID string, force bool) error {
	err := a.cli.ContainerRemove(ctx, containerID, container.RemoveOptions{
		Force:         force,
		RemoveVolumes: true,
	})
	if err != nil {
		return fmt.Errorf("remove container %s: %w", containerID, err)
	}
	return nil
}

// ProbeHealth issues an HTTP GET against a deployed service's health URL and
// reports whether it answered with a 2xx status.
func (a *Agent) ProbeHealth(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return fmt.Errorf("health probe %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("health probe %s: status %d: %s", url, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
