package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/api/types/volume"
	"github.com/docker/docker/client"
	"github.com/sirupsen/logrus"

	"lift/internal/compose"
)

// Engine reconciles the local Docker engine against a resolved project.
type Engine struct {
	api APIClient
}

// New connects to the Docker daemon configured by the environment.
func New() (*Engine, error) {
	api, err := newDockerClient()
	if err != nil {
		return nil, err
	}
	return &Engine{api: api}, nil
}

// NewWithClient wraps an existing API client. Used by tests.
func NewWithClient(api APIClient) *Engine {
	return &Engine{api: api}
}

// UpOptions control an Up run.
type UpOptions struct {
	// Build forces a rebuild of services with a build context.
	Build bool
	// Pull forces a pull of services with an image.
	Pull bool
	// RemoveOrphans removes project containers whose service is gone from
	// the manifest instead of warning about them.
	RemoveOrphans bool
}

// DownOptions control a Down run.
type DownOptions struct {
	// Volumes removes the project's named volumes. Without it they survive
	// teardown and are destroyed only by explicit operator action.
	Volumes       bool
	RemoveOrphans bool
}

// Up reconciles the engine to match the project: network, volumes, images,
// then one container per service in dependency-first order. Re-applying an
// unchanged project creates nothing.
func (e *Engine) Up(ctx context.Context, p *compose.Project, opts UpOptions) error {
	if _, err := e.api.Ping(ctx); err != nil {
		return fmt.Errorf("cannot reach the docker daemon: %w", err)
	}

	order, err := compose.StartOrder(p)
	if err != nil {
		return err
	}

	if err := e.ensureNetworks(ctx, p); err != nil {
		return err
	}
	if err := e.ensureVolumes(ctx, p); err != nil {
		return err
	}
	if err := e.ensureImages(ctx, p, order, opts); err != nil {
		return err
	}

	for _, name := range order {
		if err := e.applyService(ctx, p, name); err != nil {
			return err
		}
	}

	return e.handleOrphans(ctx, p, opts.RemoveOrphans)
}

// Down stops and removes the project's containers in reverse dependency
// order, then the project networks. Named volumes are kept unless asked for.
func (e *Engine) Down(ctx context.Context, p *compose.Project, opts DownOptions) error {
	if _, err := e.api.Ping(ctx); err != nil {
		return fmt.Errorf("cannot reach the docker daemon: %w", err)
	}

	order, err := compose.StopOrder(p)
	if err != nil {
		return err
	}

	existing, err := e.projectContainers(ctx, p.Name)
	if err != nil {
		return err
	}
	byService := map[string][]container.Summary{}
	for _, c := range existing {
		svc := c.Labels[LabelService]
		byService[svc] = append(byService[svc], c)
	}

	for _, name := range order {
		for _, c := range byService[name] {
			if err := e.stopAndRemove(ctx, p, name, c.ID); err != nil {
				return err
			}
		}
		delete(byService, name)
	}

	// Whatever is left is orphaned; down always removes it so the project
	// network can go away.
	var leftovers []string
	for svc := range byService {
		leftovers = append(leftovers, svc)
	}
	sort.Strings(leftovers)
	for _, svc := range leftovers {
		for _, c := range byService[svc] {
			logrus.Infof("Removing orphan container %s", containerDisplayName(c))
			if err := e.stopAndRemove(ctx, p, svc, c.ID); err != nil {
				return err
			}
		}
	}

	if err := e.removeNetworks(ctx, p); err != nil {
		return err
	}
	if opts.Volumes {
		if err := e.removeVolumes(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// ensureNetworks creates the default project network and any declared
// non-external networks that do not exist yet. External networks must already
// exist.
func (e *Engine) ensureNetworks(ctx context.Context, p *compose.Project) error {
	wanted := map[string]*compose.NetworkConfig{
		p.DefaultNetworkName(): {},
	}
	for key, cfg := range p.Networks {
		wanted[p.NetworkObjectName(key)] = cfg
	}

	names := make([]string, 0, len(wanted))
	for name := range wanted {
		names = append(names, name)
	}
	sort.Strings(names)

	existing, err := e.api.NetworkList(ctx, network.ListOptions{})
	if err != nil {
		return fmt.Errorf("failed to list networks: %w", err)
	}
	present := map[string]bool{}
	for _, n := range existing {
		present[n.Name] = true
	}

	for _, name := range names {
		cfg := wanted[name]
		if present[name] {
			logrus.Debugf("Network %s already exists", name)
			continue
		}
		if cfg.External {
			return fmt.Errorf("external network %q not found", name)
		}
		labels := map[string]string{
			LabelManaged: "true",
			LabelProject: p.Name,
			LabelNetwork: name,
		}
		for k, v := range cfg.Labels {
			labels[k] = v
		}
		logrus.Infof("Creating network %s", name)
		if _, err := e.api.NetworkCreate(ctx, name, network.CreateOptions{
			Driver: cfg.Driver,
			Labels: labels,
		}); err != nil {
			return fmt.Errorf("failed to create network %s: %w", name, err)
		}
	}
	return nil
}

// ensureVolumes inspects each declared volume and creates it only when
// absent, so volumes are created on first use and survive re-applies.
func (e *Engine) ensureVolumes(ctx context.Context, p *compose.Project) error {
	keys := make([]string, 0, len(p.Volumes))
	for key := range p.Volumes {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		cfg := p.Volumes[key]
		name := p.VolumeObjectName(key)
		if _, err := e.api.VolumeInspect(ctx, name); err == nil {
			logrus.Debugf("Volume %s already exists", name)
			continue
		} else if !client.IsErrNotFound(err) {
			return fmt.Errorf("failed to inspect volume %s: %w", name, err)
		}
		if cfg.External {
			return fmt.Errorf("external volume %q not found", name)
		}
		labels := map[string]string{
			LabelManaged: "true",
			LabelProject: p.Name,
			LabelVolume:  key,
		}
		for k, v := range cfg.Labels {
			labels[k] = v
		}
		logrus.Infof("Creating volume %s", name)
		if _, err := e.api.VolumeCreate(ctx, volume.CreateOptions{
			Name:       name,
			Driver:     cfg.Driver,
			DriverOpts: cfg.DriverOpts,
			Labels:     labels,
		}); err != nil {
			return fmt.Errorf("failed to create volume %s: %w", name, err)
		}
	}
	return nil
}

// applyService brings one service's container to its desired state.
func (e *Engine) applyService(ctx context.Context, p *compose.Project, name string) error {
	cfg, hostCfg, netCfg, err := containerSpec(p, name)
	if err != nil {
		return err
	}
	hash, err := specHash(cfg, hostCfg, netCfg)
	if err != nil {
		return err
	}
	cfg.Labels[LabelConfigHash] = hash

	existing, err := e.findServiceContainer(ctx, p.Name, name)
	if err != nil {
		return err
	}

	switch {
	case existing == nil:
		return e.createAndStart(ctx, p, name, cfg, hostCfg, netCfg)
	case existing.Labels[LabelConfigHash] == hash && existing.State == "running":
		logrus.Infof("Service %s is up to date", name)
		return nil
	case existing.Labels[LabelConfigHash] == hash:
		logrus.Infof("Starting service %s", name)
		if err := e.api.ContainerStart(ctx, existing.ID, container.StartOptions{}); err != nil {
			return fmt.Errorf("failed to start container for service %s: %w", name, err)
		}
		return nil
	default:
		logrus.Infof("Recreating service %s", name)
		if err := e.stopAndRemove(ctx, p, name, existing.ID); err != nil {
			return err
		}
		return e.createAndStart(ctx, p, name, cfg, hostCfg, netCfg)
	}
}

func (e *Engine) createAndStart(ctx context.Context, p *compose.Project, name string, cfg *container.Config, hostCfg *container.HostConfig, netCfg *network.NetworkingConfig) error {
	cname := containerName(p, name)
	logrus.Infof("Creating container %s", cname)
	resp, err := e.api.ContainerCreate(ctx, cfg, hostCfg, netCfg, nil, cname)
	if err != nil {
		return fmt.Errorf("failed to create container for service %s: %w", name, err)
	}
	if err := e.api.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		// Best-effort removal so a retry starts from a clean slate.
		if rmErr := e.api.ContainerRemove(context.Background(), resp.ID, container.RemoveOptions{Force: true}); rmErr != nil {
			logrus.Warnf("Failed to remove container %s after failed start: %v", cname, rmErr)
		}
		return fmt.Errorf("failed to start container for service %s: %w", name, err)
	}
	logrus.Infof("Started service %s", name)
	return nil
}

// stopAndRemove stops a container honoring the service's stop_grace_period
// and removes it. Already-gone containers are not an error.
func (e *Engine) stopAndRemove(ctx context.Context, p *compose.Project, name, containerID string) error {
	stopOpts := container.StopOptions{}
	if svc, ok := p.Services[name]; ok && svc.StopGracePeriod != "" {
		if d, err := time.ParseDuration(svc.StopGracePeriod); err == nil {
			secs := int(d.Seconds())
			stopOpts.Timeout = &secs
		}
	}
	if err := e.api.ContainerStop(ctx, containerID, stopOpts); err != nil && !client.IsErrNotFound(err) {
		return fmt.Errorf("failed to stop container %s: %w", containerID, err)
	}
	if err := e.api.ContainerRemove(ctx, containerID, container.RemoveOptions{}); err != nil && !client.IsErrNotFound(err) {
		return fmt.Errorf("failed to remove container %s: %w", containerID, err)
	}
	return nil
}

// handleOrphans deals with project-labeled containers whose service no
// longer exists in the manifest.
func (e *Engine) handleOrphans(ctx context.Context, p *compose.Project, remove bool) error {
	existing, err := e.projectContainers(ctx, p.Name)
	if err != nil {
		return err
	}
	for _, c := range existing {
		svc := c.Labels[LabelService]
		if _, ok := p.Services[svc]; ok {
			continue
		}
		if !remove {
			logrus.Warnf("Found orphan container %s for removed service %q (use --remove-orphans to clean up)", containerDisplayName(c), svc)
			continue
		}
		logrus.Infof("Removing orphan container %s", containerDisplayName(c))
		if err := e.stopAndRemove(ctx, p, svc, c.ID); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) removeNetworks(ctx context.Context, p *compose.Project) error {
	existing, err := e.api.NetworkList(ctx, network.ListOptions{
		Filters: filters.NewArgs(filters.Arg("label", LabelProject+"="+p.Name)),
	})
	if err != nil {
		return fmt.Errorf("failed to list networks: %w", err)
	}
	sort.Slice(existing, func(i, j int) bool { return existing[i].Name < existing[j].Name })
	for _, n := range existing {
		logrus.Infof("Removing network %s", n.Name)
		if err := e.api.NetworkRemove(ctx, n.ID); err != nil && !client.IsErrNotFound(err) {
			return fmt.Errorf("failed to remove network %s: %w", n.Name, err)
		}
	}
	return nil
}

func (e *Engine) removeVolumes(ctx context.Context, p *compose.Project) error {
	keys := make([]string, 0, len(p.Volumes))
	for key := range p.Volumes {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if p.Volumes[key].External {
			continue
		}
		name := p.VolumeObjectName(key)
		logrus.Infof("Removing volume %s", name)
		if err := e.api.VolumeRemove(ctx, name, false); err != nil && !client.IsErrNotFound(err) {
			return fmt.Errorf("failed to remove volume %s: %w", name, err)
		}
	}
	return nil
}

// projectContainers lists every container labeled with the project,
// regardless of state.
func (e *Engine) projectContainers(ctx context.Context, project string) ([]container.Summary, error) {
	list, err := e.api.ContainerList(ctx, container.ListOptions{
		All: true,
		Filters: filters.NewArgs(
			filters.Arg("label", LabelManaged+"=true"),
			filters.Arg("label", LabelProject+"="+project),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}
	return list, nil
}

func (e *Engine) findServiceContainer(ctx context.Context, project, service string) (*container.Summary, error) {
	list, err := e.api.ContainerList(ctx, container.ListOptions{
		All: true,
		Filters: filters.NewArgs(
			filters.Arg("label", LabelProject+"="+project),
			filters.Arg("label", LabelService+"="+service),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list containers for service %s: %w", service, err)
	}
	if len(list) == 0 {
		return nil, nil
	}
	return &list[0], nil
}

func containerDisplayName(c container.Summary) string {
	if len(c.Names) > 0 {
		name := c.Names[0]
		if len(name) > 0 && name[0] == '/' {
			name = name[1:]
		}
		return name
	}
	if len(c.ID) >= 12 {
		return c.ID[:12]
	}
	return c.ID
}
