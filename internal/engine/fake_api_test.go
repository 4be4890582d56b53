package engine

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/api/types/volume"
	"github.com/docker/docker/errdefs"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// fakeAPI is an in-memory Docker engine for tests. It counts mutating calls
// so idempotency can be asserted.
type fakeAPI struct {
	mu sync.Mutex

	containers map[string]*fakeContainer
	networks   map[string]string // name -> id
	volumes    map[string]volume.Volume
	images     map[string]bool

	nextID int

	containerCreates int
	containerStarts  int
	containerRemoves int
	networkCreates   int
	volumeCreates    int
	pulls            int
	builds           int

	// createdServices records the service label of every created
	// container, in call order.
	createdServices []string

	logStreams map[string][]byte
}

type fakeContainer struct {
	id      string
	name    string
	image   string
	labels  map[string]string
	running bool
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		containers: map[string]*fakeContainer{},
		networks:   map[string]string{},
		volumes:    map[string]volume.Volume{},
		images:     map[string]bool{},
		logStreams: map[string][]byte{},
	}
}

func (f *fakeAPI) Ping(ctx context.Context) (types.Ping, error) {
	return types.Ping{}, nil
}

func (f *fakeAPI) ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.containerCreates++
	f.nextID++
	id := fmt.Sprintf("ctr%03d", f.nextID)
	labels := map[string]string{}
	for k, v := range config.Labels {
		labels[k] = v
	}
	f.containers[id] = &fakeContainer{
		id:     id,
		name:   containerName,
		image:  config.Image,
		labels: labels,
	}
	f.createdServices = append(f.createdServices, labels[LabelService])
	return container.CreateResponse{ID: id}, nil
}

func (f *fakeAPI) ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.containers[containerID]
	if !ok {
		return errdefs.NotFound(fmt.Errorf("no such container: %s", containerID))
	}
	f.containerStarts++
	c.running = true
	return nil
}

func (f *fakeAPI) ContainerStop(ctx context.Context, containerID string, options container.StopOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.containers[containerID]
	if !ok {
		return errdefs.NotFound(fmt.Errorf("no such container: %s", containerID))
	}
	c.running = false
	return nil
}

func (f *fakeAPI) ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.containers[containerID]; !ok {
		return errdefs.NotFound(fmt.Errorf("no such container: %s", containerID))
	}
	f.containerRemoves++
	delete(f.containers, containerID)
	return nil
}

func (f *fakeAPI) ContainerList(ctx context.Context, options container.ListOptions) ([]container.Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []container.Summary
	for _, c := range f.containers {
		if !matchLabels(options.Filters, c.labels) {
			continue
		}
		labels := map[string]string{}
		for k, v := range c.labels {
			labels[k] = v
		}
		summary := container.Summary{
			ID:     c.id,
			Names:  []string{"/" + c.name},
			Image:  c.image,
			Labels: labels,
		}
		if c.running {
			summary.State = "running"
			summary.Status = "Up 5 seconds"
		} else {
			summary.State = "exited"
			summary.Status = "Exited (0) 5 seconds ago"
		}
		out = append(out, summary)
	}
	return out, nil
}

func (f *fakeAPI) ContainerInspect(ctx context.Context, containerID string) (container.InspectResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.containers[containerID]; !ok {
		return container.InspectResponse{}, errdefs.NotFound(fmt.Errorf("no such container: %s", containerID))
	}
	return container.InspectResponse{}, nil
}

func (f *fakeAPI) ContainerLogs(ctx context.Context, containerID string, options container.LogsOptions) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.logStreams[containerID]
	if !ok {
		return nil, errdefs.NotFound(fmt.Errorf("no such container: %s", containerID))
	}
	return io.NopCloser(strings.NewReader(string(data))), nil
}

func (f *fakeAPI) NetworkCreate(ctx context.Context, name string, options network.CreateOptions) (network.CreateResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.networkCreates++
	id := "net-" + name
	f.networks[name] = id
	return network.CreateResponse{ID: id}, nil
}

func (f *fakeAPI) NetworkList(ctx context.Context, options network.ListOptions) ([]network.Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []network.Summary
	for name, id := range f.networks {
		out = append(out, network.Summary{Name: name, ID: id})
	}
	return out, nil
}

func (f *fakeAPI) NetworkRemove(ctx context.Context, networkID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for name, id := range f.networks {
		if id == networkID || name == networkID {
			delete(f.networks, name)
			return nil
		}
	}
	return errdefs.NotFound(fmt.Errorf("no such network: %s", networkID))
}

func (f *fakeAPI) VolumeCreate(ctx context.Context, options volume.CreateOptions) (volume.Volume, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.volumeCreates++
	v := volume.Volume{Name: options.Name, Labels: options.Labels}
	f.volumes[options.Name] = v
	return v, nil
}

func (f *fakeAPI) VolumeInspect(ctx context.Context, volumeID string) (volume.Volume, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.volumes[volumeID]
	if !ok {
		return volume.Volume{}, errdefs.NotFound(fmt.Errorf("no such volume: %s", volumeID))
	}
	return v, nil
}

func (f *fakeAPI) VolumeRemove(ctx context.Context, volumeID string, force bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.volumes[volumeID]; !ok {
		return errdefs.NotFound(fmt.Errorf("no such volume: %s", volumeID))
	}
	delete(f.volumes, volumeID)
	return nil
}

func (f *fakeAPI) ImagePull(ctx context.Context, refStr string, options image.PullOptions) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pulls++
	f.images[refStr] = true
	return io.NopCloser(strings.NewReader("")), nil
}

func (f *fakeAPI) ImageList(ctx context.Context, options image.ListOptions) ([]image.Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	refs := options.Filters.Get("reference")
	var out []image.Summary
	for _, ref := range refs {
		if f.images[ref] {
			out = append(out, image.Summary{})
		}
	}
	return out, nil
}

func (f *fakeAPI) ImageBuild(ctx context.Context, buildContext io.Reader, options types.ImageBuildOptions) (types.ImageBuildResponse, error) {
	// Drain the context like the real endpoint would.
	if _, err := io.Copy(io.Discard, buildContext); err != nil {
		return types.ImageBuildResponse{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.builds++
	for _, tag := range options.Tags {
		f.images[tag] = true
	}
	return types.ImageBuildResponse{Body: io.NopCloser(strings.NewReader(""))}, nil
}

func matchLabels(args filters.Args, labels map[string]string) bool {
	for _, want := range args.Get("label") {
		key, val, hasValue := strings.Cut(want, "=")
		got, ok := labels[key]
		if !ok {
			return false
		}
		if hasValue && got != val {
			return false
		}
	}
	return true
}

// serviceContainer returns the single container labeled with the service, or
// nil.
func (f *fakeAPI) serviceContainer(service string) *fakeContainer {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.containers {
		if c.labels[LabelService] == service {
			return c
		}
	}
	return nil
}
