package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/api/types/strslice"
	"github.com/docker/go-connections/nat"

	"lift/internal/compose"
)

// Labels stamped on every object the engine creates. All engine state lives
// in these labels; there are no state files.
const (
	LabelManaged    = "io.lift.managed"
	LabelProject    = "io.lift.project"
	LabelService    = "io.lift.service"
	LabelConfigHash = "io.lift.config-hash"
	LabelVolume     = "io.lift.volume"
	LabelNetwork    = "io.lift.network"
)

// containerSpec converts a service declaration into the engine-side container
// configuration. The returned config carries the managed labels but not yet
// the config hash.
func containerSpec(p *compose.Project, name string) (*container.Config, *container.HostConfig, *network.NetworkingConfig, error) {
	svc := p.Services[name]

	exposed := nat.PortSet{}
	bindings := nat.PortMap{}
	for _, spec := range svc.Ports {
		mappings, err := compose.ParsePortSpec(spec)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("service %s: %w", name, err)
		}
		for _, pm := range mappings {
			exposed[pm.ContainerPort] = struct{}{}
			if pm.HostPort != "" {
				bindings[pm.ContainerPort] = append(bindings[pm.ContainerPort], nat.PortBinding{
					HostIP:   pm.HostIP,
					HostPort: pm.HostPort,
				})
			}
		}
	}

	env := make([]string, 0, len(svc.Env))
	for k, v := range svc.Env {
		env = append(env, k+"="+v)
	}
	sort.Strings(env)

	var mounts []mount.Mount
	for _, spec := range svc.Volumes {
		vs, err := compose.ParseVolumeSpec(spec)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("service %s: %w", name, err)
		}
		switch {
		case vs.Source == "":
			mounts = append(mounts, mount.Mount{Type: mount.TypeVolume, Target: vs.Target})
		case vs.Named:
			mounts = append(mounts, mount.Mount{
				Type:     mount.TypeVolume,
				Source:   p.VolumeObjectName(vs.Source),
				Target:   vs.Target,
				ReadOnly: vs.ReadOnly,
			})
		default:
			source := vs.Source
			if !filepath.IsAbs(source) {
				source = filepath.Join(p.WorkingDir, source)
			}
			mounts = append(mounts, mount.Mount{
				Type:     mount.TypeBind,
				Source:   source,
				Target:   vs.Target,
				ReadOnly: vs.ReadOnly,
			})
		}
	}

	restart, err := restartPolicy(svc.Restart)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("service %s: %w", name, err)
	}

	labels := map[string]string{
		LabelManaged: "true",
		LabelProject: p.Name,
		LabelService: name,
	}
	for k, v := range svc.Labels {
		labels[k] = v
	}

	var stopTimeout *int
	if svc.StopGracePeriod != "" {
		d, err := time.ParseDuration(svc.StopGracePeriod)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("service %s: invalid stop_grace_period: %w", name, err)
		}
		secs := int(d.Seconds())
		stopTimeout = &secs
	}

	cfg := &container.Config{
		Hostname:     svc.Hostname,
		User:         svc.User,
		ExposedPorts: exposed,
		Env:          env,
		Cmd:          strslice.StrSlice(svc.Command),
		Entrypoint:   strslice.StrSlice(svc.Entrypoint),
		Image:        imageTag(p, name),
		WorkingDir:   svc.WorkingDir,
		Labels:       labels,
		StopTimeout:  stopTimeout,
	}

	primary, endpoints := serviceNetworks(p, svc)
	hostCfg := &container.HostConfig{
		PortBindings:  bindings,
		RestartPolicy: restart,
		NetworkMode:   container.NetworkMode(primary),
		Mounts:        mounts,
		Privileged:    svc.Privileged,
	}
	netCfg := &network.NetworkingConfig{EndpointsConfig: endpoints}
	return cfg, hostCfg, netCfg, nil
}

// serviceNetworks resolves the networks a service joins. Every endpoint gets
// the service name as an alias, which is what makes addresses like
// REDIS_HOST=redis resolve inside the project network.
func serviceNetworks(p *compose.Project, svc *compose.Service) (string, map[string]*network.EndpointSettings) {
	names := make([]string, 0, len(svc.Networks))
	for _, key := range svc.Networks {
		names = append(names, p.NetworkObjectName(key))
	}
	if len(names) == 0 {
		names = []string{p.DefaultNetworkName()}
	}
	sort.Strings(names)

	endpoints := map[string]*network.EndpointSettings{}
	for _, n := range names {
		endpoints[n] = &network.EndpointSettings{Aliases: []string{svc.Name}}
	}
	return names[0], endpoints
}

func restartPolicy(value string) (container.RestartPolicy, error) {
	switch value {
	case "", "no":
		return container.RestartPolicy{Name: container.RestartPolicyDisabled}, nil
	case "always":
		return container.RestartPolicy{Name: container.RestartPolicyAlways}, nil
	case "unless-stopped":
		return container.RestartPolicy{Name: container.RestartPolicyUnlessStopped}, nil
	case "on-failure":
		return container.RestartPolicy{Name: container.RestartPolicyOnFailure}, nil
	}
	var retries int
	if _, err := fmt.Sscanf(value, "on-failure:%d", &retries); err == nil {
		return container.RestartPolicy{Name: container.RestartPolicyOnFailure, MaximumRetryCount: retries}, nil
	}
	return container.RestartPolicy{}, fmt.Errorf("invalid restart value %q", value)
}

// imageTag is the image a service runs: its declared image, or the
// project-local tag for build-only services.
func imageTag(p *compose.Project, name string) string {
	svc := p.Services[name]
	if svc.Image != "" {
		return svc.Image
	}
	return p.Name + "-" + name
}

// containerName is the engine-side name for a service's container.
func containerName(p *compose.Project, name string) string {
	if cn := p.Services[name].ContainerName; cn != "" {
		return cn
	}
	return p.Name + "-" + name + "-1"
}

// ConfigHash returns the identity of a service's desired container state. A
// container whose hash label matches is up to date; any material change to
// the declaration changes the hash and forces a recreate.
func ConfigHash(p *compose.Project, name string) (string, error) {
	cfg, hostCfg, netCfg, err := containerSpec(p, name)
	if err != nil {
		return "", err
	}
	return specHash(cfg, hostCfg, netCfg)
}

func specHash(cfg *container.Config, hostCfg *container.HostConfig, netCfg *network.NetworkingConfig) (string, error) {
	h := sha256.New()
	for _, part := range []any{cfg, hostCfg, netCfg} {
		b, err := json.Marshal(part)
		if err != nil {
			return "", fmt.Errorf("failed to hash container spec: %w", err)
		}
		h.Write(b)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
