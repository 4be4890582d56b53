package compose

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var nameRe = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.-]*$`)

// Validate checks the structural sanity of a loaded project. All errors are
// collected and reported together.
func Validate(p *Project) error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if len(p.Services) == 0 {
		fail("manifest declares no services")
	}

	for key := range p.Volumes {
		if !nameRe.MatchString(key) {
			fail("invalid volume name %q", key)
		}
	}
	for key := range p.Networks {
		if !nameRe.MatchString(key) {
			fail("invalid network name %q", key)
		}
	}

	hostPorts := map[string]string{}
	containerNames := map[string]string{}

	for _, name := range p.ServiceNames() {
		svc := p.Services[name]
		if !nameRe.MatchString(name) {
			fail("invalid service name %q", name)
		}
		if svc.Image == "" && svc.Build == nil {
			fail("service %s has neither an image nor a build context", name)
		}
		if svc.ContainerName != "" {
			if other, dup := containerNames[svc.ContainerName]; dup {
				fail("services %s and %s declare the same container_name %q", other, name, svc.ContainerName)
			}
			containerNames[svc.ContainerName] = name
		}

		for _, spec := range svc.Ports {
			mappings, err := ParsePortSpec(spec)
			if err != nil {
				fail("service %s: %v", name, err)
				continue
			}
			for _, pm := range mappings {
				if pm.HostPort == "" {
					continue
				}
				key := pm.HostIP + ":" + pm.HostPort
				if other, dup := hostPorts[key]; dup {
					fail("host port %s published by both %s and %s", pm.HostPort, other, name)
				}
				hostPorts[key] = name
			}
		}

		for _, spec := range svc.Volumes {
			vs, err := ParseVolumeSpec(spec)
			if err != nil {
				fail("service %s: %v", name, err)
				continue
			}
			if vs.Named && vs.Source != "" {
				if _, ok := p.Volumes[vs.Source]; !ok {
					fail("service %s references undeclared volume %q", name, vs.Source)
				}
			}
		}

		for _, net := range svc.Networks {
			if _, ok := p.Networks[net]; !ok {
				fail("service %s references unknown network %q", name, net)
			}
		}

		for dep := range svc.DependsOn {
			if dep == name {
				fail("service %s depends on itself", name)
				continue
			}
			if _, ok := p.Services[dep]; !ok {
				fail("service %s depends on unknown service %q", name, dep)
			}
		}

		if err := validateRestart(svc.Restart); err != nil {
			fail("service %s: %v", name, err)
		}
		if svc.StopGracePeriod != "" {
			if _, err := time.ParseDuration(svc.StopGracePeriod); err != nil {
				fail("service %s: invalid stop_grace_period %q", name, svc.StopGracePeriod)
			}
		}
	}

	if cycle := findCycle(p); len(cycle) > 0 {
		fail("dependency cycle: %s", strings.Join(cycle, " -> "))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid manifest %s:\n%w", p.File, errors.Join(errs...))
	}
	return nil
}

func validateRestart(value string) error {
	switch value {
	case "", "no", "always", "unless-stopped", "on-failure":
		return nil
	}
	if rest, ok := strings.CutPrefix(value, "on-failure:"); ok {
		if _, err := strconv.Atoi(rest); err == nil {
			return nil
		}
	}
	return fmt.Errorf("invalid restart value %q", value)
}

// findCycle returns one dependency cycle as a path of service names, or nil.
func findCycle(p *Project) []string {
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := map[string]int{}
	var cycle []string

	var visit func(name string, path []string) bool
	visit = func(name string, path []string) bool {
		state[name] = visiting
		path = append(path, name)
		svc := p.Services[name]
		if svc != nil {
			for _, dep := range svc.Dependencies() {
				if _, ok := p.Services[dep]; !ok {
					continue
				}
				switch state[dep] {
				case visiting:
					for i, n := range path {
						if n == dep {
							cycle = append(append([]string{}, path[i:]...), dep)
							return true
						}
					}
				case unvisited:
					if visit(dep, path) {
						return true
					}
				}
			}
		}
		state[name] = done
		return false
	}

	for _, name := range p.ServiceNames() {
		if state[name] == unvisited {
			if visit(name, nil) {
				return cycle
			}
		}
	}
	return nil
}
