package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/docker/docker/api/types/container"
)

// ServiceStatus is the live state of one service's container.
type ServiceStatus struct {
	Service string   `json:"service"`
	Name    string   `json:"name"`
	ID      string   `json:"id"`
	Image   string   `json:"image"`
	State   string   `json:"state"`
	Status  string   `json:"status"`
	Ports   []string `json:"ports"`
}

// Status lists the project's containers, sorted by service name.
func (e *Engine) Status(ctx context.Context, project string) ([]ServiceStatus, error) {
	list, err := e.projectContainers(ctx, project)
	if err != nil {
		return nil, err
	}
	out := make([]ServiceStatus, 0, len(list))
	for _, c := range list {
		out = append(out, ServiceStatus{
			Service: c.Labels[LabelService],
			Name:    containerDisplayName(c),
			ID:      shortID(c.ID),
			Image:   c.Image,
			State:   string(c.State),
			Status:  c.Status,
			Ports:   formatPorts(c.Ports),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Service < out[j].Service })
	return out, nil
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

func formatPorts(ports []container.Port) []string {
	formatted := make([]string, 0, len(ports))
	for _, p := range ports {
		if p.PublicPort == 0 {
			formatted = append(formatted, fmt.Sprintf("%d/%s", p.PrivatePort, p.Type))
			continue
		}
		ip := p.IP
		if ip == "" {
			ip = "0.0.0.0"
		}
		formatted = append(formatted, fmt.Sprintf("%s:%d->%d/%s", ip, p.PublicPort, p.PrivatePort, p.Type))
	}
	sort.Strings(formatted)
	return dedupe(formatted)
}

func dedupe(values []string) []string {
	out := values[:0]
	var prev string
	for i, v := range values {
		if i == 0 || v != prev {
			out = append(out, v)
		}
		prev = v
	}
	return out
}

// PortsString renders the port list for table output.
func (s ServiceStatus) PortsString() string {
	return strings.Join(s.Ports, ", ")
}
