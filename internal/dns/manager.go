package dns

import (
	"context"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"lift/internal/compose"
	"lift/internal/config"
)

// Manager publishes DNS records for the services of a project that expose at
// least one host port. With publishing disabled every operation is a logged
// no-op.
type Manager struct {
	client *Client
	cfg    config.DNS
}

// NewManager builds a manager from the DNS settings. Disabled settings yield
// a manager without a client.
func NewManager(cfg config.DNS) (*Manager, error) {
	if !cfg.Enabled {
		return &Manager{cfg: cfg}, nil
	}
	client, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return &Manager{client: client, cfg: cfg}, nil
}

// NewManagerWithClient wraps an existing client. Used by tests.
func NewManagerWithClient(client *Client, cfg config.DNS) *Manager {
	return &Manager{client: client, cfg: cfg}
}

// Enabled reports whether records will actually be touched.
func (m *Manager) Enabled() bool {
	return m.cfg.Enabled && m.client != nil
}

// AutoPublish reports whether up/down should publish and unpublish records
// as a side effect.
func (m *Manager) AutoPublish() bool {
	return m.Enabled() && m.cfg.AutoPublish
}

// Publish ensures one record per published service of the project.
func (m *Manager) Publish(ctx context.Context, p *compose.Project) error {
	if !m.Enabled() {
		logrus.Infof("DNS publishing disabled, skipping project %s", p.Name)
		return nil
	}
	for _, name := range publishedServices(p) {
		action, err := m.client.EnsureRecord(ctx, SanitizeLabel(name))
		if err != nil {
			return err
		}
		logrus.Debugf("DNS record for service %s: %s", name, action)
	}
	return nil
}

// Unpublish removes the records of every published service.
func (m *Manager) Unpublish(ctx context.Context, p *compose.Project) error {
	if !m.Enabled() {
		logrus.Infof("DNS publishing disabled, skipping project %s", p.Name)
		return nil
	}
	for _, name := range publishedServices(p) {
		if err := m.client.DeleteRecord(ctx, SanitizeLabel(name)); err != nil {
			return err
		}
	}
	return nil
}

// ServiceRecord pairs a service with its published record, if any.
type ServiceRecord struct {
	Service string  `json:"service"`
	FQDN    string  `json:"fqdn"`
	Record  *Record `json:"record"`
}

// List reports the publishing state of every published service.
func (m *Manager) List(ctx context.Context, p *compose.Project) ([]ServiceRecord, error) {
	if !m.Enabled() {
		return nil, fmt.Errorf("DNS publishing is not enabled")
	}
	var out []ServiceRecord
	for _, name := range publishedServices(p) {
		label := SanitizeLabel(name)
		record, err := m.client.GetRecord(ctx, label)
		if err != nil {
			return nil, err
		}
		out = append(out, ServiceRecord{
			Service: name,
			FQDN:    m.client.FQDN(label),
			Record:  record,
		})
	}
	return out, nil
}

// publishedServices returns the names of services that publish at least one
// host port, sorted.
func publishedServices(p *compose.Project) []string {
	var names []string
	for name, svc := range p.Services {
		if hasPublishedPort(svc) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func hasPublishedPort(svc *compose.Service) bool {
	for _, spec := range svc.Ports {
		mappings, err := compose.ParsePortSpec(spec)
		if err != nil {
			continue
		}
		for _, pm := range mappings {
			if pm.HostPort != "" {
				return true
			}
		}
	}
	return false
}
