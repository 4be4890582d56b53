package dns

import (
	"context"
	"fmt"
	"strings"

	cf "github.com/cloudflare/cloudflare-go"
	"github.com/sirupsen/logrus"

	"lift/internal/config"
)

// API is the slice of the Cloudflare API the client consumes. Tests
// substitute a fake.
type API interface {
	ListDNSRecords(ctx context.Context, rc *cf.ResourceContainer, params cf.ListDNSRecordsParams) ([]cf.DNSRecord, *cf.ResultInfo, error)
	CreateDNSRecord(ctx context.Context, rc *cf.ResourceContainer, params cf.CreateDNSRecordParams) (cf.DNSRecord, error)
	UpdateDNSRecord(ctx context.Context, rc *cf.ResourceContainer, params cf.UpdateDNSRecordParams) (cf.DNSRecord, error)
	DeleteDNSRecord(ctx context.Context, rc *cf.ResourceContainer, recordID string) error
}

// Client manages A records in one Cloudflare zone. All bookkeeping is done
// against the zone itself, so operations are idempotent across runs.
type Client struct {
	api API
	cfg config.DNS
}

// NewClient builds a Cloudflare-backed client from the DNS settings.
func NewClient(cfg config.DNS) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	api, err := cf.NewWithAPIToken(cfg.APIToken)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Cloudflare API client: %w", err)
	}
	return &Client{api: api, cfg: cfg}, nil
}

// NewClientWithAPI wraps an existing API implementation. Used by tests.
func NewClientWithAPI(api API, cfg config.DNS) *Client {
	return &Client{api: api, cfg: cfg}
}

// Record is a published DNS record.
type Record struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Content string `json:"content"`
	Proxied bool   `json:"proxied"`
}

// FQDN returns the full record name for a subdomain label.
func (c *Client) FQDN(label string) string {
	return label + "." + c.cfg.BaseDomain
}

// EnsureRecord makes sure an A record for the label exists and points at the
// configured server address. Existing records with the right content are
// left alone, wrong content is updated, missing records are created. The
// returned action is one of "created", "updated" or "unchanged".
func (c *Client) EnsureRecord(ctx context.Context, label string) (string, error) {
	fqdn := c.FQDN(label)
	existing, err := c.findRecords(ctx, fqdn)
	if err != nil {
		return "", err
	}

	proxied := c.cfg.Proxied
	if len(existing) == 0 {
		logrus.Infof("Creating DNS record %s -> %s", fqdn, c.cfg.ServerAddress)
		_, err := c.api.CreateDNSRecord(ctx, cf.ZoneIdentifier(c.cfg.ZoneID), cf.CreateDNSRecordParams{
			Type:    "A",
			Name:    label,
			Content: c.cfg.ServerAddress,
			TTL:     c.cfg.TTL,
			Proxied: &proxied,
		})
		if err != nil {
			return "", fmt.Errorf("failed to create DNS record for %s: %w", fqdn, err)
		}
		return "created", nil
	}

	record := existing[0]
	if record.Content == c.cfg.ServerAddress && record.Proxied != nil && *record.Proxied == proxied {
		logrus.Debugf("DNS record %s already up to date", fqdn)
		return "unchanged", nil
	}

	logrus.Infof("Updating DNS record %s -> %s", fqdn, c.cfg.ServerAddress)
	_, err = c.api.UpdateDNSRecord(ctx, cf.ZoneIdentifier(c.cfg.ZoneID), cf.UpdateDNSRecordParams{
		ID:      record.ID,
		Type:    "A",
		Name:    label,
		Content: c.cfg.ServerAddress,
		TTL:     c.cfg.TTL,
		Proxied: &proxied,
	})
	if err != nil {
		return "", fmt.Errorf("failed to update DNS record for %s: %w", fqdn, err)
	}
	return "updated", nil
}

// DeleteRecord removes the A record for the label. A missing record is not
// an error.
func (c *Client) DeleteRecord(ctx context.Context, label string) error {
	fqdn := c.FQDN(label)
	existing, err := c.findRecords(ctx, fqdn)
	if err != nil {
		return err
	}
	for _, record := range existing {
		logrus.Infof("Deleting DNS record %s (ID: %s)", fqdn, record.ID)
		if err := c.api.DeleteDNSRecord(ctx, cf.ZoneIdentifier(c.cfg.ZoneID), record.ID); err != nil {
			return fmt.Errorf("failed to delete DNS record for %s: %w", fqdn, err)
		}
	}
	return nil
}

// GetRecord looks up the published record for a label, if any.
func (c *Client) GetRecord(ctx context.Context, label string) (*Record, error) {
	existing, err := c.findRecords(ctx, c.FQDN(label))
	if err != nil {
		return nil, err
	}
	if len(existing) == 0 {
		return nil, nil
	}
	r := existing[0]
	proxied := r.Proxied != nil && *r.Proxied
	return &Record{ID: r.ID, Name: r.Name, Content: r.Content, Proxied: proxied}, nil
}

func (c *Client) findRecords(ctx context.Context, fqdn string) ([]cf.DNSRecord, error) {
	records, _, err := c.api.ListDNSRecords(ctx, cf.ZoneIdentifier(c.cfg.ZoneID), cf.ListDNSRecordsParams{
		Type: "A",
		Name: fqdn,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list DNS records for %s: %w", fqdn, err)
	}
	return records, nil
}

// SanitizeLabel turns a service name into a DNS-safe label.
func SanitizeLabel(name string) string {
	sanitized := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			return r
		}
		if r >= 'A' && r <= 'Z' {
			return r + 32
		}
		return '-'
	}, name)

	for strings.Contains(sanitized, "--") {
		sanitized = strings.ReplaceAll(sanitized, "--", "-")
	}
	sanitized = strings.Trim(sanitized, "-")
	if sanitized == "" {
		sanitized = "app"
	}
	return sanitized
}
