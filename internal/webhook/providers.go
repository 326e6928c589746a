package webhook

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Signature schemes understood by VerifySignature.
const (
	SchemeHMACSHA256Hex  = "hmac-sha256-hex"
	SchemeHMACSHA1Base64 = "hmac-sha1-base64"
	SchemeSharedSecret   = "shared-secret"
)

//go:embed providers.yaml
var providersYAML []byte

// Provider describes how one dialer authenticates its webhooks and serves recordings.
type Provider struct {
	ID              string   `yaml:"id"`
	Name            string   `yaml:"name"`
	SignatureScheme string   `yaml:"signature_scheme"`
	BearerDownload  bool     `yaml:"bearer_download"`
	Listed          bool     `yaml:"listed"`
	Instructions    []string `yaml:"instructions"`
	RequiredFields  []string `yaml:"required_fields"`
}

// Catalog is the set of supported providers, in declaration order.
type Catalog struct {
	providers []Provider
	byID      map[string]Provider
}

// LoadCatalog parses the embedded provider catalog.
func LoadCatalog() (*Catalog, error) {
	return ParseCatalog(providersYAML)
}

// ParseCatalog parses a provider catalog document.
func ParseCatalog(data []byte) (*Catalog, error) {
	var doc struct {
		Providers []Provider `yaml:"providers"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse provider catalog: %w", err)
	}

	c := &Catalog{byID: make(map[string]Provider, len(doc.Providers))}
	for _, p := range doc.Providers {
		switch p.SignatureScheme {
		case SchemeHMACSHA256Hex, SchemeHMACSHA1Base64, SchemeSharedSecret:
		default:
			return nil, fmt.Errorf("provider %s: unknown signature scheme %q", p.ID, p.SignatureScheme)
		}
		if _, dup := c.byID[p.ID]; dup {
			return nil, fmt.Errorf("provider %s declared twice", p.ID)
		}
		c.providers = append(c.providers, p)
		c.byID[p.ID] = p
	}
	return c, nil
}

// MustLoadCatalog is LoadCatalog for composition roots.
func MustLoadCatalog() *Catalog {
	c, err := LoadCatalog()
	if err != nil {
		panic(err)
	}
	return c
}

// Lookup returns the provider with the given id.
func (c *Catalog) Lookup(id string) (Provider, bool) {
	p, ok := c.byID[strings.ToLower(strings.TrimSpace(id))]
	return p, ok
}

// Listed returns the provider ids advertised on the health endpoint.
func (c *Catalog) Listed() []string {
	ids := make([]string, 0, len(c.providers))
	for _, p := range c.providers {
		if p.Listed {
			ids = append(ids, p.ID)
		}
	}
	return ids
}

// IDs returns every accepted provider id.
func (c *Catalog) IDs() []string {
	ids := make([]string, 0, len(c.providers))
	for _, p := range c.providers {
		ids = append(ids, p.ID)
	}
	return ids
}

// SetupInstructions renders the provider's instructions for webhookURL.
func (p Provider) SetupInstructions(webhookURL string) []string {
	out := make([]string, len(p.Instructions))
	for i, line := range p.Instructions {
		out[i] = fmt.Sprintf("%d. %s", i+1, strings.ReplaceAll(line, "{{webhook_url}}", webhookURL))
	}
	return out
}
