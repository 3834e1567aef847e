// Package directory resolves endpoint references to scannable addresses.
// IP-typed endpoints pass through after syntactic validation; hostname
// endpoints are resolved over DNS.
package directory

import (
	"context"
	"fmt"
	"net"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/miekg/dns"

	"github.com/scanhub/scanhub/internal/errors"
	"github.com/scanhub/scanhub/internal/logging"
	"github.com/scanhub/scanhub/internal/store"
)

const (
	defaultDNSServer  = "8.8.8.8:53"
	defaultDNSTimeout = 5 * time.Second
)

var hostnameLabel = regexp.MustCompile(`^(?i)[a-z\d]([a-z\d-]{0,61}[a-z\d])?$`)

// Resolver maps an endpoint ID to a scannable address string.
type Resolver interface {
	Resolve(ctx context.Context, endpointID uuid.UUID) (string, error)
}

// Directory is the store-backed Resolver.
type Directory struct {
	store  store.Store
	client *dns.Client
	server string
}

// Option configures a Directory.
type Option func(*Directory)

// WithDNSServer overrides the DNS server used for hostname resolution.
func WithDNSServer(addr string) Option {
	return func(d *Directory) {
		d.server = addr
	}
}

// New creates a Directory. The DNS server defaults to the first
// nameserver in /etc/resolv.conf when available.
func New(st store.Store, opts ...Option) *Directory {
	d := &Directory{
		store:  st,
		client: &dns.Client{Timeout: defaultDNSTimeout},
		server: systemDNSServer(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func systemDNSServer() string {
	conf, err := dns.ClientConfigFromFile("/etc/resolv.conf")
	if err != nil || len(conf.Servers) == 0 {
		return defaultDNSServer
	}
	return net.JoinHostPort(conf.Servers[0], conf.Port)
}

// Resolve looks up the endpoint and returns its scannable address. An
// unknown or inactive endpoint, an invalid address, or a hostname with no
// DNS records all surface as not-found: the reference does not resolve.
func (d *Directory) Resolve(ctx context.Context, endpointID uuid.UUID) (string, error) {
	endpoint, err := d.store.GetEndpoint(ctx, endpointID)
	if err != nil {
		return "", err
	}
	if !endpoint.Active {
		return "", errors.NewNotFoundError("active endpoint")
	}

	address := strings.TrimSpace(endpoint.Address)
	if address == "" {
		return "", errors.NewScanError(errors.CodeNotFound, "endpoint has no address")
	}

	// IP literals need no lookup regardless of the declared type.
	if ip := net.ParseIP(address); ip != nil {
		return address, nil
	}

	if !ValidHostname(address) {
		return "", errors.NewScanError(errors.CodeNotFound,
			fmt.Sprintf("endpoint address %q is neither an IP nor a valid hostname", address))
	}

	resolved, err := d.lookupHost(ctx, address)
	if err != nil {
		logging.Warn("Hostname resolution failed", "hostname", address, "error", err)
		return "", errors.WrapScanError(errors.CodeNotFound,
			fmt.Sprintf("hostname %q did not resolve", address), err)
	}
	return resolved, nil
}

// lookupHost queries A records first, then falls back to AAAA.
func (d *Directory) lookupHost(ctx context.Context, hostname string) (string, error) {
	for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
		msg := new(dns.Msg)
		msg.SetQuestion(dns.Fqdn(hostname), qtype)

		in, _, err := d.client.ExchangeContext(ctx, msg, d.server)
		if err != nil {
			return "", err
		}

		for _, answer := range in.Answer {
			switch rr := answer.(type) {
			case *dns.A:
				return rr.A.String(), nil
			case *dns.AAAA:
				return rr.AAAA.String(), nil
			}
		}
	}
	return "", fmt.Errorf("no A or AAAA records for %s", hostname)
}

// ValidHostname reports whether s is a syntactically valid DNS hostname.
func ValidHostname(s string) bool {
	if len(s) == 0 || len(s) > 255 {
		return false
	}
	s = strings.TrimSuffix(s, ".")
	for _, label := range strings.Split(s, ".") {
		if !hostnameLabel.MatchString(label) {
			return false
		}
	}
	return true
}
