package destination

import (
	"fmt"
	"log/slog"

	"github.com/miekg/dns"
)

// defaultResolverAddr is the local stub resolver.
const defaultResolverAddr = "127.0.0.53:53"

// Resolver discovers destination handler endpoints through DNS SRV records.
// Operators publish an SRV record per handler domain; registration resolves
// the record once and pins the resulting endpoint.
type Resolver struct {
	resolverAddr string
	log          *slog.Logger
}

// NewResolver creates a resolver against the provided DNS server address,
// falling back to the local stub resolver when empty.
func NewResolver(resolverAddr string, log *slog.Logger) *Resolver {
	if resolverAddr == "" {
		resolverAddr = defaultResolverAddr
	}
	if log == nil {
		log = slog.Default()
	}

	return &Resolver{resolverAddr: resolverAddr, log: log}
}

// ResolveEndpoint resolves a handler domain's SRV record to an HTTP endpoint
// URL. The first SRV answer wins.
func (r *Resolver) ResolveEndpoint(domain string) (string, error) {
	m1 := new(dns.Msg)
	m1.Id = dns.Id()
	m1.RecursionDesired = true
	m1.Question = make([]dns.Question, 1)
	m1.Question[0] = dns.Question{Name: dns.Fqdn(domain), Qtype: dns.TypeSRV, Qclass: dns.ClassINET}

	c := new(dns.Client)
	in, _, err := c.Exchange(m1, r.resolverAddr)
	if err != nil {
		return "", fmt.Errorf("SRV lookup for %s failed: %w", domain, err)
	}

	for _, answer := range in.Answer {
		if srv, ok := answer.(*dns.SRV); ok {
			endpoint := fmt.Sprintf("http://%s:%d/", dns.Fqdn(srv.Target), srv.Port)
			r.log.Debug("Resolved destination endpoint",
				slog.String("domain", domain),
				slog.String("endpoint", endpoint))
			return endpoint, nil
		}
	}

	return "", fmt.Errorf("no SRV records for %s", domain)
}

// ResolveDestination resolves a handler domain and returns an HTTP destination
// handler for the discovered endpoint.
func (r *Resolver) ResolveDestination(domain string) (*HTTPDestination, error) {
	endpoint, err := r.ResolveEndpoint(domain)
	if err != nil {
		return nil, err
	}

	return NewHTTPDestination(endpoint, r.log)
}
