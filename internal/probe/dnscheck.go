package probe

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strings"
	"time"
)

// DNSClass summarises why a host name did or did not resolve.
type DNSClass string

const (
	DNSResolves    DNSClass = "RESOLVES"
	DNSNXDomain    DNSClass = "NXDOMAIN"
	DNSNoARecord   DNSClass = "NO_A_RECORD"
	DNSServfail    DNSClass = "SERVFAIL_or_TIMEOUT"
	DNSInvalidName DNSClass = "INVALID_NAME"
)

const dnsDiagnosisTimeout = 3 * time.Second

// DNSReport is the outcome of diagnosing one host after a connection error.
type DNSReport struct {
	Domain        string
	Class         DNSClass
	IPs           []net.IP
	CNAME         string
	Nameservers   []string
	ResolverError string
}

func (d DNSReport) HasAddress() bool { return len(d.IPs) > 0 }

// Resolver is the subset of *net.Resolver used by CheckDNS.
type Resolver interface {
	LookupIP(ctx context.Context, network, host string) ([]net.IP, error)
	LookupCNAME(ctx context.Context, host string) (string, error)
	LookupNS(ctx context.Context, name string) ([]*net.NS, error)
}

// CheckDNS diagnoses host with the OS resolver.
func CheckDNS(ctx context.Context, host string) DNSReport {
	return CheckDNSWith(ctx, net.DefaultResolver, host)
}

func CheckDNSWith(ctx context.Context, r Resolver, host string) DNSReport {
	rep := DNSReport{Domain: strings.TrimSpace(host)}
	if rep.Domain == "" || strings.Contains(rep.Domain, "://") {
		rep.Class = DNSInvalidName
		return rep
	}

	ctx, cancel := context.WithTimeout(ctx, dnsDiagnosisTimeout)
	defer cancel()

	ips, ipErr := r.LookupIP(ctx, "ip", rep.Domain)
	if ipErr != nil {
		rep.ResolverError = ipErr.Error()
	} else {
		rep.IPs = ips
	}
	if cname, err := r.LookupCNAME(ctx, rep.Domain); err == nil && !strings.EqualFold(cname, rep.Domain+".") {
		rep.CNAME = strings.TrimSuffix(cname, ".")
	}
	if ns, err := r.LookupNS(ctx, rep.Domain); err == nil {
		for _, n := range ns {
			rep.Nameservers = append(rep.Nameservers, strings.TrimSuffix(n.Host, "."))
		}
	}

	rep.Class = classify(ipErr, rep.HasAddress(), len(rep.Nameservers) > 0)
	return rep
}

// classify prefers an address answer, then delegated-but-empty zones, then
// the resolver's own verdict.
func classify(ipErr error, hasIP, hasNS bool) DNSClass {
	if hasIP {
		return DNSResolves
	}
	if hasNS {
		return DNSNoARecord
	}
	var de *net.DNSError
	if errors.As(ipErr, &de) {
		switch {
		case de.IsNotFound:
			return DNSNXDomain
		case de.IsTemporary, de.Timeout():
			return DNSServfail
		}
	}
	if ipErr != nil {
		return DNSServfail
	}
	return DNSNXDomain
}

// ExtractHost returns the host name of a URL, or raw when it has none.
func ExtractHost(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return raw
	}
	return u.Hostname()
}
