package middleware

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
)

// ipSet matches client addresses against single IPs and CIDR ranges.
// A single IP is stored as a full-length prefix.
type ipSet struct {
	prefixes []netip.Prefix
}

// parseIPSet builds an ipSet from entries such as "10.0.0.1" or
// "192.168.0.0/16". Entries that parse as neither are returned as errors
// and left out.
func parseIPSet(entries []string) (ipSet, []error) {
	var (
		set  ipSet
		errs []error
	)
	for _, entry := range entries {
		if p, err := netip.ParsePrefix(entry); err == nil {
			set.prefixes = append(set.prefixes, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid IP or CIDR %q", entry))
			continue
		}
		addr = addr.Unmap()
		set.prefixes = append(set.prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return set, errs
}

func (s ipSet) contains(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range s.prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

func (s ipSet) len() int { return len(s.prefixes) }

// clientIP is the host part of RemoteAddr. Forwarding headers are only
// honoured when the router installs chi's RealIP, which rewrites RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
