// Package contextresolve maps an inbound SNMP (transport, engine-id,
// community/context) tuple to an ordered list of candidate agent
// identifiers, most specific first, degrading one path segment at a time
// until the most generic candidate is exhausted — then, if an engine ID
// was supplied, repeating the whole process without it for the legacy
// on-disk layout that predates per-engine data roots.
package contextresolve

import (
	"path"
	"strings"
)

// UDPv4Prefix and UDPv6Prefix are the transport-domain prefixes that make
// the resolver append the peer address as an extra, most-specific
// candidate component. These mirror the pysnmp UDP/UDPv6 domain OIDs'
// well-known prefix used to recognize the transport kind.
const (
	UDPv4Prefix = "1.3.6.1.6.1.1"
	UDPv6Prefix = "1.3.6.1.6.1.2"
)

// Request carries the fields the resolver needs to build a candidate list.
type Request struct {
	TransportDomain  string // dotted OID prefix, e.g. "1.3.6.1.6.1.1"
	TransportAddress string // peer host, IPv6 form uses ':' separators
	ContextEngineID  string
	ContextName      string
}

// Candidates returns the ordered, most-specific-first list of identifier
// candidates for req. The caller tries each in turn against its discovery
// map and stops at the first hit.
func Candidates(req Request) []string {
	var out []string
	out = appendCandidates(out, req, true)
	if req.ContextEngineID != "" {
		legacy := req
		legacy.ContextEngineID = ""
		out = appendCandidates(out, legacy, false)
	}
	return out
}

func appendCandidates(out []string, req Request, withEngine bool) []string {
	base := buildBase(req)
	if strings.HasPrefix(req.TransportDomain, UDPv4Prefix) {
		base = appendNonEmpty(base, req.TransportAddress)
	} else if strings.HasPrefix(req.TransportDomain, UDPv6Prefix) {
		base = appendNonEmpty(base, strings.ReplaceAll(req.TransportAddress, ":", "_"))
	}

	seen := make(map[string]bool, len(out))
	for _, c := range out {
		seen[c] = true
	}

	for len(base) > 0 {
		candidate := normalize(base)
		if candidate != "" && !seen[candidate] {
			out = append(out, candidate)
			seen[candidate] = true
		}
		base = base[:len(base)-1]
	}
	return out
}

func buildBase(req Request) []string {
	var base []string
	if req.ContextEngineID != "" {
		base = []string{req.ContextEngineID, req.ContextName, req.TransportDomain}
	} else {
		base = []string{req.ContextName, req.TransportDomain}
	}
	return appendNonEmptyAll(base)
}

func appendNonEmptyAll(in []string) []string {
	out := in[:0:0]
	for _, s := range in {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func appendNonEmpty(in []string, s string) []string {
	if s == "" {
		return in
	}
	return append(in, s)
}

func normalize(segments []string) string {
	joined := strings.Join(segments, "/")
	return path.Clean(joined)
}
