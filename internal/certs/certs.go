// Package certs inspects the TLS certificate a domain's vhost points at and
// the one nginx actually serves for it.
package certs

import (
	"context"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Expiry thresholds, in days
const (
	WarnDays     = 30
	CriticalDays = 7
)

// Info is what we learn about one certificate
type Info struct {
	Subject   string    `json:"subject" yaml:"subject"`
	Issuer    string    `json:"issuer" yaml:"issuer"`
	DNSNames  []string  `json:"dns_names,omitempty" yaml:"dns_names,omitempty"`
	NotBefore time.Time `json:"not_before" yaml:"not_before"`
	NotAfter  time.Time `json:"not_after" yaml:"not_after"`
}

// Inspector reads certificate details from a file on the remote host
type Inspector interface {
	Inspect(ctx context.Context, path string) (*Info, error)
}

// Prober asks the running web server which certificate it presents for serverName
type Prober interface {
	Served(ctx context.Context, serverName string) (*Info, error)
}

// Names returns the SANs, or the subject CN when the certificate has none
func (i *Info) Names() []string {
	if len(i.DNSNames) > 0 {
		return i.DNSNames
	}
	if i.Subject != "" {
		return []string{i.Subject}
	}
	return nil
}

// Covers reports whether the certificate is valid for domain.
// A "*.example.com" name covers exactly one extra label.
func (i *Info) Covers(domain string) bool {
	domain = strings.ToLower(strings.TrimSuffix(domain, "."))
	for _, name := range i.Names() {
		name = strings.ToLower(name)
		if name == domain {
			return true
		}
		if rest, ok := strings.CutPrefix(name, "*."); ok {
			if label, parent, found := strings.Cut(domain, "."); found && label != "" && parent == rest {
				return true
			}
		}
	}
	return false
}

// Expired reports whether now falls outside the validity window
func (i *Info) Expired(now time.Time) bool {
	return now.Before(i.NotBefore) || now.After(i.NotAfter)
}

// DaysLeft returns whole days until expiry, negative once expired
func (i *Info) DaysLeft(now time.Time) int {
	return int(i.NotAfter.Sub(now).Hours() / 24)
}

// ParsePEM reads the first certificate in a PEM bundle, the leaf of a fullchain
func ParsePEM(data []byte) (*Info, error) {
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			return nil, errors.New("no certificate found in PEM data")
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parse certificate: %w", err)
		}
		return &Info{
			Subject:   cert.Subject.CommonName,
			Issuer:    cert.Issuer.CommonName,
			DNSNames:  cert.DNSNames,
			NotBefore: cert.NotBefore,
			NotAfter:  cert.NotAfter,
		}, nil
	}
}

var (
	cnRe  = regexp.MustCompile(`CN\s*=\s*([^,/\n]+)`)
	dnsRe = regexp.MustCompile(`DNS:([^,\s]+)`)
)

// opensslTime is the layout of notBefore/notAfter in `openssl x509 -dates`
const opensslTime = "Jan _2 15:04:05 2006 MST"

// ParseOpenSSLText reads the output of
// `openssl x509 -noout -subject -issuer -dates [-ext subjectAltName]`.
// Both the "subject=CN = x" and the older "subject= /CN=x" forms are accepted.
func ParseOpenSSLText(out string) (*Info, error) {
	info := &Info{}
	var seenDates bool
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			info.DNSNames = appendDNS(info.DNSNames, line)
			continue
		}
		switch strings.TrimSpace(key) {
		case "subject":
			info.Subject = commonName(value)
		case "issuer":
			info.Issuer = commonName(value)
		case "notBefore":
			t, err := time.Parse(opensslTime, strings.TrimSpace(value))
			if err != nil {
				return nil, fmt.Errorf("parse notBefore: %w", err)
			}
			info.NotBefore = t
		case "notAfter":
			t, err := time.Parse(opensslTime, strings.TrimSpace(value))
			if err != nil {
				return nil, fmt.Errorf("parse notAfter: %w", err)
			}
			info.NotAfter = t
			seenDates = true
		default:
			info.DNSNames = appendDNS(info.DNSNames, line)
		}
	}
	if info.Subject == "" && !seenDates {
		return nil, errors.New("no certificate details in openssl output")
	}
	return info, nil
}

func commonName(dn string) string {
	if m := cnRe.FindStringSubmatch(dn); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

func appendDNS(names []string, line string) []string {
	for _, m := range dnsRe.FindAllStringSubmatch(line, -1) {
		names = append(names, m[1])
	}
	return names
}
