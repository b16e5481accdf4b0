package network

import (
	"crypto/tls"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/crypto/pkcs12"

	"github.com/quiverhq/quiver/packages/store"
)

// defaultTLSPort is assumed whenever a certificate host or a target
// omits an explicit port.
const defaultTLSPort = 443

// SelectCertificate returns the first enabled certificate whose host
// matches the target hostname and resolved port exactly, or nil. A
// candidate host without a scheme is treated as https; missing ports
// default to 443 on both sides. Disabled certificates never match.
func SelectCertificate(hostname string, port int, certs []*store.ClientCertificate) *store.ClientCertificate {
	if port == 0 {
		port = defaultTLSPort
	}
	for _, cert := range certs {
		if cert.Disabled {
			continue
		}
		certHost, certPort, ok := normalizeCertHost(cert.Host)
		if !ok {
			continue
		}
		if strings.EqualFold(certHost, hostname) && certPort == port {
			return cert
		}
	}
	return nil
}

// normalizeCertHost splits a stored certificate host into hostname and
// port, assuming https when the scheme is absent.
func normalizeCertHost(raw string) (string, int, bool) {
	if raw == "" {
		return "", 0, false
	}
	if !schemePattern.MatchString(raw) {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return "", 0, false
	}
	port := defaultTLSPort
	if p := u.Port(); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			return "", 0, false
		}
		port = n
	}
	return u.Hostname(), port, true
}

// TargetPort extracts the port certificate matching resolves against
// for a URL: the explicit port when present, 443 otherwise.
func TargetPort(u *url.URL) int {
	if p := u.Port(); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			return n
		}
	}
	return defaultTLSPort
}

// applyCertificate copies the client TLS material onto the config.
func applyCertificate(cfg *TransportConfig, cert *store.ClientCertificate) {
	if cert == nil {
		return
	}
	cfg.ClientCert = cert.Cert
	cfg.ClientKey = cert.Key
	cfg.PFX = cert.PFX
	cfg.Passphrase = cert.Passphrase
}

// loadKeyPair materializes the config's client certificate material
// into a tls.Certificate. Returns (zero, false, nil) when the config
// carries none.
func loadKeyPair(cfg *TransportConfig) (tls.Certificate, bool, error) {
	if len(cfg.PFX) > 0 {
		key, cert, err := pkcs12.Decode(cfg.PFX, cfg.Passphrase)
		if err != nil {
			return tls.Certificate{}, false, fmt.Errorf("decoding pfx bundle: %w", err)
		}
		return tls.Certificate{
			Certificate: [][]byte{cert.Raw},
			PrivateKey:  key,
			Leaf:        cert,
		}, true, nil
	}
	if len(cfg.ClientCert) > 0 && len(cfg.ClientKey) > 0 {
		pair, err := tls.X509KeyPair(cfg.ClientCert, cfg.ClientKey)
		if err != nil {
			return tls.Certificate{}, false, fmt.Errorf("loading client key pair: %w", err)
		}
		return pair, true, nil
	}
	return tls.Certificate{}, false, nil
}
