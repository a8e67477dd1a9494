package cloudflare

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"strings"
)

// Argo tunnel token PEM-style delimiters, as expected by cloudflared.
const (
	tunnelTokenHeader = "-----BEGIN ARGO TUNNEL TOKEN-----"
	tunnelTokenFooter = "-----END ARGO TUNNEL TOKEN-----"
)

// GeneratePrivateKey generates a fresh P-256 private key and returns it with
// its PKCS#8 PEM encoding.
func GeneratePrivateKey() (*ecdsa.PrivateKey, string, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate private key: %w", err)
	}

	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, "", fmt.Errorf("failed to encode private key: %w", err)
	}

	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
	return key, trimPEM(string(keyPEM)), nil
}

// CreateCSR builds and signs a certificate signing request for origin
// certificate issuance. The subject matches what the issuing endpoint
// expects; the hostname list travels in the API request, not the CSR.
func CreateCSR(key *ecdsa.PrivateKey) (string, error) {
	template := &x509.CertificateRequest{
		Subject: pkix.Name{
			Country:    []string{"US"},
			CommonName: "Cloudflare",
		},
		SignatureAlgorithm: x509.ECDSAWithSHA256,
	}

	der, err := x509.CreateCertificateRequest(rand.Reader, template, key)
	if err != nil {
		return "", fmt.Errorf("failed to create certificate request: %w", err)
	}

	csrPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE REQUEST", Bytes: der})
	return string(csrPEM), nil
}

// FormatTunnelToken assembles the credential block cloudflared consumes:
// the private key PEM, the origin certificate PEM, and the base64 encoded
// zone id + service key pair wrapped at 64 columns.
func FormatTunnelToken(zoneID, serviceKey, keyPEM, certPEM string) string {
	contents := zoneID + "\n" + serviceKey
	encoded := wrapBase64(base64.StdEncoding.EncodeToString([]byte(contents)), 64)

	return strings.Join([]string{
		trimPEM(keyPEM),
		trimPEM(certPEM),
		tunnelTokenHeader,
		encoded,
		tunnelTokenFooter,
	}, "\n")
}

// CreateTunnelToken issues a complete Argo tunnel token: a fresh private
// key, an origin certificate for the hostname, and the encoded service key
// block. Any failure aborts with nothing persisted.
func (c *Client) CreateTunnelToken(ctx context.Context, zoneID, serviceKey, hostname string, validDays int) (string, error) {
	key, keyPEM, err := GeneratePrivateKey()
	if err != nil {
		return "", err
	}

	csrPEM, err := CreateCSR(key)
	if err != nil {
		return "", err
	}

	certPEM, err := c.CreateOriginCertificate(ctx, csrPEM, hostname, validDays)
	if err != nil {
		return "", err
	}

	return FormatTunnelToken(zoneID, serviceKey, keyPEM, certPEM), nil
}

// wrapBase64 folds an encoded string into lines of at most width characters.
func wrapBase64(s string, width int) string {
	var b strings.Builder
	for len(s) > width {
		b.WriteString(s[:width])
		b.WriteByte('\n')
		s = s[width:]
	}
	b.WriteString(s)
	return b.String()
}

// trimPEM strips surrounding whitespace from a PEM block.
func trimPEM(s string) string {
	return strings.TrimSpace(s)
}
