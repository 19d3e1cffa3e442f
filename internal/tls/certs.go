// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

// Package tls provides TLS certificate generation and loading for serving
// the Gatehouse API over HTTPS. Operators with a real PKI point the server
// at their own cert and key files; the generator here covers development
// and single-host deployments.
package tls

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	stdtls "crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/samber/oops"
)

// Default certificate file names inside the certs directory.
const (
	CertFile = "server.crt"
	KeyFile  = "server.key"
)

// ServerCert holds a server certificate and its private key.
type ServerCert struct {
	Certificate *x509.Certificate
	PrivateKey  *ecdsa.PrivateKey
}

// GenerateServerCert creates a self-signed server certificate valid for
// localhost, 127.0.0.1, and the given extra host names.
func GenerateServerCert(hosts ...string) (*ServerCert, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, oops.Wrapf(err, "generate server key")
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, oops.Wrapf(err, "generate serial")
	}

	dnsNames := []string{"localhost"}
	ips := []net.IP{net.ParseIP("127.0.0.1")}
	for _, host := range hosts {
		if ip := net.ParseIP(host); ip != nil {
			ips = append(ips, ip)
			continue
		}
		dnsNames = append(dnsNames, host)
	}

	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			Organization: []string{"Gatehouse"},
			CommonName:   "gatehouse",
		},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().AddDate(1, 0, 0),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		DNSNames:              dnsNames,
		IPAddresses:           ips,
	}

	certBytes, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return nil, oops.Wrapf(err, "create server certificate")
	}

	cert, err := x509.ParseCertificate(certBytes)
	if err != nil {
		return nil, oops.Wrapf(err, "parse server certificate")
	}

	return &ServerCert{Certificate: cert, PrivateKey: key}, nil
}

// Save writes the certificate and key into certsDir as CertFile/KeyFile,
// creating the directory with 0700 permissions when needed.
func (c *ServerCert) Save(certsDir string) error {
	if err := os.MkdirAll(certsDir, 0o700); err != nil {
		return oops.With("path", certsDir).Wrapf(err, "create certs directory")
	}
	if err := saveCert(filepath.Join(certsDir, CertFile), c.Certificate); err != nil {
		return err
	}
	return saveKey(filepath.Join(certsDir, KeyFile), c.PrivateKey)
}

// Load reads a certificate/key pair for use by an HTTPS listener.
func Load(certPath, keyPath string) (stdtls.Certificate, error) {
	cert, err := stdtls.LoadX509KeyPair(filepath.Clean(certPath), filepath.Clean(keyPath))
	if err != nil {
		return stdtls.Certificate{}, oops.
			With("cert", certPath).
			With("key", keyPath).
			Wrapf(err, "load key pair")
	}
	return cert, nil
}

func saveCert(path string, cert *x509.Certificate) error {
	f, err := os.OpenFile(filepath.Clean(path), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return oops.With("path", path).Wrapf(err, "create cert file")
	}

	if err := pem.Encode(f, &pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw}); err != nil {
		_ = f.Close()
		return oops.Wrapf(err, "encode certificate")
	}

	if err := f.Close(); err != nil {
		return oops.Wrapf(err, "close cert file")
	}
	return nil
}

func saveKey(path string, key *ecdsa.PrivateKey) error {
	keyBytes, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return oops.Wrapf(err, "marshal key")
	}

	f, err := os.OpenFile(filepath.Clean(path), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return oops.With("path", path).Wrapf(err, "create key file")
	}

	if err := pem.Encode(f, &pem.Block{Type: "EC PRIVATE KEY", Bytes: keyBytes}); err != nil {
		_ = f.Close()
		return oops.Wrapf(err, "encode key")
	}

	if err := f.Close(); err != nil {
		return oops.Wrapf(err, "close key file")
	}
	return nil
}
