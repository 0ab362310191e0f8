package certs

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"time"
)

const (
	pemTypeCertificate = "CERTIFICATE"
	pemTypePrivateKey  = "PRIVATE KEY"
	pemTypePublicKey   = "EC PUBLIC KEY"

	validity = 365 * 24 * time.Hour
)

// Certificate is the client certificate an account presents to providers.
// All fields are PEM encoded.
type Certificate struct {
	Address string `json:"address"`
	Cert    []byte `json:"cert"`
	Key     []byte `json:"key"`
	PubKey  []byte `json:"pubkey"`
}

// TLSCertificate returns the certificate as a client credential.
func (c *Certificate) TLSCertificate() (tls.Certificate, error) {
	pair, err := tls.X509KeyPair(c.Cert, c.Key)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed load certificate of %s, error: %w", c.Address, err)
	}
	return pair, nil
}

// Generate creates a self signed P-256 client certificate for address.
func Generate(address string, now time.Time) (*Certificate, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed generate key, error: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("failed generate serial, error: %w", err)
	}

	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			CommonName:   address,
			SerialNumber: serial.String(),
		},
		Issuer: pkix.Name{
			CommonName: address,
		},
		NotBefore:             now.Add(-time.Minute),
		NotAfter:              now.Add(validity),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment | x509.KeyUsageDataEncipherment,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
		BasicConstraintsValid: true,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return nil, fmt.Errorf("failed create certificate, error: %w", err)
	}
	keyDer, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("failed encode private key, error: %w", err)
	}
	pubDer, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("failed encode public key, error: %w", err)
	}

	return &Certificate{
		Address: address,
		Cert:    pem.EncodeToMemory(&pem.Block{Type: pemTypeCertificate, Bytes: der}),
		Key:     pem.EncodeToMemory(&pem.Block{Type: pemTypePrivateKey, Bytes: keyDer}),
		PubKey:  pem.EncodeToMemory(&pem.Block{Type: pemTypePublicKey, Bytes: pubDer}),
	}, nil
}
