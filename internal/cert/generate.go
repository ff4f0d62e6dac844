package cert

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"net"
	"time"
)

const (
	organization    = "Orca"
	caCommonName    = "Orca Root CA"
	caValidity      = 10 * 365 * 24 * time.Hour
	leafValidity    = 365 * 24 * time.Hour
	DefaultKeyBits  = 4096
	serialNumberLen = 128
)

// Usage selects the extended key usages of a leaf certificate.
type Usage int

const (
	UsageServer Usage = 1 << iota
	UsageClient
)

func (u Usage) extKeyUsage() []x509.ExtKeyUsage {
	var usages []x509.ExtKeyUsage
	if u&UsageServer != 0 {
		usages = append(usages, x509.ExtKeyUsageServerAuth)
	}
	if u&UsageClient != 0 {
		usages = append(usages, x509.ExtKeyUsageClientAuth)
	}
	return usages
}

// LeafRequest describes one certificate to issue from the CA.
type LeafRequest struct {
	CommonName  string
	DomainNames []string
	IPAddresses []net.IP
	Usage       Usage
}

func GenerateCA(keyBits int) (*x509.Certificate, *rsa.PrivateKey, error) {
	caKey, err := rsa.GenerateKey(rand.Reader, keyBits)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate CA key: %w", err)
	}

	serialNumber, err := newSerialNumber()
	if err != nil {
		return nil, nil, err
	}

	caTemplate := &x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			Organization: []string{organization + " CA"},
			CommonName:   caCommonName,
		},
		NotBefore:             time.Now().Add(-time.Minute),
		NotAfter:              time.Now().Add(caValidity),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
		MaxPathLenZero:        true,
	}

	caCertBytes, err := x509.CreateCertificate(rand.Reader, caTemplate, caTemplate, &caKey.PublicKey, caKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create CA certificate: %w", err)
	}

	caCert, err := x509.ParseCertificate(caCertBytes)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse CA certificate: %w", err)
	}

	return caCert, caKey, nil
}

func GenerateLeaf(caCert *x509.Certificate, caKey *rsa.PrivateKey, keyBits int, req LeafRequest) (*x509.Certificate, *rsa.PrivateKey, error) {
	if req.Usage == 0 {
		return nil, nil, fmt.Errorf("certificate %q has no usage", req.CommonName)
	}

	leafKey, err := rsa.GenerateKey(rand.Reader, keyBits)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate key for %s: %w", req.CommonName, err)
	}

	serialNumber, err := newSerialNumber()
	if err != nil {
		return nil, nil, err
	}

	commonName := req.CommonName
	if commonName == "" && len(req.DomainNames) > 0 {
		commonName = req.DomainNames[0]
	}

	template := &x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			Organization: []string{organization},
			CommonName:   commonName,
		},
		NotBefore:             time.Now().Add(-time.Minute),
		NotAfter:              time.Now().Add(leafValidity),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:           req.Usage.extKeyUsage(),
		BasicConstraintsValid: true,
		DNSNames:              req.DomainNames,
		IPAddresses:           req.IPAddresses,
	}

	certBytes, err := x509.CreateCertificate(rand.Reader, template, caCert, &leafKey.PublicKey, caKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create certificate for %s: %w", commonName, err)
	}

	leafCert, err := x509.ParseCertificate(certBytes)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse certificate for %s: %w", commonName, err)
	}

	return leafCert, leafKey, nil
}

func newSerialNumber() (*big.Int, error) {
	serialNumber, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), serialNumberLen))
	if err != nil {
		return nil, fmt.Errorf("failed to generate serial number: %w", err)
	}
	return serialNumber, nil
}
