package cert

import (
	"crypto/rsa"
	"crypto/x509"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
)

// Roles that get a certificate in a generated PKI bundle.
const (
	RoleRegistry   = "registry"
	RoleAgent      = "agent"
	RoleDispatcher = "dispatcher"
)

var roleUsage = map[string]Usage{
	RoleRegistry:   UsageServer,
	RoleAgent:      UsageServer | UsageClient,
	RoleDispatcher: UsageClient,
}

// Service lays out a CA and one certificate per role under Dir:
//
//	<dir>/ca/ca-cert.pem, <dir>/ca/ca-key.pem
//	<dir>/<role>/<role>-cert.pem, <dir>/<role>/<role>-key.pem
//
// Existing files are reused, so running it twice is harmless.
type Service struct {
	Dir         string
	KeyBits     int
	DomainNames []string
	IPAddresses []net.IP
}

type Options struct {
	KeyBits     int
	DomainNames []string
	IPAddresses []net.IP
}

func New(dir string, opts *Options) (*Service, error) {
	s := &Service{
		Dir:     dir,
		KeyBits: DefaultKeyBits,
	}

	if opts != nil {
		if opts.KeyBits > 0 {
			s.KeyBits = opts.KeyBits
		}
		s.DomainNames = opts.DomainNames
		s.IPAddresses = opts.IPAddresses
	}

	if len(s.DomainNames) == 0 {
		s.DomainNames = []string{"localhost"}
	}

	if len(s.IPAddresses) == 0 {
		s.IPAddresses = []net.IP{net.ParseIP("127.0.0.1"), net.ParseIP("::1")}
	}

	if err := s.ensureCertificates(); err != nil {
		return nil, fmt.Errorf("failed to ensure certificates: %w", err)
	}

	return s, nil
}

func (s *Service) CACertPath() string {
	return filepath.Join(s.Dir, "ca", "ca-cert.pem")
}

func (s *Service) CAKeyPath() string {
	return filepath.Join(s.Dir, "ca", "ca-key.pem")
}

func (s *Service) CertPath(role string) string {
	return filepath.Join(s.Dir, role, role+"-cert.pem")
}

func (s *Service) KeyPath(role string) string {
	return filepath.Join(s.Dir, role, role+"-key.pem")
}

func (s *Service) ensureCertificates() error {
	var caCert *x509.Certificate
	var caKey *rsa.PrivateKey

	if !fileExists(s.CACertPath()) || !fileExists(s.CAKeyPath()) {
		slog.Info("CA certificate not found, generating new CA", "cert_path", s.CACertPath())

		var err error
		caCert, caKey, err = GenerateCA(s.KeyBits)
		if err != nil {
			slog.Error("Failed to generate CA certificate", "error", err)
			return err
		}

		if err := s.writePair(caCert, caKey, s.CACertPath(), s.CAKeyPath()); err != nil {
			return err
		}

		slog.Info("Generated CA certificate", "cert_path", s.CACertPath(), "key_path", s.CAKeyPath())
	} else {
		slog.Debug("Using existing CA certificate", "cert_path", s.CACertPath())

		var err error
		caCert, caKey, err = loadCA(s.CACertPath(), s.CAKeyPath())
		if err != nil {
			slog.Error("Failed to load existing CA certificate", "error", err)
			return fmt.Errorf("failed to load existing CA certificate: %w", err)
		}
	}

	for _, role := range []string{RoleRegistry, RoleAgent, RoleDispatcher} {
		certPath, keyPath := s.CertPath(role), s.KeyPath(role)
		if fileExists(certPath) && fileExists(keyPath) {
			slog.Debug("Using existing certificate", "role", role, "cert_path", certPath)
			continue
		}

		leafCert, leafKey, err := GenerateLeaf(caCert, caKey, s.KeyBits, LeafRequest{
			CommonName:  "orca-" + role,
			DomainNames: s.DomainNames,
			IPAddresses: s.IPAddresses,
			Usage:       roleUsage[role],
		})
		if err != nil {
			slog.Error("Failed to generate certificate", "role", role, "error", err)
			return err
		}

		if err := s.writePair(leafCert, leafKey, certPath, keyPath); err != nil {
			return err
		}

		slog.Info("Generated certificate", "role", role, "cert_path", certPath, "key_path", keyPath)
	}

	return nil
}

func (s *Service) writePair(cert *x509.Certificate, key *rsa.PrivateKey, certPath, keyPath string) error {
	if err := ensureDirectory(certPath); err != nil {
		return err
	}
	if err := writeCertToFile(cert, certPath); err != nil {
		slog.Error("Failed to write certificate", "error", err, "path", certPath)
		return err
	}
	if err := ensureDirectory(keyPath); err != nil {
		return err
	}
	if err := writeKeyToFile(key, keyPath); err != nil {
		slog.Error("Failed to write key", "error", err, "path", keyPath)
		return err
	}
	return nil
}

func ensureDirectory(filePath string) error {
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		slog.Error("Failed to create directory", "error", err, "path", dir)
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}
