package transport

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
)

var ErrTLSMaterial = errors.New("invalid TLS material")

// TLSConfig is the on-disk TLS material for one role, as read from application.yaml.
type TLSConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	CertFile           string `mapstructure:"cert_file"`
	KeyFile            string `mapstructure:"key_file"`
	CAFile             string `mapstructure:"ca_file"`
	ClientAuth         string `mapstructure:"client_auth"`
	ServerNameOverride string `mapstructure:"server_name_override"`
}

// LoadServerConfig builds the TLS config for a listener. When clientAuth asks
// for client certificates they are verified against caFile.
func LoadServerConfig(certFile, keyFile, caFile string, clientAuth tls.ClientAuthType) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load server certificate: %v", ErrTLSMaterial, err)
	}

	config := &tls.Config{
		Certificates: []tls.Certificate{cert},
		ClientAuth:   clientAuth,
		MinVersion:   tls.VersionTLS12,
	}

	if clientAuth != tls.NoClientCert {
		caPool, err := loadCAPool(caFile)
		if err != nil {
			return nil, err
		}
		config.ClientCAs = caPool
	}

	return config, nil
}

// LoadClientConfig builds the TLS config for an outbound connection. The
// server is verified against caFile, or the platform trust store when caFile is
// empty. A client certificate is presented only when certFile is set.
func LoadClientConfig(certFile, keyFile, caFile, serverNameOverride string) (*tls.Config, error) {
	config := &tls.Config{
		MinVersion: tls.VersionTLS12,
	}

	if certFile != "" || keyFile != "" {
		cert, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to load client certificate: %v", ErrTLSMaterial, err)
		}
		config.Certificates = []tls.Certificate{cert}
	}

	if caFile != "" {
		caPool, err := loadCAPool(caFile)
		if err != nil {
			return nil, err
		}
		config.RootCAs = caPool
	} else {
		systemPool, err := x509.SystemCertPool()
		if err != nil {
			return nil, fmt.Errorf("%w: failed to load platform trust store: %v", ErrTLSMaterial, err)
		}
		config.RootCAs = systemPool
	}

	if serverNameOverride != "" {
		config.ServerName = serverNameOverride
	}

	return config, nil
}

func ParseClientAuthType(authType string) (tls.ClientAuthType, error) {
	switch authType {
	case "none":
		return tls.NoClientCert, nil
	case "request":
		return tls.RequestClientCert, nil
	case "", "require":
		return tls.RequireAndVerifyClientCert, nil
	default:
		return tls.NoClientCert, fmt.Errorf("invalid client auth type: %s (valid: none, request, require)", authType)
	}
}

// ServerTLS returns nil when TLS is disabled.
func (c TLSConfig) ServerTLS() (*tls.Config, error) {
	if !c.Enabled {
		return nil, nil
	}
	clientAuth, err := ParseClientAuthType(c.ClientAuth)
	if err != nil {
		return nil, err
	}
	return LoadServerConfig(c.CertFile, c.KeyFile, c.CAFile, clientAuth)
}

// ClientTLS returns nil when TLS is disabled.
func (c TLSConfig) ClientTLS() (*tls.Config, error) {
	if !c.Enabled {
		return nil, nil
	}
	return LoadClientConfig(c.CertFile, c.KeyFile, c.CAFile, c.ServerNameOverride)
}

func loadCAPool(caFile string) (*x509.CertPool, error) {
	if caFile == "" {
		return nil, fmt.Errorf("%w: CA file is required", ErrTLSMaterial)
	}
	ca, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read CA certificate: %v", ErrTLSMaterial, err)
	}
	caPool := x509.NewCertPool()
	if !caPool.AppendCertsFromPEM(ca) {
		return nil, fmt.Errorf("%w: failed to append CA certificate", ErrTLSMaterial)
	}
	return caPool, nil
}
