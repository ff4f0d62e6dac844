package main

import (
	"fmt"
	"io"
	"net"
	"path/filepath"

	"github.com/EternisAI/orca/internal/cert"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func certsCmd() *cobra.Command {
	var (
		dir     string
		domains []string
		ips     []string
		keyBits int
	)

	cmd := &cobra.Command{
		Use:   "certs",
		Short: "Generate a CA and one certificate per role, then print the matching tls sections",
		Long: `Generates <dir>/ca plus a certificate for the registry, agent and dispatcher.
Existing files are kept. The printed YAML can be pasted into each binary's application.yaml.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			addrs := make([]net.IP, 0, len(ips))
			for _, s := range ips {
				ip := net.ParseIP(s)
				if ip == nil {
					return fmt.Errorf("invalid IP address %q", s)
				}
				addrs = append(addrs, ip)
			}

			absDir, err := filepath.Abs(dir)
			if err != nil {
				return err
			}

			svc, err := cert.New(absDir, &cert.Options{
				KeyBits:     keyBits,
				DomainNames: domains,
				IPAddresses: addrs,
			})
			if err != nil {
				return err
			}

			return writeTLSSnippets(cmd.OutOrStdout(), svc)
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "certs", "output directory")
	cmd.Flags().StringSliceVar(&domains, "domains", nil, "DNS names for the leaf certificates (default localhost)")
	cmd.Flags().StringSliceVar(&ips, "ips", nil, "IP addresses for the leaf certificates (default 127.0.0.1,::1)")
	cmd.Flags().IntVar(&keyBits, "key-bits", cert.DefaultKeyBits, "RSA key size")

	return cmd
}

type tlsSnippet struct {
	Enabled    bool   `yaml:"enabled"`
	CertFile   string `yaml:"cert_file"`
	KeyFile    string `yaml:"key_file"`
	CAFile     string `yaml:"ca_file"`
	ClientAuth string `yaml:"client_auth,omitempty"`
}

func roleSnippet(svc *cert.Service, role, clientAuth string) tlsSnippet {
	return tlsSnippet{
		Enabled:    true,
		CertFile:   svc.CertPath(role),
		KeyFile:    svc.KeyPath(role),
		CAFile:     svc.CACertPath(),
		ClientAuth: clientAuth,
	}
}

// writeTLSSnippets prints one YAML document per binary. Listeners require
// client certificates since every role holds one signed by the same CA.
func writeTLSSnippets(w io.Writer, svc *cert.Service) error {
	docs := []struct {
		binary string
		doc    map[string]any
	}{
		{"orca-registry", map[string]any{
			"registry": map[string]any{"tls": roleSnippet(svc, cert.RoleRegistry, "require")},
		}},
		{"orca-agent", map[string]any{
			"agent": map[string]any{
				"registry_tls": roleSnippet(svc, cert.RoleAgent, ""),
				"tls":          roleSnippet(svc, cert.RoleAgent, "require"),
			},
		}},
		{"orca-dispatch / orca-api", map[string]any{
			"dispatch": map[string]any{"tls": roleSnippet(svc, cert.RoleDispatcher, "")},
		}},
	}

	for i, d := range docs {
		if i > 0 {
			fmt.Fprintln(w, "---")
		}
		fmt.Fprintf(w, "# %s\n", d.binary)
		out, err := yaml.Marshal(d.doc)
		if err != nil {
			return err
		}
		if _, err := w.Write(out); err != nil {
			return err
		}
	}
	return nil
}
