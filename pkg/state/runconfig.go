package state

import (
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type ResolverKind string

const (
	ResolverSystem ResolverKind = "system"
	ResolverManual ResolverKind = "manual"
)

type RunConfig struct {
	Server  string
	Timeout time.Duration

	DryRun      bool
	FailOnError bool

	Resolver   ResolverKind
	ResolvConf string
	DNSSEC     bool
	CheckPTR   bool

	TlsServingCAs []*x509.Certificate
	TlsInsecure   bool
	AuthKrb       bool

	User         string
	Password     string
	PasswordFile string
	APIToken     string

	Colour    bool
	Verbosity int
}

func RunConfigFromViper(v *viper.Viper) (*RunConfig, error) {
	rc := &RunConfig{
		Server:       strings.TrimSpace(v.GetString("server")),
		Timeout:      v.GetDuration("timeout"),
		DryRun:       v.GetBool("dry-run"),
		FailOnError:  v.GetBool("fail-on-error"),
		Resolver:     ResolverKind(strings.ToLower(v.GetString("resolver"))),
		ResolvConf:   v.GetString("resolv-conf"),
		DNSSEC:       v.GetBool("dnssec"),
		CheckPTR:     v.GetBool("check-ptr"),
		TlsInsecure:  v.GetBool("insecure"),
		AuthKrb:      v.GetBool("auth-kerberos"),
		User:         v.GetString("user"),
		Password:     v.GetString("password"),
		PasswordFile: v.GetString("password-file"),
		APIToken:     strings.TrimSpace(v.GetString("api-token")),
		Colour:       !v.GetBool("no-color"),
		Verbosity:    v.GetInt("verbose"),
	}

	if rc.Server == "" {
		return nil, errors.New("no server given; set --server")
	}
	if rc.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive, got %s", rc.Timeout)
	}
	switch rc.Resolver {
	case ResolverSystem, ResolverManual:
	case "":
		rc.Resolver = ResolverSystem
	default:
		return nil, fmt.Errorf("unknown resolver %q; want %q or %q", rc.Resolver, ResolverSystem, ResolverManual)
	}

	/* Load TLS material */

	for _, caPath := range v.GetStringSlice("ca") {
		bytes, err := os.ReadFile(caPath)
		if err != nil {
			return nil, err
		}
		cas, err := parseCertificates(bytes)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", caPath, err)
		}
		rc.TlsServingCAs = append(rc.TlsServingCAs, cas...)
	}

	return rc, nil
}

func parseCertificates(bytes []byte) ([]*x509.Certificate, error) {
	var certs []*x509.Certificate
	for {
		var block *pem.Block
		block, bytes = pem.Decode(bytes)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, err
		}
		certs = append(certs, cert)
	}
	if len(certs) == 0 {
		return nil, errors.New("no PEM certificates found")
	}
	return certs, nil
}
