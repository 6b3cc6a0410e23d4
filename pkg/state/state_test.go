package state

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func baseViper() *viper.Viper {
	v := viper.New()
	v.Set("server", "https://zabbix.example.com/zabbix")
	v.Set("timeout", 5*time.Second)
	return v
}

func TestRunConfigDefaults(t *testing.T) {
	rc, err := RunConfigFromViper(baseViper())
	require.NoError(t, err)

	require.Equal(t, "https://zabbix.example.com/zabbix", rc.Server)
	require.Equal(t, ResolverSystem, rc.Resolver)
	require.True(t, rc.Colour)
	require.False(t, rc.DryRun)
}

func TestRunConfigFromConfigFile(t *testing.T) {
	fs := pflag.NewFlagSet("fix-host-ips", pflag.ContinueOnError)
	fs.String("server", "", "")
	fs.Duration("timeout", 5*time.Second, "")
	fs.Bool("no-color", false, "")
	fs.CountP("verbose", "v", "")

	v := viper.New()
	require.NoError(t, v.BindPFlags(fs))

	path := filepath.Join(t.TempDir(), "fix-host-ips.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: https://zabbix.example.com/zabbix\nno-color: true\nverbose: 2\n"), 0o600))
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	rc, err := RunConfigFromViper(v)
	require.NoError(t, err)
	require.Equal(t, "https://zabbix.example.com/zabbix", rc.Server)
	require.False(t, rc.Colour)
	require.Equal(t, 2, rc.Verbosity)

	require.NoError(t, fs.Parse([]string{"-v"}))
	rc, err = RunConfigFromViper(v)
	require.NoError(t, err)
	require.Equal(t, 1, rc.Verbosity)
}

func TestRunConfigValidation(t *testing.T) {
	v := baseViper()
	v.Set("server", "")
	_, err := RunConfigFromViper(v)
	require.ErrorContains(t, err, "--server")

	v = baseViper()
	v.Set("resolver", "carrier-pigeon")
	_, err = RunConfigFromViper(v)
	require.ErrorContains(t, err, "unknown resolver")

	v = baseViper()
	v.Set("resolver", "Manual")
	rc, err := RunConfigFromViper(v)
	require.NoError(t, err)
	require.Equal(t, ResolverManual, rc.Resolver)

	v = baseViper()
	v.Set("timeout", 0)
	_, err = RunConfigFromViper(v)
	require.Error(t, err)
}

func TestRunConfigLoadsCAs(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "test CA"},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "ca.pem")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o600))

	v := baseViper()
	v.Set("ca", []string{path})
	rc, err := RunConfigFromViper(v)
	require.NoError(t, err)
	require.Len(t, rc.TlsServingCAs, 1)
	require.Equal(t, "test CA", rc.TlsServingCAs[0].Subject.CommonName)

	junk := filepath.Join(t.TempDir(), "junk.pem")
	require.NoError(t, os.WriteFile(junk, []byte("not a cert"), 0o600))
	v.Set("ca", []string{junk})
	_, err = RunConfigFromViper(v)
	require.ErrorContains(t, err, "no PEM certificates found")
}

type fakePrompter struct {
	answers map[bool]string
	asked   []string
}

func (f *fakePrompter) Prompt(label string, secret bool) (string, error) {
	f.asked = append(f.asked, label)
	return f.answers[secret], nil
}

func TestCredentialsFromConfig(t *testing.T) {
	rc := &RunConfig{User: "Admin", Password: "zabbix"}
	p := &fakePrompter{}

	creds, err := rc.Credentials(p)
	require.NoError(t, err)
	require.Equal(t, Credentials{User: "Admin", Password: "zabbix"}, creds)
	require.Empty(t, p.asked)
}

func TestCredentialsTokenWins(t *testing.T) {
	rc := &RunConfig{User: "Admin", APIToken: "tok"}

	creds, err := rc.Credentials(nil)
	require.NoError(t, err)
	require.Equal(t, Credentials{APIToken: "tok"}, creds)
}

func TestCredentialsPrompted(t *testing.T) {
	rc := &RunConfig{}
	p := &fakePrompter{answers: map[bool]string{false: "Admin", true: "zabbix"}}

	creds, err := rc.Credentials(p)
	require.NoError(t, err)
	require.Equal(t, Credentials{User: "Admin", Password: "zabbix"}, creds)
	require.Equal(t, []string{"Zabbix Username: ", "Zabbix Password: "}, p.asked)
}

func TestCredentialsPasswordFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pw")
	require.NoError(t, os.WriteFile(path, []byte("s3cret\n"), 0o600))
	rc := &RunConfig{User: "Admin", PasswordFile: path}

	creds, err := rc.Credentials(nil)
	require.NoError(t, err)
	require.Equal(t, "s3cret", creds.Password)
}

func TestCredentialsNobodyToAsk(t *testing.T) {
	rc := &RunConfig{User: "Admin"}

	_, err := rc.Credentials(nil)
	require.True(t, errors.Is(err, ErrNoCredentials))
}
