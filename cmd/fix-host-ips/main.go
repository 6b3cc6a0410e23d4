package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/logrusorgru/aurora/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/mt-inside/fix-host-ips/internal/build"
	"github.com/mt-inside/fix-host-ips/pkg/bios"
	"github.com/mt-inside/fix-host-ips/pkg/reconcile"
	"github.com/mt-inside/fix-host-ips/pkg/resolve"
	"github.com/mt-inside/fix-host-ips/pkg/state"
	"github.com/mt-inside/fix-host-ips/pkg/zabbix"

	"github.com/mt-inside/http-log/pkg/output"
)

func init() {
	spew.Config.DisableMethods = true
	spew.Config.DisablePointerMethods = true
}

func main() {

	cmd := &cobra.Command{
		Use:     build.Name,
		Short:   "Make the IPs stored against Zabbix host interfaces match what their DNS names resolve to",
		Args:    cobra.NoArgs,
		Version: build.NameAndVersion(),
		Run:     appMain,
	}

	cmd.Flags().String("config", "", "Config file (default $HOME/.config/fix-host-ips.yaml)")
	cmd.Flags().StringP("server", "s", "", "Zabbix front-end URL, eg https://zabbix.example.com/zabbix")
	cmd.Flags().StringP("user", "u", "", "Zabbix username (prompted for if not given)")
	cmd.Flags().String("password", "", "Zabbix password (prompted for if not given; prefer the environment or --password-file)")
	cmd.Flags().String("password-file", "", "Path to a file containing the Zabbix password")
	cmd.Flags().String("api-token", "", "Zabbix API token, instead of username and password")
	cmd.Flags().DurationP("timeout", "t", 5*time.Second, "Timeout for each individual network operation")
	cmd.Flags().BoolP("dry-run", "n", false, "Report wrong IPs but don't change them")
	cmd.Flags().Bool("fail-on-error", false, "Exit non-zero if any lookup or update failed")
	cmd.Flags().String("resolver", string(state.ResolverSystem), "DNS resolver: system (Go/libc, honours /etc/hosts) or manual (queries resolv.conf nameservers directly)")
	cmd.Flags().String("resolv-conf", "/etc/resolv.conf", "resolv.conf to take nameservers from, for --resolver=manual and --dnssec")
	cmd.Flags().Bool("dnssec", false, "Only trust names whose A records validate with DNSSEC")
	cmd.Flags().Bool("check-ptr", false, "Warn when an interface's address doesn't reverse-resolve to its name")
	cmd.Flags().StringSliceP("ca", "C", nil, "Path to a CA certificate file to trust for the Zabbix server (repeatable)")
	cmd.Flags().BoolP("insecure", "k", false, "Don't verify the Zabbix server's TLS certificate")
	cmd.Flags().Bool("auth-kerberos", false, "Negotiate Kerberos HTTP auth with the Zabbix front-end")
	cmd.Flags().Bool("no-color", false, "Don't colour output")
	cmd.Flags().CountP("verbose", "v", "Log verbosity; repeat for more")

	err := viper.BindPFlags(cmd.Flags())
	if err != nil {
		panic(errors.New("can't set up flags"))
	}
	viper.SetEnvPrefix("FIX_HOST_IPS")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	err = cmd.Execute()
	if err != nil {
		fmt.Println("error during execution:", err)
		os.Exit(1)
	}
}

func appMain(cmd *cobra.Command, args []string) {

	tty := term.IsTerminal(int(os.Stdout.Fd()))

	// Only flags and env are known until the config file is read.
	s := output.NewTtyStyler(aurora.NewAurora(tty && !viper.GetBool("no-color")))
	b := bios.NewBios(s, os.Stdout, bios.NewLogger(viper.GetInt("verbose")))

	b.Unwrap(readConfigFile(viper.GetString("config")))

	rc, err := state.RunConfigFromViper(viper.GetViper())
	b.Unwrap(err)

	s = output.NewTtyStyler(aurora.NewAurora(tty && rc.Colour))
	b = bios.NewBios(s, os.Stdout, bios.NewLogger(rc.Verbosity))
	if f := viper.ConfigFileUsed(); f != "" {
		b.Trace("Read config file", "path", f)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	/* Session */

	client, err := zabbix.NewClient(b, rc.Server, zabbix.Options{
		Timeout:    rc.Timeout,
		UserAgent:  build.NameAndVersion(),
		ServingCAs: rc.TlsServingCAs,
		Insecure:   rc.TlsInsecure,
		AuthKrb:    rc.AuthKrb,
	})
	b.Unwrap(err)

	version, err := client.Version(ctx)
	b.Unwrap(err)
	b.PrintInfo(fmt.Sprintf("Zabbix API %s at %s", s.Noun(version.String()), s.Addr(rc.Server)))

	creds, err := rc.Credentials(state.NewTermPrompter(os.Stdin, os.Stderr))
	b.Unwrap(err)
	if creds.APIToken != "" {
		client.SetToken(creds.APIToken)
	} else {
		b.Unwrap(client.Login(ctx, creds.User, creds.Password))
	}

	/* Resolver */

	resolver, reverse := buildResolver(b, rc)

	/* Reconcile */

	if rc.DryRun {
		b.PrintInfo("Dry run; no changes will be made")
	}
	b.Banner("Interfaces")

	r := reconcile.New(s, b, client, resolver, reconcile.Options{
		DryRun:  rc.DryRun,
		Reverse: reverse,
	})
	results, runErr := r.Run(ctx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		logout(b, client)
		b.Unwrap(runErr)
	}

	sum := reconcile.Summarise(results)
	reconcile.PrintSummary(s, b, sum)

	logout(b, client)

	/* Fin */

	fmt.Println()

	if runErr != nil {
		b.PrintWarn("Interrupted; not all interfaces were checked")
		os.Exit(130)
	}
	if rc.FailOnError && sum.Failures() > 0 {
		os.Exit(2)
	}
	os.Exit(0)
}

func readConfigFile(path string) error {
	if path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName(build.Name)
		viper.AddConfigPath("$HOME/.config")
	}

	err := viper.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}

	return nil
}

func buildResolver(b bios.Bios, rc *state.RunConfig) (resolve.Resolver, resolve.ReverseResolver) {
	var resolver resolve.Resolver
	var reverse resolve.ReverseResolver

	switch rc.Resolver {
	case state.ResolverManual:
		m, err := resolve.NewManual(b, rc.ResolvConf, rc.Timeout)
		b.Unwrap(err)
		resolver, reverse = m, m
	default:
		b.Trace("System resolver", "kind", resolve.DnsResolverName)
		sys := resolve.NewSystem(rc.Timeout)
		resolver, reverse = sys, sys
	}

	if rc.DNSSEC {
		d, err := resolve.NewDNSSEC(resolver, rc.ResolvConf)
		b.Unwrap(err)
		resolver = d
	}

	if !rc.CheckPTR {
		reverse = nil
	}

	return resolver, reverse
}

// Best-effort; the work is done by now.
func logout(b bios.Bios, client *zabbix.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	b.CheckWarn(client.Logout(ctx))
}
