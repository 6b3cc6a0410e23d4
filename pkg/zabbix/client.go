package zabbix

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/MarshallWace/go-spnego"

	"github.com/mt-inside/fix-host-ips/pkg/bios"
)

const endpoint = "api_jsonrpc.php"

type Options struct {
	Timeout   time.Duration
	UserAgent string

	ServingCAs []*x509.Certificate
	Insecure   bool

	// SPNEGO for front-ends that sit behind Kerberos HTTP auth
	AuthKrb bool
}

type Client struct {
	b       bios.Bios
	url     string
	http    *http.Client
	timeout time.Duration
	ua      string

	nextID atomic.Uint64

	version   *Version
	auth      string
	fromLogin bool
}

func NewClient(b bios.Bios, server string, opts Options) (*Client, error) {
	u, err := apiURL(server)
	if err != nil {
		return nil, err
	}

	return &Client{
		b:       b,
		url:     u,
		http:    buildHttpClient(b, opts),
		timeout: opts.Timeout,
		ua:      opts.UserAgent,
	}, nil
}

// apiURL accepts either the front-end's base URL or the full endpoint URL.
func apiURL(server string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(server))
	if err != nil {
		return "", fmt.Errorf("invalid server URL %q: %w", server, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("invalid server URL %q: scheme must be http or https", server)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid server URL %q: no host", server)
	}
	if !strings.HasSuffix(u.Path, endpoint) {
		u.Path = strings.TrimSuffix(u.Path, "/") + "/" + endpoint
	}
	return u.String(), nil
}

func buildHttpClient(b bios.Bios, opts Options) *http.Client {
	var roots *x509.CertPool
	if len(opts.ServingCAs) > 0 {
		roots = x509.NewCertPool()
		for _, ca := range opts.ServingCAs {
			roots.AddCert(ca)
		}
	}

	// Always make a krb transport; wrapping a plain one later would copy its mutex.
	tr := &spnego.Transport{
		NoCanonicalize: true,
		Transport: http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   opts.Timeout,
				KeepAlive: 30 * time.Second,
				Control: func(network, address string, rawConn syscall.RawConn) error {
					b.Trace("Dialing", "addr", address)
					return nil
				},
			}).DialContext,
			TLSHandshakeTimeout:   opts.Timeout,
			ResponseHeaderTimeout: opts.Timeout,
			TLSClientConfig: &tls.Config{
				RootCAs:            roots, // nil means system roots
				InsecureSkipVerify: opts.Insecure,
			},
			ForceAttemptHTTP2: true,
		},
	}

	c := &http.Client{Transport: &tr.Transport}
	if opts.AuthKrb {
		c = &http.Client{Transport: tr}
	}
	return c
}

type request struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
	Auth    string      `json:"auth,omitempty"`
	ID      uint64      `json:"id"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result"`
	Error   *APIError       `json:"error"`
	ID      uint64          `json:"id"`
}

// bearer reports whether the session token goes in the Authorization header
// rather than the request body. The body field was deprecated in 6.4.
func (c *Client) bearer() bool {
	return c.version != nil && c.version.AtLeast(6, 4)
}

func (c *Client) call(ctx context.Context, method string, params interface{}, authed bool, result interface{}) error {
	if params == nil {
		params = []string{}
	}
	req := request{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      c.nextID.Add(1),
	}
	if authed && c.auth == "" {
		return fmt.Errorf("%s: not logged in", method)
	}
	if authed && !c.bearer() {
		req.Auth = c.auth
	}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("%s: encoding request: %w", method, err)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	httpReq.Header.Set("content-type", "application/json-rpc")
	if c.ua != "" {
		httpReq.Header.Set("user-agent", c.ua)
	}
	if authed && c.bearer() {
		httpReq.Header.Set("authorization", "Bearer "+c.auth)
	}

	c.b.Trace("API call", "method", method, "id", req.ID, "url", c.url)

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return fmt.Errorf("%s: reading response: %w", method, err)
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return fmt.Errorf("%s: HTTP %s", method, httpResp.Status)
	}

	var resp response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return fmt.Errorf("%s: decoding response: %w", method, err)
	}
	c.b.Dump("API response", resp)
	if resp.Error != nil {
		return fmt.Errorf("%s: %w", method, resp.Error)
	}
	if resp.ID != req.ID {
		return fmt.Errorf("%s: response id %d doesn't match request id %d", method, resp.ID, req.ID)
	}
	if result != nil {
		if err := json.Unmarshal(resp.Result, result); err != nil {
			return fmt.Errorf("%s: decoding result: %w", method, err)
		}
	}

	return nil
}

// Version probes apiinfo.version, which never takes authentication. The
// answer decides how later calls are shaped.
func (c *Client) Version(ctx context.Context) (Version, error) {
	if c.version != nil {
		return *c.version, nil
	}

	var s string
	if err := c.call(ctx, "apiinfo.version", nil, false, &s); err != nil {
		return Version{}, err
	}
	v, err := ParseVersion(s)
	if err != nil {
		return Version{}, err
	}
	c.version = &v
	c.b.Trace("Server API version", "version", v.String())

	return v, nil
}

func (c *Client) Login(ctx context.Context, user, password string) error {
	v, err := c.Version(ctx)
	if err != nil {
		return err
	}

	userField := "username"
	if !v.AtLeast(5, 4) {
		userField = "user"
	}
	params := map[string]string{
		userField:  user,
		"password": password,
	}

	var token string
	if err := c.call(ctx, "user.login", params, false, &token); err != nil {
		return err
	}
	if token == "" {
		return errors.New("user.login: empty session id")
	}
	c.auth = token
	c.fromLogin = true

	return nil
}

// SetToken authenticates with an API token instead of a login session.
func (c *Client) SetToken(token string) {
	c.auth = token
	c.fromLogin = false
}

// Logout ends a session made by Login; API tokens outlive the run.
func (c *Client) Logout(ctx context.Context) error {
	if !c.fromLogin {
		return nil
	}

	var ok bool
	if err := c.call(ctx, "user.logout", nil, true, &ok); err != nil {
		return err
	}
	c.auth = ""
	c.fromLogin = false

	return nil
}

// HostInterfaces fetches the main agent interface of every host.
func (c *Client) HostInterfaces(ctx context.Context) ([]HostInterface, error) {
	params := map[string]interface{}{
		"output":      []string{"interfaceid", "dns", "ip", "useip"},
		"selectHosts": []string{"host"},
		"filter": map[string]interface{}{
			"main": 1,
			"type": int(Agent),
		},
	}

	var raws []rawHostInterface
	if err := c.call(ctx, "hostinterface.get", params, true, &raws); err != nil {
		return nil, err
	}

	his := make([]HostInterface, 0, len(raws))
	for _, r := range raws {
		his = append(his, r.cook())
	}
	return his, nil
}

func (c *Client) UpdateInterfaceIP(ctx context.Context, id, ip string) error {
	params := map[string]string{
		"interfaceid": id,
		"ip":          ip,
	}

	var res struct {
		InterfaceIDs []json.Number `json:"interfaceids"`
	}
	if err := c.call(ctx, "hostinterface.update", params, true, &res); err != nil {
		return err
	}
	for _, updated := range res.InterfaceIDs {
		if updated.String() == id {
			return nil
		}
	}
	return fmt.Errorf("hostinterface.update: interface %s not in updated set %v", id, res.InterfaceIDs)
}
