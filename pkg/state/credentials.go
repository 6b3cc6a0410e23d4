package state

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

type Credentials struct {
	User     string
	Password string
	// If set, User and Password are ignored
	APIToken string
}

// Prompter asks the person running us for something.
type Prompter interface {
	Prompt(label string, secret bool) (string, error)
}

var ErrNoCredentials = errors.New("no credentials: give --user and --password (or --api-token), or run from a terminal")

// Credentials fills in whatever the config doesn't give from the prompter.
// prompter may be nil when there's nobody to ask.
func (rc *RunConfig) Credentials(prompter Prompter) (Credentials, error) {
	if rc.APIToken != "" {
		return Credentials{APIToken: rc.APIToken}, nil
	}

	creds := Credentials{User: rc.User, Password: rc.Password}

	if creds.Password == "" && rc.PasswordFile != "" {
		bytes, err := os.ReadFile(rc.PasswordFile)
		if err != nil {
			return Credentials{}, err
		}
		creds.Password = strings.TrimRight(string(bytes), "\r\n")
	}

	if creds.User == "" {
		if prompter == nil {
			return Credentials{}, ErrNoCredentials
		}
		u, err := prompter.Prompt("Zabbix Username: ", false)
		if err != nil {
			return Credentials{}, fmt.Errorf("reading username: %w", err)
		}
		creds.User = u
	}
	if creds.Password == "" {
		if prompter == nil {
			return Credentials{}, ErrNoCredentials
		}
		p, err := prompter.Prompt("Zabbix Password: ", true)
		if err != nil {
			return Credentials{}, fmt.Errorf("reading password: %w", err)
		}
		creds.Password = p
	}

	if creds.User == "" {
		return Credentials{}, ErrNoCredentials
	}
	return creds, nil
}

type TermPrompter struct {
	in  *os.File
	r   *bufio.Reader
	out io.Writer
}

// NewTermPrompter returns nil if in isn't a terminal.
func NewTermPrompter(in *os.File, out io.Writer) Prompter {
	if !term.IsTerminal(int(in.Fd())) {
		return nil
	}
	return &TermPrompter{in: in, r: bufio.NewReader(in), out: out}
}

func (p *TermPrompter) Prompt(label string, secret bool) (string, error) {
	fmt.Fprint(p.out, label)

	if secret {
		bytes, err := term.ReadPassword(int(p.in.Fd()))
		fmt.Fprintln(p.out)
		if err != nil {
			return "", err
		}
		return string(bytes), nil
	}

	line, err := p.r.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
