package utils

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/jdx/go-netrc"
)

type NetrcMachine struct {
	Login    string
	Password string
}

// Netrc holds credentials parsed from a .netrc file.
type Netrc struct {
	n *netrc.Netrc
}

// DefaultNetrcPath honours $NETRC, then ~/.netrc.
func DefaultNetrcPath() string {
	if p := os.Getenv("NETRC"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".netrc")
}

func LoadNetrc(path string) (*Netrc, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	n, err := netrc.Parse(path)
	if err != nil {
		return nil, err
	}
	return &Netrc{n: n}, nil
}

// Lookup returns credentials for host, falling back to the default entry.
// Entries without both a login and a password are ignored.
func (n *Netrc) Lookup(host string) (NetrcMachine, bool) {
	if n == nil || n.n == nil {
		return NetrcMachine{}, false
	}
	var m *netrc.Machine
	for _, name := range []string{strings.ToLower(host), "default"} {
		if m = n.n.Machine(name); m != nil {
			break
		}
	}
	if m == nil {
		return NetrcMachine{}, false
	}
	login, password := m.Get("login"), m.Get("password")
	if login == "" || password == "" {
		return NetrcMachine{}, false
	}
	return NetrcMachine{Login: login, Password: password}, true
}
