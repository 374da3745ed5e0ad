package store

import (
	"fmt"
	"net/url"
	"strings"
)

// Connection is a store URL split into the address and the basic-auth
// credentials it embeds.
type Connection struct {
	Address  string
	Host     string
	Username string
	Password string
}

// ParseConnection parses a connection string such as https://user:pass@es:9200.
func ParseConnection(raw string) (Connection, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return Connection{}, fmt.Errorf("parse store url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return Connection{}, fmt.Errorf("parse store url: unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return Connection{}, fmt.Errorf("parse store url: missing host")
	}

	conn := Connection{Host: u.Host}
	if u.User != nil {
		conn.Username = u.User.Username()
		conn.Password, _ = u.User.Password()
	}

	u.User = nil
	conn.Address = strings.TrimRight(u.String(), "/")
	return conn, nil
}

// Label is host[:port], followed by " as <user>" when credentials are embedded.
func (c Connection) Label() string {
	if c.Username == "" {
		return c.Host
	}
	return c.Host + " as " + c.Username
}
