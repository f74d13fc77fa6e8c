package telenet

import (
	"net"
	"net/url"

	"github.com/juju/errors"
)

func addrString(a net.Addr) string {
	if a == nil {
		return ""
	}
	return a.String()
}

// tcp://host:port, tls://host:port, unix:///path/to.sock
func parseURI(s string) (scheme, hostport string, err error) {
	u, err := url.ParseRequestURI(s)
	if err != nil {
		return "", "", errors.Annotatef(err, "url=%s", s)
	}
	switch u.Scheme {
	case "unix":
		if u.Path == "" {
			return "", "", errors.NotValidf("url=%s empty unix path", s)
		}
		return u.Scheme, u.Path, nil
	case "":
		return "", "", errors.NotValidf("url=%s empty scheme", s)
	}
	return u.Scheme, u.Host, nil
}

// ValidateURL checks URL is acceptable for Listen or Dial.
func ValidateURL(s string) error {
	scheme, _, err := parseURI(s)
	if err != nil {
		return err
	}
	switch scheme {
	case "tcp", "tls", "unix":
		return nil
	}
	return errors.NotSupportedf("url=%s scheme=%s", s, scheme)
}
