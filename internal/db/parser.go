package db

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/vvka-141/dbretry/pkg/dbretry"
)

// NormalizeDSN converts an ADO.NET style connection string
// (Host=localhost;Port=5432;Database=app;Username=u;Password=p) to a
// PostgreSQL URI. URIs and libpq keyword/value strings are returned unchanged.
func NormalizeDSN(dsn string) (string, error) {
	if !isADONET(dsn) {
		return dsn, nil
	}

	u := &url.URL{Scheme: "postgresql", Path: "/"}
	host, port := "localhost", 5432
	var user, password string
	query := url.Values{}

	for _, part := range strings.Split(dsn, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			return "", fmt.Errorf("malformed ADO.NET segment %q: %w", part, dbretry.ErrInvalidConfig)
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		switch key {
		case "host", "server":
			host = value
		case "port":
			p, err := strconv.Atoi(value)
			if err != nil {
				return "", fmt.Errorf("invalid port %q in ADO.NET string: %w", value, dbretry.ErrInvalidConfig)
			}
			port = p
		case "database", "initial catalog":
			u.Path = "/" + value
		case "username", "user id", "uid":
			user = value
		case "password", "pwd":
			password = value
		case "sslmode", "ssl mode":
			query.Set("sslmode", strings.ToLower(value))
		case "application name", "applicationname":
			query.Set("application_name", value)
		case "timeout", "connect timeout", "connecttimeout":
			query.Set("connect_timeout", value)
		default:
			query.Set(key, value)
		}
	}

	u.Host = net.JoinHostPort(host, strconv.Itoa(port))
	switch {
	case user != "" && password != "":
		u.User = url.UserPassword(user, password)
	case user != "":
		u.User = url.User(user)
	}
	u.RawQuery = query.Encode()
	return u.String(), nil
}

// isADONET distinguishes "Key=Value;Key=Value" from URIs and libpq's
// space-separated keyword/value form.
func isADONET(dsn string) bool {
	if strings.Contains(dsn, "://") {
		return false
	}
	return strings.Contains(dsn, "=") && strings.Contains(dsn, ";")
}
