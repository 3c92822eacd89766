// Package dsn parses jdbc:<dialect>:<dialect-specific> connection URLs into
// their dialect, user/password, schema, and a Go database/sql-compatible
// DSN, following the original engine's Dbo connection manager.
package dsn

import (
	"fmt"
	"net/url"
	"strings"
)

// Info is a parsed connection URL.
type Info struct {
	Dialect  string
	URL      string // the full jdbc: URL, as given
	ShortURL string // URL with embedded credentials stripped, for logging
	User     string
	Password string
	Schema   string
	// DriverDSN is the URL/DSN shape the matching Go driver expects
	// (go-sql-driver/mysql, lib/pq, modernc.org/sqlite).
	DriverDSN string
}

// recognizedDialects are the dialects the jdbc: URL scheme supports, per the
// connection URL convention.
var recognizedDialects = map[string]bool{
	"sqlite": true, "h2": true, "postgresql": true, "mysql": true,
	"mssql": true, "oracle": true, "access": true,
}

// Parse resolves login (a raw jdbc:... URL) into an Info. Aliases are
// expanded by the caller before Parse is invoked.
func Parse(login string) (*Info, error) {
	login = strings.TrimSpace(login)
	if !strings.HasPrefix(login, "jdbc:") {
		return nil, fmt.Errorf("dsn: %q is not a jdbc: URL", login)
	}

	rest := strings.TrimPrefix(login, "jdbc:")
	parts := strings.SplitN(rest, ":", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("dsn: malformed jdbc URL %q", login)
	}
	dialect, specific := parts[0], parts[1]
	if dialect == "ucanaccess" {
		dialect = "access" // UCanAccess is the JDBC driver for Access files
	}

	if !recognizedDialects[dialect] {
		return nil, fmt.Errorf("dsn: unrecognized dialect %q", dialect)
	}

	switch dialect {
	case "sqlite":
		return &Info{
			Dialect: dialect, URL: login, ShortURL: login, Schema: "main",
			DriverDSN: specific,
		}, nil
	case "h2":
		return &Info{Dialect: dialect, URL: login, ShortURL: login, Schema: "PUBLIC", DriverDSN: specific}, nil
	case "access":
		return &Info{Dialect: dialect, URL: login, ShortURL: login, DriverDSN: specific}, nil
	case "postgresql":
		return parsePostgres(login, specific)
	case "mysql":
		return parseMySQL(login, specific)
	case "oracle":
		return parseOracle(login, specific)
	case "mssql":
		return parseMSSQL(login, specific)
	default:
		return nil, fmt.Errorf("dsn: unsupported dialect %q", dialect)
	}
}

func parsePostgres(login, specific string) (*Info, error) {
	parsed, err := url.Parse("postgresql:" + specific)
	if err != nil {
		return nil, fmt.Errorf("dsn: parse postgresql URL %q: %w", login, err)
	}
	q := parsed.Query()
	password := q.Get("password")
	user := q.Get("user")
	schema := q.Get("currentSchema")

	q.Del("password")
	q.Del("user")
	parsed.RawQuery = q.Encode()
	shortURL := "jdbc:" + strings.TrimPrefix(parsed.String(), "postgresql:")

	return &Info{
		Dialect: "postgresql", URL: login, ShortURL: shortURL,
		User: user, Password: password, Schema: schema,
		DriverDSN: "postgres://" + strings.TrimPrefix(specific, "//"),
	}, nil
}

func parseMySQL(login, specific string) (*Info, error) {
	parsed, err := url.Parse("mysql:" + specific)
	if err != nil {
		return nil, fmt.Errorf("dsn: parse mysql URL %q: %w", login, err)
	}
	q := parsed.Query()
	password := q.Get("password")
	user := q.Get("user")
	schema := strings.TrimPrefix(parsed.Path, "/")

	q.Del("password")
	q.Del("user")
	parsed.RawQuery = q.Encode()
	shortURL := "jdbc:" + strings.TrimPrefix(parsed.String(), "mysql:")

	userinfo := ""
	if user != "" {
		userinfo = user + ":" + password + "@"
	}
	driverDSN := fmt.Sprintf("%stcp(%s)%s", userinfo, parsed.Host, parsed.Path)

	return &Info{
		Dialect: "mysql", URL: login, ShortURL: shortURL,
		User: user, Password: password, Schema: schema, DriverDSN: driverDSN,
	}, nil
}

func parseOracle(login, specific string) (*Info, error) {
	creds := strings.TrimPrefix(specific, "thin:")
	slash := strings.Index(creds, "/")
	if slash < 0 {
		return nil, fmt.Errorf("dsn: malformed oracle URL %q", login)
	}
	schema := creds[:slash]
	rest := creds[slash+1:]
	at := strings.LastIndex(rest, "@")
	if at < 0 {
		return nil, fmt.Errorf("dsn: malformed oracle URL %q", login)
	}
	password := rest[:at]
	host := rest[at:]

	return &Info{
		Dialect: "oracle", URL: login,
		ShortURL: "jdbc:oracle:thin:" + host,
		User:     schema, Password: password, Schema: strings.ToUpper(schema),
		DriverDSN: specific,
	}, nil
}

func parseMSSQL(login, specific string) (*Info, error) {
	parsed, err := url.Parse("sqlserver:" + specific)
	if err != nil {
		return nil, fmt.Errorf("dsn: parse mssql URL %q: %w", login, err)
	}
	q := parsed.Query()
	password := q.Get("password")
	user := q.Get("user")

	q.Del("password")
	q.Del("user")
	parsed.RawQuery = q.Encode()
	shortURL := "jdbc:" + strings.TrimPrefix(parsed.String(), "sqlserver:")

	return &Info{
		Dialect: "mssql", URL: login, ShortURL: shortURL,
		User: user, Password: password, DriverDSN: "sqlserver://" + strings.TrimPrefix(specific, "//"),
	}, nil
}
