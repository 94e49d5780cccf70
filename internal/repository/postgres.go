package repository

import (
	"database/sql"
	"net"
	"net/url"
	"strconv"

	_ "github.com/lib/pq"

	"github.com/opensource-finance/tenderwatch/internal/domain"
)

// postgresURL renders cfg as a libpq connection URL. Unset fields fall back
// to a local server with TLS off.
func postgresURL(cfg domain.RepositoryConfig) *url.URL {
	host, port, db, sslmode := cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresDB, cfg.PostgresSSLMode
	if host == "" {
		host = "localhost"
	}
	if port == 0 {
		port = 5432
	}
	if db == "" {
		db = "tenderwatch"
	}
	if sslmode == "" {
		sslmode = "disable"
	}

	u := &url.URL{
		Scheme:   "postgres",
		Host:     net.JoinHostPort(host, strconv.Itoa(port)),
		Path:     "/" + db,
		RawQuery: url.Values{"sslmode": {sslmode}, "connect_timeout": {"10"}}.Encode(),
	}
	switch {
	case cfg.PostgresUser != "" && cfg.PostgresPassword != "":
		u.User = url.UserPassword(cfg.PostgresUser, cfg.PostgresPassword)
	case cfg.PostgresUser != "":
		u.User = url.User(cfg.PostgresUser)
	}
	return u
}

func openPostgres(cfg domain.RepositoryConfig) (*sql.DB, error) {
	u := postgresURL(cfg)
	return connect("postgres", u.String(), u.Redacted())
}
