package postgresql

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/loykin/sqlrun/internal/constants"
	"github.com/loykin/sqlrun/internal/util"
)

type Config struct {
	DSN      string `mapstructure:"dsn"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// URL prefers the explicit DSN; otherwise it builds one from the components
// when a host is provided. It returns "" when neither is set.
func (p *Config) URL() string {
	if dsn, ok := util.TrimEmptyCheck(p.DSN); ok {
		return Normalize(dsn)
	}
	host, hasHost := util.TrimEmptyCheck(p.Host)
	if !hasHost {
		return ""
	}
	port := p.Port
	if port == 0 {
		port = constants.DefaultPostgresPort
	}
	ssl := util.TrimWithDefault(p.SSLMode, constants.DefaultPostgresSSLMode)

	fields := util.TrimSpaceFields(p.User, p.Password, p.DBName)
	u := url.URL{
		Scheme:   "postgres",
		Host:     fmt.Sprintf("%s:%d", host, port),
		Path:     "/" + fields[2],
		RawQuery: "sslmode=" + url.QueryEscape(ssl),
	}
	switch {
	case fields[0] != "" && fields[1] != "":
		u.User = url.UserPassword(fields[0], fields[1])
	case fields[0] != "":
		u.User = url.User(fields[0])
	}
	return u.String()
}

// Normalize rewrites SQLAlchemy-style schemes such as postgresql+psycopg://
// into the postgres:// form accepted by pgx.
func Normalize(dsn string) string {
	i := strings.Index(dsn, "://")
	if i < 0 {
		return dsn
	}
	scheme := strings.ToLower(dsn[:i])
	if j := strings.IndexByte(scheme, '+'); j >= 0 {
		scheme = scheme[:j]
	}
	if scheme == "postgresql" {
		scheme = "postgres"
	}
	return scheme + dsn[i:]
}
