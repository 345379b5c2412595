package config

import "strings"

type StoreConfig interface {
	GetDatabaseURL() string
	GetRedisURL() string
}

type Store struct{}

var _ StoreConfig = Store{}

func (Store) GetDatabaseURL() string {
	dsn := GetEnv("DATABASE_URL", "")
	// Heroku-style DSNs use the postgres:// prefix; pgx accepts either, but
	// normalise so the rest of the code only ever sees postgresql://.
	if strings.HasPrefix(dsn, "postgres://") {
		dsn = "postgresql://" + strings.TrimPrefix(dsn, "postgres://")
	}
	return dsn
}

// GetRedisURL is optional; when empty the connect-state store runs in memory.
func (Store) GetRedisURL() string {
	return GetEnv("REDIS_URL", "")
}
