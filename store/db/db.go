package db

import (
	"github.com/pkg/errors"

	"github.com/CaptainCrouton89/iagent/internal/profile"
	"github.com/CaptainCrouton89/iagent/store"
	"github.com/CaptainCrouton89/iagent/store/db/postgres"
	"github.com/CaptainCrouton89/iagent/store/db/sqlite"
)

// PostgreSQL is the reference driver: native vector search via pgvector.
// SQLite is supported for development and single-user deployments; it ranks
// similarity in process.

// NewDBDriver creates new db driver based on profile.
func NewDBDriver(profile *profile.Profile) (store.Driver, error) {
	var driver store.Driver
	var err error

	switch profile.Driver {
	case "sqlite":
		driver, err = sqlite.NewDB(profile)
	case "postgres":
		driver, err = postgres.NewDB(profile)
	default:
		return nil, errors.New("unknown db driver: only 'postgres' and 'sqlite' are supported")
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to create db driver")
	}
	return driver, nil
}
