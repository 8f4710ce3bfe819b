//go:build integration

package sqlstore

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/stretchr/testify/require"

	coredatabase "github.com/m3rciful/reviewbot/core/database"
)

func TestStoreContractPostgres(t *testing.T) {
	pool, err := dockertest.NewPool("")
	require.NoError(t, err)
	pool.MaxWait = 2 * time.Minute

	res, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "16-alpine",
		Env: []string{
			"POSTGRES_USER=reviews",
			"POSTGRES_PASSWORD=secret",
			"POSTGRES_DB=reviews",
		},
	}, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Purge(res) })

	cfg := coredatabase.Config{
		Driver:        coredatabase.DriverPostgres,
		Host:          "localhost",
		Port:          res.GetPort("5432/tcp"),
		User:          "reviews",
		Password:      "secret",
		Name:          "reviews",
		SSLMode:       "disable",
		MigrationsDir: filepath.Join("..", "..", "..", "migrations", "postgres"),
	}
	require.NoError(t, pool.Retry(func() error {
		dsn, err := coredatabase.DSN(cfg)
		if err != nil {
			return err
		}
		return coredatabase.WaitForDatabase(coredatabase.DriverPostgres, dsn, time.Second)
	}), fmt.Sprintf("postgres on port %s", cfg.Port))

	require.NoError(t, coredatabase.RunMigrations(cfg))
	db, err := coredatabase.Connect(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	runStoreContract(t, New(db))
}
