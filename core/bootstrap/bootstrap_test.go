package bootstrap

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/reviewbot/core/config"
	coredatabase "github.com/m3rciful/reviewbot/core/database"
)

type closeLog struct {
	order *[]string
	name  string
	err   error
}

func (c closeLog) Close() error {
	*c.order = append(*c.order, c.name)
	return c.err
}

func testOptions(t *testing.T, resources ...Resource) Options {
	t.Helper()
	return Options{
		Config:     &coreconfig.Config{},
		Database:   coredatabase.Config{Driver: coredatabase.DriverSQLite, Path: ":memory:"},
		Resources:  resources,
		LoggerInit: func(*coreconfig.Config) error { return nil },
		Connect: func(coredatabase.Config) (*sqlx.DB, error) {
			return sqlx.Open("sqlite3", ":memory:")
		},
		Migrate: func(coredatabase.Config) error { return nil },
	}
}

func resource(order *[]string, name string, openErr error) Resource {
	return Resource{Name: name, Open: func(ctx context.Context) (io.Closer, error) {
		if _, ok := ctx.Deadline(); !ok {
			return nil, errors.New("open without deadline")
		}
		if openErr != nil {
			return nil, openErr
		}
		return closeLog{order: order, name: name}, nil
	}}
}

func TestRunOpensResourcesAndClosesInReverse(t *testing.T) {
	var closed []string
	res, err := Run(testOptions(t, resource(&closed, "sessions", nil), resource(&closed, "cache", nil)))
	require.NoError(t, err)
	require.NotNil(t, res.DB)

	c, ok := res.Resource("sessions")
	require.True(t, ok)
	assert.Equal(t, "sessions", c.(closeLog).name)
	_, ok = res.Resource("missing")
	assert.False(t, ok)

	require.NoError(t, res.Close())
	assert.Equal(t, []string{"cache", "sessions"}, closed)
	assert.Nil(t, res.DB)
	assert.NoError(t, res.Close(), "second close is a no-op")
}

func TestRunFailingResourceClosesEarlierOnes(t *testing.T) {
	var closed []string
	var db *sqlx.DB
	opts := testOptions(t, resource(&closed, "sessions", nil), resource(&closed, "cache", errors.New("refused")))
	opts.Connect = func(coredatabase.Config) (*sqlx.DB, error) {
		var err error
		db, err = sqlx.Open("sqlite3", ":memory:")
		return db, err
	}

	res, err := Run(opts)
	assert.Nil(t, res)
	assert.ErrorContains(t, err, "open cache: refused")
	assert.Equal(t, []string{"sessions"}, closed)
	require.NotNil(t, db)
	assert.Error(t, db.Ping(), "database is closed")
}

func TestRunStopsOnMigrationFailure(t *testing.T) {
	var closed []string
	opts := testOptions(t, resource(&closed, "sessions", nil))
	opts.Migrate = func(coredatabase.Config) error { return errors.New("dirty") }

	_, err := Run(opts)
	assert.ErrorContains(t, err, "migrations failed")
	assert.Empty(t, closed, "resources open after migrations")
}

func TestRunRequiresConfig(t *testing.T) {
	_, err := Run(Options{})
	assert.Error(t, err)
}

func TestCloseJoinsErrors(t *testing.T) {
	var closed []string
	res := &Result{resources: []opened{
		{name: "a", closer: closeLog{order: &closed, name: "a", err: errors.New("a failed")}},
		{name: "b", closer: closeLog{order: &closed, name: "b", err: errors.New("b failed")}},
	}}
	err := res.Close()
	assert.ErrorContains(t, err, "close a: a failed")
	assert.ErrorContains(t, err, "close b: b failed")
	assert.Equal(t, []string{"b", "a"}, closed)
}
