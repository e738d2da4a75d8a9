package db

import (
	"testing"

	"raffle-guess/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenWithoutDatabase(t *testing.T) {
	gdb, err := Open(config.Config{})
	require.NoError(t, err)
	assert.Nil(t, gdb)
	assert.NoError(t, AutoMigrate(nil))
}

func TestDialectorFor(t *testing.T) {
	d, err := dialectorFor(config.DatabaseSchemePostgres, "postgres://u@h/db")
	require.NoError(t, err)
	assert.Equal(t, "postgres", d.Name())

	d, err = dialectorFor(config.DatabaseSchemeMySQL, "u:p@tcp(h:3306)/db")
	require.NoError(t, err)
	assert.Equal(t, "mysql", d.Name())

	_, err = dialectorFor("sqlite", "x.db")
	assert.Error(t, err)
}
