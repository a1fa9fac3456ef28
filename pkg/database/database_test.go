package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialector(t *testing.T) {
	d, err := Dialector("", "host=localhost")
	require.NoError(t, err)
	assert.Equal(t, "postgres", d.Name())

	d, err = Dialector(DriverMySQL, "user:pass@tcp(localhost:3306)/baseflow")
	require.NoError(t, err)
	assert.Equal(t, "mysql", d.Name())

	_, err = Dialector("sqlite", "file.db")
	assert.Error(t, err)
}
