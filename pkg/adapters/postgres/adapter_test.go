package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/cohortsql/pkg/adapter"
	"github.com/leapstack-labs/cohortsql/pkg/dialect"
)

func TestBuildPostgresDSN(t *testing.T) {
	tests := []struct {
		name     string
		config   adapter.Config
		expected string
	}{
		{
			name: "basic connection",
			config: adapter.Config{
				Host:     "localhost",
				Port:     5432,
				Database: "testdb",
				Username: "user",
				Password: "pass",
			},
			expected: "host=localhost port=5432 dbname=testdb sslmode=disable user=user password=pass",
		},
		{
			name: "with custom sslmode",
			config: adapter.Config{
				Host:     "prod.example.com",
				Port:     5432,
				Database: "proddb",
				Username: "admin",
				Options:  map[string]string{"sslmode": "require"},
			},
			expected: "host=prod.example.com port=5432 dbname=proddb sslmode=require user=admin",
		},
		{
			name: "defaults",
			config: adapter.Config{
				Database: "mydb",
			},
			expected: "host=localhost port=5432 dbname=mydb sslmode=disable",
		},
		{
			name: "schema and extra options",
			config: adapter.Config{
				Host:     "db.example.com",
				Port:     5433,
				Database: "clinical",
				Schema:   "omop",
				Options:  map[string]string{"connect_timeout": "10", "application_name": "cohortsql"},
			},
			expected: "host=db.example.com port=5433 dbname=clinical sslmode=disable search_path=omop application_name=cohortsql connect_timeout=10",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, buildPostgresDSN(tt.config))
		})
	}
}

func TestAdapter_Registration(t *testing.T) {
	assert.True(t, adapter.IsRegistered("postgres"))

	a, err := adapter.NewAdapter(adapter.Config{Type: "postgres"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "postgres", a.DialectName())

	_, ok := dialect.Get(a.DialectName())
	assert.True(t, ok, "postgres dialect should be registered with the adapter")
}

func TestAdapter_NotConnected(t *testing.T) {
	a := New(nil)
	err := a.Exec(context.Background(), "SELECT 1")
	require.ErrorIs(t, err, adapter.ErrNotConnected)
	assert.NoError(t, a.Close())
}
