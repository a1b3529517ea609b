package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDSNFromFields(t *testing.T) {
	got := DSN(ClientConfig{
		Host:     "db.internal",
		Port:     5433,
		Database: "triarb",
		User:     "bot",
		Password: "pw",
		SSLMode:  "require",
	})

	assert.Equal(t, "postgres://bot:pw@db.internal:5433/triarb?sslmode=require", got)
}

func TestDSNDefaults(t *testing.T) {
	got := DSN(ClientConfig{Host: "localhost", Database: "triarb", User: "postgres"})

	assert.Equal(t, "postgres://postgres:@localhost:5432/triarb?sslmode=disable", got)
}

func TestDSNExplicitWins(t *testing.T) {
	got := DSN(ClientConfig{
		DSN:  "postgres://u:p@elsewhere/other",
		Host: "ignored",
	})

	assert.Equal(t, "postgres://u:p@elsewhere/other", got)
}

func TestMigrationsOrderedAndNamed(t *testing.T) {
	// Migrations append; names stay unique and in order.
	seen := make(map[string]bool)
	var last string
	for _, m := range migrations {
		assert.False(t, seen[m.name], "duplicate migration %s", m.name)
		seen[m.name] = true
		assert.Greater(t, m.name, last, "migrations must stay sorted")
		last = m.name
		assert.NotEmpty(t, m.sql)
	}
}
