package database

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/the-monkeys/incentives/config"
	"github.com/the-monkeys/incentives/microservices/the_monkeys_incentives/internal/models"
)

func TestDSN(t *testing.T) {
	dsn := DSN(config.Database{DBUsername: "root", DBPassword: "secret", DBHost: "db", DBPort: 5432, DBName: "incentives"})
	assert.Equal(t, "postgres://root:secret@db:5432/incentives?sslmode=disable", dsn)
}

func TestRulesRoundTrip(t *testing.T) {
	rules := []models.Rule{
		{Type: models.RuleActionCount, Params: map[string]any{"count": 3.0, "window": "DAILY"}},
		{Type: models.RuleCohort, Params: map[string]any{"cohortId": "vip"}},
	}
	b, err := encodeRules(rules)
	require.NoError(t, err)

	got, err := decodeRules(b)
	require.NoError(t, err)
	assert.Equal(t, rules, got)

	empty, err := encodeRules(nil)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(empty))

	_, err = decodeRules([]byte(`{"type":`))
	assert.Error(t, err)
}

func TestNullHelpers(t *testing.T) {
	assert.Nil(t, nullTime(time.Time{}))
	now := time.Now()
	require.NotNil(t, nullTime(now))
	assert.Equal(t, now, *nullTime(now))

	assert.NotNil(t, nonNil(nil))
	assert.Equal(t, []string{"A"}, nonNil([]string{"A"}))
}

func TestSchemaCoversTables(t *testing.T) {
	for _, table := range []string{"campaigns", "incentives", "user_aggregation", "limits"} {
		assert.True(t, strings.Contains(schema, "CREATE TABLE IF NOT EXISTS "+table+" "), table)
	}
}
