package testutil

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTestDBConfig_DSN(t *testing.T) {
	tests := []struct {
		name    string
		cfg     TestDBConfig
		sslMode string
		want    string
	}{
		{
			name: "defaults to sslmode disable",
			cfg:  TestDBConfig{Host: "db", Port: "5432", User: "u", Password: "p", DBName: "n"},
			want: "postgres://u:p@db:5432/n?sslmode=disable",
		},
		{
			name:    "honors DB_SSL_MODE",
			cfg:     TestDBConfig{Host: "db", Port: "5432", User: "u", Password: "p", DBName: "n"},
			sslMode: "require",
			want:    "postgres://u:p@db:5432/n?sslmode=require",
		},
		{
			name: "brackets ipv6 hosts",
			cfg:  TestDBConfig{Host: "::1", Port: "55432", User: "gatehouse", Password: "gatehouse", DBName: "gatehouse"},
			want: "postgres://gatehouse:gatehouse@[::1]:55432/gatehouse?sslmode=disable",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DB_SSL_MODE", tt.sslMode)
			assert.Equal(t, tt.want, tt.cfg.DSN())
		})
	}
}

func TestDefaultTestDBConfig_Env(t *testing.T) {
	t.Setenv("TEST_DB_HOST", "postgres")
	t.Setenv("TEST_DB_PORT", "")
	t.Setenv("TEST_DB_USER", "")
	t.Setenv("TEST_DB_PASSWORD", "")
	t.Setenv("TEST_DB_NAME", "gatehouse_ci")

	cfg := DefaultTestDBConfig()
	assert.Equal(t, TestDBConfig{
		Host:     "postgres",
		Port:     "55432",
		User:     "gatehouse",
		Password: "gatehouse",
		DBName:   "gatehouse_ci",
	}, cfg)
}

func TestRequireInfraFlags(t *testing.T) {
	for _, v := range []string{"1", "true", "YES", "y"} {
		t.Setenv("TEST_REQUIRE_INFRA", v)
		assert.True(t, requireDB(), "TEST_REQUIRE_INFRA=%s", v)
		assert.True(t, requireRedis(), "TEST_REQUIRE_INFRA=%s", v)
	}

	t.Setenv("TEST_REQUIRE_INFRA", "nope")
	t.Setenv("TEST_REQUIRE_DB", "")
	t.Setenv("TEST_REQUIRE_REDIS", "1")
	assert.False(t, requireDB())
	assert.True(t, requireRedis())
}

type recordingTB struct {
	TestingTB
	skipped, failed bool
}

func (r *recordingTB) Skip(...interface{})  { r.skipped = true }
func (r *recordingTB) Fatal(...interface{}) { r.failed = true }

func TestSkipOrFail(t *testing.T) {
	tb := &recordingTB{}
	skipOrFail(tb, false, "redis down")
	assert.True(t, tb.skipped)
	assert.False(t, tb.failed)

	tb = &recordingTB{}
	skipOrFail(tb, true, "redis down")
	assert.True(t, tb.failed)
}

func TestNewTestLogger(t *testing.T) {
	logger, logs := NewTestLogger()
	logger.Debug("lock acquired", "session", "abc")
	assert.Contains(t, logs.String(), `"msg":"lock acquired"`)
	assert.Contains(t, logs.String(), fmt.Sprintf("%q:%q", "session", "abc"))
}
