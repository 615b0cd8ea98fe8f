package runner_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mfields/crawlbench/internal/bench"
	"github.com/mfields/crawlbench/internal/runner"
	"github.com/mfields/crawlbench/internal/stats"
)

func TestBuildCommand(t *testing.T) {
	t.Parallel()

	crawler := []string{"python", "main.py"}
	url := "https://whiskipedia.com"

	cases := []struct {
		name string
		cfg  bench.TestConfig
		want []string
	}{
		{
			name: "defaults",
			cfg:  bench.TestConfig{Label: "default_http_sqlite", Backend: bench.BackendSQLite, HTTPBackend: "auto"},
			want: []string{"python", "main.py", url, "--quiet"},
		},
		{
			name: "curl transport",
			cfg:  bench.TestConfig{Label: "curl_cffi_sqlite", Backend: bench.BackendSQLite, HTTPBackend: "curl"},
			want: []string{"python", "main.py", url, "--quiet", "--http-backend", "curl"},
		},
		{
			name: "js rendering",
			cfg:  bench.TestConfig{Label: "js_rendering_sqlite", Backend: bench.BackendSQLite, HTTPBackend: "auto", JSEnabled: true},
			want: []string{"python", "main.py", url, "--quiet", "--js"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, runner.BuildCommand(crawler, url, tc.cfg))
		})
	}
}

func TestBuildEnvSQLiteClearsPostgresVars(t *testing.T) {
	t.Parallel()

	base := []string{
		"PATH=/usr/bin",
		"PostgreSQLCrawler_DB_BACKEND=postgresql",
		"PostgreSQLCrawler_POSTGRES_HOST=stale-host",
		"SQLITECRAWLER_POSTGRES_PASSWORD=stale-secret",
		"SQLITECRAWLER_DB_BACKEND=postgresql",
	}
	cfg := bench.TestConfig{Label: "default_http_sqlite", Backend: bench.BackendSQLite}

	env := runner.BuildEnv(base, cfg, stats.PostgresConfig{Host: "localhost"})

	backend, ok := runner.EnvValue(env, "PostgreSQLCrawler_DB_BACKEND")
	assert.True(t, ok)
	assert.Equal(t, "sqlite", backend)

	for _, name := range []string{
		"PostgreSQLCrawler_POSTGRES_HOST",
		"PostgreSQLCrawler_POSTGRES_DB",
		"PostgreSQLCrawler_POSTGRES_USER",
		"PostgreSQLCrawler_POSTGRES_PASSWORD",
		"SQLITECRAWLER_POSTGRES_PASSWORD",
		"SQLITECRAWLER_DB_BACKEND",
	} {
		_, present := runner.EnvValue(env, name)
		assert.False(t, present, "variable %s must not leak into a sqlite run", name)
	}

	path, ok := runner.EnvValue(env, "PATH")
	assert.True(t, ok)
	assert.Equal(t, "/usr/bin", path)
}

func TestBuildEnvPostgresSetsExactlyItsOwnVars(t *testing.T) {
	t.Parallel()

	base := []string{"HOME=/home/u", "PostgreSQLCrawler_DB_BACKEND=sqlite"}
	cfg := bench.TestConfig{Label: "postgresql_backend", Backend: bench.BackendPostgres}
	pg := stats.PostgresConfig{
		Host:     "localhost",
		Database: "crawler_db",
		User:     "sql_crawler",
		Password: "bad_password",
	}

	env := runner.BuildEnv(base, cfg, pg)

	expect := map[string]string{
		"PostgreSQLCrawler_DB_BACKEND":        "postgresql",
		"PostgreSQLCrawler_POSTGRES_HOST":     "localhost",
		"PostgreSQLCrawler_POSTGRES_DB":       "crawler_db",
		"PostgreSQLCrawler_POSTGRES_USER":     "sql_crawler",
		"PostgreSQLCrawler_POSTGRES_PASSWORD": "bad_password",
	}
	for name, want := range expect {
		got, ok := runner.EnvValue(env, name)
		assert.True(t, ok, "missing %s", name)
		assert.Equal(t, want, got)
	}

	_, present := runner.EnvValue(env, "SQLITECRAWLER_DB_BACKEND")
	assert.False(t, present)
}
