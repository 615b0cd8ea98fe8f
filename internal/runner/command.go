package runner

import (
	"fmt"
	"strings"

	"github.com/mfields/crawlbench/internal/bench"
	"github.com/mfields/crawlbench/internal/stats"
)

// Environment-variable contract of the external crawler. The crawler
// accepts two prefixes for historical reasons; the harness clears both
// before selecting a backend so nothing leaks between iterations.
const (
	envBackendPrimary  = "PostgreSQLCrawler_DB_BACKEND"
	envBackendFallback = "SQLITECRAWLER_DB_BACKEND"

	envPGHost     = "PostgreSQLCrawler_POSTGRES_HOST"
	envPGDatabase = "PostgreSQLCrawler_POSTGRES_DB"
	envPGUser     = "PostgreSQLCrawler_POSTGRES_USER"
	envPGPassword = "PostgreSQLCrawler_POSTGRES_PASSWORD"
)

// backendEnvVars is every variable that participates in backend selection,
// across both prefixes.
var backendEnvVars = []string{
	envBackendPrimary,
	envBackendFallback,
	envPGHost,
	"SQLITECRAWLER_POSTGRES_HOST",
	envPGDatabase,
	"SQLITECRAWLER_POSTGRES_DB",
	envPGUser,
	"SQLITECRAWLER_POSTGRES_USER",
	envPGPassword,
	"SQLITECRAWLER_POSTGRES_PASSWORD",
}

// BuildCommand assembles the external process argv for one configuration:
// the crawler command, the target URL, and the flags the configuration's
// transport and rendering settings call for.
func BuildCommand(crawlerCmd []string, targetURL string, cfg bench.TestConfig) []string {
	argv := make([]string, 0, len(crawlerCmd)+5)
	argv = append(argv, crawlerCmd...)
	argv = append(argv, targetURL, "--quiet")
	if cfg.HTTPBackend == "curl" {
		argv = append(argv, "--http-backend", "curl")
	}
	if cfg.JSEnabled {
		argv = append(argv, "--js")
	}
	return argv
}

// BuildEnv returns a copy of base with every backend-selection variable
// removed, then exactly the chosen backend's variables set. The unused
// backend's variables are never present in the result.
func BuildEnv(base []string, cfg bench.TestConfig, pg stats.PostgresConfig) []string {
	env := make([]string, 0, len(base)+5)
	for _, kv := range base {
		if isBackendVar(kv) {
			continue
		}
		env = append(env, kv)
	}

	if cfg.Backend == bench.BackendPostgres {
		env = append(env,
			envBackendPrimary+"=postgresql",
			envPGHost+"="+pg.Host,
			envPGDatabase+"="+pg.Database,
			envPGUser+"="+pg.User,
			envPGPassword+"="+pg.Password,
		)
	} else {
		env = append(env, envBackendPrimary+"=sqlite")
	}
	return env
}

func isBackendVar(kv string) bool {
	name, _, ok := strings.Cut(kv, "=")
	if !ok {
		name = kv
	}
	for _, v := range backendEnvVars {
		if name == v {
			return true
		}
	}
	return false
}

// EnvValue extracts the value of name from an environment slice, for
// inspection in tests and diagnostics.
func EnvValue(env []string, name string) (string, bool) {
	prefix := name + "="
	for _, kv := range env {
		if strings.HasPrefix(kv, prefix) {
			return strings.TrimPrefix(kv, prefix), true
		}
	}
	return "", false
}

// String renders an argv for logging.
func argvString(argv []string) string {
	return fmt.Sprintf("%q", strings.Join(argv, " "))
}
