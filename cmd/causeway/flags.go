package main

import (
	"flag"
	"io"

	"github.com/causeway-db/causeway/internal/config"
)

// parseFlags parses CLI arguments into config overrides. Only flags the user
// actually passed produce non-nil pointers.
func parseFlags(args []string) (config.Overrides, error) {
	fs := flag.NewFlagSet("causeway", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	engine := fs.String("engine", "", "execution engine: postgres or sqlite")
	databaseURL := fs.String("database-url", "", "PostgreSQL connection URL")
	sqlitePath := fs.String("sqlite-path", "", "SQLite database file path")
	logLevel := fs.String("log-level", "", "log level: debug, info, warn, error")
	maxRows := fs.Int("max-rows", 0, "maximum rows returned per query")
	queryTimeout := fs.Duration("query-timeout", 0, "per-query timeout")
	rateWindow := fs.Duration("rate-window", 0, "admission window duration")
	rateQuota := fs.Int("rate-quota", 0, "requests admitted per tenant per window")
	namespaceSep := fs.String("namespace-separator", "", "tenant table-name prefix separator")
	policyFile := fs.String("policy-file", "", "per-tenant policy YAML file")
	httpAddr := fs.String("http-addr", "", "HTTP listen address")
	bearerToken := fs.String("bearer-token", "", "bearer token required on API requests")
	otelEnabled := fs.Bool("otel", false, "enable OpenTelemetry tracing and metrics")
	auditLog := fs.String("audit-log", "", "NDJSON audit log file path")

	poolMaxConns := fs.Int("pool-max-conns", 0, "maximum pool connections")
	poolMinConns := fs.Int("pool-min-conns", -1, "minimum pool connections")
	poolMaxConnLifetime := fs.Duration("pool-max-conn-lifetime", 0, "maximum connection lifetime")

	if err := fs.Parse(args); err != nil {
		return config.Overrides{}, err
	}

	o := config.Overrides{
		OTelEnabled: *otelEnabled,
		AuditLog:    *auditLog,
	}

	setString := func(dst **string, v *string) {
		if *v != "" {
			*dst = v
		}
	}
	setString(&o.Engine, engine)
	setString(&o.DatabaseURL, databaseURL)
	setString(&o.SQLitePath, sqlitePath)
	setString(&o.LogLevel, logLevel)
	setString(&o.NamespaceSeparator, namespaceSep)
	setString(&o.PolicyFile, policyFile)
	setString(&o.HTTPAddr, httpAddr)
	setString(&o.BearerToken, bearerToken)

	if *maxRows != 0 {
		o.MaxRows = maxRows
	}
	if *queryTimeout != 0 {
		o.QueryTimeout = queryTimeout
	}
	if *rateWindow != 0 {
		o.RateWindow = rateWindow
	}
	if *rateQuota != 0 {
		o.RateQuota = rateQuota
	}
	if *poolMaxConns != 0 {
		n := int32(*poolMaxConns)
		o.PoolMaxConns = &n
	}
	if *poolMinConns >= 0 {
		n := int32(*poolMinConns)
		o.PoolMinConns = &n
	}
	if *poolMaxConnLifetime != 0 {
		o.PoolMaxConnLifetime = poolMaxConnLifetime
	}

	return o, nil
}
