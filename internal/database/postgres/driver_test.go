package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/tracelog"
	"github.com/stretchr/testify/require"

	"github.com/joacominatel/minadb/internal/cursor"
)

func TestDriverNotConnected(t *testing.T) {
	require := require.New(t)

	d := New()
	require.Error(d.Ping(context.Background()))
	_, err := d.ExecuteReader(context.Background(), "SELECT 1", cursor.BehaviorDefault)
	require.Error(err)
	require.NoError(d.Close())
}

func TestConnectRejectsBadDSN(t *testing.T) {
	err := New().Connect(context.Background(), "postgres://user@host:notaport/db")
	require.ErrorContains(t, err, "parse dsn")
}

func TestQualifiedTable(t *testing.T) {
	require.Equal(t, `SELECT * FROM "sales"."Order Lines"`, New().QualifiedTable("sales", "Order Lines"))
}

func TestConfigureLogger(t *testing.T) {
	cfg, err := pgx.ParseConfig("postgres://user@localhost:5432/db")
	require.NoError(t, err)

	configureLogger(cfg)
	tracer, ok := cfg.Tracer.(*tracelog.TraceLog)
	require.True(t, ok)
	require.Equal(t, tracelog.LogLevelInfo, tracer.LogLevel)
}

func TestIsCanceled(t *testing.T) {
	tests := []struct {
		name string
		v    any
		want bool
	}{
		{name: "nil", v: nil, want: false},
		{name: "context", v: fmt.Errorf("query: %w", context.Canceled), want: true},
		{name: "server cancel", v: &pgconn.PgError{Code: queryCanceledCode}, want: true},
		{name: "other server error", v: &pgconn.PgError{Code: "42P01"}, want: false},
		{name: "plain", v: errors.New("boom"), want: false},
		{name: "not an error", v: "canceled", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, isCanceled(tt.v))
		})
	}
}
