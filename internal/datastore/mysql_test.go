package datastore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcmysql "github.com/testcontainers/testcontainers-go/modules/mysql"

	"github.com/tphakala/kws-go/internal/conf"
	"github.com/tphakala/kws-go/internal/errors"
)

// startMySQL runs a throwaway MySQL server. It needs Docker.
func startMySQL(t *testing.T) conf.MySQLSettings {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping MySQL container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := tcmysql.Run(ctx, "mysql:8.0.36",
		tcmysql.WithDatabase("kws"),
		tcmysql.WithUsername("kws"),
		tcmysql.WithPassword("kws-test"),
	)
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "3306/tcp")
	require.NoError(t, err)

	return conf.MySQLSettings{
		Host:     host,
		Port:     port.Port(),
		Username: "kws",
		Password: "kws-test",
		Database: "kws",
	}
}

func TestMySQLStore(t *testing.T) {
	cfg := startMySQL(t)

	s, err := OpenFromSettings(conf.StoreSettings{Enabled: true, Type: conf.StoreMySQL, MySQL: cfg})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, s.Save(ctx, detectionAt("yes", base)))
	require.NoError(t, s.Save(ctx, detectionAt("yes", base.Add(time.Second))))
	require.NoError(t, s.Save(ctx, detectionAt("no", base.Add(2*time.Second))))

	rows, err := s.List(ctx, ListOptions{Label: "yes"})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.True(t, rows[0].DetectedAt.After(rows[1].DetectedAt))

	summary, err := s.Summary(ctx)
	require.NoError(t, err)
	require.Len(t, summary, 2)
	assert.Equal(t, "yes", summary[0].Label)
	assert.Equal(t, int64(2), summary[0].Count)
	assert.True(t, summary[0].Last.Equal(base.Add(time.Second)), "last %v", summary[0].Last)
}

func TestOpenFromSettingsRejectsUnknownType(t *testing.T) {
	_, err := OpenFromSettings(conf.StoreSettings{Type: "postgres"})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestOpenFromSettingsDefaultsToSQLite(t *testing.T) {
	s, err := OpenFromSettings(conf.StoreSettings{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.Save(context.Background(), detectionAt("yes", time.Now())))
}
