package migrate

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/poolfund-backend/pkg/config"
	"github.com/angelmondragon/poolfund-backend/pkg/logger"
)

const okBody = "-- +goose Up\n-- +goose StatementBegin\nSELECT 1;\n-- +goose StatementEnd\n-- +goose Down\nSELECT 1;\n"

func TestEmbeddedMigrationsValidate(t *testing.T) {
	fsys, err := Source("")
	require.NoError(t, err)
	require.NoError(t, Validate(fsys))

	onDisk, err := Source("migrations")
	require.NoError(t, err)
	want, err := fs.Glob(onDisk, "*.sql")
	require.NoError(t, err)
	got, err := fs.Glob(fsys, "*.sql")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestPayoutMigrationsContainSchema(t *testing.T) {
	fsys, err := Source("")
	require.NoError(t, err)
	checks := map[string][]string{
		"*_create_payout_enums.sql": {
			"CREATE TYPE payout_status_enum AS ENUM",
			"CREATE TYPE voting_status_enum AS ENUM",
			"CREATE TYPE vote_type_enum AS ENUM",
		},
		"*_create_pool_payouts_tables.sql": {
			"CREATE TABLE IF NOT EXISTS pool_payouts",
			"CONSTRAINT ux_pool_payout_votes_payout_voter UNIQUE (payout_id, voter_id)",
			"CREATE TABLE IF NOT EXISTS pool_payout_transactions",
			"WHERE voting_status = 'active'",
		},
		"*_create_pool_voting_settings_table.sql": {
			"CREATE UNIQUE INDEX IF NOT EXISTS ux_pool_voting_settings_pool_id",
		},
		"*_create_outbox_tables.sql": {
			"CREATE UNIQUE INDEX IF NOT EXISTS ux_outbox_events_once_per_aggregate",
			"WHERE event_type IN ('payout_created', 'payout_voting_finalized', 'payout_cancelled')",
		},
	}
	for pattern, want := range checks {
		matches, err := fs.Glob(fsys, pattern)
		require.NoError(t, err)
		require.Len(t, matches, 1, pattern)

		data, err := fs.ReadFile(fsys, matches[0])
		require.NoError(t, err)
		for _, sub := range want {
			assert.Contains(t, string(data), sub, matches[0])
		}
	}
}

func TestValidateRejectsBadFiles(t *testing.T) {
	cases := map[string]struct {
		files fstest.MapFS
		want  string
	}{
		"empty": {
			files: fstest.MapFS{"README.md": {Data: []byte("x")}},
			want:  "no migrations found",
		},
		"bad filename": {
			files: fstest.MapFS{"create_things.sql": {Data: []byte(okBody)}},
			want:  "invalid migration filename",
		},
		"duplicate version": {
			files: fstest.MapFS{
				"20260101000000_a.sql": {Data: []byte(okBody)},
				"20260101000000_b.sql": {Data: []byte(okBody)},
			},
			want: "duplicate migration version",
		},
		"missing down": {
			files: fstest.MapFS{"20260101000000_things.sql": {Data: []byte("-- +goose Up\nSELECT 1;\n")}},
			want:  `missing "-- +goose Down"`,
		},
		"down before up": {
			files: fstest.MapFS{"20260101000000_things.sql": {Data: []byte("-- +goose Down\nSELECT 1;\n-- +goose Up\nSELECT 1;\n")}},
			want:  "down section precedes up section",
		},
		"unbalanced block": {
			files: fstest.MapFS{"20260101000000_things.sql": {Data: []byte("-- +goose Up\n-- +goose StatementBegin\nSELECT 1;\n-- +goose Down\n")}},
			want:  "StatementBegin",
		},
		"create type if not exists": {
			files: fstest.MapFS{"20260101000000_things.sql": {Data: []byte("-- +goose Up\nCREATE TYPE IF NOT EXISTS x AS ENUM ('a');\n-- +goose Down\n")}},
			want:  "CREATE TYPE IF NOT EXISTS",
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.ErrorContains(t, Validate(tc.files), tc.want)
		})
	}
}

func TestCreateWritesValidFile(t *testing.T) {
	dir := t.TempDir()
	at := time.Date(2026, 4, 2, 10, 30, 0, 0, time.UTC)

	path, err := Create(dir, "Add Payout Notes!", at)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "20260402103000_add_payout_notes.sql"), path)

	fsys, err := Source(dir)
	require.NoError(t, err)
	require.NoError(t, Validate(fsys))

	_, err = Create(dir, "add payout notes", at)
	assert.Error(t, err, "existing file must not be overwritten")
}

func TestCreateRejectsEmptyName(t *testing.T) {
	_, err := Create(t.TempDir(), " !! ", time.Now())
	assert.ErrorContains(t, err, "no usable characters")
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "add_vote_index", slugify("  Add vote-index "))
	assert.Equal(t, "v2_backfill", slugify("V2__backfill"))
	assert.Equal(t, "pool_caf", slugify("pool café"))
}

func TestSourceRejectsMissingDir(t *testing.T) {
	_, err := Source(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)

	file := filepath.Join(t.TempDir(), "file.sql")
	require.NoError(t, os.WriteFile(file, []byte(okBody), 0o644))
	_, err = Source(file)
	assert.ErrorContains(t, err, "not a directory")
}

func TestNewRefusesInvalidSet(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	logg := logger.New(logger.Options{ServiceName: "migrate-test", Output: io.Discard})

	_, err = New(db, fstest.MapFS{"bad.sql": {Data: []byte(okBody)}}, logg)
	assert.ErrorContains(t, err, "invalid migration filename")

	_, err = New(nil, fstest.MapFS{}, logg)
	assert.ErrorContains(t, err, "db is required")
}

func TestCheckDriver(t *testing.T) {
	assert.NoError(t, CheckDriver(config.DBConfig{Driver: config.DBDriverPostgres}))
	err := CheckDriver(config.DBConfig{Driver: config.DBDriverSQLite})
	assert.ErrorIs(t, err, ErrUnsupportedDriver)
	assert.True(t, strings.Contains(err.Error(), string(config.DBDriverSQLite)))
}
