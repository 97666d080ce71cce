//go:build integration

package postgres

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"example.com/mergington/internal/domain"
	"example.com/mergington/internal/events"
	"example.com/mergington/internal/fixtures"
)

func TestRepositoryDirectoryLifecycle(t *testing.T) {
	ctx := context.Background()
	pool := setupPostgres(t, ctx)

	repo := NewRepository(pool)
	service := domain.NewService(repo)

	inserted, err := service.Seed(ctx, fixtures.Defaults())
	require.NoError(t, err)
	require.Equal(t, 9, inserted)

	inserted, err = service.Seed(ctx, fixtures.Defaults())
	require.NoError(t, err)
	require.Zero(t, inserted)

	activities, err := service.ListActivities(ctx)
	require.NoError(t, err)
	require.Len(t, activities, 9)

	_, err = service.Signup(ctx, "Chess Club", "x@y.edu")
	require.NoError(t, err)
	_, err = service.Signup(ctx, "Chess Club", "x@y.edu")
	require.ErrorIs(t, err, domain.ErrAlreadySignedUp)
	_, err = service.Signup(ctx, "Nope", "x@y.edu")
	require.ErrorIs(t, err, domain.ErrActivityNotFound)

	_, err = service.Unregister(ctx, "Chess Club", "michael@mergington.edu")
	require.NoError(t, err)
	_, err = service.Unregister(ctx, "Chess Club", "michael@mergington.edu")
	require.ErrorIs(t, err, domain.ErrNotRegistered)

	chess, err := repo.Get(ctx, "Chess Club")
	require.NoError(t, err)
	require.Equal(t, []string{"daniel@mergington.edu", "x@y.edu"}, chess.Participants)
}

func TestRepositoryConcurrentSignupsAreSerialised(t *testing.T) {
	ctx := context.Background()
	pool := setupPostgres(t, ctx)
	repo := NewRepository(pool)

	_, err := repo.InsertMissing(ctx, []domain.Activity{{Name: "Mathletes", Schedule: "Fridays", MaxParticipants: 10}})
	require.NoError(t, err)

	const workers = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		applied int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.AddParticipant(ctx, "Mathletes", "race@mergington.edu", false)
			if err != nil {
				t.Errorf("add participant: %v", err)
				return
			}
			if ok {
				mu.Lock()
				applied++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, applied)
	stored, err := repo.Get(ctx, "Mathletes")
	require.NoError(t, err)
	require.Equal(t, []string{"race@mergington.edu"}, stored.Participants)
}

func TestRepositoryCapacityGuard(t *testing.T) {
	ctx := context.Background()
	pool := setupPostgres(t, ctx)
	repo := NewRepository(pool)

	_, err := repo.InsertMissing(ctx, []domain.Activity{{Name: "Duo", MaxParticipants: 1, Participants: []string{"a@x.edu"}}})
	require.NoError(t, err)

	ok, err := repo.AddParticipant(ctx, "Duo", "b@x.edu", true)
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = repo.AddParticipant(ctx, "Duo", "b@x.edu", false)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestRepositoryWritesOutboxInSameTransaction(t *testing.T) {
	ctx := context.Background()
	pool := setupPostgres(t, ctx)
	repo := NewRepository(pool, WithOutbox())

	_, err := repo.InsertMissing(ctx, fixtures.Defaults())
	require.NoError(t, err)

	ok, err := repo.AddParticipant(ctx, "Art Club", "pat@mergington.edu", false)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = repo.AddParticipant(ctx, "Art Club", "pat@mergington.edu", false)
	require.NoError(t, err)
	require.False(t, ok)

	var (
		count     int
		eventType string
		topic     string
		key       string
		payload   []byte
	)
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox`).Scan(&count))
	require.Equal(t, 1, count, "a rejected signup must not leave an outbox row")

	require.NoError(t, pool.QueryRow(ctx, `SELECT event_type, topic, partition_key, payload FROM outbox`).Scan(&eventType, &topic, &key, &payload))
	require.Equal(t, events.TypeParticipantAdded, eventType)
	require.Equal(t, RegistrationsTopic, topic)
	require.Equal(t, "Art Club", key)

	var evt events.ParticipantAdded
	require.NoError(t, json.Unmarshal(payload, &evt))
	require.Equal(t, "pat@mergington.edu", evt.Email)
	require.Equal(t, 3, evt.ParticipantCount)
	require.NotEmpty(t, evt.EventID)
}

func setupPostgres(t *testing.T, ctx context.Context) *pgxpool.Pool {
	t.Helper()

	pg, err := postgrescontainer.RunContainer(ctx,
		postgrescontainer.WithDatabase("mergington_school"),
		postgrescontainer.WithUsername("mergington"),
		postgrescontainer.WithPassword("mergington"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, waitForDatabase(ctx, connStr))

	runMigrations(t, ctx, connStr)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func runMigrations(t *testing.T, ctx context.Context, connStr string) {
	t.Helper()

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	defer pool.Close()

	files, err := filepath.Glob(filepath.Join(resolvePath(t, "../../../db/postgres/migrations"), "*.up.sql"))
	require.NoError(t, err)
	require.NotEmpty(t, files)
	sort.Strings(files)

	for _, file := range files {
		contents, readErr := os.ReadFile(file)
		require.NoErrorf(t, readErr, "read migration %s", file)
		_, execErr := pool.Exec(ctx, string(contents))
		require.NoErrorf(t, execErr, "execute migration %s", file)
	}
}

func resolvePath(t *testing.T, rel string) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	return filepath.Join(filepath.Dir(file), rel)
}

func waitForDatabase(ctx context.Context, connStr string) error {
	deadline := time.Now().Add(30 * time.Second)
	for {
		pool, err := pgxpool.New(ctx, connStr)
		if err == nil {
			err = pool.Ping(ctx)
			pool.Close()
			if err == nil {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return err
		}
		time.Sleep(time.Second)
	}
}
