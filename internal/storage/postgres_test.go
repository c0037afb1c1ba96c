package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/magiclogon/faceid/internal/models"
)

func startPostgres(t *testing.T) *PostgresStore {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	ctx := context.Background()

	// testcontainers panics when no Docker socket is found.
	var (
		container *postgres.PostgresContainer
		err       error
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("testcontainers panicked: %v", r)
			}
		}()
		container, err = postgres.Run(ctx, "pgvector/pgvector:pg16",
			postgres.WithDatabase("faceid_test"),
			postgres.WithUsername("user"),
			postgres.WithPassword("password"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60*time.Second)),
		)
	}()
	if err != nil {
		t.Skipf("Docker not available, skipping integration test: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}

	s, err := NewPostgresStoreDSN(ctx, dsn, 4)
	if err != nil {
		t.Fatalf("NewPostgresStoreDSN() error = %v", err)
	}
	t.Cleanup(s.Close)

	if err := s.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	return s
}

func TestPostgresStoreIntegration(t *testing.T) {
	s := startPostgres(t)
	ctx := context.Background()

	t.Run("identities", func(t *testing.T) {
		rec, err := s.Get(ctx, "E1")
		if err != nil || rec != nil {
			t.Fatalf("Get(absent) = %v, %v; want nil, nil", rec, err)
		}

		first := time.Now().UTC().Truncate(time.Microsecond)
		if err := s.Put(ctx, models.NewIdentityRecord("E1", []float32{0.5, -0.25, 1}, first)); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
		second := first.Add(time.Minute)
		if err := s.Put(ctx, models.NewIdentityRecord("E1", []float32{1, 2, 3}, second)); err != nil {
			t.Fatalf("Put(overwrite) error = %v", err)
		}

		rec, err = s.Get(ctx, "E1")
		if err != nil || rec == nil {
			t.Fatalf("Get() = %v, %v", rec, err)
		}
		if len(rec.Embedding) != 3 || rec.Embedding[2] != 3 {
			t.Errorf("Embedding = %v, want [1 2 3]", rec.Embedding)
		}
		if !rec.RegisteredAt.Equal(second) || !rec.LastUpdated.Equal(second) {
			t.Errorf("timestamps = %v / %v, want %v", rec.RegisteredAt, rec.LastUpdated, second)
		}

		n, err := s.Count(ctx)
		if err != nil || n != 1 {
			t.Errorf("Count() = %d, %v; want 1", n, err)
		}
	})

	t.Run("events", func(t *testing.T) {
		at := time.Now().UTC().Truncate(time.Microsecond)
		reg := models.NewRegisteredEvent("E2", at)
		ver := models.NewVerifiedEvent("E2", true, 0.21, 0.68, at.Add(time.Second))

		for _, ev := range []models.FaceEvent{reg, ver, ver} {
			if err := s.RecordEvent(ctx, &ev); err != nil {
				t.Fatalf("RecordEvent() error = %v", err)
			}
		}

		events, err := s.ListEvents(ctx, "E2", 10)
		if err != nil {
			t.Fatalf("ListEvents() error = %v", err)
		}
		if len(events) != 2 {
			t.Fatalf("ListEvents() returned %d events, want 2", len(events))
		}
		if events[0].Type != models.EventVerified || events[0].Match == nil || !*events[0].Match {
			t.Errorf("newest event = %+v, want matched verification", events[0])
		}
		if events[1].Type != models.EventRegistered || events[1].Distance != nil {
			t.Errorf("oldest event = %+v, want registration", events[1])
		}
	})
}
