package repository

import (
	"context"
	"database/sql"
	"log"
	"os"
	"testing"
	"time"

	"auction-house/internal/database"
	"auction-house/internal/domain"
	"auction-house/migrations"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	_ "github.com/jackc/pgx/v5/stdlib"
)

var testDB *sql.DB

func setupTestDB() (func(context.Context) error, error) {
	var (
		dbName = "testdb"
		dbPwd  = "password"
		dbUser = "user"
	)

	dbContainer, err := postgres.Run(
		context.Background(),
		"postgres:15",
		postgres.WithDatabase(dbName),
		postgres.WithUsername(dbUser),
		postgres.WithPassword(dbPwd),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		return nil, err
	}

	connStr, err := dbContainer.ConnectionString(context.Background(), "sslmode=disable")
	if err != nil {
		return dbContainer.Terminate, err
	}

	testDB, err = sql.Open("pgx", connStr)
	if err != nil {
		return dbContainer.Terminate, err
	}

	if err := database.RunMigrations(testDB, migrations.FS, zap.NewNop()); err != nil {
		return dbContainer.Terminate, err
	}

	return dbContainer.Terminate, nil
}

func TestMain(m *testing.M) {
	teardown, err := setupTestDB()
	if err != nil {
		// Without Docker the repository tests skip themselves.
		log.Printf("could not start postgres container: %v", err)
		testDB = nil
	}

	code := m.Run()

	if teardown != nil {
		if err := teardown(context.Background()); err != nil {
			log.Printf("could not teardown postgres container: %v", err)
		}
	}

	os.Exit(code)
}

func requireDB(t *testing.T) {
	t.Helper()
	if testDB == nil {
		t.Skip("postgres container not available")
	}
}

func createTestUser(t *testing.T, repo UserRepository) *domain.User {
	t.Helper()
	email, err := domain.NewEmail("user-" + uuid.NewString()[:8] + "@example.com")
	if err != nil {
		t.Fatalf("email: %v", err)
	}
	user, err := domain.NewUser(email, "tester", time.Now().UTC())
	if err != nil {
		t.Fatalf("user: %v", err)
	}
	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func TestProperty_UserCreationPreservesAttributes(t *testing.T) {
	requireDB(t)
	repo := NewUserRepository(testDB)
	ctx := context.Background()

	properties := gopter.NewProperties(nil)

	properties.Property("creating and retrieving a user preserves email and username", prop.ForAll(
		func(address string, username string) bool {
			_, _ = testDB.Exec("DELETE FROM users WHERE email = $1", address)

			email, err := domain.NewEmail(address)
			if err != nil {
				t.Logf("invalid generated email %q: %v", address, err)
				return false
			}
			user, err := domain.NewUser(email, username, time.Now().UTC())
			if err != nil {
				t.Logf("Failed to build user: %v", err)
				return false
			}

			if err := repo.Create(ctx, user); err != nil {
				t.Logf("Failed to create user: %v", err)
				return false
			}

			byEmail, err := repo.FindByEmail(ctx, email)
			if err != nil {
				t.Logf("Failed to find user by email: %v", err)
				return false
			}
			byID, err := repo.FindByID(ctx, user.ID)
			if err != nil {
				t.Logf("Failed to find user by id: %v", err)
				return false
			}

			_, _ = testDB.Exec("DELETE FROM users WHERE id = $1", user.ID)

			return byEmail.ID == user.ID &&
				byID.Email == email &&
				byID.Username == user.Username
		},
		gen.RegexMatch(`[a-z]{5,10}@[a-z]{3,8}\.(com|org|net)`),
		gen.RegexMatch(`[A-Z][a-z]{2,15}`),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestUserRepository_DuplicateEmail(t *testing.T) {
	requireDB(t)
	repo := NewUserRepository(testDB)
	ctx := context.Background()

	user := createTestUser(t, repo)
	dup, err := domain.NewUser(user.Email, "someone-else", time.Now().UTC())
	if err != nil {
		t.Fatal(err)
	}

	if err := repo.Create(ctx, dup); err != ErrUserAlreadyExists {
		t.Errorf("expected ErrUserAlreadyExists, got %v", err)
	}
}

func TestUserRepository_NotFound(t *testing.T) {
	requireDB(t)
	repo := NewUserRepository(testDB)

	if _, err := repo.FindByEmail(context.Background(), "nobody@example.com"); err != ErrUserNotFound {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}
