package users

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/freshmartsg/freshmart-backend/pkg/db"
	"github.com/freshmartsg/freshmart-backend/pkg/db/models"
	"github.com/freshmartsg/freshmart-backend/pkg/enums"
)

func setupUsersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	usersTable := `
CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  password_hash TEXT NOT NULL,
  full_name TEXT NOT NULL DEFAULT '',
  phone TEXT NOT NULL DEFAULT '',
  role TEXT NOT NULL DEFAULT 'user',
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, conn.Exec(usersTable).Error)
	return conn
}

func mustCreateUser(t *testing.T, repo *Repository, email string) *models.User {
	t.Helper()

	user := &models.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: "argon2id$stub",
		FullName:     "Test User",
		Role:         enums.UserRoleShopper,
	}
	require.NoError(t, repo.Create(context.Background(), user))
	return user
}

func TestUserLookupByEmailIsCaseInsensitive(t *testing.T) {
	repo := NewRepository(setupUsersTestDB(t))
	created := mustCreateUser(t, repo, "casey@example.sg")

	found, err := repo.FindByEmail(context.Background(), "CASEY@Example.SG")
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Equal(t, created.ID, found.ID)
}

func TestUserLookupMissingReturnsNil(t *testing.T) {
	repo := NewRepository(setupUsersTestDB(t))

	found, err := repo.FindByEmail(context.Background(), "nobody@example.sg")
	require.NoError(t, err)
	require.Nil(t, found)

	found, err = repo.FindByID(context.Background(), uuid.New())
	require.NoError(t, err)
	require.Nil(t, found)
}

func TestDuplicateEmailSurfacesUniqueViolation(t *testing.T) {
	repo := NewRepository(setupUsersTestDB(t))
	mustCreateUser(t, repo, "dupe@example.sg")

	err := repo.Create(context.Background(), &models.User{
		ID:           uuid.New(),
		Email:        "dupe@example.sg",
		PasswordHash: "argon2id$stub",
		Role:         enums.UserRoleShopper,
	})
	require.Error(t, err)
	require.True(t, db.IsUniqueViolation(err, ""))
}

func TestFindByIDReturnsAccount(t *testing.T) {
	repo := NewRepository(setupUsersTestDB(t))
	created := mustCreateUser(t, repo, "ida@example.sg")

	found, err := repo.FindByID(context.Background(), created.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Equal(t, "ida@example.sg", found.Email)
}
