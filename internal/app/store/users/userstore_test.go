package userstore

import (
	"errors"
	"testing"
	"time"

	"github.com/dalemusser/stratatrack/internal/domain/models"
	"github.com/dalemusser/stratatrack/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func newUser(username, email string) models.User {
	return models.User{
		Name:       "Test User",
		Username:   username,
		Email:      email,
		AuthMethod: models.AuthPassword,
	}
}

func TestStore_Create(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created, err := store.Create(ctx, models.User{
		Name:       "  Val Az ",
		Username:   " ValAz ",
		Email:      " Val@Example.COM ",
		AuthMethod: models.AuthPassword,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if created.ID.IsZero() {
		t.Error("Create() did not assign ID")
	}
	if created.CreatedAt.IsZero() || created.UpdatedAt.IsZero() {
		t.Error("Create() did not set timestamps")
	}
	if created.Status != "active" {
		t.Errorf("Create() Status = %q, want %q", created.Status, "active")
	}
	if created.Role != models.RoleUser {
		t.Errorf("Create() Role = %q, want %q", created.Role, models.RoleUser)
	}
	if created.Name != "Val Az" || created.Username != "ValAz" || created.Email != "val@example.com" {
		t.Errorf("Create() did not normalize fields: %+v", created)
	}
	if created.UsernameCI != "valaz" {
		t.Errorf("Create() UsernameCI = %q, want %q", created.UsernameCI, "valaz")
	}
}

func TestStore_Create_Invalid(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	badRole := newUser("alpha", "a@example.com")
	badRole.Role = "superuser"
	if _, err := store.Create(ctx, badRole); err == nil {
		t.Error("Create() with invalid role should return error")
	}

	badMethod := newUser("beta", "b@example.com")
	badMethod.AuthMethod = "carrier-pigeon"
	if _, err := store.Create(ctx, badMethod); err == nil {
		t.Error("Create() with invalid auth method should return error")
	}
}

func TestStore_Create_Duplicates(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := store.Create(ctx, newUser("valaz", "val@example.com")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	_, err := store.Create(ctx, newUser("VALAZ", "other@example.com"))
	if !errors.Is(err, ErrDuplicateUsername) {
		t.Errorf("Create() duplicate username error = %v, want ErrDuplicateUsername", err)
	}

	_, err = store.Create(ctx, newUser("someoneelse", "VAL@example.com"))
	if !errors.Is(err, ErrDuplicateEmail) {
		t.Errorf("Create() duplicate email error = %v, want ErrDuplicateEmail", err)
	}
}

func TestStore_Create_DemoUsersWithoutEmail(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	for _, name := range []string{"demo_one", "demo_two"} {
		u := models.User{Name: "Demo", Username: name, AuthMethod: models.AuthDemo, IsDemo: true}
		if _, err := store.Create(ctx, u); err != nil {
			t.Fatalf("Create(%s) error = %v; empty emails must not collide", name, err)
		}
	}
}

func TestStore_GetByIdentifier(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created, _ := store.Create(ctx, newUser("valaz", "val@example.com"))

	tests := []struct {
		name       string
		identifier string
		wantErr    error
	}{
		{"username", "valaz", nil},
		{"username any case", "  ValAZ ", nil},
		{"email", "val@example.com", nil},
		{"email any case", "Val@Example.com", nil},
		{"unknown", "nobody", ErrNotFound},
		{"blank", "   ", ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := store.GetByIdentifier(ctx, tt.identifier)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("GetByIdentifier(%q) error = %v, want %v", tt.identifier, err, tt.wantErr)
			}
			if tt.wantErr == nil && u.ID != created.ID {
				t.Errorf("GetByIdentifier(%q) returned user %v, want %v", tt.identifier, u.ID, created.ID)
			}
		})
	}
}

func TestStore_GetByID_NotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := store.GetByID(ctx, primitive.NewObjectID()); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID() error = %v, want ErrNotFound", err)
	}
}

func TestStore_UpdateProfile(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	hash := "original-hash"
	u := newUser("valaz", "val@example.com")
	u.PasswordHash = &hash
	created, _ := store.Create(ctx, u)
	if _, err := store.Create(ctx, newUser("taken", "taken@example.com")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	err := store.UpdateProfile(ctx, created.ID, ProfileUpdate{
		Name:     "Valentina",
		Username: "valentina",
		Email:    "VALENTINA@example.com",
	})
	if err != nil {
		t.Fatalf("UpdateProfile() error = %v", err)
	}

	got, _ := store.GetByID(ctx, created.ID)
	if got.Username != "valentina" || got.Email != "valentina@example.com" || got.Name != "Valentina" {
		t.Errorf("UpdateProfile() stored %+v", got)
	}
	if got.PasswordHash == nil || *got.PasswordHash != "original-hash" {
		t.Error("UpdateProfile() without a password should keep the existing hash")
	}

	err = store.UpdateProfile(ctx, created.ID, ProfileUpdate{Name: "V", Username: "Taken", Email: "v@example.com"})
	if !errors.Is(err, ErrDuplicateUsername) {
		t.Errorf("UpdateProfile() to a taken username error = %v, want ErrDuplicateUsername", err)
	}

	err = store.UpdateProfile(ctx, primitive.NewObjectID(), ProfileUpdate{Name: "X", Username: "xxx", Email: "x@example.com"})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateProfile() unknown user error = %v, want ErrNotFound", err)
	}
}

func TestStore_Exists(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created, _ := store.Create(ctx, newUser("valaz", "val@example.com"))

	if ok, _ := store.UsernameExists(ctx, " VALAZ", primitive.NilObjectID); !ok {
		t.Error("UsernameExists() should find an existing username case-insensitively")
	}
	if ok, _ := store.UsernameExists(ctx, "valaz", created.ID); ok {
		t.Error("UsernameExists() should exclude the given user")
	}
	if ok, _ := store.EmailExists(ctx, "VAL@example.com", primitive.NilObjectID); !ok {
		t.Error("EmailExists() should find an existing email case-insensitively")
	}
	if ok, _ := store.EmailExists(ctx, "free@example.com", primitive.NilObjectID); ok {
		t.Error("EmailExists() should report an unused email as free")
	}
}

func TestStore_Facebook(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created, _ := store.Create(ctx, newUser("valaz", "val@example.com"))
	if err := store.LinkFacebook(ctx, created.ID, "fb-123"); err != nil {
		t.Fatalf("LinkFacebook() error = %v", err)
	}

	got, err := store.GetByFacebookID(ctx, "fb-123")
	if err != nil {
		t.Fatalf("GetByFacebookID() error = %v", err)
	}
	if got.ID != created.ID {
		t.Errorf("GetByFacebookID() = %v, want %v", got.ID, created.ID)
	}
}

func TestStore_ExpiredDemoIDs(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	expired, _ := store.Create(ctx, models.User{Name: "D1", Username: "demo_old", AuthMethod: models.AuthDemo, IsDemo: true, DemoExpiresAt: &past})
	_, _ = store.Create(ctx, models.User{Name: "D2", Username: "demo_new", AuthMethod: models.AuthDemo, IsDemo: true, DemoExpiresAt: &future})
	_, _ = store.Create(ctx, newUser("regular", "r@example.com"))

	ids, err := store.ExpiredDemoIDs(ctx, now, 0)
	if err != nil {
		t.Fatalf("ExpiredDemoIDs() error = %v", err)
	}
	if len(ids) != 1 || ids[0] != expired.ID {
		t.Errorf("ExpiredDemoIDs() = %v, want [%v]", ids, expired.ID)
	}
}

func TestFetcher_FetchUser(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	fetcher := NewFetcher(db, zap.NewNop())
	ctx, cancel := testutil.TestContext()
	defer cancel()

	active, _ := store.Create(ctx, newUser("valaz", "val@example.com"))
	disabled := newUser("gone", "gone@example.com")
	disabled.Status = "disabled"
	disabledUser, _ := store.Create(ctx, disabled)
	past := time.Now().Add(-time.Minute)
	expiredDemo, _ := store.Create(ctx, models.User{Name: "Demo", Username: "demo_x", AuthMethod: models.AuthDemo, IsDemo: true, DemoExpiresAt: &past})

	su := fetcher.FetchUser(ctx, active.ID.Hex())
	if su == nil {
		t.Fatal("FetchUser() returned nil for an active user")
	}
	if su.Username != "valaz" || su.Email != "val@example.com" || su.Role != "user" {
		t.Errorf("FetchUser() = %+v", su)
	}

	for name, id := range map[string]string{
		"disabled":     disabledUser.ID.Hex(),
		"expired demo": expiredDemo.ID.Hex(),
		"unknown":      primitive.NewObjectID().Hex(),
		"malformed":    "not-an-id",
	} {
		if got := fetcher.FetchUser(ctx, id); got != nil {
			t.Errorf("FetchUser(%s) = %+v, want nil", name, got)
		}
	}
}

func TestStore_CountActiveAdmins(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	admin := newUser("boss", "boss@example.com")
	admin.Role = models.RoleAdmin
	_, _ = store.Create(ctx, admin)
	_, _ = store.Create(ctx, newUser("pleb", "pleb@example.com"))

	n, err := store.CountActiveAdmins(ctx)
	if err != nil {
		t.Fatalf("CountActiveAdmins() error = %v", err)
	}
	if n != 1 {
		t.Errorf("CountActiveAdmins() = %d, want 1", n)
	}

	var raw bson.M
	_ = db.Collection("users").FindOne(ctx, bson.M{"username": "boss"}).Decode(&raw)
	if raw["role"] != "admin" {
		t.Errorf("stored role = %v, want admin", raw["role"])
	}
}

func TestStore_SetRole(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u, err := store.Create(ctx, newUser("promoted", "promoted@example.com"))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := store.SetRole(ctx, u.ID, models.RoleAdmin); err != nil {
		t.Fatalf("SetRole() error = %v", err)
	}
	got, _ := store.GetByID(ctx, u.ID)
	if got == nil || got.Role != models.RoleAdmin {
		t.Errorf("role after SetRole = %+v, want admin", got)
	}

	if err := store.SetRole(ctx, u.ID, "superuser"); err == nil {
		t.Error("SetRole() with unknown role should fail")
	}
	if err := store.SetRole(ctx, primitive.NewObjectID(), models.RoleAdmin); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetRole() on missing user error = %v, want ErrNotFound", err)
	}
}
