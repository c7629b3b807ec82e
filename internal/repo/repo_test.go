package repo

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"gorm.io/gorm"

	"atyourdoorstep-auth/internal/core/cache"
	"atyourdoorstep-auth/internal/core/clock"
	"atyourdoorstep-auth/internal/core/database"
	"atyourdoorstep-auth/internal/domain"
	"atyourdoorstep-auth/internal/feature/user"
	"atyourdoorstep-auth/pkg/utils"
)

func newTestDB(t *testing.T) (*gorm.DB, *clock.Fake) {
	t.Helper()
	db, err := database.NewGorm(database.Opts{Driver: "sqlite", DSN: ":memory:", LogLevel: "silent"})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := SeedRoles(context.Background(), db, []string{"Admin", "User"}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db, clock.NewFake(time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC))
}

func addUser(t *testing.T, users *UserRepo, email string) *domain.User {
	t.Helper()
	u := &domain.User{ID: utils.NewID(), Email: email, PasswordHash: "h", FirstName: "F", LastName: "L", IsActive: true}
	if err := users.Add(context.Background(), u); err != nil {
		t.Fatalf("add user: %v", err)
	}
	return u
}

func addToken(t *testing.T, tokens *RefreshTokenRepo, userID, hash string, ttl time.Duration, now time.Time) *domain.RefreshToken {
	t.Helper()
	rt := &domain.RefreshToken{ID: utils.NewID(), UserID: userID, TokenHash: hash, ExpiresAt: now.Add(ttl)}
	if err := tokens.Add(context.Background(), rt); err != nil {
		t.Fatalf("add token: %v", err)
	}
	return rt
}

func TestUserRepoEmailCaseInsensitive(t *testing.T) {
	db, clk := newTestDB(t)
	users := NewUserRepo(db, clk)
	ctx := context.Background()
	u := addUser(t, users, "Foo@Example.com")
	if u.Email != "foo@example.com" {
		t.Fatalf("email not normalized: %q", u.Email)
	}

	got, err := users.FindByEmail(ctx, "FOO@example.COM")
	if err != nil || got == nil || got.ID != u.ID {
		t.Fatalf("find = %+v, %v", got, err)
	}
	ok, err := users.EmailExists(ctx, " foo@EXAMPLE.com ")
	if err != nil || !ok {
		t.Fatalf("exists = %v, %v", ok, err)
	}

	dup := &domain.User{ID: utils.NewID(), Email: "FOO@example.com", PasswordHash: "h", IsActive: true}
	if err := users.Add(ctx, dup); !errors.Is(err, domain.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestUserRepoListWildcardsAreLiteral(t *testing.T) {
	db, clk := newTestDB(t)
	users := NewUserRepo(db, clk)
	for _, email := range []string{"a_b@x.com", "axb@x.com", "off50%@x.com", "bang!@x.com"} {
		addUser(t, users, email)
		clk.Advance(time.Second)
	}
	cases := map[string]string{
		"_":   "a_b@x.com",
		"a_b": "a_b@x.com",
		"%":   "off50%@x.com",
		"!":   "bang!@x.com",
	}
	for q, want := range cases {
		got, total, err := users.List(context.Background(), 0, 10, q)
		if err != nil {
			t.Fatalf("list %q: %v", q, err)
		}
		if total != 1 || len(got) != 1 || got[0].Email != want {
			t.Fatalf("list %q = %d rows (total %d), want only %s", q, len(got), total, want)
		}
	}
	if _, total, _ := users.List(context.Background(), 0, 10, "x.com"); total != 4 {
		t.Fatalf("plain search total = %d, want 4", total)
	}
}

func TestUserRepoRolesAndMissing(t *testing.T) {
	db, clk := newTestDB(t)
	users := NewUserRepo(db, clk)
	roles := NewRoleRepo(db)
	ctx := context.Background()
	u := addUser(t, users, "r@x.com")

	admin, err := roles.FindByName(ctx, "Admin")
	if err != nil || admin == nil {
		t.Fatalf("role = %+v, %v", admin, err)
	}
	if err := users.AddRole(ctx, u.ID, admin.ID); err != nil {
		t.Fatalf("add role: %v", err)
	}
	if err := users.AddRole(ctx, u.ID, admin.ID); err == nil {
		t.Fatal("duplicate (user, role) accepted")
	}

	got, err := users.FindByIDWithRoles(ctx, u.ID)
	if err != nil || got == nil {
		t.Fatalf("find = %+v, %v", got, err)
	}
	if names := got.RoleNames(); len(names) != 1 || names[0] != "Admin" {
		t.Fatalf("roles = %v", names)
	}

	if missing, err := users.FindByIDWithRoles(ctx, "nope"); err != nil || missing != nil {
		t.Fatalf("missing = %+v, %v", missing, err)
	}
	if r, err := roles.FindByName(ctx, "Ghost"); err != nil || r != nil {
		t.Fatalf("ghost role = %+v, %v", r, err)
	}
}

func TestUserRepoSoftDeleteHidden(t *testing.T) {
	db, clk := newTestDB(t)
	users := NewUserRepo(db, clk)
	ctx := context.Background()
	u := addUser(t, users, "soft@x.com")

	if err := db.Delete(&user.UserModel{}, "id = ?", u.ID).Error; err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got, _ := users.FindByEmail(ctx, "soft@x.com"); got != nil {
		t.Fatal("soft-deleted user returned by email")
	}
	if got, _ := users.FindByIDWithRoles(ctx, u.ID); got != nil {
		t.Fatal("soft-deleted user returned by id")
	}
	if _, total, _ := users.List(ctx, 0, 10, ""); total != 0 {
		t.Fatalf("list total = %d", total)
	}
	u.FirstName = "X"
	if err := users.Update(ctx, u); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("update of deleted user: %v", err)
	}
}

func TestUserRepoUpdateTimestamps(t *testing.T) {
	db, clk := newTestDB(t)
	users := NewUserRepo(db, clk)
	ctx := context.Background()
	u := addUser(t, users, "ts@x.com")
	created := clk.Now()

	clk.Advance(time.Hour)
	u.IsActive = false
	if err := users.Update(ctx, u); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ := users.FindByIDWithRoles(ctx, u.ID)
	if got.IsActive {
		t.Fatal("isActive not persisted")
	}
	if !got.CreatedAt.Equal(created) || !got.UpdatedAt.Equal(clk.Now()) {
		t.Fatalf("timestamps created=%v updated=%v", got.CreatedAt, got.UpdatedAt)
	}
}

func TestUserRepoInactiveStoredAsFalse(t *testing.T) {
	db, clk := newTestDB(t)
	users := NewUserRepo(db, clk)
	u := &domain.User{ID: utils.NewID(), Email: "off@x.com", PasswordHash: "h"}
	if err := users.Add(context.Background(), u); err != nil {
		t.Fatalf("add: %v", err)
	}
	got, _ := users.FindByIDWithRoles(context.Background(), u.ID)
	if got.IsActive {
		t.Fatal("inactive user stored as active")
	}
}

func TestFindValidByHashFilters(t *testing.T) {
	db, clk := newTestDB(t)
	users := NewUserRepo(db, clk)
	tokens := NewRefreshTokenRepo(db, clk)
	ctx := context.Background()
	u := addUser(t, users, "tok@x.com")

	live := addToken(t, tokens, u.ID, "live", time.Hour, clk.Now())
	addToken(t, tokens, u.ID, "short", time.Minute, clk.Now())
	revoked := addToken(t, tokens, u.ID, "revoked", time.Hour, clk.Now())
	if ok, err := tokens.MarkRevoked(ctx, revoked); err != nil || !ok {
		t.Fatalf("mark = %v, %v", ok, err)
	}
	clk.Advance(2 * time.Minute)

	if got, err := tokens.FindValidByHash(ctx, "live"); err != nil || got == nil || got.ID != live.ID {
		t.Fatalf("live = %+v, %v", got, err)
	}
	for _, h := range []string{"short", "revoked", "unknown"} {
		if got, err := tokens.FindValidByHash(ctx, h); err != nil || got != nil {
			t.Fatalf("%s = %+v, %v", h, got, err)
		}
	}
	if got, _ := tokens.FindByHash(ctx, "revoked"); got == nil || !got.Revoked || got.RevokedAt == nil {
		t.Fatalf("audit lookup = %+v", got)
	}
}

func TestMarkRevokedSingleWinner(t *testing.T) {
	db, clk := newTestDB(t)
	tokens := NewRefreshTokenRepo(db, clk)
	u := addUser(t, NewUserRepo(db, clk), "win@x.com")
	rt := addToken(t, tokens, u.ID, "h", time.Hour, clk.Now())

	const n = 10
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cp := *rt
			ok, err := tokens.MarkRevoked(context.Background(), &cp)
			if err != nil {
				t.Errorf("mark: %v", err)
				return
			}
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("wins = %d, want 1", wins)
	}
}

func TestRevokeAllForUser(t *testing.T) {
	db, clk := newTestDB(t)
	users := NewUserRepo(db, clk)
	tokens := NewRefreshTokenRepo(db, clk)
	ctx := context.Background()
	a := addUser(t, users, "a@x.com")
	b := addUser(t, users, "b@x.com")
	addToken(t, tokens, a.ID, "a1", time.Hour, clk.Now())
	addToken(t, tokens, a.ID, "a2", time.Hour, clk.Now())
	addToken(t, tokens, b.ID, "b1", time.Hour, clk.Now())

	n, err := tokens.RevokeAllForUser(ctx, a.ID, "1.1.1.1")
	if err != nil || n != 2 {
		t.Fatalf("revoke all = %d, %v", n, err)
	}
	if got, _ := tokens.FindValidByHash(ctx, "b1"); got == nil {
		t.Fatal("other user's token revoked")
	}
	if got, _ := tokens.FindByHash(ctx, "a2"); got.RevokedByIP != "1.1.1.1" {
		t.Fatalf("revokedByIp = %q", got.RevokedByIP)
	}
}

func TestStoreInTxRollback(t *testing.T) {
	db, clk := newTestDB(t)
	store := NewStore(db, clk)
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.InTx(ctx, func(tx domain.Stores) error {
		u := &domain.User{ID: utils.NewID(), Email: "tx@x.com", PasswordHash: "h", IsActive: true}
		if err := tx.Users.Add(ctx, u); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if ok, _ := store.Stores().Users.EmailExists(ctx, "tx@x.com"); ok {
		t.Fatal("rolled back insert is visible")
	}
}

func TestSeedRolesIdempotent(t *testing.T) {
	db, _ := newTestDB(t)
	if err := SeedRoles(context.Background(), db, []string{"Admin", "User", "Manager"}); err != nil {
		t.Fatalf("reseed: %v", err)
	}
	var n int64
	db.Model(&user.RoleModel{}).Count(&n)
	if n != 3 {
		t.Fatalf("roles = %d, want 3", n)
	}
}

type countingRoles struct {
	next  domain.RoleStore
	calls int
}

func (c *countingRoles) FindByName(ctx context.Context, name string) (*domain.Role, error) {
	c.calls++
	return c.next.FindByName(ctx, name)
}

func TestCachedRoleStore(t *testing.T) {
	db, clk := newTestDB(t)
	mr := miniredis.RunT(t)
	c := cache.New(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = c.Close() })

	inner := &countingRoles{next: NewRoleRepo(db)}
	store := NewStore(db, clk).WithRoleStore(NewCachedRoleStore(inner, c, time.Minute))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		r, err := store.Stores().Roles.FindByName(ctx, "User")
		if err != nil || r == nil || r.Name != "User" {
			t.Fatalf("lookup #%d = %+v, %v", i, r, err)
		}
	}
	if inner.calls != 1 {
		t.Fatalf("db lookups = %d, want 1", inner.calls)
	}

	if r, err := store.Stores().Roles.FindByName(ctx, "Ghost"); err != nil || r != nil {
		t.Fatalf("ghost = %+v, %v", r, err)
	}
	if mr.Exists("role:name:Ghost") {
		t.Fatal("miss was cached")
	}

	mr.SetError("LOADING redis is loading the dataset")
	if r, err := store.Stores().Roles.FindByName(ctx, "Admin"); err != nil || r == nil {
		t.Fatalf("redis down fallback = %+v, %v", r, err)
	}

	// 事务内始终走数据库
	_ = store.InTx(ctx, func(tx domain.Stores) error {
		if _, ok := tx.Roles.(*RoleRepo); !ok {
			t.Errorf("tx roles = %T, want *RoleRepo", tx.Roles)
		}
		return nil
	})
}
