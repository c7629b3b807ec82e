package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"atyourdoorstep-auth/internal/core/auth"
	"atyourdoorstep-auth/internal/core/clock"
	"atyourdoorstep-auth/internal/service"
	mdw "atyourdoorstep-auth/internal/transport/http/middleware"
	resp "atyourdoorstep-auth/internal/transport/http/response"
)

func init() { gin.SetMode(gin.TestMode) }

type fakeAuth struct {
	err       error
	lastIP    string
	lastEmail string
	profile   *service.UserProfile
}

func (f *fakeAuth) result() *service.AuthResult {
	return &service.AuthResult{AccessToken: "a", RefreshToken: "r", User: service.UserProfile{ID: "u1", Roles: []string{"User"}}}
}

func (f *fakeAuth) Register(_ context.Context, in service.RegisterInput) (*service.AuthResult, error) {
	f.lastIP, f.lastEmail = in.IP, in.Email
	if f.err != nil {
		return nil, f.err
	}
	return f.result(), nil
}

func (f *fakeAuth) Login(_ context.Context, email, _, ip string) (*service.AuthResult, error) {
	f.lastIP, f.lastEmail = ip, email
	if f.err != nil {
		return nil, f.err
	}
	return f.result(), nil
}

func (f *fakeAuth) Refresh(_ context.Context, _, ip string) (*service.AuthResult, error) {
	f.lastIP = ip
	if f.err != nil {
		return nil, f.err
	}
	return f.result(), nil
}

func (f *fakeAuth) Revoke(_ context.Context, token, _ string) (bool, error) {
	return token == "known", f.err
}

func (f *fakeAuth) GetUserByID(_ context.Context, id string) (*service.UserProfile, error) {
	if f.profile != nil && f.profile.ID == id {
		return f.profile, nil
	}
	return nil, f.err
}

type fakeAdmin struct{ err error }

func (f *fakeAdmin) ListUsers(context.Context, int, int, string) ([]service.UserProfile, int64, error) {
	return []service.UserProfile{{ID: "u1"}}, 1, f.err
}
func (f *fakeAdmin) DeactivateUser(_ context.Context, id, _ string) (int64, error) {
	return 2, f.err
}
func (f *fakeAdmin) RevokeUserTokens(_ context.Context, id, _ string) (int64, error) {
	return 3, f.err
}

func newJWTer(t *testing.T) *auth.JWTer {
	t.Helper()
	j, err := auth.NewJWTer("handler-secret", "ayds", "", time.Hour, clock.Real())
	if err != nil {
		t.Fatal(err)
	}
	return j
}

func do(r *gin.Engine, method, path, body, bearer string) resp.Resp {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "192.0.2.7:5555"
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var out resp.Resp
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return out
}

func newAPI(t *testing.T, svc AuthAPI) (*gin.Engine, *auth.JWTer) {
	j := newJWTer(t)
	r := gin.New()
	NewAuthHandler(svc, j).MountAPI(r.Group("/api/v1"))
	return r, j
}

func TestRegisterValidation(t *testing.T) {
	svc := &fakeAuth{}
	r, _ := newAPI(t, svc)
	long := strings.Repeat("x", 73)
	cases := []struct {
		name, body string
		code       int
	}{
		{"ok", `{"email":"a@x.com","password":"Secret123!","firstName":"A","lastName":"B"}`, resp.CodeOK},
		{"bad email", `{"email":"nope","password":"Secret123!","firstName":"A"}`, resp.CodeBadRequest},
		{"short password", `{"email":"a@x.com","password":"short","firstName":"A"}`, resp.CodeBadRequest},
		{"long password", fmt.Sprintf(`{"email":"a@x.com","password":%q,"firstName":"A"}`, long), resp.CodeBadRequest},
		{"missing first name", `{"email":"a@x.com","password":"Secret123!"}`, resp.CodeBadRequest},
		{"not json", `email=a@x.com`, resp.CodeBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := do(r, http.MethodPost, "/api/v1/auth/register", tc.body, ""); got.Code != tc.code {
				t.Fatalf("code = %d, want %d (%s)", got.Code, tc.code, got.Msg)
			}
		})
	}
	if svc.lastIP != "192.0.2.7" {
		t.Fatalf("ip = %q", svc.lastIP)
	}
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
		msg  string
	}{
		{service.ErrDuplicateEmail, resp.CodeConflict, "email already registered"},
		{service.ErrInvalidCredentials, resp.CodeUnauthorized, "invalid credentials"},
		{service.ErrAccountInactive, resp.CodeForbidden, "account inactive"},
		{service.ErrInvalidOrExpiredToken, resp.CodeUnauthorized, "invalid or expired token"},
		{fmt.Errorf("%w: password exceeds 72 bytes", service.ErrInvalidInput), resp.CodeBadRequest, "invalid input: password exceeds 72 bytes"},
		{fmt.Errorf("%w: pq: connection refused to 10.1.1.1", service.ErrInternal), resp.CodeServerError, "internal error"},
		{context.DeadlineExceeded, resp.CodeTimeout, "timeout"},
	}
	for _, tc := range cases {
		t.Run(tc.msg, func(t *testing.T) {
			r, _ := newAPI(t, &fakeAuth{err: tc.err})
			got := do(r, http.MethodPost, "/api/v1/auth/login", `{"email":"a@x.com","password":"pw"}`, "")
			if got.Code != tc.code || got.Msg != tc.msg {
				t.Fatalf("resp = %+v, want %d %q", got, tc.code, tc.msg)
			}
		})
	}
}

func TestRefreshAndRevoke(t *testing.T) {
	r, _ := newAPI(t, &fakeAuth{})
	if got := do(r, http.MethodPost, "/api/v1/auth/refresh", `{}`, ""); got.Code != resp.CodeBadRequest {
		t.Fatalf("empty refresh = %+v", got)
	}
	got := do(r, http.MethodPost, "/api/v1/auth/refresh", `{"refreshToken":"t"}`, "")
	data, _ := got.Data.(map[string]any)
	if got.Code != resp.CodeOK || data["refreshToken"] != "r" || data["accessToken"] != "a" {
		t.Fatalf("refresh = %+v", got)
	}

	for tok, want := range map[string]bool{"known": true, "unknown": false} {
		got := do(r, http.MethodPost, "/api/v1/auth/revoke", fmt.Sprintf(`{"refreshToken":%q}`, tok), "")
		data, _ := got.Data.(map[string]any)
		if got.Code != resp.CodeOK || data["revoked"] != want {
			t.Fatalf("revoke %s = %+v", tok, got)
		}
	}
}

func TestMe(t *testing.T) {
	svc := &fakeAuth{profile: &service.UserProfile{ID: "u1", Email: "a@x.com"}}
	r, j := newAPI(t, svc)

	if got := do(r, http.MethodGet, "/api/v1/me", "", ""); got.Code != resp.CodeUnauthorized {
		t.Fatalf("anonymous = %+v", got)
	}
	tok, _, _ := j.Issue(auth.Subject{ID: "u1"}, []string{"User"})
	got := do(r, http.MethodGet, "/api/v1/me", "", tok)
	data, _ := got.Data.(map[string]any)
	if got.Code != resp.CodeOK || data["email"] != "a@x.com" {
		t.Fatalf("me = %+v", got)
	}
	ghost, _, _ := j.Issue(auth.Subject{ID: "ghost"}, nil)
	if got := do(r, http.MethodGet, "/api/v1/me", "", ghost); got.Code != resp.CodeNotFound {
		t.Fatalf("ghost = %+v", got)
	}
}

func TestAdminRoutes(t *testing.T) {
	j := newJWTer(t)
	r := gin.New()
	NewAdminHandler(&fakeAdmin{}).MountAdmin(r.Group("/admin/v1", mdw.AuthJWT(j, RoleAdmin)))

	admin, _, _ := j.Issue(auth.Subject{ID: "root"}, []string{RoleAdmin})
	user, _, _ := j.Issue(auth.Subject{ID: "u1"}, []string{"User"})

	got := do(r, http.MethodGet, "/admin/v1/users?limit=5", "", admin)
	data, _ := got.Data.(map[string]any)
	if got.Code != resp.CodeOK || data["total"] != float64(1) {
		t.Fatalf("list = %+v", got)
	}
	if got := do(r, http.MethodGet, "/admin/v1/users?limit=500", "", admin); got.Code != resp.CodeBadRequest {
		t.Fatalf("limit over max = %+v", got)
	}
	if got := do(r, http.MethodGet, "/admin/v1/users", "", user); got.Code != resp.CodeForbidden {
		t.Fatalf("user on admin = %+v", got)
	}

	got = do(r, http.MethodPost, "/admin/v1/users/u1/deactivate", "", admin)
	data, _ = got.Data.(map[string]any)
	if got.Code != resp.CodeOK || data["revokedTokens"] != float64(2) || data["id"] != "u1" {
		t.Fatalf("deactivate = %+v", got)
	}
	got = do(r, http.MethodPost, "/admin/v1/users/u1/revoke-tokens", "", admin)
	data, _ = got.Data.(map[string]any)
	if got.Code != resp.CodeOK || data["revokedTokens"] != float64(3) {
		t.Fatalf("revoke-tokens = %+v", got)
	}
}

func TestAdminNotFound(t *testing.T) {
	j := newJWTer(t)
	r := gin.New()
	NewAdminHandler(&fakeAdmin{err: service.ErrUserNotFound}).MountAdmin(r.Group("/admin/v1", mdw.AuthJWT(j, RoleAdmin)))
	admin, _, _ := j.Issue(auth.Subject{ID: "root"}, []string{RoleAdmin})
	if got := do(r, http.MethodPost, "/admin/v1/users/nope/deactivate", "", admin); got.Code != resp.CodeNotFound {
		t.Fatalf("missing user = %+v", got)
	}
}

func TestMapErrKeepsCause(t *testing.T) {
	cause := errors.New("disk full")
	if err := mapErr(cause); !errors.Is(err, cause) {
		t.Fatalf("cause lost: %v", err)
	}
}
