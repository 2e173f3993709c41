package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestAdminLoginAndOverdue(t *testing.T) {
	r, db := newTestRouter(t)

	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(`
		INSERT INTO admins (id, email, password_hash) VALUES ('adm-1', 'ops@example.com', ?)
	`, string(hash)); err != nil {
		t.Fatalf("seed admin: %v", err)
	}

	// Login sets the session cookie.
	w := doJSON(t, r, http.MethodPost, "/api/admin/login", "", AdminLoginRequest{
		Email: "Ops@Example.com", Password: "hunter2",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("login: status %d body %s", w.Code, w.Body.String())
	}
	var cookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == adminCookieName {
			cookie = c
		}
	}
	if cookie == nil || cookie.Value == "" {
		t.Fatal("login did not set the admin session cookie")
	}

	withCookie := func(method, path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, nil)
		req.AddCookie(cookie)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w = withCookie(http.MethodGet, "/api/admin/me")
	if w.Code != http.StatusOK {
		t.Fatalf("me: status %d", w.Code)
	}
	me := decode[AdminMeResponse](t, w)
	if me.Email != "ops@example.com" {
		t.Fatalf("me email %q", me.Email)
	}

	w = withCookie(http.MethodGet, "/api/admin/duels/overdue")
	if w.Code != http.StatusOK {
		t.Fatalf("overdue: status %d body %s", w.Code, w.Body.String())
	}
	overdue := decode[OverdueDuelsResponse](t, w)
	if overdue.Duels == nil {
		t.Fatal("duels should decode to an empty slice, not null")
	}

	w = withCookie(http.MethodPost, "/api/admin/duels/reap")
	if w.Code != http.StatusOK {
		t.Fatalf("reap: status %d body %s", w.Code, w.Body.String())
	}

	// Logout invalidates the session.
	w = withCookie(http.MethodPost, "/api/admin/logout")
	if w.Code != http.StatusNoContent {
		t.Fatalf("logout: status %d", w.Code)
	}
	w = withCookie(http.MethodGet, "/api/admin/me")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("me after logout: status %d, want 401", w.Code)
	}
}

func TestAdminLoginWrongPassword(t *testing.T) {
	r, db := newTestRouter(t)

	hash, _ := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	if _, err := db.Exec(`
		INSERT INTO admins (id, email, password_hash) VALUES ('adm-1', 'ops@example.com', ?)
	`, string(hash)); err != nil {
		t.Fatal(err)
	}

	w := doJSON(t, r, http.MethodPost, "/api/admin/login", "", AdminLoginRequest{
		Email: "ops@example.com", Password: "letmein",
	})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password: status %d, want 401", w.Code)
	}
}
