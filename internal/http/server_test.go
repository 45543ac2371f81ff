package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"smartledger/internal/alerts"
	"smartledger/internal/auth"
	"smartledger/internal/categories"
	"smartledger/internal/kv/memory"
	"smartledger/internal/storage"
	"smartledger/internal/toast"
)

func newMemoryServer(t *testing.T) *Server {
	t.Helper()

	store := categories.NewStore(memory.NewBackend())
	srv := NewServer(":0", Options{Store: store})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return srv
}

func newSQLiteServer(t *testing.T) *Server {
	t.Helper()

	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	store := categories.NewStore(repo)
	toasts := toast.NewQueue()
	srv := NewServer(":0", Options{
		Store:    store,
		Repo:     repo,
		Sessions: auth.NewSessions("0123456789abcdef0123456789abcdef", time.Hour),
		Checker:  alerts.NewChecker(repo, store, toasts, 2.5),
		Toasts:   toasts,
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return srv
}

func postForm(srv *Server, path string, form url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)
	return rec
}

func get(srv *Server, path string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)
	return rec
}

func register(t *testing.T, srv *Server) *http.Cookie {
	t.Helper()

	rec := postForm(srv, "/register", url.Values{
		"email":    {"test@example.com"},
		"password": {"correcthorse"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("register status = %d, body = %s", rec.Code, rec.Body.String())
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.SessionCookie {
			return c
		}
	}
	t.Fatal("register set no session cookie")
	return nil
}

func TestHealthEndpoints(t *testing.T) {
	srv := newMemoryServer(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		if rec := get(srv, path); rec.Code != http.StatusOK {
			t.Errorf("GET %s status = %d, want 200", path, rec.Code)
		}
	}
}

func TestIndexRenders(t *testing.T) {
	srv := newMemoryServer(t)

	rec := get(srv, "/")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET / status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "SmartLedger") {
		t.Error("index page missing title")
	}
}

func TestCategoriesPartialShowsDefaults(t *testing.T) {
	srv := newMemoryServer(t)

	rec := get(srv, "/ui/categories")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /ui/categories status = %d", rec.Code)
	}
	for _, name := range []string{"식비", "교통", "기타"} {
		if !strings.Contains(rec.Body.String(), name) {
			t.Errorf("category partial missing %q", name)
		}
	}
}

func TestAddCategory(t *testing.T) {
	srv := newMemoryServer(t)

	rec := postForm(srv, "/categories", url.Values{
		"name":   {"여행"},
		"icon":   {"travel"},
		"budget": {"200000"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("add status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if trigger := rec.Header().Get("HX-Trigger"); !strings.Contains(trigger, "categories:changed") {
		t.Errorf("HX-Trigger = %q, want categories:changed", trigger)
	}
	if !strings.Contains(rec.Body.String(), "여행") {
		t.Error("response fragment missing new category")
	}
}

func TestAddCategoryRejectsEmptyName(t *testing.T) {
	srv := newMemoryServer(t)

	rec := postForm(srv, "/categories", url.Values{"name": {"   "}})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rec.Code)
	}
}

func TestAddCategoryRejectsBadBudget(t *testing.T) {
	srv := newMemoryServer(t)

	rec := postForm(srv, "/categories", url.Values{
		"name":   {"여행"},
		"budget": {"not-a-number"},
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestCategoryIndexMutations(t *testing.T) {
	srv := newMemoryServer(t)

	tests := []struct {
		name string
		path string
		form url.Values
		want int
	}{
		{"rename", "/categories/0/rename", url.Values{"name": {"밥값"}}, http.StatusOK},
		{"budget", "/categories/1/budget", url.Values{"budget": {"120000"}}, http.StatusOK},
		{"spent", "/categories/1/spent", url.Values{"spent": {"45000"}}, http.StatusOK},
		{"delete", "/categories/7/delete", nil, http.StatusOK},
		{"delete out of range", "/categories/99/delete", nil, http.StatusNotFound},
		{"rename out of range", "/categories/99/rename", url.Values{"name": {"x"}}, http.StatusNotFound},
		{"non numeric index", "/categories/abc/delete", nil, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postForm(srv, tt.path, tt.form)
			if rec.Code != tt.want {
				t.Errorf("POST %s status = %d, want %d", tt.path, rec.Code, tt.want)
			}
		})
	}
}

func TestResetCategories(t *testing.T) {
	srv := newMemoryServer(t)

	if rec := postForm(srv, "/categories/0/rename", url.Values{"name": {"밥값"}}); rec.Code != http.StatusOK {
		t.Fatalf("rename status = %d", rec.Code)
	}

	rec := postForm(srv, "/categories/reset", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("reset status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "식비") {
		t.Error("reset fragment missing default category")
	}
	if strings.Contains(rec.Body.String(), "밥값") {
		t.Error("reset fragment still shows renamed category")
	}
}

func TestReceiptRoutesNeedRepository(t *testing.T) {
	srv := newMemoryServer(t)

	rec := postForm(srv, "/receipts", url.Values{"merchant": {"이마트"}, "total": {"10000"}})
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestReceiptRoutesNeedSession(t *testing.T) {
	srv := newSQLiteServer(t)

	rec := postForm(srv, "/receipts", url.Values{"merchant": {"이마트"}, "total": {"10000"}})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestRegisterLoginFlow(t *testing.T) {
	srv := newSQLiteServer(t)
	cookie := register(t, srv)

	// Duplicate registration conflicts.
	rec := postForm(srv, "/register", url.Values{
		"email":    {"test@example.com"},
		"password": {"correcthorse"},
	})
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate register status = %d, want 409", rec.Code)
	}

	// Wrong password is rejected.
	rec = postForm(srv, "/login", url.Values{
		"email":    {"test@example.com"},
		"password": {"wrongpassword"},
	})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad login status = %d, want 401", rec.Code)
	}

	// Correct login issues a cookie.
	rec = postForm(srv, "/login", url.Values{
		"email":    {"test@example.com"},
		"password": {"correcthorse"},
	})
	if rec.Code != http.StatusOK {
		t.Errorf("login status = %d", rec.Code)
	}

	// The session cookie opens the receipt routes.
	rec = get(srv, "/ui/receipts", cookie)
	if rec.Code != http.StatusOK {
		t.Errorf("receipts with session status = %d", rec.Code)
	}
}

func TestRegisterValidation(t *testing.T) {
	srv := newSQLiteServer(t)

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{"bad email", "not-an-email", "correcthorse"},
		{"short password", "a@example.com", "short"},
		{"empty email", "", "correcthorse"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postForm(srv, "/register", url.Values{
				"email":    {tt.email},
				"password": {tt.password},
			})
			if rec.Code != http.StatusUnprocessableEntity {
				t.Errorf("status = %d, want 422", rec.Code)
			}
		})
	}
}

func TestCreateAndDeleteReceipt(t *testing.T) {
	srv := newSQLiteServer(t)
	cookie := register(t, srv)

	form := url.Values{
		"merchant": {"이마트"},
		"category": {"식비"},
		"total":    {"34500"},
		"date":     {"2026-08-15"},
		"memo":     {"장보기"},
	}
	rec := postForm(srv, "/receipts", form, cookie)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if trigger := rec.Header().Get("HX-Trigger"); !strings.Contains(trigger, "receipt:created") {
		t.Errorf("HX-Trigger = %q, want receipt:created", trigger)
	}

	// The same merchant, amount and day is a duplicate.
	rec = postForm(srv, "/receipts", form, cookie)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("duplicate status = %d, want 422", rec.Code)
	}

	// The listing shows the receipt.
	rec = get(srv, "/ui/receipts?year=2026&month=8", cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("listing status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "이마트") {
		t.Error("listing missing receipt")
	}

	// Deleting removes it from the listing.
	rec = postForm(srv, "/receipts/1/delete", nil, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d, body = %s", rec.Code, rec.Body.String())
	}
	rec = get(srv, "/ui/receipts?year=2026&month=8", cookie)
	if strings.Contains(rec.Body.String(), "이마트") {
		t.Error("listing still shows deleted receipt")
	}

	// A second delete is a 404.
	rec = postForm(srv, "/receipts/1/delete", nil, cookie)
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rec.Code)
	}
}

func TestCreateReceiptValidation(t *testing.T) {
	srv := newSQLiteServer(t)
	cookie := register(t, srv)

	tests := []struct {
		name string
		form url.Values
		want int
	}{
		{"bad total", url.Values{"merchant": {"x"}, "total": {"abc"}}, http.StatusBadRequest},
		{"bad date", url.Values{"merchant": {"x"}, "total": {"100"}, "date": {"15/08/2026"}}, http.StatusBadRequest},
		{"empty merchant", url.Values{"merchant": {""}, "total": {"100"}}, http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postForm(srv, "/receipts", tt.form, cookie)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestMonthReport(t *testing.T) {
	srv := newSQLiteServer(t)
	cookie := register(t, srv)

	seed := []url.Values{
		{"merchant": {"이마트"}, "category": {"식비"}, "total": {"30000"}, "date": {"2026-08-05"}},
		{"merchant": {"버스"}, "category": {"교통"}, "total": {"1500"}, "date": {"2026-08-06"}},
	}
	for _, form := range seed {
		if rec := postForm(srv, "/receipts", form, cookie); rec.Code != http.StatusCreated {
			t.Fatalf("seed status = %d", rec.Code)
		}
	}

	rec := get(srv, "/ui/month-report?year=2026&month=8", cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("report status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"식비", "교통", "31,500"} {
		if !strings.Contains(body, want) {
			t.Errorf("report missing %q", want)
		}
	}

	// A category change invalidates the cached report.
	if rec := postForm(srv, "/categories/0/budget", url.Values{"budget": {"10000"}}); rec.Code != http.StatusOK {
		t.Fatalf("budget change status = %d", rec.Code)
	}
	rec = get(srv, "/ui/month-report?year=2026&month=8", cookie)
	if !strings.Contains(rec.Body.String(), "10,000") {
		t.Error("report not rebuilt after budget change")
	}
}

func TestExportCSV(t *testing.T) {
	srv := newSQLiteServer(t)
	cookie := register(t, srv)

	form := url.Values{
		"merchant": {"이마트"}, "category": {"식비"},
		"total": {"30000"}, "date": {"2026-08-05"},
	}
	if rec := postForm(srv, "/receipts", form, cookie); rec.Code != http.StatusCreated {
		t.Fatalf("seed status = %d", rec.Code)
	}

	rec := get(srv, "/export/csv?year=2026&month=8", cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("export status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "smartledger_receipts_") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if !strings.Contains(rec.Body.String(), "이마트") {
		t.Error("CSV missing receipt row")
	}

	// An empty month has nothing to export.
	rec = get(srv, "/export/csv?year=2026&month=1", cookie)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("empty export status = %d, want 422", rec.Code)
	}
}

func TestExportExcel(t *testing.T) {
	srv := newSQLiteServer(t)
	cookie := register(t, srv)

	form := url.Values{
		"merchant": {"이마트"}, "category": {"식비"},
		"total": {"30000"}, "date": {"2026-08-05"},
	}
	if rec := postForm(srv, "/receipts", form, cookie); rec.Code != http.StatusCreated {
		t.Fatalf("seed status = %d", rec.Code)
	}

	rec := get(srv, "/export/xlsx?year=2026&month=8", cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("export status = %d", rec.Code)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, ".xlsx") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if rec.Body.Len() == 0 {
		t.Error("empty xlsx body")
	}
}

func TestAlertsFlow(t *testing.T) {
	srv := newSQLiteServer(t)
	cookie := register(t, srv)

	// Three months of history, then one outlier to trip the overspend check.
	history := []url.Values{
		{"merchant": {"a"}, "category": {"식비"}, "total": {"9000"}, "date": {"2026-05-10"}},
		{"merchant": {"b"}, "category": {"식비"}, "total": {"10000"}, "date": {"2026-06-10"}},
		{"merchant": {"c"}, "category": {"식비"}, "total": {"11000"}, "date": {"2026-07-10"}},
		{"merchant": {"오마카세"}, "category": {"식비"}, "total": {"180000"}, "date": {"2026-08-15"}},
	}
	for _, form := range history {
		if rec := postForm(srv, "/receipts", form, cookie); rec.Code != http.StatusCreated {
			t.Fatalf("seed status = %d", rec.Code)
		}
	}

	rec := get(srv, "/ui/alerts", cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("alerts status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "식비") {
		t.Error("alert list missing overspend alert")
	}

	// Dismissing clears the list.
	if rec := postForm(srv, "/alerts/1/read", nil, cookie); rec.Code != http.StatusOK {
		t.Fatalf("dismiss status = %d", rec.Code)
	}
	rec = get(srv, "/ui/alerts", cookie)
	if strings.Contains(rec.Body.String(), "알림") {
		t.Error("alert list still shows dismissed alert")
	}

	// Dismissing again is a 404.
	if rec := postForm(srv, "/alerts/1/read", nil, cookie); rec.Code != http.StatusNotFound {
		t.Errorf("second dismiss status = %d, want 404", rec.Code)
	}
}

func TestToastsDrain(t *testing.T) {
	srv := newSQLiteServer(t)
	cookie := register(t, srv)

	form := url.Values{
		"merchant": {"이마트"}, "category": {"식비"},
		"total": {"30000"}, "date": {"2026-08-05"},
	}
	if rec := postForm(srv, "/receipts", form, cookie); rec.Code != http.StatusCreated {
		t.Fatalf("seed status = %d", rec.Code)
	}

	rec := get(srv, "/ui/toasts")
	if rec.Code != http.StatusOK {
		t.Fatalf("toasts status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "이마트") {
		t.Error("toast fragment missing save notice")
	}

	// Drained once, the queue is empty.
	rec = get(srv, "/ui/toasts")
	if strings.Contains(rec.Body.String(), "이마트") {
		t.Error("toast delivered twice")
	}
}

func TestSecurityHeaders(t *testing.T) {
	srv := newMemoryServer(t)

	rec := get(srv, "/ui/categories")
	headers := map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
	}
	for name, want := range headers {
		if got := rec.Header().Get(name); got != want {
			t.Errorf("%s = %q, want %q", name, got, want)
		}
	}
	if rec.Header().Get("Content-Security-Policy") == "" {
		t.Error("missing Content-Security-Policy header")
	}
}

func TestRateLimiter(t *testing.T) {
	rl := newRateLimiter()
	defer rl.stop()

	for i := 0; i < 60; i++ {
		if !rl.allow("10.0.0.1") {
			t.Fatalf("request %d denied below the limit", i+1)
		}
	}
	if rl.allow("10.0.0.1") {
		t.Error("request 61 allowed past the limit")
	}
	if !rl.allow("10.0.0.2") {
		t.Error("other client denied")
	}
}

func TestSanitizeInput(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"trims whitespace", "  이마트  ", "이마트"},
		{"strips control chars", "a\x00b\x1fc", "abc"},
		{"keeps newline and tab", "a\tb\nc", "a\tb\nc"},
		{"empty", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizeInput(tt.input); got != tt.want {
				t.Errorf("sanitizeInput(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{"forwarded for", map[string]string{"X-Forwarded-For": "1.2.3.4"}, "1.2.3.4"},
		{"real ip", map[string]string{"X-Real-IP": "5.6.7.8"}, "5.6.7.8"},
		{"remote addr", nil, "192.0.2.1:1234"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := clientIP(req); got != tt.want {
				t.Errorf("clientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
