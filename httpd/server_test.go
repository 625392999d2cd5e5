package httpd

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	adminhub "github.com/MrEthical07/adminhub"
	"github.com/MrEthical07/adminhub/mailer"
	"github.com/MrEthical07/adminhub/postgres"
)

/*
====================================
TEST FIXTURES
====================================
*/

type stubProvider struct {
	mu       sync.Mutex
	accounts map[string]adminhub.Account
	serial   int
}

func newStubProvider() *stubProvider {
	return &stubProvider{accounts: map[string]adminhub.Account{}}
}

func (p *stubProvider) GetAccountByEmail(_ context.Context, email string) (adminhub.Account, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, acct := range p.accounts {
		if acct.Email == email {
			return acct, nil
		}
	}
	return adminhub.Account{}, adminhub.ErrProviderNotFound
}

func (p *stubProvider) GetAccountByID(_ context.Context, id string) (adminhub.Account, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	acct, ok := p.accounts[id]
	if !ok {
		return adminhub.Account{}, adminhub.ErrProviderNotFound
	}
	return acct, nil
}

func (p *stubProvider) CreateAccount(_ context.Context, input adminhub.CreateAccountInput) (adminhub.Account, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, acct := range p.accounts {
		if acct.Email == input.Email {
			return adminhub.Account{}, adminhub.ErrProviderDuplicateEmail
		}
	}
	p.serial++
	acct := adminhub.Account{
		ID:           "acct-" + strings.Repeat("x", p.serial),
		Name:         input.Name,
		Email:        input.Email,
		PasswordHash: input.PasswordHash,
		Role:         input.Role,
		Active:       input.Active,
		CreatedAt:    time.Now(),
	}
	p.accounts[acct.ID] = acct
	return acct, nil
}

func (p *stubProvider) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	acct, ok := p.accounts[id]
	if !ok {
		return adminhub.ErrProviderNotFound
	}
	acct.LastLoginAt = at
	p.accounts[id] = acct
	return nil
}

func (p *stubProvider) UpdatePasswordHash(_ context.Context, id string, newHash string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	acct, ok := p.accounts[id]
	if !ok {
		return adminhub.ErrProviderNotFound
	}
	acct.PasswordHash = newHash
	p.accounts[id] = acct
	return nil
}

func (p *stubProvider) SetAccountActive(_ context.Context, id string, active bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	acct, ok := p.accounts[id]
	if !ok {
		return adminhub.ErrProviderNotFound
	}
	acct.Active = active
	p.accounts[id] = acct
	return nil
}

type memContent struct {
	mu     sync.Mutex
	blogs  map[string]postgres.Blog
	forms  []postgres.ContactForm
	subs   map[string]postgres.Subscription
	serial int
}

func newMemContent() *memContent {
	return &memContent{
		blogs: map[string]postgres.Blog{},
		subs:  map[string]postgres.Subscription{},
	}
}

func (c *memContent) nextID() string {
	c.serial++
	return "id-" + strings.Repeat("z", c.serial)
}

func (c *memContent) CreateBlog(_ context.Context, blog postgres.Blog) (postgres.Blog, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, b := range c.blogs {
		if b.Slug == blog.Slug {
			return postgres.Blog{}, postgres.ErrDuplicate
		}
	}
	blog.ID = c.nextID()
	blog.CreatedAt = time.Now()
	blog.UpdatedAt = blog.CreatedAt
	c.blogs[blog.ID] = blog
	return blog, nil
}

func (c *memContent) ListBlogs(context.Context) ([]postgres.Blog, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]postgres.Blog, 0, len(c.blogs))
	for _, b := range c.blogs {
		out = append(out, b)
	}
	return out, nil
}

func (c *memContent) GetBlogBySlug(_ context.Context, slug string) (postgres.Blog, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, b := range c.blogs {
		if b.Slug == slug {
			return b, nil
		}
	}
	return postgres.Blog{}, postgres.ErrNotFound
}

func (c *memContent) GetBlogByID(_ context.Context, id string) (postgres.Blog, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.blogs[id]
	if !ok {
		return postgres.Blog{}, postgres.ErrNotFound
	}
	return b, nil
}

func (c *memContent) UpdateBlog(_ context.Context, blog postgres.Blog) (postgres.Blog, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.blogs[blog.ID]; !ok {
		return postgres.Blog{}, postgres.ErrNotFound
	}
	blog.UpdatedAt = time.Now()
	c.blogs[blog.ID] = blog
	return blog, nil
}

func (c *memContent) DeleteBlog(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.blogs[id]; !ok {
		return postgres.ErrNotFound
	}
	delete(c.blogs, id)
	return nil
}

func (c *memContent) CreateContactForm(_ context.Context, form postgres.ContactForm) (postgres.ContactForm, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	form.ID = c.nextID()
	form.CreatedAt = time.Now()
	c.forms = append(c.forms, form)
	return form, nil
}

func (c *memContent) ListContactForms(context.Context) ([]postgres.ContactForm, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]postgres.ContactForm(nil), c.forms...), nil
}

func (c *memContent) CreateSubscription(_ context.Context, email string) (postgres.Subscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.subs[email]; ok {
		return postgres.Subscription{}, postgres.ErrDuplicate
	}
	sub := postgres.Subscription{ID: c.nextID(), Email: email, CreatedAt: time.Now()}
	c.subs[email] = sub
	return sub, nil
}

func (c *memContent) ListSubscriptions(context.Context) ([]postgres.Subscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]postgres.Subscription, 0, len(c.subs))
	for _, s := range c.subs {
		out = append(out, s)
	}
	return out, nil
}

type recordingMail struct {
	mu   sync.Mutex
	sent []mailer.Notification
}

func (m *recordingMail) Publish(_ context.Context, n mailer.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, n)
	return nil
}

func (m *recordingMail) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func newServerTest(t *testing.T) (http.Handler, *adminhub.Engine, *memContent, *recordingMail, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg := adminhub.DefaultConfig()
	cfg.JWT.SigningMethod = "hs256"
	cfg.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.JWT.AccessTTL = 5 * time.Minute
	cfg.JWT.RefreshTTL = time.Hour
	cfg.Ledger.SweepInterval = 0
	cfg.Ledger.JitterEnabled = false
	cfg.Ledger.JitterRange = 0
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Password.KeyLength = 16
	cfg.Security.EnableLoginThrottle = false
	cfg.Security.EnableRefreshThrottle = false
	cfg.Security.RequireSecureCookies = false

	engine, err := adminhub.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithAccountProvider(newStubProvider()).
		Build()
	if err != nil {
		rdb.Close()
		mr.Close()
		t.Fatalf("engine build: %v", err)
	}

	content := newMemContent()
	mail := &recordingMail{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	server := NewServer(engine, content, nil, mail, nil, nil, logger, Config{
		RefreshTTL: cfg.JWT.RefreshTTL,
	})

	return server.Handler(), engine, content, mail, func() {
		engine.Close()
		rdb.Close()
		mr.Close()
	}
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any, prepare func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if prepare != nil {
		prepare(req)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v (%s)", err, rec.Body.String())
	}
	return env
}

func refreshCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == RefreshTokenCookie {
			return c
		}
	}
	return nil
}

func registerAccount(t *testing.T, handler http.Handler, email string) (accessToken string, cookie *http.Cookie) {
	t.Helper()
	rec := doJSON(t, handler, http.MethodPost, "/auth/register", map[string]string{
		"name":     "Test Admin",
		"email":    email,
		"password": "hunter2secret",
	}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	env := decodeEnvelope(t, rec)
	var data struct {
		AccessToken string `json:"accessToken"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode register data: %v", err)
	}

	cookie = refreshCookie(rec)
	if cookie == nil || cookie.Value == "" {
		t.Fatal("register: expected refresh token cookie")
	}
	if !cookie.HttpOnly {
		t.Fatal("register: refresh cookie must be HttpOnly")
	}
	return data.AccessToken, cookie
}

/*
====================================
AUTH FLOW
====================================
*/

func TestRegisterAcceptsDocumentedBody(t *testing.T) {
	handler, _, _, _, done := newServerTest(t)
	defer done()

	rec := doJSON(t, handler, http.MethodPost, "/auth/register", map[string]string{
		"name":     "Ada Admin",
		"email":    "ada@example.com",
		"password": "hunter2secret",
	}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	env := decodeEnvelope(t, rec)
	var data struct {
		Account struct {
			Name  string `json:"name"`
			Email string `json:"email"`
		} `json:"account"`
		AccessToken string `json:"accessToken"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode register data: %v", err)
	}
	if data.Account.Name != "Ada Admin" {
		t.Fatalf("expected display name echoed back, got %q", data.Account.Name)
	}
	if data.AccessToken == "" {
		t.Fatal("expected access token in register response")
	}
}

func TestAuthCookieFlow(t *testing.T) {
	handler, _, _, _, done := newServerTest(t)
	defer done()

	access, cookie := registerAccount(t, handler, "flow@example.com")

	// Refresh rotates both the access token and the cookie.
	rec := doJSON(t, handler, http.MethodPost, "/auth/refresh", nil, func(req *http.Request) {
		req.AddCookie(cookie)
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	rotated := refreshCookie(rec)
	if rotated == nil || rotated.Value == cookie.Value {
		t.Fatal("refresh must rotate the cookie value")
	}

	// The consumed cookie is now poison: rejected and cleared.
	rec = doJSON(t, handler, http.MethodPost, "/auth/refresh", nil, func(req *http.Request) {
		req.AddCookie(cookie)
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("replayed refresh: expected 401, got %d", rec.Code)
	}
	// Reuse gets its own message so clients know to force a fresh login
	// rather than retry the cookie.
	if env := decodeEnvelope(t, rec); env.Message != "session revoked, please log in again" {
		t.Fatalf("replayed refresh: expected reuse message, got %q", env.Message)
	}
	cleared := refreshCookie(rec)
	if cleared == nil || cleared.MaxAge >= 0 {
		t.Fatal("replayed refresh must clear the cookie")
	}

	// Logout clears the cookie even after the session is gone.
	rec = doJSON(t, handler, http.MethodPost, "/auth/logout", nil, func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+access)
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("logout: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRefreshWithoutCookie(t *testing.T) {
	handler, _, _, _, done := newServerTest(t)
	defer done()

	rec := doJSON(t, handler, http.MethodPost, "/auth/refresh", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestLoginBadCredentials(t *testing.T) {
	handler, _, _, _, done := newServerTest(t)
	defer done()

	registerAccount(t, handler, "creds@example.com")

	rec := doJSON(t, handler, http.MethodPost, "/auth/login", map[string]string{
		"email":    "creds@example.com",
		"password": "wrongpassword",
	}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if env.Success {
		t.Fatal("expected success=false on failure")
	}
	if env.Message != "invalid credentials" {
		t.Fatalf("expected stable error message, got %q", env.Message)
	}
}

/*
====================================
CONTENT
====================================
*/

func multipartBody(t *testing.T, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field %s: %v", k, err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func TestBlogLifecycle(t *testing.T) {
	handler, _, _, _, done := newServerTest(t)
	defer done()

	access, _ := registerAccount(t, handler, "author@example.com")

	body, contentType := multipartBody(t, map[string]string{
		"title": "First Post",
		"slug":  "first-post",
		"body":  "Hello there.",
	})
	req := httptest.NewRequest(http.MethodPost, "/blogs", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+access)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create blog: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	env := decodeEnvelope(t, rec)
	var created postgres.Blog
	if err := json.Unmarshal(env.Data, &created); err != nil {
		t.Fatalf("decode blog: %v", err)
	}
	if created.AuthorID == "" {
		t.Fatal("expected author to be stamped from the session")
	}

	// Public reads need no token.
	rec = doJSON(t, handler, http.MethodGet, "/blogs/first-post", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get blog: expected 200, got %d", rec.Code)
	}
	rec = doJSON(t, handler, http.MethodGet, "/blogs/missing-slug", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing blog: expected 404, got %d", rec.Code)
	}

	// Partial update keeps unset fields.
	body, contentType = multipartBody(t, map[string]string{"title": "Renamed"})
	req = httptest.NewRequest(http.MethodPut, "/blogs/"+created.ID, body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+access)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("update blog: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var updated postgres.Blog
	if err := json.Unmarshal(decodeEnvelope(t, rec).Data, &updated); err != nil {
		t.Fatalf("decode updated blog: %v", err)
	}
	if updated.Title != "Renamed" || updated.Slug != "first-post" {
		t.Fatalf("partial update mismatch: %+v", updated)
	}

	req = httptest.NewRequest(http.MethodDelete, "/blogs/"+created.ID, nil)
	req.Header.Set("Authorization", "Bearer "+access)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete blog: expected 200, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodGet, "/blogs/first-post", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("deleted blog: expected 404, got %d", rec.Code)
	}
}

func TestCreateBlogValidation(t *testing.T) {
	handler, _, _, _, done := newServerTest(t)
	defer done()

	access, _ := registerAccount(t, handler, "strict@example.com")

	// Uppercase slugs are rejected.
	body, contentType := multipartBody(t, map[string]string{
		"title": "Bad Slug",
		"slug":  "Bad Slug!",
		"body":  "text",
	})
	req := httptest.NewRequest(http.MethodPost, "/blogs", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+access)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	// Writes require a session.
	body, contentType = multipartBody(t, map[string]string{
		"title": "No Auth",
		"slug":  "no-auth",
		"body":  "text",
	})
	req = httptest.NewRequest(http.MethodPost, "/blogs", body)
	req.Header.Set("Content-Type", contentType)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestContactFormNotifies(t *testing.T) {
	handler, _, _, mail, done := newServerTest(t)
	defer done()

	rec := doJSON(t, handler, http.MethodPost, "/contact", map[string]string{
		"name":    "Visitor",
		"email":   "visitor@example.com",
		"message": "Hello!",
	}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	// Publication is async; give it a moment.
	deadline := time.Now().Add(2 * time.Second)
	for mail.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if mail.count() != 1 {
		t.Fatalf("expected 1 notification, got %d", mail.count())
	}

	rec = doJSON(t, handler, http.MethodPost, "/contact", map[string]string{
		"name":    "",
		"email":   "bad",
		"message": "",
	}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid form: expected 400, got %d", rec.Code)
	}
}

func TestSubscriptions(t *testing.T) {
	handler, _, _, _, done := newServerTest(t)
	defer done()

	rec := doJSON(t, handler, http.MethodPost, "/subscriptions", map[string]string{
		"email": "Reader@Example.com",
	}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var sub postgres.Subscription
	if err := json.Unmarshal(decodeEnvelope(t, rec).Data, &sub); err != nil {
		t.Fatalf("decode subscription: %v", err)
	}
	if sub.Email != "reader@example.com" {
		t.Fatalf("expected lowercased email, got %q", sub.Email)
	}

	rec = doJSON(t, handler, http.MethodPost, "/subscriptions", map[string]string{
		"email": "reader@example.com",
	}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("duplicate: expected 400, got %d", rec.Code)
	}

	// The list is an admin surface.
	rec = doJSON(t, handler, http.MethodGet, "/subscriptions", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated list: expected 401, got %d", rec.Code)
	}

	access, _ := registerAccount(t, handler, "staff@example.com")
	rec = doJSON(t, handler, http.MethodGet, "/subscriptions", nil, func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+access)
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("admin list: expected 200, got %d", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	handler, _, _, _, done := newServerTest(t)
	defer done()

	rec := doJSON(t, handler, http.MethodGet, "/healthz", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}
