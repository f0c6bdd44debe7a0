package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"flagcast/internal/platform"
	"flagcast/internal/settings"
	"flagcast/internal/storage"
	logx "flagcast/pkg/logx"
)

// memStore is an in-memory storage.Store for handler tests.
type memStore struct {
	mu         sync.Mutex
	nextID     int64
	challenges map[int64]platform.Challenge
	solves     map[int64][]platform.Solve
	settings   map[string]string
	deliveries []storage.Delivery
}

func newMemStore() *memStore {
	return &memStore{
		challenges: map[int64]platform.Challenge{},
		solves:     map[int64][]platform.Solve{},
		settings:   map[string]string{},
	}
}

func (m *memStore) CreateChallenge(_ context.Context, ch *platform.Challenge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	ch.ID = m.nextID
	m.challenges[ch.ID] = *ch
	return nil
}

func (m *memStore) UpdateChallenge(_ context.Context, ch *platform.Challenge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.challenges[ch.ID]; !ok {
		return platform.ErrNotFound
	}
	m.challenges[ch.ID] = *ch
	return nil
}

func (m *memStore) GetChallenge(_ context.Context, id int64) (platform.Challenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.challenges[id]
	if !ok {
		return platform.Challenge{}, platform.ErrNotFound
	}
	return ch, nil
}

func (m *memStore) ListChallenges(_ context.Context) ([]platform.Challenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]platform.Challenge, 0, len(m.challenges))
	for _, ch := range m.challenges {
		out = append(out, ch)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) InsertSolve(_ context.Context, sv *platform.Solve) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.solves[sv.ChallengeID] {
		if existing.UserName == sv.UserName {
			return false, nil
		}
	}
	m.solves[sv.ChallengeID] = append(m.solves[sv.ChallengeID], *sv)
	return true, nil
}

func (m *memStore) CountSolves(_ context.Context, challengeID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.solves[challengeID]), nil
}

func (m *memStore) GetSetting(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.settings[key]
	return v, ok, nil
}

func (m *memStore) SetSetting(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[key] = value
	return nil
}

func (m *memStore) AppendDelivery(_ context.Context, d storage.Delivery) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deliveries = append(m.deliveries, d)
	return nil
}

func (m *memStore) ListDeliveries(_ context.Context, limit int) ([]storage.Delivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]storage.Delivery(nil), m.deliveries...)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) PruneDeliveries(_ context.Context, olderThan time.Time) (int64, error) {
	return 0, nil
}

func (m *memStore) Close() error { return nil }

func (m *memStore) setting(key string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings[key]
}

func newTestWeb(t *testing.T, cfg Config) (*Service, *memStore) {
	t.Helper()
	store := newMemStore()
	set := settings.New(store, logx.Nop())
	hooks := platform.NewHooks(logx.Nop())
	plat := platform.NewService(store, hooks, logx.Nop())
	return New(cfg, set, plat, store, logx.Nop()), store
}

func doJSON(t *testing.T, s *Service, method, path string, body any) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.App().Test(req, 5000)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func TestChallengeAPI(t *testing.T) {
	s, _ := newTestWeb(t, Config{})

	resp := doJSON(t, s, http.MethodPost, "/api/challenges", map[string]any{
		"name": "pwn1", "category": "pwn", "value": 500, "state": "hidden",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	var created challengeJSON
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.ID == 0 || created.State != "hidden" {
		t.Fatalf("created = %+v", created)
	}

	resp = doJSON(t, s, http.MethodPut, "/api/challenges/1", map[string]any{
		"name": "pwn1", "category": "pwn", "value": 500, "state": "visible",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update status = %d", resp.StatusCode)
	}

	resp = doJSON(t, s, http.MethodGet, "/api/challenges/1", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d", resp.StatusCode)
	}
	var got struct {
		Challenge challengeJSON `json:"challenge"`
		Solves    int           `json:"solves"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Challenge.State != "visible" || got.Solves != 0 {
		t.Fatalf("got = %+v", got)
	}

	if resp = doJSON(t, s, http.MethodGet, "/api/challenges/404", nil); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing challenge status = %d", resp.StatusCode)
	}
}

func TestSolveSubmission(t *testing.T) {
	s, _ := newTestWeb(t, Config{})

	doJSON(t, s, http.MethodPost, "/api/challenges", map[string]any{"name": "web1", "state": "visible"})

	resp := doJSON(t, s, http.MethodPost, "/api/challenges/1/solves", map[string]any{"user": "alice"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("first solve status = %d", resp.StatusCode)
	}

	resp = doJSON(t, s, http.MethodPost, "/api/challenges/1/solves", map[string]any{"user": "alice"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("repeat solve status = %d", resp.StatusCode)
	}
	var out struct {
		Created bool `json:"created"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Created {
		t.Fatal("repeat solve reported created=true")
	}
}

func TestAuthToken(t *testing.T) {
	s, _ := newTestWeb(t, Config{Token: "hunter2"})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	resp, err := s.App().Test(req, 5000)
	if err != nil {
		t.Fatalf("Test: %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("no token status = %d, want 401", resp.StatusCode)
	}

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Authorization", "Bearer hunter2")
	resp, err = s.App().Test(req, 5000)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("bearer token status = %d, err = %v", resp.StatusCode, err)
	}

	req = httptest.NewRequest(http.MethodGet, "/healthz?token=hunter2", nil)
	resp, err = s.App().Test(req, 5000)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("query token status = %d, err = %v", resp.StatusCode, err)
	}
}

var nonceRe = regexp.MustCompile(`name="nonce" value="([^"]+)"`)

// getForm fetches the admin page and returns the session cookie and nonce.
func getForm(t *testing.T, s *Service) (cookie, nonce string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/admin/notifier", nil)
	resp, err := s.App().Test(req, 5000)
	if err != nil {
		t.Fatalf("GET form: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET form status = %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	m := nonceRe.FindSubmatch(body)
	if m == nil {
		t.Fatalf("form has no nonce: %s", body)
	}
	for _, c := range resp.Cookies() {
		if c.Name == "session_id" {
			cookie = c.Name + "=" + c.Value
		}
	}
	if cookie == "" {
		t.Fatal("no session cookie set")
	}
	return cookie, string(m[1])
}

func postForm(t *testing.T, s *Service, cookie string, form url.Values) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/admin/notifier", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if cookie != "" {
		req.Header.Set("Cookie", cookie)
	}
	resp, err := s.App().Test(req, 5000)
	if err != nil {
		t.Fatalf("POST form: %v", err)
	}
	return resp
}

func TestAdminFormSave(t *testing.T) {
	s, store := newTestWeb(t, Config{})
	cookie, nonce := getForm(t, s)

	form := url.Values{}
	form.Set("nonce", nonce)
	form.Set("enabled", "on")
	form.Set("bot_token", "123:abc")
	form.Set("chat_id", "-100987")
	form.Set("challenge_enabled", "on")
	form.Set("message_template", "new: {name}")
	form.Set("solve_enabled", "on")
	form.Set("solve_limit", "5")
	form.Set("base_url", "https://ctf.example.org")

	resp := postForm(t, s, cookie, form)
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("save status = %d, want 303", resp.StatusCode)
	}

	if got := store.setting(settings.KeyTelegramEnabled); got != "on" {
		t.Fatalf("enabled = %q, want on", got)
	}
	if got := store.setting(settings.KeyBotToken); got != "123:abc" {
		t.Fatalf("bot token = %q", got)
	}
	if got := store.setting(settings.KeyChallengeTmpl); got != "new: {name}" {
		t.Fatalf("template = %q", got)
	}
	if got := store.setting(settings.KeySolveLimit); got != "5" {
		t.Fatalf("solve limit = %q", got)
	}
	// Unchecked checkbox would store "off"; empty templates reset to defaults.
	if got := store.setting(settings.KeyFirstBloodTmpl); got != settings.DefaultFirstBloodTemplate {
		t.Fatalf("first blood template = %q, want default", got)
	}
}

func TestAdminFormNonceMismatchDoesNotSave(t *testing.T) {
	s, store := newTestWeb(t, Config{})
	cookie, _ := getForm(t, s)

	form := url.Values{}
	form.Set("nonce", "wrong")
	form.Set("bot_token", "stolen")

	resp := postForm(t, s, cookie, form)
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303 redirect", resp.StatusCode)
	}
	if got := store.setting(settings.KeyBotToken); got != "" {
		t.Fatalf("bot token saved despite nonce mismatch: %q", got)
	}
}
