package profile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rajivgeraev/bazaar-api/internal/apperr"
	"github.com/rajivgeraev/bazaar-api/internal/config"
	"github.com/rajivgeraev/bazaar-api/internal/models"
	"github.com/rajivgeraev/bazaar-api/internal/storage"
	"github.com/rajivgeraev/bazaar-api/internal/utils"
)

type memoryStore struct {
	profiles     map[uuid.UUID]models.Profile
	setAvatarErr error
}

func (m *memoryStore) Get(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	p, ok := m.profiles[id]
	if !ok {
		return nil, apperr.NotFound("профиль не найден")
	}
	return &p, nil
}

func (m *memoryStore) Update(ctx context.Context, id uuid.UUID, patch models.ProfilePatch) (*models.Profile, error) {
	p, ok := m.profiles[id]
	if !ok {
		return nil, apperr.NotFound("профиль не найден")
	}
	if patch.Username != nil {
		for otherID, other := range m.profiles {
			if otherID != id && other.Username == *patch.Username {
				return nil, apperr.Conflict("имя пользователя занято")
			}
		}
		p.Username = *patch.Username
	}
	if patch.FullName != nil {
		p.FullName = *patch.FullName
	}
	if patch.Bio != nil {
		p.Bio = patch.Bio
	}
	m.profiles[id] = p
	return &p, nil
}

func (m *memoryStore) SetAvatar(ctx context.Context, id uuid.UUID, url string) (*models.Profile, error) {
	if m.setAvatarErr != nil {
		return nil, m.setAvatarErr
	}
	p := m.profiles[id]
	p.AvatarURL = &url
	m.profiles[id] = p
	return &p, nil
}

type fixture struct {
	app   *fiber.App
	store *memoryStore
	files *storage.MemoryStore
	jwt   *utils.JWTService
	me    uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := &config.Config{Storage: config.StorageConfig{AvatarBucket: "profile-images", MaxUploadSize: 1024}}
	f := &fixture{
		store: &memoryStore{profiles: map[uuid.UUID]models.Profile{}},
		files: storage.NewMemoryStore("http://cdn.test"),
		jwt:   utils.NewJWTService("secret", time.Hour),
		me:    uuid.New(),
		app:   fiber.New(),
	}
	f.store.profiles[f.me] = models.Profile{ID: f.me, Username: "seller", FullName: "Sam Seller", MemberSince: time.Now()}
	NewProfileService(cfg, f.store, f.files, f.jwt).SetupRoutes(f.app)
	return f
}

func (f *fixture) do(t *testing.T, req *http.Request, auth bool) (int, map[string]any) {
	t.Helper()
	if auth {
		token, _, err := f.jwt.GenerateToken(f.me, "seller@example.com")
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := f.app.Test(req)
	require.NoError(t, err)
	var out map[string]any
	data, _ := io.ReadAll(resp.Body)
	if len(data) > 0 {
		require.NoError(t, json.Unmarshal(data, &out))
	}
	return resp.StatusCode, out
}

func jsonRequest(method, path string, body any) *http.Request {
	data, _ := json.Marshal(body)
	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func avatarRequest(t *testing.T, filename string) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile("avatar", filename)
	require.NoError(t, err)
	_, _ = part.Write([]byte("avatar-bytes"))
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/profiles/me/avatar", body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestGetProfile(t *testing.T) {
	f := newFixture(t)

	status, out := f.do(t, httptest.NewRequest(http.MethodGet, "/api/profiles/"+f.me.String(), nil), false)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "seller", out["username"])

	status, out = f.do(t, httptest.NewRequest(http.MethodGet, "/api/profiles/"+uuid.NewString(), nil), false)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "not_found", out["kind"])

	status, _ = f.do(t, httptest.NewRequest(http.MethodGet, "/api/profiles/me", nil), false)
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, out = f.do(t, httptest.NewRequest(http.MethodGet, "/api/profiles/me", nil), true)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, f.me.String(), out["id"])
}

func TestUpdateMyProfile(t *testing.T) {
	f := newFixture(t)
	other := uuid.New()
	f.store.profiles[other] = models.Profile{ID: other, Username: "taken"}

	status, out := f.do(t, jsonRequest(http.MethodPut, "/api/profiles/me", map[string]any{
		"full_name": "  Samantha Seller ",
		"bio":       "Selling vintage cameras",
	}), true)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "Samantha Seller", out["full_name"])
	assert.Equal(t, "Selling vintage cameras", out["bio"])
	assert.Equal(t, "seller", out["username"])

	status, out = f.do(t, jsonRequest(http.MethodPut, "/api/profiles/me", map[string]any{"username": "taken"}), true)
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "conflict", out["kind"])

	status, out = f.do(t, jsonRequest(http.MethodPut, "/api/profiles/me", map[string]any{"username": "no spaces!"}), true)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "validation", out["kind"])

	status, _ = f.do(t, jsonRequest(http.MethodPut, "/api/profiles/me", map[string]any{"response_rate": 140}), true)
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestUpdateMyProfileTrimsBeforeValidation(t *testing.T) {
	f := newFixture(t)

	for _, body := range []map[string]any{
		{"full_name": "   A   "},
		{"username": "   ab   "},
		{"full_name": "      "},
	} {
		status, out := f.do(t, jsonRequest(http.MethodPut, "/api/profiles/me", body), true)
		assert.Equal(t, fiber.StatusBadRequest, status, body)
		assert.Equal(t, "validation", out["kind"], body)
	}
	assert.Equal(t, "Sam Seller", f.store.profiles[f.me].FullName)

	status, out := f.do(t, jsonRequest(http.MethodPut, "/api/profiles/me", map[string]any{"username": "  new_seller  "}), true)
	require.Equal(t, fiber.StatusOK, status, out)
	assert.Equal(t, "new_seller", out["username"])
}

func TestUploadAvatarOverwrites(t *testing.T) {
	f := newFixture(t)

	status, out := f.do(t, avatarRequest(t, "me.PNG"), true)
	require.Equal(t, fiber.StatusOK, status, out)
	assert.Equal(t, "http://cdn.test/profile-images/"+f.me.String()+"/avatar.png", out["avatar_url"])

	status, _ = f.do(t, avatarRequest(t, "me.png"), true)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, 1, f.files.Len())

	status, out = f.do(t, avatarRequest(t, "me.svg"), true)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "validation", out["kind"])
}

func TestUploadAvatarPersistFailure(t *testing.T) {
	f := newFixture(t)
	f.store.setAvatarErr = apperr.Wrap(apperr.KindNetwork, "db down", errors.New("timeout"))

	status, out := f.do(t, avatarRequest(t, "me.jpg"), true)
	assert.Equal(t, fiber.StatusBadGateway, status)
	assert.Equal(t, []any{"http://cdn.test/profile-images/" + f.me.String() + "/avatar.jpg"}, out["orphaned_urls"])
	assert.Equal(t, 1, f.files.Len())
}
