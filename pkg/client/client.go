// Package client HTTP-клиент Bazaar API и держатель сессии для приложений на Go.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TokenSource отдаёт текущий access-токен; пустая строка означает анонимный запрос
type TokenSource interface {
	AccessToken() string
}

// Option настраивает Client
type Option func(*Client)

// WithHTTPClient задаёт http.Client
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithTokenSource задаёт источник access-токена
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// Client вызывает Bazaar API. Запросы не повторяются автоматически.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
}

// New создаёт клиент для baseURL (например, https://api.example.com)
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", baseURL)
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type request struct {
	method string
	path   string
	query  url.Values
	body   any
	files  []UploadFile
	field  string
	// token переопределяет TokenSource
	token string
}

// do выполняет запрос и декодирует JSON-ответ в out (если out != nil)
func (c *Client) do(ctx context.Context, r request, out any) error {
	body, contentType, err := encodeBody(r)
	if err != nil {
		return &Error{Kind: KindValidation, Message: "не удалось сформировать запрос", Err: err}
	}

	target := c.baseURL + r.path
	if len(r.query) > 0 {
		target += "?" + r.query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, r.method, target, body)
	if err != nil {
		return &Error{Kind: KindValidation, Message: "не удалось сформировать запрос", Err: err}
	}
	c.setHeaders(req, r, contentType)

	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{Kind: KindNetwork, Message: "сервер недоступен", Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Kind: KindNetwork, Message: "ошибка чтения ответа", Err: err}
	}

	if resp.StatusCode >= 300 {
		return decodeError(resp.StatusCode, data)
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &Error{Kind: KindUnknown, Message: "неожиданный формат ответа", StatusCode: resp.StatusCode, Err: err}
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request, r request, contentType string) {
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	token := r.token
	if token == "" && c.tokens != nil {
		token = c.tokens.AccessToken()
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

func encodeBody(r request) (io.Reader, string, error) {
	if len(r.files) > 0 {
		buf := &bytes.Buffer{}
		w := multipart.NewWriter(buf)
		for _, f := range r.files {
			part, err := w.CreateFormFile(r.field, f.Name)
			if err != nil {
				return nil, "", err
			}
			if _, err := io.Copy(part, f.Content); err != nil {
				return nil, "", err
			}
		}
		if err := w.Close(); err != nil {
			return nil, "", err
		}
		return buf, w.FormDataContentType(), nil
	}

	if r.body == nil {
		return nil, "", nil
	}
	data, err := json.Marshal(r.body)
	if err != nil {
		return nil, "", err
	}
	return bytes.NewReader(data), "application/json", nil
}

func decodeError(status int, data []byte) error {
	apiErr := &Error{}
	if err := json.Unmarshal(data, apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	apiErr.StatusCode = status
	if apiErr.Kind == "" {
		apiErr.Kind = kindForStatus(status)
	}
	return apiErr
}

// Listings возвращает страницу публичных объявлений
func (c *Client) Listings(ctx context.Context, f ListingFilter) (*ListingPage, error) {
	q := url.Values{}
	if f.Category != "" {
		q.Set("category", f.Category)
	}
	if f.Search != "" {
		q.Set("search", f.Search)
	}
	if f.Featured != nil {
		q.Set("featured", strconv.FormatBool(*f.Featured))
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	if f.Offset > 0 {
		q.Set("offset", strconv.Itoa(f.Offset))
	}

	var page ListingPage
	if err := c.do(ctx, request{method: http.MethodGet, path: "/api/listings", query: q}, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// Listing возвращает объявление по ID
func (c *Client) Listing(ctx context.Context, id uuid.UUID) (*Listing, error) {
	var listing Listing
	if err := c.do(ctx, request{method: http.MethodGet, path: "/api/listings/" + id.String()}, &listing); err != nil {
		return nil, err
	}
	return &listing, nil
}

// UserListings возвращает объявления пользователя
func (c *Client) UserListings(ctx context.Context, userID uuid.UUID) ([]Listing, error) {
	return c.listings(ctx, "/api/users/"+userID.String()+"/listings")
}

// MyListings возвращает объявления текущего пользователя
func (c *Client) MyListings(ctx context.Context) ([]Listing, error) {
	return c.listings(ctx, "/api/listings/my")
}

func (c *Client) listings(ctx context.Context, path string) ([]Listing, error) {
	var out struct {
		Listings []Listing `json:"listings"`
	}
	if err := c.do(ctx, request{method: http.MethodGet, path: path}, &out); err != nil {
		return nil, err
	}
	return out.Listings, nil
}

// CreateListing создаёт объявление
func (c *Client) CreateListing(ctx context.Context, in CreateListingInput) (*Listing, error) {
	var listing Listing
	if err := c.do(ctx, request{method: http.MethodPost, path: "/api/listings", body: in}, &listing); err != nil {
		return nil, err
	}
	return &listing, nil
}

// UpdateListing обновляет объявление
func (c *Client) UpdateListing(ctx context.Context, id uuid.UUID, in UpdateListingInput) (*Listing, error) {
	var listing Listing
	if err := c.do(ctx, request{method: http.MethodPut, path: "/api/listings/" + id.String(), body: in}, &listing); err != nil {
		return nil, err
	}
	return &listing, nil
}

// DeleteListing удаляет объявление
func (c *Client) DeleteListing(ctx context.Context, id uuid.UUID) error {
	return c.do(ctx, request{method: http.MethodDelete, path: "/api/listings/" + id.String()}, nil)
}

// UploadListingImages загружает изображения без привязки к объявлению.
// При частичной ошибке *Error.OrphanedURLs содержит уже загруженные файлы.
func (c *Client) UploadListingImages(ctx context.Context, files []UploadFile) ([]string, error) {
	var out struct {
		URLs []string `json:"urls"`
	}
	r := request{method: http.MethodPost, path: "/api/uploads/listing-images", files: files, field: "images"}
	if err := c.do(ctx, r, &out); err != nil {
		return nil, err
	}
	return out.URLs, nil
}

// AttachListingImages загружает изображения и добавляет их в объявление
func (c *Client) AttachListingImages(ctx context.Context, id uuid.UUID, files []UploadFile) (*Listing, error) {
	var listing Listing
	r := request{method: http.MethodPost, path: "/api/listings/" + id.String() + "/images", files: files, field: "images"}
	if err := c.do(ctx, r, &listing); err != nil {
		return nil, err
	}
	return &listing, nil
}

// Favorites возвращает избранные объявления
func (c *Client) Favorites(ctx context.Context) ([]Listing, error) {
	return c.listings(ctx, "/api/favorites")
}

// AddFavorite добавляет объявление в избранное; created=false, если оно уже было там
func (c *Client) AddFavorite(ctx context.Context, listingID uuid.UUID) (*Favorite, bool, error) {
	var out struct {
		Favorite Favorite `json:"favorite"`
		Created  bool     `json:"created"`
	}
	body := map[string]string{"listing_id": listingID.String()}
	if err := c.do(ctx, request{method: http.MethodPost, path: "/api/favorites", body: body}, &out); err != nil {
		return nil, false, err
	}
	return &out.Favorite, out.Created, nil
}

// RemoveFavorite удаляет объявление из избранного
func (c *Client) RemoveFavorite(ctx context.Context, listingID uuid.UUID) error {
	return c.do(ctx, request{method: http.MethodDelete, path: "/api/favorites/" + listingID.String()}, nil)
}

// IsFavorite проверяет, находится ли объявление в избранном
func (c *Client) IsFavorite(ctx context.Context, listingID uuid.UUID) (bool, error) {
	var out struct {
		IsFavorite bool `json:"is_favorite"`
	}
	if err := c.do(ctx, request{method: http.MethodGet, path: "/api/favorites/" + listingID.String() + "/check"}, &out); err != nil {
		return false, err
	}
	return out.IsFavorite, nil
}

// Conversations возвращает сводки переписок
func (c *Client) Conversations(ctx context.Context) ([]Conversation, error) {
	var out struct {
		Conversations []Conversation `json:"conversations"`
	}
	if err := c.do(ctx, request{method: http.MethodGet, path: "/api/messages/conversations"}, &out); err != nil {
		return nil, err
	}
	return out.Conversations, nil
}

// UnreadCount возвращает количество непрочитанных сообщений
func (c *Client) UnreadCount(ctx context.Context) (int, error) {
	var out struct {
		Count int `json:"count"`
	}
	if err := c.do(ctx, request{method: http.MethodGet, path: "/api/messages/unread-count"}, &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}

// Thread возвращает переписку с собеседником. Без peek входящие отмечаются прочитанными.
func (c *Client) Thread(ctx context.Context, peerID uuid.UUID, peek bool) ([]Message, error) {
	var q url.Values
	if peek {
		q = url.Values{"peek": {"true"}}
	}
	var out struct {
		Messages []Message `json:"messages"`
	}
	if err := c.do(ctx, request{method: http.MethodGet, path: "/api/messages/with/" + peerID.String(), query: q}, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

// MarkThreadRead отмечает входящие сообщения собеседника прочитанными
func (c *Client) MarkThreadRead(ctx context.Context, peerID uuid.UUID) (int64, error) {
	var out struct {
		Updated int64 `json:"updated"`
	}
	if err := c.do(ctx, request{method: http.MethodPost, path: "/api/messages/with/" + peerID.String() + "/read"}, &out); err != nil {
		return 0, err
	}
	return out.Updated, nil
}

// SendMessage отправляет сообщение
func (c *Client) SendMessage(ctx context.Context, in SendMessageInput) (*Message, error) {
	var msg Message
	if err := c.do(ctx, request{method: http.MethodPost, path: "/api/messages", body: in}, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// Profile возвращает публичный профиль
func (c *Client) Profile(ctx context.Context, id uuid.UUID) (*Profile, error) {
	return c.profile(ctx, request{method: http.MethodGet, path: "/api/profiles/" + id.String()})
}

// MyProfile возвращает профиль текущего пользователя
func (c *Client) MyProfile(ctx context.Context) (*Profile, error) {
	return c.profile(ctx, request{method: http.MethodGet, path: "/api/profiles/me"})
}

// UpdateProfile обновляет профиль текущего пользователя
func (c *Client) UpdateProfile(ctx context.Context, in UpdateProfileInput) (*Profile, error) {
	return c.profile(ctx, request{method: http.MethodPut, path: "/api/profiles/me", body: in})
}

// UploadAvatar загружает аватар
func (c *Client) UploadAvatar(ctx context.Context, f UploadFile) (*Profile, error) {
	return c.profile(ctx, request{method: http.MethodPost, path: "/api/profiles/me/avatar", files: []UploadFile{f}, field: "avatar"})
}

func (c *Client) profile(ctx context.Context, r request) (*Profile, error) {
	var profile Profile
	if err := c.do(ctx, r, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// SignUp регистрирует пользователя. Ошибка создания профиля возвращается в результате, не как error.
func (c *Client) SignUp(ctx context.Context, in SignUpInput) (*SignUpResult, error) {
	var out authResponse
	if err := c.do(ctx, request{method: http.MethodPost, path: "/api/auth/signup", body: in}, &out); err != nil {
		return nil, err
	}
	out.Session.User = out.User
	return &SignUpResult{Session: out.Session, Profile: out.Profile, ProfileError: out.ProfileError}, nil
}

// SignIn выполняет вход по email и паролю
func (c *Client) SignIn(ctx context.Context, email, password string) (*Session, error) {
	body := map[string]string{"email": email, "password": password}
	return c.session(ctx, request{method: http.MethodPost, path: "/api/auth/signin", body: body})
}

// Refresh обменивает refresh-токен на новую сессию
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	body := map[string]string{"refresh_token": refreshToken}
	return c.session(ctx, request{method: http.MethodPost, path: "/api/auth/refresh", body: body})
}

func (c *Client) session(ctx context.Context, r request) (*Session, error) {
	var out authResponse
	if err := c.do(ctx, r, &out); err != nil {
		return nil, err
	}
	out.Session.User = out.User
	return &out.Session, nil
}

// SignOut завершает сессию
func (c *Client) SignOut(ctx context.Context, s Session) error {
	body := map[string]string{"refresh_token": s.RefreshToken}
	return c.do(ctx, request{method: http.MethodPost, path: "/api/auth/signout", body: body, token: s.AccessToken}, nil)
}

// CurrentUser проверяет access-токен и возвращает пользователя
func (c *Client) CurrentUser(ctx context.Context, accessToken string) (*User, error) {
	var out struct {
		User User `json:"user"`
	}
	if err := c.do(ctx, request{method: http.MethodGet, path: "/api/auth/session", token: accessToken}, &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}
