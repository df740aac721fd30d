package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// State состояние держателя сессии
type State int

const (
	StateLoading State = iota
	StateAuthenticated
	StateAnonymous
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateAuthenticated:
		return "authenticated"
	case StateAnonymous:
		return "anonymous"
	default:
		return "unknown"
	}
}

// EventType тип изменения сессии
type EventType string

const (
	EventSignedIn       EventType = "signed_in"
	EventSignedOut      EventType = "signed_out"
	EventTokenRefreshed EventType = "token_refreshed"
)

// Event уведомление об изменении сессии. Session == nil для EventSignedOut.
type Event struct {
	Type    EventType
	Session *Session
}

const (
	subscriberBuffer  = 16
	refreshRetryDelay = 30 * time.Second
	refreshTimeout    = 30 * time.Second
)

var (
	errNoSession      = &Error{Kind: KindUnauthorized, Message: "нет активной сессии"}
	errAlreadyStarted = errors.New("session holder already started")
)

// HolderOption настраивает SessionHolder
type HolderOption func(*SessionHolder)

// WithSessionStore задаёт хранилище сессии (по умолчанию в памяти)
func WithSessionStore(store SessionStore) HolderOption {
	return func(h *SessionHolder) { h.store = store }
}

// WithRefreshLeeway задаёт, за сколько до истечения обновлять токен
func WithRefreshLeeway(d time.Duration) HolderOption {
	return func(h *SessionHolder) { h.leeway = d }
}

// SessionHolder единственный владелец сессии пользователя.
// Состояние: Loading до завершения Start, затем Authenticated или Anonymous.
// Client читает access-токен через него.
type SessionHolder struct {
	client *Client
	store  SessionStore
	leeway time.Duration
	now    func() time.Time

	mu      sync.RWMutex
	state   State
	session *Session
	gen     uint64
	subs    map[int]chan Event
	nextSub int
	closed  bool
	started bool

	// writeMu упорядочивает смену сессии, запись в хранилище и события
	writeMu sync.Mutex
	// refreshMu: в каждый момент на сервере не больше одного обмена refresh-токена
	refreshMu sync.Mutex

	ready     chan struct{}
	readyOnce sync.Once
	kick      chan struct{}
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewSessionHolder создаёт держатель сессии и подключает его к клиенту как TokenSource
func NewSessionHolder(c *Client, opts ...HolderOption) *SessionHolder {
	h := &SessionHolder{
		client: c,
		store:  NewMemorySessionStore(),
		leeway: time.Minute,
		now:    time.Now,
		state:  StateLoading,
		subs:   make(map[int]chan Event),
		ready:  make(chan struct{}),
		kick:   make(chan struct{}, 1),
	}
	h.ctx, h.cancel = context.WithCancel(context.Background())
	for _, opt := range opts {
		opt(h)
	}
	c.tokens = h
	return h
}

// AccessToken текущий access-токен или пустая строка
func (h *SessionHolder) AccessToken() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.session == nil {
		return ""
	}
	return h.session.AccessToken
}

// State текущее состояние
func (h *SessionHolder) State() State {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state
}

// Session копия текущей сессии
func (h *SessionHolder) Session() (Session, bool) {
	s, _, ok := h.snapshot()
	return s, ok
}

// snapshot копия сессии и номер её поколения
func (h *SessionHolder) snapshot() (Session, uint64, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.session == nil {
		return Session{}, h.gen, false
	}
	return *h.session, h.gen, true
}

func (h *SessionHolder) generation() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.gen
}

// Wait ждёт выхода из состояния Loading
func (h *SessionHolder) Wait(ctx context.Context) (State, error) {
	select {
	case <-h.ready:
		return h.State(), nil
	case <-ctx.Done():
		return StateLoading, ctx.Err()
	}
}

// Start восстанавливает сохранённую сессию и запускает фоновое обновление токена.
// Сохранённая сессия проверяется на сервере; истёкшая обновляется.
// Ошибка сети оставляет держатель в состоянии Anonymous и возвращается вызывающему.
func (h *SessionHolder) Start(ctx context.Context) error {
	h.mu.Lock()
	if h.started || h.closed {
		h.mu.Unlock()
		return errAlreadyStarted
	}
	h.started = true
	h.mu.Unlock()

	err := h.restore(ctx)

	h.wg.Add(1)
	go h.refreshLoop()
	return err
}

func (h *SessionHolder) restore(ctx context.Context) error {
	h.refreshMu.Lock()
	defer h.refreshMu.Unlock()

	gen := h.generation()
	stored, err := h.store.Load(ctx)
	if err != nil {
		logrus.WithError(err).Warn("⚠️ Не удалось прочитать сохранённую сессию")
	}
	if stored == nil {
		h.resolve(ctx, gen, nil, false)
		return nil
	}

	if !stored.Expired(h.now(), h.leeway) {
		user, err := h.client.CurrentUser(ctx, stored.AccessToken)
		if err == nil {
			stored.User = *user
			h.resolve(ctx, gen, stored, false)
			return nil
		}
		if !IsKind(err, KindUnauthorized) {
			h.resolve(ctx, gen, nil, false)
			return err
		}
	}

	refreshed, err := h.client.Refresh(ctx, stored.RefreshToken)
	if err != nil {
		if IsKind(err, KindUnauthorized) {
			h.resolve(ctx, gen, nil, true)
			return nil
		}
		h.resolve(ctx, gen, nil, false)
		return err
	}

	h.resolve(ctx, gen, refreshed, true)
	return nil
}

// resolve выводит держатель из состояния Loading без событий.
// Если за время восстановления пользователь уже вошёл или вышел, результат отбрасывается.
func (h *SessionHolder) resolve(ctx context.Context, gen uint64, s *Session, persist bool) {
	defer h.readyOnce.Do(func() { close(h.ready) })

	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	h.mu.Lock()
	if h.gen != gen {
		h.mu.Unlock()
		return
	}
	h.gen++
	h.session = s
	if s != nil {
		h.state = StateAuthenticated
	} else {
		h.state = StateAnonymous
	}
	h.mu.Unlock()

	if !persist {
		return
	}
	if s != nil {
		h.saveStore(ctx, *s)
	} else {
		h.clearStore(ctx)
	}
}

// SignUp регистрирует пользователя и открывает сессию.
// Ошибка создания профиля возвращается в результате.
func (h *SessionHolder) SignUp(ctx context.Context, in SignUpInput) (*SignUpResult, error) {
	result, err := h.client.SignUp(ctx, in)
	if err != nil {
		return nil, err
	}
	h.setSession(ctx, result.Session, EventSignedIn)
	return result, nil
}

// SignIn выполняет вход
func (h *SessionHolder) SignIn(ctx context.Context, email, password string) (*Session, error) {
	s, err := h.client.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}
	h.setSession(ctx, *s, EventSignedIn)
	return s, nil
}

// Refresh обновляет токены. Одновременные вызовы делят один обмен токена:
// кто ждал, пока другой обновлял, получает уже обновлённую сессию.
// Отклонённый сервером refresh-токен завершает сессию, только если он всё ещё текущий.
func (h *SessionHolder) Refresh(ctx context.Context) error {
	seen, ok := h.Session()
	if !ok {
		return errNoSession
	}

	h.refreshMu.Lock()
	defer h.refreshMu.Unlock()

	current, gen, ok := h.snapshot()
	if !ok {
		return errNoSession
	}
	if current.RefreshToken != seen.RefreshToken {
		return nil
	}

	refreshed, err := h.client.Refresh(ctx, current.RefreshToken)
	if err != nil {
		if IsKind(err, KindUnauthorized) {
			h.commit(ctx, gen, nil, EventSignedOut)
		}
		return err
	}
	h.commit(ctx, gen, refreshed, EventTokenRefreshed)
	return nil
}

// SignOut завершает сессию. Локальное состояние очищается даже при ошибке сервера.
// Идущее обновление токена сначала завершается, чтобы на сервере отозвать актуальный токен.
func (h *SessionHolder) SignOut(ctx context.Context) error {
	h.refreshMu.Lock()
	defer h.refreshMu.Unlock()

	current, ok := h.Session()
	if !ok {
		return nil
	}

	err := h.client.SignOut(ctx, current)
	h.signedOut(ctx)
	if err != nil && !IsKind(err, KindUnauthorized) {
		return err
	}
	return nil
}

func (h *SessionHolder) setSession(ctx context.Context, s Session, event EventType) {
	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	h.apply(ctx, &s, event)
}

func (h *SessionHolder) signedOut(ctx context.Context) {
	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	h.apply(ctx, nil, EventSignedOut)
}

// commit применяет результат, только если сессия не менялась с поколения gen
func (h *SessionHolder) commit(ctx context.Context, gen uint64, s *Session, event EventType) bool {
	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	if h.generation() != gen {
		return false
	}
	h.apply(ctx, s, event)
	return true
}

// apply вызывается под writeMu
func (h *SessionHolder) apply(ctx context.Context, s *Session, event EventType) {
	h.mu.Lock()
	had := h.session != nil
	h.gen++
	h.session = s
	if s != nil {
		h.state = StateAuthenticated
	} else {
		h.state = StateAnonymous
	}
	h.mu.Unlock()
	h.readyOnce.Do(func() { close(h.ready) })

	if s != nil {
		h.saveStore(ctx, *s)
		published := *s
		h.emit(Event{Type: event, Session: &published})
	} else {
		h.clearStore(ctx)
		if had {
			h.emit(Event{Type: EventSignedOut})
		}
	}
	h.wake()
}

func (h *SessionHolder) saveStore(ctx context.Context, s Session) {
	if err := h.store.Save(ctx, s); err != nil {
		logrus.WithError(err).Warn("⚠️ Не удалось сохранить сессию")
	}
}

func (h *SessionHolder) clearStore(ctx context.Context) {
	if err := h.store.Clear(ctx); err != nil {
		logrus.WithError(err).Warn("⚠️ Не удалось удалить сохранённую сессию")
	}
}

// Subscribe возвращает канал событий и функцию отписки.
// Если подписчик не успевает читать, события для него отбрасываются.
func (h *SessionHolder) Subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan Event, subscriberBuffer)
	if h.closed {
		close(ch)
		return ch, func() {}
	}

	id := h.nextSub
	h.nextSub++
	h.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if sub, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(sub)
			}
		})
	}
}

func (h *SessionHolder) emit(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			logrus.WithField("event", ev.Type).Warn("⚠️ Подписчик не успевает читать события сессии")
		}
	}
}

func (h *SessionHolder) wake() {
	select {
	case h.kick <- struct{}{}:
	default:
	}
}

// refreshLoop обновляет access-токен за leeway до истечения
func (h *SessionHolder) refreshLoop() {
	defer h.wg.Done()

	var retry time.Duration
	for {
		var fire <-chan time.Time
		var timer *time.Timer

		if s, ok := h.Session(); ok {
			wait := s.ExpiresAt.Sub(h.now()) - h.leeway
			if retry > 0 {
				wait = retry
			}
			if wait < 0 {
				wait = 0
			}
			timer = time.NewTimer(wait)
			fire = timer.C
		}

		select {
		case <-h.ctx.Done():
			stopTimer(timer)
			return
		case <-h.kick:
			stopTimer(timer)
			retry = 0
		case <-fire:
			ctx, cancel := context.WithTimeout(h.ctx, refreshTimeout)
			err := h.Refresh(ctx)
			cancel()

			retry = 0
			if h.ctx.Err() != nil {
				return
			}
			if err != nil && !IsKind(err, KindUnauthorized) {
				logrus.WithError(err).Warn("⚠️ Не удалось обновить токен, повтор позже")
				retry = refreshRetryDelay
			}
		}
	}
}

func stopTimer(t *time.Timer) {
	if t != nil {
		t.Stop()
	}
}

// Close останавливает фоновое обновление, прерывая идущий запрос, и закрывает каналы подписчиков
func (h *SessionHolder) Close() {
	h.closeOnce.Do(func() {
		h.cancel()
		h.wg.Wait()

		h.mu.Lock()
		h.closed = true
		for id, ch := range h.subs {
			delete(h.subs, id)
			close(ch)
		}
		h.mu.Unlock()
		h.readyOnce.Do(func() { close(h.ready) })
	})
}
