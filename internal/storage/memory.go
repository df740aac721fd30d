package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// MemoryStore хранилище в памяти для локальной разработки и тестов
type MemoryStore struct {
	mu      sync.Mutex
	baseURL string
	objects map[string][]byte
}

// NewMemoryStore создаёт пустое хранилище
func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		objects: make(map[string][]byte),
	}
}

func (s *MemoryStore) Upload(ctx context.Context, bucket, path string, body io.Reader, contentType string) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.objects[bucket+"/"+path] = data
	s.mu.Unlock()

	return fmt.Sprintf("%s/%s/%s", s.baseURL, bucket, path), nil
}

// Get возвращает содержимое объекта
func (s *MemoryStore) Get(bucket, path string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[bucket+"/"+path]
	return data, ok
}

// Len количество хранимых объектов
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}
