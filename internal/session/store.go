package session

import (
	"container/list"
	"sync"
)

// Backend идентифицирует выбранного в чате мудреца.
type Backend string

const (
	BackendUnset  Backend = ""
	BackendGiga   Backend = "giga"
	BackendYandex Backend = "yandex"
)

// Valid сообщает, является ли значение одним из известных бэкендов.
func (b Backend) Valid() bool {
	return b == BackendGiga || b == BackendYandex
}

// Store хранит выбор бэкенда для каждого чата.
type Store interface {
	Get(chatID int64) (Backend, bool)
	Set(chatID int64, backend Backend)
}

type entry struct {
	chatID  int64
	backend Backend
}

// MemoryStore in-memory хранилище выбора, потокобезопасное.
// При capacity > 0 вытесняется чат, к которому дольше всего не обращались.
type MemoryStore struct {
	mu       sync.Mutex
	capacity int
	order    *list.List
	items    map[int64]*list.Element
}

// NewMemoryStore создает хранилище; capacity == 0 снимает ограничение на размер.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity < 0 {
		capacity = 0
	}
	return &MemoryStore{
		capacity: capacity,
		order:    list.New(),
		items:    make(map[int64]*list.Element),
	}
}

func (s *MemoryStore) Get(chatID int64) (Backend, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.items[chatID]
	if !ok {
		return BackendUnset, false
	}
	s.order.MoveToFront(el)
	return el.Value.(*entry).backend, true
}

func (s *MemoryStore) Set(chatID int64, backend Backend) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.items[chatID]; ok {
		el.Value.(*entry).backend = backend
		s.order.MoveToFront(el)
		return
	}

	s.items[chatID] = s.order.PushFront(&entry{chatID: chatID, backend: backend})
	if s.capacity > 0 && s.order.Len() > s.capacity {
		oldest := s.order.Back()
		s.order.Remove(oldest)
		delete(s.items, oldest.Value.(*entry).chatID)
	}
}

// Len возвращает количество чатов с сохранённым выбором.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Len()
}
