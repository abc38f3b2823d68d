package domain

import (
	"context"
	"sync"
)

type sceneTcorrKey struct {
	tmax, sceneID string
}

type monthTcorrKey struct {
	tmax, tile string
	month      int
}

// MemoryTcorrStore is an in-process TcorrStore. The service uses it when no
// database is configured, leaving only the catalog default tier populated.
type MemoryTcorrStore struct {
	mu    sync.RWMutex
	scene map[sceneTcorrKey]float64
	month map[monthTcorrKey]float64
}

// NewMemoryTcorrStore creates an empty store.
func NewMemoryTcorrStore() *MemoryTcorrStore {
	return &MemoryTcorrStore{
		scene: make(map[sceneTcorrKey]float64),
		month: make(map[monthTcorrKey]float64),
	}
}

// PutScene stores a scene correction.
func (s *MemoryTcorrStore) PutScene(tmaxKey, sceneID string, tcorr float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scene[sceneTcorrKey{tmaxKey, sceneID}] = tcorr
}

// PutMonth stores a monthly correction.
func (s *MemoryTcorrStore) PutMonth(tmaxKey, wrs2Tile string, month int, tcorr float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.month[monthTcorrKey{tmaxKey, wrs2Tile, month}] = tcorr
}

func (s *MemoryTcorrStore) SceneTcorr(_ context.Context, tmaxKey, sceneID string) (float64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.scene[sceneTcorrKey{tmaxKey, sceneID}]
	return v, ok, nil
}

func (s *MemoryTcorrStore) MonthTcorr(_ context.Context, tmaxKey, wrs2Tile string, month int) (float64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.month[monthTcorrKey{tmaxKey, wrs2Tile, month}]
	return v, ok, nil
}
