package series

import (
	"context"
	"sync"
)

// Preferences is a small string key/value store scoped to one user.
type Preferences interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
}

// PeriodKey is the preference key holding an indicator's chosen window.
func PeriodKey(indicatorID string) string {
	return "indicator_" + indicatorID + "_period"
}

// LoadWindow returns the stored window for an indicator, or All when none
// is stored or the stored name is not recognized.
func LoadWindow(ctx context.Context, p Preferences, indicatorID string) (Window, error) {
	v, ok, err := p.Get(ctx, PeriodKey(indicatorID))
	if err != nil {
		return All, err
	}
	if !ok {
		return All, nil
	}
	w, err := ParseWindow(v)
	if err != nil {
		return All, nil
	}
	return w, nil
}

// SaveWindow stores the window chosen for an indicator.
func SaveWindow(ctx context.Context, p Preferences, indicatorID string, w Window) error {
	return p.Set(ctx, PeriodKey(indicatorID), string(w))
}

// MemoryPreferences is an in-process Preferences.
type MemoryPreferences struct {
	mu sync.RWMutex
	m  map[string]string
}

// NewMemoryPreferences returns an empty MemoryPreferences.
func NewMemoryPreferences() *MemoryPreferences {
	return &MemoryPreferences{m: make(map[string]string)}
}

func (p *MemoryPreferences) Get(_ context.Context, key string) (string, bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.m[key]
	return v, ok, nil
}

func (p *MemoryPreferences) Set(_ context.Context, key, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.m[key] = value
	return nil
}
