package pipeline

import (
	"context"
	"sync"

	"github.com/maestro-cli/maestro/pkg/logger"
)

const (
	HookPrePipeline  = "pre_pipeline"
	HookPreStage     = "pre_stage"
	HookPostStage    = "post_stage"
	HookPostPipeline = "post_pipeline"
)

type HookFunc func(ctx context.Context, payload any) error

// HookManager holds lifecycle listeners. Pre-hooks are awaited and their
// errors abort the pipeline or stage; post-hooks are fire-and-forget and
// their errors (and panics) are dropped.
type HookManager struct {
	mu    sync.RWMutex
	hooks map[string][]HookFunc
}

func NewHookManager() *HookManager {
	return &HookManager{hooks: make(map[string][]HookFunc)}
}

func (m *HookManager) Register(name string, fn HookFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks[name] = append(m.hooks[name], fn)
}

func (m *HookManager) listeners(name string) []HookFunc {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]HookFunc(nil), m.hooks[name]...)
}

// RunBlocking invokes the listeners in order and returns the first error.
func (m *HookManager) RunBlocking(ctx context.Context, name string, payload any) error {
	if m == nil {
		return nil
	}
	for _, fn := range m.listeners(name) {
		if err := fn(ctx, payload); err != nil {
			return err
		}
	}
	return nil
}

// FireAndForget dispatches the listeners without awaiting them.
func (m *HookManager) FireAndForget(name string, payload any) {
	if m == nil {
		return
	}
	for _, fn := range m.listeners(name) {
		go func(fn HookFunc) {
			defer func() {
				if r := recover(); r != nil {
					logger.GetLogger().Debug("Hook listener panicked", "hook", name, "panic", r)
				}
			}()
			_ = fn(context.Background(), payload)
		}(fn)
	}
}
