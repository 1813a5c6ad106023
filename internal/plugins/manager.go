package plugins

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/paperhub/internal/domain"
	"github.com/helixir/paperhub/internal/observability"
)

// Registration is the Manager's record of one plugin.
type Registration struct {
	ID           string
	Plugin       Plugin
	Enabled      bool
	RegisteredAt time.Time
}

// Descriptor is a shorthand for r.Plugin.Descriptor().
func (r Registration) Descriptor() Descriptor {
	return r.Plugin.Descriptor()
}

// PluginInfo is a read-only projection of a registration for display.
type PluginInfo struct {
	ID           string                 `json:"id" yaml:"id"`
	Name         string                 `json:"name" yaml:"name"`
	Icon         string                 `json:"icon,omitempty" yaml:"icon,omitempty"`
	Description  string                 `json:"description,omitempty" yaml:"description,omitempty"`
	Active       bool                   `json:"active" yaml:"active"`
	Enabled      bool                   `json:"enabled" yaml:"enabled"`
	Capabilities []Capability           `json:"capabilities" yaml:"capabilities"`
	AuthRequired bool                   `json:"authRequired" yaml:"authRequired"`
	RateLimit    domain.RateLimitStatus `json:"rateLimit" yaml:"rateLimit"`
	RegisteredAt time.Time              `json:"registeredAt" yaml:"registeredAt"`
}

// ListFilter narrows List. The zero value lists everything.
type ListFilter struct {
	EnabledOnly bool
	// Capability, when set, keeps only plugins declaring it.
	Capability Capability
}

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	// Logger receives lifecycle failures and fan-out errors.
	Logger zerolog.Logger

	// Scheduler paces dispatches. Nil means a scheduler with default delays.
	Scheduler *Scheduler

	// Credentials is handed to plugins on Initialize. May be nil.
	Credentials CredentialSource

	// Metrics may be nil.
	Metrics *observability.Metrics
}

// Manager owns the plugin registry and dispatches operations to plugins.
// Exactly one enabled plugin is active at a time, or none when no enabled
// plugin is registered. Registry methods are safe for concurrent use; no lock
// is held while plugin code or event observers run.
type Manager struct {
	mu       sync.RWMutex
	plugins  map[string]*Registration
	order    []string
	activeID string

	scheduler   *Scheduler
	credentials CredentialSource
	logger      zerolog.Logger
	metrics     *observability.Metrics
	observers   observers
}

// NewManager creates an empty Manager.
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.Scheduler == nil {
		cfg.Scheduler = NewScheduler(SchedulerConfig{Metrics: cfg.Metrics})
	}
	return &Manager{
		plugins:     make(map[string]*Registration),
		scheduler:   cfg.Scheduler,
		credentials: cfg.Credentials,
		logger:      cfg.Logger.With().Str("component", "plugin_manager").Logger(),
		metrics:     cfg.Metrics,
	}
}

// Scheduler returns the Manager's dispatch scheduler.
func (m *Manager) Scheduler() *Scheduler {
	return m.scheduler
}

// Subscribe registers fn for registry events and returns a function that
// removes it. Observers run synchronously after the transition completes.
func (m *Manager) Subscribe(fn func(Event)) (unsubscribe func()) {
	return m.observers.add(fn)
}

func (m *Manager) publish(events []Event) {
	for _, e := range events {
		m.metrics.RecordPluginEvent(string(e.Type))
	}
	m.observers.publish(events...)
}

// Register validates p and adds it enabled. The first plugin registered
// while no plugin is active becomes active.
func (m *Manager) Register(p Plugin) error {
	if err := ValidatePlugin(p); err != nil {
		return err
	}
	id := p.Descriptor().ID

	m.mu.Lock()
	if _, exists := m.plugins[id]; exists {
		m.mu.Unlock()
		return domain.NewAlreadyExistsError("plugin", id)
	}
	m.plugins[id] = &Registration{
		ID:           id,
		Plugin:       p,
		Enabled:      true,
		RegisteredAt: time.Now().UTC(),
	}
	m.order = append(m.order, id)

	events := []Event{newEvent(EventRegistered, id, "")}
	if m.activeID == "" {
		events = append(events, m.setActiveLocked(id))
	}
	count := len(m.plugins)
	m.mu.Unlock()

	m.metrics.SetPluginsRegistered(count)
	m.logger.Info().Str("plugin", id).Msg("plugin registered")
	m.publish(events)
	return nil
}

// Unregister shuts the plugin down and removes it. Shutdown errors are
// logged, not returned. If the plugin was active, the first remaining
// enabled plugin becomes active.
func (m *Manager) Unregister(ctx context.Context, id string) error {
	m.mu.Lock()
	reg, ok := m.plugins[id]
	if !ok {
		m.mu.Unlock()
		return domain.NewNotFoundError("plugin", id)
	}
	delete(m.plugins, id)
	m.order = removeID(m.order, id)

	events := []Event{newEvent(EventUnregistered, id, "")}
	if m.activeID == id {
		events = append(events, m.setActiveLocked(m.firstEnabledLocked()))
	}
	count := len(m.plugins)
	m.mu.Unlock()

	if err := reg.Plugin.Shutdown(ctx); err != nil {
		m.logger.Warn().Err(err).Str("plugin", id).Msg("plugin shutdown failed during unregister")
	}
	m.scheduler.Forget(id)

	m.metrics.SetPluginsRegistered(count)
	m.logger.Info().Str("plugin", id).Msg("plugin unregistered")
	m.publish(events)
	return nil
}

// SetActive makes id the active plugin. The plugin must be registered and enabled.
func (m *Manager) SetActive(id string) error {
	m.mu.Lock()
	reg, ok := m.plugins[id]
	if !ok {
		m.mu.Unlock()
		return domain.NewNotFoundError("plugin", id)
	}
	if !reg.Enabled {
		m.mu.Unlock()
		return pluginDisabledError(id)
	}
	var events []Event
	if m.activeID != id {
		events = append(events, m.setActiveLocked(id))
	}
	m.mu.Unlock()

	m.publish(events)
	return nil
}

// Enable re-enables a plugin. If no plugin is active it becomes active.
func (m *Manager) Enable(id string) error {
	m.mu.Lock()
	reg, ok := m.plugins[id]
	if !ok {
		m.mu.Unlock()
		return domain.NewNotFoundError("plugin", id)
	}
	var events []Event
	if !reg.Enabled {
		reg.Enabled = true
		events = append(events, newEvent(EventEnabled, id, ""))
	}
	if m.activeID == "" {
		events = append(events, m.setActiveLocked(id))
	}
	m.mu.Unlock()

	m.publish(events)
	return nil
}

// Disable disables a plugin. Disabling the active plugin promotes the first
// remaining enabled plugin, or leaves none active.
func (m *Manager) Disable(id string) error {
	m.mu.Lock()
	var events []Event
	ok := m.disableLocked(id, &events)
	m.mu.Unlock()

	if !ok {
		return domain.NewNotFoundError("plugin", id)
	}
	m.publish(events)
	return nil
}

func (m *Manager) disableLocked(id string, events *[]Event) bool {
	reg, ok := m.plugins[id]
	if !ok {
		return false
	}
	if reg.Enabled {
		reg.Enabled = false
		*events = append(*events, newEvent(EventDisabled, id, ""))
	}
	if m.activeID == id {
		*events = append(*events, m.setActiveLocked(m.firstEnabledLocked()))
	}
	return true
}

// setActiveLocked changes the active pointer and returns the event.
func (m *Manager) setActiveLocked(id string) Event {
	prev := m.activeID
	m.activeID = id
	return newEvent(EventActiveChanged, id, prev)
}

// firstEnabledLocked returns the first enabled plugin in registration order.
func (m *Manager) firstEnabledLocked() string {
	for _, id := range m.order {
		if m.plugins[id].Enabled {
			return id
		}
	}
	return ""
}

// ActiveID returns the active plugin ID, or "" when none is active.
func (m *Manager) ActiveID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeID
}

// Get returns a copy of the registration for id.
func (m *Manager) Get(id string) (Registration, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	reg, ok := m.plugins[id]
	if !ok {
		return Registration{}, false
	}
	return *reg, true
}

// List returns registrations in registration order, filtered by f.
func (m *Manager) List(f ListFilter) []Registration {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Registration, 0, len(m.order))
	for _, id := range m.order {
		reg := m.plugins[id]
		if f.EnabledOnly && !reg.Enabled {
			continue
		}
		if f.Capability != "" && !reg.Plugin.Descriptor().Capabilities.Has(f.Capability) {
			continue
		}
		out = append(out, *reg)
	}
	return out
}

// Info returns display projections of every registered plugin.
func (m *Manager) Info() []PluginInfo {
	activeID := m.ActiveID()
	regs := m.List(ListFilter{})

	infos := make([]PluginInfo, 0, len(regs))
	for _, reg := range regs {
		desc := reg.Plugin.Descriptor()
		infos = append(infos, PluginInfo{
			ID:           reg.ID,
			Name:         desc.Name,
			Icon:         desc.Icon,
			Description:  desc.Description,
			Active:       reg.ID == activeID,
			Enabled:      reg.Enabled,
			Capabilities: desc.Capabilities.List(),
			AuthRequired: desc.Auth.Required,
			RateLimit:    reg.Plugin.RateLimitStatus(),
			RegisteredAt: reg.RegisteredAt,
		})
	}
	return infos
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func pluginDisabledError(id string) error {
	return fmt.Errorf("plugin %q: %w", id, domain.ErrPluginDisabled)
}
