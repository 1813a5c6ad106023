package plugins

import (
	"context"

	"github.com/helixir/paperhub/internal/domain"
	"github.com/helixir/paperhub/internal/identifier"
	"github.com/helixir/paperhub/internal/observability"
)

// Lookup methods recorded on attempts.
const (
	MethodGetByDOI   = "getByDOI"
	MethodGetByArxiv = "getByArxiv"
	MethodGetRecord  = "getRecord"
)

// Attempt is one plugin's part in a lookup.
type Attempt struct {
	PluginID string `json:"pluginId"`
	Method   string `json:"method"`
	Found    bool   `json:"found"`
	Err      error  `json:"-"`
}

// LookupResult is the outcome of Manager.Lookup. Paper is nil when every
// plugin missed or failed; Attempts tells those cases apart.
type LookupResult struct {
	Paper      *domain.Paper   `json:"paper"`
	PluginID   string          `json:"pluginId,omitempty"`
	Type       identifier.Type `json:"type"`
	Identifier string          `json:"identifier"`
	Attempts   []Attempt       `json:"attempts"`
}

// Lookup classifies raw and resolves it. The active plugin is tried first,
// then every other enabled lookup-capable plugin in registration order, until
// one returns a paper. DOIs and arXiv IDs use a plugin's direct resolver when
// it has one; everything else goes through GetRecord. Plugin errors are
// logged and treated as misses.
func (m *Manager) Lookup(ctx context.Context, raw string) *LookupResult {
	typ, id := identifier.Detect(raw)
	result := &LookupResult{Type: typ, Identifier: id}
	if id == "" {
		return result
	}

	logger := observability.WithIdentifierContext(m.logger, typ.String(), id)

	for _, reg := range m.lookupCandidates() {
		if ctx.Err() != nil {
			result.Attempts = append(result.Attempts, Attempt{PluginID: reg.ID, Err: ctx.Err()})
			break
		}

		attempt := Attempt{PluginID: reg.ID}
		paper, method, err := m.lookupWith(ctx, reg, typ, id)
		attempt.Method = method

		switch {
		case err != nil:
			attempt.Err = err
			m.metrics.RecordLookupAttempt(reg.ID, "error")
			logger.Warn().Err(err).Str("plugin", reg.ID).Str("method", method).Msg("lookup failed, trying next plugin")
		case paper == nil:
			m.metrics.RecordLookupAttempt(reg.ID, "miss")
			logger.Debug().Str("plugin", reg.ID).Str("method", method).Msg("lookup miss")
		default:
			attempt.Found = true
			m.metrics.RecordLookupAttempt(reg.ID, "found")
			paper.Source = reg.ID
			result.Paper = paper
			result.PluginID = reg.ID
		}
		result.Attempts = append(result.Attempts, attempt)

		if result.Paper != nil {
			break
		}
	}

	m.metrics.RecordLookup(typ.String(), result.Paper != nil)
	return result
}

// lookupCandidates returns the active plugin first, then the other enabled
// lookup-capable plugins in registration order.
func (m *Manager) lookupCandidates() []Registration {
	regs := m.List(ListFilter{EnabledOnly: true, Capability: CapLookup})
	activeID := m.ActiveID()

	out := make([]Registration, 0, len(regs))
	for _, reg := range regs {
		if reg.ID == activeID {
			out = append(out, reg)
		}
	}
	for _, reg := range regs {
		if reg.ID != activeID {
			out = append(out, reg)
		}
	}
	return out
}

func (m *Manager) lookupWith(ctx context.Context, reg Registration, typ identifier.Type, id string) (*domain.Paper, string, error) {
	if err := m.pace(ctx, reg); err != nil {
		return nil, "", err
	}

	switch typ {
	case identifier.TypeDOI:
		if r, ok := reg.Plugin.(DOIResolver); ok {
			p, err := r.GetByDOI(ctx, id)
			return p, MethodGetByDOI, err
		}
	case identifier.TypeArxiv:
		if r, ok := reg.Plugin.(ArxivResolver); ok {
			p, err := r.GetByArxiv(ctx, id)
			return p, MethodGetByArxiv, err
		}
	}

	p, err := reg.Plugin.(RecordGetter).GetRecord(ctx, id)
	return p, MethodGetRecord, err
}
