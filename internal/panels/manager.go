package panels

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mobitrack/fleet-monitor/internal/types"
)

// DefaultMaxPanels bounds the panel grid.
const DefaultMaxPanels = 20

// Store persists the full ordered panel list as a unit.
type Store interface {
	SavePanels(ctx context.Context, panels []types.VehiclePanel) error
	LoadPanels(ctx context.Context) ([]types.VehiclePanel, error)
}

// PanelRequest is one entry of a batch add.
type PanelRequest struct {
	VehicleID string
	Label     string
}

// Manager owns a bounded, ordered collection of vehicle panels. List
// order is the source of truth for layout; the stored grid position of
// every panel is a derived cache recomputed on each mutation. The list is
// written through the Store after every mutation; persistence failures
// are logged, never fatal: the in-memory state stays authoritative for
// the running session.
type Manager struct {
	store     Store
	maxPanels int

	mu       sync.Mutex
	panels   []types.VehiclePanel
	override string
}

// NewManager creates a panel manager. maxPanels <= 0 selects the default
// bound. A nil store disables persistence.
func NewManager(store Store, maxPanels int) *Manager {
	if maxPanels <= 0 {
		maxPanels = DefaultMaxPanels
	}
	return &Manager{
		store:     store,
		maxPanels: maxPanels,
		override:  GridAuto,
	}
}

// Load restores the persisted panel list. A prior session may have run
// with a larger bound, so the list is truncated to the current one. Load
// failures leave the manager empty and are logged, not fatal.
func (m *Manager) Load(ctx context.Context) {
	if m.store == nil {
		return
	}
	panels, err := m.store.LoadPanels(ctx)
	if err != nil {
		log.Printf("Warning: failed to load persisted panels: %v", err)
		return
	}
	if len(panels) > m.maxPanels {
		panels = panels[:m.maxPanels]
	}

	m.mu.Lock()
	m.panels = panels
	m.recomputePositionsLocked()
	m.mu.Unlock()
}

// AddPanel appends a panel bound to the given vehicle. It fails without
// mutation when the bound is reached or the vehicle already has a panel.
func (m *Manager) AddPanel(ctx context.Context, vehicleID, label string) (types.VehiclePanel, bool) {
	m.mu.Lock()
	if len(m.panels) >= m.maxPanels || m.hasVehicleLocked(vehicleID) {
		m.mu.Unlock()
		return types.VehiclePanel{}, false
	}

	panel := types.VehiclePanel{
		ID:        uuid.New().String(),
		VehicleID: vehicleID,
		Label:     label,
		IsActive:  true,
		AddedAt:   time.Now().UTC(),
	}
	m.panels = append(m.panels, panel)
	m.recomputePositionsLocked()
	panel = m.panels[len(m.panels)-1]
	m.mu.Unlock()

	m.persist(ctx)
	return panel, true
}

// AddPanels adds entries in order, skipping vehicles that already have a
// panel and stopping once the bound is reached. Partial success is the
// expected outcome; the count actually added is returned.
func (m *Manager) AddPanels(ctx context.Context, entries []PanelRequest) int {
	m.mu.Lock()
	added := 0
	for _, entry := range entries {
		if len(m.panels) >= m.maxPanels {
			break
		}
		if entry.VehicleID == "" || m.hasVehicleLocked(entry.VehicleID) {
			continue
		}
		m.panels = append(m.panels, types.VehiclePanel{
			ID:        uuid.New().String(),
			VehicleID: entry.VehicleID,
			Label:     entry.Label,
			IsActive:  true,
			AddedAt:   time.Now().UTC(),
		})
		added++
	}
	m.recomputePositionsLocked()
	m.mu.Unlock()

	if added > 0 {
		m.persist(ctx)
	}
	return added
}

// RemovePanel removes a panel by its id and recomputes the remaining
// positions into a dense layout.
func (m *Manager) RemovePanel(ctx context.Context, id string) bool {
	return m.remove(ctx, func(p types.VehiclePanel) bool { return p.ID == id })
}

// RemovePanelByVehicle removes the panel bound to the given vehicle.
func (m *Manager) RemovePanelByVehicle(ctx context.Context, vehicleID string) bool {
	return m.remove(ctx, func(p types.VehiclePanel) bool { return p.VehicleID == vehicleID })
}

func (m *Manager) remove(ctx context.Context, match func(types.VehiclePanel) bool) bool {
	m.mu.Lock()
	idx := -1
	for i, p := range m.panels {
		if match(p) {
			idx = i
			break
		}
	}
	if idx == -1 {
		m.mu.Unlock()
		return false
	}
	m.panels = append(m.panels[:idx], m.panels[idx+1:]...)
	m.recomputePositionsLocked()
	m.mu.Unlock()

	m.persist(ctx)
	return true
}

// Clear removes every panel.
func (m *Manager) Clear(ctx context.Context) {
	m.mu.Lock()
	m.panels = nil
	m.mu.Unlock()

	m.persist(ctx)
}

// Reorder moves one panel within the ordered list and recomputes every
// position. Out-of-range indexes are rejected.
func (m *Manager) Reorder(ctx context.Context, fromIndex, toIndex int) bool {
	m.mu.Lock()
	n := len(m.panels)
	if fromIndex < 0 || fromIndex >= n || toIndex < 0 || toIndex >= n {
		m.mu.Unlock()
		return false
	}
	if fromIndex != toIndex {
		panel := m.panels[fromIndex]
		rest := append(m.panels[:fromIndex], m.panels[fromIndex+1:]...)
		m.panels = append(rest[:toIndex], append([]types.VehiclePanel{panel}, rest[toIndex:]...)...)
		m.recomputePositionsLocked()
	}
	m.mu.Unlock()

	m.persist(ctx)
	return true
}

// SetPanelActive toggles a panel's active flag.
func (m *Manager) SetPanelActive(ctx context.Context, id string, active bool) bool {
	m.mu.Lock()
	found := false
	for i := range m.panels {
		if m.panels[i].ID == id {
			m.panels[i].IsActive = active
			found = true
			break
		}
	}
	m.mu.Unlock()

	if found {
		m.persist(ctx)
	}
	return found
}

// SetGridOverride pins a layout tier, or restores the computed tier with
// "auto". Unknown tiers are rejected.
func (m *Manager) SetGridOverride(override string) bool {
	if !ValidOverride(override) {
		return false
	}
	m.mu.Lock()
	m.override = override
	m.recomputePositionsLocked()
	m.mu.Unlock()
	return true
}

// Panels returns a copy of the ordered panel list.
func (m *Manager) Panels() []types.VehiclePanel {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]types.VehiclePanel, len(m.panels))
	copy(out, m.panels)
	return out
}

// PanelByVehicle returns the panel bound to a vehicle, if any.
func (m *Manager) PanelByVehicle(vehicleID string) (types.VehiclePanel, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range m.panels {
		if p.VehicleID == vehicleID {
			return p, true
		}
	}
	return types.VehiclePanel{}, false
}

// Len returns the current panel count.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.panels)
}

// MaxPanels returns the grid bound.
func (m *Manager) MaxPanels() int {
	return m.maxPanels
}

// Grid returns the active grid layout.
func (m *Manager) Grid() types.GridConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gridLocked()
}

func (m *Manager) gridLocked() types.GridConfig {
	return GridFor(len(m.panels), m.override)
}

func (m *Manager) hasVehicleLocked(vehicleID string) bool {
	for _, p := range m.panels {
		if p.VehicleID == vehicleID {
			return true
		}
	}
	return false
}

// recomputePositionsLocked reassigns every panel's grid slot from its
// list index, producing a dense layout with no holes.
func (m *Manager) recomputePositionsLocked() {
	columns := m.gridLocked().Columns
	for i := range m.panels {
		m.panels[i].Position = positionFor(i, columns)
	}
}

// persist writes the full list through the store. The in-memory state is
// authoritative; failures are logged and swallowed.
func (m *Manager) persist(ctx context.Context) {
	if m.store == nil {
		return
	}
	if err := m.store.SavePanels(ctx, m.Panels()); err != nil {
		log.Printf("Warning: failed to persist panels: %v", err)
	}
}
