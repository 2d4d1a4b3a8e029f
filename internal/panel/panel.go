package panel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/daemonp/econnect2mqtt/internal/config"
	"github.com/daemonp/econnect2mqtt/internal/econnect"
	"github.com/daemonp/econnect2mqtt/internal/log"
	"github.com/daemonp/econnect2mqtt/internal/metrics"
	"github.com/daemonp/econnect2mqtt/internal/types"
	"github.com/daemonp/econnect2mqtt/internal/util"
)

// Client is the part of the e-Connect client the panel drives.
// *econnect.Client implements it.
type Client interface {
	Authenticate(ctx context.Context, username, password string) (string, error)
	Query(ctx context.Context, category types.Category) (*types.QueryResult, error)
	Poll(ctx context.Context, ids types.LastIDs) (*types.PollResult, error)
	WithLock(ctx context.Context, code, userID string, fn func(ctx context.Context) error) error
	Arm(ctx context.Context, sectors []int) error
	Disarm(ctx context.Context, sectors []int) error
	Include(ctx context.Context, inputs []int) error
	Exclude(ctx context.Context, inputs []int) error
	TurnOn(ctx context.Context, outputs []int) error
	TurnOff(ctx context.Context, outputs []int) error
}

var _ Client = (*econnect.Client)(nil)

// Event tells listeners that the data of a category changed. The
// CategoryPanel event also covers the overall alarm state.
type Event struct {
	Category types.Category
}

const eventBuffer = 64

// Panel keeps the last known state of an alarm system and refreshes it
// from the cloud.
type Panel struct {
	config *config.Config
	log    *log.Logger
	client Client
	events chan Event

	mu      sync.RWMutex
	lastIDs types.LastIDs
	state   types.AlarmState
	device  *types.PanelInfo
	sectors map[int]types.Entity
	inputs  map[int]types.Entity
	outputs map[int]types.Entity
	alerts  map[int]types.Alert
}

func NewPanel(cfg *config.Config, client Client, logger *log.Logger) *Panel {
	return &Panel{
		config:  cfg,
		log:     logger,
		client:  client,
		events:  make(chan Event, eventBuffer),
		lastIDs: types.LastIDs{},
		sectors: map[int]types.Entity{},
		inputs:  map[int]types.Entity{},
		outputs: map[int]types.Entity{},
		alerts:  map[int]types.Alert{},
	}
}

// Events delivers change notifications. Events are dropped when nobody
// reads them.
func (p *Panel) Events() <-chan Event {
	return p.events
}

func (p *Panel) emit(category types.Category) {
	select {
	case p.events <- Event{Category: category}:
	default:
		p.log.Warn("Event queue full, dropping %s change", category)
	}
}

// Connect authenticates against the cloud.
func (p *Panel) Connect(ctx context.Context) error {
	p.log.Info("Connecting to e-Connect...")

	start := time.Now()
	_, err := p.client.Authenticate(ctx, p.config.EConnect.Username, p.config.EConnect.Password)
	metrics.RecordOperation("authenticate", time.Since(start), err)
	if err != nil {
		if errors.Is(err, econnect.ErrCredential) {
			p.log.Error("Username or password are not correct: %v", err)
		} else {
			p.log.Error("Failed to authenticate with e-Connect: %v", err)
		}
		return fmt.Errorf("failed to connect to e-Connect: %w", err)
	}

	p.log.Info("Connected to e-Connect")
	return nil
}

// Update refreshes every category and the panel details.
func (p *Panel) Update(ctx context.Context) error {
	return p.UpdateCategories(ctx,
		types.CategorySectors,
		types.CategoryInputs,
		types.CategoryOutputs,
		types.CategoryAlerts,
		types.CategoryPanel,
	)
}

// UpdateCategories queries the given categories and stores the results.
// Stored data is only replaced once every query succeeded.
func (p *Panel) UpdateCategories(ctx context.Context, categories ...types.Category) error {
	results := make([]*types.QueryResult, 0, len(categories))
	for _, category := range categories {
		p.log.Debug("Fetching %s", category)

		start := time.Now()
		res, err := p.client.Query(ctx, category)
		metrics.RecordOperation("query_"+category.String(), time.Since(start), err)
		if err != nil {
			p.log.Error("Failed to query %s: %v", category, err)
			return fmt.Errorf("failed to query %s: %w", category, err)
		}
		results = append(results, res)
	}

	p.mu.Lock()
	previous := p.state
	for _, res := range results {
		p.apply(res)
	}
	if containsCategory(categories, types.CategorySectors) {
		p.state = stateOf(p.sectors)
	}
	state := p.state
	p.mu.Unlock()

	for _, res := range results {
		p.emit(res.Category)
	}
	if state != previous {
		p.log.Panel("Alarm state changed from %s to %s", previous, state)
		if !containsCategory(categories, types.CategoryPanel) {
			p.emit(types.CategoryPanel)
		}
	}

	metrics.SetAlarmState(state)
	metrics.RecordUpdate(time.Now())
	return nil
}

// apply stores a query result. Caller holds p.mu.
func (p *Panel) apply(res *types.QueryResult) {
	switch res.Category {
	case types.CategorySectors:
		p.sectors = p.rename(res.Entities, p.config.SectorName)
	case types.CategoryInputs:
		p.inputs = p.rename(res.Entities, func(index int) (string, bool) {
			in, ok := p.config.Input(index)
			return in.Name, ok && in.Name != ""
		})
	case types.CategoryOutputs:
		p.outputs = p.rename(res.Entities, nil)
	case types.CategoryAlerts:
		p.alerts = res.Alerts
	case types.CategoryPanel:
		p.device = res.Panel
		return
	}
	p.lastIDs[res.Category] = res.LastID
	p.log.Debug("Stored %s, last id %d", res.Category, res.LastID)
}

func (p *Panel) rename(entities map[int]types.Entity, override func(int) (string, bool)) map[int]types.Entity {
	out := make(map[int]types.Entity, len(entities))
	for index, e := range entities {
		e.Name = util.Normalize(e.Name)
		if override != nil {
			if name, ok := override(e.Index); ok {
				e.Name = name
			}
		}
		out[index] = e
	}
	return out
}

func stateOf(sectors map[int]types.Entity) types.AlarmState {
	for _, s := range sectors {
		if s.Status {
			return types.AlarmStateArmedAway
		}
	}
	return types.AlarmStateDisarmed
}

func containsCategory(categories []types.Category, c types.Category) bool {
	for _, cat := range categories {
		if cat == c {
			return true
		}
	}
	return false
}

// HasUpdates polls the cloud with a copy of the current watermarks. The
// call blocks for up to the configured poll timeout.
func (p *Panel) HasUpdates(ctx context.Context) (*types.PollResult, error) {
	ctx, cancel := context.WithTimeout(ctx, p.config.EConnect.PollTimeout)
	defer cancel()

	res, err := p.client.Poll(ctx, p.LastIDs())
	metrics.RecordPoll(res, err)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Run polls for changes and refreshes the changed categories until ctx is
// cancelled. An expired session is renewed; other failures are retried
// after the configured delay.
func (p *Panel) Run(ctx context.Context) error {
	p.log.Info("Watching panel for changes")

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		res, err := p.HasUpdates(ctx)
		if err == nil {
			if res.HasChanges {
				p.log.Debug("Changes detected: %v", res.Changed())
				err = p.UpdateCategories(ctx, res.Changed()...)
			}
		}

		switch {
		case err == nil:
			continue
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.Is(err, context.DeadlineExceeded):
			p.log.Trace("Poll timed out without changes")
			continue
		case errors.Is(err, econnect.ErrInvalidToken):
			p.log.Info("Session expired, authenticating again")
			metrics.RecordReauth()
			if err := p.Connect(ctx); err != nil {
				p.log.Error("Re-authentication failed: %v", err)
				if !p.wait(ctx) {
					return ctx.Err()
				}
			}
		default:
			p.log.Error("Error while watching the panel: %v", err)
			if !p.wait(ctx) {
				return ctx.Err()
			}
		}
	}
}

// wait sleeps for the retry delay and reports false when ctx ends first.
func (p *Panel) wait(ctx context.Context) bool {
	timer := time.NewTimer(p.config.EConnect.RetryDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (p *Panel) code(code string) string {
	if code == "" {
		return p.config.EConnect.Code
	}
	return code
}

// locked runs fn under the panel lock and records it as operation.
func (p *Panel) locked(ctx context.Context, operation, code string, fn func(ctx context.Context) error) error {
	start := time.Now()
	err := p.client.WithLock(ctx, p.code(code), p.config.EConnect.UserID, fn)
	metrics.RecordOperation(operation, time.Since(start), err)

	switch {
	case err == nil:
	case errors.Is(err, econnect.ErrLock):
		p.log.Error("Error while acquiring the system lock: %v", err)
	case errors.Is(err, econnect.ErrCode):
		p.log.Error("Alarm code is incorrect: %v", err)
	default:
		p.log.Error("Failed to %s: %v", operation, err)
	}
	return err
}

func (p *Panel) setState(state types.AlarmState) {
	p.mu.Lock()
	previous := p.state
	p.state = state
	p.mu.Unlock()

	metrics.SetAlarmState(state)
	if previous != state {
		p.log.Panel("Alarm state changed from %s to %s", previous, state)
		p.emit(types.CategoryPanel)
	}
}

// Arm arms the given sectors, or all of them. An empty code uses the
// configured one.
func (p *Panel) Arm(ctx context.Context, code string, sectors []int) error {
	p.log.Info("Arming sectors %v", sectors)
	err := p.locked(ctx, "arm", code, func(ctx context.Context) error {
		return p.client.Arm(ctx, sectors)
	})
	if err != nil {
		return err
	}
	p.setState(types.AlarmStateArmedAway)
	return nil
}

// Disarm disarms the given sectors, or all of them.
func (p *Panel) Disarm(ctx context.Context, code string, sectors []int) error {
	p.log.Info("Disarming sectors %v", sectors)
	err := p.locked(ctx, "disarm", code, func(ctx context.Context) error {
		return p.client.Disarm(ctx, sectors)
	})
	if err != nil {
		return err
	}
	p.setState(types.AlarmStateDisarmed)
	return nil
}

// Include puts inputs back into service.
func (p *Panel) Include(ctx context.Context, code string, inputs []int) error {
	p.log.Info("Including inputs %v", inputs)
	return p.locked(ctx, "include", code, func(ctx context.Context) error {
		return p.client.Include(ctx, inputs)
	})
}

// Exclude bypasses inputs.
func (p *Panel) Exclude(ctx context.Context, code string, inputs []int) error {
	p.log.Info("Excluding inputs %v", inputs)
	return p.locked(ctx, "exclude", code, func(ctx context.Context) error {
		return p.client.Exclude(ctx, inputs)
	})
}

// TurnOn activates outputs.
func (p *Panel) TurnOn(ctx context.Context, outputs []int) error {
	p.log.Info("Turning on outputs %v", outputs)
	start := time.Now()
	err := p.client.TurnOn(ctx, outputs)
	metrics.RecordOperation("turn_on", time.Since(start), err)
	return err
}

// TurnOff deactivates outputs.
func (p *Panel) TurnOff(ctx context.Context, outputs []int) error {
	p.log.Info("Turning off outputs %v", outputs)
	start := time.Now()
	err := p.client.TurnOff(ctx, outputs)
	metrics.RecordOperation("turn_off", time.Since(start), err)
	return err
}

func (p *Panel) State() types.AlarmState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// LastIDs returns a copy of the current watermarks.
func (p *Panel) LastIDs() types.LastIDs {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastIDs.Clone()
}

func (p *Panel) GetSectors() map[int]types.Entity {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return copyEntities(p.sectors)
}

func (p *Panel) GetInputs() map[int]types.Entity {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return copyEntities(p.inputs)
}

func (p *Panel) GetOutputs() map[int]types.Entity {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return copyEntities(p.outputs)
}

func (p *Panel) GetAlerts() map[int]types.Alert {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[int]types.Alert, len(p.alerts))
	for k, v := range p.alerts {
		out[k] = v
	}
	return out
}

func (p *Panel) GetDevice() *types.PanelInfo {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.device.Clone()
}

// SectorsArmed returns the sectors whose status is armed.
func (p *Panel) SectorsArmed() map[int]types.Entity {
	return filter(p.GetSectors(), true)
}

// SectorsDisarmed returns the sectors whose status is disarmed.
func (p *Panel) SectorsDisarmed() map[int]types.Entity {
	return filter(p.GetSectors(), false)
}

// InputsAlerted returns the inputs in alarm.
func (p *Panel) InputsAlerted() map[int]types.Entity {
	return filter(p.GetInputs(), true)
}

// InputsWait returns the inputs at rest.
func (p *Panel) InputsWait() map[int]types.Entity {
	return filter(p.GetInputs(), false)
}

func filter(entities map[int]types.Entity, status bool) map[int]types.Entity {
	out := make(map[int]types.Entity)
	for k, e := range entities {
		if e.Status == status {
			out[k] = e
		}
	}
	return out
}

func copyEntities(in map[int]types.Entity) map[int]types.Entity {
	out := make(map[int]types.Entity, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// SetCachedData seeds the panel from a snapshot. Watermarks stay at zero so
// the first poll reports everything as changed.
func (p *Panel) SetCachedData(data *types.CacheData) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.device = data.Panel.Clone()
	if data.Sectors != nil {
		p.sectors = copyEntities(data.Sectors)
		p.state = stateOf(p.sectors)
	}
	if data.Inputs != nil {
		p.inputs = copyEntities(data.Inputs)
	}
	if data.Outputs != nil {
		p.outputs = copyEntities(data.Outputs)
	}
}

func (p *Panel) GetCacheableData() *types.CacheData {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return &types.CacheData{
		Panel:      p.device.Clone(),
		Sectors:    copyEntities(p.sectors),
		Inputs:     copyEntities(p.inputs),
		Outputs:    copyEntities(p.outputs),
		LastUpdate: time.Now(),
	}
}
