package econnect

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"

	"github.com/daemonp/econnect2mqtt/internal/types"
	"github.com/daemonp/econnect2mqtt/internal/util"
)

type descriptionEntry struct {
	Class       *int   `json:"Class"`
	Index       *int   `json:"Index"`
	Description string `json:"Description"`
}

// Descriptions returns the class -> index -> name table. It is fetched once
// per session and must be treated as read-only.
func (c *Client) Descriptions(ctx context.Context) (types.Descriptions, error) {
	c.descMu.Lock()
	if c.descLoaded {
		d := c.descriptions
		c.descMu.Unlock()
		return d, nil
	}
	c.descMu.Unlock()

	var descriptions types.Descriptions
	err := c.withSession(func(token string) error {
		body, err := c.postForm(ctx, c.endpoint(pathStrings), url.Values{"sessionId": {token}})
		if err != nil {
			return err
		}

		var entries []descriptionEntry
		if err := json.Unmarshal(body, &entries); err != nil {
			return fmt.Errorf("%w: %v", ErrParse, err)
		}

		descriptions = make(types.Descriptions)
		for _, e := range entries {
			if e.Class == nil || e.Index == nil {
				return fmt.Errorf("%w: description without Class or Index", ErrParse)
			}
			if descriptions[*e.Class] == nil {
				descriptions[*e.Class] = make(map[int]string)
			}
			descriptions[*e.Class][*e.Index] = e.Description
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.descMu.Lock()
	c.descriptions = descriptions
	c.descLoaded = true
	c.descMu.Unlock()

	c.log.Debug("Loaded descriptions for %d classes", len(descriptions))
	return descriptions, nil
}

// Query fetches one category and normalizes it.
func (c *Client) Query(ctx context.Context, category types.Category) (*types.QueryResult, error) {
	var result *types.QueryResult
	err := c.withSession(func(token string) error {
		var err error
		switch category {
		case types.CategorySectors:
			result, err = c.queryEntities(ctx, token, category, pathSectors)
		case types.CategoryInputs:
			result, err = c.queryEntities(ctx, token, category, pathInputs)
		case types.CategoryOutputs:
			result, err = c.queryEntities(ctx, token, category, pathOutputs)
		case types.CategoryAlerts:
			result, err = c.queryAlerts(ctx, token)
		case types.CategoryPanel:
			result = c.queryPanel()
		default:
			err = fmt.Errorf("%w: %s", ErrQueryNotValid, category)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

type rawEntity struct {
	ID                         json.RawMessage `json:"Id"`
	Index                      *int            `json:"Index"`
	Element                    int             `json:"Element"`
	InUse                      *bool           `json:"InUse"`
	Active                     bool            `json:"Active"`
	Activable                  bool            `json:"Activable"`
	Alarm                      bool            `json:"Alarm"`
	Excluded                   bool            `json:"Excluded"`
	DoNotRequireAuthentication bool            `json:"DoNotRequireAuthentication"`
	ControlDeniedToUsers       bool            `json:"ControlDeniedToUsers"`
}

// entityID reads a numeric Id. Missing or non-numeric ids report false.
func entityID(raw json.RawMessage) (int, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var id int
	if err := json.Unmarshal(raw, &id); err != nil {
		return 0, false
	}
	return id, true
}

func (c *Client) fetch(ctx context.Context, token, path string) ([]byte, error) {
	body, err := c.postForm(ctx, c.endpoint(path), url.Values{"sessionId": {token}})
	if err != nil && isDisconnected(err) {
		return nil, fmt.Errorf("%w: %w", ErrDeviceDisconnected, err)
	}
	return body, err
}

// queryEntities keeps entries marked InUse, keyed by Index. LastID is the
// largest numeric Id among all entries, or 0 when there are none or any Id
// is not numeric.
func (c *Client) queryEntities(ctx context.Context, token string, category types.Category, path string) (*types.QueryResult, error) {
	body, err := c.fetch(ctx, token, path)
	if err != nil {
		return nil, err
	}

	descriptions, err := c.Descriptions(ctx)
	if err != nil {
		return nil, err
	}

	var raws []rawEntity
	if err := json.Unmarshal(body, &raws); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	entities := make(map[int]types.Entity)
	lastID, numeric := 0, true
	for _, raw := range raws {
		id, ok := entityID(raw.ID)
		if !ok {
			numeric = false
		} else if id > lastID {
			lastID = id
		}

		if raw.InUse == nil {
			return nil, fmt.Errorf("%w: %s entry without InUse", ErrParse, category)
		}
		if !*raw.InUse {
			continue
		}
		if raw.Index == nil {
			return nil, fmt.Errorf("%w: %s entry without Index", ErrParse, category)
		}

		entity := types.Entity{
			ID:      id,
			Index:   *raw.Index,
			Element: raw.Element,
			Name:    descriptions.Name(category.Class(), *raw.Index),
		}
		switch category {
		case types.CategorySectors:
			entity.Status = raw.Active
			entity.Activable = raw.Activable
		case types.CategoryInputs:
			entity.Status = raw.Alarm
			entity.Excluded = raw.Excluded
		case types.CategoryOutputs:
			entity.Status = raw.Active
			entity.DoNotRequireAuthentication = raw.DoNotRequireAuthentication
			entity.ControlDeniedToUsers = raw.ControlDeniedToUsers
		}
		entities[entity.Index] = entity
	}
	if !numeric {
		lastID = 0
	}

	c.log.Debug("Query %s returned %d entities, last id %d", category, len(entities), lastID)
	return &types.QueryResult{Category: category, LastID: lastID, Entities: entities}, nil
}

type statusAdv struct {
	StatusUID      *int                       `json:"StatusUid"`
	PanelLeds      map[string]json.RawMessage `json:"PanelLeds"`
	PanelAnomalies map[string]json.RawMessage `json:"PanelAnomalies"`
}

// queryAlerts merges leds and anomalies, orders them by their original
// name and numbers them from 0. Boolean flags become 0 or 1.
func (c *Client) queryAlerts(ctx context.Context, token string) (*types.QueryResult, error) {
	body, err := c.fetch(ctx, token, pathStatusAdv)
	if err != nil {
		return nil, err
	}

	var status statusAdv
	if err := json.Unmarshal(body, &status); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if status.StatusUID == nil || status.PanelLeds == nil || status.PanelAnomalies == nil {
		return nil, fmt.Errorf("%w: status missing StatusUid, PanelLeds or PanelAnomalies", ErrParse)
	}

	merged := make(map[string]json.RawMessage, len(status.PanelLeds)+len(status.PanelAnomalies))
	for k, v := range status.PanelLeds {
		merged[k] = v
	}
	for k, v := range status.PanelAnomalies {
		merged[k] = v
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	alerts := make(map[int]types.Alert, len(keys))
	for i, k := range keys {
		value, err := alertStatus(merged[k])
		if err != nil {
			return nil, fmt.Errorf("%w: alert %s: %v", ErrParse, k, err)
		}
		alerts[i] = types.Alert{Name: util.CamelToSnake(k), Status: value}
	}

	return &types.QueryResult{
		Category: types.CategoryAlerts,
		LastID:   *status.StatusUID,
		Alerts:   alerts,
	}, nil
}

func alertStatus(raw json.RawMessage) (int, error) {
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		if b {
			return 1, nil
		}
		return 0, nil
	}
	var n int
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, fmt.Errorf("value %s is neither boolean nor integer", raw)
	}
	return n, nil
}

func (c *Client) queryPanel() *types.QueryResult {
	panel := c.Panel()
	if panel == nil {
		panel = &types.PanelInfo{}
	}
	return &types.QueryResult{Category: types.CategoryPanel, Panel: panel}
}
