package econnect

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/daemonp/econnect2mqtt/internal/types"
)

type updatesResponse struct {
	Areas     *bool `json:"Areas"`
	Inputs    *bool `json:"Inputs"`
	Outputs   *bool `json:"Outputs"`
	StatusAdv *bool `json:"StatusAdv"`
}

// Poll asks the cloud which categories changed since the given watermarks.
// HasChanges is derived from the category flags; the server's own
// HasChanges field is not trusted.
// The server may hold the request open until something changes, so ctx
// should carry the long-poll timeout.
func (c *Client) Poll(ctx context.Context, ids types.LastIDs) (*types.PollResult, error) {
	var result *types.PollResult
	err := c.withSession(func(token string) error {
		form := url.Values{
			"sessionId":        {token},
			"Areas":            {strconv.Itoa(ids[types.CategorySectors])},
			"Inputs":           {strconv.Itoa(ids[types.CategoryInputs])},
			"Outputs":          {strconv.Itoa(ids[types.CategoryOutputs])},
			"StatusAdv":        {strconv.Itoa(ids[types.CategoryAlerts])},
			"CanElevate":       {"1"},
			"ConnectionStatus": {"1"},
		}
		body, err := c.postForm(ctx, c.endpoint(pathUpdates), form)
		if err != nil {
			return err
		}

		var resp updatesResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return fmt.Errorf("%w: %v", ErrParse, err)
		}
		if resp.Areas == nil || resp.Inputs == nil || resp.Outputs == nil || resp.StatusAdv == nil {
			return fmt.Errorf("%w: updates missing Areas, Inputs, Outputs or StatusAdv", ErrParse)
		}

		result = &types.PollResult{
			Sectors: *resp.Areas,
			Inputs:  *resp.Inputs,
			Outputs: *resp.Outputs,
			Alerts:  *resp.StatusAdv,
		}
		result.HasChanges = result.Sectors || result.Inputs || result.Outputs || result.Alerts
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.log.Trace("Poll result: %+v", *result)
	return result, nil
}
