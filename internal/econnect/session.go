package econnect

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/daemonp/econnect2mqtt/internal/types"
	"github.com/daemonp/econnect2mqtt/internal/util"
)

type loginResponse struct {
	SessionID  *string     `json:"SessionId"`
	Redirect   bool        `json:"Redirect"`
	RedirectTo string      `json:"RedirectTo"`
	Panel      *loginPanel `json:"Panel"`
}

type loginPanel struct {
	Description             string `json:"Description"`
	LastConnection          string `json:"LastConnection"`
	LastDisconnection       string `json:"LastDisconnection"`
	Major                   int    `json:"Major"`
	Minor                   int    `json:"Minor"`
	SourceIP                string `json:"SourceIP"`
	ConnectionType          string `json:"ConnectionType"`
	DeviceClass             int    `json:"DeviceClass"`
	Revision                int    `json:"Revision"`
	Build                   int    `json:"Build"`
	Brand                   int    `json:"Brand"`
	Language                int    `json:"Language"`
	Areas                   int    `json:"Areas"`
	SectorsPerArea          int    `json:"SectorsPerArea"`
	TotalSectors            int    `json:"TotalSectors"`
	Inputs                  int    `json:"Inputs"`
	Outputs                 int    `json:"Outputs"`
	Operators               int    `json:"Operators"`
	SectorsInUse            []bool `json:"SectorsInUse"`
	Model                   string `json:"Model"`
	LoginWithoutUserID      bool   `json:"LoginWithoutUserID"`
	AdditionalInfoSupported int    `json:"AdditionalInfoSupported"`
	IsFirePanel             bool   `json:"IsFirePanel"`
}

func (p *loginPanel) info() *types.PanelInfo {
	if p == nil {
		return nil
	}
	return &types.PanelInfo{
		Description:             p.Description,
		LastConnection:          p.LastConnection,
		LastDisconnection:       p.LastDisconnection,
		Major:                   p.Major,
		Minor:                   p.Minor,
		SourceIP:                p.SourceIP,
		ConnectionType:          p.ConnectionType,
		DeviceClass:             p.DeviceClass,
		Revision:                p.Revision,
		Build:                   p.Build,
		Brand:                   p.Brand,
		Language:                p.Language,
		Areas:                   p.Areas,
		SectorsPerArea:          p.SectorsPerArea,
		TotalSectors:            p.TotalSectors,
		Inputs:                  p.Inputs,
		Outputs:                 p.Outputs,
		Operators:               p.Operators,
		SectorsInUse:            append([]bool(nil), p.SectorsInUse...),
		Model:                   p.Model,
		LoginWithoutUserID:      p.LoginWithoutUserID,
		AdditionalInfoSupported: p.AdditionalInfoSupported,
		IsFirePanel:             p.IsFirePanel,
	}
}

// Authenticate logs in and stores the session token. A redirect answer is
// followed once: the base URL switches to the redirect target and the login
// is repeated there. When web login is enabled, the token scraped from the
// web form replaces the API token. Cached descriptions are discarded.
func (c *Client) Authenticate(ctx context.Context, username, password string) (string, error) {
	params := url.Values{
		"username": {username},
		"password": {password},
	}
	if c.domain != "" {
		params.Set("domain", c.domain)
	}

	resp, err := c.login(ctx, params)
	if err != nil {
		return "", err
	}

	if resp.Redirect {
		c.log.Debug("Login redirected to %s", resp.RedirectTo)
		target, err := checkBaseURL(resp.RedirectTo)
		if err != nil {
			return "", fmt.Errorf("invalid login redirect: %w", err)
		}
		c.mu.Lock()
		c.baseURL = target
		c.mu.Unlock()

		// A second redirect is ignored.
		if resp, err = c.login(ctx, params); err != nil {
			return "", err
		}
	}

	if resp.SessionID == nil {
		return "", fmt.Errorf("%w: login response without SessionId", ErrParse)
	}
	token := *resp.SessionID

	if c.webLoginURL != "" {
		if token, err = c.webLogin(ctx, username, password); err != nil {
			return "", err
		}
	}

	c.mu.Lock()
	c.sessionID = token
	c.panel = resp.Panel.info()
	c.mu.Unlock()

	c.descMu.Lock()
	c.descriptions = nil
	c.descLoaded = false
	c.descMu.Unlock()

	c.log.Info("Authenticated with session %s", util.SanitizeSessionID(token))
	return token, nil
}

func (c *Client) login(ctx context.Context, params url.Values) (*loginResponse, error) {
	body, err := c.get(ctx, c.endpoint(pathLogin), params)
	if err != nil {
		if statusCode(err) == http.StatusForbidden {
			return nil, fmt.Errorf("%w: %w", ErrCredential, err)
		}
		return nil, err
	}

	var resp loginResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return &resp, nil
}

// webLogin posts the vendor web form and scrapes the token from the
// returned page. The form lives at <web login URL>/<domain>, with the
// "default" domain mapped to the root page.
func (c *Client) webLogin(ctx context.Context, username, password string) (string, error) {
	domain := c.domain
	if domain == "default" {
		domain = ""
	}
	endpoint := c.webLoginURL + "/" + domain

	form := url.Values{
		"IsDisableAccountCreation": {"True"},
		"IsAllowThemeChange":       {"True"},
		"UserName":                 {username},
		"Password":                 {password},
		"RememberMe":               {"false"},
	}
	body, err := c.postForm(ctx, endpoint, form)
	if err != nil {
		if statusCode(err) == http.StatusForbidden {
			return "", fmt.Errorf("%w: %w", ErrCredential, err)
		}
		return "", err
	}

	return ExtractSessionID(body)
}

// Panel returns a copy of the panel details captured at login, or nil
// before Authenticate.
func (c *Client) Panel() *types.PanelInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.panel.Clone()
}
