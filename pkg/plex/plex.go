// Package plex is a small client for the plex.tv sharing API and the library endpoints of a Plex server.
package plex

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultAccountURL = "https://plex.tv"

// Library types understood by SectionSize
const (
	TypeMovie   = 1
	TypeShow    = 2
	TypeEpisode = 4
)

var ErrNotFound = errors.New("plex: not found")

type Config struct {
	Token            string
	ServerURL        string // local server, e.g. http://127.0.0.1:32400
	MachineID        string // server machine identifier
	ClientIdentifier string
	AccountURL       string // defaults to https://plex.tv
	HTTPClient       *http.Client
}

type Client struct {
	cfg  Config
	http *http.Client
}

// Section is a library section as known to plex.tv.
// ID is the account-wide id used for sharing, Key is the local server key.
type Section struct {
	ID    int64  `xml:"id,attr"`
	Key   string `xml:"key,attr"`
	Title string `xml:"title,attr"`
	Type  string `xml:"type,attr"`
}

func New(cfg Config) *Client {
	if cfg.AccountURL == "" {
		cfg.AccountURL = defaultAccountURL
	}
	if cfg.ClientIdentifier == "" {
		cfg.ClientIdentifier = "mediashare-bot"
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		cfg:  cfg,
		http: httpClient,
	}
}

// Sections returns the library sections of the configured server
func (c *Client) Sections(ctx context.Context) ([]Section, error) {
	var resp struct {
		Servers []struct {
			Sections []Section `xml:"Section"`
		} `xml:"Server"`
	}
	if err := c.doXML(ctx, http.MethodGet, c.accountURL("/api/servers/"+c.cfg.MachineID), nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.Servers) == 0 {
		return nil, fmt.Errorf("server %s: %w", c.cfg.MachineID, ErrNotFound)
	}
	return resp.Servers[0].Sections, nil
}

// SectionSize returns the number of items of libType in the section with the given local key
func (c *Client) SectionSize(ctx context.Context, key string, libType int) (int, error) {
	q := url.Values{}
	q.Set("type", strconv.Itoa(libType))
	q.Set("X-Plex-Container-Start", "0")
	q.Set("X-Plex-Container-Size", "0")
	u := strings.TrimRight(c.cfg.ServerURL, "/") + "/library/sections/" + url.PathEscape(key) + "/all?" + q.Encode()

	req, err := c.newRequest(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")

	body, err := c.do(req)
	if err != nil {
		return 0, err
	}

	var resp struct {
		MediaContainer struct {
			TotalSize int `json:"totalSize"`
		} `json:"MediaContainer"`
	}
	if err = json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("plex: decode section size: %w", err)
	}
	return resp.MediaContainer.TotalSize, nil
}

// InviteFriend shares the given sections (plex.tv section ids) of the server with email
func (c *Client) InviteFriend(ctx context.Context, email string, allowSync bool, sectionIDs []int64) error {
	sync := "0"
	if allowSync {
		sync = "1"
	}
	payload := map[string]interface{}{
		"server_id": c.cfg.MachineID,
		"shared_server": map[string]interface{}{
			"library_section_ids": sectionIDs,
			"invited_email":       email,
		},
		"sharing_settings": map[string]interface{}{
			"allowSync": sync,
		},
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := c.newRequest(ctx, http.MethodPost, c.accountURL("/api/servers/"+c.cfg.MachineID+"/shared_servers"), strings.NewReader(string(data)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	_, err = c.do(req)
	return err
}

// RemoveFriend removes an accepted share with the account registered under email
func (c *Client) RemoveFriend(ctx context.Context, email string) error {
	var resp struct {
		Users []struct {
			ID       int64  `xml:"id,attr"`
			Email    string `xml:"email,attr"`
			Username string `xml:"username,attr"`
		} `xml:"User"`
	}
	if err := c.doXML(ctx, http.MethodGet, c.accountURL("/api/users"), nil, &resp); err != nil {
		return err
	}

	for _, u := range resp.Users {
		if strings.EqualFold(u.Email, email) || strings.EqualFold(u.Username, email) {
			return c.doXML(ctx, http.MethodDelete, c.accountURL("/api/friends/"+strconv.FormatInt(u.ID, 10)), nil, nil)
		}
	}
	return fmt.Errorf("friend %s: %w", email, ErrNotFound)
}

// CancelInvite cancels a pending (not yet accepted) invite sent to email
func (c *Client) CancelInvite(ctx context.Context, email string) error {
	var resp struct {
		Invites []struct {
			ID    string `xml:"id,attr"`
			Email string `xml:"email,attr"`
		} `xml:"Invite"`
	}
	if err := c.doXML(ctx, http.MethodGet, c.accountURL("/api/invites/requested"), nil, &resp); err != nil {
		return err
	}

	for _, inv := range resp.Invites {
		if strings.EqualFold(inv.Email, email) {
			u := c.accountURL("/api/invites/requested/"+url.PathEscape(inv.ID)) + "&friend=0&server=1&home=0"
			return c.doXML(ctx, http.MethodDelete, u, nil, nil)
		}
	}
	return fmt.Errorf("invite %s: %w", email, ErrNotFound)
}

// accountURL builds a plex.tv url, the token is always passed as a query parameter
func (c *Client) accountURL(path string) string {
	return strings.TrimRight(c.cfg.AccountURL, "/") + path + "?X-Plex-Token=" + url.QueryEscape(c.cfg.Token)
}

func (c *Client) newRequest(ctx context.Context, method, u string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Plex-Token", c.cfg.Token)
	req.Header.Set("X-Plex-Client-Identifier", c.cfg.ClientIdentifier)
	req.Header.Set("X-Plex-Product", c.cfg.ClientIdentifier)
	return req, nil
}

func (c *Client) doXML(ctx context.Context, method, u string, body io.Reader, out interface{}) error {
	req, err := c.newRequest(ctx, method, u, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/xml")

	data, err := c.do(req)
	if err != nil {
		return err
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err = xml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("plex: decode %s: %w", req.URL.Path, err)
	}
	return nil
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, ErrNotFound)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("plex: %s %s: unexpected status %d: %s", req.Method, req.URL.Path, resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return data, nil
}
