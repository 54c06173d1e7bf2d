package plex

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return New(Config{
		Token:      "token",
		ServerURL:  srv.URL,
		MachineID:  "machine",
		AccountURL: srv.URL,
	})
}

func TestSections(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/servers/machine", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "token", r.URL.Query().Get("X-Plex-Token"))
		_, _ = io.WriteString(w, `<MediaContainer><Server name="home">
			<Section id="11" key="1" title="Movies" type="movie"/>
			<Section id="12" key="2" title="Movies 4K" type="movie"/>
			<Section id="13" key="3" title="TV" type="show"/>
		</Server></MediaContainer>`)
	})
	c := newTestClient(t, mux)

	sections, err := c.Sections(context.Background())
	require.NoError(t, err)
	require.Len(t, sections, 3)
	assert.Equal(t, Section{ID: 12, Key: "2", Title: "Movies 4K", Type: "movie"}, sections[1])
}

func TestSectionSize(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/library/sections/3/all", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "4", r.URL.Query().Get("type"))
		_, _ = io.WriteString(w, `{"MediaContainer":{"totalSize":1234}}`)
	})
	c := newTestClient(t, mux)

	size, err := c.SectionSize(context.Background(), "3", TypeEpisode)
	require.NoError(t, err)
	assert.Equal(t, 1234, size)
}

func TestInviteFriend(t *testing.T) {
	var body map[string]interface{}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/servers/machine/shared_servers", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
	})
	c := newTestClient(t, mux)

	require.NoError(t, c.InviteFriend(context.Background(), "a@example.com", true, []int64{11, 13}))

	shared := body["shared_server"].(map[string]interface{})
	assert.Equal(t, "a@example.com", shared["invited_email"])
	assert.Len(t, shared["library_section_ids"], 2)
	assert.Equal(t, "1", body["sharing_settings"].(map[string]interface{})["allowSync"])
}

func TestRemoveFriend(t *testing.T) {
	var deleted bool
	mux := http.NewServeMux()
	mux.HandleFunc("/api/users", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `<MediaContainer><User id="42" email="A@example.com" username="alice"/></MediaContainer>`)
	})
	mux.HandleFunc("/api/friends/42", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		deleted = true
	})
	c := newTestClient(t, mux)

	require.NoError(t, c.RemoveFriend(context.Background(), "a@example.com"))
	assert.True(t, deleted)

	err := c.RemoveFriend(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCancelInvite(t *testing.T) {
	var query string
	mux := http.NewServeMux()
	mux.HandleFunc("/api/invites/requested", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `<MediaContainer><Invite id="abc" email="b@example.com"/></MediaContainer>`)
	})
	mux.HandleFunc("/api/invites/requested/abc", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		query = r.URL.RawQuery
	})
	c := newTestClient(t, mux)

	require.NoError(t, c.CancelInvite(context.Background(), "b@example.com"))
	assert.Contains(t, query, "server=1")

	assert.ErrorIs(t, c.CancelInvite(context.Background(), "a@example.com"), ErrNotFound)
}

func TestUnexpectedStatus(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/servers/machine/shared_servers", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "already shared", http.StatusBadRequest)
	})
	c := newTestClient(t, mux)

	err := c.InviteFriend(context.Background(), "a@example.com", false, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}
