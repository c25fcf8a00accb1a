package kit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddSubscriber(t *testing.T) {
	var gotPath, gotKey string
	var gotBody map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("X-Kit-Api-Key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"subscriber": map[string]interface{}{
				"id":            901,
				"email_address": "jane@example.com",
				"first_name":    "Jane",
				"state":         "active",
			},
		})
	}))
	defer server.Close()

	client := NewClientWithBaseURL("api-key", server.URL)
	sub := client.AddSubscriber(context.Background(), "jane@example.com", "Jane Doe", "SubstackSync")

	require.NotNil(t, sub)
	assert.Equal(t, int64(901), sub.ID)
	assert.Equal(t, "jane@example.com", sub.EmailAddress)

	assert.Equal(t, "/subscribers", gotPath)
	assert.Equal(t, "api-key", gotKey)
	assert.Equal(t, "jane@example.com", gotBody["email_address"])
	assert.Equal(t, "Jane", gotBody["first_name"])

	fields, ok := gotBody["fields"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "Doe", fields["last_name"])
	assert.Equal(t, "SubstackSync", fields["source"])
}

func TestAddSubscriber_FailureReturnsNil(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClientWithBaseURL("bad-key", server.URL)
	assert.Nil(t, client.AddSubscriber(context.Background(), "jane@example.com", "", ""))
}

func TestAddTag(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewClientWithBaseURL("api-key", server.URL)
	assert.True(t, client.AddTag(context.Background(), "jane@example.com", "42"))
	assert.Equal(t, "/tags/42/subscribers", gotPath)
}

func TestAddTag_FailureReturnsFalse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClientWithBaseURL("api-key", server.URL)
	assert.False(t, client.AddTag(context.Background(), "jane@example.com", "42"))
}

func TestListTags(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/tags", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"tags":[{"id":1,"name":"Substack Free Subscriber"},{"id":2,"name":"Substack Paid Subscriber"}]}`))
	}))
	defer server.Close()

	client := NewClientWithBaseURL("api-key", server.URL)
	tags, err := client.ListTags(context.Background())
	require.NoError(t, err)
	require.Len(t, tags, 2)
	assert.Equal(t, int64(1), tags[0].ID)
	assert.Equal(t, "Substack Paid Subscriber", tags[1].Name)
}

func TestListTags_ErrorSurfaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClientWithBaseURL("bad-key", server.URL)
	_, err := client.ListTags(context.Background())
	assert.Error(t, err, "setup uses this error to reject a bad API key")
}

func TestCreateTag(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Substack Free Subscriber", body["name"])

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"tag":{"id":7,"name":"Substack Free Subscriber"}}`))
	}))
	defer server.Close()

	client := NewClientWithBaseURL("api-key", server.URL)
	tag, err := client.CreateTag(context.Background(), "Substack Free Subscriber")
	require.NoError(t, err)
	assert.Equal(t, int64(7), tag.ID)
}

func TestRemoveTag(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/tags/42/subscribers", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewClientWithBaseURL("api-key", server.URL)
	assert.True(t, client.RemoveTag(context.Background(), "jane@example.com", "42"))
}
