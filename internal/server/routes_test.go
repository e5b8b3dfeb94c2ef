package server

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazypower/rapport/internal/memory"
	"github.com/lazypower/rapport/internal/relationship"
	"github.com/lazypower/rapport/internal/store"
)

func decodeBody[T any](t *testing.T, body []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(body, &v), "body: %s", body)
	return v
}

func TestMessageEndpoint(t *testing.T) {
	srv := testServer(t)

	w := do(t, srv, "POST", "/api/messages", `{"user_id":"alice","text":"I love this, it's amazing and awesome"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decodeBody[map[string]any](t, w.Body.Bytes())
	emo := body["emotion"].(map[string]any)
	assert.Equal(t, "positive", emo["category"])
	assert.EqualValues(t, 74, emo["mood_score"])
	assert.Equal(t, "playful", body["mode"])
	assert.NotEmpty(t, body["reply"])

	rel := body["relationship"].(map[string]any)
	assert.Equal(t, "Stranger", rel["tier_name"])
	assert.EqualValues(t, 1, rel["interaction_count"])
}

func TestMessageEndpointRejectsBadInput(t *testing.T) {
	srv := testServer(t)

	cases := []struct {
		name string
		body string
	}{
		{"malformed json", `{"user_id":`},
		{"missing user", `{"text":"hi"}`},
		{"bad user", `{"user_id":"a b","text":"hi"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := do(t, srv, "POST", "/api/messages", tc.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			body := decodeBody[map[string]string](t, w.Body.Bytes())
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestEvaluateDefense(t *testing.T) {
	srv := testServer(t)

	w := do(t, srv, "POST", "/api/evaluate", `{"user_id":"bob","text":"this is trash and boring"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decodeBody[map[string]map[string]any](t, w.Body.Bytes())
	assert.Equal(t, "negative", body["emotion"]["category"])
	assert.Equal(t, true, body["emotion"]["should_defend"])
	assert.Equal(t, "HUMOROUS_DISMISSAL", body["emotion"]["defense_level"])
	assert.EqualValues(t, 20, body["emotion"]["toxicity_level"])
	assert.Equal(t, "bob", body["relationship"]["user_id"])
}

func TestEmotionAndRelationshipReadOnly(t *testing.T) {
	srv := testServer(t)

	w := do(t, srv, "GET", "/api/users/carol/emotion", "")
	require.Equal(t, http.StatusOK, w.Code)
	emo := decodeBody[map[string]any](t, w.Body.Bytes())
	assert.EqualValues(t, 50, emo["mood_score"])
	assert.EqualValues(t, 0, emo["interaction_count"])

	w = do(t, srv, "GET", "/api/users/carol/relationship", "")
	require.Equal(t, http.StatusOK, w.Code)
	rel := decodeBody[relationship.Summary](t, w.Body.Bytes())
	assert.Equal(t, 100, rel.Points)
	assert.Equal(t, 50, rel.Trust)

	// Reads do not create interactions.
	w = do(t, srv, "GET", "/api/users/carol/relationship", "")
	rel = decodeBody[relationship.Summary](t, w.Body.Bytes())
	assert.Equal(t, 0, rel.Interactions)
}

func TestInvalidUserPath(t *testing.T) {
	srv := testServer(t)

	for _, path := range []string{
		"/api/users/bad!id/emotion",
		"/api/users/bad!id/relationship",
		"/api/users/bad!id/facts",
		"/api/users/bad!id/memories",
	} {
		w := do(t, srv, "GET", path, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, path)
	}
}

func TestGiftEndpoint(t *testing.T) {
	srv := testServer(t)

	w := do(t, srv, "POST", "/api/users/dana/gifts", `{"direction":"received"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	rel := decodeBody[relationship.Summary](t, w.Body.Bytes())
	assert.GreaterOrEqual(t, rel.Points, 116)
	assert.LessOrEqual(t, rel.Points, 130)

	w = do(t, srv, "POST", "/api/users/dana/gifts", `{"direction":"sideways"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFactsCRUD(t *testing.T) {
	srv := testServer(t)

	w := do(t, srv, "PUT", "/api/users/erin/facts", `{"key":"favorite_game","value":"Celeste","category":"games"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(t, srv, "GET", "/api/users/erin/facts", "")
	require.Equal(t, http.StatusOK, w.Code)
	facts := decodeBody[[]store.Fact](t, w.Body.Bytes())
	require.Len(t, facts, 1)
	assert.Equal(t, "erin", facts[0].UserID)
	assert.Equal(t, "Celeste", facts[0].Value)
	assert.Equal(t, "games", facts[0].Category)

	w = do(t, srv, "DELETE", "/api/users/erin/facts/favorite_game", "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, srv, "GET", "/api/users/erin/facts", "")
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestPutFactRequiresKeyAndValue(t *testing.T) {
	srv := testServer(t)
	w := do(t, srv, "PUT", "/api/users/erin/facts", `{"key":"  ","value":"x"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMemoriesStoreListAndQuery(t *testing.T) {
	srv := testServer(t)

	w := do(t, srv, "POST", "/api/users/fay/memories",
		`{"user_message":"my dog is named Biscuit","agent_response":"cute name"}`)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	stored := decodeBody[store.Memory](t, w.Body.Bytes())
	assert.Equal(t, "fay", stored.UserID)
	assert.Equal(t, 1.5, stored.Importance)

	do(t, srv, "POST", "/api/users/fay/memories",
		`{"user_message":"pizza is the best food","agent_response":"agreed","importance":1.0}`)

	w = do(t, srv, "GET", "/api/users/fay/memories", "")
	require.Equal(t, http.StatusOK, w.Code)
	list := decodeBody[[]store.Memory](t, w.Body.Bytes())
	require.Len(t, list, 2)
	assert.Equal(t, int64(2), list[0].Seq, "newest first")

	w = do(t, srv, "GET", "/api/users/fay/memories?q=what+is+my+dog+named&k=1", "")
	require.Equal(t, http.StatusOK, w.Code)
	results := decodeBody[[]memory.Result](t, w.Body.Bytes())
	require.Len(t, results, 1)
	assert.Contains(t, results[0].UserMessage, "Biscuit")
}

func TestGetMemoryByRecordID(t *testing.T) {
	srv := testServer(t)
	w := do(t, srv, "POST", "/api/users/fay/memories", `{"user_message":"I live in Lisbon","agent_response":"nice"}`)
	require.Equal(t, http.StatusAccepted, w.Code)
	stored := decodeBody[store.Memory](t, w.Body.Bytes())

	w = do(t, srv, "GET", "/api/users/fay/memories/"+stored.RecordID, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	got := decodeBody[store.Memory](t, w.Body.Bytes())
	assert.Equal(t, "I live in Lisbon", got.UserMessage)

	w = do(t, srv, "GET", "/api/users/gus/memories/"+stored.RecordID, "")
	assert.Equal(t, http.StatusNotFound, w.Code, "owned by another user")
	w = do(t, srv, "GET", "/api/users/fay/memories/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMemoriesQueryOtherUserEmpty(t *testing.T) {
	srv := testServer(t)
	do(t, srv, "POST", "/api/users/gus/memories", `{"user_message":"I live in Lisbon","agent_response":"nice"}`)

	w := do(t, srv, "GET", "/api/users/hal/memories?q=Lisbon", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestMemoriesBadK(t *testing.T) {
	srv := testServer(t)
	w := do(t, srv, "GET", "/api/users/fay/memories?k=0", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMemoriesDisabled(t *testing.T) {
	srv := testServerWith(t, nil)

	w := do(t, srv, "POST", "/api/users/ivy/memories", `{"user_message":"hello","agent_response":"hi"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = do(t, srv, "GET", "/api/users/ivy/memories?q=hello", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestListAndResetUsers(t *testing.T) {
	srv := testServer(t)
	for _, u := range []string{"kit", "lou"} {
		w := do(t, srv, "POST", "/api/evaluate", `{"user_id":"`+u+`","text":"hello"}`)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	w := do(t, srv, "GET", "/api/users", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeBody[[]relationship.Summary](t, w.Body.Bytes()), 2)

	w = do(t, srv, "DELETE", "/api/users/kit", "")
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	w = do(t, srv, "GET", "/api/users", "")
	users := decodeBody[[]relationship.Summary](t, w.Body.Bytes())
	require.Len(t, users, 1)
	assert.Equal(t, "lou", users[0].UserID)

	w = do(t, srv, "GET", "/api/users/kit/emotion", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 0, decodeBody[map[string]any](t, w.Body.Bytes())["interaction_count"])

	w = do(t, srv, "DELETE", "/api/users/bad!id", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTiersEndpoint(t *testing.T) {
	srv := testServer(t)

	w := do(t, srv, "GET", "/api/tiers", "")
	require.Equal(t, http.StatusOK, w.Code)
	tiers := decodeBody[[]relationship.Tier](t, w.Body.Bytes())
	require.Len(t, tiers, len(relationship.Tiers))
	assert.Equal(t, "Soulmate", tiers[0].Name)
	assert.Equal(t, 0, tiers[len(tiers)-1].MinPoints)
}
