package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"promo-task-bot/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "TOKEN123", srv.Client())
}

func TestCheckMembership(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		_, _ = io.WriteString(w, `{"ok":true,"result":{"status":"member","user":{"id":42,"is_bot":false,"first_name":"A"}}}`)
	})

	status, err := c.CheckMembership(context.Background(), "@news", 42)
	require.NoError(t, err)
	assert.Equal(t, models.MemberActive, status)
	assert.Equal(t, "/botTOKEN123/getChatMember", gotPath)
	assert.Equal(t, "@news", gotBody["chat_id"])
	assert.Equal(t, float64(42), gotBody["user_id"])
}

func TestMemberStatusOf(t *testing.T) {
	yes, no := true, false
	cases := []struct {
		member *ChatMember
		want   models.MemberStatus
	}{
		{&ChatMember{Status: "creator"}, models.MemberActive},
		{&ChatMember{Status: "administrator"}, models.MemberActive},
		{&ChatMember{Status: "member"}, models.MemberActive},
		{&ChatMember{Status: "restricted", IsMember: &yes}, models.MemberActive},
		{&ChatMember{Status: "restricted", IsMember: &no}, models.MemberLeft},
		{&ChatMember{Status: "left"}, models.MemberLeft},
		{&ChatMember{Status: "kicked"}, models.MemberKicked},
		{&ChatMember{Status: "something_new"}, models.MemberUnknown},
		{nil, models.MemberUnknown},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, MemberStatusOf(tc.member))
	}
}

func TestAPIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"ok":false,"error_code":429,"description":"Too Many Requests: retry after 3","parameters":{"retry_after":3}}`)
	})

	_, err := c.SendMessage(context.Background(), SendMessageParams{ChatID: 1, Text: "hi"})
	require.Error(t, err)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "sendMessage", apiErr.Method)
	assert.Equal(t, 429, apiErr.Code)
	assert.Equal(t, 3*time.Second, apiErr.RetryAfter)
	assert.True(t, IsRetryable(err))
}

func TestForbiddenIsNotRetryable(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, `{"ok":false,"error_code":403,"description":"Forbidden: bot was blocked by the user"}`)
	})
	_, err := c.SendMessage(context.Background(), SendMessageParams{ChatID: 1, Text: "hi"})
	require.Error(t, err)
	assert.False(t, IsRetryable(err))
	assert.False(t, IsRetryable(context.Canceled))
}

func TestEditMessageText(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	modified := true
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		if !modified {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"ok":false,"error_code":400,"description":"Bad Request: message is not modified: specified new message content and reply markup are exactly the same"}`)
			return
		}
		_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":7,"chat":{"id":42}}}`)
	})

	err := c.EditMessageText(context.Background(), EditMessageTextParams{ChatID: 42, MessageID: 7, Text: "still missing"})
	require.NoError(t, err)
	assert.Equal(t, "/botTOKEN123/editMessageText", gotPath)
	assert.Equal(t, float64(7), gotBody["message_id"])
	assert.Equal(t, "still missing", gotBody["text"])

	modified = false
	err = c.EditMessageText(context.Background(), EditMessageTextParams{ChatID: 42, MessageID: 7, Text: "still missing"})
	require.Error(t, err)
	assert.True(t, IsNotModified(err))
	assert.False(t, IsRetryable(err))
	assert.False(t, IsNotModified(&APIError{Code: 400, Description: "Bad Request: message to edit not found"}))
}

func TestTransportErrorHidesToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	base := srv.URL
	srv.Close()

	c := NewClient(base, "SECRET-TOKEN", &http.Client{Timeout: time.Second})
	_, err := c.GetChatMember(context.Background(), "@news", 1)
	require.Error(t, err)
	assert.False(t, strings.Contains(err.Error(), "SECRET-TOKEN"))
}

func TestGetUpdates(t *testing.T) {
	var gotBody map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		_, _ = io.WriteString(w, `{"ok":true,"result":[
			{"update_id":10,"message":{"message_id":1,"from":{"id":5,"is_bot":false,"first_name":"A","language_code":"ru"},"chat":{"id":5,"type":"private"},"date":0,"text":"/start"}},
			{"update_id":11,"callback_query":{"id":"q","from":{"id":5,"is_bot":false,"first_name":"A"},"data":"check_subs"}}
		]}`)
	})

	updates, err := c.GetUpdates(context.Background(), 10, 30*time.Second)
	require.NoError(t, err)
	require.Len(t, updates, 2)
	assert.Equal(t, "/start", updates[0].Message.Text)
	assert.Equal(t, "ru", updates[0].Message.From.LanguageCode)
	assert.Equal(t, "check_subs", updates[1].CallbackQuery.Data)
	assert.Equal(t, float64(10), gotBody["offset"])
	assert.Equal(t, float64(30), gotBody["timeout"])
}

func TestFullName(t *testing.T) {
	assert.Equal(t, "Ada Lovelace", (&User{FirstName: "Ada", LastName: "Lovelace"}).FullName())
	assert.Equal(t, "Ada", (&User{FirstName: "Ada"}).FullName())
	var nilUser *User
	assert.Equal(t, "", nilUser.FullName())
}
