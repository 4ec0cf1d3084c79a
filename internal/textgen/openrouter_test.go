package textgen_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dbunify/internal/domain"
	"dbunify/internal/textgen"
)

type capturedRequest struct {
	Auth string
	Body struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
}

func completionServer(t *testing.T, status int, reply string, got *capturedRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got != nil {
			got.Auth = r.Header.Get("Authorization")
			raw, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(raw, &got.Body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGenerateSQL(t *testing.T) {
	var got capturedRequest
	srv := completionServer(t, http.StatusOK,
		`{"choices":[{"message":{"role":"assistant","content":"`+"```sql\\nSELECT name\\nFROM users -- all\\nLIMIT 10\\n```"+`"}}]}`,
		&got)

	c, err := textgen.New(textgen.Options{APIKey: "sk-test", Endpoint: srv.URL, Model: "test/model"})
	require.NoError(t, err)

	schema := []domain.TableDescriptor{{
		ID: "0-users", Name: "users", SourceName: "shop.db",
		Columns: []domain.ColumnDescriptor{{Name: "name", DeclaredType: "TEXT"}},
	}}
	sql, err := c.GenerateSQL(context.Background(), "list all user names", schema)
	require.NoError(t, err)
	assert.Equal(t, "SELECT name FROM users", sql)

	assert.Equal(t, "Bearer sk-test", got.Auth)
	assert.Equal(t, "test/model", got.Body.Model)
	require.Len(t, got.Body.Messages, 2)
	assert.Equal(t, "system", got.Body.Messages[0].Role)
	assert.Contains(t, got.Body.Messages[0].Content,
		`{"tables":[{"id":"0-users","name":"users","database":"shop.db","columns":[{"name":"name","type":"TEXT"}]}]}`)
	assert.True(t, strings.HasSuffix(got.Body.Messages[1].Content, "list all user names"))
}

func TestGenerateSQL_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		reply  string
		want   string
	}{
		{name: "api_error_body", status: http.StatusUnauthorized, reply: `{"error":{"message":"invalid key"}}`, want: "invalid key"},
		{name: "plain_error_body", status: http.StatusBadGateway, reply: `upstream down`, want: "upstream down"},
		{name: "error_in_ok_response", status: http.StatusOK, reply: `{"error":{"message":"model overloaded"}}`, want: "model overloaded"},
		{name: "no_choices", status: http.StatusOK, reply: `{"choices":[]}`, want: "no choices"},
		{name: "empty_content", status: http.StatusOK, reply: `{"choices":[{"message":{"content":"` + "```sql```" + `"}}]}`, want: "no SQL"},
		{name: "bad_json", status: http.StatusOK, reply: `not json`, want: "decode"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := completionServer(t, tt.status, tt.reply, nil)
			c, err := textgen.New(textgen.Options{APIKey: "k", Endpoint: srv.URL})
			require.NoError(t, err)

			_, err = c.GenerateSQL(context.Background(), "anything", nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestGenerateSQL_APIErrorType(t *testing.T) {
	srv := completionServer(t, http.StatusTooManyRequests, `{"error":{"message":"slow down"}}`, nil)
	c, err := textgen.New(textgen.Options{APIKey: "k", Endpoint: srv.URL})
	require.NoError(t, err)

	_, err = c.GenerateSQL(context.Background(), "anything", nil)
	var apiErr *textgen.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
}

func TestGenerateSQL_EmptyPrompt(t *testing.T) {
	c, err := textgen.New(textgen.Options{APIKey: "k", Endpoint: "http://127.0.0.1:1"})
	require.NoError(t, err)

	_, err = c.GenerateSQL(context.Background(), "   ", nil)
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
}

func TestGenerateSQL_RateLimitHonoursContext(t *testing.T) {
	srv := completionServer(t, http.StatusOK, `{"choices":[{"message":{"content":"SELECT 1"}}]}`, nil)
	c, err := textgen.New(textgen.Options{APIKey: "k", Endpoint: srv.URL, RPS: 0.001, Burst: 1})
	require.NoError(t, err)

	_, err = c.GenerateSQL(context.Background(), "first", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.GenerateSQL(ctx, "second", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit")
}

func TestNew_RequiresAPIKey(t *testing.T) {
	_, err := textgen.New(textgen.Options{})
	require.Error(t, err)
}
