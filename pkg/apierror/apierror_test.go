package apierror

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	t.Parallel()

	t.Run("envelope with nested refresh key", func(t *testing.T) {
		body := `{"success":false,"error":{"code":"TOKEN_EXPIRED","message":"access token expired","refreshKey":"rk-1"}}`
		apiErr := Decode(http.StatusUnauthorized, []byte(body))

		assert.Equal(t, "TOKEN_EXPIRED", apiErr.Code)
		assert.Equal(t, "access token expired", apiErr.Message)
		assert.Equal(t, "rk-1", apiErr.RefreshKey)
		assert.Equal(t, http.StatusUnauthorized, apiErr.HTTPStatus)
	})

	t.Run("flat body with top level refresh key", func(t *testing.T) {
		body := `{"message":"jwt expired","refreshKey":"rk-2"}`
		apiErr := Decode(http.StatusUnauthorized, []byte(body))

		assert.Equal(t, "UNAUTHORIZED", apiErr.Code)
		assert.Equal(t, "jwt expired", apiErr.Message)
		assert.Equal(t, "rk-2", apiErr.RefreshKey)
	})

	t.Run("string error member", func(t *testing.T) {
		apiErr := Decode(http.StatusBadGateway, []byte(`{"error":"upstream down"}`))

		assert.Equal(t, "UPSTREAM_ERROR", apiErr.Code)
		assert.Equal(t, "upstream down", apiErr.Message)
	})

	t.Run("numeric code keeps refresh key", func(t *testing.T) {
		body := `{"code":401,"message":"jwt expired","refreshKey":"rk-3"}`
		apiErr := Decode(http.StatusUnauthorized, []byte(body))

		assert.Equal(t, "401", apiErr.Code)
		assert.Equal(t, "jwt expired", apiErr.Message)
		assert.Equal(t, "rk-3", apiErr.RefreshKey)
	})

	t.Run("message list inside envelope keeps refresh key", func(t *testing.T) {
		body := `{"statusCode":401,"message":["token expired","refresh allowed"],"error":{"code":7,"refreshKey":"rk-4"}}`
		apiErr := Decode(http.StatusUnauthorized, []byte(body))

		assert.Equal(t, "7", apiErr.Code)
		assert.Equal(t, "token expired; refresh allowed", apiErr.Message)
		assert.Equal(t, "rk-4", apiErr.RefreshKey)
	})

	t.Run("object details are ignored", func(t *testing.T) {
		body := `{"message":"bad","details":{"field":"email"},"refreshKey":null}`
		apiErr := Decode(http.StatusBadRequest, []byte(body))

		assert.Equal(t, "BAD_REQUEST", apiErr.Code)
		assert.Equal(t, "bad", apiErr.Message)
		assert.Empty(t, apiErr.Details)
		assert.Empty(t, apiErr.RefreshKey)
	})

	t.Run("non json body falls back to status text", func(t *testing.T) {
		apiErr := Decode(http.StatusMethodNotAllowed, []byte("<html>nope</html>"))

		assert.Equal(t, "METHOD_NOT_ALLOWED", apiErr.Code)
		assert.Equal(t, http.StatusText(http.StatusMethodNotAllowed), apiErr.Message)
		assert.Empty(t, apiErr.RefreshKey)
	})
}

func TestFromResponseClosesBody(t *testing.T) {
	body := &trackingBody{Reader: strings.NewReader(`{"error":{"code":"X","message":"y"}}`)}
	resp := &http.Response{StatusCode: http.StatusConflict, Body: body}

	apiErr := FromResponse(resp)

	require.NotNil(t, apiErr)
	assert.Equal(t, "X", apiErr.Code)
	assert.True(t, body.closed)
}

func TestStatusHelpers(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("get profile: %w", New("SESSION_INVALID", "revoked", "", 498))

	assert.Equal(t, 498, StatusOf(wrapped))
	assert.True(t, HasStatus(wrapped, 401, 498))
	assert.False(t, HasStatus(wrapped, 401))
	assert.False(t, HasStatus(io.EOF, 401))
	assert.Equal(t, 0, StatusOf(io.EOF))
}

type trackingBody struct {
	io.Reader
	closed bool
}

func (b *trackingBody) Close() error {
	b.closed = true
	return nil
}
