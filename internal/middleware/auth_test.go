package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kinmu/kinmu/pkg/errors"
)

var testAuth = AuthConfig{
	Secret:    []byte("test-secret"),
	Issuer:    "kinmu",
	SkipPaths: []string{"/health"},
}

func TestIssueAndParseToken(t *testing.T) {
	token, err := IssueToken(testAuth, "user-7", time.Hour)
	require.NoError(t, err)

	claims, err := ParseToken(testAuth, token)
	require.NoError(t, err)
	assert.Equal(t, "user-7", claims.UserID)
	assert.Equal(t, "kinmu", claims.Issuer)
}

func TestParseTokenRejects(t *testing.T) {
	expired, err := IssueToken(testAuth, "u", -time.Minute)
	require.NoError(t, err)
	_, err = ParseToken(testAuth, expired)
	assert.True(t, errors.Is(err, errors.CodeUnauthorized), "过期令牌")

	other := testAuth
	other.Secret = []byte("another")
	forged, err := IssueToken(other, "u", time.Hour)
	require.NoError(t, err)
	_, err = ParseToken(testAuth, forged)
	assert.True(t, errors.Is(err, errors.CodeUnauthorized), "签名不符")

	other = testAuth
	other.Issuer = "someone-else"
	wrongIssuer, err := IssueToken(other, "u", time.Hour)
	require.NoError(t, err)
	_, err = ParseToken(testAuth, wrongIssuer)
	assert.True(t, errors.Is(err, errors.CodeUnauthorized), "签发者不符")

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: "u"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = ParseToken(testAuth, none)
	assert.Error(t, err, "拒绝 none 算法")
}

func TestAuthMiddleware(t *testing.T) {
	var user string
	h := Auth(testAuth)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user = UserIDFrom(r.Context())
	}))

	token, err := IssueToken(testAuth, "user-1", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		path   string
		header string
		status int
		user   string
	}{
		{"有效令牌", "/api/v1/sessions", "Bearer " + token, http.StatusOK, "user-1"},
		{"小写 bearer", "/api/v1/sessions", "bearer " + token, http.StatusOK, "user-1"},
		{"缺少令牌", "/api/v1/sessions", "", http.StatusUnauthorized, ""},
		{"错误格式", "/api/v1/sessions", "Token " + token, http.StatusUnauthorized, ""},
		{"无效令牌", "/api/v1/sessions", "Bearer abc.def.ghi", http.StatusUnauthorized, ""},
		{"跳过路径", "/health", "", http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user = ""
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.user, user)
		})
	}
}
