package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/pashusagar/pashusagar-cli/pkg/types"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func TestUserID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		claims  jwt.MapClaims
		want    types.ID
		wantErr bool
	}{
		{name: "numeric user_id", claims: jwt.MapClaims{"user_id": 7}, want: types.ID("7")},
		{name: "string user_id", claims: jwt.MapClaims{"user_id": "42"}, want: types.ID("42")},
		{name: "sub fallback", claims: jwt.MapClaims{"sub": "9"}, want: types.ID("9")},
		{name: "user_id wins over sub", claims: jwt.MapClaims{"user_id": 1, "sub": "2"}, want: types.ID("1")},
		{name: "no claim", claims: jwt.MapClaims{"exp": time.Now().Unix()}, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := UserID(signedToken(t, tc.claims))
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}

	_, err := UserID("not-a-jwt")
	require.Error(t, err)
}

func TestExpiresSoon(t *testing.T) {
	t.Parallel()

	fresh := signedToken(t, jwt.MapClaims{"user_id": 1, "exp": time.Now().Add(time.Hour).Unix()})
	soon, err := ExpiresSoon(fresh, time.Minute)
	require.NoError(t, err)
	require.False(t, soon)

	stale := signedToken(t, jwt.MapClaims{"user_id": 1, "exp": time.Now().Add(-time.Minute).Unix()})
	soon, err = ExpiresSoon(stale, time.Minute)
	require.NoError(t, err)
	require.True(t, soon)

	noExp := signedToken(t, jwt.MapClaims{"user_id": 1})
	soon, err = ExpiresSoon(noExp, time.Minute)
	require.NoError(t, err)
	require.False(t, soon)

	_, err = ExpiresSoon("  ", time.Minute)
	require.Error(t, err)
}
