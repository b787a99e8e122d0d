package realtime

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAuthenticator(t *testing.T) {
	tenants := TenantResolverFunc(func(_ context.Context, userID string) (string, error) {
		switch userID {
		case "owner":
			return "owner", nil
		case "member":
			return "owner", nil
		case "blank":
			return "", nil
		default:
			return "", errors.New("user not found")
		}
	})

	cases := []struct {
		name    string
		user    string
		userErr error
		want    Identity
		wantErr error
	}{
		{name: "owner is own tenant", user: "owner", want: Identity{UserID: "owner", TenantID: "owner"}},
		{name: "member inherits parent", user: "member", want: Identity{UserID: "member", TenantID: "owner"}},
		{name: "no session", userErr: errors.New("no cookie"), wantErr: ErrUnauthenticated},
		{name: "empty user id", user: "", wantErr: ErrUnauthenticated},
		{name: "unknown user", user: "ghost", wantErr: ErrNoTenant},
		{name: "blank tenant", user: "blank", wantErr: ErrNoTenant},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sessions := SessionResolverFunc(func(*http.Request) (string, error) { return tc.user, tc.userErr })
			a := NewAuthenticator(sessions, tenants)

			got, err := a.Authenticate(httptest.NewRequest(http.MethodGet, "/ws", nil))
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}
