package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var secret = []byte("test_secret_key_for_sessions_2026")

func TestSession_Usable_Valid_Token(t *testing.T) {
	req := require.New(t)
	token, err := GenerateToken("user-1", false, secret, time.Hour)
	req.NoError(err)

	req.True(Session{Token: token}.Usable())
}

func TestSession_Usable_Expired_Token(t *testing.T) {
	req := require.New(t)
	token, err := GenerateToken("user-1", false, secret, -time.Minute)
	req.NoError(err)

	req.False(Session{Token: token}.Usable())
}

func TestSession_Usable_Empty_Or_Garbage(t *testing.T) {
	req := require.New(t)
	req.False(Session{}.Usable())
	req.False(Session{Token: "not-a-jwt"}.Usable())
}
