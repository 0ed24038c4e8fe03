package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storefront-service/internal/model"
	"storefront-service/internal/store/memstore"
	"storefront-service/pkg/jwtutil"
)

func newService() *Service {
	return NewService(memstore.New().Users(), jwtutil.NewJWTUtil(&jwtutil.JWTConfig{SigningKey: "k", ExpirationHours: 1}), zap.NewNop())
}

func TestRegisterThenLogin(t *testing.T) {
	ctx := context.Background()
	s := newService()

	reg, err := s.Register(ctx, "Ayesha", "Ayesha@Example.com", "secret1")
	require.NoError(t, err)
	assert.NotEmpty(t, reg.Token)
	assert.Equal(t, model.RoleCustomer, reg.User.Role)
	assert.NotEqual(t, "secret1", reg.User.PasswordHash)

	sess, err := s.Login(ctx, "ayesha@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, sess.User.ID)

	me, err := s.Me(ctx, reg.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "ayesha@example.com", me.Email)
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	ctx := context.Background()
	s := newService()
	_, err := s.Register(ctx, "A", "a@example.com", "right")
	require.NoError(t, err)

	_, wrongPassword := s.Login(ctx, "a@example.com", "wrong")
	_, unknownEmail := s.Login(ctx, "nobody@example.com", "right")

	assert.ErrorIs(t, wrongPassword, ErrInvalidCredentials)
	assert.ErrorIs(t, unknownEmail, ErrInvalidCredentials)
	assert.Equal(t, wrongPassword.Error(), unknownEmail.Error())
}

func TestRegisterDuplicate(t *testing.T) {
	ctx := context.Background()
	s := newService()
	_, err := s.Register(ctx, "A", "a@example.com", "pw")
	require.NoError(t, err)

	_, err = s.Register(ctx, "B", "A@example.com", "pw")
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestUnknownEmailStillComparesAHash(t *testing.T) {
	ctx := context.Background()
	s := newService()
	_, err := s.Register(ctx, "A", "a@example.com", "right")
	require.NoError(t, err)

	var hashes [][]byte
	compare := s.compare
	s.compare = func(hash, password []byte) error {
		hashes = append(hashes, hash)
		return compare(hash, password)
	}

	_, err = s.Login(ctx, "nobody@example.com", "right")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = s.Login(ctx, "a@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	require.Len(t, hashes, 2, "both failures pay for one bcrypt comparison")
	assert.Equal(t, unknownUserHash(), hashes[0])
	assert.NotEmpty(t, hashes[0])
}
