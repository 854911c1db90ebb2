package service

import (
	"context"
	"testing"

	profileDto "anoa.com/threadgraph/internal/modules/profile/dto"
	"anoa.com/threadgraph/internal/testutil"
	"anoa.com/threadgraph/pkg/apperror"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestCreateProfile(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewProfileStore()
	svc := NewProfileService(store)
	userID := uuid.New()

	got, err := svc.CreateProfile(ctx, userID, profileDto.CreateProfileInput{
		Username:    "  @Ada_Lovelace ",
		DisplayName: "Ada",
		Bio:         strPtr("   "),
	})
	require.NoError(t, err)
	require.Equal(t, "ada_lovelace", got.Username)
	require.Nil(t, got.Bio)

	t.Run("username taken", func(t *testing.T) {
		_, err := svc.CreateProfile(ctx, uuid.New(), profileDto.CreateProfileInput{Username: "ada_lovelace", DisplayName: "Other"})
		require.ErrorIs(t, err, apperror.ErrConflict)
	})

	t.Run("one profile per user", func(t *testing.T) {
		_, err := svc.CreateProfile(ctx, userID, profileDto.CreateProfileInput{Username: "second", DisplayName: "Ada"})
		require.ErrorIs(t, err, apperror.ErrConflict)
	})

	t.Run("invalid username", func(t *testing.T) {
		_, err := svc.CreateProfile(ctx, uuid.New(), profileDto.CreateProfileInput{Username: "no spaces", DisplayName: "x"})
		require.ErrorIs(t, err, apperror.ErrInvalidInput)
	})

	t.Run("anonymous", func(t *testing.T) {
		_, err := svc.CreateProfile(ctx, uuid.Nil, profileDto.CreateProfileInput{Username: "anon", DisplayName: "x"})
		require.ErrorIs(t, err, apperror.ErrUnauthorized)
	})
}

func TestNormalizeUsername(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Ada", "ada"},
		{"@Ada", "ada"},
		{"  @Ada_Lovelace ", "ada_lovelace"},
		{"\t@grace\n", "grace"},
		{"@@double", "@double"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, NormalizeUsername(tt.in), "input %q", tt.in)
	}
}

func TestGetProfileByUsernameIsCaseInsensitive(t *testing.T) {
	store := testutil.NewProfileStore()
	store.Seed(uuid.New(), "grace")
	svc := NewProfileService(store)

	got, err := svc.GetProfileByUsername(context.Background(), "@Grace")
	require.NoError(t, err)
	require.Equal(t, "grace", got.Username)

	got, err = svc.GetProfileByUsername(context.Background(), "  @GRACE ")
	require.NoError(t, err)
	require.Equal(t, "grace", got.Username)

	_, err = svc.GetProfileByUsername(context.Background(), "nobody")
	require.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestUpdateProfile(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewProfileStore()
	userID := uuid.New()
	store.Seed(userID, "linus")
	svc := NewProfileService(store)

	got, err := svc.UpdateProfile(ctx, userID, profileDto.UpdateProfileInput{
		DisplayName: strPtr(" Linus T "),
		Bio:         strPtr("kernel"),
	})
	require.NoError(t, err)
	require.Equal(t, "Linus T", got.DisplayName)
	require.Equal(t, "kernel", *got.Bio)
	require.Equal(t, "linus", got.Username)

	_, err = svc.UpdateProfile(ctx, userID, profileDto.UpdateProfileInput{DisplayName: strPtr("  ")})
	require.ErrorIs(t, err, apperror.ErrInvalidInput)

	_, err = svc.UpdateProfile(ctx, uuid.New(), profileDto.UpdateProfileInput{Bio: strPtr("x")})
	require.ErrorIs(t, err, apperror.ErrNotFound)
}
