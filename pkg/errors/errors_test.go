package errors

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAppErrorError(t *testing.T) {
	err := New("TEST", "something failed", http.StatusBadRequest)
	require.Equal(t, "something failed", err.Error())

	wrapped := err.WithInternal(errors.New("root cause"))
	require.Equal(t, "something failed: root cause", wrapped.Error())
	// The original must remain untouched.
	require.Nil(t, err.Internal)
}

func TestUnwrapExposesInternal(t *testing.T) {
	cause := errors.New("smtp timeout")
	appErr := ErrOTPDelivery.WithInternal(cause)

	require.True(t, errors.Is(appErr, cause))

	var target *AppError
	require.True(t, errors.As(appErr, &target))
	require.Equal(t, "OTP_DELIVERY_FAILED", target.Code)
}

func TestFromError(t *testing.T) {
	require.Nil(t, FromError(nil))

	appErr := FromError(ErrOTPExpired)
	require.Equal(t, ErrOTPExpired.Code, appErr.Code)
	require.Equal(t, http.StatusBadRequest, appErr.StatusCode)

	generic := FromError(errors.New("boom"))
	require.Equal(t, ErrInternalServer.Code, generic.Code)
	require.Equal(t, http.StatusInternalServerError, generic.StatusCode)
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(cause, "persist challenge")
	require.Equal(t, http.StatusInternalServerError, err.StatusCode)
	require.True(t, errors.Is(err, cause))
}
