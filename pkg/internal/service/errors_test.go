package service_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yeisme/sharevault/pkg/internal/service"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		msg    string
	}{
		{"expired signature", service.ErrTokenExpired, http.StatusGone, "signature expired"},
		{"used signature", fmt.Errorf("redeem: %w", service.ErrTokenAlreadyUsed), http.StatusNotFound, "signature not found"},
		{"unknown signature", service.ErrTokenNotFound, http.StatusNotFound, "signature not found"},
		{"password required", service.ErrPasswordRequired, http.StatusUnauthorized, "access denied: password_required"},
		{"limit reached", service.ErrDeniedLimit, http.StatusForbidden, "access denied: limit_reached"},
		{"share expired", service.ErrDeniedExpired, http.StatusGone, "access denied: expired"},
		{"quota", fmt.Errorf("%w: 5 MB requested", service.ErrQuotaExceeded), http.StatusForbidden, "quota exceeded"},
		{"upload limit", service.ErrUploadLimit, http.StatusRequestEntityTooLarge, service.ErrUploadLimit.Error()},
		{"slug", service.ErrSlugTaken, http.StatusConflict, service.ErrSlugTaken.Error()},
		{"canceled", context.Canceled, service.StatusClientClosedRequest, "request canceled"},
		{"storage", fmt.Errorf("%w: bucket gone", service.ErrStorage), http.StatusInternalServerError, "internal error"},
		{"consistency", service.ErrConsistency, http.StatusInternalServerError, "internal error"},
		{"anything else", errors.New("boom"), http.StatusInternalServerError, "internal error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, msg := service.Classify(tc.err)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.msg, msg)
		})
	}
}

func TestTokenErrorsMatchByReason(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &service.TokenError{Reason: service.TokenAlreadyUsed})

	assert.ErrorIs(t, err, service.ErrTokenAlreadyUsed)
	assert.NotErrorIs(t, err, service.ErrTokenExpired)
	assert.ErrorIs(t, err, &service.TokenError{}, "an empty reason matches any token error")
}
