package gsheets

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/api/googleapi"
)

func TestWrapAPIError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{
			name: "unauthorized",
			err:  &googleapi.Error{Code: 401, Message: "invalid JWT"},
			want: ErrAuth,
		},
		{
			name: "forbidden maps to not found",
			err:  &googleapi.Error{Code: 403, Message: "caller lacks permission"},
			want: ErrNotFound,
		},
		{
			name: "not found",
			err:  &googleapi.Error{Code: 404, Message: "requested entity was not found"},
			want: ErrNotFound,
		},
		{
			name: "rate limited",
			err:  &googleapi.Error{Code: 429, Message: "quota exceeded"},
			want: ErrTransport,
		},
		{
			name: "server error",
			err:  &googleapi.Error{Code: 500, Message: "backend error"},
			want: ErrTransport,
		},
		{
			name: "wrapped api error",
			err:  fmt.Errorf("values.get: %w", &googleapi.Error{Code: 404}),
			want: ErrNotFound,
		},
		{
			name: "plain error",
			err:  errors.New("connection reset"),
			want: ErrTransport,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, wrapAPIError(tt.err), tt.want)
		})
	}
}

func TestWrapAPIError_Nil(t *testing.T) {
	assert.NoError(t, wrapAPIError(nil))
}

func TestWrapAPIError_SharingHint(t *testing.T) {
	err := wrapAPIError(&googleapi.Error{Code: 403, Message: "denied"})
	assert.Contains(t, err.Error(), "shared with the service account")
}

func TestErrorPredicates(t *testing.T) {
	assert.True(t, IsAuthError(fmt.Errorf("read: %w", ErrAuth)))
	assert.True(t, IsNotFound(fmt.Errorf("read: %w", ErrNotFound)))
	assert.True(t, IsReadOnly(fmt.Errorf("update: %w", ErrReadOnly)))
	assert.True(t, IsInvalidConfig(fmt.Errorf("parse: %w", ErrInvalidConfig)))

	assert.False(t, IsAuthError(ErrNotFound))
	assert.False(t, IsNotFound(nil))
}
