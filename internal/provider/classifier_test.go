package provider

import (
	"net/http"
	"testing"

	"github.com/mottorpay/push-gateway/internal/domain"
)

func TestClassifyFCM(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name       string
		statusCode int
		message    string
		want       domain.ErrorKind
	}{
		{
			name:       "not registered",
			statusCode: http.StatusNotFound,
			message:    "Requested entity was not found. The registration token is not registered.",
			want:       domain.KindUnregistered,
		},
		{
			name:       "unregistered status string",
			statusCode: http.StatusNotFound,
			message:    "UNREGISTERED",
			want:       domain.KindUnregistered,
		},
		{
			name:       "invalid token message wins over 404",
			statusCode: http.StatusNotFound,
			message:    "The registration token is not a valid FCM registration token",
			want:       domain.KindInvalidToken,
		},
		{
			name:       "invalid registration",
			statusCode: http.StatusBadRequest,
			message:    "InvalidRegistration",
			want:       domain.KindInvalidToken,
		},
		{
			name:       "unauthorized by status",
			statusCode: http.StatusUnauthorized,
			message:    "Request had invalid authentication credentials.",
			want:       domain.KindUnauthorized,
		},
		{
			name:       "forbidden by status",
			statusCode: http.StatusForbidden,
			message:    "The caller does not have permission",
			want:       domain.KindUnauthorized,
		},
		{
			name:       "bare 404 falls back to unregistered",
			statusCode: http.StatusNotFound,
			message:    "",
			want:       domain.KindUnregistered,
		},
		{
			name:       "bare 400 falls back to invalid token",
			statusCode: http.StatusBadRequest,
			message:    "something else entirely",
			want:       domain.KindInvalidToken,
		},
		{
			name:       "server error defaults to unknown",
			statusCode: http.StatusInternalServerError,
			message:    "Internal error encountered.",
			want:       domain.KindUnknown,
		},
		{
			name:       "no information defaults to unknown",
			statusCode: 0,
			message:    "",
			want:       domain.KindUnknown,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if got := ClassifyFCM(tc.statusCode, tc.message); got != tc.want {
				t.Fatalf("ClassifyFCM(%d, %q) = %q, want %q", tc.statusCode, tc.message, got, tc.want)
			}
		})
	}
}

func TestClassifyWebPush(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		statusCode int
		want       domain.ErrorKind
	}{
		{statusCode: http.StatusNotFound, want: domain.KindUnregistered},
		{statusCode: http.StatusGone, want: domain.KindUnregistered},
		{statusCode: http.StatusUnauthorized, want: domain.KindUnauthorized},
		{statusCode: http.StatusForbidden, want: domain.KindUnauthorized},
		{statusCode: http.StatusBadRequest, want: domain.KindInvalidToken},
		{statusCode: http.StatusTooManyRequests, want: domain.KindUnknown},
		{statusCode: http.StatusInternalServerError, want: domain.KindUnknown},
	}

	for _, tc := range testCases {
		if got := ClassifyWebPush(tc.statusCode); got != tc.want {
			t.Errorf("ClassifyWebPush(%d) = %q, want %q", tc.statusCode, got, tc.want)
		}
	}
}
