package handler

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"todohabit/internal/service/habits"
	"todohabit/internal/service/tasks"
	"todohabit/internal/service/transfer"
	"todohabit/internal/session"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "blank task", err: fmt.Errorf("%w: text is blank", tasks.ErrValidation), want: http.StatusBadRequest},
		{name: "bad import", err: fmt.Errorf("%w: missing todos", transfer.ErrInvalidFormat), want: http.StatusBadRequest},
		{name: "bad settings", err: session.ErrValidation, want: http.StatusBadRequest},
		{name: "unknown habit", err: habits.ErrUnknownHabit, want: http.StatusNotFound},
		{name: "not eligible", err: habits.ErrNotEligible, want: http.StatusConflict},
		{name: "no session", err: session.ErrUnauthenticated, want: http.StatusUnauthorized},
		{name: "reloading", err: session.ErrReloading, want: http.StatusServiceUnavailable},
		{name: "retired task list", err: tasks.ErrClosed, want: http.StatusServiceUnavailable},
		{name: "retired habit list", err: habits.ErrClosed, want: http.StatusServiceUnavailable},
		{name: "other", err: errors.New("boom"), want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.want {
				t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}
