package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "validation", err: Validation("bad"), want: KindValidation},
		{name: "auth", err: Auth("nope"), want: KindAuth},
		{name: "permission", err: Permission("forbidden"), want: KindPermission},
		{name: "not found", err: NotFound("missing"), want: KindNotFound},
		{name: "wrapped", err: fmt.Errorf("chat.Send: %w", Permission("forbidden")), want: KindPermission},
		{name: "plain", err: errors.New("boom"), want: KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDetail(t *testing.T) {
	err := fmt.Errorf("wrap: %w", NotFound("Message not found"))
	if got := Detail(err); got != "Message not found" {
		t.Errorf("Detail() = %q, want %q", got, "Message not found")
	}
	if got := Detail(errors.New("db down")); got != "" {
		t.Errorf("Detail() of internal error = %q, want empty", got)
	}
	if Is(nil, KindInternal) {
		t.Error("Is(nil) should be false")
	}
}
