package handlers

import (
	"testing"

	"github.com/gin-gonic/gin/binding"
)

func TestRegisterValidators(t *testing.T) {
	if err := RegisterValidators(); err != nil {
		t.Fatalf("RegisterValidators() error = %v", err)
	}

	tests := []struct {
		username string
		wantErr  bool
	}{
		{"alice_01", false},
		{"abc", false},
		{"ab", true},
		{"has space", true},
		{"dots.not.allowed", true},
		{"abcdefghijklmnopqrstuvwxyz0123456", true},
	}
	for _, tt := range tests {
		req := RegisterRequest{Username: tt.username, Email: "a@example.com", Password: "pw"}
		err := binding.Validator.ValidateStruct(&req)
		if (err != nil) != tt.wantErr {
			t.Errorf("validate username %q error = %v, wantErr %v", tt.username, err, tt.wantErr)
		}
	}
}
