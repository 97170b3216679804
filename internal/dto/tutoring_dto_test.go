package dto

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ai-tutor-be/internal/pkg/serverutils"
)

func TestSendMessageRequestValidation(t *testing.T) {
	tests := []struct {
		name    string
		req     SendMessageRequest
		wantErr bool
	}{
		{
			name: "text only",
			req:  SendMessageRequest{Message: "solve 2x+3=7"},
		},
		{
			name: "image reference only",
			req:  SendMessageRequest{ImageRef: "https://cdn.example.com/worksheet.png", Modality: "image"},
		},
		{
			name: "inline image only",
			req:  SendMessageRequest{ImageData: []byte{0x89, 0x50}, Modality: "image"},
		},
		{
			name:    "nothing at all",
			req:     SendMessageRequest{SessionId: "abc"},
			wantErr: true,
		},
		{
			name:    "unknown modality",
			req:     SendMessageRequest{Message: "hi", Modality: "smoke-signal"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := serverutils.ValidateRequest(&tt.req)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
