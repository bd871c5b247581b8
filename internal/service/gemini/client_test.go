package gemini

import (
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
)

func TestResponseText(t *testing.T) {
	tests := []struct {
		name    string
		res     *genai.GenerateContentResponse
		want    string
		wantErr error
	}{
		{
			name:    "nil response",
			res:     nil,
			wantErr: ErrEmptyResponse,
		},
		{
			name:    "no candidates",
			res:     &genai.GenerateContentResponse{},
			wantErr: ErrEmptyResponse,
		},
		{
			name: "joins text parts",
			res: &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
				Content: &genai.Content{Parts: []genai.Part{genai.Text("Sturdy "), genai.Text("oak desk.")}},
			}}},
			want: "Sturdy oak desk.",
		},
		{
			name: "skips non-text parts",
			res: &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
				Content: &genai.Content{Parts: []genai.Part{genai.Blob{MIMEType: "image/png"}}},
			}}},
			wantErr: ErrEmptyResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := responseText(tt.res)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
