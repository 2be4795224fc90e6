package llm

import (
	"context"
	"net/http"
	"testing"

	"github.com/firebase/genkit/go/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterProvider(t *testing.T) {
	srv, calls := chatServer(t, reply("EXPOSURE: E4"))
	client := newTestClient(t, srv.URL)

	_, model := RegisterProvider(context.Background(), client)
	require.NotNil(t, model)

	resp, err := model.Generate(context.Background(), &ai.ModelRequest{
		Messages: []*ai.Message{
			{Role: ai.RoleUser, Content: []*ai.Part{ai.NewTextPart("rate the wipers")}},
		},
	}, nil)
	require.NoError(t, err)
	require.NotNil(t, resp.Message)
	require.Len(t, resp.Message.Content, 1)
	assert.Equal(t, "EXPOSURE: E4", resp.Message.Content[0].Text)
	assert.Equal(t, int32(1), *calls)
}

func TestGenkitGenerator(t *testing.T) {
	var prompt string
	srv, _ := chatServer(t, func(w http.ResponseWriter, req ChatRequest) {
		prompt = req.Messages[0].Content
		reply("three lines")(w, req)
	})

	gen := NewGenkitGenerator(context.Background(), newTestClient(t, srv.URL))
	text, err := gen.Generate(context.Background(), BuildDescriptionPrompt("Airbag"))
	require.NoError(t, err)

	assert.Equal(t, "three lines", text)
	assert.Contains(t, prompt, `"Airbag"`)
}

func TestRequestText(t *testing.T) {
	req := &ai.ModelRequest{Messages: []*ai.Message{
		{Role: ai.RoleSystem, Content: []*ai.Part{ai.NewTextPart("be terse")}},
		nil,
		{Role: ai.RoleUser, Content: []*ai.Part{ai.NewTextPart("rate brakes"), nil}},
	}}
	assert.Equal(t, "be terse\n\nrate brakes", requestText(req))
}
