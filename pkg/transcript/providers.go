package transcript

import (
	"encoding/json"

	"github.com/m-mizutani/goerr/v2"
	"github.com/openai/openai-go"
	"google.golang.org/genai"

	"github.com/boristopalov/sciworld/pkg/core"
)

// ToOpenAI converts messages into chat completion params, preserving order.
func ToOpenAI(messages []core.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case core.RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case core.RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

// Gemini content roles.
const (
	genaiRoleUser  = "user"
	genaiRoleModel = "model"
)

// ToGenAI splits messages into a system instruction and the conversation
// contents. Gemini has no system role in contents; the system message, if
// any, becomes the instruction.
func ToGenAI(messages []core.Message) (*genai.Content, []*genai.Content) {
	var system *genai.Content
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		part := &genai.Part{Text: m.Content}
		switch m.Role {
		case core.RoleSystem:
			system = &genai.Content{Parts: []*genai.Part{part}}
		case core.RoleAssistant:
			contents = append(contents, &genai.Content{Role: genaiRoleModel, Parts: []*genai.Part{part}})
		default:
			contents = append(contents, &genai.Content{Role: genaiRoleUser, Parts: []*genai.Part{part}})
		}
	}
	return system, contents
}

// Output formats accepted by MarshalMessages.
const (
	FormatText   = "text"
	FormatOpenAI = "openai"
	FormatGemini = "gemini"
)

type genaiRequest struct {
	SystemInstruction *genai.Content   `json:"system_instruction,omitempty"`
	Contents          []*genai.Content `json:"contents"`
}

// MarshalMessages renders messages in the debug text form or as the JSON
// request body of a provider's chat API.
func MarshalMessages(format string, messages []core.Message) ([]byte, error) {
	var v any
	switch format {
	case "", FormatText:
		return []byte(Format(messages)), nil
	case FormatOpenAI:
		v = ToOpenAI(messages)
	case FormatGemini:
		system, contents := ToGenAI(messages)
		v = genaiRequest{SystemInstruction: system, Contents: contents}
	default:
		return nil, goerr.New("unknown transcript format", goerr.Value("format", format))
	}

	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, goerr.Wrap(err, "failed to encode transcript", goerr.Value("format", format))
	}
	return out, nil
}
