package openai

import (
	"github.com/koscakluka/ema-narrator/core/llms"
	goopenai "github.com/sashabaranov/go-openai"
)

func toOpenAIMessages(instructions string, turns []llms.Turn) []goopenai.ChatCompletionMessage {
	messages := []goopenai.ChatCompletionMessage{}
	if instructions != "" {
		messages = append(messages, goopenai.ChatCompletionMessage{
			Role:    goopenai.ChatMessageRoleSystem,
			Content: instructions,
		})
	}

	for _, turn := range turns {
		if turn.Content == "" {
			continue
		}

		var role string
		switch turn.Role {
		case llms.TurnRoleSystem:
			role = goopenai.ChatMessageRoleSystem
		case llms.TurnRoleAssistant:
			role = goopenai.ChatMessageRoleAssistant
		default:
			role = goopenai.ChatMessageRoleUser
		}

		messages = append(messages, goopenai.ChatCompletionMessage{
			Role:    role,
			Content: turn.Content,
		})
	}
	return messages
}
