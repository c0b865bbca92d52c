package chat

import "strings"

const assistantCue = "Assistant: "

var roleLabels = map[Role]string{
	RoleSystem:    "System",
	RoleUser:      "User",
	RoleAssistant: "Assistant",
}

// RenderPrompt flattens turns into "<Role>: <content>" lines for backends without native multi-turn support. The
// last line is a bare "Assistant: " cue so the model continues as the assistant.
func RenderPrompt(turns []Turn) string {
	lines := make([]string, 0, len(turns)+1)
	for _, turn := range turns {
		lines = append(lines, roleLabels[turn.Role]+": "+turn.Content)
	}
	lines = append(lines, assistantCue)
	return strings.Join(lines, "\n")
}

// StripEchoedPrefix removes a leading "Assistant: " that some backends echo back from the cue line
func StripEchoedPrefix(raw string) string {
	return strings.TrimPrefix(raw, assistantCue)
}
