package chat

// promptPreamble is prepended to every idea sent to the AI service.
const promptPreamble = "Convert this project idea into a professional AI prompt, " +
	"followed by structured requirements (objective, target users, core features, " +
	"technical stack, constraints, deliverables):\n"

// BuildPrompt wraps a project idea in the instruction sent to the AI service.
func BuildPrompt(idea string) string {
	return promptPreamble + idea
}
