package assist

import "fmt"

// System prompts for the assistant's three query shapes. Kept short: the
// answer has to fit on a small overlay.

func codingSystemPrompt(language string) string {
	return fmt.Sprintf("You are an expert %s programmer helping during a live coding session. "+
		"Provide a working solution first, then a brief explanation of the approach and its complexity. "+
		"Be concise; the answer is read from a small overlay window.", language)
}

func reviewSystemPrompt(language string) string {
	return fmt.Sprintf("You are an expert %s code reviewer. "+
		"Analyze the given code for correctness, complexity and style. "+
		"Point out bugs first, then improvements. Be concise.", language)
}

const adviceSystemPrompt = "You are a helpful assistant answering general questions, " +
	"with deep knowledge of macOS, developer tooling and workflows. " +
	"Give practical, actionable advice. Be concise; the answer is read from a small overlay window."

const imageSystemPrompt = "You are a coding assistant looking at a screenshot of the user's screen. " +
	"If it shows a programming problem, solve it and explain briefly. " +
	"If it shows code, review it and point out issues. " +
	"Otherwise describe what is relevant on screen for a programmer. Be concise."

// systemPromptFor picks the persona for a text request. An explicit Kind
// wins; otherwise code without a question reads as a review.
func systemPromptFor(req Request) string {
	switch req.Kind {
	case KindReview:
		return reviewSystemPrompt(req.Language)
	case KindAdvice:
		return adviceSystemPrompt
	case KindCoding:
		return codingSystemPrompt(req.Language)
	}
	if req.Code != "" && req.Prompt == "" {
		return reviewSystemPrompt(req.Language)
	}
	return codingSystemPrompt(req.Language)
}

// buildUserPrompt merges the question with optional code.
func buildUserPrompt(req Request) string {
	if req.Code == "" {
		return req.Prompt
	}
	if req.Prompt == "" {
		return fmt.Sprintf("Analyze this %s code:\n\n```%s\n%s\n```", req.Language, req.Language, req.Code)
	}
	return fmt.Sprintf("%s\n\n```%s\n%s\n```", req.Prompt, req.Language, req.Code)
}
