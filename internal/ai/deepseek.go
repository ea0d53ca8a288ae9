package ai

// DeepSeekBaseURL is DeepSeek's OpenAI-compatible endpoint.
const DeepSeekBaseURL = "https://api.deepseek.com/v1"

// NewDeepSeekClient returns a Generator that calls the DeepSeek API.
// DeepSeek exposes an OpenAI-compatible /v1/chat/completions endpoint, so the
// request/response shapes are standard OpenAI chat format, streaming included.
//   - apiKey: your DEEPSEEK_API_KEY
//   - model:  e.g. "deepseek-chat"
func NewDeepSeekClient(apiKey, model string) Generator {
	return newOpenAICompatible("deepseek", apiKey, model, DeepSeekBaseURL)
}
