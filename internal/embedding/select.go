package embedding

import "fmt"

// Options selects an embedder.
type Options struct {
	Provider      string // auto, ollama, openai, hashing
	Model         string
	Dimensions    int
	OllamaURL     string
	OpenAIKey     string
	OpenAIBaseURL string
}

// Select builds the embedder named by opts.Provider. "auto" prefers a
// reachable Ollama, then OpenAI when a key is set, then hashing.
func Select(opts Options) (Embedder, error) {
	switch opts.Provider {
	case "ollama":
		return NewOllama(opts.OllamaURL, ollamaModel(opts.Model), opts.Dimensions), nil
	case "openai":
		if opts.OpenAIKey == "" {
			return nil, fmt.Errorf("openai embedder: no api key configured")
		}
		return NewOpenAI(opts.OpenAIKey, opts.OpenAIBaseURL, opts.Model, opts.Dimensions), nil
	case "hashing":
		return NewHashing(opts.Dimensions), nil
	case "", "auto":
		if opts.OllamaURL != "" && ProbeOllama(opts.OllamaURL, ollamaModel(opts.Model)) {
			return NewOllama(opts.OllamaURL, ollamaModel(opts.Model), opts.Dimensions), nil
		}
		if opts.OpenAIKey != "" {
			return NewOpenAI(opts.OpenAIKey, opts.OpenAIBaseURL, "", opts.Dimensions), nil
		}
		return NewHashing(opts.Dimensions), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", opts.Provider)
	}
}

func ollamaModel(m string) string {
	if m == "" {
		return "nomic-embed-text"
	}
	return m
}
