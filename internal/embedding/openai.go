package embedding

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAI embeds text through the OpenAI embeddings endpoint.
type OpenAI struct {
	client *openai.Client
	model  string
	dims   int
}

// NewOpenAI creates an OpenAI embedder. baseURL may be empty. dims of 0
// uses the model's native size.
func NewOpenAI(apiKey, baseURL, model string, dims int) *OpenAI {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if model == "" {
		model = openai.EmbeddingModelTextEmbedding3Small
	}
	client := openai.NewClient(opts...)
	return &OpenAI{client: &client, model: model, dims: dims}
}

func (o *OpenAI) Model() string   { return "openai:" + o.model }
func (o *OpenAI) Dimensions() int { return o.dims }

// Embed requests one embedding for text.
func (o *OpenAI) Embed(ctx context.Context, text string) ([]float64, error) {
	params := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
		Model: o.model,
	}
	if o.dims > 0 {
		params.Dimensions = openai.Int(int64(o.dims))
	}

	resp, err := o.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("openai returned no embeddings")
	}
	return resp.Data[0].Embedding, nil
}
