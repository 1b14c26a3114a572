package services

import "context"

// Embedder is the slice of the OpenAI client the memory services need.
// Narrowed here so tests can swap in a deterministic implementation.
type Embedder interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}
