package types

import (
	"encoding/json"

	"gorm.io/datatypes"
)

// Embeddings are stored as jsonb float arrays. They are written once, in the
// same transaction that creates the owning row, and never updated in place.

func EncodeEmbedding(vec []float32) datatypes.JSON {
	if len(vec) == 0 {
		return nil
	}
	raw, err := json.Marshal(vec)
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}

func DecodeEmbedding(raw datatypes.JSON) []float32 {
	if len(raw) == 0 {
		return nil
	}
	var vec []float32
	if err := json.Unmarshal(raw, &vec); err != nil {
		return nil
	}
	if len(vec) == 0 {
		return nil
	}
	return vec
}
