package types

// SearchResult is a single hit from a similarity search, ordered by
// Similarity descending within a result set.
type SearchResult struct {
	ID       string
	FilePath string
	Summary  string

	// Similarity is cosine similarity as reported by the vector engine;
	// higher is closer. Thresholds operate over [0, 1] in practice.
	Similarity float64

	// Metadata is a flat string mapping of payload attributes.
	Metadata map[string]string

	// Content is populated when results feed a generative call.
	Content string
}

// Validate checks if the search result is well formed.
func (sr *SearchResult) Validate() error {
	if sr.ID == "" {
		return ErrInvalidResultID
	}
	if sr.FilePath == "" {
		return ErrMissingFilePath
	}
	if sr.Similarity < -1 || sr.Similarity > 1 {
		return ErrInvalidSimilarity
	}
	return nil
}
