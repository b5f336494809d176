package llm

// Document is one source document as produced by the OCR stage: an ordered
// sequence of page texts plus the metadata carried through ingestion.
type Document struct {
	Title    string   `json:"title"`
	Filename string   `json:"filename"`
	Pages    []string `json:"pages"`
	Summary  string   `json:"summary,omitempty"`
	Link     string   `json:"link,omitempty"`
}

// Chunk is the retrieval unit: a bounded span of document text and the page
// range it was generated from ("4" or "4-6").
type Chunk struct {
	Text      string `json:"text"`
	PageRange string `json:"page"`
}

// Metadata travels with every vector record and is echoed back to the answer
// composer so citations can be grounded.
type Metadata struct {
	Text            string `json:"text"`
	Source          string `json:"source"`
	Link            string `json:"link,omitempty"`
	DocumentSummary string `json:"document_summary,omitempty"`
	Namespace       string `json:"namespace,omitempty"`
}

// VectorRecord is an embedded chunk ready for upsert. IDs are unique within a
// namespace; re-upserting an ID overwrites the previous values.
type VectorRecord struct {
	ID       string    `json:"id"`
	Values   []float32 `json:"values"`
	Metadata Metadata  `json:"metadata"`
}

// ScoredRecord is a vector record with its similarity score from a search.
type ScoredRecord struct {
	Record VectorRecord
	Score  float32
}

// ReformulatedQuery is the structured output of query reformulation. It lives
// only for the duration of one request.
type ReformulatedQuery struct {
	UserQuestion         string   `json:"user_question"`
	ReformulatedQuestion string   `json:"reformulated_question"`
	Categories           []string `json:"categories"`
}

// RetrievedCandidate is a transient retrieval result. Score is only
// meaningful in namespace-scoped mode; reranked candidates keep the
// reranker's ordering instead.
type RetrievedCandidate struct {
	ChunkText string
	Metadata  Metadata
	Score     float32
	HasScore  bool
}

// AnswerRecord is the terminal output of one request cycle. Source and Link
// are best effort; Answer is the load-bearing field.
type AnswerRecord struct {
	Answer string `json:"answer"`
	Source string `json:"source"`
	Link   string `json:"link"`
}
