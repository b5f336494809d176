package vector

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"kanun/llm"
)

// Batch artifact codecs. The ingestion pipeline persists two plain
// list-of-object JSON shapes between stages: chunk batches ({page, text})
// and vector batches ({id, values, metadata}). Files are UTF-8 with HTML
// escaping disabled so Devanagari text survives round-trips unescaped.

// WriteChunkBatch writes chunks to a batch file.
func WriteChunkBatch(path string, chunks []llm.Chunk) error {
	return writeJSON(path, chunks)
}

// ReadChunkBatch reads a chunk batch file.
func ReadChunkBatch(path string) ([]llm.Chunk, error) {
	var chunks []llm.Chunk
	if err := readJSON(path, &chunks); err != nil {
		return nil, err
	}
	return chunks, nil
}

// WriteVectorBatch writes vector records to a batch file.
func WriteVectorBatch(path string, records []llm.VectorRecord) error {
	return writeJSON(path, records)
}

// ReadVectorBatch reads a vector batch file.
func ReadVectorBatch(path string) ([]llm.VectorRecord, error) {
	var records []llm.VectorRecord
	if err := readJSON(path, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// ReadDocumentBatch reads an OCR batch file: an ordered list of documents,
// each with its page texts.
func ReadDocumentBatch(path string) ([]llm.Document, error) {
	var docs []llm.Document
	if err := readJSON(path, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// WriteDocumentBatch writes documents back to an OCR batch file, typically
// after summaries have been attached.
func WriteDocumentBatch(path string, docs []llm.Document) error {
	return writeJSON(path, docs)
}

func writeJSON(path string, v interface{}) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding batch file %s: %w", path, err)
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading batch file: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding batch file %s: %w", path, err)
	}
	return nil
}
