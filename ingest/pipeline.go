package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"kanun/config"
	"kanun/llm"
	"kanun/llm/vector"
)

// upsertDelay spaces out upsert batches to stay under index rate limits.
const upsertDelay = 100 * time.Millisecond

// Pipeline turns OCR batch files into indexed vector records: chunk each
// document, embed the chunks, upsert them into a per-document category
// namespace and into the default namespace. Chunk and vector batch files are
// written next to the index as inspectable artifacts.
type Pipeline struct {
	embeddings *vector.EmbeddingService
	store      vector.Store
	summarizer *Summarizer
	chunkCfg   vector.ChunkConfig
	cfg        config.IngestConfig
	log        *zap.Logger
}

// NewPipeline wires an ingestion pipeline. The summarizer may be nil, in
// which case documents without a summary stay unsummarized.
func NewPipeline(embeddings *vector.EmbeddingService, store vector.Store, summarizer *Summarizer, chunkCfg vector.ChunkConfig, cfg config.IngestConfig, log *zap.Logger) (*Pipeline, error) {
	if err := chunkCfg.Validate(); err != nil {
		return nil, err
	}
	return &Pipeline{
		embeddings: embeddings,
		store:      store,
		summarizer: summarizer,
		chunkCfg:   chunkCfg,
		cfg:        cfg,
		log:        log,
	}, nil
}

// Run ingests every OCR batch file in the configured directory.
func (p *Pipeline) Run(ctx context.Context) error {
	paths, err := filepath.Glob(filepath.Join(p.cfg.DocsPath, "*.json"))
	if err != nil {
		return fmt.Errorf("listing OCR batches: %w", err)
	}
	if len(paths) == 0 {
		return fmt.Errorf("no OCR batch files found in %s", p.cfg.DocsPath)
	}
	sort.Strings(paths)

	if p.cfg.ArtifactsPath != "" {
		if err := os.MkdirAll(p.cfg.ArtifactsPath, 0o755); err != nil {
			return fmt.Errorf("creating artifacts dir: %w", err)
		}
	}

	docNum := 0
	for _, path := range paths {
		docs, err := vector.ReadDocumentBatch(path)
		if err != nil {
			return err
		}
		for i := range docs {
			docNum++
			if err := p.ingestDocument(ctx, &docs[i], docNum); err != nil {
				return fmt.Errorf("ingesting %q: %w", docs[i].Title, err)
			}
		}
		// Write summaries back so re-runs skip the summary model.
		if p.summarizer != nil {
			if err := vector.WriteDocumentBatch(path, docs); err != nil {
				p.log.Warn("writing summaries back failed", zap.String("path", path), zap.Error(err))
			}
		}
	}
	p.log.Info("ingestion finished", zap.Int("documents", docNum))
	return nil
}

func (p *Pipeline) ingestDocument(ctx context.Context, doc *llm.Document, docNum int) error {
	if doc.Summary == "" && p.summarizer != nil {
		summary, err := p.summarizer.Summarize(ctx, doc.Pages)
		if err != nil {
			p.log.Warn("document summary failed, continuing without",
				zap.String("title", doc.Title), zap.Error(err))
		} else {
			doc.Summary = summary
		}
	}

	chunks, err := vector.ChunkPages(doc.Pages, p.chunkCfg)
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		p.log.Warn("document produced no chunks", zap.String("title", doc.Title))
		return nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}
	vectors, err := p.embeddings.EmbedBatch(ctx, texts)
	if err != nil {
		return err
	}

	namespace := fmt.Sprintf("doc-num-%d", docNum)
	records := make([]llm.VectorRecord, len(chunks))
	for i, chunk := range chunks {
		records[i] = llm.VectorRecord{
			ID:     fmt.Sprintf("chunk_%d", i+1),
			Values: vectors[i],
			Metadata: llm.Metadata{
				Text:            chunk.Text,
				Source:          fmt.Sprintf("Page %s from %s", chunk.PageRange, doc.Title),
				Link:            doc.Link,
				DocumentSummary: doc.Summary,
				Namespace:       namespace,
			},
		}
	}

	if err := p.writeArtifacts(doc, namespace, chunks, records); err != nil {
		p.log.Warn("writing batch artifacts failed", zap.String("title", doc.Title), zap.Error(err))
	}

	if err := p.upsert(ctx, namespace, records); err != nil {
		return err
	}
	// The default namespace holds every chunk; ids are prefixed with the
	// category namespace to keep them unique there.
	defaultRecords := make([]llm.VectorRecord, len(records))
	for i, rec := range records {
		rec.ID = namespace + ":" + rec.ID
		defaultRecords[i] = rec
	}
	if err := p.upsert(ctx, vector.DefaultNamespace, defaultRecords); err != nil {
		return err
	}

	p.log.Info("document ingested",
		zap.String("title", doc.Title),
		zap.String("namespace", namespace),
		zap.Int("chunks", len(chunks)))
	return nil
}

// upsert writes records in bounded batches with a small delay in between.
func (p *Pipeline) upsert(ctx context.Context, namespace string, records []llm.VectorRecord) error {
	batchSize := p.cfg.UpsertBatchSize
	if batchSize <= 0 {
		batchSize = len(records)
	}
	for start := 0; start < len(records); start += batchSize {
		end := start + batchSize
		if end > len(records) {
			end = len(records)
		}
		if err := p.store.Upsert(ctx, namespace, records[start:end]); err != nil {
			return err
		}
		if end < len(records) {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(upsertDelay):
			}
		}
	}
	return nil
}

func (p *Pipeline) writeArtifacts(doc *llm.Document, namespace string, chunks []llm.Chunk, records []llm.VectorRecord) error {
	if p.cfg.ArtifactsPath == "" {
		return nil
	}
	base := namespace
	if doc.Filename != "" {
		base = strings.TrimSuffix(doc.Filename, filepath.Ext(doc.Filename))
	}
	if err := vector.WriteChunkBatch(filepath.Join(p.cfg.ArtifactsPath, base+".chunks.json"), chunks); err != nil {
		return err
	}
	return vector.WriteVectorBatch(filepath.Join(p.cfg.ArtifactsPath, base+".vectors.json"), records)
}
