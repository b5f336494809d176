package vector

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"kanun/llm"
)

const (
	// pageSeparator joins consecutive pages into one continuous text.
	pageSeparator = "\n"

	// minTailLen is the trimmed length under which a trailing chunk is
	// merged into its predecessor instead of being emitted standalone.
	minTailLen = 200
)

// ChunkConfig configures how documents are split into chunks.
type ChunkConfig struct {
	ChunkSize    int // maximum chunk size in characters
	ChunkOverlap int // characters carried over between adjacent chunks
}

// Validate rejects configurations the chunker cannot run with. Overlap must
// stay strictly below the chunk size or accumulation never makes progress.
func (c ChunkConfig) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk size must be positive, got %d", llm.ErrConfiguration, c.ChunkSize)
	}
	if c.ChunkOverlap < 0 {
		return fmt.Errorf("%w: chunk overlap must not be negative, got %d", llm.ErrConfiguration, c.ChunkOverlap)
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: chunk overlap %d must be smaller than chunk size %d", llm.ErrConfiguration, c.ChunkOverlap, c.ChunkSize)
	}
	return nil
}

// span is a contiguous byte range in the concatenated page text. Offsets are
// bytes so slicing is direct; sizes and overlap are measured in runes. The
// accumulation buffer is always contiguous, even after overlap seeding: the
// overlap tail ends exactly where the token that triggered the split begins.
// Tracking spans during generation pins every chunk to its true origin, so
// repeated boilerplate elsewhere in the document cannot mislead the page
// mapping.
type span struct {
	start, end int
}

// ChunkPages splits a document's pages into overlapping chunks and maps each
// chunk back to the page range it spans.
//
// Pages are joined with a single separator and the joined text is cut at
// boundary tokens (newline, double space, pipe). Tokens accumulate greedily
// until the next one would push the buffer past cfg.ChunkSize; the closed
// buffer becomes a chunk and the next buffer is seeded with its trailing
// cfg.ChunkOverlap characters. A trailing fragment of at most 200 trimmed
// characters is folded into the previous chunk.
func ChunkPages(pages []string, cfg ChunkConfig) ([]llm.Chunk, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, nil
	}

	full := strings.Join(pages, pageSeparator)
	if strings.TrimSpace(full) == "" {
		return nil, nil
	}

	// Byte offset at which each page begins in the joined text.
	pageStarts := make([]int, len(pages))
	offset := 0
	for i, page := range pages {
		pageStarts[i] = offset
		offset += len(page) + len(pageSeparator)
	}

	spans := accumulate(splitBoundaryTokens(full), full, cfg)

	chunks := make([]llm.Chunk, 0, len(spans))
	for _, sp := range spans {
		text := strings.TrimSpace(full[sp.start:sp.end])
		if text == "" {
			continue
		}
		chunks = append(chunks, llm.Chunk{
			Text:      text,
			PageRange: pageRange(sp, pages, pageStarts),
		})
	}
	return chunks, nil
}

// accumulate runs the greedy buffer over the token stream and returns the
// chunk spans, with a short trailing fragment already merged.
func accumulate(tokens []string, full string, cfg ChunkConfig) []span {
	var spans []span
	buf := span{}
	bufRunes := 0
	pos := 0

	for _, tok := range tokens {
		tokRunes := utf8.RuneCountInString(tok)
		if bufRunes+tokRunes <= cfg.ChunkSize || buf.end == buf.start {
			// A single token longer than the chunk size still has to land
			// somewhere; an empty buffer absorbs it as an oversized chunk.
			buf.end = pos + len(tok)
			bufRunes += tokRunes
		} else {
			spans = append(spans, buf)
			overlap := cfg.ChunkOverlap
			if overlap > bufRunes {
				overlap = bufRunes
			}
			buf = span{start: runesBack(full, buf.end, overlap), end: pos + len(tok)}
			bufRunes = overlap + tokRunes
		}
		pos += len(tok)
	}

	if buf.end > buf.start {
		tail := strings.TrimSpace(full[buf.start:buf.end])
		if len(spans) > 0 && utf8.RuneCountInString(tail) <= minTailLen {
			spans[len(spans)-1].end = buf.end
		} else {
			spans = append(spans, buf)
		}
	}
	return spans
}

// runesBack returns the byte offset n runes before end in s.
func runesBack(s string, end, n int) int {
	for n > 0 && end > 0 {
		_, size := utf8.DecodeLastRuneInString(s[:end])
		end -= size
		n--
	}
	return end
}

// splitBoundaryTokens cuts text at newline, double-space and pipe boundaries.
// Separators stay in the stream as their own tokens so the concatenation of
// all tokens reproduces the input verbatim.
func splitBoundaryTokens(text string) []string {
	var tokens []string
	last := 0
	for i := 0; i < len(text); {
		var sep int
		switch {
		case text[i] == '\n', text[i] == '|':
			sep = 1
		case text[i] == ' ' && i+1 < len(text) && text[i+1] == ' ':
			sep = 2
		}
		if sep == 0 {
			i++
			continue
		}
		if i > last {
			tokens = append(tokens, text[last:i])
		}
		tokens = append(tokens, text[i:i+sep])
		i += sep
		last = i
	}
	if last < len(text) {
		tokens = append(tokens, text[last:])
	}
	return tokens
}

// pageRange renders the 1-based page indices a span touches as "N" or "N-M".
// The range is expressed by its endpoints only; interior pages are implied.
func pageRange(sp span, pages []string, pageStarts []int) string {
	minPage, maxPage := 0, 0
	for i := range pages {
		pageStart := pageStarts[i]
		pageEnd := pageStart + len(pages[i])
		if pageStart <= sp.end && sp.start < pageEnd {
			if minPage == 0 {
				minPage = i + 1
			}
			maxPage = i + 1
		}
	}
	if minPage == 0 {
		return ""
	}
	if minPage == maxPage {
		return strconv.Itoa(minPage)
	}
	return strconv.Itoa(minPage) + "-" + strconv.Itoa(maxPage)
}
