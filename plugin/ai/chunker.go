package ai

import (
	"context"
	"strings"
	"unicode"
)

const (
	// chunkSize is the maximum character count per chunk.
	chunkSize = 500
	// chunkOverlap is the character count overlap between chunks.
	chunkOverlap = 50
)

// EmbedContent embeds content of arbitrary length. Content longer than a
// single chunk is split on paragraph boundaries, each chunk embedded
// separately, and the results average-pooled into a single vector.
func EmbedContent(ctx context.Context, embedder EmbeddingService, content string) ([]float32, error) {
	chunks := chunkContent(content)
	if len(chunks) == 1 {
		return embedder.Embed(ctx, chunks[0])
	}

	embeddings, err := embedder.EmbedBatch(ctx, chunks)
	if err != nil {
		return nil, err
	}
	return averageEmbeddings(embeddings), nil
}

// chunkContent splits long content into chunks for embedding, preserving
// paragraph boundaries when possible.
func chunkContent(content string) []string {
	if len(content) <= chunkSize {
		return []string{content}
	}

	paragraphs := splitParagraphs(content)

	var chunks []string
	var current strings.Builder

	for _, para := range paragraphs {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		if current.Len()+len(para) > chunkSize && current.Len() > 0 {
			chunks = append(chunks, current.String())

			current.Reset()
			if overlap := overlapText(chunks, chunkOverlap); overlap != "" {
				current.WriteString(overlap)
				current.WriteString("\n\n")
			}
		}

		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)

		// Force-split paragraphs that exceed the chunk size on their own.
		for current.Len() > chunkSize {
			text := current.String()
			breakPoint := findBreakPoint(text[:chunkSize])
			chunks = append(chunks, text[:breakPoint])

			remaining := text[breakPoint:]
			current.Reset()
			current.WriteString(remaining)
		}
	}

	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}

	return chunks
}

func splitParagraphs(content string) []string {
	lines := strings.FieldsFunc(content, func(r rune) bool {
		return r == '\n' || r == '\r'
	})

	var result []string
	var current strings.Builder

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			if current.Len() > 0 {
				result = append(result, current.String())
				current.Reset()
			}
			continue
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(line)
	}

	if current.Len() > 0 {
		result = append(result, current.String())
	}

	return result
}

// overlapText returns the tail of the previous chunk to carry into the next.
func overlapText(chunks []string, overlapSize int) string {
	if len(chunks) == 0 {
		return ""
	}

	last := chunks[len(chunks)-1]
	if len(last) <= overlapSize {
		return last
	}

	tail := last[len(last)-overlapSize:]
	if idx := strings.IndexAny(tail, " \t"); idx > 0 {
		return tail[idx+1:]
	}

	return tail
}

// findBreakPoint finds a good position to split text (sentence or word boundary).
func findBreakPoint(text string) int {
	for i := len(text) - 1; i >= 0; i-- {
		if text[i] == '.' || text[i] == '!' || text[i] == '?' {
			if i == len(text)-1 || unicode.IsSpace(rune(text[i+1])) {
				return i + 1
			}
		}
	}

	for i := len(text) - 1; i >= len(text)/2; i-- {
		if unicode.IsSpace(rune(text[i])) {
			return i
		}
	}

	return len(text)
}

// averageEmbeddings computes the element-wise average of multiple embeddings.
func averageEmbeddings(embeddings [][]float32) []float32 {
	if len(embeddings) == 0 {
		return nil
	}

	n := len(embeddings[0])
	if n == 0 {
		return nil
	}

	result := make([]float32, n)
	for _, emb := range embeddings {
		for i := 0; i < n; i++ {
			result[i] += emb[i]
		}
	}

	count := float32(len(embeddings))
	for i := 0; i < n; i++ {
		result[i] /= count
	}

	return result
}
