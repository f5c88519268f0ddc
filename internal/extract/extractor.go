package extract

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ppiankov/claimcheck/internal/llm"
	"github.com/ppiankov/claimcheck/internal/logging"
	"github.com/ppiankov/claimcheck/internal/model"
)

// Extraction is the outcome of extracting claims from one document
type Extraction struct {
	Claims   []model.Claim
	Warnings []model.ExtractionWarning
}

// ClaimExtractor turns document text into verifiable claims using a language model
type ClaimExtractor struct {
	gateway       llm.Gateway
	maxChunkChars int
	maxClaims     int
	maxTokens     int
}

// NewClaimExtractor creates a new claim extractor
func NewClaimExtractor(gateway llm.Gateway, cfg model.ExtractConfig) *ClaimExtractor {
	return &ClaimExtractor{
		gateway:       gateway,
		maxChunkChars: cfg.MaxChunkChars,
		maxClaims:     cfg.MaxClaims,
		maxTokens:     4000,
	}
}

// Extract extracts claims from the document. It fails only on an empty
// document; per-chunk failures become warnings.
func (e *ClaimExtractor) Extract(ctx context.Context, text string) (*Extraction, error) {
	if strings.TrimSpace(text) == "" {
		return nil, model.ErrEmptyDocument
	}

	log := logging.From(ctx)
	chunks := SplitChunks(text, e.maxChunkChars)
	result := &Extraction{Claims: []model.Claim{}}
	seen := make(map[string]bool)
	start := time.Now()

	log.Info("extract.start", "chunks", len(chunks), "chars", len(text))

	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			for _, rest := range chunks[i:] {
				result.Warnings = append(result.Warnings, model.ExtractionWarning{
					Chunk:   rest.Index,
					Message: "skipped: " + err.Error(),
				})
			}
			log.Warn("extract.cancelled", "remaining_chunks", len(chunks)-i)
			break
		}

		raw, err := e.extractChunk(ctx, chunk, len(chunks))
		if err != nil {
			result.Warnings = append(result.Warnings, model.ExtractionWarning{
				Chunk:   chunk.Index,
				Message: fmt.Sprintf("claim extraction failed: %v", err),
			})
			log.Warn("extract.chunk.failed", "chunk", chunk.Index, "error", err)
			continue
		}

		kept := 0
		for _, rc := range raw {
			claim, ok := buildClaim(rc, chunk)
			if !ok {
				continue
			}
			key := model.NormalizeText(claim.Text)
			if seen[key] {
				continue
			}
			seen[key] = true

			claim.ID = len(result.Claims) + 1
			result.Claims = append(result.Claims, claim)
			kept++
		}
		log.Debug("extract.chunk.ok", "chunk", chunk.Index, "returned", len(raw), "kept", kept)
	}

	if e.maxClaims > 0 && len(result.Claims) > e.maxClaims {
		log.Info("extract.truncated", "found", len(result.Claims), "max_claims", e.maxClaims)
		result.Claims = result.Claims[:e.maxClaims]
	}

	log.Info("extract.done",
		"claims", len(result.Claims),
		"warnings", len(result.Warnings),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	return result, nil
}

func (e *ClaimExtractor) extractChunk(ctx context.Context, chunk Chunk, total int) ([]rawClaim, error) {
	prompt, err := renderPrompt(chunk, total)
	if err != nil {
		return nil, err
	}

	var reply claimsReply
	err = llm.CompleteInto(ctx, e.gateway, llm.Request{
		System:      systemPrompt,
		Prompt:      prompt,
		Shape:       claimsShape,
		MaxTokens:   e.maxTokens,
		Temperature: 0.1,
	}, &reply)
	if err != nil {
		return nil, err
	}

	return reply.Claims, nil
}

// buildClaim validates one model-supplied claim and locates it in the chunk
func buildClaim(rc rawClaim, chunk Chunk) (model.Claim, bool) {
	text := strings.TrimSpace(rc.Text)
	value := strings.TrimSpace(rc.AssertedValue)
	if text == "" || value == "" {
		return model.Claim{}, false
	}

	return model.Claim{
		Text:          text,
		Category:      model.ParseCategory(rc.Category),
		AssertedValue: value,
		Context:       strings.TrimSpace(rc.Context),
		Span:          locate(chunk, text),
	}, true
}

// locate finds the claim text in the chunk, falling back to the whole chunk
func locate(chunk Chunk, text string) model.Span {
	if idx := strings.Index(chunk.Text, text); idx >= 0 {
		return model.Span{Start: chunk.Offset + idx, End: chunk.Offset + idx + len(text)}
	}

	// Case-insensitive match is only offset-safe when lowering keeps byte lengths
	lowerChunk := strings.ToLower(chunk.Text)
	lowerText := strings.ToLower(text)
	if len(lowerChunk) == len(chunk.Text) && len(lowerText) == len(text) {
		if idx := strings.Index(lowerChunk, lowerText); idx >= 0 {
			return model.Span{Start: chunk.Offset + idx, End: chunk.Offset + idx + len(text)}
		}
	}

	return model.Span{Start: chunk.Offset, End: chunk.End()}
}
