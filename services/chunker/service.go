package chunker

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/docuchat/backend/models"
	"github.com/docuchat/backend/services"
)

// Strategy selects how text is split into chunks
type Strategy string

const (
	StrategyRecursive  Strategy = "recursive"
	StrategyTokenBased Strategy = "token_based"
	StrategySentence   Strategy = "sentence"
	StrategyParagraph  Strategy = "paragraph"
	StrategyFixedSize  Strategy = "fixed_size"
)

// Valid checks whether the strategy is one of the supported values
func (s Strategy) Valid() bool {
	switch s {
	case StrategyRecursive, StrategyTokenBased, StrategySentence, StrategyParagraph, StrategyFixedSize:
		return true
	}
	return false
}

// defaultSeparators is the separator hierarchy for recursive splitting,
// from coarse to fine. The empty string at the end hands off to the
// fixed-size character split.
var defaultSeparators = []string{
	"\n\n",
	"\n",
	". ",
	"! ",
	"? ",
	"; ",
	", ",
	" ",
	"",
}

// Chunk is a contiguous passage produced by splitting a larger text.
// Index is the 0-based position within the sequence produced for one
// input. TokenCount is advisory and zero when no tokenizer is
// configured.
type Chunk struct {
	Text       string `json:"text"`
	Index      int    `json:"index"`
	DocumentID int64  `json:"document_id,omitempty"`
	TokenCount int    `json:"token_count,omitempty"`
}

// WordCount returns the number of whitespace-separated words in the chunk
func (c Chunk) WordCount() int {
	return len(strings.Fields(c.Text))
}

// Service splits text into overlapping chunks. Chunk sizes and overlap
// are measured in characters except for the token-based strategy.
type Service struct {
	chunkSize int
	overlap   int
	tokenizer Tokenizer
	logger    *zap.Logger
}

// NewService creates a chunking service. The tokenizer may be nil, in
// which case token counts are omitted and the token-based strategy
// falls back to recursive splitting.
func NewService(chunkSize, overlap int, tokenizer Tokenizer, logger *zap.Logger) (*Service, error) {
	if chunkSize <= 0 {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "invalid chunking parameters", nil).
			WithDetail("chunk_size", chunkSize)
	}
	if overlap < 0 || overlap >= chunkSize {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "invalid chunking parameters", nil).
			WithDetail("chunk_size", chunkSize).
			WithDetail("overlap", overlap)
	}

	logger.Info("text chunker initialized",
		zap.Int("chunk_size", chunkSize),
		zap.Int("overlap", overlap),
		zap.Bool("tokenizer", tokenizer != nil))

	return &Service{
		chunkSize: chunkSize,
		overlap:   overlap,
		tokenizer: tokenizer,
		logger:    logger,
	}, nil
}

// Chunk splits text into chunks using the given strategy. Returns an
// empty slice for empty or whitespace-only input. Every returned chunk
// is non-empty after trimming.
func (s *Service) Chunk(text string, strategy Strategy, documentID int64) ([]Chunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	var pieces []string
	switch strategy {
	case StrategyRecursive:
		pieces = s.splitRecursive(text, 0)
	case StrategyTokenBased:
		pieces = s.splitTokenBased(text)
	case StrategySentence:
		pieces = s.splitBySentence(text)
	case StrategyParagraph:
		pieces = s.splitByParagraph(text)
	case StrategyFixedSize:
		pieces = s.splitFixedSize(text)
	default:
		return nil, services.NewDomainError(services.ErrorTypeValidation, "unsupported chunking strategy", nil).
			WithDetail("strategy", string(strategy))
	}

	chunks := make([]Chunk, 0, len(pieces))
	for i, piece := range pieces {
		chunk := Chunk{
			Text:       piece,
			Index:      i,
			DocumentID: documentID,
		}
		if s.tokenizer != nil {
			chunk.TokenCount = s.tokenizer.Count(piece)
		}
		chunks = append(chunks, chunk)
	}

	s.logger.Debug("text chunked",
		zap.String("strategy", string(strategy)),
		zap.Int("input_len", utf8.RuneCountInString(text)),
		zap.Int("chunks", len(chunks)))

	return chunks, nil
}

// splitRecursive splits text using the separator hierarchy starting at
// sepIndex. Oversize chunks are re-split with the next separator; the
// empty separator hands off to the fixed-size split.
func (s *Service) splitRecursive(text string, sepIndex int) []string {
	chunks := s.splitRecursiveRaw(text, sepIndex)
	return dropEmpty(chunks)
}

func (s *Service) splitRecursiveRaw(text string, sepIndex int) []string {
	if utf8.RuneCountInString(text) <= s.chunkSize {
		if strings.TrimSpace(text) == "" {
			return nil
		}
		return []string{text}
	}

	if sepIndex >= len(defaultSeparators) || defaultSeparators[sepIndex] == "" {
		return s.splitFixedSize(text)
	}

	separator := defaultSeparators[sepIndex]
	splits := strings.Split(text, separator)
	sepLen := utf8.RuneCountInString(separator)

	var result []string
	var current []string
	currentSize := 0

	for i, split := range splits {
		splitSize := utf8.RuneCountInString(split)
		if i < len(splits)-1 {
			splitSize += sepLen
		}

		if currentSize+splitSize > s.chunkSize && len(current) > 0 {
			chunkText := strings.Join(current, separator)
			if i < len(splits)-1 {
				chunkText += separator
			}
			result = append(result, chunkText)

			// Seed the next chunk with the trailing overlap characters
			// of the chunk just closed
			overlapText := ""
			if s.overlap > 0 {
				overlapText = tailRunes(chunkText, s.overlap)
			}
			if overlapText != "" {
				current = []string{overlapText}
				currentSize = utf8.RuneCountInString(overlapText)
			} else {
				current = nil
				currentSize = 0
			}
		}

		current = append(current, split)
		currentSize += splitSize
	}

	if len(current) > 0 {
		result = append(result, strings.Join(current, separator))
	}

	// Re-split chunks that still exceed the budget with the next,
	// finer separator
	var final []string
	for _, chunk := range result {
		if utf8.RuneCountInString(chunk) > s.chunkSize {
			final = append(final, s.splitRecursiveRaw(chunk, sepIndex+1)...)
		} else {
			final = append(final, chunk)
		}
	}

	return final
}

// splitTokenBased slides a token window over the encoded text. Window
// and step-back sizes use the chars-per-token=4 heuristic. Without a
// tokenizer it falls back to recursive splitting.
func (s *Service) splitTokenBased(text string) []string {
	if s.tokenizer == nil {
		s.logger.Warn("tokenizer not available, falling back to recursive chunking")
		return s.splitRecursive(text, 0)
	}

	maxTokens := s.chunkSize / 4
	if maxTokens < 1 {
		maxTokens = 1
	}
	overlapTokens := s.overlap / 4
	if overlapTokens >= maxTokens {
		overlapTokens = maxTokens - 1
	}

	tokens := s.tokenizer.Encode(text)

	var chunks []string
	start := 0

	for start < len(tokens) {
		end := start + maxTokens
		sliceEnd := end
		if sliceEnd > len(tokens) {
			sliceEnd = len(tokens)
		}

		chunks = append(chunks, s.tokenizer.Decode(tokens[start:sliceEnd]))

		start = end - overlapTokens
	}

	return dropEmpty(chunks)
}

// splitBySentence accumulates whole sentences up to the chunk size,
// seeding each new chunk with the trailing sentences of the previous
// one whose cumulative length fits in the overlap.
func (s *Service) splitBySentence(text string) []string {
	sentences := splitSentences(text)
	return dropEmpty(s.packUnits(sentences, " "))
}

// splitByParagraph accumulates whole paragraphs (blank-line separated)
// up to the chunk size, with the same overlap rule as sentences.
func (s *Service) splitByParagraph(text string) []string {
	paragraphs := strings.Split(text, "\n\n")
	return dropEmpty(s.packUnits(paragraphs, "\n\n"))
}

// packUnits greedily packs units into chunks joined by glue. When a
// unit would overflow the budget the chunk is closed and the next one
// starts with the most recent whole units that fit in the overlap.
func (s *Service) packUnits(units []string, glue string) []string {
	var chunks []string
	var current []string
	currentSize := 0

	for _, unit := range units {
		unitSize := utf8.RuneCountInString(unit)

		if currentSize+unitSize > s.chunkSize && len(current) > 0 {
			chunks = append(chunks, strings.Join(current, glue))

			if s.overlap > 0 {
				var overlapUnits []string
				overlapSize := 0

				for i := len(current) - 1; i >= 0; i-- {
					size := utf8.RuneCountInString(current[i])
					if overlapSize+size > s.overlap {
						break
					}
					overlapUnits = append([]string{current[i]}, overlapUnits...)
					overlapSize += size
				}

				current = overlapUnits
				currentSize = overlapSize
			} else {
				current = nil
				currentSize = 0
			}
		}

		current = append(current, unit)
		currentSize += unitSize
	}

	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, glue))
	}

	return chunks
}

// splitFixedSize slides a character window of chunkSize, stepping back
// by overlap. Strategy of last resort; always terminates since the
// step is positive.
func (s *Service) splitFixedSize(text string) []string {
	runes := []rune(text)

	var chunks []string
	start := 0

	for start < len(runes) {
		end := start + s.chunkSize
		if end > len(runes) {
			end = len(runes)
		}

		chunks = append(chunks, string(runes[start:end]))

		start += s.chunkSize - s.overlap
	}

	return dropEmpty(chunks)
}

// EstimateChunks estimates the number of chunks for a text without
// splitting it
func (s *Service) EstimateChunks(text string) int {
	textLen := utf8.RuneCountInString(text)
	effective := s.chunkSize - s.overlap
	if effective <= 0 {
		return 0
	}

	estimated := (textLen + effective - 1) / effective
	if estimated < 1 {
		return 1
	}
	return estimated
}

// OptimalStrategy recommends a chunking strategy for a document type.
// Tabular formats get fixed-size windows, markup formats paragraph
// splitting, everything else recursive splitting.
func OptimalStrategy(fileType models.DocumentType) Strategy {
	switch fileType {
	case models.DocumentTypePDF, models.DocumentTypeText:
		return StrategyRecursive
	case models.DocumentTypeDOCX, models.DocumentTypeMarkdown:
		return StrategyParagraph
	case models.DocumentTypeCSV, models.DocumentTypeXLSX:
		return StrategyFixedSize
	default:
		return StrategyRecursive
	}
}

// splitSentences splits text at whitespace runs that follow
// sentence-ending punctuation. The whitespace is consumed.
func splitSentences(text string) []string {
	var sentences []string
	runes := []rune(text)

	start := 0
	i := 0
	for i < len(runes) {
		r := runes[i]
		if (r == '.' || r == '!' || r == '?') && i+1 < len(runes) && unicode.IsSpace(runes[i+1]) {
			sentences = append(sentences, string(runes[start:i+1]))
			i++
			for i < len(runes) && unicode.IsSpace(runes[i]) {
				i++
			}
			start = i
			continue
		}
		i++
	}

	if start < len(runes) {
		sentences = append(sentences, string(runes[start:]))
	}

	return sentences
}

// tailRunes returns the last n runes of text
func tailRunes(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[len(runes)-n:])
}

// dropEmpty filters out chunks that are empty after trimming
func dropEmpty(chunks []string) []string {
	result := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		if strings.TrimSpace(chunk) != "" {
			result = append(result, chunk)
		}
	}
	return result
}
