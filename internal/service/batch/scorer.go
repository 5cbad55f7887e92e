// Package batch scores an uploaded audio file against a reference
// transcript by running it through the configured prerecorded
// transcription APIs and computing word error rate per provider.
package batch

import (
	"context"
	"errors"
	"sync"
	"time"

	"stt-comparison-service/internal/observability/logging"
	"stt-comparison-service/internal/observability/metrics"
	"stt-comparison-service/internal/service/stt/assemblyai"
	"stt-comparison-service/internal/service/wer"
)

// Transcriber is a prerecorded transcription client for one provider.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// WERReport carries the word error rate breakdown for one provider.
// Nil when no reference transcript was supplied.
type WERReport struct {
	ReferenceWordCount int     `json:"reference_word_count"`
	HypothesisWords    int     `json:"hypothesis_words"`
	EditDistance       int     `json:"edit_distance"`
	Percent            float64 `json:"percent"`
}

// ProviderResult is the outcome of one provider's batch transcription.
// Exactly one of Transcript or Error is meaningful.
type ProviderResult struct {
	Transcript string     `json:"transcript,omitempty"`
	Error      string     `json:"error,omitempty"`
	WER        *WERReport `json:"wer,omitempty"`
}

// Scorer fans one audio file out to all registered transcribers.
type Scorer struct {
	mu           sync.Mutex
	transcribers map[string]Transcriber
	metrics      *metrics.Metrics
}

// NewScorer creates an empty scorer. Providers are added with Register.
func NewScorer() *Scorer {
	return &Scorer{
		transcribers: make(map[string]Transcriber),
		metrics:      metrics.DefaultMetrics,
	}
}

// Register adds a provider's transcription client under its vendor name.
func (s *Scorer) Register(vendor string, t Transcriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcribers[vendor] = t
}

// Vendors returns the registered vendor names.
func (s *Scorer) Vendors() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.transcribers))
	for vendor := range s.transcribers {
		out = append(out, vendor)
	}
	return out
}

// TranscribeFile sends the audio to every registered provider
// concurrently and scores each transcript against the reference. One
// provider failing does not affect the others; its result carries the
// error instead of a transcript. WER is omitted when reference is empty.
func (s *Scorer) TranscribeFile(ctx context.Context, audio []byte, reference string) map[string]ProviderResult {
	s.mu.Lock()
	transcribers := make(map[string]Transcriber, len(s.transcribers))
	for vendor, t := range s.transcribers {
		transcribers[vendor] = t
	}
	s.mu.Unlock()

	results := make(map[string]ProviderResult, len(transcribers))
	var resultsMu sync.Mutex
	var wg sync.WaitGroup

	for vendor, t := range transcribers {
		wg.Add(1)
		go func(vendor string, t Transcriber) {
			defer wg.Done()
			result := s.transcribeOne(ctx, vendor, t, audio, reference)
			resultsMu.Lock()
			results[vendor] = result
			resultsMu.Unlock()
		}(vendor, t)
	}
	wg.Wait()

	return results
}

func (s *Scorer) transcribeOne(ctx context.Context, vendor string, t Transcriber, audio []byte, reference string) ProviderResult {
	logger := logging.WithComponent("batch-scorer")
	start := time.Now()

	text, err := t.Transcribe(ctx, audio)
	s.metrics.RecordBatchRequest(vendor, err, errorType(err), time.Since(start).Seconds())
	if err != nil {
		logger.Error().Err(err).Str("provider", vendor).Msg("Batch transcription failed")
		return ProviderResult{Error: err.Error()}
	}

	result := ProviderResult{Transcript: text}
	if score := wer.Compute(reference, text); score.Available {
		result.WER = &WERReport{
			ReferenceWordCount: score.ReferenceWordCount,
			HypothesisWords:    score.HypothesisWords,
			EditDistance:       score.EditDistance,
			Percent:            score.Percent,
		}
	}
	return result
}

func errorType(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, assemblyai.ErrPollTimeout):
		return "timeout"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "transcribe"
	}
}
