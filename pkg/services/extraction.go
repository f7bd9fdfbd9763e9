package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lexwatch/lexwatch-engine/pkg/config"
	"github.com/lexwatch/lexwatch-engine/pkg/jsonutil"
	"github.com/lexwatch/lexwatch-engine/pkg/llm"
	"github.com/lexwatch/lexwatch-engine/pkg/models"
	"github.com/lexwatch/lexwatch-engine/pkg/prompts"
	"github.com/lexwatch/lexwatch-engine/pkg/retry"
)

// Extractor turns normalized source text into a validated structured
// summary via the configured LLM.
type Extractor interface {
	// Extract runs the extraction prompt against the LLM and validates the
	// response. Invalid or malformed responses are retried with feedback
	// about the failure appended to the prompt.
	Extract(ctx context.Context, cleanedText, projectPrompt, jurisdictionPrompt string) (*models.StructuredSummary, error)
}

// ExtractionValidationError indicates the LLM responded but the payload
// failed schema validation. Retryable: a corrective prompt may fix it.
type ExtractionValidationError struct {
	Reason string
	Cause  error
}

func (e *ExtractionValidationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("extraction validation failed: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("extraction validation failed: %s", e.Reason)
}

func (e *ExtractionValidationError) Unwrap() error { return e.Cause }

// IsRetryable marks validation failures as worth retrying.
func (e *ExtractionValidationError) IsRetryable() bool { return true }

// ExtractionServiceError indicates extraction gave up after exhausting
// all attempts. It carries the last failure.
type ExtractionServiceError struct {
	Attempts int
	LastErr  error
}

func (e *ExtractionServiceError) Error() string {
	return fmt.Sprintf("extraction failed after %d attempts: %v", e.Attempts, e.LastErr)
}

func (e *ExtractionServiceError) Unwrap() error { return e.LastErr }

type extractionService struct {
	client         llm.LLMClient
	circuitBreaker *llm.CircuitBreaker
	retryConfig    *retry.Config
	temperature    float64
	logger         *zap.Logger
}

// NewExtractor creates the LLM-backed structured extractor.
func NewExtractor(
	client llm.LLMClient,
	circuitBreaker *llm.CircuitBreaker,
	aiCfg *config.AIConfig,
	cfg *config.ExtractorConfig,
	logger *zap.Logger,
) Extractor {
	return &extractionService{
		client:         client,
		circuitBreaker: circuitBreaker,
		retryConfig: &retry.Config{
			MaxRetries:   cfg.MaxRetries,
			InitialDelay: 500 * time.Millisecond,
			MaxDelay:     10 * time.Second,
			Multiplier:   2.0,
			JitterFactor: 0.1,
		},
		temperature: float64(aiCfg.Temperature),
		logger:      logger.Named("extractor"),
	}
}

var _ Extractor = (*extractionService)(nil)

// Extract runs the extraction prompt and validates the LLM response into a
// StructuredSummary. Malformed JSON and schema violations are retried with
// the failure fed back into the prompt; transient transport errors share
// the same backoff loop, while non-retryable transport errors (auth,
// unknown model) fail immediately.
func (s *extractionService) Extract(ctx context.Context, cleanedText, projectPrompt, jurisdictionPrompt string) (*models.StructuredSummary, error) {
	// Check circuit breaker before attempting LLM calls
	allowed, err := s.circuitBreaker.Allow()
	if !allowed {
		s.logger.Error("Circuit breaker prevented LLM call",
			zap.String("circuit_state", s.circuitBreaker.State().String()),
			zap.Int("consecutive_failures", s.circuitBreaker.ConsecutiveFailures()),
			zap.Error(err))
		return nil, fmt.Errorf("extraction blocked: %w", err)
	}

	basePrompt := prompts.BuildExtractionPrompt(projectPrompt, jurisdictionPrompt, cleanedText)
	systemMsg := prompts.BuildExtractionSystemMessage()

	var (
		summary           *models.StructuredSummary
		attempts          int
		lastValidationErr error
	)

	err = retry.DoIfRetryable(ctx, s.retryConfig, func() error {
		attempts++

		prompt := basePrompt
		if lastValidationErr != nil {
			prompt = prompts.BuildExtractionRetryPrompt(basePrompt, lastValidationErr)
		}

		result, callErr := s.client.GenerateResponse(ctx, prompt, systemMsg, s.temperature)
		if callErr != nil {
			// Classify error to determine if retryable
			classified := llm.ClassifyError(callErr)
			if classified.Retryable {
				s.logger.Warn("LLM call failed, retrying",
					zap.Int("attempt", attempts),
					zap.String("error_type", string(classified.Type)),
					zap.Error(callErr))
			} else {
				s.logger.Error("LLM call failed with non-retryable error",
					zap.Int("attempt", attempts),
					zap.String("error_type", string(classified.Type)),
					zap.Error(callErr))
			}
			return classified
		}
		s.circuitBreaker.RecordSuccess()

		response, parseErr := llm.ParseJSONResponse[extractionResponse](result.Content)
		if parseErr != nil {
			lastValidationErr = &ExtractionValidationError{Reason: "response is not a valid JSON object", Cause: parseErr}
			s.logger.Warn("Extraction response failed validation, retrying with feedback",
				zap.Int("attempt", attempts),
				zap.String("response_preview", truncateString(result.Content, 200)),
				zap.Error(parseErr))
			return lastValidationErr
		}

		parsed, validationErr := summaryFromResponse(response)
		if validationErr != nil {
			lastValidationErr = validationErr
			s.logger.Warn("Extraction response failed validation, retrying with feedback",
				zap.Int("attempt", attempts),
				zap.String("response_preview", truncateString(result.Content, 200)),
				zap.Error(validationErr))
			return validationErr
		}

		summary = parsed
		return nil
	})

	if err != nil {
		var llmErr *llm.Error
		if errors.As(err, &llmErr) {
			// Record failure in circuit breaker
			s.circuitBreaker.RecordFailure()
			s.logger.Error("Circuit breaker recorded failure",
				zap.String("circuit_state", s.circuitBreaker.State().String()),
				zap.Int("consecutive_failures", s.circuitBreaker.ConsecutiveFailures()))
		}
		return nil, &ExtractionServiceError{Attempts: attempts, LastErr: err}
	}

	s.logger.Debug("extraction succeeded",
		zap.Int("attempts", attempts),
		zap.Float64("confidence_score", summary.ConfidenceScore),
		zap.Int("extracted_fields", len(summary.ExtractedData)))
	return summary, nil
}

// extractionResponse is the wire shape of the LLM extraction payload.
// Loosely typed fields absorb the shape drift smaller models produce;
// jsonutil normalizes them during validation.
type extractionResponse struct {
	Summary         *string         `json:"summary"`
	MarkdownSummary *string         `json:"markdown_summary"`
	ChangesDetected json.RawMessage `json:"changes_detected"`
	RiskLevel       json.RawMessage `json:"risk_level"`
	Recommendation  json.RawMessage `json:"recommendation"`
	KeyPoints       json.RawMessage `json:"key_points"`
	ConfidenceScore *float64        `json:"confidence_score"`
	ExtractedData   json.RawMessage `json:"extracted_data"`
}

// summaryFromResponse validates the wire payload and converts it into the
// domain model. Missing optional fields default; missing required fields
// and out-of-range values are ExtractionValidationErrors.
func summaryFromResponse(resp extractionResponse) (*models.StructuredSummary, error) {
	if resp.Summary == nil {
		return nil, &ExtractionValidationError{Reason: `missing required field "summary"`}
	}
	if strings.TrimSpace(*resp.Summary) == "" {
		return nil, &ExtractionValidationError{Reason: `field "summary" is empty`}
	}
	if resp.ConfidenceScore == nil {
		return nil, &ExtractionValidationError{Reason: `missing required field "confidence_score"`}
	}
	if *resp.ConfidenceScore < 0.0 || *resp.ConfidenceScore > 1.0 {
		return nil, &ExtractionValidationError{Reason: fmt.Sprintf("confidence_score %v outside [0, 1]", *resp.ConfidenceScore)}
	}
	if resp.ExtractedData == nil {
		return nil, &ExtractionValidationError{Reason: `missing required field "extracted_data"`}
	}
	extractedData, err := jsonutil.FlexibleMapValue(resp.ExtractedData)
	if err != nil {
		return nil, &ExtractionValidationError{Reason: `field "extracted_data" is neither an object nor a key/value list`, Cause: err}
	}
	if extractedData == nil {
		extractedData = map[string]any{}
	}

	markdown := ""
	if resp.MarkdownSummary != nil {
		markdown = *resp.MarkdownSummary
	}

	return &models.StructuredSummary{
		Summary:         *resp.Summary,
		MarkdownSummary: markdown,
		ConfidenceScore: *resp.ConfidenceScore,
		ExtractedData:   extractedData,
		KeyPoints:       jsonutil.FlexibleStringSlice(resp.KeyPoints),
		ChangesDetected: jsonutil.FlexibleStringValue(resp.ChangesDetected),
		RiskLevel:       jsonutil.FlexibleStringValue(resp.RiskLevel),
		Recommendation:  jsonutil.FlexibleStringValue(resp.Recommendation),
	}, nil
}
