package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/fluxgate/internal/apperror"
	"github.com/sakif/fluxgate/internal/metrics"
	"github.com/sakif/fluxgate/internal/model"
	"github.com/sakif/fluxgate/internal/provider"
)

const (
	// DefaultImageCost is the price of one generation in credits.
	DefaultImageCost int64 = 1
	// DefaultProviderTimeout bounds a single provider call.
	DefaultProviderTimeout = 2 * time.Minute

	defaultSteps     = 28
	minSteps         = 1
	maxSteps         = 50
	defaultGuidance  = 3.5
	minGuidance      = 1.0
	maxGuidance      = 20.0
	defaultImageSize = model.ImageSizeLandscape4x3
	maxPromptLength  = 4000
)

// ImageConfig holds pricing and timeouts for ImageService.
type ImageConfig struct {
	Cost            int64
	ProviderTimeout time.Duration
}

// GenerateResult is a finished generation: where the image lives and what the
// caller has left.
type GenerateResult struct {
	ImageURL string
	Credits  int64
}

// ImageService runs the paid generation flow: validate, reserve the credits,
// call the provider, and refund if the provider does not deliver.
type ImageService struct {
	ledger   *CreditLedger
	provider provider.ImageProvider
	cfg      ImageConfig
	metrics  metrics.Recorder
	logger   *slog.Logger
}

// NewImageService creates an ImageService. Zero values in cfg are replaced
// with the defaults.
func NewImageService(
	ledger *CreditLedger,
	p provider.ImageProvider,
	cfg ImageConfig,
	rec metrics.Recorder,
	logger *slog.Logger,
) *ImageService {
	if cfg.Cost == 0 {
		cfg.Cost = DefaultImageCost
	}
	if cfg.ProviderTimeout == 0 {
		cfg.ProviderTimeout = DefaultProviderTimeout
	}
	return &ImageService{
		ledger:   ledger,
		provider: p,
		cfg:      cfg,
		metrics:  rec,
		logger:   logger,
	}
}

// Generate charges the token's user and asks the provider for one image.
//
// The provider call is detached from ctx, so a client that disconnects does
// not abort a call it has already paid for, but it is still cut off after
// ProviderTimeout. Any provider failure refunds the charge.
//
// Errors:
//   - apperror.ErrValidation for a bad parameter bundle (nothing is charged)
//   - apperror.ErrUnauthorized when the token does not resolve
//   - apperror.ErrInsufficientCredits when the balance cannot cover the cost
//   - apperror.ErrProvider when the provider failed or timed out
func (s *ImageService) Generate(ctx context.Context, token string, req model.ImageRequest) (*GenerateResult, error) {
	req, err := NormalizeImageRequest(req)
	if err != nil {
		s.metrics.RecordGeneration(metrics.OutcomeInvalid)
		return nil, err
	}

	hold, err := s.ledger.Reserve(ctx, token, s.cfg.Cost)
	if err != nil {
		s.metrics.RecordGeneration(reserveOutcome(err))
		return nil, fmt.Errorf("service/image: reserving credits: %w", err)
	}

	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ProviderTimeout)
	defer cancel()

	start := time.Now()
	url, err := s.provider.Generate(callCtx, req)
	s.metrics.RecordProviderLatency(time.Since(start))

	if err != nil {
		s.logger.Warn("image generation failed, refunding",
			slog.String("userID", hold.UserID()),
			slog.Int64("amount", hold.Amount()),
			slog.String("error", err.Error()),
		)
		if refundErr := hold.Refund(ctx); refundErr != nil {
			err = errors.Join(err, refundErr)
		}
		s.metrics.RecordGeneration(metrics.OutcomeProviderErr)
		return nil, apperror.Provider(err)
	}

	s.metrics.RecordGeneration(metrics.OutcomeSuccess)
	s.logger.Info("image generated",
		slog.String("userID", hold.UserID()),
		slog.Int64("credits", hold.Balance()),
	)
	return &GenerateResult{ImageURL: url, Credits: hold.Balance()}, nil
}

// NormalizeImageRequest fills in defaults for omitted fields and checks every
// field against the provider's accepted ranges. A zero Steps or Guidance
// means "use the default".
func NormalizeImageRequest(req model.ImageRequest) (model.ImageRequest, error) {
	req.Prompt = strings.TrimSpace(req.Prompt)
	if req.Prompt == "" {
		return req, apperror.ValidationFailed("prompt", "prompt is required")
	}
	if len(req.Prompt) > maxPromptLength {
		return req, apperror.ValidationFailed("prompt",
			fmt.Sprintf("prompt must be %d bytes or fewer", maxPromptLength))
	}

	if req.ImageSize == "" {
		req.ImageSize = defaultImageSize
	}
	if !req.ImageSize.Valid() {
		return req, apperror.ValidationFailed("image_size",
			fmt.Sprintf("unsupported image size %q", req.ImageSize))
	}

	if req.Steps == 0 {
		req.Steps = defaultSteps
	}
	if req.Steps < minSteps || req.Steps > maxSteps {
		return req, apperror.ValidationFailed("steps",
			fmt.Sprintf("steps must be between %d and %d", minSteps, maxSteps))
	}

	if req.Guidance == 0 {
		req.Guidance = defaultGuidance
	}
	if req.Guidance < minGuidance || req.Guidance > maxGuidance {
		return req, apperror.ValidationFailed("guidance",
			fmt.Sprintf("guidance must be between %g and %g", minGuidance, maxGuidance))
	}

	if req.Seed < 0 {
		return req, apperror.ValidationFailed("seed", "seed cannot be negative")
	}

	return req, nil
}

func reserveOutcome(err error) string {
	switch {
	case errors.Is(err, apperror.ErrUnauthorized):
		return metrics.OutcomeUnauthorized
	case errors.Is(err, apperror.ErrInsufficientCredits):
		return metrics.OutcomeNoCredits
	default:
		return metrics.OutcomeStoreErr
	}
}
