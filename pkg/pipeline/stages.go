package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator"

	"github.com/OFFIS-RIT/casegraph/internal/util"
	"github.com/OFFIS-RIT/casegraph/pkg/common"
	"github.com/OFFIS-RIT/casegraph/pkg/logger"
	"github.com/OFFIS-RIT/casegraph/pkg/normalize"
)

// Stage names.
const (
	StageValidate = "validate"
	StageEnrich   = "enrich"
	StagePublish  = "publish"
)

// ValidateStage checks the `validate` struct tags of the case record.
type ValidateStage struct {
	validate *validator.Validate
}

func NewValidateStage() *ValidateStage {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &ValidateStage{validate: v}
}

func (s *ValidateStage) Name() string { return StageValidate }

// Process returns ErrMissingField naming the first empty required field.
// Whitespace-only values count as empty.
func (s *ValidateStage) Process(ctx context.Context, rec *common.CaseRecord) error {
	checked := *rec
	checked.CaseType = strings.TrimSpace(rec.CaseType)
	checked.Status = strings.TrimSpace(rec.Status)

	err := s.validate.Struct(&checked)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingField, verrs[0].Field())
	}
	return err
}

// EnrichStage applies the identifier, status and timestamp defaults. Running
// it twice has no further effect.
type EnrichStage struct {
	normalizer *normalize.Normalizer
	idPrefix   string
}

func NewEnrichStage(n *normalize.Normalizer, idPrefix string) *EnrichStage {
	if n == nil {
		n = normalize.NewNormalizer()
	}
	if idPrefix == "" {
		idPrefix = normalize.DefaultIDPrefix
	}
	return &EnrichStage{normalizer: n, idPrefix: idPrefix}
}

func (s *EnrichStage) Name() string { return StageEnrich }

func (s *EnrichStage) Process(ctx context.Context, rec *common.CaseRecord) error {
	s.normalizer.ApplyDefaults(rec, s.idPrefix)
	return nil
}

// Publisher sends an encoded case record to a topic of the message bus.
// No partition key is passed; ordering across cases is not guaranteed.
type Publisher interface {
	Publish(ctx context.Context, topic string, body []byte) error
}

// DefaultPublishTimeout bounds a single publish attempt.
const DefaultPublishTimeout = 5 * time.Second

// PublishStage encodes the record as JSON and publishes it.
type PublishStage struct {
	publisher Publisher
	topic     string
	timeout   time.Duration
	attempts  int
}

// NewPublishStageParams configures a PublishStage. Attempts <= 0 means a
// single attempt.
type NewPublishStageParams struct {
	Publisher Publisher
	Topic     string
	Timeout   time.Duration
	Attempts  int
}

func NewPublishStage(params NewPublishStageParams) *PublishStage {
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = DefaultPublishTimeout
	}
	return &PublishStage{
		publisher: params.Publisher,
		topic:     params.Topic,
		timeout:   timeout,
		attempts:  params.Attempts,
	}
}

func (s *PublishStage) Name() string { return StagePublish }

func (s *PublishStage) Process(ctx context.Context, rec *common.CaseRecord) error {
	if s.publisher == nil {
		return errors.New("no publisher configured")
	}
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode case: %w", err)
	}

	return util.RetryErrWithContext(ctx, s.attempts, func(ctx context.Context) error {
		cctx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		err := s.publisher.Publish(cctx, s.topic, body)
		if err != nil {
			logger.Warn("[Pipeline] Publish attempt failed", "caseId", rec.CaseID, "topic", s.topic, "err", err)
		}
		return err
	})
}

// NewDefaultPipelineParams configures NewDefaultPipeline.
type NewDefaultPipelineParams struct {
	Normalizer     *normalize.Normalizer
	Publisher      Publisher
	Topic          string
	PublishTimeout time.Duration
	PublishRetries int
}

// NewDefaultPipeline builds the validate, enrich, publish pipeline.
func NewDefaultPipeline(params NewDefaultPipelineParams) *Pipeline {
	return NewPipeline(
		NewValidateStage(),
		NewEnrichStage(params.Normalizer, normalize.DefaultIDPrefix),
		NewPublishStage(NewPublishStageParams{
			Publisher: params.Publisher,
			Topic:     params.Topic,
			Timeout:   params.PublishTimeout,
			Attempts:  params.PublishRetries,
		}),
	)
}
