package metrics

import (
	"context"

	"codeberg.org/mutker/amdpower/internal/errors"
	"codeberg.org/mutker/amdpower/internal/logger"
)

// service guards the repository with the checks shared by every caller
type service struct {
	repo     MetricsRepository
	log      logger.Logger
	recorded int
}

type noopMetricsCollector struct{}

// NewService returns a collector backed by the sqlite repository, or a
// collector that drops everything when cfg.Enabled is false.
func NewService(cfg Config, log logger.Logger) (MetricsCollector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.New().Wrap(ErrInvalidConfig, err)
	}

	if !cfg.Enabled {
		log.Debug().Msg("Metrics collection disabled, using no-op collector")
		return &noopMetricsCollector{}, nil
	}

	repo, err := NewRepository(cfg, log)
	if err != nil {
		return nil, err
	}

	return &service{repo: repo, log: log}, nil
}

// Record stores one snapshot. A snapshot without core readings is refused.
func (s *service) Record(ctx context.Context, snapshot *MetricsSnapshot) error {
	errFactory := errors.New()

	if snapshot == nil || len(snapshot.Cores) == 0 {
		return errFactory.New(ErrInvalidSnapshot)
	}

	if err := ctx.Err(); err != nil {
		return errFactory.Wrap(ErrOperationTimeout, err)
	}

	if err := s.repo.Record(snapshot); err != nil {
		return errFactory.Wrap(ErrRecord, err)
	}
	s.recorded++

	return nil
}

func (s *service) Close() error {
	s.log.Debug().Int("recorded", s.recorded).Msg("Closing metrics service")

	if err := s.repo.Close(); err != nil {
		return errors.New().Wrap(ErrStorageClose, err)
	}
	return nil
}

func (*noopMetricsCollector) Record(_ context.Context, _ *MetricsSnapshot) error {
	return nil
}

func (*noopMetricsCollector) Close() error {
	return nil
}
