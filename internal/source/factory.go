package source

import (
	"fmt"
	"strings"

	"detcover/config"
	"detcover/internal/logger"
)

// New builds a source from its configuration block. A nil error means the
// source is well-configured; callers decide whether it is enabled.
func New(cfg config.SourceConfig) (Source, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Type)) {
	case "splunk":
		return NewSplunk(SplunkConfig{
			Name:      cfg.Name,
			Endpoint:  cfg.APIEndpoint,
			Token:     cfg.APIToken,
			VerifyTLS: cfg.VerifyTLS,
			Timeout:   cfg.Timeout,
		})
	case "elastic":
		return NewElastic(ElasticConfig{
			Name:      cfg.Name,
			Endpoint:  cfg.APIEndpoint,
			Token:     cfg.APIToken,
			VerifyTLS: cfg.VerifyTLS,
			Timeout:   cfg.Timeout,
		})
	case "qradar":
		return NewQRadar(QRadarConfig{
			Name:      cfg.Name,
			Endpoint:  cfg.APIEndpoint,
			Token:     cfg.APIToken,
			VerifyTLS: cfg.VerifyTLS,
			Timeout:   cfg.Timeout,
		})
	case "arcsight":
		return NewArcSight(ArcSightConfig{
			Name:      cfg.Name,
			Endpoint:  cfg.APIEndpoint,
			Token:     cfg.APIToken,
			VerifyTLS: cfg.VerifyTLS,
			Timeout:   cfg.Timeout,
		})
	case "simulated":
		return NewSimulated(SimulatedConfig{
			Name:              cfg.Name,
			DetectProbability: cfg.DetectProbability,
			QueryDelay:        cfg.QueryDelay,
		}), nil
	case "sigma":
		src, stats, err := NewSigma(SigmaConfig{
			Name:       cfg.Name,
			RulesPath:  cfg.RulesPath,
			EventsPath: cfg.EventsPath,
		})
		if err != nil {
			return nil, err
		}
		logger.Infof("Sigma rules loaded for source %s: loaded=%d skipped_no_technique=%d skipped_invalid=%d files=%d",
			src.Name(), stats.Loaded, stats.SkippedNoTech, stats.SkippedInvalid, stats.TotalFiles)
		return src, nil
	default:
		return nil, fmt.Errorf("unknown source type: %s", cfg.Type)
	}
}
