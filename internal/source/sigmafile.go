package source

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	sigma "github.com/bradleyjkemp/sigma-go"
	sigmaevaluator "github.com/bradleyjkemp/sigma-go/evaluator"

	"detcover/internal/attack"
	"detcover/pkg/models"
)

var attackTechniqueTag = regexp.MustCompile(`^attack\.t\d{4}(?:\.\d{3})?$`)

// SigmaConfig configures the offline Sigma source.
type SigmaConfig struct {
	Name       string
	RulesPath  string
	EventsPath string
}

// SigmaLoadStats tracks the number of loaded and skipped rules.
type SigmaLoadStats struct {
	TotalFiles     int
	Loaded         int
	SkippedNoTech  int
	SkippedInvalid int
}

type compiledSigmaRule struct {
	eval        *sigmaevaluator.RuleEvaluator
	ruleID      string
	ruleName    string
	severity    string
	techniqueID string
}

// SigmaSource replays a local JSONL event log through Sigma rules, acting
// as a fully offline detection backend. Only rules tagged with an
// attack.tNNNN technique participate; other rules cannot contribute to
// technique coverage.
type SigmaSource struct {
	name       string
	eventsPath string
	rules      []compiledSigmaRule
}

// NewSigma loads Sigma rules from a file or directory and compiles
// evaluators. Rules without a technique tag are counted and skipped.
func NewSigma(cfg SigmaConfig) (*SigmaSource, SigmaLoadStats, error) {
	var stats SigmaLoadStats

	if strings.TrimSpace(cfg.RulesPath) == "" {
		return nil, stats, fmt.Errorf("sigma source %q: rules_path is required", cfg.Name)
	}
	if strings.TrimSpace(cfg.EventsPath) == "" {
		return nil, stats, fmt.Errorf("sigma source %q: events_path is required", cfg.Name)
	}

	files, err := collectRuleFiles(cfg.RulesPath)
	if err != nil {
		return nil, stats, err
	}
	stats.TotalFiles = len(files)

	compiled := make([]compiledSigmaRule, 0, len(files))
	for _, ruleFile := range files {
		raw, err := os.ReadFile(ruleFile)
		if err != nil {
			stats.SkippedInvalid++
			continue
		}
		rule, err := sigma.ParseRule(raw)
		if err != nil {
			stats.SkippedInvalid++
			continue
		}

		technique := techniqueFromTags(rule.Tags)
		if technique == "" {
			stats.SkippedNoTech++
			continue
		}

		ruleID := strings.TrimSpace(rule.ID)
		if ruleID == "" {
			ruleID = strings.TrimSpace(rule.Title)
		}
		level := strings.ToLower(strings.TrimSpace(rule.Level))
		if level == "" {
			level = "medium"
		}

		compiled = append(compiled, compiledSigmaRule{
			eval:        sigmaevaluator.ForRule(rule),
			ruleID:      ruleID,
			ruleName:    strings.TrimSpace(rule.Title),
			severity:    level,
			techniqueID: technique,
		})
		stats.Loaded++
	}

	name := cfg.Name
	if name == "" {
		name = "sigma"
	}
	return &SigmaSource{name: name, eventsPath: cfg.EventsPath, rules: compiled}, stats, nil
}

// Name returns the configured source name.
func (s *SigmaSource) Name() string { return s.name }

// Connect is a no-op.
func (s *SigmaSource) Connect(ctx context.Context) error { return nil }

// Disconnect is a no-op.
func (s *SigmaSource) Disconnect() error { return nil }

// CheckStatus verifies the event log is readable.
func (s *SigmaSource) CheckStatus(ctx context.Context) error {
	if _, err := os.Stat(s.eventsPath); err != nil {
		return fmt.Errorf("sigma event log: %w", err)
	}
	return nil
}

type sigmaLogEvent struct {
	Timestamp string                 `json:"@timestamp"`
	Fields    map[string]interface{} `json:"fields"`
}

// Query evaluates every rule against the in-window events and reports a
// detection for each match whose technique is in the requested set.
func (s *SigmaSource) Query(ctx context.Context, techniqueIDs []string, window Window) ([]models.Detection, error) {
	ids := normalizedSet(techniqueIDs)
	if len(ids) == 0 || len(s.rules) == 0 {
		return nil, nil
	}
	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}

	f, err := os.Open(s.eventsPath)
	if err != nil {
		return nil, fmt.Errorf("open sigma event log: %w", err)
	}
	defer f.Close()

	var out []models.Detection
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var ev sigmaLogEvent
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			continue
		}
		ts, ok := parseEventTime(ev.Timestamp)
		if !ok || ts.Before(window.Start) || ts.After(window.End) {
			continue
		}

		for _, rule := range s.rules {
			if _, ok := wanted[rule.techniqueID]; !ok {
				continue
			}
			res, err := rule.eval.Matches(ctx, ev.Fields)
			if err != nil || !res.Match {
				continue
			}
			out = append(out, models.Detection{
				TechniqueID: rule.techniqueID,
				Timestamp:   ts,
				RuleID:      rule.ruleID,
				RuleName:    rule.ruleName,
				Severity:    rule.severity,
				Confidence:  confidenceForLevel(rule.severity),
				Source:      s.name,
			})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read sigma event log: %w", err)
	}
	return out, nil
}

func collectRuleFiles(path string) ([]string, error) {
	resolved, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve rule path: %w", err)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return nil, fmt.Errorf("stat rule path: %w", err)
	}

	if !info.IsDir() {
		if !isYAMLFile(resolved) {
			return nil, fmt.Errorf("rule file must end with .yml or .yaml: %s", resolved)
		}
		return []string{resolved}, nil
	}

	files := make([]string, 0, 64)
	err = filepath.WalkDir(resolved, func(filePath string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !entry.IsDir() && isYAMLFile(filePath) {
			files = append(files, filePath)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk rule directory: %w", err)
	}
	return files, nil
}

func isYAMLFile(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, ".yml") || strings.HasSuffix(lower, ".yaml")
}

// techniqueFromTags maps the first attack.tNNNN tag to a normalized parent
// technique id.
func techniqueFromTags(tags []string) string {
	for _, raw := range tags {
		tag := strings.ToLower(strings.TrimSpace(raw))
		if !attackTechniqueTag.MatchString(tag) {
			continue
		}
		return attack.Normalize(strings.ToUpper(strings.TrimPrefix(tag, "attack.")))
	}
	return ""
}

func confidenceForLevel(level string) float64 {
	switch level {
	case "critical":
		return 0.9
	case "high":
		return 0.8
	case "medium":
		return 0.6
	case "low":
		return 0.4
	default:
		return 0.5
	}
}
