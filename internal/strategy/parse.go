package strategy

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"backflow/internal/model"
	"backflow/pkg/validator"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

// LoadFile 读取策略 yaml 并解析校验
func LoadFile(source, path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &model.ConfigError{Source: source, Issues: []string{fmt.Sprintf("read %s: %v", path, err)}}
	}
	raw := make(map[string]any)
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &model.ConfigError{Source: source, Issues: []string{fmt.Sprintf("parse %s: %v", path, err)}}
	}
	return Parse(source, raw)
}

// Parse 把未类型化的配置映射转换成 Config。
// 缺失的必填项、类型不匹配以及越界取值全部收集后以一个 ConfigError 返回。
func Parse(source string, raw map[string]any) (*Config, error) {
	r := &reader{}
	root := r.section(raw, "")

	cfg := &Config{
		Name:         root.str("name"),
		Version:      root.str("version"),
		EntryTiming:  EntryTiming(root.str("entry_timing")),
		MinScore:     root.float("min_score"),
		MaxResults:   root.int("max_results"),
		MaxHoldDays:  root.int("max_hold_days"),
		StopPct:      root.float("stop_pct"),
		TargetPct:    root.float("target_pct"),
		EntrySignals: signalTypes(root.strs("entry_signals")),
	}

	if rules, ok := root.child("rules"); ok {
		cfg.Rules = parseRules(rules)
		if cfg.Rules.Count() == 0 {
			r.issue("rules: at least one rule must be enabled")
		}
	}
	if b, ok := root.child("breakout"); ok {
		cfg.Breakout = Breakout{Pct: b.float("pct"), VolumeRatio: b.float("volume_ratio")}
	}
	if weights, ok := root.child("sector_weights"); ok {
		cfg.SectorWeights = make(map[string]float64, len(weights.m))
		for _, k := range weights.keys() {
			cfg.SectorWeights[k] = weights.float(k)
		}
	}
	if exits, ok := root.optionalChild("exits"); ok {
		cfg.Exits = make(map[model.SignalType]ExitOverride, len(exits.m))
		for _, k := range exits.keys() {
			e, ok := exits.child(k)
			if !ok {
				continue
			}
			cfg.Exits[model.SignalType(k)] = ExitOverride{StopPct: e.float("stop_pct"), TargetPct: e.float("target_pct")}
		}
	}
	if te, ok := root.optionalChild("trend_exit"); ok {
		cfg.TrendExit = &TrendExit{MA: te.str("ma"), Days: te.int("days")}
	}

	// 解析失败的字段已经有记录，校验器只补充其余字段的越界问题
	r.issues = append(r.issues, r.unreported(validator.Struct(cfg))...)
	if len(r.issues) > 0 {
		return nil, &model.ConfigError{Source: source, Issues: r.issues}
	}
	return cfg, nil
}

func parseRules(s section) Rules {
	var rules Rules
	if c, ok := s.optionalChild(RuleDayGain); ok {
		rules.DayGain = &DayGainRule{Points: c.float("points"), MinGain: c.float("min_gain"), MaxGain: c.float("max_gain")}
	}
	if c, ok := s.optionalChild(RuleCloseNearHigh); ok {
		rules.CloseNearHigh = &CloseNearHighRule{Points: c.float("points")}
	}
	if c, ok := s.optionalChild(RuleTrendAlignment); ok {
		rules.TrendAlignment = &TrendAlignmentRule{Points: c.float("points")}
	}
	if c, ok := s.optionalChild(RuleRSIBand); ok {
		rules.RSIBand = &RSIBandRule{
			Points:        c.float("points"),
			RSIMin:        c.float("rsi_min"),
			RSIMax:        c.float("rsi_max"),
			PullbackFloor: c.float("pullback_rsi_floor"),
		}
	}
	if c, ok := s.optionalChild(RuleMACD); ok {
		rules.MACD = &MACDRule{Points: c.float("points")}
	}
	if c, ok := s.optionalChild(RuleVolumeSurge); ok {
		rules.VolumeSurge = &VolumeSurgeRule{Points: c.float("points"), MinVolumeRatio: c.float("min_volume_ratio")}
	}
	if c, ok := s.optionalChild(RuleHighProximity); ok {
		rules.HighProximity = &HighProximityRule{Points: c.float("points"), MinPct: c.float("min_pct"), MaxPct: c.float("max_pct")}
	}
	if c, ok := s.optionalChild(RuleSector); ok {
		rules.Sector = &SectorRule{
			Points:    c.float("points"),
			Excluded:  c.optionalStrs("excluded"),
			Preferred: c.optionalStrs("preferred"),
		}
	}
	for _, k := range s.keys() {
		if !knownRule(k) {
			s.r.issue(fmt.Sprintf("rules.%s: unknown rule", k))
		}
	}
	return rules
}

func knownRule(name string) bool {
	switch name {
	case RuleDayGain, RuleCloseNearHigh, RuleTrendAlignment, RuleRSIBand,
		RuleMACD, RuleVolumeSurge, RuleHighProximity, RuleSector:
		return true
	}
	return false
}

func signalTypes(in []string) []model.SignalType {
	out := make([]model.SignalType, 0, len(in))
	for _, s := range in {
		out = append(out, model.SignalType(s))
	}
	return out
}

// reader 收集解析过程中的所有问题
type reader struct {
	issues []string
}

func (r *reader) issue(msg string) {
	r.issues = append(r.issues, msg)
}

// unreported 过滤掉落在已记录字段（或其子字段）上的校验问题
func (r *reader) unreported(validation []string) []string {
	reported := make([]string, 0, len(r.issues))
	for _, i := range r.issues {
		path, _, _ := strings.Cut(i, ": ")
		reported = append(reported, path)
	}
	out := make([]string, 0, len(validation))
	for _, v := range validation {
		path, _, _ := strings.Cut(v, ": ")
		if !coveredBy(path, reported) {
			out = append(out, v)
		}
	}
	return out
}

func coveredBy(path string, reported []string) bool {
	for _, p := range reported {
		if path == p || strings.HasPrefix(path, p+".") || strings.HasPrefix(path, p+"[") {
			return true
		}
	}
	return false
}

type section struct {
	r      *reader
	m      map[string]any
	prefix string
}

func (r *reader) section(m map[string]any, prefix string) section {
	return section{r: r, m: m, prefix: prefix}
}

func (s section) path(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + "." + key
}

func (s section) keys() []string {
	keys := make([]string, 0, len(s.m))
	for k := range s.m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// lookup 必填项缺失时记录问题
func (s section) lookup(key string) (any, bool) {
	v, ok := s.m[key]
	if !ok || v == nil {
		s.r.issue(s.path(key) + ": is required")
		return nil, false
	}
	return v, true
}

func (s section) str(key string) string {
	v, ok := s.lookup(key)
	if !ok {
		return ""
	}
	out, err := cast.ToStringE(v)
	if err != nil {
		s.r.issue(fmt.Sprintf("%s: %v", s.path(key), err))
	}
	return out
}

func (s section) float(key string) float64 {
	v, ok := s.lookup(key)
	if !ok {
		return 0
	}
	out, err := cast.ToFloat64E(v)
	if err != nil {
		s.r.issue(fmt.Sprintf("%s: %v", s.path(key), err))
	}
	return out
}

func (s section) int(key string) int {
	v, ok := s.lookup(key)
	if !ok {
		return 0
	}
	out, err := cast.ToIntE(v)
	if err != nil {
		s.r.issue(fmt.Sprintf("%s: %v", s.path(key), err))
	}
	return out
}

func (s section) strs(key string) []string {
	v, ok := s.lookup(key)
	if !ok {
		return nil
	}
	out, err := cast.ToStringSliceE(v)
	if err != nil {
		s.r.issue(fmt.Sprintf("%s: %v", s.path(key), err))
	}
	return out
}

func (s section) optionalStrs(key string) []string {
	if _, ok := s.m[key]; !ok {
		return nil
	}
	return s.strs(key)
}

func (s section) child(key string) (section, bool) {
	v, ok := s.lookup(key)
	if !ok {
		return section{}, false
	}
	return s.asSection(key, v)
}

func (s section) optionalChild(key string) (section, bool) {
	v, ok := s.m[key]
	if !ok || v == nil {
		return section{}, false
	}
	return s.asSection(key, v)
}

func (s section) asSection(key string, v any) (section, bool) {
	m, err := cast.ToStringMapE(v)
	if err != nil {
		s.r.issue(fmt.Sprintf("%s: %v", s.path(key), err))
		return section{}, false
	}
	return s.r.section(m, s.path(key)), true
}
