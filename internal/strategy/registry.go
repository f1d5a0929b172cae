package strategy

import (
	"fmt"
	"sort"
	"sync"

	"backflow/internal/model"

	"go.uber.org/multierr"
)

var (
	// 策略注册表，key 形如 swing_v1
	registry = make(map[string]*Config)
	mu       sync.RWMutex
)

func Register(c *Config) {
	mu.Lock()
	defer mu.Unlock()
	registry[c.Key()] = c
}

// Get 未注册的策略按配置缺失处理，返回 ConfigError
func Get(key string) (*Config, error) {
	mu.RLock()
	defer mu.RUnlock()
	c, ok := registry[key]
	if !ok {
		return nil, &model.ConfigError{Source: key, Issues: []string{"strategy is not configured"}}
	}
	return c, nil
}

// Keys 已注册的策略，按名称排序
func Keys() []string {
	mu.RLock()
	defer mu.RUnlock()
	keys := make([]string, 0, len(registry))
	for k := range registry {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// LoadAll 按 key -> 文件路径加载并注册全部策略，所有配置错误一并返回
func LoadAll(files map[string]string) error {
	var errs error
	keys := make([]string, 0, len(files))
	for k := range files {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		cfg, err := LoadFile(key, files[key])
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if cfg.Key() != key {
			errs = multierr.Append(errs, &model.ConfigError{
				Source: key,
				Issues: []string{fmt.Sprintf("name/version declare %s", cfg.Key())},
			})
			continue
		}
		Register(cfg)
	}
	return errs
}

// Pair 返回某一策略类型的基线 v1 和候选 v2
func Pair(strategyType string) (v1, v2 *Config, err error) {
	v1, err = Get(strategyType + "_v1")
	if err != nil {
		return nil, nil, err
	}
	v2, err = Get(strategyType + "_v2")
	if err != nil {
		return nil, nil, err
	}
	return v1, v2, nil
}
