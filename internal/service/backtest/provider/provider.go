package provider

import (
	"context"
	"fmt"
	"os"
	"time"

	"backflow/internal/model"

	"gopkg.in/yaml.v3"
)

// Provider 提供单个标的在 [from, to] 区间内按日期升序、带指标的日线
type Provider interface {
	Series(ctx context.Context, symbol string, from, to time.Time) (*model.Series, error)
}

// Listing 回测标的
type Listing struct {
	Symbol string `yaml:"symbol" json:"symbol"`
	Sector string `yaml:"sector" json:"sector"`
}

type universeFile struct {
	Symbols []Listing `yaml:"symbols"`
}

// LoadUniverse 读取标的列表
func LoadUniverse(path string) ([]Listing, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read universe %s: %w", path, err)
	}
	var u universeFile
	if err := yaml.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("parse universe %s: %w", path, err)
	}
	seen := make(map[string]bool, len(u.Symbols))
	out := make([]Listing, 0, len(u.Symbols))
	for _, l := range u.Symbols {
		if l.Symbol == "" || seen[l.Symbol] {
			continue
		}
		if l.Sector == "" {
			l.Sector = "Unknown"
		}
		seen[l.Symbol] = true
		out = append(out, l)
	}
	return out, nil
}
