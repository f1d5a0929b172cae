package provider

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"backflow/conf"
	"backflow/internal/model"
)

// FileProvider 从 <dir>/<symbol>.csv 读取日线，表头需包含 date,open,high,low,close,volume
type FileProvider struct {
	dir     string
	params  conf.TechnicalParams
	sectors map[string]string
}

func NewFileProvider(dir string, universe []Listing, params conf.TechnicalParams) *FileProvider {
	sectors := make(map[string]string, len(universe))
	for _, l := range universe {
		sectors[l.Symbol] = l.Sector
	}
	return &FileProvider{
		dir:     dir,
		params:  WithDefaults(params),
		sectors: sectors,
	}
}

func (p *FileProvider) Series(ctx context.Context, symbol string, from, to time.Time) (*model.Series, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	bars, err := p.readBars(symbol)
	if err != nil {
		return nil, err
	}
	if len(bars) <= WarmUp(p.params) {
		return nil, &model.DataGapError{Symbol: symbol, Reason: fmt.Sprintf("%d bars, need more than %d for indicator warm-up", len(bars), WarmUp(p.params))}
	}
	Annotate(bars, p.params)

	start, end := -1, -1
	for i, b := range bars {
		if b.Date.Before(from) || b.Date.After(to) {
			continue
		}
		if start < 0 {
			start = i
		}
		end = i
	}
	if start < 0 || end-start+1 < 2 {
		return nil, &model.DataGapError{Symbol: symbol, Reason: "fewer than 2 bars in range"}
	}
	if !bars[start].Ready {
		return nil, &model.DataGapError{Symbol: symbol, Reason: fmt.Sprintf("only %d bars before %s, indicators not warmed up", start, from.Format(time.DateOnly))}
	}

	sector := p.sectors[symbol]
	if sector == "" {
		sector = "Unknown"
	}
	return &model.Series{
		Symbol: symbol,
		Sector: sector,
		Bars:   bars[start : end+1],
	}, nil
}

func (p *FileProvider) readBars(symbol string) ([]model.PriceBar, error) {
	path := filepath.Join(p.dir, symbol+".csv")
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &model.DataGapError{Symbol: symbol, Reason: "no price history"}
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header %s: %w", path, err)
	}
	cols, err := columnIndex(header)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	var bars []model.PriceBar
	for line := 2; ; line++ {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", path, line, err)
		}
		bar, err := parseBar(rec, cols)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", path, line, err)
		}
		if n := len(bars); n > 0 && !bar.Date.After(bars[n-1].Date) {
			return nil, &model.DataGapError{Symbol: symbol, Reason: fmt.Sprintf("dates not ascending at %s", bar.Date.Format(time.DateOnly))}
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

var requiredColumns = []string{"date", "open", "high", "low", "close", "volume"}

func columnIndex(header []string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, c := range requiredColumns {
		if _, ok := idx[c]; !ok {
			return nil, fmt.Errorf("missing column %q", c)
		}
	}
	return idx, nil
}

func parseBar(rec []string, cols map[string]int) (model.PriceBar, error) {
	var bar model.PriceBar
	date, err := time.Parse(time.DateOnly, strings.TrimSpace(rec[cols["date"]]))
	if err != nil {
		return bar, err
	}
	bar.Date = date
	fields := []struct {
		name string
		dst  *float64
	}{
		{"open", &bar.Open},
		{"high", &bar.High},
		{"low", &bar.Low},
		{"close", &bar.Close},
		{"volume", &bar.Volume},
	}
	for _, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[cols[f.name]]), 64)
		if err != nil {
			return bar, fmt.Errorf("%s: %w", f.name, err)
		}
		*f.dst = v
	}
	return bar, nil
}
