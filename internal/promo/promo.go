// Package promo resolves promotional codes to percentage discounts.
package promo

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	ErrInvalidPercent = errors.New("promo discount must be between 0 and 100")
	ErrEmptyCode      = errors.New("promo code must not be empty")
)

// Resolver is a static code -> percent table. Lookups are case-insensitive and
// ignore surrounding whitespace.
type Resolver struct {
	codes map[string]int
}

func New(codes map[string]int) (*Resolver, error) {
	table := make(map[string]int, len(codes))
	for code, pct := range codes {
		normalized := Normalize(code)
		if normalized == "" {
			return nil, ErrEmptyCode
		}
		if pct < 0 || pct > 100 {
			return nil, fmt.Errorf("%w: %s=%d", ErrInvalidPercent, normalized, pct)
		}
		table[normalized] = pct
	}
	return &Resolver{codes: table}, nil
}

func Default() *Resolver {
	return &Resolver{codes: map[string]int{
		"WELCOME10": 10,
		"VOGUE20":   20,
		"FIRSTBUY":  15,
		"ARMAGIC":   25,
	}}
}

type fileFormat struct {
	Codes map[string]int `yaml:"codes"`
}

// LoadFile reads a YAML table of the form:
//
//	codes:
//	  VOGUE20: 20
func LoadFile(path string) (*Resolver, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read promo file: %w", err)
	}
	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse promo file: %w", err)
	}
	return New(f.Codes)
}

func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (r *Resolver) Lookup(code string) (int, bool) {
	pct, ok := r.codes[Normalize(code)]
	return pct, ok
}

type Code struct {
	Code    string `json:"code"`
	Percent int    `json:"percent"`
}

func (r *Resolver) Codes() []Code {
	out := make([]Code, 0, len(r.codes))
	for code, pct := range r.codes {
		out = append(out, Code{Code: code, Percent: pct})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}
