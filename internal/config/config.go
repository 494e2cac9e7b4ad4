// Package config loads and validates the YAML analysis file that drives the
// CLI: the plan, guard-rails thresholds, tax schedule, allocation set and
// simulation knobs.
package config

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/ukfire/firecalc/internal/allocation"
	"github.com/ukfire/firecalc/internal/domain"
	"github.com/ukfire/firecalc/internal/guardrails"
	"github.com/ukfire/firecalc/internal/simulation"
	"github.com/ukfire/firecalc/internal/tax"
)

// AnalysisFile is the YAML schema of an analysis request.
type AnalysisFile struct {
	Plan       domain.PlanInput  `yaml:"plan"`
	GuardRails GuardRailsSpec    `yaml:"guard_rails"`
	Tax        []BracketSpec     `yaml:"tax_brackets,omitempty"`
	Simulation simulation.Config `yaml:"simulation"`
	// Allocations overrides the standard allocation set when present.
	Allocations []AllocationSpec `yaml:"allocations,omitempty"`
	// DataPath points at the directory of historical CSV files; the
	// --data flag takes precedence.
	DataPath string `yaml:"data_path,omitempty"`
}

// GuardRailsSpec mirrors guardrails.Config with a string strategy tag.
type GuardRailsSpec struct {
	Strategy         string  `yaml:"strategy"`
	UpperThreshold   float64 `yaml:"upper_threshold"`
	LowerThreshold   float64 `yaml:"lower_threshold"`
	SevereThreshold  float64 `yaml:"severe_threshold"`
	LowerAdjustment  float64 `yaml:"lower_adjustment"`
	SevereAdjustment float64 `yaml:"severe_adjustment"`
	RatchetEnabled   bool    `yaml:"ratchet_enabled"`
	RatchetThreshold float64 `yaml:"ratchet_threshold"`
	RatchetIncrease  float64 `yaml:"ratchet_increase"`
}

// BracketSpec is one tax band in the file; Upper omitted or 0 on the final
// band means unbounded.
type BracketSpec struct {
	Lower float64 `yaml:"lower"`
	Upper float64 `yaml:"upper,omitempty"`
	Rate  float64 `yaml:"rate"`
}

// AllocationSpec names an allocation strategy in the file.
type AllocationSpec struct {
	Name   string  `yaml:"name"`
	Kind   string  `yaml:"kind"`
	Equity float64 `yaml:"equity,omitempty"`
	Bond   float64 `yaml:"bond,omitempty"`
	Cash   float64 `yaml:"cash,omitempty"`
}

// Analysis is the fully validated, constructed analysis request.
type Analysis struct {
	Plan        domain.PlanInput
	GuardRails  guardrails.Config
	Taxes       *tax.BracketTable
	Simulation  simulation.Config
	Allocations []allocation.Strategy
	DataPath    string
}

// LoadFromFile reads, parses and validates an analysis file. Every
// configuration error surfaces here, before any simulation runs.
func LoadFromFile(filename string) (*Analysis, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", filename, err)
	}

	file := AnalysisFile{
		GuardRails: defaultGuardRailsSpec(),
		Simulation: simulation.DefaultConfig(),
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return Build(&file)
}

// Build validates a parsed file and constructs the analysis request.
func Build(file *AnalysisFile) (*Analysis, error) {
	if err := file.Plan.Validate(); err != nil {
		return nil, fmt.Errorf("plan validation failed: %w", err)
	}

	rails, err := buildGuardRails(file.GuardRails)
	if err != nil {
		return nil, fmt.Errorf("guard-rails validation failed: %w", err)
	}

	taxes, err := buildTaxes(file.Tax)
	if err != nil {
		return nil, fmt.Errorf("tax schedule validation failed: %w", err)
	}

	if err := file.Simulation.Validate(); err != nil {
		return nil, fmt.Errorf("simulation configuration validation failed: %w", err)
	}

	allocations, err := buildAllocations(file.Allocations)
	if err != nil {
		return nil, fmt.Errorf("allocation validation failed: %w", err)
	}

	return &Analysis{
		Plan:        file.Plan,
		GuardRails:  rails,
		Taxes:       taxes,
		Simulation:  file.Simulation,
		Allocations: allocations,
		DataPath:    file.DataPath,
	}, nil
}

func defaultGuardRailsSpec() GuardRailsSpec {
	def := guardrails.DefaultConfig()
	return GuardRailsSpec{
		Strategy:         def.Strategy.String(),
		UpperThreshold:   def.UpperThreshold,
		LowerThreshold:   def.LowerThreshold,
		SevereThreshold:  def.SevereThreshold,
		LowerAdjustment:  def.LowerAdjustment,
		SevereAdjustment: def.SevereAdjustment,
	}
}

func buildGuardRails(spec GuardRailsSpec) (guardrails.Config, error) {
	strategy, err := guardrails.ParseStrategy(spec.Strategy)
	if err != nil {
		return guardrails.Config{}, err
	}
	cfg := guardrails.Config{
		Strategy:         strategy,
		UpperThreshold:   spec.UpperThreshold,
		LowerThreshold:   spec.LowerThreshold,
		SevereThreshold:  spec.SevereThreshold,
		LowerAdjustment:  spec.LowerAdjustment,
		SevereAdjustment: spec.SevereAdjustment,
		RatchetEnabled:   spec.RatchetEnabled,
		RatchetThreshold: spec.RatchetThreshold,
		RatchetIncrease:  spec.RatchetIncrease,
	}
	if err := cfg.Validate(); err != nil {
		return guardrails.Config{}, err
	}
	return cfg, nil
}

func buildTaxes(specs []BracketSpec) (*tax.BracketTable, error) {
	if len(specs) == 0 {
		return tax.UK2024(), nil
	}
	brackets := make([]tax.Bracket, len(specs))
	for i, spec := range specs {
		b := tax.Bracket{
			Lower: decimal.NewFromFloat(spec.Lower),
			Rate:  decimal.NewFromFloat(spec.Rate),
		}
		if i < len(specs)-1 {
			upper := decimal.NewFromFloat(spec.Upper)
			b.Upper = &upper
		}
		brackets[i] = b
	}
	return tax.NewBracketTable(brackets)
}

func buildAllocations(specs []AllocationSpec) ([]allocation.Strategy, error) {
	if len(specs) == 0 {
		return allocation.StandardSet(), nil
	}
	strategies := make([]allocation.Strategy, len(specs))
	for i, spec := range specs {
		if spec.Name == "" {
			return nil, fmt.Errorf("%w: allocation %d: name is required", domain.ErrInvalidConfig, i)
		}
		s, err := allocation.CreateStrategy(spec.Name, spec.Kind, spec.Equity, spec.Bond, spec.Cash)
		if err != nil {
			return nil, err
		}
		strategies[i] = s
	}
	return strategies, nil
}
