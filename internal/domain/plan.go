package domain

import (
	"fmt"
)

// SpendingPhase scales the desired net income from a given age onward.
// Phases are ordered by age; the multiplier of the last phase whose age has
// been reached applies.
type SpendingPhase struct {
	Age        int     `yaml:"age" json:"age"`
	Multiplier float64 `yaml:"multiplier" json:"multiplier"`
}

// PlanInput holds the user's savings/spending plan. All monetary values are
// in today's purchasing power (real terms); DesiredAnnualIncome is after tax.
type PlanInput struct {
	CurrentAge          int     `yaml:"current_age" json:"currentAge"`
	CurrentSavings      float64 `yaml:"current_savings" json:"currentSavings"`
	MonthlySavings      float64 `yaml:"monthly_savings" json:"monthlySavings"`
	DesiredAnnualIncome float64 `yaml:"desired_annual_income" json:"desiredAnnualIncome"`
	TargetSuccessRate   float64 `yaml:"target_success_rate" json:"targetSuccessRate"`

	CashBufferYears    float64         `yaml:"cash_buffer_years,omitempty" json:"cashBufferYears,omitempty"`
	StatePensionAge    int             `yaml:"state_pension_age,omitempty" json:"statePensionAge,omitempty"`
	StatePensionAnnual float64         `yaml:"state_pension_annual,omitempty" json:"statePensionAnnual,omitempty"`
	SpendingPhases     []SpendingPhase `yaml:"spending_phases,omitempty" json:"spendingPhases,omitempty"`
}

// TerminalAge is the age through which every trajectory is simulated.
const TerminalAge = 100

// MaxRetirementAge bounds the optimal-age search.
const MaxRetirementAge = 95

// Validate checks the plan at construction time.
func (p *PlanInput) Validate() error {
	if p.CurrentAge < 18 || p.CurrentAge > 80 {
		return fmt.Errorf("%w: current age must be between 18 and 80, got %d", ErrInvalidPlan, p.CurrentAge)
	}
	if p.CurrentSavings < 0 {
		return fmt.Errorf("%w: current savings cannot be negative", ErrInvalidPlan)
	}
	if p.MonthlySavings < 0 {
		return fmt.Errorf("%w: monthly savings cannot be negative", ErrInvalidPlan)
	}
	if p.DesiredAnnualIncome <= 0 {
		return fmt.Errorf("%w: desired annual income must be positive", ErrInvalidPlan)
	}
	if p.TargetSuccessRate < 0.5 || p.TargetSuccessRate > 1.0 {
		return fmt.Errorf("%w: target success rate must be between 0.5 and 1.0, got %g", ErrInvalidPlan, p.TargetSuccessRate)
	}
	if p.CashBufferYears < 0 {
		return fmt.Errorf("%w: cash buffer years cannot be negative", ErrInvalidPlan)
	}
	if p.StatePensionAnnual < 0 {
		return fmt.Errorf("%w: state pension amount cannot be negative", ErrInvalidPlan)
	}
	if p.StatePensionAnnual > 0 && (p.StatePensionAge <= p.CurrentAge || p.StatePensionAge > TerminalAge) {
		return fmt.Errorf("%w: state pension age must be between current age and %d, got %d", ErrInvalidPlan, TerminalAge, p.StatePensionAge)
	}
	prevAge := p.CurrentAge
	for i, phase := range p.SpendingPhases {
		if phase.Age <= prevAge {
			return fmt.Errorf("%w: spending phase %d: ages must be strictly increasing and above current age", ErrInvalidPlan, i)
		}
		if phase.Multiplier < 0.1 || phase.Multiplier > 1.0 {
			return fmt.Errorf("%w: spending phase %d: multiplier must be between 0.1 and 1.0, got %g", ErrInvalidPlan, i, phase.Multiplier)
		}
		prevAge = phase.Age
	}
	return nil
}

// SpendingMultiplierAt returns the spending-phase multiplier in force at the
// given age, 1.0 when no phase has been reached.
func (p *PlanInput) SpendingMultiplierAt(age int) float64 {
	m := 1.0
	for _, phase := range p.SpendingPhases {
		if age >= phase.Age {
			m = phase.Multiplier
		}
	}
	return m
}

// StatePensionAt returns the annual state pension income at the given age,
// zero before the pension age or when no pension is configured.
func (p *PlanInput) StatePensionAt(age int) float64 {
	if p.StatePensionAnnual > 0 && age >= p.StatePensionAge {
		return p.StatePensionAnnual
	}
	return 0
}
