package quality

import (
	"context"
	"testing"

	v1 "github.com/karl-ai/corehub/pkg/api/v1"
)

type fixedRunner struct {
	tests, lint, typeCheck, format bool
}

func (f fixedRunner) RunTests(ctx context.Context) v1.QualityCheck {
	return v1.QualityCheck{Name: "tests", Passed: f.tests}
}

func (f fixedRunner) RunLint(ctx context.Context) v1.QualityCheck {
	return v1.QualityCheck{Name: "lint", Passed: f.lint}
}

func (f fixedRunner) RunTypeCheck(ctx context.Context) v1.QualityCheck {
	return v1.QualityCheck{Name: "type_check", Passed: f.typeCheck}
}

func (f fixedRunner) RunFormatCheck(ctx context.Context) v1.QualityCheck {
	return v1.QualityCheck{Name: "format", Passed: f.format}
}

func TestReportIsConjunction(t *testing.T) {
	cases := []struct {
		name   string
		runner fixedRunner
		want   bool
	}{
		{"all pass", fixedRunner{true, true, true, true}, true},
		{"tests fail", fixedRunner{false, true, true, true}, false},
		{"format fails", fixedRunner{true, true, true, false}, false},
		{"all fail", fixedRunner{}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			report := Run(context.Background(), tc.runner)
			if report.Passed != tc.want {
				t.Errorf("Passed = %v, want %v", report.Passed, tc.want)
			}
			if len(report.Checks) != 4 {
				t.Errorf("checks = %d, want 4", len(report.Checks))
			}
		})
	}
}

func TestSimulatedRunnerAlwaysPasses(t *testing.T) {
	report := Run(context.Background(), SimulatedRunner{})
	if !report.Passed {
		t.Error("simulated report should pass")
	}
	for _, check := range report.Checks {
		if !check.Passed {
			t.Errorf("check %s did not pass", check.Name)
		}
	}
}
