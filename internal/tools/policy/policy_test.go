package policy

import (
	"testing"

	"github.com/steward-ai/steward/pkg/models"
)

func TestEvaluateMatrix(t *testing.T) {
	p := New([]string{"fs.read"}, []string{"shell.exec"})

	tests := []struct {
		name string
		tool string
		risk models.RiskLevel
		want Action
	}{
		{"explicit deny beats safe risk", "shell.exec", models.RiskSafe, Deny},
		{"explicit deny beats confirm risk", "shell.exec", models.RiskConfirm, Deny},
		{"explicit deny beats dangerous risk", "shell.exec", models.RiskDangerous, Deny},
		{"explicit confirm beats safe risk", "fs.read", models.RiskSafe, Confirm},
		{"explicit confirm beats dangerous risk", "fs.read", models.RiskDangerous, Confirm},
		{"safe default allows", "web.search", models.RiskSafe, Allow},
		{"confirm default confirms", "fs.write", models.RiskConfirm, Confirm},
		{"dangerous default denies", "system.wipe", models.RiskDangerous, Deny},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.Evaluate(tt.tool, tt.risk)
			if got.Action != tt.want {
				t.Errorf("Evaluate(%s, %s) = %s, want %s", tt.tool, tt.risk, got.Action, tt.want)
			}
			if got.Reason == "" {
				t.Error("Decision.Reason is empty")
			}
		})
	}
}

func TestZeroValuePolicy(t *testing.T) {
	var p *Policy
	if got := p.Evaluate("anything", models.RiskSafe); got.Action != Allow {
		t.Errorf("nil policy safe = %s, want allow", got.Action)
	}
	if got := p.Evaluate("anything", models.RiskDangerous); got.Action != Deny {
		t.Errorf("nil policy dangerous = %s, want deny", got.Action)
	}
}

func TestDenyListCheckedBeforeConfirmList(t *testing.T) {
	p := New([]string{"tool.x"}, []string{"tool.x"})
	if got := p.Evaluate("tool.x", models.RiskSafe); got.Action != Deny {
		t.Errorf("deny+confirm listed tool = %s, want deny", got.Action)
	}
}
