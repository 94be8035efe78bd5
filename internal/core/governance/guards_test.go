package governance

import "testing"

func TestCanSetChannel(t *testing.T) {
	tests := []struct {
		name        string
		ctx         SetChannelContext
		wantAllowed bool
		wantReason  string
	}{
		{
			name:        "valid request",
			ctx:         SetChannelContext{Channel: "beta", Reason: "canary"},
			wantAllowed: true,
		},
		{
			name:        "channel is case insensitive",
			ctx:         SetChannelContext{Channel: " DEV ", Reason: "try"},
			wantAllowed: true,
		},
		{
			name:        "missing reason",
			ctx:         SetChannelContext{Channel: "beta", Reason: "  "},
			wantAllowed: false,
			wantReason:  "set_channel requires a non-empty reason",
		},
		{
			name:        "unknown channel",
			ctx:         SetChannelContext{Channel: "nightly", Reason: "x"},
			wantAllowed: false,
			wantReason:  `unknown channel "nightly": must be one of stable, beta, dev`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CanSetChannel(tt.ctx)
			if result.Allowed != tt.wantAllowed {
				t.Errorf("Allowed = %v, want %v", result.Allowed, tt.wantAllowed)
			}
			if tt.wantReason != "" && result.Reason != tt.wantReason {
				t.Errorf("Reason = %q, want %q", result.Reason, tt.wantReason)
			}
		})
	}
}

func TestCanRollback(t *testing.T) {
	if r := CanRollback(ReasonContext{Reason: "bad deploy"}); !r.Allowed {
		t.Errorf("expected rollback with reason to be allowed, got %q", r.Reason)
	}

	r := CanRollback(ReasonContext{})
	if r.Allowed {
		t.Fatal("expected rollback without reason to be rejected")
	}
	if r.Reason != "rollback requires a non-empty reason" {
		t.Errorf("Reason = %q", r.Reason)
	}

	r = CanRollback(ReasonContext{Action: ActionRollbackCleared})
	if r.Reason != "rollback_cleared requires a non-empty reason" {
		t.Errorf("Reason = %q", r.Reason)
	}
}

func TestCanPinStable(t *testing.T) {
	tests := []struct {
		name        string
		ctx         PinStableContext
		wantAllowed bool
	}{
		{"has scenes", PinStableContext{Reason: "release", StableSceneCount: 3}, true},
		{"empty contract", PinStableContext{Reason: "release"}, false},
		{"missing reason", PinStableContext{StableSceneCount: 3}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CanPinStable(tt.ctx)
			if result.Allowed != tt.wantAllowed {
				t.Errorf("Allowed = %v, want %v (reason %q)", result.Allowed, tt.wantAllowed, result.Reason)
			}
		})
	}
}

func TestCanExportContract(t *testing.T) {
	if r := CanExportContract(ExportContractContext{Channel: "stable", Reason: "audit"}); !r.Allowed {
		t.Errorf("expected export to be allowed, got %q", r.Reason)
	}
	if r := CanExportContract(ExportContractContext{Channel: "", Reason: "audit"}); r.Allowed {
		t.Error("expected export without channel to be rejected")
	}
	if r := CanExportContract(ExportContractContext{Channel: "beta"}); r.Allowed {
		t.Error("expected export without reason to be rejected")
	}
}

func TestGuardResult_Error(t *testing.T) {
	if err := (GuardResult{Allowed: true}).Error(); err != nil {
		t.Errorf("expected nil error, got %v", err)
	}
	err := (GuardResult{Allowed: false, Reason: "nope"}).Error()
	if err == nil || err.Error() != "nope" {
		t.Errorf("Error() = %v, want nope", err)
	}
}
