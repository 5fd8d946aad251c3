package workflow

import "testing"

func testDescriptor() *Descriptor {
	return &Descriptor{
		ID:             "default",
		States:         []string{"planning", "implementation", "review", "shipment"},
		TerminalStates: []string{"shipped", "abandoned"},
		Owners: map[string]OwnerKind{
			"shipment": OwnerHuman,
		},
	}
}

func TestResolveStep(t *testing.T) {
	d := testDescriptor()

	tests := []struct {
		name      string
		state     string
		wantStep  string
		wantPhase Phase
		wantNil   bool
	}{
		{
			name:      "active step resolves to active phase",
			state:     "implementation",
			wantStep:  "implementation",
			wantPhase: PhaseActive,
		},
		{
			name:      "queued step resolves to queued phase",
			state:     "ready_for_implementation",
			wantStep:  "implementation",
			wantPhase: PhaseQueued,
		},
		{
			name:    "empty state resolves to nil",
			state:   "",
			wantNil: true,
		},
		{
			name:    "terminal state resolves to nil",
			state:   "shipped",
			wantNil: true,
		},
		{
			name:    "deferred resolves to nil",
			state:   "deferred",
			wantNil: true,
		},
		{
			name:    "unrecognized state resolves to nil",
			state:   "triage",
			wantNil: true,
		},
		{
			name:    "ready_for_ with unrecognized step resolves to nil",
			state:   "ready_for_triage",
			wantNil: true,
		},
		{
			name:    "bare ready_for_ prefix resolves to nil",
			state:   "ready_for_",
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveStep(d, tt.state)
			if tt.wantNil {
				if got != nil {
					t.Fatalf("ResolveStep(%q) = %+v, want nil", tt.state, got)
				}
				return
			}
			if got == nil {
				t.Fatalf("ResolveStep(%q) = nil, want {%s %s}", tt.state, tt.wantStep, tt.wantPhase)
			}
			if got.Step != tt.wantStep || got.Phase != tt.wantPhase {
				t.Errorf("ResolveStep(%q) = {%s %s}, want {%s %s}", tt.state, got.Step, got.Phase, tt.wantStep, tt.wantPhase)
			}
		})
	}
}

func TestResolveStepRoundTrip(t *testing.T) {
	d := testDescriptor()

	// Every step name must round-trip exactly in both phases.
	for _, step := range d.States {
		got := ResolveStep(d, step)
		if got == nil || got.Step != step || got.Phase != PhaseActive {
			t.Errorf("ResolveStep(%q) = %+v, want {%s active}", step, got, step)
		}

		queued := QueuedName(step)
		got = ResolveStep(d, queued)
		if got == nil || got.Step != step || got.Phase != PhaseQueued {
			t.Errorf("ResolveStep(%q) = %+v, want {%s queued}", queued, got, step)
		}
	}
}

func TestResolveStepNilDescriptor(t *testing.T) {
	if got := ResolveStep(nil, "implementation"); got != nil {
		t.Errorf("ResolveStep(nil, ...) = %+v, want nil", got)
	}
}

func TestRollbackActivePhase(t *testing.T) {
	d := testDescriptor()

	tests := []struct {
		name  string
		state string
		want  string
	}{
		{"active rolls back to queued", "implementation", "ready_for_implementation"},
		{"queued passes through", "ready_for_implementation", "ready_for_implementation"},
		{"terminal passes through", "shipped", "shipped"},
		{"deferred passes through", "deferred", "deferred"},
		{"unrecognized passes through", "triage", "triage"},
		{"empty passes through", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RollbackActivePhase(d, tt.state)
			if got != tt.want {
				t.Errorf("RollbackActivePhase(%q) = %q, want %q", tt.state, got, tt.want)
			}
			// Idempotence: applying twice equals applying once.
			if again := RollbackActivePhase(d, got); again != got {
				t.Errorf("RollbackActivePhase not idempotent: %q -> %q -> %q", tt.state, got, again)
			}
		})
	}
}

func TestDeriveRuntimeState(t *testing.T) {
	d := testDescriptor()

	tests := []struct {
		name          string
		state         string
		wantClaimable bool
		wantHuman     bool
		wantOwner     OwnerKind
		wantNext      string
	}{
		{
			name:          "queued agent-owned step is claimable",
			state:         "ready_for_implementation",
			wantClaimable: true,
			wantOwner:     OwnerAgent,
			wantNext:      "implementation",
		},
		{
			name:      "queued human-owned step requires human action",
			state:     "ready_for_shipment",
			wantHuman: true,
			wantOwner: OwnerHuman,
			wantNext:  "shipment",
		},
		{
			name:      "active step carries no next action",
			state:     "implementation",
			wantOwner: OwnerNone,
		},
		{
			name:      "terminal state carries no next action",
			state:     "shipped",
			wantOwner: OwnerNone,
		},
		{
			name:      "unrecognized state carries no next action",
			state:     "garbage",
			wantOwner: OwnerNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeriveRuntimeState(d, tt.state)
			if got.State != tt.state {
				t.Errorf("State = %q, want %q", got.State, tt.state)
			}
			if got.IsAgentClaimable != tt.wantClaimable {
				t.Errorf("IsAgentClaimable = %v, want %v", got.IsAgentClaimable, tt.wantClaimable)
			}
			if got.RequiresHumanAction != tt.wantHuman {
				t.Errorf("RequiresHumanAction = %v, want %v", got.RequiresHumanAction, tt.wantHuman)
			}
			if got.NextActionOwnerKind != tt.wantOwner {
				t.Errorf("NextActionOwnerKind = %q, want %q", got.NextActionOwnerKind, tt.wantOwner)
			}
			if got.NextActionState != tt.wantNext {
				t.Errorf("NextActionState = %q, want %q", got.NextActionState, tt.wantNext)
			}
		})
	}
}

func TestDeriveRuntimeStateDefaultsOwnerToAgent(t *testing.T) {
	// A descriptor with no owners entry defaults every step to agent.
	d := &Descriptor{ID: "bare", States: []string{"review"}}

	got := DeriveRuntimeState(d, "ready_for_review")
	if !got.IsAgentClaimable {
		t.Error("expected queued step with no owners entry to be agent-claimable")
	}
	if got.RequiresHumanAction {
		t.Error("expected no human action for default-owned step")
	}
}

func TestIsTerminal(t *testing.T) {
	d := testDescriptor()

	if !IsTerminal(d, "shipped") || !IsTerminal(d, "abandoned") {
		t.Error("expected shipped and abandoned to be terminal")
	}
	if IsTerminal(d, "deferred") {
		t.Error("deferred is a hold state, not terminal")
	}
	if IsTerminal(d, "implementation") || IsTerminal(d, "") {
		t.Error("expected non-terminal states to report false")
	}
}

func TestCanTransition(t *testing.T) {
	open := testDescriptor() // no explicit edges: everything allowed
	if !CanTransition(open, "planning", "implementation") {
		t.Error("descriptor without edges should allow any transition")
	}

	edged := &Descriptor{
		ID:     "edged",
		States: []string{"planning", "implementation"},
		Transitions: []Transition{
			{From: "planning", To: "implementation"},
			{From: "*", To: "abandoned"},
		},
	}

	tests := []struct {
		from, to string
		want     bool
	}{
		{"planning", "implementation", true},
		{"implementation", "planning", false},
		{"implementation", "abandoned", true}, // wildcard from-edge
		{"planning", "abandoned", true},
		{"planning", "", false},
	}
	for _, tt := range tests {
		if got := CanTransition(edged, tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}
