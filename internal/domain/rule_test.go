package domain

import (
	"errors"
	"testing"
)

func TestAffinityRule_Validate(t *testing.T) {
	valid := AffinityRule{
		Name:    "web-apart",
		Kind:    RuleApartRequired,
		Members: []string{"vm1", "vm2"},
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Expected valid rule, got %v", err)
	}

	cases := []struct {
		name string
		rule AffinityRule
	}{
		{"missing name", AffinityRule{Kind: RuleApartRequired, Members: []string{"a", "b"}}},
		{"unknown kind", AffinityRule{Name: "r", Kind: "SOMEWHERE_ELSE", Members: []string{"a", "b"}}},
		{"single member", AffinityRule{Name: "r", Kind: RuleTogetherRequired, Members: []string{"a"}}},
		{"duplicate member", AffinityRule{Name: "r", Kind: RuleApartRequired, Members: []string{"a", "a"}}},
		{"empty member", AffinityRule{Name: "r", Kind: RuleApartRequired, Members: []string{"a", ""}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.rule.Validate()
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("Expected ErrInvalidArgument, got %v", err)
			}
		})
	}
}

func TestAffinityRule_HasMember(t *testing.T) {
	rule := AffinityRule{Members: []string{"vm1", "vm2"}}
	if !rule.HasMember("vm1") {
		t.Error("Expected vm1 to be a member")
	}
	if rule.HasMember("vm3") {
		t.Error("Expected vm3 not to be a member")
	}
}
