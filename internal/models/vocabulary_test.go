package models

import "testing"

func TestAllowedRelationship(t *testing.T) {
	tests := []struct {
		name    string
		source  NodeKind
		target  NodeKind
		relType string
		want    bool
	}{
		{"R->D satisfies", KindRequirement, KindDesignElement, RelationshipSatisfies, true},
		{"R->D realizes", KindRequirement, KindDesignElement, RelationshipRealizes, true},
		{"R->D implements is out of vocabulary", KindRequirement, KindDesignElement, RelationshipImplement, false},
		{"D->D refines", KindDesignElement, KindDesignElement, RelationshipRefines, true},
		{"D->D depends_on", KindDesignElement, KindDesignElement, RelationshipDependsOn, true},
		{"D->D satisfies is out of vocabulary", KindDesignElement, KindDesignElement, RelationshipSatisfies, false},
		{"D->C implements", KindDesignElement, KindCodeComponent, RelationshipImplement, true},
		{"D->C refines is out of vocabulary", KindDesignElement, KindCodeComponent, RelationshipRefines, false},
		{"reversed pair is invalid", KindDesignElement, KindRequirement, RelationshipSatisfies, false},
		{"C->anything is invalid", KindCodeComponent, KindDesignElement, RelationshipRealizes, false},
		{"unclassified never passes", KindRequirement, KindDesignElement, RelationshipUnclassified, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AllowedRelationship(tt.source, tt.target, tt.relType); got != tt.want {
				t.Errorf("AllowedRelationship(%s, %s, %s) = %v, want %v",
					tt.source, tt.target, tt.relType, got, tt.want)
			}
		})
	}
}

func TestLinkKindPrefix(t *testing.T) {
	if got := LinkKindPrefix(KindRequirement, KindDesignElement); got != "RD" {
		t.Errorf("R->D prefix = %q", got)
	}
	if got := LinkKindPrefix(KindDesignElement, KindDesignElement); got != "DD" {
		t.Errorf("D->D prefix = %q", got)
	}
	if got := LinkKindPrefix(KindDesignElement, KindCodeComponent); got != "DC" {
		t.Errorf("D->C prefix = %q", got)
	}
	if got := LinkKindPrefix(KindCodeComponent, KindRequirement); got != "" {
		t.Errorf("invalid pair prefix = %q, want empty", got)
	}
}

func TestFindingHighPriority(t *testing.T) {
	tests := []struct {
		severity   Severity
		likelihood Likelihood
		want       bool
	}{
		{SeverityFundamental, Unlikely, true},
		{SeverityMajor, Unlikely, true},
		{SeverityModerate, VeryLikely, true},
		{SeverityModerate, Likely, true},
		{SeverityModerate, Possibly, false},
		{SeverityMinor, VeryLikely, false},
		{SeverityNone, VeryLikely, false},
	}
	for _, tt := range tests {
		f := Finding{Severity: tt.severity, Likelihood: tt.likelihood}
		if got := f.HighPriority(); got != tt.want {
			t.Errorf("HighPriority(%s, %s) = %v, want %v", tt.severity, tt.likelihood, got, tt.want)
		}
	}
}
