package models

// Relationship vocabulary per endpoint pair. Edges carrying any other
// combination are rejected before they reach the store.

const (
	RelationshipSatisfies = "satisfies"
	RelationshipRealizes  = "realizes"
	RelationshipRefines   = "refines"
	RelationshipDependsOn = "depends_on"
	RelationshipImplement = "implements"
)

var relationshipVocabulary = map[[2]NodeKind]map[string]bool{
	{KindRequirement, KindDesignElement}: {
		RelationshipSatisfies: true,
		RelationshipRealizes:  true,
	},
	{KindDesignElement, KindDesignElement}: {
		RelationshipRefines:   true,
		RelationshipDependsOn: true,
		RelationshipRealizes:  true,
	},
	{KindDesignElement, KindCodeComponent}: {
		RelationshipImplement: true,
		RelationshipRealizes:  true,
	},
}

// AllowedRelationship reports whether relType is valid for an edge from
// source to target.
func AllowedRelationship(source, target NodeKind, relType string) bool {
	vocab, ok := relationshipVocabulary[[2]NodeKind{source, target}]
	if !ok {
		return false
	}
	return vocab[relType]
}

// LinkKindPrefix returns the link-ID namespace for an endpoint pair
// ("RD", "DD" or "DC"), or "" when the pair is not a valid edge kind.
func LinkKindPrefix(source, target NodeKind) string {
	switch {
	case source == KindRequirement && target == KindDesignElement:
		return "RD"
	case source == KindDesignElement && target == KindDesignElement:
		return "DD"
	case source == KindDesignElement && target == KindCodeComponent:
		return "DC"
	}
	return ""
}
