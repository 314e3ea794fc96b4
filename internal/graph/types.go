package graph

// EntityType is the semantic label assigned to a node. The set is closed.
type EntityType string

const (
	EntityGene       EntityType = "Gene"
	EntityTrait      EntityType = "Trait"
	EntityGenotype   EntityType = "Genotype"
	EntityQTL        EntityType = "QTL"
	EntityChromosome EntityType = "Chromosome"
	EntityMarker     EntityType = "Marker"
	EntityPathway    EntityType = "Pathway"
	EntityTrial      EntityType = "Trial"
	EntityLocation   EntityType = "Location"
	EntityWeather    EntityType = "Weather"
	EntityGeneric    EntityType = "Entity"
)

// EntityTypes lists every EntityType in reporting order.
var EntityTypes = []EntityType{
	EntityGene,
	EntityTrait,
	EntityGenotype,
	EntityQTL,
	EntityChromosome,
	EntityMarker,
	EntityPathway,
	EntityTrial,
	EntityLocation,
	EntityWeather,
	EntityGeneric,
}

// Relationship types referenced by the classifier and the coverage metrics.
const (
	RelRegulates      = "REGULATES"
	RelHasTrait       = "HAS_TRAIT"
	RelAssociatedWith = "ASSOCIATED_WITH"
	RelLocatedOn      = "LOCATED_ON"
	RelTestedIn       = "TESTED_IN"
	RelConductedIn    = "CONDUCTED_IN"
	RelParticipatesIn = "PARTICIPATES_IN"
	RelHasMarker      = "HAS_MARKER"
)

// Well-known relationship property keys.
const (
	PropSource     = "source"
	PropConfidence = "confidence"
	PropEvidence   = "evidence"
)

// Triple is one subject-predicate-object statement read from a source.
// Properties holds optional per-statement metadata (source tag, confidence).
type Triple struct {
	Subject    string         `json:"subject"`
	Predicate  string         `json:"predicate"`
	Object     string         `json:"object"`
	Properties map[string]any `json:"properties,omitempty"`
}

// Node is a vertex keyed by (Type, Name).
type Node struct {
	Type EntityType `json:"type"`
	Name string     `json:"name"`
}

// ID returns the stable node identifier "<Type>:<name>".
func (n Node) ID() string {
	return NodeID(n.Type, n.Name)
}

// Relationship is a directed typed edge between two nodes.
type Relationship struct {
	From       Node           `json:"from"`
	Type       string         `json:"type"`
	To         Node           `json:"to"`
	Properties map[string]any `json:"properties,omitempty"`
}

// Key identifies a relationship for idempotent merging.
func (r Relationship) Key() string {
	return r.From.ID() + "|" + r.Type + "|" + r.To.ID()
}

// Snapshot is a point-in-time view of a graph store.
type Snapshot struct {
	Nodes         []Node         `json:"nodes"`
	Relationships []Relationship `json:"relationships"`
}

func NodeID(t EntityType, name string) string {
	return string(t) + ":" + name
}

func IsEntityType(x EntityType) bool {
	switch x {
	case EntityGene, EntityTrait, EntityGenotype, EntityQTL, EntityChromosome, EntityMarker,
		EntityPathway, EntityTrial, EntityLocation, EntityWeather, EntityGeneric:
		return true
	default:
		return false
	}
}
