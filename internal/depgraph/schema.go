package depgraph

// DocumentNode represents an indexed workflow document.
type DocumentNode struct {
	URI          string `json:"uri"`
	Declarations int    `json:"declarations"`
}

// Impact lists the documents that import a set of changed documents.
type Impact struct {
	Direct     []string `json:"direct"`     // documents importing a changed one
	Transitive []string `json:"transitive"` // full upstream closure, including Direct
}

// GraphStats summarizes a dependency graph.
type GraphStats struct {
	DocumentCount int `json:"documentCount"`
	ImportCount   int `json:"importCount"`
}
