// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// Taxon is one taxonomy entry. Lineage is the full "; "-delimited path from
// the root to and including ScientificName.
type Taxon struct {
	ID             int64  `json:"taxon_id" yaml:"taxon_id"`
	ScientificName string `json:"scientific_name" yaml:"scientific_name"`
	Lineage        string `json:"lineage" yaml:"lineage"`
}
