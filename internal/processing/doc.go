// Package processing converts validated raw artifacts into analysis-ready
// representations by applying a declared, named transformation.
//
// Two artifact formats are supported: ESRI ASCII grid rasters ("grid") and
// CSV tables ("table"). Transformations are deterministic: identical
// (artifact, transformation) inputs always produce byte-identical output,
// which is why all numeric output goes through a single canonical float
// formatting path.
//
// The package never touches the cache; its only effect is the returned
// ProcessedArtifact.
package processing
