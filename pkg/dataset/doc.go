// Package dataset reads the schema of a tabular dataset: its column names
// and a light per-column profile inferred from a bounded sample of rows.
// Profiles feed the rule-based classifier's evidence scoring and the schema
// validator's column-existence checks. Cell values are never interpreted
// statistically here; the backends own all numerical semantics.
package dataset
