// Package git reads source-control metadata for the project being built.
//
// The pipeline records the HEAD commit and branch of the checkout next to
// each build so history entries and published events can be traced back to
// the sources that produced them. Reads are best-effort: a project that is
// not inside a repository simply yields an empty Head.
package git
