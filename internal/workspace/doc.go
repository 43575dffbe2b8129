// Package workspace manages directories inside the job workspace: scratch
// directories used during packaging, output directories and clean-up of
// previous build products.
package workspace
