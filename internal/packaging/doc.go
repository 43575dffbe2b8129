// Package packaging turns built application bundles into distributable IPA
// archives, zips their debug symbols and renders over-the-air install manifests.
package packaging
