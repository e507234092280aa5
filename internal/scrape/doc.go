// Package scrape implements the profile media pipeline: the profile crawler,
// the per-post processor, and the link-to-media resolver. Browser access,
// downloads and the operator gate are supplied through the interfaces in
// interfaces.go so the pipeline can run against fakes in tests.
package scrape
