// Package maven reads payload builds from a Maven repository.
//
// LatestVersion resolves the newest release from maven-metadata.xml, Fetch
// installs the artifact into the launch home after checking the published
// SHA-1, and Signature downloads the armored detached signature.
package maven
