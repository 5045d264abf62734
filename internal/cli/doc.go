// Package cli implements the reviewmesh command tree.
package cli
