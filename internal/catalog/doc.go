// Package catalog holds ready-made service definitions and the stacks that
// combine them.
//
// Constructors return unregistered services; callers register them with
// giac.Configured so they can adjust fields first. Services that should be
// reachable through the reverse proxy embed traefik.Exposure.
package catalog
