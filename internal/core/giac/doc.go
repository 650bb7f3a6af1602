// Package giac is the functional core of the compose compiler.
//
// It holds the declarative service model and the compilation context that
// every service registers into. Nothing in this package performs I/O; the
// orchestration transformer (package compose) and the persistence handlers
// (package persist) consume what is built here.
//
// # Values
//
// Most configuration fields are a Value: either a literal or a function of the
// compilation Context. Deferred values are resolved once per use and never
// re-resolved:
//
//	name := giac.Deferred(func(cc *giac.Context, _ ...any) string {
//	    return cc.ResolvedName() + "_db"
//	})
//	name.Resolve(cc) // "appx_db"
//
// # Lifecycle
//
// A compilation run creates one Context, registers services with Configured,
// lets cross-cutting components Subscribe, then calls Finalize which fires the
// subscribers once and returns the immutable Services set:
//
//	cc := giac.NewContext(".", giac.Literal("appx"))
//	db := giac.Configured(cc, giac.NewTypicalServiceConfig("db", giac.ImageNamed("postgres:13")))
//	services, err := cc.Finalize()
package giac
