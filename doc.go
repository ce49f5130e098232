package cabinet

// Package cabinet hydrates raw, weakly typed input into typed record graphs.
//
// - A record type declares an ordered schema of field name -> type string
//   (`string`, `int`, `\App\Flight`, `\App\Flight[]`, `string|null`, `mixed`, ...)
// - Scalars are cast best-effort when a record is constructed; failures become defaults, never errors
// - Record-valued fields are deferred and built on first access, exactly once
// - Parents may take over construction of a child type through scoped consumers
//
// Design policy:
// - Keep the public API in the root package; decoding of input files lives in source/,
//   schema definition files in schemafile/, and the CLI under cmd/cabinet.
// - Schemas are data: declared in Go through TypeDef or loaded from YAML/JSON.
// - The core performs no I/O. Context flows through resolution so consumers can reach
//   host services (WithService) and reentrant resolution is detected.
//
// Typical usage:
//
//	flight := cabinet.MustRegister(cabinet.TypeDef{
//		Name:   `\Travel\Flight`,
//		Fields: []cabinet.Field{{Name: "origin", Type: "string"}},
//	})
//	booking := cabinet.MustRegister(cabinet.TypeDef{
//		Name:   `\Travel\Booking`,
//		Fields: []cabinet.Field{{Name: "flights", Type: `\Travel\Flight[]`}},
//	})
//	rec, err := cabinet.New(ctx, booking, raw)
//	flights, err := rec.Many(ctx, "flights")
//
