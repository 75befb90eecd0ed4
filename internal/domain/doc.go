// Package domain sizes low-pressure vent and flare headers for oil and water
// storage tanks and checks the available venting capacity against the vapor
// inflow the tanks and process streams can generate.
//
// # Units
//
// The engine does not convert units. Inputs follow the field conventions of
// closed vent system walkdowns:
//
//	pipe diameters      inches (internal diameter, not nominal)
//	pipe lengths        feet
//	tank sizes          bbl
//	production rates    bbl/day
//	stage pressures     psig
//	device setpoints    oz (osig), informational only
//	capacities          MMSCFD per √psi of available pressure drop
//	inflows             MMSCFD
//
// # Hydraulics
//
// Every pipe run is reduced to an equivalent length (Le) of straight pipe:
//
//	Le = developed length
//	   + Σ count × (ID/12) × multiplier        fittings, see [FittingMultiplier]
//	   + Σ area-change losses                  knockouts, see [EquivalentLength]
//	   + Σ 100·891·ID⁵ / (12·S(ID)·Cv²)        specialty valves
//
// where S(D) = 1 + 3.6/D + 0.03·D is the Spitzglass factor.
//
// Runs of different bore are rescaled to the reference bore (3.068 in, NPS 3
// schedule 40) before summation:
//
//	Lref = Le × S(ID) × Dref⁵ / (ID⁵ × S(Dref))
//
// and the header capacity follows the low-pressure Spitzglass relation:
//
//	Q = √(0.22437 × Dref⁵ / (ΣLref × S(Dref)))
//
// A header with no piping has no capacity at all, which is reported as
// unconfigured rather than zero. See [Capacity].
//
// # Vapor inflow
//
// Thermal breathing is 1.0 SCFH per bbl of oil storage and 0.6 SCFH per bbl
// of water storage. Flash inflow uses a lab-measured flash factor and vapor
// molecular weight when both parse as numbers, otherwise a pressure-correlated
// fallback (see [ResolveFlashEstimate]). Manual sources are taken literally
// and are not rescaled to MMSCFD.
//
// # Fingerprints
//
// Every assessment carries a deterministic ID: a SHA-256 of the canonical
// site JSON. Identical inputs always produce identical IDs and identical
// results, so downstream consumers can upsert idempotently and the service
// can cache by fingerprint.
package domain
