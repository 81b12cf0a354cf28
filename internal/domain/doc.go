// Package domain models the water balance of a utility network.
//
// # Flow Stages
//
// Water volume is accounted for at three metering stages each month:
//
//	L1  bulk supply entering the network from the main meter
//	L2  volume entering zone distribution (sum of zone bulk meters plus direct connections)
//	L3  volume reaching end users (individual meters plus direct connections)
//
// Losses are the differences between consecutive stages:
//
//	Stage01Loss = L1 - L2
//	Stage02Loss = L2 - L3
//	TotalLoss   = Stage01Loss + Stage02Loss  (= L1 - L3)
//
// Losses may be negative. Submeters that read higher than their bulk meter
// and billing-cycle offsets both produce negative loss; neither is an error.
//
// # Zones
//
// Each zone has a bulk meter and a set of individual submeters. The zone
// series stores three sequences (bulk, individual, loss) aligned by month
// index, and a zone's loss is bulk minus individual.
//
// # Derived Fields
//
// [Recompute] overwrites every derived field from the primary readings.
// [Validate] audits stored derived fields against the same arithmetic and
// reports each field that differs by more than [Tolerance]. Uploaded files
// are validated before they are recomputed so stale precomputed losses are
// surfaced to the user as warnings while the repaired data is displayed.
//
// # Ratios
//
// Every percentage in the view helpers resolves to 0 when its denominator
// is zero or negative.
package domain
