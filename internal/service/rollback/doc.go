// Package rollback restores components to captured snapshots after failed
// upgrades or on operator request.
package rollback
