// Package backup implements persistence for binary snapshots.
//
// The FileStore keeps one directory per backup id, each holding the snapshot
// itself and a metadata.yaml record, and exposes a Store interface that the
// backup and rollback services depend on.
package backup
