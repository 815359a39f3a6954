// Package backup keeps a bounded, rotating history of full-collection snapshots.
//
// # Storage layout
//
// The index of snapshot metadata and the snapshot payloads are kept under
// separate keys of the same store:
//
//	markbook-backup-index         JSON array of Entry, oldest first
//	markbook-backup-<id>          serialized course collection
//
// The index is small and rewritten on every change; payloads are written once
// and only deleted, never modified.
//
// # Rotation
//
// At most MaxBackups entries are kept. When a new snapshot pushes the index over
// the cap the oldest entries by timestamp are dropped together with their
// payloads. Labels do not protect an entry from rotation.
//
// # Safety snapshots
//
// Operations that overwrite or remove data take a snapshot first:
//
//	RestoreFromBackup   -> LabelBeforeRestore
//	SafeDeleteCourse    -> LabelBeforeDelete
//	SafeDeleteTest      -> LabelBeforeDelete
//	SafeDeleteStudent   -> LabelBeforeDelete
//
// The import and sync packages take LabelBeforeImport and LabelBeforeSync
// snapshots through the same Manager.
//
// A snapshot of an empty collection is never written; CreateBackup returns
// (nil, nil) in that case.
package backup
