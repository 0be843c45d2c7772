// Package memory holds the mutable, per-persona state that learning builds
// up over time: liked and disliked entities, learned weights, preferences and
// reward history.
//
// Each persona owns an isolated PersonaMemoryState. The Store never shares
// substructure between personas or with callers: GetState returns a deep
// copy and Mutate is the only write path.
//
// # Persistence
//
// Writes are debounced. Every mutation resets a timer (one second by
// default) and the whole store is serialized only when the timer fires
// without interruption. Mutations made after the last write are lost if the
// process exits without calling Flush, so binaries must Flush on shutdown.
//
// Two Persister backends are provided: FilePersister writes a single JSON
// document atomically, SQLitePersister keeps the same document in a SQLite
// row.
package memory
