// Package credentials persists the wireless network credentials the node
// was provisioned with.
//
// Two backends satisfy Store:
//
//   - FileStore writes a fixed 512-byte record (name, secret, configured
//     flag) atomically, the layout the lamp firmware used in flash.
//   - SQLiteStore keeps a single row in the node database.
//
// A record is usable only when Configured is true and NetworkName is
// non-empty; anything else is treated as "not configured" and never used
// to attempt an association.
package credentials
