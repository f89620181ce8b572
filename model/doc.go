// Package model defines the record types shared by the codec, the index and
// the fetch layer.
//
// # Identity
//
//   - Record.ID: stable, unique identifier of an indexed chunk
//   - Row: dense position of a record inside a loaded index; row i of the
//     embedding matrix belongs to record i
//
// # Anchors
//
// An Anchor locates a chunk inside the content behind Record.Reference:
//
//	model.RangeAnchor(120, 480)          // bytes [120, 480)
//	model.HeadingAnchor("Symptoms")      // markdown section "Symptoms"
package model
