// Package media provides the buffer type that flows between pipeline
// components.
//
// A Buffer carries an opaque payload, its timing (PTS, DTS, duration), a
// small typed attribute set and a list of release closures. Several
// subsystems may each hang cleanup on the same buffer, for example a
// decoder returning its output slot and a sink unmapping a surface:
//
//	buf := media.NewBuffer(frame)
//	buf.AddReleaseFunc(func() { decoder.ReturnSlot(slot) })
//	buf.AddReleaseFunc(func() { surface.Unmap() })
//
//	next := buf.Retain() // hand a reference downstream
//	buf.Release()
//	next.Release()       // last reference: closures run in order, once
package media
