package tracker

import (
	"fmt"
	"log/slog"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
)

// WriteJSON writes a summary object for the tracker. With detailed set, the
// object also carries every range in address order.
func (t *Tracker) WriteJSON(w *jwriter.Writer, detailed bool) {
	t.mu.RLock()
	count, bytes := t.count, t.bytes
	height := t.height(t.root)
	total, free := t.arena.slots()
	t.mu.RUnlock()

	obj := w.Object()
	obj.Name("Ranges").Int(count)
	obj.Name("Bytes").Int(int(bytes))
	obj.Name("Height").Int(height)
	obj.Name("ArenaSlots").Int(total)
	obj.Name("FreeSlots").Int(free)
	if detailed {
		arr := obj.Name("Allocations").Array()
		t.Walk(func(r Record) bool {
			o := w.Object()
			o.Name("Address").String(fmt.Sprintf("%#x", r.Address))
			o.Name("Size").Int(int(r.Size))
			o.End()
			return true
		})
		arr.End()
	}
	obj.End()
}

// MarshalJSON implements json.Marshaler with the detailed form of WriteJSON.
func (t *Tracker) MarshalJSON() ([]byte, error) {
	w := jwriter.NewWriter()
	t.WriteJSON(&w, true)
	return w.Bytes(), w.Error()
}

// DebugLog logs every tracked range at debug level.
func (t *Tracker) DebugLog(log *slog.Logger) {
	t.Walk(func(r Record) bool {
		log.Debug("external range",
			slog.String("address", fmt.Sprintf("%#x", r.Address)),
			slog.Uint64("size", uint64(r.Size)),
			slog.Uint64("priority", r.Priority))
		return true
	})
}
