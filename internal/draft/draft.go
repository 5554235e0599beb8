// internal/draft/draft.go
//
// Drafts capture in-progress edits so closing the editor never loses work.
// A draft is keyed by record identity: "new" until the server assigns an id,
// then by that id.

package draft

import (
	"fmt"
	"time"

	"github.com/drvillela/expediente/internal/expedient"
)

// FormatVersion is embedded in stored drafts so future readers can detect
// snapshots written by older builds.
const FormatVersion = 1

// Key identifies which record a draft belongs to. The zero Key is the
// "new record" key.
type Key struct {
	id int
}

// NewKey returns the key for a record that has no server id yet.
func NewKey() Key { return Key{} }

// ByID returns the key for an existing record.
func ByID(id int) Key { return Key{id: id} }

// IsNew reports whether the key refers to an unsaved record.
func (k Key) IsNew() bool { return k.id == 0 }

// RecordID returns the record id, or zero for a new record.
func (k Key) RecordID() int { return k.id }

// String renders the storage key, e.g. "draft:new" or "draft:42".
func (k Key) String() string {
	if k.IsNew() {
		return "draft:new"
	}
	return fmt.Sprintf("draft:%d", k.id)
}

// Draft is one locally persisted snapshot of unsaved edits: every sub-form's
// values plus attachment previews. Raw attachment bytes are never stored
// locally; a restored pending slot keeps its preview but needs the file
// re-attached before it can upload.
type Draft struct {
	Version  int                       `json:"version"`
	Values   expedient.RecordValues    `json:"values"`
	Previews map[expedient.Slot]string `json:"previews,omitempty"`
	SavedAt  time.Time                 `json:"savedAt"`
}

// Empty reports whether the draft carries no values and no previews.
func (d Draft) Empty() bool {
	return len(d.Values) == 0 && len(d.Previews) == 0
}

// Clone deep-copies the draft.
func (d Draft) Clone() Draft {
	out := Draft{Version: d.Version, SavedAt: d.SavedAt}
	out.Values = d.Values.Clone()
	if len(d.Previews) > 0 {
		out.Previews = make(map[expedient.Slot]string, len(d.Previews))
		for slot, preview := range d.Previews {
			out.Previews[slot] = preview
		}
	}
	return out
}
