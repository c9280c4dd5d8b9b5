package model

// QueryContext is the pre-indexed, read-only snapshot of every note handed
// to a hook or tree action for the duration of one invocation. It is built
// once per engine call and cleared afterward.
type QueryContext struct {
	byID     map[string]*Note
	byParent map[string][]*Note // key "" means root-level notes
	byType   map[string][]*Note
}

// NewQueryContext indexes notes by id, parent, and type. The slice is not
// retained; callers may reuse it afterward.
func NewQueryContext(notes []*Note) *QueryContext {
	qc := &QueryContext{
		byID:     make(map[string]*Note, len(notes)),
		byParent: make(map[string][]*Note),
		byType:   make(map[string][]*Note),
	}
	for _, n := range notes {
		qc.byID[n.ID] = n
		parentKey := ""
		if n.ParentID != nil {
			parentKey = *n.ParentID
		}
		qc.byParent[parentKey] = append(qc.byParent[parentKey], n)
		qc.byType[n.NodeType] = append(qc.byType[n.NodeType], n)
	}
	return qc
}

// Get returns the note with the given id, or nil if absent from the
// snapshot.
func (qc *QueryContext) Get(id string) *Note {
	if qc == nil {
		return nil
	}
	return qc.byID[id]
}

// Children returns the snapshot's children of parentID (parentID=="" for
// root-level notes), in storage order.
func (qc *QueryContext) Children(parentID string) []*Note {
	if qc == nil {
		return nil
	}
	return qc.byParent[parentID]
}

// OfType returns every snapshot note whose NodeType equals nodeType.
func (qc *QueryContext) OfType(nodeType string) []*Note {
	if qc == nil {
		return nil
	}
	return qc.byType[nodeType]
}

// ActionCreate is a buffered create_note() call pending application.
type ActionCreate struct {
	Note *Note
}

// ActionUpdate is a buffered update_note() call pending application. It
// replaces any prior update for the same note id.
type ActionUpdate struct {
	Note *Note
}

// ActionTxContext is the per-action mutable buffer scripts see while a
// tree action's closure runs: pending creates, pending updates, and a
// cache of notes the action has already touched so later get_note/
// get_children calls see the action's own in-flight writes.
type ActionTxContext struct {
	snapshot *QueryContext
	creates  []*ActionCreate
	updates  map[string]*ActionUpdate // keyed by note id
	cache    map[string]*Note         // shadows snapshot for ids the action created or updated
	reorder  []string                 // buffered child-ordering, if the action closure returned one
}

// NewActionTxContext builds an empty buffer over the given read-only
// snapshot.
func NewActionTxContext(snapshot *QueryContext) *ActionTxContext {
	return &ActionTxContext{
		snapshot: snapshot,
		updates:  make(map[string]*ActionUpdate),
		cache:    make(map[string]*Note),
	}
}

// GetNote resolves id against the action cache first, then the snapshot —
// the action cache shadows the snapshot.
func (tx *ActionTxContext) GetNote(id string) *Note {
	if n, ok := tx.cache[id]; ok {
		return n
	}
	return tx.snapshot.Get(id)
}

// Children returns the snapshot's children of parentID plus any buffered
// creates whose ParentID matches.
func (tx *ActionTxContext) Children(parentID string) []*Note {
	base := tx.snapshot.Children(parentID)
	out := make([]*Note, 0, len(base))
	out = append(out, base...)
	for _, c := range tx.creates {
		if c.Note.ParentID != nil && *c.Note.ParentID == parentID {
			out = append(out, c.Note)
		}
	}
	return out
}

// OfType delegates to the snapshot (buffered creates are not yet typed
// into the by-type index; callers needing freshly created notes of a type
// should consult Creates directly).
func (tx *ActionTxContext) OfType(nodeType string) []*Note {
	return tx.snapshot.OfType(nodeType)
}

// QueueCreate buffers a new note creation and caches it so subsequent
// get_note/get_children calls within the same action see it.
func (tx *ActionTxContext) QueueCreate(n *Note) {
	tx.creates = append(tx.creates, &ActionCreate{Note: n})
	tx.cache[n.ID] = n
}

// QueueUpdate buffers an update, or rewrites a still-pending create for
// the same id in place.
func (tx *ActionTxContext) QueueUpdate(n *Note) {
	for _, c := range tx.creates {
		if c.Note.ID == n.ID {
			c.Note = n
			tx.cache[n.ID] = n
			return
		}
	}
	tx.updates[n.ID] = &ActionUpdate{Note: n}
	tx.cache[n.ID] = n
}

// Creates returns the buffered creates in call order.
func (tx *ActionTxContext) Creates() []*ActionCreate { return tx.creates }

// Updates returns the buffered updates, keyed by note id.
func (tx *ActionTxContext) Updates() map[string]*ActionUpdate { return tx.updates }

// QueueReorder records the new child ordering a tree action closure
// returned. Overwrites any prior call within the same action.
func (tx *ActionTxContext) QueueReorder(ids []string) {
	tx.reorder = ids
}

// Reorder returns the buffered child ordering, or nil if the action
// closure did not return one.
func (tx *ActionTxContext) Reorder() []string { return tx.reorder }
