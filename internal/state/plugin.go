package state

// PluginKey identifies a plugin's state slot. Keys compare by identity.
type PluginKey struct {
	name string
}

// NewPluginKey returns a fresh key.
func NewPluginKey(name string) *PluginKey { return &PluginKey{name: name} }

// String returns the key's name.
func (k *PluginKey) String() string { return k.name }

// GetState returns the plugin value stored in st under k, or nil.
func (k *PluginKey) GetState(st *EditorState) any {
	if st == nil {
		return nil
	}
	return st.fields[k]
}

// Plugin contributes a derived value to the editor state and may append
// transactions after each apply.
type Plugin struct {
	Key *PluginKey

	// Init computes the plugin's value for a freshly created state.
	Init func(st *EditorState) any

	// Apply computes the next value from the previous one. It runs once per
	// applied transaction.
	Apply func(tr *Transaction, value any, oldState, newState *EditorState) any

	// AppendTransaction may return a follow-up transaction, created from
	// newState, in response to trs. Returning nil appends nothing.
	AppendTransaction func(trs []*Transaction, oldState, newState *EditorState) *Transaction
}
