package policy

// Hooks receives high signal cache events. Implementations must be cheap
// and safe for concurrent use.
type Hooks interface {
	Hit(tag string)
	Miss(tag string)
	// Stale fires when a cached full set failed validation.
	Stale(tag string)
	// Invalidated fires once per write or clear.
	Invalidated(tag string)
	// Reload fires after a full set was loaded from the source.
	Reload(tag string, items int)
}

type NopHooks struct{}

func (NopHooks) Hit(string)         {}
func (NopHooks) Miss(string)        {}
func (NopHooks) Stale(string)       {}
func (NopHooks) Invalidated(string) {}
func (NopHooks) Reload(string, int) {}
