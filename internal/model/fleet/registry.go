package fleet

// Registry exposes domain lookup for handlers and services.
type Registry interface {
	List() []Domain
	FindByTag(tag string) (Domain, bool)
}

// MemoryRegistry implements Registry with an in-memory slice; the domain set
// never changes after startup.
type MemoryRegistry struct {
	items []Domain
}

// NewMemoryRegistry returns a MemoryRegistry preloaded with the supplied domains.
func NewMemoryRegistry(items []Domain) *MemoryRegistry {
	return &MemoryRegistry{items: append([]Domain(nil), items...)}
}

// List returns the configured domain list.
func (r *MemoryRegistry) List() []Domain {
	return append([]Domain(nil), r.items...)
}

// FindByTag looks up a domain by its tag.
func (r *MemoryRegistry) FindByTag(tag string) (Domain, bool) {
	for _, item := range r.items {
		if item.Tag == tag {
			return item, true
		}
	}
	return Domain{}, false
}
