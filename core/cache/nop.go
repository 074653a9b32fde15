package cache

// Nop is a Cache that never stores anything. Use it to switch caching off
// without changing callers.
type Nop[V any] struct{}

func (n *Nop[V]) Set(string, V, ...SetOption) {}

func (n *Nop[V]) Get(string) (v V, ok bool) { return v, false }

func (n *Nop[V]) Has(string) bool { return false }

func (n *Nop[V]) Delete(string) bool { return false }

func (n *Nop[V]) Clear() {}

func (n *Nop[V]) Stats() Stats { return Stats{} }

func NewNop[V any]() *Nop[V] {
	return &Nop[V]{}
}

var _ Cache[any] = (*Nop[any])(nil)
