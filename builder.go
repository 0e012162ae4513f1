package loracache

import "time"

func NewPersistenceBuilder[T Entity, V any](
	modelVersion uint16,
	providers ...Provider[T, V],
) *Builder[T, V] {
	return &Builder[T, V]{
		providers:    providers,
		ttl:          24 * time.Hour,
		modelVersion: modelVersion,
	}
}

type Builder[T, V any] struct {
	providers    []Provider[T, V]
	ttl          time.Duration
	modelVersion uint16
}

func (b *Builder[T, V]) Build() *Persistence[T, V] {
	return &Persistence[T, V]{
		builder: b,
	}
}

func (b *Builder[T, V]) WithTtl(ttl time.Duration) *Builder[T, V] {
	b.ttl = ttl

	return b
}
