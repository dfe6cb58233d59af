// Package pool reuses scratch values between calls made by one worker.
package pool

// Pool is a free list of reusable values. It never evicts and is not safe
// for concurrent use: every worker owns its own pool.
type Pool[T any] struct {
	free []T
}

func New[T any]() *Pool[T] {
	return &Pool[T]{}
}

// Rent takes the most recently returned value, found is false when the
// pool is empty and the zero T is returned.
func (p *Pool[T]) Rent() (item T, found bool) {
	if len(p.free) == 0 {
		return item, false
	}
	item = p.free[len(p.free)-1]
	var zero T
	p.free[len(p.free)-1] = zero
	p.free = p.free[:len(p.free)-1]
	return item, true
}

// Return puts item back for the next Rent. Callers clear it first.
func (p *Pool[T]) Return(item T) {
	p.free = append(p.free, item)
}

// Len is the count of values waiting to be rented
func (p *Pool[T]) Len() int {
	return len(p.free)
}
