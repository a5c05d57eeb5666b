package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
)

const maxLockAttempts = 5

// treeLocks serializes structural changes per root tree. Groups in different
// trees never contend.
type treeLocks struct {
	mu    sync.Mutex
	locks map[uint]*rootLock
}

// rootLock counts holders and waiters so the entry can be dropped once the
// last of them leaves.
type rootLock struct {
	sync.Mutex
	refs int
}

func newTreeLocks() *treeLocks {
	return &treeLocks{locks: make(map[uint]*rootLock)}
}

func (t *treeLocks) acquire(root uint) *rootLock {
	t.mu.Lock()
	l, ok := t.locks[root]
	if !ok {
		l = &rootLock{}
		t.locks[root] = l
	}
	l.refs++
	t.mu.Unlock()

	l.Lock()
	return l
}

func (t *treeLocks) release(root uint, l *rootLock) {
	l.Unlock()

	t.mu.Lock()
	defer t.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(t.locks, root)
	}
}

// rootResolver returns the root of the tree that contains a group.
type rootResolver func(ctx context.Context, id uint) (uint, error)

// lock acquires the locks of every tree touching ids, in root order. Roots
// are re-resolved after locking; if a concurrent move changed one the locks
// are released and the attempt repeated.
func (t *treeLocks) lock(ctx context.Context, resolve rootResolver, ids ...uint) (func(), error) {
	for attempt := 0; attempt < maxLockAttempts; attempt++ {
		roots, err := resolveRoots(ctx, resolve, ids)
		if err != nil {
			return nil, err
		}

		held := make([]*rootLock, 0, len(roots))
		for _, r := range roots {
			held = append(held, t.acquire(r))
		}
		unlock := func() {
			for i := len(held) - 1; i >= 0; i-- {
				t.release(roots[i], held[i])
			}
		}

		again, err := resolveRoots(ctx, resolve, ids)
		if err != nil {
			unlock()
			return nil, err
		}
		if slices.Equal(roots, again) {
			return unlock, nil
		}
		unlock()
	}
	return nil, errors.New("group tree kept changing while acquiring locks")
}

func resolveRoots(ctx context.Context, resolve rootResolver, ids []uint) ([]uint, error) {
	roots := make([]uint, 0, len(ids))
	for _, id := range ids {
		r, err := resolve(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("resolve root of group %d: %w", id, err)
		}
		roots = append(roots, r)
	}
	slices.Sort(roots)
	return slices.Compact(roots), nil
}
