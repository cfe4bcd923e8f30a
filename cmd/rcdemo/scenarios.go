package main

import (
	"math/rand"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/refcount/memory"
	"github.com/vkngwrapper/refcount/rc"
	"golang.org/x/exp/slices"
)

type scenario struct {
	name string
	run  func(resource memory.Resource, handles int) error
}

var scenarios = []scenario{
	{name: "copy counts", run: copyCounts},
	{name: "assign colocated over separate", run: assignColocated},
	{name: "swap and reset", run: swapAndReset},
	{name: "many copies", run: manyCopies},
	{name: "sort by payload", run: sortByPayload},
	{name: "weak observers", run: weakObservers},
}

func expectCount[T any](s *rc.Shared[T], expected uint) error {
	if s.UseCount() != expected {
		return errors.AssertionFailedf("expected use count %d, got %d", expected, s.UseCount())
	}
	return nil
}

func filled(count, value int) []int {
	values := make([]int, count)
	for i := range values {
		values[i] = value
	}
	return values
}

func copyCounts(resource memory.Resource, _ int) error {
	alloc := memory.NewAllocator[int](resource)

	payload, err := alloc.New(5)
	if err != nil {
		return err
	}

	a, err := rc.AdoptWith(payload, nil, alloc)
	if err != nil {
		return err
	}
	defer a.Release()

	if err := expectCount(&a, 1); err != nil {
		return err
	}

	b := a.Clone()
	if err := expectCount(&b, 2); err != nil {
		return err
	}

	a.Assign(&b)
	if err := expectCount(&a, 2); err != nil {
		return err
	}

	b.Release()
	return expectCount(&a, 1)
}

func assignColocated(resource memory.Resource, _ int) error {
	alloc := memory.NewAllocator[[]int](resource)

	p1, err := rc.AllocateShared(alloc, filled(10, -7))
	if err != nil {
		return err
	}
	defer p1.Release()

	payload, err := alloc.New(filled(13, 100))
	if err != nil {
		return err
	}

	p2, err := rc.AdoptWith(payload, nil, alloc)
	if err != nil {
		return err
	}
	defer p2.Release()

	p2.Assign(&p1)
	if err := expectCount(&p1, 2); err != nil {
		return err
	}

	if len(p2.Value()) != 10 {
		return errors.AssertionFailedf("expected the assigned payload to have 10 elements, got %d", len(p2.Value()))
	}
	return nil
}

func swapAndReset(resource memory.Resource, handles int) error {
	alloc := memory.NewAllocator[[]int](resource)

	first, err := rc.AllocateShared(alloc, make([]int, 1000))
	if err != nil {
		return err
	}
	defer first.Release()
	(*first.Get())[0] = 1

	second, err := rc.AllocateShared(alloc, slices.Clone(first.Value()))
	if err != nil {
		return err
	}
	defer second.Release()
	(*second.Get())[0] = 2

	for i := 0; i < handles; i++ {
		first.Swap(&second)
	}
	*first.Get(), *second.Get() = *second.Get(), *first.Get()

	wantFirst := 2
	if handles%2 == 1 {
		wantFirst = 1
	}
	if first.Value()[0] != wantFirst || second.Value()[0] != 3-wantFirst {
		return errors.AssertionFailedf("swaps left payloads %d and %d", first.Value()[0], second.Value()[0])
	}

	for i := 0; i < 10; i++ {
		third, err := rc.AllocateShared(alloc, slices.Clone(first.Value()))
		if err != nil {
			return err
		}

		fourth := second.Clone()
		fourth.Swap(&third)
		if err := expectCount(&second, 2); err != nil {
			return err
		}

		third.Release()
		fourth.Release()
	}

	if err := expectCount(&second, 1); err != nil {
		return err
	}

	err = first.ResetTo(&[]int{})
	if err != nil {
		return err
	}
	second.Reset()

	var empty rc.Shared[[]int]
	empty.Swap(&first)
	empty.Release()

	if first.Get() != nil || second.Get() != nil {
		return errors.AssertionFailedf("reset handles still refer to payloads")
	}
	return nil
}

func manyCopies(resource memory.Resource, handles int) error {
	source, err := rc.AllocateShared(memory.NewAllocator[[]int](resource), []int{1})
	if err != nil {
		return err
	}
	defer source.Release()

	ptrs := make([]rc.Shared[[]int], 0, 10+2*handles)
	for i := 0; i < 10; i++ {
		ptrs = append(ptrs, source.Clone())
	}

	for i := 0; i < handles; i++ {
		ptrs = append(ptrs, ptrs[len(ptrs)-1].Clone())

		var assigned rc.Shared[[]int]
		assigned.Assign(&ptrs[len(ptrs)-1])
		ptrs = append(ptrs, assigned.Move())
	}

	err = expectCount(&source, uint(1+10+2*handles))

	for i := range ptrs {
		ptrs[i].Release()
	}

	if err != nil {
		return err
	}
	return expectCount(&source, 1)
}

func sortByPayload(resource memory.Resource, handles int) error {
	alloc := memory.NewAllocator[int](resource)
	random := rand.New(rand.NewSource(int64(handles)))

	for round := 0; round < 2; round++ {
		ptrs := make([]rc.Shared[int], 0, handles)
		for i := 0; i < handles; i++ {
			s, err := rc.AllocateShared(alloc, random.Intn(99999))
			if err != nil {
				return err
			}
			ptrs = append(ptrs, s)
		}

		less := func(x, y rc.Shared[int]) bool {
			return *x.Get() < *y.Get()
		}
		slices.SortFunc(ptrs, less)
		sorted := slices.IsSortedFunc(ptrs, less)

		for len(ptrs) > 0 {
			ptrs[len(ptrs)-1].Release()
			ptrs = ptrs[:len(ptrs)-1]
		}

		if !sorted {
			return errors.AssertionFailedf("handles were not sorted by payload in round %d", round)
		}
	}

	return nil
}

type observed struct {
	id       int
	disposed *int
}

func (o *observed) Finalize() {
	*o.disposed++
}

func weakObservers(resource memory.Resource, _ int) error {
	var disposed int
	s, err := rc.AllocateShared(memory.NewAllocator[observed](resource), observed{id: 1, disposed: &disposed})
	if err != nil {
		return err
	}

	weaks := make([]rc.Weak[observed], 10)
	for i := range weaks {
		weaks[i] = s.Weak()
	}
	defer func() {
		for i := range weaks {
			weaks[i].Release()
		}
	}()

	locked := weaks[0].Lock()
	if err := expectCount(&locked, 2); err != nil {
		return err
	}
	locked.Release()

	s.Release()
	if disposed != 1 {
		return errors.AssertionFailedf("payload was disposed %d times", disposed)
	}

	for i := range weaks {
		if !weaks[i].Expired() {
			return errors.AssertionFailedf("weak handle %d did not expire", i)
		}

		relocked := weaks[i].Lock()
		if !relocked.IsEmpty() {
			relocked.Release()
			return errors.AssertionFailedf("expired weak handle %d could be locked", i)
		}
	}

	return nil
}
