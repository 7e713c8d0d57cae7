package comm

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// LocalFabric is an in-process Fabric: every rank is a goroutine
// sharing one mailbox, used by tests and the single-machine CLI in
// place of a real network transport. A LocalFabric of size 1 degrades
// to trivial local calls with no synchronization at all, the common
// case for a single-rank run. Mirrors sc_mpi_dummy's role as the
// non-MPI fallback communicator.
type LocalFabric struct {
	size int
	mu   sync.Mutex

	barrierCh chan struct{}
	arrived   int

	mailbox map[mailKey][]byte
	mailCh  map[mailKey]chan struct{}
}

type mailKey struct {
	from, to, tag int
}

// NewLocalFabric returns a size-rank in-process fabric. Ranks
// communicate by calling the same *LocalFabric value from separate
// goroutines (see Run).
func NewLocalFabric(size int) *LocalFabric {
	if size < 1 {
		panic("comm: LocalFabric size must be >= 1")
	}
	return &LocalFabric{
		size:    size,
		mailbox: make(map[mailKey][]byte),
		mailCh:  make(map[mailKey]chan struct{}),
	}
}

// rankFabric binds a LocalFabric to one rank's identity; this is the
// Fabric implementation each rank goroutine actually uses.
type rankFabric struct {
	f    *LocalFabric
	rank int
}

// Run launches size goroutines, each given a rankFabric bound to its
// own rank, via an errgroup so the first error cancels the rest and is
// returned to the caller. fn is the per-rank body.
func Run(ctx context.Context, size int, fn func(ctx context.Context, f Fabric) error) error {
	lf := NewLocalFabric(size)
	group, gctx := errgroup.WithContext(ctx)
	for r := 0; r < size; r++ {
		rank := r
		group.Go(func() error {
			return fn(gctx, &rankFabric{f: lf, rank: rank})
		})
	}
	return group.Wait()
}

func (r *rankFabric) Size() int { return r.f.size }
func (r *rankFabric) Rank() int { return r.rank }

func (r *rankFabric) Barrier(ctx context.Context) error {
	if r.f.size == 1 {
		return nil
	}
	r.f.mu.Lock()
	r.f.arrived++
	ch := r.f.barrierCh
	if ch == nil {
		ch = make(chan struct{})
		r.f.barrierCh = ch
	}
	done := r.f.arrived == r.f.size
	if done {
		r.f.arrived = 0
		r.f.barrierCh = nil
	}
	r.f.mu.Unlock()

	if done {
		close(ch)
		return nil
	}
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *rankFabric) Broadcast(ctx context.Context, root int, buf []byte) ([]byte, error) {
	if r.f.size == 1 {
		return buf, nil
	}
	if r.rank == root {
		for peer := 0; peer < r.f.size; peer++ {
			if peer == root {
				continue
			}
			r.sendRaw(peer, broadcastTag(root), buf)
		}
		return buf, nil
	}
	got, err := r.recvRaw(ctx, root, broadcastTag(root), len(buf))
	if err != nil {
		return nil, err
	}
	copy(buf, got)
	return got, nil
}

func broadcastTag(root int) int { return -1000 - root }

func (r *rankFabric) Allgather(ctx context.Context, buf []byte) ([][]byte, error) {
	out := make([][]byte, r.f.size)
	out[r.rank] = buf
	for peer := 0; peer < r.f.size; peer++ {
		if peer == r.rank {
			continue
		}
		r.sendRaw(peer, allgatherTag(r.rank), buf)
	}
	for peer := 0; peer < r.f.size; peer++ {
		if peer == r.rank {
			continue
		}
		got, err := r.recvRaw(ctx, peer, allgatherTag(peer), -1)
		if err != nil {
			return nil, err
		}
		out[peer] = got
	}
	return out, nil
}

func allgatherTag(sender int) int { return -2000 - sender }

func (r *rankFabric) Reduce(ctx context.Context, root int, op Op, values []int64) ([]int64, error) {
	all, err := r.Allreduce(ctx, op, values)
	if err != nil {
		return nil, err
	}
	if r.rank != root {
		return nil, nil
	}
	return all, nil
}

func (r *rankFabric) Allreduce(ctx context.Context, op Op, values []int64) ([]int64, error) {
	gathered, err := r.Allgather(ctx, encodeInt64s(values))
	if err != nil {
		return nil, err
	}
	acc := append([]int64(nil), values...)
	for peer := 0; peer < r.f.size; peer++ {
		if peer == r.rank {
			continue
		}
		peerValues := decodeInt64s(gathered[peer])
		for i := range acc {
			acc[i] = applyOp(op, acc[i], peerValues[i])
		}
	}
	return acc, nil
}

func applyOp(op Op, a, b int64) int64 {
	switch op {
	case OpMax, OpMaxLoc:
		if b > a {
			return b
		}
		return a
	case OpMin, OpMinLoc:
		if b < a {
			return b
		}
		return a
	case OpSum:
		return a + b
	case OpProd:
		return a * b
	case OpAnd:
		return a & b
	case OpOr:
		return a | b
	case OpXor:
		return a ^ b
	case OpReplace:
		return b
	default:
		panic(fmt.Sprintf("comm: unknown op %d", op))
	}
}

type localRequest struct {
	peer, tag int
	wait      func() error
}

func (req *localRequest) Peer() int { return req.peer }
func (req *localRequest) Tag() int  { return req.tag }

func (r *rankFabric) ISend(dest int, tag int, buf []byte) Request {
	cp := append([]byte(nil), buf...)
	r.sendRaw(dest, userTag(r.rank, tag), cp)
	return &localRequest{peer: dest, tag: tag, wait: func() error { return nil }}
}

func (r *rankFabric) IRecv(src int, tag int, buf []byte) Request {
	done := make(chan error, 1)
	go func() {
		got, err := r.recvRaw(context.Background(), src, userTag(src, tag), len(buf))
		if err != nil {
			done <- err
			return
		}
		copy(buf, got)
		done <- nil
	}()
	return &localRequest{peer: src, tag: tag, wait: func() error { return <-done }}
}

func userTag(from, tag int) int { return from*1_000_003 + tag }

func (r *rankFabric) WaitAll(ctx context.Context, reqs []Request) error {
	for _, req := range reqs {
		lr := req.(*localRequest)
		if err := lr.wait(); err != nil {
			return err
		}
	}
	return ctx.Err()
}

// sendRaw deposits buf into the shared mailbox under (from, to, tag)
// and wakes anyone already waiting on that slot.
func (r *rankFabric) sendRaw(to, tag int, buf []byte) {
	key := mailKey{from: r.rank, to: to, tag: tag}
	r.f.mu.Lock()
	r.f.mailbox[key] = buf
	ch, ok := r.f.mailCh[key]
	if !ok {
		ch = make(chan struct{})
		r.f.mailCh[key] = ch
	}
	r.f.mu.Unlock()
	select {
	case <-ch:
	default:
		close(ch)
	}
}

// recvRaw blocks until (from, r.rank, tag) has been deposited, then
// consumes and returns it. wantLen, if >= 0, is asserted against the
// delivered payload length.
func (r *rankFabric) recvRaw(ctx context.Context, from, tag, wantLen int) ([]byte, error) {
	key := mailKey{from: from, to: r.rank, tag: tag}
	for {
		r.f.mu.Lock()
		buf, ok := r.f.mailbox[key]
		if ok {
			delete(r.f.mailbox, key)
			delete(r.f.mailCh, key)
		}
		ch := r.f.mailCh[key]
		if !ok && ch == nil {
			ch = make(chan struct{})
			r.f.mailCh[key] = ch
		}
		r.f.mu.Unlock()

		if ok {
			if wantLen >= 0 && len(buf) != wantLen {
				return nil, fmt.Errorf("comm: expected %d bytes from rank %d, got %d", wantLen, from, len(buf))
			}
			return buf, nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func encodeInt64s(values []int64) []byte {
	var buf bytes.Buffer
	for _, v := range values {
		var b [8]byte
		for i := 0; i < 8; i++ {
			b[i] = byte(v >> (8 * i))
		}
		buf.Write(b[:])
	}
	return buf.Bytes()
}

func decodeInt64s(buf []byte) []int64 {
	out := make([]int64, len(buf)/8)
	for i := range out {
		var v int64
		for j := 0; j < 8; j++ {
			v |= int64(buf[i*8+j]) << (8 * j)
		}
		out[i] = v
	}
	return out
}
