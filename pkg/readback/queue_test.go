package readback

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/video-system/go-frame-recorder/pkg/source"
)

// fakeTransfer is a readback handle with externally controlled state.
type fakeTransfer struct {
	done bool
	err  error
	pix  []byte
}

func (t *fakeTransfer) Done() bool { return t.done }
func (t *fakeTransfer) Err() error { return t.err }
func (t *fakeTransfer) Pixels() []byte { return t.pix }

// fakeSource hands out pre-seeded transfers in order.
type fakeSource struct {
	transfers  []*fakeTransfer
	next       int
	requestErr error
}

func (s *fakeSource) Name() string { return "fake" }
func (s *fakeSource) Format() source.PixelFormat { return source.FormatRGBA }
func (s *fakeSource) SetOutputSize(w, h int) error { return nil }

func (s *fakeSource) RequestTransfer() (source.Transfer, error) {
	if s.requestErr != nil {
		return nil, s.requestErr
	}
	t := s.transfers[s.next]
	s.next++
	return t, nil
}

func issue(t *testing.T, n int) (*Queue, *Scheduler, []*fakeTransfer) {
	t.Helper()

	src := &fakeSource{}
	for i := 0; i < n; i++ {
		src.transfers = append(src.transfers, &fakeTransfer{pix: []byte{byte(i)}})
	}

	q := NewQueue(DefaultCapacity, zerolog.Nop())
	s := NewScheduler(q, zerolog.Nop())
	for i := 0; i < n; i++ {
		s.RequestFrame(src, int64(i))
	}
	return q, s, src.transfers
}

func drainFrames(t *testing.T, q *Queue) []int64 {
	t.Helper()

	var frames []int64
	_, err := q.DrainReady(func(frame int64, pixels []byte) error {
		frames = append(frames, frame)
		return nil
	})
	require.NoError(t, err)
	return frames
}

func TestDrainPreservesIssuanceOrder(t *testing.T) {
	q, _, transfers := issue(t, 5)

	var delivered []int64

	// Complete transfers in a scrambled order, draining after each
	// completion the way the tick loop does.
	for _, i := range []int{2, 0, 4, 1, 3} {
		transfers[i].done = true
		delivered = append(delivered, drainFrames(t, q)...)
	}

	require.Equal(t, []int64{0, 1, 2, 3, 4}, delivered)
	require.Zero(t, q.Len())
	require.EqualValues(t, 5, q.Delivered())
}

func TestHeadOfLineBlocks(t *testing.T) {
	q, _, transfers := issue(t, 3)

	// Everything behind the front is done, the front is not.
	transfers[1].done = true
	transfers[2].done = true

	require.Empty(t, drainFrames(t, q))
	require.Equal(t, 3, q.Len())

	transfers[0].done = true
	require.Equal(t, []int64{0, 1, 2}, drainFrames(t, q))
}

func TestAdmissionBound(t *testing.T) {
	src := &fakeSource{}
	for i := 0; i < 12; i++ {
		src.transfers = append(src.transfers, &fakeTransfer{})
	}

	q := NewQueue(0, zerolog.Nop()) // zero selects DefaultCapacity
	s := NewScheduler(q, zerolog.Nop())

	accepted := 0
	for i := 0; i < 12; i++ {
		if s.RequestFrame(src, int64(i)) {
			accepted++
		}
	}

	require.Equal(t, 8, accepted)
	require.Equal(t, 8, q.Len())
	require.EqualValues(t, 8, s.Requested())
	require.EqualValues(t, 4, s.Dropped())
}

func TestErrorSkippedWithoutBlocking(t *testing.T) {
	q, _, transfers := issue(t, 3)

	transfers[0].err = errors.New("readback device lost")
	transfers[1].done = true
	transfers[2].done = true

	require.Equal(t, []int64{1, 2}, drainFrames(t, q))
	require.EqualValues(t, 1, q.Failed())
	require.EqualValues(t, 2, q.Delivered())
}

func TestRequestFailureDropsFrame(t *testing.T) {
	src := &fakeSource{requestErr: errors.New("surface gone")}
	q := NewQueue(4, zerolog.Nop())
	s := NewScheduler(q, zerolog.Nop())

	require.False(t, s.RequestFrame(src, 0))
	require.Zero(t, q.Len())
	require.EqualValues(t, 1, s.Dropped())
}

func TestSinkErrorAbortsDrain(t *testing.T) {
	q, _, transfers := issue(t, 2)
	transfers[0].done = true
	transfers[1].done = true

	sinkErr := errors.New("pipe closed")
	n, err := q.DrainReady(func(int64, []byte) error { return sinkErr })
	require.ErrorIs(t, err, sinkErr)
	require.Zero(t, n)

	// The failing request stays at the front.
	require.Equal(t, 2, q.Len())
}

func TestAbandon(t *testing.T) {
	q, _, _ := issue(t, 5)
	require.Equal(t, 5, q.Abandon())
	require.Zero(t, q.Len())
	require.Zero(t, q.Abandon())
}
