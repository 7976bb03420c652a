package player

import (
	"math/rand"
	"slices"
)

// Queue is the FIFO of upcoming tracks for one guild. It is not safe for concurrent use:
// only the scheduler goroutine touches it.
type Queue struct {
	tracks []Track
}

func (q *Queue) PushBack(t Track) int {
	q.tracks = append(q.tracks, t)
	return len(q.tracks)
}

// PopFront returns false when the queue is empty.
func (q *Queue) PopFront() (Track, bool) {
	if len(q.tracks) == 0 {
		return Track{}, false
	}
	t := q.tracks[0]
	q.tracks[0] = Track{}
	q.tracks = q.tracks[1:]
	return t, true
}

// Peek returns a copy of at most n tracks from the front.
func (q *Queue) Peek(n int) []Track {
	if n < 0 || n > len(q.tracks) {
		n = len(q.tracks)
	}
	return slices.Clone(q.tracks[:n])
}

func (q *Queue) All() []Track {
	return q.Peek(-1)
}

// RemoveAt removes the track at the 1-based position.
func (q *Queue) RemoveAt(position int) (Track, error) {
	if position < 1 || position > len(q.tracks) {
		return Track{}, ErrInvalidPosition
	}
	removed := q.tracks[position-1]
	q.tracks = slices.Delete(q.tracks, position-1, position)
	return removed, nil
}

func (q *Queue) Shuffle(shuffle func(n int, swap func(i, j int))) {
	if shuffle == nil {
		shuffle = rand.Shuffle
	}
	shuffle(len(q.tracks), func(i, j int) {
		q.tracks[i], q.tracks[j] = q.tracks[j], q.tracks[i]
	})
}

func (q *Queue) Clear() int {
	n := len(q.tracks)
	q.tracks = nil
	return n
}

func (q *Queue) Size() int {
	return len(q.tracks)
}
