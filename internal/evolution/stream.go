package evolution

import "context"

// Streamer produces a pull-based sequence of evolution results from a given
// start state. Engine is the canonical implementation; wrappers such as
// Limited bound the sequence.
type Streamer interface {
	Stream(start Start) *Stream
}

// Stream is a lazily evaluated, strictly ordered sequence of evolution
// results. Each call to Next performs exactly the work needed to produce one
// element; nothing is computed ahead of demand.
//
// A Stream must not be pulled from concurrently: element i causally depends
// on element i-1, so there is no meaningful parallel traversal. Once Next
// returns an error the stream is terminally exhausted and every subsequent
// call returns the same error.
type Stream struct {
	next func(ctx context.Context) (*Result, error)
	err  error
	done bool
}

// NewStream wraps a generator function into a Stream. The function returns
// (nil, nil) when the sequence is exhausted.
func NewStream(next func(ctx context.Context) (*Result, error)) *Stream {
	return &Stream{next: next}
}

// Next produces the next result. It returns (nil, nil) when the stream is
// exhausted. Errors are sticky: after a failed pull the stream produces no
// further elements.
func (s *Stream) Next(ctx context.Context) (*Result, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.done {
		return nil, nil
	}

	r, err := s.next(ctx)
	if err != nil {
		s.err = err
		return nil, err
	}
	if r == nil {
		s.done = true
		return nil, nil
	}
	return r, nil
}

// Limit returns a stream that yields at most n elements of s.
func (s *Stream) Limit(n int) *Stream {
	count := 0
	return NewStream(func(ctx context.Context) (*Result, error) {
		if count >= n {
			return nil, nil
		}
		count++
		return s.Next(ctx)
	})
}

// Last drains the stream and returns its final result. It returns nil for an
// empty stream and the stream's error if one occurs mid-traversal.
func (s *Stream) Last(ctx context.Context) (*Result, error) {
	var last *Result
	for {
		r, err := s.Next(ctx)
		if err != nil {
			return nil, err
		}
		if r == nil {
			return last, nil
		}
		last = r
	}
}

// Limited bounds the streams produced by an underlying Streamer to a fixed
// number of generations per stream.
type Limited struct {
	Source      Streamer
	Generations int
}

// Limit wraps a Streamer so each of its streams yields at most n results.
func Limit(source Streamer, n int) *Limited {
	return &Limited{Source: source, Generations: n}
}

// Stream implements Streamer.
func (l *Limited) Stream(start Start) *Stream {
	return l.Source.Stream(start).Limit(l.Generations)
}
