package mux

import (
	"errors"
	"fmt"
	"sync"
)

var _ sink = (*Multiplexer)(nil)

// Proxy bridges the named channels of two multiplexers, creating each name
// on both and copying payloads in both directions. It blocks until every
// bridged pair has stopped and returns nil if that happened because either
// multiplexer was torn down.
func Proxy(dst, src *Multiplexer, names ...string) error {
	pairs := make([][2]*Channel, 0, len(names))
	for _, name := range names {
		a, err := src.CreateStream(name)
		if err != nil {
			destroyPairs(pairs)
			return fmt.Errorf("proxy %q: %w", name, err)
		}
		b, err := dst.CreateStream(name)
		if err != nil {
			a.Destroy()
			destroyPairs(pairs)
			return fmt.Errorf("proxy %q: %w", name, err)
		}
		pairs = append(pairs, [2]*Channel{a, b})
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(pairs))
	for _, p := range pairs {
		wg.Add(1)
		go func(a, b *Channel) {
			defer wg.Done()
			errs <- Pipe(a, b)
		}(p[0], p[1])
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil && !errors.Is(err, ErrDisconnected) && !errors.Is(err, ErrChannelClosed) {
			return err
		}
	}
	return nil
}

// Pipe copies payloads from a to b and from b to a until either side stops,
// then destroys both and returns the first error seen.
func Pipe(a, b *Channel) error {
	var wg sync.WaitGroup
	wg.Add(2)
	var once sync.Once
	var first error
	stop := func(err error) {
		once.Do(func() { first = err })
		a.Destroy()
		b.Destroy()
	}
	go func() {
		stop(copyChannel(a, b))
		wg.Done()
	}()
	go func() {
		stop(copyChannel(b, a))
		wg.Done()
	}()
	wg.Wait()
	return first
}

func copyChannel(dst, src *Channel) error {
	for {
		p, err := src.Next()
		if err != nil {
			return err
		}
		if err := dst.Write(p); err != nil {
			return err
		}
	}
}

func destroyPairs(pairs [][2]*Channel) {
	for _, p := range pairs {
		p[0].Destroy()
		p[1].Destroy()
	}
}
