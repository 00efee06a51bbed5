package marketindex

// Option applies a configuration option to the TreapBoard.
type Option func(*TreapBoard)

// WithInitialCapacity presizes the board for an expected athlete count.
func WithInitialCapacity(n int) Option {
	return func(b *TreapBoard) {
		if n > 0 {
			b.byID = make(map[int]scoreFP, n)
		}
	}
}
