package queue

import "fmt"

// MaxPipes bounds the pipe numbers a credit table tracks
const MaxPipes = 64

// Credits tracks transmit credit per pipe. Counts never go negative and
// saturate at Max.
type Credits struct {
	max    int
	counts [MaxPipes]int
}

// NewCredits creates a table whose counts saturate at max
func NewCredits(max int) *Credits {
	if max < 0 {
		max = 0
	}
	return &Credits{max: max}
}

// Max returns the saturation limit
func (c *Credits) Max() int { return c.max }

// SetMax changes the saturation limit, clamping existing counts
func (c *Credits) SetMax(max int) {
	if max < 0 {
		max = 0
	}
	c.max = max
	for i := range c.counts {
		if c.counts[i] > max {
			c.counts[i] = max
		}
	}
}

// Available returns the credit currently held by pipe
func (c *Credits) Available(pipe uint8) int {
	if int(pipe) >= MaxPipes {
		return 0
	}
	return c.counts[pipe]
}

// Consume takes n credits from pipe or fails without changing anything
func (c *Credits) Consume(pipe uint8, n int) error {
	if n < 0 {
		return fmt.Errorf("consume %d credits: negative count", n)
	}
	if int(pipe) >= MaxPipes || c.counts[pipe] < n {
		return fmt.Errorf("%w: pipe %d has %d, need %d", ErrInsufficientCredit, pipe, c.Available(pipe), n)
	}
	c.counts[pipe] -= n
	return nil
}

// Grant adds n credits to pipe, saturating at Max. It returns the new count.
func (c *Credits) Grant(pipe uint8, n int) int {
	if int(pipe) >= MaxPipes || n <= 0 {
		return c.Available(pipe)
	}
	if n > c.max-c.counts[pipe] {
		c.counts[pipe] = c.max
	} else {
		c.counts[pipe] += n
	}
	return c.counts[pipe]
}

// Clear drops all credit held by pipe
func (c *Credits) Clear(pipe uint8) {
	if int(pipe) < MaxPipes {
		c.counts[pipe] = 0
	}
}

// Reset drops all credit on every pipe
func (c *Credits) Reset() {
	c.counts = [MaxPipes]int{}
}
