package browser

import (
	"context"
	"math/rand"
	"time"

	"github.com/playwright-community/playwright-go"

	"laborx-notifier/internal/scraper"
)

// RandomDelay waits for a random duration between min and max milliseconds
func RandomDelay(ctx context.Context, min, max int) error {
	if max <= min {
		return scraper.Wait(ctx, time.Duration(min)*time.Millisecond)
	}
	duration := rand.Intn(max-min+1) + min
	return scraper.Wait(ctx, time.Duration(duration)*time.Millisecond)
}

// HumanScroll scrolls down in steps so lazy-loaded job cards render, then
// scrolls back up a bit.
func HumanScroll(ctx context.Context, page playwright.Page) error {
	for i := 0; i < 5; i++ {
		if _, err := page.Evaluate("window.scrollBy(0, window.innerHeight / 2)"); err != nil {
			return err
		}
		if err := RandomDelay(ctx, 300, 800); err != nil {
			return err
		}
	}
	_, err := page.Evaluate("window.scrollBy(0, -200)")
	return err
}
