package cli

import (
	"os"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
)

type stopFunc func()

func noop() {}

func barOptions(description string, extra ...progressbar.Option) []progressbar.Option {
	return append([]progressbar.Option{
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	}, extra...)
}

// startSpinner renders an indeterminate spinner until the returned func is
// called.
func startSpinner(enabled bool, description string) stopFunc {
	if !enabled {
		return noop
	}
	bar := progressbar.NewOptions(-1, barOptions(description,
		progressbar.OptionSpinnerType(14),
		progressbar.OptionThrottle(80*time.Millisecond),
	)...)
	return tick(bar, 120*time.Millisecond)
}

// startDurationProgress fills a bar over duration, one step per second.
func startDurationProgress(enabled bool, description string, duration time.Duration) stopFunc {
	if !enabled || duration <= 0 {
		return noop
	}
	total := max(int64(duration/time.Second), 1)
	bar := progressbar.NewOptions64(total, barOptions(description,
		progressbar.OptionSetWidth(20),
		progressbar.OptionThrottle(65*time.Millisecond),
	)...)
	return tick(bar, time.Second)
}

func tick(bar *progressbar.ProgressBar, every time.Duration) stopFunc {
	stopCh := make(chan struct{})
	doneCh := make(chan struct{})

	go func() {
		defer close(doneCh)
		ticker := time.NewTicker(every)
		defer ticker.Stop()

		for {
			select {
			case <-stopCh:
				_ = bar.Finish()
				return
			case <-ticker.C:
				_ = bar.Add(1)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stopCh)
			<-doneCh
		})
	}
}
