package shared

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/spf13/pflag"
)

const (
	StatusOK      = "OK"
	StatusFailed  = "FAILED"
	StatusSkipped = "SKIPPED"
)

// GenericResult is the per-launch outcome stored in command artifacts.
type GenericResult struct {
	Args    interface{} `json:"args"`
	Result  interface{} `json:"result"`
	Status  string      `json:"status"`
	Message string      `json:"message"`
}

type GenericLaunchesResult struct {
	Launches []GenericResult `json:"launches"`
}

// Failed reports whether at least one launch did not finish successfully.
func (r GenericLaunchesResult) Failed() bool {
	for _, l := range r.Launches {
		if l.Status == StatusFailed {
			return true
		}
	}
	return false
}

// ForEveryWithBoundedGoroutines calls f for every value with at most limit calls in flight.
func ForEveryWithBoundedGoroutines[T any](limit int, values []T, f func(i int, value T)) {
	if limit < 1 {
		limit = 1
	}
	guard := make(chan struct{}, limit)
	var wg sync.WaitGroup
	for i, value := range values {
		guard <- struct{}{} // would block if guard channel is already filled
		wg.Add(1)
		go func(i int, value T) {
			defer wg.Done()
			f(i, value)
			<-guard
		}(i, value)
	}
	wg.Wait()
}

// HasFlags reports whether any flag was explicitly set on the command line.
func HasFlags(flags *pflag.FlagSet) bool {
	changed := false
	flags.Visit(func(*pflag.Flag) { changed = true })
	return changed
}

// PrintResultAsJSON writes the launches to stdout.
func PrintResultAsJSON(result GenericLaunchesResult) error {
	data, err := json.MarshalIndent(result, "", "    ")
	if err != nil {
		return fmt.Errorf("error marshaling the result data: %w", err)
	}
	fmt.Println(string(data))
	return nil
}
