package shared

import (
	"sync/atomic"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
)

func TestForEveryWithBoundedGoroutines(t *testing.T) {
	values := []string{"a", "b", "c", "d", "e"}
	results := make([]string, len(values))
	var inFlight, maxInFlight int32

	ForEveryWithBoundedGoroutines(2, values, func(i int, v string) {
		cur := atomic.AddInt32(&inFlight, 1)
		for {
			old := atomic.LoadInt32(&maxInFlight)
			if cur <= old || atomic.CompareAndSwapInt32(&maxInFlight, old, cur) {
				break
			}
		}
		results[i] = v + v
		atomic.AddInt32(&inFlight, -1)
	})

	assert.Equal(t, []string{"aa", "bb", "cc", "dd", "ee"}, results)
	assert.LessOrEqual(t, maxInFlight, int32(2))
}

func TestGenericLaunchesResultFailed(t *testing.T) {
	r := GenericLaunchesResult{Launches: []GenericResult{{Status: StatusOK}, {Status: StatusSkipped}}}
	assert.False(t, r.Failed())

	r.Launches = append(r.Launches, GenericResult{Status: StatusFailed})
	assert.True(t, r.Failed())
}

func TestHasFlags(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("query", "", "")
	assert.False(t, HasFlags(flags))

	assert.NoError(t, flags.Parse([]string{"--query", "cwe-078wLLM"}))
	assert.True(t, HasFlags(flags))
}
