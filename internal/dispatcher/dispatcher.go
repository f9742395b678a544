// Package dispatcher splits candidates into batches and collects one model response per batch.
package dispatcher

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/scan-io-git/taint-io/internal/llm"
	"github.com/scan-io-git/taint-io/pkg/shared/files"
)

const (
	PromptFilePrefix   = "raw_user_prompt_"
	ResponseFilePrefix = "raw_llm_response_"
	logFileSuffix      = ".txt"
)

// Batch is a contiguous slice of the input starting at Start.
type Batch[T any] struct {
	Start int
	Items []T
}

// Response is the raw model output for the batch starting at Start.
type Response struct {
	Start int
	Text  string
}

// PromptBuilder renders one batch into a conversation.
type PromptBuilder[T any] func(batch []T) ([]llm.Message, error)

// Partition cuts items into batches of at most size elements.
func Partition[T any](items []T, size int) []Batch[T] {
	if size < 1 {
		size = 1
	}
	batches := make([]Batch[T], 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		batches = append(batches, Batch[T]{Start: start, Items: items[start:end]})
	}
	return batches
}

// PromptFileName is the log file holding the user prompt of the batch at start.
func PromptFileName(start int) string {
	return PromptFilePrefix + strconv.Itoa(start) + logFileSuffix
}

// ResponseFileName is the log file holding the raw response of the batch at start.
func ResponseFileName(start int) string {
	return ResponseFilePrefix + strconv.Itoa(start) + logFileSuffix
}

// ParseResponseFileName extracts the batch start index from a response log name.
func ParseResponseFileName(name string) (int, bool) {
	name = filepath.Base(name)
	if !strings.HasPrefix(name, ResponseFilePrefix) || !strings.HasSuffix(name, logFileSuffix) {
		return 0, false
	}
	start, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, ResponseFilePrefix), logFileSuffix))
	if err != nil || start < 0 {
		return 0, false
	}
	return start, true
}

// Dispatcher sends batches to a model and keeps a verbatim log of every prompt and response.
type Dispatcher struct {
	model       llm.Model
	logDir      string
	concurrency int
	logger      hclog.Logger
}

// New creates a Dispatcher writing its logs into logDir.
func New(model llm.Model, logDir string, concurrency int, logger hclog.Logger) *Dispatcher {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Dispatcher{
		model:       model,
		logDir:      logDir,
		concurrency: concurrency,
		logger:      logger,
	}
}

// LogDir returns the directory holding the prompt and response logs.
func (d *Dispatcher) LogDir() string { return d.logDir }

// Dispatch renders every batch, calls the model once for all of them and
// returns the responses aligned with the batches. Prompts are persisted before
// the call and responses before anyone parses them. A failing model degrades
// to empty responses; only cancellation of ctx is returned as an error.
func Dispatch[T any](ctx context.Context, d *Dispatcher, items []T, batchSize int, build PromptBuilder[T]) ([]Response, error) {
	batches := Partition(items, batchSize)
	if len(batches) == 0 {
		return nil, nil
	}
	if err := files.CreateFolderIfNotExists(d.logDir); err != nil {
		return nil, err
	}

	conversations := make([][]llm.Message, 0, len(batches))
	for _, b := range batches {
		messages, err := build(b.Items)
		if err != nil {
			return nil, fmt.Errorf("failed to build prompt for batch %d: %w", b.Start, err)
		}
		if err := d.persist(PromptFileName(b.Start), userContent(messages)); err != nil {
			return nil, err
		}
		conversations = append(conversations, messages)
	}

	d.logger.Info("querying model", "batches", len(batches), "items", len(items), "concurrency", d.concurrency)
	texts, err := d.model.Call(ctx, conversations, d.concurrency)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if err != nil {
		d.logger.Error("model call failed, every batch degrades to an empty response", "error", err)
		texts = nil
	}
	if len(texts) != 0 && len(texts) != len(batches) {
		d.logger.Warn("model returned a mismatched number of responses", "expected", len(batches), "got", len(texts))
	}

	responses := make([]Response, len(batches))
	for i, b := range batches {
		text := ""
		if i < len(texts) {
			text = texts[i]
		}
		if err := d.persist(ResponseFileName(b.Start), text); err != nil {
			return nil, err
		}
		responses[i] = Response{Start: b.Start, Text: text}
	}
	return responses, nil
}

func (d *Dispatcher) persist(name, content string) error {
	path := filepath.Join(d.logDir, name)
	if err := files.WriteFileAtomic(path, []byte(content+"\n")); err != nil {
		return fmt.Errorf("failed to persist %q: %w", path, err)
	}
	return nil
}

func userContent(messages []llm.Message) string {
	var parts []string
	for _, m := range messages {
		if m.Role == "user" {
			parts = append(parts, m.Content)
		}
	}
	return strings.Join(parts, "\n")
}
