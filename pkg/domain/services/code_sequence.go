package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vsinha/cims/pkg/domain/repositories"
)

// Code prefixes for generated document numbers
const (
	PrefixPurchaseOrder = "PO"
	PrefixGRN           = "GRN"
	PrefixRequisition   = "REQ"
	PrefixProject       = "PRJ"
	PrefixWarehouse     = "WH"
	PrefixSupplier      = "SUP"
)

const (
	sequenceWidth       = 4
	defaultMaxAttempts  = 5
	defaultCodeLockTTL  = 5 * time.Second
	fallbackCodePrefix  = "CAT"
	codeLockKeyTemplate = "codegen:%s-%d"
)

// ErrCodeAllocationExhausted is returned when every allocation attempt collided
var ErrCodeAllocationExhausted = errors.New("code allocation attempts exhausted")

var prefixPattern = regexp.MustCompile(`^[A-Z0-9]+([-_][A-Z0-9]+)*$`)

// NormalizePrefix upper-cases a prefix, keeping inner - and _ separators, and
// falls back to CAT when it is empty or holds anything else
func NormalizePrefix(prefix string) string {
	p := strings.ToUpper(strings.TrimSpace(prefix))
	if !prefixPattern.MatchString(p) {
		return fallbackCodePrefix
	}
	return p
}

// FormatCode renders {PREFIX}-{YEAR}-{SEQ}; the sequence is padded to at least four digits
func FormatCode(prefix string, year, sequence int) string {
	return fmt.Sprintf("%s-%d-%0*d", prefix, year, sequenceWidth, sequence)
}

// SeriesPrefix returns the {PREFIX}-{YEAR}- stem shared by every code of a series
func SeriesPrefix(prefix string, year int) string {
	return fmt.Sprintf("%s-%d-", prefix, year)
}

// NextSequence returns one past the highest numeric suffix among codes of the series.
// Codes from other series and non-numeric suffixes are ignored. The comparison is
// numeric so that 10000 sorts after 9999.
func NextSequence(prefix string, year int, codes []string) int {
	stem := SeriesPrefix(prefix, year)
	last := 0
	for _, code := range codes {
		if !strings.HasPrefix(code, stem) {
			continue
		}
		suffix := code[len(stem):]
		if suffix == "" || strings.IndexFunc(suffix, func(r rune) bool { return r < '0' || r > '9' }) >= 0 {
			continue
		}
		n, err := strconv.Atoi(suffix)
		if err != nil {
			continue
		}
		if n > last {
			last = n
		}
	}
	return last + 1
}

// Lock is a held named lock
type Lock interface {
	Release(ctx context.Context) error
}

// Locker obtains named locks shared by every process allocating codes or moving stock
type Locker interface {
	Obtain(ctx context.Context, key string, ttl time.Duration) (Lock, error)
}

// CodeAllocator hands out sequential document codes.
//
// Reading the current maximum and inserting the next code happen under a named
// lock per series. The store also enforces uniqueness; when an insert reports
// repositories.ErrAlreadyExists the allocator rescans and retries.
type CodeAllocator struct {
	locker      Locker
	now         func() time.Time
	maxAttempts int
	lockTTL     time.Duration
	logger      *zap.Logger
}

// CodeAllocatorOption configures a CodeAllocator
type CodeAllocatorOption func(*CodeAllocator)

// WithClock overrides the clock used to pick the year
func WithClock(now func() time.Time) CodeAllocatorOption {
	return func(a *CodeAllocator) { a.now = now }
}

// WithMaxAttempts bounds the number of insert attempts per allocation
func WithMaxAttempts(n int) CodeAllocatorOption {
	return func(a *CodeAllocator) {
		if n > 0 {
			a.maxAttempts = n
		}
	}
}

// WithLockTTL sets how long a series lock is held before it expires on its own
func WithLockTTL(ttl time.Duration) CodeAllocatorOption {
	return func(a *CodeAllocator) {
		if ttl > 0 {
			a.lockTTL = ttl
		}
	}
}

// WithLogger reports series locks that could not be released
func WithLogger(logger *zap.Logger) CodeAllocatorOption {
	return func(a *CodeAllocator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// NewCodeAllocator creates an allocator using locker for mutual exclusion
func NewCodeAllocator(locker Locker, opts ...CodeAllocatorOption) *CodeAllocator {
	a := &CodeAllocator{
		locker:      locker,
		now:         time.Now,
		maxAttempts: defaultMaxAttempts,
		lockTTL:     defaultCodeLockTTL,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Peek returns the code the next allocation would produce without reserving it
func (a *CodeAllocator) Peek(ctx context.Context, lister repositories.CodeLister, prefix string) (string, error) {
	prefix = NormalizePrefix(prefix)
	year := a.now().Year()
	codes, err := lister.ListCodesWithPrefix(ctx, SeriesPrefix(prefix, year))
	if err != nil {
		return "", fmt.Errorf("failed to list codes for %s: %w", prefix, err)
	}
	return FormatCode(prefix, year, NextSequence(prefix, year, codes)), nil
}

// Allocate computes the next code of the series and passes it to insert while the
// series lock is held. It returns the code that insert accepted.
func (a *CodeAllocator) Allocate(
	ctx context.Context,
	lister repositories.CodeLister,
	prefix string,
	insert func(code string) error,
) (string, error) {
	prefix = NormalizePrefix(prefix)
	year := a.now().Year()
	key := fmt.Sprintf(codeLockKeyTemplate, prefix, year)

	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		code, err := a.tryAllocate(ctx, lister, key, prefix, year, insert)
		if err == nil {
			return code, nil
		}
		if !errors.Is(err, repositories.ErrAlreadyExists) {
			return "", err
		}
	}
	return "", fmt.Errorf("%w: %s after %d attempts", ErrCodeAllocationExhausted, SeriesPrefix(prefix, year), a.maxAttempts)
}

func (a *CodeAllocator) tryAllocate(
	ctx context.Context,
	lister repositories.CodeLister,
	key, prefix string,
	year int,
	insert func(code string) error,
) (string, error) {
	lock, err := a.locker.Obtain(ctx, key, a.lockTTL)
	if err != nil {
		return "", fmt.Errorf("failed to lock %s: %w", key, err)
	}
	// the row is stored once insert returns; an unreleased lock only expires late
	defer func() {
		if releaseErr := lock.Release(ctx); releaseErr != nil {
			a.logger.Warn("failed to release code series lock", zap.String("key", key), zap.Error(releaseErr))
		}
	}()

	codes, err := lister.ListCodesWithPrefix(ctx, SeriesPrefix(prefix, year))
	if err != nil {
		return "", fmt.Errorf("failed to list codes for %s: %w", prefix, err)
	}
	code := FormatCode(prefix, year, NextSequence(prefix, year, codes))
	if err := insert(code); err != nil {
		return "", err
	}
	return code, nil
}
