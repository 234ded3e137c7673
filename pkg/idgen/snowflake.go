package idgen

import (
	"fmt"
	"strconv"
	"sync"
	"time"
)

// ============================================================================
// Snowflake ids
// ============================================================================
//
// Layout (64 bits):
//
//   0 | 41 bits ms since epoch | 10 bits worker | 12 bits sequence
//
// Ids are unique per worker and increase with time, which keeps the unique
// index on transactions.transaction_no append-friendly.
//
// ============================================================================

const (
	epoch          = int64(1704067200000) // 2024-01-01 00:00:00 UTC
	workerIDBits   = 10
	sequenceBits   = 12
	maxWorkerID    = -1 ^ (-1 << workerIDBits)
	maxSequence    = -1 ^ (-1 << sequenceBits)
	workerIDShift  = sequenceBits
	timestampShift = sequenceBits + workerIDBits
)

// Prefixes of the human-readable numbers handed out by this package.
const (
	PrefixTransaction = "TXN"
)

type Snowflake struct {
	mu        sync.Mutex
	timestamp int64
	workerID  int64
	sequence  int64
	now       func() int64
}

var (
	defaultGenerator *Snowflake
	once             sync.Once
)

// New returns a generator for workerID, which must be in [0, 1023].
func New(workerID int64) (*Snowflake, error) {
	if workerID < 0 || workerID > maxWorkerID {
		return nil, fmt.Errorf("worker id must be between 0 and %d, got %d", maxWorkerID, workerID)
	}
	return &Snowflake{
		workerID: workerID,
		now:      func() int64 { return time.Now().UnixMilli() },
	}, nil
}

// Init configures the package-level generator. Only the first call has an effect.
func Init(workerID int64) error {
	var err error
	once.Do(func() {
		defaultGenerator, err = New(workerID)
	})
	return err
}

// NextID returns the next id of the package-level generator, initializing it with
// worker 1 if Init was never called.
func NextID() int64 {
	_ = Init(1)
	return defaultGenerator.Generate()
}

func (s *Snowflake) Generate() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	// Never go back in time; reuse the last timestamp if the clock stepped backwards.
	if now < s.timestamp {
		now = s.timestamp
	}

	if now == s.timestamp {
		s.sequence = (s.sequence + 1) & maxSequence
		if s.sequence == 0 {
			for now <= s.timestamp {
				now = s.now()
			}
		}
	} else {
		s.sequence = 0
	}

	s.timestamp = now

	return ((now - epoch) << timestampShift) |
		(s.workerID << workerIDShift) |
		s.sequence
}

// TransactionNo formats a ledger transaction number, e.g. TXN20261015143052-123456789012345.
func TransactionNo() string {
	return format(PrefixTransaction, NextID())
}

func format(prefix string, id int64) string {
	return prefix + time.Now().Format("20060102150405") + "-" + strconv.FormatInt(id, 10)
}
