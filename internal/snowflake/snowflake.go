package snowflake

import (
	"fmt"
	"sync"
	"time"
)

type Snowflake struct {
	Timestamp int64
	WorkerID  int64
	Increment int64
}

// Epoch is 2018-01-01T00:00:00Z in unix milliseconds. Timestamps are stored
// relative to it.
const Epoch int64 = 1514764800000

const (
	timestampLength int64 = 42
	timestampPos          = 64 - timestampLength                  // 22
	workerLength    int64 = 10                                    // 10
	workerPos             = timestampPos - workerLength           // 12
	incrementLength       = 64 - (timestampLength + workerLength) // 12

	maxWorkerValue    = int64(1)<<workerLength - 1
	maxIncrementValue = int64(1)<<incrementLength - 1
)

type Generator struct {
	mutex sync.Mutex

	workerID      int64
	lastTimestamp int64
	lastIncrement int64

	now func() time.Time
}

func New(workerID int64) (*Generator, error) {
	return NewWithClock(workerID, time.Now)
}

func NewWithClock(workerID int64, now func() time.Time) (*Generator, error) {
	if workerID < 0 || workerID > maxWorkerValue {
		return nil, fmt.Errorf("worker ID value [%d] is outside of range 0-%d", workerID, maxWorkerValue)
	}

	return &Generator{workerID: workerID, now: now}, nil
}

// Generate never fails and never sleeps. If the increment overflows within a
// millisecond, the next millisecond is borrowed; if the wall clock steps back,
// the last timestamp is kept. Both keep ids strictly increasing.
func (g *Generator) Generate() int64 {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	timestamp := g.now().UnixMilli() - Epoch
	if timestamp < g.lastTimestamp {
		timestamp = g.lastTimestamp
	}

	if timestamp == g.lastTimestamp {
		g.lastIncrement += 1
		if g.lastIncrement > maxIncrementValue {
			timestamp += 1
			g.lastIncrement = 0
		}
	} else {
		g.lastIncrement = 0
	}
	g.lastTimestamp = timestamp

	return timestamp<<timestampPos | g.workerID<<workerPos | g.lastIncrement
}

func Extract(snowflakeId int64) Snowflake {
	snowflake := Snowflake{
		Timestamp: snowflakeId >> timestampPos,
		WorkerID:  (snowflakeId >> workerPos) & maxWorkerValue,
		Increment: snowflakeId & maxIncrementValue,
	}

	return snowflake
}

func ExtractTimestamp(snowflakeId int64) int64 {
	return snowflakeId >> timestampPos
}

// Time returns the wall time encoded in the id.
func Time(snowflakeId int64) time.Time {
	return time.UnixMilli(ExtractTimestamp(snowflakeId) + Epoch)
}
