package summary

import (
	"crypto/sha256"
	"encoding/binary"
	"sync"
	"time"

	"github.com/kshrestha1-godaddy/money-manager-sub009/pkg/models"
)

// Cache memoizes Summarize keyed on the debt list, their repayments and the as-of day.
// It is safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	key     [sha256.Size]byte
	valid   bool
	summary Summary
}

// Summarize returns the cached summary when nothing it depends on has changed.
func (c *Cache) Summarize(debts []*models.Debt, asOf time.Time) Summary {
	key := fingerprint(debts, asOf)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.valid && c.key == key {
		return c.summary
	}
	c.summary = Summarize(debts, asOf)
	c.key = key
	c.valid = true
	return c.summary
}

// UserCache holds one Cache per user so that users do not evict each other's entry.
type UserCache struct {
	mu    sync.Mutex
	users map[string]*Cache
}

// Summarize returns the cached summary of userID's debts.
func (u *UserCache) Summarize(userID string, debts []*models.Debt, asOf time.Time) Summary {
	u.mu.Lock()
	if u.users == nil {
		u.users = make(map[string]*Cache)
	}
	c, ok := u.users[userID]
	if !ok {
		c = &Cache{}
		u.users[userID] = c
	}
	u.mu.Unlock()
	return c.Summarize(debts, asOf)
}

func fingerprint(debts []*models.Debt, asOf time.Time) [sha256.Size]byte {
	h := sha256.New()
	var buf [8]byte
	write := func(s string) {
		binary.BigEndian.PutUint64(buf[:], uint64(len(s)))
		h.Write(buf[:])
		h.Write([]byte(s))
	}

	write(models.Day(asOf).Format(models.DateFormat))
	for _, d := range debts {
		write(d.ID.String())
		write(d.Amount.String())
		write(d.InterestRate.String())
		write(d.LentDate.Format(models.DateFormat))
		if d.DueDate != nil {
			write(d.DueDate.Format(models.DateFormat))
		} else {
			write("")
		}
		write(string(d.Status))
		write(string(d.ManualStatus))
		for _, r := range d.Repayments {
			write(r.ID.String())
			write(r.Amount.String())
		}
		write("|")
	}
	var key [sha256.Size]byte
	copy(key[:], h.Sum(nil))
	return key
}
