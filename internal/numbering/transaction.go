package numbering

import (
	"fmt"
	"math/rand"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/frontdesk-io/frontdesk-ce/internal/clock"
	"github.com/frontdesk-io/frontdesk-ce/internal/models"
)

// transactionNoPattern matches the public transaction-number format: two
// letters, six digits, a dash, three digits. Matching is case-insensitive;
// stored values are uppercased.
var transactionNoPattern = regexp.MustCompile(`^[A-Za-z]{2}[0-9]{6}-[0-9]{3}$`)

// ValidTransactionNo reports whether s has the transaction-number shape.
func ValidTransactionNo(s string) bool {
	return transactionNoPattern.MatchString(s)
}

// NormalizeTransactionNo uppercases a transaction number for storage.
func NormalizeTransactionNo(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

var officePrefixes = map[models.Office]string{
	models.OfficeRegistrar:  "TR",
	models.OfficeAdmissions: "AD",
}

// TransactionNoGenerator mints fresh transaction numbers in the public
// format: <office prefix><YYMMDD>-<seq>. The three-digit tail comes from an
// in-process counter seeded randomly per boot; uniqueness is ultimately
// enforced by the store's unique index, with callers retrying on conflict.
type TransactionNoGenerator struct {
	clock clock.Clock

	mu  sync.Mutex
	seq int
}

func NewTransactionNoGenerator(clk clock.Clock) *TransactionNoGenerator {
	return &TransactionNoGenerator{clock: clk, seq: rand.New(rand.NewSource(time.Now().UnixNano())).Intn(1000)}
}

// Next returns a candidate transaction number for the office.
func (g *TransactionNoGenerator) Next(office models.Office) string {
	g.mu.Lock()
	g.seq = (g.seq + 1) % 1000
	n := g.seq
	g.mu.Unlock()

	prefix, ok := officePrefixes[office]
	if !ok {
		prefix = "TX"
	}
	return fmt.Sprintf("%s%s-%03d", prefix, g.clock.Now().Format("060102"), n)
}
