package intake

import (
	"fmt"
	"regexp"
	"strings"
)

// DonateCommand prefixes every chat message that records donations.
const DonateCommand = "!donate"

var inlineDonation = regexp.MustCompile(`(?i)^!donate\s+(.+?)\s*\|\s*(.*?)\s*\|\s*(.+?)\s*$`)

type pending struct {
	donor, category, amount string
	seen                    bool
}

// ParseMessage extracts donations from a chat message. Two shapes are accepted:
//
//	!donate Alice | Zakat | 100
//
// or a block per donation, several blocks per message:
//
//	!donate
//	Donor: Alice
//	Type: Zakat
//	Amount: $100
//
// Short keys d:, t: and a: work too. Each rejected donation produces one error;
// valid ones are returned in message order.
func ParseMessage(content string) ([]Donation, []error) {
	var (
		donations []Donation
		errs      []error
		current   pending
		block     int
	)

	flush := func() {
		if !current.seen {
			return
		}
		block++
		d, err := Validate(current.donor, current.category, current.amount)
		if err != nil {
			errs = append(errs, fmt.Errorf("donation %d: %w", block, err))
		} else {
			donations = append(donations, d)
		}
		current = pending{}
	}

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			flush()
			continue
		}

		if m := inlineDonation.FindStringSubmatch(line); m != nil {
			flush()
			current = pending{donor: m[1], category: m[2], amount: m[3], seen: true}
			flush()
			continue
		}
		if strings.EqualFold(line, DonateCommand) {
			flush()
			continue
		}

		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "donor", "d":
			flush()
			current.donor = value
		case "type", "t":
			current.category = value
		case "amount", "a":
			current.amount = value
		default:
			continue
		}
		current.seen = true
	}
	flush()

	return donations, errs
}

// IsDonateMessage reports whether a chat message is addressed to the ledger.
func IsDonateMessage(content string) bool {
	first, _, _ := strings.Cut(strings.TrimSpace(content), "\n")
	word := strings.Fields(first)
	return len(word) > 0 && strings.EqualFold(word[0], DonateCommand)
}
