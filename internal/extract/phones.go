package extract

import (
	"context"
	"regexp"
	"strings"
	"time"
)

// phonePatterns is the ordered candidate list for phone mining, most
// specific first. Patterns are applied in order and matching stops at the
// first pattern that yields anything, so a broad digit-run pattern never
// steals a substring of a fully-qualified number.
//
// The observed source data carries Argentine numbers; the fully-qualified
// form is country code 54, optional mobile 9, area code, then eight digits.
var phonePatterns = []*regexp.Regexp{
	// Full national format: 54 [9] 11 XXXX XXXX with optional separators.
	regexp.MustCompile(`\b54[\s.-]?(?:9[\s.-]?)?\d{2,4}[\s.-]?\d{4}[\s.-]?\d{4}\b`),
	// Area code plus local number: 11 XXXX XXXX.
	regexp.MustCompile(`\b11[\s.-]?\d{4}[\s.-]?\d{4}\b`),
	// Any bare run of 10 or 11 digits.
	regexp.MustCompile(`\b\d{10,11}\b`),
}

var nonDigits = regexp.MustCompile(`\D`)

// MinePhoneNumbers scans raw markup with the ordered pattern list and
// returns the distinct matches of the first pattern that hits, normalized to
// bare digits, in encounter order.
func MinePhoneNumbers(markup string) []string {
	for _, pattern := range phonePatterns {
		matches := pattern.FindAllString(markup, -1)
		if len(matches) == 0 {
			continue
		}
		seen := make(map[string]bool)
		var phones []string
		for _, m := range matches {
			digits := nonDigits.ReplaceAllString(m, "")
			if seen[digits] {
				continue
			}
			seen[digits] = true
			phones = append(phones, digits)
		}
		return phones
	}
	return nil
}

// assignPhones maps the mined list onto the primary/secondary pair. With a
// single match the secondary duplicates the primary: single-contact events
// still need both fields populated downstream.
func assignPhones(phones []string) (primary, secondary string) {
	if len(phones) == 0 {
		return "", ""
	}
	primary = phones[0]
	secondary = primary
	if len(phones) > 1 {
		secondary = phones[1]
	}
	return primary, secondary
}

// minePhones performs the contact-reveal interaction and mines the resulting
// markup. Phone numbers are not necessarily label-prefixed: on most
// deployments they only render after the client element is clicked.
func (e *Extractor) minePhones(ctx context.Context, clientName string) (string, string, error) {
	if err := e.revealContact(ctx, clientName); err != nil {
		return "", "", err
	}

	markup, err := e.surface.PageMarkup(ctx)
	if err != nil {
		return "", "", err
	}
	primary, secondary := assignPhones(MinePhoneNumbers(markup))
	return primary, secondary, nil
}

// revealContact clicks the anchor or button whose text matches the extracted
// client name, or a generic client/contact label, then lets the panel
// render. Not finding a clickable element is not an error: some deployments
// render phones inline.
func (e *Extractor) revealContact(ctx context.Context, clientName string) error {
	refs, err := e.surface.FindAll(ctx, "a, button")
	if err != nil {
		return err
	}

	target := foldText(strings.TrimSpace(clientName))
	for _, ref := range refs {
		text, err := e.surface.Text(ctx, ref)
		if err != nil {
			return err
		}
		folded := foldText(strings.TrimSpace(text))
		if folded == "" {
			continue
		}
		if (target != "" && strings.Contains(folded, target)) || containsKeyword(text, clientRevealKeywords) {
			if err := e.surface.Click(ctx, ref); err != nil {
				return err
			}
			// Give the panel time to render before re-scanning.
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(e.panelDelay):
			}
			return nil
		}
	}
	return nil
}
