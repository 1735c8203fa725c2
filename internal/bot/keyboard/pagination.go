package keyboard

import (
	"fmt"

	"github.com/melykxiwldxlsksoxkslqk/pocket-bot/internal/i18n"
)

// PaginationRow returns the navigation row for a paginated list: a previous
// arrow, a page indicator and a next arrow, as applicable. The payload of the
// arrow buttons is "<payload>:<page>" under the shared unique. Returns nil
// when there is a single page.
func PaginationRow(t i18n.Translator, unique, payload string, page, totalPages int) []InlineButton {
	if totalPages <= 1 {
		return nil
	}
	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}

	row := make([]InlineButton, 0, 3)

	if page > 1 {
		row = append(row, InlineButton{
			Text:   t.T("nav.prev"),
			Unique: unique,
			Data:   fmt.Sprintf("%s:%d", payload, page-1),
		})
	}

	row = append(row, InlineButton{
		Text:   fmt.Sprintf("%d/%d", page, totalPages),
		Unique: unique,
		Data:   fmt.Sprintf("%s:%d", payload, page),
	})

	if page < totalPages {
		row = append(row, InlineButton{
			Text:   t.T("nav.next"),
			Unique: unique,
			Data:   fmt.Sprintf("%s:%d", payload, page+1),
		})
	}

	return row
}
